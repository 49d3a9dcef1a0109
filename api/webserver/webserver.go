package webserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
	"github.com/tanpawarit/microfounder-os/agent/workspace"
)

type Config struct {
	JWTSecret   string
	CORSOrigins []string
}

// AgentService is the agent manager surface the API exposes.
type AgentService interface {
	GetAgents(userID string) []contractx.AgentInfo
	ChatWithAgent(ctx context.Context, userID, agentID, message, businessID string) (contractx.ChatResult, error)
	CreateWeeklyPlan(ctx context.Context, userID, businessID string) (contractx.WeeklyPlanResult, error)
	GenerateMarketingAssets(ctx context.Context, userID, businessID, assetType string) (contractx.AssetsResult, error)
	RunFinancialForecast(ctx context.Context, userID, businessID string) (contractx.ForecastResult, error)
	CreatePRD(ctx context.Context, userID, businessID, feature string) (contractx.PRDResult, error)
	GenerateOutreachMessage(ctx context.Context, userID, businessID string, prospect contractx.ProspectInfo) (contractx.OutreachResult, error)
}

type WorkspaceService interface {
	Onboard(ctx context.Context, req workspace.Onboarding) (string, error)
	Dashboard(ctx context.Context, userID string) (workspace.Dashboard, error)
	Tables() []string
	TableRows(ctx context.Context, userID, table string) ([]contractx.Row, error)
	Memory(ctx context.Context, userID, prefix string) (workspace.MemoryView, error)
}

func New(cfg Config, agents AgentService, ws WorkspaceService, buckets contractx.Buckets) *gin.Engine {
	g := gin.New()
	g.Use(requestLogger(), gin.Recovery())
	attachRoutes(g, cfg, agents, ws, buckets)
	return g
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		evt := log.Info()
		if status >= 500 {
			evt = log.Error()
		} else if status >= 400 {
			evt = log.Warn()
		}
		if len(c.Errors) > 0 {
			evt = evt.Str("error", c.Errors.String())
		}
		evt.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}
