package webserver

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
)

func attachRoutes(r *gin.Engine, cfg Config, agents AgentService, ws WorkspaceService, buckets contractx.Buckets) {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "If-None-Match"},
		ExposeHeaders:    []string{"Content-Length", "ETag"},
		AllowCredentials: true,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	agentH := NewAgents(agents)
	wsH := NewWorkspace(ws)
	assetH := NewAssets(buckets)

	api := r.Group("/api")
	if cfg.JWTSecret != "" {
		api.Use(JWTMiddleware([]byte(cfg.JWTSecret)))
	}
	{
		api.POST("/onboarding", wsH.Onboard)
		api.GET("/dashboard", wsH.Dashboard)
		api.GET("/workspace/sql", wsH.SQL)
		api.GET("/workspace/memory", wsH.Memory)

		api.GET("/agents", agentH.List)
		api.POST("/agents/:agentId/chat", agentH.Chat)

		wf := api.Group("/workflows")
		wf.POST("/create-weekly-plan", agentH.CreateWeeklyPlan)
		wf.POST("/generate-marketing-assets", agentH.GenerateMarketingAssets)
		wf.POST("/run-financial-forecast", agentH.RunFinancialForecast)
		wf.POST("/create-prd", agentH.CreatePRD)
		wf.POST("/generate-outreach", agentH.GenerateOutreach)

		api.GET("/assets/:bucket/*key", assetH.Get)
	}
}
