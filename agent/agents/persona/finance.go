package persona

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
	promptx "github.com/tanpawarit/microfounder-os/agent/prompt"
	"github.com/tanpawarit/microfounder-os/agent/sqlstore"
	"golang.org/x/sync/errgroup"
)

const (
	financeConversationsKey = "finance:conversations"
	LatestForecastKey       = "finance:latest_forecast"

	financeChatWindow     = 10
	financeForecastWindow = 12
	forecastPeriod        = "12_months"
)

// Finance handles forecasting, pricing and unit economics.
type Finance struct {
	base
}

var _ contractx.Agent = (*Finance)(nil)

func NewFinance(deps Deps) (*Finance, error) {
	deps, err := deps.check(contractx.AgentFinance, true, false)
	if err != nil {
		return nil, err
	}
	return &Finance{base{kind: contractx.AgentFinance, deps: deps}}, nil
}

func (a *Finance) load(ctx context.Context, businessID string) (contractx.Business, []contractx.Row, error) {
	var (
		biz     contractx.Business
		history []contractx.Row
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		biz, err = a.business(gctx, businessID)
		return err
	})
	g.Go(func() (err error) {
		history, err = a.rows(gctx, sqlstore.TableFinancialData, contractx.Row{"businessId": businessID})
		return err
	})
	if err := g.Wait(); err != nil {
		return contractx.Business{}, nil, err
	}
	return biz, history, nil
}

func (a *Finance) Chat(ctx context.Context, userID, message, businessID string) (contractx.ChatResult, error) {
	biz, history, err := a.load(ctx, businessID)
	if err != nil {
		return contractx.ChatResult{}, err
	}

	system, err := a.render(ctx, promptx.FinanceChat, map[string]any{
		"business_type": orDefault(biz.Type, "Unknown"),
		"revenue_model": orDefault(biz.RevenueModel, "Unknown"),
		"history":       promptx.JSON(Tail(history, financeChatWindow)),
	})
	if err != nil {
		return contractx.ChatResult{}, err
	}

	return a.converse(ctx, userID, financeConversationsKey, system, nil, message)
}

// RunForecast asks for a 12-month forecast. Output that is not valid JSON
// is kept as {"text": ..., "parsed": false}.
func (a *Finance) RunForecast(ctx context.Context, userID, businessID string) (contractx.ForecastResult, error) {
	biz, history, err := a.load(ctx, businessID)
	if err != nil {
		return contractx.ForecastResult{}, err
	}

	prompt, err := a.render(ctx, promptx.FinanceForecast, map[string]any{
		"business_type":    orDefault(biz.Type, "Unknown"),
		"revenue_model":    orDefault(biz.RevenueModel, "Unknown"),
		"current_revenue":  strconv.FormatFloat(biz.CurrentRevenue, 'f', -1, 64),
		"current_expenses": strconv.FormatFloat(biz.CurrentExpenses, 'f', -1, 64),
		"history":          promptx.JSON(Tail(history, financeForecastWindow)),
	})
	if err != nil {
		return contractx.ForecastResult{}, err
	}

	text, err := a.infer(ctx, prompt)
	if err != nil {
		return contractx.ForecastResult{}, err
	}
	forecast, err := parseForecast(text)
	if err != nil {
		return contractx.ForecastResult{}, err
	}

	now := a.deps.Now().UTC()
	if err := a.insert(ctx, sqlstore.TableForecasts, contractx.Row{
		"id":         uuid.NewString(),
		"userId":     userID,
		"businessId": businessID,
		"forecast":   string(forecast),
		"period":     forecastPeriod,
		"createdAt":  now.Format(isoMillis),
	}); err != nil {
		return contractx.ForecastResult{}, err
	}
	if err := a.write(ctx, LatestForecastKey, userID, map[string]any{
		"businessId": businessID,
		"forecast":   forecast,
		"timestamp":  now.UnixMilli(),
	}); err != nil {
		return contractx.ForecastResult{}, err
	}

	return contractx.ForecastResult{Forecast: forecast, Saved: true}, nil
}

func parseForecast(text string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace([]byte(text))
	if len(trimmed) > 0 && json.Valid(trimmed) {
		var compact bytes.Buffer
		if err := json.Compact(&compact, trimmed); err == nil {
			return compact.Bytes(), nil
		}
	}
	out, err := json.Marshal(map[string]any{"text": text, "parsed": false})
	if err != nil {
		return nil, fmt.Errorf("encode forecast: %w", err)
	}
	return out, nil
}
