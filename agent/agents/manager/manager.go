package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/tanpawarit/microfounder-os/agent/agents/persona"
	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
	nodex "github.com/tanpawarit/microfounder-os/agent/nodes"
)

const (
	initializedKey = "agents:initialized"
	configKey      = "agents:config"
)

var catalog = map[contractx.AgentKind]contractx.AgentInfo{
	contractx.AgentCEO:       {Name: "CEO Agent", Description: "Strategic planning and weekly plans"},
	contractx.AgentMarketing: {Name: "Marketing Agent", Description: "Ad copy, landing pages, email campaigns"},
	contractx.AgentFinance:   {Name: "Finance Agent", Description: "Forecasting, pricing, break-even analysis"},
	contractx.AgentProduct:   {Name: "Product Agent", Description: "PRDs, UX suggestions, product docs"},
	contractx.AgentSales:     {Name: "Sales Agent", Description: "Outreach messages and sales scripts"},
}

type Option func(*Manager)

// WithAgent replaces the chat agent for its kind. Workflows still run on
// the built-in personas.
func WithAgent(agent contractx.Agent) Option {
	return func(m *Manager) {
		if agent != nil {
			m.agents[agent.Kind()] = agent
		}
	}
}

// Manager owns the five personas and routes chat and workflow calls to
// them.
type Manager struct {
	ceo       *persona.CEO
	marketing *persona.Marketing
	finance   *persona.Finance
	product   *persona.Product
	sales     *persona.Sales

	agents map[contractx.AgentKind]contractx.Agent
	memory contractx.Memory
	sql    contractx.SQL

	chatRunner compose.Runnable[nodex.ChatInput, nodex.ChatOutput]

	now func() time.Time
}

func New(deps persona.Deps, opts ...Option) (*Manager, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	m := &Manager{
		agents: make(map[contractx.AgentKind]contractx.Agent, len(contractx.AllAgentKinds)),
		memory: deps.Memory,
		sql:    deps.SQL,
		now:    deps.Now,
	}

	var err error
	if m.ceo, err = persona.NewCEO(deps); err != nil {
		return nil, err
	}
	if m.marketing, err = persona.NewMarketing(deps); err != nil {
		return nil, err
	}
	if m.finance, err = persona.NewFinance(deps); err != nil {
		return nil, err
	}
	if m.product, err = persona.NewProduct(deps); err != nil {
		return nil, err
	}
	if m.sales, err = persona.NewSales(deps); err != nil {
		return nil, err
	}
	for _, a := range []contractx.Agent{m.ceo, m.marketing, m.finance, m.product, m.sales} {
		m.agents[a.Kind()] = a
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	for _, kind := range contractx.AllAgentKinds {
		if _, ok := m.agents[kind]; !ok {
			return nil, fmt.Errorf("no agent registered for %s", kind)
		}
	}

	runner, err := m.compileChatGraph(context.Background())
	if err != nil {
		return nil, err
	}
	m.chatRunner = runner

	return m, nil
}

// InitializeAgents marks the user's agents as set up for businessID.
// Both keys are overwritten, so calling it again is harmless.
func (m *Manager) InitializeAgents(ctx context.Context, userID, businessID string) error {
	err := m.memory.Write(ctx, initializedKey, userID, map[string]any{
		"businessId": businessID,
		"timestamp":  m.now().UnixMilli(),
	})
	if contractx.Failed(err) {
		return fmt.Errorf("initialize agents: %w", err)
	}

	enabled := make(map[string]any, len(contractx.AllAgentKinds))
	for _, kind := range contractx.AllAgentKinds {
		enabled[kind.String()] = map[string]bool{"enabled": true}
	}
	if err := m.memory.Write(ctx, configKey, userID, enabled); contractx.Failed(err) {
		return fmt.Errorf("initialize agents: %w", err)
	}
	return nil
}

// GetAgents returns the fixed catalog; every agent is reported active.
func (m *Manager) GetAgents(userID string) []contractx.AgentInfo {
	out := make([]contractx.AgentInfo, 0, len(contractx.AllAgentKinds))
	for _, kind := range contractx.AllAgentKinds {
		info := catalog[kind]
		info.ID = kind.String()
		info.Status = "active"
		out = append(out, info)
	}
	return out
}

func (m *Manager) ChatWithAgent(ctx context.Context, userID, agentID, message, businessID string) (contractx.ChatResult, error) {
	out, err := m.chatRunner.Invoke(ctx, nodex.ChatInput{
		UserID:     userID,
		AgentID:    agentID,
		Message:    message,
		BusinessID: businessID,
	})
	if err != nil {
		return contractx.ChatResult{}, unwrapGraphError(err)
	}
	return out.Result, nil
}

// unwrapGraphError strips graph bookkeeping from the two errors whose text
// is part of the API.
func unwrapGraphError(err error) error {
	var unknown *contractx.UnknownAgentError
	if errors.As(err, &unknown) {
		return unknown
	}
	if errors.Is(err, contractx.ErrNoBusinessFound) {
		return contractx.ErrNoBusinessFound
	}
	return err
}

func (m *Manager) CreateWeeklyPlan(ctx context.Context, userID, businessID string) (contractx.WeeklyPlanResult, error) {
	return m.ceo.CreateWeeklyPlan(ctx, userID, businessID)
}

func (m *Manager) GenerateMarketingAssets(ctx context.Context, userID, businessID, assetType string) (contractx.AssetsResult, error) {
	return m.marketing.GenerateAssets(ctx, userID, businessID, assetType)
}

func (m *Manager) RunFinancialForecast(ctx context.Context, userID, businessID string) (contractx.ForecastResult, error) {
	return m.finance.RunForecast(ctx, userID, businessID)
}

func (m *Manager) CreatePRD(ctx context.Context, userID, businessID, feature string) (contractx.PRDResult, error) {
	return m.product.CreatePRD(ctx, userID, businessID, feature)
}

func (m *Manager) GenerateOutreachMessage(ctx context.Context, userID, businessID string, prospect contractx.ProspectInfo) (contractx.OutreachResult, error) {
	return m.sales.GenerateOutreachMessage(ctx, userID, businessID, prospect)
}
