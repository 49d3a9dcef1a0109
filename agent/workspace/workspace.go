package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tanpawarit/microfounder-os/agent/agents/persona"
	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
	memoryx "github.com/tanpawarit/microfounder-os/agent/memory"
	"github.com/tanpawarit/microfounder-os/agent/sqlstore"
	"golang.org/x/sync/errgroup"
)

const (
	dashboardPlans  = 3
	dashboardAssets = 5
)

// Initializer is the part of the agent manager onboarding needs.
type Initializer interface {
	InitializeAgents(ctx context.Context, userID, businessID string) error
}

type Onboarding struct {
	UserID          string
	BusinessType    string
	Industry        string
	Stage           string
	RevenueModel    string
	CurrentRevenue  *float64
	CurrentExpenses *float64
	Answers         json.RawMessage
}

type Summary struct {
	Business       contractx.Row     `json:"business"`
	RecentPlans    []json.RawMessage `json:"recentPlans"`
	RecentAssets   []json.RawMessage `json:"recentAssets"`
	LatestForecast json.RawMessage   `json:"latestForecast"`
}

// Dashboard is nil-valued for users who have not onboarded yet.
type Dashboard struct {
	Business contractx.Row `json:"business"`
	Summary  *Summary      `json:"summary"`
}

type MemoryView struct {
	Keys []string                   `json:"keys"`
	Data map[string]json.RawMessage `json:"data"`
}

type Service struct {
	memory contractx.Memory
	sql    contractx.SQL
	agents Initializer
	now    func() time.Time
}

func New(memory contractx.Memory, sql contractx.SQL, agents Initializer) (*Service, error) {
	if memory == nil {
		return nil, errors.New("memory is required")
	}
	if sql == nil {
		return nil, errors.New("sql is required")
	}
	if agents == nil {
		return nil, errors.New("agent initializer is required")
	}
	return &Service{memory: memory, sql: sql, agents: agents, now: time.Now}, nil
}

// Onboard creates the business record, initializes the user's agents and
// seeds the shared business context. It returns the new business id.
func (s *Service) Onboard(ctx context.Context, req Onboarding) (string, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return "", fmt.Errorf("%w: userId is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(req.BusinessType) == "" {
		return "", fmt.Errorf("%w: businessType is required", contractx.ErrValidation)
	}

	answers := bytes.TrimSpace(req.Answers)
	if len(answers) == 0 {
		answers = []byte("{}")
	}
	if !json.Valid(answers) {
		return "", fmt.Errorf("%w: answers must be JSON", contractx.ErrValidation)
	}

	now := s.now().UTC()
	businessID := uuid.NewString()
	row := contractx.Row{
		"id":        businessID,
		"userId":    userID,
		"type":      req.BusinessType,
		"answers":   string(answers),
		"createdAt": now.Format("2006-01-02T15:04:05.000Z07:00"),
	}
	for col, v := range map[string]string{"industry": req.Industry, "stage": req.Stage, "revenueModel": req.RevenueModel} {
		if v = strings.TrimSpace(v); v != "" {
			row[col] = v
		}
	}
	if req.CurrentRevenue != nil {
		row["currentRevenue"] = *req.CurrentRevenue
	}
	if req.CurrentExpenses != nil {
		row["currentExpenses"] = *req.CurrentExpenses
	}

	if _, err := s.sql.Insert(ctx, sqlstore.TableBusinesses, row); contractx.Failed(err) {
		return "", fmt.Errorf("onboard: %w", err)
	}
	if err := s.agents.InitializeAgents(ctx, userID, businessID); err != nil {
		return "", err
	}
	if err := s.memory.Write(ctx, persona.BusinessContextKey, userID, map[string]any{
		"businessId": businessID,
		"type":       req.BusinessType,
		"answers":    json.RawMessage(answers),
		"timestamp":  now.UnixMilli(),
	}); contractx.Failed(err) {
		return "", fmt.Errorf("onboard: %w", err)
	}
	return businessID, nil
}

func (s *Service) Dashboard(ctx context.Context, userID string) (Dashboard, error) {
	rows, err := s.sql.Select(ctx, sqlstore.TableBusinesses, contractx.Row{"userId": userID})
	if contractx.Failed(err) {
		return Dashboard{}, fmt.Errorf("dashboard: %w", err)
	}
	if len(rows) == 0 {
		return Dashboard{}, nil
	}

	sum := &Summary{Business: rows[0]}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		plans, err := memoryx.ReadSlice(gctx, s.memory, persona.WeeklyPlansKey, userID)
		sum.RecentPlans = persona.Tail(plans, dashboardPlans)
		return failure(err)
	})
	g.Go(func() error {
		assets, err := memoryx.ReadSlice(gctx, s.memory, persona.MarketingAssetsKey, userID)
		sum.RecentAssets = persona.Tail(assets, dashboardAssets)
		return failure(err)
	})
	g.Go(func() error {
		raw, err := s.memory.Read(gctx, persona.LatestForecastKey, userID)
		sum.LatestForecast = raw
		return failure(err)
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, fmt.Errorf("dashboard: %w", err)
	}

	return Dashboard{Business: rows[0], Summary: sum}, nil
}

// Tables lists the relational tables the workspace viewer may open.
func (s *Service) Tables() []string {
	known := s.sql.Tables()
	if len(known) == 0 {
		for _, t := range sqlstore.Schema {
			known = append(known, t.Table)
		}
	}
	return known
}

// TableRows returns the user's rows of one known table.
func (s *Service) TableRows(ctx context.Context, userID, table string) ([]contractx.Row, error) {
	if !s.isKnownTable(table) {
		return nil, fmt.Errorf("%w: unknown table %q", contractx.ErrValidation, table)
	}
	rows, err := s.sql.Select(ctx, table, contractx.Row{"userId": userID})
	if contractx.Failed(err) {
		return nil, fmt.Errorf("workspace rows: %w", err)
	}
	return rows, nil
}

func (s *Service) isKnownTable(table string) bool {
	for _, t := range s.Tables() {
		if t == table {
			return true
		}
	}
	return false
}

// Memory returns every key of the user under prefix with its value.
func (s *Service) Memory(ctx context.Context, userID, prefix string) (MemoryView, error) {
	keys, err := s.memory.List(ctx, userID, prefix)
	if contractx.Failed(err) {
		return MemoryView{}, fmt.Errorf("workspace memory: %w", err)
	}
	sort.Strings(keys)

	view := MemoryView{Keys: keys, Data: make(map[string]json.RawMessage, len(keys))}
	for _, key := range keys {
		raw, err := s.memory.Read(ctx, key, userID)
		if contractx.Failed(err) {
			return MemoryView{}, fmt.Errorf("workspace memory: %w", err)
		}
		view.Data[key] = raw
	}
	return view, nil
}

func failure(err error) error {
	if contractx.Failed(err) {
		return err
	}
	return nil
}
