package persona

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
	promptx "github.com/tanpawarit/microfounder-os/agent/prompt"
	"github.com/tanpawarit/microfounder-os/agent/sqlstore"
	"golang.org/x/sync/errgroup"
)

const (
	ceoRecentKey   = "ceo:recent"
	WeeklyPlansKey = "ceo:weekly_plans"

	ceoRecentWindow = 5
	ceoPlanWindow   = 2
)

// CEO gives strategic guidance and writes weekly plans.
type CEO struct {
	base
}

var _ contractx.Agent = (*CEO)(nil)

func NewCEO(deps Deps) (*CEO, error) {
	deps, err := deps.check(contractx.AgentCEO, true, false)
	if err != nil {
		return nil, err
	}
	return &CEO{base{kind: contractx.AgentCEO, deps: deps}}, nil
}

func (a *CEO) Chat(ctx context.Context, userID, message, businessID string) (contractx.ChatResult, error) {
	var (
		biz    contractx.Business
		recent []json.RawMessage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		biz, err = a.business(gctx, businessID)
		return err
	})
	g.Go(func() (err error) {
		recent, err = a.readSlice(gctx, ceoRecentKey, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return contractx.ChatResult{}, err
	}

	recent = Tail(recent, ceoRecentWindow)
	system, err := a.render(ctx, promptx.CEOChat, map[string]any{
		"business_type": orDefault(biz.Type, "Unknown"),
		"industry":      orDefault(biz.Industry, "Unknown"),
		"stage":         orDefault(biz.Stage, "Early"),
		"recent":        promptx.JSON(recent),
	})
	if err != nil {
		return contractx.ChatResult{}, err
	}

	return a.converse(ctx, userID, ceoRecentKey, system, priorTurns(recent), message)
}

// CreateWeeklyPlan drafts a plan for the coming week, appends it to the
// plan log and stores it in weekly_plans.
func (a *CEO) CreateWeeklyPlan(ctx context.Context, userID, businessID string) (contractx.WeeklyPlanResult, error) {
	var (
		biz   contractx.Business
		plans []json.RawMessage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		biz, err = a.business(gctx, businessID)
		return err
	})
	g.Go(func() (err error) {
		plans, err = a.readSlice(gctx, WeeklyPlansKey, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return contractx.WeeklyPlanResult{}, err
	}

	prompt, err := a.render(ctx, promptx.CEOWeeklyPlan, map[string]any{
		"business_type":  orDefault(biz.Type, "Unknown"),
		"industry":       orDefault(biz.Industry, "Unknown"),
		"stage":          orDefault(biz.Stage, "Early"),
		"previous_plans": promptx.JSON(Tail(plans, ceoPlanWindow)),
	})
	if err != nil {
		return contractx.WeeklyPlanResult{}, err
	}

	plan, err := a.infer(ctx, prompt)
	if err != nil {
		return contractx.WeeklyPlanResult{}, err
	}

	now := a.deps.Now().UTC()
	week := now.Format("2006-01-02")
	if err := a.append(ctx, WeeklyPlansKey, userID, map[string]any{
		"businessId": businessID,
		"plan":       plan,
		"week":       week,
		"timestamp":  now.UnixMilli(),
	}); err != nil {
		return contractx.WeeklyPlanResult{}, err
	}
	if err := a.insert(ctx, sqlstore.TableWeeklyPlans, contractx.Row{
		"id":         uuid.NewString(),
		"userId":     userID,
		"businessId": businessID,
		"plan":       plan,
		"week":       week,
		"createdAt":  now.Format(isoMillis),
	}); err != nil {
		return contractx.WeeklyPlanResult{}, err
	}

	return contractx.WeeklyPlanResult{Plan: plan, Saved: true}, nil
}

// priorTurns replays logged user/assistant entries as chat history.
func priorTurns(entries []json.RawMessage) []contractx.Message {
	out := make([]contractx.Message, 0, len(entries))
	for _, raw := range entries {
		var e contractx.LogEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}
		if e.Role != contractx.RoleUser && e.Role != contractx.RoleAssistant {
			continue
		}
		out = append(out, contractx.Message{Role: e.Role, Content: e.Content})
	}
	return out
}
