package persona

import (
	"context"
	"encoding/json"

	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
	promptx "github.com/tanpawarit/microfounder-os/agent/prompt"
	"golang.org/x/sync/errgroup"
)

const (
	salesContextKey       = "sales:context"
	salesConversationsKey = "sales:conversations"
	salesOutreachKey      = "sales:outreach_messages"
)

// Sales writes outreach and sales scripts.
type Sales struct {
	base
}

var _ contractx.Agent = (*Sales)(nil)

func NewSales(deps Deps) (*Sales, error) {
	deps, err := deps.check(contractx.AgentSales, false, false)
	if err != nil {
		return nil, err
	}
	return &Sales{base{kind: contractx.AgentSales, deps: deps}}, nil
}

func (a *Sales) Chat(ctx context.Context, userID, message, businessID string) (contractx.ChatResult, error) {
	var salesCtx, bizCtx json.RawMessage
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		salesCtx, err = a.readObject(gctx, salesContextKey, userID)
		return err
	})
	g.Go(func() (err error) {
		bizCtx, err = a.readObject(gctx, BusinessContextKey, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return contractx.ChatResult{}, err
	}

	system, err := a.render(ctx, promptx.SalesChat, map[string]any{
		"business_context": promptx.JSON(bizCtx),
		"sales_context":    promptx.JSON(salesCtx),
	})
	if err != nil {
		return contractx.ChatResult{}, err
	}
	return a.converse(ctx, userID, salesConversationsKey, system, nil, message)
}

// GenerateOutreachMessage writes a short personalised cold email for the
// prospect and logs it with the prospect details.
func (a *Sales) GenerateOutreachMessage(ctx context.Context, userID, businessID string, prospect contractx.ProspectInfo) (contractx.OutreachResult, error) {
	bizCtx, err := a.readObject(ctx, BusinessContextKey, userID)
	if err != nil {
		return contractx.OutreachResult{}, err
	}
	prompt, err := a.render(ctx, promptx.SalesOutreach, map[string]any{
		"prospect_name":    prospect.Name,
		"prospect_company": prospect.Company,
		"prospect_role":    prospect.Role,
		"business_context": promptx.JSON(bizCtx),
	})
	if err != nil {
		return contractx.OutreachResult{}, err
	}

	message, err := a.infer(ctx, prompt)
	if err != nil {
		return contractx.OutreachResult{}, err
	}

	if err := a.append(ctx, salesOutreachKey, userID, map[string]any{
		"prospectInfo": prospect,
		"message":      message,
		"businessId":   businessID,
		"timestamp":    a.millis(),
	}); err != nil {
		return contractx.OutreachResult{}, err
	}
	return contractx.OutreachResult{Message: message, Saved: true}, nil
}
