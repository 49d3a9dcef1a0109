package persona

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
	promptx "github.com/tanpawarit/microfounder-os/agent/prompt"
)

const (
	productContextKey       = "product:context"
	productConversationsKey = "product:conversations"
	productPRDsKey          = "product:prds"

	ProductBucket = "product-docs"
)

// Product writes PRDs and gives UX and prioritization advice.
type Product struct {
	base
}

var _ contractx.Agent = (*Product)(nil)

func NewProduct(deps Deps) (*Product, error) {
	deps, err := deps.check(contractx.AgentProduct, false, true)
	if err != nil {
		return nil, err
	}
	return &Product{base{kind: contractx.AgentProduct, deps: deps}}, nil
}

func (a *Product) Chat(ctx context.Context, userID, message, businessID string) (contractx.ChatResult, error) {
	productCtx, err := a.readObject(ctx, productContextKey, userID)
	if err != nil {
		return contractx.ChatResult{}, err
	}
	system, err := a.render(ctx, promptx.ProductChat, map[string]any{
		"product_context": promptx.JSON(productCtx),
	})
	if err != nil {
		return contractx.ChatResult{}, err
	}
	return a.converse(ctx, userID, productConversationsKey, system, nil, message)
}

// CreatePRD writes a markdown PRD for feature into the product-docs bucket
// under prds/<businessId>/<millis>.md.
func (a *Product) CreatePRD(ctx context.Context, userID, businessID, feature string) (contractx.PRDResult, error) {
	if err := required("feature", feature); err != nil {
		return contractx.PRDResult{}, err
	}

	productCtx, err := a.readObject(ctx, productContextKey, userID)
	if err != nil {
		return contractx.PRDResult{}, err
	}
	prompt, err := a.render(ctx, promptx.ProductPRD, map[string]any{
		"feature":         feature,
		"product_context": promptx.JSON(productCtx),
	})
	if err != nil {
		return contractx.PRDResult{}, err
	}

	prd, err := a.infer(ctx, prompt)
	if err != nil {
		return contractx.PRDResult{}, err
	}

	now := a.deps.Now().UTC()
	key := fmt.Sprintf("prds/%s/%d.md", businessID, now.UnixMilli())
	if err := a.upload(ctx, ProductBucket, key, []byte(prd), map[string]string{
		"type":       "prd",
		"feature":    feature,
		"businessId": businessID,
		"userId":     userID,
		"createdAt":  now.Format(isoMillis),
	}); err != nil {
		return contractx.PRDResult{}, err
	}
	if err := a.append(ctx, productPRDsKey, userID, map[string]any{
		"feature":    feature,
		"key":        key,
		"businessId": businessID,
		"timestamp":  now.UnixMilli(),
	}); err != nil {
		return contractx.PRDResult{}, err
	}

	return contractx.PRDResult{PRD: prd, Saved: true}, nil
}
