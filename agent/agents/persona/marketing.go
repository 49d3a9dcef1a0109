package persona

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
	promptx "github.com/tanpawarit/microfounder-os/agent/prompt"
)

const (
	BusinessContextKey        = "business:context"
	marketingConversationsKey = "marketing:conversations"
	MarketingAssetsKey        = "marketing:assets"

	MarketingBucket = "marketing-assets"
)

const (
	AssetAdCopy        = "ad_copy"
	AssetLandingPage   = "landing_page"
	AssetEmailCampaign = "email_campaign"
)

var assetKinds = map[string]struct {
	prompt promptx.Name
	format string
}{
	AssetAdCopy:        {promptx.MarketingAdCopy, "json"},
	AssetLandingPage:   {promptx.MarketingLandingPage, "html"},
	AssetEmailCampaign: {promptx.MarketingEmailCampaign, "json"},
}

// AssetFormat returns the stored file format for assetType.
func AssetFormat(assetType string) (string, bool) {
	k, ok := assetKinds[assetType]
	return k.format, ok
}

// Marketing writes ad copy, landing pages and email campaigns.
type Marketing struct {
	base
}

var _ contractx.Agent = (*Marketing)(nil)

func NewMarketing(deps Deps) (*Marketing, error) {
	deps, err := deps.check(contractx.AgentMarketing, false, true)
	if err != nil {
		return nil, err
	}
	return &Marketing{base{kind: contractx.AgentMarketing, deps: deps}}, nil
}

func (a *Marketing) Chat(ctx context.Context, userID, message, businessID string) (contractx.ChatResult, error) {
	bizCtx, err := a.readObject(ctx, BusinessContextKey, userID)
	if err != nil {
		return contractx.ChatResult{}, err
	}
	system, err := a.render(ctx, promptx.MarketingChat, map[string]any{
		"business_context": promptx.JSON(bizCtx),
	})
	if err != nil {
		return contractx.ChatResult{}, err
	}
	return a.converse(ctx, userID, marketingConversationsKey, system, nil, message)
}

// GenerateAssets produces one asset of assetType, uploads it to the
// marketing bucket under <type>/<businessId>/<millis>.<format> and records
// the reference in memory.
func (a *Marketing) GenerateAssets(ctx context.Context, userID, businessID, assetType string) (contractx.AssetsResult, error) {
	kind, ok := assetKinds[assetType]
	if !ok {
		return contractx.AssetsResult{}, fmt.Errorf("%w: unsupported asset type %q", contractx.ErrValidation, assetType)
	}

	bizCtx, err := a.readObject(ctx, BusinessContextKey, userID)
	if err != nil {
		return contractx.AssetsResult{}, err
	}
	prompt, err := a.render(ctx, kind.prompt, map[string]any{
		"business_context": promptx.JSON(bizCtx),
	})
	if err != nil {
		return contractx.AssetsResult{}, err
	}

	content, err := a.infer(ctx, prompt)
	if err != nil {
		return contractx.AssetsResult{}, err
	}

	now := a.deps.Now().UTC()
	key := fmt.Sprintf("%s/%s/%d.%s", assetType, businessID, now.UnixMilli(), kind.format)
	if err := a.upload(ctx, MarketingBucket, key, []byte(content), map[string]string{
		"assetType":  assetType,
		"businessId": businessID,
		"userId":     userID,
		"createdAt":  now.Format(isoMillis),
	}); err != nil {
		return contractx.AssetsResult{}, err
	}
	if err := a.append(ctx, MarketingAssetsKey, userID, map[string]any{
		"assetType":  assetType,
		"key":        key,
		"businessId": businessID,
		"timestamp":  now.UnixMilli(),
	}); err != nil {
		return contractx.AssetsResult{}, err
	}

	return contractx.AssetsResult{
		Assets: []contractx.Asset{{
			Type:    assetType,
			Key:     key,
			Content: content,
			Format:  kind.format,
		}},
		Saved: true,
	}, nil
}
