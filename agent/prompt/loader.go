package prompt

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// Name identifies one embedded template, e.g. "ceo_weekly_plan".
type Name string

const (
	CEOChat                Name = "ceo_chat"
	CEOWeeklyPlan          Name = "ceo_weekly_plan"
	FinanceChat            Name = "finance_chat"
	FinanceForecast        Name = "finance_forecast"
	MarketingChat          Name = "marketing_chat"
	MarketingAdCopy        Name = "marketing_ad_copy"
	MarketingLandingPage   Name = "marketing_landing_page"
	MarketingEmailCampaign Name = "marketing_email_campaign"
	ProductChat            Name = "product_chat"
	ProductPRD             Name = "product_prd"
	SalesChat              Name = "sales_chat"
	SalesOutreach          Name = "sales_outreach"
)

var allNames = []Name{
	CEOChat, CEOWeeklyPlan,
	FinanceChat, FinanceForecast,
	MarketingChat, MarketingAdCopy, MarketingLandingPage, MarketingEmailCampaign,
	ProductChat, ProductPRD,
	SalesChat, SalesOutreach,
}

//go:embed template/*.txt
var templateFS embed.FS

// Set holds the parsed templates. It is read-only after Load and safe for
// concurrent use.
type Set struct {
	templates map[Name]einoprompt.ChatTemplate
}

// Load parses every embedded template. A missing file is an error so a bad
// build fails at startup rather than on the first request.
func Load() (*Set, error) {
	s := &Set{templates: make(map[Name]einoprompt.ChatTemplate, len(allNames))}
	for _, name := range allNames {
		raw, err := templateFS.ReadFile("template/" + string(name) + ".txt")
		if err != nil {
			return nil, fmt.Errorf("load prompt %s: %w", name, err)
		}
		s.templates[name] = einoprompt.FromMessages(schema.FString, schema.UserMessage(strings.TrimSpace(string(raw))))
	}
	return s, nil
}

// MustLoad is Load for process start.
func MustLoad() *Set {
	s, err := Load()
	if err != nil {
		panic(err)
	}
	return s
}

// Render fills the named template. Every placeholder must be present in vars.
func (s *Set) Render(ctx context.Context, name Name, vars map[string]any) (string, error) {
	tpl, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	if len(msgs) == 0 {
		return "", fmt.Errorf("render prompt %s: no output", name)
	}
	return msgs[0].Content, nil
}

// JSON renders v as two-space indented JSON for embedding in a prompt.
// Raw JSON values are re-indented; nil becomes "null".
func JSON(v any) string {
	if raw, ok := v.(json.RawMessage); ok {
		if len(raw) == 0 {
			return "null"
		}
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			v = decoded
		}
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(out)
}
