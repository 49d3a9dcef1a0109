package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
	openrouterx "github.com/tanpawarit/microfounder-os/pkg/openrouter"
)

// Config is loaded with the OPENROUTER prefix. Per-agent temperatures
// default to -1, meaning "use the client default".
type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" default:"meta-llama/llama-3.1-70b-instruct"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.7"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	CEOModel             string  `envconfig:"CEO_MODEL" split_words:"true"`
	MarketingModel       string  `envconfig:"MARKETING_MODEL" split_words:"true"`
	FinanceModel         string  `envconfig:"FINANCE_MODEL" split_words:"true"`
	ProductModel         string  `envconfig:"PRODUCT_MODEL" split_words:"true"`
	SalesModel           string  `envconfig:"SALES_MODEL" split_words:"true"`
	CEOTemperature       float32 `envconfig:"CEO_TEMPERATURE" split_words:"true" default:"-1"`
	MarketingTemperature float32 `envconfig:"MARKETING_TEMPERATURE" split_words:"true" default:"-1"`
	FinanceTemperature   float32 `envconfig:"FINANCE_TEMPERATURE" split_words:"true" default:"-1"`
	ProductTemperature   float32 `envconfig:"PRODUCT_TEMPERATURE" split_words:"true" default:"-1"`
	SalesTemperature     float32 `envconfig:"SALES_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// Defaults are the client-wide inference options.
func (c Config) Defaults() contractx.InferOptions {
	temp := c.Temperature
	return contractx.InferOptions{
		Model:       strings.TrimSpace(c.Model),
		Temperature: &temp,
		MaxTokens:   c.MaxCompletionToken,
	}
}

// OptionsFor returns the per-call overrides for one agent. Fields left
// empty fall through to the client defaults.
func (c Config) OptionsFor(kind contractx.AgentKind) contractx.InferOptions {
	var (
		modelName string
		temp      float32 = -1
	)
	switch kind {
	case contractx.AgentCEO:
		modelName, temp = c.CEOModel, c.CEOTemperature
	case contractx.AgentMarketing:
		modelName, temp = c.MarketingModel, c.MarketingTemperature
	case contractx.AgentFinance:
		modelName, temp = c.FinanceModel, c.FinanceTemperature
	case contractx.AgentProduct:
		modelName, temp = c.ProductModel, c.ProductTemperature
	case contractx.AgentSales:
		modelName, temp = c.SalesModel, c.SalesTemperature
	}

	opts := contractx.InferOptions{Model: strings.TrimSpace(modelName)}
	if temp >= 0 {
		opts.Temperature = &temp
	}
	return opts
}

func (c Config) OpenRouter() openrouterx.Config {
	return openrouterx.Config{
		BaseURL:     strings.TrimSpace(c.BaseURL),
		APIKey:      strings.TrimSpace(c.APIKey),
		Model:       strings.TrimSpace(c.Model),
		MaxTokens:   c.MaxCompletionToken,
		Temperature: c.Temperature,
		Timeout:     c.Timeout,
		SiteURL:     strings.TrimSpace(c.SiteURL),
		SiteName:    strings.TrimSpace(c.SiteName),
	}
}
