// Package mcpserver exposes the agent workflows as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
)

var Version = "dev"

type Agents interface {
	ChatWithAgent(ctx context.Context, userID, agentID, message, businessID string) (contractx.ChatResult, error)
	CreateWeeklyPlan(ctx context.Context, userID, businessID string) (contractx.WeeklyPlanResult, error)
	GenerateMarketingAssets(ctx context.Context, userID, businessID, assetType string) (contractx.AssetsResult, error)
	RunFinancialForecast(ctx context.Context, userID, businessID string) (contractx.ForecastResult, error)
	CreatePRD(ctx context.Context, userID, businessID, feature string) (contractx.PRDResult, error)
	GenerateOutreachMessage(ctx context.Context, userID, businessID string, prospect contractx.ProspectInfo) (contractx.OutreachResult, error)
}

type chatArgs struct {
	UserID     string `json:"userId" validate:"required"`
	AgentID    string `json:"agentId" validate:"required"`
	Message    string `json:"message" validate:"required"`
	BusinessID string `json:"businessId"`
}

type workflowArgs struct {
	UserID     string `json:"userId" validate:"required"`
	BusinessID string `json:"businessId" validate:"required"`
}

type assetArgs struct {
	workflowArgs
	AssetType string `json:"assetType" validate:"required,oneof=ad_copy landing_page email_campaign"`
}

type prdArgs struct {
	workflowArgs
	Feature string `json:"feature" validate:"required"`
}

type outreachArgs struct {
	workflowArgs
	ProspectName    string `json:"prospectName" validate:"required"`
	ProspectCompany string `json:"prospectCompany" validate:"required"`
	ProspectRole    string `json:"prospectRole" validate:"required"`
}

type handlers struct {
	agents   Agents
	validate *validator.Validate
}

// New builds the MCP server with one tool per agent operation.
func New(agents Agents) *server.MCPServer {
	s := server.NewMCPServer(
		"microfounder-os",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	h := handlers{agents: agents, validate: validator.New()}

	s.AddTool(mcp.NewTool("chat_with_agent",
		mcp.WithDescription("Send a message to one of the business agents (ceo, marketing, finance, product, sales)."),
		mcp.WithString("userId", mcp.Required()),
		mcp.WithString("agentId", mcp.Required(), mcp.Enum("ceo", "marketing", "finance", "product", "sales")),
		mcp.WithString("message", mcp.Required()),
		mcp.WithString("businessId", mcp.Description("Defaults to the user's first business.")),
	), h.chat)

	s.AddTool(mcp.NewTool("create_weekly_plan",
		mcp.WithDescription("Have the CEO agent draft and save this week's plan."),
		mcp.WithString("userId", mcp.Required()),
		mcp.WithString("businessId", mcp.Required()),
	), h.weeklyPlan)

	s.AddTool(mcp.NewTool("generate_marketing_assets",
		mcp.WithDescription("Generate and store a marketing asset."),
		mcp.WithString("userId", mcp.Required()),
		mcp.WithString("businessId", mcp.Required()),
		mcp.WithString("assetType", mcp.Required(), mcp.Enum("ad_copy", "landing_page", "email_campaign")),
	), h.marketingAssets)

	s.AddTool(mcp.NewTool("run_financial_forecast",
		mcp.WithDescription("Produce a 12 month financial forecast."),
		mcp.WithString("userId", mcp.Required()),
		mcp.WithString("businessId", mcp.Required()),
	), h.forecast)

	s.AddTool(mcp.NewTool("create_prd",
		mcp.WithDescription("Write a product requirements document for a feature."),
		mcp.WithString("userId", mcp.Required()),
		mcp.WithString("businessId", mcp.Required()),
		mcp.WithString("feature", mcp.Required()),
	), h.prd)

	s.AddTool(mcp.NewTool("generate_outreach_message",
		mcp.WithDescription("Write a personalized sales outreach message."),
		mcp.WithString("userId", mcp.Required()),
		mcp.WithString("businessId", mcp.Required()),
		mcp.WithString("prospectName", mcp.Required()),
		mcp.WithString("prospectCompany", mcp.Required()),
		mcp.WithString("prospectRole", mcp.Required()),
	), h.outreach)

	return s
}

func Serve(agents Agents) error {
	return server.ServeStdio(New(agents))
}

// bind decodes the tool arguments into dst and validates them.
func (h handlers) bind(req mcp.CallToolRequest, dst any) error {
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrValidation, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrValidation, err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrValidation, err)
	}
	return nil
}

// result renders v as the tool output. Failures become tool errors the
// client can show; only unexpected encoding problems are protocol errors.
func result(v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (h handlers) chat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args chatArgs
	if err := h.bind(req, &args); err != nil {
		return result(nil, err)
	}
	return result(h.agents.ChatWithAgent(ctx, args.UserID, args.AgentID, args.Message, args.BusinessID))
}

func (h handlers) weeklyPlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args workflowArgs
	if err := h.bind(req, &args); err != nil {
		return result(nil, err)
	}
	return result(h.agents.CreateWeeklyPlan(ctx, args.UserID, args.BusinessID))
}

func (h handlers) marketingAssets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args assetArgs
	if err := h.bind(req, &args); err != nil {
		return result(nil, err)
	}
	return result(h.agents.GenerateMarketingAssets(ctx, args.UserID, args.BusinessID, args.AssetType))
}

func (h handlers) forecast(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args workflowArgs
	if err := h.bind(req, &args); err != nil {
		return result(nil, err)
	}
	return result(h.agents.RunFinancialForecast(ctx, args.UserID, args.BusinessID))
}

func (h handlers) prd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args prdArgs
	if err := h.bind(req, &args); err != nil {
		return result(nil, err)
	}
	return result(h.agents.CreatePRD(ctx, args.UserID, args.BusinessID, args.Feature))
}

func (h handlers) outreach(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args outreachArgs
	if err := h.bind(req, &args); err != nil {
		return result(nil, err)
	}
	prospect := contractx.ProspectInfo{
		Name:    args.ProspectName,
		Company: args.ProspectCompany,
		Role:    args.ProspectRole,
	}
	return result(h.agents.GenerateOutreachMessage(ctx, args.UserID, args.BusinessID, prospect))
}
