package contract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type AgentKind int

const (
	AgentCEO AgentKind = iota
	AgentMarketing
	AgentFinance
	AgentProduct
	AgentSales
)

// AllAgentKinds lists every agent in catalog order.
var AllAgentKinds = []AgentKind{AgentCEO, AgentMarketing, AgentFinance, AgentProduct, AgentSales}

func (k AgentKind) String() string {
	switch k {
	case AgentCEO:
		return "ceo"
	case AgentMarketing:
		return "marketing"
	case AgentFinance:
		return "finance"
	case AgentProduct:
		return "product"
	case AgentSales:
		return "sales"
	default:
		return fmt.Sprintf("agent(%d)", int(k))
	}
}

func ParseAgentKind(id string) (AgentKind, error) {
	switch strings.ToLower(strings.TrimSpace(id)) {
	case "ceo":
		return AgentCEO, nil
	case "marketing":
		return AgentMarketing, nil
	case "finance":
		return AgentFinance, nil
	case "product":
		return AgentProduct, nil
	case "sales":
		return AgentSales, nil
	default:
		return 0, &UnknownAgentError{ID: id}
	}
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// InferOptions overrides the inference defaults. Zero values keep the
// client default.
type InferOptions struct {
	Model       string   `json:"model,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"maxTokens,omitempty"`
}

// LogEntry is one turn of an agent conversation log in memory.
type LogEntry struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

type ChatResult struct {
	Response string `json:"response"`
	AgentID  string `json:"agentId"`
}

type WeeklyPlanResult struct {
	Plan  string `json:"plan"`
	Saved bool   `json:"saved"`
}

type Asset struct {
	Type    string `json:"type"`
	Key     string `json:"key"`
	Content string `json:"content"`
	Format  string `json:"format"`
}

type AssetsResult struct {
	Assets []Asset `json:"assets"`
	Saved  bool    `json:"saved"`
}

type ForecastResult struct {
	Forecast json.RawMessage `json:"forecast"`
	Saved    bool            `json:"saved"`
}

type PRDResult struct {
	PRD   string `json:"prd"`
	Saved bool   `json:"saved"`
}

type ProspectInfo struct {
	Name    string `json:"name" binding:"required"`
	Company string `json:"company" binding:"required"`
	Role    string `json:"role" binding:"required"`
}

type OutreachResult struct {
	Message string `json:"message"`
	Saved   bool   `json:"saved"`
}

type AgentInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

type Business struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Type            string          `json:"type,omitempty"`
	Industry        string          `json:"industry,omitempty"`
	Stage           string          `json:"stage,omitempty"`
	RevenueModel    string          `json:"revenueModel,omitempty"`
	CurrentRevenue  float64         `json:"currentRevenue"`
	CurrentExpenses float64         `json:"currentExpenses"`
	Answers         json.RawMessage `json:"answers,omitempty"`
	CreatedAt       string          `json:"createdAt,omitempty"`
}

// BusinessFromRow reads a businesses row as returned by either a remote
// driver or the local fallback. Missing or mistyped columns stay zero.
func BusinessFromRow(row map[string]any) Business {
	b := Business{
		ID:              stringField(row["id"]),
		UserID:          stringField(row["userId"]),
		Type:            stringField(row["type"]),
		Industry:        stringField(row["industry"]),
		Stage:           stringField(row["stage"]),
		RevenueModel:    stringField(row["revenueModel"]),
		CurrentRevenue:  numberField(row["currentRevenue"]),
		CurrentExpenses: numberField(row["currentExpenses"]),
		CreatedAt:       stringField(row["createdAt"]),
	}
	if answers := stringField(row["answers"]); answers != "" && json.Valid([]byte(answers)) {
		b.Answers = json.RawMessage(answers)
	}
	return b
}

func stringField(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

func numberField(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f
	case []byte:
		f, _ := strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
		return f
	default:
		return 0
	}
}
