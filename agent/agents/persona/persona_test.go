package persona

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tanpawarit/microfounder-os/agent/bucket"
	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
	"github.com/tanpawarit/microfounder-os/agent/memory"
	promptx "github.com/tanpawarit/microfounder-os/agent/prompt"
	"github.com/tanpawarit/microfounder-os/agent/sqlstore"
)

var fixedNow = time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

type fakeInference struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
	chats   [][]contractx.Message
}

func (f *fakeInference) Infer(ctx context.Context, prompt string, opts contractx.InferOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeInference) Chat(ctx context.Context, messages []contractx.Message, opts contractx.InferOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, messages)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fixture struct {
	inf     *fakeInference
	mem     *memory.Store
	sql     *sqlstore.Store
	buckets *bucket.Store
	deps    Deps
}

func newFixture(t *testing.T, reply string) *fixture {
	t.Helper()

	f := &fixture{
		inf:     &fakeInference{reply: reply},
		mem:     memory.New(nil),
		sql:     sqlstore.New(nil),
		buckets: bucket.New(nil),
	}
	if err := sqlstore.EnsureSchema(context.Background(), f.sql); contractx.Failed(err) {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	f.deps = Deps{
		Inference: f.inf,
		Memory:    f.mem,
		SQL:       f.sql,
		Buckets:   f.buckets,
		Prompts:   promptx.MustLoad(),
		Now:       func() time.Time { return fixedNow },
	}
	return f
}

func (f *fixture) seedBusiness(t *testing.T) {
	t.Helper()
	_, err := f.sql.Insert(context.Background(), sqlstore.TableBusinesses, contractx.Row{
		"id":              "b1",
		"userId":          "u1",
		"type":            "SaaS",
		"industry":        "Fintech",
		"stage":           "Growth",
		"revenueModel":    "subscription",
		"currentRevenue":  12000,
		"currentExpenses": 8000,
	})
	if contractx.Failed(err) {
		t.Fatalf("Insert() error = %v", err)
	}
}

func (f *fixture) log(t *testing.T, key string) []contractx.LogEntry {
	t.Helper()
	items, err := memory.ReadSlice(context.Background(), f.mem, key, "u1")
	if contractx.Failed(err) {
		t.Fatalf("ReadSlice() error = %v", err)
	}
	out := make([]contractx.LogEntry, 0, len(items))
	for _, raw := range items {
		var e contractx.LogEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		out = append(out, e)
	}
	return out
}

func TestCEOChatUsesBusinessAndRecentTurns(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "focus on retention")
	f.seedBusiness(t)
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		role := contractx.RoleUser
		if i%2 == 1 {
			role = contractx.RoleAssistant
		}
		_ = f.mem.Append(ctx, ceoRecentKey, "u1", contractx.LogEntry{Role: role, Content: fmt.Sprintf("turn %d", i)})
	}

	agent, err := NewCEO(f.deps)
	if err != nil {
		t.Fatalf("NewCEO() error = %v", err)
	}
	res, err := agent.Chat(ctx, "u1", "what next?", "b1")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if res.Response != "focus on retention" || res.AgentID != "ceo" {
		t.Fatalf("Chat() = %+v", res)
	}

	msgs := f.inf.chats[0]
	if len(msgs) != 7 {
		t.Fatalf("chat messages = %d, want 7 (system, 5 prior, user)", len(msgs))
	}
	if msgs[0].Role != contractx.RoleSystem || !strings.Contains(msgs[0].Content, "- Type: SaaS") || !strings.Contains(msgs[0].Content, "- Stage: Growth") {
		t.Fatalf("system message = %q", msgs[0].Content)
	}
	if msgs[1].Content != "turn 1" || msgs[6].Content != "what next?" {
		t.Fatalf("history = %+v", msgs)
	}

	entries := f.log(t, ceoRecentKey)
	if len(entries) != 8 {
		t.Fatalf("ceo:recent entries = %d, want 8", len(entries))
	}
	user, assistant := entries[6], entries[7]
	if user.Role != contractx.RoleUser || user.Content != "what next?" || user.Timestamp != fixedNow.UnixMilli() {
		t.Fatalf("user entry = %+v", user)
	}
	if assistant.Role != contractx.RoleAssistant || assistant.Content != "focus on retention" {
		t.Fatalf("assistant entry = %+v", assistant)
	}
}

func TestChatDefaultsWhenBusinessMissing(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "ok")
	agent, err := NewCEO(f.deps)
	if err != nil {
		t.Fatalf("NewCEO() error = %v", err)
	}
	if _, err := agent.Chat(context.Background(), "u1", "hi", "missing"); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	system := f.inf.chats[0][0].Content
	for _, want := range []string{"- Type: Unknown", "- Industry: Unknown", "- Stage: Early", "Recent Context:\n[]"} {
		if !strings.Contains(system, want) {
			t.Fatalf("system message = %q, missing %q", system, want)
		}
	}
}

func TestChatInferenceFailureLeavesNoLog(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	f.inf.err = fmt.Errorf("%w: upstream 503", contractx.ErrInferenceFailed)
	agent, err := NewFinance(f.deps)
	if err != nil {
		t.Fatalf("NewFinance() error = %v", err)
	}

	_, err = agent.Chat(context.Background(), "u1", "hi", "b1")
	if !errors.Is(err, contractx.ErrInferenceFailed) {
		t.Fatalf("Chat() error = %v, want ErrInferenceFailed", err)
	}
	if got := f.log(t, financeConversationsKey); len(got) != 0 {
		t.Fatalf("finance:conversations = %+v, want empty", got)
	}
}

func TestChatLogsExactlyTwoEntries(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		build  func(Deps) (contractx.Agent, error)
		logKey string
	}{
		{"marketing", func(d Deps) (contractx.Agent, error) { return NewMarketing(d) }, marketingConversationsKey},
		{"finance", func(d Deps) (contractx.Agent, error) { return NewFinance(d) }, financeConversationsKey},
		{"product", func(d Deps) (contractx.Agent, error) { return NewProduct(d) }, productConversationsKey},
		{"sales", func(d Deps) (contractx.Agent, error) { return NewSales(d) }, salesConversationsKey},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, "reply")
			agent, err := tc.build(f.deps)
			if err != nil {
				t.Fatalf("build error = %v", err)
			}
			res, err := agent.Chat(context.Background(), "u1", "question", "b1")
			if err != nil {
				t.Fatalf("Chat() error = %v", err)
			}
			if res.AgentID != tc.name {
				t.Fatalf("AgentID = %q, want %q", res.AgentID, tc.name)
			}
			if got := len(f.inf.chats[0]); got != 2 {
				t.Fatalf("chat messages = %d, want 2", got)
			}
			entries := f.log(t, tc.logKey)
			if len(entries) != 2 || entries[0].Role != contractx.RoleUser || entries[1].Role != contractx.RoleAssistant {
				t.Fatalf("%s entries = %+v", tc.logKey, entries)
			}
		})
	}
}

func TestCEOCreateWeeklyPlan(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "1. Ship onboarding")
	f.seedBusiness(t)
	agent, err := NewCEO(f.deps)
	if err != nil {
		t.Fatalf("NewCEO() error = %v", err)
	}
	ctx := context.Background()

	res, err := agent.CreateWeeklyPlan(ctx, "u1", "b1")
	if err != nil {
		t.Fatalf("CreateWeeklyPlan() error = %v", err)
	}
	if res.Plan != "1. Ship onboarding" || !res.Saved {
		t.Fatalf("CreateWeeklyPlan() = %+v", res)
	}
	if !strings.Contains(f.inf.prompts[0], "Business Type: SaaS") {
		t.Fatalf("prompt = %q", f.inf.prompts[0])
	}

	rows, _ := f.sql.Select(ctx, sqlstore.TableWeeklyPlans, contractx.Row{"userId": "u1"})
	if len(rows) != 1 {
		t.Fatalf("weekly_plans rows = %d, want 1", len(rows))
	}
	if rows[0]["week"] != "2024-03-05" || rows[0]["businessId"] != "b1" || rows[0]["createdAt"] != "2024-03-05T12:00:00.000Z" {
		t.Fatalf("weekly_plans row = %v", rows[0])
	}

	plans, _ := memory.ReadSlice(ctx, f.mem, WeeklyPlansKey, "u1")
	if len(plans) != 1 || !strings.Contains(string(plans[0]), `"week":"2024-03-05"`) {
		t.Fatalf("ceo:weekly_plans = %s", plans)
	}
}

func TestFinanceRunForecast(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		reply string
		want  string
	}{
		{"json", ` {"months": [1, 2]} `, `{"months":[1,2]}`},
		{"text", "Revenue will grow.", `{"parsed":false,"text":"Revenue will grow."}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, tc.reply)
			f.seedBusiness(t)
			agent, err := NewFinance(f.deps)
			if err != nil {
				t.Fatalf("NewFinance() error = %v", err)
			}
			ctx := context.Background()

			res, err := agent.RunForecast(ctx, "u1", "b1")
			if err != nil {
				t.Fatalf("RunForecast() error = %v", err)
			}
			if string(res.Forecast) != tc.want || !res.Saved {
				t.Fatalf("RunForecast() = %s, want %s", res.Forecast, tc.want)
			}
			if !strings.Contains(f.inf.prompts[0], "Current Revenue: 12000") {
				t.Fatalf("prompt = %q", f.inf.prompts[0])
			}

			rows, _ := f.sql.Select(ctx, sqlstore.TableForecasts, contractx.Row{"businessId": "b1"})
			if len(rows) != 1 || rows[0]["forecast"] != tc.want || rows[0]["period"] != "12_months" {
				t.Fatalf("forecasts rows = %v", rows)
			}

			latest, _ := f.mem.Read(ctx, LatestForecastKey, "u1")
			var got struct {
				BusinessID string          `json:"businessId"`
				Forecast   json.RawMessage `json:"forecast"`
				Timestamp  int64           `json:"timestamp"`
			}
			if err := json.Unmarshal(latest, &got); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if got.BusinessID != "b1" || string(got.Forecast) != tc.want || got.Timestamp != fixedNow.UnixMilli() {
				t.Fatalf("latest forecast = %+v", got)
			}
		})
	}
}

func TestMarketingGenerateAssets(t *testing.T) {
	t.Parallel()

	cases := []struct {
		assetType string
		format    string
	}{
		{AssetAdCopy, "json"},
		{AssetLandingPage, "html"},
		{AssetEmailCampaign, "json"},
	}
	for _, tc := range cases {
		t.Run(tc.assetType, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, "asset body")
			agent, err := NewMarketing(f.deps)
			if err != nil {
				t.Fatalf("NewMarketing() error = %v", err)
			}
			ctx := context.Background()

			res, err := agent.GenerateAssets(ctx, "u1", "b1", tc.assetType)
			if err != nil {
				t.Fatalf("GenerateAssets() error = %v", err)
			}
			wantKey := fmt.Sprintf("%s/b1/%d.%s", tc.assetType, fixedNow.UnixMilli(), tc.format)
			if len(res.Assets) != 1 || !res.Saved {
				t.Fatalf("GenerateAssets() = %+v", res)
			}
			asset := res.Assets[0]
			if asset.Key != wantKey || asset.Format != tc.format || asset.Type != tc.assetType || asset.Content != "asset body" {
				t.Fatalf("asset = %+v, want key %s", asset, wantKey)
			}

			data, err := f.buckets.Download(ctx, MarketingBucket, wantKey)
			if contractx.Failed(err) || string(data) != "asset body" {
				t.Fatalf("Download() = %q, %v", data, err)
			}
			meta, _ := f.buckets.GetMetadata(ctx, MarketingBucket, wantKey)
			if meta["assetType"] != tc.assetType || meta["userId"] != "u1" || meta["businessId"] != "b1" {
				t.Fatalf("metadata = %v", meta)
			}

			refs, _ := memory.ReadSlice(ctx, f.mem, MarketingAssetsKey, "u1")
			if len(refs) != 1 || !strings.Contains(string(refs[0]), wantKey) {
				t.Fatalf("marketing:assets = %s", refs)
			}
		})
	}
}

func TestMarketingRejectsUnknownAssetType(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "x")
	agent, err := NewMarketing(f.deps)
	if err != nil {
		t.Fatalf("NewMarketing() error = %v", err)
	}
	_, err = agent.GenerateAssets(context.Background(), "u1", "b1", "billboard")
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("GenerateAssets() error = %v, want ErrValidation", err)
	}
	if len(f.inf.prompts) != 0 {
		t.Fatalf("inference called %d times, want 0", len(f.inf.prompts))
	}
}

func TestProductCreatePRD(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "# PRD")
	agent, err := NewProduct(f.deps)
	if err != nil {
		t.Fatalf("NewProduct() error = %v", err)
	}
	ctx := context.Background()

	res, err := agent.CreatePRD(ctx, "u1", "b1", "Team invites")
	if err != nil {
		t.Fatalf("CreatePRD() error = %v", err)
	}
	if res.PRD != "# PRD" || !res.Saved {
		t.Fatalf("CreatePRD() = %+v", res)
	}
	if !strings.Contains(f.inf.prompts[0], "Feature: Team invites") {
		t.Fatalf("prompt = %q", f.inf.prompts[0])
	}

	key := fmt.Sprintf("prds/b1/%d.md", fixedNow.UnixMilli())
	meta, err := f.buckets.GetMetadata(ctx, ProductBucket, key)
	if contractx.Failed(err) || meta["type"] != "prd" || meta["feature"] != "Team invites" {
		t.Fatalf("GetMetadata() = %v, %v", meta, err)
	}

	if _, err := agent.CreatePRD(ctx, "u1", "b1", " "); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("CreatePRD() error = %v, want ErrValidation", err)
	}
}

func TestSalesGenerateOutreachMessage(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "Hi Ada,")
	ctx := context.Background()
	_ = f.mem.Write(ctx, BusinessContextKey, "u1", map[string]any{"type": "Agency"})

	agent, err := NewSales(f.deps)
	if err != nil {
		t.Fatalf("NewSales() error = %v", err)
	}
	prospect := contractx.ProspectInfo{Name: "Ada", Company: "Acme", Role: "CTO"}
	res, err := agent.GenerateOutreachMessage(ctx, "u1", "b1", prospect)
	if err != nil {
		t.Fatalf("GenerateOutreachMessage() error = %v", err)
	}
	if res.Message != "Hi Ada," || !res.Saved {
		t.Fatalf("GenerateOutreachMessage() = %+v", res)
	}
	for _, want := range []string{"- Name: Ada", "- Company: Acme", "- Role: CTO", `"type": "Agency"`} {
		if !strings.Contains(f.inf.prompts[0], want) {
			t.Fatalf("prompt = %q, missing %q", f.inf.prompts[0], want)
		}
	}

	items, _ := memory.ReadSlice(ctx, f.mem, salesOutreachKey, "u1")
	if len(items) != 1 {
		t.Fatalf("sales:outreach_messages = %s", items)
	}
	var entry struct {
		ProspectInfo contractx.ProspectInfo `json:"prospectInfo"`
		Message      string                 `json:"message"`
	}
	if err := json.Unmarshal(items[0], &entry); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if entry.ProspectInfo != prospect || entry.Message != "Hi Ada," {
		t.Fatalf("outreach entry = %+v", entry)
	}
}

func TestConstructorsRequireDeps(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	noSQL := f.deps
	noSQL.SQL = nil
	if _, err := NewCEO(noSQL); err == nil {
		t.Fatalf("NewCEO() without sql error = nil")
	}
	noBuckets := f.deps
	noBuckets.Buckets = nil
	if _, err := NewProduct(noBuckets); err == nil {
		t.Fatalf("NewProduct() without buckets error = nil")
	}
	if _, err := NewSales(noBuckets); err != nil {
		t.Fatalf("NewSales() error = %v", err)
	}
}

func TestTail(t *testing.T) {
	t.Parallel()

	if got := Tail([]int{1, 2, 3, 4}, 2); len(got) != 2 || got[0] != 3 {
		t.Fatalf("Tail() = %v", got)
	}
	if got := Tail([]int(nil), 5); got == nil || len(got) != 0 {
		t.Fatalf("Tail(nil) = %v, want empty non-nil", got)
	}
}
