package sqlstore

import (
	"context"
	"errors"
	"reflect"
	"testing"

	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
)

type recordedCall struct {
	query string
	args  []any
}

type fakeRemote struct {
	dialect  Dialect
	rows     []contractx.Row
	affected int64
	err      error
	queries  []recordedCall
	execs    []recordedCall
}

func (f *fakeRemote) Dialect() Dialect {
	return f.dialect
}

func (f *fakeRemote) Query(ctx context.Context, query string, args ...any) ([]contractx.Row, error) {
	f.queries = append(f.queries, recordedCall{query: query, args: args})
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func (f *fakeRemote) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	f.execs = append(f.execs, recordedCall{query: query, args: args})
	if f.err != nil {
		return 0, f.err
	}
	return f.affected, nil
}

func TestSelectBindsValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dialect Dialect
		want    string
	}{
		{name: "postgres", dialect: DialectPostgres, want: `SELECT * FROM "businesses" WHERE "id" = ? AND "userId" = ?`},
		{name: "mysql", dialect: DialectMySQL, want: "SELECT * FROM `businesses` WHERE `id` = ? AND `userId` = ?"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			remote := &fakeRemote{dialect: tt.dialect}
			store := New(remote)

			_, err := store.Select(context.Background(), "businesses", contractx.Row{"userId": "u1' OR '1'='1", "id": "b1"})
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			got := remote.queries[0]
			if got.query != tt.want {
				t.Fatalf("query = %q, want %q", got.query, tt.want)
			}
			if want := []any{"b1", "u1' OR '1'='1"}; !reflect.DeepEqual(got.args, want) {
				t.Fatalf("args = %#v, want %#v", got.args, want)
			}
		})
	}
}

func TestStoreRejectsInvalidIdentifiers(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{}
	store := New(remote)
	ctx := context.Background()

	if _, err := store.Select(ctx, "businesses; DROP TABLE businesses", nil); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Select() error = %v, want ErrValidation", err)
	}
	if _, err := store.Insert(ctx, "forecasts", contractx.Row{"bad col": 1}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Insert() error = %v, want ErrValidation", err)
	}
	if err := store.CreateTable(ctx, "t", []contractx.Column{{Name: "a", Type: "TEXT); DROP TABLE t; --"}}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("CreateTable() error = %v, want ErrValidation", err)
	}
	if len(remote.queries)+len(remote.execs) != 0 {
		t.Fatalf("remote was called for invalid input")
	}
}

func TestCreateTableIsCreateIfAbsent(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{dialect: DialectPostgres}
	store := New(remote)

	err := store.CreateTable(context.Background(), "weekly_plans", []contractx.Column{
		{Name: "id", Type: "VARCHAR(64) PRIMARY KEY"},
		{Name: "plan", Type: "TEXT"},
	})
	if err != nil {
		t.Fatalf("CreateTable() error = %v", err)
	}
	want := `CREATE TABLE IF NOT EXISTS "weekly_plans" ("id" VARCHAR(64) PRIMARY KEY, "plan" TEXT)`
	if got := remote.execs[0].query; got != want {
		t.Fatalf("query = %q, want %q", got, want)
	}
	if got := store.Tables(); !reflect.DeepEqual(got, []string{"weekly_plans"}) {
		t.Fatalf("Tables() = %v", got)
	}
}

func TestCreateTableAbsorbsRemoteFailure(t *testing.T) {
	t.Parallel()

	store := New(&fakeRemote{err: errors.New("down")})
	err := store.CreateTable(context.Background(), "t", []contractx.Column{{Name: "id", Type: "TEXT"}})
	if contractx.Failed(err) {
		t.Fatalf("CreateTable() error = %v, want degraded", err)
	}
	if !errors.Is(err, contractx.ErrDegraded) {
		t.Fatalf("CreateTable() error = %v, want ErrDegraded", err)
	}
}

func TestInsertGeneratesIDAndReturnsIt(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{dialect: DialectPostgres}
	store := New(remote, WithIDGenerator(func() string { return "gen-1" }))

	res, err := store.Insert(context.Background(), "forecasts", contractx.Row{
		"userId":   "u1",
		"forecast": map[string]any{"parsed": false},
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if res.ID != "gen-1" {
		t.Fatalf("Insert() id = %q, want gen-1", res.ID)
	}

	call := remote.queries[0]
	want := `INSERT INTO "forecasts" ("forecast", "id", "userId") VALUES (?, ?, ?) RETURNING "id"`
	if call.query != want {
		t.Fatalf("query = %q, want %q", call.query, want)
	}
	if want := []any{`{"parsed":false}`, "gen-1", "u1"}; !reflect.DeepEqual(call.args, want) {
		t.Fatalf("args = %#v, want %#v", call.args, want)
	}
}

func TestInsertUsesReturnedID(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{dialect: DialectPostgres, rows: []contractx.Row{{"id": "db-7"}}}
	store := New(remote)

	res, err := store.Insert(context.Background(), "businesses", contractx.Row{"id": "b1", "userId": "u1"})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if res.ID != "db-7" {
		t.Fatalf("Insert() id = %q, want db-7", res.ID)
	}
}

func TestInsertMySQLUsesExec(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{dialect: DialectMySQL, affected: 1}
	store := New(remote)

	res, err := store.Insert(context.Background(), "businesses", contractx.Row{"id": "b1", "userId": "u1"})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if res.ID != "b1" {
		t.Fatalf("Insert() id = %q, want b1", res.ID)
	}
	if len(remote.execs) != 1 || len(remote.queries) != 0 {
		t.Fatalf("execs = %d, queries = %d, want 1, 0", len(remote.execs), len(remote.queries))
	}
}

func TestLocalSelectPreservesInsertionOrder(t *testing.T) {
	t.Parallel()

	store := New(&fakeRemote{err: errors.New("connection refused")})
	ctx := context.Background()

	for _, row := range []contractx.Row{
		{"id": "1", "userId": "u1", "revenue": 5},
		{"id": "2", "userId": "u2", "revenue": 5},
		{"id": "3", "userId": "u1", "revenue": 7},
		{"id": "4", "userId": "u1", "revenue": 5.0},
	} {
		if _, err := store.Insert(ctx, "financial_data", row); contractx.Failed(err) {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	rows, err := store.Select(ctx, "financial_data", contractx.Row{"userId": "u1", "revenue": 5})
	if !errors.Is(err, contractx.ErrDegraded) {
		t.Fatalf("Select() error = %v, want ErrDegraded", err)
	}
	var ids []string
	for _, r := range rows {
		ids = append(ids, r["id"].(string))
	}
	if want := []string{"1", "4"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}

	all, _ := store.Select(ctx, "financial_data", nil)
	if len(all) != 4 {
		t.Fatalf("Select(nil) rows = %d, want 4", len(all))
	}
}

func TestLocalSelectIsStrictAcrossTypes(t *testing.T) {
	t.Parallel()

	store := New(nil)
	ctx := context.Background()
	_, _ = store.Insert(ctx, "t", contractx.Row{"id": "1", "n": "5"})

	rows, _ := store.Select(ctx, "t", contractx.Row{"n": 5})
	if len(rows) != 0 {
		t.Fatalf("Select() matched string against number: %v", rows)
	}
}

func TestUpdateAndDeleteMirrorLocally(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{dialect: DialectPostgres, affected: 2}
	store := New(remote)
	ctx := context.Background()

	_, _ = store.Insert(ctx, "t", contractx.Row{"id": "1", "stage": "idea"})
	_, _ = store.Insert(ctx, "t", contractx.Row{"id": "2", "stage": "idea"})

	res, err := store.Update(ctx, "t", contractx.Row{"stage": "growth"}, contractx.Row{"id": "1"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if res.RowsAffected != 2 {
		t.Fatalf("Update() rows = %d, want remote count 2", res.RowsAffected)
	}
	if want := `UPDATE "t" SET "stage" = ? WHERE "id" = ?`; remote.execs[0].query != want {
		t.Fatalf("query = %q, want %q", remote.execs[0].query, want)
	}

	remote.err = errors.New("down")
	rows, _ := store.Select(ctx, "t", contractx.Row{"stage": "growth"})
	if len(rows) != 1 || rows[0]["id"] != "1" {
		t.Fatalf("local rows after update = %v", rows)
	}

	res, err = store.Delete(ctx, "t", contractx.Row{"stage": "idea"})
	if contractx.Failed(err) {
		t.Fatalf("Delete() error = %v", err)
	}
	if res.RowsAffected != 1 {
		t.Fatalf("Delete() rows = %d, want local count 1", res.RowsAffected)
	}
	rows, _ = store.Select(ctx, "t", nil)
	if len(rows) != 1 {
		t.Fatalf("rows after delete = %d, want 1", len(rows))
	}
}

func TestUpdateAndDeleteRequireFilter(t *testing.T) {
	t.Parallel()

	store := New(&fakeRemote{})
	ctx := context.Background()

	if _, err := store.Update(ctx, "t", contractx.Row{"a": 1}, nil); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Update() error = %v, want ErrValidation", err)
	}
	if _, err := store.Delete(ctx, "t", contractx.Row{}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Delete() error = %v, want ErrValidation", err)
	}
}

func TestQueryAndExecuteDegrade(t *testing.T) {
	t.Parallel()

	store := New(&fakeRemote{err: errors.New("down")})
	ctx := context.Background()

	rows, err := store.Query(ctx, "SELECT 1")
	if !errors.Is(err, contractx.ErrDegraded) || rows == nil || len(rows) != 0 {
		t.Fatalf("Query() = %v, %v, want empty rows and degraded", rows, err)
	}
	res, err := store.Execute(ctx, "DELETE FROM t")
	if !errors.Is(err, contractx.ErrDegraded) || res.RowsAffected != 0 {
		t.Fatalf("Execute() = %v, %v, want 0 rows and degraded", res, err)
	}
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{dialect: DialectMySQL}
	store := New(remote)

	if err := EnsureSchema(context.Background(), store); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	want := []string{TableBusinesses, TableWeeklyPlans, TableForecasts, TableFinancialData}
	if got := store.Tables(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Tables() = %v, want %v", got, want)
	}
	if len(remote.execs) != 4 {
		t.Fatalf("execs = %d, want 4", len(remote.execs))
	}
}
