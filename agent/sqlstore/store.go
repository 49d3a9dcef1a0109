package sqlstore

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
	"github.com/tanpawarit/microfounder-os/agent/fallback"
)

var errNoRemote = fmt.Errorf("%w: sql remote is not configured", contractx.ErrRemoteUnavailable)

// Remote executes parameterized statements. Placeholders are `?`.
type Remote interface {
	Query(ctx context.Context, query string, args ...any) ([]contractx.Row, error)
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Dialect() Dialect
}

type Option func(*Store)

func WithFallback(local fallback.Store[[]contractx.Row]) Option {
	return func(s *Store) {
		if local != nil {
			s.local = local
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// Store is the relational adapter. Every mutation is mirrored into the
// local container, which serves reads while the remote is failing.
type Store struct {
	remote  Remote
	dialect Dialect
	local   fallback.Store[[]contractx.Row]
	newID   func() string

	// guards read-modify-write of local tables
	mu sync.Mutex
}

var _ contractx.SQL = (*Store)(nil)

func New(remote Remote, opts ...Option) *Store {
	s := &Store{
		remote: remote,
		local:  fallback.NewMap[[]contractx.Row](),
		newID:  uuid.NewString,
	}
	if remote != nil {
		s.dialect = remote.Dialect()
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Store) Query(ctx context.Context, query string, args ...any) ([]contractx.Row, error) {
	if s.remote == nil {
		return []contractx.Row{}, contractx.Degraded("sql.query", errNoRemote)
	}
	rows, err := s.remote.Query(ctx, query, args...)
	if err != nil {
		log.Warn().Err(err).Str("op", "sql.query").Msg("remote query failed")
		return []contractx.Row{}, contractx.Degraded("sql.query", err)
	}
	if rows == nil {
		rows = []contractx.Row{}
	}
	return rows, nil
}

func (s *Store) Execute(ctx context.Context, query string, args ...any) (contractx.ExecResult, error) {
	if s.remote == nil {
		return contractx.ExecResult{}, contractx.Degraded("sql.execute", errNoRemote)
	}
	n, err := s.remote.Exec(ctx, query, args...)
	if err != nil {
		log.Warn().Err(err).Str("op", "sql.execute").Msg("remote execute failed")
		return contractx.ExecResult{}, contractx.Degraded("sql.execute", err)
	}
	return contractx.ExecResult{RowsAffected: n}, nil
}

// CreateTable is create-if-absent on both the remote and the local
// container.
func (s *Store) CreateTable(ctx context.Context, table string, columns []contractx.Column) error {
	query, err := buildCreateTable(s.dialect, table, columns)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if _, ok := s.local.Get(table); !ok {
		s.local.Set(table, []contractx.Row{})
	}
	s.mu.Unlock()

	_, err = s.Execute(ctx, query)
	return err
}

// Insert adds row to table and returns its id. A row without an id gets a
// fresh one.
func (s *Store) Insert(ctx context.Context, table string, row contractx.Row) (contractx.InsertResult, error) {
	bound, err := bindableRow(row)
	if err != nil {
		return contractx.InsertResult{}, err
	}
	if v, ok := bound["id"]; !ok || v == nil || strings.TrimSpace(fmt.Sprint(v)) == "" {
		bound["id"] = s.newID()
	}
	id := fmt.Sprint(bound["id"])

	query, args, err := buildInsert(s.dialect, table, bound)
	if err != nil {
		return contractx.InsertResult{}, err
	}

	var remoteErr error
	if s.remote == nil {
		remoteErr = contractx.Degraded("sql.insert", errNoRemote)
	} else if s.dialect == DialectPostgres {
		rows, err := s.remote.Query(ctx, query, args...)
		if err != nil {
			remoteErr = contractx.Degraded("sql.insert", err)
		} else if len(rows) > 0 {
			if rid := fmt.Sprint(rows[0]["id"]); rows[0]["id"] != nil && rid != "" {
				id = rid
				bound["id"] = rid
			}
		}
	} else if _, err := s.remote.Exec(ctx, query, args...); err != nil {
		remoteErr = contractx.Degraded("sql.insert", err)
	}
	if remoteErr != nil && s.remote != nil {
		log.Warn().Err(remoteErr).Str("op", "sql.insert").Str("table", table).Msg("remote insert failed, writing local fallback")
	}

	s.mu.Lock()
	rows, _ := s.local.Get(table)
	next := make([]contractx.Row, len(rows), len(rows)+1)
	copy(next, rows)
	s.local.Set(table, append(next, bound))
	s.mu.Unlock()

	return contractx.InsertResult{ID: id}, remoteErr
}

// Select returns rows whose columns equal every value in where. An empty
// filter returns the whole table.
func (s *Store) Select(ctx context.Context, table string, where contractx.Row) ([]contractx.Row, error) {
	bound, err := bindableRow(where)
	if err != nil {
		return nil, err
	}
	query, args, err := buildSelect(s.dialect, table, bound)
	if err != nil {
		return nil, err
	}

	if s.remote == nil {
		return s.selectLocal(table, bound), contractx.Degraded("sql.select", errNoRemote)
	}
	rows, err := s.remote.Query(ctx, query, args...)
	if err != nil {
		log.Warn().Err(err).Str("op", "sql.select").Str("table", table).Msg("remote select failed, using local fallback")
		return s.selectLocal(table, bound), contractx.Degraded("sql.select", err)
	}
	if rows == nil {
		rows = []contractx.Row{}
	}
	return rows, nil
}

func (s *Store) Update(ctx context.Context, table string, set, where contractx.Row) (contractx.ExecResult, error) {
	boundSet, err := bindableRow(set)
	if err != nil {
		return contractx.ExecResult{}, err
	}
	boundWhere, err := bindableRow(where)
	if err != nil {
		return contractx.ExecResult{}, err
	}
	query, args, err := buildUpdate(s.dialect, table, boundSet, boundWhere)
	if err != nil {
		return contractx.ExecResult{}, err
	}

	localAffected := s.mutateLocal(table, boundWhere, func(row contractx.Row) contractx.Row {
		updated := make(contractx.Row, len(row)+len(boundSet))
		for k, v := range row {
			updated[k] = v
		}
		for k, v := range boundSet {
			updated[k] = v
		}
		return updated
	})
	return s.execMutation(ctx, "sql.update", table, query, args, localAffected)
}

func (s *Store) Delete(ctx context.Context, table string, where contractx.Row) (contractx.ExecResult, error) {
	boundWhere, err := bindableRow(where)
	if err != nil {
		return contractx.ExecResult{}, err
	}
	query, args, err := buildDelete(s.dialect, table, boundWhere)
	if err != nil {
		return contractx.ExecResult{}, err
	}

	localAffected := s.mutateLocal(table, boundWhere, func(contractx.Row) contractx.Row { return nil })
	return s.execMutation(ctx, "sql.delete", table, query, args, localAffected)
}

// Tables lists the tables known to the local container.
func (s *Store) Tables() []string {
	return s.local.Keys()
}

func (s *Store) execMutation(ctx context.Context, op, table, query string, args []any, localAffected int64) (contractx.ExecResult, error) {
	if s.remote == nil {
		return contractx.ExecResult{RowsAffected: localAffected}, contractx.Degraded(op, errNoRemote)
	}
	n, err := s.remote.Exec(ctx, query, args...)
	if err != nil {
		log.Warn().Err(err).Str("op", op).Str("table", table).Msg("remote mutation failed, applied to local fallback")
		return contractx.ExecResult{RowsAffected: localAffected}, contractx.Degraded(op, err)
	}
	return contractx.ExecResult{RowsAffected: n}, nil
}

// mutateLocal replaces every matching row with apply(row); a nil result
// drops the row. Returns the number of matching rows.
func (s *Store) mutateLocal(table string, where contractx.Row, apply func(contractx.Row) contractx.Row) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.local.Get(table)
	if !ok {
		return 0
	}
	var affected int64
	next := make([]contractx.Row, 0, len(rows))
	for _, row := range rows {
		if !matches(row, where) {
			next = append(next, row)
			continue
		}
		affected++
		if updated := apply(row); updated != nil {
			next = append(next, updated)
		}
	}
	s.local.Set(table, next)
	return affected
}

func (s *Store) selectLocal(table string, where contractx.Row) []contractx.Row {
	rows, _ := s.local.Get(table)
	out := []contractx.Row{}
	for _, row := range rows {
		if matches(row, where) {
			out = append(out, cloneRow(row))
		}
	}
	return out
}

func matches(row, where contractx.Row) bool {
	for k, want := range where {
		got, ok := row[k]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares numbers by value and everything else strictly.
func valuesEqual(a, b any) bool {
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok && bok {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f, !math.IsNaN(f)
	default:
		return 0, false
	}
}

func cloneRow(row contractx.Row) contractx.Row {
	out := make(contractx.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
