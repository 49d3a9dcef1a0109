package sqlstore

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
)

type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectMySQL
)

func (d Dialect) String() string {
	switch d {
	case DialectMySQL:
		return "mysql"
	default:
		return "postgres"
	}
}

var (
	identPattern      = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	columnTypePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_ (),]*$`)
)

func (d Dialect) quote(ident string) (string, error) {
	if !identPattern.MatchString(ident) {
		return "", fmt.Errorf("%w: invalid identifier %q", contractx.ErrValidation, ident)
	}
	if d == DialectMySQL {
		return "`" + ident + "`", nil
	}
	return `"` + ident + `"`, nil
}

func sortedColumns(row contractx.Row) []string {
	cols := make([]string, 0, len(row))
	for k := range row {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func buildCreateTable(d Dialect, table string, columns []contractx.Column) (string, error) {
	if len(columns) == 0 {
		return "", fmt.Errorf("%w: table %q has no columns", contractx.ErrValidation, table)
	}
	qt, err := d.quote(table)
	if err != nil {
		return "", err
	}
	defs := make([]string, 0, len(columns))
	for _, col := range columns {
		qc, err := d.quote(col.Name)
		if err != nil {
			return "", err
		}
		typ := strings.TrimSpace(col.Type)
		if !columnTypePattern.MatchString(typ) {
			return "", fmt.Errorf("%w: invalid column type %q", contractx.ErrValidation, col.Type)
		}
		defs = append(defs, qc+" "+typ)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", qt, strings.Join(defs, ", ")), nil
}

func buildInsert(d Dialect, table string, row contractx.Row) (string, []any, error) {
	qt, err := d.quote(table)
	if err != nil {
		return "", nil, err
	}
	cols := sortedColumns(row)
	names := make([]string, 0, len(cols))
	marks := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for _, c := range cols {
		qc, err := d.quote(c)
		if err != nil {
			return "", nil, err
		}
		names = append(names, qc)
		marks = append(marks, "?")
		args = append(args, row[c])
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", qt, strings.Join(names, ", "), strings.Join(marks, ", "))
	if d == DialectPostgres {
		query += ` RETURNING "id"`
	}
	return query, args, nil
}

// whereClause renders an equality conjunction. Columns are sorted so the
// same filter always yields the same statement.
func whereClause(d Dialect, where contractx.Row) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}
	cols := sortedColumns(where)
	conds := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for _, c := range cols {
		qc, err := d.quote(c)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, qc+" = ?")
		args = append(args, where[c])
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func buildSelect(d Dialect, table string, where contractx.Row) (string, []any, error) {
	qt, err := d.quote(table)
	if err != nil {
		return "", nil, err
	}
	clause, args, err := whereClause(d, where)
	if err != nil {
		return "", nil, err
	}
	return "SELECT * FROM " + qt + clause, args, nil
}

func buildUpdate(d Dialect, table string, set, where contractx.Row) (string, []any, error) {
	if len(set) == 0 {
		return "", nil, fmt.Errorf("%w: update on %q sets no columns", contractx.ErrValidation, table)
	}
	if len(where) == 0 {
		return "", nil, fmt.Errorf("%w: update on %q has no filter", contractx.ErrValidation, table)
	}
	qt, err := d.quote(table)
	if err != nil {
		return "", nil, err
	}
	cols := sortedColumns(set)
	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+len(where))
	for _, c := range cols {
		qc, err := d.quote(c)
		if err != nil {
			return "", nil, err
		}
		sets = append(sets, qc+" = ?")
		args = append(args, set[c])
	}
	clause, whereArgs, err := whereClause(d, where)
	if err != nil {
		return "", nil, err
	}
	return "UPDATE " + qt + " SET " + strings.Join(sets, ", ") + clause, append(args, whereArgs...), nil
}

func buildDelete(d Dialect, table string, where contractx.Row) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, fmt.Errorf("%w: delete on %q has no filter", contractx.ErrValidation, table)
	}
	qt, err := d.quote(table)
	if err != nil {
		return "", nil, err
	}
	clause, args, err := whereClause(d, where)
	if err != nil {
		return "", nil, err
	}
	return "DELETE FROM " + qt + clause, args, nil
}

// bindableRow converts nested values to JSON text so every value can be
// bound as a driver parameter and stored the same way locally.
func bindableRow(row contractx.Row) (contractx.Row, error) {
	out := make(contractx.Row, len(row))
	for k, v := range row {
		bv, err := bindable(v)
		if err != nil {
			return nil, fmt.Errorf("%w: column %q: %v", contractx.ErrValidation, k, err)
		}
		out[k] = bv
	}
	return out, nil
}

func bindable(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, time.Time:
		return t, nil
	case []byte:
		return string(t), nil
	case json.RawMessage:
		return string(t), nil
	case json.Number:
		return t.String(), nil
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	}
}
