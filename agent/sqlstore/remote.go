package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
	"github.com/uptrace/bun"
	"gorm.io/gorm"
)

// BunRemote runs statements against Postgres through bun.
type BunRemote struct {
	db bun.IDB
}

var _ Remote = (*BunRemote)(nil)

func NewBunRemote(db bun.IDB) *BunRemote {
	return &BunRemote{db: db}
}

func (r *BunRemote) Dialect() Dialect {
	return DialectPostgres
}

func (r *BunRemote) Query(ctx context.Context, query string, args ...any) ([]contractx.Row, error) {
	var rows []map[string]interface{}
	if err := r.db.NewRaw(query, args...).Scan(ctx, &rows); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []contractx.Row{}, nil
		}
		return nil, err
	}
	return normalizeRows(rows), nil
}

func (r *BunRemote) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GormRemote runs statements against MySQL through gorm.
type GormRemote struct {
	db *gorm.DB
}

var _ Remote = (*GormRemote)(nil)

func NewGormRemote(db *gorm.DB) *GormRemote {
	return &GormRemote{db: db}
}

func (r *GormRemote) Dialect() Dialect {
	return DialectMySQL
}

func (r *GormRemote) Query(ctx context.Context, query string, args ...any) ([]contractx.Row, error) {
	var rows []map[string]interface{}
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return normalizeRows(rows), nil
}

func (r *GormRemote) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res := r.db.WithContext(ctx).Exec(query, args...)
	return res.RowsAffected, res.Error
}

// normalizeRows turns driver byte slices into strings so rows compare
// the same way as local ones.
func normalizeRows(rows []map[string]interface{}) []contractx.Row {
	out := make([]contractx.Row, 0, len(rows))
	for _, row := range rows {
		r := make(contractx.Row, len(row))
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			r[k] = v
		}
		out = append(out, r)
	}
	return out
}
