package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/opsarch/admin-core/internal/gencode/entity"
)

// MetaRepo reads table and column metadata from information_schema.
type MetaRepo struct {
	db *sqlx.DB
}

func NewMetaRepo(db *sqlx.DB) *MetaRepo {
	return &MetaRepo{db: db}
}

const tableListQuery = `
SELECT t.table_name,
       COALESCE(obj_description(format('%I.%I', t.table_schema, t.table_name)::regclass, 'pg_class'), '') AS table_comment
FROM information_schema.tables t
WHERE t.table_schema = 'public' AND t.table_type = 'BASE TABLE'`

// ListTables returns the user tables in the public schema.
func (r *MetaRepo) ListTables(ctx context.Context, q entity.ListQuery) ([]entity.Table, error) {
	query := tableListQuery
	args := []any{}
	if q.TableName != "" {
		query += " AND t.table_name LIKE $1"
		args = append(args, "%"+q.TableName+"%")
	}
	query += fmt.Sprintf(" ORDER BY t.table_name LIMIT %d OFFSET %d", q.Limit, q.Offset)
	tables := []entity.Table{}
	if err := r.db.SelectContext(ctx, &tables, query, args...); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// CountTables returns the number of tables matching the filter.
func (r *MetaRepo) CountTables(ctx context.Context, q entity.ListQuery) (int64, error) {
	query := `SELECT count(*) FROM information_schema.tables t
WHERE t.table_schema = 'public' AND t.table_type = 'BASE TABLE'`
	args := []any{}
	if q.TableName != "" {
		query += " AND t.table_name LIKE $1"
		args = append(args, "%"+q.TableName+"%")
	}
	var n int64
	if err := r.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("count tables: %w", err)
	}
	return n, nil
}

const columnQuery = `
SELECT c.column_name,
       c.data_type,
       (c.is_nullable = 'YES') AS is_nullable,
       COALESCE(c.column_default, '') AS column_default,
       COALESCE(col_description(format('%I.%I', c.table_schema, c.table_name)::regclass, c.ordinal_position), '') AS column_comment,
       EXISTS (
           SELECT 1
           FROM information_schema.table_constraints tc
           JOIN information_schema.key_column_usage kcu
             ON tc.constraint_name = kcu.constraint_name
            AND tc.table_schema = kcu.table_schema
           WHERE tc.table_schema = c.table_schema
             AND tc.table_name = c.table_name
             AND tc.constraint_type = 'PRIMARY KEY'
             AND kcu.column_name = c.column_name
       ) AS is_primary
FROM information_schema.columns c
WHERE c.table_schema = 'public' AND c.table_name = $1
ORDER BY c.ordinal_position`

// GetColumns returns the columns of one table in declaration order.
func (r *MetaRepo) GetColumns(ctx context.Context, table string) ([]entity.Column, error) {
	cols := []entity.Column{}
	if err := r.db.SelectContext(ctx, &cols, columnQuery, table); err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	return cols, nil
}
