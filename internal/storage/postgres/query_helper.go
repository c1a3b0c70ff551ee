package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ScanFunc[T any] func(rows pgx.Rows) (*T, error)

// QueryMany runs query and scans every row with scanFunc.
func QueryMany[T any](pool *pgxpool.Pool, ctx context.Context, query string, scanFunc ScanFunc[T], args ...any) ([]*T, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*T
	for rows.Next() {
		item, err := scanFunc(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}

	return results, rows.Err()
}

// QueryOne runs query and scans its single row. A missing row surfaces as
// pgx.ErrNoRows.
func QueryOne[T any](pool *pgxpool.Pool, ctx context.Context, query string, scanFunc func(row pgx.Row) (*T, error), args ...any) (*T, error) {
	return scanFunc(pool.QueryRow(ctx, query, args...))
}
