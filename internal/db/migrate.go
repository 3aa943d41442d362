// Package db bootstraps the database schema. The schema is embedded so a
// fresh database comes up without external migration tooling.
package db

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/001_create_urls.sql
var createURLsSQL string

// Migrate applies the schema. It is idempotent and safe to run at every
// startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, createURLsSQL); err != nil {
		return fmt.Errorf("failed to apply urls schema: %w", err)
	}
	return nil
}
