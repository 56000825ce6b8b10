package storage

import (
	"context"

	"github.com/Rodovar-GPS/GPS/internal/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RunMigrations applies pending SQL migrations and verifies that every
// document table exists. Only the cloud backend needs it.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if err := migrations.Run(ctx, pool); err != nil {
		return err
	}
	return migrations.CheckSchema(ctx, pool)
}
