package data

import (
	"context"
	"database/sql"

	"github.com/dispatchlab/dispatch/internal/migrate"
)

// RunMigrations applies all embedded SQL migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrate.Run(ctx, db)
}
