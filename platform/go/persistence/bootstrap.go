package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/caretrack-hq/caretrack/database"
)

// ApplyCoreSchema creates the shared tables and indexes when they do not exist
// yet. Stores assume this ran once at startup (or in migrations).
func ApplyCoreSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range sqlassets.CoreSchemaStatements() {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply core schema: %w", err)
		}
	}
	return nil
}
