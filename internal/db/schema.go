package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// statements holds the DDL for the asset pipeline tables. Applied at
// startup; every statement is idempotent.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS assets (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	prompt TEXT,
	asset_type TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	image_path TEXT,
	gif_path TEXT,
	obj_path TEXT,
	fbx_path TEXT,
	texture_path TEXT,
	parent_id TEXT REFERENCES assets(id) ON DELETE SET NULL,
	source_image_url TEXT,
	external_task_id TEXT,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`,
	`CREATE INDEX IF NOT EXISTS idx_assets_parent ON assets (parent_id);`,
	`CREATE INDEX IF NOT EXISTS idx_assets_type_status ON assets (asset_type, status);`,
	`CREATE TABLE IF NOT EXISTS external_tasks (
	task_id TEXT PRIMARY KEY,
	asset_id TEXT NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
	status TEXT NOT NULL DEFAULT 'pending',
	progress INT NOT NULL DEFAULT 0,
	result_ref TEXT,
	error_detail TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`,
	`CREATE INDEX IF NOT EXISTS idx_external_tasks_asset ON external_tasks (asset_id);`,
}

// EnsureSchema creates the tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("db: apply schema: %w", err)
		}
	}
	return nil
}
