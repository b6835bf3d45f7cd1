package db

import "embed"

// MigrationFS holds the schema for users, access_codes and audit_logs, applied by internal/db/migrate
// at server start and by cmd/migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
