package repository

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id                  VARCHAR(36)  NOT NULL PRIMARY KEY,
		name                VARCHAR(255) NOT NULL,
		last_sync_timestamp BIGINT       NULL,
		created_at          TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at          TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS pipelines (
		id         VARCHAR(36)  NOT NULL PRIMARY KEY,
		project_id VARCHAR(36)  NOT NULL,
		name       VARCHAR(255) NOT NULL,
		type       VARCHAR(16)  NOT NULL,
		url        TEXT         NOT NULL,
		username   TEXT         NOT NULL,
		credential TEXT         NOT NULL,
		created_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_pipelines_project_id (project_id)
	)`,
	`CREATE TABLE IF NOT EXISTS builds (
		id          BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
		pipeline_id VARCHAR(36)  NOT NULL,
		build_id    VARCHAR(255) NOT NULL,
		number      INT          NOT NULL,
		result      VARCHAR(16)  NOT NULL,
		duration    BIGINT       NOT NULL,
		timestamp   BIGINT       NOT NULL,
		url         TEXT         NOT NULL,
		stages      JSON         NOT NULL,
		commits     JSON         NOT NULL,
		UNIQUE KEY uq_builds_pipeline_build (pipeline_id, build_id),
		INDEX idx_builds_pipeline_timestamp (pipeline_id, timestamp)
	)`,
}

// Migrate creates the tables used by the MySQL stores if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema statement %d: %w", i, err)
		}
	}
	return nil
}
