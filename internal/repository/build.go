package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/buildpulse/buildpulse-go/internal/model"
)

// BuildRepository handles build persistence on MySQL.
type BuildRepository struct {
	db *sql.DB
}

// NewBuildRepository creates a new BuildRepository.
func NewBuildRepository(db *sql.DB) *BuildRepository {
	return &BuildRepository{db: db}
}

// buildUpsertQuery relies on UNIQUE(pipeline_id, build_id): a re-fetched build
// overwrites the stored row in place.
const buildUpsertQuery = `
	INSERT INTO builds (pipeline_id, build_id, number, result, duration, timestamp, url, stages, commits)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		number    = VALUES(number),
		result    = VALUES(result),
		duration  = VALUES(duration),
		timestamp = VALUES(timestamp),
		url       = VALUES(url),
		stages    = VALUES(stages),
		commits   = VALUES(commits)`

// UpsertAll inserts or overwrites every build of a pipeline in one transaction.
func (r *BuildRepository) UpsertAll(ctx context.Context, pipelineID string, builds []model.Build) error {
	if len(builds) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, buildUpsertQuery)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range builds {
		stages, commits, err := marshalBuildParts(b)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			pipelineID, b.ID, b.Number, string(b.Result), b.Duration, b.Timestamp, b.URL, stages, commits,
		); err != nil {
			return fmt.Errorf("upserting build %s: %w", b.ID, err)
		}
	}

	return tx.Commit()
}

// FindByPipelineID retrieves all builds of a pipeline ordered by timestamp.
func (r *BuildRepository) FindByPipelineID(ctx context.Context, pipelineID string) ([]model.Build, error) {
	query := `SELECT pipeline_id, build_id, number, result, duration, timestamp, url, stages, commits
		FROM builds WHERE pipeline_id = ? ORDER BY timestamp ASC`

	rows, err := r.db.QueryContext(ctx, query, pipelineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var builds []model.Build
	for rows.Next() {
		var (
			b               model.Build
			result          string
			stages, commits []byte
		)
		if err := rows.Scan(
			&b.PipelineID, &b.ID, &b.Number, &result, &b.Duration,
			&b.Timestamp, &b.URL, &stages, &commits,
		); err != nil {
			return nil, err
		}
		b.Result = model.BuildStatus(result)
		if err := json.Unmarshal(stages, &b.Stages); err != nil {
			return nil, fmt.Errorf("decoding stages of build %s: %w", b.ID, err)
		}
		if err := json.Unmarshal(commits, &b.Commits); err != nil {
			return nil, fmt.Errorf("decoding commits of build %s: %w", b.ID, err)
		}
		builds = append(builds, b)
	}

	return builds, rows.Err()
}

// DeleteByPipelineID removes every build of a pipeline.
func (r *BuildRepository) DeleteByPipelineID(ctx context.Context, pipelineID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM builds WHERE pipeline_id = ?`, pipelineID)
	return err
}

func marshalBuildParts(b model.Build) ([]byte, []byte, error) {
	stages := b.Stages
	if stages == nil {
		stages = []model.Stage{}
	}
	commits := b.Commits
	if commits == nil {
		commits = []model.Commit{}
	}

	s, err := json.Marshal(stages)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding stages of build %s: %w", b.ID, err)
	}
	c, err := json.Marshal(commits)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding commits of build %s: %w", b.ID, err)
	}
	return s, c, nil
}
