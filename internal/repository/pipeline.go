package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/buildpulse/buildpulse-go/internal/model"
)

// PipelineRepository handles pipeline persistence on MySQL. It stores
// whatever it is given; see EncryptedPipelineStore for secrets at rest.
type PipelineRepository struct {
	db *sql.DB
}

// NewPipelineRepository creates a new PipelineRepository.
func NewPipelineRepository(db *sql.DB) *PipelineRepository {
	return &PipelineRepository{db: db}
}

const pipelineUpsertQuery = `
	INSERT INTO pipelines (id, project_id, name, type, url, username, credential)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		project_id = VALUES(project_id),
		name       = VALUES(name),
		type       = VALUES(type),
		url        = VALUES(url),
		username   = VALUES(username),
		credential = VALUES(credential)`

const pipelineColumns = `id, project_id, name, type, url, username, credential, created_at, updated_at`

// Save inserts or replaces a pipeline by ID.
func (r *PipelineRepository) Save(ctx context.Context, p *model.Pipeline) error {
	_, err := r.db.ExecContext(ctx, pipelineUpsertQuery,
		p.ID, p.ProjectID, p.Name, string(p.Type), p.URL, p.Username, p.Credential,
	)
	return err
}

// SaveAll inserts or replaces pipelines in a single transaction.
func (r *PipelineRepository) SaveAll(ctx context.Context, pipelines []*model.Pipeline) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, p := range pipelines {
		if _, err := tx.ExecContext(ctx, pipelineUpsertQuery,
			p.ID, p.ProjectID, p.Name, string(p.Type), p.URL, p.Username, p.Credential,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// FindByID retrieves a pipeline by ID.
func (r *PipelineRepository) FindByID(ctx context.Context, id string) (*model.Pipeline, error) {
	query := `SELECT ` + pipelineColumns + ` FROM pipelines WHERE id = ?`

	p, err := scanPipeline(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPipelineNotFound
		}
		return nil, err
	}

	return p, nil
}

// FindByProjectID retrieves all pipelines owned by a project.
func (r *PipelineRepository) FindByProjectID(ctx context.Context, projectID string) ([]model.Pipeline, error) {
	query := `SELECT ` + pipelineColumns + ` FROM pipelines WHERE project_id = ? ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pipelines []model.Pipeline
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, *p)
	}

	return pipelines, rows.Err()
}

// Delete removes a pipeline by ID.
func (r *PipelineRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM pipelines WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrPipelineNotFound
	}

	return nil
}

func scanPipeline(row rowScanner) (*model.Pipeline, error) {
	var (
		p   model.Pipeline
		typ string
	)
	if err := row.Scan(
		&p.ID, &p.ProjectID, &p.Name, &typ, &p.URL,
		&p.Username, &p.Credential, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Type = model.PipelineType(typ)
	return &p, nil
}
