package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/buildpulse/buildpulse-go/internal/model"
)

// ProjectRepository handles project persistence on MySQL.
type ProjectRepository struct {
	db *sql.DB
}

// NewProjectRepository creates a new ProjectRepository.
func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create inserts a new project. The ID must already be set.
func (r *ProjectRepository) Create(ctx context.Context, project *model.Project) error {
	query := `INSERT INTO projects (id, name, last_sync_timestamp) VALUES (?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, project.ID, project.Name, nullInt64(project.LastSyncTimestamp))
	return err
}

// FindByID retrieves a project by ID.
func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*model.Project, error) {
	query := `SELECT id, name, last_sync_timestamp, created_at, updated_at FROM projects WHERE id = ?`

	project, err := scanProject(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}

	return project, nil
}

// List retrieves all projects ordered by name.
func (r *ProjectRepository) List(ctx context.Context) ([]model.Project, error) {
	query := `SELECT id, name, last_sync_timestamp, created_at, updated_at FROM projects ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}

	return projects, rows.Err()
}

// UpdateLastSyncTimestamp moves the watermark forward to ts. A smaller ts
// leaves the stored value in place.
func (r *ProjectRepository) UpdateLastSyncTimestamp(ctx context.Context, id string, ts int64) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	query := `UPDATE projects
		SET last_sync_timestamp = GREATEST(COALESCE(last_sync_timestamp, 0), ?)
		WHERE id = ?`
	if _, err := tx.ExecContext(ctx, query, ts, id); err != nil {
		return 0, err
	}

	var stored sql.NullInt64
	err = tx.QueryRowContext(ctx, `SELECT last_sync_timestamp FROM projects WHERE id = ?`, id).Scan(&stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrProjectNotFound
		}
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return stored.Int64, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*model.Project, error) {
	var (
		p        model.Project
		lastSync sql.NullInt64
	)
	if err := row.Scan(&p.ID, &p.Name, &lastSync, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if lastSync.Valid {
		ts := lastSync.Int64
		p.LastSyncTimestamp = &ts
	}
	return &p, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
