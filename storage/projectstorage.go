package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pm/core"
)

// ProjectStorage persists projects and their delivery records in the local
// registry.
type ProjectStorage struct {
	db *SQLite
}

// NewProjectStorage creates a ProjectStorage on top of an open registry.
func NewProjectStorage(db *SQLite) *ProjectStorage {
	return &ProjectStorage{db: db}
}

// CreateProject validates and inserts a new project. The project is assigned
// a fresh ID and an open status unless one was set by the caller.
func (ps *ProjectStorage) CreateProject(ctx context.Context, p *core.Project) error {
	if p.Status == "" {
		p.Status = core.ProjectStatusOpen
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	db, err := ps.db.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO projects (id, name, pi, description, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.PI, p.Description, string(p.Status), p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("project %s: %w", p.Name, ErrProjectExists)
		}
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetProject fetches a project by name.
func (ps *ProjectStorage) GetProject(ctx context.Context, name string) (*core.Project, error) {
	db, err := ps.db.conn()
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx,
		`SELECT id, name, pi, description, status, created_at, closed_at FROM projects WHERE name = ?`, name)
	return scanProject(row)
}

// ListProjects returns projects, optionally filtered by status. An empty
// status lists everything, ordered by creation time.
func (ps *ProjectStorage) ListProjects(ctx context.Context, status core.ProjectStatus) ([]*core.Project, error) {
	query := `SELECT id, name, pi, description, status, created_at, closed_at FROM projects`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at, name`

	db, err := ps.db.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*core.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateStatus transitions a project to the given status. Closing or aborting
// a project stamps its closed_at time.
func (ps *ProjectStorage) UpdateStatus(ctx context.Context, name string, status core.ProjectStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid project status %q", status)
	}

	var closedAt any
	if status == core.ProjectStatusClosed || status == core.ProjectStatusAborted {
		closedAt = time.Now().UTC()
	}

	db, err := ps.db.conn()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx,
		`UPDATE projects SET status = ?, closed_at = ? WHERE name = ?`,
		string(status), closedAt, name)
	if err != nil {
		return fmt.Errorf("failed to update project status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("project %s: %w", name, ErrProjectNotFound)
	}
	return nil
}

// DeleteProject removes a project and, through the foreign key cascade, its
// delivery records.
func (ps *ProjectStorage) DeleteProject(ctx context.Context, name string) error {
	db, err := ps.db.conn()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM projects WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("project %s: %w", name, ErrProjectNotFound)
	}
	return nil
}

// DeliveryRecord is one completed delivery for a project.
type DeliveryRecord struct {
	ID          string    `json:"id" yaml:"id"`
	ProjectID   string    `json:"project_id" yaml:"project_id"`
	Destination string    `json:"destination" yaml:"destination"`
	FileCount   int       `json:"file_count" yaml:"file_count"`
	DeliveredAt time.Time `json:"delivered_at" yaml:"delivered_at"`
}

// RecordDelivery stores a completed delivery against a project.
func (ps *ProjectStorage) RecordDelivery(ctx context.Context, projectName string, rec *DeliveryRecord) error {
	p, err := ps.GetProject(ctx, projectName)
	if err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.DeliveredAt.IsZero() {
		rec.DeliveredAt = time.Now().UTC()
	}
	rec.ProjectID = p.ID

	db, err := ps.db.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO deliveries (id, project_id, destination, file_count, delivered_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.ProjectID, rec.Destination, rec.FileCount, rec.DeliveredAt)
	if err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}
	return nil
}

// ListDeliveries returns the delivery records of a project, newest first.
func (ps *ProjectStorage) ListDeliveries(ctx context.Context, projectName string) ([]*DeliveryRecord, error) {
	p, err := ps.GetProject(ctx, projectName)
	if err != nil {
		return nil, err
	}

	db, err := ps.db.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT id, project_id, destination, file_count, delivered_at FROM deliveries
		 WHERE project_id = ? ORDER BY delivered_at DESC`, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()

	var recs []*DeliveryRecord
	for rows.Next() {
		var r DeliveryRecord
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Destination, &r.FileCount, &r.DeliveredAt); err != nil {
			return nil, err
		}
		recs = append(recs, &r)
	}
	return recs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*core.Project, error) {
	var p core.Project
	var status string
	var closedAt sql.NullTime
	err := row.Scan(&p.ID, &p.Name, &p.PI, &p.Description, &status, &p.CreatedAt, &closedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	p.Status = core.ProjectStatus(status)
	if closedAt.Valid {
		t := closedAt.Time
		p.ClosedAt = &t
	}
	return &p, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
