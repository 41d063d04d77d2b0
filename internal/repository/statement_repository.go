package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pahal-edu/pahal-api/internal/models"
)

// StatementRepository persists statement export job metadata.
type StatementRepository struct {
	db *sqlx.DB
}

// NewStatementRepository constructs the repository.
func NewStatementRepository(db *sqlx.DB) *StatementRepository {
	return &StatementRepository{db: db}
}

const statementColumns = "id, parent_id, format, status, file_path, error, attempts, requested_by, created_at, updated_at, finished_at"

// Create inserts a new statement job row with generated defaults.
func (r *StatementRepository) Create(ctx context.Context, job *models.StatementJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.StatementStatusQueued
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	const query = `INSERT INTO statement_jobs (id, parent_id, format, status, file_path, error, attempts, requested_by, created_at, updated_at, finished_at)
VALUES (:id, :parent_id, :format, :status, :file_path, :error, :attempts, :requested_by, :created_at, :updated_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create statement job: %w", err)
	}
	return nil
}

// GetByID returns a job row by its identifier.
func (r *StatementRepository) GetByID(ctx context.Context, id string) (*models.StatementJob, error) {
	query := fmt.Sprintf("SELECT %s FROM statement_jobs WHERE id = $1", statementColumns)
	var job models.StatementJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateStatementJobParams defines the mutable fields.
type UpdateStatementJobParams struct {
	Status     *models.StatementStatus
	FilePath   *string
	Error      *string
	Attempts   *int
	FinishedAt *time.Time
}

// Update persists the provided changes for a job row.
func (r *StatementRepository) Update(ctx context.Context, id string, params UpdateStatementJobParams) error {
	set := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)
	argPos := 1

	if params.Status != nil {
		set = append(set, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *params.Status)
		argPos++
	}
	if params.FilePath != nil {
		set = append(set, fmt.Sprintf("file_path = $%d", argPos))
		args = append(args, *params.FilePath)
		argPos++
	}
	if params.Error != nil {
		set = append(set, fmt.Sprintf("error = $%d", argPos))
		args = append(args, *params.Error)
		argPos++
	}
	if params.Attempts != nil {
		set = append(set, fmt.Sprintf("attempts = $%d", argPos))
		args = append(args, *params.Attempts)
		argPos++
	}
	if params.FinishedAt != nil {
		set = append(set, fmt.Sprintf("finished_at = $%d", argPos))
		args = append(args, *params.FinishedAt)
		argPos++
	}

	if len(set) == 0 {
		return nil
	}

	set = append(set, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now().UTC())
	argPos++

	query := fmt.Sprintf("UPDATE statement_jobs SET %s WHERE id = $%d", strings.Join(set, ", "), argPos)
	args = append(args, id)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update statement job: %w", err)
	}
	return nil
}

// ListQueued fetches queued jobs (used for cold start recovery).
func (r *StatementRepository) ListQueued(ctx context.Context, limit int) ([]models.StatementJob, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf("SELECT %s FROM statement_jobs WHERE status = 'queued' ORDER BY created_at ASC LIMIT $1", statementColumns)
	var jobs []models.StatementJob
	if err := r.db.SelectContext(ctx, &jobs, query, limit); err != nil {
		return nil, fmt.Errorf("list queued statement jobs: %w", err)
	}
	return jobs, nil
}

// ListFinishedBefore retrieves completed jobs prior to cutoff for cleanup.
func (r *StatementRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.StatementJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT %s FROM statement_jobs WHERE status = 'done' AND finished_at IS NOT NULL AND finished_at < $1 ORDER BY finished_at ASC LIMIT $2", statementColumns)
	var jobs []models.StatementJob
	if err := r.db.SelectContext(ctx, &jobs, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list finished statement jobs: %w", err)
	}
	return jobs, nil
}
