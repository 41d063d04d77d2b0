package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/pahal-edu/pahal-api/internal/models"
	"github.com/pahal-edu/pahal-api/internal/repository"
	appErrors "github.com/pahal-edu/pahal-api/pkg/errors"
	"github.com/pahal-edu/pahal-api/pkg/export"
	"github.com/pahal-edu/pahal-api/pkg/jobs"
	"github.com/pahal-edu/pahal-api/pkg/storage"
)

type statementRepository interface {
	Create(ctx context.Context, job *models.StatementJob) error
	GetByID(ctx context.Context, id string) (*models.StatementJob, error)
	Update(ctx context.Context, id string, params repository.UpdateStatementJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.StatementJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.StatementJob, error)
}

// RequestStatementRequest holds payload for queueing an export.
type RequestStatementRequest struct {
	ParentID *string                `json:"parent_id"`
	Format   models.StatementFormat `json:"format"`
}

// StatementResponse decorates a job with its download link once ready.
type StatementResponse struct {
	models.StatementJob
	DownloadURL string     `json:"download_url,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// StatementServiceConfig tunes the export pipeline.
type StatementServiceConfig struct {
	Workers    int
	MaxRetries int
	ResultTTL  time.Duration
}

// StatementService renders fee statements asynchronously. Requests are
// persisted, pushed onto an in-memory queue and picked up by workers;
// finished files are served through HMAC-signed download links and swept
// after the result TTL.
type StatementService struct {
	statements statementRepository
	fees       feeSnapshotReader
	parents    parentReader
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	store      *storage.LocalStorage
	signer     *storage.SignedURLSigner
	metrics    *MetricsService
	config     StatementServiceConfig
	logger     *zap.Logger
	queue      *jobs.Queue
	now        func() time.Time
}

// NewStatementService constructs the statement service and its worker queue.
func NewStatementService(statements statementRepository, fees feeSnapshotReader, parents parentReader, store *storage.LocalStorage, signer *storage.SignedURLSigner, metrics *MetricsService, config StatementServiceConfig, logger *zap.Logger) *StatementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &StatementService{
		statements: statements,
		fees:       fees,
		parents:    parents,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		store:      store,
		signer:     signer,
		metrics:    metrics,
		config:     config,
		logger:     logger,
		now:        time.Now,
	}
	s.queue = jobs.NewQueue("statements", s.process, jobs.QueueConfig{
		Workers:    config.Workers,
		MaxRetries: config.MaxRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the workers and re-enqueues jobs left queued by a
// previous process.
func (s *StatementService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	s.recoverQueued(ctx)
}

// Stop drains the worker pool.
func (s *StatementService) Stop() {
	s.queue.Stop()
}

// Request validates and queues a statement export.
func (s *StatementService) Request(ctx context.Context, req RequestStatementRequest, requestedBy string) (*models.StatementJob, error) {
	if req.Format != models.StatementFormatCSV && req.Format != models.StatementFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if req.ParentID != nil {
		if _, err := s.parents.FindByID(ctx, *req.ParentID); err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "parent not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent")
		}
	}

	job := &models.StatementJob{
		ParentID:    req.ParentID,
		Format:      req.Format,
		Status:      models.StatementStatusQueued,
		RequestedBy: requestedBy,
	}
	if err := s.statements.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create statement job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "statement"}); err != nil {
		s.markFailed(ctx, job.ID, "queue unavailable", 0)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue statement job")
	}
	return job, nil
}

// Get returns the job, attaching a signed download link once the file is
// ready.
func (s *StatementService) Get(ctx context.Context, id string) (*StatementResponse, error) {
	job, err := s.statements.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "statement job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load statement job")
	}

	resp := &StatementResponse{StatementJob: *job}
	if job.Status == models.StatementStatusDone && job.FilePath != "" {
		token, expiresAt, err := s.signer.Generate(job.ID, job.FilePath)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
		}
		resp.DownloadURL = token
		resp.ExpiresAt = &expiresAt
	}
	return resp, nil
}

// Download resolves a signed token to the statement file.
func (s *StatementService) Download(ctx context.Context, token string) (*os.File, string, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download token")
	}
	job, err := s.statements.GetByID(ctx, jobID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "statement job not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load statement job")
	}
	if job.Status != models.StatementStatusDone || job.FilePath != relPath {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "statement is not available")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "statement file has expired")
	}
	return file, filepath.Base(relPath), nil
}

// CleanupExpired removes statement files older than the result TTL.
func (s *StatementService) CleanupExpired(ctx context.Context) {
	cutoff := s.now().UTC().Add(-s.config.ResultTTL)
	done, err := s.statements.ListFinishedBefore(ctx, cutoff, 100)
	if err != nil {
		s.logger.Warn("statement cleanup listing failed", zap.Error(err))
		return
	}
	for _, job := range done {
		if job.FilePath == "" {
			continue
		}
		if err := s.store.Delete(job.FilePath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("statement file delete failed", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		empty := ""
		if err := s.statements.Update(ctx, job.ID, repository.UpdateStatementJobParams{FilePath: &empty}); err != nil {
			s.logger.Warn("statement cleanup update failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	if removed, err := s.store.CleanupOlderThan(s.config.ResultTTL); err == nil && len(removed) > 0 {
		s.logger.Info("swept orphaned statement files", zap.Int("count", len(removed)))
	}
}

func (s *StatementService) recoverQueued(ctx context.Context) {
	queued, err := s.statements.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("statement recovery listing failed", zap.Error(err))
		return
	}
	for _, job := range queued {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "statement"}); err != nil {
			s.logger.Warn("statement recovery enqueue failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	if len(queued) > 0 {
		s.logger.Info("recovered queued statement jobs", zap.Int("count", len(queued)))
	}
}

// process is the queue handler: it renders the statement and stores the
// result. A returned error makes the queue retry up to the limit.
func (s *StatementService) process(ctx context.Context, qjob jobs.Job) error {
	job, err := s.statements.GetByID(ctx, qjob.ID)
	if err != nil {
		return fmt.Errorf("load statement job %s: %w", qjob.ID, err)
	}
	if job.Status == models.StatementStatusDone {
		return nil
	}

	processing := models.StatementStatusProcessing
	attempts := qjob.Attempt + 1
	if err := s.statements.Update(ctx, job.ID, repository.UpdateStatementJobParams{Status: &processing, Attempts: &attempts}); err != nil {
		return fmt.Errorf("mark statement job processing: %w", err)
	}

	data, err := s.render(ctx, job)
	if err != nil {
		s.markFailed(ctx, job.ID, err.Error(), attempts)
		s.recordJob("failed")
		return err
	}

	filename := fmt.Sprintf("statement-%s.%s", job.ID, job.Format)
	if _, err := s.store.Save(filename, data); err != nil {
		s.markFailed(ctx, job.ID, err.Error(), attempts)
		s.recordJob("failed")
		return err
	}

	doneStatus := models.StatementStatusDone
	finishedAt := s.now().UTC()
	empty := ""
	if err := s.statements.Update(ctx, job.ID, repository.UpdateStatementJobParams{
		Status:     &doneStatus,
		FilePath:   &filename,
		Error:      &empty,
		FinishedAt: &finishedAt,
	}); err != nil {
		return fmt.Errorf("mark statement job done: %w", err)
	}
	s.recordJob("done")
	s.logger.Info("statement rendered", zap.String("job_id", job.ID), zap.String("file", filename))
	return nil
}

func (s *StatementService) render(ctx context.Context, job *models.StatementJob) ([]byte, error) {
	fees, err := s.fees.ListAllDetails(ctx)
	if err != nil {
		return nil, fmt.Errorf("load fees: %w", err)
	}
	if job.ParentID != nil {
		scoped := fees[:0]
		for _, fee := range fees {
			if fee.ParentID == *job.ParentID {
				scoped = append(scoped, fee)
			}
		}
		fees = scoped
	}

	dataset := statementDataset(fees)
	switch job.Format {
	case models.StatementFormatCSV:
		return s.csv.Render(dataset)
	case models.StatementFormatPDF:
		title := "Fee Statement - All Parents"
		if job.ParentID != nil {
			if parent, err := s.parents.FindByID(ctx, *job.ParentID); err == nil {
				title = "Fee Statement - " + parent.Name
			}
		}
		return s.pdf.Render(dataset, title)
	default:
		return nil, fmt.Errorf("unsupported format %q", job.Format)
	}
}

func (s *StatementService) markFailed(ctx context.Context, jobID, message string, attempts int) {
	failed := models.StatementStatusFailed
	params := repository.UpdateStatementJobParams{Status: &failed, Error: &message}
	if attempts > 0 {
		params.Attempts = &attempts
	}
	if err := s.statements.Update(ctx, jobID, params); err != nil {
		s.logger.Warn("failed to mark statement job failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (s *StatementService) recordJob(status string) {
	if s.metrics != nil {
		s.metrics.RecordStatementJob(status)
	}
}

// statementDataset lays fees out as a flat export table, oldest due first.
func statementDataset(fees []models.FeeDetail) export.Dataset {
	headers := []string{"Student", "Class", "Due Date", "Amount", "Status", "Payment Date"}
	rows := make([]map[string]string, 0, len(fees))
	for _, fee := range fees {
		paymentDate := ""
		if fee.PaymentDate != nil {
			paymentDate = fee.PaymentDate.Format("2006-01-02")
		}
		rows = append(rows, map[string]string{
			"Student":      fee.StudentName,
			"Class":        fee.StudentClass,
			"Due Date":     fee.DueDate.Format("2006-01-02"),
			"Amount":       fmt.Sprintf("%d", fee.Amount),
			"Status":       string(fee.Status),
			"Payment Date": paymentDate,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
