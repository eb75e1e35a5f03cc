package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"school-journal/internal/config"
	"school-journal/internal/importer"
	"school-journal/internal/logger"
	"school-journal/internal/model"
	"school-journal/internal/queue"
	"school-journal/internal/storage"
	"school-journal/pkg/errors"

	"github.com/rs/zerolog"
)

// GradeWriter is the part of the gateway an import needs.
type GradeWriter interface {
	UpsertGrade(ctx context.Context, grade model.Grade) (model.Grade, error)
}

// DeadLetterer parks messages whose job failed after being accepted.
type DeadLetterer interface {
	DeadLetter(ctx context.Context, data []byte) error
}

// ImportWorker loads uploaded grade sheets into the remote store.
type ImportWorker struct {
	grades     GradeWriter
	storage    storage.Storage
	strategy   importer.Strategy
	consumer   *queue.Consumer
	dlq        DeadLetterer
	workerPool *WorkerPool
	log        zerolog.Logger
}

func NewImportWorker(
	cfg *config.Config,
	grades GradeWriter,
	storage storage.Storage,
	redisClient *queue.RedisClient,
) *ImportWorker {
	consumer := queue.NewConsumer(redisClient, cfg)
	w := newImportWorker(grades, storage, cfg.Workers.Import.Count)
	w.consumer = consumer
	w.dlq = consumer
	return w
}

func newImportWorker(grades GradeWriter, storage storage.Storage, workers int) *ImportWorker {
	return &ImportWorker{
		grades:     grades,
		storage:    storage,
		strategy:   importer.NewSheetStrategy(),
		workerPool: NewWorkerPool(workers),
		log:        logger.Component("import_worker"),
	}
}

func (w *ImportWorker) Start(ctx context.Context) error {
	w.log.Info().Msg("Starting import worker")

	if backlog, err := w.consumer.ImportBacklog(ctx); err != nil {
		w.log.Warn().Err(err).Msg("Failed to read import backlog")
	} else {
		w.log.Info().Int64("pending", backlog.Pending).Int64("dead", backlog.Dead).Msg("Import backlog")
	}

	w.workerPool.Start(ctx)

	return w.consumer.ConsumeImportQueue(ctx, w.handleMessage)
}

func (w *ImportWorker) Stop() {
	w.log.Info().Msg("Stopping import worker")
	w.workerPool.Stop()
}

func (w *ImportWorker) handleMessage(ctx context.Context, data []byte) error {
	var job model.ImportJob
	if err := json.Unmarshal(data, &job); err != nil {
		w.log.Error().Err(err).Msg("Failed to unmarshal import job")
		return err
	}
	if job.S3Path == "" || job.PeriodID == "" {
		return errors.ValidationError{Field: "job", Value: job.ID, Message: "s3_path and period_id are required"}
	}

	w.log.Info().Str("job_id", job.ID).Str("s3_path", job.S3Path).Msg("Processing import job")

	accepted := w.workerPool.Submit(func(ctx context.Context) error {
		if _, err := w.Process(ctx, job); err != nil {
			w.deadLetter(ctx, job.ID, data)
			return err
		}
		return nil
	})
	if !accepted {
		return fmt.Errorf("import job %s dropped, worker pool is full", job.ID)
	}
	return nil
}

func (w *ImportWorker) deadLetter(ctx context.Context, jobID string, data []byte) {
	if w.dlq == nil {
		return
	}
	if err := w.dlq.DeadLetter(ctx, data); err != nil {
		w.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to move import job to DLQ")
	}
}

// Process downloads, parses and validates the sheet of job, then writes
// every row as a grade of job.PeriodID. A sheet that fails validation
// writes nothing. Rows that fail to save are counted and reported; the
// returned error is non-nil when any row failed.
func (w *ImportWorker) Process(ctx context.Context, job model.ImportJob) (model.ImportResult, error) {
	log := w.log.With().Str("job_id", job.ID).Str("period_id", job.PeriodID).Logger()
	result := model.ImportResult{JobID: job.ID}

	log.Debug().Msg("Downloading grade sheet")
	reader, err := w.storage.Download(ctx, job.S3Path)
	if err != nil {
		log.Error().Err(err).Msg("Failed to download grade sheet")
		return result, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read grade sheet")
		return result, err
	}

	rows, err := importer.Rows(ctx, w.strategy, data)
	if err != nil {
		log.Error().Err(err).Msg("Grade sheet rejected")
		return result, err
	}
	result.Total = len(rows)

	for _, row := range rows {
		_, err := w.grades.UpsertGrade(ctx, model.Grade{
			StudentID: row.StudentID,
			LessonID:  row.LessonID,
			PeriodID:  job.PeriodID,
			Score:     row.Score,
		})
		if err != nil {
			log.Warn().Err(err).Int("row", row.Row).Str("student_id", row.StudentID).Str("lesson_id", row.LessonID).Msg("Failed to save imported grade")
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", row.Row, err))
			continue
		}
		result.Imported++
	}

	if result.Failed > 0 {
		log.Error().Int("failed", result.Failed).Int("imported", result.Imported).Msg("Import finished with errors")
		return result, fmt.Errorf("import job %s: %d of %d rows failed", job.ID, result.Failed, result.Total)
	}

	log.Info().Int("imported", result.Imported).Msg("Grade sheet imported")
	return result, nil
}
