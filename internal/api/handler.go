package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"school-journal/internal/config"
	"school-journal/internal/importer"
	"school-journal/internal/journal"
	"school-journal/internal/logger"
	"school-journal/internal/model"
	"school-journal/internal/storage"
	"school-journal/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const kindAttendance = "attendance"

// ImportEnqueuer hands grade sheet imports to the import worker.
type ImportEnqueuer interface {
	EnqueueImportJob(ctx context.Context, job model.ImportJob) error
}

type Handler struct {
	registry *journal.Registry
	imports  ImportEnqueuer
	storage  storage.Storage
	cfg      *config.Config
	log      zerolog.Logger
}

// NewHandler builds the journal API. imports and objects may be nil when
// Redis or S3 are not configured; the routes that need them answer 503.
func NewHandler(
	registry *journal.Registry,
	imports ImportEnqueuer,
	objects storage.Storage,
	cfg *config.Config,
) *Handler {
	return &Handler{
		registry: registry,
		imports:  imports,
		storage:  objects,
		cfg:      cfg,
		log:      logger.Component("api"),
	}
}

func (h *Handler) OpenSession(c *gin.Context) {
	s := h.registry.Open()
	c.JSON(http.StatusCreated, gin.H{"session_id": s.ID()})
}

func (h *Handler) CloseSession(c *gin.Context) {
	if err := h.registry.Close(c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) LoadJournal(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req model.LoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := s.LoadJournal(c.Request.Context(), req.ClassID, req.SubjectID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *Handler) Retry(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	if err := s.Retry(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *Handler) SelectPeriod(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req model.PeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := s.SelectPeriod(c.Request.Context(), req.PeriodID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

// Search debounces the query. With ?flush=true the query applies at once
// and the filtered journal is returned.
func (h *Handler) Search(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req model.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	s.SetSearchQuery(req.Query)
	if c.Query("flush") == "true" {
		s.FlushSearch()
		c.JSON(http.StatusOK, s.Snapshot())
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"query": req.Query})
}

func (h *Handler) Rows(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *Handler) EditCell(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	student, lesson := c.Param("student"), c.Param("lesson")

	if c.Query("kind") == kindAttendance {
		editor, err := s.EditAttendance(student, lesson)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, editor.Status())
		return
	}

	editor, err := s.EditCell(student, lesson)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, editor.Status())
}

func (h *Handler) ConfirmCell(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	student, lesson := c.Param("student"), c.Param("lesson")

	var req model.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if c.Query("kind") == kindAttendance {
		editor := s.AttendanceCell(student, lesson)
		if err := editor.Confirm(c.Request.Context(), req.Value); err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, editor.Status())
		return
	}

	editor := s.GradeCell(student, lesson)
	if err := editor.Confirm(c.Request.Context(), req.Value); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, editor.Status())
}

func (h *Handler) CancelCell(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	student, lesson := c.Param("student"), c.Param("lesson")

	var err error
	if c.Query("kind") == kindAttendance {
		err = s.AttendanceCell(student, lesson).Cancel()
	} else {
		err = s.GradeCell(student, lesson).Cancel()
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) SetAttendance(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	student, lesson := c.Param("student"), c.Param("lesson")

	var req model.AttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := s.SetAttendance(c.Request.Context(), student, lesson, req.Status); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.AttendanceCell(student, lesson).Status())
}

// Export renders the visible journal to xlsx and stores it in the bucket.
func (h *Handler) Export(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if h.storage == nil {
		h.respondError(c, errors.ErrStorageNotConfigured)
		return
	}

	snap := s.Snapshot()
	if !snap.Selection.HasScope() {
		h.respondError(c, errors.ErrNoSelection)
		return
	}

	var buf bytes.Buffer
	if err := importer.WriteJournal(&buf, snap); err != nil {
		h.log.Error().Err(err).Str("session_id", s.ID()).Msg("Failed to render journal export")
		h.respondError(c, err)
		return
	}

	key := fmt.Sprintf("%s%s/%s.xlsx", h.cfg.Storage.S3.ExportPrefix, s.ID(), snap.At.UTC().Format("20060102T150405Z"))
	if err := h.storage.Upload(c.Request.Context(), key, bytes.NewReader(buf.Bytes()), storage.ContentTypeXLSX); err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("Failed to upload journal export")
		h.respondError(c, err)
		return
	}

	h.log.Info().Str("session_id", s.ID()).Str("key", key).Int("rows", len(snap.Rows)).Msg("Journal exported")
	c.JSON(http.StatusCreated, gin.H{"key": key})
}

func (h *Handler) EnqueueImport(c *gin.Context) {
	var req model.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if h.imports == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Import queue is not configured"})
		return
	}

	if h.storage != nil {
		exists, err := h.storage.Exists(c.Request.Context(), req.S3Path)
		if err != nil {
			h.log.Error().Err(err).Str("s3_path", req.S3Path).Msg("Failed to check grade sheet")
			h.respondError(c, err)
			return
		}
		if !exists {
			c.JSON(http.StatusNotFound, gin.H{"error": "Grade sheet not found"})
			return
		}
	}

	job := model.ImportJob{
		ID:       uuid.NewString(),
		S3Path:   req.S3Path,
		PeriodID: req.PeriodID,
	}
	if err := h.imports.EnqueueImportJob(c.Request.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue import job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue import job"})
		return
	}

	h.log.Info().Str("job_id", job.ID).Str("s3_path", job.S3Path).Str("period_id", job.PeriodID).Msg("Import job enqueued")
	c.JSON(http.StatusAccepted, gin.H{
		"message": "Import job queued successfully",
		"job":     job,
	})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"service":  h.cfg.App.Name,
		"version":  h.cfg.App.Version,
		"sessions": h.registry.Len(),
	})
}

func (h *Handler) session(c *gin.Context) (*journal.Session, bool) {
	s, err := h.registry.Get(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return s, true
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var loadErr *journal.LoadError
	var ve errors.ValidationError

	switch {
	case errors.As(err, &loadErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     loadErr.Error(),
			"step":      loadErr.Step,
			"retryable": true,
		})
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message, "field": ve.Field})
	case errors.Is(err, errors.ErrSessionNotFound), errors.Is(err, errors.ErrUnknownCell):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, errors.ErrLoadInProgress),
		errors.Is(err, errors.ErrCellBusy),
		errors.Is(err, errors.ErrNotEditing),
		errors.Is(err, errors.ErrNoSelection):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, errors.ErrStorageNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, errors.ErrRemoteStore), errors.IsRetryable(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "retryable": errors.IsRetryable(err)})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Unhandled request error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
