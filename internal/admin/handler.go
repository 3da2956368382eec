// Package admin serves the operator endpoints that change the stored ledger.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/paydash/internal/ingest"
	"github.com/odyssey-erp/paydash/internal/ledger/store"
	"github.com/odyssey-erp/paydash/internal/platform/httpx"
	"github.com/odyssey-erp/paydash/jobs"
)

// multipartOverhead leaves room for the form boundary and text fields.
const multipartOverhead = 1 << 20

// RecordStore exposes the stored ledger for status and reset.
type RecordStore interface {
	Count(ctx context.Context) (int64, error)
	LastImport(ctx context.Context) (store.ImportInfo, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// Importer parses and stores a workbook synchronously.
type Importer interface {
	Import(ctx context.Context, req ingest.Request) (ingest.Summary, error)
}

// Enqueuer queues a workbook for the worker.
type Enqueuer interface {
	EnqueueLedgerImport(ctx context.Context, payload jobs.LedgerImportPayload) (*asynq.TaskInfo, error)
}

// Invalidator drops cached dashboard views.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// AuditLog records and lists administrative changes.
type AuditLog interface {
	RecordAudit(ctx context.Context, entry store.AuditEntry) error
	ListAudit(ctx context.Context, limit int) ([]store.AuditEntry, error)
}

// Config carries the admin credentials and upload limits.
type Config struct {
	User           string
	PasswordHash   string
	MaxUploadBytes int64
	Async          bool
}

// Handler wires HTTP endpoints for ledger administration.
type Handler struct {
	logger   *slog.Logger
	records  RecordStore
	importer Importer
	queue    Enqueuer
	cache    Invalidator
	audit    AuditLog
	cfg      Config
	validate *validator.Validate
	newID    func() string
}

// NewHandler constructs the admin handler. queue is only used when cfg.Async
// is set.
func NewHandler(logger *slog.Logger, cfg Config, records RecordStore, importer Importer, queue Enqueuer, cache Invalidator) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		records:  records,
		importer: importer,
		queue:    queue,
		cache:    cache,
		cfg:      cfg,
		validate: validator.New(),
		newID:    uuid.NewString,
	}
}

// WithAudit enables the audit trail.
func (h *Handler) WithAudit(audit AuditLog) *Handler {
	h.audit = audit
	return h
}

type statusResponse struct {
	Rows       int64             `json:"rows"`
	LastImport *store.ImportInfo `json:"lastImport,omitempty"`
	Async      bool              `json:"async"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rows, err := h.records.Count(ctx)
	if err != nil {
		h.handleServerError(w, "count records", err)
		return
	}
	resp := statusResponse{Rows: rows, Async: h.cfg.Async}
	last, err := h.records.LastImport(ctx)
	if err != nil {
		h.handleServerError(w, "last import", err)
		return
	}
	if last.BatchID != "" {
		resp.LastImport = &last
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type uploadForm struct {
	Filename string `validate:"required,max=255"`
	Mode     string `validate:"oneof=append replace"`
}

type queuedResponse struct {
	BatchID string `json:"batchId"`
	TaskID  string `json:"taskId"`
	Queue   string `json:"queue"`
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.Problem(w, http.StatusRequestEntityTooLarge, "Upload Too Large", fmt.Sprintf("limit is %d bytes", h.cfg.MaxUploadBytes))
			return
		}
		httpx.Problem(w, http.StatusBadRequest, "Invalid Upload", "expected multipart form data")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Upload", "missing file field")
		return
	}
	defer file.Close()

	form := uploadForm{
		Filename: strings.TrimSpace(header.Filename),
		Mode:     strings.TrimSpace(r.FormValue("mode")),
	}
	if form.Mode == "" {
		form.Mode = jobs.ModeAppend
	}
	if err := h.validate.Struct(form); err != nil {
		field := "form"
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			field = strings.ToLower(fieldErrs[0].Field())
		}
		httpx.Problem(w, http.StatusBadRequest, "Invalid Upload", "invalid "+field)
		return
	}
	if _, ok := ingest.ContentType(form.Filename); !ok {
		httpx.Problem(w, http.StatusUnsupportedMediaType, "Unsupported File", "upload an .xlsx workbook")
		return
	}

	content, err := io.ReadAll(io.LimitReader(file, h.cfg.MaxUploadBytes+1))
	if err != nil {
		h.handleServerError(w, "read upload", err)
		return
	}
	if int64(len(content)) > h.cfg.MaxUploadBytes {
		httpx.Problem(w, http.StatusRequestEntityTooLarge, "Upload Too Large", fmt.Sprintf("limit is %d bytes", h.cfg.MaxUploadBytes))
		return
	}

	batchID := h.newID()
	logger := h.logger.With(slog.String("batch_id", batchID), slog.String("filename", form.Filename))

	if h.cfg.Async && h.queue != nil {
		info, err := h.queue.EnqueueLedgerImport(r.Context(), jobs.LedgerImportPayload{
			BatchID:  batchID,
			Filename: form.Filename,
			Mode:     form.Mode,
			Content:  content,
		})
		if err != nil {
			h.handleServerError(w, "enqueue import", err)
			return
		}
		logger.Info("import queued", slog.String("task_id", info.ID))
		h.record(r.Context(), store.AuditEntry{
			Action:  store.AuditImportQueued,
			BatchID: batchID,
			Detail:  map[string]any{"filename": form.Filename, "mode": form.Mode, "bytes": len(content)},
		})
		httpx.JSON(w, http.StatusAccepted, queuedResponse{BatchID: batchID, TaskID: info.ID, Queue: info.Queue})
		return
	}

	summary, err := h.importer.Import(r.Context(), ingest.Request{
		BatchID:  batchID,
		Filename: form.Filename,
		Replace:  form.Mode == jobs.ModeReplace,
		Content:  content,
	})
	if err != nil {
		if ingest.IsInputError(err) {
			logger.Warn("rejected workbook", slog.Any("error", err))
			httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Workbook", err.Error())
			return
		}
		h.handleServerError(w, "import workbook", err)
		return
	}
	h.record(r.Context(), store.AuditEntry{
		Action:  store.AuditImport,
		BatchID: batchID,
		Detail:  map[string]any{"filename": form.Filename, "mode": form.Mode, "rows": summary.Inserted},
	})
	httpx.JSON(w, http.StatusOK, summary)
}

type deleteResponse struct {
	Deleted int64 `json:"deleted"`
}

func (h *Handler) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.records.DeleteAll(r.Context())
	if err != nil {
		h.handleServerError(w, "delete records", err)
		return
	}
	if h.cache != nil {
		if err := h.cache.Bump(r.Context()); err != nil {
			h.logger.Warn("cache bump after delete", slog.Any("error", err))
		}
	}
	h.logger.Info("records deleted", slog.Int64("rows", deleted))
	h.record(r.Context(), store.AuditEntry{Action: store.AuditDeleteAll, Detail: map[string]any{"rows": deleted}})
	httpx.JSON(w, http.StatusOK, deleteResponse{Deleted: deleted})
}

type auditQuery struct {
	Limit int `validate:"min=1,max=200"`
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		httpx.JSON(w, http.StatusOK, []store.AuditEntry{})
		return
	}
	q := auditQuery{Limit: 20}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "invalid limit")
			return
		}
		q.Limit = n
	}
	if err := h.validate.Struct(q); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "invalid limit")
		return
	}
	entries, err := h.audit.ListAudit(r.Context(), q.Limit)
	if err != nil {
		h.handleServerError(w, "list audit", err)
		return
	}
	if entries == nil {
		entries = []store.AuditEntry{}
	}
	httpx.JSON(w, http.StatusOK, entries)
}

// record stores an audit entry for the authenticated operator. Failures are
// logged and never fail the request.
func (h *Handler) record(ctx context.Context, entry store.AuditEntry) {
	if h.audit == nil {
		return
	}
	entry.Actor = actorFrom(ctx)
	if err := h.audit.RecordAudit(ctx, entry); err != nil {
		h.logger.Warn("record audit", slog.String("action", entry.Action), slog.Any("error", err))
	}
}

func (h *Handler) handleServerError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
