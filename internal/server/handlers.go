package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/efficient-recorder/internal/pipeline"
	"github.com/maauso/efficient-recorder/internal/upload"
)

// StatusProvider reports pipeline state.
type StatusProvider interface {
	Status() pipeline.Status
	Ready() bool
}

// Handlers contains the HTTP handlers for the status server.
type Handlers struct {
	pipeline  StatusProvider
	history   upload.History
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(p StatusProvider, history upload.History, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		pipeline:  p,
		history:   history,
		validator: validator.New(),
		logger:    logger,
	}
}

// Healthz handles GET /healthz. A process that can serve HTTP is alive.
func (h *Handlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz handles GET /readyz. It returns 200 only while the pipeline runs.
func (h *Handlers) Readyz(w http.ResponseWriter, _ *http.Request) {
	res := HealthResponse{Status: "ok", Checks: map[string]string{"pipeline": "ok"}}
	status := http.StatusOK
	if !h.pipeline.Ready() {
		res.Status = "fail"
		res.Checks["pipeline"] = "fail: not running"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Status handles GET /status.
func (h *Handlers) Status(w http.ResponseWriter, _ *http.Request) {
	st := h.pipeline.Status()
	writeJSON(w, http.StatusOK, StatusResponse{
		Running:        st.Running,
		DetectorState:  st.DetectorState,
		SessionOpen:    st.SessionOpen,
		Mode:           st.Mode,
		QueueDepth:     st.QueueDepth,
		UploadInFlight: st.UploadActive,
		Sessions:       st.Sessions,
		LastError:      st.LastError,
	})
}

// ListUploads handles GET /uploads?limit=&status=&kind= requests.
func (h *Handlers) ListUploads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := ListUploadsQuery{
		Status: q.Get("status"),
		Kind:   q.Get("kind"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer", "INVALID_LIMIT")
			return
		}
		query.Limit = limit
	}

	if err := h.validator.Struct(query); err != nil {
		h.logger.Warn("query validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	records, err := h.history.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list uploads",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list uploads", "UPLOAD_LIST_FAILED")
		return
	}

	resp := UploadListResponse{Uploads: make([]UploadResponse, 0, len(records))}
	for _, rec := range records {
		if query.Status != "" && string(rec.Status) != query.Status {
			continue
		}
		if query.Kind != "" && string(rec.Kind) != query.Kind {
			continue
		}
		resp.Uploads = append(resp.Uploads, toUploadResponse(rec))
		if query.Limit > 0 && len(resp.Uploads) == query.Limit {
			break
		}
	}
	resp.Count = len(resp.Uploads)

	writeJSON(w, http.StatusOK, resp)
}

// GetUpload handles GET /uploads/{id} requests.
func (h *Handlers) GetUpload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "upload ID is required", "MISSING_UPLOAD_ID")
		return
	}

	rec, err := h.history.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, upload.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "upload not found", "UPLOAD_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get upload",
			slog.String("upload_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get upload", "UPLOAD_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, toUploadResponse(rec))
}

func toUploadResponse(rec *upload.Record) UploadResponse {
	resp := UploadResponse{
		ID:         rec.ID,
		Kind:       string(rec.Kind),
		Timestamp:  rec.Timestamp,
		Status:     string(rec.GetStatus()),
		Location:   rec.Location,
		Size:       rec.Size,
		Streaming:  rec.Streaming,
		Attempts:   rec.Attempts,
		Error:      rec.Error,
		EnqueuedAt: rec.EnqueuedAt,
	}
	if rec.IsTerminal() {
		completed := rec.CompletedAt
		resp.CompletedAt = &completed
		resp.DurationMs = rec.Duration().Milliseconds()
	}
	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
