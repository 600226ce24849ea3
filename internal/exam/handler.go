package exam

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/oapi-codegen/runtime"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Handler is the HTTP boundary in front of Service.
type Handler struct {
	svc    *Service
	cfg    Config
	logger *slog.Logger
}

func NewHandler(svc *Service, cfg Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, cfg: cfg, logger: logger}
}

// Routes mounts every endpoint on a chi router. All origins, methods and
// headers pass CORS so exam pages can be embedded anywhere.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
			http.MethodDelete, http.MethodHead, http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Disposition", CorrelationHeader},
	}))
	r.Use(middleware.RealIP)
	r.Use(Correlation)
	r.Use(RequestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/", h.Root)
	r.Get("/test", h.Status)
	r.Post("/exams", h.CreateExam)
	r.Get("/exams/slug/{slug}", h.withPathParam("slug", h.GetExamBySlug))
	r.Post("/exams/{id}/verify", h.withPathParam("id", h.VerifyPassword))
	r.Post("/exams/{id}/log", h.withPathParam("id", h.LogEvent))
	r.Get("/exams/{id}/export", h.withPathParam("id", h.ExportLog))
	return r
}

// Root matches GET /
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{Message: "ProctorLink API running"})
}

// Status matches GET /test
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status(r.Context()))
}

// CreateExam matches POST /exams
func (h *Handler) CreateExam(w http.ResponseWriter, r *http.Request) {
	var req CreateExamRequest
	if !h.decode(w, r, &req) {
		return
	}
	if errs := ValidateCreateExam(req, h.cfg); len(errs) > 0 {
		h.writeValidation(w, r, errs)
		return
	}
	resp, err := h.svc.CreateExam(r.Context(), NewExam{
		URL:         strings.TrimSpace(*req.URL),
		Password:    *req.Password,
		RequestBase: requestBaseURL(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetExamBySlug matches GET /exams/slug/{slug}
func (h *Handler) GetExamBySlug(w http.ResponseWriter, r *http.Request, slug string) {
	resp, err := h.svc.ExamBySlug(r.Context(), slug)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// VerifyPassword matches POST /exams/{id}/verify
func (h *Handler) VerifyPassword(w http.ResponseWriter, r *http.Request, id string) {
	var req VerifyRequest
	if !h.decode(w, r, &req) {
		return
	}
	if errs := ValidateVerify(req); len(errs) > 0 {
		h.writeValidation(w, r, errs)
		return
	}
	resp, err := h.svc.VerifyPassword(r.Context(), id, *req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// LogEvent matches POST /exams/{id}/log
func (h *Handler) LogEvent(w http.ResponseWriter, r *http.Request, id string) {
	var req LogEventRequest
	if !h.decode(w, r, &req) {
		return
	}
	if errs := ValidateLogEvent(req); len(errs) > 0 {
		h.writeValidation(w, r, errs)
		return
	}
	ev := Event{
		Type:      *req.Type,
		ClientTS:  req.TS,
		IP:        clientIP(r),
		UserAgent: optional(r.UserAgent()),
	}
	if req.Details != nil {
		ev.Details = *req.Details
	}
	resp, err := h.svc.LogEvent(r.Context(), id, ev)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ExportLog matches GET /exams/{id}/export
func (h *Handler) ExportLog(w http.ResponseWriter, r *http.Request, id string) {
	var format *string
	if err := runtime.BindQueryParameter("form", true, false, "format", r.URL.Query(), &format); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err))
		return
	}
	export, err := h.svc.ExportLog(r.Context(), id, deref(format))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+export.Filename)
	w.Header().Set("Content-Length", strconv.Itoa(len(export.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Body)
}

// withPathParam binds a required simple-style path parameter the way
// generated chi servers do, then calls next with its value.
func (h *Handler) withPathParam(name string, next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var value string
		err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &value,
			runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
		if err != nil {
			h.writeError(w, r, fmt.Errorf("%w: %v", ErrInvalidIdentifier, err))
			return
		}
		next(w, r, value)
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ValidationError{
			Code:    "BAD_JSON",
			Message: "invalid JSON",
			CorrId:  CorrelationID(r.Context()),
			Errors:  []ValidationErrorItem{{Code: "BAD_JSON", Path: "body", Message: err.Error()}},
		})
		return false
	}
	return true
}

func (h *Handler) writeValidation(w http.ResponseWriter, r *http.Request, errs []ValidationErrorItem) {
	writeJSON(w, http.StatusBadRequest, ValidationError{
		Code:    "VALIDATION_ERROR",
		Message: "request validation failed",
		CorrId:  CorrelationID(r.Context()),
		Errors:  errs,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	corrID := CorrelationID(r.Context())
	body := ErrorBody{CorrId: corrID}
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, ErrInvalidIdentifier):
		status, body.Code, body.Message = http.StatusBadRequest, "INVALID_ID", "Invalid ID"
	case errors.Is(err, ErrNotFound):
		status, body.Code, body.Message = http.StatusNotFound, "NOT_FOUND", "Exam not found"
	case errors.Is(err, ErrUnsupportedFormat):
		status, body.Code, body.Message = http.StatusBadRequest, "UNSUPPORTED_FORMAT", "Unsupported export format"
	case errors.Is(err, errStoreUnconfigured):
		body.Code, body.Message, body.Retryable = "STORE_UNAVAILABLE", "Database not configured", true
	case errors.Is(err, ErrStoreUnavailable):
		body.Code, body.Message, body.Retryable = "STORE_UNAVAILABLE", "Database unavailable", true
	case errors.Is(err, ErrEncoderUnavailable):
		body.Code, body.Message = "ENCODER_UNAVAILABLE", "Export encoder unavailable"
	default:
		body.Code, body.Message, body.Retryable = "INTERNAL_ERROR", "internal error", true
	}
	if status >= http.StatusInternalServerError {
		CorrelationLogger(h.logger, corrID).Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requestBaseURL is scheme://host of the inbound request, honouring
// X-Forwarded-Proto from a terminating proxy.
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	return scheme + "://" + r.Host
}

// clientIP reads the address RealIP left in RemoteAddr, without the port.
func clientIP(r *http.Request) *string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return optional(addr)
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
