package v1

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	apiv1 "github.com/supplier-intake/intake-pipeline/api/v1"
	"github.com/supplier-intake/intake-pipeline/internal/handlers/validator"
	"github.com/supplier-intake/intake-pipeline/internal/service"
	"github.com/supplier-intake/intake-pipeline/pkg/requestid"
	"go.uber.org/zap"
)

const defaultQueueLimit = 20

type ServiceHandler struct {
	ingestSrv     *service.IngestService
	queueSrv      *service.QueueService
	reviewSrv     *service.ReviewService
	submissionSrv *service.SubmissionService
	templateSrv   *service.TemplateService
	analysisSrv   *service.AnalysisService
	supplierSrv   *service.SupplierService

	queueLimit int
}

type HandlerOption func(*ServiceHandler)

func WithDefaultQueueLimit(limit int) HandlerOption {
	return func(h *ServiceHandler) {
		if limit > 0 {
			h.queueLimit = limit
		}
	}
}

func NewServiceHandler(
	ingestSrv *service.IngestService,
	queueSrv *service.QueueService,
	reviewSrv *service.ReviewService,
	submissionSrv *service.SubmissionService,
	templateSrv *service.TemplateService,
	analysisSrv *service.AnalysisService,
	supplierSrv *service.SupplierService,
	opts ...HandlerOption,
) *ServiceHandler {
	h := &ServiceHandler{
		ingestSrv:     ingestSrv,
		queueSrv:      queueSrv,
		reviewSrv:     reviewSrv,
		submissionSrv: submissionSrv,
		templateSrv:   templateSrv,
		analysisSrv:   analysisSrv,
		supplierSrv:   supplierSrv,
		queueLimit:    defaultQueueLimit,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Router mounts the operator API.
func (h *ServiceHandler) Router(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Post("/ingest", h.Ingest)
		r.Get("/queue", h.ListQueue)

		r.Route("/submissions/{id}", func(r chi.Router) {
			r.Get("/", h.GetSubmission)
			r.Get("/logs", h.ListSubmissionLog)
			r.Post("/retry", h.RetrySubmission)
			r.Post("/approve", h.ApproveSubmission)
			r.Post("/reject", h.RejectSubmission)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", h.ListTemplates)
			r.Get("/analysis", h.GetAllTemplateAnalysis)
			r.Get("/{id}", h.GetTemplate)
			r.Get("/{id}/analysis", h.GetTemplateAnalysis)
			r.Get("/{id}/revisions", h.ListTemplateRevisions)
			r.Post("/{id}/improvements", h.ApplyImprovement)
		})

		r.Route("/suppliers", func(r chi.Router) {
			r.Get("/", h.ListSuppliers)
			r.Post("/", h.CreateSupplier)
			r.Get("/{id}", h.GetSupplier)
		})
	})
}

// (GET /api/v1/health)
func (h *ServiceHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, apiv1.Health{Status: "ok"})
}

func respond(w http.ResponseWriter, r *http.Request, status int, body any) {
	render.Status(r, status)
	render.JSON(w, r, body)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	respond(w, r, status, apiv1.Error{Message: message, RequestID: requestid.FromRequest(r)})
}

// respondServiceError maps service errors to their http status. Unknown errors are logged and hidden.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch err.(type) {
	case *service.ErrResourceNotFound:
		respondError(w, r, http.StatusNotFound, err.Error())
	case *service.ErrValidationConflict, *service.ErrSubmissionNotProcessable,
		*service.ErrTemplateConflict, *service.ErrDuplicateResource:
		respondError(w, r, http.StatusConflict, err.Error())
	case *service.ErrInventoryCommitFailed:
		respondError(w, r, http.StatusBadGateway, err.Error())
	case *service.ErrMalformedFeedback, *service.ErrInvalidInput,
		*service.ErrInvalidProposal, *service.ErrInvalidQueueFilter, *validator.ErrInvalidRequest:
		respondError(w, r, http.StatusBadRequest, err.Error())
	case *service.ErrSupplierInactive:
		respondError(w, r, http.StatusForbidden, err.Error())
	default:
		zap.S().Named("handler").Errorw("request failed", "error", err, "path", r.URL.Path, "request_id", requestid.FromRequest(r))
		respondError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// decode reads the json body into v and validates it with the given rules.
func decode(r *http.Request, v any, rules ...validator.ValidationRule) error {
	empty, err := decodeOptional(r, v, rules...)
	if err != nil {
		return err
	}
	if empty {
		return validator.NewErrInvalidRequest("empty body")
	}
	return nil
}

// decodeOptional decodes and validates the body into v. It reports empty when the request carries no body,
// whether the length is known or not.
func decodeOptional(r *http.Request, v any, rules ...validator.ValidationRule) (empty bool, err error) {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return true, nil
	}
	if err := render.DecodeJSON(r.Body, v); err != nil {
		if errors.Is(err, io.EOF) {
			return true, nil
		}
		return false, validator.NewErrInvalidRequest("malformed body: %s", err)
	}
	val := validator.NewValidator()
	val.Register(rules...)
	if err := val.Struct(v); err != nil {
		return false, validator.Explain(err)
	}
	return false, nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, validator.NewErrInvalidRequest("invalid %s %q", name, chi.URLParam(r, name))
	}
	return id, nil
}

func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, validator.NewErrInvalidRequest("%s must be an integer", name)
	}
	return v, nil
}

func floatQuery(r *http.Request, name string) (*float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, validator.NewErrInvalidRequest("%s must be a number", name)
	}
	return &v, nil
}

func boolQuery(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// ParseWindow accepts go durations and a day suffix ("30d"). An empty value selects the default window.
func ParseWindow(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	var (
		d   time.Duration
		err error
	)
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		var n int
		n, err = strconv.Atoi(days)
		d = time.Duration(n) * 24 * time.Hour
	} else {
		d, err = time.ParseDuration(raw)
	}
	if err != nil || d <= 0 {
		return 0, validator.NewErrInvalidRequest("invalid window %q", raw)
	}
	return d, nil
}
