package v1

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/supplier-intake/intake-pipeline/internal/handlers/v1/mappers"
	"github.com/supplier-intake/intake-pipeline/internal/handlers/validator"
	"github.com/supplier-intake/intake-pipeline/internal/service"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
)

// (GET /api/v1/queue)
func (h *ServiceHandler) ListQueue(w http.ResponseWriter, r *http.Request) {
	filter, err := h.queueFilter(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	page, err := h.queueSrv.ListQueue(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.QueuePageToApi(*page))
}

func (h *ServiceHandler) queueFilter(r *http.Request) (service.QueueFilter, error) {
	q := r.URL.Query()
	filter := service.QueueFilter{}

	var err error
	if filter.Page, err = intQuery(r, "page", 1); err != nil {
		return filter, err
	}
	if filter.Limit, err = intQuery(r, "limit", h.queueLimit); err != nil {
		return filter, err
	}
	if filter.MinConfidence, err = floatQuery(r, "minConfidence"); err != nil {
		return filter, err
	}
	if filter.MaxConfidence, err = floatQuery(r, "maxConfidence"); err != nil {
		return filter, err
	}

	if raw := q.Get("supplierId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, validator.NewErrInvalidRequest("invalid supplierId %q", raw)
		}
		filter.SupplierID = &id
	}
	if raw := q.Get("contentType"); raw != "" {
		ct, err := model.ParseContentType(raw)
		if err != nil {
			return filter, service.NewErrInvalidQueueFilter("%s", err)
		}
		filter.ContentType = &ct
	}
	if raw := q.Get("category"); raw != "" {
		filter.Category = &raw
	}
	if raw := q.Get("priority"); raw != "" {
		p, err := model.ParsePriority(raw)
		if err != nil {
			return filter, service.NewErrInvalidQueueFilter("%s", err)
		}
		filter.Priority = &p
	}
	return filter, nil
}
