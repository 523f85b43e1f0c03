package v1

import (
	"net/http"

	apiv1 "github.com/supplier-intake/intake-pipeline/api/v1"
	"github.com/supplier-intake/intake-pipeline/internal/handlers/v1/mappers"
	"github.com/supplier-intake/intake-pipeline/internal/handlers/validator"
)

// (POST /api/v1/ingest)
func (h *ServiceHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req apiv1.IngestRequest
	if err := decode(r, &req, validator.NewIngestValidationRules()...); err != nil {
		respondServiceError(w, r, err)
		return
	}

	result, err := h.ingestSrv.IngestMessage(r.Context(), mappers.IngestFormApi(req))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	respond(w, r, status, mappers.IngestResultToApi(*result))
}
