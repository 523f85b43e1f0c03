package v1

import (
	"net/http"

	apiv1 "github.com/supplier-intake/intake-pipeline/api/v1"
	"github.com/supplier-intake/intake-pipeline/internal/handlers/v1/mappers"
	"github.com/supplier-intake/intake-pipeline/internal/handlers/validator"
)

// (GET /api/v1/suppliers)
func (h *ServiceHandler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.supplierSrv.ListSuppliers(r.Context(), boolQuery(r, "activeOnly"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, mappers.SupplierListToApi(suppliers))
}

// (POST /api/v1/suppliers)
func (h *ServiceHandler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req apiv1.SupplierCreate
	if err := decode(r, &req, validator.NewSupplierValidationRules()...); err != nil {
		respondServiceError(w, r, err)
		return
	}

	supplier, err := h.supplierSrv.CreateSupplier(r.Context(), mappers.SupplierFormApi(req))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, mappers.SupplierToApi(*supplier))
}

// (GET /api/v1/suppliers/{id})
func (h *ServiceHandler) GetSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	supplier, err := h.supplierSrv.GetSupplier(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, mappers.SupplierToApi(*supplier))
}
