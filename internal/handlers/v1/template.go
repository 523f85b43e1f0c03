package v1

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	apiv1 "github.com/supplier-intake/intake-pipeline/api/v1"
	"github.com/supplier-intake/intake-pipeline/internal/handlers/v1/mappers"
	"github.com/supplier-intake/intake-pipeline/internal/handlers/validator"
	"github.com/supplier-intake/intake-pipeline/internal/service"
)

const formatXLSX = "xlsx"

// (GET /api/v1/templates)
func (h *ServiceHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templateSrv.ListTemplates(r.Context(), boolQuery(r, "activeOnly"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, mappers.TemplateListToApi(templates))
}

// (GET /api/v1/templates/{id})
func (h *ServiceHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	template, err := h.templateSrv.GetTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, mappers.TemplateToApi(*template))
}

// (GET /api/v1/templates/{id}/analysis)
func (h *ServiceHandler) GetTemplateAnalysis(w http.ResponseWriter, r *http.Request) {
	window, err := ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	get := h.analysisSrv.GetTemplateAnalysis
	if boolQuery(r, "refresh") {
		get = h.analysisSrv.Analyze
	}
	result, err := get(r.Context(), id, window)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, mappers.AnalysisToApi(*result))
}

// (GET /api/v1/templates/analysis)
func (h *ServiceHandler) GetAllTemplateAnalysis(w http.ResponseWriter, r *http.Request) {
	window, err := ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	get := h.analysisSrv.GetAllTemplateAnalysis
	if boolQuery(r, "refresh") {
		get = h.analysisSrv.AnalyzeAll
	}
	overview, err := get(r.Context(), window)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == formatXLSX {
		data, err := service.ExportAnalysisXLSX(*overview)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", service.XLSXContentType)
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=template-analysis-%s.xlsx", overview.ComputedAt.UTC().Format(time.DateOnly)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	respond(w, r, http.StatusOK, mappers.OverviewToApi(*overview))
}

// (GET /api/v1/templates/{id}/revisions)
func (h *ServiceHandler) ListTemplateRevisions(w http.ResponseWriter, r *http.Request) {
	revisions, err := h.analysisSrv.ListRevisions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, mappers.RevisionListToApi(revisions))
}

// (POST /api/v1/templates/{id}/improvements)
func (h *ServiceHandler) ApplyImprovement(w http.ResponseWriter, r *http.Request) {
	var req apiv1.ApplyImprovementRequest
	if err := decode(r, &req, validator.NewImprovementValidationRules()...); err != nil {
		respondServiceError(w, r, err)
		return
	}

	template, err := h.analysisSrv.ApplyImprovement(r.Context(), chi.URLParam(r, "id"), mappers.ProposalFromApi(req.Proposal), req.AppliedBy)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, mappers.TemplateToApi(*template))
}
