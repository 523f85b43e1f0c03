package v1

import (
	"net/http"

	apiv1 "github.com/supplier-intake/intake-pipeline/api/v1"
	"github.com/supplier-intake/intake-pipeline/internal/handlers/v1/mappers"
	"github.com/supplier-intake/intake-pipeline/internal/handlers/validator"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
)

// (GET /api/v1/submissions/{id})
func (h *ServiceHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	detail, err := h.submissionSrv.GetSubmission(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.SubmissionDetailToApi(*detail))
}

// (GET /api/v1/submissions/{id}/logs)
func (h *ServiceHandler) ListSubmissionLog(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	var stage *model.StageName
	if raw := r.URL.Query().Get("stage"); raw != "" {
		s, err := model.ParseStageName(raw)
		if err != nil {
			respondServiceError(w, r, validator.NewErrInvalidRequest("%s", err))
			return
		}
		stage = &s
	}

	entries, err := h.submissionSrv.ListLog(r.Context(), id, stage)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.LogToApi(entries))
}

// (POST /api/v1/submissions/{id}/retry)
func (h *ServiceHandler) RetrySubmission(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	submission, err := h.submissionSrv.Retry(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respond(w, r, http.StatusAccepted, mappers.SubmissionToApi(*submission))
}

// (POST /api/v1/submissions/{id}/approve)
func (h *ServiceHandler) ApproveSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	var req apiv1.ApproveRequest
	// approving without edits needs no body
	if _, err := decodeOptional(r, &req, validator.NewReviewValidationRules()...); err != nil {
		respondServiceError(w, r, err)
		return
	}

	result, err := h.reviewSrv.Approve(r.Context(), id, mappers.ApproveFormApi(req))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.ApproveResultToApi(*result))
}

// (POST /api/v1/submissions/{id}/reject)
func (h *ServiceHandler) RejectSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	var req apiv1.RejectRequest
	if err := decode(r, &req, validator.NewReviewValidationRules()...); err != nil {
		respondServiceError(w, r, err)
		return
	}

	feedback, err := h.reviewSrv.Reject(r.Context(), id, mappers.RejectFormApi(req))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.FeedbackToApi(*feedback))
}
