package api

import (
	"net/http"

	"github.com/appdiversa/diversa-server/internal/middleware"
	"github.com/appdiversa/diversa-server/internal/services"
)

type ResponseHandler struct {
	submissions *services.SubmissionService
	exports     *services.ExportService
}

func NewResponseHandler(submissions *services.SubmissionService, exports *services.ExportService) *ResponseHandler {
	return &ResponseHandler{submissions: submissions, exports: exports}
}

type submitRequest struct {
	Answers []services.AnswerInput `json:"answers"`
}

// Submit runs the whole pipeline for one batch. Rejections are 403 so the
// client can show the closed door; a missing birth date is 200 because the
// client is expected to ask for it and retry.
func (h *ResponseHandler) Submit(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req submitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.submissions.Process(uid, req.Answers)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	switch result.Status {
	case services.StatusCompleted:
		writeJSON(w, http.StatusCreated, result)
	case services.StatusRejectedResidency, services.StatusRejectedAge:
		writeJSON(w, http.StatusForbidden, result)
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

// Export streams a CSV of every response for a survey.
func (h *ResponseHandler) Export(w http.ResponseWriter, r *http.Request) {
	params := services.ExportParams{
		SurveyID: r.URL.Query().Get("survey_id"),
		Format:   r.URL.Query().Get("format"),
	}
	res, err := h.exports.ExportCSV(params)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+res.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}
