package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/appdiversa/diversa-server/internal/models"
	"github.com/appdiversa/diversa-server/internal/services"
)

type SchemaHandler struct {
	svc *services.SchemaService
}

func NewSchemaHandler(svc *services.SchemaService) *SchemaHandler {
	return &SchemaHandler{svc: svc}
}

func (h *SchemaHandler) CreateSurvey(w http.ResponseWriter, r *http.Request) {
	var sv models.Survey
	if !decodeJSON(w, r, &sv) {
		return
	}
	created, err := h.svc.CreateSurvey(&sv)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *SchemaHandler) ListSurveys(w http.ResponseWriter, r *http.Request) {
	surveys, err := h.svc.ListSurveys()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"surveys": surveys})
}

func (h *SchemaHandler) GetSurvey(w http.ResponseWriter, r *http.Request) {
	sv, err := h.svc.GetSurvey(mux.Vars(r)["surveyID"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sv)
}

func (h *SchemaHandler) CreateChapter(w http.ResponseWriter, r *http.Request) {
	var c models.Chapter
	if !decodeJSON(w, r, &c) {
		return
	}
	created, err := h.svc.CreateChapter(&c)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *SchemaHandler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var q models.Question
	if !decodeJSON(w, r, &q) {
		return
	}
	created, err := h.svc.CreateQuestion(&q)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *SchemaHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.svc.ListQuestions(mux.Vars(r)["surveyID"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

func (h *SchemaHandler) CreateSubQuestion(w http.ResponseWriter, r *http.Request) {
	var sq models.SubQuestion
	if !decodeJSON(w, r, &sq) {
		return
	}
	created, err := h.svc.CreateSubQuestion(&sq)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *SchemaHandler) ListSubQuestions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.svc.ListSubQuestions(mux.Vars(r)["questionID"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subquestions": subs})
}

func (h *SchemaHandler) CreateOption(w http.ResponseWriter, r *http.Request) {
	var o models.Option
	if !decodeJSON(w, r, &o) {
		return
	}
	created, err := h.svc.CreateOption(&o)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *SchemaHandler) ListOptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	options, err := h.svc.ListOptions(q.Get("question_id"), q.Get("subquestion_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"options": options})
}
