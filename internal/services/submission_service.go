package services

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/appdiversa/diversa-server/internal/models"
)

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// SubmissionStore extends the gate's store with the lookups and writes the
// full pipeline needs. SaveSubmission must be atomic: the attempt and all of
// its responses commit together or not at all.
type SubmissionStore interface {
	GateStore
	GetSurvey(id string) (*models.Survey, error)
	GetQuestion(id string) (*models.Question, error)
	GetSubQuestion(id string) (*models.SubQuestion, error)
	SaveSubmission(a *models.SurveyAttempt, rs []*models.Response) error
}

// SubmissionResult is what the handler turns into the HTTP response.
type SubmissionResult struct {
	Status      SubmissionStatus `json:"status"`
	Reason      string           `json:"reason,omitempty"`
	AttemptID   string           `json:"attempt_id,omitempty"`
	ResponseIDs []string         `json:"response_ids,omitempty"`
}

// SubmissionService runs the full response pipeline: eligibility screening
// first, then independent per-answer validation, then one atomic write.
type SubmissionService struct {
	store     SubmissionStore
	gate      *EligibilityGate
	validator *AnswerValidator
	now       func() time.Time
	idGen     func() string
}

func NewSubmissionService(store SubmissionStore, gate *EligibilityGate, validator *AnswerValidator) *SubmissionService {
	return &SubmissionService{
		store:     store,
		gate:      gate,
		validator: validator,
		now:       func() time.Time { return time.Now().UTC() },
		idGen:     newID,
	}
}

// Process handles one submission batch for a user. Terminal screening
// rejections come back as results, not errors; invalid answers come back as
// a BatchValidationError carrying every failure at once, with nothing
// persisted.
func (s *SubmissionService) Process(userID string, batch []AnswerInput) (*SubmissionResult, error) {
	if len(batch) == 0 {
		return nil, NewInvalidError("the submission batch is empty")
	}
	surveyID := batch[0].SurveyID
	if surveyID == "" {
		return nil, NewInvalidError("survey_id is required")
	}
	survey, err := s.store.GetSurvey(surveyID)
	if err != nil {
		return nil, err
	}
	if survey == nil {
		return nil, NewNotFoundError("survey not found")
	}

	outcome, err := s.gate.Screen(userID, surveyID, batch)
	if err != nil {
		return nil, err
	}
	switch outcome.Status {
	case StatusRejectedResidency, StatusRejectedAge:
		return &SubmissionResult{Status: outcome.Status, Reason: outcome.Reason, AttemptID: outcome.Attempt.ID}, nil
	case StatusBirthDateRequired:
		return &SubmissionResult{Status: outcome.Status, Reason: outcome.Reason}, nil
	}

	attempt := outcome.Attempt
	now := s.now()
	responses := make([]*models.Response, 0, len(outcome.Remaining))
	var failures []*AnswerError
	seen := map[string]bool{}

	for _, in := range outcome.Remaining {
		q, err := s.store.GetQuestion(in.QuestionID)
		if err != nil {
			return nil, err
		}
		if q == nil {
			failures = append(failures, &AnswerError{
				QuestionID: in.QuestionID, Field: "question_id", Code: CodeUnknownQuestion,
				Message: "the question does not exist",
			})
			continue
		}
		if q.SurveyID != surveyID {
			failures = append(failures, &AnswerError{
				QuestionID: q.ID, Field: "question_id", Code: CodeUnknownQuestion,
				Message: "the question does not belong to this survey",
			})
			continue
		}

		na, err := s.validator.Validate(q, in)
		if err != nil {
			var ae *AnswerError
			if errors.As(err, &ae) {
				failures = append(failures, ae)
				continue
			}
			return nil, err
		}

		key := na.QuestionID + "/" + na.SubQuestionID
		if seen[key] {
			failures = append(failures, &AnswerError{
				QuestionID: na.QuestionID, SubQuestionID: na.SubQuestionID, Field: "question_id",
				Code: CodeInvalidOption, Message: "the question was answered more than once in this batch",
			})
			continue
		}
		seen[key] = true

		responses = append(responses, s.buildResponse(userID, attempt.ID, na, now))
	}

	if len(failures) > 0 {
		// Nothing persists on validation failure, including the passed
		// attempt: the client corrects the form and resubmits the batch.
		return nil, &BatchValidationError{Errors: failures}
	}

	if err := s.store.SaveSubmission(attempt, responses); err != nil {
		return nil, err
	}

	ids := make([]string, len(responses))
	for i, r := range responses {
		ids[i] = r.ID
	}
	return &SubmissionResult{Status: StatusCompleted, AttemptID: attempt.ID, ResponseIDs: ids}, nil
}

func (s *SubmissionService) buildResponse(userID, attemptID string, na *NormalizedAnswer, now time.Time) *models.Response {
	return &models.Response{
		ID:               s.idGen(),
		UserID:           userID,
		QuestionID:       na.QuestionID,
		SubQuestionID:    na.SubQuestionID,
		SurveyAttemptID:  attemptID,
		ResponseText:     na.Text,
		ResponseNumber:   na.Number,
		OptionSelected:   na.OptionID,
		OptionsSelected:  na.OptionIDs,
		CountryCode:      na.CountryCode,
		DepartmentCode:   na.DepartmentCode,
		MunicipalityCode: na.MunicipalityCode,
		NewDepartment:    na.NewDepartment,
		NewMunicipality:  na.NewMunicipality,
		OtherText:        na.OtherText,
		CreatedAt:        now,
	}
}
