package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/appdiversa/diversa-server/internal/geo"
	"github.com/appdiversa/diversa-server/internal/models"
)

type stubSubmissionStore struct {
	stubGateStore
	surveys   map[string]*models.Survey
	questions map[string]*models.Question
	subs      map[string]*models.SubQuestion

	saved        *models.SurveyAttempt
	savedBatches [][]*models.Response
}

func (s *stubSubmissionStore) GetSurvey(id string) (*models.Survey, error) {
	return s.surveys[id], nil
}

func (s *stubSubmissionStore) GetQuestion(id string) (*models.Question, error) {
	return s.questions[id], nil
}

func (s *stubSubmissionStore) GetSubQuestion(id string) (*models.SubQuestion, error) {
	return s.subs[id], nil
}

func (s *stubSubmissionStore) SaveSubmission(a *models.SurveyAttempt, rs []*models.Response) error {
	s.saved = a
	s.savedBatches = append(s.savedBatches, rs)
	return nil
}

// newPipelineFixture wires the full pipeline over stub storage: a survey with
// the two screening questions, one bounded integer question and one closed
// question with two options.
func newPipelineFixture(t *testing.T) (*SubmissionService, *stubSubmissionStore) {
	t.Helper()
	store := &stubSubmissionStore{
		stubGateStore: stubGateStore{
			questions: map[models.ScreeningRole]*models.Question{
				models.ScreeningResidency: {ID: "q-res", SurveyID: "s1", Type: models.QuestionClosed, ScreeningRole: models.ScreeningResidency},
				models.ScreeningBirthDate: {ID: "q-birth", SurveyID: "s1", Type: models.QuestionBirthDate, ScreeningRole: models.ScreeningBirthDate},
			},
			options: map[string]*models.Option{
				"opt-yes": {ID: "opt-yes", QuestionID: "q-res", Text: "Si"},
				"opt-no":  {ID: "opt-no", QuestionID: "q-res", Text: "No"},
				"opt-a":   {ID: "opt-a", QuestionID: "q-closed", Text: "opcion a"},
				"opt-b":   {ID: "opt-b", QuestionID: "q-closed", Text: "opcion b"},
			},
		},
		surveys: map[string]*models.Survey{"s1": {ID: "s1", Name: "HOUSEHOLD"}},
		questions: map[string]*models.Question{
			"q-int":    {ID: "q-int", SurveyID: "s1", Type: models.QuestionOpen, DataType: models.DataInteger, MinValue: intp(0), MaxValue: intp(20)},
			"q-closed": {ID: "q-closed", SurveyID: "s1", Type: models.QuestionClosed},
			"q-alien":  {ID: "q-alien", SurveyID: "s2", Type: models.QuestionOpen, DataType: models.DataText},
		},
	}
	store.questions["q-res"] = store.stubGateStore.questions[models.ScreeningResidency]
	store.questions["q-birth"] = store.stubGateStore.questions[models.ScreeningBirthDate]

	gate := NewEligibilityGate(store, GateConfig{MinimumAge: 18})
	gate.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }
	seq := 0
	gate.idGen = func() string { seq++; return fmt.Sprintf("att-%d", seq) }

	validator := NewAnswerValidator(store, geo.NewRegistry(), ValidatorConfig{DomesticCountryCode: 170})

	svc := NewSubmissionService(store, gate, validator)
	svc.now = gate.now
	rseq := 0
	svc.idGen = func() string { rseq++; return fmt.Sprintf("resp-%d", rseq) }
	return svc, store
}

func screeningAnswers() []AnswerInput {
	return []AnswerInput{
		{SurveyID: "s1", QuestionID: "q-res", OptionSelected: "opt-yes"},
		{SurveyID: "s1", QuestionID: "q-birth", Answer: "1990-06-15"},
	}
}

func TestProcessCompletesAtomically(t *testing.T) {
	svc, store := newPipelineFixture(t)
	batch := append(screeningAnswers(),
		AnswerInput{SurveyID: "s1", QuestionID: "q-int", Answer: "4"},
		AnswerInput{SurveyID: "s1", QuestionID: "q-closed", OptionSelected: "opt-a"},
	)

	res, err := svc.Process("u1", batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("want %s, got %s", StatusCompleted, res.Status)
	}
	if len(store.savedBatches) != 1 {
		t.Fatalf("want one atomic save, got %d", len(store.savedBatches))
	}
	rs := store.savedBatches[0]
	if len(rs) != 2 || len(res.ResponseIDs) != 2 {
		t.Fatalf("want 2 responses persisted, got %d (%d ids)", len(rs), len(res.ResponseIDs))
	}
	if store.saved == nil || store.saved.ID != res.AttemptID {
		t.Fatalf("the attempt must be committed with the responses")
	}
	for _, r := range rs {
		if r.SurveyAttemptID != store.saved.ID {
			t.Fatalf("response %s not linked to attempt", r.ID)
		}
	}
}

func TestProcessRejectionsShortCircuit(t *testing.T) {
	svc, store := newPipelineFixture(t)
	batch := []AnswerInput{
		{SurveyID: "s1", QuestionID: "q-res", OptionSelected: "opt-no"},
		{SurveyID: "s1", QuestionID: "q-int", Answer: "not even a number"},
	}

	res, err := svc.Process("u1", batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusRejectedResidency {
		t.Fatalf("want %s, got %s", StatusRejectedResidency, res.Status)
	}
	// the invalid remaining answer was never validated, and nothing beyond
	// the rejection record was written
	if len(store.savedBatches) != 0 {
		t.Fatalf("no responses may be saved for a rejected batch")
	}
	if len(store.attempts) != 1 {
		t.Fatalf("the rejection itself must be recorded")
	}
	if res.AttemptID == "" {
		t.Fatalf("the rejection result should reference its attempt")
	}
}

func TestProcessCollectsAllFailures(t *testing.T) {
	svc, store := newPipelineFixture(t)
	batch := append(screeningAnswers(),
		AnswerInput{SurveyID: "s1", QuestionID: "q-int", Answer: "21"},            // above max
		AnswerInput{SurveyID: "s1", QuestionID: "q-closed", OptionSelected: "zz"}, // unknown option
		AnswerInput{SurveyID: "s1", QuestionID: "q-missing", Answer: "x"},         // unknown question
		AnswerInput{SurveyID: "s1", QuestionID: "q-alien", Answer: "x"},           // belongs to another survey
	)

	_, err := svc.Process("u1", batch)
	be, ok := AsBatchValidationError(err)
	if !ok {
		t.Fatalf("expected BatchValidationError, got %v", err)
	}
	if len(be.Errors) != 4 {
		t.Fatalf("want all 4 failures reported, got %d: %v", len(be.Errors), be)
	}
	if len(store.savedBatches) != 0 || len(store.attempts) != 0 {
		t.Fatalf("nothing may persist when any answer fails")
	}
}

func TestProcessRejectsDuplicateAnswers(t *testing.T) {
	svc, _ := newPipelineFixture(t)
	batch := append(screeningAnswers(),
		AnswerInput{SurveyID: "s1", QuestionID: "q-int", Answer: "4"},
		AnswerInput{SurveyID: "s1", QuestionID: "q-int", Answer: "5"},
	)

	_, err := svc.Process("u1", batch)
	be, ok := AsBatchValidationError(err)
	if !ok {
		t.Fatalf("expected BatchValidationError, got %v", err)
	}
	if len(be.Errors) != 1 || be.Errors[0].QuestionID != "q-int" {
		t.Fatalf("want a single duplicate failure for q-int, got %v", be)
	}
}

func TestProcessInputChecks(t *testing.T) {
	svc, _ := newPipelineFixture(t)

	if _, err := svc.Process("u1", nil); err == nil {
		t.Fatalf("empty batch must fail")
	}

	_, err := svc.Process("u1", []AnswerInput{{SurveyID: "s-unknown", QuestionID: "q"}})
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorNotFound {
		t.Fatalf("unknown survey: want not_found, got %v", err)
	}
}

func TestProcessBirthDateRequired(t *testing.T) {
	svc, store := newPipelineFixture(t)
	res, err := svc.Process("u1", []AnswerInput{
		{SurveyID: "s1", QuestionID: "q-res", OptionSelected: "opt-yes"},
		{SurveyID: "s1", QuestionID: "q-int", Answer: "4"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusBirthDateRequired {
		t.Fatalf("want %s, got %s", StatusBirthDateRequired, res.Status)
	}
	if len(store.attempts) != 0 || len(store.savedBatches) != 0 {
		t.Fatalf("the mid-flow state must not persist anything")
	}
}
