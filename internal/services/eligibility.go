package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/appdiversa/diversa-server/internal/models"
)

// SubmissionStatus is the terminal state of one submission batch.
type SubmissionStatus string

const (
	StatusEligible          SubmissionStatus = "eligible"
	StatusCompleted         SubmissionStatus = "completed"
	StatusRejectedResidency SubmissionStatus = "rejected_residency"
	StatusRejectedAge       SubmissionStatus = "rejected_age"
	StatusBirthDateRequired SubmissionStatus = "birth_date_required"
)

// GateStore is the persistence slice the eligibility gate needs. Screening
// questions are resolved by role tag, never by question text or id.
type GateStore interface {
	GetScreeningQuestion(surveyID string, role models.ScreeningRole) (*models.Question, error)
	GetOption(id string) (*models.Option, error)
	CreateAttempt(a *models.SurveyAttempt) error
}

// GateConfig carries the screening thresholds.
type GateConfig struct {
	MinimumAge       int
	NegativeSentinel string
	BirthDateLayout  string
}

// ScreeningOutcome is the gate's decision for one batch. Rejection outcomes
// are persisted by the gate itself; an eligible outcome carries an unsaved
// attempt that the caller commits together with the batch's responses.
type ScreeningOutcome struct {
	Status    SubmissionStatus
	Reason    string
	Attempt   *models.SurveyAttempt
	Remaining []AnswerInput
}

// EligibilityGate runs the two-step residency + age screening that decides
// whether any answer of a batch may be persisted.
type EligibilityGate struct {
	store GateStore
	cfg   GateConfig
	now   func() time.Time
	idGen func() string
}

func NewEligibilityGate(store GateStore, cfg GateConfig) *EligibilityGate {
	if cfg.MinimumAge == 0 {
		cfg.MinimumAge = 18
	}
	if cfg.NegativeSentinel == "" {
		cfg.NegativeSentinel = "no"
	}
	if cfg.BirthDateLayout == "" {
		cfg.BirthDateLayout = "2006-01-02"
	}
	return &EligibilityGate{
		store: store,
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
		idGen: newID,
	}
}

// Screen inspects the batch's screening answers before anything else runs.
// The residency question is evaluated first; only when it passes is the
// birth date required and checked. Every terminal outcome writes a
// SurveyAttempt row so repeated attempts stay traceable.
func (g *EligibilityGate) Screen(userID, surveyID string, batch []AnswerInput) (*ScreeningOutcome, error) {
	residencyQ, err := g.store.GetScreeningQuestion(surveyID, models.ScreeningResidency)
	if err != nil {
		return nil, err
	}
	birthQ, err := g.store.GetScreeningQuestion(surveyID, models.ScreeningBirthDate)
	if err != nil {
		return nil, err
	}
	if residencyQ == nil || birthQ == nil {
		return nil, fmt.Errorf("survey %s is missing its screening questions", surveyID)
	}

	var residencyAns, birthAns *AnswerInput
	remaining := make([]AnswerInput, 0, len(batch))
	for i := range batch {
		in := batch[i]
		switch in.QuestionID {
		case residencyQ.ID:
			residencyAns = &in
		case birthQ.ID:
			birthAns = &in
		default:
			remaining = append(remaining, in)
		}
	}

	if residencyAns == nil || residencyAns.OptionSelected == "" {
		return nil, &BatchValidationError{Errors: []*AnswerError{{
			QuestionID: residencyQ.ID, Field: "option_selected", Code: CodeMissingScreeningAnswer,
			Message: "the residency screening question must be answered",
		}}}
	}
	opt, err := g.store.GetOption(residencyAns.OptionSelected)
	if err != nil {
		return nil, err
	}
	if opt == nil || opt.QuestionID != residencyQ.ID {
		return nil, &BatchValidationError{Errors: []*AnswerError{{
			QuestionID: residencyQ.ID, Field: "option_selected", Code: CodeInvalidOption,
			Message: "the selected residency option does not belong to the screening question",
		}}}
	}

	if strings.EqualFold(strings.TrimSpace(opt.Text), g.cfg.NegativeSentinel) {
		attempt := &models.SurveyAttempt{
			ID:                 g.idGen(),
			UserID:             userID,
			SurveyID:           surveyID,
			HasLivedInColombia: false,
			RejectionNote:      "the participant has not lived in the country for the required period",
			CreatedAt:          g.now(),
		}
		if err := g.store.CreateAttempt(attempt); err != nil {
			return nil, err
		}
		return &ScreeningOutcome{Status: StatusRejectedResidency, Reason: attempt.RejectionNote, Attempt: attempt}, nil
	}

	if birthAns == nil || strings.TrimSpace(birthAns.Answer) == "" {
		// Residency passed but the date is still missing. This is a
		// legitimate mid-flow state, not a rejection, so no record is kept.
		return &ScreeningOutcome{Status: StatusBirthDateRequired, Reason: "the birth date is required to continue"}, nil
	}

	birthDate, err := time.Parse(g.cfg.BirthDateLayout, strings.TrimSpace(birthAns.Answer))
	if err != nil {
		return nil, &BatchValidationError{Errors: []*AnswerError{{
			QuestionID: birthQ.ID, Field: "answer", Code: CodeInvalidDate,
			Message: fmt.Sprintf("the birth date must match %s", g.cfg.BirthDateLayout),
		}}}
	}
	now := g.now()
	if birthDate.After(now) {
		return nil, &BatchValidationError{Errors: []*AnswerError{{
			QuestionID: birthQ.ID, Field: "answer", Code: CodeInvalidDate,
			Message: "the birth date cannot be in the future",
		}}}
	}

	age := AgeInYears(birthDate, now)
	if age < g.cfg.MinimumAge {
		attempt := &models.SurveyAttempt{
			ID:                 g.idGen(),
			UserID:             userID,
			SurveyID:           surveyID,
			HasLivedInColombia: true,
			BirthDate:          &birthDate,
			RejectionNote:      fmt.Sprintf("the participant is %d years old, below the minimum age of %d", age, g.cfg.MinimumAge),
			CreatedAt:          now,
		}
		if err := g.store.CreateAttempt(attempt); err != nil {
			return nil, err
		}
		return &ScreeningOutcome{Status: StatusRejectedAge, Reason: attempt.RejectionNote, Attempt: attempt}, nil
	}

	attempt := &models.SurveyAttempt{
		ID:                 g.idGen(),
		UserID:             userID,
		SurveyID:           surveyID,
		HasLivedInColombia: true,
		BirthDate:          &birthDate,
		CreatedAt:          now,
	}
	return &ScreeningOutcome{Status: StatusEligible, Attempt: attempt, Remaining: remaining}, nil
}

// AgeInYears computes whole calendar years between birth and now: the year
// difference, minus one if this year's birthday has not yet occurred.
func AgeInYears(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}
