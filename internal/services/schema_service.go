package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/appdiversa/diversa-server/internal/models"
)

// SchemaStore persists the questionnaire definition.
type SchemaStore interface {
	InsertSurvey(sv *models.Survey) error
	GetSurvey(id string) (*models.Survey, error)
	ListSurveys() ([]*models.Survey, error)
	InsertChapter(c *models.Chapter) error
	GetChapter(id string) (*models.Chapter, error)
	InsertQuestion(q *models.Question) error
	GetQuestion(id string) (*models.Question, error)
	ListQuestions(surveyID string) ([]*models.Question, error)
	GetScreeningQuestion(surveyID string, role models.ScreeningRole) (*models.Question, error)
	InsertSubQuestion(sq *models.SubQuestion) error
	GetSubQuestion(id string) (*models.SubQuestion, error)
	ListSubQuestions(parentQuestionID string) ([]*models.SubQuestion, error)
	InsertOption(o *models.Option) error
	GetOption(id string) (*models.Option, error)
	ListOptions(questionID, subQuestionID string) ([]*models.Option, error)
}

// SchemaService enforces the questionnaire's structural legality at write
// time. Violations are questionnaire-definition defects, reported as
// conflict/invalid errors to the admin client.
type SchemaService struct {
	store         SchemaStore
	otherSentinel string
	now           func() time.Time
	idGen         func() string
}

func NewSchemaService(store SchemaStore, otherSentinel string) *SchemaService {
	if otherSentinel == "" {
		otherSentinel = "Otro"
	}
	return &SchemaService{
		store:         store,
		otherSentinel: otherSentinel,
		now:           func() time.Time { return time.Now().UTC() },
		idGen:         newID,
	}
}

// CreateSurvey stores a survey with name and title upper-cased, matching
// how the questionnaire is displayed.
func (s *SchemaService) CreateSurvey(sv *models.Survey) (*models.Survey, error) {
	if sv == nil || strings.TrimSpace(sv.Name) == "" {
		return nil, NewInvalidError("survey name is required")
	}
	sv.Name = strings.ToUpper(strings.TrimSpace(sv.Name))
	sv.Title = strings.ToUpper(strings.TrimSpace(sv.Title))
	if sv.ID == "" {
		sv.ID = s.idGen()
	}
	sv.CreatedAt = s.now()
	if err := s.store.InsertSurvey(sv); err != nil {
		return nil, err
	}
	return sv, nil
}

func (s *SchemaService) GetSurvey(id string) (*models.Survey, error) {
	sv, err := s.store.GetSurvey(id)
	if err != nil {
		return nil, err
	}
	if sv == nil {
		return nil, NewNotFoundError("survey not found")
	}
	return sv, nil
}

func (s *SchemaService) ListSurveys() ([]*models.Survey, error) {
	return s.store.ListSurveys()
}

func (s *SchemaService) CreateChapter(c *models.Chapter) (*models.Chapter, error) {
	if c == nil || strings.TrimSpace(c.Name) == "" {
		return nil, NewInvalidError("chapter name is required")
	}
	sv, err := s.store.GetSurvey(c.SurveyID)
	if err != nil {
		return nil, err
	}
	if sv == nil {
		return nil, NewNotFoundError("survey not found")
	}
	if c.ID == "" {
		c.ID = s.idGen()
	}
	c.CreatedAt = s.now()
	if err := s.store.InsertChapter(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *SchemaService) CreateQuestion(q *models.Question) (*models.Question, error) {
	if q == nil || strings.TrimSpace(q.Text) == "" {
		return nil, NewInvalidError("question text is required")
	}
	if !validQuestionType(q.Type) {
		return nil, NewInvalidError(fmt.Sprintf("unknown question type %q", q.Type))
	}
	sv, err := s.store.GetSurvey(q.SurveyID)
	if err != nil {
		return nil, err
	}
	if sv == nil {
		return nil, NewNotFoundError("survey not found")
	}
	if q.ChapterID != "" {
		ch, err := s.store.GetChapter(q.ChapterID)
		if err != nil {
			return nil, err
		}
		if ch == nil {
			return nil, NewNotFoundError("chapter not found")
		}
		if ch.SurveyID != q.SurveyID {
			return nil, NewConflictError("the chapter does not belong to the question's survey")
		}
	}
	if q.IsMultiple && q.Type != models.QuestionClosed {
		return nil, NewConflictError("is_multiple is only legal for closed questions")
	}
	if q.GeographyType != "" && !q.IsGeographic {
		return nil, NewConflictError("geography_type requires is_geographic")
	}
	if q.GeographyType != "" && !validGeographyLevel(q.GeographyType) {
		return nil, NewInvalidError(fmt.Sprintf("unknown geography type %q", q.GeographyType))
	}
	if q.MatrixLayout != "" && q.Type != models.QuestionMatrix {
		return nil, NewConflictError("matrix_layout_type is only legal for matrix questions")
	}
	if q.MinValue != nil && q.MaxValue != nil && *q.MinValue > *q.MaxValue {
		return nil, NewInvalidError("min_value cannot exceed max_value")
	}
	if q.ScreeningRole != models.ScreeningNone {
		if q.ScreeningRole != models.ScreeningResidency && q.ScreeningRole != models.ScreeningBirthDate {
			return nil, NewInvalidError(fmt.Sprintf("unknown screening role %q", q.ScreeningRole))
		}
		existing, err := s.store.GetScreeningQuestion(q.SurveyID, q.ScreeningRole)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, NewConflictError(fmt.Sprintf("the survey already has a %s screening question", q.ScreeningRole))
		}
	}
	if q.ID == "" {
		q.ID = s.idGen()
	}
	q.CreatedAt = s.now()
	if err := s.store.InsertQuestion(q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *SchemaService) ListQuestions(surveyID string) ([]*models.Question, error) {
	return s.store.ListQuestions(surveyID)
}

// CreateSubQuestion attaches a subquestion to a matrix parent. The custom
// identifier must be unique among the parent's subquestions only.
func (s *SchemaService) CreateSubQuestion(sq *models.SubQuestion) (*models.SubQuestion, error) {
	if sq == nil || strings.TrimSpace(sq.Text) == "" {
		return nil, NewInvalidError("subquestion text is required")
	}
	parent, err := s.store.GetQuestion(sq.ParentQuestionID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, NewNotFoundError("parent question not found")
	}
	if parent.Type != models.QuestionMatrix {
		return nil, NewConflictError("only matrix questions can have subquestions")
	}
	if !validQuestionType(sq.Type) {
		return nil, NewInvalidError(fmt.Sprintf("unknown question type %q", sq.Type))
	}
	if sq.MinValue != nil && sq.MaxValue != nil && *sq.MinValue > *sq.MaxValue {
		return nil, NewInvalidError("min_value cannot exceed max_value")
	}
	if sq.CustomIdentifier != "" {
		siblings, err := s.store.ListSubQuestions(parent.ID)
		if err != nil {
			return nil, err
		}
		for _, sib := range siblings {
			if sib.CustomIdentifier == sq.CustomIdentifier {
				return nil, NewConflictError(fmt.Sprintf("identifier %q is already used within this question", sq.CustomIdentifier))
			}
		}
	}
	if sq.ID == "" {
		sq.ID = s.idGen()
	}
	sq.CreatedAt = s.now()
	if err := s.store.InsertSubQuestion(sq); err != nil {
		return nil, err
	}
	return sq, nil
}

// CreateOption attaches an option to a question or a subquestion. Setting
// both is legal only when the subquestion actually belongs to the question.
func (s *SchemaService) CreateOption(o *models.Option) (*models.Option, error) {
	if o == nil || strings.TrimSpace(o.Text) == "" {
		return nil, NewInvalidError("option text is required")
	}
	if o.QuestionID == "" && o.SubQuestionID == "" {
		return nil, NewInvalidError("an option must be attached to a question or a subquestion")
	}
	if o.QuestionID != "" {
		q, err := s.store.GetQuestion(o.QuestionID)
		if err != nil {
			return nil, err
		}
		if q == nil {
			return nil, NewNotFoundError("question not found")
		}
	}
	if o.SubQuestionID != "" {
		sq, err := s.store.GetSubQuestion(o.SubQuestionID)
		if err != nil {
			return nil, err
		}
		if sq == nil {
			return nil, NewNotFoundError("subquestion not found")
		}
		if o.QuestionID != "" && sq.ParentQuestionID != o.QuestionID {
			return nil, NewConflictError("the subquestion does not belong to the given question")
		}
	}
	if o.OptionType != "" && !validGeographyLevel(o.OptionType) {
		return nil, NewInvalidError(fmt.Sprintf("unknown option type %q", o.OptionType))
	}
	if o.IsOther && !strings.EqualFold(strings.TrimSpace(o.Text), s.otherSentinel) {
		return nil, NewConflictError(fmt.Sprintf("an %q option must carry the text %q", "other", s.otherSentinel))
	}
	if o.ID == "" {
		o.ID = s.idGen()
	}
	o.CreatedAt = s.now()
	if err := s.store.InsertOption(o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *SchemaService) ListSubQuestions(parentQuestionID string) ([]*models.SubQuestion, error) {
	return s.store.ListSubQuestions(parentQuestionID)
}

func (s *SchemaService) ListOptions(questionID, subQuestionID string) ([]*models.Option, error) {
	return s.store.ListOptions(questionID, subQuestionID)
}

func validQuestionType(t models.QuestionType) bool {
	switch t {
	case models.QuestionOpen, models.QuestionClosed, models.QuestionLikert,
		models.QuestionRating, models.QuestionMatrix, models.QuestionBirthDate,
		models.QuestionMultiple:
		return true
	}
	return false
}

func validGeographyLevel(l models.GeographyLevel) bool {
	switch l {
	case models.GeoCountry, models.GeoDepartment, models.GeoMunicipality:
		return true
	}
	return false
}
