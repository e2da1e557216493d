package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/appdiversa/diversa-server/internal/models"
)

// AnswerInput mirrors one submitted answer exactly as it arrived. Inputs are
// never mutated during validation; the validator builds a separate
// NormalizedAnswer instead.
type AnswerInput struct {
	SurveyID         string   `json:"survey_id"`
	QuestionID       string   `json:"question_id"`
	SubQuestionID    string   `json:"subquestion_id,omitempty"`
	Answer           string   `json:"answer,omitempty"`
	OptionSelected   string   `json:"option_selected,omitempty"`
	OptionsSelected  []string `json:"options_multiple_selected,omitempty"`
	CountryCode      *int     `json:"country_code,omitempty"`
	DepartmentCode   *int     `json:"department_code,omitempty"`
	MunicipalityCode *int     `json:"municipality_code,omitempty"`
	OtherText        string   `json:"other_text,omitempty"`
}

// NormalizedAnswer is the strongly-typed persisted shape produced for one
// valid answer. Exactly one of Text, Number, OptionID or OptionIDs is set.
type NormalizedAnswer struct {
	QuestionID       string
	SubQuestionID    string
	Text             *string
	Number           *int
	OptionID         string
	OptionIDs        []string
	CountryCode      *int
	DepartmentCode   *int
	MunicipalityCode *int
	NewDepartment    *int
	NewMunicipality  *int
	OtherText        string
}

// OptionLookup resolves questionnaire structure referenced by answers.
// Misses are (nil, nil); errors are store failures.
type OptionLookup interface {
	GetOption(id string) (*models.Option, error)
	GetSubQuestion(id string) (*models.SubQuestion, error)
}

// GeoLookup is the slice of the geo registry the validator needs.
type GeoLookup interface {
	ResolveCountry(code int) (*models.Country, bool)
	ResolveDepartment(code, countryCode int) (*models.Department, bool)
	ResolveMunicipality(code, departmentCode int) (*models.Municipality, bool)
}

// ValidatorConfig carries the domain knobs the validator branches on.
type ValidatorConfig struct {
	DomesticCountryCode int
	NegativeSentinel    string
	OtherSentinel       string
	BirthDateLayout     string
}

// AnswerValidator decides the persisted shape of each answer and enforces
// the question's declared constraints. It is a pure function of the
// question, the input and the read-only lookups.
type AnswerValidator struct {
	options OptionLookup
	geo     GeoLookup
	cfg     ValidatorConfig
}

func NewAnswerValidator(options OptionLookup, geo GeoLookup, cfg ValidatorConfig) *AnswerValidator {
	if cfg.NegativeSentinel == "" {
		cfg.NegativeSentinel = "no"
	}
	if cfg.BirthDateLayout == "" {
		cfg.BirthDateLayout = "2006-01-02"
	}
	return &AnswerValidator{options: options, geo: geo, cfg: cfg}
}

// answerRules is the constraint set an answer is checked against. For plain
// questions it comes from the question itself; for matrix questions it is
// lifted from the addressed subquestion.
type answerRules struct {
	Type     models.QuestionType
	DataType models.DataType
	Min      *int
	Max      *int
	Multiple bool
	IsOther  bool
	// ownership target for option answers
	questionID    string
	subQuestionID string
}

// Validate checks one (question, input) pair and produces its normalized
// shape. A *AnswerError return means the input is invalid; any other error
// is a store failure.
func (v *AnswerValidator) Validate(q *models.Question, in AnswerInput) (*NormalizedAnswer, error) {
	na := &NormalizedAnswer{QuestionID: q.ID}

	if q.IsGeographic {
		return v.validateGeographic(q, in, na)
	}

	if q.Type == models.QuestionMatrix {
		return v.validateMatrix(q, in, na)
	}

	rules := answerRules{
		Type:       q.Type,
		DataType:   q.DataType,
		Min:        q.MinValue,
		Max:        q.MaxValue,
		Multiple:   q.IsMultiple || q.Type == models.QuestionMultiple,
		questionID: q.ID,
	}
	if err := v.applyRules(rules, in, na); err != nil {
		return nil, err
	}
	return na, nil
}

func (v *AnswerValidator) validateMatrix(q *models.Question, in AnswerInput, na *NormalizedAnswer) (*NormalizedAnswer, error) {
	if in.SubQuestionID == "" {
		return nil, &AnswerError{
			QuestionID: q.ID, Field: "subquestion_id", Code: CodeMissingAnswer,
			Message: "matrix questions are answered per subquestion",
		}
	}
	sub, err := v.options.GetSubQuestion(in.SubQuestionID)
	if err != nil {
		return nil, err
	}
	if sub == nil || sub.ParentQuestionID != q.ID {
		return nil, &AnswerError{
			QuestionID: q.ID, SubQuestionID: in.SubQuestionID, Field: "subquestion_id",
			Code: CodeInvalidOption, Message: "subquestion does not belong to this question",
		}
	}
	na.SubQuestionID = sub.ID

	rules := answerRules{
		Type:          sub.Type,
		DataType:      sub.DataType,
		Min:           sub.MinValue,
		Max:           sub.MaxValue,
		Multiple:      sub.Type == models.QuestionMultiple,
		IsOther:       sub.IsOther,
		questionID:    q.ID,
		subQuestionID: sub.ID,
	}
	if err := v.applyRules(rules, in, na); err != nil {
		return nil, err
	}
	if sub.IsOther && strings.TrimSpace(in.OtherText) == "" {
		return nil, &AnswerError{
			QuestionID: q.ID, SubQuestionID: sub.ID, Field: "other_text",
			Code: CodeMissingOtherText, Message: "subquestion requires a free-text answer",
		}
	}
	return na, nil
}

func (v *AnswerValidator) applyRules(rules answerRules, in AnswerInput, na *NormalizedAnswer) error {
	switch rules.Type {
	case models.QuestionOpen:
		return v.validateOpen(rules, in, na)
	case models.QuestionClosed:
		if rules.Multiple {
			return v.validateMultiOption(rules, in, na)
		}
		return v.validateSingleOption(rules, in, na)
	case models.QuestionMultiple:
		return v.validateMultiOption(rules, in, na)
	case models.QuestionLikert, models.QuestionRating:
		return v.validateNumber(rules, in, na)
	case models.QuestionBirthDate:
		return v.validateBirthDate(rules, in, na)
	default:
		return &AnswerError{
			QuestionID: rules.questionID, SubQuestionID: rules.subQuestionID, Field: "question_type",
			Code: CodeSchemaViolation, Message: fmt.Sprintf("unhandled question type %q", rules.Type),
		}
	}
}

func (v *AnswerValidator) validateOpen(rules answerRules, in AnswerInput, na *NormalizedAnswer) error {
	switch rules.DataType {
	case models.DataInteger:
		return v.validateNumber(rules, in, na)
	default: // text
		text := strings.TrimSpace(in.Answer)
		if text == "" {
			return &AnswerError{
				QuestionID: rules.questionID, SubQuestionID: rules.subQuestionID, Field: "answer",
				Code: CodeMissingAnswer, Message: "a text answer is required",
			}
		}
		na.Text = &text
		return nil
	}
}

func (v *AnswerValidator) validateNumber(rules answerRules, in AnswerInput, na *NormalizedAnswer) error {
	n, err := strconv.Atoi(strings.TrimSpace(in.Answer))
	if err != nil {
		return &AnswerError{
			QuestionID: rules.questionID, SubQuestionID: rules.subQuestionID, Field: "answer",
			Code: CodeNotANumber, Message: "the answer must be an integer",
		}
	}
	if rules.Min != nil && n < *rules.Min {
		return &AnswerError{
			QuestionID: rules.questionID, SubQuestionID: rules.subQuestionID, Field: "answer",
			Code: CodeOutOfRange, Message: fmt.Sprintf("the value must be greater than or equal to %d", *rules.Min),
		}
	}
	if rules.Max != nil && n > *rules.Max {
		return &AnswerError{
			QuestionID: rules.questionID, SubQuestionID: rules.subQuestionID, Field: "answer",
			Code: CodeOutOfRange, Message: fmt.Sprintf("the value must be less than or equal to %d", *rules.Max),
		}
	}
	na.Number = &n
	return nil
}

func (v *AnswerValidator) validateBirthDate(rules answerRules, in AnswerInput, na *NormalizedAnswer) error {
	raw := strings.TrimSpace(in.Answer)
	if raw == "" {
		return &AnswerError{
			QuestionID: rules.questionID, SubQuestionID: rules.subQuestionID, Field: "answer",
			Code: CodeMissingAnswer, Message: "a date is required",
		}
	}
	d, err := time.Parse(v.cfg.BirthDateLayout, raw)
	if err != nil {
		return &AnswerError{
			QuestionID: rules.questionID, SubQuestionID: rules.subQuestionID, Field: "answer",
			Code: CodeInvalidDate, Message: fmt.Sprintf("the date must match %s", v.cfg.BirthDateLayout),
		}
	}
	text := d.Format("2006-01-02")
	na.Text = &text
	return nil
}

// resolveOwnedOption resolves an option id and verifies it belongs to the
// rules' question (or subquestion, for matrix answers).
func (v *AnswerValidator) resolveOwnedOption(rules answerRules, id string) (*models.Option, *AnswerError, error) {
	opt, err := v.options.GetOption(id)
	if err != nil {
		return nil, nil, err
	}
	if opt == nil {
		return nil, &AnswerError{
			QuestionID: rules.questionID, SubQuestionID: rules.subQuestionID, Field: "option_selected",
			Code: CodeInvalidOption, Message: fmt.Sprintf("option %s does not exist", id),
		}, nil
	}
	owned := false
	if rules.subQuestionID != "" {
		owned = opt.SubQuestionID == rules.subQuestionID
	} else {
		owned = opt.QuestionID == rules.questionID
	}
	if !owned {
		return nil, &AnswerError{
			QuestionID: rules.questionID, SubQuestionID: rules.subQuestionID, Field: "option_selected",
			Code: CodeInvalidOption, Message: fmt.Sprintf("option %s does not belong to this question", id),
		}, nil
	}
	return opt, nil, nil
}

func (v *AnswerValidator) validateSingleOption(rules answerRules, in AnswerInput, na *NormalizedAnswer) error {
	if in.OptionSelected == "" {
		return &AnswerError{
			QuestionID: rules.questionID, SubQuestionID: rules.subQuestionID, Field: "option_selected",
			Code: CodeMissingAnswer, Message: "an option must be selected",
		}
	}
	opt, aerr, err := v.resolveOwnedOption(rules, in.OptionSelected)
	if err != nil {
		return err
	}
	if aerr != nil {
		return aerr
	}
	if opt.IsOther {
		if strings.TrimSpace(in.OtherText) == "" {
			return &AnswerError{
				QuestionID: rules.questionID, SubQuestionID: rules.subQuestionID, Field: "other_text",
				Code: CodeMissingOtherText, Message: "the selected option requires a free-text answer",
			}
		}
		na.OtherText = strings.TrimSpace(in.OtherText)
	}
	na.OptionID = opt.ID
	return nil
}

func (v *AnswerValidator) validateMultiOption(rules answerRules, in AnswerInput, na *NormalizedAnswer) error {
	if len(in.OptionsSelected) == 0 {
		return &AnswerError{
			QuestionID: rules.questionID, SubQuestionID: rules.subQuestionID, Field: "options_multiple_selected",
			Code: CodeMissingAnswer, Message: "at least one option must be selected",
		}
	}
	var invalid []string
	needsOther := false
	ids := make([]string, 0, len(in.OptionsSelected))
	for _, id := range in.OptionsSelected {
		opt, aerr, err := v.resolveOwnedOption(rules, id)
		if err != nil {
			return err
		}
		if aerr != nil {
			invalid = append(invalid, id)
			continue
		}
		if opt.IsOther {
			needsOther = true
		}
		ids = append(ids, opt.ID)
	}
	if len(invalid) > 0 {
		return &AnswerError{
			QuestionID: rules.questionID, SubQuestionID: rules.subQuestionID, Field: "options_multiple_selected",
			Code: CodeInvalidOption, Message: fmt.Sprintf("options do not belong to this question: %s", strings.Join(invalid, ", ")),
		}
	}
	if needsOther {
		if strings.TrimSpace(in.OtherText) == "" {
			return &AnswerError{
				QuestionID: rules.questionID, SubQuestionID: rules.subQuestionID, Field: "other_text",
				Code: CodeMissingOtherText, Message: "the selected options require a free-text answer",
			}
		}
		na.OtherText = strings.TrimSpace(in.OtherText)
	}
	na.OptionIDs = ids
	return nil
}

// validateGeographic handles questions flagged is_geographic. The selected
// option's type decides which location codes are mandatory; choosing the
// domestic country forces the full department+municipality drill-down. A
// residence-change question stores its location under new_department and
// new_municipality instead.
func (v *AnswerValidator) validateGeographic(q *models.Question, in AnswerInput, na *NormalizedAnswer) (*NormalizedAnswer, error) {
	rules := answerRules{Type: q.Type, questionID: q.ID}
	if in.OptionSelected == "" {
		return nil, &AnswerError{
			QuestionID: q.ID, Field: "option_selected",
			Code: CodeMissingAnswer, Message: "geographic questions require a selected option",
		}
	}
	opt, aerr, err := v.resolveOwnedOption(rules, in.OptionSelected)
	if err != nil {
		return nil, err
	}
	if aerr != nil {
		return nil, aerr
	}
	na.OptionID = opt.ID

	// The negative sentinel clears geography outright: "no" means there is
	// no location to record.
	if strings.EqualFold(strings.TrimSpace(opt.Text), v.cfg.NegativeSentinel) {
		return na, nil
	}

	if opt.IsOther && strings.TrimSpace(in.OtherText) == "" {
		return nil, &AnswerError{
			QuestionID: q.ID, Field: "other_text",
			Code: CodeMissingOtherText, Message: "the selected option requires a free-text answer",
		}
	}
	if opt.IsOther {
		na.OtherText = strings.TrimSpace(in.OtherText)
	}

	switch opt.OptionType {
	case models.GeoCountry:
		if in.CountryCode == nil {
			return nil, v.geoIncomplete(q, "country_code", "a country code is required")
		}
		country, ok := v.geo.ResolveCountry(*in.CountryCode)
		if !ok {
			return nil, v.geoIncomplete(q, "country_code", fmt.Sprintf("unknown country code %d", *in.CountryCode))
		}
		na.CountryCode = in.CountryCode
		if country.NumericCode == v.cfg.DomesticCountryCode {
			if err := v.requireDrillDown(q, in, na); err != nil {
				return nil, err
			}
		}
	case models.GeoDepartment, models.GeoMunicipality:
		// Departments and municipalities only exist for the domestic
		// country, so the full drill-down applies.
		if in.CountryCode != nil {
			if _, ok := v.geo.ResolveCountry(*in.CountryCode); !ok {
				return nil, v.geoIncomplete(q, "country_code", fmt.Sprintf("unknown country code %d", *in.CountryCode))
			}
			na.CountryCode = in.CountryCode
		}
		if err := v.requireDrillDown(q, in, na); err != nil {
			return nil, err
		}
	default:
		// Option carries no geography level; any provided codes still have
		// to resolve.
		if in.CountryCode != nil {
			if _, ok := v.geo.ResolveCountry(*in.CountryCode); !ok {
				return nil, v.geoIncomplete(q, "country_code", fmt.Sprintf("unknown country code %d", *in.CountryCode))
			}
			na.CountryCode = in.CountryCode
		}
	}
	return na, nil
}

// requireDrillDown enforces the department+municipality pair and their
// hierarchy, writing into the regular or the residence-change fields.
func (v *AnswerValidator) requireDrillDown(q *models.Question, in AnswerInput, na *NormalizedAnswer) error {
	if in.DepartmentCode == nil {
		return v.geoIncomplete(q, "department_code", "a department code is required")
	}
	countryCode := 0
	if in.CountryCode != nil {
		countryCode = *in.CountryCode
	}
	if _, ok := v.geo.ResolveDepartment(*in.DepartmentCode, countryCode); !ok {
		return v.geoIncomplete(q, "department_code", fmt.Sprintf("unknown department code %d", *in.DepartmentCode))
	}
	if in.MunicipalityCode == nil {
		return v.geoIncomplete(q, "municipality_code", "a municipality code is required")
	}
	if _, ok := v.geo.ResolveMunicipality(*in.MunicipalityCode, *in.DepartmentCode); !ok {
		return v.geoIncomplete(q, "municipality_code",
			fmt.Sprintf("municipality %d does not belong to department %d", *in.MunicipalityCode, *in.DepartmentCode))
	}
	if q.IsResidenceChange {
		na.NewDepartment = in.DepartmentCode
		na.NewMunicipality = in.MunicipalityCode
	} else {
		na.DepartmentCode = in.DepartmentCode
		na.MunicipalityCode = in.MunicipalityCode
	}
	return nil
}

func (v *AnswerValidator) geoIncomplete(q *models.Question, field, msg string) *AnswerError {
	return &AnswerError{QuestionID: q.ID, Field: field, Code: CodeGeographyIncomplete, Message: msg}
}
