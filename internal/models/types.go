package models

import "time"

// QuestionType classifies how a question is answered.
type QuestionType string

const (
	QuestionOpen      QuestionType = "open"
	QuestionClosed    QuestionType = "closed"
	QuestionLikert    QuestionType = "likert"
	QuestionRating    QuestionType = "rating"
	QuestionMatrix    QuestionType = "matrix"
	QuestionBirthDate QuestionType = "birth_date"
	QuestionMultiple  QuestionType = "multiple"
)

// DataType constrains open answers.
type DataType string

const (
	DataInteger DataType = "integer"
	DataText    DataType = "text"
)

// MatrixLayout is the visual arrangement of a matrix question.
type MatrixLayout string

const (
	MatrixRow    MatrixLayout = "row"
	MatrixColumn MatrixLayout = "column"
)

// GeographyLevel is the administrative level a question or option operates at.
type GeographyLevel string

const (
	GeoCountry      GeographyLevel = "COUNTRY"
	GeoDepartment   GeographyLevel = "DEPARTMENT"
	GeoMunicipality GeographyLevel = "MUNICIPALITY"
)

// ScreeningRole tags the questions that gate survey access. Screening
// questions are resolved by role, never by text or hardcoded id.
type ScreeningRole string

const (
	ScreeningNone      ScreeningRole = ""
	ScreeningResidency ScreeningRole = "residency"
	ScreeningBirthDate ScreeningRole = "birth_date"
)

// Survey owns chapters and questions. Name and title are stored upper-cased.
type Survey struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Title            string    `json:"title"`
	DescriptionName  string    `json:"description_name,omitempty"`
	DescriptionTitle string    `json:"description_title,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Chapter groups questions inside a survey. Purely organizational.
type Chapter struct {
	ID          string    `json:"id"`
	SurveyID    string    `json:"survey_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Question struct {
	ID                string         `json:"id"`
	SurveyID          string         `json:"survey_id"`
	ChapterID         string         `json:"chapter_id,omitempty"`
	Order             int            `json:"order"`
	Text              string         `json:"text"`
	Instruction       string         `json:"instruction,omitempty"`
	Note              string         `json:"note,omitempty"`
	Type              QuestionType   `json:"question_type"`
	MatrixLayout      MatrixLayout   `json:"matrix_layout_type,omitempty"`
	DataType          DataType       `json:"data_type,omitempty"`
	MinValue          *int           `json:"min_value,omitempty"`
	MaxValue          *int           `json:"max_value,omitempty"`
	IsMultiple        bool           `json:"is_multiple,omitempty"`
	IsRequired        bool           `json:"is_required,omitempty"`
	IsGeographic      bool           `json:"is_geographic,omitempty"`
	GeographyType     GeographyLevel `json:"geography_type,omitempty"`
	ScreeningRole     ScreeningRole  `json:"screening_role,omitempty"`
	IsResidenceChange bool           `json:"is_residence_change,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// SubQuestion belongs to a matrix question and carries its own answer rules.
type SubQuestion struct {
	ID               string       `json:"id"`
	ParentQuestionID string       `json:"parent_question_id"`
	Order            int          `json:"order"`
	Text             string       `json:"text"`
	Type             QuestionType `json:"question_type"`
	DataType         DataType     `json:"data_type,omitempty"`
	MinValue         *int         `json:"min_value,omitempty"`
	MaxValue         *int         `json:"max_value,omitempty"`
	Required         bool         `json:"is_required,omitempty"`
	IsOther          bool         `json:"is_other,omitempty"`
	CustomIdentifier string       `json:"custom_identifier,omitempty"` // unique among siblings, e.g. "17.1"
	CreatedAt        time.Time    `json:"created_at"`
}

// Option is a selectable choice for a question or for a matrix subquestion,
// never neither. OptionType tags geographic options with their level.
type Option struct {
	ID            string         `json:"id"`
	QuestionID    string         `json:"question_id,omitempty"`
	SubQuestionID string         `json:"subquestion_id,omitempty"`
	Order         int            `json:"order"`
	Text          string         `json:"text"`
	OptionType    GeographyLevel `json:"option_type,omitempty"`
	IsOther       bool           `json:"is_other,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// SurveyAttempt is the audit record of one eligibility evaluation for a
// user/survey pair. Rows are terminal: written once, never updated. Retries
// after rejection produce additional rows.
type SurveyAttempt struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	SurveyID           string     `json:"survey_id"`
	HasLivedInColombia bool       `json:"has_lived_in_colombia"`
	BirthDate          *time.Time `json:"birth_date,omitempty"`
	RejectionNote      string     `json:"rejection_note,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Response is the atomic answer unit. Exactly one of ResponseText,
// ResponseNumber, OptionSelected or OptionsSelected is populated, chosen by
// the question's type. Geographic fields reference the geo registry by
// numeric code, not by row id.
type Response struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	QuestionID       string    `json:"question_id"`
	SubQuestionID    string    `json:"subquestion_id,omitempty"`
	SurveyAttemptID  string    `json:"survey_attempt_id,omitempty"`
	ResponseText     *string   `json:"response_text,omitempty"`
	ResponseNumber   *int      `json:"response_number,omitempty"`
	OptionSelected   string    `json:"option_selected,omitempty"`
	OptionsSelected  []string  `json:"options_multiple_selected,omitempty"`
	CountryCode      *int      `json:"country_code,omitempty"`
	DepartmentCode   *int      `json:"department_code,omitempty"`
	MunicipalityCode *int      `json:"municipality_code,omitempty"`
	NewDepartment    *int      `json:"new_department,omitempty"`
	NewMunicipality  *int      `json:"new_municipality,omitempty"`
	OtherText        string    `json:"other_text,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Country per ISO 3166, keyed by numeric code.
type Country struct {
	NumericCode int    `json:"numeric_code"`
	SpanishName string `json:"spanish_name"`
	EnglishName string `json:"english_name"`
	Alpha2      string `json:"alpha_2"`
	Alpha3      string `json:"alpha_3"`
}

// Department links to its country through the country's numeric code.
type Department struct {
	Code               int    `json:"code"`
	Name               string `json:"name"`
	CountryNumericCode int    `json:"country_numeric_code"`
}

// Municipality links to its department through the department code.
type Municipality struct {
	Code           int    `json:"code"`
	Name           string `json:"name"`
	DepartmentCode int    `json:"department_code"`
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	PassHash  []byte    `json:"-"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
