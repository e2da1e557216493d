package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/appdiversa/diversa-server/internal/geo"
	"github.com/appdiversa/diversa-server/internal/models"
	"github.com/appdiversa/diversa-server/internal/services"
)

// Store is the SQL-backed implementation of every persistence interface the
// services declare.
type Store struct {
	db *sql.DB
}

var (
	_ services.SubmissionStore = (*Store)(nil)
	_ services.SchemaStore     = (*Store)(nil)
	_ services.AuthStore       = (*Store)(nil)
	_ services.ExportStore     = (*Store)(nil)
	_ geo.Store                = (*Store)(nil)
)

func NewStore(database *sql.DB) (*Store, error) {
	if database == nil {
		return nil, errors.New("nil db")
	}
	return &Store{db: database}, nil
}

func toNullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func fromNullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func toNullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func fromNullString(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func encodeIDs(ids []string) (sql.NullString, error) {
	if len(ids) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeIDs(n sql.NullString) ([]string, error) {
	if !n.Valid || n.String == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(n.String), &out); err != nil {
		return nil, fmt.Errorf("decode option id list: %w", err)
	}
	return out, nil
}

// --- users ---

func (s *Store) AddUser(u *models.User) error {
	_, err := s.db.Exec(
		`INSERT INTO users (id, email, pass_hash, name, created_at) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Email, string(u.PassHash), u.Name, u.CreatedAt,
	)
	return err
}

func (s *Store) FindUserByEmail(email string) (*models.User, error) {
	var u models.User
	var hash string
	err := s.db.QueryRow(
		`SELECT id, email, pass_hash, name, created_at FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Email, &hash, &u.Name, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.PassHash = []byte(hash)
	return &u, nil
}

// --- surveys / chapters ---

func (s *Store) InsertSurvey(sv *models.Survey) error {
	_, err := s.db.Exec(
		`INSERT INTO surveys (id, name, title, description_name, description_title, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sv.ID, sv.Name, sv.Title, sv.DescriptionName, sv.DescriptionTitle, sv.CreatedAt,
	)
	return err
}

func (s *Store) GetSurvey(id string) (*models.Survey, error) {
	var sv models.Survey
	err := s.db.QueryRow(
		`SELECT id, name, title, description_name, description_title, created_at FROM surveys WHERE id = $1`, id,
	).Scan(&sv.ID, &sv.Name, &sv.Title, &sv.DescriptionName, &sv.DescriptionTitle, &sv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sv, nil
}

func (s *Store) ListSurveys() ([]*models.Survey, error) {
	rows, err := s.db.Query(
		`SELECT id, name, title, description_name, description_title, created_at FROM surveys ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Survey
	for rows.Next() {
		var sv models.Survey
		if err := rows.Scan(&sv.ID, &sv.Name, &sv.Title, &sv.DescriptionName, &sv.DescriptionTitle, &sv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &sv)
	}
	return out, rows.Err()
}

func (s *Store) InsertChapter(c *models.Chapter) error {
	_, err := s.db.Exec(
		`INSERT INTO chapters (id, survey_id, name, description, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.SurveyID, c.Name, c.Description, c.CreatedAt,
	)
	return err
}

func (s *Store) GetChapter(id string) (*models.Chapter, error) {
	var c models.Chapter
	err := s.db.QueryRow(
		`SELECT id, survey_id, name, description, created_at FROM chapters WHERE id = $1`, id,
	).Scan(&c.ID, &c.SurveyID, &c.Name, &c.Description, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// --- questions ---

const questionColumns = `id, survey_id, chapter_id, order_index, text, instruction, note, question_type,
	matrix_layout_type, data_type, min_value, max_value, is_multiple, is_required, is_geographic,
	geography_type, screening_role, is_residence_change, created_at`

func (s *Store) scanQuestion(row interface{ Scan(...any) error }) (*models.Question, error) {
	var q models.Question
	var minV, maxV sql.NullInt64
	err := row.Scan(
		&q.ID, &q.SurveyID, &q.ChapterID, &q.Order, &q.Text, &q.Instruction, &q.Note, &q.Type,
		&q.MatrixLayout, &q.DataType, &minV, &maxV, &q.IsMultiple, &q.IsRequired, &q.IsGeographic,
		&q.GeographyType, &q.ScreeningRole, &q.IsResidenceChange, &q.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	q.MinValue = fromNullInt(minV)
	q.MaxValue = fromNullInt(maxV)
	return &q, nil
}

func (s *Store) InsertQuestion(q *models.Question) error {
	_, err := s.db.Exec(
		`INSERT INTO questions (`+questionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		q.ID, q.SurveyID, q.ChapterID, q.Order, q.Text, q.Instruction, q.Note, q.Type,
		q.MatrixLayout, q.DataType, toNullInt(q.MinValue), toNullInt(q.MaxValue), q.IsMultiple,
		q.IsRequired, q.IsGeographic, q.GeographyType, q.ScreeningRole, q.IsResidenceChange, q.CreatedAt,
	)
	return err
}

func (s *Store) GetQuestion(id string) (*models.Question, error) {
	row := s.db.QueryRow(`SELECT `+questionColumns+` FROM questions WHERE id = $1`, id)
	return s.scanQuestion(row)
}

func (s *Store) GetScreeningQuestion(surveyID string, role models.ScreeningRole) (*models.Question, error) {
	row := s.db.QueryRow(
		`SELECT `+questionColumns+` FROM questions WHERE survey_id = $1 AND screening_role = $2`,
		surveyID, string(role),
	)
	return s.scanQuestion(row)
}

func (s *Store) ListQuestions(surveyID string) ([]*models.Question, error) {
	rows, err := s.db.Query(
		`SELECT `+questionColumns+` FROM questions WHERE survey_id = $1 ORDER BY order_index`, surveyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Question
	for rows.Next() {
		q, err := s.scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// --- subquestions ---

const subQuestionColumns = `id, parent_question_id, order_index, text, question_type, data_type,
	min_value, max_value, is_required, is_other, custom_identifier, created_at`

func (s *Store) scanSubQuestion(row interface{ Scan(...any) error }) (*models.SubQuestion, error) {
	var sq models.SubQuestion
	var minV, maxV sql.NullInt64
	err := row.Scan(
		&sq.ID, &sq.ParentQuestionID, &sq.Order, &sq.Text, &sq.Type, &sq.DataType,
		&minV, &maxV, &sq.Required, &sq.IsOther, &sq.CustomIdentifier, &sq.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sq.MinValue = fromNullInt(minV)
	sq.MaxValue = fromNullInt(maxV)
	return &sq, nil
}

func (s *Store) InsertSubQuestion(sq *models.SubQuestion) error {
	_, err := s.db.Exec(
		`INSERT INTO subquestions (`+subQuestionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		sq.ID, sq.ParentQuestionID, sq.Order, sq.Text, sq.Type, sq.DataType,
		toNullInt(sq.MinValue), toNullInt(sq.MaxValue), sq.Required, sq.IsOther, sq.CustomIdentifier, sq.CreatedAt,
	)
	return err
}

func (s *Store) GetSubQuestion(id string) (*models.SubQuestion, error) {
	row := s.db.QueryRow(`SELECT `+subQuestionColumns+` FROM subquestions WHERE id = $1`, id)
	return s.scanSubQuestion(row)
}

func (s *Store) ListSubQuestions(parentQuestionID string) ([]*models.SubQuestion, error) {
	rows, err := s.db.Query(
		`SELECT `+subQuestionColumns+` FROM subquestions WHERE parent_question_id = $1 ORDER BY order_index`,
		parentQuestionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.SubQuestion
	for rows.Next() {
		sq, err := s.scanSubQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sq)
	}
	return out, rows.Err()
}

// --- options ---

const optionColumns = `id, question_id, subquestion_id, order_index, text, option_type, is_other, created_at`

func (s *Store) scanOption(row interface{ Scan(...any) error }) (*models.Option, error) {
	var o models.Option
	err := row.Scan(&o.ID, &o.QuestionID, &o.SubQuestionID, &o.Order, &o.Text, &o.OptionType, &o.IsOther, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) InsertOption(o *models.Option) error {
	_, err := s.db.Exec(
		`INSERT INTO options (`+optionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.QuestionID, o.SubQuestionID, o.Order, o.Text, o.OptionType, o.IsOther, o.CreatedAt,
	)
	return err
}

func (s *Store) GetOption(id string) (*models.Option, error) {
	row := s.db.QueryRow(`SELECT `+optionColumns+` FROM options WHERE id = $1`, id)
	return s.scanOption(row)
}

func (s *Store) ListOptions(questionID, subQuestionID string) ([]*models.Option, error) {
	rows, err := s.db.Query(
		`SELECT `+optionColumns+` FROM options WHERE ($1 = '' OR question_id = $1) AND ($2 = '' OR subquestion_id = $2) ORDER BY order_index`,
		questionID, subQuestionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Option
	for rows.Next() {
		o, err := s.scanOption(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// --- attempts and responses ---

func (s *Store) CreateAttempt(a *models.SurveyAttempt) error {
	return s.insertAttempt(s.db, a)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *Store) insertAttempt(ex execer, a *models.SurveyAttempt) error {
	var birth any
	if a.BirthDate != nil {
		birth = *a.BirthDate
	}
	_, err := ex.Exec(
		`INSERT INTO survey_attempts (id, user_id, survey_id, has_lived_in_colombia, birth_date, rejection_note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.UserID, a.SurveyID, a.HasLivedInColombia, birth, a.RejectionNote, a.CreatedAt,
	)
	return err
}

// isUniqueViolation reports whether err is a unique-constraint failure from
// either supported driver.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}
	return false
}

// SaveSubmission commits a passed attempt and all of its responses in one
// transaction. Any failure rolls the whole batch back. A unique-index hit on
// responses means the user already answered one of the questions, surfaced
// as a conflict rather than an opaque store failure.
func (s *Store) SaveSubmission(a *models.SurveyAttempt, rs []*models.Response) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.insertAttempt(tx, a); err != nil {
		return err
	}
	for _, r := range rs {
		multi, err := encodeIDs(r.OptionsSelected)
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			`INSERT INTO responses (id, user_id, question_id, subquestion_id, survey_attempt_id,
			    response_text, response_number, option_selected, options_multiple_selected,
			    country_code, department_code, municipality_code, new_department, new_municipality,
			    other_text, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			r.ID, r.UserID, r.QuestionID, r.SubQuestionID, r.SurveyAttemptID,
			toNullString(r.ResponseText), toNullInt(r.ResponseNumber), r.OptionSelected, multi,
			toNullInt(r.CountryCode), toNullInt(r.DepartmentCode), toNullInt(r.MunicipalityCode),
			toNullInt(r.NewDepartment), toNullInt(r.NewMunicipality), r.OtherText, r.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return services.NewConflictError(fmt.Sprintf("question %s was already answered by this user", r.QuestionID))
			}
			return err
		}
	}
	return tx.Commit()
}

const responseColumns = `id, user_id, question_id, subquestion_id, survey_attempt_id, response_text,
	response_number, option_selected, options_multiple_selected, country_code, department_code,
	municipality_code, new_department, new_municipality, other_text, created_at`

func (s *Store) scanResponse(row interface{ Scan(...any) error }) (*models.Response, error) {
	var r models.Response
	var text sql.NullString
	var number sql.NullInt64
	var multi sql.NullString
	var country, dept, muni, newDept, newMuni sql.NullInt64
	err := row.Scan(
		&r.ID, &r.UserID, &r.QuestionID, &r.SubQuestionID, &r.SurveyAttemptID, &text,
		&number, &r.OptionSelected, &multi, &country, &dept,
		&muni, &newDept, &newMuni, &r.OtherText, &r.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.ResponseText = fromNullString(text)
	r.ResponseNumber = fromNullInt(number)
	if r.OptionsSelected, err = decodeIDs(multi); err != nil {
		return nil, err
	}
	r.CountryCode = fromNullInt(country)
	r.DepartmentCode = fromNullInt(dept)
	r.MunicipalityCode = fromNullInt(muni)
	r.NewDepartment = fromNullInt(newDept)
	r.NewMunicipality = fromNullInt(newMuni)
	return &r, nil
}

func (s *Store) ListResponsesBySurvey(surveyID string) ([]*models.Response, error) {
	rows, err := s.db.Query(
		`SELECT r.id, r.user_id, r.question_id, r.subquestion_id, r.survey_attempt_id, r.response_text,
		    r.response_number, r.option_selected, r.options_multiple_selected, r.country_code, r.department_code,
		    r.municipality_code, r.new_department, r.new_municipality, r.other_text, r.created_at
		 FROM responses r
		 JOIN questions q ON q.id = r.question_id
		 WHERE q.survey_id = $1
		 ORDER BY r.created_at, r.id`,
		surveyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Response
	for rows.Next() {
		r, err := s.scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListResponsesByAttempt(attemptID string) ([]*models.Response, error) {
	rows, err := s.db.Query(
		`SELECT `+responseColumns+` FROM responses WHERE survey_attempt_id = $1 ORDER BY created_at, id`,
		attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Response
	for rows.Next() {
		r, err := s.scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListAttempts(userID, surveyID string) ([]*models.SurveyAttempt, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, survey_id, has_lived_in_colombia, birth_date, rejection_note, created_at
		 FROM survey_attempts WHERE user_id = $1 AND survey_id = $2 ORDER BY created_at`,
		userID, surveyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.SurveyAttempt
	for rows.Next() {
		var a models.SurveyAttempt
		var birth sql.NullTime
		if err := rows.Scan(&a.ID, &a.UserID, &a.SurveyID, &a.HasLivedInColombia, &birth, &a.RejectionNote, &a.CreatedAt); err != nil {
			return nil, err
		}
		if birth.Valid {
			t := birth.Time
			a.BirthDate = &t
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// --- geographic reference tables ---

func (s *Store) ListCountries() ([]*models.Country, error) {
	rows, err := s.db.Query(`SELECT numeric_code, spanish_name, english_name, alpha_2, alpha_3 FROM countries`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Country
	for rows.Next() {
		var c models.Country
		if err := rows.Scan(&c.NumericCode, &c.SpanishName, &c.EnglishName, &c.Alpha2, &c.Alpha3); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *Store) ListDepartments() ([]*models.Department, error) {
	rows, err := s.db.Query(`SELECT code, name, country_numeric_code FROM departments`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Department
	for rows.Next() {
		var d models.Department
		if err := rows.Scan(&d.Code, &d.Name, &d.CountryNumericCode); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (s *Store) ListMunicipalities() ([]*models.Municipality, error) {
	rows, err := s.db.Query(`SELECT code, name, department_code FROM municipalities`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Municipality
	for rows.Next() {
		var m models.Municipality
		if err := rows.Scan(&m.Code, &m.Name, &m.DepartmentCode); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *Store) UpsertCountries(cs []*models.Country) error {
	for _, c := range cs {
		_, err := s.db.Exec(
			`INSERT INTO countries (numeric_code, spanish_name, english_name, alpha_2, alpha_3)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (numeric_code) DO UPDATE SET
			    spanish_name = EXCLUDED.spanish_name,
			    english_name = EXCLUDED.english_name,
			    alpha_2 = EXCLUDED.alpha_2,
			    alpha_3 = EXCLUDED.alpha_3`,
			c.NumericCode, c.SpanishName, c.EnglishName, c.Alpha2, c.Alpha3,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) UpsertDepartments(ds []*models.Department) error {
	for _, d := range ds {
		_, err := s.db.Exec(
			`INSERT INTO departments (code, name, country_numeric_code)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (code) DO UPDATE SET
			    name = EXCLUDED.name,
			    country_numeric_code = EXCLUDED.country_numeric_code`,
			d.Code, d.Name, d.CountryNumericCode,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) UpsertMunicipalities(ms []*models.Municipality) error {
	for _, m := range ms {
		_, err := s.db.Exec(
			`INSERT INTO municipalities (code, name, department_code)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (code) DO UPDATE SET
			    name = EXCLUDED.name,
			    department_code = EXCLUDED.department_code`,
			m.Code, m.Name, m.DepartmentCode,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
