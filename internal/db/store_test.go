package db

import (
	"testing"
	"time"

	"github.com/appdiversa/diversa-server/internal/config"
	"github.com/appdiversa/diversa-server/internal/models"
	"github.com/appdiversa/diversa-server/internal/services"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := Open(&config.DatabaseConfig{
		Driver:       "sqlite3",
		DSN:          "file::memory:?_fk=1",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := RunMigrations(database, ""); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	store, err := NewStore(database)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func seedSchema(t *testing.T, store *Store) (user *models.User, survey *models.Survey, q *models.Question) {
	t.Helper()
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	user = &models.User{ID: "u1", Email: "u1@example.com", PassHash: []byte("hash"), CreatedAt: now}
	if err := store.AddUser(user); err != nil {
		t.Fatalf("add user: %v", err)
	}
	survey = &models.Survey{ID: "s1", Name: "CENSUS", Title: "CENSUS", CreatedAt: now}
	if err := store.InsertSurvey(survey); err != nil {
		t.Fatalf("insert survey: %v", err)
	}
	q = &models.Question{ID: "q1", SurveyID: "s1", Order: 1, Text: "cuantos?",
		Type: models.QuestionOpen, DataType: models.DataInteger, MinValue: intPtr(0), MaxValue: intPtr(30), CreatedAt: now}
	if err := store.InsertQuestion(q); err != nil {
		t.Fatalf("insert question: %v", err)
	}
	return user, survey, q
}

func intPtr(v int) *int { return &v }

func TestUserRoundTrip(t *testing.T) {
	store := newTestStore(t)
	seedSchema(t, store)

	u, err := store.FindUserByEmail("u1@example.com")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if u == nil || u.ID != "u1" || string(u.PassHash) != "hash" {
		t.Fatalf("bad user round trip: %+v", u)
	}

	missing, err := store.FindUserByEmail("nobody@example.com")
	if err != nil || missing != nil {
		t.Fatalf("miss must be (nil, nil), got %v %v", missing, err)
	}
}

func TestQuestionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	_, _, q := seedSchema(t, store)

	got, err := store.GetQuestion(q.ID)
	if err != nil {
		t.Fatalf("get question: %v", err)
	}
	if got == nil || got.Type != models.QuestionOpen || got.DataType != models.DataInteger {
		t.Fatalf("bad question round trip: %+v", got)
	}
	if got.MinValue == nil || *got.MinValue != 0 || got.MaxValue == nil || *got.MaxValue != 30 {
		t.Fatalf("bounds lost in round trip: %+v", got)
	}

	screening := &models.Question{ID: "q-res", SurveyID: "s1", Order: 0, Text: "residencia",
		Type: models.QuestionClosed, ScreeningRole: models.ScreeningResidency, CreatedAt: time.Now().UTC()}
	if err := store.InsertQuestion(screening); err != nil {
		t.Fatalf("insert screening question: %v", err)
	}
	found, err := store.GetScreeningQuestion("s1", models.ScreeningResidency)
	if err != nil {
		t.Fatalf("get screening question: %v", err)
	}
	if found == nil || found.ID != "q-res" {
		t.Fatalf("screening question not resolved by role: %+v", found)
	}
	none, err := store.GetScreeningQuestion("s1", models.ScreeningBirthDate)
	if err != nil || none != nil {
		t.Fatalf("missing role must be (nil, nil), got %v %v", none, err)
	}

	list, err := store.ListQuestions("s1")
	if err != nil {
		t.Fatalf("list questions: %v", err)
	}
	if len(list) != 2 || list[0].ID != "q-res" {
		t.Fatalf("want 2 questions ordered by order_index, got %+v", list)
	}
}

func TestSubQuestionAndOptionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	seedSchema(t, store)
	now := time.Now().UTC()

	matrix := &models.Question{ID: "qm", SurveyID: "s1", Text: "matriz", Type: models.QuestionMatrix, CreatedAt: now}
	if err := store.InsertQuestion(matrix); err != nil {
		t.Fatalf("insert matrix: %v", err)
	}
	sub := &models.SubQuestion{ID: "sub1", ParentQuestionID: "qm", Order: 1, Text: "fila",
		Type: models.QuestionLikert, MinValue: intPtr(1), MaxValue: intPtr(5), CustomIdentifier: "17.1", CreatedAt: now}
	if err := store.InsertSubQuestion(sub); err != nil {
		t.Fatalf("insert subquestion: %v", err)
	}
	got, err := store.GetSubQuestion("sub1")
	if err != nil {
		t.Fatalf("get subquestion: %v", err)
	}
	if got == nil || got.CustomIdentifier != "17.1" || got.MaxValue == nil || *got.MaxValue != 5 {
		t.Fatalf("bad subquestion round trip: %+v", got)
	}

	// sibling uniqueness is enforced by the partial index
	dup := &models.SubQuestion{ID: "sub2", ParentQuestionID: "qm", Text: "fila bis",
		Type: models.QuestionLikert, CustomIdentifier: "17.1", CreatedAt: now}
	if err := store.InsertSubQuestion(dup); err == nil {
		t.Fatalf("duplicate custom identifier under one parent must fail")
	}
	other := &models.SubQuestion{ID: "sub3", ParentQuestionID: "qm", Text: "sin id", Type: models.QuestionOpen, CreatedAt: now}
	if err := store.InsertSubQuestion(other); err != nil {
		t.Fatalf("blank identifiers are exempt from uniqueness: %v", err)
	}

	opt := &models.Option{ID: "o1", SubQuestionID: "sub1", Order: 1, Text: "columna", CreatedAt: now}
	if err := store.InsertOption(opt); err != nil {
		t.Fatalf("insert option: %v", err)
	}
	opts, err := store.ListOptions("", "sub1")
	if err != nil || len(opts) != 1 {
		t.Fatalf("list options by subquestion: %v %v", opts, err)
	}
}

func TestSaveSubmissionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	user, survey, q := seedSchema(t, store)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	birth := time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)

	closed := &models.Question{ID: "q2", SurveyID: survey.ID, Text: "multi", Type: models.QuestionClosed, IsMultiple: true, CreatedAt: now}
	if err := store.InsertQuestion(closed); err != nil {
		t.Fatalf("insert closed question: %v", err)
	}

	attempt := &models.SurveyAttempt{ID: "att1", UserID: user.ID, SurveyID: survey.ID,
		HasLivedInColombia: true, BirthDate: &birth, CreatedAt: now}
	four := 4
	rs := []*models.Response{
		{ID: "r1", UserID: user.ID, QuestionID: q.ID, SurveyAttemptID: "att1", ResponseNumber: &four, CreatedAt: now},
		{ID: "r2", UserID: user.ID, QuestionID: closed.ID, SurveyAttemptID: "att1",
			OptionsSelected: []string{"oa", "ob"}, CreatedAt: now},
	}
	if err := store.SaveSubmission(attempt, rs); err != nil {
		t.Fatalf("save submission: %v", err)
	}

	bySurvey, err := store.ListResponsesBySurvey(survey.ID)
	if err != nil {
		t.Fatalf("list responses: %v", err)
	}
	if len(bySurvey) != 2 {
		t.Fatalf("want 2 responses, got %d", len(bySurvey))
	}
	var multi *models.Response
	for _, r := range bySurvey {
		if r.ID == "r2" {
			multi = r
		}
	}
	if multi == nil || len(multi.OptionsSelected) != 2 || multi.OptionsSelected[0] != "oa" {
		t.Fatalf("multi-select ids lost in round trip: %+v", multi)
	}

	byAttempt, err := store.ListResponsesByAttempt("att1")
	if err != nil || len(byAttempt) != 2 {
		t.Fatalf("list by attempt: %v %v", byAttempt, err)
	}

	attempts, err := store.ListAttempts(user.ID, survey.ID)
	if err != nil || len(attempts) != 1 {
		t.Fatalf("list attempts: %v %v", attempts, err)
	}
	if attempts[0].BirthDate == nil || !attempts[0].BirthDate.Equal(birth) {
		t.Fatalf("birth date lost in round trip: %+v", attempts[0])
	}
}

func TestSaveSubmissionRollsBack(t *testing.T) {
	store := newTestStore(t)
	user, survey, q := seedSchema(t, store)
	now := time.Now().UTC()

	attempt := &models.SurveyAttempt{ID: "att1", UserID: user.ID, SurveyID: survey.ID, HasLivedInColombia: true, CreatedAt: now}
	n := 4
	rs := []*models.Response{
		{ID: "r1", UserID: user.ID, QuestionID: q.ID, SurveyAttemptID: "att1", ResponseNumber: &n, CreatedAt: now},
		// same (user, question, subquestion): violates the unique index
		{ID: "r2", UserID: user.ID, QuestionID: q.ID, SurveyAttemptID: "att1", ResponseNumber: &n, CreatedAt: now},
	}
	err := store.SaveSubmission(attempt, rs)
	if err == nil {
		t.Fatalf("duplicate response must fail the transaction")
	}
	se, ok := services.AsServiceError(err)
	if !ok || se.Code != services.ErrorConflict {
		t.Fatalf("duplicate response: want conflict, got %v", err)
	}

	attempts, err := store.ListAttempts(user.ID, survey.ID)
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != 0 {
		t.Fatalf("the attempt must roll back with its responses")
	}
	responses, err := store.ListResponsesBySurvey(survey.ID)
	if err != nil || len(responses) != 0 {
		t.Fatalf("no responses may survive the rollback: %v %v", responses, err)
	}
}

func TestSaveSubmissionRejectsResubmission(t *testing.T) {
	store := newTestStore(t)
	user, survey, q := seedSchema(t, store)
	now := time.Now().UTC()
	n := 4

	first := &models.SurveyAttempt{ID: "att1", UserID: user.ID, SurveyID: survey.ID, HasLivedInColombia: true, CreatedAt: now}
	if err := store.SaveSubmission(first, []*models.Response{
		{ID: "r1", UserID: user.ID, QuestionID: q.ID, SurveyAttemptID: "att1", ResponseNumber: &n, CreatedAt: now},
	}); err != nil {
		t.Fatalf("first submission: %v", err)
	}

	// answering the same question again in a later attempt is a conflict,
	// and the later attempt rolls back whole
	second := &models.SurveyAttempt{ID: "att2", UserID: user.ID, SurveyID: survey.ID, HasLivedInColombia: true, CreatedAt: now}
	err := store.SaveSubmission(second, []*models.Response{
		{ID: "r2", UserID: user.ID, QuestionID: q.ID, SurveyAttemptID: "att2", ResponseNumber: &n, CreatedAt: now},
	})
	se, ok := services.AsServiceError(err)
	if !ok || se.Code != services.ErrorConflict {
		t.Fatalf("resubmission: want conflict, got %v", err)
	}
	attempts, err := store.ListAttempts(user.ID, survey.ID)
	if err != nil || len(attempts) != 1 {
		t.Fatalf("only the first attempt may remain: %v %v", attempts, err)
	}
	responses, err := store.ListResponsesByAttempt("att1")
	if err != nil || len(responses) != 1 {
		t.Fatalf("the first submission must stay intact: %v %v", responses, err)
	}
}

func TestGeoUpsertsAreIdempotent(t *testing.T) {
	store := newTestStore(t)

	countries := []*models.Country{{NumericCode: 170, SpanishName: "Colombia", EnglishName: "Colombia", Alpha2: "CO", Alpha3: "COL"}}
	departments := []*models.Department{{Code: 5, Name: "Antioquia", CountryNumericCode: 170}}
	municipalities := []*models.Municipality{{Code: 5001, Name: "Medellin", DepartmentCode: 5}}

	for i := 0; i < 2; i++ {
		if err := store.UpsertCountries(countries); err != nil {
			t.Fatalf("upsert countries: %v", err)
		}
		if err := store.UpsertDepartments(departments); err != nil {
			t.Fatalf("upsert departments: %v", err)
		}
		if err := store.UpsertMunicipalities(municipalities); err != nil {
			t.Fatalf("upsert municipalities: %v", err)
		}
	}

	cs, err := store.ListCountries()
	if err != nil || len(cs) != 1 {
		t.Fatalf("list countries: %v %v", cs, err)
	}
	ds, err := store.ListDepartments()
	if err != nil || len(ds) != 1 {
		t.Fatalf("list departments: %v %v", ds, err)
	}
	ms, err := store.ListMunicipalities()
	if err != nil || len(ms) != 1 {
		t.Fatalf("list municipalities: %v %v", ms, err)
	}

	renamed := []*models.Country{{NumericCode: 170, SpanishName: "Republica de Colombia", EnglishName: "Colombia", Alpha2: "CO", Alpha3: "COL"}}
	if err := store.UpsertCountries(renamed); err != nil {
		t.Fatalf("update country: %v", err)
	}
	cs, _ = store.ListCountries()
	if cs[0].SpanishName != "Republica de Colombia" {
		t.Fatalf("upsert must update in place: %+v", cs[0])
	}
}
