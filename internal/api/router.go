package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/appdiversa/diversa-server/internal/geo"
	"github.com/appdiversa/diversa-server/internal/middleware"
	"github.com/appdiversa/diversa-server/internal/services"
)

// Container holds every dependency the router needs.
type Container struct {
	Auth        *services.AuthService
	Schema      *services.SchemaService
	Submissions *services.SubmissionService
	Exports     *services.ExportService
	Geo         *geo.Service
	JWT         *middleware.JWTManager
	Log         zerolog.Logger
}

// NewRouter builds the full HTTP surface. Reads of the questionnaire and the
// geographic reference data are public; everything that writes participant
// data requires a signed token.
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	authHandler := NewAuthHandler(c.Auth)
	schemaHandler := NewSchemaHandler(c.Schema)
	responseHandler := NewResponseHandler(c.Submissions, c.Exports)
	geoHandler := NewGeoHandler(c.Geo)

	r.Use(middleware.RequestLogger(c.Log))
	r.Use(middleware.CORS)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.NoStore)
	r.Use(c.JWT.WithAuth)

	r.HandleFunc("/", welcome).Methods("GET")
	r.HandleFunc("/health", health(c.Geo)).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	api.HandleFunc("/surveys", schemaHandler.ListSurveys).Methods("GET", "OPTIONS")
	api.HandleFunc("/surveys/{surveyID}", schemaHandler.GetSurvey).Methods("GET", "OPTIONS")
	api.HandleFunc("/surveys/{surveyID}/questions", schemaHandler.ListQuestions).Methods("GET", "OPTIONS")
	api.HandleFunc("/questions/{questionID}/subquestions", schemaHandler.ListSubQuestions).Methods("GET", "OPTIONS")
	api.HandleFunc("/options", schemaHandler.ListOptions).Methods("GET", "OPTIONS")

	api.HandleFunc("/geo/countries", geoHandler.ListCountries).Methods("GET", "OPTIONS")
	api.HandleFunc("/geo/departments", geoHandler.ListDepartments).Methods("GET", "OPTIONS")
	api.HandleFunc("/geo/municipalities", geoHandler.ListMunicipalities).Methods("GET", "OPTIONS")

	authed := api.NewRoute().Subrouter()
	authed.Use(middleware.RequireAuth)

	authed.HandleFunc("/surveys", schemaHandler.CreateSurvey).Methods("POST", "OPTIONS")
	authed.HandleFunc("/chapters", schemaHandler.CreateChapter).Methods("POST", "OPTIONS")
	authed.HandleFunc("/questions", schemaHandler.CreateQuestion).Methods("POST", "OPTIONS")
	authed.HandleFunc("/subquestions", schemaHandler.CreateSubQuestion).Methods("POST", "OPTIONS")
	authed.HandleFunc("/question-options", schemaHandler.CreateOption).Methods("POST", "OPTIONS")

	authed.HandleFunc("/responses", responseHandler.Submit).Methods("POST", "OPTIONS")
	authed.HandleFunc("/responses/export", responseHandler.Export).Methods("GET", "OPTIONS")
	authed.HandleFunc("/geo/load", geoHandler.Load).Methods("POST", "OPTIONS")

	return r
}

func welcome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "diversa-server",
		"message": "survey data collection API",
		"docs":    "/health",
	})
}

func health(g *geo.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		countries, departments, municipalities := g.Registry().Counts()
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"geo": map[string]int{
				"countries":      countries,
				"departments":    departments,
				"municipalities": municipalities,
			},
		})
	}
}
