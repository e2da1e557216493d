package api

import (
	"net/http"
	"strconv"

	"github.com/appdiversa/diversa-server/internal/geo"
	"github.com/appdiversa/diversa-server/internal/models"
)

type GeoHandler struct {
	svc *geo.Service
}

func NewGeoHandler(svc *geo.Service) *GeoHandler {
	return &GeoHandler{svc: svc}
}

func queryCode(r *http.Request, key string) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, false
	}
	code, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return code, true
}

func (h *GeoHandler) ListCountries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"countries": h.svc.Registry().Countries()})
}

// ListDepartments returns the departments of one country, or all of them
// when no country_code filter is given. Served from the in-memory index.
func (h *GeoHandler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	if code, ok := queryCode(r, "country_code"); ok {
		writeJSON(w, http.StatusOK, map[string]any{"departments": h.svc.Registry().DepartmentsByCountry(code)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"departments": h.svc.Registry().Departments()})
}

func (h *GeoHandler) ListMunicipalities(w http.ResponseWriter, r *http.Request) {
	code, ok := queryCode(r, "department_code")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "department_code is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"municipalities": h.svc.Registry().MunicipalitiesByDepartment(code)})
}

type geoLoadRequest struct {
	Countries      []*models.Country      `json:"countries"`
	Departments    []*models.Department   `json:"departments"`
	Municipalities []*models.Municipality `json:"municipalities"`
}

// Load bulk-upserts reference data and re-indexes the registry.
func (h *GeoHandler) Load(w http.ResponseWriter, r *http.Request) {
	var req geoLoadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.BulkUpsert(req.Countries, req.Departments, req.Municipalities); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	countries, departments, municipalities := h.svc.Registry().Counts()
	writeJSON(w, http.StatusOK, map[string]int{
		"countries":      countries,
		"departments":    departments,
		"municipalities": municipalities,
	})
}
