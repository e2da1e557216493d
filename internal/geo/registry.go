// Package geo holds the geographic reference data used to validate
// location answers. Countries, departments and municipalities are linked by
// denormalized numeric codes and served from indexed in-memory maps, so the
// answer validator can run exists/hierarchy checks without touching the
// database.
package geo

import (
	"fmt"
	"sort"
	"sync"

	"github.com/appdiversa/diversa-server/internal/models"
)

// Registry is the code-indexed view of the reference tables. Lookups return
// a typed miss (nil, false) rather than an error; callers decide whether a
// miss is soft or a hard validation failure.
type Registry struct {
	mu             sync.RWMutex
	countries      map[int]*models.Country
	departments    map[int]*models.Department
	municipalities map[int]*models.Municipality
	deptsByCountry map[int][]*models.Department
	munisByDept    map[int][]*models.Municipality
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.swap(newGeoIndex())
	return r
}

// geoIndex is one consistent snapshot of the code-keyed maps. It is built
// and verified outside the registry lock, then swapped in whole.
type geoIndex struct {
	countries      map[int]*models.Country
	departments    map[int]*models.Department
	municipalities map[int]*models.Municipality
	deptsByCountry map[int][]*models.Department
	munisByDept    map[int][]*models.Municipality
}

func newGeoIndex() *geoIndex {
	return &geoIndex{
		countries:      map[int]*models.Country{},
		departments:    map[int]*models.Department{},
		municipalities: map[int]*models.Municipality{},
		deptsByCountry: map[int][]*models.Department{},
		munisByDept:    map[int][]*models.Municipality{},
	}
}

// buildIndex indexes one data set, checking referential consistency: a
// department pointing at an unknown country or a municipality pointing at an
// unknown department fails the whole build.
func buildIndex(countries []*models.Country, departments []*models.Department, municipalities []*models.Municipality) (*geoIndex, error) {
	idx := newGeoIndex()
	for _, c := range countries {
		idx.countries[c.NumericCode] = c
	}
	for _, d := range departments {
		if _, ok := idx.countries[d.CountryNumericCode]; !ok {
			return nil, fmt.Errorf("department %d (%s) references unknown country code %d", d.Code, d.Name, d.CountryNumericCode)
		}
		idx.departments[d.Code] = d
		idx.deptsByCountry[d.CountryNumericCode] = append(idx.deptsByCountry[d.CountryNumericCode], d)
	}
	for _, m := range municipalities {
		if _, ok := idx.departments[m.DepartmentCode]; !ok {
			return nil, fmt.Errorf("municipality %d (%s) references unknown department code %d", m.Code, m.Name, m.DepartmentCode)
		}
		idx.municipalities[m.Code] = m
		idx.munisByDept[m.DepartmentCode] = append(idx.munisByDept[m.DepartmentCode], m)
	}
	return idx, nil
}

func (r *Registry) swap(idx *geoIndex) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.countries = idx.countries
	r.departments = idx.departments
	r.municipalities = idx.municipalities
	r.deptsByCountry = idx.deptsByCountry
	r.munisByDept = idx.munisByDept
}

// Load replaces the index. A failed load leaves the previous index in
// place, so a bad data set cannot take down lookups that were working.
func (r *Registry) Load(countries []*models.Country, departments []*models.Department, municipalities []*models.Municipality) error {
	idx, err := buildIndex(countries, departments, municipalities)
	if err != nil {
		return err
	}
	r.swap(idx)
	return nil
}

// ResolveCountry looks up a country by ISO numeric code.
func (r *Registry) ResolveCountry(code int) (*models.Country, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.countries[code]
	return c, ok
}

// ResolveDepartment looks up a department by code. countryCode filters the
// match when non-zero.
func (r *Registry) ResolveDepartment(code, countryCode int) (*models.Department, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.departments[code]
	if !ok {
		return nil, false
	}
	if countryCode != 0 && d.CountryNumericCode != countryCode {
		return nil, false
	}
	return d, true
}

// ResolveMunicipality looks up a municipality by code, filtered by its
// parent department when departmentCode is non-zero.
func (r *Registry) ResolveMunicipality(code, departmentCode int) (*models.Municipality, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.municipalities[code]
	if !ok {
		return nil, false
	}
	if departmentCode != 0 && m.DepartmentCode != departmentCode {
		return nil, false
	}
	return m, true
}

// Countries lists every indexed country, sorted by numeric code.
func (r *Registry) Countries() []*models.Country {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Country, 0, len(r.countries))
	for _, c := range r.countries {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NumericCode < out[j].NumericCode })
	return out
}

// Departments lists every indexed department, sorted by code.
func (r *Registry) Departments() []*models.Department {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Department, 0, len(r.departments))
	for _, d := range r.departments {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// DepartmentsByCountry lists the departments of one country.
func (r *Registry) DepartmentsByCountry(countryCode int) []*models.Department {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Department, len(r.deptsByCountry[countryCode]))
	copy(out, r.deptsByCountry[countryCode])
	return out
}

// MunicipalitiesByDepartment lists the municipalities of one department.
func (r *Registry) MunicipalitiesByDepartment(departmentCode int) []*models.Municipality {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Municipality, len(r.munisByDept[departmentCode]))
	copy(out, r.munisByDept[departmentCode])
	return out
}

// Counts reports index sizes, used by the health endpoint and load logging.
func (r *Registry) Counts() (countries, departments, municipalities int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.countries), len(r.departments), len(r.municipalities)
}
