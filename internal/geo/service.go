package geo

import (
	"fmt"

	"github.com/appdiversa/diversa-server/internal/models"
)

// Store abstracts persistence for the reference tables. Upserts are keyed by
// external code, so reseeding the same data is idempotent.
type Store interface {
	ListCountries() ([]*models.Country, error)
	ListDepartments() ([]*models.Department, error)
	ListMunicipalities() ([]*models.Municipality, error)
	UpsertCountries(cs []*models.Country) error
	UpsertDepartments(ds []*models.Department) error
	UpsertMunicipalities(ms []*models.Municipality) error
}

// Service keeps the registry in sync with the backing store.
type Service struct {
	store    Store
	registry *Registry
}

func NewService(store Store) *Service {
	return &Service{store: store, registry: NewRegistry()}
}

func (s *Service) Registry() *Registry { return s.registry }

// LoadFromStore rebuilds the in-memory index from the persisted tables.
// Called once at startup and after every bulk upsert.
func (s *Service) LoadFromStore() error {
	countries, err := s.store.ListCountries()
	if err != nil {
		return err
	}
	departments, err := s.store.ListDepartments()
	if err != nil {
		return err
	}
	municipalities, err := s.store.ListMunicipalities()
	if err != nil {
		return err
	}
	return s.registry.Load(countries, departments, municipalities)
}

// BulkUpsert persists reference rows by external code and re-indexes. The
// incoming rows are first merged with the persisted set and that merge must
// pass the referential checks; a dangling reference rejects the whole upsert
// before anything is written, and the registry keeps serving the old index.
func (s *Service) BulkUpsert(countries []*models.Country, departments []*models.Department, municipalities []*models.Municipality) error {
	mergedCountries, mergedDepartments, mergedMunicipalities, err := s.mergeWithStore(countries, departments, municipalities)
	if err != nil {
		return err
	}
	if _, err := buildIndex(mergedCountries, mergedDepartments, mergedMunicipalities); err != nil {
		return fmt.Errorf("rejecting geographic upsert: %w", err)
	}
	if len(countries) > 0 {
		if err := s.store.UpsertCountries(countries); err != nil {
			return err
		}
	}
	if len(departments) > 0 {
		if err := s.store.UpsertDepartments(departments); err != nil {
			return err
		}
	}
	if len(municipalities) > 0 {
		if err := s.store.UpsertMunicipalities(municipalities); err != nil {
			return err
		}
	}
	return s.LoadFromStore()
}

// mergeWithStore overlays the incoming rows on the persisted set, keyed by
// external code, producing the data set an upsert would leave behind.
func (s *Service) mergeWithStore(countries []*models.Country, departments []*models.Department, municipalities []*models.Municipality) ([]*models.Country, []*models.Department, []*models.Municipality, error) {
	existingCountries, err := s.store.ListCountries()
	if err != nil {
		return nil, nil, nil, err
	}
	existingDepartments, err := s.store.ListDepartments()
	if err != nil {
		return nil, nil, nil, err
	}
	existingMunicipalities, err := s.store.ListMunicipalities()
	if err != nil {
		return nil, nil, nil, err
	}

	countryByCode := map[int]*models.Country{}
	for _, c := range existingCountries {
		countryByCode[c.NumericCode] = c
	}
	for _, c := range countries {
		countryByCode[c.NumericCode] = c
	}
	departmentByCode := map[int]*models.Department{}
	for _, d := range existingDepartments {
		departmentByCode[d.Code] = d
	}
	for _, d := range departments {
		departmentByCode[d.Code] = d
	}
	municipalityByCode := map[int]*models.Municipality{}
	for _, m := range existingMunicipalities {
		municipalityByCode[m.Code] = m
	}
	for _, m := range municipalities {
		municipalityByCode[m.Code] = m
	}

	mergedCountries := make([]*models.Country, 0, len(countryByCode))
	for _, c := range countryByCode {
		mergedCountries = append(mergedCountries, c)
	}
	mergedDepartments := make([]*models.Department, 0, len(departmentByCode))
	for _, d := range departmentByCode {
		mergedDepartments = append(mergedDepartments, d)
	}
	mergedMunicipalities := make([]*models.Municipality, 0, len(municipalityByCode))
	for _, m := range municipalityByCode {
		mergedMunicipalities = append(mergedMunicipalities, m)
	}
	return mergedCountries, mergedDepartments, mergedMunicipalities, nil
}
