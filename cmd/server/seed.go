package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/appdiversa/diversa-server/internal/geo"
	"github.com/appdiversa/diversa-server/internal/models"
)

type geoSeedFile struct {
	Countries      []*models.Country      `json:"countries"`
	Departments    []*models.Department   `json:"departments"`
	Municipalities []*models.Municipality `json:"municipalities"`
}

// seedGeoIfConfigured loads reference data from the file named by
// DIVERSA_GEO_SEED_FILE. Upserts are keyed by external code, so running the
// same seed on every boot is harmless.
func seedGeoIfConfigured(svc *geo.Service, log zerolog.Logger) error {
	path := os.Getenv("DIVERSA_GEO_SEED_FILE")
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read geo seed %s: %w", path, err)
	}
	var seed geoSeedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("parse geo seed %s: %w", path, err)
	}
	if err := svc.BulkUpsert(seed.Countries, seed.Departments, seed.Municipalities); err != nil {
		return fmt.Errorf("apply geo seed %s: %w", path, err)
	}
	log.Info().Str("file", path).Msg("geographic seed applied")
	return nil
}
