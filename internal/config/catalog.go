package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/geosense/landtraj/internal/errs"
)

// DataSourceConfig is one backend descriptor from the catalog. Which
// fields are required depends on the type: database backends use
// Database/User/Password, service backends use Host/Port/Location plus an
// optional Workspace and basic-auth credentials.
type DataSourceConfig struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	User      string `json:"user"`
	Password  string `json:"password"`
	Location  string `json:"location"`
	Workspace string `json:"workspace"`
	Database  string `json:"database"`
}

// Catalog enumerates every configured datasource. Loaded once at startup
// and read-only afterwards.
type Catalog struct {
	DataSources []DataSourceConfig `json:"datasources"`
}

// LoadCatalog reads and validates the JSON catalog at path.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog %s: %w", path, errs.ErrConfiguration)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes catalog bytes and rejects incomplete entries.
func ParseCatalog(data []byte) (Catalog, error) {
	var raw struct {
		DataSources *[]DataSourceConfig `json:"datasources"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog: %v: %w", err, errs.ErrConfiguration)
	}
	if raw.DataSources == nil {
		return Catalog{}, fmt.Errorf("catalog has no datasources key: %w", errs.ErrConfiguration)
	}

	cat := Catalog{DataSources: *raw.DataSources}
	seen := make(map[string]struct{}, len(cat.DataSources))
	for _, ds := range cat.DataSources {
		if ds.ID == "" || ds.Type == "" {
			return Catalog{}, fmt.Errorf("datasource entry missing id or type: %w", errs.ErrConfiguration)
		}
		if _, dup := seen[ds.ID]; dup {
			return Catalog{}, fmt.Errorf("duplicate datasource id %q: %w", ds.ID, errs.ErrConfiguration)
		}
		seen[ds.ID] = struct{}{}
	}
	return cat, nil
}
