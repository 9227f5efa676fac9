// Package datasource dispatches trajectory queries to the configured
// backends. The registry is built once at startup from the catalog and is
// read-only afterwards; unknown backend types fail at load time, never at
// query time.
package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/geosense/landtraj/internal/config"
	"github.com/geosense/landtraj/internal/datasource/postgis"
	"github.com/geosense/landtraj/internal/datasource/wcs"
	"github.com/geosense/landtraj/internal/datasource/wfs"
	"github.com/geosense/landtraj/internal/errs"
	"github.com/geosense/landtraj/internal/model"
	"github.com/geosense/landtraj/internal/ogc"
	"github.com/geosense/landtraj/internal/raster"
	"github.com/geosense/landtraj/internal/samplecache"
)

// DataSource is the uniform trajectory-retrieval contract every backend
// variant implements. A nil point with a nil error means no data.
type DataSource interface {
	ID() string
	Trajectory(ctx context.Context, q model.TrajectoryQuery) (*model.TrajectoryPoint, error)
}

// Kind tags a backend variant.
type Kind string

const (
	KindPostGIS Kind = "postgis"
	KindWFS     Kind = "wfs"
	KindWCS     Kind = "wcs"
)

// ParseKind normalizes a catalog type tag.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindPostGIS:
		return KindPostGIS, nil
	case KindWFS:
		return KindWFS, nil
	case KindWCS:
		return KindWCS, nil
	}
	return "", fmt.Errorf("unknown datasource type %q: %w", s, errs.ErrConfiguration)
}

// Deps are the shared handles backends are built on. Each backend owns its
// own transport client; the sample cache is the one deliberately shared
// piece.
type Deps struct {
	HTTPClient  *http.Client
	SampleCache samplecache.Store
}

// Registry holds every constructed backend, keyed by catalog id.
type Registry struct {
	byID map[string]DataSource
}

// NewRegistry builds a registry from already-constructed backends.
func NewRegistry(sources ...DataSource) *Registry {
	r := &Registry{byID: make(map[string]DataSource, len(sources))}
	for _, ds := range sources {
		r.byID[ds.ID()] = ds
	}
	return r
}

// Load constructs one backend per catalog entry. Any failure aborts the
// whole load; a registry is all-or-nothing.
func Load(ctx context.Context, log *slog.Logger, cat config.Catalog, deps Deps) (*Registry, error) {
	r := &Registry{byID: make(map[string]DataSource, len(cat.DataSources))}
	for _, dc := range cat.DataSources {
		ds, err := build(ctx, log, dc, deps)
		if err != nil {
			return nil, err
		}
		r.byID[ds.ID()] = ds
	}
	return r, nil
}

func build(ctx context.Context, log *slog.Logger, dc config.DataSourceConfig, deps Deps) (DataSource, error) {
	kind, err := ParseKind(dc.Type)
	if err != nil {
		return nil, err
	}
	log = log.With(slog.String("datasource", dc.ID))

	switch kind {
	case KindPostGIS:
		return postgis.New(dc.ID, log, dc.Host, dc.Port, dc.User, dc.Password, dc.Database)

	case KindWFS:
		client, err := ogc.NewWFSClient(log, deps.HTTPClient,
			ogc.ServiceEndpoint(dc.Host, dc.Port, dc.Location, ""), auth(dc))
		if err != nil {
			return nil, fmt.Errorf("datasource %s: %w", dc.ID, err)
		}
		return wfs.New(dc.ID, log, client, dc.Workspace), nil

	case KindWCS:
		client, err := ogc.NewWCSClient(log, deps.HTTPClient,
			ogc.ServiceEndpoint(dc.Host, dc.Port, dc.Location, ""), auth(dc))
		if err != nil {
			return nil, fmt.Errorf("datasource %s: %w", dc.ID, err)
		}
		sampler := raster.NewSampler(log, client, deps.SampleCache)
		return wcs.New(dc.ID, log, sampler, client, dc.Workspace), nil
	}
	return nil, fmt.Errorf("unknown datasource type %q: %w", dc.Type, errs.ErrConfiguration)
}

func auth(dc config.DataSourceConfig) *ogc.BasicAuth {
	if dc.User == "" {
		return nil
	}
	return &ogc.BasicAuth{User: dc.User, Password: dc.Password}
}

// Lookup resolves a datasource by catalog id.
func (r *Registry) Lookup(id string) (DataSource, error) {
	ds, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("datasource %q: %w", id, errs.ErrNotFound)
	}
	return ds, nil
}

// IDs lists the registered datasource ids in stable order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
