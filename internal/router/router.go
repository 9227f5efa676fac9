// Package router validates trajectory request parameters and serves the
// query endpoints.
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/geosense/landtraj/internal/datasource"
	"github.com/geosense/landtraj/internal/errs"
	"github.com/geosense/landtraj/internal/logger"
	"github.com/geosense/landtraj/internal/model"
	"github.com/geosense/landtraj/internal/observability"
)

// recognized is the full parameter set of GET /trajectory. Anything
// outside it is rejected rather than silently ignored.
var recognized = map[string]struct{}{
	"datasource":          {},
	"target":              {},
	"x":                   {},
	"y":                   {},
	"srid":                {},
	"time":                {},
	"start_date":          {},
	"end_date":            {},
	"classification_kind": {},
	"class_property":      {},
	"class_entity":        {},
	"class_entity_id":     {},
	"class_property_name": {},
	"obs_class_property":  {},
	"temporal_kind":       {},
	"temporal_format":     {},
	"temporal_property":   {},
	"geometry_property":   {},
	"geometry_srid":       {},
	"grid_columns":        {},
	"grid_rows":           {},
}

// TrajectoryRequest is one validated /trajectory call.
type TrajectoryRequest struct {
	DataSourceID string
	Query        model.TrajectoryQuery
}

// ParseTrajectoryRequest validates the raw query string. Unrecognized
// parameter names, missing required parameters and malformed numbers are
// all invalid-parameter failures.
func ParseTrajectoryRequest(r *http.Request) (TrajectoryRequest, error) {
	values := r.URL.Query()
	for name := range values {
		if _, ok := recognized[name]; !ok {
			return TrajectoryRequest{}, fmt.Errorf("unrecognized parameter %q: %w", name, errs.ErrInvalidParameter)
		}
	}

	get := func(name string) string { return strings.TrimSpace(values.Get(name)) }

	for _, required := range []string{"datasource", "target", "x", "y"} {
		if get(required) == "" {
			return TrajectoryRequest{}, fmt.Errorf("missing required parameter %q: %w", required, errs.ErrInvalidParameter)
		}
	}

	x, err := parseFloat("x", get("x"))
	if err != nil {
		return TrajectoryRequest{}, err
	}
	y, err := parseFloat("y", get("y"))
	if err != nil {
		return TrajectoryRequest{}, err
	}

	srid := 4326
	if s := get("srid"); s != "" {
		srid, err = parseInt("srid", s)
		if err != nil {
			return TrajectoryRequest{}, err
		}
	}

	geomSRID := srid
	if s := get("geometry_srid"); s != "" {
		geomSRID, err = parseInt("geometry_srid", s)
		if err != nil {
			return TrajectoryRequest{}, err
		}
	}
	geomProp := get("geometry_property")
	if geomProp == "" {
		geomProp = "geom"
	}

	grid := model.GridShape{Columns: 2, Rows: 2}
	if s := get("grid_columns"); s != "" {
		grid.Columns, err = parseInt("grid_columns", s)
		if err != nil {
			return TrajectoryRequest{}, err
		}
	}
	if s := get("grid_rows"); s != "" {
		grid.Rows, err = parseInt("grid_rows", s)
		if err != nil {
			return TrajectoryRequest{}, err
		}
	}

	ck := model.ClassificationKind(strings.ToLower(get("classification_kind")))
	if ck == "" {
		ck = model.ClassificationLiteral
	}
	tk := model.TemporalKind(strings.ToLower(get("temporal_kind")))
	if tk == "" {
		tk = model.TemporalTyped
	}

	q := model.TrajectoryQuery{
		Target: get("target"),
		Point:  model.SpatialPoint{X: x, Y: y, SRID: srid},
		Time:   get("time"),
		Temporal: model.Temporal{
			Kind:         tk,
			StringFormat: get("temporal_format"),
		},
		Classification: model.Classification{
			Kind:             ck,
			ClassProperty:    get("class_property"),
			Entity:           get("class_entity"),
			EntityIDProperty: get("class_entity_id"),
		},
		Mapping: model.ObservationMapping{
			TemporalProperty:  get("temporal_property"),
			ClassProperty:     get("obs_class_property"),
			ClassPropertyName: get("class_property_name"),
		},
		Geometry:  model.GeometryProperty{Name: geomProp, SRID: geomSRID},
		Grid:      grid,
		StartDate: get("start_date"),
		EndDate:   get("end_date"),
	}
	if err := q.Validate(); err != nil {
		// Descriptor problems sent over the wire are the caller's fault.
		if errors.Is(err, errs.ErrConfiguration) {
			return TrajectoryRequest{}, fmt.Errorf("%v: %w", err, errs.ErrInvalidParameter)
		}
		return TrajectoryRequest{}, err
	}
	return TrajectoryRequest{DataSourceID: get("datasource"), Query: q}, nil
}

func parseFloat(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %q: %v: %w", name, err, errs.ErrInvalidParameter)
	}
	return v, nil
}

func parseInt(name, s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parameter %q: %v: %w", name, err, errs.ErrInvalidParameter)
	}
	return v, nil
}

type trajectoryResponse struct {
	DataSource string                  `json:"datasource"`
	Trajectory []model.TrajectoryPoint `json:"trajectory"`
}

// HandleTrajectory serves GET /trajectory: parse, dispatch, normalize. No
// data is a 200 with an empty trajectory, never an error status.
func HandleTrajectory(log *slog.Logger, reg *datasource.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, "/trajectory", sw.code, time.Since(start).Seconds())
		}()

		req, err := ParseTrajectoryRequest(r)
		if err != nil {
			writeError(sw, err)
			return
		}

		ds, err := reg.Lookup(req.DataSourceID)
		if err != nil {
			writeError(sw, err)
			return
		}

		ctx := logger.WithDataSource(r.Context(), req.DataSourceID)
		tp, err := ds.Trajectory(ctx, req.Query)
		if err != nil {
			log.LogAttrs(ctx, slog.LevelError, "trajectory failed",
				slog.String("datasource", req.DataSourceID),
				slog.String("err", err.Error()),
			)
			observability.ObserveTrajectory(req.DataSourceID, observability.OutcomeError)
			writeError(sw, err)
			return
		}

		resp := trajectoryResponse{DataSource: req.DataSourceID, Trajectory: []model.TrajectoryPoint{}}
		if tp != nil {
			resp.Trajectory = append(resp.Trajectory, *tp)
			observability.ObserveTrajectory(req.DataSourceID, observability.OutcomePoint)
		} else {
			observability.ObserveTrajectory(req.DataSourceID, observability.OutcomeNoData)
		}
		writeJSON(sw, http.StatusOK, resp)
	}
}

// HandleDataSources serves GET /datasources.
func HandleDataSources(reg *datasource.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		writeJSON(w, http.StatusOK, map[string][]string{"datasources": reg.IDs()})
		observability.ObserveHTTP(r.Method, "/datasources", http.StatusOK, time.Since(start).Seconds())
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrInvalidParameter):
		code = http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, errs.ErrTransport):
		code = http.StatusBadGateway
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
