// Package wcs resolves trajectory points against a web coverage service
// by sampling one pixel of the configured coverage.
package wcs

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/geosense/landtraj/internal/errs"
	"github.com/geosense/landtraj/internal/model"
	"github.com/geosense/landtraj/internal/raster"
	"github.com/geosense/landtraj/internal/temporal"
)

// bufferRadius is the half-width in native units of the bounding box
// clipped around the query point. Calibrated for the coverage grids this
// service fronts; not caller-tunable.
const bufferRadius = 0.002

// PixelSampler is the slice of the raster sampler the backend consumes.
// Satisfied by *raster.Sampler.
type PixelSampler interface {
	Sample(ctx context.Context, req raster.SampleRequest) (int32, bool)
}

// CoverageChecker validates coverage names against the service's
// capability listing. Satisfied by *ogc.WCSClient.
type CoverageChecker interface {
	CoverageExists(ctx context.Context, name string) (bool, error)
}

// Backend is one coverage-service datasource.
type Backend struct {
	id        string
	logger    *slog.Logger
	sampler   PixelSampler
	checker   CoverageChecker
	workspace string
}

func New(id string, logger *slog.Logger, sampler PixelSampler, checker CoverageChecker, workspace string) *Backend {
	return &Backend{id: id, logger: logger, sampler: sampler, checker: checker, workspace: workspace}
}

func (b *Backend) ID() string { return b.id }

// Trajectory samples the coverage pixel under the query point. The time
// filter runs client-side first: an observation outside the window
// resolves to no data with zero network calls. The coverage name is then
// validated against the service's capability listing before any fetch.
func (b *Backend) Trajectory(ctx context.Context, q model.TrajectoryQuery) (*model.TrajectoryPoint, error) {
	obs, err := temporal.Parse(q.Time)
	if err != nil {
		return nil, err
	}
	bounds, err := temporal.ParseBounds(q.StartDate, q.EndDate)
	if err != nil {
		return nil, err
	}
	if !bounds.Contains(obs) {
		return nil, nil
	}

	coverage := q.Target
	if b.workspace != "" {
		coverage = b.workspace + ":" + q.Target
	}

	exists, err := b.checker.CoverageExists(ctx, coverage)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("coverage %q: %w", coverage, errs.ErrNotFound)
	}

	v, ok := b.sampler.Sample(ctx, raster.SampleRequest{
		Coverage: coverage,
		SRID:     q.Point.SRID,
		BBox: [4]float64{
			q.Point.X - bufferRadius,
			q.Point.Y - bufferRadius,
			q.Point.X + bufferRadius,
			q.Point.Y + bufferRadius,
		},
		Grid:  q.Grid,
		Time:  q.Time,
		Point: q.Point,
	})
	if !ok {
		return nil, nil
	}
	return &model.TrajectoryPoint{Class: strconv.Itoa(int(v)), Date: q.Time}, nil
}
