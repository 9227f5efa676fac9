package raster

import (
	"context"
	"log/slog"

	"github.com/geosense/landtraj/internal/model"
	"github.com/geosense/landtraj/internal/ogc"
	"github.com/geosense/landtraj/internal/samplecache"
)

// CoverageFetcher fetches raw coverage bytes. Satisfied by *ogc.WCSClient.
type CoverageFetcher interface {
	FetchCoverage(ctx context.Context, p ogc.CoverageParams) ([]byte, error)
}

// SampleRequest identifies one pixel sample. Identical requests yield
// identical values for the life of the dataset, which is what makes the
// memoization sound.
type SampleRequest struct {
	Coverage string
	SRID     int
	BBox     [4]float64
	Grid     model.GridShape
	Time     string
	Point    model.SpatialPoint
}

// Sampler fetches, decodes and samples coverages, memoizing successful
// extractions for the process lifetime. Undecodable, empty or timed-out
// responses read as "no data", never as failures.
type Sampler struct {
	logger  *slog.Logger
	fetcher CoverageFetcher
	cache   samplecache.Store
}

func NewSampler(logger *slog.Logger, fetcher CoverageFetcher, cache samplecache.Store) *Sampler {
	return &Sampler{logger: logger, fetcher: fetcher, cache: cache}
}

// Sample resolves the pixel value under req.Point. The ok result is false
// when the coverage yields no usable value.
func (s *Sampler) Sample(ctx context.Context, req SampleRequest) (int32, bool) {
	key := samplecache.Key(req.Coverage, req.SRID, req.BBox, req.Grid, req.Time, req.Point)
	if v, ok := s.cache.Get(ctx, key); ok {
		return v, true
	}

	data, err := s.fetcher.FetchCoverage(ctx, ogc.CoverageParams{
		Coverage: req.Coverage,
		SRID:     req.SRID,
		BBox:     req.BBox,
		Width:    req.Grid.Columns,
		Height:   req.Grid.Rows,
		Time:     req.Time,
	})
	if err != nil || len(data) == 0 {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "coverage fetch yielded no data",
			slog.String("coverage", req.Coverage),
			slog.Any("err", err),
		)
		return 0, false
	}

	// The decoded dataset lives only inside this call; the buffer is
	// released on every exit path.
	v, ok := extract(ctx, s.logger, data, req)
	if !ok {
		return 0, false
	}
	s.cache.Put(ctx, key, v)
	return v, true
}

func extract(ctx context.Context, logger *slog.Logger, data []byte, req SampleRequest) (int32, bool) {
	ds, err := Decode(data)
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelDebug, "coverage undecodable",
			slog.String("coverage", req.Coverage),
			slog.String("err", err.Error()),
		)
		return 0, false
	}
	row, col, err := ds.RowCol(req.Point.Y, req.Point.X)
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelWarn, "pixel transform failed",
			slog.String("coverage", req.Coverage),
			slog.String("err", err.Error()),
		)
		return 0, false
	}
	return ds.PixelAt(col, row)
}
