package wcs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/geosense/landtraj/internal/errs"
	"github.com/geosense/landtraj/internal/model"
	"github.com/geosense/landtraj/internal/raster"
)

type fakeSampler struct {
	calls int
	req   raster.SampleRequest
	value int32
	ok    bool
}

func (f *fakeSampler) Sample(_ context.Context, req raster.SampleRequest) (int32, bool) {
	f.calls++
	f.req = req
	return f.value, f.ok
}

type fakeChecker struct {
	calls  int
	name   string
	exists bool
	err    error
}

func (f *fakeChecker) CoverageExists(_ context.Context, name string) (bool, error) {
	f.calls++
	f.name = name
	return f.exists, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func coverageQuery() model.TrajectoryQuery {
	return model.TrajectoryQuery{
		Target: "mapbiomas_v7",
		Point:  model.SpatialPoint{X: -50.1, Y: -10.2, SRID: 4326},
		Time:   "2019-01-01",
		Grid:   model.GridShape{Columns: 4, Rows: 4},
	}
}

func TestTrajectory_SamplesPixelAsClass(t *testing.T) {
	s := &fakeSampler{value: 21, ok: true}
	c := &fakeChecker{exists: true}
	b := New("mapbiomas", testLogger(), s, c, "datacube")

	tp, err := b.Trajectory(context.Background(), coverageQuery())
	if err != nil {
		t.Fatalf("Trajectory: %v", err)
	}
	if tp == nil || tp.Class != "21" || tp.Date != "2019-01-01" {
		t.Fatalf("point=%+v want class 21 at the query time", tp)
	}
	if s.req.Coverage != "datacube:mapbiomas_v7" || c.name != "datacube:mapbiomas_v7" {
		t.Fatalf("coverage=%q checked=%q must be workspace-qualified", s.req.Coverage, c.name)
	}

	wantBBox := [4]float64{-50.102, -10.202, -50.098, -10.198}
	for i := range wantBBox {
		if math.Abs(s.req.BBox[i]-wantBBox[i]) > 1e-9 {
			t.Fatalf("bbox=%v want point buffered by the fixed radius %v", s.req.BBox, wantBBox)
		}
	}
}

func TestTrajectory_UnknownCoverageIsNotFound(t *testing.T) {
	s := &fakeSampler{value: 21, ok: true}
	c := &fakeChecker{exists: false}
	b := New("mapbiomas", testLogger(), s, c, "")

	_, err := b.Trajectory(context.Background(), coverageQuery())
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
	if s.calls != 0 {
		t.Fatalf("unknown coverage must not be sampled, got %d fetches", s.calls)
	}
}

func TestTrajectory_TimeOutsideBoundsSkipsFetch(t *testing.T) {
	s := &fakeSampler{value: 21, ok: true}
	c := &fakeChecker{exists: true}
	b := New("mapbiomas", testLogger(), s, c, "")

	q := coverageQuery()
	q.StartDate = "2020"
	q.EndDate = "2021"

	tp, err := b.Trajectory(context.Background(), q)
	if err != nil {
		t.Fatalf("Trajectory: %v", err)
	}
	if tp != nil {
		t.Fatalf("point=%+v want no data", tp)
	}
	if s.calls+c.calls != 0 {
		t.Fatalf("excluded time must issue zero service calls, got (%d,%d)", s.calls, c.calls)
	}
}

func TestTrajectory_TimeInsideBoundsFetches(t *testing.T) {
	s := &fakeSampler{value: 3, ok: true}
	b := New("mapbiomas", testLogger(), s, &fakeChecker{exists: true}, "")

	q := coverageQuery()
	q.Time = "2019-06-15"
	q.StartDate = "2019"
	q.EndDate = "2019"

	tp, err := b.Trajectory(context.Background(), q)
	if err != nil {
		t.Fatalf("Trajectory: %v", err)
	}
	if tp == nil || tp.Class != "3" {
		t.Fatalf("point=%+v want class 3", tp)
	}
	if s.calls != 1 {
		t.Fatalf("fetches=%d want 1", s.calls)
	}
}

func TestTrajectory_NoPixelIsNoData(t *testing.T) {
	s := &fakeSampler{ok: false}
	b := New("mapbiomas", testLogger(), s, &fakeChecker{exists: true}, "")

	tp, err := b.Trajectory(context.Background(), coverageQuery())
	if err != nil {
		t.Fatalf("Trajectory: %v", err)
	}
	if tp != nil {
		t.Fatalf("point=%+v want nil", tp)
	}
}

func TestTrajectory_MalformedTimeIsInvalidParameter(t *testing.T) {
	b := New("mapbiomas", testLogger(), &fakeSampler{}, &fakeChecker{exists: true}, "")

	q := coverageQuery()
	q.Time = "around noon"

	if _, err := b.Trajectory(context.Background(), q); !errors.Is(err, errs.ErrInvalidParameter) {
		t.Fatalf("err=%v want ErrInvalidParameter", err)
	}
}
