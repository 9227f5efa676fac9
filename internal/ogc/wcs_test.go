package ogc

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geosense/landtraj/internal/errs"
)

func TestBuildGetCoverageParams(t *testing.T) {
	v := BuildGetCoverageParams(CoverageParams{
		Coverage: "datacube:mapbiomas",
		SRID:     100001,
		BBox:     [4]float64{-50.102, -10.202, -50.098, -10.198},
		Width:    5,
		Height:   5,
		Time:     "2019-01-01",
	})
	if v.Get("coverage") != "datacube:mapbiomas" {
		t.Fatalf("coverage=%q", v.Get("coverage"))
	}
	if v.Get("crs") != "EPSG:4326" || v.Get("response_crs") != "EPSG:100001" {
		t.Fatalf("crs=%q response_crs=%q", v.Get("crs"), v.Get("response_crs"))
	}
	if v.Get("bbox") != "-50.102,-10.202,-50.098,-10.198" {
		t.Fatalf("bbox=%q", v.Get("bbox"))
	}
	if v.Get("format") != "GeoTIFF" || v.Get("width") != "5" || v.Get("height") != "5" {
		t.Fatalf("format/width/height: %v", v)
	}
}

func TestListCoverages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("request") != "GetCapabilities" {
			t.Fatalf("unexpected request %q", r.URL.RawQuery)
		}
		_, _ = io.WriteString(w, `<?xml version="1.0"?>
<wcs:WCS_Capabilities xmlns:wcs="http://www.opengis.net/wcs">
  <wcs:ContentMetadata>
    <wcs:CoverageOfferingBrief><wcs:name>datacube:mapbiomas</wcs:name></wcs:CoverageOfferingBrief>
    <wcs:CoverageOfferingBrief><wcs:name>datacube:terraclass</wcs:name></wcs:CoverageOfferingBrief>
  </wcs:ContentMetadata>
</wcs:WCS_Capabilities>`)
	}))
	defer srv.Close()

	c, err := NewWCSClient(discardLogger(), srv.Client(), srv.URL, nil)
	if err != nil {
		t.Fatalf("NewWCSClient: %v", err)
	}
	names, err := c.ListCoverages(context.Background())
	if err != nil {
		t.Fatalf("ListCoverages: %v", err)
	}
	if len(names) != 2 || names[0] != "datacube:mapbiomas" {
		t.Fatalf("names=%v", names)
	}
}

func TestCoverageExists_CachesCapabilities(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = io.WriteString(w, `<?xml version="1.0"?>
<wcs:WCS_Capabilities xmlns:wcs="http://www.opengis.net/wcs">
  <wcs:ContentMetadata>
    <wcs:CoverageOfferingBrief><wcs:name>datacube:mapbiomas</wcs:name></wcs:CoverageOfferingBrief>
  </wcs:ContentMetadata>
</wcs:WCS_Capabilities>`)
	}))
	defer srv.Close()

	c, err := NewWCSClient(discardLogger(), srv.Client(), srv.URL, nil)
	if err != nil {
		t.Fatalf("NewWCSClient: %v", err)
	}

	ok, err := c.CoverageExists(context.Background(), "datacube:mapbiomas")
	if err != nil || !ok {
		t.Fatalf("exists=%v err=%v want true", ok, err)
	}
	ok, err = c.CoverageExists(context.Background(), "datacube:prodes")
	if err != nil || ok {
		t.Fatalf("exists=%v err=%v want false", ok, err)
	}
	if calls != 1 {
		t.Fatalf("GetCapabilities calls=%d want 1", calls)
	}
}

func TestFetchCoverage_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such coverage", http.StatusNotFound)
	}))
	defer srv.Close()

	c, _ := NewWCSClient(discardLogger(), srv.Client(), srv.URL, nil)
	_, err := c.FetchCoverage(context.Background(), CoverageParams{Coverage: "x"})
	if !errors.Is(err, errs.ErrTransport) {
		t.Fatalf("want ErrTransport, got %v", err)
	}
}

func TestFetchCoverage_ReturnsBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{0x49, 0x49, 0x2a, 0x00})
	}))
	defer srv.Close()

	c, _ := NewWCSClient(discardLogger(), srv.Client(), srv.URL, nil)
	body, err := c.FetchCoverage(context.Background(), CoverageParams{Coverage: "x"})
	if err != nil {
		t.Fatalf("FetchCoverage: %v", err)
	}
	if len(body) != 4 || body[0] != 0x49 {
		t.Fatalf("body=%v", body)
	}
}
