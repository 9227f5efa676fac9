package ogc

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/geosense/landtraj/internal/errs"
	"github.com/geosense/landtraj/internal/observability"
)

// CoverageParams describes one WCS GetCoverage request: a GeoTIFF clipped
// to a bounding box, resampled to the given grid, for one time slice.
type CoverageParams struct {
	Coverage string
	SRID     int
	// BBox is minX, minY, maxX, maxY in EPSG:4326.
	BBox   [4]float64
	Width  int
	Height int
	Time   string
}

// BuildGetCoverageParams renders the request query string.
func BuildGetCoverageParams(p CoverageParams) url.Values {
	params := url.Values{}
	params.Set("service", "WCS")
	params.Set("version", "1.0.0")
	params.Set("request", "GetCoverage")
	params.Set("coverage", p.Coverage)
	params.Set("crs", "EPSG:4326")
	params.Set("response_crs", fmt.Sprintf("EPSG:%d", p.SRID))
	params.Set("bbox", fmt.Sprintf("%v,%v,%v,%v", p.BBox[0], p.BBox[1], p.BBox[2], p.BBox[3]))
	params.Set("width", fmt.Sprintf("%d", p.Width))
	params.Set("height", fmt.Sprintf("%d", p.Height))
	params.Set("format", "GeoTIFF")
	params.Set("time", p.Time)
	return params
}

// WCSClient talks to one coverage service. The capability listing is
// cached for the client's lifetime, so repeated existence checks within a
// session cost no extra round-trips.
type WCSClient struct {
	logger *slog.Logger
	http   *http.Client
	base   string
	auth   *BasicAuth

	mu        sync.Mutex
	coverages map[string]struct{}
}

func NewWCSClient(logger *slog.Logger, client *http.Client, base string, auth *BasicAuth) (*WCSClient, error) {
	if base == "" {
		return nil, fmt.Errorf("wcs client requires a base url: %w", errs.ErrConfiguration)
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("wcs base url %q: %v: %w", base, err, errs.ErrConfiguration)
	}
	return &WCSClient{logger: logger, http: client, base: base, auth: auth}, nil
}

// ListCoverages returns the coverage names the service advertises.
func (c *WCSClient) ListCoverages(ctx context.Context) ([]string, error) {
	params := url.Values{}
	params.Set("service", "WCS")
	params.Set("version", "1.0.0")
	params.Set("request", "GetCapabilities")

	start := time.Now()
	body, err := get(ctx, c.http, serviceURL(c.base, "wcs", params), c.auth)
	observability.ObserveUpstreamLatency("wcs", time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	var caps struct {
		Coverages []struct {
			Name string `xml:"name"`
		} `xml:"ContentMetadata>CoverageOfferingBrief"`
	}
	if err := xml.Unmarshal(body, &caps); err != nil {
		return nil, fmt.Errorf("decode wcs capabilities: %v: %w", err, errs.ErrTransport)
	}

	names := make([]string, 0, len(caps.Coverages))
	for _, cov := range caps.Coverages {
		names = append(names, strings.TrimSpace(cov.Name))
	}
	return names, nil
}

// CoverageExists reports whether the service advertises name. The
// capability document is fetched once per client.
func (c *WCSClient) CoverageExists(ctx context.Context, name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.coverages == nil {
		names, err := c.ListCoverages(ctx)
		if err != nil {
			return false, err
		}
		c.coverages = make(map[string]struct{}, len(names))
		for _, n := range names {
			c.coverages[n] = struct{}{}
		}
	}
	_, ok := c.coverages[name]
	return ok, nil
}

// FetchCoverage retrieves the raw GeoTIFF bytes for one clipped coverage.
// The caller decides how to treat failures; the sampler maps them to
// "no data" per its contract.
func (c *WCSClient) FetchCoverage(ctx context.Context, p CoverageParams) ([]byte, error) {
	start := time.Now()
	body, err := get(ctx, c.http, serviceURL(c.base, "wcs", BuildGetCoverageParams(p)), c.auth)
	observability.ObserveUpstreamLatency("wcs", time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, "wcs get coverage",
		slog.String("coverage", p.Coverage),
		slog.Int("bytes", len(body)),
	)
	return body, nil
}
