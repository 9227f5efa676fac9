package ogc

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/geosense/landtraj/internal/errs"
	"github.com/geosense/landtraj/internal/model"
	"github.com/geosense/landtraj/internal/observability"
)

// FilterParams describes one WFS GetFeature request: a spatial intersects
// predicate, optional attribute projection and optional inclusive date
// bounds pushed into the CQL filter.
type FilterParams struct {
	FeatureType      string
	Properties       []string
	SRID             int
	GeometryProperty string
	Point            model.SpatialPoint

	// TemporalProperty plus Start/End add server-side range predicates.
	// Bound values must already be formatted for the backend.
	TemporalProperty string
	Start            string
	End              string
}

// BuildGetFeatureParams renders the request query string.
func BuildGetFeatureParams(p FilterParams) url.Values {
	params := url.Values{}
	params.Set("service", "WFS")
	params.Set("version", "1.0.0")
	params.Set("request", "GetFeature")
	params.Set("typeName", p.FeatureType)
	if len(p.Properties) > 0 {
		params.Set("propertyName", strings.Join(p.Properties, ","))
	}
	params.Set("outputFormat", "application/json")
	params.Set("srsName", fmt.Sprintf("EPSG:%d", p.SRID))

	cql := fmt.Sprintf("INTERSECTS(%s, %s)", p.GeometryProperty, p.Point.WKT())
	if p.TemporalProperty != "" {
		if p.Start != "" {
			cql += fmt.Sprintf(" AND %s >= '%s'", p.TemporalProperty, p.Start)
		}
		if p.End != "" {
			cql += fmt.Sprintf(" AND %s <= '%s'", p.TemporalProperty, p.End)
		}
	}
	params.Set("cql_filter", cql)
	return params
}

// Feature is one decoded GetFeature result.
type Feature struct {
	ID         string
	Properties map[string]any
}

// WFSClient talks to one feature service. The capability listing is cached
// for the client's lifetime, so repeated existence checks within a session
// cost no extra round-trips.
type WFSClient struct {
	logger *slog.Logger
	http   *http.Client
	base   string
	auth   *BasicAuth

	mu           sync.Mutex
	featureTypes map[string]struct{}
}

func NewWFSClient(logger *slog.Logger, client *http.Client, base string, auth *BasicAuth) (*WFSClient, error) {
	if base == "" {
		return nil, fmt.Errorf("wfs client requires a base url: %w", errs.ErrConfiguration)
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("wfs base url %q: %v: %w", base, err, errs.ErrConfiguration)
	}
	return &WFSClient{logger: logger, http: client, base: base, auth: auth}, nil
}

// ListFeatureTypes fetches the capability document and returns the feature
// type names the service advertises.
func (c *WFSClient) ListFeatureTypes(ctx context.Context) ([]string, error) {
	params := url.Values{}
	params.Set("service", "WFS")
	params.Set("version", "1.0.0")
	params.Set("request", "GetCapabilities")

	start := time.Now()
	body, err := get(ctx, c.http, serviceURL(c.base, "wfs", params), c.auth)
	observability.ObserveUpstreamLatency("wfs", time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	var caps struct {
		FeatureTypes []struct {
			Name string `xml:"Name"`
		} `xml:"FeatureTypeList>FeatureType"`
	}
	if err := xml.Unmarshal(body, &caps); err != nil {
		return nil, fmt.Errorf("decode wfs capabilities: %v: %w", err, errs.ErrTransport)
	}

	names := make([]string, 0, len(caps.FeatureTypes))
	for _, ft := range caps.FeatureTypes {
		names = append(names, strings.TrimSpace(ft.Name))
	}
	return names, nil
}

// FeatureTypeExists reports whether the service advertises name. The
// capability document is fetched once per client.
func (c *WFSClient) FeatureTypeExists(ctx context.Context, name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.featureTypes == nil {
		names, err := c.ListFeatureTypes(ctx)
		if err != nil {
			return false, err
		}
		c.featureTypes = make(map[string]struct{}, len(names))
		for _, n := range names {
			c.featureTypes[n] = struct{}{}
		}
	}
	_, ok := c.featureTypes[name]
	return ok, nil
}

// GetFeatures runs one GetFeature cycle and decodes the GeoJSON response.
// An empty collection is not an error.
func (c *WFSClient) GetFeatures(ctx context.Context, p FilterParams) ([]Feature, error) {
	start := time.Now()
	body, err := get(ctx, c.http, serviceURL(c.base, "wfs", BuildGetFeatureParams(p)), c.auth)
	observability.ObserveUpstreamLatency("wfs", time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	var fc struct {
		Features []struct {
			ID         string         `json:"id"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, fmt.Errorf("decode feature collection: %v: %w", err, errs.ErrTransport)
	}

	features := make([]Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		features = append(features, Feature{ID: f.ID, Properties: f.Properties})
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, "wfs get features",
		slog.String("feature_type", p.FeatureType),
		slog.Int("count", len(features)),
	)
	return features, nil
}

// AttributeByFeatureID resolves a single attribute of one feature by its
// identifier. The service answers in GML, so the value is pulled from the
// first element whose local name matches the attribute.
func (c *WFSClient) AttributeByFeatureID(ctx context.Context, featureType, featureID, attribute string) (string, error) {
	params := url.Values{}
	params.Set("service", "WFS")
	params.Set("version", "1.0.0")
	params.Set("request", "GetFeature")
	params.Set("typeName", featureType)
	params.Set("featureID", featureID)

	start := time.Now()
	body, err := get(ctx, c.http, serviceURL(c.base, "wfs", params), c.auth)
	observability.ObserveUpstreamLatency("wfs", time.Since(start).Seconds())
	if err != nil {
		return "", err
	}

	value, ok, err := firstElementText(body, attribute)
	if err != nil {
		return "", fmt.Errorf("decode feature %s: %v: %w", featureID, err, errs.ErrTransport)
	}
	if !ok {
		return "", fmt.Errorf("attribute %q on feature %s of %s: %w", attribute, featureID, featureType, errs.ErrNotFound)
	}
	return value, nil
}

// firstElementText scans an XML document for the first element whose local
// name matches name and returns its character data.
func firstElementText(doc []byte, name string) (string, bool, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	inTarget := false
	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", false, nil
			}
			return "", false, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == name {
				inTarget = true
				text.Reset()
			}
		case xml.CharData:
			if inTarget {
				text.Write(t)
			}
		case xml.EndElement:
			if inTarget && t.Name.Local == name {
				return strings.TrimSpace(text.String()), true, nil
			}
		}
	}
}
