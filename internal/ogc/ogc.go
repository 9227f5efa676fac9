// Package ogc builds and executes the OGC web-service requests (WFS
// GetFeature, WCS GetCoverage and their capability documents) used by the
// feature-service and coverage datasources.
package ogc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/geosense/landtraj/internal/errs"
)

// BasicAuth carries optional credentials for a GeoServer-style deployment.
type BasicAuth struct {
	User     string
	Password string
}

// ServiceEndpoint mounts the base URL of a workspace-scoped OGC service:
// host[:port]/location/workspace.
func ServiceEndpoint(host string, port int, location, workspace string) string {
	base := strings.TrimRight(host, "/")
	if port > 0 {
		base = fmt.Sprintf("%s:%d", base, port)
	}
	if location != "" {
		base += "/" + strings.Trim(location, "/")
	}
	if workspace != "" {
		base += "/" + strings.Trim(workspace, "/")
	}
	return base
}

// get issues one service request and returns the response body. Non-success
// statuses are transport errors; they are never swallowed here.
func get(ctx context.Context, client *http.Client, rawURL string, auth *BasicAuth) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", rawURL, err)
	}
	if auth != nil {
		req.SetBasicAuth(auth.User, auth.Password)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %v: %w", rawURL, err, errs.ErrTransport)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request %s: status %d: %w", rawURL, resp.StatusCode, errs.ErrTransport)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %v: %w", rawURL, err, errs.ErrTransport)
	}
	return body, nil
}

func serviceURL(base, service string, params url.Values) string {
	return fmt.Sprintf("%s/%s?%s", base, service, params.Encode())
}
