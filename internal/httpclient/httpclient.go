// Package httpclient configures the HTTP client used to call upstream services.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// NewOutbound creates the client shared by feature and coverage calls with
// the default 30 second ceiling. The ceiling bounds the raster fetch;
// expiry surfaces as "no data" at the sampler, not as a fatal error.
func NewOutbound() *http.Client {
	return NewOutboundWithTimeout(30 * time.Second)
}

// NewOutboundWithTimeout creates the outbound client with an explicit
// request ceiling.
func NewOutboundWithTimeout(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   128,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
