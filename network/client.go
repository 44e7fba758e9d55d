// Package network provides the HTTP clients used for upstream stream and API requests.
package network

import (
	"net/http"
	"time"

	"github.com/kitsune-cli/kitsune/constant"
)

// NewAPIClient returns a client for small JSON APIs such as AniSkip and GitHub releases.
// Requests without a User-Agent are sent as kitsune/<version>.
func NewAPIClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: userAgent{
			next:  newTransport(),
			value: constant.Kitsune + "/" + constant.Version,
		},
	}
}

type userAgent struct {
	next  http.RoundTripper
	value string
}

func (u userAgent) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", u.value)
	}
	return u.next.RoundTrip(req)
}

// NewStreamClient returns a client for manifest, level and fragment requests.
// Per-request deadlines come from the caller's context, so no client timeout is set.
// With fingerprint set, TLS handshakes mimic Chrome.
func NewStreamClient(fingerprint bool) *http.Client {
	if fingerprint {
		return &http.Client{Transport: newFingerprintTransport()}
	}
	return &http.Client{Transport: newTransport()}
}

func newTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 100
	t.MaxIdleConnsPerHost = 100
	t.MaxConnsPerHost = 200
	t.IdleConnTimeout = 30 * time.Second
	t.ResponseHeaderTimeout = 30 * time.Second
	t.ExpectContinueTimeout = 30 * time.Second
	return t
}
