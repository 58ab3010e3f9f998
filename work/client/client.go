package client

import (
	"context"
	"net/http"
	"time"
)

// Headers is the per-request header bundle a protocol client attaches to
// its upstream calls. Extra carries protocol-specific headers such as the
// Stalker cookie and X-User-Agent lines.
type Headers struct {
	UserAgent string
	Origin    string
	Referer   string
	Extra     map[string]string
}

// HeaderSettingClient wraps http.Client so every request carries a
// consistent header bundle. Panels fingerprint clients on these headers,
// so all requests in a session must present the same identity.
type HeaderSettingClient struct {
	Client   *http.Client
	defaults Headers
}

// New builds a HeaderSettingClient with pooled transports and the given
// default header bundle. Per-request timeouts come from the caller's
// context; the client itself sets none.
func New(defaults Headers) *HeaderSettingClient {
	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		},
	}

	return &HeaderSettingClient{
		Client:   client,
		defaults: defaults,
	}
}

// Do sends the request with the client's default header bundle applied.
func (hsc *HeaderSettingClient) Do(req *http.Request) (*http.Response, error) {
	hsc.setHeaders(req, hsc.defaults)
	return hsc.Client.Do(req)
}

// DoWithHeaders sends the request with an explicit header bundle,
// overriding the defaults for this call only.
func (hsc *HeaderSettingClient) DoWithHeaders(req *http.Request, h Headers) (*http.Response, error) {
	hsc.setHeaders(req, h)
	return hsc.Client.Do(req)
}

// Get issues a GET with the default header bundle and context deadline.
func (hsc *HeaderSettingClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return hsc.Do(req)
}

// Head issues a HEAD with the default header bundle. Probing code uses
// this to classify endpoints without pulling response bodies.
func (hsc *HeaderSettingClient) Head(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, err
	}
	return hsc.Do(req)
}

func (hsc *HeaderSettingClient) setHeaders(req *http.Request, h Headers) {
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}
	req.Header.Set("Accept", "*/*")

	if h.Origin != "" {
		req.Header.Set("Origin", h.Origin)
	}
	if h.Referer != "" {
		req.Header.Set("Referer", h.Referer)
	}
	for k, v := range h.Extra {
		req.Header.Set(k, v)
	}
}
