package stalker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"iptv-scout/work/client"
	"iptv-scout/work/config"
	"iptv-scout/work/logger"
	"iptv-scout/work/mac"
	"iptv-scout/work/types"
	"iptv-scout/work/utils"

	"go.uber.org/ratelimit"
)

// Client authenticates against one Stalker/Ministra portal as one emulated
// set-top box. The authorization token is instance state; a client must not
// be shared across validations of different sources.
type Client struct {
	baseURL  string
	mac      string
	creds    *types.DeviceCredentials
	timezone string

	pathOverride string // caller-pinned portal path, tried before discovery

	endpoint string // discovered portal endpoint, set by Validate
	token    string // session token, set after a successful handshake

	http    *client.HeaderSettingClient
	cfg     *config.Config
	log     *logger.Logger
	limiter ratelimit.Limiter
}

// Result is the outcome of portal validation.
type Result struct {
	Valid     bool
	PortalURL string // endpoint that completed the chain
	Mac       string // MAC echoed back by the portal
	Status    string // account status, default "Active"
	Expiry    string // from js.phone or js.exp_date, "N/A" when absent
	Timezone  string // portal default timezone when advertised
}

// NewClient builds a per-session portal client. The MAC is normalized and
// the device identity bundle derived once; every request in the session
// presents the same identity.
func NewClient(cfg *config.Config, httpClient *client.HeaderSettingClient, log *logger.Logger, gen *mac.Generator, rawURL, macAddr string) (*Client, error) {
	normalized, ok := mac.NormalizeMac(macAddr)
	if !ok {
		return nil, fmt.Errorf("invalid mac address %q", macAddr)
	}
	creds, err := gen.DeviceCredentials(normalized)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:  utils.NormalizeBaseURL(rawURL),
		mac:      normalized,
		creds:    creds,
		timezone: gen.RandomTimezone(),
		http:     httpClient,
		cfg:      cfg,
		log:      log.Named("stalker"),
		limiter:  ratelimit.New(cfg.ProbeRatePerHost),
	}, nil
}

// SetPortalPath pins the portal endpoint path. A pinned path is tried
// before the discovery table on every pass.
func (c *Client) SetPortalPath(path string) {
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	c.pathOverride = path
}

// headers builds the portal header bundle. Portals fingerprint this set,
// so the user agent, X-User-Agent model line, and cookie must describe the
// same device.
func (c *Client) headers() client.Headers {
	return client.Headers{
		UserAgent: c.creds.UserAgent,
		Referer:   c.baseURL + "/c/index.html",
		Extra: map[string]string{
			"X-User-Agent": fmt.Sprintf("Model: %s; Link: Ethernet", c.creds.Model),
			"Cookie":       fmt.Sprintf("mac=%s; stb_lang=en; timezone=%s;", url.QueryEscape(c.mac), c.timezone),
		},
	}
}

func (c *Client) authHeaders() client.Headers {
	h := c.headers()
	h.Extra["Authorization"] = "Bearer " + c.token
	return h
}

// jsEnvelope is the portal's JSON wrapper: every response nests its payload
// under "js".
type jsEnvelope struct {
	Js json.RawMessage `json:"js"`
}

type handshakePayload struct {
	Token string `json:"token"`
}

type profilePayload struct {
	DefaultTimezone string `json:"default_timezone"`
}

type accountPayload struct {
	Mac           string `json:"mac"`
	Status        string `json:"status"`
	AccountStatus string `json:"account_status"`
	Phone         string `json:"phone"`
	ExpDate       string `json:"exp_date"`
}

// Validate discovers a working portal endpoint and runs the full
// handshake, profile, and account-info chain against it. The endpoint
// list is walked up to cfg.StalkerPasses times with cfg.StalkerRetryDelay
// between passes to absorb transient drops. Exhaustion yields a
// non-valid Result, never an error, except for context cancellation.
func (c *Client) Validate(ctx context.Context) (*Result, error) {
	for pass := 1; pass <= c.cfg.StalkerPasses; pass++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := c.runPass(ctx)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}

		if pass < c.cfg.StalkerPasses {
			select {
			case <-time.After(c.cfg.StalkerRetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	// last resort: the chain against the plain default path
	if result, ok := c.tryChain(ctx, c.baseURL+"/portal.php"); ok {
		return result, nil
	}

	return &Result{Valid: false}, nil
}

// runPass walks the endpoint table once. Returns nil when no candidate
// completed the chain this pass.
func (c *Client) runPass(ctx context.Context) (*Result, error) {
	candidates := c.candidateEndpoints()

	if c.cfg.ProbeParallel {
		if endpoint := c.probeParallel(ctx, candidates); endpoint != "" {
			if result, ok := c.tryChain(ctx, endpoint); ok {
				return result, nil
			}
		}
		// parallel probe found nothing chainable; fall through to the
		// sequential walk so parse failures on one endpoint still let
		// later candidates win
	}

	for _, endpoint := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !c.probeEndpoint(ctx, endpoint) {
			continue
		}
		if result, ok := c.tryChain(ctx, endpoint); ok {
			return result, nil
		}
	}
	return nil, nil
}

func (c *Client) candidateEndpoints() []string {
	endpoints := make([]string, 0, len(c.cfg.Tables.PortalPaths)+1)
	if c.pathOverride != "" {
		endpoints = append(endpoints, c.baseURL+c.pathOverride)
	}
	for _, path := range c.cfg.Tables.PortalPaths {
		endpoints = append(endpoints, c.baseURL+path)
	}
	return endpoints
}

// probeEndpoint issues one handshake request and checks only the HTTP
// status against the configured acceptance set. 401 and 512 are accepted
// alongside 200: both mean a Stalker-speaking server answered.
func (c *Client) probeEndpoint(ctx context.Context, endpoint string) bool {
	c.limiter.Take()

	probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.handshakeURL(endpoint), nil)
	if err != nil {
		return false
	}
	resp, err := c.http.DoWithHeaders(req, c.headers())
	if err != nil {
		return false
	}
	resp.Body.Close()

	return c.cfg.AcceptsStatus(resp.StatusCode)
}

// tryChain runs handshake, profile, and account-info strictly in order
// against one endpoint. Any parse failure abandons this candidate only.
func (c *Client) tryChain(ctx context.Context, endpoint string) (*Result, bool) {
	token, ok := c.handshake(ctx, endpoint)
	if !ok {
		return nil, false
	}
	c.token = token
	c.endpoint = endpoint
	if c.cfg.Debug {
		c.log.Debug("handshake succeeded at %s", utils.LogURL(c.cfg, endpoint))
	}

	// timezone extraction is opportunistic, a failed profile fetch does
	// not fail the candidate
	timezone := c.fetchProfileTimezone(ctx, endpoint)

	account, ok := c.fetchAccountInfo(ctx, endpoint)
	if !ok {
		c.token = ""
		c.endpoint = ""
		return nil, false
	}

	status := account.Status
	if status == "" {
		status = account.AccountStatus
	}
	if status == "" {
		status = "Active"
	}
	expiry := account.Phone
	if expiry == "" {
		expiry = account.ExpDate
	}
	if expiry == "" {
		expiry = "N/A"
	}

	return &Result{
		Valid:     true,
		PortalURL: endpoint,
		Mac:       account.Mac,
		Status:    status,
		Expiry:    expiry,
		Timezone:  timezone,
	}, true
}

func (c *Client) handshakeURL(endpoint string) string {
	return endpoint + "?type=stb&action=handshake&token=&prehash=false&JsHttpRequest=1-xml"
}

// handshake requests a session token. A missing or unparseable token
// fails this candidate.
func (c *Client) handshake(ctx context.Context, endpoint string) (string, bool) {
	c.limiter.Take()

	var payload handshakePayload
	if !c.fetchJs(ctx, c.handshakeURL(endpoint), c.headers(), &payload) {
		return "", false
	}
	if payload.Token == "" {
		return "", false
	}
	return payload.Token, true
}

func (c *Client) fetchProfileTimezone(ctx context.Context, endpoint string) string {
	c.limiter.Take()

	profileURL := endpoint + "?type=stb&action=get_profile&JsHttpRequest=1-xml"
	var payload profilePayload
	if !c.fetchJs(ctx, profileURL, c.authHeaders(), &payload) {
		return ""
	}
	return payload.DefaultTimezone
}

// fetchAccountInfo pulls the main account record. The portal must echo the
// MAC back, otherwise the response is not a real account envelope.
func (c *Client) fetchAccountInfo(ctx context.Context, endpoint string) (*accountPayload, bool) {
	c.limiter.Take()

	accountURL := endpoint + "?type=account_info&action=get_main_info&JsHttpRequest=1-xml"
	var payload accountPayload
	if !c.fetchJs(ctx, accountURL, c.authHeaders(), &payload) {
		return nil, false
	}
	if payload.Mac == "" {
		return nil, false
	}
	return &payload, true
}

// fetchJs executes one portal request and unmarshals the js payload into
// out. All failures collapse to a false return; the caller decides whether
// the candidate survives.
func (c *Client) fetchJs(ctx context.Context, reqURL string, h client.Headers, out any) bool {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false
	}
	resp, err := c.http.DoWithHeaders(req, h)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false
	}

	var envelope jsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Js == nil {
		return false
	}
	return json.Unmarshal(envelope.Js, out) == nil
}
