package xtream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"iptv-scout/work/client"
	"iptv-scout/work/config"
	"iptv-scout/work/logger"
	"iptv-scout/work/types"
	"iptv-scout/work/utils"

	"github.com/grafana/regexp"
	"go.uber.org/ratelimit"
)

// ParseMode records how the panel's JSON was recovered. Panels behind
// broken PHP frontends wrap their JSON in HTML error pages; the second
// stage digs the first top-level {...} block out and retries.
type ParseMode int

const (
	ParseDirect    ParseMode = iota // Body unmarshaled as-is
	ParseRecovered                  // JSON block extracted out of surrounding noise
)

// AuthMethod records which probing tier accepted the credentials.
type AuthMethod int

const (
	MethodAPI      AuthMethod = iota // JSON API endpoint authenticated
	MethodPlaylist                   // Raw playlist link answered a HEAD probe
)

func (m AuthMethod) String() string {
	switch m {
	case MethodAPI:
		return "api"
	case MethodPlaylist:
		return "playlist"
	default:
		return "unknown"
	}
}

// jsonBlockRe grabs the first top-level JSON object out of a noisy body.
var jsonBlockRe = regexp.MustCompile(`(?s)\{.*\}`)

// Client talks to one Xtream panel with one credential pair. Instances are
// per validation session and hold the discovered endpoint after a
// successful probe.
type Client struct {
	baseURL  string
	username string
	password string
	endpoint string // API path that authenticated, set by Authenticate
	http     *client.HeaderSettingClient
	log      *logger.Logger
	cfg      *config.Config
	limiter  ratelimit.Limiter
}

// Result is the outcome of credential probing against a panel.
type Result struct {
	Authenticated bool
	Method        AuthMethod
	ParseMode     ParseMode
	Endpoint      string // API path or playlist format that succeeded
	Account       *types.AccountInfo
	Server        *types.ServerInfo
	M3UURL        string
	EPGURL        string
	Warnings      []string
}

// NewClient builds a per-session client for one panel and credential pair.
func NewClient(cfg *config.Config, httpClient *client.HeaderSettingClient, log *logger.Logger, rawURL, username, password string) *Client {
	return &Client{
		baseURL:  utils.NormalizeBaseURL(rawURL),
		username: username,
		password: password,
		http:     httpClient,
		log:      log.Named("xtream"),
		cfg:      cfg,
		limiter:  ratelimit.New(cfg.ProbeRatePerHost),
	}
}

// userInfo tolerates the type drift real panels exhibit: auth arrives as
// int or bool, counters as strings or numbers.
type userInfo struct {
	Username             string          `json:"username"`
	Status               string          `json:"status"`
	Auth                 json.RawMessage `json:"auth"`
	ExpDate              json.RawMessage `json:"exp_date"`
	IsTrial              json.RawMessage `json:"is_trial"`
	ActiveCons           json.RawMessage `json:"active_cons"`
	MaxConnections       json.RawMessage `json:"max_connections"`
	CreatedAt            json.RawMessage `json:"created_at"`
	AllowedOutputFormats []string        `json:"allowed_output_formats"`
}

type serverInfo struct {
	URL       string          `json:"url"`
	Port      json.RawMessage `json:"port"`
	HTTPSPort json.RawMessage `json:"https_port"`
	Timezone  string          `json:"timezone"`
}

type authResponse struct {
	UserInfo   *userInfo       `json:"user_info"`
	ServerInfo *serverInfo     `json:"server_info"`
	Auth       json.RawMessage `json:"auth"`
}

// Authenticate probes the panel for working credentials.
//
// Tier one walks the API endpoint shapes with query-string auth and the
// two-stage JSON parse. Tier two falls back to HEAD probes over the raw
// playlist link formats when no API endpoint answers; a 2xx there counts
// as implicit validation with no account metadata.
//
// Returns:
//   - *Result: tagged outcome, Authenticated=false when nothing accepted
//   - error: only for context cancellation; rejections are result values
func (c *Client) Authenticate(ctx context.Context) (*Result, error) {
	for _, path := range c.cfg.Tables.XtreamAPIPaths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.limiter.Take()

		result, ok := c.tryAPIEndpoint(ctx, path)
		if ok {
			c.endpoint = path
			return result, nil
		}
	}

	if c.cfg.Debug {
		c.log.Debug("no API endpoint authenticated for %s, trying playlist formats", utils.LogURL(c.cfg, c.baseURL))
	}

	for _, format := range c.cfg.Tables.M3ULinkFormats {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.limiter.Take()

		probeURL := c.baseURL + c.expandFormat(format)
		probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
		resp, err := c.http.Head(probeCtx, probeURL)
		cancel()
		if err != nil {
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if c.cfg.Debug {
				c.log.Debug("playlist format %s accepted for %s", format, utils.LogURL(c.cfg, c.baseURL))
			}
			return &Result{
				Authenticated: true,
				Method:        MethodPlaylist,
				Endpoint:      format,
				M3UURL:        probeURL,
			}, nil
		}
	}

	return &Result{Authenticated: false}, nil
}

// tryAPIEndpoint issues one API probe and decides acceptance. Any single
// signal is enough: status "Active", auth flag set, or a server_info
// object present at all.
func (c *Client) tryAPIEndpoint(ctx context.Context, path string) (*Result, bool) {
	apiURL := fmt.Sprintf("%s%s?username=%s&password=%s", c.baseURL, path, c.username, c.password)

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	resp, err := c.http.Get(reqCtx, apiURL)
	if err != nil {
		if c.cfg.Debug {
			c.log.Debug("probe %s failed: %v", path, err)
		}
		return nil, false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false
	}

	auth, mode, err := parseAuthBody(body)
	if err != nil {
		if c.cfg.Debug {
			preview := string(body)
			if len(preview) > 200 {
				preview = preview[:200]
			}
			c.log.Debug("unparseable response from %s: %v (body: %s)", path, err, preview)
		}
		return nil, false
	}

	if !accepted(auth) {
		return nil, false
	}

	result := &Result{
		Authenticated: true,
		Method:        MethodAPI,
		ParseMode:     mode,
		Endpoint:      path,
		Account:       c.buildAccountInfo(auth),
		Server:        buildServerInfo(auth),
		M3UURL:        fmt.Sprintf("%s/get.php?username=%s&password=%s&type=m3u_plus", c.baseURL, c.username, c.password),
		EPGURL:        fmt.Sprintf("%s/xmltv.php?username=%s&password=%s", c.baseURL, c.username, c.password),
	}

	if result.Account != nil && result.Account.ExpiresAt != nil {
		days := int(time.Until(*result.Account.ExpiresAt).Hours() / 24)
		if days >= 0 && days <= c.cfg.ExpiryWarnDays {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("account expires in %d days", days))
		}
	}

	return result, true
}

// parseAuthBody is the two-stage parse: direct JSON first, then the first
// top-level {...} block regex-recovered out of the body.
func parseAuthBody(body []byte) (*authResponse, ParseMode, error) {
	var auth authResponse
	if err := json.Unmarshal(body, &auth); err == nil {
		return &auth, ParseDirect, nil
	}

	block := jsonBlockRe.Find(body)
	if block == nil {
		return nil, ParseDirect, fmt.Errorf("no JSON object found in response")
	}
	if err := json.Unmarshal(block, &auth); err != nil {
		return nil, ParseRecovered, fmt.Errorf("recovered block is not valid JSON: %w", err)
	}
	return &auth, ParseRecovered, nil
}

// accepted decides authentication from any one of three signals.
func accepted(auth *authResponse) bool {
	if auth.UserInfo != nil {
		if strings.EqualFold(auth.UserInfo.Status, "Active") {
			return true
		}
		if rawInt(auth.UserInfo.Auth) == 1 {
			return true
		}
	}
	if rawInt(auth.Auth) == 1 {
		return true
	}
	return auth.ServerInfo != nil
}

func (c *Client) buildAccountInfo(auth *authResponse) *types.AccountInfo {
	ui := auth.UserInfo
	if ui == nil {
		return nil
	}

	info := &types.AccountInfo{
		Status:         ui.Status,
		IsTrial:        rawInt(ui.IsTrial) == 1,
		ActiveConns:    rawInt(ui.ActiveCons),
		MaxConns:       rawInt(ui.MaxConnections),
		CreatedAt:      rawString(ui.CreatedAt),
		AllowedFormats: ui.AllowedOutputFormats,
	}
	if info.Status == "" {
		info.Status = "Active"
	}

	info.Expiry, info.ExpiresAt = parseExpiry(rawString(ui.ExpDate))
	return info
}

func buildServerInfo(auth *authResponse) *types.ServerInfo {
	si := auth.ServerInfo
	if si == nil {
		return nil
	}
	return &types.ServerInfo{
		URL:       si.URL,
		Port:      rawString(si.Port),
		HTTPSPort: rawString(si.HTTPSPort),
		Timezone:  si.Timezone,
	}
}

// parseExpiry interprets the panel's exp_date field. Epoch seconds become
// a formatted date; "null" or empty means an open-ended subscription and
// reads "Unlimited", never "missing".
func parseExpiry(raw string) (string, *time.Time) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "null") {
		return "Unlimited", nil
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return raw, nil
	}
	at := time.Unix(secs, 0)
	return at.Format("02-01-2006 15:04:05"), &at
}

// expandFormat substitutes credentials into a playlist link template.
func (c *Client) expandFormat(format string) string {
	out := strings.ReplaceAll(format, "{user}", c.username)
	return strings.ReplaceAll(out, "{pass}", c.password)
}

// StreamURL builds a playable URL for a catalog entry using the fixed
// Xtream path grammar.
func (c *Client) StreamURL(contentType types.ContentType, streamID int, ext string) string {
	var segment string
	switch contentType {
	case types.ContentVOD:
		segment = "movie"
	case types.ContentSeries:
		segment = "series"
	default:
		segment = "live"
	}
	if ext == "" {
		ext = "m3u8"
	}
	return fmt.Sprintf("%s/%s/%s/%s/%d.%s", c.baseURL, segment, c.username, c.password, streamID, ext)
}

// rawInt coerces a JSON scalar that may arrive as number, numeric string,
// or bool into an int.
func rawInt(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	switch s {
	case "true":
		return 1
	case "false", "null", "":
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// rawString coerces a JSON scalar into its unquoted string form.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	s := strings.TrimSpace(string(raw))
	if s == "null" {
		return ""
	}
	return strings.Trim(s, `"`)
}
