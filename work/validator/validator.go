package validator

import (
	"context"
	"net/url"
	"strings"
	"time"

	"iptv-scout/work/cache"
	"iptv-scout/work/client"
	"iptv-scout/work/config"
	"iptv-scout/work/detector"
	"iptv-scout/work/geo"
	"iptv-scout/work/logger"
	"iptv-scout/work/mac"
	"iptv-scout/work/metrics"
	"iptv-scout/work/parser"
	"iptv-scout/work/stalker"
	"iptv-scout/work/types"
	"iptv-scout/work/utils"
	"iptv-scout/work/xtream"

	"github.com/puzpuzpuz/xsync/v3"
)

// Request describes one source to validate. Kind may be KindUnknown, in
// which case the detector decides.
type Request struct {
	Kind       types.SourceKind `json:"-"`
	URL        string           `json:"url"`
	Username   string           `json:"username,omitempty"`
	Password   string           `json:"password,omitempty"`
	Mac        string           `json:"mac,omitempty"`
	PortalPath string           `json:"portalPath,omitempty"`
}

// Validator is the top-level entry point: detection plus per-protocol
// validation folded into one normalized result. It is safe for concurrent
// use; each validation builds its own protocol client so no session state
// crosses sources.
type Validator struct {
	cfg      *config.Config
	http     *client.HeaderSettingClient
	log      *logger.Logger
	detector *detector.Detector
	geo      *geo.Lookup
	cache    *cache.Cache
	gen      *mac.Generator

	// inFlight collapses concurrent validations of the same source
	// fingerprint onto one network session; latecomers wait and read
	// the cached result.
	inFlight *xsync.MapOf[string, chan struct{}]
}

func New(cfg *config.Config, httpClient *client.HeaderSettingClient, log *logger.Logger, resultCache *cache.Cache) *Validator {
	return &Validator{
		cfg:      cfg,
		http:     httpClient,
		log:      log.Named("validator"),
		detector: detector.New(cfg, httpClient, log),
		geo:      geo.New(cfg, httpClient, log),
		cache:    resultCache,
		gen:      mac.NewGenerator(cfg.Tables),
		inFlight: xsync.NewMapOf[string, chan struct{}](),
	}
}

// ValidateSource runs the full pipeline for one source. Malformed input
// fails locally with zero network cost; everything past the pre-checks is
// collected into the result rather than returned as an error, so the
// caller always gets a ValidationResult to render.
func (v *Validator) ValidateSource(ctx context.Context, req Request) *types.ValidationResult {
	started := time.Now()
	result := &types.ValidationResult{
		Valid:     true,
		Kind:      req.Kind,
		CheckedAt: started,
	}
	// finish must run before the result is shared through the cache or
	// the in-flight channel; after that point the pointer is read by
	// other goroutines and may not be written again.
	finish := func() *types.ValidationResult {
		result.Duration = time.Since(started)
		result.DurationMS = result.Duration.Milliseconds()
		result.KindName = result.Kind.String()
		return result
	}

	parsed, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil || parsed.Host == "" {
		result.AddIssue("malformed url")
		return finish()
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		result.AddIssue("unsupported url scheme %q", parsed.Scheme)
		return finish()
	}
	req.URL = parsed.String()

	if req.Kind == types.KindUnknown {
		result.Kind = v.detector.Detect(ctx, req.URL)
	}

	switch result.Kind {
	case types.KindXtream:
		if req.Username == "" || req.Password == "" {
			result.AddIssue("xtream source requires username and password")
			return finish()
		}
	case types.KindStalker, types.KindMacPortal:
		if req.Mac == "" {
			result.AddIssue("portal source requires a mac address")
			return finish()
		}
		if _, ok := mac.NormalizeMac(req.Mac); !ok {
			result.AddIssue("invalid mac address %q", req.Mac)
			return finish()
		}
	}

	fingerprint := cache.Fingerprint(result.Kind, req.URL, req.Username, req.Password, req.Mac)
	if cached, ok := v.cache.GetResult(fingerprint); ok {
		metrics.CacheHits.WithLabelValues("result", "hit").Inc()
		return cached
	}
	metrics.CacheHits.WithLabelValues("result", "miss").Inc()

	// collapse duplicate concurrent checks of the same source
	done := make(chan struct{})
	if existing, loaded := v.inFlight.LoadOrStore(fingerprint, done); loaded {
		select {
		case <-existing:
			if cached, ok := v.cache.GetResult(fingerprint); ok {
				return cached
			}
		case <-ctx.Done():
			result.AddIssue("validation cancelled")
			return finish()
		}
	} else {
		defer func() {
			v.inFlight.Delete(fingerprint)
			close(done)
		}()
	}

	metrics.ValidationsInFlight.Inc()
	defer metrics.ValidationsInFlight.Dec()

	result.Geo = v.lookupGeo(ctx, parsed.Hostname(), req.URL)

	switch result.Kind {
	case types.KindM3U:
		v.validateM3U(ctx, req, result)
	case types.KindXtream:
		v.validateXtream(ctx, req, result)
	case types.KindStalker, types.KindMacPortal:
		v.validateStalker(ctx, req, result)
	default:
		result.AddIssue("could not determine source type")
	}

	if result.Valid {
		source, err := types.NewSource(result.Kind, req.URL, req.Username, req.Password, req.Mac)
		if err == nil {
			result.Source = source
		}
	}

	outcome := "valid"
	if !result.Valid {
		outcome = "invalid"
	}
	metrics.ValidationsTotal.WithLabelValues(result.Kind.String(), outcome).Inc()
	metrics.ValidationDuration.WithLabelValues(result.Kind.String()).Observe(time.Since(started).Seconds())

	finish()
	v.cache.SetResult(fingerprint, result)
	return result
}

// lookupGeo is a best-effort side channel. Failures leave the field nil
// and never block validation.
func (v *Validator) lookupGeo(ctx context.Context, host, sourceURL string) *types.GeoInfo {
	if !v.cfg.GeoEnabled {
		return nil
	}
	if cached, ok := v.cache.GetGeo(host); ok {
		metrics.CacheHits.WithLabelValues("geo", "hit").Inc()
		return cached
	}
	metrics.CacheHits.WithLabelValues("geo", "miss").Inc()

	info, err := v.geo.LookupHost(ctx, sourceURL)
	if err != nil {
		if v.cfg.Debug {
			v.log.Debug("geo lookup failed for %s: %v", host, err)
		}
		return nil
	}
	v.cache.SetGeo(host, info)
	return info
}

// validateM3U fetches and parses the playlist, then folds the parse
// statistics into issues and warnings. An unusable playlist is blocking;
// structural oddities are warnings.
func (v *Validator) validateM3U(ctx context.Context, req Request, result *types.ValidationResult) {
	res, err := parser.ParseFromURL(ctx, v.http, v.log, v.cfg, req.URL, "")
	if err != nil {
		result.AddIssue("playlist fetch failed: %v", err)
		return
	}

	result.Stats = res.Stats
	if !res.Stats.HasHeader {
		result.AddIssue("missing #EXTM3U header")
	}
	if res.Stats.TotalChannels == 0 {
		result.AddIssue("playlist contains no channels")
	}
	if res.Stats.ExtinfCount != res.Stats.URLCount {
		result.AddWarning("entry count mismatch: %d EXTINF lines but %d stream urls",
			res.Stats.ExtinfCount, res.Stats.URLCount)
	}
}

// validateXtream authenticates against the panel API with the playlist
// probe fallback and copies account state and expiry warnings across. A
// panel that answers but reports the account inactive is a rejection, not
// a pass; the panel's own status string is surfaced verbatim.
func (v *Validator) validateXtream(ctx context.Context, req Request, result *types.ValidationResult) {
	xc := xtream.NewClient(v.cfg, v.http, v.log, req.URL, req.Username, req.Password)
	res, err := xc.Authenticate(ctx)
	if err != nil {
		result.AddIssue("xtream validation failed: %v", err)
		return
	}

	metrics.ProbeAttempts.WithLabelValues("xtream", probeOutcome(res.Authenticated)).Inc()
	if !res.Authenticated {
		result.AddIssue("panel rejected the credentials on every known endpoint")
		return
	}

	result.Account = res.Account
	result.Server = res.Server
	result.Warnings = append(result.Warnings, res.Warnings...)
	if res.Account != nil && !strings.EqualFold(res.Account.Status, "Active") {
		result.AddIssue("panel reports account status %q", res.Account.Status)
		return
	}
	if v.cfg.Debug {
		v.log.Debug("xtream source accepted at %s via %s", utils.LogURL(v.cfg, req.URL), res.Method)
	}
}

// validateStalker runs portal discovery and the handshake chain. Any
// non-active account status is surfaced as a warning, not an issue; the
// portal answered, so the source is real.
func (v *Validator) validateStalker(ctx context.Context, req Request, result *types.ValidationResult) {
	sc, err := stalker.NewClient(v.cfg, v.http, v.log, v.gen, req.URL, req.Mac)
	if err != nil {
		result.AddIssue("%v", err)
		return
	}
	sc.SetPortalPath(req.PortalPath)

	res, err := sc.Validate(ctx)
	if err != nil {
		result.AddIssue("portal validation failed: %v", err)
		return
	}

	metrics.ProbeAttempts.WithLabelValues("stalker", probeOutcome(res.Valid)).Inc()
	if !res.Valid {
		result.AddIssue("no working portal endpoint found")
		return
	}

	result.Account = &types.AccountInfo{
		Status: res.Status,
		Expiry: res.Expiry,
	}
	result.Server = &types.ServerInfo{
		URL:      res.PortalURL,
		Timezone: res.Timezone,
	}
	if !strings.EqualFold(res.Status, "Active") {
		result.AddWarning("portal reports account status %q", res.Status)
	}
}

func probeOutcome(ok bool) string {
	if ok {
		return "accepted"
	}
	return "rejected"
}
