package detector

import (
	"context"
	"net/http"
	"strings"

	"iptv-scout/work/client"
	"iptv-scout/work/config"
	"iptv-scout/work/logger"
	"iptv-scout/work/types"
	"iptv-scout/work/utils"
)

// Detector classifies a bare URL into a source kind. String rules run
// first because they are free; the HEAD probe only fires when every
// shape rule misses.
type Detector struct {
	http *client.HeaderSettingClient
	cfg  *config.Config
	log  *logger.Logger
}

func New(cfg *config.Config, httpClient *client.HeaderSettingClient, log *logger.Logger) *Detector {
	return &Detector{
		http: httpClient,
		cfg:  cfg,
		log:  log.Named("detector"),
	}
}

// Detect classifies rawURL. The cascade is ordered and first match wins;
// later rules assume the earlier ones already failed, so do not reorder.
// When nothing matches and the probe is inconclusive the answer is M3U,
// the least harmful guess.
func (d *Detector) Detect(ctx context.Context, rawURL string) types.SourceKind {
	if kind, ok := d.DetectByShape(rawURL); ok {
		return kind
	}
	return d.probe(ctx, rawURL)
}

// DetectByShape applies only the free string rules. The second return is
// false when classification needs a network probe.
func (d *Detector) DetectByShape(rawURL string) (types.SourceKind, bool) {
	lower := strings.ToLower(rawURL)

	base := lower
	if idx := strings.IndexByte(base, '?'); idx >= 0 {
		base = base[:idx]
	}
	if strings.HasSuffix(base, ".m3u") || strings.HasSuffix(base, ".m3u8") ||
		strings.Contains(lower, "get.php") || strings.Contains(lower, "type=m3u") {
		return types.KindM3U, true
	}

	if strings.Contains(lower, "player_api.php") || strings.Contains(lower, "xmltv.php") ||
		strings.Contains(lower, "action=get_live_categories") {
		return types.KindXtream, true
	}

	for _, marker := range d.cfg.Tables.StalkerMarkers {
		if strings.Contains(lower, marker) {
			return types.KindStalker, true
		}
	}

	if strings.Contains(lower, "portal.php") && !strings.Contains(lower, "stalker_portal") {
		return types.KindMacPortal, true
	}

	return types.KindUnknown, false
}

// probe issues one HEAD request to break the tie. An mpegurl content type
// means a playlist; a 401 or 512 response is the signature of a portal
// demanding a handshake.
func (d *Detector) probe(ctx context.Context, rawURL string) types.SourceKind {
	probeCtx, cancel := context.WithTimeout(ctx, d.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, rawURL, nil)
	if err != nil {
		return types.KindM3U
	}
	resp, err := d.http.Do(req)
	if err != nil {
		if d.cfg.Debug {
			d.log.Debug("probe failed for %s: %v", utils.LogURL(d.cfg, rawURL), err)
		}
		return types.KindM3U
	}
	resp.Body.Close()

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(contentType, "mpegurl") {
		return types.KindM3U
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == 512 {
		return types.KindStalker
	}
	return types.KindM3U
}
