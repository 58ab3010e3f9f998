package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"

	"iptv-scout/work/client"
	"iptv-scout/work/config"
	"iptv-scout/work/logger"
	"iptv-scout/work/types"
	"iptv-scout/work/utils"

	"github.com/grafov/m3u8"
)

// ParseFromURL fetches playlist text and parses it. HLS master playlists
// are expanded into one channel per variant; everything else goes through
// the line state machine. An empty body is an error, not a zero-channel
// success. Network and parse failures share the same error variant and
// differ only in message.
//
// Parameters:
//   - ctx: caller context, bounded again by cfg.RequestTimeout
//   - httpClient: header-setting client for the fetch
//   - log: component logger
//   - cfg: configuration for timeout and log obfuscation
//   - url: playlist URL
//   - sourceID: owning source id
//
// Returns:
//   - *ParseResult: parsed channels and statistics
//   - error: fetch or parse failure
func ParseFromURL(ctx context.Context, httpClient *client.HeaderSettingClient, log *logger.Logger, cfg *config.Config, url, sourceID string) (*ParseResult, error) {
	if cfg.Debug {
		log.Debug("fetching playlist from %s", utils.LogURL(cfg, url))
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	resp, err := httpClient.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("playlist fetch returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist body: %w", err)
	}

	content := string(data)
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("playlist body is empty")
	}

	// HLS master playlists carry variant streams, not channel entries.
	if strings.Contains(content, "#EXT-X-STREAM-INF") {
		if result, ok := parseMasterPlaylist(data, url, log, cfg); ok {
			return result, nil
		}
		// fall through to the generic parser when grafov rejects it
	}

	result := ParseFromContent(content, sourceID)
	if cfg.Debug {
		log.Debug("parsed %d channels from %s", len(result.Channels), utils.LogURL(cfg, url))
	}
	return result, nil
}

// parseMasterPlaylist expands an HLS master playlist into one channel per
// variant using the grafov decoder. Relative variant URIs are resolved
// against the playlist URL so every channel leaves with an absolute
// stream URL. Returns ok=false when decoding fails so the caller can fall
// back to the generic parser.
func parseMasterPlaylist(data []byte, url string, log *logger.Logger, cfg *config.Config) (*ParseResult, bool) {
	playlist, listType, err := m3u8.Decode(*bytes.NewBuffer(data), true)
	if err != nil {
		if cfg.Debug {
			log.Debug("grafov decode failed, using fallback parser: %v", err)
		}
		return nil, false
	}
	if listType != m3u8.MASTER {
		return nil, false
	}

	stats := &types.PlaylistStats{
		HasHeader:  true,
		ByType:     make(map[string]int),
		Categories: make(map[string]int),
	}
	result := &ParseResult{Stats: stats}
	base, baseErr := neturl.Parse(url)

	master := playlist.(*m3u8.MasterPlaylist)
	for _, variant := range master.Variants {
		if variant == nil {
			break
		}

		streamURL := variant.URI
		if baseErr == nil {
			if ref, err := neturl.Parse(variant.URI); err == nil {
				streamURL = base.ResolveReference(ref).String()
			}
		}

		name := variant.Name
		if name == "" && variant.Resolution != "" {
			name = fmt.Sprintf("Stream %s", variant.Resolution)
		} else if name == "" {
			name = fmt.Sprintf("Stream %d", variant.Bandwidth)
		}

		ch := &types.Channel{
			ID:          utils.HashURL(streamURL),
			Name:        name,
			URL:         streamURL,
			ContentType: types.ContentLive,
			Attributes:  make(map[string]string),
		}
		if variant.Bandwidth > 0 {
			ch.Attributes["bandwidth"] = fmt.Sprintf("%d", variant.Bandwidth)
		}
		if variant.Resolution != "" {
			ch.Attributes["resolution"] = variant.Resolution
		}

		result.Channels = append(result.Channels, ch)
		stats.ByType[types.ContentLive.String()]++
	}

	stats.TotalChannels = len(result.Channels)
	stats.URLCount = len(result.Channels)
	if cfg.Debug {
		log.Debug("master playlist expanded to %d variants from %s", len(result.Channels), utils.LogURL(cfg, url))
	}
	return result, true
}
