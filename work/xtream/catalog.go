package xtream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"iptv-scout/work/types"
	"iptv-scout/work/utils"
)

// LiveStream is one entry from the get_live_streams endpoint.
type LiveStream struct {
	StreamID     int    `json:"stream_id"`      // Identifier used in stream URL construction
	Name         string `json:"name"`           // Display name of the live channel
	CategoryID   string `json:"category_id"`    // Category identifier for grouping
	StreamIcon   string `json:"stream_icon"`    // Channel logo URL
	EpgChannelID string `json:"epg_channel_id"` // EPG channel identifier
}

// VODStream is one entry from the get_vod_streams endpoint.
type VODStream struct {
	StreamID           int    `json:"stream_id"`           // Identifier used in stream URL construction
	Name               string `json:"name"`                // Display name of the video content
	CategoryID         string `json:"category_id"`         // Category identifier for grouping
	StreamIcon         string `json:"stream_icon"`         // Poster/thumbnail URL
	ContainerExtension string `json:"container_extension"` // File format extension (mp4, mkv, ...)
}

// Series is one entry from the get_series endpoint.
type Series struct {
	SeriesID   int    `json:"series_id"`   // Identifier used in stream URL construction
	Name       string `json:"name"`        // Display name of the series
	CategoryID string `json:"category_id"` // Category identifier for grouping
	Cover      string `json:"cover"`       // Cover artwork URL
}

// Category is one entry from the get_*_categories endpoints.
type Category struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
}

// GetChannels fetches the live catalog and normalizes it, building stream
// URLs with the live path grammar.
func (c *Client) GetChannels(ctx context.Context) ([]*types.Channel, error) {
	streams, err := fetchData[LiveStream](ctx, c, "get_live_streams")
	if err != nil {
		return nil, err
	}

	channels := make([]*types.Channel, 0, len(streams))
	for _, s := range streams {
		channels = append(channels, &types.Channel{
			ID:          fmt.Sprintf("%d", s.StreamID),
			Name:        s.Name,
			URL:         c.StreamURL(types.ContentLive, s.StreamID, "m3u8"),
			Logo:        s.StreamIcon,
			Group:       s.CategoryID,
			EpgID:       s.EpgChannelID,
			ContentType: types.ContentLive,
		})
	}
	if c.cfg.Debug {
		c.log.Debug("fetched %d live channels from %s", len(channels), utils.LogURL(c.cfg, c.baseURL))
	}
	return channels, nil
}

// GetMovies fetches the VOD catalog, using each entry's declared container
// extension for the stream URL.
func (c *Client) GetMovies(ctx context.Context) ([]*types.Channel, error) {
	streams, err := fetchData[VODStream](ctx, c, "get_vod_streams")
	if err != nil {
		return nil, err
	}

	channels := make([]*types.Channel, 0, len(streams))
	for _, s := range streams {
		ext := s.ContainerExtension
		if ext == "" {
			ext = "mp4"
		}
		channels = append(channels, &types.Channel{
			ID:          fmt.Sprintf("%d", s.StreamID),
			Name:        s.Name,
			URL:         c.StreamURL(types.ContentVOD, s.StreamID, ext),
			Logo:        s.StreamIcon,
			Group:       s.CategoryID,
			ContentType: types.ContentVOD,
		})
	}
	return channels, nil
}

// GetSeries fetches the series catalog.
func (c *Client) GetSeries(ctx context.Context) ([]*types.Channel, error) {
	series, err := fetchData[Series](ctx, c, "get_series")
	if err != nil {
		return nil, err
	}

	channels := make([]*types.Channel, 0, len(series))
	for _, s := range series {
		channels = append(channels, &types.Channel{
			ID:          fmt.Sprintf("%d", s.SeriesID),
			Name:        s.Name,
			URL:         c.StreamURL(types.ContentSeries, s.SeriesID, "m3u8"),
			Logo:        s.Cover,
			Group:       s.CategoryID,
			ContentType: types.ContentSeries,
		})
	}
	return channels, nil
}

// GetLiveCategories fetches the live category list.
func (c *Client) GetLiveCategories(ctx context.Context) ([]Category, error) {
	return fetchData[Category](ctx, c, "get_live_categories")
}

// GetVODCategories fetches the VOD category list.
func (c *Client) GetVODCategories(ctx context.Context) ([]Category, error) {
	return fetchData[Category](ctx, c, "get_vod_categories")
}

// fetchData executes one catalog API request and unmarshals the array
// response. The endpoint discovered during Authenticate is used when set,
// otherwise the standard player_api path.
//
// Parameters:
//   - ctx: caller context, bounded again by cfg.RequestTimeout
//   - c: client carrying credentials and transport
//   - action: API action parameter (get_live_streams, get_series, ...)
//
// Returns:
//   - []T: decoded entries
//   - error: network, HTTP status, or decode failure
func fetchData[T any](ctx context.Context, c *Client, action string) ([]T, error) {
	c.limiter.Take()

	endpoint := c.endpoint
	if endpoint == "" {
		endpoint = "/player_api.php"
	}
	url := fmt.Sprintf("%s%s?username=%s&password=%s&action=%s",
		c.baseURL, endpoint, c.username, c.password, action)

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	resp, err := c.http.Get(reqCtx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned HTTP %d", action, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", action, err)
	}

	var items []T
	if err := json.Unmarshal(body, &items); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		if c.cfg.Debug {
			c.log.Debug("failed to parse %s response: %v (body: %s)", action, err, preview)
		}
		return nil, fmt.Errorf("failed to parse %s response: %w", action, err)
	}

	return items, nil
}
