package stalker

import (
	"context"
	"fmt"
	"net/url"
)

// PortalChannel is one live channel as the portal lists it.
type PortalChannel struct {
	ID      string `json:"id"`          // portal channel id
	Name    string `json:"name"`        // display name
	Number  string `json:"number"`      // channel number
	Cmd     string `json:"cmd"`         // play command, usually "ffmpeg http://..."
	Logo    string `json:"logo"`        // logo path relative to the portal
	GenreID string `json:"tv_genre_id"` // genre reference
	EpgID   string `json:"xmltv_id"`    // EPG channel id when mapped
}

// PortalCategory is one VOD or series genre entry.
type PortalCategory struct {
	ID    string `json:"id"`    // category id
	Title string `json:"title"` // display title
}

type channelListPayload struct {
	Data []PortalChannel `json:"data"`
}

// GetChannels returns the portal's full live channel list. Before a
// successful Validate there is no session token and the list is empty.
func (c *Client) GetChannels(ctx context.Context) ([]PortalChannel, error) {
	if c.token == "" {
		return nil, nil
	}
	c.limiter.Take()

	listURL := c.endpoint + "?type=itv&action=get_all_channels&JsHttpRequest=1-xml"
	var payload channelListPayload
	if !c.fetchJs(ctx, listURL, c.authHeaders(), &payload) {
		return nil, fmt.Errorf("channel list request failed")
	}
	return payload.Data, nil
}

// GetVODCategories returns the portal's movie genre list, empty before
// authentication.
func (c *Client) GetVODCategories(ctx context.Context) ([]PortalCategory, error) {
	return c.getCategories(ctx, "vod")
}

// GetSeriesCategories returns the portal's series genre list, empty before
// authentication.
func (c *Client) GetSeriesCategories(ctx context.Context) ([]PortalCategory, error) {
	return c.getCategories(ctx, "series")
}

func (c *Client) getCategories(ctx context.Context, kind string) ([]PortalCategory, error) {
	if c.token == "" {
		return nil, nil
	}
	c.limiter.Take()

	catURL := fmt.Sprintf("%s?type=%s&action=get_categories&JsHttpRequest=1-xml", c.endpoint, kind)
	var payload []PortalCategory
	if !c.fetchJs(ctx, catURL, c.authHeaders(), &payload) {
		return nil, fmt.Errorf("%s category request failed", kind)
	}
	return payload, nil
}

type linkPayload struct {
	Cmd string `json:"cmd"`
}

// CreateChannelStreamLink asks the portal to mint a playable URL for one
// channel. Portals wrap the real URL in an "ffmpeg ..." command string;
// the caller strips the prefix. Before a successful Validate there is no
// session token and the command is empty.
func (c *Client) CreateChannelStreamLink(ctx context.Context, channelID string) (string, error) {
	if c.token == "" {
		return "", nil
	}
	c.limiter.Take()

	cmd := fmt.Sprintf("ffmpeg http://localhost/ch/%s_", channelID)
	linkURL := fmt.Sprintf("%s?type=itv&action=create_link&cmd=%s&JsHttpRequest=1-xml",
		c.endpoint, url.QueryEscape(cmd))

	var payload linkPayload
	if !c.fetchJs(ctx, linkURL, c.authHeaders(), &payload) {
		return "", fmt.Errorf("create_link request failed")
	}
	if payload.Cmd == "" {
		return "", fmt.Errorf("portal returned no stream command")
	}
	return payload.Cmd, nil
}
