package handlers

import (
	"errors"
	"net/http"

	"iptv-scout/work/database"
	"iptv-scout/work/parser"
	"iptv-scout/work/stalker"
	"iptv-scout/work/types"
	"iptv-scout/work/xtream"

	"github.com/gorilla/mux"
)

// HandleSourceChannels fetches the live catalog of a stored source and
// returns it in the normalized channel shape regardless of protocol.
func (a *API) HandleSourceChannels(w http.ResponseWriter, r *http.Request) {
	rec, err := a.db.GetSource(mux.Vars(r)["id"])
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "source not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load source")
		return
	}

	var channels []*types.Channel
	switch rec.Kind {
	case "m3u":
		res, err := parser.ParseFromURL(r.Context(), a.http, a.log, a.cfg, rec.URL, rec.ID)
		if err != nil {
			respondError(w, http.StatusBadGateway, "playlist fetch failed")
			return
		}
		channels = res.Channels

	case "xtream":
		xc := xtream.NewClient(a.cfg, a.http, a.log, rec.URL, rec.Username, rec.Password)
		switch r.URL.Query().Get("type") {
		case "vod":
			channels, err = xc.GetMovies(r.Context())
		case "series":
			channels, err = xc.GetSeries(r.Context())
		default:
			channels, err = xc.GetChannels(r.Context())
		}
		if err != nil {
			respondError(w, http.StatusBadGateway, "panel catalog fetch failed")
			return
		}

	case "stalker", "macportal":
		channels, err = a.stalkerChannels(r, rec)
		if err != nil {
			respondError(w, http.StatusBadGateway, "portal catalog fetch failed")
			return
		}

	default:
		respondError(w, http.StatusInternalServerError, "stored source has an unknown kind")
		return
	}

	if channels == nil {
		channels = []*types.Channel{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"sourceId": rec.ID,
		"count":    len(channels),
		"channels": channels,
	})
}

// stalkerChannels authenticates a fresh portal session and maps the
// portal listing into the normalized channel shape. The play command
// stays verbatim in the URL field; minting real stream links is a
// separate per-channel portal call.
func (a *API) stalkerChannels(r *http.Request, rec *database.SourceRecord) ([]*types.Channel, error) {
	sc, err := stalker.NewClient(a.cfg, a.http, a.log, a.generator, rec.URL, rec.Mac)
	if err != nil {
		return nil, err
	}
	sc.SetPortalPath(rec.PortalPath)

	result, err := sc.Validate(r.Context())
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, errors.New("portal authentication failed")
	}

	listed, err := sc.GetChannels(r.Context())
	if err != nil {
		return nil, err
	}

	channels := make([]*types.Channel, 0, len(listed))
	for _, pc := range listed {
		channels = append(channels, &types.Channel{
			ID:            pc.ID,
			Name:          pc.Name,
			URL:           pc.Cmd,
			Logo:          pc.Logo,
			ChannelNumber: pc.Number,
			EpgID:         pc.EpgID,
			ContentType:   types.ContentLive,
		})
	}
	return channels, nil
}
