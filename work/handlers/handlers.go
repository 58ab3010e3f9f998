package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"iptv-scout/work/cache"
	"iptv-scout/work/client"
	"iptv-scout/work/config"
	"iptv-scout/work/database"
	"iptv-scout/work/detector"
	"iptv-scout/work/logger"
	"iptv-scout/work/mac"
	"iptv-scout/work/types"
	"iptv-scout/work/validator"

	"github.com/gorilla/mux"
)

// API bundles everything the HTTP surface needs. One instance serves all
// routes; per-request state lives in the request context.
type API struct {
	cfg       *config.Config
	log       *logger.Logger
	http      *client.HeaderSettingClient
	validator *validator.Validator
	detector  *detector.Detector
	generator *mac.Generator
	db        *database.DB
	cache     *cache.Cache
}

func New(cfg *config.Config, httpClient *client.HeaderSettingClient, log *logger.Logger, v *validator.Validator, db *database.DB, resultCache *cache.Cache) *API {
	return &API{
		cfg:       cfg,
		log:       log.Named("api"),
		http:      httpClient,
		validator: v,
		detector:  detector.New(cfg, httpClient, log),
		generator: mac.NewGenerator(cfg.Tables),
		db:        db,
		cache:     resultCache,
	}
}

// Register attaches every API route to the router.
func (a *API) Register(r *mux.Router) {
	r.HandleFunc("/api/validate", a.HandleValidate).Methods("POST")
	r.HandleFunc("/api/validate/bulk", a.HandleValidateBulk).Methods("POST")
	r.HandleFunc("/api/detect", a.HandleDetect).Methods("GET")
	r.HandleFunc("/api/mac/generate", a.HandleGenerateMac).Methods("POST")
	r.HandleFunc("/api/mac/credentials", a.HandleMacCredentials).Methods("GET")
	r.HandleFunc("/api/sources", a.HandleListSources).Methods("GET")
	r.HandleFunc("/api/sources", a.HandleCreateSource).Methods("POST")
	r.HandleFunc("/api/sources/{id}", a.HandleGetSource).Methods("GET")
	r.HandleFunc("/api/sources/{id}", a.HandleDeleteSource).Methods("DELETE")
	r.HandleFunc("/api/sources/{id}/refresh", a.HandleRefreshSource).Methods("POST")
	r.HandleFunc("/api/sources/{id}/channels", a.HandleSourceChannels).Methods("GET")
	r.HandleFunc("/health", a.HandleHealth).Methods("GET")
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// validateBody is the request shape shared by validate and source
// creation. Kind is optional; an empty value means auto-detect.
type validateBody struct {
	Kind       string `json:"kind"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	Mac        string `json:"mac"`
	PortalPath string `json:"portalPath"`
}

func (b *validateBody) toRequest() (validator.Request, error) {
	kind, err := types.ParseSourceKind(strings.ToLower(b.Kind))
	if err != nil {
		return validator.Request{}, err
	}
	return validator.Request{
		Kind:       kind,
		URL:        b.URL,
		Username:   b.Username,
		Password:   b.Password,
		Mac:        b.Mac,
		PortalPath: b.PortalPath,
	}, nil
}

// HandleValidate runs one ad-hoc validation without persisting anything.
func (a *API) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var body validateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req, err := body.toRequest()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := a.validator.ValidateSource(r.Context(), req)
	respondJSON(w, http.StatusOK, result)
}

// HandleValidateBulk checks many credential pairs against one panel.
func (a *API) HandleValidateBulk(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL         string                 `json:"url"`
		Credentials []validator.Credential `json:"credentials"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if body.URL == "" || len(body.Credentials) == 0 {
		respondError(w, http.StatusBadRequest, "url and credentials are required")
		return
	}

	results := a.validator.ValidateBulk(r.Context(), body.URL, body.Credentials)
	respondJSON(w, http.StatusOK, map[string]any{"results": results})
}

// HandleDetect classifies a url without validating it.
func (a *API) HandleDetect(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		respondError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	kind := a.detector.Detect(r.Context(), rawURL)
	respondJSON(w, http.StatusOK, map[string]string{"url": rawURL, "kind": kind.String()})
}

// HandleGenerateMac mints portal MAC addresses, optionally pinned to one
// vendor prefix. Count is capped to keep responses bounded.
func (a *API) HandleGenerateMac(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Prefix string `json:"prefix"`
		Count  int    `json:"count"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "invalid json body")
			return
		}
	}
	if body.Count <= 0 {
		body.Count = 1
	}
	if body.Count > 100 {
		body.Count = 100
	}

	macs := make([]string, 0, body.Count)
	for i := 0; i < body.Count; i++ {
		macs = append(macs, a.generator.GenerateMac(body.Prefix))
	}
	respondJSON(w, http.StatusOK, map[string]any{"macs": macs})
}

// HandleMacCredentials derives the full device identity bundle for a MAC.
func (a *API) HandleMacCredentials(w http.ResponseWriter, r *http.Request) {
	macAddr := r.URL.Query().Get("mac")
	if macAddr == "" {
		respondError(w, http.StatusBadRequest, "mac query parameter is required")
		return
	}

	creds, err := a.generator.DeviceCredentials(macAddr)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, creds)
}

// HandleListSources returns every stored source.
func (a *API) HandleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := a.db.LoadSources()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load sources")
		return
	}
	if sources == nil {
		sources = []*database.SourceRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

// HandleCreateSource validates a source and persists it only on success,
// mirroring the rule that a source record exists only after it has
// actually worked once.
func (a *API) HandleCreateSource(w http.ResponseWriter, r *http.Request) {
	var body validateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req, err := body.toRequest()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := a.validator.ValidateSource(r.Context(), req)
	if !result.Valid {
		respondJSON(w, http.StatusUnprocessableEntity, result)
		return
	}

	rec := database.RecordFromResult(result, body.Name)
	rec.PortalPath = body.PortalPath
	rec.ServerInfo = marshalServerInfo(result.Server)
	if err := a.db.SaveSource(rec); err != nil {
		a.log.Error("failed to persist source: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to persist source")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"source": rec, "validation": result})
}

// HandleGetSource fetches one stored source by id.
func (a *API) HandleGetSource(w http.ResponseWriter, r *http.Request) {
	rec, err := a.db.GetSource(mux.Vars(r)["id"])
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "source not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load source")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// HandleDeleteSource removes a stored source. The store never deletes on
// its own; this endpoint is the only path.
func (a *API) HandleDeleteSource(w http.ResponseWriter, r *http.Request) {
	err := a.db.DeleteSource(mux.Vars(r)["id"])
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "source not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete source")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRefreshSource re-validates a stored source and refreshes its
// cached status and expiry.
func (a *API) HandleRefreshSource(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := a.db.GetSource(id)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "source not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load source")
		return
	}

	kind, err := types.ParseSourceKind(rec.Kind)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "stored source has an unknown kind")
		return
	}

	fingerprint := cache.Fingerprint(kind, rec.URL, rec.Username, rec.Password, rec.Mac)
	a.cache.InvalidateResult(fingerprint)

	result := a.validator.ValidateSource(r.Context(), validator.Request{
		Kind:       kind,
		URL:        rec.URL,
		Username:   rec.Username,
		Password:   rec.Password,
		Mac:        rec.Mac,
		PortalPath: rec.PortalPath,
	})

	status, expiry, country := "", "", rec.CountryCode
	if result.Account != nil {
		status = result.Account.Status
		expiry = result.Account.Expiry
	}
	if result.Geo != nil {
		country = result.Geo.Country
	}
	if err := a.db.UpdateValidationState(id, status, expiry, country, marshalServerInfo(result.Server), result.CheckedAt); err != nil {
		a.log.Error("failed to refresh source %s: %v", id, err)
	}

	respondJSON(w, http.StatusOK, result)
}

// HandleHealth is the liveness endpoint.
func (a *API) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func marshalServerInfo(info *types.ServerInfo) string {
	if info == nil {
		return ""
	}
	data, err := json.Marshal(info)
	if err != nil {
		return ""
	}
	return string(data)
}
