package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"iptv-scout/work/cache"
	"iptv-scout/work/client"
	"iptv-scout/work/config"
	"iptv-scout/work/database"
	"iptv-scout/work/logger"
	"iptv-scout/work/validator"

	"github.com/gorilla/mux"
)

func newTestAPI(t *testing.T) (*API, *mux.Router) {
	t.Helper()

	cfg := config.NewTestConfig()
	cfg.GeoEnabled = false
	cfg.CacheEnabled = false
	cfg.ProbeRatePerHost = 100
	cfg.StalkerPasses = 1
	cfg.StalkerRetryDelay = 10 * time.Millisecond

	log := logger.New("ERROR")
	httpClient := client.New(client.Headers{})
	db, err := database.Open(filepath.Join(t.TempDir(), "api.db"), log)
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	resultCache := cache.NewCache(cfg.CacheDuration, cfg.CacheEnabled)
	api := New(cfg, httpClient, log, validator.New(cfg, httpClient, log, resultCache), db, resultCache)

	router := mux.NewRouter()
	api.Register(router)
	return api, router
}

func playlistServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "#EXTM3U\n#EXTINF:-1 tvg-id=\"one\",Channel One\nhttp://host/stream/1\n")
	}))
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, router *mux.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHandleValidate(t *testing.T) {
	_, router := newTestAPI(t)
	server := playlistServer(t)

	rr := doJSON(t, router, "POST", "/api/validate", fmt.Sprintf(`{"url":"%s/playlist.m3u"}`, server.URL))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body)
	}

	var result struct {
		Valid bool   `json:"valid"`
		Kind  string `json:"kind"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("bad response json: %v", err)
	}
	if !result.Valid || result.Kind != "m3u" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestHandleValidateBadBody(t *testing.T) {
	_, router := newTestAPI(t)

	rr := doJSON(t, router, "POST", "/api/validate", "{not json")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}

	rr = doJSON(t, router, "POST", "/api/validate", `{"kind":"bogus","url":"http://h"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown kind status = %d, want 400", rr.Code)
	}
}

func TestHandleDetect(t *testing.T) {
	_, router := newTestAPI(t)

	rr := doJSON(t, router, "GET", "/api/detect?url=http://host/player_api.php", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"kind":"xtream"`) {
		t.Errorf("body = %s", rr.Body)
	}

	rr = doJSON(t, router, "GET", "/api/detect", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing url status = %d, want 400", rr.Code)
	}
}

func TestHandleGenerateMac(t *testing.T) {
	_, router := newTestAPI(t)

	rr := doJSON(t, router, "POST", "/api/mac/generate", `{"prefix":"00:1A:79","count":5}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var body struct {
		Macs []string `json:"macs"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad response json: %v", err)
	}
	if len(body.Macs) != 5 {
		t.Fatalf("got %d macs, want 5", len(body.Macs))
	}
	for _, m := range body.Macs {
		if !strings.HasPrefix(m, "00:1A:79:") {
			t.Errorf("mac %q missing requested prefix", m)
		}
	}
}

func TestHandleMacCredentials(t *testing.T) {
	_, router := newTestAPI(t)

	rr := doJSON(t, router, "GET", "/api/mac/credentials?mac=00:1A:79:AB:CD:EF", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var creds struct {
		Model     string `json:"model"`
		DeviceID  string `json:"deviceId"`
		UserAgent string `json:"userAgent"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &creds); err != nil {
		t.Fatalf("bad response json: %v", err)
	}
	if creds.Model == "" || len(creds.DeviceID) != 64 || creds.UserAgent == "" {
		t.Errorf("unexpected credentials: %+v", creds)
	}

	rr = doJSON(t, router, "GET", "/api/mac/credentials?mac=nope", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid mac status = %d, want 400", rr.Code)
	}
}

func TestSourceLifecycle(t *testing.T) {
	_, router := newTestAPI(t)
	server := playlistServer(t)

	// create persists only after successful validation
	createBody := fmt.Sprintf(`{"name":"test list","url":"%s/playlist.m3u"}`, server.URL)
	rr := doJSON(t, router, "POST", "/api/sources", createBody)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body: %s", rr.Code, rr.Body)
	}

	var created struct {
		Source struct {
			ID   string `json:"id"`
			Kind string `json:"kind"`
		} `json:"source"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("bad response json: %v", err)
	}
	if created.Source.ID == "" || created.Source.Kind != "m3u" {
		t.Fatalf("unexpected source: %+v", created.Source)
	}
	id := created.Source.ID

	rr = doJSON(t, router, "GET", "/api/sources", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), id) {
		t.Errorf("list status = %d, body: %s", rr.Code, rr.Body)
	}

	rr = doJSON(t, router, "GET", "/api/sources/"+id, "")
	if rr.Code != http.StatusOK {
		t.Errorf("get status = %d", rr.Code)
	}

	rr = doJSON(t, router, "GET", "/api/sources/"+id+"/channels", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("channels status = %d, body: %s", rr.Code, rr.Body)
	}
	if !strings.Contains(rr.Body.String(), "Channel One") {
		t.Errorf("channels body = %s", rr.Body)
	}

	rr = doJSON(t, router, "POST", "/api/sources/"+id+"/refresh", "")
	if rr.Code != http.StatusOK {
		t.Errorf("refresh status = %d, body: %s", rr.Code, rr.Body)
	}

	rr = doJSON(t, router, "DELETE", "/api/sources/"+id, "")
	if rr.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rr.Code)
	}
	rr = doJSON(t, router, "GET", "/api/sources/"+id, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rr.Code)
	}
}

func TestCreateSourceRejectsInvalid(t *testing.T) {
	_, router := newTestAPI(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "#EXTM3U\n")
	}))
	defer server.Close()

	rr := doJSON(t, router, "POST", "/api/sources", fmt.Sprintf(`{"url":"%s/empty.m3u"}`, server.URL))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}

	rr = doJSON(t, router, "GET", "/api/sources", "")
	var list struct {
		Sources []json.RawMessage `json:"sources"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("bad response json: %v", err)
	}
	if len(list.Sources) != 0 {
		t.Errorf("invalid source was persisted: %s", rr.Body)
	}
}

func TestHandleHealth(t *testing.T) {
	_, router := newTestAPI(t)

	rr := doJSON(t, router, "GET", "/health", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "ok") {
		t.Errorf("health = %d %s", rr.Code, rr.Body)
	}
}
