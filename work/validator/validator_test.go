package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"iptv-scout/work/cache"
	"iptv-scout/work/client"
	"iptv-scout/work/config"
	"iptv-scout/work/logger"
	"iptv-scout/work/types"
)

func newTestValidator(tweak func(*config.Config)) *Validator {
	cfg := config.NewTestConfig()
	cfg.GeoEnabled = false
	cfg.CacheEnabled = true
	cfg.Tables.PortalPaths = []string{"/portal.php"}
	cfg.StalkerPasses = 1
	cfg.StalkerRetryDelay = 10 * time.Millisecond
	cfg.ProbeRatePerHost = 100
	if tweak != nil {
		tweak(cfg)
	}
	return New(cfg, client.New(client.Headers{}), logger.New("ERROR"), cache.NewCache(cfg.CacheDuration, cfg.CacheEnabled))
}

func TestValidateMalformedURL(t *testing.T) {
	v := newTestValidator(nil)

	result := v.ValidateSource(context.Background(), Request{URL: "not a url"})
	if result.Valid {
		t.Fatal("expected an invalid result")
	}
	if len(result.Issues) != 1 || result.Issues[0] != "malformed url" {
		t.Errorf("issues = %v", result.Issues)
	}
}

func TestValidateRejectsNonHTTPScheme(t *testing.T) {
	v := newTestValidator(nil)

	result := v.ValidateSource(context.Background(), Request{URL: "ftp://host/list.m3u"})
	if result.Valid {
		t.Fatal("expected an invalid result")
	}
	if !strings.Contains(result.Issues[0], "unsupported url scheme") {
		t.Errorf("issues = %v", result.Issues)
	}
}

func TestValidateMandatoryCredentials(t *testing.T) {
	v := newTestValidator(nil)

	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"xtream without credentials", Request{Kind: types.KindXtream, URL: "http://host"}, "requires username and password"},
		{"stalker without mac", Request{Kind: types.KindStalker, URL: "http://host"}, "requires a mac address"},
		{"stalker with bad mac", Request{Kind: types.KindStalker, URL: "http://host", Mac: "zz:zz"}, "invalid mac address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.ValidateSource(context.Background(), tt.req)
			if result.Valid {
				t.Fatal("expected an invalid result")
			}
			if !strings.Contains(result.Issues[0], tt.want) {
				t.Errorf("issues = %v, want mention of %q", result.Issues, tt.want)
			}
		})
	}
}

func TestValidateM3USource(t *testing.T) {
	playlist := "#EXTM3U\n" +
		"#EXTINF:-1 tvg-id=\"one\" group-title=\"News\",Channel One\n" +
		"http://host/stream/1\n" +
		"#EXTINF:-1,Channel Two\n" +
		"http://host/stream/2\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, playlist)
	}))
	defer server.Close()

	v := newTestValidator(nil)
	result := v.ValidateSource(context.Background(), Request{URL: server.URL + "/playlist.m3u"})

	if !result.Valid {
		t.Fatalf("expected a valid result, issues: %v", result.Issues)
	}
	if result.Kind != types.KindM3U {
		t.Errorf("kind = %s, want m3u", result.Kind)
	}
	if result.Stats == nil || result.Stats.TotalChannels != 2 {
		t.Errorf("unexpected stats: %+v", result.Stats)
	}
	if result.Source == nil || result.Source.Kind != types.KindM3U {
		t.Errorf("expected a source on success, got %+v", result.Source)
	}
}

func TestValidateM3UWithoutChannels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "#EXTM3U\n")
	}))
	defer server.Close()

	v := newTestValidator(nil)
	result := v.ValidateSource(context.Background(), Request{URL: server.URL + "/playlist.m3u"})

	if result.Valid {
		t.Fatal("expected an invalid result")
	}
	if !strings.Contains(strings.Join(result.Issues, ";"), "no channels") {
		t.Errorf("issues = %v", result.Issues)
	}
	if result.Source != nil {
		t.Error("no source must be built for an invalid result")
	}
}

func xtreamPanel(acceptUser string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/player_api.php" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("username") != acceptUser {
			json.NewEncoder(w).Encode(map[string]any{
				"user_info": map[string]any{"auth": 0, "status": "Disabled"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"user_info": map[string]any{
				"auth":     1,
				"status":   "Active",
				"exp_date": "1893456000",
			},
			"server_info": map[string]any{"url": "panel.host", "port": "8080"},
		})
	}
}

func TestValidateXtreamSource(t *testing.T) {
	server := httptest.NewServer(xtreamPanel("good"))
	defer server.Close()

	v := newTestValidator(nil)
	result := v.ValidateSource(context.Background(), Request{
		Kind:     types.KindXtream,
		URL:      server.URL,
		Username: "good",
		Password: "pw",
	})

	if !result.Valid {
		t.Fatalf("expected a valid result, issues: %v", result.Issues)
	}
	if result.Account == nil || result.Account.Status != "Active" {
		t.Errorf("unexpected account info: %+v", result.Account)
	}
	if result.Server == nil || result.Server.URL != "panel.host" {
		t.Errorf("unexpected server info: %+v", result.Server)
	}
}

func TestValidateXtreamInactiveStatusBlocks(t *testing.T) {
	// some panels keep answering with full server_info for accounts they
	// have disabled; the explicit status must block, not pass silently
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/player_api.php" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"user_info":   map[string]any{"auth": 0, "status": "Expired", "exp_date": "946684800"},
			"server_info": map[string]any{"url": "panel.host", "port": "8080"},
		})
	}))
	defer server.Close()

	v := newTestValidator(nil)
	result := v.ValidateSource(context.Background(), Request{
		Kind:     types.KindXtream,
		URL:      server.URL,
		Username: "expired",
		Password: "pw",
	})

	if result.Valid {
		t.Fatal("expected an invalid result for an expired account")
	}
	if !strings.Contains(strings.Join(result.Issues, ";"), `"Expired"`) {
		t.Errorf("expected the panel status in the issues, got %v", result.Issues)
	}
	if result.Account == nil || result.Account.Status != "Expired" {
		t.Errorf("account info must still carry the panel state: %+v", result.Account)
	}
	if result.Source != nil {
		t.Error("no source must be built for a rejected account")
	}
}

func TestValidateStalkerSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/portal.php" {
			http.NotFound(w, r)
			return
		}
		write := func(js any) {
			json.NewEncoder(w).Encode(map[string]any{"js": js})
		}
		switch r.URL.Query().Get("action") {
		case "handshake":
			write(map[string]string{"token": "tok"})
		case "get_profile":
			write(map[string]string{"default_timezone": "Europe/Berlin"})
		case "get_main_info":
			write(map[string]string{"mac": "00:1A:79:AB:CD:EF", "status": "Expired", "phone": "01-01-2024"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	v := newTestValidator(nil)
	result := v.ValidateSource(context.Background(), Request{
		Kind: types.KindStalker,
		URL:  server.URL,
		Mac:  "00:1A:79:AB:CD:EF",
	})

	if !result.Valid {
		t.Fatalf("expected a valid result, issues: %v", result.Issues)
	}
	if result.Account == nil || result.Account.Status != "Expired" {
		t.Errorf("unexpected account info: %+v", result.Account)
	}
	if len(result.Warnings) == 0 || !strings.Contains(result.Warnings[0], "Expired") {
		t.Errorf("expected a non-active status warning, got %v", result.Warnings)
	}
	if result.Server == nil || !strings.HasSuffix(result.Server.URL, "/portal.php") {
		t.Errorf("unexpected server info: %+v", result.Server)
	}
}

func TestValidateUsesResultCache(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "#EXTM3U\n#EXTINF:-1,One\nhttp://host/1\n")
	}))
	defer server.Close()

	v := newTestValidator(nil)
	req := Request{URL: server.URL + "/playlist.m3u"}

	first := v.ValidateSource(context.Background(), req)
	second := v.ValidateSource(context.Background(), req)

	if first != second {
		t.Error("expected the cached result on the second call")
	}
	if hits.Load() != 1 {
		t.Errorf("upstream hit %d times, want 1", hits.Load())
	}
}

func TestValidateConcurrentResultsAreComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		fmt.Fprint(w, "#EXTM3U\n#EXTINF:-1,One\nhttp://host/1\n")
	}))
	defer server.Close()

	v := newTestValidator(nil)
	req := Request{URL: server.URL + "/playlist.m3u"}

	// every caller, winner or cache waiter, must see a fully populated
	// result; the timing fields are written before the result is shared
	const callers = 4
	results := make([]*types.ValidationResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = v.ValidateSource(context.Background(), req)
		}(i)
	}
	wg.Wait()

	for i, result := range results {
		if result == nil || !result.Valid {
			t.Fatalf("caller %d: unexpected result %+v", i, result)
		}
		if result.KindName != "m3u" {
			t.Errorf("caller %d: kindName = %q, want m3u", i, result.KindName)
		}
		if result.Duration <= 0 {
			t.Errorf("caller %d: duration not set", i)
		}
	}
}

func TestValidateBulk(t *testing.T) {
	server := httptest.NewServer(xtreamPanel("good"))
	defer server.Close()

	v := newTestValidator(nil)
	results := v.ValidateBulk(context.Background(), server.URL, []Credential{
		{Username: "good", Password: "pw"},
		{Username: "bad", Password: "pw"},
	})

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Username != "good" || !results[0].Result.Valid {
		t.Errorf("expected the first credential to validate: %+v", results[0])
	}
	if results[1].Username != "bad" || results[1].Result.Valid {
		t.Errorf("expected the second credential to fail: %+v", results[1])
	}
}
