package detector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"iptv-scout/work/client"
	"iptv-scout/work/config"
	"iptv-scout/work/logger"
	"iptv-scout/work/types"
)

func newTestDetector() *Detector {
	return New(config.NewTestConfig(), client.New(client.Headers{}), logger.New("ERROR"))
}

func TestDetectByShape(t *testing.T) {
	d := newTestDetector()

	tests := []struct {
		url  string
		want types.SourceKind
	}{
		{"http://host/playlist.m3u", types.KindM3U},
		{"http://host/live/stream.M3U8", types.KindM3U},
		{"http://x.com/get.php?username=a&password=b&type=m3u_plus", types.KindM3U},
		{"http://host/list?type=m3u", types.KindM3U},
		{"http://host/player_api.php?username=a&password=b", types.KindXtream},
		{"http://host/xmltv.php?username=a", types.KindXtream},
		{"http://host/api?action=get_live_categories", types.KindXtream},
		{"http://host/stalker_portal/server/load.php", types.KindStalker},
		{"http://host/stalker/portal.php", types.KindStalker},
		{"http://host/portal.php", types.KindMacPortal},
	}

	for _, tt := range tests {
		kind, ok := d.DetectByShape(tt.url)
		if !ok {
			t.Errorf("DetectByShape(%q) inconclusive, want %s", tt.url, tt.want)
			continue
		}
		if kind != tt.want {
			t.Errorf("DetectByShape(%q) = %s, want %s", tt.url, kind, tt.want)
		}
	}
}

func TestDetectByShapeInconclusive(t *testing.T) {
	d := newTestDetector()
	if _, ok := d.DetectByShape("http://host/tv"); ok {
		t.Error("expected a bare path to need a probe")
	}
}

func TestGetPhpWinsOverXtreamMarkers(t *testing.T) {
	d := newTestDetector()
	kind, ok := d.DetectByShape("http://host/get.php?u=a&p=b&output=player_api.php")
	if !ok || kind != types.KindM3U {
		t.Errorf("got (%s, %v), want M3U first-match", kind, ok)
	}
}

func TestProbeContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	}))
	defer server.Close()

	d := newTestDetector()
	if kind := d.Detect(context.Background(), server.URL+"/tv"); kind != types.KindM3U {
		t.Errorf("Detect = %s, want M3U", kind)
	}
}

func TestProbePortalStatusCodes(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, 512} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))

		d := newTestDetector()
		if kind := d.Detect(context.Background(), server.URL+"/tv"); kind != types.KindStalker {
			t.Errorf("Detect with status %d = %s, want Stalker", code, kind)
		}
		server.Close()
	}
}

func TestProbeDefaultsToM3U(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
	}))
	defer server.Close()

	d := newTestDetector()
	if kind := d.Detect(context.Background(), server.URL+"/tv"); kind != types.KindM3U {
		t.Errorf("Detect = %s, want M3U default", kind)
	}
}

func TestProbeUnreachableDefaultsToM3U(t *testing.T) {
	d := newTestDetector()
	if kind := d.Detect(context.Background(), "http://127.0.0.1:1/tv"); kind != types.KindM3U {
		t.Errorf("Detect = %s, want M3U default", kind)
	}
}
