package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"iptv-scout/work/client"
	"iptv-scout/work/config"
	"iptv-scout/work/logger"
	"iptv-scout/work/types"
)

const samplePlaylist = `#EXTM3U url-tvg="http://epg.example.com/guide.xml"
#EXTINF:-1 tvg-id="news.one" tvg-name="News One" tvg-logo="http://logo/no.png" group-title="News",News One HD
http://example.com/live/news1.m3u8
#EXTINF:-1 tvg-id='sports.two' group-title='Sports' catchup="shift" catchup-days="7",Sports Two
http://example.com/live/sports2.m3u8
#EXTINF:-1 group-title=Movies,Midnight Movie
http://example.com/vod/midnight.mp4
# just a comment
#EXTINF:-1 radio="true",Smooth FM
http://example.com/radio/smooth
`

func TestParseFromContent(t *testing.T) {
	result := ParseFromContent(samplePlaylist, "src1")

	if len(result.Channels) != 4 {
		t.Fatalf("expected 4 channels, got %d", len(result.Channels))
	}

	first := result.Channels[0]
	if first.ID != "news.one" {
		t.Errorf("first channel id = %q, want tvg-id", first.ID)
	}
	if first.Name != "News One HD" {
		t.Errorf("first channel name = %q", first.Name)
	}
	if first.Group != "News" || first.Logo != "http://logo/no.png" {
		t.Errorf("first channel attrs wrong: group=%q logo=%q", first.Group, first.Logo)
	}

	// single-quoted and bare attribute values
	second := result.Channels[1]
	if second.ID != "sports.two" {
		t.Errorf("single-quoted tvg-id not parsed: %q", second.ID)
	}
	if second.Catchup != "shift" || second.CatchupDays != "7" {
		t.Errorf("catchup attrs wrong: %q / %q", second.Catchup, second.CatchupDays)
	}
	third := result.Channels[2]
	if third.Group != "Movies" {
		t.Errorf("bare group-title not parsed: %q", third.Group)
	}
	if third.ContentType != types.ContentVOD {
		t.Errorf("mp4 url should classify as vod, got %v", third.ContentType)
	}

	// explicit radio flag wins over keyword detection
	if result.Channels[3].ContentType != types.ContentRadio {
		t.Errorf("radio=true entry should classify as radio, got %v", result.Channels[3].ContentType)
	}

	stats := result.Stats
	if !stats.HasHeader || !stats.HasEpgInfo {
		t.Error("header and EPG flags should both be set")
	}
	if stats.TotalChannels != 4 || stats.ExtinfCount != 4 || stats.URLCount != 4 {
		t.Errorf("counts wrong: channels=%d extinf=%d urls=%d",
			stats.TotalChannels, stats.ExtinfCount, stats.URLCount)
	}
	if stats.CommentLines != 1 {
		t.Errorf("comment lines = %d, want 1", stats.CommentLines)
	}
	if stats.Categories["News"] != 1 || stats.Categories["Sports"] != 1 {
		t.Errorf("categories wrong: %v", stats.Categories)
	}
	if stats.WithEpgID != 2 || stats.WithLogo != 1 || stats.WithCatchup != 1 {
		t.Errorf("coverage counters wrong: epg=%d logo=%d catchup=%d",
			stats.WithEpgID, stats.WithLogo, stats.WithCatchup)
	}
	if len(result.EpgURLs) != 1 || result.EpgURLs[0] != "http://epg.example.com/guide.xml" {
		t.Errorf("epg urls = %v", result.EpgURLs)
	}
}

func TestParseDoubleExtinfDropsFirst(t *testing.T) {
	content := `#EXTM3U
#EXTINF:-1,First Entry
#EXTINF:-1,Second Entry
http://example.com/stream
`
	result := ParseFromContent(content, "src")
	if len(result.Channels) != 1 {
		t.Fatalf("expected 1 channel, got %d", len(result.Channels))
	}
	if result.Channels[0].Name != "Second Entry" {
		t.Errorf("second EXTINF should win, got %q", result.Channels[0].Name)
	}
	if result.Stats.ExtinfCount != 2 {
		t.Errorf("extinf count = %d, want 2", result.Stats.ExtinfCount)
	}
}

func TestParseBareURLBecomesUnknownChannel(t *testing.T) {
	result := ParseFromContent("#EXTM3U\nhttp://example.com/orphan\n", "src")
	if len(result.Channels) != 1 {
		t.Fatalf("expected 1 channel, got %d", len(result.Channels))
	}
	if result.Channels[0].Name != "Unknown Channel" {
		t.Errorf("orphan url name = %q", result.Channels[0].Name)
	}
	if result.Channels[0].ID == "" {
		t.Error("orphan url should get a hash-derived id")
	}
}

func TestParseSideChannelOptions(t *testing.T) {
	content := `#EXTM3U
#EXTINF:-1,Protected Channel
#KODIPROP:inputstream.adaptive.license_type=clearkey
#EXTVLCOPT:http-user-agent=SpecialAgent/1.0
http://example.com/protected.m3u8
`
	result := ParseFromContent(content, "src")
	if len(result.Channels) != 1 {
		t.Fatalf("expected 1 channel, got %d", len(result.Channels))
	}
	props := result.Channels[0].Properties
	if props["inputstream.adaptive.license_type"] != "clearkey" {
		t.Errorf("kodi prop missing: %v", props)
	}
	if props["http-user-agent"] != "SpecialAgent/1.0" {
		t.Errorf("vlc opt missing: %v", props)
	}
}

func TestParseNonHTTPSchemes(t *testing.T) {
	content := "#EXTM3U\n#EXTINF:-1,UDP One\nudp://239.0.0.1:1234\n#EXTINF:-1,RTSP One\nrtsp://cam.example.com/feed\n"
	result := ParseFromContent(content, "src")
	if len(result.Channels) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(result.Channels))
	}
}

func TestChannelIDPriority(t *testing.T) {
	content := `#EXTM3U
#EXTINF:-1 tvg-name="Named Only",Title A
http://example.com/a
#EXTINF:-1,Title B
http://example.com/b
#EXTINF:-1,
http://example.com/c
`
	result := ParseFromContent(content, "src")
	if result.Channels[0].ID != "Named Only" {
		t.Errorf("tvg-name should win when tvg-id absent, got %q", result.Channels[0].ID)
	}
	if result.Channels[1].ID != "Title B" {
		t.Errorf("title should win when no tvg attrs, got %q", result.Channels[1].ID)
	}
	if result.Channels[2].ID == "" || strings.Contains(result.Channels[2].ID, "/") {
		t.Errorf("empty metadata should hash the url, got %q", result.Channels[2].ID)
	}
}

func TestDetectContentTypeOrder(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want types.ContentType
	}{
		{"Action Movie Channel", "http://x/stream", types.ContentVOD},
		// vod keyword outranks series keyword
		{"Movie Series Marathon", "http://x/stream", types.ContentVOD},
		{"Breaking Season 2 Episode 4", "http://x/stream", types.ContentSeries},
		{"Smooth Jazz Radio", "http://x/stream", types.ContentRadio},
		{"Generic Channel", "http://x/live/ch1", types.ContentLive},
		{"Generic Channel", "http://x/playlist.m3u8", types.ContentLive},
		{"Generic Channel", "http://x/stream", types.ContentUnknown},
	}

	for _, tt := range tests {
		if got := DetectContentType(tt.name, tt.url); got != tt.want {
			t.Errorf("DetectContentType(%q, %q) = %v, want %v", tt.name, tt.url, got, tt.want)
		}
		// classification must be idempotent
		if again := DetectContentType(tt.name, tt.url); again != tt.want {
			t.Errorf("DetectContentType(%q, %q) not stable", tt.name, tt.url)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid playlist", func(t *testing.T) {
		report := Validate(samplePlaylist)
		if !report.Valid {
			t.Errorf("expected valid, issues: %v", report.Issues)
		}
		if report.ChannelCount != 4 {
			t.Errorf("channel count = %d, want 4", report.ChannelCount)
		}
		if !report.HasEpgInfo {
			t.Error("EPG info should be detected")
		}
	})

	t.Run("no channels is blocking", func(t *testing.T) {
		report := Validate("#EXTM3U\n#EXTINF:-1,Ghost Channel\n")
		if report.Valid {
			t.Error("playlist without stream urls must be invalid")
		}
		found := false
		for _, issue := range report.Issues {
			if strings.Contains(issue, "no channels") {
				found = true
			}
		}
		if !found {
			t.Errorf("expected a no-channels issue, got %v", report.Issues)
		}
	})

	t.Run("count mismatch is a warning", func(t *testing.T) {
		content := "#EXTM3U\n#EXTINF:-1,A\nhttp://x/a\nhttp://x/b\n"
		report := Validate(content)
		if !report.Valid {
			t.Errorf("mismatch alone must not block, issues: %v", report.Issues)
		}
		if len(report.Warnings) != 1 {
			t.Errorf("expected one mismatch warning, got %v", report.Warnings)
		}
	})
}

func TestCategorizeChannelByName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"beIN Sports 1", "Sports"},
		{"BBC World News", "News"},
		{"Hollywood Cinema", "Movies"},
		{"Disney Junior", "Kids"},
		{"MTV Hits", "Music"},
		{"Discovery 4K", "HD"},
		{"Jazz FM", "Radio"},
		{"Channel 5", "General"},
	}

	for _, tt := range tests {
		if got := CategorizeChannelByName(tt.name); got != tt.want {
			t.Errorf("CategorizeChannelByName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestCategorizeChannelsPrefersGroup(t *testing.T) {
	channels := []*types.Channel{
		{Name: "beIN Sports 1", Group: "Premium"},
		{Name: "Jazz FM"},
	}
	grouped := CategorizeChannels(channels)
	if len(grouped["Premium"]) != 1 {
		t.Errorf("declared group should win: %v", grouped)
	}
	if len(grouped["Radio"]) != 1 {
		t.Errorf("ungrouped entry should fall back to name category: %v", grouped)
	}
}

func TestExtractEpgURLs(t *testing.T) {
	content := `#EXTM3U url-tvg="http://a/guide.xml" x-tvg-url="http://b/guide.xml"
#EXTINF:-1,Ch
http://x/s
`
	urls := ExtractEpgURLs(content)
	if len(urls) != 2 {
		t.Fatalf("expected 2 epg urls, got %v", urls)
	}
}

func newTestFetchEnv() (*client.HeaderSettingClient, *logger.Logger, *config.Config) {
	return client.New(client.Headers{UserAgent: "test"}), logger.New("ERROR"), config.NewTestConfig()
}

func TestParseFromURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(samplePlaylist))
	}))
	defer server.Close()

	httpClient, log, cfg := newTestFetchEnv()
	result, err := ParseFromURL(context.Background(), httpClient, log, cfg, server.URL, "src")
	if err != nil {
		t.Fatalf("ParseFromURL: %v", err)
	}
	if len(result.Channels) != 4 {
		t.Errorf("expected 4 channels, got %d", len(result.Channels))
	}
}

func TestParseFromURLEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// empty 200 response
	}))
	defer server.Close()

	httpClient, log, cfg := newTestFetchEnv()
	if _, err := ParseFromURL(context.Background(), httpClient, log, cfg, server.URL, "src"); err == nil {
		t.Error("empty body must be an error, not a zero-channel success")
	}
}

func TestParseFromURLHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	httpClient, log, cfg := newTestFetchEnv()
	if _, err := ParseFromURL(context.Background(), httpClient, log, cfg, server.URL, "src"); err == nil {
		t.Error("non-200 status must be an error")
	}
}

func TestParseFromURLMasterPlaylist(t *testing.T) {
	master := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=1280000,RESOLUTION=1280x720
http://example.com/hi.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=640000,RESOLUTION=640x360
http://example.com/lo.m3u8
`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(master))
	}))
	defer server.Close()

	httpClient, log, cfg := newTestFetchEnv()
	result, err := ParseFromURL(context.Background(), httpClient, log, cfg, server.URL, "src")
	if err != nil {
		t.Fatalf("ParseFromURL: %v", err)
	}
	if len(result.Channels) != 2 {
		t.Fatalf("expected 2 variant channels, got %d", len(result.Channels))
	}
	if result.Channels[0].Attributes["resolution"] != "1280x720" {
		t.Errorf("variant resolution missing: %v", result.Channels[0].Attributes)
	}
}

func TestParseFromURLMasterPlaylistResolvesRelativeVariants(t *testing.T) {
	master := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=1280000,RESOLUTION=1280x720
720p/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=640000,RESOLUTION=640x360
/streams/360p.m3u8
`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(master))
	}))
	defer server.Close()

	httpClient, log, cfg := newTestFetchEnv()
	result, err := ParseFromURL(context.Background(), httpClient, log, cfg, server.URL+"/live/master.m3u8", "src")
	if err != nil {
		t.Fatalf("ParseFromURL: %v", err)
	}
	if len(result.Channels) != 2 {
		t.Fatalf("expected 2 variant channels, got %d", len(result.Channels))
	}
	if want := server.URL + "/live/720p/index.m3u8"; result.Channels[0].URL != want {
		t.Errorf("variant url = %q, want %q", result.Channels[0].URL, want)
	}
	if want := server.URL + "/streams/360p.m3u8"; result.Channels[1].URL != want {
		t.Errorf("variant url = %q, want %q", result.Channels[1].URL, want)
	}
}
