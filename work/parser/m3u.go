package parser

import (
	"strconv"
	"strings"

	"iptv-scout/work/types"
	"iptv-scout/work/utils"

	"github.com/grafana/regexp"
)

const (
	extm3uTag    = "#EXTM3U"
	extinfTag    = "#EXTINF:"
	kodipropTag  = "#KODIPROP:"
	extvlcoptTag = "#EXTVLCOPT:"
)

// attrPattern builds the tolerant attribute matcher: double-quoted,
// single-quoted, or bare unquoted values, first non-empty group wins.
func attrPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(name + `="([^"]*)"|` + name + `='([^']*)'|` + name + `=([^\s,]*)`)
}

var (
	tvgIDRe         = attrPattern("tvg-id")
	tvgNameRe       = attrPattern("tvg-name")
	tvgLogoRe       = attrPattern("tvg-logo")
	tvgChnoRe       = attrPattern("tvg-chno")
	tvgShiftRe      = attrPattern("tvg-shift")
	groupTitleRe    = attrPattern("group-title")
	radioRe         = attrPattern("radio")
	catchupRe       = attrPattern("catchup")
	catchupDaysRe   = attrPattern("catchup-days")
	catchupSourceRe = attrPattern("catchup-source")
	timeshiftRe     = attrPattern("timeshift")
	userAgentRe     = attrPattern("user-agent")
	refererRe       = attrPattern("referer")

	epgURLRe = regexp.MustCompile(`url-tvg="([^"]*)"|x-tvg-url="([^"]*)"|tvg-url="([^"]*)"`)
)

// catchup-days must not also match plain catchup; order of extraction below
// handles it by matching the longer name first.

var (
	vodKeywords    = []string{"movie", "film", "cinema", "vod", ".mp4", ".mkv", ".avi"}
	seriesKeywords = []string{"series", "episode", "season", "tv show"}
	radioKeywords  = []string{"radio", "music", "fm", "am"}
)

var streamSchemes = []string{"http://", "https://", "udp://", "rtp://", "rtsp://", "rtmp://", "file://"}

// pendingEntry is the single in-flight EXTINF slot of the line state
// machine. An EXTINF line overwrites any unconsumed previous entry; two
// EXTINF lines without an intervening URL silently drop the first.
type pendingEntry struct {
	title      string
	duration   int
	attributes map[string]string
	kodiProps  []string
	vlcOpts    []string
}

// ParseResult holds the channels and statistics of one parse pass.
type ParseResult struct {
	Channels []*types.Channel
	Stats    *types.PlaylistStats
	EpgURLs  []string
}

// ValidationReport is the parser's structural verdict over raw playlist
// text, independent of any network activity.
type ValidationReport struct {
	Valid        bool
	Issues       []string
	Warnings     []string
	ChannelCount int
	HasEpgInfo   bool
}

// ParseFromContent runs the line state machine over playlist text in a
// single forward pass.
//
// Line handling:
//   - #EXTM3U: sets the header flag and collects EPG urls
//   - #EXTINF: becomes the pending entry (replacing an unconsumed one)
//   - #KODIPROP / #EXTVLCOPT: appended to the pending entry's option lists
//   - stream URL (http/https/udp/rtp/rtsp/rtmp/file): materializes a channel
//   - other # lines: counted as comments
//   - anything else non-empty: counted as unknown
//
// Parameters:
//   - content: raw playlist text
//   - sourceID: owning source id stamped on nothing here but kept for parity
//     with ParseFromURL's signature
//
// Returns:
//   - *ParseResult: channels plus statistics, never nil
func ParseFromContent(content string, sourceID string) *ParseResult {
	stats := &types.PlaylistStats{
		ByType:     make(map[string]int),
		Categories: make(map[string]int),
	}
	result := &ParseResult{Stats: stats}

	var pending *pendingEntry

	for _, rawLine := range strings.Split(content, "\n") {
		stats.TotalLines++
		line := strings.TrimSpace(rawLine)

		switch {
		case strings.HasPrefix(line, extm3uTag):
			stats.HasHeader = true
			urls := extractEpgURLs(line)
			if len(urls) > 0 {
				stats.HasEpgInfo = true
				result.EpgURLs = append(result.EpgURLs, urls...)
			}

		case strings.HasPrefix(line, extinfTag):
			pending = parseExtinfLine(line)
			stats.ExtinfCount++

		case strings.HasPrefix(line, kodipropTag):
			if pending != nil {
				pending.kodiProps = append(pending.kodiProps, line[len(kodipropTag):])
			}

		case strings.HasPrefix(line, extvlcoptTag):
			if pending != nil {
				pending.vlcOpts = append(pending.vlcOpts, line[len(extvlcoptTag):])
			}

		case isStreamURL(line):
			stats.URLCount++
			ch := materializeChannel(pending, line)
			pending = nil
			result.Channels = append(result.Channels, ch)
			updateStats(ch, stats)

		case strings.HasPrefix(line, "#"):
			stats.CommentLines++

		case line != "":
			stats.UnknownLines++
		}
	}

	stats.TotalChannels = len(result.Channels)
	return result
}

// Validate checks raw playlist text for structural problems. A playlist
// with zero stream URLs fails regardless of how many EXTINF lines it has;
// a count mismatch between EXTINF lines and URLs is only a warning.
func Validate(content string) *ValidationReport {
	report := &ValidationReport{Valid: true}

	var hasHeader bool
	var urlCount, extinfCount int
	for _, rawLine := range strings.Split(content, "\n") {
		line := strings.TrimSpace(rawLine)
		if strings.HasPrefix(line, extm3uTag) {
			hasHeader = true
			if len(extractEpgURLs(line)) > 0 {
				report.HasEpgInfo = true
			}
		}
		if strings.HasPrefix(line, extinfTag) {
			extinfCount++
		}
		if isStreamURL(line) {
			urlCount++
		}
	}

	if !hasHeader {
		report.Issues = append(report.Issues, "missing #EXTM3U header")
	}
	if urlCount == 0 {
		report.Issues = append(report.Issues, "playlist contains no channels")
	}
	if extinfCount != urlCount && urlCount > 0 {
		report.Warnings = append(report.Warnings,
			"EXTINF line count ("+strconv.Itoa(extinfCount)+") does not match stream url count ("+strconv.Itoa(urlCount)+")")
	}

	report.ChannelCount = urlCount
	report.Valid = len(report.Issues) == 0
	return report
}

// parseExtinfLine splits the EXTINF directive into duration, title, and
// the tolerant attribute set.
func parseExtinfLine(line string) *pendingEntry {
	entry := &pendingEntry{
		duration:   -1,
		attributes: make(map[string]string),
	}

	body := line[len(extinfTag):]
	if comma := strings.Index(body, ","); comma != -1 {
		durField := strings.TrimSpace(body[:comma])
		if sp := strings.IndexAny(durField, " \t"); sp != -1 {
			durField = durField[:sp]
		}
		if d, err := strconv.Atoi(durField); err == nil {
			entry.duration = d
		}
		entry.title = strings.TrimSpace(body[comma+1:])
	}

	extract := func(key string, re *regexp.Regexp) {
		if v := extractAttr(line, re); v != "" {
			entry.attributes[key] = v
		}
	}

	extract("tvg-id", tvgIDRe)
	extract("tvg-name", tvgNameRe)
	extract("tvg-logo", tvgLogoRe)
	extract("tvg-chno", tvgChnoRe)
	extract("tvg-shift", tvgShiftRe)
	extract("group-title", groupTitleRe)
	extract("radio", radioRe)
	extract("catchup-days", catchupDaysRe)
	extract("catchup-source", catchupSourceRe)
	extract("catchup", catchupRe)
	extract("timeshift", timeshiftRe)
	extract("user-agent", userAgentRe)
	extract("referer", refererRe)

	return entry
}

// extractAttr returns the first matching group of the three-alternative
// attribute pattern.
func extractAttr(line string, re *regexp.Regexp) string {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

// materializeChannel turns the pending entry plus its stream URL into a
// normalized Channel. A URL with no pending entry becomes a bare unknown
// channel rather than being dropped.
func materializeChannel(pending *pendingEntry, url string) *types.Channel {
	if pending == nil {
		pending = &pendingEntry{
			title:      "Unknown Channel",
			duration:   -1,
			attributes: make(map[string]string),
		}
	}

	attrs := pending.attributes
	name := pending.title
	if name == "" {
		name = "Unknown Channel"
	}

	ch := &types.Channel{
		ID:            channelID(attrs, pending.title, url),
		Name:          utils.CleanChannelName(name),
		URL:           url,
		Logo:          attrs["tvg-logo"],
		Group:         attrs["group-title"],
		EpgID:         attrs["tvg-id"],
		ChannelNumber: attrs["tvg-chno"],
		TimeShift:     attrs["timeshift"],
		Catchup:       attrs["catchup"],
		CatchupDays:   attrs["catchup-days"],
		CatchupSource: attrs["catchup-source"],
		UserAgent:     attrs["user-agent"],
		Referer:       attrs["referer"],
		Attributes:    attrs,
	}

	if len(pending.kodiProps) > 0 || len(pending.vlcOpts) > 0 {
		ch.Properties = make(map[string]string)
		for _, prop := range pending.kodiProps {
			if eq := strings.Index(prop, "="); eq != -1 {
				ch.Properties[prop[:eq]] = prop[eq+1:]
			}
		}
		for _, opt := range pending.vlcOpts {
			if eq := strings.Index(opt, "="); eq != -1 {
				ch.Properties[opt[:eq]] = opt[eq+1:]
			}
		}
	}

	if attrs["radio"] == "true" {
		ch.ContentType = types.ContentRadio
	} else {
		ch.ContentType = DetectContentType(ch.Name, url)
	}

	return ch
}

// channelID derives a stable channel identifier. Priority: tvg-id, then
// tvg-name, then the raw title, then a hash of the URL.
func channelID(attrs map[string]string, title, url string) string {
	if id := attrs["tvg-id"]; id != "" {
		return id
	}
	if name := attrs["tvg-name"]; name != "" {
		return name
	}
	if title != "" {
		return title
	}
	return utils.HashURL(url)
}

// DetectContentType classifies an entry by keywords over the lowercased
// name and URL. VOD keywords are checked first, so a name matching both
// "movie" and "series" classifies as VOD. Pure function of its inputs.
func DetectContentType(name, url string) types.ContentType {
	lowerName := strings.ToLower(name)
	lowerURL := strings.ToLower(url)

	matches := func(keywords []string) bool {
		for _, kw := range keywords {
			if strings.Contains(lowerName, kw) || strings.Contains(lowerURL, kw) {
				return true
			}
		}
		return false
	}

	switch {
	case matches(vodKeywords):
		return types.ContentVOD
	case matches(seriesKeywords):
		return types.ContentSeries
	case matches(radioKeywords):
		return types.ContentRadio
	case strings.Contains(lowerURL, "/live/") || strings.Contains(lowerURL, "m3u8"):
		return types.ContentLive
	default:
		return types.ContentUnknown
	}
}

func updateStats(ch *types.Channel, stats *types.PlaylistStats) {
	stats.ByType[ch.ContentType.String()]++
	if ch.Group != "" {
		stats.Categories[ch.Group]++
	}
	if ch.EpgID != "" {
		stats.WithEpgID++
	}
	if ch.Logo != "" {
		stats.WithLogo++
	}
	if ch.Catchup != "" || ch.CatchupSource != "" {
		stats.WithCatchup++
	}
}

func isStreamURL(line string) bool {
	lower := strings.ToLower(line)
	for _, scheme := range streamSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

// extractEpgURLs pulls EPG urls from a header line's url-tvg / x-tvg-url /
// tvg-url attributes.
func extractEpgURLs(line string) []string {
	var urls []string
	for _, m := range epgURLRe.FindAllStringSubmatch(line, -1) {
		for _, g := range m[1:] {
			if g != "" {
				urls = append(urls, g)
			}
		}
	}
	return urls
}

// ExtractEpgURLs scans full playlist text for EPG urls declared on header
// lines, deduplicated in first-seen order.
func ExtractEpgURLs(content string) []string {
	seen := make(map[string]bool)
	var urls []string
	for _, rawLine := range strings.Split(content, "\n") {
		line := strings.TrimSpace(rawLine)
		if !strings.HasPrefix(line, extm3uTag) {
			continue
		}
		for _, u := range extractEpgURLs(line) {
			if !seen[u] {
				seen[u] = true
				urls = append(urls, u)
			}
		}
	}
	return urls
}

// CategorizeChannels groups channels by their declared group title, falling
// back to name-based categorization for ungrouped entries.
func CategorizeChannels(channels []*types.Channel) map[string][]*types.Channel {
	grouped := make(map[string][]*types.Channel)
	for _, ch := range channels {
		key := ch.Group
		if key == "" {
			key = CategorizeChannelByName(ch.Name)
		}
		grouped[key] = append(grouped[key], ch)
	}
	return grouped
}

// CategorizeChannelByName buckets a channel into a display category from
// well-known name keywords. Pure function of the name.
func CategorizeChannelByName(channelName string) string {
	name := strings.ToLower(channelName)

	containsAny := func(keywords ...string) bool {
		for _, kw := range keywords {
			if strings.Contains(name, kw) {
				return true
			}
		}
		return false
	}

	switch {
	case containsAny("sport", "espn", "bein", "fox sport", "sky sport"):
		return "Sports"
	case containsAny("news", "cnn", "bbc", "fox news", "al jazeera"):
		return "News"
	case containsAny("movie", "cinema", "film", "hollywood"):
		return "Movies"
	case containsAny("kids", "cartoon", "disney", "nickelodeon"):
		return "Kids"
	case containsAny("music", "mtv", "vh1"):
		return "Music"
	case containsAny("hd", "4k", "uhd"):
		return "HD"
	case containsAny("radio", "fm", "am"):
		return "Radio"
	default:
		return "General"
	}
}
