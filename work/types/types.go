package types

import (
	"fmt"
	"time"
)

// SourceKind identifies the upstream protocol family a source speaks. Every
// downstream component (detector, protocol clients, orchestrator, HTTP API)
// branches on this value, so it is validated at construction time via
// NewSource rather than trusted from callers.
type SourceKind int

// Source kind constants cover the protocol families the service understands.
// KindUnknown is the zero value and is only valid as a detector input.
const (
	KindUnknown   SourceKind = iota // Not yet detected, detector input only
	KindM3U                         // Plain or extended M3U playlist URL
	KindXtream                      // Xtream-codes style player_api panel
	KindStalker                     // Stalker/Ministra middleware portal
	KindMacPortal                   // portal.php endpoint without a stalker_portal path
)

// String returns the lowercase wire name used in API payloads and logs.
func (k SourceKind) String() string {
	switch k {
	case KindM3U:
		return "m3u"
	case KindXtream:
		return "xtream"
	case KindStalker:
		return "stalker"
	case KindMacPortal:
		return "macportal"
	default:
		return "unknown"
	}
}

// ParseSourceKind maps a wire name back to its SourceKind. Unrecognized
// names return KindUnknown and an error so API handlers can reject them.
func ParseSourceKind(s string) (SourceKind, error) {
	switch s {
	case "m3u":
		return KindM3U, nil
	case "xtream":
		return KindXtream, nil
	case "stalker":
		return KindStalker, nil
	case "macportal":
		return KindMacPortal, nil
	case "", "unknown":
		return KindUnknown, nil
	default:
		return KindUnknown, fmt.Errorf("unknown source kind %q", s)
	}
}

// Source is a validated subscription endpoint plus the credentials its
// protocol requires. The credential fields that matter depend on Kind:
// Xtream needs Username/Password, Stalker and MacPortal need Mac, and M3U
// needs only the URL. NewSource enforces those combinations once so the
// rest of the code never re-checks them.
type Source struct {
	ID       string     `json:"id"`                 // Opaque store identifier (UUID), empty for ad-hoc validations
	Name     string     `json:"name"`               // Optional display name for the source
	Kind     SourceKind `json:"-"`                  // Detected or declared protocol family
	URL      string     `json:"url"`                // Base URL of the panel, portal, or playlist
	Username string     `json:"username,omitempty"` // Xtream account username
	Password string     `json:"password,omitempty"` // Xtream account password
	Mac      string     `json:"mac,omitempty"`      // Normalized MAC for Stalker/MacPortal portals
}

// NewSource builds a Source and rejects kind/credential combinations that
// can never validate, per the mandatory-field rules the orchestrator also
// reports as issues.
func NewSource(kind SourceKind, url, username, password, mac string) (*Source, error) {
	if url == "" {
		return nil, fmt.Errorf("source url is required")
	}
	switch kind {
	case KindXtream:
		if username == "" || password == "" {
			return nil, fmt.Errorf("xtream source requires username and password")
		}
	case KindStalker, KindMacPortal:
		if mac == "" {
			return nil, fmt.Errorf("%s source requires a mac address", kind)
		}
	case KindM3U, KindUnknown:
		// URL alone is enough.
	default:
		return nil, fmt.Errorf("invalid source kind %d", kind)
	}
	return &Source{Kind: kind, URL: url, Username: username, Password: password, Mac: mac}, nil
}

// ContentType classifies a playlist entry by what it carries.
type ContentType int

const (
	ContentLive    ContentType = iota // Live television channel
	ContentVOD                        // Single movie / video on demand item
	ContentSeries                     // Episodic series content
	ContentRadio                      // Audio-only radio stream
	ContentUnknown                    // Could not be classified
)

// String returns the lowercase name used in statistics maps and API output.
func (c ContentType) String() string {
	switch c {
	case ContentLive:
		return "live"
	case ContentVOD:
		return "vod"
	case ContentSeries:
		return "series"
	case ContentRadio:
		return "radio"
	default:
		return "unknown"
	}
}

// Channel is a single normalized playlist entry. All protocol clients
// produce this shape so the orchestrator and API never care which upstream
// format the entry came from.
type Channel struct {
	ID            string            `json:"id"`                      // Stable identifier: tvg-id, tvg-name, title, or URL hash
	Name          string            `json:"name"`                    // Cleaned display title
	URL           string            `json:"url"`                     // Playable stream URL
	Logo          string            `json:"logo,omitempty"`          // Channel logo URL from tvg-logo
	Group         string            `json:"group,omitempty"`         // Group/category title
	EpgID         string            `json:"epgId,omitempty"`         // EPG channel id (tvg-id)
	ChannelNumber string            `json:"channelNumber,omitempty"` // Declared channel number (tvg-chno)
	TimeShift     string            `json:"timeShift,omitempty"`     // Timeshift window declaration
	Catchup       string            `json:"catchup,omitempty"`       // Catchup mode
	CatchupDays   string            `json:"catchupDays,omitempty"`   // Catchup retention days
	CatchupSource string            `json:"catchupSource,omitempty"` // Catchup source template URL
	UserAgent     string            `json:"userAgent,omitempty"`     // Per-channel user agent override
	Referer       string            `json:"referer,omitempty"`       // Per-channel referer override
	ContentType   ContentType       `json:"-"`                       // Live/VOD/series/radio classification
	Properties    map[string]string `json:"properties,omitempty"`    // KODIPROP/EXTVLCOPT side-channel options
	Attributes    map[string]string `json:"-"`                       // Raw EXTINF attributes as parsed
}

// AccountInfo carries the subscription facts a panel reports about the
// authenticated account. Fields are strings because upstreams disagree on
// formats; ExpiresAt is set when the raw expiry could be interpreted.
type AccountInfo struct {
	Status         string     `json:"status"`                   // Account status, e.g. "Active", "Expired"
	Expiry         string     `json:"expiry"`                   // Human-readable expiry, "Unlimited" when open-ended
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`      // Parsed expiry instant when available
	IsTrial        bool       `json:"isTrial"`                  // Trial account flag
	ActiveConns    int        `json:"activeConnections"`        // Connections currently in use
	MaxConns       int        `json:"maxConnections"`           // Connection ceiling for the account
	CreatedAt      string     `json:"createdAt,omitempty"`      // Account creation date as reported
	AllowedFormats []string   `json:"allowedFormats,omitempty"` // Container formats the panel will serve
}

// ServerInfo carries facts about the upstream server itself.
type ServerInfo struct {
	URL       string `json:"url"`                 // Real server URL as reported by the panel
	Port      string `json:"port,omitempty"`      // HTTP port
	HTTPSPort string `json:"httpsPort,omitempty"` // HTTPS port when advertised
	Timezone  string `json:"timezone,omitempty"`  // Server timezone
	Version   string `json:"version,omitempty"`   // Panel/middleware version string
}

// GeoInfo is the best-effort location of the upstream host. Absence of the
// whole struct means the lookup failed or was skipped; it never blocks
// validation.
type GeoInfo struct {
	IP       string `json:"ip,omitempty"`
	Country  string `json:"country,omitempty"`
	City     string `json:"city,omitempty"`
	ISP      string `json:"isp,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// PlaylistStats summarizes a parsed catalog. Built incrementally during a
// single parse pass and not mutated afterwards.
type PlaylistStats struct {
	TotalLines    int            `json:"totalLines"`    // Lines consumed from the input
	TotalChannels int            `json:"totalChannels"` // Entries materialized with a usable URL
	ExtinfCount   int            `json:"extinfCount"`   // EXTINF directives seen during parse
	URLCount      int            `json:"urlCount"`      // Stream URL lines seen during parse
	CommentLines  int            `json:"commentLines"`  // Other #-prefixed lines
	UnknownLines  int            `json:"unknownLines"`  // Non-empty lines that matched nothing
	ByType        map[string]int `json:"byType"`        // Count per content type name
	Categories    map[string]int `json:"categories"`    // Group title -> entry count
	WithEpgID     int            `json:"withEpgId"`     // Entries carrying a tvg-id
	WithLogo      int            `json:"withLogo"`      // Entries carrying a tvg-logo
	WithCatchup   int            `json:"withCatchup"`   // Entries declaring catchup support
	HasHeader     bool           `json:"hasHeader"`     // #EXTM3U header seen
	HasEpgInfo    bool           `json:"hasEpgInfo"`    // Header declared an EPG url
}

// ValidationResult is the orchestrator's aggregate answer for one source.
// Valid is true exactly when Issues is empty; Warnings never affect it.
type ValidationResult struct {
	Source     *Source        `json:"source"`
	Kind       SourceKind     `json:"-"`
	KindName   string         `json:"kind"`
	Valid      bool           `json:"valid"`
	Issues     []string       `json:"issues"`
	Warnings   []string       `json:"warnings"`
	Stats      *PlaylistStats `json:"statistics,omitempty"`
	Server     *ServerInfo    `json:"serverInfo,omitempty"`
	Account    *AccountInfo   `json:"accountInfo,omitempty"`
	Geo        *GeoInfo       `json:"geo,omitempty"`
	Duration   time.Duration  `json:"-"`
	DurationMS int64          `json:"durationMs"`
	CheckedAt  time.Time      `json:"checkedAt"`
}

// AddIssue records a blocking problem and flips Valid off.
func (r *ValidationResult) AddIssue(format string, args ...any) {
	r.Issues = append(r.Issues, fmt.Sprintf(format, args...))
	r.Valid = false
}

// AddWarning records a non-blocking observation.
func (r *ValidationResult) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// DeviceCredentials is the set-top-box identity derived from a MAC address
// for Stalker portal authentication. All derived fields are deterministic
// for a given MAC except SerialNumber and Signature, which include random
// or time-based components per the portal emulation scheme.
type DeviceCredentials struct {
	Mac          string `json:"mac"`          // Normalized MAC the identity was derived from
	Model        string `json:"model"`        // Emulated STB model, e.g. "MAG254"
	SerialNumber string `json:"serialNumber"` // Model digit prefix plus random digits
	DeviceID     string `json:"deviceId"`     // Uppercase SHA-256 of the MAC
	DeviceID2    string `json:"deviceId2"`    // Uppercase SHA-256 of the serial number
	Signature    string `json:"signature"`    // Uppercase SHA-256 over MAC, model, and timestamp
	UserAgent    string `json:"userAgent"`    // Model-specific portal user agent
	Firmware     string `json:"firmware"`     // Emulated firmware version string
	Hardware     string `json:"hardware"`     // Emulated hardware revision
}
