package utils

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strings"

	"iptv-scout/work/config"

	"github.com/grafana/regexp"
)

// LogURL returns either the original URL or an obfuscated version for logging
func LogURL(cfg *config.Config, url string) string {
	if cfg.ObfuscateUrls {
		return ObfuscateURL(url)
	}
	return url
}

// Or if you prefer to pass just the flag:
func LogURLWithFlag(obfuscate bool, url string) string {
	if obfuscate {
		return ObfuscateURL(url)
	}
	return url
}

var (
	nameStripRe  = regexp.MustCompile(`[^\w\s\-\[\]()]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// CleanChannelName strips decorations and symbols from a raw playlist title,
// keeping word characters, whitespace, dashes, brackets, and parentheses,
// then collapses runs of whitespace.
func CleanChannelName(name string) string {
	cleaned := nameStripRe.ReplaceAllString(name, "")
	cleaned = whitespaceRe.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// HashURL returns a short stable identifier for a URL, used as the channel
// id of last resort when no metadata names the entry.
func HashURL(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:])[:12]
}

// NormalizeBaseURL trims trailing slashes and prepends http:// when no
// scheme is present, matching how panel URLs are usually pasted in.
func NormalizeBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	base = strings.TrimRight(base, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base
}

func ObfuscateURL(urlStr string) string {
	if urlStr == "" {
		return ""
	}

	// Parse the URL
	u, err := url.Parse(urlStr)
	if err != nil {
		// If parsing fails, just obfuscate the whole thing
		return "***OBFUSCATED***"
	}

	// Keep scheme and host, obfuscate path and query
	result := u.Scheme + "://" + u.Host
	if u.Path != "" && u.Path != "/" {
		result += "/***"
	}
	if u.RawQuery != "" {
		result += "?***"
	}
	if u.Fragment != "" {
		result += "#***"
	}

	return result
}
