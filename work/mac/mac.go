package mac

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"iptv-scout/work/config"
	"iptv-scout/work/types"

	"github.com/grafana/regexp"
)

// macPattern matches a full 6-octet MAC with colon or dash separators.
var macPattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}([0-9A-Fa-f]{2})$`)

// hexOnly strips everything that is not a hex digit.
var hexOnly = regexp.MustCompile(`[^0-9A-F]`)

// Generator synthesizes set-top-box identities from the injected device
// tables. Portal servers fingerprint the header bundle, so every derived
// field for a model must stay mutually consistent (model, user agent,
// firmware, serial prefix all describe the same device).
type Generator struct {
	tables *config.Tables
	rand   *rand.Rand
}

// NewGenerator builds a Generator over the given tables. The random source
// is seeded per instance so concurrent generators do not share state.
func NewGenerator(tables *config.Tables) *Generator {
	return &Generator{
		tables: tables,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GenerateMac produces a random MAC under the given vendor prefix. An
// empty prefix picks a random entry from the prefix table. The result is
// canonical form: uppercase hex, colon separated.
func (g *Generator) GenerateMac(prefix string) string {
	if prefix == "" {
		prefix = g.tables.MacPrefixes[g.rand.Intn(len(g.tables.MacPrefixes))]
	}
	return fmt.Sprintf("%s:%02X:%02X:%02X",
		strings.ToUpper(prefix),
		g.rand.Intn(256), g.rand.Intn(256), g.rand.Intn(256))
}

// IsValidMac reports whether the string is a complete 6-octet MAC in colon
// or dash notation. Partial or over-long strings fail.
func IsValidMac(mac string) bool {
	return macPattern.MatchString(mac)
}

// NormalizeMac coerces a loosely formatted MAC into canonical colon form.
// Non-hex characters are dropped, at least 12 hex digits are required, and
// any surplus digits are truncated. Returns ok=false when not enough hex
// material remains; it never returns a partially built string.
func NormalizeMac(mac string) (string, bool) {
	cleaned := hexOnly.ReplaceAllString(strings.ToUpper(mac), "")
	if len(cleaned) < 12 {
		return "", false
	}
	cleaned = cleaned[:12]

	parts := make([]string, 0, 6)
	for i := 0; i < 12; i += 2 {
		parts = append(parts, cleaned[i:i+2])
	}
	return strings.Join(parts, ":"), true
}

// DeviceCredentials derives the full device identity bundle for a MAC.
//
// Derivations:
//   - model: 3-octet prefix lookup, default model when unmapped
//   - serial: model digit prefix plus 8 random digits (random per call)
//   - device id: uppercase SHA-256 of the MAC
//   - device id 2: uppercase SHA-256 of the serial
//   - signature: uppercase SHA-256 over MAC, model, and the current time
//     (intentionally different on every call)
//
// Parameters:
//   - m: MAC in any format NormalizeMac accepts
//
// Returns:
//   - *types.DeviceCredentials: the derived bundle
//   - error: when the MAC cannot be normalized
func (g *Generator) DeviceCredentials(m string) (*types.DeviceCredentials, error) {
	normalized, ok := NormalizeMac(m)
	if !ok {
		return nil, fmt.Errorf("invalid mac address %q", m)
	}

	model := g.tables.ModelForPrefix(normalized[:8])
	serial := g.serialNumber(model)

	return &types.DeviceCredentials{
		Mac:          normalized,
		Model:        model,
		SerialNumber: serial,
		DeviceID:     sha256Upper(normalized),
		DeviceID2:    sha256Upper(serial),
		Signature:    sha256Upper(fmt.Sprintf("%s%s%d", normalized, model, time.Now().UnixNano())),
		UserAgent:    g.tables.UserAgentForModel(model),
		Firmware:     g.lookup(g.tables.Firmware, model),
		Hardware:     g.lookup(g.tables.Hardware, model),
	}, nil
}

// RandomTimezone picks a plausible STB timezone for the cookie bundle.
func (g *Generator) RandomTimezone() string {
	return g.tables.Timezones[g.rand.Intn(len(g.tables.Timezones))]
}

// EncodeAuthorization builds the bearer credential sent on authenticated
// portal requests: base64 of "{serial}:{mac}:{token}".
func EncodeAuthorization(creds *types.DeviceCredentials, token string) string {
	raw := fmt.Sprintf("%s:%s:%s", creds.SerialNumber, creds.Mac, token)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// serialNumber builds a serial from the model's digit prefix plus 8 random
// digits. Models without a mapped prefix use the default model's prefix.
func (g *Generator) serialNumber(model string) string {
	prefix, ok := g.tables.SerialPrefixes[model]
	if !ok {
		prefix = g.tables.SerialPrefixes[g.tables.DefaultModel]
	}
	var sb strings.Builder
	sb.WriteString(prefix)
	for i := 0; i < 8; i++ {
		sb.WriteByte(byte('0' + g.rand.Intn(10)))
	}
	return sb.String()
}

func (g *Generator) lookup(table map[string]string, model string) string {
	if v, ok := table[model]; ok {
		return v
	}
	return table[g.tables.DefaultModel]
}

func sha256Upper(s string) string {
	sum := sha256.Sum256([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
