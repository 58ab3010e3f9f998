package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"iptv-scout/work/types"

	"github.com/maypok86/otter/v2"
)

// Cache holds recent validation and geo results so repeated checks of the
// same source within the TTL window do not hammer the upstream panel.
// Both stores expire entries from write time.
type Cache struct {
	results *otter.Cache[string, *types.ValidationResult] // validation results keyed by source fingerprint
	geo     *otter.Cache[string, *types.GeoInfo]          // geo lookups keyed by host ip
	enabled bool
}

// NewCache creates both stores with the given entry lifetime. A disabled
// cache is still safe to call; every lookup just misses.
//
// Parameters:
//   - duration: how long entries are considered valid before expiring
//   - enabled: whether lookups and inserts are honored at all
//
// Returns:
//   - *Cache: pointer to a new Cache object
func NewCache(duration time.Duration, enabled bool) *Cache {
	return &Cache{
		results: otter.Must(&otter.Options[string, *types.ValidationResult]{
			MaximumSize:      4096,
			ExpiryCalculator: otter.ExpiryWriting[string, *types.ValidationResult](duration),
		}),
		geo: otter.Must(&otter.Options[string, *types.GeoInfo]{
			MaximumSize:      1024,
			ExpiryCalculator: otter.ExpiryWriting[string, *types.GeoInfo](duration),
		}),
		enabled: enabled,
	}
}

// Fingerprint derives the cache key for one source identity. Two sources
// with the same kind, URL, and credentials share one validation result.
func Fingerprint(kind types.SourceKind, url, username, password, mac string) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s|%s|%s|%s|%s", kind, url, username, password, mac)))
	return hex.EncodeToString(sum[:])
}

// GetResult returns a cached validation result, or false on a miss or when
// caching is disabled.
func (c *Cache) GetResult(fingerprint string) (*types.ValidationResult, bool) {
	if !c.enabled {
		return nil, false
	}
	return c.results.GetIfPresent(fingerprint)
}

// SetResult stores a validation result under the source fingerprint.
func (c *Cache) SetResult(fingerprint string, result *types.ValidationResult) {
	if !c.enabled {
		return
	}
	c.results.Set(fingerprint, result)
}

// GetGeo returns a cached geo lookup for an ip, or false on a miss.
func (c *Cache) GetGeo(ip string) (*types.GeoInfo, bool) {
	if !c.enabled {
		return nil, false
	}
	return c.geo.GetIfPresent(ip)
}

// SetGeo stores a geo lookup result under its ip.
func (c *Cache) SetGeo(ip string, info *types.GeoInfo) {
	if !c.enabled || info == nil {
		return
	}
	c.geo.Set(ip, info)
}

// InvalidateResult drops one source's cached result, used after explicit
// re-validation requests.
func (c *Cache) InvalidateResult(fingerprint string) {
	c.results.Invalidate(fingerprint)
}

// Clear drops everything from both stores.
func (c *Cache) Clear() {
	c.results.InvalidateAll()
	c.geo.InvalidateAll()
}
