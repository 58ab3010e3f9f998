package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"iptv-scout/work/client"
	"iptv-scout/work/config"
	"iptv-scout/work/logger"
	"iptv-scout/work/types"
)

// Lookup resolves the location of a source host through a JSON geo
// service. Every result is best effort; callers treat a nil GeoInfo as
// "unknown", never as a validation failure.
type Lookup struct {
	http     *client.HeaderSettingClient
	cfg      *config.Config
	log      *logger.Logger
	resolver hostResolver
}

// hostResolver is the slice of net.Resolver the lookup needs.
type hostResolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

func New(cfg *config.Config, httpClient *client.HeaderSettingClient, log *logger.Logger) *Lookup {
	return &Lookup{
		http:     httpClient,
		cfg:      cfg,
		log:      log.Named("geo"),
		resolver: net.DefaultResolver,
	}
}

// response covers the ipleak.net field names plus the common aliases other
// providers use for the same data.
type response struct {
	IP          string `json:"ip"`
	CountryCode string `json:"country_code"`
	CountryName string `json:"country_name"`
	CityName    string `json:"city_name"`
	ISPName     string `json:"isp_name"`
	TimeZone    string `json:"time_zone"`
}

// LookupHost resolves the host of sourceURL to an address and queries the
// configured geo endpoint. Disabled lookups return (nil, nil) so call
// sites need no separate config check.
func (l *Lookup) LookupHost(ctx context.Context, sourceURL string) (*types.GeoInfo, error) {
	if !l.cfg.GeoEnabled {
		return nil, nil
	}

	parsed, err := url.Parse(sourceURL)
	if err != nil || parsed.Hostname() == "" {
		return nil, fmt.Errorf("no host in url")
	}

	ip := parsed.Hostname()
	if net.ParseIP(ip) == nil {
		addrs, err := l.resolver.LookupHost(ctx, ip)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", parsed.Hostname(), err)
		}
		if len(addrs) == 0 {
			return nil, fmt.Errorf("resolve %s: no addresses", parsed.Hostname())
		}
		ip = addrs[0]
	}

	return l.lookupIP(ctx, ip)
}

func (l *Lookup) lookupIP(ctx context.Context, ip string) (*types.GeoInfo, error) {
	endpoint := strings.ReplaceAll(l.cfg.GeoEndpoint, "{ip}", ip)

	reqCtx, cancel := context.WithTimeout(ctx, l.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geo endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var data response
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to parse geo response: %w", err)
	}

	country := data.CountryName
	if country == "" {
		country = data.CountryCode
	}

	return &types.GeoInfo{
		IP:       ip,
		Country:  country,
		City:     data.CityName,
		ISP:      data.ISPName,
		Timezone: data.TimeZone,
	}, nil
}
