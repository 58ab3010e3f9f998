package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// Config holds all application configuration values for the validation service.
// It covers network timeouts, probing behavior, portal acceptance rules,
// caching, and storage, plus the injected protocol tables.
type Config struct {
	ListenAddr         string        `json:"listenAddr"`         // Address the HTTP API binds to
	BaseURL            string        `json:"baseURL"`            // Externally visible base URL for links in responses
	Debug              bool          `json:"debug"`              // Enable debug logging
	ObfuscateUrls      bool          `json:"obfuscateUrls"`      // Obfuscate source URLs in logs
	RequestTimeout     time.Duration `json:"requestTimeout"`     // Timeout for catalog and playlist fetches
	ProbeTimeout       time.Duration `json:"probeTimeout"`       // Timeout for a single endpoint probe
	ProbeParallel      bool          `json:"probeParallel"`      // Probe candidate endpoints concurrently
	ProbeWorkers       int           `json:"probeWorkers"`       // Concurrent probe cap when parallel (4..8)
	ProbeRatePerHost   int           `json:"probeRatePerHost"`   // Probe requests per second against one host
	StalkerAcceptCodes []int         `json:"stalkerAcceptCodes"` // HTTP statuses that mark a portal endpoint alive
	StalkerPasses      int           `json:"stalkerPasses"`      // Full discovery passes over the portal path table
	StalkerRetryDelay  time.Duration `json:"stalkerRetryDelay"`  // Pause between discovery passes
	ExpiryWarnDays     int           `json:"expiryWarnDays"`     // Warn when an account expires within this many days
	CacheEnabled       bool          `json:"cacheEnabled"`       // Cache validation and geo results
	CacheDuration      time.Duration `json:"cacheDuration"`      // TTL for cached results
	GeoEnabled         bool          `json:"geoEnabled"`         // Perform best-effort geo lookups
	GeoEndpoint        string        `json:"geoEndpoint"`        // Geo lookup URL template, {ip} placeholder
	DatabasePath       string        `json:"databasePath"`       // SQLite file for the source store
	WorkerThreads      int           `json:"workerThreads"`      // Pool size for bulk validation jobs
	Tables             *Tables       `json:"-"`                  // Immutable protocol tables
}

// ConfigFile represents the JSON file structure for marshaling/unmarshaling
// configuration. String duration fields (e.g. "30s") are parsed into
// time.Duration values.
type ConfigFile struct {
	ListenAddr         string `json:"listenAddr"`
	BaseURL            string `json:"baseURL"`
	Debug              bool   `json:"debug"`
	ObfuscateUrls      bool   `json:"obfuscateUrls"`
	RequestTimeout     string `json:"requestTimeout"`
	ProbeTimeout       string `json:"probeTimeout"`
	ProbeParallel      bool   `json:"probeParallel"`
	ProbeWorkers       int    `json:"probeWorkers"`
	ProbeRatePerHost   int    `json:"probeRatePerHost"`
	StalkerAcceptCodes []int  `json:"stalkerAcceptCodes"`
	StalkerPasses      int    `json:"stalkerPasses"`
	StalkerRetryDelay  string `json:"stalkerRetryDelay"`
	ExpiryWarnDays     int    `json:"expiryWarnDays"`
	CacheEnabled       bool   `json:"cacheEnabled"`
	CacheDuration      string `json:"cacheDuration"`
	GeoEnabled         bool   `json:"geoEnabled"`
	GeoEndpoint        string `json:"geoEndpoint"`
	DatabasePath       string `json:"databasePath"`
	WorkerThreads      int    `json:"workerThreads"`
}

var (
	configCache *Config      // Cached configuration instance (singleton)
	configMutex sync.RWMutex // Mutex for safe concurrent access to configCache
)

// LoadConfig loads the configuration from file or returns the cached instance.
//
// Process:
//   - Uses double-checked locking to avoid redundant reloads.
//   - Attempts to load from `/settings/config.json`.
//   - Falls back to default config if file is missing or invalid.
//   - Runs validation to ensure safe defaults.
//
// Returns:
//   - *Config: fully validated configuration object
func LoadConfig() *Config {
	configMutex.RLock()
	if configCache != nil {
		defer configMutex.RUnlock()
		return configCache
	}
	configMutex.RUnlock()

	configMutex.Lock()
	defer configMutex.Unlock()

	// Double-check under write lock
	if configCache != nil {
		return configCache
	}

	configPath := "/settings/config.json"
	config, err := LoadFromFile(configPath)
	if err != nil {
		log.Printf("Failed to load config from %s: %v", configPath, err)
		log.Printf("Falling back to default configuration...")
		config = getDefaultConfig()
	}

	validateAndSetDefaults(config)
	configCache = config

	if config.Debug {
		log.Printf("Configuration loaded:")
		log.Printf("  Listen: %s", config.ListenAddr)
		log.Printf("  Probe timeout: %s (parallel: %v, workers: %d)",
			config.ProbeTimeout, config.ProbeParallel, config.ProbeWorkers)
		log.Printf("  Stalker accept codes: %v, passes: %d", config.StalkerAcceptCodes, config.StalkerPasses)
		log.Printf("  Cache: %v (%s)", config.CacheEnabled, config.CacheDuration)
		log.Printf("  Database: %s", config.DatabasePath)
	}

	return config
}

// LoadFromFile reads and parses the configuration from a JSON file.
//
// Parameters:
//   - path: path to JSON config file
//
// Returns:
//   - *Config: parsed configuration
//   - error: if reading/parsing failed
func LoadFromFile(path string) (*Config, error) {

	// read from the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// unmarshal the config file
	var configFile ConfigFile
	if err := json.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// convert to our settings
	return convertFromFile(&configFile)
}

// convertFromFile converts a ConfigFile to Config,
// parsing duration strings into time.Duration.
func convertFromFile(cf *ConfigFile) (*Config, error) {
	config := &Config{
		ListenAddr:         cf.ListenAddr,
		BaseURL:            cf.BaseURL,
		Debug:              cf.Debug,
		ObfuscateUrls:      cf.ObfuscateUrls,
		ProbeParallel:      cf.ProbeParallel,
		ProbeWorkers:       cf.ProbeWorkers,
		ProbeRatePerHost:   cf.ProbeRatePerHost,
		StalkerAcceptCodes: cf.StalkerAcceptCodes,
		StalkerPasses:      cf.StalkerPasses,
		ExpiryWarnDays:     cf.ExpiryWarnDays,
		CacheEnabled:       cf.CacheEnabled,
		GeoEnabled:         cf.GeoEnabled,
		GeoEndpoint:        cf.GeoEndpoint,
		DatabasePath:       cf.DatabasePath,
		WorkerThreads:      cf.WorkerThreads,
	}

	// Parse duration fields, empty strings fall back to defaults later
	var err error
	if cf.RequestTimeout != "" {
		if config.RequestTimeout, err = time.ParseDuration(cf.RequestTimeout); err != nil {
			return nil, fmt.Errorf("invalid requestTimeout: %w", err)
		}
	}
	if cf.ProbeTimeout != "" {
		if config.ProbeTimeout, err = time.ParseDuration(cf.ProbeTimeout); err != nil {
			return nil, fmt.Errorf("invalid probeTimeout: %w", err)
		}
	}
	if cf.StalkerRetryDelay != "" {
		if config.StalkerRetryDelay, err = time.ParseDuration(cf.StalkerRetryDelay); err != nil {
			return nil, fmt.Errorf("invalid stalkerRetryDelay: %w", err)
		}
	}
	if cf.CacheDuration != "" {
		if config.CacheDuration, err = time.ParseDuration(cf.CacheDuration); err != nil {
			return nil, fmt.Errorf("invalid cacheDuration: %w", err)
		}
	}

	return config, nil
}

// getDefaultConfig returns a baseline configuration
// with sensible defaults when no file is present.
func getDefaultConfig() *Config {
	return &Config{
		ListenAddr:         ":8080",
		BaseURL:            "http://localhost:8080",
		Debug:              false,
		ObfuscateUrls:      false,
		RequestTimeout:     30 * time.Second,
		ProbeTimeout:       10 * time.Second,
		ProbeParallel:      false,
		ProbeWorkers:       4,
		ProbeRatePerHost:   5,
		StalkerAcceptCodes: []int{200, 401, 512},
		StalkerPasses:      2,
		StalkerRetryDelay:  time.Second,
		ExpiryWarnDays:     7,
		CacheEnabled:       true,
		CacheDuration:      15 * time.Minute,
		GeoEnabled:         true,
		GeoEndpoint:        "https://ipleak.net/json/{ip}",
		DatabasePath:       "/settings/sources.db",
		WorkerThreads:      8,
	}
}

// validateAndSetDefaults ensures all config values are valid,
// filling in defaults for missing/invalid ones.
func validateAndSetDefaults(config *Config) {
	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8080"
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 10 * time.Second
	}
	if config.ProbeWorkers <= 0 {
		config.ProbeWorkers = 4
	}
	if config.ProbeWorkers > 8 {
		config.ProbeWorkers = 8
	}
	if config.ProbeRatePerHost <= 0 {
		config.ProbeRatePerHost = 5
	}
	if len(config.StalkerAcceptCodes) == 0 {
		config.StalkerAcceptCodes = []int{200, 401, 512}
	}
	if config.StalkerPasses <= 0 {
		config.StalkerPasses = 2
	}
	if config.StalkerRetryDelay <= 0 {
		config.StalkerRetryDelay = time.Second
	}
	if config.ExpiryWarnDays <= 0 {
		config.ExpiryWarnDays = 7
	}
	if config.CacheDuration <= 0 {
		config.CacheDuration = 15 * time.Minute
	}
	if config.GeoEndpoint == "" {
		config.GeoEndpoint = "https://ipleak.net/json/{ip}"
	}
	if config.DatabasePath == "" {
		config.DatabasePath = "/settings/sources.db"
	}
	if config.WorkerThreads <= 0 {
		config.WorkerThreads = 8
	}
	if config.Tables == nil {
		config.Tables = DefaultTables()
	}
}

// AcceptsStatus reports whether an HTTP status marks a Stalker portal
// endpoint as alive during discovery.
func (c *Config) AcceptsStatus(status int) bool {
	for _, code := range c.StalkerAcceptCodes {
		if code == status {
			return true
		}
	}
	return false
}

// CreateExampleConfig creates an example config file on disk.
//
// Parameters:
//   - path: file path to write example config
//
// Returns:
//   - error: if write fails
func CreateExampleConfig(path string) error {
	example := ConfigFile{
		ListenAddr:         ":8080",
		BaseURL:            "http://localhost:8080",
		Debug:              false,
		ObfuscateUrls:      true,
		RequestTimeout:     "30s",
		ProbeTimeout:       "10s",
		ProbeParallel:      true,
		ProbeWorkers:       4,
		ProbeRatePerHost:   5,
		StalkerAcceptCodes: []int{200, 401, 512},
		StalkerPasses:      2,
		StalkerRetryDelay:  "1s",
		ExpiryWarnDays:     7,
		CacheEnabled:       true,
		CacheDuration:      "15m",
		GeoEnabled:         true,
		GeoEndpoint:        "https://ipleak.net/json/{ip}",
		DatabasePath:       "/settings/sources.db",
		WorkerThreads:      8,
	}

	// setup the data properly
	data, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		return err
	}

	// write the config file
	return os.WriteFile(path, data, 0644)
}

// ClearConfigCache resets the configCache to nil.
// Forces a reload on the next LoadConfig() call.
func ClearConfigCache() {
	configMutex.Lock()
	defer configMutex.Unlock()
	configCache = nil
}

// NewTestConfig returns a validated default configuration without touching
// the singleton cache or the filesystem.
func NewTestConfig() *Config {
	config := getDefaultConfig()
	validateAndSetDefaults(config)
	return config
}
