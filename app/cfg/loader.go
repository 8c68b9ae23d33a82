package cfg

import (
	"cmp"
	"fmt"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Cache configuration
	RedisAddr string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address (host:port); empty runs with the in-process store"`

	// HTTP server configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	RefreshToken string `long:"refresh-token" env:"REFRESH_TOKEN" description:"Token required by the cache-warming endpoint (disabled when empty)"`

	// Metadata API configuration
	MetadataEndpoint  string `long:"metadata-endpoint" env:"METADATA_ENDPOINT" description:"Metadata API base URL; empty falls back to local og-tag extraction"`
	MetadataAPIKey    string `long:"metadata-api-key" env:"METADATA_API_KEY" description:"Metadata API key"`
	MetadataTimeout   int    `long:"metadata-timeout" env:"METADATA_TIMEOUT" default:"10" description:"Per-URL metadata fetch timeout in seconds"`
	MetadataSpacingMS int    `long:"metadata-spacing" env:"METADATA_SPACING_MS" default:"250" description:"Minimum gap between metadata API calls in milliseconds"`

	// Pipeline configuration
	SourcesFile      string `long:"sources-file" env:"SOURCES_FILE" default:"./sources.yml" description:"YAML file seeding the known-sources registry"`
	RawTTLHours      int    `long:"raw-ttl" env:"RAW_TTL_HOURS" default:"24" description:"Raw document cache TTL in hours"`
	PageSize         int    `long:"page-size" env:"PAGE_SIZE" default:"10" description:"Default page size for feed and sitemap pages"`
	SourceBatchSize  int    `long:"source-batch-size" env:"SOURCE_BATCH_SIZE" default:"3" description:"Sources updated concurrently per batch"`
	SourceBatchDelay int    `long:"source-batch-delay" env:"SOURCE_BATCH_DELAY_MS" default:"500" description:"Delay between source batches in milliseconds"`
	WorkerCount      int    `long:"worker-count" env:"WORKER_COUNT" default:"3" description:"Number of background refresh workers"`
	RefreshInterval  int    `long:"refresh-interval" env:"REFRESH_INTERVAL" default:"0" description:"Periodic full-refresh interval in seconds (0 disables)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Letterfeed/1.0" description:"User agent string for HTTP requests"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		RedisAddr:         raw.RedisAddr,
		Port:              raw.Port,
		RefreshToken:      raw.RefreshToken,
		MetadataEndpoint:  raw.MetadataEndpoint,
		MetadataAPIKey:    raw.MetadataAPIKey,
		MetadataTimeout:   raw.MetadataTimeout,
		MetadataSpacingMS: raw.MetadataSpacingMS,
		SourcesFile:       raw.SourcesFile,
		RawTTLHours:       raw.RawTTLHours,
		PageSize:          raw.PageSize,
		SourceBatchSize:   raw.SourceBatchSize,
		SourceBatchDelay:  raw.SourceBatchDelay,
		WorkerCount:       raw.WorkerCount,
		RefreshInterval:   raw.RefreshInterval,
		UserAgent:         raw.UserAgent,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}
