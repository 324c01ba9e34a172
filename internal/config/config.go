// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging     LoggingConfig     `mapstructure:"logging"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Pacing      PacingConfig      `mapstructure:"pacing"`
	Acquire     AcquireConfig     `mapstructure:"acquire"`
	SAM         SAMConfig         `mapstructure:"sam"`
	USASpending USASpendingConfig `mapstructure:"usaspending"`
	Relevance   RelevanceConfig   `mapstructure:"relevance"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Archive     ArchiveConfig     `mapstructure:"archive"`
	Publisher   PublisherConfig   `mapstructure:"publisher"`
	Server      ServerConfig      `mapstructure:"server"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// HTTPConfig configures retry behavior shared by both provider clients.
type HTTPConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
	Timeout    time.Duration `mapstructure:"timeout"`
	HostRPS    float64       `mapstructure:"host_rps"`
	HostBurst  int           `mapstructure:"host_burst"`
}

// PacingConfig controls the jittered delay between provider calls.
type PacingConfig struct {
	MinDelay            time.Duration `mapstructure:"min_delay"`
	MaxDelay            time.Duration `mapstructure:"max_delay"`
	WideRegionThreshold int           `mapstructure:"wide_region_threshold"`
	WideScale           float64       `mapstructure:"wide_scale"`
}

// AcquireConfig governs one acquisition run.
type AcquireConfig struct {
	Regions                []string `mapstructure:"regions"`
	CategoryCodes          []string `mapstructure:"category_codes"`
	LookbackDays           int      `mapstructure:"lookback_days"`
	SecondaryLookbackDays  int      `mapstructure:"secondary_lookback_days"`
	MaxConsecutiveFailures int      `mapstructure:"max_consecutive_failures"`
}

// SAMConfig describes the primary opportunity search provider.
type SAMConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
	PageSize int    `mapstructure:"page_size"`
	PageCap  int    `mapstructure:"page_cap"`
}

// USASpendingConfig describes the fallback bulk award provider.
type USASpendingConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	PageSize int    `mapstructure:"page_size"`
}

// RelevanceConfig drives tier classification and secondary-ingest caps.
type RelevanceConfig struct {
	PrimaryCode  string   `mapstructure:"primary_code"`
	RelatedCodes []string `mapstructure:"related_codes"`
	SectorPrefix string   `mapstructure:"sector_prefix"`
	Keywords     []string `mapstructure:"keywords"`
	RelatedCap   int      `mapstructure:"related_cap"`
	GeneralCap   int      `mapstructure:"general_cap"`
}

// StorageConfig selects and configures the contract store.
type StorageConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	Path     string `mapstructure:"path"`
	Table    string `mapstructure:"table"`
}

// ArchiveConfig selects the raw payload archive backend.
type ArchiveConfig struct {
	Provider string `mapstructure:"provider"`
	Bucket   string `mapstructure:"bucket"`
	BaseDir  string `mapstructure:"base_dir"`
}

// PublisherConfig selects the run-event publisher backend.
type PublisherConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ServerConfig controls the ops HTTP endpoint.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)

	v.SetDefault("http.max_retries", 5)
	v.SetDefault("http.base_delay", "2s")
	v.SetDefault("http.max_delay", "60s")
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.host_rps", 1.0)
	v.SetDefault("http.host_burst", 1)

	v.SetDefault("pacing.min_delay", "800ms")
	v.SetDefault("pacing.max_delay", "4s")
	v.SetDefault("pacing.wide_region_threshold", 3)
	v.SetDefault("pacing.wide_scale", 1.5)

	v.SetDefault("acquire.regions", []string{"VA"})
	v.SetDefault("acquire.category_codes", []string{"561720", "561740", "561210"})
	v.SetDefault("acquire.lookback_days", 7)
	v.SetDefault("acquire.secondary_lookback_days", 90)
	v.SetDefault("acquire.max_consecutive_failures", 3)

	v.SetDefault("sam.base_url", "https://api.sam.gov/opportunities/v2/search")
	v.SetDefault("sam.page_size", 100)
	v.SetDefault("sam.page_cap", 2)

	v.SetDefault("usaspending.base_url", "https://api.usaspending.gov/api/v2/search/spending_by_award/")
	v.SetDefault("usaspending.page_size", 100)

	v.SetDefault("relevance.primary_code", "561720")
	v.SetDefault("relevance.related_codes", []string{"561740", "561790", "561210"})
	v.SetDefault("relevance.sector_prefix", "56")
	v.SetDefault("relevance.keywords", []string{
		"janitor", "cleaning", "custodial", "sanitiz", "disinfect", "sweeping", "mopping",
	})
	v.SetDefault("relevance.related_cap", 20)
	v.SetDefault("relevance.general_cap", 10)

	v.SetDefault("storage.provider", "memory")
	v.SetDefault("storage.table", "contracts")
	v.SetDefault("storage.path", "data/harvester.db")

	v.SetDefault("archive.provider", "none")
	v.SetDefault("archive.base_dir", "data/raw")

	v.SetDefault("publisher.provider", "none")

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8085)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.HTTP.BaseDelay <= 0 {
		return fmt.Errorf("http.base_delay must be > 0")
	}
	if c.HTTP.MaxDelay < c.HTTP.BaseDelay {
		return fmt.Errorf("http.max_delay must be >= http.base_delay")
	}
	if c.Pacing.MinDelay <= 0 || c.Pacing.MaxDelay < c.Pacing.MinDelay {
		return fmt.Errorf("pacing delays must satisfy 0 < min_delay <= max_delay")
	}
	if len(c.Acquire.Regions) == 0 {
		return fmt.Errorf("acquire.regions must not be empty")
	}
	if len(c.Acquire.CategoryCodes) == 0 {
		return fmt.Errorf("acquire.category_codes must not be empty")
	}
	if c.Acquire.MaxConsecutiveFailures <= 0 {
		return fmt.Errorf("acquire.max_consecutive_failures must be > 0")
	}
	if c.SAM.PageSize <= 0 || c.SAM.PageCap <= 0 {
		return fmt.Errorf("sam.page_size and sam.page_cap must be > 0")
	}
	if c.Relevance.PrimaryCode == "" {
		return fmt.Errorf("relevance.primary_code must be set")
	}
	switch c.Storage.Provider {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage provider: %s", c.Storage.Provider)
	}
	if c.Storage.Provider == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required for the postgres provider")
	}
	switch c.Archive.Provider {
	case "none", "local", "gcs", "memory":
	default:
		return fmt.Errorf("unknown archive provider: %s", c.Archive.Provider)
	}
	if c.Archive.Provider == "gcs" && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket is required for the gcs provider")
	}
	switch c.Publisher.Provider {
	case "none", "memory", "pubsub":
	default:
		return fmt.Errorf("unknown publisher provider: %s", c.Publisher.Provider)
	}
	if c.Publisher.Provider == "pubsub" && (c.Publisher.ProjectID == "" || c.Publisher.Topic == "") {
		return fmt.Errorf("publisher.project_id and publisher.topic are required for pubsub")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the ops server is enabled")
	}
	return nil
}
