package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName        string `mapstructure:"app_name"`
	Env            string `mapstructure:"app_env"`
	LogLevel       string `mapstructure:"log_level"`
	PublishersFile string `mapstructure:"publishers_file"`

	APIBaseURL        string        `mapstructure:"api_base_url"`
	APITimeoutSeconds int64         `mapstructure:"api_timeout_seconds"`
	APITimeout        time.Duration `mapstructure:"-"`
	DownloadDir       string        `mapstructure:"download_dir"`

	SyncIntervalSeconds int64         `mapstructure:"sync_interval"`
	SyncInterval        time.Duration `mapstructure:"-"`
	SyncOnce            bool          `mapstructure:"sync_once"`
	SyncGroupSearch     string        `mapstructure:"sync_group_search"`
	SyncGroupPageSize   int           `mapstructure:"sync_group_page_size"`
	SyncImagePageSize   int           `mapstructure:"sync_image_page_size"`
	SyncMaxImages       int           `mapstructure:"sync_max_images"`
	SyncClearLocal      bool          `mapstructure:"sync_clear_local"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	MongoURI               string        `mapstructure:"mongo_uri"`
	MongoDatabase          string        `mapstructure:"mongo_database"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "image-sync")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("publishers_file", "")
	v.SetDefault("api_base_url", "http://127.0.0.1:8001/api/v1/external")
	v.SetDefault("api_timeout_seconds", 0)
	v.SetDefault("download_dir", "./data/images")
	v.SetDefault("sync_interval", 3600) // seconds
	v.SetDefault("sync_once", false)
	v.SetDefault("sync_group_search", "")
	v.SetDefault("sync_group_page_size", 20)
	v.SetDefault("sync_image_page_size", 50)
	v.SetDefault("sync_max_images", 0)
	v.SetDefault("sync_clear_local", false)
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/ledger.db")
	v.SetDefault("mongo_uri", "")
	v.SetDefault("mongo_database", "image_sync")
	v.SetDefault("storage_ttl_seconds", int64((30*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))
}

func (cfg *Config) finalize() error {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return fmt.Errorf("api_base_url is required")
	}
	if cfg.APITimeoutSeconds < 0 {
		return fmt.Errorf("invalid api_timeout_seconds (must be zero or positive seconds)")
	}
	cfg.APITimeout = time.Duration(cfg.APITimeoutSeconds) * time.Second

	if strings.TrimSpace(cfg.DownloadDir) == "" {
		return fmt.Errorf("download_dir is required")
	}

	if cfg.SyncIntervalSeconds <= 0 {
		return fmt.Errorf("invalid sync_interval (must be positive seconds)")
	}
	cfg.SyncInterval = time.Duration(cfg.SyncIntervalSeconds) * time.Second

	if cfg.SyncGroupPageSize < 1 || cfg.SyncGroupPageSize > 100 {
		return fmt.Errorf("invalid sync_group_page_size %d (must be within 1..100)", cfg.SyncGroupPageSize)
	}
	if cfg.SyncImagePageSize < 1 || cfg.SyncImagePageSize > 200 {
		return fmt.Errorf("invalid sync_image_page_size %d (must be within 1..200)", cfg.SyncImagePageSize)
	}
	if cfg.SyncMaxImages < 0 {
		return fmt.Errorf("invalid sync_max_images (must be zero or positive)")
	}

	cfg.StorageType = strings.ToLower(strings.TrimSpace(cfg.StorageType))
	if cfg.StorageType == "mongo" && strings.TrimSpace(cfg.MongoURI) == "" {
		return fmt.Errorf("mongo storage requires mongo_uri")
	}
	if cfg.StorageTTLSeconds <= 0 {
		return fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second

	return nil
}
