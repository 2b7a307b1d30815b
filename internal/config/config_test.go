package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIBaseURL != "http://127.0.0.1:8001/api/v1/external" {
		t.Fatalf("api base url = %q", cfg.APIBaseURL)
	}
	if cfg.APITimeout != 0 {
		t.Fatalf("default timeout = %v, want none", cfg.APITimeout)
	}
	if cfg.SyncInterval != time.Hour || cfg.SyncGroupPageSize != 20 || cfg.SyncImagePageSize != 50 {
		t.Fatalf("sync defaults = %+v", cfg)
	}
	if cfg.StorageType != "bbolt" || cfg.StorageCleanupInterval != 12*time.Hour {
		t.Fatalf("storage defaults = %+v", cfg)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://images.internal/api/v1/external")
	t.Setenv("API_TIMEOUT_SECONDS", "15")
	t.Setenv("SYNC_INTERVAL", "60")
	t.Setenv("SYNC_ONCE", "true")
	t.Setenv("SYNC_MAX_IMAGES", "25")
	t.Setenv("STORAGE_TYPE", " NONE ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIBaseURL != "http://images.internal/api/v1/external" || cfg.APITimeout != 15*time.Second {
		t.Fatalf("api config = %q %v", cfg.APIBaseURL, cfg.APITimeout)
	}
	if cfg.SyncInterval != time.Minute || !cfg.SyncOnce || cfg.SyncMaxImages != 25 {
		t.Fatalf("sync config = %+v", cfg)
	}
	if cfg.StorageType != "none" {
		t.Fatalf("storage type = %q, want none", cfg.StorageType)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"SYNC_INTERVAL":        "0",
		"API_TIMEOUT_SECONDS":  "-1",
		"SYNC_IMAGE_PAGE_SIZE": "201",
		"SYNC_GROUP_PAGE_SIZE": "0",
		"SYNC_MAX_IMAGES":      "-3",
		"STORAGE_TTL_SECONDS":  "0",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", key, val)
			}
		})
	}
}

func TestLoadMongoRequiresURI(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "mongo")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for mongo without uri")
	}
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	if _, err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}
