package config_test

import (
	"os"
	"testing"

	"github.com/marktennyson/nextbrowse-sub001/internal/config"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k) //nolint:errcheck
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old) //nolint:errcheck
			}
		})
	}
}

var allKeys = []string{
	"PORT", "STORAGE_PORT", "ROOT_DIR", "STORAGE_PATH", "PUBLIC_FILES_BASE",
	"LISTING_ACCELERATOR_URL", "MAX_CONCURRENT_UPLOADS", "MAX_UPLOAD_BODY_BYTES",
	"SCRATCH_TTL_HOURS", "SHARE_SWEEP_INTERVAL_SECONDS", "MIN_FREE_BYTES",
	"CORS_ALLOWED_ORIGINS",
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t, allKeys...)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "5000" {
		t.Errorf("Port = %q, want 5000", cfg.Port)
	}
	if cfg.RootDir != "/data/files" {
		t.Errorf("RootDir = %q, want /data/files", cfg.RootDir)
	}
	if cfg.MaxConcurrentUploads != 256 {
		t.Errorf("MaxConcurrentUploads = %d, want 256", cfg.MaxConcurrentUploads)
	}
	if cfg.ScratchTTLHours != 24 {
		t.Errorf("ScratchTTLHours = %d, want 24", cfg.ScratchTTLHours)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Errorf("CORSAllowedOrigins = %v, want [*]", cfg.CORSAllowedOrigins)
	}
}

func TestLoadHonorsEnvOverride(t *testing.T) {
	clearEnv(t, allKeys...)
	os.Setenv("PORT", "9090")                                  //nolint:errcheck
	os.Setenv("ROOT_DIR", "/tmp/storage")                       //nolint:errcheck
	os.Setenv("CORS_ALLOWED_ORIGINS", "https://a.test, https://b.test") //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.RootDir != "/tmp/storage" {
		t.Errorf("RootDir = %q, want /tmp/storage", cfg.RootDir)
	}
	want := []string{"https://a.test", "https://b.test"}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[0] != want[0] || cfg.CORSAllowedOrigins[1] != want[1] {
		t.Errorf("CORSAllowedOrigins = %v, want %v", cfg.CORSAllowedOrigins, want)
	}
}

func TestLoadHonorsLegacyAliasEnvVars(t *testing.T) {
	clearEnv(t, allKeys...)
	os.Setenv("STORAGE_PORT", "7070")           //nolint:errcheck
	os.Setenv("STORAGE_PATH", "/srv/files")     //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7070" {
		t.Errorf("Port = %q, want 7070 (from STORAGE_PORT)", cfg.Port)
	}
	if cfg.RootDir != "/srv/files" {
		t.Errorf("RootDir = %q, want /srv/files (from STORAGE_PATH)", cfg.RootDir)
	}
}
