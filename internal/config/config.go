// Package config loads runtime configuration from the environment, with
// viper providing the defaulting/binding layer the teacher's hand-written
// getEnv helper didn't need until the surface grew past a handful of keys.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the file service.
type Config struct {
	Port                   string
	RootDir                string
	PublicFilesBase        string
	ListingAcceleratorURL  string
	MaxConcurrentUploads   int
	MaxUploadBodyBytes     int64
	ScratchTTLHours        int
	ShareSweepIntervalSecs int
	MinFreeBytes           int64
	CORSAllowedOrigins     []string
}

// Load reads configuration from the environment (with sane defaults for
// local development), the same "env-first, default-fallback" shape as the
// teacher's getEnv, generalized via viper's SetDefault/BindEnv instead of
// one getEnv call per key.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", "5000")
	v.SetDefault("root_dir", "/data/files")
	v.SetDefault("public_files_base", "/files")
	v.SetDefault("listing_accelerator_url", "")
	v.SetDefault("max_concurrent_uploads", 256)
	v.SetDefault("max_upload_body_bytes", int64(64<<20))
	v.SetDefault("scratch_ttl_hours", 24)
	v.SetDefault("share_sweep_interval_seconds", 60)
	v.SetDefault("min_free_bytes", int64(0))
	v.SetDefault("cors_allowed_origins", "*")

	for _, key := range []string{
		"port", "root_dir", "public_files_base", "listing_accelerator_url",
		"max_concurrent_uploads", "max_upload_body_bytes", "scratch_ttl_hours",
		"share_sweep_interval_seconds", "min_free_bytes", "cors_allowed_origins",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	// STORAGE_PORT and STORAGE_PATH are accepted as aliases for PORT/ROOT_DIR,
	// matching the original service's env var names.
	if err := v.BindEnv("port", "PORT", "STORAGE_PORT"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("root_dir", "ROOT_DIR", "STORAGE_PATH"); err != nil {
		return nil, err
	}

	origins := strings.Split(v.GetString("cors_allowed_origins"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return &Config{
		Port:                   v.GetString("port"),
		RootDir:                v.GetString("root_dir"),
		PublicFilesBase:        v.GetString("public_files_base"),
		ListingAcceleratorURL:  v.GetString("listing_accelerator_url"),
		MaxConcurrentUploads:   v.GetInt("max_concurrent_uploads"),
		MaxUploadBodyBytes:     v.GetInt64("max_upload_body_bytes"),
		ScratchTTLHours:        v.GetInt("scratch_ttl_hours"),
		ShareSweepIntervalSecs: v.GetInt("share_sweep_interval_seconds"),
		MinFreeBytes:           v.GetInt64("min_free_bytes"),
		CORSAllowedOrigins:     origins,
	}, nil
}
