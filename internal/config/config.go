/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables (optionally loaded from a .env file) are read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int              `yaml:"config_version"`
	Server        ServerConfig     `yaml:"server"`
	Storage       StorageConfig    `yaml:"storage"`
	Canvas        CanvasConfig     `yaml:"canvas"`
	DataSource    DataSourceConfig `yaml:"datasource"`
	Logging       LoggingConfig    `yaml:"logging"`
	// APIToken is not stored on disk; it lives in the OS keychain.
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"` // "file" | "sqlite" | "memory"
	Dir     string `yaml:"dir"`
}

type CanvasConfig struct {
	CollisionBufferPx float64 `yaml:"collision_buffer_px"`
	UndoDepth         int     `yaml:"undo_depth"`
}

type DataSourceConfig struct {
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	HTTPTimeoutMs   int    `yaml:"http_timeout_ms"`
	DatabaseDriver  string `yaml:"database_driver"` // "stub" | "pgx"
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Server:        ServerConfig{Addr: ":8080"},
		Storage:       StorageConfig{Backend: "file", Dir: ""},
		Canvas:        CanvasConfig{CollisionBufferPx: 5, UndoDepth: 100},
		DataSource:    DataSourceConfig{CacheTTLSeconds: 60, HTTPTimeoutMs: 15000, DatabaseDriver: "stub"},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigFile      = "IVD_CONFIG"
	EnvAddr            = "IVD_ADDR"
	EnvStorageBackend  = "IVD_STORAGE_BACKEND"
	EnvStorageDir      = "IVD_STORAGE_DIR"
	EnvCollisionBuffer = "IVD_COLLISION_BUFFER_PX"
	EnvCacheTTL        = "IVD_CACHE_TTL_SECONDS"
	EnvHTTPTimeoutMs   = "IVD_HTTP_TIMEOUT_MS"
	EnvDatabaseDriver  = "IVD_DATABASE_DRIVER"
	EnvAPIToken        = "IVD_API_TOKEN"
	EnvLogLevel        = "IVD_LOG_LEVEL"
	EnvLogFormat       = "IVD_LOG_FORMAT"
	EnvLogSource       = "IVD_LOG_SOURCE"
	EnvLogFile         = "IVD_LOG_FILE"
)

// ConfigPath returns the per-user config file path. IVD_CONFIG wins when set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p, nil
	}
	base, err := userDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "config.yaml"), nil
}

// DataDir returns the directory holding the persisted collections.
func (c AppConfig) DataDir() (string, error) {
	if d := strings.TrimSpace(c.Storage.Dir); d != "" {
		return d, nil
	}
	base, err := userDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "data"), nil
}

func userDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "InvoiceDesigner")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "InvoiceDesigner")
	default:
		home := os.Getenv("HOME")
		if home == "" {
			return "", errors.New("cannot resolve config directory")
		}
		base = filepath.Join(home, ".config", "invoicedesigner")
	}
	return base, nil
}

// Load reads the user config file (if present), applies defaults, loads a .env file from the
// working directory when one exists and merges environment overrides.
// The API token comes from IVD_API_TOKEN or, failing that, from the OS keyring.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	// a missing .env is normal
	_ = godotenv.Load()

	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)

	tok := strings.TrimSpace(os.Getenv(EnvAPIToken))
	if tok == "" {
		tok, _ = tokenStore.Get(keyringService, keyringToken)
	}
	return cfg, tok, nil
}

// Save writes the user config YAML and persists the API token into the OS keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return err
		}
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if s := strings.TrimSpace(src.Server.Addr); s != "" {
		dst.Server.Addr = s
	}
	if len(src.Server.CORSOrigins) > 0 {
		dst.Server.CORSOrigins = append([]string(nil), src.Server.CORSOrigins...)
	}
	if s := strings.TrimSpace(src.Storage.Backend); s != "" {
		dst.Storage.Backend = strings.ToLower(s)
	}
	if s := strings.TrimSpace(src.Storage.Dir); s != "" {
		dst.Storage.Dir = s
	}
	if src.Canvas.CollisionBufferPx > 0 {
		dst.Canvas.CollisionBufferPx = src.Canvas.CollisionBufferPx
	}
	if src.Canvas.UndoDepth > 0 {
		dst.Canvas.UndoDepth = src.Canvas.UndoDepth
	}
	if src.DataSource.CacheTTLSeconds > 0 {
		dst.DataSource.CacheTTLSeconds = src.DataSource.CacheTTLSeconds
	}
	if src.DataSource.HTTPTimeoutMs > 0 {
		dst.DataSource.HTTPTimeoutMs = src.DataSource.HTTPTimeoutMs
	}
	if s := strings.TrimSpace(src.DataSource.DatabaseDriver); s != "" {
		dst.DataSource.DatabaseDriver = strings.ToLower(s)
	}
	if s := strings.TrimSpace(src.Logging.Level); s != "" {
		dst.Logging.Level = strings.ToLower(s)
	}
	if s := strings.TrimSpace(src.Logging.Format); s != "" {
		dst.Logging.Format = strings.ToLower(s)
	}
	dst.Logging.Source = src.Logging.Source
	if s := strings.TrimSpace(src.Logging.File); s != "" {
		dst.Logging.File = s
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvAddr)); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorageBackend)); v != "" {
		cfg.Storage.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorageDir)); v != "" {
		cfg.Storage.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCollisionBuffer)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.Canvas.CollisionBufferPx = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvCacheTTL)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DataSource.CacheTTLSeconds = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvHTTPTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DataSource.HTTPTimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvDatabaseDriver)); v != "" {
		cfg.DataSource.DatabaseDriver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

func parseBool(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

// CacheTTL is the data-source row cache lifetime.
func (d DataSourceConfig) CacheTTL() time.Duration {
	if d.CacheTTLSeconds <= 0 {
		return time.Duration(Defaults().DataSource.CacheTTLSeconds) * time.Second
	}
	return time.Duration(d.CacheTTLSeconds) * time.Second
}

// HTTPTimeout is the per-request timeout for API data sources.
func (d DataSourceConfig) HTTPTimeout() time.Duration {
	if d.HTTPTimeoutMs <= 0 {
		return time.Duration(Defaults().DataSource.HTTPTimeoutMs) * time.Millisecond
	}
	return time.Duration(d.HTTPTimeoutMs) * time.Millisecond
}
