/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"github.com/nupa0w0-hash/MangaGenPro/internal/backend"
	"github.com/nupa0w0-hash/MangaGenPro/internal/generate"
	"github.com/nupa0w0-hash/MangaGenPro/internal/layout"
)

// AppConfig is the user-editable configuration persisted to a YAML file in
// the user scope. Environment variables are read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	Style          string `yaml:"style"`
	PageTemplate   string `yaml:"page_template"` // freeCanvas | webtoonStrip | fourKoma
	CoverAspect    string `yaml:"cover_aspect"`  // landscape | portrait
	DataDir        string `yaml:"data_dir"`
	CharactersFile string `yaml:"characters_file"`
}

type BackendConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type RetryConfig struct {
	MaxAttempts    int `yaml:"max_attempts"`    // image calls
	ScriptAttempts int `yaml:"script_attempts"` // script calls fail fast
	BaseDelayMs    int `yaml:"base_delay_ms"`
	// TransientMarkers and TransientStatuses drive the failure classifier.
	// The backends give no formal overload contract, so this stays policy.
	TransientMarkers  []string `yaml:"transient_markers"`
	TransientStatuses []int    `yaml:"transient_statuses"`
}

type LayoutConfig struct {
	CanvasWidth  float64 `yaml:"canvas_width"`
	Gap          float64 `yaml:"gap"`
	MinHeight    float64 `yaml:"min_height"`
	BottomMargin float64 `yaml:"bottom_margin"`
}

type ImageConfig struct {
	BackendConfig   `yaml:",inline"`
	RatePerSec      float64 `yaml:"rate_per_sec"`
	Burst           int     `yaml:"burst"`
	CacheTTLMinutes int     `yaml:"cache_ttl_minutes"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Script        BackendConfig `yaml:"script_backend"`
	Image         ImageConfig   `yaml:"image_backend"`
	Retry         RetryConfig   `yaml:"retry"`
	Layout        LayoutConfig  `yaml:"layout"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	cls := backend.DefaultClassifier()
	return AppConfig{
		ConfigVersion: 1,
		General: GeneralConfig{
			TelemetryOptIn: false,
			PageTemplate:   "freeCanvas",
			CoverAspect:    "landscape",
		},
		Script: BackendConfig{
			BaseURL:   "https://api.mangagen.example",
			Model:     "script-compose-1",
			TimeoutMs: 60000,
		},
		Image: ImageConfig{
			BackendConfig: BackendConfig{
				BaseURL:   "https://api.mangagen.example",
				Model:     "panel-render-1",
				TimeoutMs: 120000,
			},
			RatePerSec:      1,
			Burst:           2,
			CacheTTLMinutes: 30,
		},
		Retry: RetryConfig{
			MaxAttempts:       3,
			ScriptAttempts:    2,
			BaseDelayMs:       500,
			TransientMarkers:  cls.Markers,
			TransientStatuses: cls.Statuses,
		},
		Layout: LayoutConfig{
			CanvasWidth:  672,
			Gap:          24,
			MinHeight:    1200,
			BottomMargin: 48,
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvScriptURL      = "MGP_SCRIPT_URL"
	EnvImageURL       = "MGP_IMAGE_URL"
	EnvScriptModel    = "MGP_SCRIPT_MODEL"
	EnvImageModel     = "MGP_IMAGE_MODEL"
	EnvAPIKey         = "MGP_API_KEY"
	EnvTelemetryOptIn = "MGP_TELEMETRY_OPT_IN"
	EnvDataDir        = "MGP_DATA_DIR"
	EnvLogLevel       = "MGP_LOG_LEVEL"
	EnvLogFormat      = "MGP_LOG_FORMAT"
	EnvLogSource      = "MGP_LOG_SOURCE"
	EnvLogFile        = "MGP_LOG_FILE"
)

// Service/keys for the OS keyring. The API key never touches disk.
const (
	keyringService = "MangaGenPro"
	keyringAPIKey  = "api_key"
)

// TokenStore abstracts the keyring, so tests can stub it.
type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

var tokenStore TokenStore = osKeyring{}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	base, err := userBaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "config.yaml"), nil
}

func userBaseDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "MangaGenPro")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "MangaGenPro")
	default: // linux and others
		base = filepath.Join(os.Getenv("HOME"), ".config", "mangagenpro")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// DataDir resolves where the snapshot database lives: explicit config,
// MGP_DATA_DIR, or the user config dir.
func (c AppConfig) DataDir() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvDataDir)); v != "" {
		return v, nil
	}
	if c.General.DataDir != "" {
		return c.General.DataDir, nil
	}
	return userBaseDir()
}

// Load reads the user config file (if present), applies defaults, and
// merges environment overrides. The API key comes from the keyring or
// MGP_API_KEY; it is returned separately and never kept in the struct.
func Load() (AppConfig, string, error) {
	path, err := ConfigPath()
	if err != nil {
		return Defaults(), "", err
	}
	cfg := LoadFrom(path)
	key := strings.TrimSpace(os.Getenv(EnvAPIKey))
	if key == "" {
		key, _ = tokenStore.Get(keyringService, keyringAPIKey)
	}
	return cfg, key, nil
}

// LoadFrom merges defaults, the YAML file at path (if readable), and env
// overrides.
func LoadFrom(path string) AppConfig {
	cfg := Defaults()
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg
}

// Save writes the config YAML and, when key is non-empty, stores it in the
// OS keyring.
func Save(cfg AppConfig, key string) error {
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
	if key != "" {
		return tokenStore.Set(keyringService, keyringAPIKey, key)
	}
	return nil
}

func mergeInto(dst, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if src.General.Style != "" {
		dst.General.Style = src.General.Style
	}
	if src.General.PageTemplate != "" {
		dst.General.PageTemplate = src.General.PageTemplate
	}
	if src.General.CoverAspect != "" {
		dst.General.CoverAspect = src.General.CoverAspect
	}
	if src.General.DataDir != "" {
		dst.General.DataDir = src.General.DataDir
	}
	if src.General.CharactersFile != "" {
		dst.General.CharactersFile = src.General.CharactersFile
	}
	mergeBackend(&dst.Script, &src.Script)
	mergeBackend(&dst.Image.BackendConfig, &src.Image.BackendConfig)
	if src.Image.RatePerSec != 0 {
		dst.Image.RatePerSec = src.Image.RatePerSec
	}
	if src.Image.Burst != 0 {
		dst.Image.Burst = src.Image.Burst
	}
	if src.Image.CacheTTLMinutes != 0 {
		dst.Image.CacheTTLMinutes = src.Image.CacheTTLMinutes
	}
	if src.Retry.MaxAttempts != 0 {
		dst.Retry.MaxAttempts = src.Retry.MaxAttempts
	}
	if src.Retry.ScriptAttempts != 0 {
		dst.Retry.ScriptAttempts = src.Retry.ScriptAttempts
	}
	if src.Retry.BaseDelayMs != 0 {
		dst.Retry.BaseDelayMs = src.Retry.BaseDelayMs
	}
	if len(src.Retry.TransientMarkers) > 0 {
		dst.Retry.TransientMarkers = src.Retry.TransientMarkers
	}
	if len(src.Retry.TransientStatuses) > 0 {
		dst.Retry.TransientStatuses = src.Retry.TransientStatuses
	}
	if src.Layout.CanvasWidth != 0 {
		dst.Layout.CanvasWidth = src.Layout.CanvasWidth
	}
	if src.Layout.Gap != 0 {
		dst.Layout.Gap = src.Layout.Gap
	}
	if src.Layout.MinHeight != 0 {
		dst.Layout.MinHeight = src.Layout.MinHeight
	}
	if src.Layout.BottomMargin != 0 {
		dst.Layout.BottomMargin = src.Layout.BottomMargin
	}
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func mergeBackend(dst, src *BackendConfig) {
	if src.BaseURL != "" {
		dst.BaseURL = src.BaseURL
	}
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.TimeoutMs != 0 {
		dst.TimeoutMs = src.TimeoutMs
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvScriptURL)); v != "" {
		cfg.Script.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvImageURL)); v != "" {
		cfg.Image.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvScriptModel)); v != "" {
		cfg.Script.Model = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvImageModel)); v != "" {
		cfg.Image.Model = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = isTruthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = isTruthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

func isTruthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

// LayoutParams converts the layout section into engine parameters.
func (c AppConfig) LayoutParams() layout.Params {
	return layout.Params{
		CanvasWidth:  c.Layout.CanvasWidth,
		Gap:          c.Layout.Gap,
		MinHeight:    c.Layout.MinHeight,
		BottomMargin: c.Layout.BottomMargin,
	}
}

// Classifier builds the transient-failure classifier from the retry section.
func (c AppConfig) Classifier() backend.Classifier {
	return backend.Classifier{
		Markers:  c.Retry.TransientMarkers,
		Statuses: c.Retry.TransientStatuses,
	}
}

// ImageRetry and ScriptRetry convert the retry section into policies.
func (c AppConfig) ImageRetry() generate.RetryPolicy {
	return generate.RetryPolicy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   time.Duration(c.Retry.BaseDelayMs) * time.Millisecond,
	}
}

func (c AppConfig) ScriptRetry() generate.RetryPolicy {
	return generate.RetryPolicy{
		MaxAttempts: c.Retry.ScriptAttempts,
		BaseDelay:   time.Duration(c.Retry.BaseDelayMs) * time.Millisecond,
	}
}

// ParseTimeout converts a millisecond field with a fallback.
func ParseTimeout(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
