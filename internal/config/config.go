package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

// Config is built once at startup and handed to every component.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Transcribe Transcribe `toml:"transcribe"`
	Translate  Translate  `toml:"translate"`
	Cache      Cache      `toml:"cache"`
	Runtime    Runtime    `toml:"runtime"`
	Logging    Logging    `toml:"logging"`
}

type Paths struct {
	MediaDir      string `toml:"media_dir"`
	SRTDir        string `toml:"srt_dir"`
	TranslatedDir string `toml:"translated_dir"`
}

type Transcribe struct {
	Provider         string  `toml:"provider"`
	Language         string  `toml:"language"`
	Model            string  `toml:"model"`
	Timeline         string  `toml:"timeline"`
	Decoder          string  `toml:"decoder"`
	Concurrency      int     `toml:"concurrency"`
	MinSilenceMS     int     `toml:"min_silence_ms"`
	SilenceThreshDB  float64 `toml:"silence_thresh_db"`
	KeepSilenceMS    int     `toml:"keep_silence_ms"`
	ExportSampleRate int     `toml:"export_sample_rate"`
}

type Translate struct {
	Provider    string `toml:"provider"`
	Model       string `toml:"model"`
	SourceLang  string `toml:"source_lang"`
	TargetLang  string `toml:"target_lang"`
	Concurrency int    `toml:"concurrency"`
}

type Cache struct {
	Backend   string `toml:"backend"`
	Path      string `toml:"path"`
	RedisAddr string `toml:"redis_addr"`
	TTLHours  int    `toml:"ttl_hours"`
}

type Runtime struct {
	Jobs                  int `toml:"jobs"`
	RequestTimeoutSeconds int `toml:"request_timeout_seconds"`
}

type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

const defaultConfigPath = "~/.config/voxsrt/config.toml"

// Default keeps the media -> srt_spanish -> srt_english layout.
func Default() Config {
	return Config{
		Paths: Paths{
			MediaDir:      "media",
			SRTDir:        "srt_spanish",
			TranslatedDir: "srt_english",
		},
		Transcribe: Transcribe{
			Provider:         "google",
			Language:         "es-419",
			Timeline:         "source",
			Decoder:          "native",
			Concurrency:      1,
			MinSilenceMS:     500,
			SilenceThreshDB:  -40,
			KeepSilenceMS:    100,
			ExportSampleRate: 16000,
		},
		Translate: Translate{
			Provider:    "gemini",
			SourceLang:  "es",
			TargetLang:  "en",
			Concurrency: 1,
		},
		Cache: Cache{
			Backend: "none",
			Path:    "~/.cache/voxsrt/translations.db",
		},
		Runtime: Runtime{
			Jobs:                  1,
			RequestTimeoutSeconds: 60,
		},
		Logging: Logging{
			Format: "auto",
			Level:  "info",
		},
	}
}

// DefaultConfigPath returns the per-user config location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load reads the TOML file at path on top of Default. An empty path falls
// back to the per-user file when it exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}

	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", false, fmt.Errorf("config file not found: %s", expanded)
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	projectPath, err := filepath.Abs("voxsrt.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return "", false, nil
}

// Normalize canonicalizes enum casing and expands the cache path.
func (c *Config) Normalize() error {
	c.Transcribe.Provider = strings.ToLower(strings.TrimSpace(c.Transcribe.Provider))
	c.Transcribe.Timeline = strings.ToLower(strings.TrimSpace(c.Transcribe.Timeline))
	c.Transcribe.Decoder = strings.ToLower(strings.TrimSpace(c.Transcribe.Decoder))
	c.Transcribe.Language = strings.TrimSpace(c.Transcribe.Language)
	c.Translate.Provider = strings.ToLower(strings.TrimSpace(c.Translate.Provider))
	c.Translate.SourceLang = strings.TrimSpace(c.Translate.SourceLang)
	c.Translate.TargetLang = strings.TrimSpace(c.Translate.TargetLang)
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = "none"
	}

	if c.Cache.Backend == "sqlite" {
		p, err := expandPath(c.Cache.Path)
		if err != nil {
			return err
		}
		c.Cache.Path = p
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Transcribe.Provider {
	case "google", "openai", "gemini":
	default:
		return fmt.Errorf("transcribe.provider must be google, openai, or gemini (got %q)", c.Transcribe.Provider)
	}
	switch c.Transcribe.Timeline {
	case "source", "cumulative", "mean":
	case "whisper":
		if c.Transcribe.Provider != "openai" {
			return fmt.Errorf("transcribe.timeline whisper requires the openai provider (got %q)", c.Transcribe.Provider)
		}
	default:
		return fmt.Errorf("transcribe.timeline must be source, cumulative, mean, or whisper (got %q)", c.Transcribe.Timeline)
	}
	switch c.Transcribe.Decoder {
	case "native", "ffmpeg":
	default:
		return fmt.Errorf("transcribe.decoder must be native or ffmpeg (got %q)", c.Transcribe.Decoder)
	}
	switch c.Translate.Provider {
	case "gemini", "openai", "anthropic":
	default:
		return fmt.Errorf("translate.provider must be gemini, openai, or anthropic (got %q)", c.Translate.Provider)
	}
	switch c.Cache.Backend {
	case "none", "sqlite", "redis":
	default:
		return fmt.Errorf("cache.backend must be none, sqlite, or redis (got %q)", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && strings.TrimSpace(c.Cache.RedisAddr) == "" {
		return errors.New("cache.redis_addr is required for the redis backend")
	}
	if c.Cache.Backend == "sqlite" && c.Cache.Path == "" {
		return errors.New("cache.path is required for the sqlite backend")
	}

	for name, tag := range map[string]string{
		"transcribe.language":   c.Transcribe.Language,
		"translate.source_lang": c.Translate.SourceLang,
		"translate.target_lang": c.Translate.TargetLang,
	} {
		if err := ValidateLanguage(tag); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if c.Transcribe.Concurrency < 1 {
		return fmt.Errorf("transcribe.concurrency must be at least 1 (got %d)", c.Transcribe.Concurrency)
	}
	if c.Translate.Concurrency < 1 {
		return fmt.Errorf("translate.concurrency must be at least 1 (got %d)", c.Translate.Concurrency)
	}
	if c.Runtime.Jobs < 1 {
		return fmt.Errorf("runtime.jobs must be at least 1 (got %d)", c.Runtime.Jobs)
	}
	if c.Runtime.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("runtime.request_timeout_seconds must be positive (got %d)", c.Runtime.RequestTimeoutSeconds)
	}
	if c.Transcribe.MinSilenceMS <= 0 {
		return fmt.Errorf("transcribe.min_silence_ms must be positive (got %d)", c.Transcribe.MinSilenceMS)
	}
	if c.Transcribe.KeepSilenceMS < 0 {
		return fmt.Errorf("transcribe.keep_silence_ms must not be negative (got %d)", c.Transcribe.KeepSilenceMS)
	}
	if c.Transcribe.SilenceThreshDB > 0 {
		return fmt.Errorf("transcribe.silence_thresh_db must be at or below 0 dBFS (got %g)", c.Transcribe.SilenceThreshDB)
	}
	if c.Transcribe.ExportSampleRate < 8000 {
		return fmt.Errorf("transcribe.export_sample_rate must be at least 8000 (got %d)", c.Transcribe.ExportSampleRate)
	}
	if c.Cache.TTLHours < 0 {
		return fmt.Errorf("cache.ttl_hours must not be negative (got %d)", c.Cache.TTLHours)
	}
	return nil
}

// RequestTimeout bounds a single external call.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Runtime.RequestTimeoutSeconds) * time.Second
}

// CacheTTL is zero when entries never expire.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

// ValidateLanguage checks that tag is a well-formed BCP 47 language tag.
func ValidateLanguage(tag string) error {
	if strings.TrimSpace(tag) == "" {
		return errors.New("language tag is required")
	}
	if _, err := language.Parse(tag); err != nil {
		return fmt.Errorf("invalid language tag %q: %w", tag, err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
