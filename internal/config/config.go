// Package config loads the mirror's TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Display      DisplayConfig      `koanf:"display"`
	HandTracking HandTrackingConfig `koanf:"hand_tracking"`
	Camera       CameraConfig       `koanf:"camera"`
	Detector     DetectorConfig     `koanf:"detector"`
	Store        StoreConfig        `koanf:"store"`
	Redis        RedisConfig        `koanf:"redis"`
	Log          LogConfig          `koanf:"log"`
}

// ServerConfig holds the HTTP and websocket settings.
type ServerConfig struct {
	Addr         string  `koanf:"addr" validate:"required"`
	StaticDir    string  `koanf:"static_dir"`
	SnapshotRate float64 `koanf:"snapshot_rate" validate:"gt=0,lte=120"` // cursor broadcasts per second
}

// DisplayConfig is the render surface size used until a browser reports its own.
type DisplayConfig struct {
	Width  float64 `koanf:"width" validate:"gt=0"`
	Height float64 `koanf:"height" validate:"gt=0"`
}

// HandTrackingConfig holds the gesture channel settings.
type HandTrackingConfig struct {
	Enabled          bool    `koanf:"enabled"`
	PinchSensitivity float64 `koanf:"pinch_sensitivity" validate:"gte=0.05,lte=0.5"`
	Sensitivity      float64 `koanf:"sensitivity" validate:"gt=0,lte=5"`
	Smoothing        float64 `koanf:"smoothing" validate:"gte=0,lte=1"`
	CursorFilter     string  `koanf:"cursor_filter" validate:"oneof=none ema"`
}

type CameraConfig struct {
	Enabled bool `koanf:"enabled"`
	ID      int  `koanf:"id" validate:"gte=0"`
	FPS     int  `koanf:"fps" validate:"gte=1,lte=60"`
	Preview bool `koanf:"preview"` // serve /api/stream
	// ReopenAfter empty reads restart the device; 0 uses the capture default.
	ReopenAfter int `koanf:"reopen_after" validate:"gte=0"`
}

type DetectorConfig struct {
	MinDetectionConfidence float64 `koanf:"min_detection_confidence" validate:"gte=0,lte=1"`
	MinTrackingConfidence  float64 `koanf:"min_tracking_confidence" validate:"gte=0,lte=1"`
}

type StoreConfig struct {
	Path string `koanf:"path"` // empty means ~/.mirror/mirror.db
}

// RedisConfig enables cross-instance layout sync when Address is set.
type RedisConfig struct {
	Address  string `koanf:"address"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
	Channel  string `koanf:"channel"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error"`
	File  string `koanf:"file"`
}

// Default returns the configuration used for keys absent from every file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			SnapshotRate: 30,
		},
		Display: DisplayConfig{Width: 1920, Height: 1080},
		HandTracking: HandTrackingConfig{
			Enabled:          true,
			PinchSensitivity: 0.2,
			Sensitivity:      1.0,
			Smoothing:        0.8,
			CursorFilter:     "none",
		},
		Camera: CameraConfig{Enabled: true, FPS: 15, Preview: true},
		Detector: DetectorConfig{
			MinDetectionConfidence: 0.5,
			MinTrackingConfidence:  0.5,
		},
		Redis: RedisConfig{Channel: "smartmirror:layouts"},
		Log:   LogConfig{Level: "info"},
	}
}

// Load reads the default config files, or only path when it is not empty,
// applies MIRROR_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	paths := getConfigPaths()
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		paths = []string{path}
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			if err := k.Load(file.Provider(p), toml.Parser()); err != nil {
				return nil, fmt.Errorf("load %s: %w", p, err)
			}
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	cfg.Store.Path = expandPath(cfg.Store.Path)
	cfg.Log.File = expandPath(cfg.Log.File)
	cfg.Server.StaticDir = expandPath(cfg.Server.StaticDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// HasRedis reports whether cross-instance sync is configured.
func (c *Config) HasRedis() bool {
	return c.Redis.Address != ""
}

// applyEnv overrides selected keys from the environment.
func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"MIRROR_ADDR":           &cfg.Server.Addr,
		"MIRROR_DB":             &cfg.Store.Path,
		"MIRROR_LOG_LEVEL":      &cfg.Log.Level,
		"MIRROR_LOG_FILE":       &cfg.Log.File,
		"MIRROR_REDIS_ADDRESS":  &cfg.Redis.Address,
		"MIRROR_REDIS_PASSWORD": &cfg.Redis.Password,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("MIRROR_HAND_TRACKING"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: MIRROR_HAND_TRACKING: %v", ErrInvalid, err)
		}
		cfg.HandTracking.Enabled = b
	}
	if v, ok := os.LookupEnv("MIRROR_CAMERA_ID"); ok {
		id, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: MIRROR_CAMERA_ID: %v", ErrInvalid, err)
		}
		cfg.Camera.ID = id
	}
	return nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/mirror/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "mirror", "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
