// Package app runs the mirror's frame loop: camera frames go through the hand
// detector into the gesture engine, and the camera preview is refreshed.
package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mirror/internal/capture"
	"github.com/ayusman/mirror/internal/cursor"
	"github.com/ayusman/mirror/internal/detector"
	"github.com/ayusman/mirror/internal/engine"
	"github.com/ayusman/mirror/internal/server/api"
	"github.com/ayusman/mirror/internal/store"
)

// Config holds configuration options for the application.
type Config struct {
	Camera   capture.Camera
	Detector detector.Detector
	Engine   *engine.Engine
	// Preview, when set, receives every camera frame with the hand drawn on it.
	Preview *capture.Preview
	// Settings, when set, persists settings changed at runtime.
	Settings *store.SettingsRepository
	// Viewport returns the current render surface size.
	Viewport func() cursor.Viewport
	Log      logrus.FieldLogger
}

// App is the main application that feeds camera frames to the gesture engine.
type App struct {
	config Config
	log    logrus.FieldLogger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	failing bool
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	log := config.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	if config.Viewport == nil {
		config.Viewport = func() cursor.Viewport { return cursor.Viewport{} }
	}
	return &App{
		config: config,
		log:    log.WithField("component", "app"),
	}
}

// Engine returns the gesture engine.
func (a *App) Engine() *engine.Engine {
	return a.config.Engine
}

// Start opens the camera and begins the frame loop. Without a camera or
// detector the loop still runs and the engine only sees "no hand".
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return nil
	}

	fps := capture.DefaultFPS
	if a.config.Camera != nil {
		if err := a.config.Camera.Open(); err != nil {
			return fmt.Errorf("open camera: %w", err)
		}
		if f := a.config.Camera.FPS(); f > 0 {
			fps = f
		}
	}

	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})
	go a.run(ctx, time.Second/time.Duration(fps))

	a.log.WithField("fps", fps).Info("frame loop started")
	return nil
}

// Stop halts the frame loop and releases the camera and detector.
func (a *App) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	if a.config.Camera != nil {
		if err := a.config.Camera.Close(); err != nil {
			a.log.WithError(err).Warn("error closing camera")
		}
	}
	if a.config.Detector != nil {
		if err := a.config.Detector.Close(); err != nil {
			a.log.WithError(err).Warn("error closing detector")
		}
	}

	a.log.Info("frame loop stopped")
}

func (a *App) run(ctx context.Context, interval time.Duration) {
	defer close(a.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

// tick processes one frame. Camera and detector failures reach the engine
// as "no hand" so a drag in progress is committed.
func (a *App) tick(ctx context.Context) engine.Snapshot {
	vp := a.config.Viewport()

	if a.config.Camera == nil || a.config.Detector == nil {
		return a.config.Engine.ProcessFrame(ctx, nil, vp)
	}

	frame, err := a.config.Camera.ReadFrame()
	if err != nil {
		a.perceptionFailed(err)
		return a.config.Engine.ProcessFrame(ctx, nil, vp)
	}
	defer frame.Close()

	var hand *detector.HandLandmarks
	if a.config.Engine.Enabled() {
		hands, err := a.config.Detector.Detect(frame)
		if err != nil {
			a.perceptionFailed(err)
			return a.config.Engine.ProcessFrame(ctx, nil, vp)
		}
		hand = detector.Primary(hands)
	}
	a.perceptionRecovered()

	if a.config.Preview != nil {
		if hand != nil {
			capture.DrawHand(frame, hand)
		}
		if err := a.config.Preview.Publish(frame); err != nil {
			a.log.WithError(err).Debug("preview publish failed")
		}
	}

	return a.config.Engine.ProcessFrame(ctx, hand, vp)
}

// perceptionFailed logs the first failure of a run at warn and the rest at
// debug.
func (a *App) perceptionFailed(err error) {
	entry := a.log.WithError(err)
	if errors.Is(err, capture.ErrCameraNotOpen) || a.failing {
		entry.Debug("perception unavailable")
	} else {
		entry.Warn("perception unavailable")
	}
	a.failing = true
}

func (a *App) perceptionRecovered() {
	if a.failing {
		a.log.Info("perception recovered")
	}
	a.failing = false
}

// SetEnabled toggles the gesture channel and persists the choice.
func (a *App) SetEnabled(ctx context.Context, enabled bool) {
	a.config.Engine.SetEnabled(ctx, enabled)
	a.persist(ctx, store.SettingHandTracking, strconv.FormatBool(enabled))
}

// ApplySetting applies a runtime setting to the engine. Unknown keys and
// unparsable values wrap api.ErrInvalidSetting.
func (a *App) ApplySetting(key, value string) error {
	ctx := context.Background()
	eng := a.config.Engine

	switch key {
	case store.SettingHandTracking:
		on, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be true or false", api.ErrInvalidSetting, key)
		}
		eng.SetEnabled(ctx, on)
	case store.SettingPinchSensitivity:
		v, err := parseFloat(key, value)
		if err != nil {
			return err
		}
		eng.SetPinchSensitivity(v)
	case store.SettingSensitivity:
		v, err := parseFloat(key, value)
		if err != nil {
			return err
		}
		eng.SetSensitivity(v)
	case store.SettingSmoothing:
		v, err := parseFloat(key, value)
		if err != nil {
			return err
		}
		eng.SetSmoothing(v)
	default:
		return fmt.Errorf("%w: unknown key %q", api.ErrInvalidSetting, key)
	}

	a.log.WithFields(logrus.Fields{"key": key, "value": value}).Info("setting applied")
	return nil
}

// LoadSettings applies every stored setting. Bad stored values are skipped.
func (a *App) LoadSettings(ctx context.Context) error {
	if a.config.Settings == nil {
		return nil
	}
	settings, err := a.config.Settings.List(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	for key, value := range settings {
		if err := a.ApplySetting(key, value); err != nil {
			a.log.WithError(err).WithField("key", key).Warn("skipping stored setting")
		}
	}
	return nil
}

func (a *App) persist(ctx context.Context, key, value string) {
	if a.config.Settings == nil {
		return
	}
	if err := a.config.Settings.Set(ctx, key, value); err != nil {
		a.log.WithError(err).WithField("key", key).Error("setting persist failed")
	}
}

func parseFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", api.ErrInvalidSetting, key)
	}
	return v, nil
}
