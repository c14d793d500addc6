package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ayusman/mirror/internal/app"
	"github.com/ayusman/mirror/internal/capture"
	"github.com/ayusman/mirror/internal/config"
	"github.com/ayusman/mirror/internal/cursor"
	"github.com/ayusman/mirror/internal/detector"
	"github.com/ayusman/mirror/internal/engine"
	"github.com/ayusman/mirror/internal/layout"
	"github.com/ayusman/mirror/internal/pointer"
	"github.com/ayusman/mirror/internal/remote"
	"github.com/ayusman/mirror/internal/server"
	"github.com/ayusman/mirror/internal/tray"
)

var withTray bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the mirror",
	Long: `Start the camera frame loop and the HTTP server that hosts the render
surface, the layout and settings API and the preview stream.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&withTray, "tray", false, "show the system tray menu")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	log.WithField("path", st.Path()).Info("store opened")

	backend := layout.Chain{st.LayoutBackend()}
	var rb *remote.RedisBackend
	if cfg.HasRedis() {
		rb, err = remote.NewRedisBackend(ctx, remote.Options{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		}, log)
		if err != nil {
			return err
		}
		defer rb.Close()
		// Redis is the shared copy, so it is read first.
		backend = layout.Chain{rb, st.LayoutBackend()}
	}

	catalog := layout.DefaultCatalog()
	layouts := layout.NewStore(backend, catalog, log)
	board := layout.NewBoard(ctx, layouts, catalog)
	defer board.Close()

	if rb != nil {
		go func() {
			if err := rb.Listen(ctx, layouts); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("layout sync stopped")
			}
		}()
	}

	eng := engine.New(board, layouts, engine.Config{
		Enabled:        cfg.HandTracking.Enabled,
		PinchThreshold: cfg.HandTracking.PinchSensitivity,
		Sensitivity:    cfg.HandTracking.Sensitivity,
		Smoothing:      cfg.HandTracking.Smoothing,
		Filter:         cfg.HandTracking.CursorFilter,
	}, log)

	hub := server.NewHub(server.HubConfig{
		Engine:       eng,
		Pointer:      pointer.New(board, layouts, log),
		Layouts:      layouts,
		Board:        board,
		Viewport:     cursor.Viewport{Width: cfg.Display.Width, Height: cfg.Display.Height},
		SnapshotRate: cfg.Server.SnapshotRate,
		Log:          log,
	})
	defer hub.Close()

	appCfg := app.Config{
		Engine:   eng,
		Settings: st.Settings(),
		Viewport: hub.Viewport,
		Log:      log,
	}
	if cfg.Camera.Enabled {
		appCfg.Camera = capture.NewCamera(capture.Options{
			DeviceID:    cfg.Camera.ID,
			FPS:         cfg.Camera.FPS,
			ReopenAfter: cfg.Camera.ReopenAfter,
		})
		appCfg.Detector = newDetector(cfg, log)
		if cfg.Camera.Preview {
			appCfg.Preview = capture.NewPreview(true)
		}
	}

	application := app.New(appCfg)
	if err := application.LoadSettings(ctx); err != nil {
		log.WithError(err).Warn("stored settings not applied")
	}
	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("camera unavailable, gesture control is idle")
	}
	defer application.Stop()

	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir()
	}
	if staticDir != "" {
		log.WithField("dir", staticDir).Info("serving static files")
	}

	srv := server.New(server.Config{
		StaticDir: staticDir,
		Store:     st,
		Layouts:   layouts,
		Board:     board,
		Settings:  application,
		Hub:       hub,
		Preview:   appCfg.Preview,
		Log:       log,
	})

	if !withTray {
		return srv.ListenAndServe(ctx, cfg.Server.Addr)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx, cfg.Server.Addr)
	}()

	t := newTray(ctx, cfg, application, stop, log)
	go func() {
		<-ctx.Done()
		t.Quit()
	}()
	t.Run()

	stop()
	return <-errCh
}

// newDetector uses MediaPipe when its service is installed and falls back
// to a detector that never sees a hand.
func newDetector(cfg *config.Config, log logrus.FieldLogger) detector.Detector {
	dcfg := detector.DefaultConfig()
	dcfg.MinConfidence = cfg.Detector.MinDetectionConfidence
	dcfg.MinTrackingConf = cfg.Detector.MinTrackingConfidence

	mp, err := detector.NewMediaPipeDetector(dcfg, log)
	if err != nil {
		log.WithError(err).Warn("MediaPipe not available, hand tracking disabled")
		return detector.NewMockDetector()
	}
	log.Info("using MediaPipe hand detection")
	return mp
}

func newTray(ctx context.Context, cfg *config.Config, application *app.App, quit func(), log logrus.FieldLogger) *tray.Tray {
	eng := application.Engine()
	t := tray.New(eng.Enabled())

	t.OnToggle(func(enabled bool) {
		application.SetEnabled(ctx, enabled)
	})
	t.OnQuit(quit)
	t.OnSettings(func() {
		url := "http://localhost" + cfg.Server.Addr
		if !strings.HasPrefix(cfg.Server.Addr, ":") {
			url = "http://" + cfg.Server.Addr
		}
		if err := openBrowser(url); err != nil {
			log.WithError(err).Warn("could not open browser")
		}
	})

	eng.OnSnapshot(func(s engine.Snapshot) {
		t.SetEnabled(s.Enabled)
		if s.Dragging != nil {
			t.SetDragging(s.Dragging.ID)
		} else {
			t.SetDragging("")
		}
	})
	return t
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open %s: %w", url, err)
	}
	return nil
}
