package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"

	"github.com/ayusman/personlens/internal/annotate"
	"github.com/ayusman/personlens/internal/app"
	"github.com/ayusman/personlens/internal/config"
	"github.com/ayusman/personlens/internal/detector"
	"github.com/ayusman/personlens/internal/present"
	"github.com/ayusman/personlens/internal/server"
	"github.com/ayusman/personlens/internal/store"
	"github.com/ayusman/personlens/internal/tray"
)

func main() {
	parser := argparse.NewParser("personlens", "Count and annotate people in video")
	configFile := parser.String("c", "config", &argparse.Options{Help: "Configuration file", Default: config.DefaultPath()})
	sourceFlag := parser.String("s", "source", &argparse.Options{Help: "Video file or capture device index to load"})
	modeFlag := parser.String("m", "mode", &argparse.Options{Help: "Annotation mode (" + modeList() + ")"})
	sinkFlag := parser.Selector("", "sink", config.Sinks, &argparse.Options{Help: "Where frames are shown"})
	addrFlag := parser.String("", "addr", &argparse.Options{Help: "HTTP listen address for the web sink"})
	skipFlag := parser.Int("", "skip", &argparse.Options{Help: "Run detection on every Nth frame", Default: 0})
	loopFlag := parser.Flag("", "loop", &argparse.Options{Help: "Rewind and keep playing at end of stream", Default: false})
	modelFlag := parser.String("", "model", &argparse.Options{Help: "YOLOv8 ONNX model path"})
	backendFlag := parser.Selector("", "backend", config.Backends, &argparse.Options{Help: "Detection backend"})
	trayFlag := parser.Flag("", "tray", &argparse.Options{Help: "Show a system tray menu", Default: false})
	playFlag := parser.Flag("", "play", &argparse.Options{Help: "Start playing immediately", Default: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Errorf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Command line overrides the file
	if *sourceFlag != "" {
		cfg.Source = *sourceFlag
	}
	if *modeFlag != "" {
		cfg.Mode = *modeFlag
	}
	if *sinkFlag != "" {
		cfg.Display.Sink = *sinkFlag
	}
	if *addrFlag != "" {
		cfg.Display.Addr = *addrFlag
	}
	if *skipFlag > 0 {
		cfg.Sampling.SkipEvery = *skipFlag
	}
	if *loopFlag {
		cfg.Playback.OnEnd = "loop"
	}
	if *modelFlag != "" {
		cfg.Detector.Model = *modelFlag
	}
	if *backendFlag != "" {
		cfg.Detector.Backend = *backendFlag
	}
	if *trayFlag {
		cfg.Display.Tray = true
	}
	if err := cfg.Validate(); err != nil {
		logger.Errorf("Invalid configuration: %v", err)
		os.Exit(1)
	}

	if err := run(logger, cfg, *modeFlag != "", *playFlag); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(logger logs.Log, cfg *config.Config, modeFromFlag, autoplay bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	det := newDetector(logger, cfg)
	defer det.Close()

	selector := annotate.NewSelector(annotate.DefaultMode)
	defer selector.Close()

	onEnd, err := app.ParseEndPolicy(cfg.Playback.OnEnd)
	if err != nil {
		return err
	}

	// Window and tray need the controller, which needs the sinks first
	controls := &controls{}

	var (
		sinks    []present.Sink
		window   *present.Window
		headless *present.Headless
		web      *server.Sink
		tr       *tray.Tray
	)
	switch cfg.Display.Sink {
	case "window":
		window = present.NewWindow(present.WindowConfig{
			Title:     "personlens",
			ShowCount: cfg.Display.ShowCount,
			Controls:  controls,
			Log:       logger,
			OnQuit:    stop,
		})
		sinks = append(sinks, present.NewConsole(logger), window)
	case "web":
		web = server.NewSinkWithHub(logger)
		sinks = append(sinks, present.NewConsole(logger), web)
	case "console":
		sinks = append(sinks, present.NewConsole(logger))
	case "headless":
		headless = present.NewHeadless()
		sinks = append(sinks, headless)
	default:
		return fmt.Errorf("unknown display sink %q", cfg.Display.Sink)
	}
	if cfg.Display.Tray {
		if window != nil {
			logger.Warnf("Tray is not available together with the window sink")
		} else {
			tr = tray.New(controls, logger)
			tr.OnQuit(stop)
			sinks = append(sinks, tr)
		}
	}

	ctrl := app.New(app.Config{
		Log:      logger,
		Sink:     present.NewTee(sinks...),
		Detector: det,
		Selector: selector,
		Store:    st,
		Sampling: detector.SamplerConfig{
			SkipEvery:       cfg.Sampling.SkipEvery,
			TargetSize:      image.Pt(cfg.Sampling.TargetWidth, cfg.Sampling.TargetHeight),
			ClassOfInterest: cfg.Detector.ClassOfInterest,
		},
		OnEnd: onEnd,
	})
	defer ctrl.Close()
	controls.ctrl = ctrl

	restore(logger, ctrl, st, cfg, modeFromFlag)

	watcher, err := config.NewWatcher(cfg.Path(), logger)
	if err != nil {
		logger.Warnf("Config hot reload disabled: %v", err)
	} else {
		defer watcher.Close()
		watcher.OnChange(reloader(logger, ctrl, cfg))
	}

	if web != nil {
		srv := server.New(server.Config{
			Log:        logger,
			StaticDir:  findWebDir(),
			Store:      st,
			Controller: ctrl,
			Sink:       web,
		})
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Display.Addr); err != nil {
				logger.Errorf("Server failed: %v", err)
				stop()
			}
		}()
	}

	if autoplay {
		if err := ctrl.Play(); err != nil {
			logger.Errorf("Play failed: %v", err)
		}
	}

	switch {
	case window != nil:
		return window.Run(ctx)
	case tr != nil:
		go func() {
			<-ctx.Done()
			tr.Quit()
		}()
		tr.Run()
	case web != nil:
		<-ctx.Done()
	default:
		// Console and headless runs end with the session
		if ctrl.State() == app.Idle {
			logger.Infof("Nothing to play: pass --play with a source")
			return nil
		}
		done := make(chan struct{})
		go func() {
			ctrl.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
		}
		if headless != nil {
			logger.Infof("Recorded %d frames", len(headless.Records()))
		}
	}
	return nil
}

// restore loads the configured or last used source and mode.
func restore(logger logs.Log, ctrl *app.Controller, st *store.Store, cfg *config.Config, modeFromFlag bool) {
	last, err := st.Settings().Get(store.SettingMode)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		logger.Warnf("Failed to read last mode: %v", err)
	}
	mode := startupMode(cfg.Mode, last, modeFromFlag)
	if err := ctrl.SetMode(mode); err != nil {
		logger.Warnf("Ignoring mode %q: %v", mode, err)
	}

	source := cfg.Source
	if source == "" {
		lastSource, err := st.Settings().Get(store.SettingSource)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			logger.Warnf("Failed to read last source: %v", err)
		}
		source = lastSource
	}
	if source == "" {
		return
	}
	if err := ctrl.LoadSource(source); err != nil {
		logger.Warnf("Cannot load %s: %v", source, err)
	}
}

// startupMode picks the mode to start in: the -m flag, then a mode set in the
// config file, then the last used mode, then the built-in default.
func startupMode(configured, last string, fromFlag bool) string {
	if fromFlag || last == "" {
		return configured
	}
	if !strings.EqualFold(configured, config.Default().Mode) {
		return configured
	}
	return last
}

// reloader applies mode and source edits from the config file as user actions.
func reloader(logger logs.Log, ctrl *app.Controller, initial *config.Config) func(*config.Config) {
	lastMode, lastSource := initial.Mode, initial.Source
	return func(c *config.Config) {
		if !strings.EqualFold(c.Mode, lastMode) {
			lastMode = c.Mode
			if err := ctrl.SetMode(c.Mode); err != nil {
				logger.Warnf("Ignoring mode %q from config: %v", c.Mode, err)
			}
		}
		if c.Source != lastSource && c.Source != "" {
			lastSource = c.Source
			if err := ctrl.LoadSource(c.Source); err != nil {
				logger.Warnf("Cannot load %s from config: %v", c.Source, err)
			}
		}
	}
}

// newDetector builds the configured backend, falling back to the mock
// detector when it is unavailable.
func newDetector(logger logs.Log, cfg *config.Config) detector.Detector {
	dc := detector.DefaultConfig()
	dc.ModelPath = cfg.Detector.Model
	dc.InputSize = cfg.Detector.InputSize
	dc.Confidence = cfg.Detector.Confidence
	dc.NMSThreshold = cfg.Detector.NMS
	dc.Classes = []int{cfg.Detector.ClassOfInterest}

	var (
		det detector.Detector
		err error
	)
	switch cfg.Detector.Backend {
	case "onnx":
		det, err = detector.NewONNXDetector(dc)
	case "subprocess":
		det, err = detector.NewSubprocessDetector(detector.SubprocessConfig{
			Config: dc,
			Script: cfg.Detector.Script,
			Python: cfg.Detector.Python,
		})
	case "mock":
		logger.Infof("Using mock detector")
		return detector.NewMockDetector()
	default:
		err = fmt.Errorf("unknown detector backend %q", cfg.Detector.Backend)
	}
	if err != nil {
		logger.Warnf("%s detector not available (%v), using mock detector", cfg.Detector.Backend, err)
		return detector.NewMockDetector()
	}
	logger.Infof("Using %s person detection", cfg.Detector.Backend)
	return det
}

func modeList() string {
	names := make([]string, 0, len(annotate.Modes()))
	for _, m := range annotate.Modes() {
		names = append(names, string(m))
	}
	return strings.Join(names, ", ")
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.personlens/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".personlens", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}

// controls forwards key presses and menu clicks to the controller once it
// exists.
type controls struct {
	ctrl *app.Controller
}

func (c *controls) Play() error               { return c.ctrl.Play() }
func (c *controls) Stop()                     { c.ctrl.Stop() }
func (c *controls) SetMode(name string) error { return c.ctrl.SetMode(name) }
func (c *controls) Mode() string              { return c.ctrl.Mode() }
