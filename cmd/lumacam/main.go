// lumacam runs the camera pipeline: it samples the luminance of every
// frame, serves the control API and streams previews.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/teslashibe/go-lumacam/internal/config"
	"github.com/teslashibe/go-lumacam/internal/log"
	"github.com/teslashibe/go-lumacam/pkg/camera"
	"github.com/teslashibe/go-lumacam/pkg/capture"
	"github.com/teslashibe/go-lumacam/pkg/frameio"
	"github.com/teslashibe/go-lumacam/pkg/hub"
	"github.com/teslashibe/go-lumacam/pkg/pipeline"
	"github.com/teslashibe/go-lumacam/pkg/preview"
	"github.com/teslashibe/go-lumacam/pkg/web"
)

const providerTimeout = 10 * time.Second

type options struct {
	file     config.File
	pipeline pipeline.Config
	webrtc   bool
	stun     string
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "lumacam: %v\n", err)
		os.Exit(2)
	}

	logger := log.Init(opts.file.LogLevel, opts.file.LogFormat)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts, logger); err != nil {
		logger.Error("lumacam stopped", "error", err)
		os.Exit(1)
	}
}

// parseFlags layers defaults, the config file, LUMACAM_* env vars and
// finally any flags given on the command line.
func parseFlags() (options, error) {
	defaults := config.DefaultFile()
	pcfg := pipeline.DefaultConfig()

	configPath := flag.String("config", "", "YAML config file")
	port := flag.String("port", defaults.Port, "HTTP listen port")
	backend := flag.String("backend", string(defaults.Source.Backend), "Frame source: auto, gocv, mock")
	device := flag.String("device", defaults.Source.Device, "Back camera index, device path or URL")
	deviceFront := flag.String("device-front", "1", "Front camera index, device path or URL")
	outputDir := flag.String("output-dir", "", "Preferred media directory for captures")
	indexPath := flag.String("index", "", "Capture index database (default <output dir>/captures.db)")
	preset := flag.String("preset", defaults.Preset, "Camera preset: "+fmt.Sprint(camera.PresetNames()))
	logLevel := flag.String("log-level", defaults.LogLevel, "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "", "Log format: text or json")
	previewWidth := flag.Int("preview-width", pcfg.PreviewWidth, "Preview width in pixels (0 disables)")
	previewFPS := flag.Int("preview-fps", pcfg.PreviewFPS, "Max preview frames per second")
	enableWebRTC := flag.Bool("webrtc", true, "Accept WebRTC preview offers")
	stun := flag.String("stun", "stun:stun.l.google.com:19302", "STUN server for WebRTC (empty for none)")
	flag.Parse()

	file, err := config.LoadFile(*configPath)
	if err != nil {
		return options{}, err
	}
	file.ApplyEnv()

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			file.Port = *port
		case "backend":
			file.Source.Backend = frameio.Backend(*backend)
		case "device":
			file.Source.Device = *device
		case "device-front":
			file.DeviceFront = *deviceFront
		case "output-dir":
			file.OutputDir = *outputDir
		case "index":
			file.IndexPath = *indexPath
		case "preset":
			file.Preset = *preset
		case "log-level":
			file.LogLevel = *logLevel
		case "log-format":
			file.LogFormat = *logFormat
		}
	})
	if file.DeviceFront == "" {
		file.DeviceFront = *deviceFront
	}

	pcfg.PreviewWidth = *previewWidth
	pcfg.PreviewFPS = *previewFPS

	return options{
		file:     file,
		pipeline: pcfg,
		webrtc:   *enableWebRTC,
		stun:     *stun,
	}, nil
}

func run(ctx context.Context, opts options, logger *slog.Logger) error {
	f := opts.file

	camCfg := camera.GetPreset(f.Preset)
	if camCfg == nil {
		return fmt.Errorf("unknown preset %q", f.Preset)
	}
	camCfg.Devices = map[camera.Lens]string{
		camera.LensBack:  f.Source.Device,
		camera.LensFront: f.DeviceFront,
	}

	dir, err := capture.OutputDir(f.OutputDir, config.DefaultAppName, config.DefaultOutputDir)
	if err != nil {
		return err
	}
	indexPath := f.IndexPath
	if indexPath == "" {
		indexPath = filepath.Join(dir, "captures.db")
	}
	store, err := capture.OpenStore(indexPath)
	if err != nil {
		return err
	}
	defer store.Close()

	open := func(cfg frameio.Config) (frameio.Source, error) {
		return frameio.NewSource(cfg, logger)
	}
	providerCtx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()
	provider, err := camera.GetProvider(providerCtx, open, f.Source, logger).Wait(providerCtx)
	if err != nil {
		return fmt.Errorf("camera provider: %w", err)
	}

	manager := camera.NewManager(*camCfg)
	capturer := capture.NewCapturer(dir, camCfg.Quality, logger, capture.WithStore(store))
	p := pipeline.New(opts.pipeline, provider, manager, capturer, logger)

	previewHub := hub.New("preview", logger)
	serverOpts := []web.Option{
		web.WithLogger(logger),
		web.WithStore(store),
		web.WithPreviewHub(previewHub),
	}
	if opts.webrtc {
		var rtcCfg webrtc.Configuration
		if opts.stun != "" {
			rtcCfg.ICEServers = []webrtc.ICEServer{{URLs: []string{opts.stun}}}
		}
		peers := preview.NewManager(previewHub, rtcCfg, logger)
		defer peers.Close()
		serverOpts = append(serverOpts, web.WithPreview(peers))
	}
	server := web.NewServer(":"+f.Port, p, serverOpts...)

	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}
	defer p.Stop()

	logger.Info("lumacam running",
		"port", f.Port,
		"output_dir", dir,
		"lens", camCfg.Lens,
		"backend", f.Source.Backend,
	)
	return server.Run(ctx)
}
