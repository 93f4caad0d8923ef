// Command waybgd runs the wallpaper lifecycle engine as a standalone
// daemon. It stands in a software layer-shell backend for the real
// Wayland compositor integration, which is out of scope here: outputs
// are named on the command line instead of discovered from a
// compositor, and frames are committed to in-memory buffers instead of
// a real surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/waybg/waybg"
	"github.com/waybg/waybg/config"
	"github.com/waybg/waybg/engine"
	"github.com/waybg/waybg/layer"
	"github.com/waybg/waybg/state"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "waybgd:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath      = flag.String("config", "", "path to a TOML background configuration file (defaults to a single dark-gray fill)")
		statePath       = flag.String("state", "", "path to the resume-state TOML file (defaults to the XDG state directory)")
		cacheEntries    = flag.Int("cache-entries", 64, "maximum number of decoded images kept in the shared cache")
		cacheBytes      = flag.Int64("cache-bytes", 256<<20, "maximum total byte size of the shared image cache")
		loaderThreshold = flag.Int("loader-threshold", 32, "directory entry count above which directory scans move to the background loader worker")
		watchBuffer     = flag.Int("watch-buffer", 64, "filesystem watcher event channel buffer size")
		outputsFlag     = flag.String("outputs", "DP-1:1920:1080:120", "comma-separated simulated outputs as name:width:height:scale120")
		logLevel        = flag.String("log-level", "info", "log level: debug, info, warn, or error")
	)
	flag.Parse()

	waybg.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(*logLevel),
	})))

	outputs, err := parseOutputs(*outputsFlag)
	if err != nil {
		return fmt.Errorf("parsing -outputs: %w", err)
	}

	fc, err := loadFileConfig(*configPath)
	if err != nil {
		return err
	}
	cfg, err := fc.toConfig()
	if err != nil {
		return fmt.Errorf("building config: %w", err)
	}
	store := config.NewInMemoryStore(cfg.DefaultBackground)
	if err := store.SetSameOnAll(cfg.SameOnAll); err != nil {
		return err
	}
	for _, entry := range cfg.Backgrounds {
		if err := store.SetEntry(entry); err != nil {
			return err
		}
	}

	var stateStore config.StateStore
	if *statePath != "" {
		s, err := state.OpenAt(*statePath)
		if err != nil {
			return fmt.Errorf("opening state file: %w", err)
		}
		stateStore = s
	} else {
		s, err := state.Open()
		if err != nil {
			return fmt.Errorf("opening state file: %w", err)
		}
		stateStore = s
	}

	e, err := engine.New(engine.Options{
		Layers:            layer.NewSoftwareManager(outputs),
		ConfigStore:       store,
		StateStore:        stateStore,
		CacheMaxEntries:   *cacheEntries,
		CacheMaxSizeBytes: *cacheBytes,
		LoaderThreshold:   *loaderThreshold,
		WatchBufferSize:   *watchBuffer,
	})
	if err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	waybg.Logger().Info("waybgd starting", "outputs", len(outputs))
	if err := e.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	waybg.Logger().Info("waybgd stopped")
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// parseOutputs parses a comma-separated "name:width:height:scale120"
// list into simulated layer.Output values.
func parseOutputs(s string) ([]layer.Output, error) {
	var outputs []layer.Output
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		if len(fields) != 4 {
			return nil, fmt.Errorf("output %q: want name:width:height:scale120", part)
		}
		width, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("output %q: width: %w", part, err)
		}
		height, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("output %q: height: %w", part, err)
		}
		scale, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("output %q: scale120: %w", part, err)
		}
		outputs = append(outputs, layer.Output{
			Name:               fields[0],
			PhysicalWidth:      width,
			PhysicalHeight:     height,
			FractionalScale120: scale,
		})
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("no outputs named")
	}
	return outputs, nil
}
