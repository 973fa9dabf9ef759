/*
DESCRIPTION
  avifwatch watches a directory for new .avif files and decodes each
  one as it arrives, logging the result the way avifdump would report
  it for a single file. Flag/config wiring mirrors avifdump's; the
  directory watch itself is built on github.com/fsnotify/fsnotify,
  already part of this module's dependency stack, debounced per
  internal/config.Config.WatchDebounceMS so a writer's multiple write
  syscalls for one file produce one decode, not several.
*/

// Command avifwatch decodes every .avif file that appears in a watched
// directory.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap/zapcore"

	avifcore "github.com/coral-imaging/avifcore"
	"github.com/coral-imaging/avifcore/internal/config"
	"github.com/coral-imaging/avifcore/internal/obslog"
)

const pkg = "avifwatch: "

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	watchDir := flag.String("dir", "", "directory to watch for new .avif files (overrides config file)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, pkg+"loading config: "+err.Error())
		os.Exit(1)
	}
	if *watchDir != "" {
		cfg.WatchDir = *watchDir
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, pkg+err.Error())
		os.Exit(1)
	}
	if cfg.WatchDir == "" {
		fmt.Fprintln(os.Stderr, pkg+"a watch directory is required (-dir or config watch_dir)")
		os.Exit(2)
	}

	level := zapcore.InfoLevel
	_ = level.Set(cfg.LogLevel)
	cfg.Logger = obslog.New(obslog.Options{FilePath: cfg.LogPath, Level: level})

	if err := watch(cfg); err != nil {
		cfg.Logger.Fatal("watch loop exited", "error", err.Error())
	}
}

// watch runs the fsnotify event loop until the process is killed,
// debouncing each path's create/write events before decoding it.
func watch(cfg *config.Config) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(cfg.WatchDir); err != nil {
		return err
	}
	cfg.Logger.Info("watching directory", "dir", cfg.WatchDir)

	debounce := time.Duration(cfg.WatchDebounceMS) * time.Millisecond
	pending := map[string]*time.Timer{}

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".avif") {
				continue
			}
			path := event.Name
			if t, exists := pending[path]; exists {
				t.Stop()
			}
			pending[path] = time.AfterFunc(debounce, func() {
				decodeOne(cfg, path)
			})

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			cfg.Logger.Error("watcher error", "error", err.Error())
		}
	}
}

func decodeOne(cfg *config.Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		cfg.Logger.Error("reading file", "path", path, "error", err.Error())
		return
	}

	opts := avifcore.Options{
		ProbeTryExitSymbol: !cfg.ProbeOnly,
		DisableCdfUpdate:   cfg.DisableCdfUpdate,
	}
	img, err := avifcore.Decode(data, opts)
	if err != nil {
		cfg.Logger.Error("decode failed", "path", path, "error", err.Error())
		return
	}

	cfg.Logger.Info("decoded", "path", path, "width", img.Width, "height", img.Height,
		"tiles", len(img.TileStats))
}
