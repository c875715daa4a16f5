// Command spindled is the spindle delegation daemon (spec §1-§2): it owns
// the spool store, process supervisor, and shard manager, and exposes the
// tool surface plus a GET /health endpoint over HTTP on a Unix domain
// socket, grounded on the ancestor CLI's internal/session/daemon.go
// self-exec/detached-daemon idiom, generalized from a per-session socket
// into one long-lived daemon socket routed with gorilla/mux.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/mux"

	"github.com/spiritengine/spindle/internal/buildinfo"
	"github.com/spiritengine/spindle/internal/config"
	"github.com/spiritengine/spindle/internal/facade"
	"github.com/spiritengine/spindle/internal/shard"
	"github.com/spiritengine/spindle/internal/skein"
	"github.com/spiritengine/spindle/internal/spindlelog"
	"github.com/spiritengine/spindle/internal/spool"
	"github.com/spiritengine/spindle/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "spindled:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	log, err := spindlelog.Init(config.LogPath())
	if err != nil {
		return fmt.Errorf("init log: %w", err)
	}
	defer log.Sync()

	pidPath := filepath.Join(cfg.BaseDir, "spindled.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := spool.New(config.SpoolsDir())
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	repoRoot, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve repo root: %w", err)
	}

	sup := supervisor.New(store, log)
	shardMgr := shard.NewManager(repoRoot)
	skeinClient := skein.New(cfg.SkeinURL, cfg.SkeinAgentID)
	f := facade.New(store, sup, shardMgr, skeinClient, cfg, repoRoot)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runStartupSweep(store, sup, log)
	watchReloadSignal(ctx, log)

	router := buildRouter(f)
	socketPath := filepath.Join(cfg.BaseDir, "spindle.sock")
	os.Remove(socketPath)
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()

	server := &http.Server{Handler: router}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Errorw("daemon", "http serve error", "err", err.Error())
		}
	}()
	log.Infow("daemon", "spindle daemon started", "version", buildinfo.Current().Version, "socket", socketPath, "max_concurrent", cfg.MaxConcurrent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	sig := <-sigCh
	log.Infow("daemon", "received signal, shutting down", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	if n, ok := sig.(syscall.Signal); ok {
		os.Exit(128 + int(n))
	}
	return nil
}

// runStartupSweep implements the spool store's startup sweep (spec §4.2):
// delete stale records, and resume monitoring every record still `running`
// so it is finalized as soon as it completes (scenario F).
func runStartupSweep(store *spool.Store, sup *supervisor.Supervisor, log *spindlelog.Logger) {
	stillRunning := store.Sweep(time.Now())
	for _, id := range stillRunning {
		sup.CheckAndFinalize(id)
		sup.StartMonitor(id, 0)
	}
	log.Infow("daemon", "startup sweep complete", "resumed_running", len(stillRunning))
}

// watchReloadSignal watches the reload_signal touchfile with fsnotify so
// spindle_reload takes effect without a poll loop (SPEC_FULL.md ambient
// stack).
func watchReloadSignal(ctx context.Context, log *spindlelog.Logger) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warnw("daemon", "fsnotify unavailable, reload signal will not be watched", "err", err.Error())
		return
	}
	if err := watcher.Add(config.BaseDir()); err != nil {
		log.Warnw("daemon", "fsnotify add failed", "err", err.Error())
		watcher.Close()
		return
	}

	go func() {
		defer watcher.Close()
		target := config.ReloadSignalPath()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name == target && (ev.Op&fsnotify.Create != 0 || ev.Op&fsnotify.Write != 0) {
					log.Infow("daemon", "reload signal observed")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warnw("daemon", "fsnotify error", "err", err.Error())
			}
		}
	}()
}

func buildRouter(f *facade.Facade) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", healthHandler(f)).Methods(http.MethodGet)
	registerToolRoutes(r, f)
	return r
}

func healthHandler(f *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, f.Health())
	}
}
