// Command evhttpd is the bootstrap entry point: load configuration,
// open the listening socket, build the reactor and dispatcher, install
// signal handling, run until asked to stop, then drain in-flight
// connections before exiting. Grounded in original_source's main.cpp
// startup sequence (parse args -> load config -> bind -> install signal
// handlers -> run event loop -> graceful shutdown).
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/corowave/evhttpd/config"
	"github.com/corowave/evhttpd/dispatch"
	"github.com/corowave/evhttpd/fileservice"
	"github.com/corowave/evhttpd/internal/acceptor"
	"github.com/corowave/evhttpd/internal/reactor"
	"github.com/corowave/evhttpd/logger"
	"github.com/corowave/evhttpd/perfmon"
)

// pollTimeout bounds each epoll_wait call so the shutdown flag, set from
// a signal handler that touches nothing else, is observed promptly.
const pollTimeout = 100 * time.Millisecond

// shutdownGrace is how long CLOSE-pending connections get to finish
// flushing before the process force-closes everything and exits.
const shutdownGrace = 3 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "evhttpd:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a config file (key = value, # comments)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	log, err := logger.Open(cfg.LogFile, logger.ParseLevel(cfg.LogLevel))
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}

	log.Info("starting evhttpd on %s, root=%s", cfg.Addr(), cfg.RootDir)

	cache := fileservice.NewCache(cfg.Cache.MaxSizeBytes, cfg.Cache.MaxEntries, cfg.Cache.MaxFileSizeBytes)
	files := fileservice.New(cfg.RootDir, cfg.AllowDirectoryListing, cache)
	monitor := perfmon.New(cfg.EnablePerformanceMonitoring, log)
	handler := dispatch.New(cfg, files, monitor)

	rea, err := reactor.New()
	if err != nil {
		return fmt.Errorf("build reactor: %w", err)
	}
	defer rea.Close()

	acc, err := acceptor.New(cfg.Addr(), rea, handler, monitor, log)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
	}

	var stopping atomic.Bool
	installSignalHandlers(&stopping)

	if err := rea.Run(pollTimeout, stopping.Load, acc.Tick); err != nil {
		return fmt.Errorf("reactor run: %w", err)
	}

	log.Info("shutdown requested, draining connections for up to %s", shutdownGrace)

	if err := acc.Close(); err != nil {
		log.Warning("close listener: %v", err)
	}

	if err := drainConnections(rea, acc, shutdownGrace); err != nil {
		log.Warning("drain: %v", err)
	}

	log.Info("evhttpd stopped")
	return nil
}

// installSignalHandlers arms SIGINT/SIGTERM to set stopping, touching
// nothing else from the handler goroutine. Go delivers signals on an
// ordinary goroutine rather than a true signal handler, but the discipline
// of "only flip the atomic" is kept anyway since every other piece of
// state here is reactor-loop-only.
func installSignalHandlers(stopping *atomic.Bool) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		stopping.Store(true)
	}()
}

// drainConnections keeps the reactor running — with the listener already
// deregistered, so no new connections arrive — until every live
// connection has finished its exchange and closed itself, or grace
// elapses. Whatever is still open after that is force-closed.
func drainConnections(rea *reactor.Reactor, acc *acceptor.Acceptor, grace time.Duration) error {
	deadline := time.Now().Add(grace)
	registry := acc.Registry()

	shouldStop := func() bool {
		return registry.Len() == 0 || time.Now().After(deadline)
	}

	if err := rea.Run(pollTimeout, shouldStop, nil); err != nil {
		return err
	}

	registry.CloseAll()
	return nil
}
