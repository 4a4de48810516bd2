package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"

	rkv "github.com/adrianmoss/rkv"
	"github.com/adrianmoss/rkv/internal/config"
	"github.com/adrianmoss/rkv/internal/logging"
)

func main() {
	var (
		bindAddr      = flag.String("bind", "", "Address to listen on (e.g. 127.0.0.1:6379); overrides "+config.EnvBindAddr)
		loopTimeoutMs = flag.Int("loop-timeout-ms", 0, "Reactor loop timeout in milliseconds; overrides "+config.EnvLoopTimeoutMs)
		ttlSample     = flag.Int("ttl-sample-size", 0, "Active expiration sample size; overrides "+config.EnvTTLSampleSize)
		nodeCap       = flag.Int("quicklist-node-cap", 0, "Max elements per quicklist node; overrides "+config.EnvQuicklistNodeCap)
		maxOutbound   = flag.String("max-outbound", "", "Max buffered outbound bytes per connection (e.g. 64M); overrides "+config.EnvMaxOutboundBytes)
		verbose       = flag.Bool("v", false, "Verbose (debug) logging")
	)
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if *bindAddr != "" {
		cfg.BindAddr = *bindAddr
	}
	if *loopTimeoutMs > 0 {
		cfg.LoopTimeout = time.Duration(*loopTimeoutMs) * time.Millisecond
	}
	if *ttlSample > 0 {
		cfg.TTLSampleSize = *ttlSample
	}
	if *nodeCap > 0 {
		cfg.QuicklistNodeCap = *nodeCap
	}
	if *maxOutbound != "" {
		n, err := config.ParseByteSize(*maxOutbound)
		if err != nil {
			log.Fatalf("invalid -max-outbound %q: %v", *maxOutbound, err)
		}
		cfg.MaxOutboundBytes = n
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("starting rkv server", "bind", cfg.BindAddr, "loop_timeout", cfg.LoopTimeout)

	server, err := rkv.ListenAndServe(cfg, &rkv.Options{Context: ctx, Logger: logger})
	if err != nil {
		logger.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	addr, err := server.Addr()
	if err != nil {
		logger.Error("failed to resolve bound address", "error", err)
		addr = cfg.BindAddr
	}
	fmt.Printf("rkv server listening on %s\n", addr)
	fmt.Printf("Send SIGUSR1 (kill -USR1 %d) to dump goroutine stacks\n", os.Getpid())

	stackDumpCh := make(chan os.Signal, 1)
	signal.Notify(stackDumpCh, syscall.SIGUSR1)
	go func() {
		for range stackDumpCh {
			buf := make([]byte, 1024*1024)
			n := runtime.Stack(buf, true)
			fmt.Fprintf(os.Stderr, "\n=== GOROUTINE STACK DUMP ===\n%s\n", buf[:n])
			pprof.Lookup("goroutine").WriteTo(os.Stderr, 2)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down server", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped cleanly")
}
