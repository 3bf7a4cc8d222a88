// Command offload-gateway runs the hybrid routing gateway: chat requests
// are served by a local inference server by default and offloaded to a
// cloud backend only when policy, quota, and routing all agree.
package main

import (
	"context"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/privrelay/offload-gateway/internal/backends"
	"github.com/privrelay/offload-gateway/internal/config"
	"github.com/privrelay/offload-gateway/internal/gateway"
	"github.com/privrelay/offload-gateway/internal/monitoring"
	"github.com/privrelay/offload-gateway/internal/quota"
	"github.com/privrelay/offload-gateway/internal/sysload"
	"github.com/privrelay/offload-gateway/internal/utils"
)

func main() {
	var (
		configPath string
		debugFlag  bool
	)

	args := os.Args[1:]
	i := 0
	for i < len(args) {
		switch args[i] {
		case "-h", "--help":
			printHelp()
			return
		case "-c", "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: --config requires a value")
				os.Exit(1)
			}
			configPath = args[i+1]
			i += 2
		case "-d", "--debug":
			debugFlag = true
			i++
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown flag %q\n", args[i])
			printHelp()
			os.Exit(1)
		}
	}

	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.Monitoring.Debug = cfg.Monitoring.Debug || debugFlag

	monitoring.SetupLogging(cfg.Monitoring.Debug, os.Stderr)
	stdlog.SetOutput(log.Logger)

	tracker, err := monitoring.NewTracker(monitoring.TelemetryConfig{
		Enabled:     cfg.Monitoring.TelemetryEnabled,
		LogPath:     cfg.Monitoring.TelemetryPath,
		LogToStdout: cfg.Monitoring.LogToStdout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing telemetry: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = tracker.Close() }()

	var store quota.Store
	sqliteStore, err := quota.OpenSQLiteStore(cfg.Quota.Path)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.Quota.Path).
			Msg("quota store unavailable, counters will not survive restart")
		store = quota.NewMemoryStore()
	} else {
		defer func() { _ = sqliteStore.Close() }()
		store = sqliteStore
	}
	guard := quota.NewGuard(store, cfg.Quota.DailyCeiling, cfg.Quota.MonthlyCeiling)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var signer backends.Signer
	if cfg.Remote.SigV4.Enabled {
		s, err := backends.NewSigV4Signer(ctx, cfg.Remote.SigV4.Service, cfg.Remote.SigV4.Region)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing request signer: %v\n", err)
			os.Exit(1)
		}
		signer = s
	}

	local := backends.NewLocalClient(cfg.Local.URL, cfg.Local.Model, cfg.Local.Timeout)
	remote := backends.NewRemoteClient(cfg.Remote.Endpoint, cfg.Remote.APIKey, signer, cfg.Remote.Timeout)

	gw := gateway.New(cfg, local, remote, guard, sysload.NewProcSampler(), tracker)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      gw.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	log.Info().
		Int("port", cfg.Server.Port).
		Str("local_backend", cfg.Local.URL).
		Str("local_model", cfg.Local.Model).
		Str("remote_endpoint", cfg.Remote.Endpoint).
		Str("remote_key", utils.MaskKey(cfg.Remote.APIKey)).
		Bool("offline_required", cfg.Policy.OfflineRequired).
		Bool("cloud_allowed", cfg.Policy.CloudAllowed).
		Float64("load_threshold", cfg.Routing.LoadThreshold).
		Msg("gateway starting")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server failed")
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("shutdown incomplete")
		}
	}
}

func printHelp() {
	fmt.Println(`offload-gateway - hybrid local/cloud inference router

Usage:
  offload-gateway [flags]

Flags:
  -c, --config <path>   Configuration file (YAML)
  -d, --debug           Enable debug logging
  -h, --help            Show this help`)
}
