package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"cryptvault/config"
	"cryptvault/core/events"
	"cryptvault/core/state"
	"cryptvault/deploy"
	"cryptvault/observability"
	"cryptvault/observability/logging"
	telemetry "cryptvault/observability/otel"
	"cryptvault/services/indexer"
	"cryptvault/services/keeper"
	"cryptvault/services/vaultd/server"
	"cryptvault/storage"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	var cfgPath, tokenFor string
	flag.StringVar(&cfgPath, "config", "vaultd.toml", "path to vaultd config (.toml or .yaml)")
	flag.StringVar(&tokenFor, "issue-token", "", "print a bearer token for the given caller address and exit")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if tokenFor != "" {
		if err := issueToken(os.Stdout, cfg, tokenFor); err != nil {
			log.Fatalf("issue token: %v", err)
		}
		return
	}
	if err := run(cfg); err != nil {
		log.Fatalf("vaultd: %v", err)
	}
}

func authConfig(cfg *config.File) server.AuthConfig {
	return server.AuthConfig{
		HMACSecret: cfg.Server.Auth.HMACSecret,
		Issuer:     cfg.Server.Auth.Issuer,
		Audience:   cfg.Server.Auth.Audience,
		ClockSkew:  cfg.Server.Auth.ClockSkew,
	}
}

func issueToken(w io.Writer, cfg *config.File, raw string) error {
	if !common.IsHexAddress(strings.TrimSpace(raw)) {
		return fmt.Errorf("%q is not a hex address", raw)
	}
	token, err := server.IssueToken(authConfig(cfg), common.HexToAddress(strings.TrimSpace(raw)), cfg.Server.Auth.TokenTTL)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

// run wires and serves the daemon. Every exit path returns so deferred
// shutdown of the keeper, storage and telemetry always executes.
func run(cfg *config.File) error {
	env := strings.TrimSpace(os.Getenv("CRYPTVAULT_ENV"))
	if env == "" {
		env = cfg.Logging.Env
	}
	logger, logCloser := logging.SetupWithOptions(logging.Options{
		Service: "vaultd",
		Env:     env,
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
	})
	defer logCloser.Close()

	deployCfg, err := cfg.Deployment()
	if err != nil {
		return fmt.Errorf("deployment config: %w", err)
	}

	headers := cfg.Telemetry.Headers
	if raw := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); raw != "" {
		headers = telemetry.ParseHeaders(raw)
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "vaultd",
		ServiceVersion: version,
		Environment:    env,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		Headers:        headers,
		Metrics:        cfg.Telemetry.Metrics,
		Traces:         cfg.Telemetry.Traces,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		Deployment: telemetry.Deployment{
			Want:     deployCfg.Want,
			Deployer: deployCfg.Deployer,
			PoolID:   deployCfg.Strategy.PoolID,
		},
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()
	if cfg.Telemetry.Enabled {
		attrs := []any{"endpoint", cfg.Telemetry.Endpoint}
		for _, attr := range logging.MaskHeaders(headers) {
			attrs = append(attrs, attr)
		}
		logger.Info("telemetry enabled", attrs...)
	}

	simCfg, err := cfg.SimulationSetup()
	if err != nil {
		return fmt.Errorf("simulation config: %w", err)
	}
	grants, err := cfg.Grants()
	if err != nil {
		return fmt.Errorf("simulation funding: %w", err)
	}

	db, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()
	store := state.NewStore(db)

	sim, err := deploy.NewSimulation(simCfg)
	if err != nil {
		return fmt.Errorf("build simulation: %w", err)
	}
	sim.Logger = logger
	emitters := events.Fanout{observability.CountingEmitter{}}
	var archive *indexer.Indexer
	if cfg.Indexer.Enabled {
		archiveDB, err := indexer.Open(cfg.Indexer.Driver, cfg.Indexer.DSN)
		if err != nil {
			return fmt.Errorf("open indexer: %w", err)
		}
		if archive, err = indexer.New(archiveDB, logger); err != nil {
			return fmt.Errorf("migrate indexer: %w", err)
		}
		emitters = append(emitters, archive)
	}
	sim.Emitter = emitters

	dep, restored, err := deploy.Load(sim.Env, deployCfg, store)
	if err != nil {
		return fmt.Errorf("load deployment: %w", err)
	}
	if restored {
		logger.Info("deployment restored",
			"vault", dep.Vault.Address().Hex(),
			"strategy", dep.Strategy.Address().Hex(),
			"retired", len(dep.Retired))
	} else {
		err = sim.Journal.Exec(func() error {
			for _, grant := range grants {
				if err := sim.Ledger.Mint(deployCfg.Want, grant.Account, grant.Amount); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("fund accounts: %w", err)
		}
		if dep, err = deploy.Setup(sim.Env, deployCfg); err != nil {
			return fmt.Errorf("setup: %w", err)
		}
		if err := deploy.Persist(sim.Env, dep, store); err != nil {
			return fmt.Errorf("persist deployment: %w", err)
		}
	}
	// Registered only after Load so restoring state never writes it back.
	sim.Journal.OnCommit(func() error { return deploy.Persist(sim.Env, dep, store) })

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Keeper.Enabled {
		caller, err := cfg.KeeperCaller()
		if err != nil {
			return fmt.Errorf("keeper caller: %w", err)
		}
		minProfit, err := cfg.KeeperMinProfit()
		if err != nil {
			return fmt.Errorf("keeper min profit: %w", err)
		}
		k, err := keeper.New(keeper.Config{
			Schedule:  cfg.Keeper.Schedule,
			Caller:    caller,
			MinProfit: minProfit,
			Timeout:   cfg.Keeper.Timeout,
		}, sim.Journal, func() keeper.Harvester { return dep.Strategy }, logger)
		if err != nil {
			return fmt.Errorf("keeper: %w", err)
		}
		if err := k.Start(ctx); err != nil {
			return fmt.Errorf("start keeper: %w", err)
		}
		defer k.Stop()
	}

	srvCfg := server.Config{
		Journal:    sim.Journal,
		Deployment: dep,
		RateLimit:  server.RateLimit{RequestsPerSecond: cfg.Server.RateLimit, Burst: cfg.Server.RateBurst},
		Auth:       authConfig(cfg),
		Logger:     logger,
	}
	if cfg.Server.Auth.HMACSecret == "" {
		logger.Warn("no auth secret configured; state-changing routes are disabled")
	}
	if archive != nil {
		srvCfg.History = archive
	}
	handler, err := server.New(srvCfg)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddress,
		Handler:           otelhttp.NewHandler(handler, "vaultd"),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("vaultd listening", "address", cfg.Server.ListenAddress)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", "error", err)
		}
		return nil
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}
