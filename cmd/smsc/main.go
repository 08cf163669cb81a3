package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ZentaChain/zentalk-smsc/pkg/api"
	"github.com/ZentaChain/zentalk-smsc/pkg/config"
	"github.com/ZentaChain/zentalk-smsc/pkg/logging"
	"github.com/ZentaChain/zentalk-smsc/pkg/network"
	"github.com/ZentaChain/zentalk-smsc/pkg/registrar"
	"github.com/ZentaChain/zentalk-smsc/pkg/storage"
)

var (
	configPath    = flag.String("config", "", "Path to YAML config file")
	sipListen     = flag.String("sip", "", "UDP address for SIP (overrides config)")
	advertiseAddr = flag.String("advertise", "", "host:port written into Via (overrides config)")
	apiPort       = flag.Int("api-port", 0, "HTTP control-plane port (overrides config)")
	disableAPI    = flag.Bool("no-api", false, "Disable the HTTP control plane")
	backend       = flag.String("store", "", "Backlog backend: memory or sqlite (overrides config)")
	dsn           = flag.String("dsn", "", "sqlite DSN for the backlog (overrides config)")
	logLevel      = flag.String("log-level", "", "Log level (overrides config)")
	logFormat     = flag.String("log-format", "", "Log format: json or console (overrides config)")
)

func main() {
	flag.Parse()

	printBanner()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("SMSC stopped with error", zap.Error(err))
	}
}

// loadConfig layers command-line flags over the file and environment
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "sip":
			cfg.SIP.ListenAddr = *sipListen
		case "advertise":
			cfg.SIP.AdvertiseAddr = *advertiseAddr
		case "api-port":
			cfg.API.Port = *apiPort
		case "no-api":
			cfg.API.Enabled = !*disableAPI
		case "store":
			cfg.Storage.Backend = *backend
		case "dsn":
			cfg.Storage.DSN = *dsn
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cfg *config.Config, logger *zap.Logger) error {
	backlog, err := storage.Open(cfg.Storage.Backend, cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("failed to open backlog: %w", err)
	}
	defer backlog.Close()
	logger.Info("📬 Backlog initialized", zap.String("backend", cfg.Storage.Backend))

	relay := network.NewRelayServer(cfg.RelayConfig(), registrar.NewDirectory(), backlog)
	relay.AttachLogger(logger)

	if err := relay.Start(); err != nil {
		return fmt.Errorf("failed to start relay server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.API.Enabled {
		server := api.NewServer(relay, cfg.APIServerConfig(), logger)
		g.Go(func() error {
			return server.Start(ctx)
		})
	} else {
		logger.Warn("⚠️  HTTP control plane disabled")
	}

	if cfg.HeartbeatInterval > 0 {
		g.Go(func() error {
			heartbeatLoop(ctx, relay, cfg.HeartbeatInterval, logger)
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("🛑 Shutting down...")
		return relay.Stop()
	})

	err = g.Wait()
	printStats(relay, logger)
	logger.Info("👋 Goodbye!")
	return err
}

func printBanner() {
	fmt.Println("╔═══════════════════════════════════════════════════╗")
	fmt.Println("║              Zentalk SMSC v1.0                    ║")
	fmt.Println("║       SIP MESSAGE registrar and relay            ║")
	fmt.Println("╚═══════════════════════════════════════════════════╝")
	fmt.Println()
}

func heartbeatLoop(ctx context.Context, relay *network.RelayServer, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := relay.GetStats()
			logger.Info("💓 Heartbeat",
				zap.Any("registrations", stats["registrations"]),
				zap.Any("queued_messages", stats["queued_messages"]),
				zap.Any("messages_forwarded", stats["messages_forwarded"]),
				zap.Any("a2p_sent", stats["a2p_sent"]))
		}
	}
}

func printStats(relay *network.RelayServer, logger *zap.Logger) {
	stats := relay.GetStats()
	fields := make([]zap.Field, 0, len(stats))
	for k, v := range stats {
		fields = append(fields, zap.Any(k, v))
	}
	logger.Info("📊 Final statistics", fields...)
}
