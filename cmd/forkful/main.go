package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/forkful/pkg/backend"
	"github.com/cuemby/forkful/pkg/config"
	"github.com/cuemby/forkful/pkg/events"
	"github.com/cuemby/forkful/pkg/log"
	"github.com/cuemby/forkful/pkg/media"
	"github.com/cuemby/forkful/pkg/metrics"
	"github.com/cuemby/forkful/pkg/notify"
	"github.com/cuemby/forkful/pkg/reconciler"
	"github.com/cuemby/forkful/pkg/scale"
	"github.com/cuemby/forkful/pkg/security"
	"github.com/cuemby/forkful/pkg/storage"
	"github.com/cuemby/forkful/pkg/web"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "forkful",
	Short: "forkful - share, fork and scale recipes",
	Long: `forkful is a recipe sharing server. Users publish recipes, rate,
comment on and fork each other's recipes, follow cooks they like and
exchange direct messages. Every recipe can be viewed at any scale.

The same binary runs the server and talks to it from the command line.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"forkful version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	serveCmd.Flags().StringP("config", "c", "", "Path to YAML config file")
	serveCmd.Flags().String("listen", "", "Address to listen on (overrides listen_addr)")
	serveCmd.Flags().String("data-dir", "", "Data directory (overrides data_dir)")
	serveCmd.Flags().String("log-level", "", "Log level: debug, info, warn, error")
	serveCmd.Flags().Bool("log-json", false, "Log as JSON")
	serveCmd.Flags().Bool("secure-cookies", false, "Mark session cookies Secure (serve behind TLS)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("forkful version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
	},
}

// loadConfig reads the config file and applies flag overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.ListenAddr, _ = flags.GetString("listen")
	}
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("log-level") {
		level, _ := flags.GetString("log-level")
		cfg.Log.Level = log.Level(level)
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON, _ = flags.GetBool("log-json")
	}
	if secret := os.Getenv("FORKFUL_SECRET_KEY"); secret != "" {
		cfg.SecretKey = secret
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the forkful server",
	Long: `Run the web server, the JSON API and the realtime notification stream.

All state lives under the data directory: the database, uploaded media
and, unless secret_key is configured, the key that seals direct messages.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log.Init(log.Config{Level: cfg.Log.Level, JSONOutput: cfg.Log.JSON})
	metrics.SetVersion(Version)
	logger := log.WithComponent("main")

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	secret, err := cfg.ResolveSecret()
	if err != nil {
		return err
	}
	sealer, err := security.NewMessageSealerFromSecret(secret)
	if err != nil {
		return fmt.Errorf("failed to create message sealer: %w", err)
	}

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()
	metrics.Handle(metrics.ComponentStorage).Healthy("bolt store open")

	mediaStore, err := media.NewLocalStore(cfg.MediaPath(), cfg.Upload.MaxBytes)
	if err != nil {
		return err
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	metrics.Handle(metrics.ComponentEvents).Healthy("broker running")

	sessions := security.NewSessionManager(cfg.SessionTTL)

	b, err := backend.New(&backend.Config{
		Store:     store,
		Broker:    broker,
		Media:     mediaStore,
		Sessions:  sessions,
		Sealer:    sealer,
		CacheSize: cfg.Cache.Size,
		CacheTTL:  cfg.Cache.TTL,
	})
	if err != nil {
		return err
	}

	worker := notify.NewWorker(store, broker)
	worker.Start()
	defer worker.Stop()

	recon := reconciler.NewReconciler(store, sessions, reconciler.DefaultInterval)
	recon.Start()
	defer recon.Stop()

	secureCookies, _ := cmd.Flags().GetBool("secure-cookies")
	server, err := web.NewServer(&web.Config{
		Backend:           b,
		Stepper:           scale.Stepper{Step: cfg.Scale.Step, Floor: cfg.Scale.Floor, Max: cfg.Scale.Max},
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
		MaxUploadSize:     cfg.Upload.MaxBytes,
		SecureCookies:     secureCookies,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.ListenAddr)
	}()

	limiterTicker := time.NewTicker(time.Hour)
	defer limiterTicker.Stop()

	fmt.Printf("forkful %s listening on http://%s\n", Version, cfg.ListenAddr)
	fmt.Println("Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

wait:
	for {
		select {
		case <-limiterTicker.C:
			server.CleanupLimiters(time.Hour)
		case <-sigCh:
			fmt.Println("\nShutting down...")
			break wait
		case err := <-errCh:
			if err != nil {
				logger.Error().Err(err).Msg("HTTP server failed")
				return err
			}
			break wait
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("Graceful shutdown incomplete")
	}

	fmt.Println("✓ Shutdown complete")
	return nil
}
