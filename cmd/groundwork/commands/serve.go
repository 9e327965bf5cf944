package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/moolen/groundwork/internal/config"
	"github.com/moolen/groundwork/internal/host"
	"github.com/moolen/groundwork/internal/logging"
	"github.com/spf13/cobra"
)

var (
	watchConfig   bool
	watchDebounce int
	apiPort       int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the host",
	Long: `Start the host: notify every lifecycle group in order, serve the assembled
middleware pipeline, and stop in reverse order on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&watchConfig, "watch", true,
		"Reload lifecycle and pipeline order when the config file changes")
	serveCmd.Flags().IntVar(&watchDebounce, "watch-debounce-ms", 500,
		"Debounce for config file change events in milliseconds")
	serveCmd.Flags().IntVar(&apiPort, "port", -1,
		"Override server.port from the config file")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := logging.GetLogger("serve")

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		return err
	}
	if apiPort >= 0 {
		cfg.Server.Port = apiPort
	}

	logger.Info("Starting Groundwork v%s", host.Version)
	logger.Debug("Configuration loaded: port=%d lifecycle=%v pipeline=%v",
		cfg.Server.Port, cfg.Lifecycle.Order, cfg.Pipeline.Order)

	h, err := host.New(cfg)
	if err != nil {
		logger.Error("Failed to create host: %v", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if configPath != "" && watchConfig {
		watcher, err := config.NewWatcher(config.WatcherConfig{
			FilePath:       configPath,
			DebounceMillis: watchDebounce,
		}, func(next *config.Config) error {
			return h.Reload(ctx, next)
		})
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := watcher.Stop(); err != nil {
				logger.Warn("Failed to stop config watcher: %v", err)
			}
		}()
	}

	if err := h.Run(ctx); err != nil {
		logger.Error("%v", err)
		return err
	}
	return nil
}
