package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/karki-p/userd/internal/httpapi"
	logpkg "github.com/karki-p/userd/internal/log"
	"github.com/karki-p/userd/internal/storage"
)

func newServeCommand(deps commandDeps) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server until signalled",
		Example: "  userd serve\n" +
			"  userd serve --addr :8080 --db-path /var/lib/userd/userd.db",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("serve does not accept positional arguments")
			}
			if cmd.Flags().Changed("addr") {
				deps.globals.Addr = addr
			}
			return mapCommandError(runServe(cmd.Context(), deps))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}

func runServe(ctx context.Context, deps commandDeps) (err error) {
	cfg, err := loadConfig(deps)
	if err != nil {
		return fmt.Errorf("serve: load config: %w", err)
	}
	if deps.globals.Addr != "" {
		cfg.Server.Addr = deps.globals.Addr
	}

	logger, logCloser, err := logpkg.Setup(logpkg.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		File:      cfg.Logging.File,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	})
	if err != nil {
		return fmt.Errorf("serve: setup logging: %w", err)
	}
	defer func() {
		if closeErr := logCloser.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("serve: close log writer: %w", closeErr)
		}
	}()

	store, err := storage.Open(storage.Options{
		Path:        cfg.Storage.Path,
		JournalMode: cfg.Storage.JournalMode,
		BusyTimeout: cfg.Storage.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("serve: open storage: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("serve: close storage: %w", closeErr)
		}
	}()

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("serving",
		"addr", cfg.Server.Addr,
		"db_path", store.Path(),
		"journal_mode", cfg.Storage.JournalMode,
	)

	server := httpapi.New(store, logger, cfg.Server)
	if err := server.Run(signalCtx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("shut down cleanly")
	return nil
}
