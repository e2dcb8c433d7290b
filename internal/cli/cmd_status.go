package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/karki-p/userd/internal/storage"
)

type statusReport struct {
	Engine      string `json:"engine"`
	Version     string `json:"version"`
	Path        string `json:"path"`
	JournalMode string `json:"journal_mode"`
	Users       int64  `json:"users"`
}

func newStatusCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report storage engine version, database path, and user count",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("status does not accept positional arguments")
			}
			return mapCommandError(runStatus(cmd.Context(), deps))
		},
	}
}

func runStatus(ctx context.Context, deps commandDeps) (err error) {
	cfg, err := loadConfig(deps)
	if err != nil {
		return fmt.Errorf("status: load config: %w", err)
	}

	store, err := storage.Open(storage.Options{
		Path:        cfg.Storage.Path,
		JournalMode: cfg.Storage.JournalMode,
		BusyTimeout: cfg.Storage.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("status: open storage: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("status: close storage: %w", closeErr)
		}
	}()

	conn, err := store.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	defer conn.Close()

	version, err := storage.EngineVersion(ctx, conn)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	var journalMode string
	if err := conn.QueryRowContext(ctx, `PRAGMA journal_mode`).Scan(&journalMode); err != nil {
		return fmt.Errorf("status: read journal mode: %w", err)
	}

	var users int64
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&users); err != nil {
		return fmt.Errorf("status: count users: %w", err)
	}

	report := statusReport{
		Engine:      "sqlite",
		Version:     version,
		Path:        store.Path(),
		JournalMode: journalMode,
		Users:       users,
	}
	if deps.globals.JSON {
		return printJSON(deps.out, report)
	}
	if deps.globals.Quiet {
		return nil
	}
	_, err = fmt.Fprintf(
		deps.out,
		"engine=sqlite version=%s path=%s journal_mode=%s users=%d\n",
		report.Version,
		report.Path,
		report.JournalMode,
		report.Users,
	)
	return err
}
