package cli

import (
	"io/fs"
	"log/slog"
	"os"

	"leadmarket/internal/db"
	"leadmarket/internal/notify"
	"leadmarket/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

func newMigrateCommand(logger func(*cobra.Command) *slog.Logger) *cobra.Command {
	var (
		dir       string
		skipQueue bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long: `Apply every migration not yet recorded in schema_migrations, then bring
River's queue tables up to date.

By default the migrations compiled into the binary are used; --dir reads
*.sql files from a directory instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logger(cmd)
			e, err := openEnv(ctx, log)
			if err != nil {
				return err
			}
			defer e.Close()

			var fsys fs.FS = migrations.FS
			if dir != "" {
				fsys = os.DirFS(dir)
			}
			applied, err := db.Migrate(ctx, e.database, fsys, log)
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(applied))

			if skipQueue {
				return nil
			}
			pool := e.pool
			if pool == nil {
				pool, err = pgxpool.New(ctx, e.cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer pool.Close()
			}
			if err := notify.MigrateQueue(ctx, pool); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "queue tables up to date\n")
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "read migrations from this directory")
	cmd.Flags().BoolVar(&skipQueue, "skip-queue", false, "do not migrate River's tables")
	return cmd
}
