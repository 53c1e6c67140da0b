package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joabeoliveira/ocupacao/internal/config"
	"github.com/joabeoliveira/ocupacao/internal/domain/ingest"
	"github.com/joabeoliveira/ocupacao/internal/domain/snapshot"
	"github.com/joabeoliveira/ocupacao/internal/platform/db"
	"github.com/joabeoliveira/ocupacao/internal/platform/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ocupacao-server",
		Short: "Hospital bed occupancy reporting API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(snapshotCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the release version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Current().String())
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrationsDir(dir, cfg)).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationsDir(dir, cfg)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func migrationsDir(flag string, cfg *config.Config) string {
	if flag != "" {
		return flag
	}
	return cfg.MigrationsDir
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a bed report file for a reference date",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			date, _ := cmd.Flags().GetString("date")
			actor, _ := cmd.Flags().GetString("actor")
			if file == "" || date == "" {
				return fmt.Errorf("--file and --date are required")
			}

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}

			ctx := context.Background()
			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.ingest.Import(ctx, ingest.Request{
				FileName:      filepath.Base(file),
				ContentType:   contentTypeOf(file),
				Data:          data,
				ReferenceDate: date,
				Actor:         actor,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d row(s) for %s (%s), skipped %d.\n", res.Rows, res.Label, res.Format, res.Skipped)
			if res.ReplacedExisting {
				fmt.Fprintln(out, "Existing rows for that date were replaced.")
			}
			if len(res.UnmappedHeaders) > 0 {
				fmt.Fprintf(out, "Unmapped columns: %s\n", strings.Join(res.UnmappedHeaders, ", "))
			}
			return nil
		},
	}
	cmd.Flags().String("file", "", "CSV or XLSX bed report")
	cmd.Flags().String("date", "", "Reference date (YYYY-MM-DD or DD/MM/YYYY)")
	cmd.Flags().String("actor", "cli", "Actor recorded on the import")
	return cmd
}

func contentTypeOf(file string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(file))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Correct or remove stored reference dates",
	}

	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete every row of a reference date",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("date")
			actor, _ := cmd.Flags().GetString("actor")
			date, err := snapshot.ParseDate(raw)
			if err != nil {
				return fmt.Errorf("--date: %w", err)
			}

			ctx := context.Background()
			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			n, err := app.snapshots.DeleteDate(ctx, date, actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d row(s) for %s.\n", n, date.Format(snapshot.LabelLayout))
			return nil
		},
	}
	deleteCmd.Flags().String("date", "", "Reference date to delete")
	deleteCmd.Flags().String("actor", "cli", "Actor recorded on the event")
	cmd.AddCommand(deleteCmd)

	moveCmd := &cobra.Command{
		Use:   "move",
		Short: "Move the rows of a reference date to another date",
		RunE: func(cmd *cobra.Command, args []string) error {
			rawFrom, _ := cmd.Flags().GetString("from")
			rawTo, _ := cmd.Flags().GetString("to")
			actor, _ := cmd.Flags().GetString("actor")
			from, err := snapshot.ParseDate(rawFrom)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			to, err := snapshot.ParseDate(rawTo)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			ctx := context.Background()
			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			n, err := app.snapshots.MoveDate(ctx, from, to, actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %d row(s) from %s to %s.\n", n,
				from.Format(snapshot.LabelLayout), to.Format(snapshot.LabelLayout))
			return nil
		},
	}
	moveCmd.Flags().String("from", "", "Current reference date")
	moveCmd.Flags().String("to", "", "New reference date")
	moveCmd.Flags().String("actor", "cli", "Actor recorded on the event")
	cmd.AddCommand(moveCmd)

	return cmd
}
