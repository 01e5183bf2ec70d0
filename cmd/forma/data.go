// ABOUTME: Data commands: seed, export, import and migrate.
// ABOUTME: Exports are versioned snapshots; migrate copies between backends.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harperreed/forma/internal/models"
	"github.com/harperreed/forma/internal/seed"
	"github.com/harperreed/forma/internal/snapshot"
	"github.com/harperreed/forma/internal/storage"
)

var (
	exportOutput string
	exportS3Key  string
	exportS3     bool

	migrateFrom   string
	migrateTo     string
	migrateDryRun bool
	migrateForce  bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo data",
	Long: `Load the demo trainer, clients, sessions, plans, messages and progress.

Seeding runs once per store. Later runs, or runs after an import, do nothing.
Set seed.dir in the config to load <table>.json files from a directory
instead of the built-in demo data.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationSkipSeed: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := application.Seeder(application.Auth.Hasher()).SeedIfNeeded(cmd.Context())
		if err != nil {
			return err
		}
		if res.Skipped {
			yellow.Fprintln(cmd.OutOrStdout(), "Already seeded, nothing to do.")
			return nil
		}

		success(cmd, "Seeded %d records", res.Total())
		printCounts(cmd, res.Counts)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <format>",
	Short: "Export all data (trainer only)",
	Long: `Export every table as a versioned snapshot.

FORMATS:

  json       Full JSON snapshot (suitable for backup and 'forma import')
  yaml       YAML rendition of the snapshot
  markdown   Markdown tables per record type

OPTIONS:

  --output, -o   Write to file instead of stdout
  --s3           Upload to the configured S3 bucket under a timestamped key
  --s3-key       Upload to the configured S3 bucket under this key

EXAMPLES:

  $ forma export json -o backup.json
  $ forma export markdown
  $ forma export json --s3`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"json", "yaml", "markdown"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireSession(models.RoleTrainer); err != nil {
			return err
		}

		ctx := cmd.Context()
		snap, err := snapshot.Export(ctx, application.Store)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		var (
			data []byte
			ext  string
		)
		switch args[0] {
		case "json":
			data, err = snapshot.EncodeJSON(snap)
			ext = "json"
		case "yaml":
			data, err = snapshot.EncodeYAML(snap)
			ext = "yaml"
		case "markdown":
			data = []byte(snapshot.RenderMarkdown(snap))
			ext = "md"
		default:
			return fmt.Errorf("unknown format: %s (use json, yaml, or markdown)", args[0])
		}
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		key := exportS3Key
		if key == "" && exportS3 {
			key = snapshot.DefaultKey(snap.ExportedAt, ext)
		}
		if key != "" {
			sink, err := snapshot.NewS3Sink(ctx, application.Config.S3, logger.Named("s3"))
			if err != nil {
				return err
			}
			full, err := sink.Upload(ctx, key, data)
			if err != nil {
				return err
			}
			success(cmd, "Uploaded %d records to s3://%s/%s", snap.Count(), application.Config.S3.Bucket, full)
		}

		switch {
		case exportOutput != "":
			if err := os.WriteFile(exportOutput, data, 0600); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			success(cmd, "Exported %d records to %s", snap.Count(), exportOutput)
		case key == "":
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a JSON snapshot (trainer only)",
	Long: `Import records from a snapshot written by 'forma export json'.

Every record is validated before anything is written, so a bad file changes
nothing. Records whose id already exists are replaced. Importing marks the
store as seeded.

EXAMPLES:

  $ forma import backup.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireSession(models.RoleTrainer); err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		snap, err := snapshot.DecodeJSON(data)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		ce, isCharm := application.Charm()
		if isCharm && cfg.Charm.AutoSync {
			ce.SetAutoSync(false)
			defer ce.SetAutoSync(true)
		}

		counts, err := snapshot.Import(cmd.Context(), application.Store, snap)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		if isCharm && cfg.Charm.AutoSync {
			if err := ce.Sync(); err != nil {
				warn(cmd, "Imported locally but sync failed: %v", err)
			}
		}

		success(cmd, "Imported %d records from %s", snap.Count(), filepath.Base(args[0]))
		printCounts(cmd, counts)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate --from <backend> --to <backend>",
	Short: "Copy all data between storage backends",
	Long: `Copy every record and the seed flag from one backend to another, using
the paths of the current configuration.

The destination must be empty unless --force is given, in which case records
already present with the same id are replaced. Afterwards set 'backend' in the config to the destination.

EXAMPLES:

  $ forma migrate --from flat --to sqlite --dry-run
  $ forma migrate --from sqlite --to badger
  $ forma migrate --from flat --to sqlite --force`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationNoApp: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrateFrom == "" || migrateTo == "" {
			return fmt.Errorf("both --from and --to are required")
		}
		if migrateFrom == migrateTo {
			return fmt.Errorf("source and destination are both %s", migrateFrom)
		}

		ctx := cmd.Context()
		src, err := openBackend(ctx, migrateFrom)
		if err != nil {
			return fmt.Errorf("open source: %w", err)
		}
		defer src.Close()

		if migrateDryRun {
			yellow.Fprintln(cmd.OutOrStdout(), "Dry run mode - no changes will be made")
			counts, _, err := countRecords(ctx, src)
			if err != nil {
				return err
			}
			printf(cmd, "Would copy from %s to %s:\n", migrateFrom, migrateTo)
			printCounts(cmd, counts)
			return nil
		}

		dir := cfg.BackendDir(migrateTo)
		if dir != "" && !migrateForce {
			used, err := storage.IsDirNonEmpty(dir)
			if err != nil {
				return err
			}
			if used {
				return fmt.Errorf("destination %s is not empty (use --force to merge into it)", dir)
			}
		}

		dst, err := openBackend(ctx, migrateTo)
		if err != nil {
			return fmt.Errorf("open destination: %w", err)
		}
		defer dst.Close()

		if dir == "" && !migrateForce {
			_, total, err := countRecords(ctx, dst)
			if err != nil {
				return err
			}
			if total > 0 {
				return fmt.Errorf("destination %s already holds %d records (use --force to merge into it)", migrateTo, total)
			}
		}

		// One upload at the end instead of one per record.
		ce, isCharm := dst.(*storage.CharmEngine)
		if isCharm {
			ce.SetAutoSync(false)
		}

		summary, err := storage.MigrateData(ctx, src, dst, seed.Flag)
		if err != nil {
			return fmt.Errorf("migrate failed: %w", err)
		}
		if isCharm {
			if err := ce.Sync(); err != nil {
				warn(cmd, "Copied locally but sync failed: %v", err)
			}
		}

		success(cmd, "Migrated %d records from %s to %s", summary.Total(), migrateFrom, migrateTo)
		printCounts(cmd, summary.Tables)
		return nil
	},
}

// openBackend opens the named backend with the paths of the loaded config.
func openBackend(ctx context.Context, backend string) (storage.Engine, error) {
	c := *cfg
	c.Backend = backend
	opener, err := c.Opener()
	if err != nil {
		return nil, err
	}
	logger.Debug("opening backend", zap.String("backend", backend))
	return opener(ctx)
}

// countRecords returns the per-table and total record counts of an engine.
func countRecords(ctx context.Context, e storage.Engine) (map[models.Table]int, int, error) {
	counts := make(map[models.Table]int)
	total := 0
	for _, table := range models.AllTables {
		raws, err := e.GetAll(ctx, table)
		if err != nil {
			return nil, 0, err
		}
		counts[table] = len(raws)
		total += len(raws)
	}
	return counts, total, nil
}

func printCounts(cmd *cobra.Command, counts map[models.Table]int) {
	tables := make([]string, 0, len(counts))
	for t, n := range counts {
		if n > 0 {
			tables = append(tables, string(t))
		}
	}
	sort.Strings(tables)
	for _, t := range tables {
		printf(cmd, "  %s %d\n", padRight(t+":", 12), counts[models.Table(t)])
	}
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().StringVar(&exportS3Key, "s3-key", "", "upload to S3 under this key")
	exportCmd.Flags().BoolVar(&exportS3, "s3", false, "upload to S3 under a timestamped key")

	migrateCmd.Flags().StringVar(&migrateFrom, "from", "", "source backend")
	migrateCmd.Flags().StringVar(&migrateTo, "to", "", "destination backend")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "count records without copying")
	migrateCmd.Flags().BoolVar(&migrateForce, "force", false, "copy into a destination that already holds data")

	rootCmd.AddCommand(seedCmd, exportCmd, importCmd, migrateCmd)
}
