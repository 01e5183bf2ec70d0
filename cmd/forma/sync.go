// ABOUTME: CLI commands for Charm-based sync.
// ABOUTME: Supports link, unlink, status, now, repair, reset and wipe.
package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/charmbracelet/charm/kv"
	"github.com/spf13/cobra"

	"github.com/harperreed/forma/internal/config"
	"github.com/harperreed/forma/internal/models"
	"github.com/harperreed/forma/internal/storage"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync data across devices with Charm",
	Long: `Sync forma data across devices using Charm Cloud.

Requires 'backend: charm' in the config (or FORMA_BACKEND=charm). Data is
end-to-end encrypted with your SSH key before upload.

GETTING STARTED:

  1. Link your device (creates or reuses an SSH key):
     forma sync link

  2. On other devices, link with the same Charm account:
     forma sync link

  3. Check sync status:
     forma sync status

COMMANDS:

  link        Link this device to your Charm account
  unlink      Disconnect this device from Charm
  status      Show account info and local record counts
  now         Sync immediately
  repair      Repair database corruption
  reset       Reset local data and restore from cloud (destructive)
  wipe        Delete cloud and local data (destructive)

With charm.auto_sync enabled, data syncs after each change.`,
}

var syncLinkCmd = &cobra.Command{
	Use:         "link",
	Short:       "Link this device to Charm",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationNoApp: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runCharm("link"); err != nil {
			return fmt.Errorf("failed to link: %w\n\nMake sure 'charm' CLI is installed: go install github.com/charmbracelet/charm@latest", err)
		}
		success(cmd, "Device linked to Charm")
		if cfg.GetBackend() != "charm" {
			warn(cmd, "Set 'backend: charm' in %s to sync forma data", cfgPathForDisplay())
		}
		return nil
	},
}

var syncUnlinkCmd = &cobra.Command{
	Use:         "unlink",
	Short:       "Disconnect from Charm",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationNoApp: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runCharm("unlink"); err != nil {
			return fmt.Errorf("failed to unlink: %w", err)
		}
		success(cmd, "Device unlinked from Charm")
		printf(cmd, "Your local data is preserved.\n")
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ce, ok := application.Charm()
		if !ok {
			yellow.Fprintf(cmd.OutOrStdout(), "Sync is off (backend: %s)\n", cfg.GetBackend())
			printf(cmd, "\nSet 'backend: charm' and run 'forma sync link' to enable it.\n")
			return nil
		}

		id, err := ce.ID()
		if err != nil {
			yellow.Fprintln(cmd.OutOrStdout(), "Not linked to Charm")
			printf(cmd, "\nRun 'forma sync link' to connect to Charm.\n")
			return nil
		}

		printf(cmd, "Charm ID: %s\n", id)
		printf(cmd, "Server:   %s\n", charmHost())
		if ce.IsReadOnly() {
			warn(cmd, "Database is read-only (another forma process holds the lock)")
		}
		printf(cmd, "\n")

		success(cmd, "Connected to Charm")
		counts := make(map[models.Table]int)
		for _, table := range models.AllTables {
			raws, err := application.Store.GetAll(cmd.Context(), table)
			if err != nil {
				return err
			}
			counts[table] = len(raws)
		}
		printCounts(cmd, counts)
		return nil
	},
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Sync immediately",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ce, ok := application.Charm()
		if !ok {
			return fmt.Errorf("sync requires the charm backend (current: %s)", cfg.GetBackend())
		}
		if err := ce.Sync(); err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		success(cmd, "Synced")
		return nil
	},
}

var syncWipeCmd = &cobra.Command{
	Use:         "wipe",
	Short:       "Delete all cloud and local data",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationNoApp: "true"},
	Long: `Delete all cloud backups and local Charm data.

This is a DESTRUCTIVE operation. ALL synced forma data will be permanently
deleted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		printf(cmd, "This will PERMANENTLY DELETE all cloud backups and local forma data.\n")
		if readLine(cmd, "Type 'wipe' to confirm: ") != "wipe" {
			printf(cmd, "Canceled.\n")
			return nil
		}

		result, err := kv.Wipe(charmDBName())
		if err != nil {
			return fmt.Errorf("wipe failed: %w", err)
		}

		success(cmd, "Data wiped successfully")
		printf(cmd, "  Cloud backups deleted: %d\n", result.CloudBackupsDeleted)
		printf(cmd, "  Local files deleted: %d\n", result.LocalFilesDeleted)
		return nil
	},
}

var syncRepairForce bool

var syncRepairCmd = &cobra.Command{
	Use:         "repair",
	Short:       "Repair database corruption",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationNoApp: "true"},
	Long: `Repair the Charm database by checkpointing the WAL, removing SHM files,
checking integrity and vacuuming.

Use this when you hit lock errors or corruption. Run with --force to attempt
recovery even if integrity checks fail.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		printf(cmd, "Repairing forma database...\n")
		result, err := kv.Repair(charmDBName(), syncRepairForce)

		if result.WalCheckpointed {
			success(cmd, "WAL checkpointed")
		}
		if result.ShmRemoved {
			success(cmd, "SHM file removed")
		}
		if result.IntegrityOK {
			success(cmd, "Integrity check passed")
		} else {
			warn(cmd, "Integrity check failed")
		}
		if result.Vacuumed {
			success(cmd, "Database vacuumed")
		}

		if err != nil {
			if !syncRepairForce {
				warn(cmd, "Run with --force to attempt recovery.")
			}
			return fmt.Errorf("repair failed: %w", err)
		}

		success(cmd, "Repair complete")
		return nil
	},
}

var syncResetCmd = &cobra.Command{
	Use:         "reset",
	Short:       "Reset local data and restore from cloud",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationNoApp: "true"},
	Long: `Delete all local Charm data and restore it from Charm Cloud.

Use this to fix sync conflicts or to reset a device to the cloud state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		printf(cmd, "This will DELETE all local forma data and restore from cloud.\n")
		confirm := readLine(cmd, "Continue? [y/N]: ")
		if confirm != "y" && confirm != "Y" {
			printf(cmd, "Canceled.\n")
			return nil
		}

		if err := resetCharm(); err != nil {
			return fmt.Errorf("reset failed: %w", err)
		}
		success(cmd, "Local data reset and restored from cloud")
		return nil
	},
}

// resetCharm resets through the engine when charm is the configured backend,
// so the configured host and database name apply.
func resetCharm() error {
	if cfg.GetBackend() != "charm" {
		return kv.Reset(charmDBName())
	}
	ce, err := storage.OpenCharm(cfg.CharmOptions())
	if err != nil {
		return err
	}
	defer ce.Close()
	return ce.Reset()
}

func runCharm(args ...string) error {
	c := exec.Command("charm", args...)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}

func charmDBName() string {
	if cfg.Charm.DBName != "" {
		return cfg.Charm.DBName
	}
	return storage.CharmDBName
}

func charmHost() string {
	if h := os.Getenv("CHARM_HOST"); h != "" {
		return h
	}
	if cfg.Charm.Host != "" {
		return cfg.Charm.Host
	}
	return storage.CharmHost
}

func cfgPathForDisplay() string {
	if configPath != "" {
		return configPath
	}
	return config.GetConfigPath()
}

func init() {
	syncRepairCmd.Flags().BoolVar(&syncRepairForce, "force", false, "attempt recovery even if integrity checks fail")

	syncCmd.AddCommand(syncLinkCmd, syncUnlinkCmd, syncStatusCmd, syncNowCmd, syncRepairCmd, syncResetCmd, syncWipeCmd)
	rootCmd.AddCommand(syncCmd)
}
