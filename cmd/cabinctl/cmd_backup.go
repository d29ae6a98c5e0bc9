package main

import (
	"fmt"

	"cabinrent/internal/database"
	"cabinrent/internal/storage"

	"github.com/spf13/cobra"
)

func newBackupCmd(a *app) *cobra.Command {
	var upload bool
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the sqlite database and prune old snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			var uploader database.BackupUploader
			if upload || a.cfg.Backup.Upload {
				store, err := storage.New(a.cfg.Storage, a.logger)
				if err != nil {
					return fmt.Errorf("init storage: %w", err)
				}
				uploader = store
			}

			backups := database.NewBackupService(db, a.cfg.Backup, uploader, a.logger)
			path, err := backups.PerformBackup(cmd.Context())
			if err != nil {
				return err
			}
			removed := backups.CleanupOldBackups()
			fmt.Fprintf(cmd.OutOrStdout(), "backup written to %s (%d old snapshots removed)\n", path, removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&upload, "upload", false, "Also copy the snapshot to the configured storage")
	return cmd
}
