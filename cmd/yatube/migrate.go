package main

import (
	"github.com/spf13/cobra"

	"github.com/d60-Lab/yatube/pkg/database"
	"github.com/d60-Lab/yatube/pkg/logger"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := database.Migrate(a.db); err != nil {
				return err
			}
			logger.Info("migration finished")
			return nil
		},
	}
}
