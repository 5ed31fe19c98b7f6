package cmd

import (
	"github.com/spf13/cobra"

	config "github.com/TrizenVenturesLLP/task-connect-relay/internal/configs"
	repository "github.com/TrizenVenturesLLP/task-connect-relay/internal/repositories"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/repositories/mongostore"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the store schema",
	Long:  "Runs gorm auto-migration for sqlite/postgres, or ensures the indexes of the mongo store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		log := config.NewLogger(cfg)
		ctx := cmd.Context()

		switch cfg.StoreDriver {
		case "memory":
			log.Info("memory store has no schema")
			return nil
		case "mongo":
			// Connect ensures the indexes.
			store, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
			if err != nil {
				return err
			}
			log.WithField("database", cfg.MongoDatabase).Info("mongo indexes ensured")
			return store.Close(ctx)
		}

		db, err := config.NewDatabase(cfg, log)
		if err != nil {
			return err
		}
		if err := repository.Migrate(db); err != nil {
			return err
		}
		log.WithField("driver", cfg.StoreDriver).Info("database migrated")
		return repository.NewGormStore(db).Close(ctx)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
