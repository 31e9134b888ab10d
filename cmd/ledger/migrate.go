package main

import (
	"fmt"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/config"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/migration"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/persistence"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/persistence/mongo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *cli) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the store schema",
		Long: `Manage the store schema.

Postgres is migrated with versioned SQL files. SQLite is migrated from the
models and Mongo only needs its indexes, so "down" and "version" apply to
Postgres alone.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE:  c.migrateUp,
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration (postgres)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, err := c.postgresMigrator()
				if err != nil {
					return err
				}
				defer m.Close()
				return m.Down()
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied migration version (postgres)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, err := c.postgresMigrator()
				if err != nil {
					return err
				}
				defer m.Close()
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"version": version, "dirty": dirty})
			},
		},
	)
	return cmd
}

func (c *cli) migrateUp(cmd *cobra.Command, _ []string) error {
	switch c.cfg.Store.Backend {
	case config.BackendPostgres:
		m, err := c.postgresMigrator()
		if err != nil {
			return err
		}
		defer m.Close()
		return m.Up()

	case config.BackendSQLite:
		db, err := persistence.NewDatabase(c.cfg, c.log)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.AutoMigrate(); err != nil {
			return fmt.Errorf("migrate sqlite schema: %w", err)
		}
		c.log.Info("sqlite schema migrated", zap.String("path", c.cfg.SQLite.Path))
		return nil

	case config.BackendMongo:
		client, err := mongo.Connect(cmd.Context(), c.cfg.Mongo, c.log)
		if err != nil {
			return err
		}
		defer client.Close(cmd.Context())
		return client.EnsureIndexes(cmd.Context())
	}
	return fmt.Errorf("backend %q has no schema to migrate", c.cfg.Store.Backend)
}

func (c *cli) postgresMigrator() (*migration.Migrator, error) {
	if c.cfg.Store.Backend != config.BackendPostgres {
		return nil, fmt.Errorf("versioned migrations need the postgres backend, configured backend is %q", c.cfg.Store.Backend)
	}
	return migration.NewFromURL(c.cfg.Database.DSN(), c.log)
}
