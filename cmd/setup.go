package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/escofresco/transfer/internal/formatter"
	"github.com/escofresco/transfer/internal/shared"
)

// Setup creates the config file from the template when missing, then initializes the database and runs migrations.
// With --rollback it reverts the latest migration instead.
//
// The config is not validated here so a fresh template with placeholder credentials can still create the database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if cmd.Bool("rollback") {
		return r.rollback(configPath)
	}

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return err
		}
		r.writePlain("%s Created %s\n", formatter.Styles.OK.Render("✓"), configPath)
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		return err
	}

	r.logger.Info("initializing database", "path", config.Database.Path)
	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	versions, err := shared.AppliedVersions(db)
	if err != nil {
		return err
	}
	r.writePlain("%s Database ready at %s (%d migrations applied)\n", formatter.Styles.OK.Render("✓"), config.Database.Path, len(versions))

	if err := config.Validate(); err != nil {
		r.writePlainln("%s", formatter.Styles.Title.Render("Next steps:"))
		r.writePlain("%s\n", formatter.Styles.Warn.Render(err.Error()))
		r.writePlain("1. Fill in the missing keys in %s\n", configPath)
		r.writePlain("2. Run 'transfer auth login --service spotify' and 'transfer auth login --service apple_music'\n")
		return nil
	}

	r.writePlainln("%s", formatter.Styles.Title.Render("Next steps:"))
	r.writePlain("1. Run 'transfer auth login --service spotify' and 'transfer auth login --service apple_music'\n")
	r.writePlain("2. Run 'transfer playlists' to list your Spotify playlists\n")
	return nil
}

// rollback reverts the most recently applied migration of the configured database.
func (r *Runner) rollback(configPath string) error {
	config, err := shared.LoadConfig(configPath)
	if err != nil {
		return err
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	before, err := shared.AppliedVersions(db)
	if err != nil {
		return err
	}
	if len(before) == 0 {
		r.writePlain("%s No migrations to roll back\n", formatter.Styles.Warn.Render("!"))
		return nil
	}

	r.logger.Info("rolling back migration", "version", before[len(before)-1])
	if err := shared.RollbackMigration(db); err != nil {
		return err
	}
	r.writePlain("%s Rolled back migration %d\n", formatter.Styles.OK.Render("✓"), before[len(before)-1])
	return nil
}
