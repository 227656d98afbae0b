package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/huddle/internal/core/config"
	"github.com/colonyops/huddle/internal/data/db"
)

type DBCmd struct {
	flags *Flags

	// flags
	steps int
	yes   bool
}

// NewDBCmd creates a new db command
func NewDBCmd(flags *Flags) *DBCmd {
	return &DBCmd{flags: flags}
}

// Register adds the db command to the application
func (cmd *DBCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "db",
		Usage: "Manage the sqlite database",
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Schema migrations",
				Commands: []*cli.Command{
					{
						Name:      "down",
						Usage:     "Revert the most recent schema migrations",
						UsageText: "huddle db migrate down [--steps N] --yes",
						Description: `Reverts applied migrations newest first, dropping the tables they created.
Use it before running an older huddle release against the same database.
The server re-applies missing migrations when it next opens the file.`,
						Flags: []cli.Flag{
							&cli.IntFlag{
								Name:        "steps",
								Usage:       "number of migrations to revert",
								Value:       1,
								Destination: &cmd.steps,
							},
							&cli.BoolFlag{
								Name:        "yes",
								Usage:       "confirm that reverted tables and their rows are dropped",
								Destination: &cmd.yes,
							},
						},
						Action: cmd.runMigrateDown,
					},
				},
			},
		},
	})

	return app
}

func (cmd *DBCmd) runMigrateDown(ctx context.Context, c *cli.Command) error {
	if !cmd.yes {
		return fmt.Errorf("reverting migrations drops tables; rerun with --yes to confirm")
	}

	cfg := cmd.flags.Config
	if err := migrateDown(ctx, cfg, cmd.steps); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(c.Root().Writer, "Reverted %d migration(s) in %s\n", cmd.steps, cfg.Storage.Path)
	return nil
}

func migrateDown(ctx context.Context, cfg *config.Config, steps int) error {
	if cfg.Storage.Driver != config.StorageSQLite {
		return fmt.Errorf("migrations apply to the sqlite store; storage.driver is %q", cfg.Storage.Driver)
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	if err := db.MigrateDown(ctx, database.Conn(), steps); err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}
