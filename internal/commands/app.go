package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// NewApp builds the root command with every subcommand registered. Serving
// is the default action. The caller installs Before and After hooks.
func NewApp(flags *Flags, version string) *cli.Command {
	app := &cli.Command{
		Name:      "huddle",
		Usage:     "Real-time coordination server for collaborative documents",
		UsageText: "huddle [global options] command [command options]",
		Description: `Huddle keeps the participants of a shared document in sync: who is in the
room, where their cursors are, and the comments, suggestions and versions
attached to the document.

Run 'huddle' with no arguments to start the server.`,
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("HUDDLE_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (logs go to stdout when unset)",
				Sources:     cli.EnvVars("HUDDLE_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("HUDDLE_CONFIG"),
				Value:       DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("HUDDLE_DATA_DIR"),
				Value:       DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
	}

	serveCmd := NewServeCmd(flags)

	app = serveCmd.Register(app)
	app = NewConfigValidateCmd(flags).Register(app)
	app = NewHistoryCmd(flags).Register(app)
	app = NewDBCmd(flags).Register(app)

	app.Flags = append(app.Flags, serveCmd.Flags()...)
	app.Action = func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() > 0 {
			return fmt.Errorf("unknown command %q. Run 'huddle --help' for usage", c.Args().First())
		}
		return serveCmd.Run(ctx, c)
	}

	return app
}
