package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/huddle/internal/core/config"
	"github.com/colonyops/huddle/internal/core/version"
	"github.com/colonyops/huddle/pkg/iojson"
)

type HistoryCmd struct {
	flags *Flags

	// flags
	jsonOutput bool
	pretty     bool
}

// NewHistoryCmd creates a new history command
func NewHistoryCmd(flags *Flags) *HistoryCmd {
	return &HistoryCmd{flags: flags}
}

// Register adds the history command to the application
func (cmd *HistoryCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "history",
		Usage:     "Show a document's version history",
		UsageText: "huddle history [--json [--pretty]] <document-id>",
		Description: `Reads saved versions of a document from the sqlite store, oldest first.

Requires storage.driver to be sqlite; in-memory versions only exist inside a
running server (see GET /api/documents/{id}/versions).`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON lines including snapshots",
				Destination: &cmd.jsonOutput,
			},
			&cli.BoolFlag{
				Name:        "pretty",
				Usage:       "with --json, write one indented array instead of JSON lines",
				Destination: &cmd.pretty,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *HistoryCmd) run(ctx context.Context, c *cli.Command) error {
	documentID := c.Args().First()
	if documentID == "" {
		return fmt.Errorf("document id is required. Usage: huddle history <document-id>")
	}

	cfg := cmd.flags.Config
	if cfg.Storage.Driver != config.StorageSQLite {
		return fmt.Errorf("history reads the sqlite store; storage.driver is %q", cfg.Storage.Driver)
	}

	backends, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = backends.close() }()

	versions, err := backends.versions.History(ctx, documentID)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}

	return writeHistory(c.Root().Writer, versions, cmd.jsonOutput, cmd.pretty)
}

func writeHistory(out io.Writer, versions []version.Version, asJSON, pretty bool) error {
	if asJSON && pretty {
		if err := iojson.WriteIndent(out, versions); err != nil {
			return fmt.Errorf("encode versions: %w", err)
		}
		return nil
	}
	if asJSON {
		for _, v := range versions {
			if err := iojson.WriteLine(out, v); err != nil {
				return fmt.Errorf("encode version: %w", err)
			}
		}
		return nil
	}

	if len(versions) == 0 {
		fmt.Fprintf(os.Stderr, "No versions found\n")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCREATED\tAUTHOR\tDESCRIPTION")
	for _, v := range versions {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.ID, v.CreatedAt.Local().Format(time.DateTime), v.Author, v.Description)
	}
	return w.Flush()
}
