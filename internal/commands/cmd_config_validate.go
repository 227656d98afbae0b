package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/huddle/internal/core/config"
)

type ConfigValidateCmd struct {
	flags  *Flags
	format string
}

// NewConfigValidateCmd creates a new config validate command.
func NewConfigValidateCmd(flags *Flags) *ConfigValidateCmd {
	return &ConfigValidateCmd{flags: flags}
}

// Register adds the config validate command to the application.
func (cmd *ConfigValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "huddle config validate [options]",
				Description: "Validates the configuration file, checking origin patterns, secrets and file paths.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
				},
				Action: cmd.run,
			},
		},
	})

	return app
}

type validationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type validationReport struct {
	Valid    bool                       `json:"valid"`
	Errors   []validationError          `json:"errors,omitempty"`
	Warnings []config.ValidationWarning `json:"warnings,omitempty"`
}

func (cmd *ConfigValidateCmd) run(_ context.Context, c *cli.Command) error {
	report := buildReport(cmd.flags.Config, cmd.flags.ConfigPath)
	w := c.Root().Writer

	if cmd.format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		writeReport(w, report)
	}

	if !report.Valid {
		return cli.Exit("", 1)
	}
	return nil
}

func buildReport(cfg *config.Config, configPath string) validationReport {
	report := validationReport{Warnings: cfg.Warnings()}

	err := cfg.ValidateDeep(configPath)
	if err == nil {
		report.Valid = true
		return report
	}

	var fields criterio.FieldErrors
	if errors.As(err, &fields) {
		for _, fe := range fields {
			report.Errors = append(report.Errors, validationError{Field: fe.Field, Message: fe.Err.Error()})
		}
		return report
	}

	report.Errors = append(report.Errors, validationError{Message: err.Error()})
	return report
}

func writeReport(w io.Writer, report validationReport) {
	for _, warn := range report.Warnings {
		if warn.Item != "" {
			_, _ = fmt.Fprintf(w, "warning: %s (%s): %s\n", warn.Category, warn.Item, warn.Message)
		} else {
			_, _ = fmt.Fprintf(w, "warning: %s: %s\n", warn.Category, warn.Message)
		}
	}

	for _, e := range report.Errors {
		if e.Field != "" {
			_, _ = fmt.Fprintf(w, "error: %s: %s\n", e.Field, e.Message)
		} else {
			_, _ = fmt.Fprintf(w, "error: %s\n", e.Message)
		}
	}

	if report.Valid {
		_, _ = fmt.Fprintln(w, "Configuration is valid")
		return
	}
	_, _ = fmt.Fprintf(w, "%d error(s) found\n", len(report.Errors))
}
