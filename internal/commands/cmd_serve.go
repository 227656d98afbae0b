package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/huddle/internal/auth"
	"github.com/colonyops/huddle/internal/collab"
	"github.com/colonyops/huddle/internal/core/eventbus"
	"github.com/colonyops/huddle/internal/core/logging"
	"github.com/colonyops/huddle/internal/gateway"
	"github.com/colonyops/huddle/internal/server"
)

// eventBuffer bounds events awaiting fan-out before publishers block.
const eventBuffer = 1024

type ServeCmd struct {
	flags *Flags

	// flags
	addr string
}

// NewServeCmd creates a new serve command
func NewServeCmd(flags *Flags) *ServeCmd {
	return &ServeCmd{flags: flags}
}

// Register adds the serve command to the application
func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Run the collaboration server",
		UsageText: "huddle serve [--addr host:port]",
		Description: `Starts the websocket gateway on /ws together with the read-only HTTP API.

Sessions and presence live in memory only. Comments, suggestions and
versions are kept in the configured storage driver.`,
		Action: cmd.Run,
	})

	return app
}

// Flags returns the serve flags for registration on the root command, which
// serves by default. Subcommands inherit them.
func (cmd *ServeCmd) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "listen address (overrides server.addr)",
			Sources:     cli.EnvVars("HUDDLE_ADDR"),
			Destination: &cmd.addr,
		},
	}
}

// Run starts the server and blocks until SIGINT or SIGTERM.
func (cmd *ServeCmd) Run(ctx context.Context, _ *cli.Command) error {
	cfg := cmd.flags.Config
	if cmd.addr != "" {
		cfg.Server.Addr = cmd.addr
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backends, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := backends.close(); err != nil {
			log.Error().Err(err).Msg("failed to close storage")
		}
	}()

	provider, err := auth.New(cfg.Auth)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	bus := eventbus.New(eventBuffer)
	eventbus.RegisterDebugLogger(bus, logging.Component("eventbus"))

	registry := collab.NewRegistry(time.Now)
	svc := collab.NewService(registry, backends.comments, backends.suggestions, backends.versions, bus, collab.Options{
		DuplicateUsers: cfg.Session.DuplicateUsers,
	})

	gw, err := gateway.New(cfg.Server, svc, provider)
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	collab.NewRouter(gw).Register(bus)

	busCtx, stopBus := context.WithCancel(context.Background())
	busDone := make(chan struct{})
	go func() {
		defer close(busDone)
		bus.Start(busCtx)
	}()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go collab.NewSweeper(svc, gw, cfg.Session.PresenceTimeout, cfg.Session.SweepInterval).Start(sweepCtx)

	srv := server.New(server.Options{
		Addr:    cfg.Server.Addr,
		Gateway: gw,
		Service: svc,
		Pprof:   cfg.Debug.Pprof,
	})
	if err := srv.Start(ctx); err != nil {
		stopBus()
		return err
	}

	log.Info().
		Str("addr", srv.Addr()).
		Str("storage", cfg.Storage.Driver).
		Bool("auth_required", cfg.Auth.Required).
		Msg("huddle is ready")

	<-ctx.Done()
	log.Info().Msg("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := gw.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	stopSweep()

	// Closing connections publish participant:left, so the bus stops last.
	stopBus()
	<-busDone

	dropped := registry.Len()
	registry.Clear()
	log.Info().Int("sessions_dropped", dropped).Msg("server stopped")

	return errors.Join(errs...)
}
