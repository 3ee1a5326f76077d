package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"placement-predictor/internal/cfg"
)

var (
	version = "v0.1.0-default"
	commit  = ""
)

// Flag names. Flags are built per command tree since they keep parse state.
const (
	configFlag   = "config"
	logLevelFlag = "log-level"
	formatFlag   = "format"
)

// app carries the settings resolved before any command runs.
type app struct {
	settings cfg.Settings
	out      io.Writer
	format   string
}

func main() {
	initLogging(zerolog.InfoLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{out: os.Stdout}
	if err := a.command().Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:    "placement",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Usage:   "Train, explore and serve the job placement classifier",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  configFlag,
				Usage: "YAML settings file (optional, defaults to $CONFIG_FILE or environment only)",
			},
			&cli.StringFlag{
				Name:  logLevelFlag,
				Usage: "Log level [debug, info, warn, error] (optional, overrides settings)",
			},
			&cli.StringFlag{
				Name:  formatFlag,
				Usage: "Output format [json, yaml]",
				Value: formatJSON,
			},
		},
		Commands: []*cli.Command{
			a.trainCmd(),
			a.edaCmd(),
			a.predictCmd(),
			a.serveCmd(),
			a.historyCmd(),
			a.schemaCmd(),
		},
		Before: a.before,
	}
}

func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var (
		settings cfg.Settings
		err      error
	)
	if path := cmd.String(configFlag); path != "" {
		settings, err = cfg.LoadFile(path)
	} else {
		settings, err = cfg.Load()
	}
	if err != nil {
		return ctx, fmt.Errorf("config load failed: %w", err)
	}

	if lvl := cmd.String(logLevelFlag); lvl != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(lvl)); err != nil {
			return ctx, fmt.Errorf("invalid log level %q: %w", lvl, err)
		}
		settings.LogLevel = lvl
	}
	initLogging(settings.Level())

	format := strings.ToLower(cmd.String(formatFlag))
	if format == "yml" {
		format = formatYAML
	}
	if format != formatJSON && format != formatYAML {
		return ctx, fmt.Errorf("unsupported output format %q", format)
	}

	a.settings = settings
	a.format = format
	return ctx, nil
}

func initLogging(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

// stringOr returns the flag value when it was given on the command line.
func stringOr(cmd *cli.Command, name, fallback string) string {
	if cmd.IsSet(name) {
		return cmd.String(name)
	}
	return fallback
}
