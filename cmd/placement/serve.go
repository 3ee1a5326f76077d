package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"placement-predictor/internal/api"
	"placement-predictor/internal/client"
	"placement-predictor/internal/metrics"
	"placement-predictor/internal/ml"
	"placement-predictor/internal/schema"
	"placement-predictor/internal/storage"
)

const (
	portFlag   = "port"
	storeFlag  = "store"
	limitFlag  = "limit"
	runsFlag   = "runs"
	stopWindow = 10 * time.Second
)

func (a *app) serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the prediction form and HTTP API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  portFlag,
				Usage: "Listen port (optional, defaults to settings)",
			},
			&cli.StringFlag{
				Name:  modelFlag,
				Usage: "Model bundle to serve (optional, defaults to settings)",
			},
			&cli.StringFlag{
				Name:  storeFlag,
				Usage: "Directory of the prediction history database (optional, history is off when empty)",
			},
		},
		Action: a.serve,
	}
}

func (a *app) serve(ctx context.Context, cmd *cli.Command) error {
	port := a.settings.ServerPort
	if cmd.IsSet(portFlag) {
		port = int(cmd.Int(portFlag))
	}
	bundlePath := stringOr(cmd, modelFlag, a.settings.ModelPath)
	storePath := stringOr(cmd, storeFlag, a.settings.StorePath)

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	predictor, err := ml.LoadPredictor(bundlePath, mw)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	meta := predictor.Bundle().Metadata()
	log.Info().
		Str("path", bundlePath).
		Str("version", meta.Version).
		Float64("accuracy", meta.Accuracy).
		Msg("Model loaded")

	opts := []api.Option{api.WithMetrics(mw)}
	if storePath != "" {
		store, err := storage.New(storePath)
		if err != nil {
			return fmt.Errorf("failed to open history store: %w", err)
		}
		defer store.Close()
		opts = append(opts, api.WithHistory(store))
	}

	srv, err := api.NewServer(predictor, api.Config{
		Port:           port,
		RequestTimeout: a.settings.RequestTimeout,
		RateLimit:      a.settings.RateLimit,
		RateBurst:      a.settings.RateBurst,
		HistoryLimit:   a.settings.HistoryLimit,
	}, opts...)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), stopWindow)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return <-errCh
}

func (a *app) historyCmd() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Print recent predictions or training runs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  limitFlag,
				Usage: "Number of predictions to print (optional, defaults to settings)",
			},
			&cli.BoolFlag{
				Name:  runsFlag,
				Usage: "Print training runs instead of predictions",
			},
			&cli.StringFlag{
				Name:  storeFlag,
				Usage: "Directory of the history database (optional, defaults to settings)",
			},
			newServerFlag(),
		},
		Action: a.history,
	}
}

func (a *app) history(ctx context.Context, cmd *cli.Command) error {
	limit := a.settings.HistoryLimit
	if cmd.IsSet(limitFlag) {
		limit = int(cmd.Int(limitFlag))
	}
	if limit < 1 {
		return fmt.Errorf("limit must be positive, got %d", limit)
	}

	if server := cmd.String(serverFlag); server != "" {
		if cmd.Bool(runsFlag) {
			return errors.New("training runs are only available from a local store")
		}
		recs, err := client.New(server, a.settings.RequestTimeout).History(ctx, limit)
		if err != nil {
			return err
		}
		return a.encode(recs)
	}

	storePath := stringOr(cmd, storeFlag, a.settings.StorePath)
	if storePath == "" {
		return errors.New("no history store configured: set STORE_PATH, --store or --server")
	}
	store, err := storage.New(storePath)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer store.Close()

	if cmd.Bool(runsFlag) {
		runs, err := store.TrainingRuns()
		if err != nil {
			return err
		}
		return a.encode(runs)
	}

	recs, err := store.RecentPredictions(limit)
	if err != nil {
		return err
	}
	return a.encode(recs)
}

type schemaField struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	Range      string   `json:"range,omitempty"`
	Vocabulary []string `json:"vocabulary,omitempty"`
}

func (a *app) schemaCmd() *cli.Command {
	return &cli.Command{
		Name:   "schema",
		Usage:  "Print the student record fields in feature order",
		Action: a.schema,
	}
}

func (a *app) schema(ctx context.Context, cmd *cli.Command) error {
	fields := schema.Fields()
	out := make([]schemaField, 0, len(fields))
	for _, f := range fields {
		sf := schemaField{Name: f.Name, Kind: f.Kind.String()}
		if f.Kind == schema.Numeric {
			sf.Range = f.Range.String()
		} else {
			sf.Vocabulary = f.Vocabulary
		}
		out = append(out, sf)
	}
	return a.encode(out)
}
