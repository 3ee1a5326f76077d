package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"placement-predictor/internal/api"
	"placement-predictor/internal/client"
	"placement-predictor/internal/features"
	"placement-predictor/internal/ml"
)

const (
	recordFlag = "record"
	setFlag    = "set"
	modelFlag  = "model"
	serverFlag = "server"
)

func newServerFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  serverFlag,
		Usage: "Prediction server URL, e.g. http://localhost:8501 (optional, predicts locally when omitted)",
	}
}

func (a *app) predictCmd() *cli.Command {
	return &cli.Command{
		Name:  "predict",
		Usage: "Predict the placement of one student",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  recordFlag,
				Usage: "JSON or YAML file holding the student record",
			},
			&cli.StringSliceFlag{
				Name:  setFlag,
				Usage: "field=value assignment, repeatable; overrides the record file",
			},
			&cli.StringFlag{
				Name:  modelFlag,
				Usage: "Model bundle for local prediction (optional, defaults to settings)",
			},
			newServerFlag(),
		},
		Action: a.predict,
	}
}

func (a *app) predict(ctx context.Context, cmd *cli.Command) error {
	rec, err := buildRecord(cmd.String(recordFlag), cmd.StringSlice(setFlag))
	if err != nil {
		return err
	}

	if server := cmd.String(serverFlag); server != "" {
		resp, err := client.New(server, a.settings.RequestTimeout).Predict(ctx, rec)
		if err != nil {
			return fmt.Errorf("remote prediction failed: %w", err)
		}
		return a.encode(resp)
	}

	resp, err := predictLocal(ctx, stringOr(cmd, modelFlag, a.settings.ModelPath), rec)
	if err != nil {
		return err
	}
	return a.encode(resp)
}

func predictLocal(ctx context.Context, bundlePath string, rec features.Record) (api.PredictionResponse, error) {
	start := time.Now()
	predictor, err := ml.LoadPredictor(bundlePath, nil)
	if err != nil {
		return api.PredictionResponse{}, err
	}

	pred, err := predictor.Predict(ctx, rec)
	if err != nil {
		return api.PredictionResponse{}, fmt.Errorf("prediction failed: %w", err)
	}
	return api.PredictionResponse{
		Label:        pred.Label.String(),
		Confidence:   pred.Confidence,
		ModelVersion: predictor.Bundle().Metadata().Version,
		Latency:      float64(time.Since(start).Microseconds()) / 1000,
		Timestamp:    time.Now().UTC(),
	}, nil
}

// buildRecord merges the record file (if any) with the --set assignments.
func buildRecord(path string, assignments []string) (features.Record, error) {
	rec := features.Record{}
	if path != "" {
		fromFile, err := readRecordFile(path)
		if err != nil {
			return nil, err
		}
		maps.Copy(rec, fromFile)
	}

	overrides, err := features.ParseAssignments(assignments)
	if err != nil {
		return nil, err
	}
	maps.Copy(rec, overrides)

	if len(rec) == 0 {
		return nil, errors.New("no input: pass --record and/or --set field=value")
	}
	return rec, nil
}

// readRecordFile reads a record from JSON, or YAML for .yaml/.yml files.
func readRecordFile(path string) (features.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read record file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse record file: %w", err)
		}
		rec := make(features.Record, len(raw))
		for name, v := range raw {
			switch x := v.(type) {
			case int:
				rec[name] = features.Num(float64(x))
			case float64:
				rec[name] = features.Num(x)
			case string:
				rec[name] = features.Cat(x)
			default:
				return nil, fmt.Errorf("field %s: value must be a number or a string", name)
			}
		}
		return rec, nil
	default:
		var rec features.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse record file: %w", err)
		}
		return rec, nil
	}
}
