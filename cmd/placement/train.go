package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"placement-predictor/internal/dataset"
	"placement-predictor/internal/eda"
	"placement-predictor/internal/ml"
	"placement-predictor/internal/storage"
)

const (
	importanceRepeats = 5
	topFeatures       = 5
)

const (
	dataFlag = "data"
	outFlag  = "out"
)

func newDataFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  dataFlag,
		Usage: "Dataset file (.csv or .xlsx) (optional, defaults to settings)",
	}
}

func (a *app) trainCmd() *cli.Command {
	return &cli.Command{
		Name:  "train",
		Usage: "Train the classifier and save the model bundle",
		Flags: []cli.Flag{
			newDataFlag(),
			&cli.StringFlag{
				Name:  outFlag,
				Usage: "Where to write the trained model bundle (optional, defaults to settings)",
			},
		},
		Action: a.train,
	}
}

func (a *app) train(ctx context.Context, cmd *cli.Command) error {
	dataPath := stringOr(cmd, dataFlag, a.settings.DataPath)
	bundlePath := stringOr(cmd, outFlag, a.settings.ModelPath)
	start := time.Now()

	tbl, err := dataset.Load(dataPath)
	if err != nil {
		return err
	}

	clf := ml.NewSVC(ml.SVCParams{C: a.settings.SVMC, Gamma: a.settings.SVMGamma})
	bundle, err := ml.Train(ctx, tbl, a.settings.TargetColumn, ml.TrainOptions{
		Classifier:        clf,
		ImportanceRepeats: importanceRepeats,
	})
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	if err := ml.Save(bundle, bundlePath); err != nil {
		return err
	}

	meta := bundle.Metadata()
	run := storage.TrainingRun{
		Version:      meta.Version,
		TrainedAt:    meta.TrainedAt,
		DataPath:     dataPath,
		BundlePath:   bundlePath,
		Rows:         meta.TrainingRows,
		Classifier:   meta.ClassifierKind,
		Accuracy:     meta.Accuracy,
		F1:           meta.F1,
		DurationSecs: time.Since(start).Seconds(),
	}
	for i, fi := range meta.Importance {
		if i == topFeatures {
			break
		}
		run.TopFeatures = append(run.TopFeatures, fi.Name)
	}
	a.recordRun(run)

	return a.encode(meta)
}

// recordRun stores run when a history store is configured. Failures are only
// logged; the bundle is already saved.
func (a *app) recordRun(run storage.TrainingRun) {
	if a.settings.StorePath == "" {
		return
	}
	store, err := storage.New(a.settings.StorePath)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to open history store")
		return
	}
	defer store.Close()

	if err := store.StoreTrainingRun(run); err != nil {
		log.Warn().Err(err).Msg("Failed to record training run")
	}
}

func (a *app) edaCmd() *cli.Command {
	return &cli.Command{
		Name:  "eda",
		Usage: "Draw boxplots by placement status and report IQR outliers",
		Flags: []cli.Flag{
			newDataFlag(),
			&cli.StringFlag{
				Name:  outFlag,
				Usage: "Directory for boxplots and the outlier report (optional, defaults to settings)",
			},
		},
		Action: a.eda,
	}
}

func (a *app) eda(ctx context.Context, cmd *cli.Command) error {
	_, err := eda.Run(eda.Options{
		DataPath:  stringOr(cmd, dataFlag, a.settings.DataPath),
		OutputDir: stringOr(cmd, outFlag, a.settings.OutputDir),
		Target:    a.settings.TargetColumn,
		IDColumn:  a.settings.IDColumn,
		Out:       a.out,
	})
	return err
}
