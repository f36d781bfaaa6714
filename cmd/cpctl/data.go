package main

import (
	"context"
	"fmt"

	"gocp/adapters/excel"
	"gocp/domain/dataset"
	"gocp/internal/config"
	"gocp/internal/container"
	"gocp/internal/report"
	"gocp/internal/testkit"

	"github.com/spf13/cobra"
)

// dataOptions are the flags shared by every command that trains predictors.
type dataOptions struct {
	seed         int64
	perClass     int
	significance float64
	dataPath     string
	target       string
	sheet        string
}

func (o *dataOptions) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&o.seed, "seed", 42, "Random seed for synthetic data and splits")
	cmd.Flags().IntVar(&o.perClass, "per-class", 200, "Synthetic examples per class (rows for regression) in each split")
	cmd.Flags().Float64Var(&o.significance, "significance", 0, "Significance level (default CP_SIGNIFICANCE)")
	cmd.Flags().StringVar(&o.dataPath, "data", "", "CSV or XLSX file to use instead of synthetic data")
	cmd.Flags().StringVar(&o.target, "target", "", "Target column of --data (default: last column)")
	cmd.Flags().StringVar(&o.sheet, "sheet", "", "Sheet of an XLSX --data file (default: first sheet)")
}

// splits are disjoint training, calibration, second calibration and test sets.
type splits struct {
	train, cal, cal2, test dataset.DataSet
	source                 string
	classes                []string
}

func buildContainer(ctx context.Context, cmd *cobra.Command, opts *dataOptions) (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if !cmd.Flags().Changed("significance") {
		opts.significance = cfg.Predictor.Significance
	}
	if opts.significance <= 0 || opts.significance >= 1 {
		return nil, fmt.Errorf("significance must lie in (0, 1), got %v", opts.significance)
	}
	if opts.perClass < 2 {
		return nil, fmt.Errorf("per-class must be at least 2")
	}
	return container.New(ctx, cfg)
}

// classificationData draws three Gaussian blobs per split, or partitions --data
// 40/20/20/20.
func classificationData(c *container.Container, opts dataOptions) (splits, error) {
	if opts.dataPath != "" {
		return fileData(c, opts)
	}
	kit := testkit.NewTestKit(opts.seed)
	return splits{
		train:  kit.ThreeBlobs("train", opts.perClass),
		cal:    kit.ThreeBlobs("calibration", opts.perClass),
		cal2:   kit.ThreeBlobs("calibration-2", opts.perClass),
		test:   kit.ThreeBlobs("test", opts.perClass),
		source: "synthetic: three gaussian blobs",
	}, nil
}

// regressionData draws noisy linear data per split, or partitions --data.
func regressionData(c *container.Container, opts dataOptions) (splits, error) {
	if opts.dataPath != "" {
		return fileData(c, opts)
	}
	kit := testkit.NewTestKit(opts.seed)
	weights := []float64{1.5, -2, 0.5}
	return splits{
		train:  kit.LinearData("train", opts.perClass, weights, 3, 0.5),
		cal:    kit.LinearData("calibration", opts.perClass, weights, 3, 0.5),
		test:   kit.LinearData("test", opts.perClass, weights, 3, 0.5),
		source: "synthetic: y = 1.5a - 2b + 0.5c + 3 + N(0, 0.25)",
	}, nil
}

func fileData(c *container.Container, opts dataOptions) (splits, error) {
	readerOpts := []excel.Option{excel.WithLogger(c.Logger.Named("excel"))}
	if opts.sheet != "" {
		readerOpts = append(readerOpts, excel.WithSheet(opts.sheet))
	}
	frame, err := excel.Load(opts.dataPath, opts.target, readerOpts...)
	if err != nil {
		return splits{}, err
	}
	if frame.Skipped > 0 {
		c.Logger.Warn("skipped %d rows of %s with missing or non-numeric cells", frame.Skipped, opts.dataPath)
	}

	kit := testkit.NewTestKit(opts.seed)
	train, cal, rest, err := frame.Data.Partition(kit.Stream("partition"), 0.4, 0.2)
	if err != nil {
		return splits{}, err
	}
	cal2, _, test, err := rest.Partition(kit.Stream("partition-rest"), 0.5, 0)
	if err != nil {
		return splits{}, err
	}
	if train.IsEmpty() || cal.IsEmpty() || test.IsEmpty() {
		return splits{}, fmt.Errorf("%s has too few rows (%d) to split", opts.dataPath, frame.Data.Rows())
	}
	return splits{
		train:   train,
		cal:     cal,
		cal2:    cal2,
		test:    test,
		source:  fmt.Sprintf("%s (target %s, %d features)", opts.dataPath, frame.Target, len(frame.Features)),
		classes: frame.Classes,
	}, nil
}

func describe(r *report.Report, s splits) {
	r.Set("data", s.source).
		Set("rows (train/cal/test)", fmt.Sprintf("%d/%d/%d", s.train.Rows(), s.cal.Rows(), s.test.Rows()))
	if len(s.classes) > 0 {
		r.Set("classes", s.classes)
	}
}
