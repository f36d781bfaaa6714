package main

import (
	"context"
	"fmt"

	"gocp/adapters/nonconformity"
	"gocp/domain/conformal"
	"gocp/internal/container"
	"gocp/internal/measures"
	"gocp/internal/report"
	"gocp/internal/testkit"
	"gocp/ports"

	"github.com/spf13/cobra"
)

// runOptions are the flags of the experiment commands.
type runOptions struct {
	dataOptions
	save   bool
	format string
}

type runner func(ctx context.Context, c *container.Container, opts runOptions) (*report.Report, error)

func newExperimentCmd(use, short string, run runner) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := report.ParseFormat(opts.format)
			if err != nil {
				return err
			}
			c, err := buildContainer(cmd.Context(), cmd, &opts.dataOptions)
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())

			r, err := run(cmd.Context(), c, opts)
			if err != nil {
				return err
			}
			return r.Write(cmd.OutOrStdout(), format)
		},
	}

	opts.register(cmd)
	cmd.Flags().BoolVar(&opts.save, "save", false, "Save a snapshot of the calibrated predictor")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text, json, markdown or html")
	return cmd
}

// classifierFor picks a learner the configured nonconformity function can wrap.
func classifierFor(c *container.Container) ports.Classifier {
	if c.Config.Predictor.Nonconformity == nonconformity.KindSVMDistance {
		return testkit.NewLinearClassifier()
	}
	return testkit.NewNearestCentroid(1)
}

func runICC(ctx context.Context, c *container.Container, opts runOptions) (*report.Report, error) {
	data, err := classificationData(c, opts.dataOptions)
	if err != nil {
		return nil, err
	}
	icc, err := c.InductiveClassifier(classifierFor(c), data.train.Labels())
	if err != nil {
		return nil, err
	}
	if err := icc.Fit(ctx, data.train, data.cal); err != nil {
		return nil, err
	}
	predictions, err := icc.PredictBatch(ctx, data.test.X)
	if err != nil {
		return nil, err
	}

	r := report.New("Inductive conformal classifier")
	describe(r, data)
	r.Set("nonconformity", icc.NonconformityFunction().Kind()).
		Set("label conditional", c.Config.Predictor.LabelConditional)
	if opts.save {
		id, err := c.Snapshots.SaveInductiveClassifier(ctx, icc)
		if err != nil {
			return nil, err
		}
		r.Note("Saved snapshot %s", id)
	}
	return classificationReport(r, opts.significance, predictions, data.test.Y), nil
}

func runTCC(ctx context.Context, c *container.Container, opts runOptions) (*report.Report, error) {
	data, err := classificationData(c, opts.dataOptions)
	if err != nil {
		return nil, err
	}
	tcc, err := c.TransductiveClassifier(classifierFor(c), data.train.Labels())
	if err != nil {
		return nil, err
	}
	if err := tcc.Fit(ctx, data.train); err != nil {
		return nil, err
	}
	predictions, err := tcc.PredictBatch(ctx, data.test.X)
	if err != nil {
		return nil, err
	}

	r := report.New("Transductive conformal classifier")
	describe(r, data)
	r.Set("label conditional", c.Config.Predictor.LabelConditional).
		Set("refit buffers", tcc.BuffersAllocated())
	if opts.save {
		id, err := c.Snapshots.SaveTransductiveClassifier(ctx, tcc)
		if err != nil {
			return nil, err
		}
		r.Note("Saved snapshot %s", id)
	}
	return classificationReport(r, opts.significance, predictions, data.test.Y), nil
}

func runMPC(ctx context.Context, c *container.Container, opts runOptions) (*report.Report, error) {
	data, err := classificationData(c, opts.dataOptions)
	if err != nil {
		return nil, err
	}
	icc, err := c.InductiveClassifier(classifierFor(c), data.train.Labels())
	if err != nil {
		return nil, err
	}
	if err := icc.Fit(ctx, data.train, data.cal); err != nil {
		return nil, err
	}
	mpc, err := c.MultiProbabilisticClassifier(icc)
	if err != nil {
		return nil, err
	}
	if err := mpc.Calibrate(ctx, data.cal2); err != nil {
		return nil, err
	}
	predictions, err := mpc.PredictBatch(ctx, data.test.X)
	if err != nil {
		return nil, err
	}

	lower, upper := measures.LowerBound(), measures.UpperBound()
	aggregates := []*measures.Aggregate{
		measures.NewAggregate(lower.Name()),
		measures.NewAggregate(upper.Name()),
		measures.NewAggregate("PointAccuracy"),
	}
	for i, p := range predictions {
		aggregates[0].Add(lower.Compute(p))
		aggregates[1].Add(upper.Compute(p))
		label, ok := p.LabelPointPrediction()
		aggregates[2].Add(indicator(ok && label == data.test.Y[i]))
	}

	r := report.New("Multi-probabilistic classifier")
	describe(r, data)
	r.Set("grid resolution", mpc.Grid().Resolution()).
		Set("grid cells", mpc.Grid().Len())
	for _, a := range aggregates {
		r.Add(a.Result())
	}
	return r, nil
}

func runICR(ctx context.Context, c *container.Container, opts runOptions) (*report.Report, error) {
	data, err := regressionData(c, opts.dataOptions)
	if err != nil {
		return nil, err
	}
	icr, err := c.InductiveRegressor(testkit.NewLeastSquaresRegressor())
	if err != nil {
		return nil, err
	}
	if err := icr.Fit(ctx, data.train, data.cal); err != nil {
		return nil, err
	}
	confidence := 1 - opts.significance
	intervals, err := icr.PredictIntervals(ctx, data.test.X, confidence)
	if err != nil {
		return nil, err
	}

	r := report.New("Inductive conformal regressor")
	describe(r, data)
	r.Set("interval rule", icr.IntervalRule()).
		Set("confidence", fmt.Sprintf("%.2f", confidence))
	if opts.save {
		id, err := c.Snapshots.SaveInductiveRegressor(ctx, icr)
		if err != nil {
			return nil, err
		}
		r.Note("Saved snapshot %s", id)
	}

	coverage, width := measures.NewAggregate("Coverage"), measures.NewAggregate("Width")
	for i, in := range intervals {
		coverage.Add(indicator(in.Contains(data.test.Y[i])))
		width.Add(in.Width())
	}
	return r.Add(coverage.Result(), width.Result()), nil
}

// classificationReport adds the observed measures at the run's significance
// followed by the default prior battery.
func classificationReport(r *report.Report, significance float64, predictions []conformal.Classification, truth []float64) *report.Report {
	priors := measures.NewPriorSet()
	observed := measures.NewObservedSet(
		measures.Accuracy(significance),
		measures.ObservedUnconfidence(),
		measures.ObservedFuzziness(),
		measures.ObservedMultiple(significance),
		measures.ObservedExcess(significance),
		measures.ObservedOneC(significance),
	)
	for i, p := range predictions {
		priors.Add(p)
		observed.Add(p, truth[i])
	}
	r.Set("significance", significance)
	return r.Add(observed.Results()...).Add(priors.Results()...)
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
