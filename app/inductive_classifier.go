package app

import (
	"context"
	"fmt"

	"gocp/domain/conformal"
	"gocp/domain/core"
	"gocp/domain/dataset"
	"gocp/internal/calibration"
	"gocp/internal/errors"
	"gocp/internal/parallel"
	"gocp/internal/pvalue"
	"gocp/ports"

	"gonum.org/v1/gonum/mat"
)

// InductiveClassifier trains its nonconformity function once on a proper
// training set, scores a disjoint calibration set, and answers queries by
// comparing test scores with the stored calibration scores. It is safe for
// concurrent prediction once calibrated.
type InductiveClassifier struct {
	id         core.ModelID
	nc         ports.ClassificationNonconformityFunction
	labels     dataset.Labels
	settings   settings
	align      *aligner
	store      *calibration.Store
	attributes int
}

var _ ports.ConformalClassifier = (*InductiveClassifier)(nil)

// NewInductiveClassifier creates an unfitted classifier over the given
// classes. nc must have been built for the same class list.
func NewInductiveClassifier(nc ports.ClassificationNonconformityFunction, labels dataset.Labels, opts ...Option) (*InductiveClassifier, error) {
	if nc == nil {
		return nil, errors.InvalidInput("nonconformity function is required")
	}
	if labels.Len() == 0 {
		return nil, errors.InvalidInput("at least one class is required")
	}
	s := newSettings(opts)
	logger := s.logger.Named("icc")
	s.logger = logger
	return &InductiveClassifier{
		id:         core.NewModelID(),
		nc:         nc,
		labels:     labels,
		settings:   s,
		align:      newAligner("inductive classifier", logger),
		attributes: -1,
	}, nil
}

// Fit trains the nonconformity function on train and calibrates on cal.
func (c *InductiveClassifier) Fit(ctx context.Context, train, cal dataset.DataSet) error {
	if err := train.Validate(); err != nil {
		return errors.Wrap(err, "invalid training set")
	}
	if train.IsEmpty() {
		return errors.DataMismatch("cannot fit on an empty training set", core.ErrEmptyTrainingSet)
	}
	if err := c.nc.Fit(train.X, train.Y); err != nil {
		return errors.Wrapf(err, "fit %s nonconformity function", c.nc.Kind())
	}
	c.attributes = train.Columns()
	return c.Calibrate(ctx, cal)
}

// Calibrate scores cal with the already trained nonconformity function and
// replaces the calibration store. Rows whose label is not a known class are
// skipped with a warning.
func (c *InductiveClassifier) Calibrate(ctx context.Context, cal dataset.DataSet) error {
	if !c.nc.IsTrained() {
		return errors.NotTrained(c.nc.Kind() + " nonconformity function")
	}
	if err := cal.Validate(); err != nil {
		return errors.Wrap(err, "invalid calibration set")
	}
	if cal.IsEmpty() {
		return errors.DataMismatch("cannot calibrate on an empty calibration set", core.ErrEmptyCalibration)
	}
	if c.attributes < 0 {
		c.attributes = c.nc.AttributeCount()
	}

	x := c.align.matrix(cal.X, c.attributes)
	scores, err := c.nc.Scores(ctx, x, cal.Y)
	if err != nil {
		return errors.Wrap(err, "score calibration set")
	}

	kept := make([]float64, 0, len(scores))
	classOf := make([]int, 0, len(scores))
	skipped := 0
	for i, y := range cal.Y {
		k, ok := c.labels.Index(y)
		if !ok {
			skipped++
			continue
		}
		kept = append(kept, scores[i])
		classOf = append(classOf, k)
	}
	if skipped > 0 {
		c.settings.logger.Warn("skipped %d calibration rows with labels outside the %d known classes", skipped, c.labels.Len())
	}
	if len(kept) == 0 {
		return errors.DataMismatch("no calibration row carries a known class", core.ErrEmptyCalibration)
	}

	store, err := calibration.NewStore(kept, classOf, c.labels.Len(), c.settings.labelConditional)
	if err != nil {
		return errors.Wrap(err, "build calibration store")
	}
	c.store = store
	c.logCalibration()
	return nil
}

func (c *InductiveClassifier) logCalibration() {
	if summary, err := c.store.Summary(); err == nil {
		c.settings.logger.Info("calibrated %s on %d scores (mean %.4f, median %.4f, p90 %.4f)",
			c.nc.Kind(), summary.Count, summary.Mean, summary.Median, summary.P90)
	}
	if c.store.LabelConditional() {
		for k, n := range c.store.BucketSizes() {
			if n == 0 {
				c.settings.logger.Warn("class %v has no calibration examples; its p-values will be 0", c.labels.At(k))
				continue
			}
			c.settings.logger.Debug("class %v: %d calibration scores", c.labels.At(k), n)
		}
	}
}

// PredictPValues returns one p-value per class for instance.
func (c *InductiveClassifier) PredictPValues(ctx context.Context, instance []float64) ([]float64, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pValues := make([]float64, c.labels.Len())
	c.pValues(instance, pValues)
	return pValues, nil
}

// pValues writes the p-values of instance into dst, which also serves as
// scratch space for the per-class scores.
func (c *InductiveClassifier) pValues(instance []float64, dst []float64) {
	x := c.align.instance(instance, c.attributes)
	c.scores(x, dst)
	for k := range dst {
		dst[k] = c.settings.engine.PValue(dst[k], c.store.Scores(k))
	}
}

func (c *InductiveClassifier) scores(x []float64, dst []float64) {
	if scorer, ok := c.nc.(ports.LabelScorer); ok {
		scorer.ScoreLabels(x, dst)
		return
	}
	for k := range dst {
		dst[k] = c.nc.Score(x, c.labels.At(k))
	}
}

// PredictPValuesBatch returns a rows x classes matrix of p-values in input row order.
func (c *InductiveClassifier) PredictPValuesBatch(ctx context.Context, x mat.Matrix) (*mat.Dense, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	rows, cols := x.Dims()
	if rows == 0 {
		return &mat.Dense{}, nil
	}
	out := mat.NewDense(rows, c.labels.Len(), nil)
	err := parallel.ForWithState(ctx, rows, c.settings.workers,
		func() ([]float64, error) { return make([]float64, cols), nil },
		nil,
		func(_ context.Context, row []float64, i int) error {
			mat.Row(row, i, x)
			c.pValues(row, out.RawRowView(i))
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Predict returns the full conformal result for instance.
func (c *InductiveClassifier) Predict(ctx context.Context, instance []float64) (conformal.Classification, error) {
	pValues, err := c.PredictPValues(ctx, instance)
	if err != nil {
		return conformal.Classification{}, err
	}
	return conformal.NewClassification(pValues, c.labels), nil
}

// PredictBatch returns one result per row of x, in row order.
func (c *InductiveClassifier) PredictBatch(ctx context.Context, x mat.Matrix) ([]conformal.Classification, error) {
	pValues, err := c.PredictPValuesBatch(ctx, x)
	if err != nil {
		return nil, err
	}
	return classifications(pValues, c.labels), nil
}

// PredictLabels reports, per class, whether it belongs to the prediction
// set at the given significance level.
func (c *InductiveClassifier) PredictLabels(ctx context.Context, instance []float64, significance float64) ([]bool, error) {
	if err := pvalue.ValidateSignificance(significance); err != nil {
		return nil, errors.Wrap(err, "predict labels")
	}
	if err := c.ready(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scores := make([]float64, c.labels.Len())
	c.scores(c.align.instance(instance, c.attributes), scores)
	included := make([]bool, len(scores))
	for k, s := range scores {
		included[k] = c.settings.engine.Included(s, c.store.Scores(k), significance)
	}
	return included, nil
}

// PredictLabelsBatch applies PredictLabels to every row of x.
func (c *InductiveClassifier) PredictLabelsBatch(ctx context.Context, x mat.Matrix, significance float64) ([][]bool, error) {
	if err := pvalue.ValidateSignificance(significance); err != nil {
		return nil, errors.Wrap(err, "predict labels")
	}
	if err := c.ready(); err != nil {
		return nil, err
	}
	rows, cols := x.Dims()
	out := make([][]bool, rows)
	err := parallel.ForWithState(ctx, rows, c.settings.workers,
		func() ([]float64, error) { return make([]float64, cols), nil },
		nil,
		func(ctx context.Context, row []float64, i int) error {
			mat.Row(row, i, x)
			included, err := c.PredictLabels(ctx, row, significance)
			out[i] = included
			return err
		},
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InductiveClassifier) ready() error {
	if c.store == nil {
		return errors.NotTrained("inductive classifier")
	}
	return nil
}

// ID identifies this predictor in snapshots.
func (c *InductiveClassifier) ID() core.ModelID { return c.id }

// Labels returns the class list.
func (c *InductiveClassifier) Labels() dataset.Labels { return c.labels }

// AttributeCount is the training width, or -1 before fitting.
func (c *InductiveClassifier) AttributeCount() int { return c.attributes }

// IsTrained reports whether the classifier has been calibrated.
func (c *InductiveClassifier) IsTrained() bool { return c.store != nil }

// NonconformityFunction returns the wrapped function.
func (c *InductiveClassifier) NonconformityFunction() ports.ClassificationNonconformityFunction {
	return c.nc
}

// Calibration returns the calibration store, or nil before calibration.
func (c *InductiveClassifier) Calibration() *calibration.Store { return c.store }

// InductiveClassifierState is the serialisable part of a calibrated
// inductive classifier. The trained nonconformity function is not included.
type InductiveClassifierState struct {
	ID               core.ModelID `json:"id"`
	Nonconformity    string       `json:"nonconformity"`
	Labels           []float64    `json:"labels"`
	Attributes       int          `json:"attributes"`
	LabelConditional bool         `json:"label_conditional"`
	Smoothing        bool         `json:"smoothing"`
	Calibration      []float64    `json:"calibration"`
	ClassCalibration [][]float64  `json:"class_calibration,omitempty"`
}

// State captures the calibrated classifier.
func (c *InductiveClassifier) State() (InductiveClassifierState, error) {
	if err := c.ready(); err != nil {
		return InductiveClassifierState{}, err
	}
	return InductiveClassifierState{
		ID:               c.id,
		Nonconformity:    c.nc.Kind(),
		Labels:           c.labels.Values(),
		Attributes:       c.attributes,
		LabelConditional: c.store.LabelConditional(),
		Smoothing:        c.settings.engine.Smoothing(),
		Calibration:      c.store.Global(),
		ClassCalibration: c.store.ClassScores(),
	}, nil
}

// RestoreInductiveClassifier rebuilds a classifier from a state and the
// trained nonconformity function it was calibrated with. Without WithEngine
// the engine follows the recorded smoothing mode.
func RestoreInductiveClassifier(state InductiveClassifierState, nc ports.ClassificationNonconformityFunction, opts ...Option) (*InductiveClassifier, error) {
	if nc == nil || !nc.IsTrained() {
		return nil, errors.NotTrained("restored nonconformity function")
	}
	if nc.Kind() != state.Nonconformity {
		return nil, errors.InvalidInput(fmt.Sprintf("state was calibrated with %s, got %s", state.Nonconformity, nc.Kind()))
	}
	labels := dataset.NewLabels(state.Labels)
	if labels.Len() != len(state.Labels) {
		return nil, errors.InvalidInput("state labels must be distinct")
	}
	if state.LabelConditional && len(state.ClassCalibration) != labels.Len() {
		return nil, errors.DataMismatch("restore calibration", core.NewDimensionError("class buckets", labels.Len(), len(state.ClassCalibration)))
	}
	store, err := calibration.Restore(state.Calibration, state.ClassCalibration, state.LabelConditional)
	if err != nil {
		return nil, errors.Wrap(err, "restore calibration")
	}

	s := newSettings(opts)
	if !s.engineSet {
		s.engine = pvalue.NewEngine(pvalue.WithSmoothing(state.Smoothing))
	}
	s.labelConditional = state.LabelConditional
	logger := s.logger.Named("icc")
	s.logger = logger

	id := state.ID
	if id == "" {
		id = core.NewModelID()
	}
	return &InductiveClassifier{
		id:         id,
		nc:         nc,
		labels:     labels,
		settings:   s,
		align:      newAligner("inductive classifier", logger),
		store:      store,
		attributes: state.Attributes,
	}, nil
}

// classifications splits a p-value matrix into per-row results.
func classifications(pValues *mat.Dense, labels dataset.Labels) []conformal.Classification {
	rows, _ := pValues.Dims()
	out := make([]conformal.Classification, rows)
	for i := range out {
		out[i] = conformal.NewClassification(mat.Row(nil, i, pValues), labels)
	}
	return out
}
