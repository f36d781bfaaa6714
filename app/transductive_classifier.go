package app

import (
	"context"
	"fmt"
	"sort"

	"gocp/domain/conformal"
	"gocp/domain/core"
	"gocp/domain/dataset"
	"gocp/internal/augment"
	"gocp/internal/errors"
	"gocp/internal/parallel"
	"gocp/internal/pvalue"
	"gocp/ports"

	"golang.org/x/sync/semaphore"
	"gonum.org/v1/gonum/mat"
)

// TransductiveClassifier keeps its training set and, for every query and
// every candidate class, refits a fresh copy of the nonconformity function
// on the training set extended with the query. Each query therefore costs
// one refit per class. Queries may run concurrently; each worker owns its
// augmented buffer.
type TransductiveClassifier struct {
	id         core.ModelID
	prototype  ports.ClassificationNonconformityFunction
	labels     dataset.Labels
	settings   settings
	align      *aligner
	refits     *semaphore.Weighted
	pool       *augment.Pool
	attributes int
}

var _ ports.ConformalClassifier = (*TransductiveClassifier)(nil)

// NewTransductiveClassifier creates an unfitted classifier. The prototype is
// never trained itself; only clones produced by FitNew are.
func NewTransductiveClassifier(prototype ports.ClassificationNonconformityFunction, labels dataset.Labels, opts ...Option) (*TransductiveClassifier, error) {
	if prototype == nil {
		return nil, errors.InvalidInput("nonconformity function is required")
	}
	if labels.Len() == 0 {
		return nil, errors.InvalidInput("at least one class is required")
	}
	s := newSettings(opts)
	s.logger = s.logger.Named("tcc")
	c := &TransductiveClassifier{
		id:         core.NewModelID(),
		prototype:  prototype,
		labels:     labels,
		settings:   s,
		align:      newAligner("transductive classifier", s.logger),
		attributes: -1,
	}
	if s.maxRefits > 0 {
		c.refits = semaphore.NewWeighted(s.maxRefits)
	}
	return c, nil
}

// Fit stores a copy of the training set. Nothing is trained until a query
// arrives.
func (c *TransductiveClassifier) Fit(_ context.Context, train dataset.DataSet) error {
	if train.IsEmpty() {
		return errors.DataMismatch("cannot fit on an empty training set", core.ErrEmptyTrainingSet)
	}
	pool, err := augment.NewPool(train)
	if err != nil {
		return errors.Wrap(err, "prepare augmented training buffers")
	}
	unknown := 0
	for _, y := range train.Y {
		if !c.labels.Contains(y) {
			unknown++
		}
	}
	if unknown > 0 {
		c.settings.logger.Warn("%d training rows carry labels outside the %d known classes", unknown, c.labels.Len())
	}
	c.pool = pool
	c.attributes = train.Columns()
	c.settings.logger.Info("stored %d training rows with %d attributes", train.Rows(), c.attributes)
	return nil
}

// PredictPValues returns one p-value per class for instance.
func (c *TransductiveClassifier) PredictPValues(ctx context.Context, instance []float64) ([]float64, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	buf := c.pool.Get()
	defer c.pool.Put(buf)

	pValues := make([]float64, c.labels.Len())
	if err := c.pValues(ctx, buf, instance, pValues); err != nil {
		return nil, err
	}
	return pValues, nil
}

// pValues runs the per-class refit loop on buf and writes p-values into dst.
func (c *TransductiveClassifier) pValues(ctx context.Context, buf *augment.Buffer, instance []float64, dst []float64) error {
	x := c.align.instance(instance, c.attributes)
	for k := range dst {
		if err := ctx.Err(); err != nil {
			return err
		}
		label := c.labels.At(k)
		buf.Set(x, label)
		score, calibration, err := c.refit(ctx, buf, label)
		if err != nil {
			return errors.Wrapf(err, "refit for class %v", label)
		}
		dst[k] = c.settings.engine.PValue(score, calibration)
	}
	return nil
}

// refit trains a clone on the augmented buffer and returns the query row's
// score together with the sorted scores it is compared against.
func (c *TransductiveClassifier) refit(ctx context.Context, buf *augment.Buffer, label float64) (float64, []float64, error) {
	if c.refits != nil {
		if err := c.refits.Acquire(ctx, 1); err != nil {
			return 0, nil, err
		}
		defer c.refits.Release(1)
	}

	clone, err := c.prototype.FitNew(buf.X, buf.Y)
	if err != nil {
		return 0, nil, err
	}
	n := buf.TrainingRows()
	for i := 0; i <= n; i++ {
		buf.Scores[i] = clone.Score(buf.X.RawRowView(i), buf.Y[i])
	}

	calibration := buf.Calibration[:0]
	for i := 0; i < n; i++ {
		if c.settings.labelConditional && buf.Y[i] != label {
			continue
		}
		calibration = append(calibration, buf.Scores[i])
	}
	sort.Float64s(calibration)
	buf.Calibration = calibration
	return buf.Scores[buf.QueryIndex()], calibration, nil
}

type tccWorker struct {
	buf *augment.Buffer
	row []float64
}

// PredictPValuesBatch returns a rows x classes matrix of p-values in input
// row order. Rows are spread over workers; each worker loops over classes
// sequentially with its own buffer.
func (c *TransductiveClassifier) PredictPValuesBatch(ctx context.Context, x mat.Matrix) (*mat.Dense, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	rows, cols := x.Dims()
	if rows == 0 {
		return &mat.Dense{}, nil
	}
	out := mat.NewDense(rows, c.labels.Len(), nil)
	err := parallel.ForWithState(ctx, rows, c.settings.workers,
		func() (tccWorker, error) {
			return tccWorker{buf: c.pool.Get(), row: make([]float64, cols)}, nil
		},
		func(w tccWorker) { c.pool.Put(w.buf) },
		func(ctx context.Context, w tccWorker, i int) error {
			mat.Row(w.row, i, x)
			return c.pValues(ctx, w.buf, w.row, out.RawRowView(i))
		},
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Predict returns the full conformal result for instance.
func (c *TransductiveClassifier) Predict(ctx context.Context, instance []float64) (conformal.Classification, error) {
	pValues, err := c.PredictPValues(ctx, instance)
	if err != nil {
		return conformal.Classification{}, err
	}
	return conformal.NewClassification(pValues, c.labels), nil
}

// PredictBatch returns one result per row of x, in row order.
func (c *TransductiveClassifier) PredictBatch(ctx context.Context, x mat.Matrix) ([]conformal.Classification, error) {
	pValues, err := c.PredictPValuesBatch(ctx, x)
	if err != nil {
		return nil, err
	}
	return classifications(pValues, c.labels), nil
}

// PredictLabels reports, per class, whether it belongs to the prediction
// set at the given significance level.
func (c *TransductiveClassifier) PredictLabels(ctx context.Context, instance []float64, significance float64) ([]bool, error) {
	if err := pvalue.ValidateSignificance(significance); err != nil {
		return nil, errors.Wrap(err, "predict labels")
	}
	pValues, err := c.PredictPValues(ctx, instance)
	if err != nil {
		return nil, err
	}
	included := make([]bool, len(pValues))
	for k, p := range pValues {
		included[k] = p >= significance
	}
	return included, nil
}

// PredictLabelsBatch applies PredictLabels to every row of x.
func (c *TransductiveClassifier) PredictLabelsBatch(ctx context.Context, x mat.Matrix, significance float64) ([][]bool, error) {
	if err := pvalue.ValidateSignificance(significance); err != nil {
		return nil, errors.Wrap(err, "predict labels")
	}
	pValues, err := c.PredictPValuesBatch(ctx, x)
	if err != nil {
		return nil, err
	}
	rows, classes := pValues.Dims()
	out := make([][]bool, rows)
	for i := range out {
		out[i] = make([]bool, classes)
		for k := range out[i] {
			out[i][k] = pValues.At(i, k) >= significance
		}
	}
	return out, nil
}

func (c *TransductiveClassifier) ready() error {
	if c.pool == nil {
		return errors.NotTrained("transductive classifier")
	}
	return nil
}

func (c *TransductiveClassifier) ID() core.ModelID { return c.id }

func (c *TransductiveClassifier) Labels() dataset.Labels { return c.labels }

func (c *TransductiveClassifier) AttributeCount() int { return c.attributes }

func (c *TransductiveClassifier) IsTrained() bool { return c.pool != nil }

// BuffersAllocated reports how many augmented buffers have been built.
func (c *TransductiveClassifier) BuffersAllocated() int64 {
	if c.pool == nil {
		return 0
	}
	return c.pool.Allocated()
}

// TransductiveClassifierState is the serialisable form of a fitted
// transductive classifier, including its full training set.
type TransductiveClassifierState struct {
	ID               core.ModelID `json:"id"`
	Nonconformity    string       `json:"nonconformity"`
	Labels           []float64    `json:"labels"`
	LabelConditional bool         `json:"label_conditional"`
	Smoothing        bool         `json:"smoothing"`
	TrainX           [][]float64  `json:"train_x"`
	TrainY           []float64    `json:"train_y"`
}

// State captures the fitted classifier.
func (c *TransductiveClassifier) State() (TransductiveClassifierState, error) {
	if err := c.ready(); err != nil {
		return TransductiveClassifierState{}, err
	}
	train := c.pool.Training()
	rows := make([][]float64, train.Rows())
	for i := range rows {
		rows[i] = train.Row(i)
	}
	return TransductiveClassifierState{
		ID:               c.id,
		Nonconformity:    c.prototype.Kind(),
		Labels:           c.labels.Values(),
		LabelConditional: c.settings.labelConditional,
		Smoothing:        c.settings.engine.Smoothing(),
		TrainX:           rows,
		TrainY:           append([]float64(nil), train.Y...),
	}, nil
}

// RestoreTransductiveClassifier rebuilds a classifier from its state and a
// prototype nonconformity function of the recorded kind.
func RestoreTransductiveClassifier(ctx context.Context, state TransductiveClassifierState, prototype ports.ClassificationNonconformityFunction, opts ...Option) (*TransductiveClassifier, error) {
	if prototype == nil {
		return nil, errors.InvalidInput("nonconformity function is required")
	}
	if prototype.Kind() != state.Nonconformity {
		return nil, errors.InvalidInput(fmt.Sprintf("state was fitted with %s, got %s", state.Nonconformity, prototype.Kind()))
	}
	train, err := dataset.FromRows(state.TrainX, state.TrainY)
	if err != nil {
		return nil, errors.Wrap(err, "restore training set")
	}

	s := newSettings(opts)
	if !s.engineSet {
		opts = append(opts, WithEngine(pvalue.NewEngine(pvalue.WithSmoothing(state.Smoothing))))
	}
	opts = append(opts, WithLabelConditional(state.LabelConditional))

	c, err := NewTransductiveClassifier(prototype, dataset.NewLabels(state.Labels), opts...)
	if err != nil {
		return nil, err
	}
	if state.ID != "" {
		c.id = state.ID
	}
	if err := c.Fit(ctx, train); err != nil {
		return nil, err
	}
	return c, nil
}
