package app

import (
	"context"
	"testing"

	"gocp/adapters/nonconformity"
	"gocp/domain/conformal"
	"gocp/domain/core"
	"gocp/domain/dataset"
	"gocp/internal/errors"
	"gocp/internal/pvalue"
	"gocp/internal/testkit"
	"gocp/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// identityProbabilities treats the instance itself as the class probabilities.
func identityProbabilities(instance []float64) []float64 { return instance }

// scriptedICC builds a three-class classifier whose scores are 1 - x[k].
func scriptedICC(t *testing.T, opts ...Option) *InductiveClassifier {
	t.Helper()
	labels := dataset.NewLabels([]float64{0, 1, 2})
	nc := nonconformity.NewClassProbability(testkit.NewScriptedClassifier(identityProbabilities), labels)
	icc, err := NewInductiveClassifier(nc, labels, append([]Option{quiet()}, opts...)...)
	require.NoError(t, err)

	train := mustRows(t, [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, []float64{0, 1, 2})
	cal := mustRows(t, [][]float64{
		{0.9, 0.05, 0.05},
		{0.2, 0.7, 0.1},
		{0.5, 0.3, 0.2},
		{0.6, 0.3, 0.1},
	}, []float64{0, 1, 2, 0})
	require.NoError(t, icc.Fit(context.Background(), train, cal))
	return icc
}

func TestInductiveClassifierPValues(t *testing.T) {
	ctx := context.Background()
	query := []float64{0.7, 0.2, 0.1}

	t.Run("global", func(t *testing.T) {
		icc := scriptedICC(t, unsmoothed())
		p, err := icc.PredictPValues(ctx, query)
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float64{0.8, 0.4, 0.2}, p, 1e-12)

		result, err := icc.Predict(ctx, query)
		require.NoError(t, err)
		assert.Equal(t, 0, result.ClassPointPrediction())
		assert.InDelta(t, 0.6, result.Confidence(), 1e-12)
		assert.InDelta(t, 0.8, result.Credibility(), 1e-12)
		assert.Equal(t, []float64{0, 1}, result.LabelSet(0.3))
	})

	t.Run("label conditional", func(t *testing.T) {
		icc := scriptedICC(t, unsmoothed(), WithLabelConditional(true))
		p, err := icc.PredictPValues(ctx, query)
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float64{2.0 / 3, 0.5, 0.5}, p, 1e-12)
		assert.Equal(t, []int{2, 1, 1}, icc.Calibration().BucketSizes())
	})

	t.Run("smoothed ties", func(t *testing.T) {
		engine := pvalue.NewEngine(pvalue.WithRandomSource(constSource(0.5)))
		icc := scriptedICC(t, WithEngine(engine))
		p, err := icc.PredictPValues(ctx, query)
		require.NoError(t, err)
		// Class 0 ties one calibration score: (2 + 0.5*2)/5.
		assert.InDelta(t, 0.6, p[0], 1e-12)
		// Class 2 is above every calibration score, so smoothing does not apply.
		assert.InDelta(t, 0.2, p[2], 1e-12)
	})
}

func TestInductiveClassifierPredictLabels(t *testing.T) {
	ctx := context.Background()
	icc := scriptedICC(t, unsmoothed())
	query := []float64{0.7, 0.2, 0.1}

	included, err := icc.PredictLabels(ctx, query, 0.4)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, false}, included, "p = significance is included")

	_, err = icc.PredictLabels(ctx, query, 1.5)
	assert.ErrorIs(t, err, core.ErrInvalidSignificance)

	batch := mustRows(t, [][]float64{query, {0.05, 0.05, 0.9}}, []float64{0, 2})
	sets, err := icc.PredictLabelsBatch(ctx, batch.X, 0.4)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, included, sets[0])
	assert.Equal(t, []bool{false, false, true}, sets[1])
}

func TestInductiveClassifierNotTrained(t *testing.T) {
	ctx := context.Background()
	labels := dataset.NewLabels([]float64{0, 1})
	nc := nonconformity.NewClassProbability(testkit.NewNearestCentroid(1), labels)
	icc, err := NewInductiveClassifier(nc, labels, quiet())
	require.NoError(t, err)
	assert.False(t, icc.IsTrained())
	assert.Equal(t, -1, icc.AttributeCount())

	_, err = icc.PredictPValues(ctx, []float64{0, 0})
	assert.True(t, core.IsNotTrainedError(err))
	assert.Equal(t, errors.CodeNotTrained, errors.GetCode(err))

	cal := mustRows(t, [][]float64{{0, 0}}, []float64{0})
	err = icc.Calibrate(ctx, cal)
	assert.ErrorIs(t, err, core.ErrNotTrained, "calibrating before training is a configuration error")

	_, err = icc.State()
	assert.ErrorIs(t, err, core.ErrNotTrained)
}

func TestInductiveClassifierRejectsEmptySets(t *testing.T) {
	labels := dataset.NewLabels([]float64{0, 1})
	nc := nonconformity.NewClassProbability(testkit.NewNearestCentroid(1), labels)
	icc, err := NewInductiveClassifier(nc, labels, quiet())
	require.NoError(t, err)

	kit := testkit.NewTestKit(1)
	train := kit.TwoBlobs("train", 10)
	err = icc.Fit(context.Background(), dataset.DataSet{}, train)
	assert.ErrorIs(t, err, core.ErrEmptyTrainingSet)
	err = icc.Fit(context.Background(), train, dataset.DataSet{})
	assert.ErrorIs(t, err, core.ErrEmptyCalibration)

	_, err = NewInductiveClassifier(nil, labels)
	assert.Error(t, err)
	_, err = NewInductiveClassifier(nc, dataset.Labels{})
	assert.Error(t, err)
}

// TestSeparableBinaryProblem runs fit, calibrate and predict end to end on two
// well separated classes labelled -1 and +1.
func TestSeparableBinaryProblem(t *testing.T) {
	ctx := context.Background()
	kit := testkit.NewTestKit(2024)
	train := relabel(kit.TwoBlobs("train", 100), -1, 1)
	cal := relabel(kit.TwoBlobs("cal", 100), -1, 1)
	test := relabel(kit.TwoBlobs("test", 200), -1, 1)
	labels := train.Labels()
	require.Equal(t, []float64{-1, 1}, labels.Values())

	for _, kind := range []string{nonconformity.KindClassProbability, nonconformity.KindSVMDistance} {
		t.Run(kind, func(t *testing.T) {
			nc := buildBinaryFunction(t, kind, labels)
			engine := pvalue.NewEngine(pvalue.WithRandomSource(kit.Source("theta-" + kind)))
			icc, err := NewInductiveClassifier(nc, labels, WithEngine(engine), WithWorkers(4), quiet())
			require.NoError(t, err)
			require.NoError(t, icc.Fit(ctx, train, cal))

			results, err := icc.PredictBatch(ctx, test.X)
			require.NoError(t, err)
			require.Len(t, results, test.Rows())

			hits := make([]bool, len(results))
			singletons := make([]bool, len(results))
			for i, r := range results {
				idx, _ := labels.Index(test.Y[i])
				hits[i] = r.Includes(idx, 0.1)
				singletons[i] = r.SetSize(0.1) == 1
				assert.LessOrEqual(t, r.SetSize(0.1), 1, "separable classes never share a set")
			}
			assert.GreaterOrEqual(t, testkit.Coverage(hits), 0.85)
			assert.GreaterOrEqual(t, testkit.Coverage(singletons), 0.8)
		})
	}
}

func buildBinaryFunction(t *testing.T, kind string, labels dataset.Labels) ports.ClassificationNonconformityFunction {
	t.Helper()
	var model ports.Classifier = testkit.NewNearestCentroid(1)
	if kind == nonconformity.KindSVMDistance {
		model = testkit.NewLinearClassifier()
	}
	nc, err := nonconformity.NewClassification(kind, model, labels)
	require.NoError(t, err)
	return nc
}

// TestEmptyClassBucket covers a label-conditional classifier whose
// calibration set lacks one class entirely.
func TestEmptyClassBucket(t *testing.T) {
	ctx := context.Background()
	kit := testkit.NewTestKit(7)
	train := kit.ThreeBlobs("train", 40)
	cal := kit.ThreeBlobs("cal", 40)

	var keep []int
	for i, y := range cal.Y {
		if y != 2 {
			keep = append(keep, i)
		}
	}
	cal = cal.Subset(keep)

	logOpt, logs := observed(zapcore.WarnLevel)
	labels := train.Labels()
	nc := nonconformity.NewClassProbability(testkit.NewNearestCentroid(1), labels)
	icc, err := NewInductiveClassifier(nc, labels, WithLabelConditional(true), unsmoothed(), logOpt)
	require.NoError(t, err)
	require.NoError(t, icc.Fit(ctx, train, cal))

	assert.Equal(t, 0, icc.Calibration().BucketSizes()[2])
	assert.Equal(t, 1, logs.FilterMessageSnippet("no calibration examples").Len())

	result, err := icc.Predict(ctx, []float64{-2, 2})
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.PValues[2], "an empty bucket yields p = 0")
	assert.NotContains(t, result.LabelSet(0.01), 2.0)
	assert.Greater(t, result.PValues[0]+result.PValues[1], 0.0)
}

func TestInductiveClassifierSkipsUnknownCalibrationLabels(t *testing.T) {
	logOpt, logs := observed(zapcore.WarnLevel)
	icc := scriptedICC(t, unsmoothed(), logOpt)
	before := icc.Calibration().Len()

	cal := mustRows(t, [][]float64{{0.9, 0.05, 0.05}, {0.1, 0.1, 0.8}}, []float64{0, 7})
	require.NoError(t, icc.Calibrate(context.Background(), cal))
	assert.Equal(t, 1, icc.Calibration().Len())
	assert.NotEqual(t, before, icc.Calibration().Len())
	assert.Equal(t, 1, logs.FilterMessageSnippet("outside the 3 known classes").Len())

	onlyUnknown := mustRows(t, [][]float64{{0.1, 0.1, 0.8}}, []float64{9})
	err := icc.Calibrate(context.Background(), onlyUnknown)
	assert.ErrorIs(t, err, core.ErrEmptyCalibration)
}

func TestInductiveClassifierAlignsMismatchedInstances(t *testing.T) {
	ctx := context.Background()
	logOpt, logs := observed(zapcore.WarnLevel)
	icc := scriptedICC(t, unsmoothed(), logOpt)

	short, err := icc.PredictPValues(ctx, []float64{0.7, 0.2})
	require.NoError(t, err)
	padded, err := icc.PredictPValues(ctx, []float64{0.7, 0.2, 0})
	require.NoError(t, err)
	assert.Equal(t, padded, short, "short instances are zero-extended")

	long, err := icc.PredictPValues(ctx, []float64{0.7, 0.2, 0.1, 99})
	require.NoError(t, err)
	exact, err := icc.PredictPValues(ctx, []float64{0.7, 0.2, 0.1})
	require.NoError(t, err)
	assert.Equal(t, exact, long, "long instances are truncated")

	assert.Equal(t, 1, logs.FilterMessageSnippet("attributes").Len(), "the mismatch is reported once")
}

func TestInductiveClassifierBatchPreservesOrder(t *testing.T) {
	ctx := context.Background()
	kit := testkit.NewTestKit(11)
	train := kit.ThreeBlobs("train", 50)
	cal := kit.ThreeBlobs("cal", 50)
	test := kit.ThreeBlobs("test", 40)

	labels := train.Labels()
	nc := nonconformity.NewClassProbability(testkit.NewNearestCentroid(1), labels)
	icc, err := NewInductiveClassifier(nc, labels, unsmoothed(), WithWorkers(8), quiet())
	require.NoError(t, err)
	require.NoError(t, icc.Fit(ctx, train, cal))

	batch, err := icc.PredictPValuesBatch(ctx, test.X)
	require.NoError(t, err)
	rows, cols := batch.Dims()
	require.Equal(t, test.Rows(), rows)
	require.Equal(t, 3, cols)

	for i := 0; i < rows; i++ {
		single, err := icc.PredictPValues(ctx, test.Row(i))
		require.NoError(t, err)
		assert.Equal(t, single, batch.RawRowView(i), "row %d", i)
	}

	results, err := icc.PredictBatch(ctx, test.X)
	require.NoError(t, err)
	for i, r := range results {
		for _, p := range r.PValues {
			assert.True(t, p > 0 && p <= 1, "row %d p-value %v outside (0, 1]", i, p)
		}
	}
}

func TestInductiveClassifierBatchCancellation(t *testing.T) {
	icc := scriptedICC(t, unsmoothed())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := mustRows(t, [][]float64{{0.7, 0.2, 0.1}, {0.1, 0.1, 0.8}}, []float64{0, 2})
	_, err := icc.PredictBatch(ctx, batch.X)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInductiveClassifierStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	kit := testkit.NewTestKit(5)
	train := kit.ThreeBlobs("train", 30)
	cal := kit.ThreeBlobs("cal", 30)
	labels := train.Labels()

	model := testkit.NewNearestCentroid(1)
	nc := nonconformity.NewClassProbability(model, labels)
	icc, err := NewInductiveClassifier(nc, labels, WithLabelConditional(true), unsmoothed(), quiet())
	require.NoError(t, err)
	require.NoError(t, icc.Fit(ctx, train, cal))

	state, err := icc.State()
	require.NoError(t, err)
	assert.Equal(t, icc.ID(), state.ID)
	assert.False(t, state.Smoothing)
	assert.Len(t, state.ClassCalibration, 3)

	restored, err := RestoreInductiveClassifier(state, nc, quiet())
	require.NoError(t, err)
	assert.Equal(t, icc.ID(), restored.ID())
	assert.True(t, restored.Labels().Equal(labels))

	query := []float64{0.5, 1.5}
	want, err := icc.PredictPValues(ctx, query)
	require.NoError(t, err)
	got, err := restored.PredictPValues(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	other := nonconformity.NewClassFrequency(labels)
	require.NoError(t, other.Fit(train.X, train.Y))
	_, err = RestoreInductiveClassifier(state, other)
	assert.Error(t, err, "a different nonconformity kind is rejected")

	_, err = RestoreInductiveClassifier(state, nonconformity.NewClassProbability(testkit.NewNearestCentroid(1), labels))
	assert.ErrorIs(t, err, core.ErrNotTrained)
}

func TestClassificationsHelper(t *testing.T) {
	icc := scriptedICC(t, unsmoothed())
	batch := mustRows(t, [][]float64{{0.7, 0.2, 0.1}}, []float64{0})
	results, err := icc.PredictBatch(context.Background(), batch.X)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.IsType(t, conformal.Classification{}, results[0])
	assert.InDelta(t, 1.4, results[0].Sum(), 1e-12)
}
