package app

import (
	"context"
	"testing"

	"gocp/adapters/nonconformity"
	"gocp/domain/conformal"
	"gocp/domain/core"
	"gocp/domain/dataset"
	"gocp/internal/isotonic"
	"gocp/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// echoClassifier returns the instance itself as its p-values, which makes
// confidence and credibility directly controllable.
type echoClassifier struct {
	labels  dataset.Labels
	trained bool
}

func (e echoClassifier) PredictPValues(_ context.Context, instance []float64) ([]float64, error) {
	return append([]float64(nil), instance...), nil
}

func (e echoClassifier) Predict(ctx context.Context, instance []float64) (conformal.Classification, error) {
	p, _ := e.PredictPValues(ctx, instance)
	return conformal.NewClassification(p, e.labels), nil
}

func (e echoClassifier) PredictBatch(ctx context.Context, x mat.Matrix) ([]conformal.Classification, error) {
	rows, _ := x.Dims()
	out := make([]conformal.Classification, rows)
	for i := range out {
		out[i], _ = e.Predict(ctx, mat.Row(nil, i, x))
	}
	return out, nil
}

func (e echoClassifier) Labels() dataset.Labels { return e.labels }

func (e echoClassifier) AttributeCount() int { return e.labels.Len() }

func (e echoClassifier) IsTrained() bool { return e.trained }

func TestMultiProbabilisticBounds(t *testing.T) {
	ctx := context.Background()
	base := echoClassifier{labels: dataset.NewLabels([]float64{0, 1}), trained: true}
	mpc, err := NewMultiProbabilisticClassifier(base, quiet())
	require.NoError(t, err)

	// Two predictions land in cell (0.8, 0.8), one right and one wrong; a
	// correct one lands in (0.8, 0.2) and must be pooled down to 2/3.
	cal := mustRows(t, [][]float64{{0.9, 0.1}, {0.9, 0.1}, {0.3, 0.1}}, []float64{0, 1, 0})
	require.NoError(t, mpc.Calibrate(ctx, cal))
	require.Equal(t, 2, mpc.Grid().Len())
	for _, c := range mpc.Grid().Cells() {
		assert.InDelta(t, 2.0/3, c.Value, 1e-12)
	}

	got, err := mpc.Predict(ctx, []float64{0.9, 0.1})
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3, got.Lower, 1e-12)
	assert.InDelta(t, 2.0/3, got.Upper, 1e-12)
	assert.True(t, got.Consistent())
	assert.Equal(t, 0, got.ClassPointPrediction())

	// Credibility 0.05 lies below every populated column, so the lower
	// bound falls back to 0.
	sparse, err := mpc.Predict(ctx, []float64{0.05, 0.01})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sparse.Lower)
	assert.InDelta(t, 2.0/3, sparse.Upper, 1e-12)

	batch := mustRows(t, [][]float64{{0.9, 0.1}, {0.05, 0.01}}, []float64{0, 0})
	all, err := mpc.PredictBatch(ctx, batch.X)
	require.NoError(t, err)
	assert.Equal(t, []conformal.MultiProbabilisticClassification{got, sparse}, all)

	p, err := mpc.PredictPValues(ctx, []float64{0.4, 0.6})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.4, 0.6}, p)
}

func TestMultiProbabilisticRequiresTrainedBase(t *testing.T) {
	base := echoClassifier{labels: dataset.NewLabels([]float64{0, 1})}
	_, err := NewMultiProbabilisticClassifier(base)
	assert.ErrorIs(t, err, core.ErrNotTrained)

	base.trained = true
	mpc, err := NewMultiProbabilisticClassifier(base, quiet())
	require.NoError(t, err)
	assert.False(t, mpc.IsTrained())
	_, err = mpc.Predict(context.Background(), []float64{0.5, 0.5})
	assert.ErrorIs(t, err, core.ErrNotTrained)
	err = mpc.Calibrate(context.Background(), dataset.DataSet{})
	assert.ErrorIs(t, err, core.ErrEmptyCalibration)
}

func TestMultiProbabilisticOverInductiveClassifier(t *testing.T) {
	ctx := context.Background()
	kit := testkit.NewTestKit(17)
	train := kit.ThreeBlobs("train", 60)
	cal := kit.ThreeBlobs("cal", 60)
	cal2 := kit.ThreeBlobs("cal2", 100)
	test := kit.ThreeBlobs("test", 30)
	labels := train.Labels()

	nc := nonconformity.NewClassProbability(testkit.NewNearestCentroid(1), labels)
	icc, err := NewInductiveClassifier(nc, labels, unsmoothed(), quiet())
	require.NoError(t, err)
	require.NoError(t, icc.Fit(ctx, train, cal))

	mpc, err := NewMultiProbabilisticClassifier(icc, WithGridConfig(isotonic.Config{Resolution: 4}), quiet())
	require.NoError(t, err)
	require.NoError(t, mpc.Calibrate(ctx, cal2))
	assert.Equal(t, 4, mpc.Grid().Resolution())
	assert.Positive(t, mpc.Grid().Len())

	results, err := mpc.PredictBatch(ctx, test.X)
	require.NoError(t, err)
	require.Len(t, results, test.Rows())
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Lower, 0.0)
		assert.LessOrEqual(t, r.Upper, 1.0)
		assert.Len(t, r.PValues, 3)
	}
}
