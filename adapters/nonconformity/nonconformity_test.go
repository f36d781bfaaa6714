package nonconformity

import (
	"context"
	"testing"

	"gocp/domain/core"
	"gocp/domain/dataset"
	"gocp/internal"
	"gocp/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func fixedProbabilities(probs ...float64) func([]float64) []float64 {
	return func([]float64) []float64 { return probs }
}

func mustRows(t *testing.T, rows [][]float64, y []float64) dataset.DataSet {
	t.Helper()
	ds, err := dataset.FromRows(rows, y)
	require.NoError(t, err)
	return ds
}

func TestClassProbabilityScore(t *testing.T) {
	labels := dataset.NewLabels([]float64{0, 1, 2})
	model := testkit.NewScriptedClassifier(fixedProbabilities(0.7, 0.2, 0.1))
	train := mustRows(t, [][]float64{{0}, {1}, {2}}, []float64{0, 1, 2})

	fn := NewClassProbability(model, labels)
	assert.False(t, fn.IsTrained())
	require.NoError(t, fn.Fit(train.X, train.Y))
	assert.True(t, fn.IsTrained())
	assert.Equal(t, 1, fn.AttributeCount())
	assert.Same(t, model, fn.Classifier())

	assert.InDelta(t, 0.3, fn.Score([]float64{5}, 0), 1e-12)
	assert.InDelta(t, 0.9, fn.Score([]float64{5}, 2), 1e-12)
	assert.Equal(t, 1.0, fn.Score([]float64{5}, 42), "unknown labels are maximally strange")

	hinge := NewHingeLoss(model, labels)
	assert.Equal(t, KindHingeLoss, hinge.Kind())
	assert.Equal(t, KindClassProbability, fn.Kind())
	assert.Equal(t, fn.Score([]float64{1}, 1), hinge.Score([]float64{1}, 1))
}

// TestScoresMatchRowByRow checks the parallel batch path against single scores
func TestScoresMatchRowByRow(t *testing.T) {
	kit := testkit.NewTestKit(9)
	train := kit.ThreeBlobs("train", 40)
	test := kit.ThreeBlobs("test", 30)

	fn := NewClassProbability(testkit.NewNearestCentroid(1), train.Labels(), WithWorkers(4))
	require.NoError(t, fn.Fit(train.X, train.Y))

	scores, err := fn.Scores(context.Background(), test.X, test.Y)
	require.NoError(t, err)
	require.Len(t, scores, test.Rows())
	for i, s := range scores {
		assert.Equal(t, fn.Score(test.Row(i), test.Y[i]), s, "row %d", i)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}

	_, err = fn.Scores(context.Background(), test.X, test.Y[:3])
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestScoresWarnOnPoorBinaryModel(t *testing.T) {
	obsCore, logs := observer.New(zapcore.WarnLevel)
	logger := internal.NewLoggerFromZap(zap.New(obsCore))

	labels := dataset.NewLabels([]float64{0, 1})
	model := testkit.NewScriptedClassifier(fixedProbabilities(0.8, 0.2))
	data := mustRows(t, [][]float64{{0}, {1}, {2}}, []float64{0, 1, 1})

	fn := NewClassProbability(model, labels, WithLogger(logger))
	require.NoError(t, fn.Fit(data.X, data.Y))
	_, err := fn.Scores(context.Background(), data.X, data.Y)
	require.NoError(t, err)

	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "2 of 3 rows")
}

func TestFitNewLeavesReceiverUntouched(t *testing.T) {
	kit := testkit.NewTestKit(4)
	a := kit.TwoBlobs("a", 30)
	b := kit.GaussianBlobs("b", 30, [][]float64{{5, 5}, {-5, -5}}, 1)

	fn := NewClassProbability(testkit.NewNearestCentroid(1), a.Labels())
	require.NoError(t, fn.Fit(a.X, a.Y))
	before := fn.Score([]float64{1, 1}, 1)

	clone, err := fn.FitNew(b.X, b.Y)
	require.NoError(t, err)
	assert.Equal(t, before, fn.Score([]float64{1, 1}, 1))
	assert.NotEqual(t, before, clone.Score([]float64{1, 1}, 1))
	assert.Equal(t, KindClassProbability, clone.Kind())
}

func TestSVMDistance(t *testing.T) {
	kit := testkit.NewTestKit(5)
	train := kit.TwoBlobs("train", 50)

	fn, err := NewSVMDistance(testkit.NewLinearClassifier(), train.Labels())
	require.NoError(t, err)
	require.NoError(t, fn.Fit(train.X, train.Y))

	deepPositive := []float64{4, 0}
	assert.Less(t, fn.Score(deepPositive, 1), 0.0, "correct side conforms")
	assert.Greater(t, fn.Score(deepPositive, 0), 0.0, "wrong side is strange")
	assert.InDelta(t, -fn.Score(deepPositive, 1), fn.Score(deepPositive, 0), 1e-12)

	_, err = NewSVMDistance(testkit.NewLinearClassifier(), dataset.NewLabels([]float64{0, 1, 2}))
	assert.ErrorIs(t, err, core.ErrTooManyClasses)
}

func TestClassFrequency(t *testing.T) {
	labels := dataset.NewLabels([]float64{0, 1})
	data := mustRows(t, [][]float64{{0}, {0}, {0}, {0}}, []float64{0, 0, 0, 1})

	fn := NewClassFrequency(labels)
	assert.Nil(t, fn.Classifier())
	require.NoError(t, fn.Fit(data.X, data.Y))
	assert.InDelta(t, 0.25, fn.Score(nil, 0), 1e-12)
	assert.InDelta(t, 0.75, fn.Score(nil, 1), 1e-12)

	augmented := mustRows(t, [][]float64{{0}, {0}, {0}, {0}, {9}}, []float64{0, 0, 0, 1, 1})
	clone, err := fn.FitNew(augmented.X, augmented.Y)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, clone.Score(nil, 1), 1e-12)
	assert.InDelta(t, 0.75, fn.Score(nil, 1), 1e-12)
}

func TestResidualFunctions(t *testing.T) {
	model := testkit.NewScriptedRegressor(func(x []float64) float64 { return 2 * x[0] })
	data := mustRows(t, [][]float64{{1}, {2}}, []float64{3, 3})

	abs := NewAbsoluteError(model)
	require.NoError(t, abs.Fit(data.X, data.Y))
	assert.Equal(t, 1.0, abs.Score([]float64{1}, 3))
	assert.Equal(t, 1.0, abs.Score([]float64{2}, 3))
	assert.Equal(t, 4.0, abs.Predict([]float64{2}))
	assert.Equal(t, 2.5, abs.Epsilon(2.5))

	sq := NewSquaredError(model)
	assert.Equal(t, 4.0, sq.Score([]float64{1}, 4))
	assert.Equal(t, 3.0, sq.Epsilon(9))

	scores, err := sq.Scores(context.Background(), data.X, data.Y)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, scores)
}

func TestBogusProbabilities(t *testing.T) {
	kit := testkit.NewTestKit(6)
	train := kit.TwoBlobs("train", 40)

	adapter, err := NewBogusProbabilities(testkit.NewLinearClassifier(), train.Labels())
	require.NoError(t, err)
	require.NoError(t, adapter.Fit(train.X, train.Y))

	probs := make([]float64, 2)
	assert.Equal(t, 1.0, adapter.PredictProbabilities([]float64{4, 0}, probs))
	assert.Equal(t, []float64{0, 1}, probs)
	assert.Equal(t, 0.0, adapter.PredictProbabilities([]float64{-4, 0}, probs))
	assert.Equal(t, []float64{1, 0}, probs)

	single := []float64{0}
	adapter.PredictProbabilities([]float64{4, 0}, single)
	assert.Equal(t, []float64{1}, single)

	_, err = NewBogusProbabilities(testkit.NewLinearClassifier(), dataset.NewLabels([]float64{0, 1, 2}))
	assert.ErrorIs(t, err, core.ErrTooManyClasses)
}

func TestFactory(t *testing.T) {
	binary := dataset.NewLabels([]float64{0, 1})
	three := dataset.NewLabels([]float64{0, 1, 2})

	tests := []struct {
		name    string
		kind    string
		model   interface{}
		labels  dataset.Labels
		wantErr error
	}{
		{"probability", "class_probability", testkit.NewNearestCentroid(1), three, nil},
		{"normalised name", "Class-Probability", testkit.NewNearestCentroid(1), three, nil},
		{"hinge via adapter", "hinge_loss", testkit.NewLinearClassifier(), binary, nil},
		{"adapter rejects three classes", "class_probability", testkit.NewLinearClassifier(), three, core.ErrTooManyClasses},
		{"svm", "svm_distance", testkit.NewLinearClassifier(), binary, nil},
		{"svm needs a plane", "svm_distance", testkit.NewNearestCentroid(1), binary, core.ErrUnsupportedOperation},
		{"average", "average", nil, three, nil},
		{"unknown", "random_forest", testkit.NewNearestCentroid(1), three, core.ErrUnknownNonconformityFunction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fn interface{ Kind() string }
			var err error
			switch m := tt.model.(type) {
			case *testkit.NearestCentroid:
				fn, err = NewClassification(tt.kind, m, tt.labels)
			case *testkit.LinearClassifier:
				fn, err = NewClassification(tt.kind, m, tt.labels)
			default:
				fn, err = NewClassification(tt.kind, nil, tt.labels)
			}
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, IsClassificationKind(fn.Kind()))
		})
	}

	_, err := NewRegression("absolute_error", testkit.NewLeastSquaresRegressor())
	assert.NoError(t, err)
	_, err = NewRegression("huber", testkit.NewLeastSquaresRegressor())
	assert.ErrorIs(t, err, core.ErrUnknownNonconformityFunction)

	assert.Equal(t, []string{"average", "class_probability", "hinge_loss", "svm_distance"}, ClassificationKinds())
	assert.Equal(t, []string{"absolute_error", "squared_error"}, RegressionKinds())
}

// TestScoreLabelsMatchesScore checks the single-pass path against per-label scores
func TestScoreLabelsMatchesScore(t *testing.T) {
	kit := testkit.NewTestKit(12)
	three := kit.ThreeBlobs("train", 30)
	two := kit.TwoBlobs("train", 30)

	prob := NewClassProbability(testkit.NewNearestCentroid(1), three.Labels())
	require.NoError(t, prob.Fit(three.X, three.Y))
	svm, err := NewSVMDistance(testkit.NewLinearClassifier(), two.Labels())
	require.NoError(t, err)
	require.NoError(t, svm.Fit(two.X, two.Y))
	freq := NewClassFrequency(three.Labels())
	require.NoError(t, freq.Fit(three.X, three.Y))

	type labelScorer interface {
		Score([]float64, float64) float64
		ScoreLabels([]float64, []float64)
	}
	cases := []struct {
		name   string
		fn     labelScorer
		labels dataset.Labels
	}{
		{"probability", prob, three.Labels()},
		{"svm", svm, two.Labels()},
		{"frequency", freq, three.Labels()},
	}
	instance := []float64{0.5, 1}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dst := make([]float64, tc.labels.Len())
			tc.fn.ScoreLabels(instance, dst)
			for k := range dst {
				assert.InDelta(t, tc.fn.Score(instance, tc.labels.At(k)), dst[k], 1e-12)
			}
		})
	}
}
