package nonconformity

import (
	"fmt"
	"sort"
	"strings"

	"gocp/domain/core"
	"gocp/domain/dataset"
	"gocp/ports"
)

type classificationBuilder func(model ports.Classifier, labels dataset.Labels, opts []Option) (ports.ClassificationNonconformityFunction, error)

type regressionBuilder func(model ports.Regressor, opts []Option) (ports.RegressionNonconformityFunction, error)

var classificationBuilders = map[string]classificationBuilder{
	KindClassProbability: func(model ports.Classifier, labels dataset.Labels, opts []Option) (ports.ClassificationNonconformityFunction, error) {
		probabilistic, err := probabilities(model, labels)
		if err != nil {
			return nil, err
		}
		return NewClassProbability(probabilistic, labels, opts...), nil
	},
	KindHingeLoss: func(model ports.Classifier, labels dataset.Labels, opts []Option) (ports.ClassificationNonconformityFunction, error) {
		probabilistic, err := probabilities(model, labels)
		if err != nil {
			return nil, err
		}
		return NewHingeLoss(probabilistic, labels, opts...), nil
	},
	KindSVMDistance: func(model ports.Classifier, labels dataset.Labels, opts []Option) (ports.ClassificationNonconformityFunction, error) {
		svm, ok := model.(ports.SVMClassifier)
		if !ok {
			return nil, fmt.Errorf("%w: %s needs a classifier with a separating plane, got %T", core.ErrUnsupportedOperation, KindSVMDistance, model)
		}
		fn, err := NewSVMDistance(svm, labels, opts...)
		if err != nil {
			return nil, err
		}
		return fn, nil
	},
	KindAverage: func(_ ports.Classifier, labels dataset.Labels, opts []Option) (ports.ClassificationNonconformityFunction, error) {
		return NewClassFrequency(labels, opts...), nil
	},
}

var regressionBuilders = map[string]regressionBuilder{
	KindAbsoluteError: func(model ports.Regressor, opts []Option) (ports.RegressionNonconformityFunction, error) {
		return NewAbsoluteError(model, opts...), nil
	},
	KindSquaredError: func(model ports.Regressor, opts []Option) (ports.RegressionNonconformityFunction, error) {
		return NewSquaredError(model, opts...), nil
	},
}

// NewClassification builds the named classification function around model.
// Probability-based functions accept hard classifiers through the bogus
// probability adapter; the average function ignores model and may get nil.
func NewClassification(kind string, model ports.Classifier, labels dataset.Labels, opts ...Option) (ports.ClassificationNonconformityFunction, error) {
	build, ok := classificationBuilders[normalize(kind)]
	if !ok {
		return nil, core.NewUnknownFunctionError(kind)
	}
	if model == nil && normalize(kind) != KindAverage {
		return nil, fmt.Errorf("%s needs an underlying classifier", kind)
	}
	return build(model, labels, opts)
}

// NewRegression builds the named regression function around model.
func NewRegression(kind string, model ports.Regressor, opts ...Option) (ports.RegressionNonconformityFunction, error) {
	build, ok := regressionBuilders[normalize(kind)]
	if !ok {
		return nil, core.NewUnknownFunctionError(kind)
	}
	if model == nil {
		return nil, fmt.Errorf("%s needs an underlying regressor", kind)
	}
	return build(model, opts)
}

// ClassificationKinds lists the registered classification function names.
func ClassificationKinds() []string {
	return keys(classificationBuilders)
}

// RegressionKinds lists the registered regression function names.
func RegressionKinds() []string {
	return keys(regressionBuilders)
}

// IsClassificationKind reports whether name is a known classification function.
func IsClassificationKind(name string) bool {
	_, ok := classificationBuilders[normalize(name)]
	return ok
}

// IsRegressionKind reports whether name is a known regression function.
func IsRegressionKind(name string) bool {
	_, ok := regressionBuilders[normalize(name)]
	return ok
}

func probabilities(model ports.Classifier, labels dataset.Labels) (ports.ClassProbabilityClassifier, error) {
	if probabilistic, ok := model.(ports.ClassProbabilityClassifier); ok {
		return probabilistic, nil
	}
	return NewBogusProbabilities(model, labels)
}

func normalize(kind string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(kind)), "-", "_")
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
