package api

import (
	"sort"
	"sync"

	"gocp/app"
	"gocp/internal/errors"
	"gocp/ports"
)

// Model kinds reported by the API.
const (
	KindClassifier         = "classifier"
	KindMultiProbabilistic = "multiprobabilistic"
	KindRegressor          = "regressor"
)

// model is one served predictor; exactly one of the predictor fields is set.
type model struct {
	name       string
	classifier ports.ConformalClassifier
	mpc        *app.MultiProbabilisticClassifier
	regressor  *app.InductiveRegressor
}

func (m *model) kind() string {
	switch {
	case m.mpc != nil:
		return KindMultiProbabilistic
	case m.regressor != nil:
		return KindRegressor
	default:
		return KindClassifier
	}
}

func (m *model) info() ModelInfo {
	info := ModelInfo{Name: m.name, Kind: m.kind()}
	switch {
	case m.mpc != nil:
		info.Attributes = m.mpc.Base().AttributeCount()
		info.Labels = m.mpc.Labels().Values()
	case m.regressor != nil:
		info.Attributes = m.regressor.AttributeCount()
		info.IntervalRule = string(m.regressor.IntervalRule())
	default:
		info.Attributes = m.classifier.AttributeCount()
		info.Labels = m.classifier.Labels().Values()
	}
	return info
}

// Registry holds the predictors a server exposes, by name.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*model
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*model)}
}

// RegisterClassifier serves an inductive or transductive classifier.
func (r *Registry) RegisterClassifier(name string, c ports.ConformalClassifier) error {
	return r.register(&model{name: name, classifier: c}, c != nil && c.IsTrained())
}

// RegisterMultiProbabilistic serves a calibrated multi-probabilistic classifier.
func (r *Registry) RegisterMultiProbabilistic(name string, m *app.MultiProbabilisticClassifier) error {
	return r.register(&model{name: name, mpc: m}, m != nil && m.IsTrained())
}

// RegisterRegressor serves an inductive regressor.
func (r *Registry) RegisterRegressor(name string, reg *app.InductiveRegressor) error {
	return r.register(&model{name: name, regressor: reg}, reg != nil && reg.IsTrained())
}

func (r *Registry) register(m *model, trained bool) error {
	if m.name == "" {
		return errors.InvalidInput("model name must not be empty")
	}
	if !trained {
		return errors.NotTrained(m.name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.models[m.name]; dup {
		return errors.InvalidInput("model " + m.name + " is already registered")
	}
	r.models[m.name] = m
	return nil
}

func (r *Registry) get(name string) (*model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	if !ok {
		return nil, errors.NotFound("model " + name)
	}
	return m, nil
}

// List describes the registered models sorted by name.
func (r *Registry) List() []ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModelInfo, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
