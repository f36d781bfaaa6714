package api

import "time"

// ModelInfo describes a served model.
type ModelInfo struct {
	Name         string    `json:"name"`
	Kind         string    `json:"kind"`
	Attributes   int       `json:"attributes"`
	Labels       []float64 `json:"labels,omitempty"`
	IntervalRule string    `json:"interval_rule,omitempty"`
}

// ClassifyRequest asks for conformal classifications of a batch of rows.
type ClassifyRequest struct {
	Instances [][]float64 `json:"instances" binding:"required,min=1"`
	// Significance selects the prediction set; 0 uses the server default.
	Significance float64 `json:"significance"`
}

// Classification is the answer for one row.
type Classification struct {
	PValues         []float64 `json:"p_values"`
	PredictionSet   []float64 `json:"prediction_set"`
	PointPrediction *float64  `json:"point_prediction"`
	Confidence      float64   `json:"confidence"`
	Credibility     float64   `json:"credibility"`
	Lower           *float64  `json:"lower,omitempty"`
	Upper           *float64  `json:"upper,omitempty"`
}

// ClassifyResponse carries one classification per request row.
type ClassifyResponse struct {
	Model          string           `json:"model"`
	Significance   float64          `json:"significance"`
	Classification []Classification `json:"classifications"`
}

// IntervalRequest asks for prediction intervals of a batch of rows.
type IntervalRequest struct {
	Instances [][]float64 `json:"instances" binding:"required,min=1"`
	// Confidence must lie in (0, 1); 0 uses one minus the default significance.
	Confidence float64 `json:"confidence"`
}

// Interval is the answer for one row.
type Interval struct {
	Point float64 `json:"point"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// IntervalResponse carries one interval per request row.
type IntervalResponse struct {
	Model      string     `json:"model"`
	Confidence float64    `json:"confidence"`
	Intervals  []Interval `json:"intervals"`
}

// SnapshotInfo is a snapshot envelope without its payload.
type SnapshotInfo struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	ModelID   string    `json:"model_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
