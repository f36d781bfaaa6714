package snapshot

import (
	"encoding/json"
	"time"

	"gocp/domain/core"
)

// Kind names the predictor a snapshot was taken from.
type Kind string

const (
	KindInductiveClassifier    Kind = "inductive_classifier"
	KindTransductiveClassifier Kind = "transductive_classifier"
	KindInductiveRegressor     Kind = "inductive_regressor"
)

// FormatVersion is bumped when the payload layout changes incompatibly.
const FormatVersion = 1

// Snapshot is the stored envelope of a calibrated predictor. Payload holds
// the predictor's state as JSON; the trained underlying model is not part of it.
type Snapshot struct {
	ID        core.ID         `json:"id" db:"id"`
	Version   int             `json:"version" db:"version"`
	Kind      Kind            `json:"kind" db:"kind"`
	ModelID   core.ModelID    `json:"model_id" db:"model_id"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	Payload   json.RawMessage `json:"payload" db:"payload"`
}

// New wraps payload in a fresh envelope.
func New(kind Kind, modelID core.ModelID, payload json.RawMessage) Snapshot {
	return Snapshot{
		ID:        core.NewID(),
		Version:   FormatVersion,
		Kind:      kind,
		ModelID:   modelID,
		CreatedAt: time.Now().UTC(),
		Payload:   payload,
	}
}
