// Package persistence stores snapshots of calibrated conformal predictors.
// A snapshot holds everything but the trained underlying model, which the
// caller supplies again on load.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"gocp/app"
	"gocp/domain/core"
	"gocp/domain/snapshot"
	"gocp/internal/errors"
	"gocp/ports"
)

// Storage turns predictors into snapshots and back, over any repository.
type Storage struct {
	repo ports.SnapshotRepository
}

// NewStorage creates a storage that keeps snapshots as JSON files in baseDir.
func NewStorage(baseDir string) *Storage {
	return NewStorageWith(NewFileRepository(baseDir))
}

// NewStorageWith creates a storage over repo.
func NewStorageWith(repo ports.SnapshotRepository) *Storage {
	return &Storage{repo: repo}
}

// Repository returns the backing repository.
func (s *Storage) Repository() ports.SnapshotRepository { return s.repo }

// SaveInductiveClassifier stores a snapshot of c and returns its ID.
func (s *Storage) SaveInductiveClassifier(ctx context.Context, c *app.InductiveClassifier) (core.ID, error) {
	state, err := c.State()
	if err != nil {
		return "", err
	}
	return s.save(ctx, snapshot.KindInductiveClassifier, c.ID(), state)
}

// SaveTransductiveClassifier stores a snapshot of c and returns its ID.
func (s *Storage) SaveTransductiveClassifier(ctx context.Context, c *app.TransductiveClassifier) (core.ID, error) {
	state, err := c.State()
	if err != nil {
		return "", err
	}
	return s.save(ctx, snapshot.KindTransductiveClassifier, c.ID(), state)
}

// SaveInductiveRegressor stores a snapshot of r and returns its ID.
func (s *Storage) SaveInductiveRegressor(ctx context.Context, r *app.InductiveRegressor) (core.ID, error) {
	state, err := r.State()
	if err != nil {
		return "", err
	}
	return s.save(ctx, snapshot.KindInductiveRegressor, r.ID(), state)
}

// LoadInductiveClassifier restores the snapshot with the given ID around nc.
func (s *Storage) LoadInductiveClassifier(ctx context.Context, id core.ID, nc ports.ClassificationNonconformityFunction, opts ...app.Option) (*app.InductiveClassifier, error) {
	var state app.InductiveClassifierState
	if err := s.load(ctx, id, snapshot.KindInductiveClassifier, &state); err != nil {
		return nil, err
	}
	return app.RestoreInductiveClassifier(state, nc, opts...)
}

// LoadTransductiveClassifier restores the snapshot with the given ID around prototype.
func (s *Storage) LoadTransductiveClassifier(ctx context.Context, id core.ID, prototype ports.ClassificationNonconformityFunction, opts ...app.Option) (*app.TransductiveClassifier, error) {
	var state app.TransductiveClassifierState
	if err := s.load(ctx, id, snapshot.KindTransductiveClassifier, &state); err != nil {
		return nil, err
	}
	return app.RestoreTransductiveClassifier(ctx, state, prototype, opts...)
}

// LoadInductiveRegressor restores the snapshot with the given ID around nc.
func (s *Storage) LoadInductiveRegressor(ctx context.Context, id core.ID, nc ports.RegressionNonconformityFunction, opts ...app.Option) (*app.InductiveRegressor, error) {
	var state app.InductiveRegressorState
	if err := s.load(ctx, id, snapshot.KindInductiveRegressor, &state); err != nil {
		return nil, err
	}
	return app.RestoreInductiveRegressor(state, nc, opts...)
}

// List returns the stored snapshot envelopes, newest first.
func (s *Storage) List(ctx context.Context) ([]snapshot.Snapshot, error) {
	return s.repo.List(ctx)
}

// Delete removes a snapshot.
func (s *Storage) Delete(ctx context.Context, id core.ID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Storage) save(ctx context.Context, kind snapshot.Kind, modelID core.ModelID, state any) (core.ID, error) {
	payload, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s state: %w", kind, err)
	}
	snap := snapshot.New(kind, modelID, payload)
	if err := s.repo.Put(ctx, snap); err != nil {
		return "", errors.Wrapf(err, "failed to store %s snapshot", kind)
	}
	return snap.ID, nil
}

func (s *Storage) load(ctx context.Context, id core.ID, want snapshot.Kind, state any) error {
	snap, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	return DecodePayload(snap, want, state)
}

// Encode writes snap as indented JSON.
func Encode(w io.Writer, snap snapshot.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// Decode reads one snapshot envelope and checks its format version.
func Decode(r io.Reader) (snapshot.Snapshot, error) {
	var snap snapshot.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if err := CheckVersion(snap); err != nil {
		return snapshot.Snapshot{}, err
	}
	return snap, nil
}

// CheckVersion rejects envelopes written by an incompatible format.
func CheckVersion(snap snapshot.Snapshot) error {
	if snap.Version != snapshot.FormatVersion {
		return errors.New(errors.CodeDataMismatch, fmt.Sprintf("snapshot format %d is not supported", snap.Version))
	}
	return nil
}

// DecodePayload unmarshals the payload into state after checking the kind.
func DecodePayload(snap snapshot.Snapshot, want snapshot.Kind, state any) error {
	if snap.Kind != want {
		return errors.InvalidInput(fmt.Sprintf("snapshot %s holds a %s, not a %s", snap.ID, snap.Kind, want))
	}
	if err := json.Unmarshal(snap.Payload, state); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", want, err)
	}
	return nil
}
