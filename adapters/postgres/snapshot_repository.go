package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"gocp/domain/core"
	"gocp/domain/snapshot"
	"gocp/internal/errors"
	"gocp/internal/migration"
	"gocp/internal/persistence"
	"gocp/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// SnapshotRepositoryImpl implements SnapshotRepository for PostgreSQL
type SnapshotRepositoryImpl struct {
	db *sqlx.DB
}

// NewSnapshotRepository creates a new PostgreSQL snapshot repository
func NewSnapshotRepository(db *sqlx.DB) ports.SnapshotRepository {
	return &SnapshotRepositoryImpl{db: db}
}

// Connect opens the database, checks it answers and runs the migrations.
func Connect(ctx context.Context, url string) (*sqlx.DB, error) {
	if url == "" {
		return nil, errors.ConfigInvalid("database URL is required")
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "database migration failed")
	}
	return db, nil
}

// snapshotRow is the column layout of predictor_snapshots.
type snapshotRow struct {
	ID        string    `db:"id"`
	Version   int       `db:"version"`
	Kind      string    `db:"kind"`
	ModelID   string    `db:"model_id"`
	CreatedAt time.Time `db:"created_at"`
	Payload   []byte    `db:"payload"`
}

func (row snapshotRow) snapshot() snapshot.Snapshot {
	return snapshot.Snapshot{
		ID:        core.ID(row.ID),
		Version:   row.Version,
		Kind:      snapshot.Kind(row.Kind),
		ModelID:   core.ModelID(row.ModelID),
		CreatedAt: row.CreatedAt.UTC(),
		Payload:   row.Payload,
	}
}

// Put inserts a snapshot.
func (r *SnapshotRepositoryImpl) Put(ctx context.Context, snap snapshot.Snapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO predictor_snapshots (id, version, kind, model_id, created_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
	`, snap.ID.String(), snap.Version, string(snap.Kind), snap.ModelID.String(), snap.CreatedAt, string(snap.Payload))
	return err
}

// Get retrieves a snapshot by ID
func (r *SnapshotRepositoryImpl) Get(ctx context.Context, id core.ID) (snapshot.Snapshot, error) {
	var row snapshotRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, version, kind, model_id, created_at, payload
		FROM predictor_snapshots
		WHERE id = $1
	`, id.String())
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return snapshot.Snapshot{}, errors.Wrap(core.NewNotFoundError(core.ErrSnapshotNotFound, id.String()), "failed to load snapshot")
		}
		return snapshot.Snapshot{}, err
	}

	snap := row.snapshot()
	if err := persistence.CheckVersion(snap); err != nil {
		return snapshot.Snapshot{}, err
	}
	return snap, nil
}

// List returns every snapshot, newest first. Rows in an unknown format are skipped.
func (r *SnapshotRepositoryImpl) List(ctx context.Context) ([]snapshot.Snapshot, error) {
	var rows []snapshotRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, version, kind, model_id, created_at, payload
		FROM predictor_snapshots
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}

	out := make([]snapshot.Snapshot, 0, len(rows))
	for _, row := range rows {
		snap := row.snapshot()
		if persistence.CheckVersion(snap) != nil {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

// Delete removes a snapshot by ID
func (r *SnapshotRepositoryImpl) Delete(ctx context.Context, id core.ID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM predictor_snapshots WHERE id = $1`, id.String())
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrap(core.NewNotFoundError(core.ErrSnapshotNotFound, id.String()), "failed to delete snapshot")
	}
	return nil
}
