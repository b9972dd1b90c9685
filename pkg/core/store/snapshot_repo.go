package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"financial_extractor/pkg/models"
)

// ErrSnapshotNotFound is returned by Load for an unknown session name.
var ErrSnapshotNotFound = eris.New("store: snapshot not found")

// Schema creates the snapshot tables. Sources keep their ids and registry
// order; records are stored as a JSONB array in the canonical record format.
const Schema = `
CREATE TABLE IF NOT EXISTS session_snapshots (
	name      TEXT PRIMARY KEY,
	active_id TEXT NOT NULL DEFAULT '',
	saved_at  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS data_sources (
	session   TEXT NOT NULL REFERENCES session_snapshots(name) ON DELETE CASCADE,
	position  INT NOT NULL,
	id        TEXT NOT NULL,
	name      TEXT NOT NULL,
	origin    TEXT NOT NULL,
	data_type TEXT NOT NULL,
	records   JSONB NOT NULL,
	PRIMARY KEY (session, position)
);`

// Snapshot is a saved registry state.
type Snapshot struct {
	Name     string
	ActiveID string
	SavedAt  time.Time
	Sources  []*models.DataSource
}

// SnapshotRepo saves and restores registry snapshots.
type SnapshotRepo struct {
	pool Pool
	now  func() time.Time
}

// NewSnapshotRepo creates a new repository instance.
func NewSnapshotRepo(pool Pool) *SnapshotRepo {
	return &SnapshotRepo{pool: pool, now: time.Now}
}

// EnsureSchema creates the tables when missing.
func (r *SnapshotRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return eris.Wrap(err, "store: create snapshot schema")
	}
	return nil
}

// Save replaces the snapshot called name with sources, in one transaction.
func (r *SnapshotRepo) Save(ctx context.Context, name string, sources []*models.DataSource, activeID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "store: begin snapshot save")
	}
	if err := r.save(ctx, tx, name, sources, activeID); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "store: commit snapshot")
	}

	zap.L().Info("session snapshot saved", zap.String("session", name), zap.Int("sources", len(sources)))
	return nil
}

func (r *SnapshotRepo) save(ctx context.Context, tx pgx.Tx, name string, sources []*models.DataSource, activeID string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO session_snapshots (name, active_id, saved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name)
		DO UPDATE SET active_id = EXCLUDED.active_id, saved_at = EXCLUDED.saved_at`,
		name, activeID, r.now().UTC())
	if err != nil {
		return eris.Wrapf(err, "store: upsert snapshot %s", name)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM data_sources WHERE session = $1`, name); err != nil {
		return eris.Wrapf(err, "store: clear snapshot %s", name)
	}

	for i, src := range sources {
		records, err := json.Marshal(src.Records())
		if err != nil {
			return eris.Wrapf(err, "store: marshal source %s", src.ID)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO data_sources (session, position, id, name, origin, data_type, records)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			name, i, src.ID, src.Name, string(src.Type), string(src.DataType), records)
		if err != nil {
			return eris.Wrapf(err, "store: insert source %s", src.ID)
		}
	}
	return nil
}

// Load restores the snapshot called name.
func (r *SnapshotRepo) Load(ctx context.Context, name string) (*Snapshot, error) {
	snap := &Snapshot{Name: name}
	err := r.pool.QueryRow(ctx,
		`SELECT active_id, saved_at FROM session_snapshots WHERE name = $1`, name,
	).Scan(&snap.ActiveID, &snap.SavedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, eris.Wrapf(err, "store: load snapshot %s", name)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, origin, data_type, records
		FROM data_sources
		WHERE session = $1
		ORDER BY position`, name)
	if err != nil {
		return nil, eris.Wrapf(err, "store: query sources of %s", name)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, srcName, origin, dataType string
			records                       []byte
		)
		if err := rows.Scan(&id, &srcName, &origin, &dataType, &records); err != nil {
			return nil, eris.Wrap(err, "store: scan source")
		}
		src, err := decodeSource(id, srcName, origin, dataType, records)
		if err != nil {
			return nil, err
		}
		snap.Sources = append(snap.Sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate sources")
	}
	return snap, nil
}

func decodeSource(id, name, origin, dataType string, records []byte) (*models.DataSource, error) {
	dt, ok := models.ParseDataType(dataType)
	if !ok {
		return nil, eris.Errorf("store: source %s has unknown data type %q", id, dataType)
	}

	src := &models.DataSource{ID: id, Name: name, Type: models.Origin(origin), DataType: dt}
	var err error
	if dt == models.DataTypeChart {
		src.Charts = []models.ChartRecord{}
		err = json.Unmarshal(records, &src.Charts)
	} else {
		src.Numeric = []models.NumericRecord{}
		err = json.Unmarshal(records, &src.Numeric)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: decode records of %s", id)
	}
	return src, nil
}
