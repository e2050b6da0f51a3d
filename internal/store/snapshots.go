package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/classmodel/internal/ir"
	"github.com/roach88/classmodel/internal/model"
	"github.com/roach88/classmodel/internal/snapshot"
)

// ErrNotFound is returned when no snapshot matches a reference.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot describes one stored snapshot without its payload.
type Snapshot struct {
	Seq           int64     `json:"seq"`
	ID            string    `json:"id"`
	Fingerprint   string    `json:"fingerprint"`
	Label         string    `json:"label"`
	FormatVersion string    `json:"format_version"`
	ModelVersion  string    `json:"model_version"`
	Classes       int       `json:"classes"`
	Descriptors   int       `json:"descriptors"`
	CreatedAt     time.Time `json:"created_at"`
}

const snapshotColumns = `seq, id, fingerprint, label, format_version, model_version, class_count, descriptor_count, created_at`

// Save stores form under label. Returns the stored snapshot and whether a
// new row was inserted; a form already stored by fingerprint is returned
// as is, keeping its original label.
func (s *Store) Save(ctx context.Context, label string, form *model.StorableForm) (Snapshot, bool, error) {
	if form == nil {
		return Snapshot{}, false, fmt.Errorf("save snapshot: nil form")
	}
	fp, err := form.Fingerprint()
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("save snapshot: %w", err)
	}
	payload, err := snapshot.Marshal(form, snapshot.Options{Compress: true})
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("save snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("save snapshot: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	id := s.newID()
	result, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots
		(id, fingerprint, label, format_version, model_version, class_count, descriptor_count, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING
	`,
		id,
		fp,
		label,
		form.FormatVersion,
		form.ModelVersion,
		len(form.Classes),
		len(form.Descriptors),
		s.now().UTC().Format(time.RFC3339Nano),
		payload,
	)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("save snapshot: insert: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("save snapshot: rows affected: %w", err)
	}

	inserted := rowsAffected > 0
	if inserted {
		for _, rec := range form.Classes {
			hash, err := ir.ClassFingerprint(rec)
			if err != nil {
				return Snapshot{}, false, fmt.Errorf("save snapshot: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO snapshot_classes (snapshot_id, class_name, class_hash)
				VALUES (?, ?, ?)
			`, id, rec.Name, hash); err != nil {
				return Snapshot{}, false, fmt.Errorf("save snapshot: class %s: %w", rec.Name, err)
			}
		}
	}

	snap, err := scanSnapshot(tx.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots WHERE fingerprint = ?`, fp))
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("save snapshot: select: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Snapshot{}, false, fmt.Errorf("save snapshot: commit: %w", err)
	}

	s.log.Debug("snapshot saved",
		zap.String("id", snap.ID),
		zap.String("fingerprint", fp),
		zap.Bool("inserted", inserted),
		zap.Int("classes", snap.Classes),
	)
	return snap, inserted, nil
}

// Load returns the form stored under ref, which is a snapshot ID or a
// fingerprint.
func (s *Store) Load(ctx context.Context, ref string) (*model.StorableForm, Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+snapshotColumns+`, payload FROM snapshots
		WHERE id = ? OR fingerprint = ?
	`, ref, ref)

	var payload []byte
	snap, err := scanSnapshot(row, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Snapshot{}, fmt.Errorf("load %s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return nil, Snapshot{}, fmt.Errorf("load %s: %w", ref, err)
	}

	form, err := snapshot.Unmarshal(payload)
	if err != nil {
		return nil, Snapshot{}, fmt.Errorf("load %s: %w", ref, err)
	}
	return form, snap, nil
}

// Latest returns the most recently inserted snapshot with label.
func (s *Store) Latest(ctx context.Context, label string) (Snapshot, error) {
	snap, err := scanSnapshot(s.db.QueryRowContext(ctx, `
		SELECT `+snapshotColumns+` FROM snapshots
		WHERE label = ?
		ORDER BY seq DESC
		LIMIT 1
	`, label))
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("latest %q: %w", label, ErrNotFound)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("latest %q: %w", label, err)
	}
	return snap, nil
}

// List returns every snapshot in insertion order.
// Returns an empty slice (not nil) when the store is empty.
func (s *Store) List(ctx context.Context) ([]Snapshot, error) {
	return s.query(ctx, `
		SELECT `+snapshotColumns+` FROM snapshots
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
}

// WithClass returns the snapshots containing class name, in insertion
// order.
func (s *Store) WithClass(ctx context.Context, name string) ([]Snapshot, error) {
	return s.query(ctx, `
		SELECT s.seq, s.id, s.fingerprint, s.label, s.format_version, s.model_version,
		       s.class_count, s.descriptor_count, s.created_at
		FROM snapshots s
		JOIN snapshot_classes c ON c.snapshot_id = s.id
		WHERE c.class_name = ?
		ORDER BY s.seq ASC, s.id COLLATE BINARY ASC
	`, name)
}

// ClassHashes returns the content hash of every class in snapshot id,
// keyed by class name.
func (s *Store) ClassHashes(ctx context.Context, id string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT class_name, class_hash FROM snapshot_classes
		WHERE snapshot_id = ?
		ORDER BY class_name COLLATE BINARY ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query class hashes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, hash string
		if err := rows.Scan(&name, &hash); err != nil {
			return nil, fmt.Errorf("scan class hash: %w", err)
		}
		out[name] = hash
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate class hashes: %w", err)
	}
	return out, nil
}

// Delete removes snapshot id and its class rows.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []Snapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanSnapshot reads the snapshotColumns of one row, followed by extra
// destinations.
func scanSnapshot(row scanner, extra ...any) (Snapshot, error) {
	var (
		snap    Snapshot
		created string
	)
	dest := append([]any{
		&snap.Seq,
		&snap.ID,
		&snap.Fingerprint,
		&snap.Label,
		&snap.FormatVersion,
		&snap.ModelVersion,
		&snap.Classes,
		&snap.Descriptors,
		&created,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Snapshot{}, err
	}

	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	snap.CreatedAt = t
	return snap, nil
}
