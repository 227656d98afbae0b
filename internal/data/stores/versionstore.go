package stores

import (
	"context"
	"fmt"

	"github.com/colonyops/huddle/internal/core/version"
	"github.com/colonyops/huddle/internal/data/db"
)

// VersionStore implements version.Store using SQLite.
type VersionStore struct {
	db *db.DB
}

var _ version.Store = (*VersionStore)(nil)

// NewVersionStore creates a new SQLite-backed version store.
func NewVersionStore(db *db.DB) *VersionStore {
	return &VersionStore{db: db}
}

const versionColumns = `id, document_id, description, blocks_snapshot, author, created_at`

// Append adds a version to the end of its document's history.
func (s *VersionStore) Append(ctx context.Context, v version.Version) error {
	_, err := s.db.Conn().ExecContext(ctx,
		`INSERT INTO versions (`+versionColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.DocumentID, v.Description, opaqueColumn(v.BlocksSnapshot), v.Author, v.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to append version: %w", classify(err))
	}
	return nil
}

// Get returns a version by ID. Returns version.ErrNotFound if not found.
func (s *VersionStore) Get(ctx context.Context, id string) (version.Version, error) {
	row := s.db.Conn().QueryRowContext(ctx, `SELECT `+versionColumns+` FROM versions WHERE id = ?`, id)
	v, err := scanVersion(row)
	if IsNotFoundError(err) {
		return version.Version{}, version.ErrNotFound
	}
	if err != nil {
		return version.Version{}, fmt.Errorf("failed to get version: %w", err)
	}
	return v, nil
}

// History returns a document's versions in creation order.
func (s *VersionStore) History(ctx context.Context, documentID string) ([]version.Version, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT `+versionColumns+` FROM versions WHERE document_id = ? ORDER BY rowid`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]version.Version, 0)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanVersion(row scanner) (version.Version, error) {
	var (
		v         version.Version
		snapshot  []byte
		createdAt int64
	)
	if err := row.Scan(&v.ID, &v.DocumentID, &v.Description, &snapshot, &v.Author, &createdAt); err != nil {
		return version.Version{}, err
	}

	v.BlocksSnapshot = fromOpaqueColumn(snapshot)
	v.CreatedAt = fromNanos(createdAt)
	return v, nil
}
