package stores

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/colonyops/huddle/internal/core/suggestion"
	"github.com/colonyops/huddle/internal/data/db"
)

// SuggestionStore implements suggestion.Store using SQLite.
type SuggestionStore struct {
	db *db.DB
}

var _ suggestion.Store = (*SuggestionStore)(nil)

// NewSuggestionStore creates a new SQLite-backed suggestion store.
func NewSuggestionStore(db *db.DB) *SuggestionStore {
	return &SuggestionStore{db: db}
}

const suggestionColumns = `id, document_id, block_id, type, original_content, suggested_content,
	author, status, updated_by, updated_at, created_at`

// Create stores a new suggestion.
func (s *SuggestionStore) Create(ctx context.Context, sg suggestion.Suggestion) error {
	_, err := s.db.Conn().ExecContext(ctx,
		`INSERT INTO suggestions (`+suggestionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sg.ID, sg.DocumentID, sg.BlockID, sg.Type, opaqueColumn(sg.OriginalContent), opaqueColumn(sg.SuggestedContent),
		sg.Author, sg.Status, sg.UpdatedBy, nullTime(sg.UpdatedAt), sg.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to create suggestion: %w", classify(err))
	}
	return nil
}

// Get returns a suggestion by ID. Returns suggestion.ErrNotFound if not found.
func (s *SuggestionStore) Get(ctx context.Context, id string) (suggestion.Suggestion, error) {
	row := s.db.Conn().QueryRowContext(ctx, `SELECT `+suggestionColumns+` FROM suggestions WHERE id = ?`, id)
	sg, err := scanSuggestion(row)
	if IsNotFoundError(err) {
		return suggestion.Suggestion{}, suggestion.ErrNotFound
	}
	if err != nil {
		return suggestion.Suggestion{}, fmt.Errorf("failed to get suggestion: %w", err)
	}
	return sg, nil
}

// UpdateStatus sets the status and update record inside one transaction.
// Returns suggestion.ErrNotFound if not found.
func (s *SuggestionStore) UpdateStatus(ctx context.Context, id, status, updatedBy string, at time.Time) (suggestion.Suggestion, error) {
	var out suggestion.Suggestion
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE suggestions SET status = ?, updated_by = ?, updated_at = ? WHERE id = ?`,
			status, updatedBy, at.UnixNano(), id,
		)
		if err != nil {
			return fmt.Errorf("failed to update suggestion: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return suggestion.ErrNotFound
		}

		out, err = scanSuggestion(tx.QueryRowContext(ctx, `SELECT `+suggestionColumns+` FROM suggestions WHERE id = ?`, id))
		if err != nil {
			return fmt.Errorf("failed to reload suggestion: %w", err)
		}
		return nil
	})
	if err != nil {
		return suggestion.Suggestion{}, classify(err)
	}
	return out, nil
}

// List returns suggestions for a document in creation order.
func (s *SuggestionStore) List(ctx context.Context, documentID, blockID string) ([]suggestion.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM suggestions WHERE document_id = ?`
	args := []any{documentID}
	if blockID != "" {
		query += ` AND block_id = ?`
		args = append(args, blockID)
	}
	query += ` ORDER BY rowid`

	rows, err := s.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list suggestions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]suggestion.Suggestion, 0)
	for rows.Next() {
		sg, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}

func scanSuggestion(row scanner) (suggestion.Suggestion, error) {
	var (
		sg                  suggestion.Suggestion
		original, suggested []byte
		updatedAt           sql.NullInt64
		createdAt           int64
	)
	err := row.Scan(&sg.ID, &sg.DocumentID, &sg.BlockID, &sg.Type, &original, &suggested,
		&sg.Author, &sg.Status, &sg.UpdatedBy, &updatedAt, &createdAt)
	if err != nil {
		return suggestion.Suggestion{}, err
	}

	sg.OriginalContent = fromOpaqueColumn(original)
	sg.SuggestedContent = fromOpaqueColumn(suggested)
	sg.UpdatedAt = fromNullTime(updatedAt)
	sg.CreatedAt = fromNanos(createdAt)
	return sg, nil
}
