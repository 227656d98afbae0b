package stores

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/colonyops/huddle/internal/core/comment"
	"github.com/colonyops/huddle/internal/data/db"
)

// CommentStore implements comment.Store using SQLite.
type CommentStore struct {
	db *db.DB
}

var _ comment.Store = (*CommentStore)(nil)

// NewCommentStore creates a new SQLite-backed comment store.
func NewCommentStore(db *db.DB) *CommentStore {
	return &CommentStore{db: db}
}

const commentColumns = `id, document_id, block_id, content, author, parent_id,
	resolved, resolved_by, resolved_at, created_at`

// Create stores a new comment.
func (s *CommentStore) Create(ctx context.Context, c comment.Comment) error {
	_, err := s.db.Conn().ExecContext(ctx,
		`INSERT INTO comments (`+commentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.DocumentID, c.BlockID, c.Content, c.Author, nullString(c.ParentID),
		c.Resolved, c.ResolvedBy, nullTime(c.ResolvedAt), c.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", classify(err))
	}
	return nil
}

// Get returns a comment by ID. Returns comment.ErrNotFound if not found.
func (s *CommentStore) Get(ctx context.Context, id string) (comment.Comment, error) {
	row := s.db.Conn().QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = ?`, id)
	c, err := scanComment(row)
	if IsNotFoundError(err) {
		return comment.Comment{}, comment.ErrNotFound
	}
	if err != nil {
		return comment.Comment{}, fmt.Errorf("failed to get comment: %w", err)
	}
	return c, nil
}

// SetResolved flips the resolved state inside one transaction and returns
// the updated comment. Returns comment.ErrNotFound if not found.
func (s *CommentStore) SetResolved(ctx context.Context, id string, resolved bool, resolvedBy string, at time.Time) (comment.Comment, error) {
	var out comment.Comment
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var (
			by     string
			atNano sql.NullInt64
		)
		if resolved {
			by = resolvedBy
			atNano = sql.NullInt64{Int64: at.UnixNano(), Valid: true}
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE comments SET resolved = ?, resolved_by = ?, resolved_at = ? WHERE id = ?`,
			resolved, by, atNano, id,
		)
		if err != nil {
			return fmt.Errorf("failed to update comment: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return comment.ErrNotFound
		}

		out, err = scanComment(tx.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = ?`, id))
		if err != nil {
			return fmt.Errorf("failed to reload comment: %w", err)
		}
		return nil
	})
	if err != nil {
		return comment.Comment{}, classify(err)
	}
	return out, nil
}

// List returns comments for a document in creation order.
func (s *CommentStore) List(ctx context.Context, documentID, blockID string) ([]comment.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments WHERE document_id = ?`
	args := []any{documentID}
	if blockID != "" {
		query += ` AND block_id = ?`
		args = append(args, blockID)
	}
	query += ` ORDER BY rowid`

	rows, err := s.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	comments := make([]comment.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func scanComment(row scanner) (comment.Comment, error) {
	var (
		c          comment.Comment
		parentID   sql.NullString
		resolvedAt sql.NullInt64
		createdAt  int64
	)
	err := row.Scan(&c.ID, &c.DocumentID, &c.BlockID, &c.Content, &c.Author, &parentID,
		&c.Resolved, &c.ResolvedBy, &resolvedAt, &createdAt)
	if err != nil {
		return comment.Comment{}, err
	}

	if parentID.Valid {
		c.ParentID = &parentID.String
	}
	c.ResolvedAt = fromNullTime(resolvedAt)
	c.CreatedAt = fromNanos(createdAt)
	c.Replies = []comment.Comment{}
	return c, nil
}
