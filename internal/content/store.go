package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ziadkadry99/mathedit/internal/db"
)

// ErrNotFound is returned when no document has the requested id.
var ErrNotFound = errors.New("content not found")

// Store provides CRUD operations for saved documents.
type Store struct {
	db *db.DB
}

// NewStore creates a new content store.
func NewStore(d *db.DB) *Store {
	return &Store{db: d}
}

// Create inserts c, assigning its id and timestamps.
func (s *Store) Create(ctx context.Context, c *Content) error {
	normalize(c)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cms_content (id, title, content, editor_type, user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.Content, string(c.EditorType), c.UserID, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating content: %w", err)
	}
	return nil
}

// Get retrieves a document by id.
func (s *Store) Get(ctx context.Context, id string) (*Content, error) {
	c := &Content{}
	var editorType string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, content, editor_type, user_id, created_at, updated_at
		 FROM cms_content WHERE id = ?`, id,
	).Scan(&c.ID, &c.Title, &c.Content, &editorType, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting content: %w", err)
	}
	c.EditorType = EditorType(editorType)
	return c, nil
}

// List returns the newest documents saved from editorType, at most limit of
// them. An empty editorType lists all; limit <= 0 means DefaultListLimit.
func (s *Store) List(ctx context.Context, editorType EditorType, limit int) ([]Content, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := `SELECT id, title, content, editor_type, user_id, created_at, updated_at FROM cms_content`
	args := []any{}
	if editorType != "" {
		query += ` WHERE editor_type = ?`
		args = append(args, string(editorType))
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing content: %w", err)
	}
	defer rows.Close()

	var result []Content
	for rows.Next() {
		var c Content
		var et string
		if err := rows.Scan(&c.ID, &c.Title, &c.Content, &et, &c.UserID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning content: %w", err)
		}
		c.EditorType = EditorType(et)
		result = append(result, c)
	}
	return result, rows.Err()
}

// Update overwrites title, content and editor type of an existing document.
func (s *Store) Update(ctx context.Context, c *Content) error {
	normalize(c)
	c.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE cms_content SET title=?, content=?, editor_type=?, user_id=?, updated_at=? WHERE id=?`,
		c.Title, c.Content, string(c.EditorType), c.UserID, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("updating content: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a document.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cms_content WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting content: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func normalize(c *Content) {
	if c.Title == "" {
		c.Title = DefaultTitle
	}
	if c.EditorType == "" {
		c.EditorType = EditorVanilla
	}
}
