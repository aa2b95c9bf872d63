package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const documentColumns = `id, filename, file_path, title, description, content_preview, type, uploaded_at`

func (s *Store) SaveDocument(ctx context.Context, d Document) error {
	if d.UploadedAt.IsZero() {
		d.UploadedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Filename, d.FilePath, d.Title, d.Description, d.ContentPreview, d.Type,
		d.UploadedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("saving document %s: %w", d.ID, err)
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return d, err
}

// ListDocuments returns documents in upload order, oldest first.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY uploaded_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc scanner) (Document, error) {
	var d Document
	var uploadedAt string
	if err := sc.Scan(&d.ID, &d.Filename, &d.FilePath, &d.Title, &d.Description, &d.ContentPreview, &d.Type, &uploadedAt); err != nil {
		return Document{}, err
	}
	t, err := time.Parse(timeLayout, uploadedAt)
	if err != nil {
		return Document{}, fmt.Errorf("parsing uploaded_at: %w", err)
	}
	d.UploadedAt = t
	return d, nil
}
