// Package catalog stores document metadata in PostgreSQL. The ingestion
// service is its only writer; the searcher reads it to resolve ranked
// candidates and to serve browse and lookup.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/access"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/library"
	apperrors "github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/postgres"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	maxTitleLength = 1024
	columns        = `id, title, author, subject, classification, total_pages, status, uploaded_by, created_at`
)

type Catalog struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Catalog {
	return &Catalog{
		db:     db,
		logger: slog.Default().With("component", "catalog"),
	}
}

// Create inserts doc as active. A blank ID is replaced by a new UUID; the
// stored record is returned.
func (c *Catalog) Create(ctx context.Context, doc library.Document) (library.Document, error) {
	doc.Title = strings.TrimSpace(doc.Title)
	if doc.Title == "" || len(doc.Title) > maxTitleLength {
		return library.Document{}, apperrors.Newf(apperrors.ErrInvalidInput, 400, "title must be 1 to %d characters", maxTitleLength)
	}
	if !doc.Classification.Valid() {
		return library.Document{}, apperrors.New(apperrors.ErrInvalidInput, 400, "unknown classification")
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.Status = library.StatusActive
	doc.CreatedAt = time.Now().UTC()

	err := c.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO documents (`+columns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			doc.ID, doc.Title, doc.Author, doc.Subject, doc.Classification.String(),
			doc.TotalPages, string(doc.Status), doc.UploadedBy, doc.CreatedAt,
		)
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperrors.New(apperrors.ErrDocumentExists, 409, "document already exists")
		}
		return err
	})
	if errors.Is(err, apperrors.ErrDocumentExists) {
		return library.Document{}, err
	}
	if err != nil {
		return library.Document{}, apperrors.Unavailable("insert document", err)
	}
	c.logger.Debug("document created", "document_id", doc.ID, "classification", doc.Classification)
	return doc, nil
}

// Get returns the document whatever its status, or ErrDocumentNotFound.
func (c *Catalog) Get(ctx context.Context, id string) (library.Document, error) {
	row := c.db.DB.QueryRowContext(ctx, `SELECT `+columns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return library.Document{}, apperrors.ErrDocumentNotFound
	}
	if err != nil {
		return library.Document{}, apperrors.Unavailable("get document", err)
	}
	return doc, nil
}

// Resolve loads the documents among ids in one round trip. Missing ids are
// simply absent from the result.
func (c *Catalog) Resolve(ctx context.Context, ids []string) (map[string]library.Document, error) {
	out := make(map[string]library.Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := c.db.DB.QueryContext(ctx,
		`SELECT `+columns+` FROM documents WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, apperrors.Unavailable("resolve documents", err)
	}
	defer rows.Close()
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, apperrors.Unavailable("resolve documents", err)
		}
		out[doc.ID] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Unavailable("resolve documents", err)
	}
	return out, nil
}

// ListActive pages through active documents visible to allowed, newest
// first. The classification filter runs in the query, ahead of the limit.
func (c *Catalog) ListActive(ctx context.Context, allowed access.Set, limit, offset int) ([]library.Document, error) {
	docs := make([]library.Document, 0)
	if allowed.Empty() || limit <= 0 {
		return docs, nil
	}
	rows, err := c.db.DB.QueryContext(ctx,
		`SELECT `+columns+` FROM documents
		WHERE status = 'active' AND classification = ANY($1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`,
		pq.Array(allowed.Strings()), limit, max(offset, 0))
	if err != nil {
		return nil, apperrors.Unavailable("list documents", err)
	}
	defer rows.Close()
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, apperrors.Unavailable("list documents", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Unavailable("list documents", err)
	}
	return docs, nil
}

// SoftDelete marks a document deleted. Deleting an already deleted document
// succeeds and keeps the first deletion time, so a retried delete can resend
// its deindex event. Unknown ids yield ErrDocumentNotFound.
func (c *Catalog) SoftDelete(ctx context.Context, id string) error {
	res, err := c.db.DB.ExecContext(ctx,
		`UPDATE documents SET status = 'deleted', deleted_at = COALESCE(deleted_at, NOW())
		WHERE id = $1`, id)
	if err != nil {
		return apperrors.Unavailable("soft delete document", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Unavailable("soft delete document", err)
	}
	if n == 0 {
		return apperrors.ErrDocumentNotFound
	}
	c.logger.Info("document soft deleted", "document_id", id)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (library.Document, error) {
	var (
		doc            library.Document
		classification string
		status         string
	)
	err := s.Scan(&doc.ID, &doc.Title, &doc.Author, &doc.Subject, &classification,
		&doc.TotalPages, &status, &doc.UploadedBy, &doc.CreatedAt)
	if err != nil {
		return library.Document{}, err
	}
	doc.Classification, err = library.ParseClassification(classification)
	if err != nil {
		return library.Document{}, fmt.Errorf("document %s: %w", doc.ID, err)
	}
	doc.Status = library.Status(status)
	return doc, nil
}
