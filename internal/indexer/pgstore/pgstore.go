// Package pgstore is the PostgreSQL index.Store. Postings and document stats
// live in the postings and document_stats tables (migrations/001_init.sql).
// Writes for one document are serialised by a transaction-scoped advisory
// lock keyed on the document id.
package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/postgres"
	"github.com/lib/pq"
)

type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "pgstore"),
	}
}

func lockDocument(ctx context.Context, tx *sql.Tx, documentID string) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, documentID); err != nil {
		return fmt.Errorf("locking document %s: %w", documentID, err)
	}
	return nil
}

func deleteDocument(ctx context.Context, tx *sql.Tx, documentID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM postings WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("deleting postings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM document_stats WHERE document_id = $1`, documentID); err != nil {
		return 0, fmt.Errorf("deleting document stats: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ReplaceDocument swaps a document's postings inside one transaction, so
// readers see either the old or the new index, never a mix.
func (s *Store) ReplaceDocument(ctx context.Context, doc index.DocumentIndex) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := lockDocument(ctx, tx, doc.DocumentID); err != nil {
			return err
		}
		removed, err := deleteDocument(ctx, tx, doc.DocumentID)
		if err != nil {
			return err
		}
		if len(doc.Postings) > 0 {
			if err := copyPostings(ctx, tx, doc); err != nil {
				return err
			}
		}
		if doc.Stats.TotalTerms > 0 {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO document_stats (document_id, total_terms, unique_terms) VALUES ($1, $2, $3)`,
				doc.DocumentID, doc.Stats.TotalTerms, doc.Stats.UniqueTerms,
			); err != nil {
				return fmt.Errorf("inserting document stats: %w", err)
			}
		}
		s.logger.Debug("document replaced",
			"document_id", doc.DocumentID,
			"postings_removed", removed,
			"postings_written", len(doc.Postings),
		)
		return nil
	})
}

func copyPostings(ctx context.Context, tx *sql.Tx, doc index.DocumentIndex) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("postings", "term", "document_id", "page", "frequency", "positions"))
	if err != nil {
		return fmt.Errorf("preparing postings copy: %w", err)
	}
	for _, p := range doc.Postings {
		if _, err := stmt.ExecContext(ctx, p.Term, doc.DocumentID, p.Page, p.Frequency, pq.Array(toInt64(p.Positions))); err != nil {
			stmt.Close()
			return fmt.Errorf("copying posting %q page %d: %w", p.Term, p.Page, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("flushing postings copy: %w", err)
	}
	return stmt.Close()
}

// UpsertPosting relies on ON CONFLICT for per-key atomicity; the advisory
// lock keeps the unique-term count right when pages of one document are
// upserted concurrently.
func (s *Store) UpsertPosting(ctx context.Context, term, documentID string, page, position int) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := lockDocument(ctx, tx, documentID); err != nil {
			return err
		}
		var seen bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM postings WHERE term = $1 AND document_id = $2)`,
			term, documentID,
		).Scan(&seen); err != nil {
			return fmt.Errorf("checking term presence: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO postings (term, document_id, page, frequency, positions)
			 VALUES ($1, $2, $3, 1, ARRAY[$4::integer])
			 ON CONFLICT (term, document_id, page) DO UPDATE
			 SET frequency = postings.frequency + 1,
			     positions = array_append(postings.positions, $4::integer)`,
			term, documentID, page, position,
		); err != nil {
			return fmt.Errorf("upserting posting: %w", err)
		}
		newTerm := 0
		if !seen {
			newTerm = 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO document_stats (document_id, total_terms, unique_terms) VALUES ($1, 1, $2)
			 ON CONFLICT (document_id) DO UPDATE
			 SET total_terms = document_stats.total_terms + 1,
			     unique_terms = document_stats.unique_terms + EXCLUDED.unique_terms,
			     indexed_at = NOW()`,
			documentID, newTerm,
		); err != nil {
			return fmt.Errorf("updating document stats: %w", err)
		}
		return nil
	})
}

func (s *Store) DeleteDocumentPostings(ctx context.Context, documentID string) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := lockDocument(ctx, tx, documentID); err != nil {
			return err
		}
		removed, err := deleteDocument(ctx, tx, documentID)
		if err != nil {
			return err
		}
		s.logger.Debug("document postings deleted", "document_id", documentID, "postings_removed", removed)
		return nil
	})
}

func (s *Store) PostingsForTerm(ctx context.Context, term string, limit int) (index.PostingList, error) {
	query := `SELECT document_id, page, frequency, positions FROM postings
		WHERE term = $1 ORDER BY document_id, page`
	args := []any{term}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying postings: %w", err)
	}
	defer rows.Close()

	var list index.PostingList
	for rows.Next() {
		p := index.Posting{Term: term}
		var positions pq.Int64Array
		if err := rows.Scan(&p.DocumentID, &p.Page, &p.Frequency, &positions); err != nil {
			return nil, fmt.Errorf("scanning posting row: %w", err)
		}
		p.Positions = fromInt64(positions)
		list = append(list, p)
	}
	return list, rows.Err()
}

func (s *Store) StatsForDocument(ctx context.Context, documentID string) (index.DocumentStats, bool, error) {
	st := index.DocumentStats{DocumentID: documentID}
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT total_terms, unique_terms FROM document_stats WHERE document_id = $1`,
		documentID,
	).Scan(&st.TotalTerms, &st.UniqueTerms)
	if err == sql.ErrNoRows {
		return index.DocumentStats{}, false, nil
	}
	if err != nil {
		return index.DocumentStats{}, false, fmt.Errorf("querying document stats: %w", err)
	}
	return st, true, nil
}

func (s *Store) StatsForDocuments(ctx context.Context, ids []string) (map[string]index.DocumentStats, error) {
	out := make(map[string]index.DocumentStats, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT document_id, total_terms, unique_terms FROM document_stats WHERE document_id = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("querying document stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st index.DocumentStats
		if err := rows.Scan(&st.DocumentID, &st.TotalTerms, &st.UniqueTerms); err != nil {
			return nil, fmt.Errorf("scanning document stats row: %w", err)
		}
		out[st.DocumentID] = st
	}
	return out, rows.Err()
}

func (s *Store) DocumentFrequency(ctx context.Context, term string) (int, error) {
	var n int
	if err := s.db.DB.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT document_id) FROM postings WHERE term = $1`, term,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting document frequency: %w", err)
	}
	return n, nil
}

func (s *Store) TotalDocumentCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_stats`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

func toInt64(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

func fromInt64(in []int64) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}
