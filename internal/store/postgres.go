package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"mcq-agents/internal/embeddings"
)

// PostgresStore keeps the knowledge base in Postgres with pgvector.
type PostgresStore struct {
	db  *sql.DB
	dim int
}

// NewPostgres opens the database and runs migrations. dim is the embedding
// dimensionality of the configured model.
func NewPostgres(dsn string, dim int) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if dim <= 0 {
		dim = 1024
	}
	s := &PostgresStore{db: db, dim: dim}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	// Advisory lock prevents concurrent migrations when several workers
	// start at once.
	const lockID = 874220031

	var acquired bool
	err := s.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired)
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !acquired {
		time.Sleep(2 * time.Second)
		return nil
	}
	defer func() {
		_, _ = s.db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	if _, err := s.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS passages (
			id UUID PRIMARY KEY,
			ord INT,
			title TEXT,
			source TEXT,
			tags TEXT[],
			text TEXT
		);`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS passage_embeddings (
			passage_id UUID PRIMARY KEY REFERENCES passages(id) ON DELETE CASCADE,
			vector vector(%d),
			model TEXT
		);`, s.dim),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS passage_embeddings_vector_idx
		ON passage_embeddings USING ivfflat (vector vector_cosine_ops)
		WITH (lists = 100)
	`)
	if err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}
	return nil
}

func (s *PostgresStore) SavePassages(ctx context.Context, passages []Passage) ([]Passage, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var maxOrd sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(ord) FROM passages`).Scan(&maxOrd); err != nil {
		return nil, err
	}
	next := int(maxOrd.Int64)
	if maxOrd.Valid {
		next++
	}

	out := make([]Passage, 0, len(passages))
	for _, p := range passages {
		p.ID = uuid.New()
		p.Ord = next
		next++
		_, err := tx.ExecContext(ctx, `INSERT INTO passages(id, ord, title, source, tags, text) VALUES($1,$2,$3,$4,$5,$6)`,
			p.ID, p.Ord, p.Title, p.Source, pq.Array(p.Tags), p.Text)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) SaveEmbedding(ctx context.Context, emb Embedding) error {
	vecStr := vectorToString(emb.Vector)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO passage_embeddings(passage_id, vector, model)
		VALUES($1,$2::vector,$3)
		ON CONFLICT (passage_id) DO UPDATE SET vector=excluded.vector, model=excluded.model`,
		emb.PassageID, vecStr, emb.Model)
	return err
}

func (s *PostgresStore) CountPassages(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passages`).Scan(&n)
	return n, err
}

// TopK returns the k nearest passages by cosine similarity. Ties resolve
// by insertion order so results are deterministic.
func (s *PostgresStore) TopK(ctx context.Context, vector embeddings.Vector, k int) ([]SearchResult, error) {
	queryVec := vectorToString(vector)

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			p.id,
			p.ord,
			p.title,
			p.source,
			COALESCE(p.tags, ARRAY[]::TEXT[]),
			p.text,
			1 - (e.vector <=> $1::vector) AS similarity
		FROM passage_embeddings e
		JOIN passages p ON p.id = e.passage_id
		ORDER BY e.vector <=> $1::vector, p.ord ASC
		LIMIT $2
	`, queryVec, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			p          Passage
			similarity float32
		)
		if err := rows.Scan(&p.ID, &p.Ord, &p.Title, &p.Source, pq.Array(&p.Tags), &p.Text, &similarity); err != nil {
			return nil, err
		}
		results = append(results, SearchResult{Passage: p, Score: similarity})
	}
	return results, rows.Err()
}

// vectorToString converts a Vector ([]float32) to pgvector array format.
// Format: "[0.1,0.2,0.3,...]"
func vectorToString(v embeddings.Vector) string {
	if len(v) == 0 {
		return "[]"
	}
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = strconv.FormatFloat(float64(val), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
