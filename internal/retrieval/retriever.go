// Package retrieval implements similarity search over the knowledge index
// backed by PostgreSQL + pgvector.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/ragline/ragline/internal/chat"
)

const (
	// DefaultTopK is the number of snippets returned when not configured.
	DefaultTopK = 3

	// MaxTopK bounds the result size regardless of configuration.
	MaxTopK = 20
)

// DB is the subset of pgxpool.Pool the retriever needs.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Embedder produces the vector embedding for a query string.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever searches the documents index by cosine distance and returns the
// best-matching snippets in rank order. An empty result is returned as an
// empty slice, not an error; grounding policy is the caller's concern.
type Retriever struct {
	db       DB
	embedder Embedder
	topK     int
	logger   *slog.Logger
}

// New creates a Retriever. TopK values outside [1, MaxTopK] fall back to
// DefaultTopK; a nil logger falls back to slog.Default().
func New(db DB, embedder Embedder, topK int, logger *slog.Logger) *Retriever {
	if topK < 1 || topK > MaxTopK {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{db: db, embedder: embedder, topK: topK, logger: logger}
}

// Retrieve embeds the query and runs a cosine similarity search.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]chat.ContextItem, error) {
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("embedder returned an empty vector")
	}

	rows, err := r.db.Query(ctx,
		`SELECT content FROM documents ORDER BY embedding <=> $1 LIMIT $2`,
		pgvector.NewVector(embedding), r.topK)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	defer rows.Close()

	items := []chat.ContextItem{}
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		items = append(items, chat.ContextItem{Content: content})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading document rows: %w", err)
	}

	r.logger.Debug("retrieved context", "count", len(items), "query_length", len(query))
	return items, nil
}
