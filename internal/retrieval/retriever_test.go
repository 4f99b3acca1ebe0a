package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/ragline/ragline/internal/testutil"
)

// mockRows implements pgx.Rows over a fixed list of content strings.
type mockRows struct {
	contents []string
	idx      int
	scanErr  error
	rowsErr  error
}

func (r *mockRows) Close()                                       {}
func (r *mockRows) Err() error                                   { return r.rowsErr }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) Next() bool {
	if r.idx >= len(r.contents) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	if p, ok := dest[0].(*string); ok {
		*p = r.contents[r.idx-1]
	}
	return nil
}

func (r *mockRows) Values() ([]any, error) { return nil, nil }
func (r *mockRows) RawValues() [][]byte    { return nil }
func (r *mockRows) Conn() *pgx.Conn        { return nil }

// mockQueryDB captures the query arguments and returns fixed rows.
type mockQueryDB struct {
	rows *mockRows
	err  error
	args []any
}

func (db *mockQueryDB) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	db.args = args
	if db.err != nil {
		return nil, db.err
	}
	return db.rows, nil
}

// mockEmbedder returns a fixed vector or an error.
type mockEmbedder struct {
	vector []float32
	err    error
}

func (e *mockEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return e.vector, e.err
}

func TestRetrieve_ReturnsSnippetsInRankOrder(t *testing.T) {
	t.Parallel()

	db := &mockQueryDB{rows: &mockRows{contents: []string{"first", "second", "third"}}}
	embedder := &mockEmbedder{vector: []float32{0.1, 0.2, 0.3}}

	r := New(db, embedder, 3, testutil.DiscardLogger())
	items, err := r.Retrieve(context.Background(), "query")
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("Retrieve() = %d items, want 3", len(items))
	}
	for i, want := range []string{"first", "second", "third"} {
		if items[i].Content != want {
			t.Errorf("item %d = %q, want %q", i, items[i].Content, want)
		}
	}

	// The query embedding and limit flow into the search.
	if len(db.args) != 2 {
		t.Fatalf("query args = %d, want 2", len(db.args))
	}
	if _, ok := db.args[0].(pgvector.Vector); !ok {
		t.Errorf("first arg type = %T, want pgvector.Vector", db.args[0])
	}
	if db.args[1] != 3 {
		t.Errorf("limit arg = %v, want 3", db.args[1])
	}
}

func TestRetrieve_EmptyResultIsNotAnError(t *testing.T) {
	t.Parallel()

	db := &mockQueryDB{rows: &mockRows{}}
	embedder := &mockEmbedder{vector: []float32{0.1}}

	r := New(db, embedder, 3, testutil.DiscardLogger())
	items, err := r.Retrieve(context.Background(), "query")
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Retrieve() = %d items, want 0", len(items))
	}
}

func TestRetrieve_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		db       *mockQueryDB
		embedder *mockEmbedder
	}{
		{
			name:     "embedding failure",
			db:       &mockQueryDB{rows: &mockRows{}},
			embedder: &mockEmbedder{err: errors.New("model unavailable")},
		},
		{
			name:     "empty embedding",
			db:       &mockQueryDB{rows: &mockRows{}},
			embedder: &mockEmbedder{vector: []float32{}},
		},
		{
			name:     "query failure",
			db:       &mockQueryDB{err: errors.New("connection refused")},
			embedder: &mockEmbedder{vector: []float32{0.1}},
		},
		{
			name:     "scan failure",
			db:       &mockQueryDB{rows: &mockRows{contents: []string{"x"}, scanErr: errors.New("bad row")}},
			embedder: &mockEmbedder{vector: []float32{0.1}},
		},
		{
			name:     "rows error after iteration",
			db:       &mockQueryDB{rows: &mockRows{rowsErr: errors.New("stream cut")}},
			embedder: &mockEmbedder{vector: []float32{0.1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := New(tt.db, tt.embedder, 3, testutil.DiscardLogger())
			if _, err := r.Retrieve(context.Background(), "query"); err == nil {
				t.Fatal("Retrieve() = nil error, want failure")
			}
		})
	}
}

func TestNew_ClampsTopK(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		topK int
		want int
	}{
		{name: "zero falls back to default", topK: 0, want: DefaultTopK},
		{name: "negative falls back to default", topK: -5, want: DefaultTopK},
		{name: "over max falls back to default", topK: MaxTopK + 1, want: DefaultTopK},
		{name: "valid value kept", topK: 7, want: 7},
		{name: "max kept", topK: MaxTopK, want: MaxTopK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := New(&mockQueryDB{}, &mockEmbedder{}, tt.topK, testutil.DiscardLogger())
			if r.topK != tt.want {
				t.Errorf("topK = %d, want %d", r.topK, tt.want)
			}
		})
	}
}
