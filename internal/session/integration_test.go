package session

import (
	"context"
	"testing"

	"github.com/ragline/ragline/internal/chat"
	"github.com/ragline/ragline/internal/testutil"
)

func TestStore_RoundTrip_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := New(db.Pool, testutil.DiscardLogger())

	// Unknown session yields an empty history.
	turns, err := store.LoadHistory(ctx, "fresh")
	if err != nil {
		t.Fatalf("LoadHistory() error: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("LoadHistory() = %d turns, want 0", len(turns))
	}

	// First append creates the document, the second extends it.
	first := []chat.Turn{
		{Role: chat.RoleUser, Content: "hello"},
		{Role: chat.RoleAssistant, Content: "hi there"},
	}
	if err := store.AppendHistory(ctx, "fresh", first); err != nil {
		t.Fatalf("AppendHistory() error: %v", err)
	}
	second := []chat.Turn{
		{Role: chat.RoleUser, Content: "how are you?"},
		{Role: chat.RoleAssistant, Content: "fine"},
	}
	if err := store.AppendHistory(ctx, "fresh", second); err != nil {
		t.Fatalf("AppendHistory() error: %v", err)
	}

	turns, err = store.LoadHistory(ctx, "fresh")
	if err != nil {
		t.Fatalf("LoadHistory() error: %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("LoadHistory() = %d turns, want 4", len(turns))
	}
	if turns[0].Content != "hello" || turns[3].Content != "fine" {
		t.Errorf("turns out of order: %+v", turns)
	}

	// Eval records land in their own collection without touching history.
	record := chat.EvalRecord{
		Chat:           chat.ChatRecord{Query: "how are you?", Context: []string{"ctx"}, Answer: "fine"},
		Cost:           chat.CostRecord{Model: "test-model", InputTokens: 3, OutputTokens: 1, TotalCost: 0.01},
		ElapsedSeconds: 0.2,
	}
	if err := store.AppendEval(ctx, "fresh", record); err != nil {
		t.Fatalf("AppendEval() error: %v", err)
	}

	turns, err = store.LoadHistory(ctx, "fresh")
	if err != nil {
		t.Fatalf("LoadHistory() error: %v", err)
	}
	if len(turns) != 4 {
		t.Errorf("history changed after eval append: %d turns", len(turns))
	}

	var evals []byte
	err = db.Pool.QueryRow(ctx, `SELECT evals FROM chat_evals WHERE id = $1`, "fresh").Scan(&evals)
	if err != nil {
		t.Fatalf("reading evals: %v", err)
	}
	if len(evals) == 0 {
		t.Error("evals document is empty")
	}
}
