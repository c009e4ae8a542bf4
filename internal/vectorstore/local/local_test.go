package local

import (
	"context"
	"errors"
	"testing"

	"faqrag/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	return s
}

func record(id, collection string, vector ...float32) domain.Record {
	return domain.Record{
		Chunk:      domain.Chunk{ID: id, Text: "text-" + id, Source: "faq.md"},
		Vector:     vector,
		Collection: collection,
	}
}

func TestUpsertQueryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.EnsureCollection(ctx, "faq", 3); err != nil {
		t.Fatal(err)
	}
	records := []domain.Record{
		record("a", "faq", 1, 0, 0),
		record("b", "faq", 0, 1, 0),
		record("c", "faq", 0, 0, 1),
	}
	if err := s.Upsert(ctx, records); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, err := s.Query(ctx, "faq", []float32{0, 1, 0}, 1)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("expected b as top result, got %+v", got)
	}
	if got[0].Score < 0.999 {
		t.Errorf("identical vector should score ~1.0, got %f", got[0].Score)
	}
}

func TestUpsertIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.EnsureCollection(ctx, "faq", 2); err != nil {
		t.Fatal(err)
	}
	r := record("a", "faq", 1, 0)
	if err := s.Upsert(ctx, []domain.Record{r}); err != nil {
		t.Fatal(err)
	}
	first, err := s.Query(ctx, "faq", []float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, []domain.Record{r}); err != nil {
		t.Fatal(err)
	}
	second, err := s.Query(ctx, "faq", []float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("result count changed after duplicate upsert: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID || first[i].Score != second[i].Score {
			t.Errorf("result %d changed after duplicate upsert", i)
		}
	}
}

func TestQueryOrderingAndTieBreak(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.EnsureCollection(ctx, "faq", 2); err != nil {
		t.Fatal(err)
	}
	// b and a score identically against the query; c scores lower.
	records := []domain.Record{
		record("b", "faq", 2, 0),
		record("a", "faq", 1, 0),
		record("c", "faq", 1, 1),
	}
	if err := s.Upsert(ctx, records); err != nil {
		t.Fatal(err)
	}
	got, err := s.Query(ctx, "faq", []float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	ids := []string{got[0].ID, got[1].ID, got[2].ID}
	if ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Fatalf("expected [a b c] (score desc, ID asc on ties), got %v", ids)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("scores not descending at %d", i)
		}
	}
}

func TestQueryReturnsAtMostK(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.EnsureCollection(ctx, "faq", 2); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, []domain.Record{record("a", "faq", 1, 0), record("b", "faq", 0, 1)}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Query(ctx, "faq", []float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected all 2 records when k exceeds size, got %d", len(got))
	}
}

func TestEnsureCollectionDimensionGuard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.EnsureCollection(ctx, "x", 768); err != nil {
		t.Fatal(err)
	}
	// Same dimension is an idempotent no-op.
	if err := s.EnsureCollection(ctx, "x", 768); err != nil {
		t.Fatalf("re-ensuring with same dimension: %v", err)
	}
	err := s.EnsureCollection(ctx, "x", 1536)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestUpsertRejectsWrongDimension(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.EnsureCollection(ctx, "faq", 3); err != nil {
		t.Fatal(err)
	}
	err := s.Upsert(ctx, []domain.Record{record("a", "faq", 1, 0)})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	// The failed batch must not be partially visible.
	got, err := s.Query(ctx, "faq", []float32{1, 0, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("rejected batch leaked %d records into the collection", len(got))
	}
}

func TestUpsertAcrossCollectionsIsAllOrNothing(t *testing.T) {
	// Whichever collection holds the invalid record, the other one must not
	// be written either.
	for _, badName := range []string{"aaa", "zzz"} {
		t.Run("bad record in "+badName, func(t *testing.T) {
			s := newTestStore(t)
			ctx := context.Background()
			goodName := "aaa"
			if badName == "aaa" {
				goodName = "zzz"
			}
			for _, name := range []string{"aaa", "zzz"} {
				if err := s.EnsureCollection(ctx, name, 2); err != nil {
					t.Fatal(err)
				}
			}
			err := s.Upsert(ctx, []domain.Record{
				record("good", goodName, 1, 0),
				record("bad", badName, 1, 0, 0),
			})
			if !errors.Is(err, domain.ErrDimensionMismatch) {
				t.Fatalf("expected ErrDimensionMismatch, got %v", err)
			}
			for _, name := range []string{"aaa", "zzz"} {
				got, err := s.Query(ctx, name, []float32{1, 0}, 10)
				if err != nil {
					t.Fatal(err)
				}
				if len(got) != 0 {
					t.Fatalf("rejected batch committed %d record(s) to collection %s", len(got), name)
				}
			}
		})
	}
}

func TestSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureCollection(ctx, "faq", 2); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, []domain.Record{record("a", "faq", 1, 0)}); err != nil {
		t.Fatal(err)
	}

	reopened, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := reopened.Query(ctx, "faq", []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("query after reopen: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" || got[0].Text != "text-a" {
		t.Fatalf("record did not survive reopen: %+v", got)
	}
}

func TestCollectionsAreDistinct(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.EnsureCollection(ctx, "one", 2); err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureCollection(ctx, "two", 2); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, []domain.Record{record("a", "one", 1, 0)}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Query(ctx, "two", []float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("record from collection one leaked into two: %+v", got)
	}
}

func TestQueryUnknownCollection(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Query(context.Background(), "nope", []float32{1}, 1); err == nil {
		t.Fatal("expected error querying a collection that does not exist")
	}
}

func TestInvalidCollectionNames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, name := range []string{"", "..", "a/b"} {
		if err := s.EnsureCollection(ctx, name, 2); err == nil {
			t.Errorf("expected error for collection name %q", name)
		}
	}
}
