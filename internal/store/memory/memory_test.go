package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sitewise-ai/sitewise/internal/store"
)

func rec(id string, emb []float32, status store.Status) store.Record {
	return store.Record{
		ID:        id,
		Embedding: emb,
		Document:  "report for " + id,
		Metadata:  map[string]string{"num_images": "1"},
		Status:    status,
	}
}

func TestAddGet_RoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	r := rec("s1", []float32{1, 0, 0}, store.StatusPass)
	r.Document = "d"
	if err := s.Add(ctx, r); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Document != "d" {
		t.Errorf("document = %q, want %q", got.Document, "d")
	}
	if got.Status != store.StatusPass {
		t.Errorf("status = %q, want pass", got.Status)
	}
}

func TestAdd_Overwrites(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Add(ctx, rec("s1", []float32{1, 0, 0}, store.StatusPass)); err != nil {
		t.Fatal(err)
	}
	updated := rec("s1", []float32{0, 1, 0}, store.StatusFail)
	if err := s.Add(ctx, updated); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != store.StatusFail {
		t.Errorf("status after overwrite = %q, want fail", got.Status)
	}

	stats, _ := s.Stats(ctx)
	if stats.Total != 1 {
		t.Errorf("total after overwrite = %d, want 1", stats.Total)
	}
}

func TestAdd_DimensionMismatch(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Add(ctx, rec("s1", []float32{1, 0, 0}, store.StatusPass)); err != nil {
		t.Fatal(err)
	}
	err := s.Add(ctx, rec("s2", []float32{1, 0}, store.StatusPass))
	if !errors.Is(err, store.ErrDimensionMismatch) {
		t.Fatalf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := New()
	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete_Idempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Delete(ctx, "missing"); err != nil {
		t.Fatalf("deleting unknown id: %v", err)
	}

	if err := s.Add(ctx, rec("s1", []float32{1, 0, 0}, store.StatusPass)); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "s1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("get after delete: err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "s1"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestQuery_StatusFilter(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		status := store.StatusPass
		if i%2 == 1 {
			status = store.StatusFail
		}
		emb := []float32{float32(i), 1, 0}
		if err := s.Add(ctx, rec(fmt.Sprintf("s%d", i), emb, status)); err != nil {
			t.Fatal(err)
		}
	}

	results, err := s.Query(ctx, []float32{1, 1, 0}, 10, store.StatusPass)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for _, r := range results {
		got, err := s.Get(ctx, r.SurveyID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != store.StatusPass {
			t.Errorf("result %s has status %q, want pass", r.SurveyID, got.Status)
		}
	}
}

func TestQuery_FewerThanK(t *testing.T) {
	s := New()
	ctx := context.Background()

	_ = s.Add(ctx, rec("a", []float32{1, 0}, store.StatusPass))
	_ = s.Add(ctx, rec("b", []float32{0, 1}, store.StatusPass))

	results, err := s.Query(ctx, []float32{1, 0}, 5, store.StatusAny)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
}

func TestQuery_OrderedBySimilarity(t *testing.T) {
	s := New()
	ctx := context.Background()

	_ = s.Add(ctx, rec("far", []float32{0, 1, 0}, store.StatusPass))
	_ = s.Add(ctx, rec("near", []float32{1, 0.1, 0}, store.StatusPass))
	_ = s.Add(ctx, rec("exact", []float32{1, 0, 0}, store.StatusPass))

	results, err := s.Query(ctx, []float32{1, 0, 0}, 3, store.StatusAny)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	want := []string{"exact", "near", "far"}
	for i, id := range want {
		if results[i].SurveyID != id {
			t.Errorf("results[%d] = %s, want %s", i, results[i].SurveyID, id)
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Errorf("results not ordered by similarity descending at %d", i)
		}
	}
}

func TestQuery_EmptyStore(t *testing.T) {
	s := New()
	results, err := s.Query(context.Background(), []float32{1, 0}, 3, store.StatusPass)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results from empty store, want 0", len(results))
	}
}

func TestStats(t *testing.T) {
	s := New()
	ctx := context.Background()

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 0 || stats.PassCount != 0 || stats.FailCount != 0 || stats.PassRate != 0 {
		t.Fatalf("empty store stats = %+v, want zeros", stats)
	}

	_ = s.Add(ctx, rec("a", []float32{1, 0}, store.StatusPass))
	_ = s.Add(ctx, rec("b", []float32{0, 1}, store.StatusFail))
	_ = s.Add(ctx, rec("c", []float32{1, 1}, store.StatusPass))

	stats, err = s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 3 || stats.PassCount != 2 || stats.FailCount != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if want := 2.0 / 3.0; stats.PassRate != want {
		t.Errorf("pass rate = %f, want %f", stats.PassRate, want)
	}

	// Stats must track deletions since they rescan the store.
	_ = s.Delete(ctx, "a")
	stats, _ = s.Stats(ctx)
	if stats.Total != 2 || stats.PassCount != 1 {
		t.Fatalf("stats after delete = %+v", stats)
	}
}

func TestReset(t *testing.T) {
	s := New()
	ctx := context.Background()

	_ = s.Add(ctx, rec("a", []float32{1, 0}, store.StatusPass))
	if err := s.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	stats, _ := s.Stats(ctx)
	if stats.Total != 0 {
		t.Fatalf("total after reset = %d, want 0", stats.Total)
	}

	// Dimensionality is re-established by the first insert after a reset.
	if err := s.Add(ctx, rec("b", []float32{1, 0, 0, 0}, store.StatusFail)); err != nil {
		t.Fatal(err)
	}
}
