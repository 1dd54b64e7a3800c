// Package memory provides an in-memory store.Store backed by brute-force
// cosine search. It serves tests and single-node deployments that do not run
// a vector database.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/sitewise-ai/sitewise/internal/store"
)

// Store keeps records in a map and scans them on every query. Safe for
// concurrent use; concurrent Adds to the same id are last-write-wins.
type Store struct {
	mu      sync.RWMutex
	records map[string]entry
	dims    int // fixed by the first insert, 0 until then
	seq     uint64
}

type entry struct {
	rec store.Record
	seq uint64 // insertion order, used as the query tie-break
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{records: make(map[string]entry)}
}

func (s *Store) Add(_ context.Context, rec store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dims == 0 {
		s.dims = len(rec.Embedding)
	} else if len(rec.Embedding) != s.dims {
		return store.ErrDimensionMismatch
	}

	s.seq++
	s.records[rec.ID] = entry{rec: rec, seq: s.seq}
	return nil
}

// Query scans all records and returns up to k matches ordered by similarity
// descending. Ties are broken by most recent insertion first.
func (s *Store) Query(_ context.Context, embedding []float32, k int, status store.Status) ([]store.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		e   entry
		sim float32
	}

	var matches []scored
	for _, e := range s.records {
		if status != store.StatusAny && e.rec.Status != status {
			continue
		}
		matches = append(matches, scored{e: e, sim: cosineSimilarity(embedding, e.rec.Embedding)})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].sim != matches[j].sim {
			return matches[i].sim > matches[j].sim
		}
		return matches[i].e.seq > matches[j].e.seq
	})

	if k < len(matches) {
		matches = matches[:k]
	}

	results := make([]store.Result, len(matches))
	for i, m := range matches {
		results[i] = store.Result{
			SurveyID:   m.e.rec.ID,
			Analysis:   m.e.rec.Document,
			Metadata:   m.e.rec.Metadata,
			Similarity: m.sim,
		}
	}
	return results, nil
}

func (s *Store) Get(_ context.Context, id string) (store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.records[id]
	if !ok {
		return store.Record{}, store.ErrNotFound
	}
	return e.rec, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)
	return nil
}

func (s *Store) Stats(_ context.Context) (store.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]store.Status, 0, len(s.records))
	for _, e := range s.records {
		statuses = append(statuses, e.rec.Status)
	}
	return store.ComputeStats(statuses), nil
}

func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]entry)
	s.dims = 0
	return nil
}

func (s *Store) Close() error { return nil }

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

var _ store.Store = (*Store)(nil)
