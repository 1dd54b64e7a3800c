// Package store defines the similarity store that persists completed survey
// records and answers nearest-neighbor queries over their image embeddings.
package store

import (
	"context"
	"errors"
	"time"
)

// Status is the pass/fail outcome of a survey.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
)

// StatusAny disables status filtering on Query.
const StatusAny Status = ""

var (
	// ErrNotFound is returned by Get when no record exists for the id.
	ErrNotFound = errors.New("store: record not found")
	// ErrDimensionMismatch is returned by Add when the embedding width does
	// not match the width established by the collection.
	ErrDimensionMismatch = errors.New("store: embedding dimension mismatch")
)

// Record is one persisted survey.
type Record struct {
	ID        string            `json:"id"`
	Embedding []float32         `json:"embedding"`
	Document  string            `json:"document"`
	Metadata  map[string]string `json:"metadata"`
	Status    Status            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
}

// Result is a single match from a similarity query.
type Result struct {
	SurveyID   string            `json:"survey_id"`
	Analysis   string            `json:"analysis"`
	Metadata   map[string]string `json:"metadata"`
	Similarity float32           `json:"similarity_score"`
}

// Stats summarizes the store contents. PassRate is zero on an empty store.
type Stats struct {
	Total     int     `json:"total_surveys"`
	PassCount int     `json:"pass_count"`
	FailCount int     `json:"fail_count"`
	PassRate  float64 `json:"pass_rate"`
}

// Store provides persistence and similarity search for survey records.
type Store interface {
	// Add upserts a record; re-adding an existing id overwrites it.
	Add(ctx context.Context, rec Record) error
	// Query returns up to k nearest neighbors ordered by similarity
	// descending. A non-empty status restricts matches to records with that
	// stored status; fewer than k qualifying records return fewer results.
	Query(ctx context.Context, embedding []float32, k int, status Status) ([]Result, error)
	// Get retrieves a record by id, or ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)
	// Delete removes a record. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
	// Stats recomputes aggregate counts from the current store contents.
	Stats(ctx context.Context) (Stats, error)
	// Reset drops all stored records.
	Reset(ctx context.Context) error
	// Close releases resources.
	Close() error
}

// ComputeStats derives aggregate counts from a scan of stored statuses.
// Records with a status other than pass or fail count toward the total only.
func ComputeStats(statuses []Status) Stats {
	s := Stats{Total: len(statuses)}
	for _, st := range statuses {
		switch st {
		case StatusPass:
			s.PassCount++
		case StatusFail:
			s.FailCount++
		}
	}
	if s.Total > 0 {
		s.PassRate = float64(s.PassCount) / float64(s.Total)
	}
	return s
}
