// Package kb seeds the similarity store with labelled historical surveys.
// The seed layout is a directory with pass/ and fail/ subdirectories of
// equipment photos; each photo becomes one stored survey with its verdict
// taken from the directory it lives in.
package kb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sitewise-ai/sitewise/internal/llm"
	"github.com/sitewise-ai/sitewise/internal/store"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// Seeder analyzes labelled images and writes them to the store.
type Seeder struct {
	provider llm.Provider
	store    store.Store
	log      *slog.Logger
}

// NewSeeder creates a Seeder. provider must be non-nil: seeding needs both
// an analysis and an embedding per image.
func NewSeeder(provider llm.Provider, st store.Store, log *slog.Logger) *Seeder {
	if log == nil {
		log = slog.Default()
	}
	return &Seeder{provider: provider, store: st, log: log}
}

// Report summarizes one seeding run.
type Report struct {
	Seeded  int `json:"seeded"`
	Skipped int `json:"skipped"`
}

// SeedDir loads every image under dir/pass and dir/fail into the store.
// Unreadable or non-image files are skipped and counted; analysis failures
// abort the run so a flaky model does not half-populate the knowledge base.
func (s *Seeder) SeedDir(ctx context.Context, dir string) (Report, error) {
	var report Report

	for _, status := range []store.Status{store.StatusPass, store.StatusFail} {
		sub := filepath.Join(dir, string(status))
		entries, err := os.ReadDir(sub)
		if os.IsNotExist(err) {
			s.log.Warn("seed directory missing, skipping", "dir", sub)
			continue
		}
		if err != nil {
			return report, fmt.Errorf("read seed directory %s: %w", sub, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
				report.Skipped++
				continue
			}
			path := filepath.Join(sub, entry.Name())
			if err := s.seedImage(ctx, path, status); err != nil {
				return report, fmt.Errorf("seed %s: %w", path, err)
			}
			report.Seeded++
		}
	}

	return report, nil
}

func (s *Seeder) seedImage(ctx context.Context, path string, status store.Status) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	analysis, err := s.provider.Analyze(ctx, data, seedPrompt(status))
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	embedding, err := s.provider.Embed(ctx, data)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	rec := store.Record{
		ID:        uuid.NewString(),
		Embedding: embedding,
		Document:  llm.CleanOutput(analysis),
		Status:    status,
		Timestamp: time.Now(),
		Metadata: map[string]string{
			"source":      "seed",
			"source_file": filepath.Base(path),
		},
	}
	if err := s.store.Add(ctx, rec); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	s.log.Info("seeded survey", "file", filepath.Base(path), "status", status, "survey_id", rec.ID)
	return nil
}

// ManifestRecord is one historical survey in a seed manifest.
type ManifestRecord struct {
	// Image is the photo path, relative to the manifest file.
	Image string `json:"image"`
	// Status is "pass" or "fail".
	Status store.Status `json:"status"`
	// Analysis is an optional pre-written reference description. When empty
	// the provider writes one from the image.
	Analysis string            `json:"analysis,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SeedManifest loads a JSON array of ManifestRecords. Records without a
// usable image file are skipped with a warning; records with an invalid
// status abort the run.
func (s *Seeder) SeedManifest(ctx context.Context, path string) (Report, error) {
	var report Report

	data, err := os.ReadFile(path)
	if err != nil {
		return report, fmt.Errorf("read manifest: %w", err)
	}
	var records []ManifestRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return report, fmt.Errorf("parse manifest: %w", err)
	}

	base := filepath.Dir(path)
	for i, rec := range records {
		if rec.Status != store.StatusPass && rec.Status != store.StatusFail {
			return report, fmt.Errorf("manifest record %d: invalid status %q", i, rec.Status)
		}
		if rec.Image == "" {
			s.log.Warn("manifest record has no image, skipping", "index", i)
			report.Skipped++
			continue
		}

		imgPath := rec.Image
		if !filepath.IsAbs(imgPath) {
			imgPath = filepath.Join(base, imgPath)
		}
		img, err := os.ReadFile(imgPath)
		if err != nil {
			s.log.Warn("manifest image unreadable, skipping", "index", i, "image", imgPath, "error", err)
			report.Skipped++
			continue
		}

		analysis := rec.Analysis
		if analysis == "" {
			raw, err := s.provider.Analyze(ctx, img, seedPrompt(rec.Status))
			if err != nil {
				return report, fmt.Errorf("manifest record %d: analyze: %w", i, err)
			}
			analysis = llm.CleanOutput(raw)
		}
		embedding, err := s.provider.Embed(ctx, img)
		if err != nil {
			return report, fmt.Errorf("manifest record %d: embed: %w", i, err)
		}

		metadata := map[string]string{
			"source":      "seed",
			"source_file": filepath.Base(imgPath),
		}
		for k, v := range rec.Metadata {
			metadata[k] = v
		}

		stored := store.Record{
			ID:        uuid.NewString(),
			Embedding: embedding,
			Document:  analysis,
			Status:    rec.Status,
			Timestamp: time.Now(),
			Metadata:  metadata,
		}
		if err := s.store.Add(ctx, stored); err != nil {
			return report, fmt.Errorf("manifest record %d: store: %w", i, err)
		}
		report.Seeded++
		s.log.Info("seeded survey", "file", filepath.Base(imgPath), "status", rec.Status, "survey_id", stored.ID)
	}

	return report, nil
}

func seedPrompt(status store.Status) string {
	outcome := "passed inspection"
	if status == store.StatusFail {
		outcome = "failed inspection"
	}
	return fmt.Sprintf(`This industrial equipment image is from a historical site survey that %s.

Describe the equipment and its visible condition: component types, fastener
and connection state, and any wear, corrosion, damage or misalignment.
Write a concise reference description for comparison against future surveys.`, outcome)
}
