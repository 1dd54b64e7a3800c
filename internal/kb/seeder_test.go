package kb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sitewise-ai/sitewise/internal/store"
	"github.com/sitewise-ai/sitewise/internal/store/memory"
)

type countingProvider struct {
	analyzeErr error
	calls      int
}

func (p *countingProvider) Analyze(ctx context.Context, image []byte, prompt string) (string, error) {
	if p.analyzeErr != nil {
		return "", p.analyzeErr
	}
	p.calls++
	return "reference description", nil
}

func (p *countingProvider) Embed(ctx context.Context, image []byte) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func (p *countingProvider) Name() string { return "counting" }

func writeSeedTree(t *testing.T, passFiles, failFiles []string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range passFiles {
		writeSeedFile(t, filepath.Join(dir, "pass", name))
	}
	for _, name := range failFiles {
		writeSeedFile(t, filepath.Join(dir, "fail", name))
	}
	return dir
}

func writeSeedFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("image-bytes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestSeedDir(t *testing.T) {
	dir := writeSeedTree(t,
		[]string{"ok-1.jpg", "ok-2.png"},
		[]string{"bad-1.jpeg"},
	)

	mem := memory.New()
	s := NewSeeder(&countingProvider{}, mem, nil)

	report, err := s.SeedDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("SeedDir: %v", err)
	}
	if report.Seeded != 3 {
		t.Errorf("seeded = %d, want 3", report.Seeded)
	}

	stats, err := mem.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.PassCount != 2 || stats.FailCount != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSeedDirSkipsNonImages(t *testing.T) {
	dir := writeSeedTree(t, []string{"ok.jpg", "notes.txt"}, nil)

	mem := memory.New()
	report, err := NewSeeder(&countingProvider{}, mem, nil).SeedDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("SeedDir: %v", err)
	}
	if report.Seeded != 1 || report.Skipped != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestSeedDirMissingSubdirs(t *testing.T) {
	report, err := NewSeeder(&countingProvider{}, memory.New(), nil).SeedDir(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("SeedDir on empty tree: %v", err)
	}
	if report.Seeded != 0 {
		t.Errorf("seeded = %d, want 0", report.Seeded)
	}
}

func TestSeedDirAbortsOnAnalysisFailure(t *testing.T) {
	dir := writeSeedTree(t, []string{"ok.jpg"}, nil)

	provider := &countingProvider{analyzeErr: errors.New("model down")}
	_, err := NewSeeder(provider, memory.New(), nil).SeedDir(context.Background(), dir)
	if err == nil {
		t.Fatal("SeedDir succeeded despite analysis failure")
	}
}

func TestSeedManifest(t *testing.T) {
	dir := t.TempDir()
	writeSeedFile(t, filepath.Join(dir, "pump.jpg"))
	writeSeedFile(t, filepath.Join(dir, "flange.jpg"))

	manifest := filepath.Join(dir, "manifest.json")
	content := `[
		{"image": "pump.jpg", "status": "pass", "analysis": "pre-written description", "metadata": {"site": "plant-2"}},
		{"image": "flange.jpg", "status": "fail"},
		{"image": "missing.jpg", "status": "pass"}
	]`
	if err := os.WriteFile(manifest, []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	mem := memory.New()
	provider := &countingProvider{}
	report, err := NewSeeder(provider, mem, nil).SeedManifest(context.Background(), manifest)
	if err != nil {
		t.Fatalf("SeedManifest: %v", err)
	}
	if report.Seeded != 2 || report.Skipped != 1 {
		t.Errorf("report = %+v", report)
	}
	// Only the record without a pre-written analysis hits the model.
	if provider.calls != 1 {
		t.Errorf("analyze calls = %d, want 1", provider.calls)
	}

	results, err := mem.Query(context.Background(), []float32{0.1, 0.2}, 2, store.StatusPass)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0].Analysis != "pre-written description" {
		t.Errorf("results = %+v", results)
	}
	if results[0].Metadata["site"] != "plant-2" {
		t.Errorf("manifest metadata not carried: %v", results[0].Metadata)
	}
}

func TestSeedManifestInvalidStatus(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(manifest, []byte(`[{"image": "x.jpg", "status": "maybe"}]`), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	_, err := NewSeeder(&countingProvider{}, memory.New(), nil).SeedManifest(context.Background(), manifest)
	if err == nil {
		t.Fatal("SeedManifest accepted an invalid status")
	}
}

func TestSeedRecordsCarrySourceMetadata(t *testing.T) {
	dir := writeSeedTree(t, []string{"ok.jpg"}, nil)
	mem := memory.New()

	if _, err := NewSeeder(&countingProvider{}, mem, nil).SeedDir(context.Background(), dir); err != nil {
		t.Fatalf("SeedDir: %v", err)
	}

	results, err := mem.Query(context.Background(), []float32{0.1, 0.2}, 1, store.StatusAny)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Metadata["source"] != "seed" || results[0].Metadata["source_file"] != "ok.jpg" {
		t.Errorf("metadata = %v", results[0].Metadata)
	}
}
