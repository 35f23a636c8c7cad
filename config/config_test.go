package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"LIBRARY_ROOT", "DATABASE_PATH", "INGEST_QUEUE_SIZE", "NUM_INGEST_WORKERS",
		"FACE_DEDUPE_IOU", "CAPTION_MODEL", "EMBEDDING_MODEL", "CAPTION_MAX_SIZE",
		"SEARCH_FLOOR", "SEARCH_MAX_HITS", "MODEL_LOAD_TIMEOUT_SECONDS",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if !filepath.IsAbs(cfg.LibraryRoot) {
		t.Errorf("library root must be absolute, got %q", cfg.LibraryRoot)
	}
	if cfg.DatabasePath != "photoscope.db" {
		t.Errorf("unexpected default database path %q", cfg.DatabasePath)
	}
	if cfg.IngestQueueSize != 200 {
		t.Errorf("unexpected default queue size %d", cfg.IngestQueueSize)
	}
	if cfg.NumIngestWorkers != 1 {
		t.Errorf("unexpected default worker count %d", cfg.NumIngestWorkers)
	}
	if cfg.FaceDedupeIoU != 0.5 {
		t.Errorf("unexpected default dedupe IoU %g", cfg.FaceDedupeIoU)
	}
	if cfg.SearchFloor != 0.2 {
		t.Errorf("unexpected default search floor %g", cfg.SearchFloor)
	}
	if cfg.SearchMaxHits != 50 {
		t.Errorf("unexpected default max hits %d", cfg.SearchMaxHits)
	}
	if cfg.CaptionModel == "" || cfg.EmbeddingModel == "" {
		t.Error("model names must have defaults")
	}
	if cfg.ModelLoadTimeout != 60*time.Second {
		t.Errorf("unexpected default model load timeout %v", cfg.ModelLoadTimeout)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LIBRARY_ROOT", dir)
	t.Setenv("DATABASE_PATH", filepath.Join(dir, "custom.db"))
	t.Setenv("INGEST_QUEUE_SIZE", "10")
	t.Setenv("NUM_INGEST_WORKERS", "4")
	t.Setenv("FACE_DEDUPE_IOU", "0.75")
	t.Setenv("SEARCH_FLOOR", "0.35")
	t.Setenv("MODEL_LOAD_TIMEOUT_SECONDS", "5")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.LibraryRoot != dir {
		t.Errorf("library root = %q, want %q", cfg.LibraryRoot, dir)
	}
	if cfg.IngestQueueSize != 10 || cfg.NumIngestWorkers != 4 {
		t.Errorf("worker settings not applied: %d/%d", cfg.IngestQueueSize, cfg.NumIngestWorkers)
	}
	if cfg.FaceDedupeIoU != 0.75 {
		t.Errorf("dedupe IoU = %g, want 0.75", cfg.FaceDedupeIoU)
	}
	if cfg.SearchFloor != 0.35 {
		t.Errorf("search floor = %g, want 0.35", cfg.SearchFloor)
	}
	if cfg.ModelLoadTimeout != 5*time.Second {
		t.Errorf("model load timeout = %v, want 5s", cfg.ModelLoadTimeout)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("INGEST_QUEUE_SIZE", "not-a-number")
	t.Setenv("NUM_INGEST_WORKERS", "-3")
	t.Setenv("FACE_DEDUPE_IOU", "banana")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.IngestQueueSize != 200 {
		t.Errorf("invalid queue size must fall back to default, got %d", cfg.IngestQueueSize)
	}
	if cfg.NumIngestWorkers != 1 {
		t.Errorf("negative worker count must fall back to default, got %d", cfg.NumIngestWorkers)
	}
	if cfg.FaceDedupeIoU != 0.5 {
		t.Errorf("invalid IoU must fall back to default, got %g", cfg.FaceDedupeIoU)
	}
}
