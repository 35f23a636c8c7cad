package coordinator

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mkardel/photoscope/config"
	"github.com/mkardel/photoscope/database"
	"github.com/mkardel/photoscope/loader"
	"github.com/mkardel/photoscope/media"
	"github.com/mkardel/photoscope/models"
	"github.com/mkardel/photoscope/realtime"
	"github.com/mkardel/photoscope/repository"
	"github.com/mkardel/photoscope/search"
	"github.com/mkardel/photoscope/workers"
)

// Status is what the status bar shows: provider readiness plus whatever
// scan is currently running.
type Status struct {
	Providers    loader.Snapshot `json:"providers"`
	ActiveRunID  string          `json:"active_run_id,omitempty"`
	ActiveFolder string          `json:"active_folder,omitempty"`
	IndexedCount int             `json:"indexed_count"`
}

// Coordinator is the boundary object the interactive side talks to. It
// sequences folder scans into the pipeline, answers queries, and relays
// pipeline completions to the hub; none of its methods block on model
// inference except Search, which embeds one short string.
type Coordinator struct {
	cfg       config.Config
	loader    *loader.Loader
	engine    *search.Engine
	imageRepo repository.ImageRepositoryInterface
	faceRepo  repository.FaceRepositoryInterface
	hub       *realtime.Hub

	ingestor *workers.Ingestor

	mu           sync.Mutex
	activeRunID  string
	activeFolder string
}

func New(
	cfg config.Config,
	modelLoader *loader.Loader,
	engine *search.Engine,
	imageRepo repository.ImageRepositoryInterface,
	faceRepo repository.FaceRepositoryInterface,
	hub *realtime.Hub,
) *Coordinator {
	c := &Coordinator{
		cfg:       cfg,
		loader:    modelLoader,
		engine:    engine,
		imageRepo: imageRepo,
		faceRepo:  faceRepo,
		hub:       hub,
	}
	c.ingestor = workers.NewIngestor(cfg, imageRepo, modelLoader, c)

	// push one provider snapshot when loading settles, so the status bar
	// updates without polling
	go func() {
		if err := modelLoader.AwaitReady(context.Background()); err != nil {
			return
		}
		c.hub.Broadcast(realtime.Event{
			Type:      realtime.EventProviderState,
			Providers: modelLoader.Status(),
		})
	}()

	return c
}

// OpenFolder validates the folder and starts ingesting it in the
// background, cancelling any scan still running for a previous folder. It
// returns the run ID without waiting for any processing.
func (c *Coordinator) OpenFolder(folder string, force bool) (string, int, error) {
	absFolder, err := filepath.Abs(folder)
	if err != nil {
		return "", 0, fmt.Errorf("invalid folder path %s: %w", folder, err)
	}
	// path-aware containment: a plain prefix check would accept siblings
	// like <root>-other
	rel, err := filepath.Rel(c.cfg.LibraryRoot, absFolder)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", 0, fmt.Errorf("folder %s is outside the library root", absFolder)
	}

	runID, queued, err := c.ingestor.Scan(absFolder, force)
	if err != nil {
		return "", 0, err
	}

	// an empty folder finishes inside Scan, so there is nothing to track
	if queued > 0 {
		c.mu.Lock()
		c.activeRunID = runID
		c.activeFolder = absFolder
		c.mu.Unlock()
	}

	return runID, queued, nil
}

// Search answers a natural-language query. An empty query means "no
// filter" and returns every stored image, so clearing the search box
// restores the full grid.
func (c *Coordinator) Search(ctx context.Context, query string) ([]search.Result, error) {
	if strings.TrimSpace(query) == "" {
		images, err := c.imageRepo.ListImages(database.DefaultSortKey)
		if err != nil {
			return nil, err
		}
		results := make([]search.Result, 0, len(images))
		for i := range images {
			results = append(results, search.Result{FilePath: images[i].FilePath})
		}
		return results, nil
	}
	return c.engine.Search(ctx, query)
}

// ListImages returns the full collection under the given sort key.
func (c *Coordinator) ListImages(sortKey string) ([]models.Image, error) {
	if !database.IsValidSortKey(sortKey) {
		sortKey = database.DefaultSortKey
	}
	return c.imageRepo.ListImages(sortKey)
}

// ListFaces returns the detected faces for one image.
func (c *Coordinator) ListFaces(imagePath string) ([]models.Face, error) {
	return c.faceRepo.ListByImagePath(imagePath)
}

// TagFace assigns a name to an existing detected face.
func (c *Coordinator) TagFace(imagePath string, box media.Box, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("face name must not be empty")
	}
	return c.faceRepo.TagFace(imagePath, box, name)
}

// FaceAt maps a pointer position within an image to the enclosing detected
// face box, for hover highlighting and click-to-tag.
func (c *Coordinator) FaceAt(imagePath string, x, y int) (media.Box, bool, error) {
	faces, err := c.faceRepo.ListByImagePath(imagePath)
	if err != nil {
		return media.Box{}, false, err
	}
	boxes := make([]media.Box, len(faces))
	for i := range faces {
		boxes[i] = media.Box{
			Top:    faces[i].Top,
			Right:  faces[i].Right,
			Bottom: faces[i].Bottom,
			Left:   faces[i].Left,
		}
	}
	box, ok := media.BoxAt(boxes, x, y)
	return box, ok, nil
}

// Status returns provider readiness and scan state without blocking.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	runID, folder := c.activeRunID, c.activeFolder
	c.mu.Unlock()

	return Status{
		Providers:    c.loader.Status(),
		ActiveRunID:  runID,
		ActiveFolder: folder,
		IndexedCount: c.engine.Count(),
	}
}

// Stop shuts down background ingestion.
func (c *Coordinator) Stop() {
	c.ingestor.Stop()
}

// ImageIngested implements workers.Observer: newly persisted embeddings go
// straight into the search index, and the hub tells clients to refresh
// that one path.
func (c *Coordinator) ImageIngested(runID string, image *models.Image, faceCount int) {
	if vec := image.GetEmbedding(); len(vec) > 0 {
		c.engine.Index(image.FilePath, vec, image.TakenAt)
	}
	c.hub.Broadcast(realtime.Event{
		Type:  realtime.EventImageIngested,
		RunID: runID,
		Path:  image.FilePath,
		Faces: faceCount,
	})
}

// ImageRemoved implements workers.Observer: a pruned row leaves the search
// index with it.
func (c *Coordinator) ImageRemoved(runID, path string) {
	c.engine.Remove(path)
	c.hub.Broadcast(realtime.Event{
		Type:  realtime.EventImageRemoved,
		RunID: runID,
		Path:  path,
	})
}

// ImageSkipped implements workers.Observer.
func (c *Coordinator) ImageSkipped(runID, path, reason string) {
	c.hub.Broadcast(realtime.Event{
		Type:   realtime.EventImageSkipped,
		RunID:  runID,
		Path:   path,
		Reason: reason,
	})
}

// RunFinished implements workers.Observer.
func (c *Coordinator) RunFinished(runID string, ingested, skipped int, cancelled bool) {
	c.mu.Lock()
	if c.activeRunID == runID {
		c.activeRunID = ""
		c.activeFolder = ""
	}
	c.mu.Unlock()

	log.Printf("coordinator: run %s done (%d ingested, %d skipped)", runID, ingested, skipped)
	c.hub.Broadcast(realtime.Event{
		Type:      realtime.EventRunFinished,
		RunID:     runID,
		Ingested:  ingested,
		Skipped:   skipped,
		Cancelled: cancelled,
	})
}
