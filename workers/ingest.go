package workers

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/facette/natsort"
	"github.com/google/uuid"

	"github.com/mkardel/photoscope/ai"
	"github.com/mkardel/photoscope/config"
	"github.com/mkardel/photoscope/database"
	"github.com/mkardel/photoscope/loader"
	"github.com/mkardel/photoscope/media"
	"github.com/mkardel/photoscope/models"
	"github.com/mkardel/photoscope/repository"
)

var supportedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// IsRasterImage checks if the filename has a common raster image extension
func IsRasterImage(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return supportedImageExtensions[ext]
}

// Observer receives completion notifications from the pipeline. Calls may
// arrive out of order relative to directory-listing order; consumers key
// updates by image path.
type Observer interface {
	ImageIngested(runID string, image *models.Image, faceCount int)
	ImageSkipped(runID, path, reason string)
	// ImageRemoved fires when a scan finds a stored row whose file is gone
	// from disk and prunes it.
	ImageRemoved(runID, path string)
	RunFinished(runID string, ingested, skipped int, cancelled bool)
}

type ingestJob struct {
	run   *ingestRun
	path  string
	force bool
}

type ingestRun struct {
	id     string
	folder string
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	remaining int
	ingested  int
	skipped   int
}

func (r *ingestRun) finishOne(ingested bool) (done bool, ingestedTotal, skippedTotal int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ingested {
		r.ingested++
	} else {
		r.skipped++
	}
	r.remaining--
	return r.remaining == 0, r.ingested, r.skipped
}

// Ingestor runs the per-image enrichment pipeline on a pool of workers. A
// path is claimed by exactly one worker at a time, which together with the
// already-present check makes double-processing across overlapping scans
// impossible.
type Ingestor struct {
	cfg       config.Config
	imageRepo repository.ImageRepositoryInterface
	loader    *loader.Loader
	observer  Observer

	jobQueue chan ingestJob
	stopChan chan struct{}
	wg       sync.WaitGroup

	// baseCtx covers in-flight inference. It is cancelled only on Stop,
	// never by run cancellation: a superseded run still finishes the image
	// it is on, so a persisted row never carries a cancellation artifact.
	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu         sync.Mutex
	pending    map[string]bool
	currentRun *ingestRun
}

// NewIngestor starts the worker pool immediately.
func NewIngestor(cfg config.Config, imageRepo repository.ImageRepositoryInterface, modelLoader *loader.Loader, observer Observer) *Ingestor {
	numWorkers := cfg.NumIngestWorkers
	if numWorkers <= 0 {
		numWorkers = 1
	}
	queueSize := cfg.IngestQueueSize
	if queueSize <= 0 {
		queueSize = 100
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	ing := &Ingestor{
		cfg:        cfg,
		imageRepo:  imageRepo,
		loader:     modelLoader,
		observer:   observer,
		jobQueue:   make(chan ingestJob, queueSize),
		stopChan:   make(chan struct{}),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		pending:    make(map[string]bool),
	}

	ing.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go ing.worker(i)
	}
	log.Printf("ingest: started %d worker(s) with queue size %d", numWorkers, queueSize)
	return ing
}

// Scan enumerates image files under folder and queues them for ingestion.
// It returns immediately with the run ID and the number of queued files;
// all heavy work happens on the worker pool. Starting a new scan cancels
// whatever remains of the previous one.
func (ing *Ingestor) Scan(folder string, force bool) (string, int, error) {
	info, err := os.Stat(folder)
	if err != nil {
		return "", 0, fmt.Errorf("ingest: cannot access folder %s: %w", folder, err)
	}
	if !info.IsDir() {
		return "", 0, fmt.Errorf("ingest: path is not a directory: %s", folder)
	}

	var paths []string
	walkErr := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Printf("ingest: skipping unreadable entry %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && IsRasterImage(d.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if walkErr != nil {
		return "", 0, fmt.Errorf("ingest: failed to enumerate %s: %w", folder, walkErr)
	}

	// directory-listing order, natural so IMG_9 sorts before IMG_10
	natsort.Sort(paths)

	runID := uuid.NewString()
	ing.pruneMissing(runID, folder, paths)

	ctx, cancel := context.WithCancel(context.Background())
	run := &ingestRun{
		id:        runID,
		folder:    folder,
		ctx:       ctx,
		cancel:    cancel,
		remaining: len(paths),
	}

	ing.mu.Lock()
	if ing.currentRun != nil {
		log.Printf("ingest: cancelling run %s for %s", ing.currentRun.id, ing.currentRun.folder)
		ing.currentRun.cancel()
	}
	ing.currentRun = run
	ing.mu.Unlock()

	log.Printf("ingest: run %s scanning %s: %d image file(s)", run.id, folder, len(paths))

	if len(paths) == 0 {
		ing.mu.Lock()
		if ing.currentRun == run {
			ing.currentRun = nil
		}
		ing.mu.Unlock()
		ing.observer.RunFinished(run.id, 0, 0, false)
		return run.id, 0, nil
	}

	for _, path := range paths {
		select {
		case ing.jobQueue <- ingestJob{run: run, path: path, force: force}:
		default:
			log.Printf("ingest: job queue full, dropping %s", path)
			ing.finishJob(run, path, false, "job queue full", true)
		}
	}

	return run.id, len(paths), nil
}

// CancelCurrent stops the active run, if any, without starting a new one.
func (ing *Ingestor) CancelCurrent() {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	if ing.currentRun != nil {
		ing.currentRun.cancel()
	}
}

// Stop shuts the worker pool down and waits for in-flight images to finish.
func (ing *Ingestor) Stop() {
	log.Println("ingest: stopping workers...")
	ing.CancelCurrent()
	ing.baseCancel()
	close(ing.stopChan)
	ing.wg.Wait()
	log.Println("ingest: all workers stopped")
}

func (ing *Ingestor) worker(id int) {
	defer ing.wg.Done()
	log.Printf("ingest: worker %d started", id)

	for {
		select {
		case job := <-ing.jobQueue:
			ing.handleJob(id, job)
		case <-ing.stopChan:
			log.Printf("ingest: worker %d stopping", id)
			return
		}
	}
}

func (ing *Ingestor) handleJob(workerID int, job ingestJob) {
	// cancellation is cooperative and checked between images only
	if job.run.ctx.Err() != nil {
		ing.finishJob(job.run, job.path, false, "", false)
		return
	}

	ing.mu.Lock()
	if ing.pending[job.path] {
		ing.mu.Unlock()
		ing.finishJob(job.run, job.path, false, "already being processed", true)
		return
	}
	ing.pending[job.path] = true
	ing.mu.Unlock()

	defer func() {
		ing.mu.Lock()
		delete(ing.pending, job.path)
		ing.mu.Unlock()
	}()

	image, faceCount, skipReason, err := ing.processImage(job)
	if err != nil {
		log.Printf("ingest: worker %d: %s: %v", workerID, job.path, err)
		ing.finishJob(job.run, job.path, false, err.Error(), true)
		return
	}
	if image == nil {
		ing.finishJob(job.run, job.path, false, skipReason, skipReason != "")
		return
	}

	ing.observer.ImageIngested(job.run.id, image, faceCount)
	ing.finishJob(job.run, job.path, true, "", false)
}

// finishJob updates run accounting and emits the per-image and, when the
// run drains, the run-completion notifications.
func (ing *Ingestor) finishJob(run *ingestRun, path string, ingested bool, skipReason string, notifySkip bool) {
	if notifySkip {
		ing.observer.ImageSkipped(run.id, path, skipReason)
	}

	done, ingestedTotal, skippedTotal := run.finishOne(ingested)
	if !done {
		return
	}

	cancelled := run.ctx.Err() != nil
	ing.mu.Lock()
	if ing.currentRun == run {
		ing.currentRun = nil
	}
	ing.mu.Unlock()

	log.Printf("ingest: run %s finished: %d ingested, %d skipped, cancelled=%v",
		run.id, ingestedTotal, skippedTotal, cancelled)
	ing.observer.RunFinished(run.id, ingestedTotal, skippedTotal, cancelled)
}

// pruneMissing drops stored rows under folder whose files no longer exist
// on disk, so a scan leaves the database matching the directory. found must
// hold every image file the walk saw.
func (ing *Ingestor) pruneMissing(runID, folder string, found []string) {
	stored, err := ing.imageRepo.ListImages(database.DefaultSortKey)
	if err != nil {
		log.Printf("ingest: prune check failed for %s: %v", folder, err)
		return
	}

	foundSet := make(map[string]bool, len(found))
	for _, p := range found {
		foundSet[p] = true
	}

	prefix := folder + string(filepath.Separator)
	for i := range stored {
		path := stored[i].FilePath
		if !strings.HasPrefix(path, prefix) || foundSet[path] {
			continue
		}
		if err := ing.imageRepo.Delete(path); err != nil {
			log.Printf("ingest: failed to prune %s: %v", path, err)
			continue
		}
		log.Printf("ingest: pruned %s, file no longer on disk", path)
		ing.observer.ImageRemoved(runID, path)
	}
}

// processImage runs the fixed stage sequence for one file. It returns a nil
// image when the file was skipped (already present, or unreadable); the
// skip reason is empty for the routine already-present case.
func (ing *Ingestor) processImage(job ingestJob) (*models.Image, int, string, error) {
	if !job.force {
		exists, err := ing.imageRepo.Exists(job.path)
		if err != nil {
			return nil, 0, "", fmt.Errorf("existence check failed: %w", err)
		}
		if exists {
			return nil, 0, "", nil
		}
	}

	stat, err := os.Stat(job.path)
	if err != nil {
		return nil, 0, "file unreadable: " + err.Error(), nil
	}
	imageData, err := os.ReadFile(job.path)
	if err != nil {
		return nil, 0, "file unreadable: " + err.Error(), nil
	}

	// stage 1: metadata. A file that fails to decode is skipped entirely
	// and never gets an image row.
	meta, err := media.ExtractMetadata(imageData)
	if err != nil {
		return nil, 0, "decode failed: " + err.Error(), nil
	}

	image := &models.Image{
		FilePath:       job.path,
		ModTime:        stat.ModTime().Unix(),
		FileSize:       stat.Size(),
		Width:          &meta.Width,
		Height:         &meta.Height,
		TakenAt:        meta.TakenAt,
		Latitude:       meta.Latitude,
		Longitude:      meta.Longitude,
		MetadataStatus: database.StatusDone,
		IngestedAt:     time.Now().Unix(),
	}

	// give slow model loads a chance before deciding a stage is disabled
	awaitCtx, cancelAwait := context.WithTimeout(ing.baseCtx, ing.cfg.ModelLoadTimeout)
	if err := ing.loader.AwaitReady(awaitCtx); err != nil {
		log.Printf("ingest: model load wait ended early (%v), proceeding degraded", err)
	}
	cancelAwait()

	// stages run under baseCtx, not the run context: run cancellation is
	// only honored between images, so the image we are on completes whole
	faces := ing.runDetection(job, image, imageData, meta)
	caption := ing.runCaptioning(image, imageData)
	ing.runEmbedding(job, image, caption)

	if err := ing.persist(image, faces); err != nil {
		return nil, 0, "", err
	}
	return image, len(faces), "", nil
}

// runDetection executes the face detection stage. Any failure is isolated
// to this image and marks the caption and embedding stages skipped.
func (ing *Ingestor) runDetection(job ingestJob, image *models.Image, imageData []byte, meta *media.Metadata) []models.Face {
	detector := ing.loader.Detector()
	if detector == nil {
		image.DetectionStatus = database.StatusSkipped
		return nil
	}

	boxes, err := detector.Detect(imageData)
	if err != nil {
		setStageError(&image.DetectionStatus, &image.DetectionError, err)
		return nil
	}

	boxes = media.MergeOverlapping(boxes, ing.cfg.FaceDedupeIoU)

	now := time.Now().Unix()
	faces := make([]models.Face, 0, len(boxes))
	for _, box := range boxes {
		if !box.Valid(meta.Width, meta.Height) {
			log.Printf("ingest: dropping out-of-bounds face box %+v for %s", box, job.path)
			continue
		}
		faces = append(faces, models.Face{
			ImagePath: job.path,
			Top:       box.Top,
			Right:     box.Right,
			Bottom:    box.Bottom,
			Left:      box.Left,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	image.DetectionStatus = database.StatusDone
	return faces
}

// runCaptioning executes the caption stage unless an earlier stage failed.
func (ing *Ingestor) runCaptioning(image *models.Image, imageData []byte) ai.Caption {
	if image.DetectionStatus == database.StatusError {
		image.CaptionStatus = database.StatusSkipped
		return ai.Caption{}
	}

	captioner := ing.loader.Captioner()
	if captioner == nil {
		image.CaptionStatus = database.StatusSkipped
		return ai.Caption{}
	}

	input, err := media.PrepareCaptionInput(imageData, ing.cfg.CaptionMaxSize)
	if err != nil {
		setStageError(&image.CaptionStatus, &image.CaptionError, err)
		return ai.Caption{}
	}

	caption, err := captioner.Caption(ing.baseCtx, input)
	if err != nil {
		setStageError(&image.CaptionStatus, &image.CaptionError, err)
		return ai.Caption{}
	}

	if caption.Short != "" {
		image.ShortCaption = &caption.Short
	}
	if caption.Detailed != "" {
		image.DetailedCaption = &caption.Detailed
	}
	image.CaptionStatus = database.StatusDone
	return caption
}

// runEmbedding executes the embedding stage. The detailed caption is the
// preferred input, then the short caption, then the bare file name when
// captioning was skipped; a captioning *failure* skips embedding entirely.
func (ing *Ingestor) runEmbedding(job ingestJob, image *models.Image, caption ai.Caption) {
	if image.CaptionStatus == database.StatusError || image.DetectionStatus == database.StatusError {
		image.EmbeddingStatus = database.StatusSkipped
		return
	}

	embedder := ing.loader.Embedder()
	if embedder == nil {
		image.EmbeddingStatus = database.StatusSkipped
		return
	}

	input := caption.Detailed
	if input == "" {
		input = caption.Short
	}
	if input == "" {
		input = strings.TrimSuffix(filepath.Base(job.path), filepath.Ext(job.path))
	}

	vector, err := embedder.Embed(ing.baseCtx, input)
	if err != nil {
		setStageError(&image.EmbeddingStatus, &image.EmbeddingError, err)
		return
	}

	image.SetEmbedding(vector)
	image.EmbeddingStatus = database.StatusDone
}

// persist commits the image and its faces in one transaction, retrying a
// store failure once before giving the image up.
func (ing *Ingestor) persist(image *models.Image, faces []models.Face) error {
	err := ing.imageRepo.SaveIngestResult(image, faces)
	if err == nil {
		return nil
	}
	log.Printf("ingest: store failure for %s, retrying once: %v", image.FilePath, err)

	if err = ing.imageRepo.SaveIngestResult(image, faces); err != nil {
		return fmt.Errorf("store failure after retry: %w", err)
	}
	return nil
}

func setStageError(status *string, errField **string, err error) {
	*status = database.StatusError
	msg := err.Error()
	*errField = &msg
}
