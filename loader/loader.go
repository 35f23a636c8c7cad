package loader

import (
	"context"
	"log"
	"sync"

	"github.com/mkardel/photoscope/ai"
	"github.com/mkardel/photoscope/media"
)

// Status is the load state of one capability provider. Transitions are
// monotonic for the lifetime of a run: not_ready moves to ready or failed
// exactly once and never reverts.
type Status string

const (
	StatusNotReady Status = "not_ready"
	StatusReady    Status = "ready"
	StatusFailed   Status = "failed"
)

// Snapshot is a point-in-time view of all provider states.
type Snapshot struct {
	Caption Status `json:"caption"`
	Detect  Status `json:"detect"`
	Embed   Status `json:"embed"`
}

// Terminal reports whether every provider has finished loading, one way or
// the other.
func (s Snapshot) Terminal() bool {
	return s.Caption != StatusNotReady && s.Detect != StatusNotReady && s.Embed != StatusNotReady
}

// Factories produce the three capability providers. Construction is where
// model weights load, so each factory may take seconds; a factory returning
// an error marks that provider failed without affecting the others.
type Factories struct {
	Captioner func() (ai.Captioner, error)
	Detector  func() (media.FaceDetector, error)
	Embedder  func() (ai.Embedder, error)
}

// Loader owns the lifecycle of the capability providers. Start kicks off
// asynchronous initialization exactly once; accessors return nil until the
// corresponding provider is ready.
type Loader struct {
	factories Factories

	startOnce sync.Once

	mu        sync.RWMutex
	status    Snapshot
	captioner ai.Captioner
	detector  media.FaceDetector
	embedder  ai.Embedder

	done chan struct{} // closed once all providers reach a terminal state
}

func New(factories Factories) *Loader {
	return &Loader{
		factories: factories,
		status: Snapshot{
			Caption: StatusNotReady,
			Detect:  StatusNotReady,
			Embed:   StatusNotReady,
		},
		done: make(chan struct{}),
	}
}

// Start begins loading all providers off the calling goroutine. Calling it
// again, during loading or after completion, is a no-op.
func (l *Loader) Start() {
	l.startOnce.Do(func() {
		var wg sync.WaitGroup
		wg.Add(3)

		go func() {
			defer wg.Done()
			captioner, err := l.safeLoadCaptioner()
			l.mu.Lock()
			defer l.mu.Unlock()
			if err != nil {
				log.Printf("loader: caption model failed to load, captioning disabled: %v", err)
				l.status.Caption = StatusFailed
				return
			}
			l.captioner = captioner
			l.status.Caption = StatusReady
			log.Printf("loader: caption model ready (%s)", captioner.Name())
		}()

		go func() {
			defer wg.Done()
			detector, err := l.safeLoadDetector()
			l.mu.Lock()
			defer l.mu.Unlock()
			if err != nil {
				log.Printf("loader: face detector failed to load, detection disabled: %v", err)
				l.status.Detect = StatusFailed
				return
			}
			l.detector = detector
			l.status.Detect = StatusReady
			log.Printf("loader: face detector ready")
		}()

		go func() {
			defer wg.Done()
			embedder, err := l.safeLoadEmbedder()
			l.mu.Lock()
			defer l.mu.Unlock()
			if err != nil {
				log.Printf("loader: embedding model failed to load, search disabled: %v", err)
				l.status.Embed = StatusFailed
				return
			}
			l.embedder = embedder
			l.status.Embed = StatusReady
			log.Printf("loader: embedding model ready (%s)", embedder.Name())
		}()

		go func() {
			wg.Wait()
			close(l.done)
		}()
	})
}

// Status returns the current per-provider state without blocking.
func (l *Loader) Status() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}

// AwaitReady blocks until every provider reaches a terminal state or the
// context is done, whichever comes first. On timeout the caller proceeds in
// degraded mode with whatever providers made it.
func (l *Loader) AwaitReady(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Captioner returns the caption provider, or nil if it is not ready.
func (l *Loader) Captioner() ai.Captioner {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.captioner
}

// Detector returns the face detection provider, or nil if it is not ready.
func (l *Loader) Detector() media.FaceDetector {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.detector
}

// Embedder returns the embedding provider, or nil if it is not ready.
func (l *Loader) Embedder() ai.Embedder {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.embedder
}

// Close releases provider resources. Only the detector holds native memory.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.detector != nil {
		l.detector.Close()
		l.detector = nil
	}
}

func (l *Loader) safeLoadCaptioner() (ai.Captioner, error) {
	if l.factories.Captioner == nil {
		return nil, errNoFactory("caption model")
	}
	return l.factories.Captioner()
}

func (l *Loader) safeLoadDetector() (media.FaceDetector, error) {
	if l.factories.Detector == nil {
		return nil, errNoFactory("face detector")
	}
	return l.factories.Detector()
}

func (l *Loader) safeLoadEmbedder() (ai.Embedder, error) {
	if l.factories.Embedder == nil {
		return nil, errNoFactory("embedding model")
	}
	return l.factories.Embedder()
}

type errNoFactory string

func (e errNoFactory) Error() string {
	return "no factory configured for " + string(e)
}
