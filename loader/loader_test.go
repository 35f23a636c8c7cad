package loader

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mkardel/photoscope/ai"
	"github.com/mkardel/photoscope/media"
)

type stubCaptioner struct{}

func (stubCaptioner) Name() string { return "stub-captioner" }
func (stubCaptioner) Caption(ctx context.Context, imageData []byte) (ai.Caption, error) {
	return ai.Caption{Short: "stub"}, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Name() string { return "stub-embedder" }
func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1}, nil
}

type stubDetector struct{}

func (stubDetector) Detect(imageData []byte) ([]media.Box, error) { return nil, nil }
func (stubDetector) Close()                                       {}

func readyFactories() Factories {
	return Factories{
		Captioner: func() (ai.Captioner, error) { return stubCaptioner{}, nil },
		Detector:  func() (media.FaceDetector, error) { return stubDetector{}, nil },
		Embedder:  func() (ai.Embedder, error) { return stubEmbedder{}, nil },
	}
}

func awaitWithin(t *testing.T, l *Loader, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	if err := l.AwaitReady(ctx); err != nil {
		t.Fatalf("AwaitReady did not complete in %v: %v", d, err)
	}
}

func TestLoaderAllReady(t *testing.T) {
	l := New(readyFactories())

	status := l.Status()
	if status.Caption != StatusNotReady || status.Detect != StatusNotReady || status.Embed != StatusNotReady {
		t.Fatalf("expected all not_ready before Start, got %+v", status)
	}
	if l.Captioner() != nil || l.Detector() != nil || l.Embedder() != nil {
		t.Fatal("accessors must return nil before loading completes")
	}

	l.Start()
	awaitWithin(t, l, 2*time.Second)

	status = l.Status()
	if status.Caption != StatusReady || status.Detect != StatusReady || status.Embed != StatusReady {
		t.Errorf("expected all ready, got %+v", status)
	}
	if l.Captioner() == nil || l.Detector() == nil || l.Embedder() == nil {
		t.Error("accessors must return providers once ready")
	}
}

func TestLoaderStartIdempotent(t *testing.T) {
	var calls int32
	f := readyFactories()
	f.Captioner = func() (ai.Captioner, error) {
		atomic.AddInt32(&calls, 1)
		return stubCaptioner{}, nil
	}

	l := New(f)
	l.Start()
	l.Start()
	awaitWithin(t, l, 2*time.Second)
	l.Start()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("captioner factory called %d times, want 1", got)
	}
}

func TestLoaderPartialFailure(t *testing.T) {
	f := readyFactories()
	f.Captioner = func() (ai.Captioner, error) {
		return nil, errors.New("model weights missing")
	}

	l := New(f)
	l.Start()
	awaitWithin(t, l, 2*time.Second)

	status := l.Status()
	if status.Caption != StatusFailed {
		t.Errorf("expected caption failed, got %s", status.Caption)
	}
	if status.Detect != StatusReady || status.Embed != StatusReady {
		t.Errorf("one provider failing must not affect the others, got %+v", status)
	}
	if l.Captioner() != nil {
		t.Error("failed provider accessor must return nil")
	}
	if l.Detector() == nil || l.Embedder() == nil {
		t.Error("healthy providers must still be available")
	}
}

func TestLoaderAwaitReadyTimeout(t *testing.T) {
	release := make(chan struct{})
	f := readyFactories()
	f.Embedder = func() (ai.Embedder, error) {
		<-release
		return stubEmbedder{}, nil
	}

	l := New(f)
	l.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.AwaitReady(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded while a provider is still loading, got %v", err)
	}

	// callers proceed degraded: status readable, slow provider not ready yet
	if status := l.Status(); status.Embed != StatusNotReady {
		t.Errorf("expected embed not_ready during load, got %s", status.Embed)
	}

	close(release)
	awaitWithin(t, l, 2*time.Second)
	if status := l.Status(); status.Embed != StatusReady {
		t.Errorf("expected embed ready after release, got %s", status.Embed)
	}
}

func TestLoaderMissingFactory(t *testing.T) {
	f := readyFactories()
	f.Detector = nil

	l := New(f)
	l.Start()
	awaitWithin(t, l, 2*time.Second)

	if status := l.Status(); status.Detect != StatusFailed {
		t.Errorf("missing factory must mark provider failed, got %s", status.Detect)
	}
}
