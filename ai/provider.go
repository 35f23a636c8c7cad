package ai

import "context"

// Caption is the result of captioning a single photo.
type Caption struct {
	// Short is a one-line summary suitable for a grid tooltip.
	Short string `json:"short"`
	// Detailed is a full-sentence description, used as embedding input.
	Detailed string `json:"detailed"`
}

// Captioner defines the caption model capability. Implementations are
// stateless after construction and safe for concurrent calls.
type Captioner interface {
	Name() string
	Caption(ctx context.Context, imageData []byte) (Caption, error)
}

// Embedder maps text into a fixed-dimension vector space. Query text and
// caption text must go through the same implementation for similarity
// scores to mean anything.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
}
