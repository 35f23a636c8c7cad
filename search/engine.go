package search

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/mkardel/photoscope/ai"
	"github.com/mkardel/photoscope/database"
)

// EmbedderSource yields the embedding provider once it is ready, or nil.
// The model loader satisfies this.
type EmbedderSource interface {
	Embedder() ai.Embedder
}

// Result is one ranked search hit.
type Result struct {
	FilePath   string  `json:"file_path"`
	Similarity float64 `json:"similarity"`
}

type entry struct {
	takenAt *int64
}

// Engine answers natural-language queries against stored caption
// embeddings. Candidates come from an HNSW graph; exact cosine re-scoring
// on the candidates keeps ranking deterministic.
type Engine struct {
	source  EmbedderSource
	floor   float64
	maxHits int

	mu      sync.RWMutex
	graph   *hnsw.Graph[string]
	entries map[string]entry
}

func NewEngine(source EmbedderSource, floor float64, maxHits int) *Engine {
	return &Engine{
		source:  source,
		floor:   floor,
		maxHits: maxHits,
		entries: make(map[string]entry),
	}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = 16
	g.Ml = 1.0 / 16.0
	g.Distance = hnsw.CosineDistance
	return g
}

// Rebuild replaces the index with the given stored embeddings. Called at
// startup to warm the index from the database.
func (e *Engine) Rebuild(stored []database.StoredEmbedding) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.graph = nil
	e.entries = make(map[string]entry, len(stored))

	if len(stored) == 0 {
		return
	}

	g := newGraph()
	for i := range stored {
		s := &stored[i]
		if len(s.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(s.FilePath, s.Embedding))
		e.entries[s.FilePath] = entry{takenAt: s.TakenAt}
	}
	e.graph = g
	log.Printf("search: index rebuilt with %d embeddings", len(e.entries))
}

// Index adds one freshly ingested image to the index. Embeddings are
// write-once per path, so a path that is already indexed is left alone.
func (e *Engine) Index(path string, embedding []float32, takenAt *int64) {
	if len(embedding) == 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.entries[path]; exists {
		return
	}
	if e.graph == nil {
		e.graph = newGraph()
	}
	e.graph.Add(hnsw.MakeNode(path, embedding))
	e.entries[path] = entry{takenAt: takenAt}
}

// Remove drops a path from result candidacy.
func (e *Engine) Remove(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.entries, path)
}

// Count returns the number of indexed images.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.entries)
}

// Search embeds the query and returns paths ranked by cosine similarity,
// filtered by the relevance floor. An unavailable embedder or an empty
// index yields an empty result, not an error. Ties sort by most recent
// capture date, then path, so a fixed query over fixed data is
// deterministic.
func (e *Engine) Search(ctx context.Context, query string) ([]Result, error) {
	embedder := e.source.Embedder()
	if embedder == nil {
		return []Result{}, nil
	}

	e.mu.RLock()
	graph := e.graph
	indexed := len(e.entries)
	e.mu.RUnlock()

	if graph == nil || indexed == 0 {
		return []Result{}, nil
	}

	queryVec, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search: failed to embed query: %w", err)
	}

	// over-fetch so floor filtering still fills maxHits when possible
	k := e.maxHits * 2
	if k > indexed {
		k = indexed
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	neighbors := e.graph.Search(queryVec, k)

	results := make([]Result, 0, len(neighbors))
	for _, n := range neighbors {
		if _, ok := e.entries[n.Key]; !ok {
			continue // removed since indexing
		}
		similarity := CosineSimilarity(queryVec, n.Value)
		if similarity < e.floor {
			continue
		}
		results = append(results, Result{FilePath: n.Key, Similarity: similarity})
	}

	dateOf := func(path string) int64 {
		if meta, ok := e.entries[path]; ok && meta.takenAt != nil {
			return *meta.takenAt
		}
		return 0
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		di, dj := dateOf(results[i].FilePath), dateOf(results[j].FilePath)
		if di != dj {
			return di > dj
		}
		return results[i].FilePath < results[j].FilePath
	})

	if len(results) > e.maxHits {
		results = results[:e.maxHits]
	}
	return results, nil
}
