// Package index stores delivered-item embeddings in an HNSW graph persisted to disk.
package index

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/coder/hnsw"
	"github.com/gofrs/flock"

	"IntelDigest/internal/domain"
	"IntelDigest/internal/ports"
)

// ErrIndexLocked is returned when another process already holds the index file.
var ErrIndexLocked = errors.New("similarity index is locked by another process")

// HNSWIndex assigns sequential ids to vectors, persists them as an HNSW graph
// and answers exact top-k cosine queries.
// Vectors are L2-normalized on the way in so scores are plain inner products.
type HNSWIndex struct {
	mu    sync.Mutex
	graph *hnsw.Graph[int64]
	saved *hnsw.SavedGraph[int64]
	lock  *flock.Flock
	path  string
	next  int64
	dims  int
}

var _ ports.SimilarityIndex = (*HNSWIndex)(nil)

// Open loads the graph at path, or starts an empty one when the file is absent.
// An empty path keeps the index in memory only.
func Open(path string, dims int) (*HNSWIndex, error) {
	idx := &HNSWIndex{path: path, dims: dims}

	if path == "" {
		idx.graph = newGraph()
		return idx, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, domain.NewStorageError("index mkdir", err)
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, domain.NewStorageError("index lock", err)
	}
	if !ok {
		return nil, ErrIndexLocked
	}

	saved, err := hnsw.LoadSavedGraph[int64](path)
	if err != nil {
		_ = lock.Unlock()
		return nil, domain.NewStorageError("index load", err)
	}
	saved.Distance = hnsw.CosineDistance

	idx.saved = saved
	idx.graph = saved.Graph
	idx.lock = lock
	idx.scan(func(id int64, _ hnsw.Vector) { idx.next = id + 1 })
	if saved.Len() > 0 {
		idx.dims = saved.Dims()
	}
	return idx, nil
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 32
	return g
}

// AdvanceTo makes sure the next assigned id is at least next.
// Used when durable records reference ids beyond what the loaded graph holds.
func (i *HNSWIndex) AdvanceTo(next int64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if next > i.next {
		i.next = next
	}
}

// Add stores the vector and returns its id.
func (i *HNSWIndex) Add(vector []float32) (id int64, err error) {
	vec, err := i.prepare(vector)
	if err != nil {
		return 0, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			id, err = 0, domain.NewStorageError("index add", fmt.Errorf("hnsw panic: %v", r))
		}
	}()

	id = i.next
	i.graph.Add(hnsw.MakeNode(id, vec))
	i.next++
	return id, nil
}

// Search returns the k most similar stored vectors, highest score first.
// The scan is exhaustive; graph navigation misses exact matches among
// near-orthogonal vectors.
func (i *HNSWIndex) Search(vector []float32, k int) (out []ports.Neighbor, err error) {
	if k <= 0 {
		return nil, nil
	}
	query, err := i.prepare(vector)
	if err != nil {
		return nil, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.graph.Len() == 0 {
		return nil, nil
	}

	defer func() {
		if r := recover(); r != nil {
			out, err = nil, domain.NewStorageError("index search", fmt.Errorf("hnsw panic: %v", r))
		}
	}()

	scored := make([]ports.Neighbor, 0, i.graph.Len())
	i.scan(func(id int64, vec hnsw.Vector) {
		scored = append(scored, ports.Neighbor{ID: id, Score: dot(query, vec)})
	})

	slices.SortStableFunc(scored, func(a, b ports.Neighbor) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// scan visits stored vectors in id order. Ids are assigned upward from zero,
// so the walk stops once every node has been seen.
func (i *HNSWIndex) scan(fn func(id int64, vec hnsw.Vector)) {
	remaining := i.graph.Len()
	for id := int64(0); remaining > 0; id++ {
		vec, ok := i.graph.Lookup(id)
		if !ok {
			continue
		}
		remaining--
		fn(id, vec)
	}
}

// Len reports how many vectors the graph holds.
func (i *HNSWIndex) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.graph.Len()
}

// Persist writes the graph to its file. In-memory indexes are a no-op.
func (i *HNSWIndex) Persist() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.saved == nil {
		return nil
	}
	if err := i.saved.Save(); err != nil {
		return domain.NewStorageError("index persist", err)
	}
	return nil
}

// Close persists pending state and releases the file lock.
func (i *HNSWIndex) Close() error {
	if err := i.Persist(); err != nil {
		return err
	}
	if i.lock != nil {
		return i.lock.Unlock()
	}
	return nil
}

func (i *HNSWIndex) prepare(vector []float32) ([]float32, error) {
	if len(vector) == 0 {
		return nil, domain.NewStorageError("index", errors.New("empty vector"))
	}
	i.mu.Lock()
	dims := i.dims
	if dims == 0 {
		i.dims = len(vector)
		dims = len(vector)
	}
	i.mu.Unlock()
	if len(vector) != dims {
		return nil, domain.NewStorageError("index", fmt.Errorf("vector has %d dims, index expects %d", len(vector), dims))
	}
	return normalize(vector), nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	norm := math.Sqrt(sum)
	if norm == 0 {
		copy(out, v)
		return out
	}
	for j, x := range v {
		out[j] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var s float64
	for j := range a {
		s += float64(a[j]) * float64(b[j])
	}
	return s
}
