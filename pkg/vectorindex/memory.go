package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Memory is an in-process exact-search index. It scores like an OpenSearch
// cosinesimil space, 1 / (2 - cos), so thresholds carry over.
type Memory struct {
	topK int

	mu        sync.RWMutex
	created   bool
	dimension int
	ids       []string
	docs      map[string]Document
	vectors   map[string][]float32
}

var (
	_ Index  = (*Memory)(nil)
	_ Writer = (*Memory)(nil)
)

// NewMemory creates an empty, not yet created index returning up to topK hits.
func NewMemory(topK int) *Memory {
	if topK <= 0 {
		topK = 5
	}
	return &Memory{
		topK:    topK,
		docs:    make(map[string]Document),
		vectors: make(map[string][]float32),
	}
}

// Exists implements Index.
func (m *Memory) Exists(ctx context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.created, nil
}

// EnsureIndex implements Writer.
func (m *Memory) EnsureIndex(ctx context.Context, dimension int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.created {
		return false, nil
	}
	m.created = true
	m.dimension = dimension
	return true, nil
}

// Put implements Writer.
func (m *Memory) Put(ctx context.Context, doc Document, vector []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.created {
		return ErrIndexMissing
	}
	if m.dimension > 0 && len(vector) != m.dimension {
		return fmt.Errorf("vector has %d dimensions, index expects %d", len(vector), m.dimension)
	}
	if _, ok := m.docs[doc.ID]; !ok {
		m.ids = append(m.ids, doc.ID)
	}
	m.docs[doc.ID] = doc
	m.vectors[doc.ID] = append([]float32(nil), vector...)
	return nil
}

// Len returns the number of stored documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Search implements Index.
func (m *Memory) Search(ctx context.Context, vector []float32) ([]Neighbor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.created {
		return nil, ErrIndexMissing
	}

	hits := make([]Neighbor, 0, len(m.ids))
	for _, id := range m.ids {
		cos, ok := cosine(vector, m.vectors[id])
		if !ok {
			continue
		}
		hits = append(hits, Neighbor{Document: m.docs[id], Score: 1 / (2 - cos)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > m.topK {
		hits = hits[:m.topK]
	}
	return onePerCategory(hits), nil
}

func cosine(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}
