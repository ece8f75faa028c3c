// Package vectorindex stores the known prompt injection examples and runs
// k-nearest-neighbour searches against them.
package vectorindex

import (
	"context"
	"errors"
)

// ErrIndexMissing is returned by searches against an index that does not exist.
var ErrIndexMissing = errors.New("similarity index does not exist")

// Document is one indexed example prompt.
type Document struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Details  string `json:"details"`
	Text     string `json:"text"`
}

// Neighbor is a search hit. Score is in (0, 1], higher is more similar.
type Neighbor struct {
	Document
	Score float64
}

// Index is the read side used by the similarity detector.
type Index interface {
	// Search returns the nearest documents to vector, best first, with at
	// most one document per category.
	Search(ctx context.Context, vector []float32) ([]Neighbor, error)

	// Exists reports whether the index has been created.
	Exists(ctx context.Context) (bool, error)
}

// Writer is the write side used to seed an index.
type Writer interface {
	// EnsureIndex creates the index for vectors of the given dimension
	// unless it already exists. It reports whether the index was created.
	EnsureIndex(ctx context.Context, dimension int) (bool, error)

	// Put stores doc with its embedding, replacing a document with the same ID.
	Put(ctx context.Context, doc Document, vector []float32) error
}

// onePerCategory keeps the first neighbor of each category.
func onePerCategory(in []Neighbor) []Neighbor {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]
	for _, n := range in {
		if seen[n.Category] {
			continue
		}
		seen[n.Category] = true
		out = append(out, n)
	}
	return out
}
