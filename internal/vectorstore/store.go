// Package vectorstore provides an in-memory exact nearest-neighbour index
// ranked by cosine similarity.
package vectorstore

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// ErrIndexOutOfRange is returned by Update and Delete for positions outside
// the current entry list.
var ErrIndexOutOfRange = errors.New("index out of range")

// Match is one ranked query result.
type Match struct {
	Text   string
	Source string
	Score  float64
}

type entry struct {
	text   string
	source string
	vector []float32
}

// Store holds (text, vector) pairs. Writers take the exclusive lock, queries
// share the read lock, so concurrent ingestion and querying are safe.
//
// Positions are stable only until a Delete shifts later entries.
type Store struct {
	mu      sync.RWMutex
	entries []entry
	dim     int
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// checkDim validates vec against the store dimension. Caller must hold the write lock.
func (s *Store) checkDim(vec []float32) error {
	if len(s.entries) == 0 {
		return nil
	}
	if len(vec) != s.dim {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dim, len(vec))
	}
	return nil
}

// Add appends a single entry.
func (s *Store) Add(text string, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkDim(vec); err != nil {
		return err
	}
	if len(s.entries) == 0 {
		s.dim = len(vec)
	}
	s.entries = append(s.entries, entry{text: text, vector: copyVec(vec)})
	return nil
}

// AddBatch appends texts[i] with vectors[i]. Nothing is added on error.
func (s *Store) AddBatch(texts []string, vectors [][]float32) error {
	return s.AddSourcedBatch("", texts, vectors)
}

// AddSourcedBatch is AddBatch with every entry tagged as coming from source.
// An empty source leaves the origin untracked.
func (s *Store) AddSourcedBatch(source string, texts []string, vectors [][]float32) error {
	if len(texts) != len(vectors) {
		return fmt.Errorf("batch length mismatch: %d texts, %d vectors", len(texts), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dim
	if len(s.entries) == 0 && len(vectors) > 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vector %d dimension mismatch: expected %d, got %d", i, dim, len(v))
		}
	}

	s.dim = dim
	for i := range texts {
		s.entries = append(s.entries, entry{text: texts[i], source: source, vector: copyVec(vectors[i])})
	}
	return nil
}

// Update replaces the text and/or vector at position i. A nil argument keeps
// the current value.
func (s *Store) Update(i int, text *string, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.entries) {
		return fmt.Errorf("update %d: %w", i, ErrIndexOutOfRange)
	}
	if vec != nil {
		if len(s.entries) > 1 && len(vec) != s.dim {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dim, len(vec))
		}
		s.entries[i].vector = copyVec(vec)
		s.dim = len(vec)
	}
	if text != nil {
		s.entries[i].text = *text
	}
	return nil
}

// Delete removes the entry at position i, shifting later entries down.
func (s *Store) Delete(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.entries) {
		return fmt.Errorf("delete %d: %w", i, ErrIndexOutOfRange)
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	return nil
}

// Count returns the number of stored entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.dim = 0
}

// Query returns up to topK entries ordered by descending cosine similarity
// to vec. Ties keep insertion order. An empty store yields an empty result.
func (s *Store) Query(vec []float32, topK int) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if topK <= 0 || len(s.entries) == 0 {
		return []Match{}, nil
	}
	if len(vec) != s.dim {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dim, len(vec))
	}

	matches := make([]Match, len(s.entries))
	for i, e := range s.entries {
		matches[i] = Match{Text: e.text, Source: e.source, Score: Cosine(vec, e.vector)}
	}
	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Score > matches[b].Score
	})

	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either has zero norm.
func Cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func copyVec(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
