package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

type entry struct {
	chunkID    string
	documentID string
	vector     []float32
}

// MemoryIndex is a brute-force in-memory vector index. Embeddings are
// unit-normalized before storage, so inner product equals cosine similarity
// and distance is 1 minus the inner product.
type MemoryIndex struct {
	dimensions int
	entries    []entry
	byChunk    map[string]int
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		byChunk:    make(map[string]int),
	}, nil
}

// Upsert inserts or replaces entries keyed by chunk ID.
func (m *MemoryIndex) Upsert(ctx context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if e.ChunkID == "" {
			return fmt.Errorf("entry missing chunk id")
		}
		if len(e.Vector) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(e.Vector), m.dimensions)
		}
		vec := make([]float32, m.dimensions)
		copy(vec, e.Vector)
		if i, ok := m.byChunk[e.ChunkID]; ok {
			m.entries[i] = entry{chunkID: e.ChunkID, documentID: e.DocumentID, vector: vec}
			continue
		}
		m.byChunk[e.ChunkID] = len(m.entries)
		m.entries = append(m.entries, entry{chunkID: e.ChunkID, documentID: e.DocumentID, vector: vec})
	}
	return nil
}

// Search returns up to k entries ordered by ascending cosine distance.
// Ties break on chunk ID so results are deterministic.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int, documentID string) ([]Result, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.entries) == 0 {
		return nil, nil
	}
	results := make([]Result, 0, len(m.entries))
	for _, e := range m.entries {
		if documentID != "" && e.documentID != documentID {
			continue
		}
		var dot float64
		for j := 0; j < m.dimensions; j++ {
			dot += float64(query[j] * e.vector[j])
		}
		results = append(results, Result{ChunkID: e.chunkID, Distance: 1 - dot})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// DeleteByDocument removes every entry belonging to the document.
func (m *MemoryIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.documentID != documentID {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	m.byChunk = make(map[string]int, len(m.entries))
	for i, e := range m.entries {
		m.byChunk[e.chunkID] = i
	}
	return nil
}

// Save persists the index to path. Directory is created if needed.
// Format: dimension (4), n (4), then per entry: chunkIDLen (4), chunkID,
// docIDLen (4), docID, vector (dimension*4 bytes). Little endian throughout.
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(m.entries))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, e := range m.entries {
		if err := writeLenPrefixed(f, e.chunkID); err != nil {
			return fmt.Errorf("write chunk id: %w", err)
		}
		if err := writeLenPrefixed(f, e.documentID); err != nil {
			return fmt.Errorf("write document id: %w", err)
		}
		if _, err := f.Write(float32SliceToBytes(e.vector)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the index from path and replaces the in-memory contents.
// Dimensions must match. A missing file leaves the index unchanged.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != m.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, m.dimensions)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make([]entry, 0, n)
	m.byChunk = make(map[string]int, n)
	buf := make([]byte, m.dimensions*4)
	for i := uint32(0); i < n; i++ {
		chunkID, err := readLenPrefixed(f)
		if err != nil {
			return fmt.Errorf("read chunk id: %w", err)
		}
		docID, err := readLenPrefixed(f)
		if err != nil {
			return fmt.Errorf("read document id: %w", err)
		}
		if _, err := io.ReadFull(f, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		m.byChunk[chunkID] = len(m.entries)
		m.entries = append(m.entries, entry{chunkID: chunkID, documentID: docID, vector: bytesToFloat32Slice(buf)})
	}
	return nil
}

// Size returns the number of entries in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}

func writeLenPrefixed(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readLenPrefixed(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
