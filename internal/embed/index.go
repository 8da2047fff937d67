package embed

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sort"
)

// indexMagic identifies the on-disk index format.
const indexMagic uint32 = 0x474c4e49 // "GLNI"

// FlatIndex is an exact L2 nearest-neighbor index over fixed-dimension
// vectors, kept fully in memory.
type FlatIndex struct {
	dim     int
	vectors [][]float32
}

// BuildIndex constructs an index from vectors. Dimensionality is taken from
// the first vector; any mismatch is a configuration error and no index is
// built.
func BuildIndex(vectors [][]float32) (*FlatIndex, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("cannot build index from zero vectors")
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("cannot build index from zero-dimension vectors")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, index dimension is %d", i, len(v), dim)
		}
	}

	return &FlatIndex{dim: dim, vectors: vectors}, nil
}

// Dim returns the index dimensionality.
func (idx *FlatIndex) Dim() int { return idx.dim }

// Len returns the number of indexed vectors.
func (idx *FlatIndex) Len() int { return len(idx.vectors) }

// Search returns the positions of the k vectors nearest to query by L2
// distance, closest first.
func (idx *FlatIndex) Search(query []float32, k int) ([]int, error) {
	if len(query) != idx.dim {
		return nil, fmt.Errorf("query has dimension %d, index dimension is %d", len(query), idx.dim)
	}
	if k > len(idx.vectors) {
		k = len(idx.vectors)
	}

	type scored struct {
		pos  int
		dist float64
	}
	scores := make([]scored, len(idx.vectors))
	for i, v := range idx.vectors {
		var sum float64
		for j := range v {
			d := float64(v[j] - query[j])
			sum += d * d
		}
		scores[i] = scored{pos: i, dist: math.Sqrt(sum)}
	}
	sort.Slice(scores, func(a, b int) bool { return scores[a].dist < scores[b].dist })

	result := make([]int, k)
	for i := 0; i < k; i++ {
		result[i] = scores[i].pos
	}
	return result, nil
}

// WriteFile persists the index: a little-endian header (magic, dimension,
// count) followed by the raw float32 vectors.
func (idx *FlatIndex) WriteFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	header := []uint32{indexMagic, uint32(idx.dim), uint32(len(idx.vectors))}
	for _, h := range header {
		if err := binary.Write(w, binary.LittleEndian, h); err != nil {
			return fmt.Errorf("failed to write index header: %w", err)
		}
	}
	for _, v := range idx.vectors {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("failed to write index vectors: %w", err)
		}
	}

	return w.Flush()
}

// ReadIndexFile loads an index written by WriteFile.
func ReadIndexFile(path string) (*FlatIndex, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}
	defer file.Close()

	r := bufio.NewReader(file)
	var magic, dim, count uint32
	for _, field := range []*uint32{&magic, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return nil, fmt.Errorf("failed to read index header: %w", err)
		}
	}
	if magic != indexMagic {
		return nil, fmt.Errorf("not an index file: bad magic %#x", magic)
	}

	vectors := make([][]float32, count)
	for i := range vectors {
		vectors[i] = make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vectors[i]); err != nil {
			return nil, fmt.Errorf("failed to read vector %d: %w", i, err)
		}
	}

	return &FlatIndex{dim: int(dim), vectors: vectors}, nil
}
