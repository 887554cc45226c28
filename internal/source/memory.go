package source

import (
	"fmt"
	"os"
	"sort"
	"sync"
)

// MemoryDataset is a Dataset fully held in memory. The FITS and synthetic
// readers produce it; tests build it directly.
type MemoryDataset struct {
	DatasetKind Kind
	Arrays      map[string]Array
	FrameCount  int
}

// Kind implements Dataset.
func (d *MemoryDataset) Kind() Kind { return d.DatasetKind }

// Keys implements Dataset.
func (d *MemoryDataset) Keys() []string {
	keys := make([]string, 0, len(d.Arrays))
	for k := range d.Arrays {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Array implements Dataset.
func (d *MemoryDataset) Array(name string) (Array, error) {
	arr, ok := d.Arrays[name]
	if !ok {
		return Array{}, fmt.Errorf("%w: %s", ErrNoVariable, name)
	}
	if arr.Components == 0 {
		arr.Components = 1
	}
	return arr, nil
}

// Frames implements Dataset.
func (d *MemoryDataset) Frames() int { return d.FrameCount }

// Close implements Dataset.
func (d *MemoryDataset) Close() error { return nil }

// MemoryReader serves registered in-memory datasets by path.
type MemoryReader struct {
	mu       sync.RWMutex
	datasets map[string]*MemoryDataset
	opened   map[string]int
}

// NewMemoryReader creates an empty MemoryReader.
func NewMemoryReader() *MemoryReader {
	return &MemoryReader{
		datasets: make(map[string]*MemoryDataset),
		opened:   make(map[string]int),
	}
}

// Add registers ds under path, replacing any previous dataset.
func (r *MemoryReader) Add(path string, ds *MemoryDataset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.datasets[path] = ds
}

// Open implements Reader.
func (r *MemoryReader) Open(path string) (Dataset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ds, ok := r.datasets[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
	}
	r.opened[path]++
	return ds, nil
}

// OpenCount reports how many times path was opened.
func (r *MemoryReader) OpenCount(path string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.opened[path]
}
