package blobstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type memoryBlobs struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// Memory keeps blobs in a map. Copies land in the same map under their
// destination bucket, and Bucket returns views that share it.
type Memory struct {
	bucket string
	shared *memoryBlobs
}

func NewMemory(bucket string) *Memory {
	return &Memory{bucket: bucket, shared: &memoryBlobs{blobs: map[string][]byte{}}}
}

func key(bucket, name string) string {
	return bucket + "/" + name
}

// Bucket returns a view of the same blobs scoped to another bucket.
func (m *Memory) Bucket(bucket string) *Memory {
	return &Memory{bucket: bucket, shared: m.shared}
}

func (m *Memory) Get(_ context.Context, name string) ([]byte, error) {
	m.shared.mu.RLock()
	defer m.shared.mu.RUnlock()
	data, ok := m.shared.blobs[key(m.bucket, name)]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", m.bucket, name, ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Put(_ context.Context, name string, data []byte) error {
	m.shared.mu.Lock()
	defer m.shared.mu.Unlock()
	m.shared.blobs[key(m.bucket, name)] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Copy(_ context.Context, name, destBucket, destName string) error {
	m.shared.mu.Lock()
	defer m.shared.mu.Unlock()
	data, ok := m.shared.blobs[key(m.bucket, name)]
	if !ok {
		return fmt.Errorf("%s/%s: %w", m.bucket, name, ErrNotFound)
	}
	m.shared.blobs[key(destBucket, destName)] = append([]byte(nil), data...)
	return nil
}

// Names lists every stored blob as bucket/name, sorted.
func (m *Memory) Names() []string {
	m.shared.mu.RLock()
	defer m.shared.mu.RUnlock()
	out := make([]string, 0, len(m.shared.blobs))
	for k := range m.shared.blobs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
