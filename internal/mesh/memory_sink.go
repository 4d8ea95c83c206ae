package mesh

import (
	"errors"
	"sync"
)

// MemorySink keeps the latest committed mesh in memory for readers such
// as the debug web server or an exporter.
type MemorySink struct {
	mu      sync.RWMutex
	mesh    *Mesh
	commits int
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// ReplaceMesh stores m as the current mesh.
func (s *MemorySink) ReplaceMesh(m *Mesh) error {
	if m == nil {
		return errors.New("memory sink: nil mesh")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mesh = m
	s.commits++
	return nil
}

// RecalculateNormals swaps in a copy of the current mesh with fresh
// per-vertex normals, leaving the previously published value untouched.
func (s *MemorySink) RecalculateNormals() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mesh == nil {
		return errors.New("memory sink: no mesh to compute normals for")
	}
	next := *s.mesh
	next.Normals = ComputeNormals(next.Vertices, next.Indices)
	s.mesh = &next
	return nil
}

// Mesh returns the current mesh, or nil before the first commit.
func (s *MemorySink) Mesh() *Mesh {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mesh
}

// Commits returns how many meshes have been committed.
func (s *MemorySink) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}
