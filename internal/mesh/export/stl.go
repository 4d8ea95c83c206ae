// Package export writes committed meshes to disk.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/banshee-data/depthmesh/internal/mesh"
	"github.com/banshee-data/depthmesh/internal/monitoring"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
)

// Triangles expands m's index buffer into sdfx triangles. Index triples
// that reference vertices outside the buffer are dropped.
func Triangles(m *mesh.Mesh) []*sdf.Triangle3 {
	if m == nil {
		return nil
	}
	n := len(m.Vertices)
	tris := make([]*sdf.Triangle3, 0, m.TriangleCount())
	for i := 0; i+2 < len(m.Indices); i += 3 {
		a, b, c := m.Indices[i], m.Indices[i+1], m.Indices[i+2]
		if a >= n || b >= n || c >= n {
			continue
		}
		tris = append(tris, &sdf.Triangle3{m.Vertices[a], m.Vertices[b], m.Vertices[c]})
	}
	return tris
}

// SaveSTL writes m as a binary STL file. The file is written next to path
// and renamed into place so readers never see a partial file.
func SaveSTL(path string, m *mesh.Mesh) error {
	if m == nil || len(m.Indices) == 0 {
		return errors.New("export: empty mesh")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("export: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".mesh-*.stl")
	if err != nil {
		return fmt.Errorf("export: temp file: %w", err)
	}
	tmpName := tmp.Name()
	tmp.Close()

	if err := render.SaveSTL(tmpName, Triangles(m)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("export: write stl: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("export: rename: %w", err)
	}
	return nil
}

// FileSink is a mesh.Sink that writes every Nth committed mesh to an STL
// file. It keeps the last mesh so RecalculateNormals has something to act
// on, though STL output carries facet normals only.
type FileSink struct {
	path  string
	every int

	mu      sync.Mutex
	last    *mesh.Mesh
	commits int
	written int
}

// NewFileSink creates a sink writing to path. every < 1 is treated as 1.
func NewFileSink(path string, every int) *FileSink {
	if every < 1 {
		every = 1
	}
	return &FileSink{path: path, every: every}
}

// ReplaceMesh records m and writes it out when due.
func (s *FileSink) ReplaceMesh(m *mesh.Mesh) error {
	if m == nil {
		return errors.New("file sink: nil mesh")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = m
	s.commits++
	if (s.commits-1)%s.every != 0 {
		return nil
	}
	if err := SaveSTL(s.path, m); err != nil {
		return err
	}
	s.written++
	monitoring.Tracef("[STLExport] wrote %s (%d triangles)", s.path, m.TriangleCount())
	return nil
}

// RecalculateNormals is a no-op beyond checking a mesh has been received;
// facet normals are derived when the file is written.
func (s *FileSink) RecalculateNormals() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return errors.New("file sink: no mesh")
	}
	return nil
}

// Written returns how many files have been written.
func (s *FileSink) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}
