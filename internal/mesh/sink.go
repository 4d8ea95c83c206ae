package mesh

import (
	"github.com/banshee-data/depthmesh/internal/monitoring"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Mesh is one committed set of render buffers. A committed Mesh is never
// mutated by the Builder; each update commits a new value.
type Mesh struct {
	Width    int // vertex grid columns
	Height   int // vertex grid rows
	Vertices []v3.Vec
	UVs      []v2.Vec // nil when UV generation is disabled
	Indices  []int    // three indices per triangle
	Normals  []v3.Vec // set by sinks that recompute normals
}

// TriangleCount returns the number of triangles in the index buffer.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// DepthSource provides depth frames to the Builder.
type DepthSource interface {
	// Resolution returns the sensor resolution in pixels.
	Resolution() (width, height int)
	// LatestFrame returns the most recent row-major depth frame. ok is
	// false until the source has produced a frame. A sample of 0 means
	// no reading.
	LatestFrame() (samples []uint16, ok bool)
}

// Sink receives committed meshes for rendering.
type Sink interface {
	// ReplaceMesh swaps in a complete set of buffers.
	ReplaceMesh(m *Mesh) error
	// RecalculateNormals recomputes normals from the current topology.
	RecalculateNormals() error
}

// CollisionSink owns a collision or bounding structure derived from the
// committed mesh.
type CollisionSink interface {
	// Invalidate drops the structure built for the previous mesh.
	Invalidate()
	// Assign rebuilds the structure for m.
	Assign(m *Mesh)
}

// UpdateObserver is notified after every attempted update cycle.
type UpdateObserver interface {
	ObserveUpdate(stats UpdateStats)
}

// MultiSink fans a commit out to several sinks in order. The first sink
// is authoritative: its error fails the call and stops the fan-out. Errors
// from the remaining sinks are logged and never fail the commit, so every
// reader of the committed mesh sees the same value.
type MultiSink []Sink

// ReplaceMesh forwards m to the primary sink, then to the rest.
func (ms MultiSink) ReplaceMesh(m *Mesh) error {
	if len(ms) == 0 {
		return nil
	}
	if err := ms[0].ReplaceMesh(m); err != nil {
		return err
	}
	for i, s := range ms[1:] {
		if err := s.ReplaceMesh(m); err != nil {
			monitoring.Logf("[MeshBuilder] secondary sink %d replace failed: %v", i+1, err)
		}
	}
	return nil
}

// RecalculateNormals forwards to the primary sink, then to the rest.
func (ms MultiSink) RecalculateNormals() error {
	if len(ms) == 0 {
		return nil
	}
	if err := ms[0].RecalculateNormals(); err != nil {
		return err
	}
	for i, s := range ms[1:] {
		if err := s.RecalculateNormals(); err != nil {
			monitoring.Logf("[MeshBuilder] secondary sink %d normals failed: %v", i+1, err)
		}
	}
	return nil
}
