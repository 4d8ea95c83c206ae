package mesh

import (
	"sync"

	"github.com/deadsy/sdfx/sdf"
)

// BoundsCollider is a CollisionSink that keeps an axis-aligned bounding box
// of the committed vertices.
type BoundsCollider struct {
	mu          sync.RWMutex
	box         sdf.Box3
	valid       bool
	assignments int
}

// NewBoundsCollider creates an empty collider.
func NewBoundsCollider() *BoundsCollider {
	return &BoundsCollider{}
}

// Invalidate drops the current box.
func (c *BoundsCollider) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.box = sdf.Box3{}
	c.valid = false
}

// Assign recomputes the box from m's vertices.
func (c *BoundsCollider) Assign(m *Mesh) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assignments++
	if m == nil || len(m.Vertices) == 0 {
		c.valid = false
		return
	}
	box := sdf.Box3{Min: m.Vertices[0], Max: m.Vertices[0]}
	for _, v := range m.Vertices[1:] {
		box.Min = box.Min.Min(v)
		box.Max = box.Max.Max(v)
	}
	c.box = box
	c.valid = true
}

// Bounds returns the current box. ok is false when no mesh is assigned.
func (c *BoundsCollider) Bounds() (box sdf.Box3, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.box, c.valid
}

// Assignments returns how many times Assign has been called.
func (c *BoundsCollider) Assignments() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.assignments
}
