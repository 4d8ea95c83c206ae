package mesh

import (
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Kernel is a 3x3 convolution weight matrix indexed [row][column].
type Kernel [3][3]float64

// GaussianKernel is the unnormalised 3x3 binomial blur kernel.
var GaussianKernel = Kernel{
	{1, 2, 1},
	{2, 4, 2},
	{1, 2, 1},
}

// SpatialFilter blurs vertex positions with a fixed 3x3 kernel.
//
// Edge cells skip neighbours that fall outside the grid and divide by the
// sum of the weights actually applied, so a uniform grid stays uniform up
// to the border.
type SpatialFilter struct {
	kernel  Kernel
	scratch []v3.Vec
}

// NewSpatialFilter creates a filter using k.
func NewSpatialFilter(k Kernel) *SpatialFilter {
	return &SpatialFilter{kernel: k}
}

// Apply runs iterations full passes over verts in place. Each pass reads
// only the previous pass's output.
func (f *SpatialFilter) Apply(verts []v3.Vec, width, height, iterations int) error {
	if len(verts) != width*height {
		return fmt.Errorf("%w: blur got %d vertices for a %dx%d grid",
			ErrDimensionMismatch, len(verts), width, height)
	}
	if cap(f.scratch) < len(verts) {
		f.scratch = make([]v3.Vec, len(verts))
	}
	src := f.scratch[:len(verts)]

	for it := 0; it < iterations; it++ {
		copy(src, verts)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				var acc v3.Vec
				weight := 0.0
				for ky := -1; ky <= 1; ky++ {
					ny := y + ky
					if ny < 0 || ny >= height {
						continue
					}
					for kx := -1; kx <= 1; kx++ {
						nx := x + kx
						if nx < 0 || nx >= width {
							continue
						}
						w := f.kernel[ky+1][kx+1]
						acc = acc.Add(src[ny*width+nx].MulScalar(w))
						weight += w
					}
				}
				if weight != 0 {
					verts[y*width+x] = acc.MulScalar(1 / weight)
				}
			}
		}
	}
	return nil
}
