package mesh

import v2 "github.com/deadsy/sdfx/vec/v2"

// TriangleIndices builds the index buffer of a width x height vertex grid:
// two counter-clockwise triangles per cell. It depends only on the grid
// dimensions and is computed once per configuration.
func TriangleIndices(width, height int) []int {
	if width < 2 || height < 2 {
		return nil
	}
	tris := make([]int, 0, (width-1)*(height-1)*6)
	for y := 0; y < height-1; y++ {
		for x := 0; x < width-1; x++ {
			p := y*width + x
			tris = append(tris,
				p+1, p, p+width, // bottom right, bottom left, top left
				p+1, p+width, p+width+1, // bottom right, top left, top right
			)
		}
	}
	return tris
}

// UVs maps each vertex of a width x height grid onto texture space. U runs
// with the column, V is flipped so row 0 sits at the top of the texture.
func UVs(width, height int) []v2.Vec {
	uvs := make([]v2.Vec, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			uvs[y*width+x] = v2.Vec{
				X: float64(x) / float64(width),
				Y: float64(height-1-y) / float64(height),
			}
		}
	}
	return uvs
}
