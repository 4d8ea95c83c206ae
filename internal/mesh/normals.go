package mesh

import v3 "github.com/deadsy/sdfx/vec/v3"

// ComputeNormals returns smooth per-vertex normals. Each vertex sums the
// unnormalised (area weighted) normals of the triangles that use it.
// Vertices touched only by degenerate triangles get +Z.
func ComputeNormals(verts []v3.Vec, indices []int) []v3.Vec {
	normals := make([]v3.Vec, len(verts))
	for t := 0; t+2 < len(indices); t += 3 {
		a, b, c := indices[t], indices[t+1], indices[t+2]
		if a >= len(verts) || b >= len(verts) || c >= len(verts) {
			continue
		}
		n := verts[b].Sub(verts[a]).Cross(verts[c].Sub(verts[a]))
		normals[a] = normals[a].Add(n)
		normals[b] = normals[b].Add(n)
		normals[c] = normals[c].Add(n)
	}
	for i, n := range normals {
		if l := n.Length(); l > 0 {
			normals[i] = n.MulScalar(1 / l)
		} else {
			normals[i] = v3.Vec{Z: 1}
		}
	}
	return normals
}
