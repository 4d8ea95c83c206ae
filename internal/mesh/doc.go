// Package mesh owns the depth-to-geometry reconstruction pipeline.
//
// Responsibilities: decimating a sensor depth grid onto a vertex grid,
// recentring and scaling samples into world space, spatial (blur) and
// temporal (lerp) smoothing, and the static triangulation and UV layout
// of the vertex grid. Key types: GridConfig, Sampler, SpatialFilter,
// TemporalFilter, Builder.
//
// Dependency rule: mesh consumes a DepthSource and produces to a Sink and
// an optional CollisionSink. It never imports a concrete sensor source,
// transport or storage package.
package mesh
