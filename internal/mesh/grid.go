package mesh

import "fmt"

// GridConfig describes how a sensor depth grid is decimated onto the
// vertex grid. It is immutable once built by NewGridConfig.
type GridConfig struct {
	SensorWidth  int
	SensorHeight int
	StrideX      int // sensor pixels per vertex column
	StrideY      int // sensor pixels per vertex row
	ScaledWidth  int
	ScaledHeight int
}

// NewGridConfig derives decimation strides and vertex grid dimensions.
// The desired resolution must evenly divide the sensor resolution and
// must yield at least a 2x2 vertex grid.
func NewGridConfig(sensorWidth, sensorHeight, desiredWidth, desiredHeight int) (GridConfig, error) {
	if sensorWidth <= 0 || sensorHeight <= 0 {
		return GridConfig{}, fmt.Errorf("%w: sensor resolution %dx%d must be positive",
			ErrConfiguration, sensorWidth, sensorHeight)
	}
	if desiredWidth <= 0 || desiredHeight <= 0 {
		return GridConfig{}, fmt.Errorf("%w: target resolution %dx%d must be positive",
			ErrConfiguration, desiredWidth, desiredHeight)
	}
	if desiredWidth > sensorWidth || desiredHeight > sensorHeight {
		return GridConfig{}, fmt.Errorf("%w: target resolution %dx%d exceeds sensor resolution %dx%d",
			ErrConfiguration, desiredWidth, desiredHeight, sensorWidth, sensorHeight)
	}
	if sensorWidth%desiredWidth != 0 || sensorHeight%desiredHeight != 0 {
		return GridConfig{}, fmt.Errorf("%w: target resolution %dx%d does not evenly divide sensor resolution %dx%d",
			ErrConfiguration, desiredWidth, desiredHeight, sensorWidth, sensorHeight)
	}

	g := GridConfig{
		SensorWidth:  sensorWidth,
		SensorHeight: sensorHeight,
		StrideX:      sensorWidth / desiredWidth,
		StrideY:      sensorHeight / desiredHeight,
	}
	g.ScaledWidth = sensorWidth / g.StrideX
	g.ScaledHeight = sensorHeight / g.StrideY

	if g.ScaledWidth < 2 || g.ScaledHeight < 2 {
		return GridConfig{}, fmt.Errorf("%w: vertex grid %dx%d is too small to triangulate",
			ErrConfiguration, g.ScaledWidth, g.ScaledHeight)
	}
	return g, nil
}

// VertexCount is the number of vertices in the scaled grid.
func (g GridConfig) VertexCount() int {
	return g.ScaledWidth * g.ScaledHeight
}

// IndexCount is the length of the triangle index buffer: two triangles
// per grid cell.
func (g GridConfig) IndexCount() int {
	return (g.ScaledWidth - 1) * (g.ScaledHeight - 1) * 6
}

// SampleCount is the number of raw samples expected in one depth frame.
func (g GridConfig) SampleCount() int {
	return g.SensorWidth * g.SensorHeight
}

// Index returns the row-major vertex index of grid column x, row y.
func (g GridConfig) Index(x, y int) int {
	return y*g.ScaledWidth + x
}

func (g GridConfig) String() string {
	return fmt.Sprintf("sensor=%dx%d stride=%dx%d grid=%dx%d",
		g.SensorWidth, g.SensorHeight, g.StrideX, g.StrideY, g.ScaledWidth, g.ScaledHeight)
}
