package mesh

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGridConfig(t *testing.T) {
	t.Parallel()

	t.Run("640x480 to 160x120", func(t *testing.T) {
		t.Parallel()
		g, err := NewGridConfig(640, 480, 160, 120)
		require.NoError(t, err)
		assert.Equal(t, 4, g.StrideX)
		assert.Equal(t, 4, g.StrideY)
		assert.Equal(t, 160, g.ScaledWidth)
		assert.Equal(t, 120, g.ScaledHeight)
		assert.Equal(t, 19200, g.VertexCount())
		assert.Equal(t, 159*119*6, g.IndexCount())
		assert.Equal(t, 113526, g.IndexCount())
		assert.Equal(t, 640*480, g.SampleCount())
	})

	t.Run("non-square strides", func(t *testing.T) {
		t.Parallel()
		g, err := NewGridConfig(640, 480, 320, 60)
		require.NoError(t, err)
		assert.Equal(t, 2, g.StrideX)
		assert.Equal(t, 8, g.StrideY)
		assert.Equal(t, g.ScaledWidth*g.ScaledHeight, g.VertexCount())
	})

	t.Run("full resolution", func(t *testing.T) {
		t.Parallel()
		g, err := NewGridConfig(8, 6, 8, 6)
		require.NoError(t, err)
		assert.Equal(t, 1, g.StrideX)
		assert.Equal(t, 1, g.StrideY)
	})

	t.Run("index is row major", func(t *testing.T) {
		t.Parallel()
		g, err := NewGridConfig(8, 6, 4, 3)
		require.NoError(t, err)
		assert.Equal(t, 0, g.Index(0, 0))
		assert.Equal(t, 3, g.Index(3, 0))
		assert.Equal(t, 4, g.Index(0, 1))
		assert.Equal(t, 11, g.Index(3, 2))
	})
}

func TestNewGridConfigErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                          string
		sensorW, sensorH, wantW, wantH int
	}{
		{"uneven width", 640, 480, 150, 120},
		{"uneven height", 640, 480, 160, 100},
		{"degenerate width", 640, 480, 1, 120},
		{"degenerate height", 640, 480, 160, 1},
		{"zero target", 640, 480, 0, 0},
		{"target larger than sensor", 320, 240, 640, 480},
		{"no sensor", 0, 0, 160, 120},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewGridConfig(tt.sensorW, tt.sensorH, tt.wantW, tt.wantH)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration), "want ErrConfiguration, got %v", err)
		})
	}
}
