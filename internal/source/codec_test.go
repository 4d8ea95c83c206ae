package source

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFrameChunking(t *testing.T) {
	t.Parallel()

	frame := rampFrame(10, 7)
	// 16 header + 2 rows * 10 samples * 2 bytes = 56.
	chunks, err := EncodeFrame(3, 10, 7, frame, 60)
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	assert.Len(t, chunks[0], 56)
	assert.Len(t, chunks[3], ChunkHeaderSize+20, "last chunk holds the remaining row")

	var rebuilt []uint16
	for i, b := range chunks {
		c, err := DecodeChunk(b)
		require.NoError(t, err)
		assert.Equal(t, uint32(3), c.FrameID)
		assert.Equal(t, uint16(2*i), c.RowOffset)
		rebuilt = append(rebuilt, c.Samples...)
	}
	if diff := cmp.Diff(frame, rebuilt); diff != "" {
		t.Errorf("rebuilt frame mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeFrameRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := EncodeFrame(1, 0, 4, nil, 0)
	assert.Error(t, err)
	_, err = EncodeFrame(1, 4, 4, make([]uint16, 15), 0)
	assert.Error(t, err)

	chunks, err := EncodeFrame(1, 1000, 2, make([]uint16, 2000), 100)
	require.NoError(t, err)
	assert.Len(t, chunks, 2, "one row per chunk when a row exceeds the payload")
}

func TestDecodeChunkErrors(t *testing.T) {
	t.Parallel()

	good, err := EncodeFrame(9, 4, 2, rampFrame(4, 2), 0)
	require.NoError(t, err)
	require.Len(t, good, 1)

	mutate := func(f func(b []byte) []byte) []byte {
		b := append([]byte(nil), good[0]...)
		return f(b)
	}

	tests := []struct {
		name string
		b    []byte
		want error
	}{
		{"short", good[0][:10], ErrShortChunk},
		{"magic", mutate(func(b []byte) []byte { b[0] = 'X'; return b }), ErrBadMagic},
		{"zero width", mutate(func(b []byte) []byte { b[8], b[9] = 0, 0; return b }), ErrMalformedChunk},
		{"rows past height", mutate(func(b []byte) []byte { b[12] = 1; return b }), ErrMalformedChunk},
		{"truncated body", mutate(func(b []byte) []byte { return b[:len(b)-2] }), ErrMalformedChunk},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := DecodeChunk(tt.b)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestFrameAssembler(t *testing.T) {
	t.Parallel()

	out := &capture{}
	asm := NewFrameAssembler(4, 4, out)

	frame1 := rampFrame(4, 4)
	chunks1, err := EncodeFrame(1, 4, 4, frame1, ChunkHeaderSize+8)
	require.NoError(t, err)
	require.Len(t, chunks1, 4)

	// Out of order rows still complete the frame.
	for _, i := range []int{2, 0, 3} {
		complete, err := asm.AddPacket(chunks1[i])
		require.NoError(t, err)
		assert.False(t, complete)
	}
	complete, err := asm.AddPacket(chunks1[1])
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Equal(t, frame1, out.last())

	// A late duplicate of a completed frame is stale.
	complete, err = asm.AddPacket(chunks1[0])
	require.NoError(t, err)
	assert.False(t, complete)

	// Frame 2 is superseded by frame 3 before it completes.
	chunks2, _ := EncodeFrame(2, 4, 4, make([]uint16, 16), ChunkHeaderSize+8)
	_, err = asm.AddPacket(chunks2[0])
	require.NoError(t, err)

	frame3 := rampFrame(4, 4)
	frame3[0] = 999
	chunks3, _ := EncodeFrame(3, 4, 4, frame3, 0)
	complete, err = asm.AddPacket(chunks3[0])
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Equal(t, frame3, out.last())

	// Chunks for frame 2 are now stale.
	_, err = asm.AddPacket(chunks2[1])
	require.NoError(t, err)

	assert.Equal(t, AssemblerStats{Completed: 2, Dropped: 1, Stale: 2}, asm.Stats())
	assert.Equal(t, 2, out.count())

	other, _ := EncodeFrame(4, 2, 2, rampFrame(2, 2), 0)
	_, err = asm.AddPacket(other[0])
	assert.True(t, errors.Is(err, ErrFrameResolution))
}

func TestFrameIDWraparound(t *testing.T) {
	t.Parallel()

	assert.True(t, newer(1, 0))
	assert.True(t, newer(0, 0xffffffff))
	assert.False(t, newer(5, 6))
	assert.False(t, newer(7, 7))
}

func TestFrameAssemblerRejectsOutOfRangeChunks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		chunk Chunk
	}{
		{"rows past height", Chunk{FrameID: 1, Width: 4, Height: 4, RowOffset: 3, RowCount: 2, Samples: make([]uint16, 8)}},
		{"short samples", Chunk{FrameID: 1, Width: 4, Height: 4, RowCount: 2, Samples: make([]uint16, 7)}},
		{"long samples", Chunk{FrameID: 1, Width: 4, Height: 4, RowCount: 1, Samples: make([]uint16, 5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := &capture{}
			asm := NewFrameAssembler(4, 4, out)
			complete, err := asm.Add(tt.chunk)
			assert.False(t, complete)
			assert.True(t, errors.Is(err, ErrMalformedChunk), "got %v", err)
			assert.Equal(t, AssemblerStats{}, asm.Stats())
			assert.Zero(t, out.count())
		})
	}
}

func TestFrameAssemblerAddsHandBuiltChunks(t *testing.T) {
	t.Parallel()

	out := &capture{}
	asm := NewFrameAssembler(2, 2, out)
	complete, err := asm.Add(Chunk{FrameID: 9, Width: 2, Height: 2, RowOffset: 1, RowCount: 1, Samples: []uint16{3, 4}})
	require.NoError(t, err)
	assert.False(t, complete)
	complete, err = asm.Add(Chunk{FrameID: 9, Width: 2, Height: 2, RowCount: 1, Samples: []uint16{1, 2}})
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Equal(t, []uint16{1, 2, 3, 4}, out.last())
}
