package source

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

// Depth chunk wire format, little endian:
//
//	0  magic "DPTH"
//	4  frame_id   u32
//	8  width      u16
//	10 height     u16
//	12 row_offset u16
//	14 row_count  u16
//	16 row_count*width u16 samples
const (
	ChunkMagic      = "DPTH"
	ChunkHeaderSize = 16

	// DefaultMaxPayload keeps chunks inside a typical Ethernet MTU.
	DefaultMaxPayload = 1400
)

var (
	ErrBadMagic        = errors.New("source: bad chunk magic")
	ErrShortChunk      = errors.New("source: chunk too short")
	ErrMalformedChunk  = errors.New("source: malformed chunk")
	ErrFrameResolution = errors.New("source: frame resolution mismatch")
)

// Chunk is a run of complete rows from one frame.
type Chunk struct {
	FrameID   uint32
	Width     uint16
	Height    uint16
	RowOffset uint16
	RowCount  uint16
	Samples   []uint16
}

// EncodeFrame splits a frame into chunks of at most maxPayload bytes. Each
// chunk carries at least one row, so a single row wider than maxPayload
// produces oversized chunks.
func EncodeFrame(frameID uint32, width, height int, samples []uint16, maxPayload int) ([][]byte, error) {
	if width <= 0 || height <= 0 || width > 0xffff || height > 0xffff {
		return nil, fmt.Errorf("source: invalid frame size %dx%d", width, height)
	}
	if len(samples) != width*height {
		return nil, fmt.Errorf("source: frame has %d samples, want %d", len(samples), width*height)
	}
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	rowsPer := (maxPayload - ChunkHeaderSize) / (2 * width)
	if rowsPer < 1 {
		rowsPer = 1
	}

	var chunks [][]byte
	for row := 0; row < height; row += rowsPer {
		n := rowsPer
		if row+n > height {
			n = height - row
		}
		buf := make([]byte, ChunkHeaderSize+2*n*width)
		copy(buf[0:4], ChunkMagic)
		binary.LittleEndian.PutUint32(buf[4:8], frameID)
		binary.LittleEndian.PutUint16(buf[8:10], uint16(width))
		binary.LittleEndian.PutUint16(buf[10:12], uint16(height))
		binary.LittleEndian.PutUint16(buf[12:14], uint16(row))
		binary.LittleEndian.PutUint16(buf[14:16], uint16(n))
		body := buf[ChunkHeaderSize:]
		for i, v := range samples[row*width : (row+n)*width] {
			binary.LittleEndian.PutUint16(body[2*i:], v)
		}
		chunks = append(chunks, buf)
	}
	return chunks, nil
}

// DecodeChunk parses one chunk. The returned samples do not alias b.
func DecodeChunk(b []byte) (Chunk, error) {
	if len(b) < ChunkHeaderSize {
		return Chunk{}, fmt.Errorf("%w: %d bytes", ErrShortChunk, len(b))
	}
	if string(b[0:4]) != ChunkMagic {
		return Chunk{}, fmt.Errorf("%w: %q", ErrBadMagic, b[0:4])
	}
	c := Chunk{
		FrameID:   binary.LittleEndian.Uint32(b[4:8]),
		Width:     binary.LittleEndian.Uint16(b[8:10]),
		Height:    binary.LittleEndian.Uint16(b[10:12]),
		RowOffset: binary.LittleEndian.Uint16(b[12:14]),
		RowCount:  binary.LittleEndian.Uint16(b[14:16]),
	}
	if c.Width == 0 || c.Height == 0 || c.RowCount == 0 {
		return Chunk{}, fmt.Errorf("%w: zero dimension", ErrMalformedChunk)
	}
	if int(c.RowOffset)+int(c.RowCount) > int(c.Height) {
		return Chunk{}, fmt.Errorf("%w: rows %d+%d exceed height %d", ErrMalformedChunk, c.RowOffset, c.RowCount, c.Height)
	}
	n := int(c.RowCount) * int(c.Width)
	if want := ChunkHeaderSize + 2*n; len(b) != want {
		return Chunk{}, fmt.Errorf("%w: %d bytes, want %d", ErrMalformedChunk, len(b), want)
	}
	c.Samples = make([]uint16, n)
	body := b[ChunkHeaderSize:]
	for i := range c.Samples {
		c.Samples[i] = binary.LittleEndian.Uint16(body[2*i:])
	}
	return c, nil
}

// AssemblerStats counts assembler outcomes.
type AssemblerStats struct {
	Completed uint64 `json:"completed"`
	Dropped   uint64 `json:"dropped"` // partial frames superseded by a newer id
	Stale     uint64 `json:"stale"`   // chunks for an older frame id
}

// FrameAssembler rebuilds frames from chunks and publishes each complete
// frame. Only one frame is in flight: a chunk with a newer frame id
// discards the partial frame.
type FrameAssembler struct {
	width, height int
	out           Publisher

	mu      sync.Mutex
	active  bool
	current uint32
	seen    bool // current holds a received frame id
	rows    []bool
	got     int
	buf     []uint16
	stats   AssemblerStats
}

// NewFrameAssembler creates an assembler for width x height frames.
func NewFrameAssembler(width, height int, out Publisher) *FrameAssembler {
	return &FrameAssembler{
		width:  width,
		height: height,
		out:    out,
		rows:   make([]bool, height),
	}
}

// newer reports whether id is ahead of cur, allowing for wraparound.
func newer(id, cur uint32) bool {
	return int32(id-cur) > 0
}

// Add merges c into the in-flight frame. complete is true when c finished
// a frame and it was published.
func (a *FrameAssembler) Add(c Chunk) (complete bool, err error) {
	if int(c.Width) != a.width || int(c.Height) != a.height {
		return false, fmt.Errorf("%w: chunk is %dx%d, want %dx%d",
			ErrFrameResolution, c.Width, c.Height, a.width, a.height)
	}
	if int(c.RowOffset)+int(c.RowCount) > a.height {
		return false, fmt.Errorf("%w: rows %d+%d exceed height %d",
			ErrMalformedChunk, c.RowOffset, c.RowCount, a.height)
	}
	if len(c.Samples) != int(c.RowCount)*a.width {
		return false, fmt.Errorf("%w: %d samples for %d rows of %d",
			ErrMalformedChunk, len(c.Samples), c.RowCount, a.width)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case !a.seen || newer(c.FrameID, a.current):
		if a.active && a.got > 0 {
			a.stats.Dropped++
		}
		a.start(c.FrameID)
	case c.FrameID != a.current || !a.active:
		a.stats.Stale++
		return false, nil
	}

	for r := 0; r < int(c.RowCount); r++ {
		row := int(c.RowOffset) + r
		copy(a.buf[row*a.width:(row+1)*a.width], c.Samples[r*a.width:(r+1)*a.width])
		if !a.rows[row] {
			a.rows[row] = true
			a.got++
		}
	}
	if a.got < a.height {
		return false, nil
	}

	frame := a.buf
	a.active = false
	a.buf = nil
	a.stats.Completed++
	if err := a.out.Publish(frame); err != nil {
		return false, err
	}
	return true, nil
}

func (a *FrameAssembler) start(id uint32) {
	a.current = id
	a.seen = true
	a.active = true
	a.got = 0
	for i := range a.rows {
		a.rows[i] = false
	}
	a.buf = make([]uint16, a.width*a.height)
}

// AddPacket decodes and adds one chunk.
func (a *FrameAssembler) AddPacket(b []byte) (bool, error) {
	c, err := DecodeChunk(b)
	if err != nil {
		return false, err
	}
	return a.Add(c)
}

// Stats returns a snapshot of the counters.
func (a *FrameAssembler) Stats() AssemblerStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}
