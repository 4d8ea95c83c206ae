package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/depthmesh/internal/monitoring"
)

// UDPConfig configures a UDPSource.
type UDPConfig struct {
	Address     string        // listen address, e.g. ":7400"
	RcvBuf      int           // socket receive buffer in bytes; 0 keeps the OS default
	LogInterval time.Duration // packet stats interval; defaults to one minute
}

// UDPSource receives depth chunks over UDP and feeds a FrameAssembler.
type UDPSource struct {
	cfg       UDPConfig
	assembler *FrameAssembler

	mu   sync.Mutex
	conn *net.UDPConn

	packets   atomic.Uint64
	bytes     atomic.Uint64
	malformed atomic.Uint64
}

// NewUDPSource creates a listener that writes assembled frames to asm.
func NewUDPSource(cfg UDPConfig, asm *FrameAssembler) *UDPSource {
	if cfg.LogInterval == 0 {
		cfg.LogInterval = time.Minute
	}
	return &UDPSource{cfg: cfg, assembler: asm}
}

// Listen binds the socket. It is called by Start and is exposed so callers
// can learn the bound address before serving.
func (s *UDPSource) Listen() error {
	addr, err := net.ResolveUDPAddr("udp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	if s.cfg.RcvBuf > 0 {
		if err := conn.SetReadBuffer(s.cfg.RcvBuf); err != nil {
			monitoring.Logf("[UDPSource] failed to set receive buffer to %d: %v", s.cfg.RcvBuf, err)
		}
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	monitoring.Logf("[UDPSource] listening on %s", conn.LocalAddr())
	return nil
}

// LocalAddr returns the bound address, or nil before Listen.
func (s *UDPSource) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Start binds and serves until ctx is cancelled.
func (s *UDPSource) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve reads packets until ctx is cancelled. Listen must have succeeded.
func (s *UDPSource) Serve(ctx context.Context) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errors.New("udp source: not listening")
	}
	defer conn.Close()

	go s.logStats(ctx)

	buffer := make([]byte, 65535)
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("[UDPSource] stopping: %v", ctx.Err())
			return ctx.Err()
		default:
		}

		// Short deadline so cancellation is noticed promptly.
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, addr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			monitoring.Logf("[UDPSource] read error: %v", err)
			continue
		}
		s.handlePacket(buffer[:n], addr)
	}
}

func (s *UDPSource) handlePacket(packet []byte, from net.Addr) {
	s.packets.Add(1)
	s.bytes.Add(uint64(len(packet)))
	complete, err := s.assembler.AddPacket(packet)
	if err != nil {
		s.malformed.Add(1)
		monitoring.Logf("[UDPSource] dropping packet from %v: %v", from, err)
		return
	}
	if complete {
		monitoring.Tracef("[UDPSource] frame complete from %v", from)
	}
}

func (s *UDPSource) logStats(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.LogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.assembler.Stats()
			monitoring.Logf("[UDPSource] packets=%d bytes=%d malformed=%d frames=%d dropped=%d",
				s.packets.Load(), s.bytes.Load(), s.malformed.Load(), st.Completed, st.Dropped)
		}
	}
}

// Packets returns the number of datagrams received.
func (s *UDPSource) Packets() uint64 { return s.packets.Load() }

// Malformed returns the number of datagrams that failed to decode or assemble.
func (s *UDPSource) Malformed() uint64 { return s.malformed.Load() }
