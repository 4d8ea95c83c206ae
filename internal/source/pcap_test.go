package source

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeCapture writes payloads as Ethernet/IPv4/UDP packets to dstPort,
// spaced gap apart.
func writeCapture(t *testing.T, payloads [][]byte, dstPort uint16, gap time.Duration) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "depth.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	ts := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	for _, p := range payloads {
		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
			DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IPv4(192, 168, 1, 10),
			DstIP:    net.IPv4(192, 168, 1, 20),
		}
		udp := &layers.UDP{SrcPort: 40000, DstPort: layers.UDPPort(dstPort)}
		require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(p)))
		data := buf.Bytes()
		require.NoError(t, w.WritePacket(gopacket.CaptureInfo{
			Timestamp:     ts,
			CaptureLength: len(data),
			Length:        len(data),
		}, data))
		ts = ts.Add(gap)
	}
	return path
}

func TestReplayPCAP(t *testing.T) {
	frame := rampFrame(6, 4)
	chunks, err := EncodeFrame(11, 6, 4, frame, ChunkHeaderSize+12)
	require.NoError(t, err)
	payloads := append(chunks, []byte("garbage"))
	path := writeCapture(t, payloads, 7400, time.Millisecond)

	out := &capture{}
	stats, err := ReplayPCAP(context.Background(), PCAPConfig{Path: path, Port: 7400}, NewFrameAssembler(6, 4, out))
	require.NoError(t, err)
	assert.Equal(t, PCAPStats{Packets: 5, Chunks: 5, Malformed: 1, Frames: 1}, stats)
	assert.Equal(t, frame, out.last())
}

func TestReplayPCAPPortFilter(t *testing.T) {
	chunks, err := EncodeFrame(1, 2, 2, rampFrame(2, 2), 0)
	require.NoError(t, err)
	path := writeCapture(t, chunks, 9999, 0)

	out := &capture{}
	stats, err := ReplayPCAP(context.Background(), PCAPConfig{Path: path, Port: 7400}, NewFrameAssembler(2, 2, out))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Packets)
	assert.Zero(t, stats.Chunks)
	assert.Zero(t, out.count())
}

func TestReplayPCAPRealTimeHonoursCancel(t *testing.T) {
	chunks, err := EncodeFrame(1, 2, 2, rampFrame(2, 2), ChunkHeaderSize+4)
	require.NoError(t, err)
	path := writeCapture(t, chunks, 7400, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	stats, err := ReplayPCAP(ctx, PCAPConfig{Path: path, RealTime: true}, NewFrameAssembler(2, 2, &capture{}))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, stats.Packets)
}

func TestReplayPCAPMissingFile(t *testing.T) {
	_, err := ReplayPCAP(context.Background(), PCAPConfig{Path: filepath.Join(t.TempDir(), "none.pcap")}, NewFrameAssembler(2, 2, &capture{}))
	assert.Error(t, err)
}
