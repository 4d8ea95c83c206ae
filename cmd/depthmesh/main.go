// Command depthmesh builds a live triangle mesh from a depth sensor feed
// and serves status, debug views and a gRPC health check.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/banshee-data/depthmesh/internal/monitoring"
	"github.com/banshee-data/depthmesh/internal/version"
)

var (
	configPath   = flag.String("config", "", "Path to mesh tuning JSON (defaults built in)")
	sourceKind   = flag.String("source", "synthetic", "Depth source: synthetic, udp, serial or pcap")
	sensorWidth  = flag.Int("sensor-width", 640, "Sensor width in pixels")
	sensorHeight = flag.Int("sensor-height", 480, "Sensor height in pixels")
	udpAddr      = flag.String("udp-addr", ":7400", "UDP listen address for depth chunks")
	udpRcvBuf    = flag.Int("udp-rcvbuf", 4<<20, "UDP receive buffer in bytes")
	serialPort   = flag.String("serial-port", "/dev/ttyUSB0", "Serial device for line-mode sensors")
	baudRate     = flag.Int("baud", 115200, "Serial baud rate")
	pcapFile     = flag.String("pcap", "", "PCAP file to replay (source=pcap)")
	pcapPort     = flag.Int("pcap-port", 7400, "UDP destination port to replay from the PCAP (0 = any)")
	pcapRealtime = flag.Bool("pcap-realtime", true, "Pace PCAP replay by capture timestamps")
	syntheticFPS = flag.Float64("synthetic-fps", 15, "Synthetic source frame rate")
	listen       = flag.String("listen", ":8081", "HTTP listen address")
	grpcListen   = flag.String("grpc-listen", ":50061", "gRPC health listen address (empty disables)")
	dbPath       = flag.String("db", "depthmesh.db", "SQLite update log (empty disables)")
	stlOut       = flag.String("stl-out", "", "Write the committed mesh to this STL file")
	stlEvery     = flag.Int("stl-every", 1, "Write the STL file every N commits")
	trace        = flag.Bool("trace", false, "Log every update")
)

func main() {
	flag.Parse()
	if *trace {
		monitoring.SetTraceLogger(log.Printf)
	}
	log.Printf("starting %s", version.String())

	cfg := appConfig{
		ConfigPath:   *configPath,
		Source:       *sourceKind,
		SensorWidth:  *sensorWidth,
		SensorHeight: *sensorHeight,
		UDPAddr:      *udpAddr,
		UDPRcvBuf:    *udpRcvBuf,
		SerialPort:   *serialPort,
		BaudRate:     *baudRate,
		PCAPFile:     *pcapFile,
		PCAPPort:     *pcapPort,
		PCAPRealtime: *pcapRealtime,
		SyntheticFPS: *syntheticFPS,
		Listen:       *listen,
		GRPCListen:   *grpcListen,
		DBPath:       *dbPath,
		STLOut:       *stlOut,
		STLEvery:     *stlEvery,
	}

	a, err := newApp(cfg)
	if err != nil {
		log.Fatalf("setup failed: %v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := a.Run(ctx); err != nil {
		log.Fatalf("depthmesh stopped: %v", err)
	}
	log.Print("depthmesh stopped")
}
