package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/banshee-data/depthmesh/internal/config"
	"github.com/banshee-data/depthmesh/internal/db"
	"github.com/banshee-data/depthmesh/internal/mesh"
	"github.com/banshee-data/depthmesh/internal/mesh/export"
	"github.com/banshee-data/depthmesh/internal/monitor"
	"github.com/banshee-data/depthmesh/internal/monitoring"
	"github.com/banshee-data/depthmesh/internal/scheduler"
	"github.com/banshee-data/depthmesh/internal/security"
	"github.com/banshee-data/depthmesh/internal/source"
	"github.com/banshee-data/depthmesh/internal/timeutil"
	"github.com/banshee-data/depthmesh/internal/version"
)

type appConfig struct {
	ConfigPath   string
	Source       string
	SensorWidth  int
	SensorHeight int
	UDPAddr      string
	UDPRcvBuf    int
	SerialPort   string
	BaudRate     int
	PCAPFile     string
	PCAPPort     int
	PCAPRealtime bool
	SyntheticFPS float64
	Listen       string
	GRPCListen   string
	DBPath       string
	STLOut       string
	STLEvery     int
}

// app owns every long-lived component of the binary.
type app struct {
	cfg      appConfig
	clock    timeutil.Clock
	interval time.Duration

	latest    *source.Latest
	assembler *source.FrameAssembler
	builder   *mesh.Builder
	sink      *mesh.MemorySink
	collider  *mesh.BoundsCollider
	history   *monitor.History
	health    *monitor.Health
	sched     *scheduler.Scheduler
	web       *monitor.WebServer

	store   *db.DB
	session *db.Session
}

func loadMeshConfig(path string) (*config.MeshConfig, error) {
	if path == "" {
		return config.EmptyMeshConfig(), nil
	}
	return config.LoadMeshConfig(path)
}

func newApp(cfg appConfig) (*app, error) {
	switch cfg.Source {
	case "synthetic", "udp", "serial", "pcap":
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
	if cfg.Source == "pcap" && cfg.PCAPFile == "" {
		return nil, errors.New("source=pcap requires -pcap")
	}

	meshCfg, err := loadMeshConfig(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		clock:    timeutil.RealClock{},
		interval: meshCfg.GetUpdateInterval(),
		sink:     mesh.NewMemorySink(),
		collider: mesh.NewBoundsCollider(),
		history:  monitor.NewHistory(512),
		health:   monitor.NewHealth(),
	}
	a.latest = source.NewLatest(cfg.SensorWidth, cfg.SensorHeight, a.clock)
	a.assembler = source.NewFrameAssembler(cfg.SensorWidth, cfg.SensorHeight, a.latest)

	var sink mesh.Sink = a.sink
	if cfg.STLOut != "" {
		if err := security.ValidateExportPath(cfg.STLOut); err != nil {
			return nil, fmt.Errorf("invalid -stl-out: %w", err)
		}
		sink = mesh.MultiSink{a.sink, export.NewFileSink(cfg.STLOut, cfg.STLEvery)}
	}
	observers := []mesh.UpdateObserver{a.history, a.health}

	opts := mesh.OptionsFromConfig(meshCfg)
	// Validate the grid before the store is opened.
	grid, err := mesh.NewGridConfig(cfg.SensorWidth, cfg.SensorHeight, opts.DesiredWidth, opts.DesiredHeight)
	if err != nil {
		return nil, err
	}

	if cfg.DBPath != "" {
		a.store, err = db.NewDB(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open update log: %w", err)
		}
		a.session, err = a.store.StartSession(cfg.Source, grid, opts, version.Version, a.clock.Now())
		if err != nil {
			a.store.Close()
			return nil, err
		}
		observers = append(observers, db.NewRecorder(a.store, a.session.ID))
		monitoring.Logf("[DB] recording session %s", a.session.ID)
	}

	a.builder, err = mesh.NewBuilder(mesh.BuilderConfig{
		Source:    a.latest,
		Sink:      sink,
		Collider:  a.collider,
		Observers: observers,
		Options:   opts,
		Clock:     a.clock,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.sched, err = scheduler.New(a.builder, a.interval, a.clock)
	if err != nil {
		a.Close()
		return nil, err
	}

	webCfg := monitor.WebServerConfig{
		Address: cfg.Listen,
		Builder: a.builder,
		Mesh:    a.sink,
		History: a.history,
		Health:  a.health,
	}
	if a.store != nil {
		webCfg.Extra = a.store.AttachAdminRoutes
	}
	a.web = monitor.NewWebServer(webCfg)
	return a, nil
}

// runSource feeds a.latest until ctx is cancelled or the source ends.
func (a *app) runSource(ctx context.Context) error {
	switch a.cfg.Source {
	case "synthetic":
		fps := a.cfg.SyntheticFPS
		if fps <= 0 {
			fps = 15
		}
		gen := source.NewSyntheticGenerator(a.cfg.SensorWidth, a.cfg.SensorHeight, time.Now().UnixNano())
		return gen.Run(ctx, a.clock, time.Duration(float64(time.Second)/fps), a.latest)
	case "udp":
		return source.NewUDPSource(source.UDPConfig{
			Address: a.cfg.UDPAddr,
			RcvBuf:  a.cfg.UDPRcvBuf,
		}, a.assembler).Start(ctx)
	case "serial":
		return source.NewSerialSource(a.cfg.SerialPort, source.PortOptions{BaudRate: a.cfg.BaudRate},
			a.cfg.SensorWidth, a.cfg.SensorHeight, a.latest).Start(ctx)
	case "pcap":
		_, err := source.ReplayPCAP(ctx, source.PCAPConfig{
			Path:     a.cfg.PCAPFile,
			Port:     a.cfg.PCAPPort,
			RealTime: a.cfg.PCAPRealtime,
		}, a.assembler)
		return err
	}
	return fmt.Errorf("unknown source %q", a.cfg.Source)
}

// Run starts every routine and blocks until ctx is cancelled. A source
// that ends or fails leaves the last mesh committed; the servers keep
// running until shutdown.
func (a *app) Run(ctx context.Context) error {
	var lis net.Listener
	if a.cfg.GRPCListen != "" {
		var err error
		if lis, err = net.Listen("tcp", a.cfg.GRPCListen); err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errc := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.runSource(ctx); err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Logf("source %s stopped: %v", a.cfg.Source, err)
		}
		monitoring.Logf("source routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.sched.Run(ctx)
		monitoring.Logf("scheduler routine terminated")
	}()

	if a.cfg.Listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.web.Start(ctx); err != nil {
				errc <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	if lis != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.health.Serve(ctx, lis); err != nil {
				errc <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errc:
		cancel()
	}
	wg.Wait()
	return runErr
}

// Close ends the recording session and closes the store.
func (a *app) Close() {
	if a.store == nil {
		return
	}
	if a.session != nil {
		if err := a.store.EndSession(a.session.ID, a.clock.Now()); err != nil {
			monitoring.Logf("[DB] end session: %v", err)
		}
	}
	a.store.Close()
	a.store = nil
}

// handler exposes the HTTP routes for tests.
func (a *app) handler() (http.Handler, error) {
	return a.web.Handler()
}
