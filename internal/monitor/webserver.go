package monitor

import (
	"context"
	"errors"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/banshee-data/depthmesh/internal/httputil"
	"github.com/banshee-data/depthmesh/internal/mesh"
	"github.com/banshee-data/depthmesh/internal/mesh/export"
	"github.com/banshee-data/depthmesh/internal/monitoring"
	"github.com/banshee-data/depthmesh/internal/version"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
	"tailscale.com/tsweb"
)

// MeshController is the part of the builder the web server reads and
// toggles.
type MeshController interface {
	Snapshot() (*mesh.Mesh, mesh.UpdateStats)
	State() mesh.State
	Grid() mesh.GridConfig
	Options() mesh.Options
	SetBlur(enabled bool, iterations int)
	SetSmoothing(enabled bool, speed float64)
}

// MeshReader returns the mesh most recently published to a sink.
type MeshReader interface {
	Mesh() *mesh.Mesh
}

// WebServerConfig configures the debug HTTP server.
type WebServerConfig struct {
	Address string
	Builder MeshController
	// Mesh reads the sink copy, which carries normals when enabled. When
	// nil the builder snapshot is used.
	Mesh    MeshReader
	History *History
	Health  *Health
	// Extra attaches further routes, e.g. the database admin pages.
	Extra func(mux *http.ServeMux) error
}

// WebServer serves mesh status, toggles and debug views.
type WebServer struct {
	address string
	builder MeshController
	mesh    MeshReader
	history *History
	health  *Health
	extra   func(mux *http.ServeMux) error
	server  *http.Server
}

// NewWebServer creates a server. Routes are mounted by Handler or Start.
func NewWebServer(cfg WebServerConfig) *WebServer {
	history := cfg.History
	if history == nil {
		history = NewHistory(1)
	}
	return &WebServer{
		address: cfg.Address,
		builder: cfg.Builder,
		mesh:    cfg.Mesh,
		history: history,
		health:  cfg.Health,
		extra:   cfg.Extra,
	}
}

// Handler builds the route table.
func (ws *WebServer) Handler() (http.Handler, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/mesh/status", ws.handleStatus)
	mux.HandleFunc("/api/mesh/history", ws.handleHistory)
	mux.HandleFunc("/api/mesh/blur", ws.handleBlur)
	mux.HandleFunc("/api/mesh/smoothing", ws.handleSmoothing)
	mux.HandleFunc("/mesh.stl", ws.handleSTL)

	debug := tsweb.Debugger(mux)
	debug.KV("Version", version.String())
	debug.HandleFunc("mesh-history", "Update history chart", ws.handleHistoryChart)
	debug.HandleFunc("depth.png", "Depth heatmap of the committed mesh", ws.handleHeatmap)

	if ws.extra != nil {
		if err := ws.extra(mux); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	handler, err := ws.Handler()
	if err != nil {
		return err
	}
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("[Monitor] HTTP server listening on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("[Monitor] HTTP shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("[Monitor] HTTP force close error: %v", err)
		}
	}
	return nil
}

func (ws *WebServer) currentMesh() *mesh.Mesh {
	if ws.mesh != nil {
		if m := ws.mesh.Mesh(); m != nil {
			return m
		}
	}
	m, _ := ws.builder.Snapshot()
	return m
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}
	if ws.health != nil {
		s, err := ws.health.Check(r.Context())
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		resp.Status = s
	}
	body, err := protojson.Marshal(resp)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	code := http.StatusOK
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}

// StatusResponse is the body of /api/mesh/status.
type StatusResponse struct {
	State     string            `json:"state"`
	Grid      string            `json:"grid"`
	Vertices  int               `json:"vertices"`
	Triangles int               `json:"triangles"`
	HasMesh   bool              `json:"has_mesh"`
	Blur      bool              `json:"blur"`
	BlurIter  int               `json:"blur_iterations"`
	Lerp      bool              `json:"lerp"`
	LerpSpeed float64           `json:"lerp_speed"`
	Last      mesh.UpdateStats  `json:"last_update"`
	Outcomes  map[string]uint64 `json:"outcomes"`
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	m, last := ws.builder.Snapshot()
	opts := ws.builder.Options()
	grid := ws.builder.Grid()
	resp := StatusResponse{
		State:     ws.builder.State().String(),
		Grid:      grid.String(),
		Vertices:  grid.VertexCount(),
		Triangles: grid.IndexCount() / 3,
		HasMesh:   m != nil,
		Blur:      opts.ApplyBlur,
		BlurIter:  opts.BlurIterations,
		Lerp:      opts.ApplyLerp,
		LerpSpeed: opts.LerpSpeed,
		Last:      last,
		Outcomes:  map[string]uint64{},
	}
	for k, v := range ws.history.Counts() {
		resp.Outcomes[string(k)] = v
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (ws *WebServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries := ws.history.Entries()
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n < len(entries) {
		entries = entries[len(entries)-n:]
	}
	if entries == nil {
		entries = []mesh.UpdateStats{}
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

func parseEnabled(r *http.Request) (bool, error) {
	return strconv.ParseBool(r.URL.Query().Get("enabled"))
}

// handleBlur toggles the spatial filter.
// Query params:
//
//	enabled (required, bool)
//	iterations (optional, default current)
func (ws *WebServer) handleBlur(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	enabled, err := parseEnabled(r)
	if err != nil {
		httputil.BadRequest(w, "invalid 'enabled' parameter")
		return
	}
	iterations := ws.builder.Options().BlurIterations
	if s := r.URL.Query().Get("iterations"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 || n > 64 {
			httputil.BadRequest(w, "iterations must be between 0 and 64")
			return
		}
		iterations = n
	}
	ws.builder.SetBlur(enabled, iterations)
	monitoring.Logf("[Monitor] blur enabled=%v iterations=%d", enabled, iterations)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"blur": enabled, "blur_iterations": iterations})
}

// handleSmoothing toggles the temporal filter.
// Query params:
//
//	enabled (required, bool)
//	speed (optional, 0..1, default current)
func (ws *WebServer) handleSmoothing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	enabled, err := parseEnabled(r)
	if err != nil {
		httputil.BadRequest(w, "invalid 'enabled' parameter")
		return
	}
	speed := ws.builder.Options().LerpSpeed
	if s := r.URL.Query().Get("speed"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || v < 0 || v > 1 {
			httputil.BadRequest(w, "speed must be between 0 and 1")
			return
		}
		speed = v
	}
	ws.builder.SetSmoothing(enabled, speed)
	monitoring.Logf("[Monitor] smoothing enabled=%v speed=%.2f", enabled, speed)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"lerp": enabled, "lerp_speed": speed})
}

func (ws *WebServer) handleSTL(w http.ResponseWriter, r *http.Request) {
	m := ws.currentMesh()
	if m == nil {
		httputil.NotFound(w, "no mesh committed yet")
		return
	}
	dir, err := os.MkdirTemp("", "depthmesh-stl-")
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "mesh.stl")
	if err := export.SaveSTL(path, m); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "model/stl")
	w.Header().Set("Content-Disposition", "attachment; filename=mesh.stl")
	http.ServeFile(w, r, path)
}
