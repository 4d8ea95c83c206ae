package mesh

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/depthmesh/internal/monitoring"
	"github.com/banshee-data/depthmesh/internal/timeutil"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// State is the Builder's position within one update cycle. A successful
// cycle stays Committed until the next one starts; a skipped or failed
// cycle returns to Idle.
type State int

const (
	StateIdle State = iota
	StateSampling
	StateBlurring
	StateSmoothing
	StateCommitted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSampling:
		return "sampling"
	case StateBlurring:
		return "blurring"
	case StateSmoothing:
		return "smoothing"
	case StateCommitted:
		return "committed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// BuilderConfig holds the Builder's collaborators.
type BuilderConfig struct {
	Source    DepthSource   // required
	Sink      Sink          // required
	Collider  CollisionSink // optional
	Observers []UpdateObserver
	Options   Options
	Clock     timeutil.Clock // defaults to timeutil.RealClock
}

// Builder drives the sample -> blur -> lerp -> commit sequence. Update is
// synchronous and must not be called concurrently with itself; the other
// methods are safe to call from any goroutine.
type Builder struct {
	mu sync.Mutex

	source    DepthSource
	sink      Sink
	collider  CollisionSink
	observers []UpdateObserver
	clock     timeutil.Clock

	opts    Options
	grid    GridConfig
	sampler *Sampler
	blur    *SpatialFilter
	lerp    *TemporalFilter

	// Static per-grid buffers shared by every committed Mesh.
	uvs     []v2.Vec
	indices []int

	state     atomic.Int32
	seq       uint64
	committed *Mesh
	lastStats UpdateStats
}

// NewBuilder validates the configuration against the source resolution and
// precomputes the index and UV buffers. Configuration errors are returned
// before any update can run.
func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("%w: depth source is required", ErrConfiguration)
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("%w: mesh sink is required", ErrConfiguration)
	}
	if err := cfg.Options.validate(); err != nil {
		return nil, err
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	b := &Builder{
		source:    cfg.Source,
		sink:      cfg.Sink,
		collider:  cfg.Collider,
		observers: cfg.Observers,
		clock:     clock,
		opts:      cfg.Options,
		blur:      NewSpatialFilter(GaussianKernel),
		lerp:      NewTemporalFilter(cfg.Options.LerpSpeed),
	}
	if err := b.configure(cfg.Options.DesiredWidth, cfg.Options.DesiredHeight); err != nil {
		return nil, err
	}
	monitoring.Logf("[MeshBuilder] configured %s vertices=%d indices=%d",
		b.grid, b.grid.VertexCount(), len(b.indices))
	return b, nil
}

// configure builds the grid and every buffer derived from it. On error the
// Builder is left unchanged.
func (b *Builder) configure(desiredWidth, desiredHeight int) error {
	sw, sh := b.source.Resolution()
	grid, err := NewGridConfig(sw, sh, desiredWidth, desiredHeight)
	if err != nil {
		return err
	}
	b.grid = grid
	b.opts.DesiredWidth = desiredWidth
	b.opts.DesiredHeight = desiredHeight
	b.sampler = NewSampler(grid, b.opts.samplerOptions())
	b.indices = TriangleIndices(grid.ScaledWidth, grid.ScaledHeight)
	b.uvs = UVs(grid.ScaledWidth, grid.ScaledHeight)
	b.lerp.Reset()
	return nil
}

// Reconfigure changes the target grid resolution. The index and UV buffers
// and the smoothing state are rebuilt for the new dimensions. On error the
// previous configuration stays in effect.
func (b *Builder) Reconfigure(desiredWidth, desiredHeight int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.configure(desiredWidth, desiredHeight); err != nil {
		return err
	}
	monitoring.Logf("[MeshBuilder] reconfigured %s", b.grid)
	return nil
}

// SetBlur toggles the spatial filter for subsequent updates.
func (b *Builder) SetBlur(enabled bool, iterations int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if iterations < 0 {
		iterations = 0
	}
	b.opts.ApplyBlur = enabled
	b.opts.BlurIterations = iterations
}

// SetSmoothing toggles the temporal filter for subsequent updates. speed
// is clamped to [0, 1]; NaN keeps the current speed. Disabling the filter
// drops the retained grid so re-enabling starts fresh.
func (b *Builder) SetSmoothing(enabled bool, speed float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	speed = clampSpeed(speed, b.opts.LerpSpeed)
	b.opts.ApplyLerp = enabled
	b.opts.LerpSpeed = speed
	b.lerp.Speed = speed
	if !enabled {
		b.lerp.Reset()
	}
}

// Update runs one full cycle. A missing or malformed frame skips the cycle
// and returns ErrSourceUnavailable or ErrDimensionMismatch; the previously
// committed mesh is left in place.
func (b *Builder) Update() (UpdateStats, error) {
	stats, err := b.update()
	for _, o := range b.observers {
		o.ObserveUpdate(stats)
	}
	return stats, err
}

func (b *Builder) update() (UpdateStats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	started := b.clock.Now()
	stats := UpdateStats{
		Seq:        b.seq,
		Started:    started,
		GridWidth:  b.grid.ScaledWidth,
		GridHeight: b.grid.ScaledHeight,
	}
	finish := func(outcome Outcome, err error) (UpdateStats, error) {
		stats.Outcome = outcome
		stats.Duration = b.clock.Since(started)
		b.lastStats = stats
		if err != nil {
			b.setState(StateIdle)
			monitoring.Logf("[MeshBuilder] update %d skipped: %v", stats.Seq, err)
		} else {
			monitoring.Tracef("[MeshBuilder] update %d committed in %v: valid=%.2f mean=%.1f",
				stats.Seq, stats.Duration, stats.ValidFraction, stats.MeanDepth)
		}
		return stats, err
	}

	b.setState(StateSampling)
	raw, ok := b.source.LatestFrame()
	if !ok {
		return finish(OutcomeSourceUnavailable, ErrSourceUnavailable)
	}
	verts, err := b.sampler.Vertices(raw)
	if err != nil {
		return finish(OutcomeDimensionMismatch, err)
	}
	stats.ValidFraction, stats.MeanDepth, stats.StdDevDepth = depthSummary(b.sampler.Points())

	if b.opts.ApplyBlur && b.opts.BlurIterations > 0 {
		b.setState(StateBlurring)
		if err := b.blur.Apply(verts, b.grid.ScaledWidth, b.grid.ScaledHeight, b.opts.BlurIterations); err != nil {
			return finish(OutcomeDimensionMismatch, err)
		}
	}
	if b.opts.ApplyLerp {
		b.setState(StateSmoothing)
		b.lerp.Apply(verts)
	}

	m := &Mesh{
		Width:    b.grid.ScaledWidth,
		Height:   b.grid.ScaledHeight,
		Vertices: verts,
		Indices:  b.indices,
	}
	if b.opts.GenerateUVs {
		m.UVs = b.uvs
	}
	stats.Vertices = len(m.Vertices)
	stats.Indices = len(m.Indices)

	if err := b.sink.ReplaceMesh(m); err != nil {
		return finish(OutcomeSinkError, fmt.Errorf("replace mesh: %w", err))
	}
	if b.opts.GenerateNormals {
		if err := b.sink.RecalculateNormals(); err != nil {
			monitoring.Logf("[MeshBuilder] normals for update %d failed: %v", stats.Seq, err)
		}
	}
	if b.collider != nil {
		b.collider.Invalidate()
		b.collider.Assign(m)
	}

	b.committed = m
	b.setState(StateCommitted)
	return finish(OutcomeCommitted, nil)
}

func (b *Builder) setState(s State) {
	b.state.Store(int32(s))
}

// Grid returns the current grid configuration.
func (b *Builder) Grid() GridConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.grid
}

// Options returns the current options.
func (b *Builder) Options() Options {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opts
}

// State returns the Builder's current cycle state. It does not block on a
// running update.
func (b *Builder) State() State {
	return State(b.state.Load())
}

// Snapshot returns the last committed mesh (nil before the first commit)
// and the stats of the most recent cycle.
func (b *Builder) Snapshot() (*Mesh, UpdateStats) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.committed, b.lastStats
}

// IsSkip reports whether err is a recoverable per-update error.
func IsSkip(err error) bool {
	return errors.Is(err, ErrSourceUnavailable) || errors.Is(err, ErrDimensionMismatch)
}
