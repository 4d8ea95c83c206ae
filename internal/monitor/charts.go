package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/depthmesh/internal/httputil"
	"github.com/banshee-data/depthmesh/internal/mesh"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleHistoryChart renders valid fraction and mean depth over the
// retained update history.
func (ws *WebServer) handleHistoryChart(w http.ResponseWriter, r *http.Request) {
	entries := ws.history.Entries()

	x := make([]string, 0, len(entries))
	valid := make([]opts.LineData, 0, len(entries))
	depth := make([]opts.LineData, 0, len(entries))
	durations := make([]opts.LineData, 0, len(entries))
	for _, st := range entries {
		x = append(x, strconv.FormatUint(st.Seq, 10))
		if st.Outcome != mesh.OutcomeCommitted {
			// Gaps mark skipped cycles.
			valid = append(valid, opts.LineData{Value: "-"})
			depth = append(depth, opts.LineData{Value: "-"})
		} else {
			valid = append(valid, opts.LineData{Value: st.ValidFraction * 100})
			depth = append(depth, opts.LineData{Value: st.MeanDepth})
		}
		durations = append(durations, opts.LineData{Value: float64(st.Duration.Microseconds()) / 1000})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Mesh Updates", Theme: "dark", Width: "100%", Height: "640px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Mesh Updates", Subtitle: fmt.Sprintf("%d retained updates", len(entries))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "update"}),
	)
	line.SetXAxis(x).
		AddSeries("valid %", valid).
		AddSeries("mean depth", depth).
		AddSeries("duration ms", durations)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// depthGrid adapts a committed mesh to plotter.GridXYZ. Rows run top to
// bottom as in the sensor image; Z is the vertex depth.
type depthGrid struct {
	m *mesh.Mesh
}

func (g depthGrid) Dims() (c, r int)   { return g.m.Width, g.m.Height }
func (g depthGrid) Z(c, r int) float64 { return -g.m.Vertices[r*g.m.Width+c].Z }
func (g depthGrid) X(c int) float64    { return float64(c) }
func (g depthGrid) Y(r int) float64    { return float64(g.m.Height - 1 - r) }

// RenderHeatmap draws m's depth as a PNG heatmap.
func RenderHeatmap(m *mesh.Mesh, width, height vg.Length) ([]byte, error) {
	if m == nil || m.Width < 2 || m.Height < 2 || len(m.Vertices) != m.Width*m.Height {
		return nil, fmt.Errorf("heatmap: mesh is empty or inconsistent")
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Depth %dx%d", m.Width, m.Height)
	p.X.Label.Text = "column"
	p.Y.Label.Text = "row"

	hm := plotter.NewHeatMap(depthGrid{m: m}, palette.Heat(32, 1))
	if hm.Max <= hm.Min {
		hm.Max = hm.Min + 1
	}
	p.Add(hm)

	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (ws *WebServer) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	m := ws.currentMesh()
	if m == nil {
		httputil.NotFound(w, "no mesh committed yet")
		return
	}
	png, err := RenderHeatmap(m, 8*vg.Inch, 6*vg.Inch)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}
