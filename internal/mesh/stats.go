package mesh

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// Outcome classifies one update cycle.
type Outcome string

const (
	OutcomeCommitted         Outcome = "committed"
	OutcomeSourceUnavailable Outcome = "source_unavailable"
	OutcomeDimensionMismatch Outcome = "dimension_mismatch"
	OutcomeSinkError         Outcome = "sink_error"
)

// UpdateStats summarises one update cycle.
type UpdateStats struct {
	Seq      uint64        `json:"seq"`
	Outcome  Outcome       `json:"outcome"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration_nanos"`

	GridWidth  int `json:"grid_width"`
	GridHeight int `json:"grid_height"`
	Vertices   int `json:"vertices"`
	Indices    int `json:"indices"`

	// ValidFraction is the share of decimated samples with a non-zero
	// reading, whatever the threshold.
	ValidFraction float64 `json:"valid_fraction"`
	// MeanDepth and StdDevDepth cover valid samples at or above the z
	// threshold, in sensor units. Depths substituted by the threshold
	// policy are excluded.
	MeanDepth   float64 `json:"mean_depth"`
	StdDevDepth float64 `json:"stddev_depth"`
}

// depthSummary computes coverage and the depth moments of measured points.
func depthSummary(points []DepthPoint) (validFraction, mean, std float64) {
	if len(points) == 0 {
		return 0, 0, 0
	}
	valid := 0
	depths := make([]float64, 0, len(points))
	for _, pt := range points {
		if !pt.Valid {
			continue
		}
		valid++
		if pt.Measured {
			depths = append(depths, float64(pt.Z))
		}
	}
	validFraction = float64(valid) / float64(len(points))
	switch len(depths) {
	case 0:
		return validFraction, 0, 0
	case 1:
		return validFraction, depths[0], 0
	}
	mean, std = stat.MeanStdDev(depths, nil)
	return validFraction, mean, std
}
