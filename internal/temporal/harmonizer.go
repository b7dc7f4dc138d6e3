// Package temporal aligns heterogeneous source sampling frequencies onto a
// single monotonic time index.
//
// The unified index spans the intersection of the time-varying sources'
// native spans: it starts at the latest per-source start and ends at the
// earliest per-source end, so no source contributes all-missing padding at
// the edges. Daily sources are linearly interpolated (and mean-binned when
// the target frequency is coarser), composite sources get spline
// interpolation with gap suppression, and annual/static sources are
// broadcast, with sinusoidal seasonal modulation for transmission-risk
// surfaces.
package temporal

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/interp"

	"github.com/geohealth/envfuse/internal/domain"
)

// compositeMaxGapDays is the largest native gap a composite source may be
// interpolated across. Longer gaps are real data outages; interpolating
// across them would fabricate observations, so those steps stay missing
// until the gap-fill policy runs.
const compositeMaxGapDays = 16.0

// Frequency is the target sampling frequency of the unified time index.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

// StepDays returns the index step in days.
func (f Frequency) StepDays() (int, error) {
	switch f {
	case Daily:
		return 1, nil
	case Weekly:
		return 7, nil
	case Monthly:
		return 30, nil
	default:
		return 0, fmt.Errorf("unknown frequency %q (want daily, weekly, or monthly)", f)
	}
}

// Result is the temporally aligned source set.
type Result struct {
	// Datasets holds every input source re-expressed on the unified index.
	Datasets map[domain.SourceKind]*domain.SourceDataset
	// Times is the unified monotonic time index (bin starts).
	Times []time.Time
	// Flags records gap-fill fallbacks for quality metadata.
	Flags []string
}

// Harmonizer aligns all sources onto one time index.
type Harmonizer struct {
	logger *slog.Logger
}

// New creates a temporal Harmonizer.
func New(logger *slog.Logger) *Harmonizer {
	return &Harmonizer{logger: logger}
}

// Align produces the unified time index at the given frequency and
// re-expresses every source dataset on it. The window bounds the index and
// serves as the span when only static sources are present. Returns
// domain.ErrNoTemporalOverlap when the time-varying sources share no common
// window.
func (h *Harmonizer) Align(datasets map[domain.SourceKind]*domain.SourceDataset, freq Frequency, window domain.TimeRange) (*Result, error) {
	step, err := freq.StepDays()
	if err != nil {
		return nil, err
	}

	times, err := h.unifiedIndex(datasets, step, window)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Datasets: make(map[domain.SourceKind]*domain.SourceDataset, len(datasets)),
		Times:    times,
	}

	for kind, ds := range datasets {
		strat, err := domain.StrategyFor(kind)
		if err != nil {
			return nil, err
		}

		aligned := &domain.SourceDataset{Kind: kind, Meta: ds.Meta}
		for _, block := range ds.Blocks {
			out, flags := h.alignBlock(kind, strat, block, times, step)
			aligned.Blocks = append(aligned.Blocks, out)
			res.Flags = append(res.Flags, flags...)
		}
		res.Datasets[kind] = aligned
	}

	h.logger.Debug("temporal alignment complete",
		"sources", len(res.Datasets),
		"steps", len(times),
		"start", times[0],
		"end", times[len(times)-1],
		"frequency", freq,
	)
	return res, nil
}

// unifiedIndex computes the intersection window across time-varying sources
// and discretizes it at the target step. Static sources never constrain the
// index; an all-static request falls back to the requested window.
func (h *Harmonizer) unifiedIndex(datasets map[domain.SourceKind]*domain.SourceDataset, step int, window domain.TimeRange) ([]time.Time, error) {
	start := dayStart(window.Start)
	end := dayStart(window.End)

	constrained := false
	for _, ds := range datasets {
		for _, block := range ds.Blocks {
			if !block.IsSeries() {
				continue
			}
			constrained = true
			if first := dayStart(block.Times[0]); first.After(start) {
				start = first
			}
			if last := dayStart(block.Times[len(block.Times)-1]); last.Before(end) {
				end = last
			}
		}
	}
	if start.After(end) {
		return nil, fmt.Errorf("%w: intersection start %s is after end %s",
			domain.ErrNoTemporalOverlap, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	if !constrained {
		h.logger.Warn("no time-varying sources; using requested window as time index")
	}

	var times []time.Time
	for t := start; !t.After(end); t = t.AddDate(0, 0, step) {
		times = append(times, t)
	}
	return times, nil
}

// alignBlock re-expresses one block on the unified index according to the
// source's strategy, then applies its gap-fill policy.
func (h *Harmonizer) alignBlock(kind domain.SourceKind, strat domain.Strategy, block *domain.RasterBlock, times []time.Time, step int) (*domain.RasterBlock, []string) {
	var out *domain.RasterBlock
	switch {
	case strat.Cadence == domain.CadenceAnnual || !block.IsSeries():
		out = broadcast(block, times, strat.Seasonal)
	case strat.Cadence == domain.CadenceComposite:
		out = interpolateComposite(block, times)
	default:
		out = interpolateFine(block, times, step)
	}

	filled, flags := fillGaps(kind, strat.GapFill, out, block)
	for _, f := range flags {
		h.logger.Warn("gap fill degraded", "source", kind, "detail", f)
	}
	return filled, flags
}

// broadcast repeats a static surface across every index step. Seasonal
// surfaces are scaled by the transmission seasonality factor for each step.
func broadcast(block *domain.RasterBlock, times []time.Time, seasonal bool) *domain.RasterBlock {
	src := block.SliceAt(0)
	h, w := block.Grid.Height, block.Grid.Width
	plane := h * w
	data := sparse.ZerosDense(len(times), h, w)
	for i, t := range times {
		factor := 1.0
		if seasonal {
			factor = domain.SeasonalFactor(t)
		}
		for j, v := range src.Elements {
			data.Elements[i*plane+j] = v * factor
		}
	}
	out, _ := domain.NewSeriesBlock(block.Name, block.Grid, times, data)
	return out
}

// interpolateFine aligns a source sampled at daily (or finer) cadence:
// linear interpolation onto a daily grid, then mean-binned when the target
// step is coarser.
func interpolateFine(block *domain.RasterBlock, times []time.Time, step int) *domain.RasterBlock {
	h, w := block.Grid.Height, block.Grid.Width
	plane := h * w
	data := sparse.ZerosDense(len(times), h, w)

	nativeDays := toDays(block.Times)
	forEachPixel(h, w, func(row, col int) {
		xs, ys := validSamples(block, nativeDays, row, col)
		for i, t := range times {
			data.Elements[i*plane+row*w+col] = fineValue(xs, ys, days(t), step)
		}
	})

	out, _ := domain.NewSeriesBlock(block.Name, block.Grid, times, data)
	return out
}

// fineValue evaluates a linearly interpolated daily series at bin start d,
// averaging over the bin when step > 1.
func fineValue(xs, ys []float64, d float64, step int) float64 {
	switch len(xs) {
	case 0:
		return math.NaN()
	case 1:
		return ys[0]
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return math.NaN()
	}
	if step == 1 {
		return predictClamped(&pl, xs, d)
	}
	var sum float64
	for k := 0; k < step; k++ {
		sum += predictClamped(&pl, xs, d+float64(k))
	}
	return sum / float64(step)
}

// interpolateComposite aligns a fixed multi-day composite source: cubic
// (Akima) interpolation when at least four native samples exist, linear for
// two or three, broadcast for one. Steps falling across a native gap longer
// than compositeMaxGapDays stay NaN.
func interpolateComposite(block *domain.RasterBlock, times []time.Time) *domain.RasterBlock {
	h, w := block.Grid.Height, block.Grid.Width
	plane := h * w
	data := sparse.ZerosDense(len(times), h, w)

	nativeDays := toDays(block.Times)
	forEachPixel(h, w, func(row, col int) {
		xs, ys := validSamples(block, nativeDays, row, col)
		pred := compositePredictor(xs, ys)
		for i, t := range times {
			d := days(t)
			v := math.NaN()
			if pred != nil && !acrossGap(xs, d) {
				v = predictClamped(pred, xs, d)
			}
			data.Elements[i*plane+row*w+col] = v
		}
	})

	out, _ := domain.NewSeriesBlock(block.Name, block.Grid, times, data)
	return out
}

// compositePredictor picks the interpolation model by sample count.
// Returns nil when no valid samples exist.
func compositePredictor(xs, ys []float64) interp.Predictor {
	switch {
	case len(xs) >= 4:
		var sp interp.AkimaSpline
		if err := sp.Fit(xs, ys); err != nil {
			return nil
		}
		return &sp
	case len(xs) >= 2:
		var pl interp.PiecewiseLinear
		if err := pl.Fit(xs, ys); err != nil {
			return nil
		}
		return &pl
	case len(xs) == 1:
		return constantPredictor(ys[0])
	default:
		return nil
	}
}

// acrossGap reports whether evaluating at day d would interpolate across a
// native gap longer than the composite quality threshold, or extrapolate
// further than the threshold past the sampled span.
func acrossGap(xs []float64, d float64) bool {
	if len(xs) == 0 {
		return true
	}
	if d < xs[0] {
		return xs[0]-d > compositeMaxGapDays
	}
	if d > xs[len(xs)-1] {
		return d-xs[len(xs)-1] > compositeMaxGapDays
	}
	for i := 1; i < len(xs); i++ {
		if d <= xs[i] {
			// A step landing exactly on a native sample is never a
			// fabrication, whatever the surrounding gap looks like.
			if d == xs[i] || d == xs[i-1] {
				return false
			}
			return xs[i]-xs[i-1] > compositeMaxGapDays
		}
	}
	return false
}

// constantPredictor satisfies interp.Predictor for single-sample series.
type constantPredictor float64

func (c constantPredictor) Predict(float64) float64 { return float64(c) }

// predictClamped evaluates p at x, holding the endpoint values outside the
// fitted span. gonum predictors are only defined inside [xs[0], xs[n-1]].
func predictClamped(p interp.Predictor, xs []float64, x float64) float64 {
	if len(xs) > 0 {
		if x < xs[0] {
			x = xs[0]
		}
		if x > xs[len(xs)-1] {
			x = xs[len(xs)-1]
		}
	}
	return p.Predict(x)
}

// validSamples extracts the (day, value) pairs with finite values for one
// pixel of a series block.
func validSamples(block *domain.RasterBlock, nativeDays []float64, row, col int) (xs, ys []float64) {
	for i := range block.Times {
		v := block.Data.Get(i, row, col)
		if math.IsNaN(v) {
			continue
		}
		xs = append(xs, nativeDays[i])
		ys = append(ys, v)
	}
	return xs, ys
}

func forEachPixel(h, w int, fn func(row, col int)) {
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			fn(row, col)
		}
	}
}

// days converts a time to fractional days since the Unix epoch.
func days(t time.Time) float64 {
	return float64(t.Unix()) / 86400.0
}

func toDays(ts []time.Time) []float64 {
	out := make([]float64, len(ts))
	for i, t := range ts {
		out[i] = days(t)
	}
	return out
}

func dayStart(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
