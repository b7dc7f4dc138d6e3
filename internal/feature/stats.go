package feature

import (
	"math"
	"time"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/stat"

	"github.com/geohealth/envfuse/internal/domain"
)

// seriesStats computes per-pixel mean, min, and max over the time axis,
// ignoring missing samples. A pixel with no valid sample is NaN in all
// three outputs.
func seriesStats(block *domain.RasterBlock) (mean, min, max *sparse.DenseArray) {
	h, w := block.Grid.Height, block.Grid.Width
	mean = sparse.ZerosDense(h, w)
	min = sparse.ZerosDense(h, w)
	max = sparse.ZerosDense(h, w)
	steps := block.Steps()

	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			var sum, lo, hi float64
			lo, hi = math.Inf(1), math.Inf(-1)
			n := 0
			for i := 0; i < steps; i++ {
				v := pixelAt(block, i, row, col)
				if math.IsNaN(v) {
					continue
				}
				sum += v
				lo = math.Min(lo, v)
				hi = math.Max(hi, v)
				n++
			}
			if n == 0 {
				mean.Set(math.NaN(), row, col)
				min.Set(math.NaN(), row, col)
				max.Set(math.NaN(), row, col)
				continue
			}
			mean.Set(sum/float64(n), row, col)
			min.Set(lo, row, col)
			max.Set(hi, row, col)
		}
	}
	return mean, min, max
}

// windowSum accumulates per-pixel values over the trailing window of the
// given number of days, ignoring missing samples. NaN where the window holds
// no valid sample.
func windowSum(block *domain.RasterBlock, times []time.Time, windowDays int) *sparse.DenseArray {
	h, w := block.Grid.Height, block.Grid.Width
	out := sparse.ZerosDense(h, w)
	if len(times) == 0 {
		for i := range out.Elements {
			out.Elements[i] = math.NaN()
		}
		return out
	}

	cutoff := times[len(times)-1].AddDate(0, 0, -windowDays)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			var sum float64
			n := 0
			for i, t := range times {
				if !t.After(cutoff) {
					continue
				}
				v := pixelAt(block, i, row, col)
				if math.IsNaN(v) {
					continue
				}
				sum += v
				n++
			}
			if n == 0 {
				out.Set(math.NaN(), row, col)
				continue
			}
			out.Set(sum, row, col)
		}
	}
	return out
}

// drySpell counts, per pixel, the longest consecutive run of steps whose
// value is below thresholdMM. Missing samples break a run rather than
// extending it.
func drySpell(block *domain.RasterBlock, thresholdMM float64) *sparse.DenseArray {
	h, w := block.Grid.Height, block.Grid.Width
	out := sparse.ZerosDense(h, w)
	steps := block.Steps()

	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			longest, run := 0, 0
			for i := 0; i < steps; i++ {
				v := pixelAt(block, i, row, col)
				if !math.IsNaN(v) && v < thresholdMM {
					run++
					if run > longest {
						longest = run
					}
				} else {
					run = 0
				}
			}
			out.Set(float64(longest), row, col)
		}
	}
	return out
}

// trendSlope fits an ordinary-least-squares line per pixel over the valid
// samples of the trailing window and returns the slope in units per day.
// Pixels with fewer than three valid samples get slope 0.
func trendSlope(block *domain.RasterBlock, times []time.Time, windowDays int) *sparse.DenseArray {
	h, w := block.Grid.Height, block.Grid.Width
	out := sparse.ZerosDense(h, w)
	if len(times) == 0 {
		return out
	}

	cutoff := times[len(times)-1].AddDate(0, 0, -windowDays)
	var idx []int
	var xs []float64
	for i, t := range times {
		if t.After(cutoff) {
			idx = append(idx, i)
			xs = append(xs, t.Sub(cutoff).Hours()/24)
		}
	}

	px := make([]float64, 0, len(idx))
	py := make([]float64, 0, len(idx))
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			px, py = px[:0], py[:0]
			for k, i := range idx {
				v := pixelAt(block, i, row, col)
				if math.IsNaN(v) {
					continue
				}
				px = append(px, xs[k])
				py = append(py, v)
			}
			if len(px) < 3 {
				continue
			}
			_, beta := stat.LinearRegression(px, py, nil, false)
			if math.IsNaN(beta) {
				beta = 0
			}
			out.Set(beta, row, col)
		}
	}
	return out
}

// vegetationStress is 1 - current/historicalMax, computed only where the
// per-pixel historical maximum exceeds the vegetated threshold; bare pixels
// get 0. Clamped to [0, 1].
func vegetationStress(block *domain.RasterBlock, vegetatedThreshold float64) *sparse.DenseArray {
	h, w := block.Grid.Height, block.Grid.Width
	out := sparse.ZerosDense(h, w)
	steps := block.Steps()

	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			histMax := math.NaN()
			for i := 0; i < steps; i++ {
				v := pixelAt(block, i, row, col)
				if math.IsNaN(v) {
					continue
				}
				if math.IsNaN(histMax) || v > histMax {
					histMax = v
				}
			}
			if math.IsNaN(histMax) || histMax <= vegetatedThreshold {
				out.Set(0, row, col)
				continue
			}
			cur := pixelAt(block, steps-1, row, col)
			if math.IsNaN(cur) {
				out.Set(math.NaN(), row, col)
				continue
			}
			out.Set(clamp01(1-cur/histMax), row, col)
		}
	}
	return out
}

// --- elementwise helpers ---

func subtract(a, b *sparse.DenseArray) *sparse.DenseArray {
	if a == nil || b == nil {
		return nil
	}
	return apply2(a, b, func(x, y float64) float64 { return x - y })
}

func apply1(a *sparse.DenseArray, fn func(float64) float64) *sparse.DenseArray {
	out := sparse.ZerosDense(a.Shape...)
	for i, v := range a.Elements {
		out.Elements[i] = fn(v)
	}
	return out
}

func apply2(a, b *sparse.DenseArray, fn func(x, y float64) float64) *sparse.DenseArray {
	out := sparse.ZerosDense(a.Shape...)
	for i := range a.Elements {
		out.Elements[i] = fn(a.Elements[i], b.Elements[i])
	}
	return out
}

func apply3(a, b, c *sparse.DenseArray, fn func(x, y, z float64) float64) *sparse.DenseArray {
	out := sparse.ZerosDense(a.Shape...)
	for i := range a.Elements {
		out.Elements[i] = fn(a.Elements[i], b.Elements[i], c.Elements[i])
	}
	return out
}

func pixelAt(block *domain.RasterBlock, step, row, col int) float64 {
	if !block.IsSeries() {
		return block.Data.Get(row, col)
	}
	return block.Data.Get(step, row, col)
}
