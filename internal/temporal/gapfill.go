package temporal

import (
	"fmt"
	"math"

	"github.com/geohealth/envfuse/internal/domain"
)

// climatologyDOYWindow is the +-day-of-year tolerance when matching
// historical samples for climatology fill. Composite sources rarely carry a
// sample on the exact calendar day, so a window is required to find peers.
const climatologyDOYWindow = 8

// fillGaps applies the source's gap-fill policy to an aligned block. The
// native block supplies the historical sample set for climatology fill.
// A policy that cannot fill (insufficient history) falls back to zero-fill
// and reports a flag instead of failing the request.
func fillGaps(kind domain.SourceKind, method domain.GapFillMethod, aligned, native *domain.RasterBlock) (*domain.RasterBlock, []string) {
	out := aligned.Clone()
	var flags []string

	switch method {
	case domain.GapFillZero:
		fillZero(out)
	case domain.GapFillForward:
		fillForward(out)
	case domain.GapFillClimatology:
		if fellBack := fillClimatology(out, native); fellBack {
			flags = append(flags, fmt.Sprintf(
				"%s: climatology gap fill had insufficient history for %q, fell back to zero", kind, out.Name))
		}
	default:
		fillLinear(out)
	}
	return out, flags
}

// fillZero replaces every missing value with zero.
func fillZero(b *domain.RasterBlock) {
	for i, v := range b.Data.Elements {
		if math.IsNaN(v) {
			b.Data.Elements[i] = 0
		}
	}
}

// fillForward carries the last valid value forward along the time axis;
// leading gaps take the first valid value.
func fillForward(b *domain.RasterBlock) {
	eachPixelSeries(b, func(series []float64) {
		last := math.NaN()
		for i, v := range series {
			if math.IsNaN(v) {
				series[i] = last
			} else {
				last = v
			}
		}
		// Back-fill anything before the first valid sample.
		for i := len(series) - 1; i >= 0; i-- {
			if math.IsNaN(series[i]) {
				series[i] = last
			} else {
				last = series[i]
			}
		}
	})
}

// fillLinear interpolates interior gaps between their valid neighbors;
// leading and trailing gaps take the nearest valid value.
func fillLinear(b *domain.RasterBlock) {
	eachPixelSeries(b, func(series []float64) {
		prev := -1
		for i, v := range series {
			if math.IsNaN(v) {
				continue
			}
			if prev >= 0 && i-prev > 1 {
				span := float64(i - prev)
				for k := prev + 1; k < i; k++ {
					frac := float64(k-prev) / span
					series[k] = series[prev] + frac*(v-series[prev])
				}
			}
			if prev < 0 {
				for k := 0; k < i; k++ {
					series[k] = v
				}
			}
			prev = i
		}
		if prev >= 0 {
			for k := prev + 1; k < len(series); k++ {
				series[k] = series[prev]
			}
		}
	})
}

// fillClimatology fills gaps from the mean of the native samples sharing the
// missing step's day of year (within climatologyDOYWindow). Pixels without
// usable history are zero-filled; the return value reports whether any
// fallback occurred so the caller can flag it.
func fillClimatology(b *domain.RasterBlock, native *domain.RasterBlock) bool {
	h, w := b.Grid.Height, b.Grid.Width
	fellBack := false

	nativeDOY := make([]int, len(native.Times))
	for i, t := range native.Times {
		nativeDOY[i] = t.YearDay()
	}

	for i, t := range b.Times {
		doy := t.YearDay()
		for row := 0; row < h; row++ {
			for col := 0; col < w; col++ {
				idx := (i*h+row)*w + col
				if !math.IsNaN(b.Data.Elements[idx]) {
					continue
				}
				mean, ok := climatologyMean(native, nativeDOY, doy, row, col)
				if !ok {
					mean = 0
					fellBack = true
				}
				b.Data.Elements[idx] = mean
			}
		}
	}
	return fellBack
}

func climatologyMean(native *domain.RasterBlock, nativeDOY []int, doy, row, col int) (float64, bool) {
	var sum float64
	n := 0
	for i := range native.Times {
		if doyDistance(nativeDOY[i], doy) > climatologyDOYWindow {
			continue
		}
		v := native.Data.Get(i, row, col)
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// doyDistance is the circular distance between two days of year.
func doyDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if wrap := 365 - d; wrap < d {
		d = wrap
	}
	return d
}

// eachPixelSeries runs fn over every pixel's time series in place.
func eachPixelSeries(b *domain.RasterBlock, fn func(series []float64)) {
	h, w := b.Grid.Height, b.Grid.Width
	steps := b.Steps()
	series := make([]float64, steps)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			for i := 0; i < steps; i++ {
				series[i] = b.Data.Elements[(i*h+row)*w+col]
			}
			fn(series)
			for i := 0; i < steps; i++ {
				b.Data.Elements[(i*h+row)*w+col] = series[i]
			}
		}
	}
}
