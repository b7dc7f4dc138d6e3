// Command harmonize runs a single harmonization for one region and prints a
// summary. Optionally it exports the feature arrays to a parquet file.
//
// Usage:
//
//	go run ./cmd/harmonize \
//	  -bounds 32.0,-2.0,35.0,1.0 \
//	  -date 2026-08-01 \
//	  -lookback 90 \
//	  -resolution 1km \
//	  -out features.parquet
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ctessum/sparse"
	"github.com/jonboulle/clockwork"

	"github.com/geohealth/envfuse/internal/cache"
	"github.com/geohealth/envfuse/internal/domain"
	"github.com/geohealth/envfuse/internal/export"
	"github.com/geohealth/envfuse/internal/feature"
	"github.com/geohealth/envfuse/internal/observability"
	"github.com/geohealth/envfuse/internal/pipeline"
	"github.com/geohealth/envfuse/internal/source"
	"github.com/geohealth/envfuse/internal/temporal"
)

func main() {
	boundsArg := flag.String("bounds", "", "region as west,south,east,north (decimal degrees)")
	dateArg := flag.String("date", "", "target date YYYY-MM-DD (default: today)")
	lookback := flag.Int("lookback", 90, "window length in days")
	resolution := flag.String("resolution", "1km", "target grid resolution: 1km, 5km, or 10km")
	frequency := flag.String("frequency", "daily", "unified index frequency: daily, weekly, or monthly")
	cacheDir := flag.String("cache-dir", "data/cache", "cache directory")
	out := flag.String("out", "", "optional parquet output path")
	seed := flag.Int64("seed", 42, "synthetic source seed")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	bounds, err := parseBounds(*boundsArg)
	if err != nil {
		fatalf("invalid -bounds: %v", err)
	}

	targetDate := time.Now().UTC()
	if *dateArg != "" {
		targetDate, err = time.Parse("2006-01-02", *dateArg)
		if err != nil {
			fatalf("invalid -date: %v", err)
		}
	}

	clock := clockwork.NewRealClock()
	store, err := cache.NewFileStore(*cacheDir, clock, logger)
	if err != nil {
		fatalf("open cache: %v", err)
	}

	harmonizer := pipeline.New(
		source.NewSyntheticSet(*seed),
		store,
		feature.DefaultParams(),
		clock,
		logger,
		observability.NewMetricsForTesting(),
	)

	result, err := harmonizer.HarmonizedFeatures(context.Background(), pipeline.Request{
		Bounds:       bounds,
		TargetDate:   targetDate,
		LookbackDays: *lookback,
		Resolution:   domain.Resolution(*resolution),
		Frequency:    temporal.Frequency(*frequency),
	})
	if err != nil {
		fatalf("harmonization failed: %v", err)
	}

	printSummary(result)

	if *out != "" {
		w := export.NewParquetWriter(logger)
		if err := w.WriteFile(*out, result); err != nil {
			fatalf("parquet export failed: %v", err)
		}
		fmt.Printf("\nwrote %s\n", *out)
	}
}

func printSummary(result *domain.HarmonizedResult) {
	fmt.Printf("region      %s\n", result.Bounds.String())
	fmt.Printf("window      %s .. %s\n",
		result.TimeRange.Start.Format("2006-01-02"), result.TimeRange.End.Format("2006-01-02"))
	fmt.Printf("grid        %dx%d @ %s\n", result.Grid.Height, result.Grid.Width, result.Resolution)
	fmt.Printf("quality     %.3f (%s)\n", result.Quality.Overall, result.Quality.Category)
	fmt.Printf("complete    %.1f%%\n", result.Quality.Completeness*100)
	if len(result.MissingSources) > 0 {
		kinds := make([]string, len(result.MissingSources))
		for i, k := range result.MissingSources {
			kinds[i] = string(k)
		}
		fmt.Printf("missing     %s\n", strings.Join(kinds, ", "))
	}
	for _, fl := range result.Quality.Flags {
		fmt.Printf("flag        %s\n", fl)
	}

	names := append([]string(nil), result.FeatureNames...)
	sort.Strings(names)
	fmt.Printf("\n%-36s %10s %10s %10s\n", "feature", "min", "mean", "max")
	for _, name := range names {
		lo, mean, hi := summarize(result.Features[name])
		fmt.Printf("%-36s %10.3f %10.3f %10.3f\n", name, lo, mean, hi)
	}
}

// summarize reduces one feature array to min/mean/max over valid pixels.
func summarize(arr *sparse.DenseArray) (lo, mean, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	var sum float64
	var n int
	for _, v := range arr.Elements {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN(), math.NaN(), math.NaN()
	}
	return lo, sum / float64(n), hi
}

func parseBounds(s string) (domain.Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return domain.Bounds{}, fmt.Errorf("want west,south,east,north, got %q", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return domain.Bounds{}, err
		}
		vals[i] = v
	}
	b := domain.Bounds{West: vals[0], South: vals[1], East: vals[2], North: vals[3]}
	return b, b.Validate()
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
