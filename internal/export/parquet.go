// Package export writes harmonized results to analyst-facing formats.
package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"

	writerfile "github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/geohealth/envfuse/internal/domain"
)

// ParquetWriter flattens a harmonized result into one row per grid cell.
// Every row carries the cell-center coordinates plus one column per feature;
// NaN values become nulls, never zeros.
type ParquetWriter struct {
	logger *slog.Logger
}

// NewParquetWriter creates a ParquetWriter.
func NewParquetWriter(logger *slog.Logger) *ParquetWriter {
	return &ParquetWriter{logger: logger}
}

// WriteFile writes the result to path as a snappy-compressed parquet file.
func (w *ParquetWriter) WriteFile(path string, result *domain.HarmonizedResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parquet file: %w", err)
	}
	defer f.Close()

	names := append([]string(nil), result.FeatureNames...)
	sort.Strings(names)

	pfw := writerfile.NewWriterFile(f)
	pw, err := writer.NewJSONWriter(schemaFor(names), pfw, 4)
	if err != nil {
		return fmt.Errorf("parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	grid := result.Grid
	rows := 0
	for row := 0; row < grid.Height; row++ {
		for col := 0; col < grid.Width; col++ {
			rec := map[string]any{
				"latitude":  grid.Y(row),
				"longitude": grid.X(col),
			}
			for _, name := range names {
				arr := result.Features[name]
				if v := arr.Get(row, col); !math.IsNaN(v) {
					rec[name] = v
				}
			}
			line, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode row: %w", err)
			}
			if err := pw.Write(string(line)); err != nil {
				_ = pw.WriteStop()
				return fmt.Errorf("write row: %w", err)
			}
			rows++
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finish parquet file: %w", err)
	}

	w.logger.Info("parquet export complete", "path", path, "rows", rows, "columns", len(names)+2)
	return nil
}

// schemaFor builds the JSON schema string parquet-go expects: required
// coordinate columns plus one optional DOUBLE per feature.
func schemaFor(names []string) string {
	fields := []map[string]string{
		{"Tag": "name=latitude, type=DOUBLE, repetitiontype=REQUIRED"},
		{"Tag": "name=longitude, type=DOUBLE, repetitiontype=REQUIRED"},
	}
	for _, name := range names {
		fields = append(fields, map[string]string{
			"Tag": fmt.Sprintf("name=%s, type=DOUBLE, repetitiontype=OPTIONAL", name),
		})
	}
	out := map[string]any{
		"Tag":    "name=parquet_go_root, repetitiontype=REQUIRED",
		"Fields": fields,
	}
	b, _ := json.Marshal(out)
	return string(b)
}
