package source

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/ctessum/sparse"

	"github.com/geohealth/envfuse/internal/domain"
)

// unixSecs1900 converts the "hours since 1900-01-01" time convention of
// reanalysis files to the Unix epoch.
const unixSecs1900 = -2208988800

// NetCDFConfig maps a gridded file onto one source.
type NetCDFConfig struct {
	Kind domain.SourceKind
	Path string
	// Vars maps canonical block names to the file's variable names,
	// e.g. {"temperature": "t2m", "relative_humidity": "rh"}.
	Vars map[string]string
	// Scale and Offset are applied per variable as value*scale+offset
	// (reanalysis archives commonly pack values; t2m also needs the
	// Kelvin-to-Celsius shift).
	Scale  map[string]float64
	Offset map[string]float64
}

// NetCDFClient reads a source's blocks from a local NetCDF file. It serves
// as the file-reference form of the collaborator boundary; spatial and
// temporal subsetting beyond the time range is left to the harmonizers.
type NetCDFClient struct {
	cfg NetCDFConfig
}

// NewNetCDFClient creates a file-backed source client.
func NewNetCDFClient(cfg NetCDFConfig) *NetCDFClient {
	return &NetCDFClient{cfg: cfg}
}

func (c *NetCDFClient) Kind() domain.SourceKind { return c.cfg.Kind }

func (c *NetCDFClient) Download(ctx context.Context, start, end time.Time, bounds domain.Bounds) (*domain.SourceDataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nc, err := netcdf.Open(c.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrSourceUnavailable, c.cfg.Path, err)
	}
	defer nc.Close()

	lats, err := axisValues(nc, "latitude")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	lons, err := axisValues(nc, "longitude")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	grid, northFirst, err := gridFromAxes(lats, lons)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}

	times, timeIdx, err := timeAxis(nc, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}

	ds := &domain.SourceDataset{
		Kind: c.cfg.Kind,
		Meta: domain.SourceMeta{NativeResolutionKm: grid.CellDeg * 111.0},
	}
	for name, varName := range c.cfg.Vars {
		block, err := c.readVar(nc, varName, name, grid, northFirst, times, timeIdx)
		if err != nil {
			return nil, fmt.Errorf("%w: variable %s: %v", domain.ErrSourceUnavailable, varName, err)
		}
		ds.Blocks = append(ds.Blocks, block)
	}
	if len(ds.Blocks) == 0 {
		return nil, fmt.Errorf("%w: no variables configured for %s", domain.ErrSourceUnavailable, c.cfg.Kind)
	}
	return ds, nil
}

// readVar reads the selected time steps of one variable into a series block,
// flipping rows when the file stores latitude south-first.
func (c *NetCDFClient) readVar(nc api.Group, varName, blockName string, grid domain.GridSpec, northFirst bool, times []time.Time, timeIdx []int) (*domain.RasterBlock, error) {
	vg, err := nc.GetVarGetter(varName)
	if err != nil {
		return nil, err
	}

	scale, offset := 1.0, 0.0
	if v, ok := c.cfg.Scale[blockName]; ok {
		scale = v
	}
	if v, ok := c.cfg.Offset[blockName]; ok {
		offset = v
	}

	data := sparse.ZerosDense(len(times), grid.Height, grid.Width)
	for out, in := range timeIdx {
		slice, err := vg.GetSlice(int64(in), int64(in)+1)
		if err != nil {
			return nil, err
		}
		plane, err := planeFloat64(slice)
		if err != nil {
			return nil, err
		}
		if len(plane) != grid.Height || len(plane[0]) != grid.Width {
			return nil, fmt.Errorf("grid mismatch: file %dx%d, axes %dx%d",
				len(plane), len(plane[0]), grid.Height, grid.Width)
		}
		for row := 0; row < grid.Height; row++ {
			srcRow := row
			if !northFirst {
				srcRow = grid.Height - 1 - row
			}
			for col := 0; col < grid.Width; col++ {
				v := plane[srcRow][col]
				if !math.IsNaN(v) {
					v = v*scale + offset
				}
				data.Set(v, out, row, col)
			}
		}
	}
	return domain.NewSeriesBlock(blockName, grid, times, data)
}

// planeFloat64 converts one time step of variable data to float64 rows.
func planeFloat64(slice any) ([][]float64, error) {
	switch v := slice.(type) {
	case [][][]float64:
		return v[0], nil
	case [][][]float32:
		out := make([][]float64, len(v[0]))
		for i, row := range v[0] {
			out[i] = make([]float64, len(row))
			for j, x := range row {
				out[i][j] = float64(x)
			}
		}
		return out, nil
	case [][][]int16:
		out := make([][]float64, len(v[0]))
		for i, row := range v[0] {
			out[i] = make([]float64, len(row))
			for j, x := range row {
				out[i][j] = float64(x)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported variable element type %T", slice)
	}
}

func axisValues(nc api.Group, name string) ([]float64, error) {
	vg, err := nc.GetVarGetter(name)
	if err != nil {
		return nil, err
	}
	vals, err := vg.Values()
	if err != nil {
		return nil, err
	}
	switch v := vals.(type) {
	case []float64:
		return v, nil
	case []float32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("axis %s: unsupported type %T", name, vals)
	}
}

// gridFromAxes derives the native grid from the coordinate axes, which list
// cell centers at uniform spacing. Latitude may run north-first (reanalysis
// convention) or south-first.
func gridFromAxes(lats, lons []float64) (domain.GridSpec, bool, error) {
	if len(lats) < 2 || len(lons) < 2 {
		return domain.GridSpec{}, false, fmt.Errorf("axes too short (%d lat, %d lon)", len(lats), len(lons))
	}
	cell := math.Abs(lats[1] - lats[0])
	northFirst := lats[0] > lats[len(lats)-1]

	north := math.Max(lats[0], lats[len(lats)-1]) + cell/2
	south := math.Min(lats[0], lats[len(lats)-1]) - cell/2
	west := lons[0] - cell/2
	east := lons[len(lons)-1] + cell/2

	return domain.GridSpec{
		Bounds:  domain.Bounds{West: west, South: south, East: east, North: north},
		Width:   len(lons),
		Height:  len(lats),
		CellDeg: cell,
	}, northFirst, nil
}

// timeAxis reads the "hours since 1900" time variable and selects the
// indices falling inside the requested range.
func timeAxis(nc api.Group, start, end time.Time) ([]time.Time, []int, error) {
	vg, err := nc.GetVarGetter("time")
	if err != nil {
		return nil, nil, err
	}
	vals, err := vg.Values()
	if err != nil {
		return nil, nil, err
	}
	hours, ok := vals.([]int32)
	if !ok {
		return nil, nil, fmt.Errorf("time axis: unsupported type %T", vals)
	}

	var times []time.Time
	var idx []int
	for i, h := range hours {
		t := time.Unix(int64(h)*3600+unixSecs1900, 0).UTC()
		if t.Before(start) || t.After(end) {
			continue
		}
		times = append(times, t)
		idx = append(idx, i)
	}
	if len(times) == 0 {
		return nil, nil, fmt.Errorf("no time steps within %s..%s",
			start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	return times, idx, nil
}
