/*
Copyright © 2026 the FUTURES authors.
This file is part of FUTURES.

FUTURES is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

FUTURES is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with FUTURES.  If not, see <http://www.gnu.org/licenses/>.
*/

package futures

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ctessum/cdf"
)

// RasterInputs names the NetCDF file and variables holding the input
// raster layers. All variables must share the same [rows, cols]
// dimensions. The developed variable carries 0 for undeveloped and 1
// for developed cells; NaN cells are no-data. Weight is optional.
type RasterInputs struct {
	Path        string
	Developed   string
	Subregions  string
	DevPressure string
	Predictors  []string
	Weight      string
}

// LoadRasters returns an initialization function that reads the input
// rasters into freshly created layers, building the subregion code map
// as it goes. Following the reference model, the developed values are
// shifted from the external 0/1 encoding to the internal −1/0 encoding,
// external subregion codes are replaced with dense indices, weights are
// clamped to [−1, 1] with a warning, and a no-data value in any input
// propagates into the developed layer as the simulation mask.
func LoadRasters(in RasterInputs, cfg SegmentConfig) SimulationManipulator {
	return func(f *Futures) error {
		ff, err := os.Open(in.Path)
		if err != nil {
			return fmt.Errorf("futures: opening raster file: %v", err)
		}
		defer ff.Close()
		cf, err := cdf.Open(ff)
		if err != nil {
			return fmt.Errorf("futures: reading raster file %s: %v", in.Path, err)
		}

		dims := cf.Header.Lengths(in.Developed)
		if len(dims) != 2 {
			return fmt.Errorf("futures: raster variable %s has %d dimensions, want 2",
				in.Developed, len(dims))
		}
		rows, cols := dims[0], dims[1]
		names := append([]string{in.Developed, in.Subregions, in.DevPressure}, in.Predictors...)
		if in.Weight != "" {
			names = append(names, in.Weight)
		}
		for _, name := range names {
			d := cf.Header.Lengths(name)
			if len(d) != 2 || d[0] != rows || d[1] != cols {
				return fmt.Errorf("futures: raster variable %s has dimensions %v, want [%d %d]",
					name, d, rows, cols)
			}
		}

		f.Rows, f.Cols = rows, cols
		f.Layers, err = NewLayerSet(rows, cols, cfg)
		if err != nil {
			return err
		}
		if f.Developed, err = f.Layers.Open("developed", 1); err != nil {
			return err
		}
		if f.Subregions, err = f.Layers.Open("subregions", 1); err != nil {
			return err
		}
		if f.DevPressure, err = f.Layers.Open("devpressure", 1); err != nil {
			return err
		}
		if f.Predictors, err = f.Layers.Open("predictors", len(in.Predictors)); err != nil {
			return err
		}
		if f.Probability, err = f.Layers.Open("probability", 1); err != nil {
			return err
		}
		if in.Weight != "" {
			if f.Weight, err = f.Layers.Open("weight", 1); err != nil {
				return err
			}
		}
		f.Regions = NewRegionMap()

		developed := make([]float64, cols)
		subregions := make([]float64, cols)
		devpressure := make([]float64, cols)
		weight := make([]float64, cols)
		predictors := make([][]float64, len(in.Predictors))
		packed := make([]float64, len(in.Predictors))
		warnedWeights := false

		for row := 0; row < rows; row++ {
			if err := readRasterRow(cf, in.Developed, row, cols, developed); err != nil {
				return err
			}
			if err := readRasterRow(cf, in.Subregions, row, cols, subregions); err != nil {
				return err
			}
			if err := readRasterRow(cf, in.DevPressure, row, cols, devpressure); err != nil {
				return err
			}
			for i, name := range in.Predictors {
				if predictors[i] == nil {
					predictors[i] = make([]float64, cols)
				}
				if err := readRasterRow(cf, name, row, cols, predictors[i]); err != nil {
					return err
				}
			}
			if in.Weight != "" {
				if err := readRasterRow(cf, in.Weight, row, cols, weight); err != nil {
					return err
				}
			}

			for col := 0; col < cols; col++ {
				isNull := false
				dev := developed[col]
				if IsNull(dev) {
					isNull = true
				} else {
					dev-- // external 0/1 becomes internal −1/0
				}
				reg := subregions[col]
				if IsNull(reg) {
					isNull = true
				} else {
					reg = float64(f.Regions.intern(int(reg)))
				}
				if IsNull(devpressure[col]) {
					isNull = true
				}
				for i := range predictors {
					packed[i] = predictors[i][col]
					if IsNull(packed[i]) {
						isNull = true
					}
				}
				w := 0.0
				if in.Weight != "" {
					w = weight[col]
					if IsNull(w) {
						w = 0
						isNull = true
					} else if w > 1 || w < -1 {
						if !warnedWeights {
							f.Log.Warn("probability weights outside [-1, 1], truncating")
							warnedWeights = true
						}
						if w > 1 {
							w = 1
						} else {
							w = -1
						}
					}
				}
				if isNull {
					dev = Null()
				}
				if err := f.Developed.Put(row, col, dev); err != nil {
					return err
				}
				if err := f.Subregions.Put(row, col, reg); err != nil {
					return err
				}
				if err := f.DevPressure.Put(row, col, devpressure[col]); err != nil {
					return err
				}
				if err := f.Predictors.PutVec(row, col, packed); err != nil {
					return err
				}
				if in.Weight != "" {
					if err := f.Weight.Put(row, col, w); err != nil {
						return err
					}
				}
			}
		}

		for _, s := range []*Segment{f.Developed, f.Subregions, f.DevPressure, f.Predictors} {
			if err := s.Flush(); err != nil {
				return err
			}
		}
		if f.Weight != nil {
			if err := f.Weight.Flush(); err != nil {
				return err
			}
		}
		return nil
	}
}

// readRasterRow reads one row of a 2D NetCDF variable into dst.
func readRasterRow(cf *cdf.File, name string, row, cols int, dst []float64) error {
	r := cf.Reader(name, []int{row, 0}, []int{row, cols - 1})
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil && err != io.EOF {
		return fmt.Errorf("futures: reading raster variable %s row %d: %v", name, row, err)
	}
	return bufToFloat64s(buf, dst, name)
}

func bufToFloat64s(buf interface{}, dst []float64, name string) error {
	switch v := buf.(type) {
	case []float64:
		copy(dst, v)
	case []float32:
		for i, x := range v {
			dst[i] = float64(x)
		}
	case []int32:
		for i, x := range v {
			dst[i] = float64(x)
		}
	case []int16:
		for i, x := range v {
			dst[i] = float64(x)
		}
	case []int8:
		for i, x := range v {
			dst[i] = float64(x)
		}
	default:
		return fmt.Errorf("futures: raster variable %s has unsupported type %T", name, buf)
	}
	return nil
}

// ReadDemand parses a demand table. The header row holds a label
// column followed by external subregion codes; every following row
// holds a year followed by the number of cells each subregion must
// convert during that step. Every subregion present in the rasters
// must have a column; columns for unknown codes are ignored.
func ReadDemand(r io.Reader, separator rune, regions *RegionMap) (*Demand, error) {
	records, err := readTable(r, separator)
	if err != nil {
		return nil, fmt.Errorf("futures: demand file: %v", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("futures: demand file contains no data rows")
	}
	header := records[0]
	if len(header) < 2 {
		return nil, fmt.Errorf("futures: demand file header has no subregion columns")
	}

	columns := make([]int, len(header)) // dense region index per column, −1 = ignored
	covered := make([]bool, regions.Len())
	columns[0] = -1
	for i, tok := range header[1:] {
		code, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("futures: demand file header column %d: %v", i+2, err)
		}
		if index, ok := regions.Index(code); ok {
			columns[i+1] = index
			covered[index] = true
		} else {
			columns[i+1] = -1
		}
	}
	for index, ok := range covered {
		if !ok {
			return nil, fmt.Errorf("futures: demand file is missing subregion %d", regions.Code(index))
		}
	}

	d := &Demand{Table: make([][]int, regions.Len())}
	for _, record := range records[1:] {
		if len(record) != len(header) {
			return nil, fmt.Errorf("futures: demand file has %d columns in row %q, header has %d",
				len(record), record[0], len(header))
		}
		year, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("futures: demand file year %q: %v", record[0], err)
		}
		d.Years = append(d.Years, year)
		for i, tok := range record[1:] {
			index := columns[i+1]
			if index < 0 {
				continue
			}
			count, err := strconv.Atoi(tok)
			if err != nil {
				return nil, fmt.Errorf("futures: demand for subregion %s, year %d: %v",
					header[i+1], year, err)
			}
			d.Table[index] = append(d.Table[index], count)
		}
	}
	return d, nil
}

// ReadPotential parses a development-potential coefficient table. The
// header row is: subregion code, intercept, development pressure, then
// one column per predictor named after its raster variable. Rows for
// codes not present in the rasters are ignored; every raster subregion
// must have a row.
func ReadPotential(r io.Reader, separator rune, regions *RegionMap, predictors []string) (*Potential, error) {
	records, err := readTable(r, separator)
	if err != nil {
		return nil, fmt.Errorf("futures: potential file: %v", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("futures: potential file contains no data rows")
	}
	header := records[0]
	if len(header) < 3 {
		return nil, fmt.Errorf("futures: potential file header has %d columns, want at least 3", len(header))
	}
	numPredictors := len(header) - 3

	predictorIndex := make(map[string]int, len(predictors))
	for i, name := range predictors {
		predictorIndex[name] = i
	}
	p := &Potential{
		Intercept:        make([]float64, regions.Len()),
		DevPressure:      make([]float64, regions.Len()),
		Predictors:       make([][]float64, numPredictors),
		PredictorIndices: make([]int, numPredictors),
	}
	for i := 0; i < numPredictors; i++ {
		name := header[3+i]
		index, ok := predictorIndex[name]
		if !ok {
			return nil, fmt.Errorf("futures: predictor %q in potential file was not provided as a raster", name)
		}
		p.PredictorIndices[i] = index
		p.Predictors[i] = make([]float64, regions.Len())
	}

	covered := make([]bool, regions.Len())
	for _, record := range records[1:] {
		if len(record) != len(header) {
			return nil, fmt.Errorf("futures: potential file has %d columns in row %q, header has %d",
				len(record), record[0], len(header))
		}
		code, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("futures: potential file subregion code %q: %v", record[0], err)
		}
		index, ok := regions.Index(code)
		if !ok {
			continue // subregion not present in the rasters
		}
		vals := make([]float64, len(record)-1)
		for i, tok := range record[1:] {
			if vals[i], err = strconv.ParseFloat(tok, 64); err != nil {
				return nil, fmt.Errorf("futures: potential coefficient for subregion %d: %v", code, err)
			}
		}
		p.Intercept[index] = vals[0]
		p.DevPressure[index] = vals[1]
		for i := 0; i < numPredictors; i++ {
			p.Predictors[i][index] = vals[2+i]
		}
		covered[index] = true
	}
	for index, ok := range covered {
		if !ok {
			return nil, fmt.Errorf("futures: potential file is missing subregion %d", regions.Code(index))
		}
	}
	return p, nil
}

// ReadPatchSizes parses a patch-size library. With a single column the
// whole file is one shared size list used for every subregion; with
// multiple columns the header row holds external subregion codes and
// every raster subregion must have a column. Sizes are scaled by the
// discount factor at load, and entries that scale to zero or below are
// dropped.
func ReadPatchSizes(r io.Reader, separator rune, regions *RegionMap, discountFactor float64) (*PatchSizes, error) {
	records, err := readTable(r, separator)
	if err != nil {
		return nil, fmt.Errorf("futures: patch size file: %v", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("futures: patch size file is empty")
	}

	ps := &PatchSizes{}
	if len(records[0]) == 1 {
		ps.SingleColumn = true
		ps.Sizes = make([][]int, 1)
		for _, record := range records {
			if len(record) != 1 {
				return nil, fmt.Errorf("futures: patch size file has inconsistent number of columns")
			}
			if err := ps.add(0, record[0], discountFactor); err != nil {
				return nil, err
			}
		}
		if len(ps.Sizes[0]) == 0 {
			return nil, fmt.Errorf("futures: patch size file contains no usable sizes")
		}
		return ps, nil
	}

	header := records[0]
	if len(header) < regions.Len() {
		return nil, fmt.Errorf("futures: patch size file has %d columns but there are %d subregions",
			len(header), regions.Len())
	}
	columns := make([]int, len(header))
	covered := make([]bool, regions.Len())
	for i, tok := range header {
		code, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("futures: patch size file header column %d: %v", i+1, err)
		}
		if index, ok := regions.Index(code); ok {
			columns[i] = index
			covered[index] = true
		} else {
			columns[i] = -1
		}
	}
	for index, ok := range covered {
		if !ok {
			return nil, fmt.Errorf("futures: subregion %d not found in patch size file header",
				regions.Code(index))
		}
	}

	ps.Sizes = make([][]int, regions.Len())
	for _, record := range records[1:] {
		if len(record) != len(header) {
			return nil, fmt.Errorf("futures: patch size file has inconsistent number of columns")
		}
		for i, tok := range record {
			if columns[i] < 0 || tok == "" {
				continue
			}
			if err := ps.add(columns[i], tok, discountFactor); err != nil {
				return nil, err
			}
		}
	}
	return ps, nil
}

func (ps *PatchSizes) add(region int, token string, discountFactor float64) error {
	size, err := strconv.Atoi(token)
	if err != nil {
		return fmt.Errorf("futures: patch size %q: %v", token, err)
	}
	scaled := int(float64(size) * discountFactor)
	if scaled <= 0 {
		return nil
	}
	if scaled > ps.MaxPatchSize {
		ps.MaxPatchSize = scaled
	}
	ps.Sizes[region] = append(ps.Sizes[region], scaled)
	return nil
}

// readTable reads a delimited text table, trimming blank lines.
func readTable(r io.Reader, separator rune) ([][]string, error) {
	cr := csv.NewReader(r)
	if separator != 0 {
		cr.Comma = separator
	}
	cr.FieldsPerRecord = -1 // row widths are checked by the callers
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	var out [][]string
	for _, record := range records {
		if len(record) == 1 && record[0] == "" {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}
