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
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ctessum/cdf"
	"github.com/google/uuid"
)

// OutputOptions controls how the developed layer is encoded when it is
// written out.
type OutputOptions struct {
	// UndevelopedAsNull writes undeveloped cells as no-data instead
	// of −1.
	UndevelopedAsNull bool

	// DevelopedAsOne writes every developed cell as 1 instead of the
	// index of the step it was converted in.
	DevelopedAsOne bool

	// IncludeLayers also writes the final development pressure and
	// cached probability layers.
	IncludeLayers bool
}

// SaveSnapshots returns a step function that writes the developed layer
// after every completed time step. Snapshot files are named
// basename_SS.nc where SS is the step index padded to the width of the
// final step.
func SaveSnapshots(basename string, opts OutputOptions) SimulationManipulator {
	return func(f *Futures) error {
		digits := int(math.Log10(float64(f.Steps))) + 1
		return f.SaveDeveloped(fmt.Sprintf("%s_%0*d.nc", basename, digits, f.Step), opts)
	}
}

// SaveFinal returns a cleanup function that writes the developed layer
// once, after the last time step.
func SaveFinal(path string, opts OutputOptions) SimulationManipulator {
	return func(f *Futures) error {
		return f.SaveDeveloped(path, opts)
	}
}

// SaveDeveloped writes the developed layer to a NetCDF file. The
// variable carries a color table as an attribute (baseline development
// grey, new development on an orange-to-yellow ramp by step, remaining
// undeveloped land light green), and the file carries provenance
// attributes identifying the run.
func (f *Futures) SaveDeveloped(path string, opts OutputOptions) error {
	if err := f.Developed.Flush(); err != nil {
		return err
	}

	h := cdf.NewHeader([]string{"y", "x"}, []int{f.Rows, f.Cols})
	h.AddVariable("developed", []string{"y", "x"}, []float64{0})
	h.AddAttribute("developed", "long_name", "land development step")
	h.AddAttribute("developed", "color_rules", colorRules(f.Steps))
	if opts.IncludeLayers {
		h.AddVariable("devpressure", []string{"y", "x"}, []float64{0})
		h.AddAttribute("devpressure", "long_name", "development pressure")
		h.AddVariable("probability", []string{"y", "x"}, []float64{0})
		h.AddAttribute("probability", "long_name", "development probability")
	}
	h.AddAttribute("", "source", "FUTURES "+Version)
	h.AddAttribute("", "run_id", uuid.New().String())
	if f.Seed != 0 {
		h.AddAttribute("", "random_seed", strconv.FormatInt(f.Seed, 10))
	}
	h.AddAttribute("", "history", fmt.Sprintf("%s: %s",
		time.Now().Format(time.RFC3339), strings.Join(os.Args, " ")))
	h.Define()
	if errs := h.Check(); len(errs) > 0 {
		return fmt.Errorf("futures: writing %s: %v", path, errs)
	}

	ff, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("futures: creating output file: %v", err)
	}
	defer ff.Close()
	cf, err := cdf.Create(ff, h)
	if err != nil {
		return fmt.Errorf("futures: writing %s: %v", path, err)
	}

	out := make([]float64, f.Cols)
	w := cf.Writer("developed", nil, nil)
	for row := 0; row < f.Rows; row++ {
		for col := 0; col < f.Cols; col++ {
			v, err := f.Developed.Get(row, col)
			if err != nil {
				return err
			}
			switch {
			case IsNull(v):
				// no-data stays no-data
			case v == -1 && opts.UndevelopedAsNull:
				v = Null()
			case v > 0 && opts.DevelopedAsOne:
				v = 1
			}
			out[col] = v
		}
		// io.EOF just reports that the variable is full.
		if _, err := w.Write(out); err != nil && err != io.EOF {
			return fmt.Errorf("futures: writing %s row %d: %v", path, row, err)
		}
	}
	if opts.IncludeLayers {
		for _, s := range []*Segment{f.DevPressure, f.Probability} {
			if err := f.writeLayer(cf, s, path); err != nil {
				return err
			}
		}
	}
	f.Log.WithField("file", path).Info("wrote developed layer")
	return nil
}

// writeLayer copies one raster layer into an already defined variable
// of the same name.
func (f *Futures) writeLayer(cf *cdf.File, s *Segment, path string) error {
	if err := s.Flush(); err != nil {
		return err
	}
	out := make([]float64, f.Cols)
	w := cf.Writer(s.Name(), nil, nil)
	for row := 0; row < f.Rows; row++ {
		for col := 0; col < f.Cols; col++ {
			v, err := s.Get(row, col)
			if err != nil {
				return err
			}
			out[col] = v
		}
		if _, err := w.Write(out); err != nil && err != io.EOF {
			return fmt.Errorf("futures: writing %s row %d of %s: %v", s.Name(), row, path, err)
		}
	}
	return nil
}

// colorRules builds a color table for the developed layer in the
// "value R:G:B" rule format: baseline development grey, cells converted
// during the simulation on a ramp from orange (first step) to yellow
// (last step), and undeveloped land light green.
func colorRules(steps int) string {
	var b strings.Builder
	fmt.Fprintln(&b, "0 200:200:200")
	for step := 1; step <= steps; step++ {
		t := 0.0
		if steps > 1 {
			t = float64(step-1) / float64(steps-1)
		}
		g := 100 + int(t*155)
		bl := int(50 * (1 - t))
		fmt.Fprintf(&b, "%d 255:%d:%d\n", step, g, bl)
	}
	fmt.Fprint(&b, "-1 180:255:160")
	return b.String()
}
