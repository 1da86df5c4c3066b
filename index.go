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
	"github.com/gonum/floats"
)

// UndevelopedCell is one entry in a subregion's undeveloped-cell list.
type UndevelopedCell struct {
	// ID is the compact cell identifier (see cellIndex).
	ID int

	// Probability is the development potential cached at the most
	// recent index rebuild.
	Probability float64

	// Cumulative is the normalized cumulative probability by list
	// order; the last entry of each non-empty list is 1.
	Cumulative float64

	tried bool
}

// Undeveloped indexes the currently undeveloped cells of every
// subregion. It is rebuilt from the developed layer once per time step;
// the cached probabilities and cumulative distribution go stale as
// cells convert within a step, which the step driver accounts for.
type Undeveloped struct {
	regions [][]UndevelopedCell
}

func newUndeveloped(numRegions int) *Undeveloped {
	return &Undeveloped{regions: make([][]UndevelopedCell, numRegions)}
}

// Count returns the number of undeveloped cells indexed for a
// subregion. Zero is a valid terminal state: no further growth is
// possible there.
func (u *Undeveloped) Count(region int) int {
	return len(u.regions[region])
}

func (u *Undeveloped) cell(region, i int) *UndevelopedCell {
	return &u.regions[region][i]
}

// RebuildUndeveloped scans the developed layer in row-major order and
// rebuilds the per-subregion undeveloped-cell lists, computing each
// cell's development potential and caching it both in the list and in
// the probability layer. Cells with a no-data developed or subregion
// value are skipped. Afterwards each subregion's cumulative
// distribution is formed by a prefix sum normalized so the last entry
// equals 1.
func (f *Futures) RebuildUndeveloped() error {
	if f.undev == nil {
		f.undev = newUndeveloped(f.Regions.Len())
	}
	u := f.undev
	for r := range u.regions {
		u.regions[r] = u.regions[r][:0]
	}

	predictors := make([]float64, f.Predictors.PerCell())
	for row := 0; row < f.Rows; row++ {
		for col := 0; col < f.Cols; col++ {
			developed, err := f.Developed.Get(row, col)
			if err != nil {
				return err
			}
			if IsNull(developed) || developed != -1 {
				continue
			}
			region, err := f.Subregions.Get(row, col)
			if err != nil {
				return err
			}
			if IsNull(region) {
				continue
			}
			devPressure, err := f.DevPressure.Get(row, col)
			if err != nil {
				return err
			}
			if err := f.Predictors.GetVec(row, col, predictors); err != nil {
				return err
			}
			weight := 0.0
			if f.Weight != nil {
				w, err := f.Weight.Get(row, col)
				if err != nil {
					return err
				}
				if !IsNull(w) {
					weight = w
				}
			}
			prob, err := f.Potential.Probability(int(region), devPressure, predictors, weight)
			if err != nil {
				return err
			}
			if err := f.Probability.Put(row, col, prob); err != nil {
				return err
			}
			r := int(region)
			u.regions[r] = append(u.regions[r], UndevelopedCell{
				ID:          cellIndex(row, col, f.Cols),
				Probability: prob,
			})
		}
	}

	for r := range u.regions {
		cells := u.regions[r]
		n := len(cells)
		if n == 0 {
			continue
		}
		probs := make([]float64, n)
		for i := range cells {
			probs[i] = cells[i].Probability
		}
		cum := make([]float64, n)
		floats.CumSum(cum, probs)
		if total := cum[n-1]; total > 0 {
			floats.Scale(1/total, cum)
		} else {
			// All potentials are zero; fall back to a uniform
			// distribution so weighted selection stays defined.
			for i := range cum {
				cum[i] = float64(i+1) / float64(n)
			}
		}
		for i := range cells {
			cells[i].Cumulative = cum[i]
		}
	}
	return nil
}
