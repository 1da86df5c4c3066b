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

	"github.com/GaryBoone/GoStats/stats"
	"github.com/sirupsen/logrus"
)

// Demand holds the number of cells each subregion must convert in each
// time step. It is built once from external input and immutable during
// the simulation.
type Demand struct {
	// Table holds one row per subregion (dense index) with one
	// conversion count per step.
	Table [][]int

	// Years labels each step with the year it represents.
	Years []int
}

// Get returns the number of cells to convert for a subregion in a step
// (both 0-based).
func (d *Demand) Get(region, step int) int {
	return d.Table[region][step]
}

func (d *Demand) check(numRegions, steps int) error {
	if len(d.Table) != numRegions {
		return fmt.Errorf("futures: demand table covers %d subregions, raster has %d",
			len(d.Table), numRegions)
	}
	for r, row := range d.Table {
		if len(row) < steps {
			return fmt.Errorf("futures: demand table has %d steps for subregion %d, simulation needs %d",
				len(row), r, steps)
		}
	}
	return nil
}

// patchStatistics accumulates per-run patch-size statistics.
type patchStatistics struct {
	sizes stats.Stats
}

func (p *patchStatistics) update(size int) {
	p.sizes.Update(float64(size))
}

// Run simulates all time steps in order. For each step the
// undeveloped-cell index is rebuilt, then every subregion's demand is
// satisfied sequentially; steps for a subregion always run in
// increasing step order because patch growth and pressure updates are
// order sensitive. Cells converted during step s get value s in the
// developed layer (baseline development is 0). After the last step the
// mutated layers are flushed.
func (f *Futures) Run() error {
	for step := 1; step <= f.Steps; step++ {
		f.Step = step
		if err := f.RebuildUndeveloped(); err != nil {
			return err
		}
		for region := 0; region < f.Regions.Len(); region++ {
			if err := f.computeStep(step, region); err != nil {
				return err
			}
		}
		for _, fn := range f.EachStepFuncs {
			if err := fn(f); err != nil {
				return err
			}
		}
		f.Log.WithField("step", step).Info("step completed")
	}
	if f.patchStats.sizes.Count() > 0 {
		f.Log.WithFields(logrus.Fields{
			"patches":  f.patchStats.sizes.Count(),
			"meanSize": f.patchStats.sizes.Mean(),
			"sdSize":   f.patchStats.sizes.SampleStandardDeviation(),
			"minSize":  f.patchStats.sizes.Min(),
			"maxSize":  f.patchStats.sizes.Max(),
		}).Info("patch statistics")
	}
	for _, s := range []*Segment{f.Developed, f.DevPressure, f.Probability} {
		if err := s.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// computeStep satisfies one subregion's conversion demand for one time
// step. The requested amount is first reconciled against the
// subregion's carried overflow; if it still exceeds the undeveloped
// supply it is clamped with a warning and every subsequent seed is
// accepted unconditionally, which guarantees termination. Seeds are
// drawn until enough cells have converted; seeds already tried this
// rebuild cycle are skipped until the number of consecutive
// unsuccessful draws exceeds maxSeedIter times the requested amount,
// after which tried cells may be drawn again. A seed that was
// developed earlier in the same step by overlapping patch growth is
// skipped without an index refresh; if such skips run uninterrupted
// for maxSeedIter times the requested amount, the indexed supply has
// been consumed behind the index's back and the step ends early with
// a warning, so the loop terminates even when growth from another
// subregion has developed every cell this subregion's stale index
// still lists. Accepted seeds grow a patch of
// sampled size, and development pressure is updated around every
// converted cell. The subregion's overflow is updated from the
// difference between converted and requested amounts.
func (f *Futures) computeStep(step, region int) error {
	log := f.Log.WithFields(logrus.Fields{
		"step":      step,
		"subregion": f.Regions.Code(region),
	})

	toConvert := f.Demand.Get(region, step-1)
	extra := f.overflow[region]
	if extra > 0 {
		if toConvert-extra > 0 {
			toConvert -= extra
			extra = 0
		} else {
			extra -= toConvert
			toConvert = 0
		}
	}

	forceConvertAll := false
	if available := f.undev.Count(region); toConvert > available {
		log.Warnf("not enough undeveloped cells (requested %d, available %d); converting all available",
			toConvert, available)
		toConvert = available
		forceConvertAll = true
	}

	allowTried := false
	unsuccessful := 0
	stale := 0
	done := 0
	for done < toConvert {
		// If no untried seed can be found, allow tried ones again.
		if !allowTried && unsuccessful > maxSeedIter*toConvert {
			allowTried = true
		}
		index, row, col := f.undev.seed(f.Rand, region, f.SeedSearch, f.Cols)
		cell := f.undev.cell(region, index)
		if !allowTried && cell.tried {
			unsuccessful++
			continue
		}
		cell.tried = true
		developed, err := f.Developed.Get(row, col)
		if err != nil {
			return err
		}
		if developed != -1 {
			// Developed by patch growth earlier in this step. The
			// index is rebuilt only between steps, so if overlapping
			// growth has consumed every indexed cell, all further
			// draws land here; a long unbroken run of such draws
			// means the subregion's supply is exhausted and the
			// remaining quota is dropped like any other shortfall.
			unsuccessful++
			stale++
			if stale > maxSeedIter*toConvert {
				log.Warnf("undeveloped cells exhausted by earlier patch growth (converted %d of %d); ending step early",
					done, toConvert)
				toConvert = done
				break
			}
			continue
		}
		stale = 0
		prob, err := f.Probability.Get(row, col)
		if err != nil {
			return err
		}
		if forceConvertAll || f.Rand.Float64() < prob {
			size := f.PatchSizes.Sample(f.Rand, region)
			ids, err := f.grow(f.Rand, row, col, size, step)
			if err != nil {
				return err
			}
			for _, id := range ids {
				r, c := cellRowCol(id, f.Cols)
				if err := f.UpdatePressure(r, c); err != nil {
					return err
				}
			}
			f.patchStats.update(len(ids))
			done += len(ids)
		}
	}

	f.overflow[region] = extra + (done - toConvert)
	log.Debugf("%d cells converted, %d extra cells carried to the next step",
		done, f.overflow[region])
	return nil
}

// Overflow returns the signed conversion surplus carried for a
// subregion (dense index): positive when earlier steps over-converted.
func (f *Futures) Overflow(region int) int {
	return f.overflow[region]
}
