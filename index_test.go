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
	"math"
	"testing"
)

func TestRebuildUndeveloped(t *testing.T) {
	f, _ := newTestSim(t, 6, 6, 1, []int{1}, []int{1})

	// Mask one cell and develop another; neither may be indexed.
	if err := f.Developed.Put(0, 0, Null()); err != nil {
		t.Fatal(err)
	}
	if err := f.Developed.Put(2, 3, 0); err != nil {
		t.Fatal(err)
	}
	if err := f.RebuildUndeveloped(); err != nil {
		t.Fatal(err)
	}

	want := 6*6 - 2
	if got := f.undev.Count(0); got != want {
		t.Fatalf("indexed %d cells, want %d", got, want)
	}
	excluded := map[int]bool{
		cellIndex(0, 0, f.Cols): true,
		cellIndex(2, 3, f.Cols): true,
	}
	prev := -1
	for i := 0; i < f.undev.Count(0); i++ {
		c := f.undev.cell(0, i)
		if excluded[c.ID] {
			t.Errorf("cell %d should not be indexed", c.ID)
		}
		if c.ID <= prev {
			t.Errorf("IDs out of row-major order: %d after %d", c.ID, prev)
		}
		prev = c.ID
		if c.Probability <= 0 || c.Probability >= 1 {
			t.Errorf("cell %d: probability %v outside (0, 1)", c.ID, c.Probability)
		}
	}

	last := f.undev.cell(0, f.undev.Count(0)-1)
	if math.Abs(last.Cumulative-1) > testTolerance {
		t.Errorf("last cumulative probability = %v, want 1", last.Cumulative)
	}
	for i := 1; i < f.undev.Count(0); i++ {
		if f.undev.cell(0, i).Cumulative < f.undev.cell(0, i-1).Cumulative {
			t.Fatalf("cumulative distribution decreases at %d", i)
		}
	}
}

func TestRebuildCachesProbabilityLayer(t *testing.T) {
	f, _ := newTestSim(t, 4, 4, 1, []int{1}, []int{1})
	if err := f.RebuildUndeveloped(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < f.undev.Count(0); i++ {
		c := f.undev.cell(0, i)
		row, col := cellRowCol(c.ID, f.Cols)
		cached, err := f.Probability.Get(row, col)
		if err != nil {
			t.Fatal(err)
		}
		if cached != c.Probability {
			t.Errorf("cell %d: cached probability %v != indexed %v", c.ID, cached, c.Probability)
		}
	}
}

func TestRebuildZeroPotentialFallsBackToUniform(t *testing.T) {
	f, _ := newTestSim(t, 3, 3, 1, []int{1}, []int{1})
	// An all-zero incentive table forces every potential to zero.
	f.Potential.incentive = make([]float64, incentiveTableSize)
	if err := f.RebuildUndeveloped(); err != nil {
		t.Fatal(err)
	}
	n := f.undev.Count(0)
	if n != 9 {
		t.Fatalf("indexed %d cells, want 9", n)
	}
	for i := 0; i < n; i++ {
		want := float64(i+1) / float64(n)
		if math.Abs(f.undev.cell(0, i).Cumulative-want) > testTolerance {
			t.Errorf("cell %d: cumulative = %v, want uniform %v",
				i, f.undev.cell(0, i).Cumulative, want)
		}
	}
}
