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
	"math/rand"
	"testing"
)

func TestGrowReachesTargetSize(t *testing.T) {
	f, _ := newTestSim(t, 10, 10, 1, []int{1}, []int{1})
	if err := f.RebuildUndeveloped(); err != nil {
		t.Fatal(err)
	}

	ids, err := f.grow(f.Rand, 5, 5, 9, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 9 {
		t.Fatalf("patch has %d cells, want 9", len(ids))
	}
	if ids[0] != cellIndex(5, 5, f.Cols) {
		t.Errorf("first converted cell is %d, want the seed %d", ids[0], cellIndex(5, 5, f.Cols))
	}
	seen := make(map[int]bool)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("cell %d converted twice", id)
		}
		seen[id] = true
		row, col := cellRowCol(id, f.Cols)
		v, err := f.Developed.Get(row, col)
		if err != nil {
			t.Fatal(err)
		}
		if v != 1 {
			t.Errorf("cell (%d, %d) = %v, want step 1", row, col, v)
		}
	}
}

func TestGrowIsContiguous(t *testing.T) {
	f, _ := newTestSim(t, 10, 10, 1, []int{1}, []int{1})
	if err := f.RebuildUndeveloped(); err != nil {
		t.Fatal(err)
	}
	ids, err := f.grow(f.Rand, 4, 4, 12, 1)
	if err != nil {
		t.Fatal(err)
	}
	inPatch := make(map[int]bool)
	for _, id := range ids {
		inPatch[id] = true
	}
	// Every cell except the seed must touch an earlier cell.
	for i, id := range ids {
		if i == 0 {
			continue
		}
		row, col := cellRowCol(id, f.Cols)
		touches := false
		for _, off := range neighborOffsets8[:4] {
			if inPatch[cellIndex(row+off[0], col+off[1], f.Cols)] {
				touches = true
				break
			}
		}
		if !touches {
			t.Errorf("cell (%d, %d) is not 4-connected to the patch", row, col)
		}
	}
}

func TestGrowStopsWhenBlocked(t *testing.T) {
	f, _ := newTestSim(t, 5, 5, 1, []int{1}, []int{1})
	// Wall off a 2-cell pocket in the top-left corner with no-data.
	for _, c := range [][2]int{{0, 1}, {1, 1}, {2, 0}} {
		if err := f.Developed.Put(c[0], c[1], Null()); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.RebuildUndeveloped(); err != nil {
		t.Fatal(err)
	}
	ids, err := f.grow(f.Rand, 0, 0, 10, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("blocked patch has %d cells, want 2", len(ids))
	}
	for _, id := range ids {
		if id != cellIndex(0, 0, f.Cols) && id != cellIndex(1, 0, f.Cols) {
			t.Errorf("patch escaped the pocket to cell %d", id)
		}
	}
}

func TestGrowSkipsDevelopedCells(t *testing.T) {
	f, _ := newTestSim(t, 5, 5, 1, []int{1}, []int{1})
	if err := f.Developed.Put(2, 3, 0); err != nil { // baseline development
		t.Fatal(err)
	}
	if err := f.RebuildUndeveloped(); err != nil {
		t.Fatal(err)
	}
	ids, err := f.grow(f.Rand, 2, 2, 25, 1)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range ids {
		if id == cellIndex(2, 3, f.Cols) {
			t.Fatal("patch grew into an already developed cell")
		}
	}
	if len(ids) != 24 {
		t.Errorf("patch has %d cells, want 24", len(ids))
	}
	v, err := f.Developed.Get(2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0 {
		t.Errorf("baseline cell overwritten with %v", v)
	}
}

func TestGrowEightConnectivity(t *testing.T) {
	f, _ := newTestSim(t, 5, 5, 1, []int{1}, []int{1})
	f.Neighbors = 8
	// Isolate the corner from its 4-neighbors only; an 8-connected
	// patch must still escape through the diagonal.
	for _, c := range [][2]int{{0, 1}, {1, 0}} {
		if err := f.Developed.Put(c[0], c[1], Null()); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.RebuildUndeveloped(); err != nil {
		t.Fatal(err)
	}
	ids, err := f.grow(f.Rand, 0, 0, 3, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 {
		t.Fatalf("8-connected patch has %d cells, want 3", len(ids))
	}
}

func TestPatchSizesSample(t *testing.T) {
	shared := &PatchSizes{Sizes: [][]int{{3, 5, 8}}, SingleColumn: true, MaxPatchSize: 8}
	perRegion := &PatchSizes{Sizes: [][]int{{1}, {2}}, MaxPatchSize: 2}
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 100; i++ {
		s := shared.Sample(rng, 1) // region index must be ignored
		if s != 3 && s != 5 && s != 8 {
			t.Fatalf("shared sample %d not in library", s)
		}
	}
	if got := perRegion.Sample(rng, 0); got != 1 {
		t.Errorf("region 0 sample = %d, want 1", got)
	}
	if got := perRegion.Sample(rng, 1); got != 2 {
		t.Errorf("region 1 sample = %d, want 2", got)
	}
}

func TestRandomPolicyProducesIrregularPatches(t *testing.T) {
	f, _ := newTestSim(t, 15, 15, 1, []int{1}, []int{1})
	f.PatchPolicy = RandomPolicy{}
	if err := f.RebuildUndeveloped(); err != nil {
		t.Fatal(err)
	}
	ids, err := f.grow(f.Rand, 7, 7, 20, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 20 {
		t.Fatalf("patch has %d cells, want 20", len(ids))
	}
}
