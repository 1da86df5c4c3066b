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
	"path/filepath"
	"testing"
)

func TestSegmentDefaultsToNull(t *testing.T) {
	ls, err := NewLayerSet(10, 10, SegmentConfig{TileRows: 4, TileCols: 4})
	if err != nil {
		t.Fatal(err)
	}
	defer ls.Close()
	s, err := ls.Open("test", 1)
	if err != nil {
		t.Fatal(err)
	}
	v, err := s.Get(7, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !IsNull(v) {
		t.Errorf("unwritten cell = %v, want null", v)
	}
}

func TestSegmentPutGet(t *testing.T) {
	ls, err := NewLayerSet(10, 10, SegmentConfig{TileRows: 3, TileCols: 3})
	if err != nil {
		t.Fatal(err)
	}
	defer ls.Close()
	s, err := ls.Open("test", 1)
	if err != nil {
		t.Fatal(err)
	}
	// Cells spanning several tiles, including tile corners and the
	// ragged bottom-right tile.
	cells := [][2]int{{0, 0}, {2, 2}, {3, 3}, {9, 9}, {0, 9}, {9, 0}, {5, 7}}
	for i, c := range cells {
		if err := s.Put(c[0], c[1], float64(i)+0.5); err != nil {
			t.Fatal(err)
		}
	}
	for i, c := range cells {
		v, err := s.Get(c[0], c[1])
		if err != nil {
			t.Fatal(err)
		}
		if v != float64(i)+0.5 {
			t.Errorf("cell (%d, %d) = %v, want %v", c[0], c[1], v, float64(i)+0.5)
		}
	}
	if _, err := s.Get(10, 0); err == nil {
		t.Error("Get out of bounds did not fail")
	}
	if err := s.Put(0, -1, 1); err == nil {
		t.Error("Put out of bounds did not fail")
	}
}

func TestSegmentVec(t *testing.T) {
	ls, err := NewLayerSet(6, 6, SegmentConfig{TileRows: 4, TileCols: 4})
	if err != nil {
		t.Fatal(err)
	}
	defer ls.Close()
	s, err := ls.Open("predictors", 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{1.5, -2, 0.25}
	if err := s.PutVec(5, 5, want); err != nil {
		t.Fatal(err)
	}
	got := make([]float64, 3)
	if err := s.GetVec(5, 5, got); err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("value %d = %v, want %v", i, got[i], want[i])
		}
	}
	if err := s.GetVec(5, 5, make([]float64, 2)); err == nil {
		t.Error("GetVec with wrong destination length did not fail")
	}
}

func TestSegmentEviction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiles.sqlite")
	ls, err := NewLayerSet(16, 16, SegmentConfig{
		TileRows: 4, TileCols: 4, MaxResident: 2, Path: path,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer ls.Close()
	s, err := ls.Open("test", 1)
	if err != nil {
		t.Fatal(err)
	}
	// Touch every tile so each one is evicted at least once, then
	// verify all values survived the round trip through the store.
	for row := 0; row < 16; row++ {
		for col := 0; col < 16; col++ {
			if err := s.Put(row, col, float64(cellIndex(row, col, 16))); err != nil {
				t.Fatal(err)
			}
		}
	}
	if len(s.resident) > 2 {
		t.Fatalf("%d tiles resident, budget is 2", len(s.resident))
	}
	for row := 0; row < 16; row++ {
		for col := 0; col < 16; col++ {
			v, err := s.Get(row, col)
			if err != nil {
				t.Fatal(err)
			}
			if v != float64(cellIndex(row, col, 16)) {
				t.Fatalf("cell (%d, %d) = %v after eviction, want %d",
					row, col, v, cellIndex(row, col, 16))
			}
		}
	}
}

func TestSegmentFlushPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiles.sqlite")
	ls, err := NewLayerSet(8, 8, SegmentConfig{TileRows: 4, TileCols: 4, Path: path})
	if err != nil {
		t.Fatal(err)
	}
	s, err := ls.Open("test", 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(1, 2, 42); err != nil {
		t.Fatal(err)
	}
	if err := ls.Close(); err != nil {
		t.Fatal(err)
	}

	ls2, err := NewLayerSet(8, 8, SegmentConfig{TileRows: 4, TileCols: 4, Path: path})
	if err != nil {
		t.Fatal(err)
	}
	defer ls2.Close()
	s2, err := ls2.Open("test", 1)
	if err != nil {
		t.Fatal(err)
	}
	v, err := s2.Get(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if v != 42 {
		t.Errorf("reopened cell = %v, want 42", v)
	}
}
