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

func undevelopedWithCumulative(cum []float64) *Undeveloped {
	u := newUndeveloped(1)
	for i, c := range cum {
		u.regions[0] = append(u.regions[0], UndevelopedCell{ID: i, Cumulative: c})
	}
	return u
}

func TestProbableSeed(t *testing.T) {
	u := undevelopedWithCumulative([]float64{0.2, 0.5, 1.0})
	tests := []struct {
		p    float64
		want int
	}{
		{0, 0},
		{0.1, 0},
		{0.2, 0},   // exactly the first boundary
		{0.21, 1},
		{0.45, 1},
		{0.5, 1},   // exactly an interior boundary
		{0.51, 2},
		{0.99, 2},
		{1, 2},
	}
	for _, test := range tests {
		if got := u.probableSeed(0, test.p); got != test.want {
			t.Errorf("probableSeed(%v) = %d, want %d", test.p, got, test.want)
		}
	}
}

func TestProbableSeedSingleCell(t *testing.T) {
	u := undevelopedWithCumulative([]float64{1.0})
	for _, p := range []float64{0, 0.5, 1} {
		if got := u.probableSeed(0, p); got != 0 {
			t.Errorf("probableSeed(%v) = %d, want 0", p, got)
		}
	}
}

func TestProbableSeedManyCells(t *testing.T) {
	// A larger list exercises the bisection loop itself rather than
	// just the boundary shortcuts.
	n := 1000
	cum := make([]float64, n)
	for i := range cum {
		cum[i] = float64(i+1) / float64(n)
	}
	u := undevelopedWithCumulative(cum)
	for _, p := range []float64{0.0005, 0.1234, 0.5, 0.7777, 0.9995} {
		got := u.probableSeed(0, p)
		if p > cum[got] {
			t.Errorf("probableSeed(%v) = %d with cumulative %v < p", p, got, cum[got])
		}
		if got > 0 && cum[got-1] >= p {
			t.Errorf("probableSeed(%v) = %d but %d already covers p", p, got, got-1)
		}
	}
}

func TestSeedUniformStaysInRange(t *testing.T) {
	u := undevelopedWithCumulative([]float64{0.25, 0.5, 0.75, 1.0})
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		index, row, col := u.seed(rng, 0, SeedSearchUniform, 2)
		if index < 0 || index > 3 {
			t.Fatalf("uniform seed index %d out of range", index)
		}
		if id := cellIndex(row, col, 2); id != u.regions[0][index].ID {
			t.Fatalf("seed position (%d, %d) does not match cell %d", row, col, index)
		}
	}
}

func TestSeedProbabilityFavorsHighPotential(t *testing.T) {
	// The last cell carries 90% of the probability mass.
	u := undevelopedWithCumulative([]float64{0.05, 0.1, 1.0})
	rng := rand.New(rand.NewSource(7))
	counts := make([]int, 3)
	for i := 0; i < 10000; i++ {
		index, _, _ := u.seed(rng, 0, SeedSearchProbability, 3)
		counts[index]++
	}
	if counts[2] < 8500 {
		t.Errorf("high-potential cell drawn %d of 10000 times, want about 9000", counts[2])
	}
	if counts[0] == 0 || counts[1] == 0 {
		t.Errorf("low-potential cells never drawn: %v", counts)
	}
}
