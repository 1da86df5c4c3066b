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

import "math/rand"

// probableSeed returns the index of the first list entry whose
// cumulative probability is >= p, by bisection. The boundary rules
// are: p at or below the first entry's cumulative probability selects
// index 0; p at or above the last entry's selects the last index;
// otherwise the unique i with Cumulative[i-1] < p <= Cumulative[i] is
// selected. These exact semantics are load-bearing for run
// reproducibility.
func (u *Undeveloped) probableSeed(region int, p float64) int {
	cells := u.regions[region]
	first, last := 0, len(cells)-1
	if p <= cells[first].Cumulative {
		return 0
	}
	if p >= cells[last].Cumulative {
		return last
	}
	middle := (first + last) / 2
	for first <= last {
		if cells[middle].Cumulative < p {
			first = middle + 1
		} else if cells[middle-1].Cumulative < p && cells[middle].Cumulative >= p {
			return middle
		} else {
			last = middle - 1
		}
		middle = (first + last) / 2
	}
	return 0
}

// seed draws one candidate cell from a subregion's undeveloped list,
// either uniformly or weighted by development potential, and returns
// its list index and grid position. The list must be non-empty.
func (u *Undeveloped) seed(rng *rand.Rand, region int, method SeedSearch, cols int) (index, row, col int) {
	if method == SeedSearchUniform {
		index = int(rng.Float64() * float64(len(u.regions[region])))
		if index == len(u.regions[region]) { // Float64 can round up at the edge.
			index--
		}
	} else {
		index = u.probableSeed(region, rng.Float64())
	}
	row, col = cellRowCol(u.regions[region][index].ID, cols)
	return index, row, col
}
