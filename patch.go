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
	"container/heap"
	"fmt"
	"math/rand"
)

// PatchSizes is the library of candidate patch sizes the grower
// samples from, already scaled by the discount factor at load time.
// Either every subregion has its own list, or a single shared list is
// used for all subregions.
type PatchSizes struct {
	// Sizes holds one list per subregion, or a single list when
	// SingleColumn is set.
	Sizes [][]int

	// SingleColumn reports whether one shared list serves all
	// subregions.
	SingleColumn bool

	// MaxPatchSize is the largest size in any list.
	MaxPatchSize int
}

// Sample draws a patch size uniformly from the subregion's list (or
// the shared list).
func (ps *PatchSizes) Sample(rng *rand.Rand, region int) int {
	sizes := ps.Sizes[0]
	if !ps.SingleColumn {
		sizes = ps.Sizes[region]
	}
	return sizes[rng.Intn(len(sizes))]
}

func (ps *PatchSizes) check(numRegions int) error {
	if ps.SingleColumn {
		if len(ps.Sizes) != 1 || len(ps.Sizes[0]) == 0 {
			return fmt.Errorf("futures: single-column patch size library is empty")
		}
		return nil
	}
	if len(ps.Sizes) < numRegions {
		return fmt.Errorf("futures: patch size library covers %d subregions, raster has %d",
			len(ps.Sizes), numRegions)
	}
	for r := 0; r < numRegions; r++ {
		if len(ps.Sizes[r]) == 0 {
			return fmt.Errorf("futures: patch size library has no sizes for subregion %d", r)
		}
	}
	return nil
}

// NeighborPolicy ranks candidate cells on the patch growth frontier.
// Higher priorities grow first. Implementations must not mutate the
// simulation state.
type NeighborPolicy interface {
	Name() string

	// Priority returns the rank of a candidate cell. Any draws from
	// rng count toward the simulation's deterministic draw order.
	Priority(f *Futures, rng *rand.Rand, row, col int) (float64, error)
}

// ProbabilityPolicy grows preferentially into cells with higher cached
// development potential, producing compact growth along the potential
// surface.
type ProbabilityPolicy struct{}

// Name returns the policy name.
func (ProbabilityPolicy) Name() string { return "probability" }

// Priority returns the candidate's cached development potential.
func (ProbabilityPolicy) Priority(f *Futures, _ *rand.Rand, row, col int) (float64, error) {
	p, err := f.Probability.Get(row, col)
	if err != nil {
		return 0, err
	}
	if IsNull(p) {
		return 0, nil
	}
	return p, nil
}

// RandomPolicy grows into a uniformly random frontier cell, producing
// irregular patch shapes.
type RandomPolicy struct{}

// Name returns the policy name.
func (RandomPolicy) Name() string { return "random" }

// Priority returns a uniform random rank.
func (RandomPolicy) Priority(_ *Futures, rng *rand.Rand, _, _ int) (float64, error) {
	return rng.Float64(), nil
}

// candidate is one frontier entry during patch growth. seq breaks
// priority ties in insertion order so growth is deterministic.
type candidate struct {
	row, col int
	priority float64
	seq      int
}

type frontier []candidate

func (fr frontier) Len() int { return len(fr) }
func (fr frontier) Less(i, j int) bool {
	if fr[i].priority != fr[j].priority {
		return fr[i].priority > fr[j].priority
	}
	return fr[i].seq < fr[j].seq
}
func (fr frontier) Swap(i, j int)      { fr[i], fr[j] = fr[j], fr[i] }
func (fr *frontier) Push(x interface{}) { *fr = append(*fr, x.(candidate)) }
func (fr *frontier) Pop() interface{} {
	old := *fr
	n := len(old)
	c := old[n-1]
	*fr = old[:n-1]
	return c
}

var neighborOffsets8 = [8][2]int{
	{-1, 0}, {1, 0}, {0, -1}, {0, 1},
	{-1, -1}, {-1, 1}, {1, -1}, {1, 1},
}

// grow expands a patch outward from the seed cell until targetSize
// cells have been converted or no eligible frontier cells remain
// (stalled growth legitimately returns fewer cells). Converted cells
// get the current step index in the developed layer. A cell is never
// visited twice, and growth never enters no-data cells. The returned
// IDs are in conversion order, seed first.
func (f *Futures) grow(rng *rand.Rand, seedRow, seedCol, targetSize, step int) ([]int, error) {
	if targetSize <= 0 {
		return nil, nil
	}
	converted := make([]int, 0, targetSize)
	visited := map[int]bool{cellIndex(seedRow, seedCol, f.Cols): true}
	var fr frontier
	seq := 0

	convert := func(row, col int) error {
		if err := f.Developed.Put(row, col, float64(step)); err != nil {
			return err
		}
		converted = append(converted, cellIndex(row, col, f.Cols))
		for i := 0; i < f.Neighbors; i++ {
			nr, nc := row+neighborOffsets8[i][0], col+neighborOffsets8[i][1]
			if nr < 0 || nr >= f.Rows || nc < 0 || nc >= f.Cols {
				continue
			}
			id := cellIndex(nr, nc, f.Cols)
			if visited[id] {
				continue
			}
			visited[id] = true
			developed, err := f.Developed.Get(nr, nc)
			if err != nil {
				return err
			}
			if IsNull(developed) || developed != -1 {
				continue
			}
			priority, err := f.PatchPolicy.Priority(f, rng, nr, nc)
			if err != nil {
				return err
			}
			heap.Push(&fr, candidate{row: nr, col: nc, priority: priority, seq: seq})
			seq++
		}
		return nil
	}

	if err := convert(seedRow, seedCol); err != nil {
		return nil, err
	}
	for len(converted) < targetSize && fr.Len() > 0 {
		c := heap.Pop(&fr).(candidate)
		if err := convert(c.row, c.col); err != nil {
			return nil, err
		}
	}
	return converted, nil
}
