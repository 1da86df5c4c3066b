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

	"github.com/ctessum/sparse"
)

// PressureKernel is a precomputed distance-decay kernel describing how
// much one newly developed cell raises the development pressure of its
// neighborhood. Precomputing the kernel keeps per-cell pressure
// updates strictly incremental: global pressure is never recomputed
// mid-simulation.
type PressureKernel struct {
	size   int
	matrix *sparse.DenseArray
}

// NewPressureKernel precomputes a kernel of the given neighborhood
// radius (in cells). The contribution to a cell at Euclidean distance
// d is scale/d^gamma, and scale at the converted cell itself.
func NewPressureKernel(size int, gamma, scale float64) *PressureKernel {
	n := 2*size + 1
	matrix := sparse.ZerosDense(n, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			dy, dx := float64(i-size), float64(j-size)
			d := math.Sqrt(dy*dy + dx*dx)
			if d == 0 {
				matrix.Set(scale, i, j)
				continue
			}
			if d > float64(size) {
				continue // outside the circular neighborhood
			}
			matrix.Set(scale/math.Pow(d, gamma), i, j)
		}
	}
	return &PressureKernel{size: size, matrix: matrix}
}

// Size returns the kernel radius in cells.
func (k *PressureKernel) Size() int { return k.size }

// UpdatePressure adds the pressure contribution of a newly converted
// cell at (row, col) to every in-bounds, non-masked cell within the
// kernel neighborhood. It is called once per converted cell,
// immediately after conversion.
func (f *Futures) UpdatePressure(row, col int) error {
	k := f.Kernel
	for i := -k.size; i <= k.size; i++ {
		nr := row + i
		if nr < 0 || nr >= f.Rows {
			continue
		}
		for j := -k.size; j <= k.size; j++ {
			nc := col + j
			if nc < 0 || nc >= f.Cols {
				continue
			}
			w := k.matrix.Get(i+k.size, j+k.size)
			if w == 0 {
				continue
			}
			v, err := f.DevPressure.Get(nr, nc)
			if err != nil {
				return err
			}
			if IsNull(v) {
				continue
			}
			if err := f.DevPressure.Put(nr, nc, v+w); err != nil {
				return err
			}
		}
	}
	return nil
}
