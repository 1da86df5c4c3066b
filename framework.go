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

// Package futures implements a patch-growing cellular-automaton model of
// land-use change. Starting from a developed/undeveloped raster, a
// per-subregion statistical model of development potential, and a schedule
// of how many cells each subregion must convert per time step, the model
// stochastically selects seed cells, grows contiguous patches of new
// development around them, and incrementally updates the development
// pressure that feeds back into the potential model.
package futures

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"
)

// Version gives the version number of this version of FUTURES.
const Version = "1.0.0"

// maxSeedIter is the number of consecutive unsuccessful seed draws,
// per requested conversion, after which already-tried cells may be
// drawn again so the step loop cannot stall.
const maxSeedIter = 100

// SeedSearch specifies how seed cells are drawn from the undeveloped
// cells of a subregion.
type SeedSearch int

const (
	// SeedSearchUniform draws seeds uniformly at random.
	SeedSearchUniform SeedSearch = iota

	// SeedSearchProbability draws seeds weighted by development
	// potential, using inverse-CDF sampling.
	SeedSearchProbability
)

// A SimulationManipulator is a function that prepares, runs, or cleans up
// part of the simulation state.
type SimulationManipulator func(f *Futures) error

// Futures holds the state of a land-change simulation.
type Futures struct {
	// InitFuncs are functions to be run in order before the simulation
	// starts, typically to load rasters and parameter tables.
	InitFuncs []SimulationManipulator

	// EachStepFuncs are functions to be run in order after every
	// completed time step, typically to write snapshots.
	EachStepFuncs []SimulationManipulator

	// CleanupFuncs are functions to be run in order after the
	// simulation finishes.
	CleanupFuncs []SimulationManipulator

	// Rows and Cols give the raster dimensions shared by all layers.
	Rows, Cols int

	// Layers manages the tiled out-of-core storage backing all
	// raster layers.
	Layers *LayerSet

	// Raster layers. Developed holds the mask and conversion-step
	// values, Subregions holds dense region indices, and Probability
	// caches the per-cell development potential computed during the
	// most recent index rebuild. Weight is nil when no external
	// probability weights are configured.
	Developed   *Segment
	Subregions  *Segment
	DevPressure *Segment
	Predictors  *Segment
	Probability *Segment
	Weight      *Segment

	// Regions maps external subregion codes to the dense indices used
	// by all per-region tables.
	Regions *RegionMap

	// Potential is the statistical development-potential model.
	Potential *Potential

	// Demand holds the number of cells each subregion must convert in
	// each time step.
	Demand *Demand

	// PatchSizes is the library of patch sizes the grower samples from.
	PatchSizes *PatchSizes

	// Kernel is the precomputed distance-decay kernel used for
	// incremental development-pressure updates.
	Kernel *PressureKernel

	// SeedSearch selects the seed-sampling method.
	SeedSearch SeedSearch

	// PatchPolicy ranks candidate cells during patch growth. If nil,
	// ProbabilityPolicy is used.
	PatchPolicy NeighborPolicy

	// Neighbors is the grid connectivity used by the patch grower;
	// it must be 4 or 8.
	Neighbors int

	// Steps is the number of time steps to simulate.
	Steps int

	// Rand is the single random-number generator used for all
	// stochastic draws. It must be non-nil; seeding it explicitly
	// makes runs reproducible.
	Rand *rand.Rand

	// Seed optionally records the value Rand was seeded with, for
	// output provenance.
	Seed int64

	// Log receives warnings and progress information. If nil, the
	// logrus standard logger is used.
	Log logrus.FieldLogger

	// Step is the index of the time step currently being simulated.
	Step int

	undev    *Undeveloped
	overflow []int

	patchStats patchStatistics
}

// Init runs the initialization functions and validates the resulting
// state. It must be called before Run.
func (f *Futures) Init() error {
	if f.Log == nil {
		f.Log = logrus.StandardLogger()
	}
	for _, fn := range f.InitFuncs {
		if err := fn(f); err != nil {
			return err
		}
	}
	return f.check()
}

// Cleanup runs the cleanup functions and releases layer storage.
func (f *Futures) Cleanup() error {
	for _, fn := range f.CleanupFuncs {
		if err := fn(f); err != nil {
			return err
		}
	}
	if f.Layers != nil {
		return f.Layers.Close()
	}
	return nil
}

// check validates that the simulation state is complete and internally
// consistent. All table/raster mismatches are fatal here, before the
// step loop starts.
func (f *Futures) check() error {
	if f.Rows <= 0 || f.Cols <= 0 {
		return fmt.Errorf("futures: invalid raster dimensions %d×%d", f.Rows, f.Cols)
	}
	if f.Rand == nil {
		return fmt.Errorf("futures: random number generator is not set")
	}
	if f.Developed == nil || f.Subregions == nil || f.DevPressure == nil ||
		f.Predictors == nil || f.Probability == nil {
		return fmt.Errorf("futures: not all required raster layers are loaded")
	}
	if f.Regions == nil || f.Regions.Len() == 0 {
		return fmt.Errorf("futures: no subregions found")
	}
	if f.Potential == nil {
		return fmt.Errorf("futures: development potential model is not set")
	}
	if err := f.Potential.check(f.Regions.Len(), f.Predictors.PerCell()); err != nil {
		return err
	}
	if f.Demand == nil {
		return fmt.Errorf("futures: demand table is not set")
	}
	if err := f.Demand.check(f.Regions.Len(), f.Steps); err != nil {
		return err
	}
	if f.PatchSizes == nil {
		return fmt.Errorf("futures: patch size library is not set")
	}
	if err := f.PatchSizes.check(f.Regions.Len()); err != nil {
		return err
	}
	if f.Kernel == nil {
		return fmt.Errorf("futures: development pressure kernel is not set")
	}
	switch f.Neighbors {
	case 0:
		f.Neighbors = 4
	case 4, 8:
	default:
		return fmt.Errorf("futures: invalid neighborhood size %d (must be 4 or 8)", f.Neighbors)
	}
	if f.Steps <= 0 {
		return fmt.Errorf("futures: invalid number of steps %d", f.Steps)
	}
	if f.PatchPolicy == nil {
		f.PatchPolicy = ProbabilityPolicy{}
	}
	f.overflow = make([]int, f.Regions.Len())
	return nil
}

// cellIndex converts (row, col) to the compact cell ID used in the
// per-region undeveloped lists.
func cellIndex(row, col, cols int) int {
	return row*cols + col
}

// cellRowCol is the inverse of cellIndex.
func cellRowCol(id, cols int) (row, col int) {
	return id / cols, id % cols
}

// RegionMap is a bidirectional mapping between external subregion codes
// and the dense 0-based indices used internally. Dense indices are
// assigned in order of first appearance during raster loading.
type RegionMap struct {
	byCode map[int]int
	codes  []int
}

// NewRegionMap creates an empty region map.
func NewRegionMap() *RegionMap {
	return &RegionMap{byCode: make(map[int]int)}
}

// intern returns the dense index for code, assigning the next free
// index if code has not been seen before.
func (m *RegionMap) intern(code int) int {
	if i, ok := m.byCode[code]; ok {
		return i
	}
	i := len(m.codes)
	m.byCode[code] = i
	m.codes = append(m.codes, code)
	return i
}

// Index returns the dense index for an external subregion code.
func (m *RegionMap) Index(code int) (int, bool) {
	i, ok := m.byCode[code]
	return i, ok
}

// Code returns the external subregion code for a dense index.
func (m *RegionMap) Code(index int) int {
	return m.codes[index]
}

// Len returns the number of subregions.
func (m *RegionMap) Len() int {
	return len(m.codes)
}
