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
	"math"
)

// incentiveTableSize is the number of equally spaced samples in [0, 1]
// that the incentive transform lookup table holds.
const incentiveTableSize = 1001

// Potential is the per-subregion logistic model of development
// potential. All slices are indexed by dense subregion index; the
// predictor coefficient matrix is [predictor][subregion].
type Potential struct {
	// Intercept and DevPressure are the per-subregion regression
	// intercepts and development-pressure coefficients.
	Intercept   []float64
	DevPressure []float64

	// Predictors holds one coefficient per (predictor, subregion)
	// pair.
	Predictors [][]float64

	// PredictorIndices maps each coefficient row to its column in
	// the packed predictor layer.
	PredictorIndices []int

	incentive []float64
}

// SetIncentiveTransform installs a monotonic re-scaling of the raw
// logistic probability, p → p^exponent, precomputed over
// incentiveTableSize equally spaced samples.
func (p *Potential) SetIncentiveTransform(exponent float64) {
	table := make([]float64, incentiveTableSize)
	step := 1.0 / float64(incentiveTableSize-1)
	for i := range table {
		table[i] = math.Pow(float64(i)*step, exponent)
	}
	p.incentive = table
}

// Probability computes the development probability of a cell in the
// given subregion. devPressure is the cell's development-pressure
// value, predictors the cell's packed predictor values, and weight the
// cell's external probability weight (0 when no weight layer is
// configured). The result is in [0, 1].
func (p *Potential) Probability(region int, devPressure float64, predictors []float64, weight float64) (float64, error) {
	score := p.Intercept[region] + p.DevPressure[region]*devPressure
	for i, coef := range p.Predictors {
		score += coef[region] * predictors[p.PredictorIndices[i]]
	}
	prob := 1.0 / (1.0 + math.Exp(-score))
	if p.incentive != nil {
		i := int(prob * float64(len(p.incentive)-1))
		if i < 0 || i >= len(p.incentive) {
			return 0, fmt.Errorf("futures: incentive lookup position %d out of range [0, %d]",
				i, len(p.incentive)-1)
		}
		prob = p.incentive[i]
	}
	if weight < 0 {
		prob *= math.Abs(weight)
	} else if weight > 0 {
		prob = prob + weight - prob*weight
	}
	return prob, nil
}

// check validates the model against the number of subregions and the
// number of packed predictor values per cell.
func (p *Potential) check(numRegions, perCell int) error {
	if len(p.Intercept) != numRegions || len(p.DevPressure) != numRegions {
		return fmt.Errorf("futures: potential model covers %d subregions, raster has %d",
			len(p.Intercept), numRegions)
	}
	if len(p.PredictorIndices) != len(p.Predictors) {
		return fmt.Errorf("futures: potential model has %d predictor coefficient rows but %d predictor indices",
			len(p.Predictors), len(p.PredictorIndices))
	}
	for i, coef := range p.Predictors {
		if len(coef) != numRegions {
			return fmt.Errorf("futures: potential predictor %d covers %d subregions, raster has %d",
				i, len(coef), numRegions)
		}
		if p.PredictorIndices[i] < 0 || p.PredictorIndices[i] >= perCell {
			return fmt.Errorf("futures: potential predictor %d references packed column %d of %d",
				i, p.PredictorIndices[i], perCell)
		}
	}
	return nil
}
