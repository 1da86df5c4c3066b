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

package futuresutil

import (
	"bufio"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ConfigData holds information about a FUTURES configuration.
type ConfigData struct {
	// Rasters names the NetCDF file and the variables within it holding
	// the input raster layers. All paths can include environment
	// variables.
	Rasters struct {
		// Path is the location of the NetCDF file holding all input
		// raster layers.
		Path string

		// Developed is the variable holding the initial development
		// state: 0 for undeveloped, 1 for developed.
		Developed string

		// Subregions is the variable holding the subregion code of
		// each cell.
		Subregions string

		// DevPressure is the variable holding the initial development
		// pressure.
		DevPressure string

		// Predictors are the variables holding the static predictors
		// of the development potential model.
		Predictors []string

		// Weight optionally names a variable holding per-cell
		// probability weights in [-1, 1].
		Weight string
	}

	// DemandFile is the path to the table giving the number of cells
	// each subregion must convert per time step. It can include
	// environment variables.
	DemandFile string

	// PotentialFile is the path to the table of development potential
	// model coefficients. It can include environment variables.
	PotentialFile string

	// PatchSizesFile is the path to the patch size library. It can
	// include environment variables.
	PatchSizesFile string

	// Separator is the field separator used in the input tables.
	// The default is a comma.
	Separator string

	// NumSteps is the number of time steps to simulate. If it is zero
	// the number of rows in the demand table is used.
	NumSteps int

	// NumNeighbors is the grid connectivity used during patch growth;
	// it must be 4 or 8. The default is 4.
	NumNeighbors int

	// DiscountFactor scales every patch size at load time. The default
	// is 1 (no scaling).
	DiscountFactor float64

	// IncentivePower is the exponent of the incentive transform applied
	// to development potential. 1 leaves the potential unchanged,
	// values above 1 encourage infill, values below 1 encourage
	// sprawl. The default is 1.
	IncentivePower float64

	// SeedSearch selects how seed cells are drawn: "uniform" or
	// "probability". The default is "probability".
	SeedSearch string

	// PatchPolicy selects how patches grow: "probability" or "random".
	// The default is "probability".
	PatchPolicy string

	// RandomSeed seeds the random number generator. Runs with the same
	// seed and inputs produce identical results. If it is zero, the
	// seed is taken from the current time and the run is not
	// reproducible.
	RandomSeed int64

	// Pressure configures the development pressure kernel.
	Pressure struct {
		// Size is the neighborhood radius in cells.
		Size int

		// Gamma is the distance-decay exponent.
		Gamma float64

		// Scale multiplies every kernel entry.
		Scale float64
	}

	// Output configures where results are written.
	Output struct {
		// File is the path of the final developed layer. It can
		// include environment variables.
		File string

		// SnapshotBasename, if non-empty, enables writing the
		// developed layer after every step to files named
		// basename_SS.nc. It can include environment variables.
		SnapshotBasename string

		// UndevelopedAsNull writes undeveloped cells as no-data
		// instead of -1.
		UndevelopedAsNull bool

		// DevelopedAsOne writes every developed cell as 1 instead of
		// the step it was converted in.
		DevelopedAsOne bool

		// IncludeLayers also writes the final development pressure
		// and probability layers to the output file.
		IncludeLayers bool
	}

	// Storage configures the tiled layer storage.
	Storage struct {
		// TileRows and TileCols give the dimensions of one tile.
		TileRows, TileCols int

		// MaxResident is the maximum number of tiles kept in memory
		// per layer; <= 0 keeps layers fully memory resident.
		MaxResident int

		// Path is the location of the on-disk tile store. If it is
		// empty, layers are held in process memory. It can include
		// environment variables.
		Path string
	}

	// LogLevel sets the logging verbosity: "debug", "info", "warn", or
	// "error". The default is "info".
	LogLevel string
}

// ReadConfigFile reads and parses a TOML configuration file.
func ReadConfigFile(filename string) (config *ConfigData, err error) {
	var (
		file  *os.File
		bytes []byte
	)
	file, err = os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("the configuration file you have specified, %v, does not "+
			"appear to exist. Please check the file name and location and "+
			"try again.\n", filename)
	}
	reader := bufio.NewReader(file)
	bytes, err = ioutil.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("problem reading configuration file: %v", err)
	}

	config = new(ConfigData)
	_, err = toml.Decode(string(bytes), config)
	if err != nil {
		return nil, fmt.Errorf(
			"there has been an error parsing the configuration file: %v\n", err)
	}

	config.Rasters.Path = os.ExpandEnv(config.Rasters.Path)
	config.DemandFile = os.ExpandEnv(config.DemandFile)
	config.PotentialFile = os.ExpandEnv(config.PotentialFile)
	config.PatchSizesFile = os.ExpandEnv(config.PatchSizesFile)
	config.Output.File = os.ExpandEnv(config.Output.File)
	config.Output.SnapshotBasename = os.ExpandEnv(config.Output.SnapshotBasename)
	config.Storage.Path = os.ExpandEnv(config.Storage.Path)

	if config.Rasters.Path == "" {
		return nil, fmt.Errorf("you need to specify the input raster file in the " +
			"'Rasters.Path' configuration variable.")
	}
	if config.Rasters.Developed == "" || config.Rasters.Subregions == "" ||
		config.Rasters.DevPressure == "" {
		return nil, fmt.Errorf("you need to name the developed, subregion, and " +
			"development pressure raster variables in the 'Rasters' configuration section.")
	}
	if len(config.Rasters.Predictors) == 0 {
		return nil, fmt.Errorf("you need to name at least one predictor raster variable " +
			"in the 'Rasters.Predictors' configuration variable.")
	}
	if config.DemandFile == "" || config.PotentialFile == "" || config.PatchSizesFile == "" {
		return nil, fmt.Errorf("you need to specify the demand, potential, and patch size " +
			"input tables in the configuration file.")
	}
	if config.Output.File == "" {
		return nil, fmt.Errorf("you need to specify an output file in the " +
			"configuration file (for example: [Output] File = \"output.nc\").")
	}

	if config.Separator == "" {
		config.Separator = ","
	}
	if config.DiscountFactor == 0 {
		config.DiscountFactor = 1
	}
	if config.IncentivePower == 0 {
		config.IncentivePower = 1
	}
	if config.NumNeighbors == 0 {
		config.NumNeighbors = 4
	}
	if config.SeedSearch == "" {
		config.SeedSearch = "probability"
	}
	if config.PatchPolicy == "" {
		config.PatchPolicy = "probability"
	}
	if config.Pressure.Size <= 0 {
		return nil, fmt.Errorf("you need to specify a positive development pressure " +
			"neighborhood size in the 'Pressure.Size' configuration variable.")
	}
	if config.Pressure.Scale == 0 {
		config.Pressure.Scale = 1
	}

	outdir := filepath.Dir(config.Output.File)
	err = os.MkdirAll(outdir, os.ModePerm)
	if err != nil {
		return nil, fmt.Errorf("problem creating output directory: %v", err)
	}
	return
}
