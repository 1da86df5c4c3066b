package futuresutil

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/spatialmodel/futures"
)

var (
	configFile string

	// Config holds the global configuration data.
	Config *ConfigData
)

// RootCmd is the main command.
var RootCmd = &cobra.Command{
	Use:   "futures",
	Short: "A patch-growing model of land-use change.",
	Long: `A stochastic, patch-growing cellular-automaton model that projects
          where new land development will occur.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return Startup(configFile)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		completedMessage()
	},
}

// Startup reads the configuration file and prints a welcome message.
func Startup(configFile string) error {
	var err error
	Config, err = ReadConfigFile(configFile)
	if err != nil {
		return err
	}

	fmt.Println("\n" +
		"------------------------------------------------\n" +
		"                    Welcome!\n" +
		"   (FUT)ure (U)rban-(R)egional (E)nvironment (S)imulation\n" +
		"                Version " + futures.Version + "\n" +
		"------------------------------------------------")
	return nil
}

func completedMessage() {
	fmt.Println("\n" +
		"------------------------------------\n" +
		"          FUTURES Completed!\n" +
		"------------------------------------")
}

func init() {
	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(runCmd)

	RootCmd.PersistentFlags().StringVar(&configFile, "config", "./futures.toml", "configuration file location")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of FUTURES",

	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("FUTURES v%s", futures.Version)
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the model",
	Long: "Run the simulation configured in the configuration file and " +
		"write the projected development to the output file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return Run(Config)
	},
}

// Run builds a simulation from the configuration data and runs it.
func Run(cfg *ConfigData) error {
	log := logrus.New()
	if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %v", cfg.LogLevel, err)
		}
		log.SetLevel(level)
	}

	seed := cfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
		log.WithField("seed", seed).Warn("no random seed configured; this run is not reproducible")
	}

	var seedSearch futures.SeedSearch
	switch cfg.SeedSearch {
	case "uniform":
		seedSearch = futures.SeedSearchUniform
	case "probability":
		seedSearch = futures.SeedSearchProbability
	default:
		return fmt.Errorf("invalid seed search method %q (must be \"uniform\" or \"probability\")",
			cfg.SeedSearch)
	}
	var policy futures.NeighborPolicy
	switch cfg.PatchPolicy {
	case "probability":
		policy = futures.ProbabilityPolicy{}
	case "random":
		policy = futures.RandomPolicy{}
	default:
		return fmt.Errorf("invalid patch policy %q (must be \"probability\" or \"random\")",
			cfg.PatchPolicy)
	}

	f := &futures.Futures{
		Rand:        rand.New(rand.NewSource(seed)),
		Seed:        seed,
		Log:         log,
		Steps:       cfg.NumSteps,
		Neighbors:   cfg.NumNeighbors,
		SeedSearch:  seedSearch,
		PatchPolicy: policy,
		Kernel: futures.NewPressureKernel(cfg.Pressure.Size,
			cfg.Pressure.Gamma, cfg.Pressure.Scale),
		InitFuncs: []futures.SimulationManipulator{
			futures.LoadRasters(futures.RasterInputs{
				Path:        cfg.Rasters.Path,
				Developed:   cfg.Rasters.Developed,
				Subregions:  cfg.Rasters.Subregions,
				DevPressure: cfg.Rasters.DevPressure,
				Predictors:  cfg.Rasters.Predictors,
				Weight:      cfg.Rasters.Weight,
			}, futures.SegmentConfig{
				TileRows:    cfg.Storage.TileRows,
				TileCols:    cfg.Storage.TileCols,
				MaxResident: cfg.Storage.MaxResident,
				Path:        cfg.Storage.Path,
			}),
			loadTables(cfg),
		},
		CleanupFuncs: []futures.SimulationManipulator{
			futures.SaveFinal(cfg.Output.File, futures.OutputOptions{
				UndevelopedAsNull: cfg.Output.UndevelopedAsNull,
				DevelopedAsOne:    cfg.Output.DevelopedAsOne,
				IncludeLayers:     cfg.Output.IncludeLayers,
			}),
		},
	}
	if cfg.Output.SnapshotBasename != "" {
		f.EachStepFuncs = append(f.EachStepFuncs,
			futures.SaveSnapshots(cfg.Output.SnapshotBasename, futures.OutputOptions{
				UndevelopedAsNull: cfg.Output.UndevelopedAsNull,
				DevelopedAsOne:    cfg.Output.DevelopedAsOne,
			}))
	}

	log.WithFields(logrus.Fields{
		"rasters": cfg.Rasters.Path,
		"seed":    seed,
	}).Info("starting simulation")
	if err := f.Init(); err != nil {
		return err
	}
	if err := f.Run(); err != nil {
		return err
	}
	return f.Cleanup()
}

// loadTables returns an initialization function that parses the demand,
// potential, and patch size tables. It must run after the rasters are
// loaded because table validation needs the subregion code map.
func loadTables(cfg *ConfigData) futures.SimulationManipulator {
	return func(f *futures.Futures) error {
		sep := []rune(cfg.Separator)[0]

		df, err := os.Open(cfg.DemandFile)
		if err != nil {
			return fmt.Errorf("opening demand file: %v", err)
		}
		defer df.Close()
		if f.Demand, err = futures.ReadDemand(df, sep, f.Regions); err != nil {
			return err
		}
		if f.Steps == 0 {
			f.Steps = len(f.Demand.Years)
		}

		pf, err := os.Open(cfg.PotentialFile)
		if err != nil {
			return fmt.Errorf("opening potential file: %v", err)
		}
		defer pf.Close()
		if f.Potential, err = futures.ReadPotential(pf, sep, f.Regions, cfg.Rasters.Predictors); err != nil {
			return err
		}
		if cfg.IncentivePower != 1 {
			f.Potential.SetIncentiveTransform(cfg.IncentivePower)
		}

		sf, err := os.Open(cfg.PatchSizesFile)
		if err != nil {
			return fmt.Errorf("opening patch size file: %v", err)
		}
		defer sf.Close()
		f.PatchSizes, err = futures.ReadPatchSizes(sf, sep, f.Regions, cfg.DiscountFactor)
		return err
	}
}
