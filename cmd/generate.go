package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetdispatch/internal/snapshot"
	"github.com/kilianp07/fleetdispatch/simulator"
)

var (
	fleetCfg simulator.FleetConfig
	outPath  string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a synthetic fleet snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := simulator.GenerateFleet(fleetCfg)
		if err != nil {
			return err
		}
		if outPath == "" || outPath == "-" {
			return snapshot.EncodeYAML(cmd.OutOrStdout(), snap)
		}
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		if err := snapshot.EncodeYAML(f, snap); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	},
}

func init() {
	f := generateCmd.Flags()
	f.IntVar(&fleetCfg.Loads, "loads", 20, "number of loads")
	f.IntVar(&fleetCfg.Drivers, "drivers", 10, "number of drivers")
	f.IntVar(&fleetCfg.Trucks, "trucks", 0, "number of trucks (default one per driver)")
	f.Int64Var(&fleetCfg.Seed, "seed", 0, "random seed (default time based)")
	f.Float64Var(&fleetCfg.RadiusMiles, "radius", 150, "pickup radius in miles")
	f.Float64Var(&fleetCfg.HazmatPct, "hazmat", 0.1, "share of hazmat loads")
	f.Float64Var(&fleetCfg.CertifiedPct, "certified", 0.3, "share of hazmat certified drivers")
	f.Float64Var(&fleetCfg.WindowPct, "windows", 0.5, "share of loads with a pickup window")
	f.StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(generateCmd)
}
