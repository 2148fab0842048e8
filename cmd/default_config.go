package cmd

import (
	"github.com/spf13/cobra"

	sim "github.com/HaoruiPeng/massive-mimo-slicing/sim"
)

// loadRunConfig loads --config (or the built-in defaults), applies every
// flag the user set explicitly on top, and validates the result.
func loadRunConfig(c *cobra.Command) (*sim.Config, error) {
	cfg := sim.DefaultConfig()
	if configPath != "" {
		loaded, err := sim.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	applyFlagOverrides(c, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlagOverrides copies explicitly set flags into cfg. Flags left at
// their default never override the file.
func applyFlagOverrides(c *cobra.Command, cfg *sim.Config) {
	changed := c.Flags().Changed
	if changed("seed") {
		cfg.Simulation.Seed = seed
	}
	if changed("horizon") {
		cfg.Simulation.Horizon = simulationHorizon
	}
	if changed("frame-length") {
		cfg.Simulation.FrameLength = frameLength
	}
	if changed("measurement-period") {
		cfg.Simulation.MeasurementPeriod = measurementPeriod
	}
	if changed("units") {
		cfg.Simulation.ResourceUnits = resourceUnits
	}
	if changed("urllc-strategy") {
		cfg.Policy.URLLC = urllcStrategy
	}
	if changed("mmtc-strategy") {
		cfg.Policy.MMTC = mmtcStrategy
	}
	if changed("urllc-nodes") {
		cfg.Classes.URLLC.Nodes = urllcNodes
	}
	if changed("mmtc-nodes") {
		cfg.Classes.MMTC.Nodes = mmtcNodes
	}
	if changed("base-share") {
		cfg.Policy.BaseShare = baseShare
	}
}
