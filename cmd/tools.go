package main

import (
	"errors"
	"fmt"
	"os"

	"mathblog/internal/config"
	"mathblog/internal/geometry"
	"mathblog/internal/handlers"

	"github.com/spf13/cobra"
)

var (
	pot      geometry.Pot
	otherPot geometry.Pot
)

var potCmd = &cobra.Command{
	Use:   "pot",
	Short: "Compute the angles and volume of a truncated-cone pot",
	Long: `Computes the wall angle, the apex angle of the extended cone and the
volume of a pot. Give a second pot with the --vs-* flags to see the
difference in volume.

Example:
  mathblog pot --top 19 --base 11 --height 18 --vs-top 18 --vs-base 17 --vs-height 16`,
	Args:              cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := pot.Report()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "alpha %.4f rad (%.2f°)\n", r.Angles.Alpha, r.AlphaDegrees)
		fmt.Fprintf(out, "beta  %.4f rad (%.2f°)\n", r.Angles.Beta, r.BetaDegrees)
		if !r.Cylinder {
			fmt.Fprintf(out, "small cone height %.2f\n", r.SmallConeHeight)
		}
		fmt.Fprintf(out, "volume %.2f\n", r.Volume)

		if otherPot == (geometry.Pot{}) {
			return nil
		}
		if err := otherPot.Validate(); err != nil {
			return fmt.Errorf("second pot: %w", err)
		}
		fmt.Fprintf(out, "second volume %.2f, difference %.2f\n", otherPot.Volume(), geometry.VolumeDelta(pot, otherPot))
		return nil
	},
}

var hashTokenCmd = &cobra.Command{
	Use:               "hash-token <token>",
	Short:             "Print the bcrypt hash to use as admin_token_hash",
	Args:              cobra.ExactArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := handlers.HashToken(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

var initConfigCmd = &cobra.Command{
	Use:               "init-config",
	Short:             "Write a config file with the default settings",
	Args:              cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("%s already exists", configPath)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := config.DefaultConfig().Save(configPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
		return nil
	},
}

func init() {
	f := potCmd.Flags()
	f.Float64Var(&pot.DiameterTop, "top", 0, "diameter at the rim")
	f.Float64Var(&pot.DiameterBase, "base", 0, "diameter at the base")
	f.Float64Var(&pot.Height, "height", 0, "height of the pot")
	f.Float64Var(&otherPot.DiameterTop, "vs-top", 0, "rim diameter of a pot to compare with")
	f.Float64Var(&otherPot.DiameterBase, "vs-base", 0, "base diameter of a pot to compare with")
	f.Float64Var(&otherPot.Height, "vs-height", 0, "height of a pot to compare with")
	potCmd.MarkFlagRequired("top")
	potCmd.MarkFlagRequired("base")
	potCmd.MarkFlagRequired("height")
}
