package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vjranagit/thermotrack/pkg/setpoint"
	"github.com/vjranagit/thermotrack/pkg/types"
)

var (
	setpointAt     float64
	setpointPoints []string
)

var setpointCmd = &cobra.Command{
	Use:   "setpoint",
	Short: "Interpolate a set point from control points",
	Example: `  thermotrack setpoint --at 5 --point 0:10 --point 10:20
  thermotrack setpoint --at 20 --point 0:10,10:20`,
	RunE: func(cmd *cobra.Command, args []string) error {
		points, err := parsePoints(setpointPoints)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), setpoint.Format(setpoint.Interpolate(points, setpointAt)))
		return nil
	},
}

func init() {
	setpointCmd.Flags().Float64Var(&setpointAt, "at", 0, "simulated time to evaluate")
	setpointCmd.Flags().StringSliceVarP(&setpointPoints, "point", "p", nil, "control point as time:temperature")
}

// parsePoints parses "time:temperature" pairs in the order given
func parsePoints(raw []string) ([]types.ControlPoint, error) {
	points := make([]types.ControlPoint, 0, len(raw))
	for _, r := range raw {
		tv := strings.SplitN(r, ":", 2)
		if len(tv) != 2 {
			return nil, fmt.Errorf("invalid point %q, want time:temperature", r)
		}
		t, err := strconv.ParseFloat(strings.TrimSpace(tv[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid time in %q: %w", r, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(tv[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid temperature in %q: %w", r, err)
		}
		points = append(points, types.ControlPoint{Time: t, Temperature: v})
	}
	return points, nil
}
