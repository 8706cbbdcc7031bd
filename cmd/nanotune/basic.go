package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/classicvalues/nanotune/pkg/apis"
	"github.com/classicvalues/nanotune/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewCalibrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "calibrate",
		Short:   "Recalibrate signal normalization",
		GroupID: gBasic,
		Long: `Recalibrate signal normalization.

Sweeps every gate to its safety extremes to measure the lowest and highest
raw readout of each channel. The measured window is used to normalize all
subsequent readouts to [0, 1]. Gate voltages are restored afterwards.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			consts, err := apiClient.Calibrate()
			if err != nil {
				return fmt.Errorf("failed to calibrate: %v", err)
			}

			logrus.Infof("successfully recalibrated normalization")
			for ch, window := range consts {
				cmd.Printf("  %s: [%g, %g]\n", ch, window.Min, window.Max)
			}

			return nil
		},
	}
}

func NewCharacterizeCommand() *cobra.Command {
	var (
		useSafetyRanges bool
		comment         string
	)

	cmd := &cobra.Command{
		Use:     "characterize [gate...]",
		Short:   "Characterize gates one at a time",
		GroupID: gBasic,
		Long: `Characterize gates one at a time.

Each named gate is swept over its current valid range and the sweep is
classified for a pinchoff. With no arguments, all gates of the device are
characterized. Gate ranges are restored afterwards.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			export, err := apiClient.Characterize(apis.CharacterizeRequest{
				Gates:           args,
				UseSafetyRanges: useSafetyRanges,
				Comment:         comment,
			})
			if err != nil {
				return fmt.Errorf("failed to characterize: %v", err)
			}

			logrus.Infof("characterization finished, session %s", export.ID)
			printExport(cmd, export)

			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&useSafetyRanges, "use-safety-ranges", false,
		"Sweep the full safety range of each gate instead of its current valid range.")
	f.StringVar(&comment, "comment", "", "Comment to attach to the tuning result.")

	return cmd
}

func NewRangeCommand() *cobra.Command {
	var (
		sweepGates  []string
		voltageStep float64
	)

	cmd := &cobra.Command{
		Use:     "range [gate]",
		Short:   "Discover the operating window of a gate",
		GroupID: gBasic,
		Long: `Discover the operating window of a gate.

Steps the named gate from its safety maximum downwards until the device
responds on the swept gates, then probes for the highest usable voltage.
The discovered window is printed but not applied to the gate.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("invalid number of arguments")
			}

			resp, err := apiClient.DiscoverRange(apis.RangeRequest{
				GateToSet:    args[0],
				GatesToSweep: sweepGates,
				VoltageStep:  voltageStep,
			})
			if err != nil {
				return fmt.Errorf("failed to discover range: %v", err)
			}

			logrus.Infof("successfully discovered operating window of %s", args[0])
			cmd.Printf("  %s: [%g, %g]\n", args[0], resp.Low, resp.High)

			return nil
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&sweepGates, "sweep", nil,
		"Gates to sweep while stepping the target gate (default: all gates).")
	f.Float64Var(&voltageStep, "step", 0,
		"Voltage step size (default: the configured voltageStep).")

	return cmd
}

func NewSignalCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "signal [channel...]",
		Short:   "Check whether the device shows signal",
		GroupID: gBasic,
		Long: `Check whether the device shows signal.

Reads the named channels (all channels when none are given) and reports
whether any normalized readout exceeds its configured threshold.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			have, err := apiClient.Signal(apis.SignalRequest{Channels: args})
			if err != nil {
				return fmt.Errorf("failed to check signal: %v", err)
			}

			cmd.Println("Signal: " + bool2Text(have))

			return nil
		},
	}
}

func NewResultsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "results",
		Short:   "Show the tuning history of the device",
		GroupID: gBasic,
		RunE: func(cmd *cobra.Command, _ []string) error {
			exports, err := apiClient.GetResults()
			if err != nil {
				return fmt.Errorf("failed to get results: %v", err)
			}

			if len(exports) == 0 {
				cmd.Println("No tuning results yet.")
				return nil
			}

			for _, e := range exports {
				printExport(cmd, e)
				cmd.Println()
			}

			return nil
		},
	}
}

func NewScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedule [cron expression]",
		Short:   "Schedule periodic normalization calibration",
		GroupID: gAdvanced,
		Long: `Schedule periodic normalization calibration.

Takes a cron expression, e.g. '@daily' or '0 3 * * *'. The schedule is
persisted in the daemon config and survives restarts.`,
		RunE: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("invalid number of arguments")
			}

			ret, err := apiClient.SetCalibrationCron(args[0])
			if err != nil {
				return fmt.Errorf("failed to set calibration schedule: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "disable",
		Short: "Disable periodic calibration",
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.SetCalibrationCron("")
			if err != nil {
				return fmt.Errorf("failed to disable calibration schedule: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("successfully disabled periodic calibration")

			return nil
		},
	})

	return cmd
}
