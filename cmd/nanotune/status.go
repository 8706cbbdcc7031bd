package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/classicvalues/nanotune/pkg/apis"
	"github.com/classicvalues/nanotune/pkg/config"
	"github.com/classicvalues/nanotune/pkg/tuner"
)

type statusData struct {
	device  apis.DeviceStatus
	results []tuner.Export
	config  *config.RawFileConfig
}

// fetchStatusData gathers all data required for the status command from the daemon.
func fetchStatusData() (*statusData, error) {
	device, err := apiClient.GetDevice()
	if err != nil {
		return nil, fmt.Errorf("failed to get device status: %w", err)
	}

	results, err := apiClient.GetResults()
	if err != nil {
		return nil, fmt.Errorf("failed to get tuning history: %w", err)
	}

	conf, err := apiClient.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	return &statusData{
		device:  device,
		results: results,
		config:  conf,
	}, nil
}

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of the device",
		Long:    `Get gate voltages, ranges, normalization constants, and configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := fetchStatusData()
			if err != nil {
				return err
			}

			conf := config.NewFileFromConfig(data.config, "")

			cmd.Println(bold("Device: %s", data.device.Name))
			cmd.Println()

			cmd.Println(bold("Gates:"))
			for _, name := range sortedKeys(data.device.Gates) {
				g := data.device.Gates[name]
				cmd.Printf("  %s\n", bold("%s", name))
				cmd.Printf("    Voltage: %s\n", bold("%g V", g.Voltage))
				cmd.Printf("    Valid range: [%g, %g]\n", g.ValidRange.Min, g.ValidRange.Max)
				cmd.Printf("    Safety range: [%g, %g]\n", g.SafetyRange.Min, g.SafetyRange.Max)
			}
			cmd.Println()

			cmd.Println(bold("Normalization:"))
			if len(data.device.Normalization) == 0 {
				cmd.Println("  Not calibrated: " + bool2Text(false))
				cmd.Println("    Run 'nanotune calibrate' to measure normalization constants.")
			} else {
				for _, ch := range sortedKeys(data.device.Normalization) {
					window := data.device.Normalization[ch]
					cmd.Printf("  %s: [%g, %g]\n", ch, window.Min, window.Max)
				}
			}
			cmd.Println()

			cmd.Println(bold("Tuning history:"))
			cmd.Printf("  Sessions: %s\n", bold("%d", len(data.results)))
			cmd.Println()

			cmd.Println(bold("Configuration:"))
			cmd.Printf("  Voltage step: %s\n", bold("%g V", conf.VoltageStep()))
			cmd.Printf("  Voltage precision: %s\n", bold("%g V", conf.VoltagePrecision()))
			if expr := conf.CalibrationCron(); expr != "" {
				cmd.Printf("  Calibration schedule: %s\n", bold("%s", expr))
			} else {
				cmd.Println("  Calibration schedule: disabled")
			}
			cmd.Printf("  Allow non-root users to access the daemon: %s\n", bool2Text(conf.AllowNonRootAccess()))
			return nil
		},
	}
}

func printExport(cmd *cobra.Command, e tuner.Export) {
	cmd.Printf("%s (%s, started %s)\n", bold("%s", e.ID), e.Device, e.StartedAt.Format("2006-01-02 15:04:05"))
	for _, entry := range e.Entries {
		cmd.Printf("  %s: %s", entry.Name, bool2Text(entry.Success))
		if len(entry.TerminationReasons) > 0 {
			cmd.Printf(" %v", entry.TerminationReasons)
		}
		if entry.Comment != "" {
			cmd.Printf(" (%s)", entry.Comment)
		}
		cmd.Println()
	}
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
