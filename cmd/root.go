// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/Thermoquad/keybusstat/internal/config"
	"github.com/Thermoquad/keybusstat/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	// Config file flag
	cfgFile string

	// v holds flag bindings, file values and KEYBUS_* overrides
	v = viper.New()

	appConfig *config.Config
	logger    = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "keybusstat",
	Short: "DSC Keybus Monitor",
	Long: `keybusstat - A CLI tool for monitoring DSC alarm panels on the Keybus.

Decodes panel status, zones, date/time broadcasts and keypad replies, and can
send keys to the panel when a write line is wired.

Capture sources (--board):
  gpiod:   Linux GPIO character device (--chip, --clock-line, --data-line)
  periph:  periph.io pins (--clock-pin, --data-pin)
  serial:  frame lines from a capture microcontroller (--port, --baud)
  sim:     built-in simulated panel

Settings can also come from keybusstat.yaml or KEYBUS_* environment
variables, e.g. KEYBUS_BOARD_TYPE=gpiod.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		appConfig = cfg

		l, err := logging.New(cfg.Logging, os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "Config file (default ./keybusstat.yaml)")

	// Capture source
	flags.String("board", "sim", "Capture source: gpiod, periph, serial or sim")
	flags.String("chip", "gpiochip0", "GPIO chip (gpiod)")
	flags.Int("clock-line", 17, "Clock line offset (gpiod)")
	flags.Int("data-line", 27, "Data line offset (gpiod)")
	flags.Int("write-line", -1, "Write line offset, -1 for read-only (gpiod)")
	flags.String("clock-pin", "GPIO17", "Clock pin name (periph)")
	flags.String("data-pin", "GPIO27", "Data pin name (periph)")
	flags.String("write-pin", "", "Write pin name, empty for read-only (periph)")
	flags.StringP("port", "p", "", "Serial port device (serial)")
	flags.IntP("baud", "b", 115200, "Baud rate (serial)")

	// Decoder options
	flags.Bool("write", false, "Allow sending keys to the panel")
	flags.Bool("hide-digits", false, "Mask keypad digits in output")
	flags.Bool("redundant", false, "Report repeated panel frames")
	flags.Bool("device-data", false, "Capture keypad and module replies")
	flags.Bool("trailing-bits", false, "Show bits past the last full byte")

	// Logging
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "console", "Log format: console or json")
	flags.String("log-file", "", "Also log to this file, rotated")

	for key, name := range map[string]string{
		"board.type":                   "board",
		"board.chip":                   "chip",
		"board.clockLine":              "clock-line",
		"board.dataLine":               "data-line",
		"board.writeLine":              "write-line",
		"board.clockPin":               "clock-pin",
		"board.dataPin":                "data-pin",
		"board.writePin":               "write-pin",
		"serial.port":                  "port",
		"serial.baud":                  "baud",
		"decoder.writeEnabled":         "write",
		"decoder.hideDigits":           "hide-digits",
		"decoder.processRedundantData": "redundant",
		"decoder.processDeviceData":    "device-data",
		"decoder.showTrailingBits":     "trailing-bits",
		"logging.level":                "log-level",
		"logging.format":               "log-format",
		"logging.file.filename":        "log-file",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
