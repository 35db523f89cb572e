// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/Thermoquad/keybusstat/pkg/keybus"
	"github.com/spf13/cobra"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display every frame in hex and binary",
	Long: `Continuously capture and display Keybus frames as they arrive.

Every frame is shown, including repeated ones and frames failing the checksum,
with its bit count, the bytes in hex and the bits as seen on the wire. Device
replies are included when --device-data is set.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	cfg := *appConfig
	cfg.Decoder.ProcessRedundantData = true
	cfg.Decoder.ShowTrailingBits = true

	c, err := OpenCapture(&cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "keybusstat - Raw Frame Log\n")
	fmt.Fprintf(out, "Source: %s\n", c.Info)
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	return c.Run(ctx, nil, rawLogger(out, c.KB.Formatter()))
}

// rawLogger prints frames without decoding them
func rawLogger(out io.Writer, fm keybus.Formatter) func(Event) {
	return func(ev Event) {
		switch ev.Kind {
		case EventPanel:
			fmt.Fprint(out, formatRaw(ev.At.Seconds(), "Panel", &ev.Panel, fm))
		case EventRejected:
			fmt.Fprint(out, formatRaw(ev.At.Seconds(), "Panel!", &ev.Panel, fm))
		case EventDevice:
			fmt.Fprint(out, formatRaw(ev.At.Seconds(), "Device", &ev.Device.Frame, fm))
		case EventOverflow:
			fmt.Fprintf(out, "[%10.3f] [ERROR] %v\n", ev.At.Seconds(), ev.Err)
		}
	}
}

func formatRaw(at float64, source string, f *keybus.Frame, fm keybus.Formatter) string {
	return fmt.Sprintf("[%10.3f] %-6s %3d bits  %s\n             %s\n",
		at, source, f.Bits, keybus.FormatHex(f), fm.Binary(f))
}
