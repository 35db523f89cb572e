// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var (
	monitorFormat string
	monitorOutput string
	monitorTUI    bool
	monitorStats  bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Decode the bus and print panel and keypad messages",
	Long: `Continuously decode Keybus frames from the configured capture source.

Output formats:
  text:    panel and keypad messages with every status and zone change
  binary:  one line per frame as seen on the wire, readable by --board serial
  cbor:    frame records for the replay command

On a terminal the text format opens an interactive status view. Use --tui=false
for a plain log.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVarP(&monitorFormat, "format", "f", "text", "Output format: text, binary or cbor")
	monitorCmd.Flags().StringVarP(&monitorOutput, "output", "o", "", "Write output to a file instead of stdout")
	monitorCmd.Flags().BoolVar(&monitorTUI, "tui", false, "Interactive status view (default on a terminal)")
	monitorCmd.Flags().BoolVar(&monitorStats, "stats", true, "Print statistics on exit")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	useTUI := monitorTUI
	if !cmd.Flags().Changed("tui") {
		useTUI = monitorFormat == "text" && monitorOutput == "" && term.IsTerminal(int(os.Stdout.Fd()))
	}

	c, err := OpenCapture(appConfig, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if useTUI {
		return runTUI(ctx, c, appConfig.Decoder.WriteEnabled)
	}

	var out io.Writer = cmd.OutOrStdout()
	if monitorOutput != "" {
		f, err := os.Create(monitorOutput)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", monitorOutput, err)
		}
		defer f.Close()
		out = f
	}

	p, err := newPrinter(out, monitorFormat, c.KB.Formatter())
	if err != nil {
		return err
	}

	logger.Info("monitoring", zap.String("source", c.Info), zap.String("format", monitorFormat))

	if err := c.Run(ctx, nil, p.handle); err != nil {
		return err
	}
	if p.err != nil {
		return fmt.Errorf("failed to write output: %w", p.err)
	}

	if monitorStats {
		fmt.Fprint(cmd.ErrOrStderr(), "\n"+c.KB.Stats.String())
	}
	return nil
}
