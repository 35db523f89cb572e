// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect corrupted frames and overflows",
	Long: `Track frame integrity on the bus with statistics.

This command reports:
  - Frames failing the checksum, with the expected and received checksum
  - Frames longer than the capture buffer (data overflow)
  - Frames dropped because the queue was full (buffer overflow)
  - Statistics and trends (frame rate, error rate, success rate)

By default, only errors are displayed. Use --show-all to display valid frames too.

Periodic statistics summaries are displayed at a configurable interval.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	c, err := OpenCapture(appConfig, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "keybusstat - Error Detection Mode\n")
	fmt.Fprintf(out, "Source: %s\n", c.Info)
	fmt.Fprintf(out, "Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Fprintf(out, "Mode: All frames\n")
	} else {
		fmt.Fprintf(out, "Mode: Errors only\n")
	}
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	return detectErrors(ctx, c, out, time.Duration(statsInterval)*time.Second)
}

// detectErrors polls the capture, printing integrity problems as they happen
// and statistics every interval
func detectErrors(ctx context.Context, c *Capture, out io.Writer, interval time.Duration) error {
	p, err := newPrinter(out, "text", c.KB.Formatter())
	if err != nil {
		return err
	}
	emit := func(ev Event) {
		switch ev.Kind {
		case EventRejected, EventOverflow:
			p.handle(ev)
		case EventPanel, EventDevice:
			if showAll {
				p.handle(ev)
			}
		}
	}

	if err := c.Start(ctx); err != nil {
		return err
	}

	poll := time.NewTicker(pollInterval)
	defer poll.Stop()
	// Statistics ticker
	statsTicker := time.NewTicker(interval)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			fmt.Fprint(out, c.KB.Stats.String())
			return p.err
		case <-poll.C:
			c.Poll(emit)
		case <-statsTicker.C:
			fmt.Fprintln(out)
			fmt.Fprint(out, c.KB.Stats.String())
			fmt.Fprintln(out)
		}
	}
}
