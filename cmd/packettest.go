// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test wiring by waiting for a valid panel frame",
	Long: `Wait for a panel frame that passes the checksum until timeout.

Frames failing the checksum are counted but do not end the test, so this
checks both that the clock and data lines are wired and that they are not
swapped.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	c, err := OpenCapture(appConfig, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer c.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "keybusstat - Packet Test\n")
	fmt.Fprintf(out, "Source: %s\n", c.Info)
	fmt.Fprintf(out, "Timeout: %d seconds\n", packetTestTimeout)
	fmt.Fprintf(out, "Waiting for valid panel frame...\n\n")

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(packetTestTimeout)*time.Second)
	defer cancel()

	if err := c.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	ev, ok := waitForFrame(ctx, c)
	if !ok {
		fmt.Fprintf(out, "Timeout: no valid frame received in %d seconds", packetTestTimeout)
		if n := c.KB.Stats.ChecksumErrors; n > 0 {
			fmt.Fprintf(out, " (%d failed the checksum)", n)
		}
		fmt.Fprintln(out)
		c.Close()
		os.Exit(1)
	}

	fmt.Fprintf(out, "Frame received: %s\n", c.KB.Formatter().PanelMessage(&ev.Panel))
	return nil
}

// waitForFrame polls until a panel frame is decoded or ctx is done
func waitForFrame(ctx context.Context, c *Capture) (Event, bool) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var got Event
	found := false
	emit := func(ev Event) {
		if ev.Kind == EventPanel && !found {
			got, found = ev, true
		}
	}

	for !found {
		select {
		case <-ctx.Done():
			return got, false
		case <-ticker.C:
			c.Poll(emit)
		}
	}
	return got, true
}
