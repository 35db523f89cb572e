// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	writeTimeout time.Duration
	writeShow    bool
)

var writeCmd = &cobra.Command{
	Use:   "write <keys>",
	Short: "Send keys to the panel as a virtual keypad",
	Long: `Send up to 16 keys to the panel and wait until they are on the bus.

Keys: 0-9 * # plus s (arm stay), w (arm away), c (chime), r (reset),
x (exit), and F, A, P for the fire, aux and panic alarm keys.

Needs a board with a write line (--write-line or --write-pin). The simulated
board always has one.`,
	Args: cobra.ExactArgs(1),
	RunE: runWrite,
}

func init() {
	writeCmd.Flags().DurationVar(&writeTimeout, "timeout", 10*time.Second, "Give up if the keys are not sent by then")
	writeCmd.Flags().BoolVar(&writeShow, "show", false, "Print decoded frames while waiting")
	rootCmd.AddCommand(writeCmd)
}

func runWrite(cmd *cobra.Command, args []string) error {
	keys := args[0]

	cfg := *appConfig
	cfg.Decoder.WriteEnabled = true
	if cfg.Board.Type == "serial" {
		return fmt.Errorf("the serial source is read-only")
	}

	c, err := OpenCapture(&cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	out := cmd.OutOrStdout()
	p, err := newPrinter(out, "text", c.KB.Formatter())
	if err != nil {
		return err
	}
	emit := func(ev Event) {
		if writeShow {
			p.handle(ev)
		}
	}

	if err := c.Start(context.Background()); err != nil {
		return err
	}

	if err := c.KB.Write(keys); err != nil {
		return fmt.Errorf("failed to stage keys: %w", err)
	}
	logger.Info("keys staged", zap.String("keys", c.KB.Formatter().Keys(keys)), zap.String("source", c.Info))

	ctx, cancel := context.WithTimeout(cmd.Context(), writeTimeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for c.KB.WritePending() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("keys not sent within %v", writeTimeout)
		case <-ticker.C:
			c.Poll(emit)
		}
	}

	fmt.Fprintf(out, "Sent %s\n", c.KB.Formatter().Keys(keys))
	return nil
}
