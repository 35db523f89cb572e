// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Thermoquad/keybusstat/internal/config"
	"github.com/Thermoquad/keybusstat/pkg/keybus"
	"github.com/spf13/cobra"
)

var replayFormat string

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Decode a CBOR capture recorded with monitor --format cbor",
	Long: `Decode a capture file frame by frame with the current decoder options.

Use --format binary to turn a recording into capture lines.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVarP(&replayFormat, "format", "f", "text", "Output format: text or binary")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}
	defer f.Close()

	c, err := newReplayCapture(appConfig)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	p, err := newPrinter(out, replayFormat, c.KB.Formatter())
	if err != nil {
		return err
	}

	n, err := replay(keybus.NewRecordReader(f), c, p.handle)
	if err != nil {
		return err
	}
	if p.err != nil {
		return fmt.Errorf("failed to write output: %w", p.err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "\nReplayed %d records\n%s", n, c.KB.Stats.String())
	return nil
}

// newReplayCapture builds a board-less decoder whose clock follows the
// record timestamps
func newReplayCapture(cfg *config.Config) (*Capture, error) {
	kcfg := decoderConfig(cfg, logger)
	kcfg.WriteEnabled = false
	kb, err := keybus.New(kcfg)
	if err != nil {
		return nil, err
	}
	return &Capture{KB: kb, Info: "replay", log: logger}, nil
}

// replay feeds every record through the decoder, polling after each one so
// the queues never fill
func replay(r *keybus.RecordReader, c *Capture, emit func(Event)) (int, error) {
	var at time.Duration
	c.now = func() time.Duration { return at }

	n := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("record %d: %w", n+1, err)
		}
		at = time.Duration(rec.Time) * time.Microsecond

		switch rec.Dir {
		case keybus.DirectionPanel:
			frame, err := rec.Frame()
			if err != nil {
				return n, fmt.Errorf("record %d: %w", n+1, err)
			}
			if err := c.KB.Feed(frame); err != nil {
				return n, err
			}
		case keybus.DirectionDevice:
			frame, err := rec.DeviceFrame()
			if err != nil {
				return n, fmt.Errorf("record %d: %w", n+1, err)
			}
			if err := c.KB.FeedDevice(frame); err != nil {
				return n, err
			}
		default:
			return n, fmt.Errorf("record %d: unknown direction %d", n+1, rec.Dir)
		}

		n++
		c.Poll(emit)
	}
}
