// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/Thermoquad/keybusstat/pkg/keybus"
	"go.uber.org/zap"
)

// A capture microcontroller prints one frame per line in the binary form
// keybus.FormatBinary produces. Device replies are prefixed with "K:" and
// panel frames may be prefixed with "P:". Lines starting with '#' are
// comments.
const (
	feedPanelPrefix  = "P:"
	feedDevicePrefix = "K:"
)

// feedLine is one parsed capture line
type feedLine struct {
	device bool
	frame  keybus.Frame
}

// parseFeedLine parses a capture line. ok is false for blank and comment
// lines.
func parseFeedLine(line string) (fl feedLine, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return fl, false, nil
	}

	switch {
	case strings.HasPrefix(line, feedDevicePrefix):
		fl.device = true
		line = line[len(feedDevicePrefix):]
	case strings.HasPrefix(line, feedPanelPrefix):
		line = line[len(feedPanelPrefix):]
	}

	f, err := keybus.ParseBinary(line)
	if err != nil {
		return fl, false, err
	}
	fl.frame = f
	return fl, true, nil
}

// runFeed reads capture lines until r fails. Device replies are tagged with
// the command of the panel frame before them.
func runFeed(r io.Reader, kb *keybus.Interface, log *zap.Logger) error {
	scanner := bufio.NewScanner(r)
	var panelCmd byte
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		fl, ok, err := parseFeedLine(scanner.Text())
		if err != nil {
			log.Debug("skipping capture line", zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		if fl.device {
			err = kb.FeedDevice(keybus.DeviceFrame{Frame: fl.frame, Panel: panelCmd})
		} else {
			panelCmd = fl.frame.Command()
			err = kb.Feed(fl.frame)
		}
		if err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read capture: %w", err)
	}
	return io.EOF
}
