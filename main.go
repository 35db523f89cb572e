// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// keybusstat - DSC Keybus Monitor
//
// A CLI tool for decoding DSC alarm panel Keybus traffic and sending keys as a
// virtual keypad.

package main

import (
	"os"

	"github.com/Thermoquad/keybusstat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
