// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build linux

package cmd

import (
	"github.com/Thermoquad/keybusstat/internal/config"
	"github.com/Thermoquad/keybusstat/pkg/keybus"
	"github.com/Thermoquad/keybusstat/pkg/keybus/gpiodboard"
)

func openGPIOD(cfg config.BoardConfig) (keybus.Board, error) {
	return gpiodboard.Open(gpiodboard.Config{
		Chip:  cfg.Chip,
		Clock: cfg.ClockLine,
		Data:  cfg.DataLine,
		Write: cfg.WriteLine,
	})
}
