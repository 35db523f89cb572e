// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build !linux

package cmd

import (
	"errors"

	"github.com/Thermoquad/keybusstat/internal/config"
	"github.com/Thermoquad/keybusstat/pkg/keybus"
)

func openGPIOD(cfg config.BoardConfig) (keybus.Board, error) {
	return nil, errors.New("the gpiod board needs Linux, use --board periph")
}
