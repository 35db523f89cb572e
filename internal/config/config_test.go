// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(nil, "")
	require.NoError(t, err)

	assert.Equal(t, "sim", cfg.Board.Type)
	assert.Equal(t, -1, cfg.Board.WriteLine)
	assert.Equal(t, 115200, cfg.Serial.Baud)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Decoder.WriteEnabled)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keybus.yaml")
	data := []byte(`
board:
  type: gpiod
  chip: gpiochip4
  clockLine: 5
  writeLine: 6
decoder:
  processDeviceData: true
  hideDigits: true
  redundantSpan:
    "0xA5": 6
logging:
  level: debug
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(nil, path)
	require.NoError(t, err)

	assert.Equal(t, "gpiod", cfg.Board.Type)
	assert.Equal(t, "gpiochip4", cfg.Board.Chip)
	assert.Equal(t, 5, cfg.Board.ClockLine)
	assert.Equal(t, 27, cfg.Board.DataLine)
	assert.Equal(t, 6, cfg.Board.WriteLine)
	assert.True(t, cfg.Decoder.ProcessDeviceData)
	assert.True(t, cfg.Decoder.HideDigits)
	assert.Equal(t, map[string]int{"0xa5": 6}, cfg.Decoder.RedundantSpan)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("KEYBUS_BOARD_TYPE", "periph")
	t.Setenv("KEYBUS_SERIAL_BAUD", "57600")

	cfg, err := Load(nil, "")
	require.NoError(t, err)

	assert.Equal(t, "periph", cfg.Board.Type)
	assert.Equal(t, 57600, cfg.Serial.Baud)
}

func TestLoadBoundFlagValue(t *testing.T) {
	chdir(t, t.TempDir())

	v := viper.New()
	v.Set("decoder.writeEnabled", true)

	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.True(t, cfg.Decoder.WriteEnabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(nil, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test,
// equivalent to testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
