// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Thermoquad/keybusstat/internal/config"
)

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "warn", Format: "console"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	require.NoError(t, logger.Sync())

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewJSONWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keybus.log")
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{
		Level:  "debug",
		Format: "json",
		File:   config.LumberjackConfig{Filename: path, MaxSizeMB: 1},
	}, &buf)
	require.NoError(t, err)

	logger.Debug("frame", zap.String("command", "STATUS"))
	require.NoError(t, logger.Sync())

	assert.Contains(t, buf.String(), `"command":"STATUS"`)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"frame"`)
}

func TestNewUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "loud"}, &buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
