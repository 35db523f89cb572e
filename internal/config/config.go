// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// BoardConfig selects and wires the bus binding
type BoardConfig struct {
	Type      string `mapstructure:"type"` // gpiod, periph, sim or serial
	Chip      string `mapstructure:"chip"`
	ClockLine int    `mapstructure:"clockLine"`
	DataLine  int    `mapstructure:"dataLine"`
	WriteLine int    `mapstructure:"writeLine"` // -1 for read-only
	ClockPin  string `mapstructure:"clockPin"`
	DataPin   string `mapstructure:"dataPin"`
	WritePin  string `mapstructure:"writePin"`
}

// SerialConfig configures a serial capture feed
type SerialConfig struct {
	Port string `mapstructure:"port"`
	Baud int    `mapstructure:"baud"`
}

// DecoderConfig mirrors keybus.Config options
type DecoderConfig struct {
	WriteEnabled         bool `mapstructure:"writeEnabled"`
	HideDigits           bool `mapstructure:"hideDigits"`
	ProcessRedundantData bool `mapstructure:"processRedundantData"`
	ProcessDeviceData    bool `mapstructure:"processDeviceData"`
	ShowTrailingBits     bool `mapstructure:"showTrailingBits"`
	// RedundantSpan maps a command ("0xA5") to the number of leading bytes
	// compared when suppressing repeats
	RedundantSpan map[string]int `mapstructure:"redundantSpan"`
}

// LumberjackConfig configures log file rotation
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig configures log level and outputs
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// Config is the top-level configuration
type Config struct {
	Board   BoardConfig   `mapstructure:"board"`
	Serial  SerialConfig  `mapstructure:"serial"`
	Decoder DecoderConfig `mapstructure:"decoder"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Load reads configuration from an optional file and KEYBUS_* environment
// variables. Keys already bound on v (e.g. to command flags) take part too.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/keybusstat")
		v.SetConfigName("keybusstat")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	// KEYBUS_BOARD_TYPE overrides board.type
	v.SetEnvPrefix("KEYBUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Running without a config file is fine
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("board.type", "sim")
	v.SetDefault("board.chip", "gpiochip0")
	v.SetDefault("board.clockLine", 17)
	v.SetDefault("board.dataLine", 27)
	v.SetDefault("board.writeLine", -1)
	v.SetDefault("board.clockPin", "GPIO17")
	v.SetDefault("board.dataPin", "GPIO27")
	v.SetDefault("board.writePin", "")

	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud", 115200)

	v.SetDefault("decoder.writeEnabled", false)
	v.SetDefault("decoder.hideDigits", false)
	v.SetDefault("decoder.processRedundantData", false)
	v.SetDefault("decoder.processDeviceData", false)
	v.SetDefault("decoder.showTrailingBits", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 10)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 28)
	v.SetDefault("logging.file.compress", false)
}
