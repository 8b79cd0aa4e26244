// Package config loads cmd/h2demo's YAML configuration file, mirroring
// packetd's confengine.Config wrapper around go-ucfg. Grounded on
// packetd/confengine/config.go (ucfg.Config wrapper, LoadConfigPath).
package config

import (
	"github.com/elastic/go-ucfg"
	"github.com/elastic/go-ucfg/yaml"
	"github.com/pkg/errors"
)

// Log configures internal/obslog.
type Log struct {
	Stdout     bool   `config:"stdout"`
	Level      string `config:"level"`
	Filename   string `config:"filename"`
	MaxSizeMB  int    `config:"maxSizeMB"`
	MaxAgeDays int    `config:"maxAgeDays"`
	MaxBackups int    `config:"maxBackups"`
}

// SettingsOverride carries the subset of engine.Settings a demo deployment
// may want to override from InitialSettings(); zero fields are left alone.
type SettingsOverride struct {
	InitialWindowSize    uint32 `config:"initialWindowSize"`
	MaxConcurrentStreams uint32 `config:"maxConcurrentStreams"`
	MaxFrameSize         uint32 `config:"maxFrameSize"`
}

// Config is cmd/h2demo's top-level configuration document.
type Config struct {
	// Role is "client" or "server". Role and Addr are loaded but not read by
	// the run subcommand, which always drives an in-memory client/server pair.
	Role     string           `config:"role"`
	Addr     string           `config:"addr"`
	Log      Log              `config:"log"`
	Settings SettingsOverride `config:"settings"`
}

// Load reads and unpacks the YAML document at path.
func Load(path string) (Config, error) {
	raw, err := yaml.NewConfigWithFile(path, ucfg.PathSep("."))
	if err != nil {
		return Config{}, errors.Wrapf(err, "load config %q", path)
	}
	return unpack(raw)
}

// LoadBytes unpacks an in-memory YAML document, for tests and embedders
// that don't want a file on disk.
func LoadBytes(b []byte) (Config, error) {
	raw, err := yaml.NewConfig(b)
	if err != nil {
		return Config{}, errors.Wrap(err, "parse config")
	}
	return unpack(raw)
}

func unpack(raw *ucfg.Config) (Config, error) {
	cfg := Default()
	if err := raw.Unpack(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "unpack config")
	}
	return cfg, nil
}

// Default returns the configuration cmd/h2demo runs with absent a --config
// flag: a server listening in-process, info-level stdout logging, no
// settings overrides.
func Default() Config {
	return Config{
		Role: "server",
		Addr: "pipe",
		Log: Log{
			Stdout: true,
			Level:  "info",
		},
	}
}
