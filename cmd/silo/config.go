// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"os"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v3"

	"github.com/silo-farm/silo/silo"
)

// Config is the ledger configuration file.
type Config struct {
	// CycleLength is the number of ticks a funding event streams over.
	CycleLength uint64 `yaml:"cycleLength"`
	// Genesis is the unix time of tick zero.
	Genesis int64 `yaml:"genesis"`
	// TickInterval is the tick duration in seconds.
	TickInterval uint64 `yaml:"tickInterval"`
	// Pools is the static weight table pools register against.
	Pools map[string]uint64 `yaml:"pools"`
	// RoleTokens maps bearer tokens to role names.
	RoleTokens map[string]string `yaml:"roleTokens"`
	// StakerTokens maps bearer tokens to the staker they may claim for.
	StakerTokens map[string]string `yaml:"stakerTokens"`
}

func loadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.WithMessage(err, "open config")
	}
	defer file.Close()

	cfg := &Config{
		CycleLength:  silo.DefaultCycleLength,
		TickInterval: silo.TickInterval,
	}
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, errors.WithMessage(err, "parse config")
	}

	if cfg.CycleLength == 0 {
		return nil, errors.New("config: cycleLength must be positive")
	}
	if cfg.TickInterval == 0 {
		return nil, errors.New("config: tickInterval must be positive")
	}
	return cfg, nil
}

func (c *Config) poolWeights() map[silo.PoolID]uint64 {
	weights := make(map[silo.PoolID]uint64, len(c.Pools))
	for id, w := range c.Pools {
		weights[silo.PoolID(id)] = w
	}
	return weights
}
