// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silo-farm/silo/silo"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
cycleLength: 100
genesis: 1735689600
tickInterval: 5
pools:
  gold: 100
  silver: 200
roleTokens:
  tok-funder: funder
stakerTokens:
  tok-alice: alice
`)
	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), cfg.CycleLength)
	assert.Equal(t, int64(1735689600), cfg.Genesis)
	assert.Equal(t, uint64(5), cfg.TickInterval)
	assert.Equal(t, map[silo.PoolID]uint64{"gold": 100, "silver": 200}, cfg.poolWeights())
	assert.Equal(t, "funder", cfg.RoleTokens["tok-funder"])
	assert.Equal(t, "alice", cfg.StakerTokens["tok-alice"])
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "genesis: 0\n")
	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(silo.DefaultCycleLength), cfg.CycleLength)
	assert.Equal(t, uint64(silo.TickInterval), cfg.TickInterval)
}

func TestLoadConfigRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "cycle: 100\n")
	_, err := loadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigValidation(t *testing.T) {
	path := writeConfig(t, "cycleLength: 0\n")
	_, err := loadConfig(path)
	assert.Error(t, err)

	path = writeConfig(t, "tickInterval: 0\n")
	_, err = loadConfig(path)
	assert.Error(t, err)
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, "ERROR", logLevel(0).String())
	assert.Equal(t, "INFO", logLevel(3).String())
	assert.Equal(t, "DEBUG", logLevel(4).String())
}
