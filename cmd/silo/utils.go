// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"log/slog"
	"os"
	"path/filepath"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/silo-farm/silo/log"
)

func initLogger(ctx *cli.Context) {
	log.InitLogger(logLevel(ctx.Uint64(verbosityFlag.Name)), ctx.Bool(jsonLogsFlag.Name))
}

func logLevel(verbosity uint64) slog.Level {
	switch verbosity {
	case 0:
		return slog.LevelError
	case 1:
		return slog.LevelWarn
	case 2, 3:
		return slog.LevelInfo
	case 4:
		return slog.LevelDebug
	default:
		return log.LevelTrace
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".silo"
	}
	return filepath.Join(home, ".silo")
}
