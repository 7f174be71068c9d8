// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/silo-farm/silo/api"
	"github.com/silo-farm/silo/farmdb"
	"github.com/silo-farm/silo/log"
	"github.com/silo-farm/silo/lvldb"
	"github.com/silo-farm/silo/metrics"
	"github.com/silo-farm/silo/node"
	"github.com/silo-farm/silo/oracle"
	"github.com/silo-farm/silo/silo"
)

var (
	version   string
	gitCommit string
	logger    = log.WithContext("pkg", "main")
)

func fullVersion() string {
	if gitCommit == "" {
		return version + "-dev"
	}
	return fmt.Sprintf("%s-%.8s", version, gitCommit)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "Silo",
		Usage:     "Pro-rata reward distribution ledger",
		Copyright: "2025 The Silo developers",
		Flags: []cli.Flag{
			configFlag,
			dataDirFlag,
			memFlag,
			apiAddrFlag,
			apiCorsFlag,
			apiTimeoutFlag,
			enableAPILogsFlag,
			pprofFlag,
			enableMetricsFlag,
			metricsAddrFlag,
			verbosityFlag,
			jsonLogsFlag,
		},
		Action: defaultAction,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()

	initLogger(ctx)

	cfgPath := ctx.String(configFlag.Name)
	if cfgPath == "" {
		return fmt.Errorf("--%s is required", configFlag.Name)
	}
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
	}

	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer func() { logger.Info("closing ledger database..."); db.Close() }()

	clock := silo.Clock{Genesis: cfg.Genesis, Interval: cfg.TickInterval}
	n, err := node.New(farmdb.New(db), oracle.NewStatic(cfg.poolWeights()), clock, cfg.CycleLength)
	if err != nil {
		return err
	}

	handler, err := api.New(n, api.Options{
		AllowedOrigins:  ctx.String(apiCorsFlag.Name),
		PprofOn:         ctx.Bool(pprofFlag.Name),
		EnableReqLogger: ctx.Bool(enableAPILogsFlag.Name),
		EnableMetrics:   ctx.Bool(enableMetricsFlag.Name),
		RoleTokens:      cfg.RoleTokens,
		StakerTokens:    cfg.StakerTokens,
	})
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(runCtx)

	apiURL, err := serveHTTP(group, groupCtx, ctx.String(apiAddrFlag.Name),
		withTimeout(handler, time.Duration(ctx.Uint64(apiTimeoutFlag.Name))*time.Millisecond))
	if err != nil {
		return err
	}

	var metricsURL string
	if ctx.Bool(enableMetricsFlag.Name) {
		if metricsURL, err = serveHTTP(group, groupCtx, ctx.String(metricsAddrFlag.Name), metrics.HTTPHandler()); err != nil {
			return err
		}
	}

	printStartupMessage(cfg, clock, apiURL, metricsURL)

	return group.Wait()
}

// serveHTTP starts an http server on addr and ties its lifetime to the group
// context.
func serveHTTP(group *errgroup.Group, ctx context.Context, addr string, handler http.Handler) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listen %v: %w", addr, err)
	}

	srv := &http.Server{Handler: handler}
	group.Go(func() error {
		if err := srv.Serve(listener); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return "http://" + listener.Addr().String() + "/", nil
}

func withTimeout(handler http.Handler, timeout time.Duration) http.Handler {
	if timeout <= 0 {
		return handler
	}
	return http.TimeoutHandler(handler, timeout, "request timeout")
}

func openDB(ctx *cli.Context) (*lvldb.Store, error) {
	if ctx.Bool(memFlag.Name) {
		return lvldb.NewMem()
	}
	dir := ctx.String(dataDirFlag.Name)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return lvldb.New(filepath.Join(dir, "ledger.db"), lvldb.Options{CacheSize: 128, OpenFilesCacheCapacity: 64})
}

func printStartupMessage(cfg *Config, clock silo.Clock, apiURL, metricsURL string) {
	fmt.Printf(`Starting Silo %v
    Cycle length  [ %v ticks ]
    Tick interval [ %vs ]
    Current tick  [ %v ]
    API portal    [ %v ]
`,
		fullVersion(),
		cfg.CycleLength,
		cfg.TickInterval,
		clock.Now(),
		apiURL)
	if metricsURL != "" {
		fmt.Printf("    Metrics       [ %v ]\n", metricsURL)
	}
}
