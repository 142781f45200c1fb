// Copyright 2023 dtnet
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command dtnd is the delay-tolerant networking daemon. It wires the event
// bus, the persistent bundle store, the neighbor connection manager and the
// TCP convergence layer together and runs until interrupted.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dtnet/dtnd/pkg/log"
	"github.com/dtnet/dtnd/private/cla/tcpcl"
	"github.com/dtnet/dtnd/private/config"
	"github.com/dtnet/dtnd/private/connmgr"
	"github.com/dtnet/dtnd/private/event"
	"github.com/dtnet/dtnd/private/stats"
	"github.com/dtnet/dtnd/private/storage"
	"github.com/dtnet/dtnd/private/wallclock"
)

const statsInterval = time.Minute

func main() {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:           "dtnd",
		Short:         "DTN daemon",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfgPath)
		},
	}
	rootCmd.Flags().StringVar(&cfgPath, "config", "dtnd.toml", "configuration file")

	sampleCmd := &cobra.Command{
		Use:   "sample-config",
		Short: "Write a commented sample configuration to stdout",
		Run: func(cmd *cobra.Command, args []string) {
			config.Sample(os.Stdout)
		},
	}
	rootCmd.AddCommand(sampleCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Fatal:", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := log.Setup(cfg.Logging); err != nil {
		return err
	}
	defer log.Flush()
	logger := log.New("id", cfg.General.ID)
	logger.Info("Starting daemon", "local", cfg.General.LocalEID)

	clk := clock.New()
	bus := event.New()
	go bus.Run()

	store, err := storage.New(storage.Config{
		Workdir:     cfg.Storage.Workdir,
		MaxBytes:    cfg.Storage.MaxBytes,
		BufferLimit: cfg.Storage.BufferLimit,
		LocalEID:    cfg.General.LocalEID,
	}, bus)
	if err != nil {
		return err
	}
	if err := store.Start(); err != nil {
		return err
	}

	mgr := connmgr.New(connmgr.Config{
		LocalEID:    cfg.General.LocalEID,
		AutoConnect: cfg.Network.AutoConnect,
	}, bus, clk)
	mgr.Start()

	tcp := tcpcl.New(bus, store, clk)
	tcp.Start()
	mgr.AddConvergenceLayer(tcp)

	wc := wallclock.New(bus, clk)
	wc.Start()

	collector := stats.New(mgr, store, clk, statsInterval)
	collector.Start()

	if addr := cfg.Metrics.Prometheus; addr != "" {
		go func() {
			defer log.HandlePanic()
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("Serving metrics", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("Metrics server failed", "err", err)
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	s := <-sig
	logger.Info("Shutting down", "signal", s)

	collector.Close()
	wc.Close()
	tcp.Close()
	mgr.Close()
	store.Close()
	bus.Close()
	return nil
}
