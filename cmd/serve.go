// Copyright 2025 The quicd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/quicd/quicd/confengine"
	"github.com/quicd/quicd/dcmap"
	"github.com/quicd/quicd/internal/sigs"
	"github.com/quicd/quicd/logger"
	"github.com/quicd/quicd/metricstore"
	"github.com/quicd/quicd/router"
	"github.com/quicd/quicd/server"
	"github.com/quicd/quicd/subscriber"
)

// dcMapConfig is the "dcMap" section of the endpoint's configuration
// file: shard count and the cleaner's retention policy (spec.md
// section 4.O).
type dcMapConfig struct {
	Shards           int           `config:"shards"`
	RetentionSeconds int64         `config:"retentionSeconds"`
	MaxIdleCycles    int           `config:"maxIdleCycles"`
	CleanerInterval  time.Duration `config:"cleanerInterval"`
}

func defaultDCMapConfig() dcMapConfig {
	return dcMapConfig{Shards: 16, RetentionSeconds: 3600, MaxIdleCycles: 4, CleanerInterval: 30 * time.Second}
}

// serveComponents bundles the long-running ambient services a quicd
// process hosts alongside its (out of scope here) socket I/O loop:
// the debug/metrics surface, the dc path-secret map and its cleaner,
// and the metric collector draining connection events.
type serveComponents struct {
	events     *subscriber.Broker
	dcMap      *dcmap.Map
	router     *router.Router
	debugSrv   *server.Server
	metrics    *metricstore.Store
	collector  *metricstore.Collector
	cleanerInt time.Duration
	stop       chan struct{}
}

func newServeComponents(cfg *confengine.Config) (*serveComponents, error) {
	events := subscriber.NewBroker()

	dcCfg := defaultDCMapConfig()
	if cfg.Has("dcMap") {
		if err := cfg.UnpackChild("dcMap", &dcCfg); err != nil {
			return nil, fmt.Errorf("dcMap config: %w", err)
		}
	}
	dcMap := dcmap.New(dcCfg.Shards, dcCfg.RetentionSeconds, dcCfg.MaxIdleCycles, events)

	debugSrv, err := server.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	metrics, err := metricstore.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("metricsStorage config: %w", err)
	}

	var collector *metricstore.Collector
	if metrics != nil {
		collector = metricstore.NewCollector(metrics, events, 256)
	}

	r := router.New(8, router.DefaultTagLength, dcMap, nil)

	return &serveComponents{
		events:     events,
		dcMap:      dcMap,
		router:     r,
		debugSrv:   debugSrv,
		metrics:    metrics,
		collector:  collector,
		cleanerInt: dcCfg.CleanerInterval,
		stop:       make(chan struct{}),
	}, nil
}

func (s *serveComponents) Start() {
	if s.debugSrv != nil {
		go func() {
			if err := s.debugSrv.ListenAndServe(); err != nil {
				logger.Errorf("debug server stopped: %v", err)
			}
		}()
	}
	if s.collector != nil {
		go s.collector.Run()
	}
	go s.runCleaner()
}

func (s *serveComponents) runCleaner() {
	interval := s.cleanerInt
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			retired := s.dcMap.RunCleanerOnce()
			if len(retired) > 0 {
				logger.Debugf("dc map cleaner retired %d entries", len(retired))
			}
		case <-s.stop:
			return
		}
	}
}

func (s *serveComponents) Stop() {
	close(s.stop)
	if s.collector != nil {
		s.collector.Stop(s.events)
	}
	if s.metrics != nil {
		s.metrics.Close()
	}
	if s.debugSrv != nil {
		_ = s.debugSrv.Close()
	}
}

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dc map cleaner, metric collector and debug surface",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := confengine.LoadConfigPath(serveConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}

		comps, err := newServeComponents(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
			os.Exit(1)
		}
		comps.Start()

		for {
			select {
			case <-sigs.Terminate():
				comps.Stop()
				return

			case <-sigs.Reload():
				reloaded, err := confengine.LoadConfigPath(serveConfigPath)
				if err != nil {
					logger.Errorf("failed to reload config: %v", err)
					continue
				}
				comps.Stop()
				comps, err = newServeComponents(reloaded)
				if err != nil {
					logger.Errorf("failed to rebuild components on reload: %v", err)
					return
				}
				comps.Start()
			}
		}
	},
	Example: "# quicd serve --config quicd.yaml",
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "quicd.yaml", "Configuration file path")
	rootCmd.AddCommand(serveCmd)
}
