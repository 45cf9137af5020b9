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

// Package server is the process's debug/metrics HTTP surface: a
// gorilla/mux router exposing Prometheus scrape and, optionally,
// pprof profiling endpoints (spec.md section 10.5).
package server

import (
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quicd/quicd/confengine"
	"github.com/quicd/quicd/logger"
)

// Config is the server section of the endpoint's configuration file.
type Config struct {
	Enabled bool          `config:"enabled"`
	Address string        `config:"address"`
	Pprof   bool          `config:"pprof"`
	Timeout time.Duration `config:"timeout"`
}

// Server is the debug/metrics HTTP listener. It is nil when disabled;
// callers must check before starting it.
type Server struct {
	config Config
	router *mux.Router
	server *http.Server
}

// New decodes the "server" config section and constructs a Server. It
// returns a nil Server (not an error) when the section is disabled,
// matching this repository's "construct, then check for nil" idiom.
func New(conf *confengine.Config) (*Server, error) {
	var config Config
	if err := conf.UnpackChild("server", &config); err != nil {
		return nil, err
	}
	if !config.Enabled {
		return nil, nil
	}

	router := mux.NewRouter()
	s := &Server{
		config: config,
		router: router,
		server: &http.Server{
			Handler:      router,
			ReadTimeout:  config.Timeout,
			WriteTimeout: config.Timeout,
		},
	}
	s.RegisterGetRoute("/metrics", promhttp.Handler().ServeHTTP)
	if config.Pprof {
		s.registerPprofRoutes()
	}
	return s, nil
}

// ListenAndServe blocks serving the debug surface until the listener
// errors or is closed.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	logger.Infof("debug server listening on %s", s.config.Address)
	return s.server.Serve(l)
}

// Close shuts the listener down immediately, dropping in-flight scrapes.
func (s *Server) Close() error {
	return s.server.Close()
}

// RegisterGetRoute adds a GET handler; the /metrics route and the
// optional pprof routes are registered through it.
func (s *Server) RegisterGetRoute(path string, f http.HandlerFunc) {
	s.router.Methods(http.MethodGet).Path(path).HandlerFunc(f)
}

// RegisterPostRoute adds a POST handler, e.g. for a forced
// dc-map-cleaner trigger during testing.
func (s *Server) RegisterPostRoute(path string, f http.HandlerFunc) {
	s.router.Methods(http.MethodPost).Path(path).HandlerFunc(f)
}

func (s *Server) registerPprofRoutes() {
	s.RegisterGetRoute("/debug/pprof/cmdline", pprof.Cmdline)
	s.RegisterGetRoute("/debug/pprof/profile", pprof.Profile)
	s.RegisterGetRoute("/debug/pprof/symbol", pprof.Symbol)
	s.RegisterGetRoute("/debug/pprof/trace", pprof.Trace)
	s.RegisterGetRoute("/debug/pprof/{other}", pprof.Index)
}
