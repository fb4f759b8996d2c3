// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/gzip"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/gantry-core/pkg/constants"
	"github.com/united-manufacturing-hub/gantry-core/pkg/fsm/gantry"
	"github.com/united-manufacturing-hub/gantry-core/pkg/logger"
	"github.com/united-manufacturing-hub/gantry-core/pkg/metrics"
	"github.com/united-manufacturing-hub/gantry-core/pkg/models"
)

// Controller is the part of the sequence controller the HTTP layer drives.
type Controller interface {
	Start(ctx context.Context) error
	RequestHome(ctx context.Context) error
	Reset(ctx context.Context) error

	GetCurrentPosition() models.Position
	Status() gantry.Status

	GetHomePosition() models.HomePosition
	SetHomePosition(home models.HomePosition)
	NextSource() models.CubeStartPosition
	SetNextSource(source models.CubeStartPosition)
	NextDestination() models.CubeDestinationPosition
	SetNextDestination(destination models.CubeDestinationPosition)
}

// Streams hands out subscriptions to the encoded position/status stream.
type Streams interface {
	Subscribe(buffer int) (<-chan []byte, func())
}

type ServerConfig struct {
	Port  int  `yaml:"port"`
	Debug bool `yaml:"debug"`
	// MaxGoroutines fails the liveness check when exceeded.
	MaxGoroutines int `yaml:"maxGoroutines"`
}

func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:          constants.DefaultHTTPPort,
		MaxGoroutines: 10000,
	}
}

func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// Server exposes the controller over HTTP.
type Server struct {
	controller Controller
	streams    Streams
	health     healthcheck.Handler
	router     *gin.Engine
	upgrader   websocket.Upgrader
	server     *http.Server
	config     *ServerConfig
	logger     *zap.SugaredLogger

	// done is closed by Stop so that open streams end with the server.
	done     chan struct{}
	stopOnce sync.Once
}

// NewServer creates the server and its routes. streams may be nil, in which
// case the stream endpoint answers 503.
func NewServer(controller Controller, streams Streams, config *ServerConfig, log *zap.SugaredLogger) (*Server, error) {
	if config == nil {
		config = DefaultServerConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}
	if log == nil {
		log = logger.For(logger.ComponentAPIServer)
	}

	s := &Server{
		controller: controller,
		streams:    streams,
		health:     healthcheck.NewHandler(),
		config:     config,
		logger:     log,
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	if config.MaxGoroutines > 0 {
		s.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(config.MaxGoroutines))
	}
	s.health.AddReadinessCheck("controller-not-in-fault", func() error {
		if status := controller.Status(); status.Fault {
			return errors.New("controller is in fault state, reset required")
		}
		return nil
	})

	metrics.InitErrorCounter(metrics.ComponentAPIServer, "api")
	s.router = s.setupRouter()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) setupRouter() *gin.Engine {
	if s.config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	zapLogger := s.logger.Desugar()
	router.Use(ginzap.Ginzap(zapLogger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(zapLogger, true))

	router.GET("/live", gin.WrapF(s.health.LiveEndpoint))
	router.GET("/ready", gin.WrapF(s.health.ReadyEndpoint))

	v1 := router.Group("/api/v1")
	v1.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/stream"})))
	{
		v1.GET("/status", s.getStatus)
		v1.GET("/position", s.getPosition)

		v1.POST("/start", s.postStart)
		v1.POST("/home", s.postHome)
		v1.POST("/reset", s.postReset)

		v1.GET("/home-position", s.getHomePosition)
		v1.PUT("/home-position", s.putHomePosition)
		v1.GET("/cube-start-position", s.getCubeStartPosition)
		v1.PUT("/cube-start-position", s.putCubeStartPosition)
		v1.GET("/cube-destination-position", s.getCubeDestinationPosition)
		v1.PUT("/cube-destination-position", s.putCubeDestinationPosition)

		v1.GET("/stream", s.getStream)
	}

	return router
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Infow("Starting API server", "port", s.config.Port, "debug", s.config.Debug)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		metrics.IncErrorCount(metrics.ComponentAPIServer, "api")
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the server and ends open streams.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })

	s.logger.Info("Stopping API server")
	return s.server.Shutdown(ctx)
}
