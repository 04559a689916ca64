package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/NeuralTrust/ReviewGuard/pkg/config"
	"github.com/NeuralTrust/ReviewGuard/pkg/version"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	HealthPath      = "/health"
	AdminHealthPath = "/__/health"
	MetricsPath     = "/metrics"
	VersionPath     = "/version"
)

// OpsServer exposes liveness and prometheus endpoints next to the consumer.
type OpsServer struct {
	config  *config.Config
	logger  *logrus.Logger
	router  *fiber.App
	metrics http.Handler
	ready   atomic.Bool
}

func NewOpsServer(cfg *config.Config, logger *logrus.Logger, metrics http.Handler) *OpsServer {
	r := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReduceMemoryUsage:     true,
		Network:               fiber.NetworkTCP,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		IdleTimeout:           60 * time.Second,
	})
	r.Server().NoDefaultServerHeader = true

	s := &OpsServer{
		config:  cfg,
		logger:  logger,
		router:  r,
		metrics: metrics,
	}
	r.Use(recover.New())
	s.setupHealthCheck()
	s.setupMetricsEndpoint()
	return s
}

// SetReady flips the health endpoints between 200 and 503.
func (s *OpsServer) SetReady(ready bool) {
	s.ready.Store(ready)
}

func (s *OpsServer) App() *fiber.App {
	return s.router
}

func (s *OpsServer) setupHealthCheck() {
	health := func(status string) fiber.Handler {
		return func(ctx *fiber.Ctx) error {
			if !s.ready.Load() {
				return ctx.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"status": "starting",
					"time":   time.Now().Format(time.RFC3339),
				})
			}
			return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
				"status": status,
				"time":   time.Now().Format(time.RFC3339),
			})
		}
	}
	s.router.Get(HealthPath, health("healthy"))
	s.router.Get(AdminHealthPath, health("ok"))
	s.router.Get(VersionPath, func(ctx *fiber.Ctx) error {
		return ctx.JSON(version.GetInfo())
	})
}

func (s *OpsServer) setupMetricsEndpoint() {
	if !s.config.Metrics.Enabled || s.metrics == nil {
		s.logger.Info("prometheus metrics are disabled by configuration")
		return
	}
	handler := fasthttpadaptor.NewFastHTTPHandler(s.metrics)
	s.router.Get(MetricsPath, func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	})
}

func (s *OpsServer) Run() error {
	addr := fmt.Sprintf(":%d", s.config.Server.MetricsPort)
	s.logger.WithField("addr", addr).Info("starting ops server")
	err := s.router.Listen(addr)
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("ops server: %w", err)
	}
	return nil
}

func (s *OpsServer) Shutdown() error {
	return s.router.ShutdownWithTimeout(5 * time.Second)
}
