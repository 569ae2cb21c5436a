package ops

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"court-desk/logging"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes /health and /metrics for the bot process.
type Server struct {
	addr string
	e    *echo.Echo
	db   Pinger
}

func NewServer(addr string, db Pinger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{addr: addr, e: e, db: db}

	e.GET("/health", s.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return s
}

func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Health(c echo.Context) error {
	if s.db != nil {
		if err := s.db.Ping(c.Request().Context()); err != nil {
			return c.String(http.StatusServiceUnavailable, "redis: "+err.Error())
		}
	}
	return c.String(http.StatusOK, "ok")
}

func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		if err := s.e.Shutdown(context.Background()); err != nil {
			logging.FromContext(ctx).WithError(err).Error("failed to shutdown ops server")
		}
	}()
	logging.FromContext(ctx).WithField("addr", s.addr).Info("ops server listening")
	if err := s.e.Start(s.addr); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
