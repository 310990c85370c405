package server

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/parloteam/parlo/internal/auth"
	"github.com/parloteam/parlo/internal/completion"
	"github.com/parloteam/parlo/internal/handlers"
	"github.com/parloteam/parlo/internal/ingress"
)

type Server struct {
	echo *echo.Echo
	addr string
}

func NewServer(addr string, jwtSecret string, pingHandler *handlers.PingHandler, metricsHandler *handlers.MetricsHandler, ingressHandler *ingress.Handler, completionHandler *completion.Handler) *Server {
	if addr == "" {
		addr = ":8080"
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLogger())
	// The webhook authenticates with its own signature scheme, not JWT.
	e.Use(auth.JWTMiddleware(jwtSecret, func(c echo.Context) bool {
		return shouldSkipJWT(c.Request().URL.Path)
	}))

	if pingHandler != nil {
		pingHandler.Register(e)
	}
	if metricsHandler != nil {
		metricsHandler.Register(e)
	}
	if ingressHandler != nil {
		ingressHandler.Register(e)
	}
	if completionHandler != nil {
		completionHandler.Register(e)
	}

	return &Server{
		echo: e,
		addr: addr,
	}
}

func shouldSkipJWT(path string) bool {
	switch path {
	case "/ping", "/health", "/webhook", "/metrics":
		return true
	}
	return false
}

func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}
