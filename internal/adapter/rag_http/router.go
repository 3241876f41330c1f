package rag_http

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

// RouterConfig configures the HTTP middleware stack.
type RouterConfig struct {
	ServiceName  string
	AllowOrigins []string
}

// NewRouter builds the echo instance serving the chat API.
func NewRouter(h *Handler, doc *openapi3.T, cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"*"},
		AllowCredentials: true,
	}))
	if cfg.ServiceName != "" {
		e.Use(otelecho.Middleware(cfg.ServiceName))
	}
	e.Use(RequestValidator(doc))

	e.POST("/chat", h.Chat)
	e.GET("/health", h.Health)
	e.GET("/liveness", h.Liveness)
	e.GET("/readyz", h.Readiness)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/openapi.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, doc)
	})

	return e
}
