package rag_http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"rag-chat/internal/adapter/rag_http/openapi"
	"rag-chat/internal/domain"
	"rag-chat/internal/infra/logger"
	"rag-chat/internal/usecase"
)

const emptyMessageDetail = "Message must not be empty"

// ReadinessCheck reports whether a dependency is reachable.
type ReadinessCheck func(ctx context.Context) error

type Handler struct {
	chat      usecase.ChatUsecase
	readiness ReadinessCheck
	logger    *slog.Logger
}

// NewHandler creates the HTTP handler. readiness may be nil when the service
// has no dependency worth probing.
func NewHandler(chat usecase.ChatUsecase, readiness ReadinessCheck, logger *slog.Logger) *Handler {
	return &Handler{
		chat:      chat,
		readiness: readiness,
		logger:    logger,
	}
}

// Chat streams the answer to a chat message
// (POST /chat)
func (h *Handler) Chat(c echo.Context) error {
	var req openapi.ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, openapi.Detail{Detail: "invalid request"})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.JSON(http.StatusBadRequest, openapi.Detail{Detail: emptyMessageDetail})
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	if id := requestID(c); id != "" {
		ctx = logger.WithRequestID(ctx, id)
	}

	events, err := h.chat.Chat(ctx, req.Message)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyQuery) {
			return c.JSON(http.StatusBadRequest, openapi.Detail{Detail: emptyMessageDetail})
		}
		h.logger.ErrorContext(ctx, "chat_start_failed", slog.String("error", err.Error()))
		return c.JSON(http.StatusInternalServerError, openapi.Detail{Detail: usecase.InternalErrorMessage})
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set(echo.HeaderConnection, "keep-alive")
	resp.Header().Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	for event := range events {
		chunk, err := event.FlatText()
		if err != nil {
			h.logger.ErrorContext(ctx, "chat_event_render_failed", slog.String("error", err.Error()))
			continue
		}
		if chunk == "" {
			continue
		}
		if _, err := resp.Write([]byte(chunk)); err != nil {
			// client went away; cancelling stops the pipeline
			h.logger.InfoContext(ctx, "chat_stream_client_gone", slog.String("error", err.Error()))
			return nil
		}
		resp.Flush()
	}
	return nil
}

// requestID returns the id set by the RequestID middleware, or the one the
// client sent.
func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}

// Health
// (GET /health)
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, openapi.Status{Status: "ok", Detail: "Service is healthy"})
}

// Liveness
// (GET /liveness)
func (h *Handler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, openapi.Status{Status: "alive", Detail: "Service is live"})
}

// Readiness probes the configured dependencies
// (GET /readyz)
func (h *Handler) Readiness(c echo.Context) error {
	if h.readiness != nil {
		if err := h.readiness(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, openapi.Status{Status: "unavailable", Detail: err.Error()})
		}
	}
	return c.JSON(http.StatusOK, openapi.Status{Status: "ready"})
}
