package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hupe1980/agentgate/gateway"
	"github.com/hupe1980/agentgate/whatsapp"
)

// BatchHandler processes one raw webhook body.
type BatchHandler interface {
	HandleBatch(ctx context.Context, raw []byte) gateway.BatchResult
}

// WebhookHandler serves the Cloud API subscription handshake and message callbacks.
type WebhookHandler struct {
	batches     BatchHandler
	verifyToken string
	appSecret   string
	logger      *slog.Logger
}

// NewWebhookHandler creates the handler. An empty appSecret disables
// payload signature checks.
func NewWebhookHandler(log *slog.Logger, batches BatchHandler, verifyToken, appSecret string) *WebhookHandler {
	return &WebhookHandler{
		batches:     batches,
		verifyToken: verifyToken,
		appSecret:   appSecret,
		logger:      log.With(slog.String("handler", "webhook")),
	}
}

// Register mounts GET and POST /webhook.
func (h *WebhookHandler) Register(e *echo.Echo) {
	e.GET("/webhook", h.Verify)
	e.POST("/webhook", h.Receive, middleware.BodyLimit("2M"))
}

// Verify echoes hub.challenge when the verify token matches, else 403.
func (h *WebhookHandler) Verify(c echo.Context) error {
	challenge, err := whatsapp.VerifyChallenge(
		c.QueryParam("hub.mode"),
		c.QueryParam("hub.verify_token"),
		c.QueryParam("hub.challenge"),
		h.verifyToken,
	)
	if err != nil {
		h.logger.Warn("webhook verification rejected", slog.String("mode", c.QueryParam("hub.mode")))
		return c.String(http.StatusForbidden, "Verification failed")
	}
	h.logger.Info("webhook verified")
	return c.String(http.StatusOK, challenge)
}

// Receive processes a message batch and reports its BatchResult. Processing
// outlives a client disconnect so accepted messages are still answered.
func (h *WebhookHandler) Receive(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read body: "+err.Error())
	}

	if h.appSecret != "" {
		if err := whatsapp.VerifySignature(body, c.Request().Header.Get(whatsapp.SignatureHeader), h.appSecret); err != nil {
			h.logger.Warn("webhook signature rejected", slog.Any("error", err))
			return c.JSON(http.StatusUnauthorized, gateway.BatchResult{Status: gateway.StatusError, Detail: err.Error()})
		}
	}

	h.logger.Debug("webhook received", slog.Int("bytes", len(body)))
	res := h.batches.HandleBatch(context.WithoutCancel(c.Request().Context()), body)
	return c.JSON(http.StatusOK, res)
}

// HealthHandler serves /healthz.
type HealthHandler struct{}

// Register mounts GET /healthz.
func (HealthHandler) Register(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}
