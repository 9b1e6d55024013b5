package handlers

import (
	"net/http"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/aster/pkg/realtime"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// WSHandler upgrades board subscribers to websocket connections
type WSHandler struct {
	hub      *realtime.Hub
	logger   ectologger.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new websocket handler
func NewWSHandler(hub *realtime.Hub, logger ectologger.Logger) *WSHandler {
	return &WSHandler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes registers websocket routes
func (h *WSHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", h.Subscribe)
}

// Subscribe upgrades the connection and subscribes it to the tenant's board
// events. An optional ?pipeline_id narrows the subscription to one pipeline.
func (h *WSHandler) Subscribe(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	pipelineID := c.QueryParam("pipeline_id")

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.WithContext(c.Request().Context()).WithError(err).Error("Websocket upgrade failed")
		return err
	}

	h.hub.Register(conn, tenantID, pipelineID)
	return nil
}
