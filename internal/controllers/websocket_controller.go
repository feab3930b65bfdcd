package controllers

import (
	"net/http"

	gorilla "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"fieldops-system/pkg/utils"
	"fieldops-system/pkg/websocket"
)

var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebsocketController struct {
	hub    *websocket.Hub
	logger *zap.Logger
}

func NewWebsocketController(hub *websocket.Hub, logger *zap.Logger) *WebsocketController {
	return &WebsocketController{
		hub:    hub,
		logger: logger,
	}
}

// Serve поднимает websocket-сессию для текущего пользователя.
func (c *WebsocketController) Serve(ctx echo.Context) error {
	userID, err := utils.GetUserIDFromCtx(ctx.Request().Context())
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		c.logger.Error("Ошибка апгрейда websocket-соединения", zap.Error(err))
		return err
	}

	client := websocket.NewClient(c.hub, conn, userID)
	c.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
	return nil
}
