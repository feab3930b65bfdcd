package routes

import (
	"github.com/labstack/echo/v4"

	"fieldops-system/internal/controllers"
)

func runWebsocketRouter(secureGroup *echo.Group, wsCtrl *controllers.WebsocketController) {
	secureGroup.GET("/ws", wsCtrl.Serve)
}
