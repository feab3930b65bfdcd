package routes

import (
	"github.com/labstack/echo/v4"

	"fieldops-system/internal/controllers"
	"fieldops-system/pkg/constants"
	"fieldops-system/pkg/middleware"
)

func runWorkOrderRouter(secureGroup *echo.Group, orderCtrl *controllers.WorkOrderController, authMW *middleware.AuthMiddleware) {
	managerOnly := authMW.RequireRole(constants.RoleManager)
	{
		secureGroup.GET("/orders", orderCtrl.GetOrders)
		secureGroup.GET("/orders/my", orderCtrl.GetMyOrders)
		secureGroup.POST("/orders", orderCtrl.CreateOrder, managerOnly)
		secureGroup.GET("/orders/:id", orderCtrl.FindOrder)
		secureGroup.GET("/orders/:id/history", orderCtrl.GetHistory)
		secureGroup.POST("/orders/:id/transition", orderCtrl.Transition)
	}
}
