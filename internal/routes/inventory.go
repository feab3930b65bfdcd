package routes

import (
	"github.com/labstack/echo/v4"

	"fieldops-system/internal/controllers"
	"fieldops-system/pkg/constants"
	"fieldops-system/pkg/middleware"
)

func runInventoryRouter(secureGroup *echo.Group, inventoryCtrl *controllers.InventoryController, authMW *middleware.AuthMiddleware) {
	managerOnly := authMW.RequireRole(constants.RoleManager)
	{
		secureGroup.GET("/inventory/my", inventoryCtrl.GetMySnapshot)
		secureGroup.POST("/inventory/return", inventoryCtrl.ReturnStock)
		secureGroup.GET("/inventory/technicians/:technicianId", inventoryCtrl.GetTechnicianSnapshot, managerOnly)
		secureGroup.POST("/inventory/assign", inventoryCtrl.AssignStock, managerOnly)
	}
}
