package routes

import (
	"github.com/labstack/echo/v4"

	"fieldops-system/internal/controllers"
	"fieldops-system/pkg/constants"
	"fieldops-system/pkg/middleware"
)

func runTransferRouter(secureGroup *echo.Group, transferCtrl *controllers.TransferController, authMW *middleware.AuthMiddleware) {
	managerOnly := authMW.RequireRole(constants.RoleManager)
	{
		secureGroup.POST("/orders/:id/stop", transferCtrl.RequestStop)
		secureGroup.POST("/orders/:id/pause/preview", transferCtrl.PreviewPause)
		secureGroup.POST("/orders/:id/pause/commit", transferCtrl.CommitPause)

		secureGroup.GET("/orders/:id/transfer", transferCtrl.PendingTransfer, managerOnly)
		secureGroup.POST("/orders/:id/transfer/approve", transferCtrl.ApproveTransfer, managerOnly)
		secureGroup.POST("/orders/:id/transfer/reject", transferCtrl.RejectTransfer, managerOnly)
	}
}
