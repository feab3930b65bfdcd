package routes

import (
	"github.com/labstack/echo/v4"

	"fieldops-system/internal/controllers"
)

func runBillingRouter(secureGroup *echo.Group, billingCtrl *controllers.BillingController) {
	{
		secureGroup.POST("/orders/:id/bills", billingCtrl.CreateBill)
		secureGroup.GET("/orders/:id/bills", billingCtrl.GetOrderBills)
		secureGroup.GET("/bills/:billId", billingCtrl.FindBill)
		secureGroup.POST("/bills/:billId/confirm", billingCtrl.ConfirmPayment)
		secureGroup.DELETE("/bills/:billId", billingCtrl.AbandonDraft)
	}
}
