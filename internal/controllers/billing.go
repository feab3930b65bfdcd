package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"fieldops-system/internal/dto"
	"fieldops-system/internal/services"
	"fieldops-system/pkg/utils"
)

type BillingController struct {
	billingService services.BillingServiceInterface
	logger         *zap.Logger
}

func NewBillingController(billingService services.BillingServiceInterface, logger *zap.Logger) *BillingController {
	return &BillingController{
		billingService: billingService,
		logger:         logger,
	}
}

func parseBillIDParam(ctx echo.Context) (string, error) {
	billID := ctx.Param("billId")
	if _, err := uuid.Parse(billID); err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "Некорректный идентификатор счета")
	}
	return billID, nil
}

func (c *BillingController) CreateBill(ctx echo.Context) error {
	orderID, err := parseIDParam(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var payload dto.CreateBillDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, echo.NewHTTPError(http.StatusBadRequest, "Некорректное тело запроса"), c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	bill, err := c.billingService.CreateBill(ctx.Request().Context(), orderID, payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, bill, "Черновик счета создан", http.StatusCreated)
}

func (c *BillingController) ConfirmPayment(ctx echo.Context) error {
	billID, err := parseBillIDParam(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var payload dto.ConfirmPaymentDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, echo.NewHTTPError(http.StatusBadRequest, "Некорректное тело запроса"), c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	bill, err := c.billingService.ConfirmPayment(ctx.Request().Context(), billID, payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, bill, "Оплата подтверждена", http.StatusOK)
}

func (c *BillingController) AbandonDraft(ctx echo.Context) error {
	billID, err := parseBillIDParam(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	if err := c.billingService.AbandonDraft(ctx.Request().Context(), billID); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, nil, "Черновик счета отменен", http.StatusOK)
}

func (c *BillingController) FindBill(ctx echo.Context) error {
	billID, err := parseBillIDParam(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	bill, err := c.billingService.FindBill(ctx.Request().Context(), billID)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, bill, "Счет получен", http.StatusOK)
}

func (c *BillingController) GetOrderBills(ctx echo.Context) error {
	orderID, err := parseIDParam(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	bills, err := c.billingService.GetOrderBills(ctx.Request().Context(), orderID, ctx.QueryParam("status"))
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, bills, "Счета наряда получены", http.StatusOK)
}
