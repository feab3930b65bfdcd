package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"fieldops-system/internal/dto"
	"fieldops-system/internal/services"
	"fieldops-system/pkg/utils"
)

type TransferController struct {
	transferService services.TransferServiceInterface
	logger          *zap.Logger
}

func NewTransferController(transferService services.TransferServiceInterface, logger *zap.Logger) *TransferController {
	return &TransferController{
		transferService: transferService,
		logger:          logger,
	}
}

// RequestStop — запрос техника на передачу наряда.
func (c *TransferController) RequestStop(ctx echo.Context) error {
	orderID, err := parseIDParam(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var payload dto.StopRequestDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, echo.NewHTTPError(http.StatusBadRequest, "Некорректное тело запроса"), c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	order, err := c.transferService.RequestStop(ctx.Request().Context(), orderID, payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, order, "Запрошена передача наряда", http.StatusOK)
}

func (c *TransferController) PreviewPause(ctx echo.Context) error {
	orderID, err := parseIDParam(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var payload dto.PausePreviewDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, echo.NewHTTPError(http.StatusBadRequest, "Некорректное тело запроса"), c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	preview, err := c.transferService.PreviewPause(ctx.Request().Context(), orderID, payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, preview, "Пауза подготовлена, подтвердите токеном", http.StatusOK)
}

func (c *TransferController) CommitPause(ctx echo.Context) error {
	orderID, err := parseIDParam(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var payload dto.PauseCommitDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, echo.NewHTTPError(http.StatusBadRequest, "Некорректное тело запроса"), c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	order, err := c.transferService.CommitPause(ctx.Request().Context(), orderID, payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, order, "Наряд поставлен на паузу", http.StatusOK)
}

// PendingTransfer — открытый запрос на передачу для менеджера.
func (c *TransferController) PendingTransfer(ctx echo.Context) error {
	orderID, err := parseIDParam(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	pending, err := c.transferService.PendingTransfer(ctx.Request().Context(), orderID)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, pending, "Запрос на передачу получен", http.StatusOK)
}

func (c *TransferController) ApproveTransfer(ctx echo.Context) error {
	orderID, err := parseIDParam(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var payload dto.TransferDecisionDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, echo.NewHTTPError(http.StatusBadRequest, "Некорректное тело запроса"), c.logger)
	}

	order, err := c.transferService.ApproveTransfer(ctx.Request().Context(), orderID, payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, order, "Передача наряда одобрена", http.StatusOK)
}

func (c *TransferController) RejectTransfer(ctx echo.Context) error {
	orderID, err := parseIDParam(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var payload dto.TransferDecisionDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, echo.NewHTTPError(http.StatusBadRequest, "Некорректное тело запроса"), c.logger)
	}

	order, err := c.transferService.RejectTransfer(ctx.Request().Context(), orderID, payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, order, "Запрос на передачу отклонен", http.StatusOK)
}
