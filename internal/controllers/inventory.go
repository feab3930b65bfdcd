package controllers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"fieldops-system/internal/dto"
	"fieldops-system/internal/services"
	"fieldops-system/pkg/utils"
)

type InventoryController struct {
	inventoryService services.InventoryServiceInterface
	logger           *zap.Logger
}

func NewInventoryController(inventoryService services.InventoryServiceInterface, logger *zap.Logger) *InventoryController {
	return &InventoryController{
		inventoryService: inventoryService,
		logger:           logger,
	}
}

// GetMySnapshot — снимок склада текущего техника.
func (c *InventoryController) GetMySnapshot(ctx echo.Context) error {
	actorID, err := utils.GetUserIDFromCtx(ctx.Request().Context())
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	snapshot, err := c.inventoryService.GetSnapshot(ctx.Request().Context(), actorID)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, snapshot, "Снимок склада получен", http.StatusOK)
}

// GetTechnicianSnapshot — снимок склада произвольного техника (менеджер).
func (c *InventoryController) GetTechnicianSnapshot(ctx echo.Context) error {
	technicianID, err := strconv.Atoi(ctx.Param("technicianId"))
	if err != nil || technicianID <= 0 {
		return utils.ErrorResponse(ctx, echo.NewHTTPError(http.StatusBadRequest, "Некорректный идентификатор техника"), c.logger)
	}

	snapshot, err := c.inventoryService.GetSnapshot(ctx.Request().Context(), technicianID)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, snapshot, "Снимок склада получен", http.StatusOK)
}

// ReturnStock — возврат остатка текущего техника в пул филиала.
func (c *InventoryController) ReturnStock(ctx echo.Context) error {
	actorID, err := utils.GetUserIDFromCtx(ctx.Request().Context())
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var payload dto.ReturnStockDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, echo.NewHTTPError(http.StatusBadRequest, "Некорректное тело запроса"), c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	if err := c.inventoryService.ReturnToManager(ctx.Request().Context(), actorID, payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, nil, "Остаток возвращен в пул филиала", http.StatusOK)
}

// AssignStock — выдача остатка технику из пула филиала (менеджер).
func (c *InventoryController) AssignStock(ctx echo.Context) error {
	var payload dto.AssignStockDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, echo.NewHTTPError(http.StatusBadRequest, "Некорректное тело запроса"), c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	if err := c.inventoryService.AssignStock(ctx.Request().Context(), payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, nil, "Остаток выдан технику", http.StatusOK)
}
