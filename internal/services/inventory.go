package services

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"fieldops-system/internal/dto"
	"fieldops-system/internal/entities"
	"fieldops-system/internal/repositories"
	"fieldops-system/pkg/constants"
	apperrors "fieldops-system/pkg/errors"
	"fieldops-system/pkg/utils"
)

type InventoryServiceInterface interface {
	GetSnapshot(ctx context.Context, technicianID int) (*dto.InventorySnapshotDTO, error)

	// ReserveInTx проверяет выбранные позиции против живого остатка и
	// открытых черновиков и возвращает строки будущего счета.
	// Кеш снимка склада на пути записи не используется никогда.
	ReserveInTx(ctx context.Context, tx pgx.Tx, technicianID int, selection []dto.BillLineDTO) ([]entities.BillItem, error)

	// ConsumeInTx списывает подтвержденные строки счета: серийные единицы
	// переводятся в used, generic-количества уменьшаются. Вызывается только
	// из транзакции подтверждения оплаты, поэтому частичное списание
	// не переживает откат.
	ConsumeInTx(ctx context.Context, tx pgx.Tx, billID string, items []entities.BillItem) error

	ReturnToManager(ctx context.Context, technicianID int, data dto.ReturnStockDTO) error
	AssignStock(ctx context.Context, data dto.AssignStockDTO) error
}

type InventoryService struct {
	txManager     repositories.TxManagerInterface
	inventoryRepo repositories.InventoryRepositoryInterface
	snapshot      SnapshotServiceInterface
	logger        *zap.Logger
}

func NewInventoryService(
	txManager repositories.TxManagerInterface,
	inventoryRepo repositories.InventoryRepositoryInterface,
	snapshot SnapshotServiceInterface,
	logger *zap.Logger,
) InventoryServiceInterface {
	return &InventoryService{
		txManager:     txManager,
		inventoryRepo: inventoryRepo,
		snapshot:      snapshot,
		logger:        logger,
	}
}

// GetSnapshot — снимок склада техника через read-side кеш.
func (s *InventoryService) GetSnapshot(ctx context.Context, technicianID int) (*dto.InventorySnapshotDTO, error) {
	return s.snapshot.GetInventorySnapshot(ctx, technicianID)
}

func (s *InventoryService) ReserveInTx(ctx context.Context, tx pgx.Tx, technicianID int, selection []dto.BillLineDTO) ([]entities.BillItem, error) {
	reserved := make([]entities.BillItem, 0, len(selection))
	seenSerials := make(map[string]bool)
	genericRequested := make(map[int]int)

	for _, line := range selection {
		switch line.ItemType {
		case constants.ItemTypeSerialized:
			serial := strings.TrimSpace(line.SerialNumber)
			if serial == "" {
				return nil, apperrors.NewValidationError("Для серийной позиции обязателен серийный номер")
			}
			if seenSerials[serial] {
				return nil, apperrors.NewInsufficientStockError("Серийный номер %s уже выбран в этом счете", serial)
			}
			seenSerials[serial] = true

			row, err := s.inventoryRepo.FindUnitBySerialForUpdateInTx(ctx, tx, technicianID, serial)
			if err != nil {
				return nil, err
			}
			if row == nil {
				return nil, apperrors.NewValidationError("Серийный номер %s не числится за вами", serial)
			}
			if row.Unit.Status != constants.UnitStatusActive {
				return nil, apperrors.NewInsufficientStockError("Серийная единица %s недоступна (статус: %s)", serial, row.Unit.Status)
			}
			inDraft, err := s.inventoryRepo.IsSerialReservedInDraftInTx(ctx, tx, serial)
			if err != nil {
				return nil, err
			}
			if inDraft {
				return nil, apperrors.NewInsufficientStockError("Серийный номер %s уже зарезервирован в другом счете", serial)
			}

			serialCopy := serial
			reserved = append(reserved, entities.BillItem{
				ItemID:       row.Item.ID,
				Name:         row.Item.Name,
				ItemType:     constants.ItemTypeSerialized,
				Quantity:     1,
				SerialNumber: &serialCopy,
				Price:        row.Item.Price,
				Amount:       row.Item.Price,
			})

		case constants.ItemTypeGeneric:
			if line.Name == "" {
				return nil, apperrors.NewValidationError("Для расходной позиции обязательно название")
			}
			item, err := s.inventoryRepo.FindGenericByNameForUpdateInTx(ctx, tx, technicianID, line.Name)
			if err != nil {
				return nil, err
			}
			if item == nil {
				return nil, apperrors.NewValidationError("Позиция %s не числится за вами", line.Name)
			}

			reservedInDraft, err := s.inventoryRepo.ReservedGenericQtyInDraftInTx(ctx, tx, item.ID)
			if err != nil {
				return nil, err
			}
			available := item.Quantity - reservedInDraft - genericRequested[item.ID]
			if line.Quantity > available {
				return nil, apperrors.NewInsufficientStockError(
					"Недостаточно остатка %s: доступно %d, запрошено %d", item.Name, available, line.Quantity)
			}
			genericRequested[item.ID] += line.Quantity

			reserved = append(reserved, entities.BillItem{
				ItemID:   item.ID,
				Name:     item.Name,
				ItemType: constants.ItemTypeGeneric,
				Quantity: line.Quantity,
				Price:    item.Price,
				Amount:   item.Price * float64(line.Quantity),
			})

		case constants.ItemTypeService:
			// Услуга — строка без остатка, цена приходит из выбора.
			if line.Name == "" {
				return nil, apperrors.NewValidationError("Для услуги обязательно название")
			}
			reserved = append(reserved, entities.BillItem{
				Name:     line.Name,
				ItemType: constants.ItemTypeService,
				Quantity: line.Quantity,
				Price:    line.Price,
				Amount:   line.Price * float64(line.Quantity),
			})

		default:
			return nil, apperrors.NewValidationError("Неизвестный тип позиции: %s", line.ItemType)
		}
	}

	return reserved, nil
}

func (s *InventoryService) ConsumeInTx(ctx context.Context, tx pgx.Tx, billID string, items []entities.BillItem) error {
	for _, item := range items {
		switch item.ItemType {
		case constants.ItemTypeSerialized:
			if item.SerialNumber == nil {
				return apperrors.NewValidationError("Строка счета %s без серийного номера", billID)
			}
			if err := s.inventoryRepo.MarkUnitUsedInTx(ctx, tx, item.ItemID, *item.SerialNumber); err != nil {
				return err
			}
		case constants.ItemTypeGeneric:
			if err := s.inventoryRepo.DecrementGenericInTx(ctx, tx, item.ItemID, item.Quantity); err != nil {
				return err
			}
		case constants.ItemTypeService:
			// Услуги остатка не имеют.
		}
	}
	s.logger.Info("Счет списан со склада", zap.String("bill_id", billID), zap.Int("lines", len(items)))
	return nil
}

// ReturnToManager возвращает остаток техника в пул его филиала.
func (s *InventoryService) ReturnToManager(ctx context.Context, technicianID int, data dto.ReturnStockDTO) error {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return err
	}

	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		for _, line := range data.Items {
			switch line.ItemType {
			case constants.ItemTypeSerialized:
				row, err := s.inventoryRepo.FindUnitBySerialForUpdateInTx(ctx, tx, technicianID, line.SerialNumber)
				if err != nil {
					return err
				}
				if row == nil || row.Unit.Status != constants.UnitStatusActive {
					return apperrors.NewNotFoundError("Активная серийная единица %s не найдена", line.SerialNumber)
				}
				if err := s.inventoryRepo.SetUnitStatusInTx(ctx, tx, row.Unit.ID, constants.UnitStatusReturned); err != nil {
					return err
				}
				if err := s.inventoryRepo.AddToBranchStockInTx(ctx, tx, actor.BranchID, row.Item.Name, constants.ItemTypeSerialized, 1); err != nil {
					return err
				}

			case constants.ItemTypeGeneric:
				if line.Quantity < 1 {
					return apperrors.NewValidationError("Количество возврата должно быть не меньше 1")
				}
				item, err := s.inventoryRepo.FindGenericByNameForUpdateInTx(ctx, tx, technicianID, line.Name)
				if err != nil {
					return err
				}
				if item == nil {
					return apperrors.NewNotFoundError("Позиция %s не найдена у техника", line.Name)
				}
				if line.Quantity > item.Quantity {
					return apperrors.NewInsufficientStockError(
						"Нельзя вернуть %d шт. %s: на руках %d", line.Quantity, item.Name, item.Quantity)
				}
				if err := s.inventoryRepo.DecrementGenericInTx(ctx, tx, item.ID, line.Quantity); err != nil {
					return err
				}
				if err := s.inventoryRepo.AddToBranchStockInTx(ctx, tx, actor.BranchID, item.Name, constants.ItemTypeGeneric, line.Quantity); err != nil {
					return err
				}

			default:
				return apperrors.NewValidationError("Неизвестный тип позиции: %s", line.ItemType)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.snapshot.InvalidateInventory(ctx, technicianID)
	s.logger.Info("Остаток возвращен в пул филиала",
		zap.Int("technician_id", technicianID), zap.Int("branch_id", actor.BranchID))
	return nil
}

// AssignStock выдает остаток технику из пула филиала менеджера.
func (s *InventoryService) AssignStock(ctx context.Context, data dto.AssignStockDTO) error {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return err
	}
	if actor.Role != constants.RoleManager {
		return apperrors.NewAuthorizationError("Выдача остатка доступна только менеджеру")
	}

	qty := data.Quantity
	if data.ItemType == constants.ItemTypeSerialized {
		if len(data.SerialNumbers) == 0 {
			return apperrors.NewValidationError("Для серийной позиции нужен список серийных номеров")
		}
		qty = len(data.SerialNumbers)
	} else if qty < 1 {
		return apperrors.NewValidationError("Количество выдачи должно быть не меньше 1")
	}

	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if err := s.inventoryRepo.TakeFromBranchStockInTx(ctx, tx, actor.BranchID, data.Name, data.ItemType, qty); err != nil {
			return apperrors.NewInsufficientStockError("В пуле филиала недостаточно позиции %s", data.Name)
		}
		itemID, err := s.inventoryRepo.UpsertItemInTx(ctx, tx, data.TechnicianID, data.Name, data.ItemType, qty, data.Price)
		if err != nil {
			return err
		}
		if data.ItemType == constants.ItemTypeSerialized {
			return s.inventoryRepo.AddUnitsInTx(ctx, tx, itemID, data.SerialNumbers)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.snapshot.InvalidateInventory(ctx, data.TechnicianID)
	s.logger.Info("Остаток выдан технику",
		zap.Int("technician_id", data.TechnicianID), zap.String("name", data.Name), zap.Int("qty", qty))
	return nil
}
