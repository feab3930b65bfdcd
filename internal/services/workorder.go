package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"fieldops-system/internal/dto"
	"fieldops-system/internal/entities"
	"fieldops-system/internal/events"
	"fieldops-system/internal/repositories"
	"fieldops-system/pkg/constants"
	apperrors "fieldops-system/pkg/errors"
	"fieldops-system/pkg/eventbus"
	"fieldops-system/pkg/types"
	"fieldops-system/pkg/utils"
)

// allowedTransitions — единственное место, где закодирована легальность
// переходов. Весь остальной код статус только читает.
var allowedTransitions = map[constants.OrderStatus][]constants.OrderStatus{
	constants.StatusAssigned:        {constants.StatusInProgress},
	constants.StatusInProgress:      {constants.StatusPaused, constants.StatusTransferring, constants.StatusPendingApproval},
	constants.StatusPaused:          {constants.StatusInProgress},
	constants.StatusTransferring:    {constants.StatusTransferred, constants.StatusInProgress},
	constants.StatusPendingApproval: {constants.StatusCompleted},
}

func transitionAllowed(from, to constants.OrderStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type WorkOrderServiceInterface interface {
	CreateOrder(ctx context.Context, orderData dto.CreateWorkOrderDTO) (int, error)
	GetOrders(ctx context.Context, filter types.Filter) ([]entities.WorkOrder, uint64, error)
	GetMyOrders(ctx context.Context) ([]entities.WorkOrder, error)
	FindOrder(ctx context.Context, id int) (*dto.WorkOrderDTO, error)
	GetHistory(ctx context.Context, orderID int) ([]dto.StatusHistoryEntryDTO, error)
	Transition(ctx context.Context, orderID int, data dto.TransitionDTO) (*entities.WorkOrder, error)

	// TransitionInTx — переход внутри уже открытой транзакции. Используется
	// биллингом (in-progress → pending-approval после оплаты) и координатором
	// передач (решения менеджера), чтобы переход и его причина коммитились
	// атомарно с остальными эффектами. Вторым значением возвращается статус,
	// из которого наряд вышел.
	TransitionInTx(ctx context.Context, tx pgx.Tx, orderID int, actorID int, target constants.OrderStatus, remark string) (*entities.WorkOrder, constants.OrderStatus, error)

	// PublishTransition — пост-коммитные эффекты перехода (инвалидация кеша,
	// доменные события). Вызывается после успешного коммита транзакции,
	// в которой выполнялся TransitionInTx.
	PublishTransition(ctx context.Context, order *entities.WorkOrder, prev constants.OrderStatus, actorID int, remark string)
}

type WorkOrderService struct {
	txManager   repositories.TxManagerInterface
	orderRepo   repositories.WorkOrderRepositoryInterface
	historyRepo repositories.StatusHistoryRepositoryInterface
	billRepo    repositories.BillRepositoryInterface
	userRepo    repositories.UserRepositoryInterface
	snapshot    SnapshotServiceInterface
	bus         *eventbus.Bus
	logger      *zap.Logger
}

func NewWorkOrderService(
	txManager repositories.TxManagerInterface,
	orderRepo repositories.WorkOrderRepositoryInterface,
	historyRepo repositories.StatusHistoryRepositoryInterface,
	billRepo repositories.BillRepositoryInterface,
	userRepo repositories.UserRepositoryInterface,
	snapshot SnapshotServiceInterface,
	bus *eventbus.Bus,
	logger *zap.Logger,
) WorkOrderServiceInterface {
	return &WorkOrderService{
		txManager:   txManager,
		orderRepo:   orderRepo,
		historyRepo: historyRepo,
		billRepo:    billRepo,
		userRepo:    userRepo,
		snapshot:    snapshot,
		bus:         bus,
		logger:      logger,
	}
}

// CreateOrder — назначение наряда менеджером. Первый комментарий менеджера
// становится первой записью журнала.
func (s *WorkOrderService) CreateOrder(ctx context.Context, orderData dto.CreateWorkOrderDTO) (newOrderID int, err error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return 0, err
	}
	if actor.Role != constants.RoleManager {
		return 0, apperrors.NewAuthorizationError("Назначать наряды может только менеджер")
	}

	if orderData.ProjectCategory == constants.CategoryRepair && orderData.OriginalTechnicianID == 0 {
		return 0, apperrors.NewValidationError("Для ремонтного наряда обязателен техник первоначального монтажа")
	}

	technician, err := s.userRepo.FindByID(ctx, orderData.TechnicianID)
	if err != nil {
		return 0, err
	}
	if technician.Role != constants.RoleTechnician {
		return 0, apperrors.NewValidationError("Пользователь %d не является техником", orderData.TechnicianID)
	}

	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		newOrderID, err = s.orderRepo.CreateOrderInTx(ctx, tx, orderData)
		if err != nil {
			return err
		}

		remark := orderData.Instructions
		if remark == "" {
			remark = fmt.Sprintf("Status changed to %s", constants.StatusAssigned)
		}
		return s.historyRepo.CreateInTx(ctx, tx, &entities.StatusHistoryEntry{
			OrderID:   newOrderID,
			Status:    constants.StatusAssigned,
			Remark:    remark,
			UpdatedBy: actor.UserID,
		})
	})
	if err != nil {
		s.logger.Error("Ошибка создания наряда", zap.Error(err))
		return 0, err
	}

	s.snapshot.InvalidateOrderList(ctx, orderData.TechnicianID)
	return newOrderID, nil
}

func (s *WorkOrderService) GetOrders(ctx context.Context, filter types.Filter) ([]entities.WorkOrder, uint64, error) {
	return s.orderRepo.GetOrders(ctx, filter)
}

// GetMyOrders — список нарядов текущего исполнителя из read-side кеша.
func (s *WorkOrderService) GetMyOrders(ctx context.Context) ([]entities.WorkOrder, error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	return s.snapshot.GetOrderList(ctx, actor.UserID)
}

func (s *WorkOrderService) FindOrder(ctx context.Context, id int) (*dto.WorkOrderDTO, error) {
	order, err := s.orderRepo.FindOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	history, err := s.historyRepo.FindByOrderID(ctx, id)
	if err != nil {
		return nil, err
	}

	bills, err := s.billRepo.FindByOrderID(ctx, id, constants.BillStatusPaid)
	if err != nil {
		return nil, err
	}

	return &dto.WorkOrderDTO{
		WorkOrder:     *order,
		StatusHistory: history,
		BillingInfo:   bills,
	}, nil
}

func (s *WorkOrderService) GetHistory(ctx context.Context, orderID int) ([]dto.StatusHistoryEntryDTO, error) {
	if _, err := s.orderRepo.FindOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.historyRepo.FindByOrderID(ctx, orderID)
}

// Transition — публичный запрос перехода от техника.
// pending-approval сюда не запрашивается: туда наряд переводит только
// биллинг после подтвержденной оплаты.
func (s *WorkOrderService) Transition(ctx context.Context, orderID int, data dto.TransitionDTO) (order *entities.WorkOrder, err error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return nil, err
	}

	target := constants.OrderStatus(data.TargetStatus)
	if !constants.IsValidStatus(target) {
		return nil, apperrors.NewValidationError("Неизвестный статус: %s", data.TargetStatus)
	}

	switch target {
	case constants.StatusPendingApproval:
		return nil, apperrors.NewConflictError("Статус pending-approval выставляется только подтверждением оплаты счета")
	case constants.StatusPaused:
		return nil, apperrors.NewConflictError(
			"Пауза выполняется в два шага: запросите подтверждение и зафиксируйте его токеном")
	case constants.StatusTransferred, constants.StatusCompleted:
		if actor.Role != constants.RoleManager {
			return nil, apperrors.NewAuthorizationError("Переход в статус %s доступен только менеджеру", target)
		}
	}

	var prev constants.OrderStatus
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		order, prev, err = s.TransitionInTx(ctx, tx, orderID, actor.UserID, target, data.Remark)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.PublishTransition(ctx, order, prev, actor.UserID, data.Remark)
	return order, nil
}

// TransitionInTx выполняет сам переход: блокировка строки наряда, проверка
// легальности, доменные предусловия, обновление статуса и запись журнала.
func (s *WorkOrderService) TransitionInTx(ctx context.Context, tx pgx.Tx, orderID int, actorID int, target constants.OrderStatus, remark string) (*entities.WorkOrder, constants.OrderStatus, error) {
	order, err := s.orderRepo.FindOrderForUpdateInTx(ctx, tx, orderID)
	if err != nil {
		return nil, "", err
	}

	if !transitionAllowed(order.Status, target) {
		return nil, "", apperrors.NewConflictError(
			"Переход %s → %s недопустим: текущий статус наряда — %s", order.Status, target, order.Status)
	}

	// Техник действует только на своих нарядах. Менеджерские переходы
	// (transferred, completed, отклонение передачи) фильтруются до этого места.
	if isTechnicianTransition(order.Status, target) && order.TechnicianID != actorID {
		return nil, "", apperrors.NewAuthorizationError("Вы не являетесь исполнителем наряда %d", orderID)
	}

	// Возврат из transferring в работу — отклонение запроса передачи.
	// Это решение менеджера: сам заявитель отозвать запрос не может.
	if order.Status == constants.StatusTransferring && target == constants.StatusInProgress {
		actor, err := utils.GetActorFromCtx(ctx)
		if err != nil {
			return nil, "", err
		}
		if actor.Role != constants.RoleManager {
			return nil, "", apperrors.NewAuthorizationError("Решение по запросу передачи принимает только менеджер")
		}
	}

	switch {
	case target == constants.StatusInProgress:
		// Инвариант одного активного проекта на техника.
		active, err := s.orderRepo.FindActiveOrderInTx(ctx, tx, order.TechnicianID, order.ID)
		if err != nil {
			return nil, "", err
		}
		if active != nil {
			return nil, "", apperrors.NewConflictError(
				"У вас уже есть активный проект: наряд %d (%s)", active.ID, active.Customer.Name)
		}

	case target == constants.StatusPaused:
		if remark == "" {
			return nil, "", apperrors.NewValidationError("Для паузы обязателен комментарий")
		}
		draft, err := s.billRepo.FindDraftByOrderInTx(ctx, tx, order.ID)
		if err != nil {
			return nil, "", err
		}
		if draft != nil {
			return nil, "", apperrors.NewConflictError(
				"По наряду есть неподтвержденный счет %s: завершите или отмените его перед паузой", draft.ID)
		}

	case target == constants.StatusTransferring:
		if remark == "" {
			return nil, "", apperrors.NewValidationError("Для запроса передачи обязателен комментарий")
		}
	}

	if err := s.orderRepo.UpdateStatusInTx(ctx, tx, order.ID, target); err != nil {
		return nil, "", err
	}

	if remark == "" {
		remark = fmt.Sprintf("Status changed to %s", target)
	}
	if err := s.historyRepo.CreateInTx(ctx, tx, &entities.StatusHistoryEntry{
		OrderID:   order.ID,
		Status:    target,
		Remark:    remark,
		UpdatedBy: actorID,
	}); err != nil {
		return nil, "", err
	}

	prev := order.Status
	order.Status = target
	s.logger.Info("Переход статуса наряда",
		zap.Int("orderId", order.ID),
		zap.String("from", string(prev)),
		zap.String("to", string(target)),
		zap.Int("actor", actorID))
	return order, prev, nil
}

// isTechnicianTransition — переходы, которые запрашивает техник-исполнитель.
func isTechnicianTransition(from, to constants.OrderStatus) bool {
	switch {
	case to == constants.StatusInProgress && from != constants.StatusTransferring:
		return true
	case to == constants.StatusPaused, to == constants.StatusTransferring:
		return true
	}
	return false
}

// PublishTransition — эффекты после коммита: инвалидация кеша и доменные события.
func (s *WorkOrderService) PublishTransition(ctx context.Context, order *entities.WorkOrder, prev constants.OrderStatus, actorID int, remark string) {
	s.snapshot.InvalidateOrderList(ctx, order.TechnicianID)

	if prev == constants.StatusAssigned && order.Status == constants.StatusInProgress {
		// Снимок склада техника подгружается под будущий биллинг.
		s.snapshot.InvalidateInventory(ctx, order.TechnicianID)

		event := events.ProjectStartedEvent{
			OrderID:         order.ID,
			TechnicianID:    order.TechnicianID,
			ProjectCategory: order.ProjectCategory,
		}
		if order.ProjectCategory == constants.CategoryRepair && order.OriginalTechnicianID != nil {
			event.OriginalTechnicianID = *order.OriginalTechnicianID
		}
		s.bus.Publish(ctx, event)
	}

	s.bus.Publish(ctx, events.StatusChangedEvent{
		OrderID:      order.ID,
		TechnicianID: order.TechnicianID,
		Status:       order.Status,
		Remark:       remark,
		ActorID:      actorID,
	})
}
