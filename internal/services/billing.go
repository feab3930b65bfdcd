package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"fieldops-system/internal/dto"
	"fieldops-system/internal/entities"
	"fieldops-system/internal/repositories"
	"fieldops-system/pkg/constants"
	apperrors "fieldops-system/pkg/errors"
	"fieldops-system/pkg/utils"
)

type BillingServiceInterface interface {
	CreateBill(ctx context.Context, orderID int, data dto.CreateBillDTO) (*entities.Bill, error)
	ConfirmPayment(ctx context.Context, billID string, data dto.ConfirmPaymentDTO) (*entities.Bill, error)
	AbandonDraft(ctx context.Context, billID string) error
	FindBill(ctx context.Context, billID string) (*entities.Bill, error)
	GetOrderBills(ctx context.Context, orderID int, status string) ([]entities.Bill, error)
}

type BillingService struct {
	txManager    repositories.TxManagerInterface
	billRepo     repositories.BillRepositoryInterface
	orderRepo    repositories.WorkOrderRepositoryInterface
	inventorySvc InventoryServiceInterface
	orderSvc     WorkOrderServiceInterface
	snapshot     SnapshotServiceInterface
	logger       *zap.Logger
}

func NewBillingService(
	txManager repositories.TxManagerInterface,
	billRepo repositories.BillRepositoryInterface,
	orderRepo repositories.WorkOrderRepositoryInterface,
	inventorySvc InventoryServiceInterface,
	orderSvc WorkOrderServiceInterface,
	snapshot SnapshotServiceInterface,
	logger *zap.Logger,
) BillingServiceInterface {
	return &BillingService{
		txManager:    txManager,
		billRepo:     billRepo,
		orderRepo:    orderRepo,
		inventorySvc: inventorySvc,
		orderSvc:     orderSvc,
		snapshot:     snapshot,
		logger:       logger,
	}
}

// CreateBill создает черновик счета по активному наряду. Строки счета —
// снимок цен на момент резервирования; сумма фиксируется здесь и при
// оплате не пересчитывается.
func (s *BillingService) CreateBill(ctx context.Context, orderID int, data dto.CreateBillDTO) (bill *entities.Bill, err error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return nil, err
	}

	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		order, err := s.orderRepo.FindOrderForUpdateInTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.TechnicianID != actor.UserID {
			return apperrors.NewAuthorizationError("Вы не являетесь исполнителем наряда %d", orderID)
		}
		if order.Status != constants.StatusInProgress {
			return apperrors.NewConflictError(
				"Счет выставляется только по активному наряду, текущий статус — %s", order.Status)
		}

		existing, err := s.billRepo.FindDraftByOrderInTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperrors.NewConflictError(
				"По наряду уже есть неподтвержденный счет %s", existing.ID)
		}

		items, err := s.inventorySvc.ReserveInTx(ctx, tx, order.TechnicianID, data.Items)
		if err != nil {
			return err
		}

		var total float64
		for _, item := range items {
			total += item.Amount
		}

		bill = &entities.Bill{
			ID:          uuid.NewString(),
			OrderID:     orderID,
			Status:      constants.BillStatusDraft,
			Items:       items,
			TotalAmount: total,
		}
		return s.billRepo.CreateBillInTx(ctx, tx, bill)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Создан черновик счета",
		zap.String("bill_id", bill.ID),
		zap.Int("order_id", orderID),
		zap.Float64("total", bill.TotalAmount))
	return bill, nil
}

// ConfirmPayment подтверждает оплату: счет помечается paid, зарезервированный
// остаток списывается и наряд уходит в pending-approval — все в одной
// транзакции. Повторный вызов по уже оплаченному счету возвращает тот же
// счет без повторного списания.
func (s *BillingService) ConfirmPayment(ctx context.Context, billID string, data dto.ConfirmPaymentDTO) (bill *entities.Bill, err error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return nil, err
	}

	var transactionID *string
	switch data.PaymentMethod {
	case constants.PaymentMethodOnline:
		trimmed := strings.TrimSpace(data.TransactionID.String)
		if !data.TransactionID.Valid || len(trimmed) < constants.MinTransactionIDLength {
			return nil, apperrors.NewValidationError(
				"Для online-оплаты обязателен идентификатор транзакции длиной не меньше %d символов",
				constants.MinTransactionIDLength)
		}
		transactionID = &trimmed
	case constants.PaymentMethodCash:
		// Для наличной оплаты идентификатор не требуется.
	default:
		return nil, apperrors.NewValidationError("Неизвестный способ оплаты: %s", data.PaymentMethod)
	}

	var (
		order       *entities.WorkOrder
		prev        constants.OrderStatus
		alreadyPaid bool
	)
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		bill, err = s.billRepo.FindBillForUpdateInTx(ctx, tx, billID)
		if err != nil {
			return err
		}
		if bill.Status == constants.BillStatusPaid {
			// Повторное подтверждение: отдаем прежний результат.
			alreadyPaid = true
			return nil
		}

		lockedOrder, err := s.orderRepo.FindOrderForUpdateInTx(ctx, tx, bill.OrderID)
		if err != nil {
			return err
		}
		if lockedOrder.TechnicianID != actor.UserID {
			return apperrors.NewAuthorizationError("Вы не являетесь исполнителем наряда %d", bill.OrderID)
		}

		paidAt := time.Now()
		if err := s.billRepo.MarkPaidInTx(ctx, tx, billID, data.PaymentMethod, transactionID, paidAt); err != nil {
			return err
		}
		if err := s.inventorySvc.ConsumeInTx(ctx, tx, billID, bill.Items); err != nil {
			return err
		}

		remark := fmt.Sprintf("Оплата счета %s подтверждена (%s)", billID, data.PaymentMethod)
		order, prev, err = s.orderSvc.TransitionInTx(ctx, tx, bill.OrderID, actor.UserID,
			constants.StatusPendingApproval, remark)
		if err != nil {
			return err
		}

		bill.Status = constants.BillStatusPaid
		bill.PaymentMethod = &data.PaymentMethod
		bill.TransactionID = transactionID
		bill.PaidAt = &paidAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	if alreadyPaid {
		s.logger.Info("Повторное подтверждение уже оплаченного счета", zap.String("bill_id", billID))
		return bill, nil
	}

	s.snapshot.InvalidateInventory(ctx, order.TechnicianID)
	s.orderSvc.PublishTransition(ctx, order, prev, actor.UserID,
		fmt.Sprintf("Оплата счета %s подтверждена", billID))

	s.logger.Info("Оплата счета подтверждена",
		zap.String("bill_id", billID),
		zap.Int("order_id", order.ID),
		zap.String("payment_method", data.PaymentMethod))
	return bill, nil
}

// AbandonDraft удаляет неоплаченный черновик и снимает связанный резерв.
func (s *BillingService) AbandonDraft(ctx context.Context, billID string) error {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return err
	}

	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		bill, err := s.billRepo.FindBillForUpdateInTx(ctx, tx, billID)
		if err != nil {
			return err
		}
		if bill.Status != constants.BillStatusDraft {
			return apperrors.NewConflictError("Счет %s уже оплачен и не может быть отменен", billID)
		}

		order, err := s.orderRepo.FindOrderForUpdateInTx(ctx, tx, bill.OrderID)
		if err != nil {
			return err
		}
		if order.TechnicianID != actor.UserID && actor.Role != constants.RoleManager {
			return apperrors.NewAuthorizationError("Вы не являетесь исполнителем наряда %d", bill.OrderID)
		}

		// Резерв живет только в строках черновика: удаление строк его и снимает.
		return s.billRepo.DeleteDraftInTx(ctx, tx, billID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Черновик счета отменен", zap.String("bill_id", billID))
	return nil
}

func (s *BillingService) FindBill(ctx context.Context, billID string) (*entities.Bill, error) {
	return s.billRepo.FindBill(ctx, billID)
}

func (s *BillingService) GetOrderBills(ctx context.Context, orderID int, status string) ([]entities.Bill, error) {
	if status != "" && status != constants.BillStatusDraft && status != constants.BillStatusPaid {
		return nil, apperrors.NewValidationError("Неизвестный статус счета: %s", status)
	}
	return s.billRepo.FindByOrderID(ctx, orderID, status)
}
