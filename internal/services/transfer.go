package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"fieldops-system/internal/dto"
	"fieldops-system/internal/entities"
	"fieldops-system/internal/repositories"
	"fieldops-system/pkg/config"
	"fieldops-system/pkg/constants"
	apperrors "fieldops-system/pkg/errors"
	"fieldops-system/pkg/utils"
)

// TransferServiceInterface — остановки нарядов: двухшаговая пауза техника
// и передача наряда через согласование менеджером.
type TransferServiceInterface interface {
	RequestStop(ctx context.Context, orderID int, data dto.StopRequestDTO) (*entities.WorkOrder, error)

	PreviewPause(ctx context.Context, orderID int, data dto.PausePreviewDTO) (*dto.PausePreviewResponseDTO, error)
	CommitPause(ctx context.Context, orderID int, data dto.PauseCommitDTO) (*entities.WorkOrder, error)

	PendingTransfer(ctx context.Context, orderID int) (*dto.PendingTransferDTO, error)
	ApproveTransfer(ctx context.Context, orderID int, data dto.TransferDecisionDTO) (*entities.WorkOrder, error)
	RejectTransfer(ctx context.Context, orderID int, data dto.TransferDecisionDTO) (*entities.WorkOrder, error)
}

type TransferService struct {
	txManager   repositories.TxManagerInterface
	orderRepo   repositories.WorkOrderRepositoryInterface
	historyRepo repositories.StatusHistoryRepositoryInterface
	billRepo    repositories.BillRepositoryInterface
	userRepo    repositories.UserRepositoryInterface
	cacheRepo   repositories.CacheRepositoryInterface
	orderSvc    WorkOrderServiceInterface
	snapshot    SnapshotServiceInterface
	cacheCfg    config.CacheConfig
	logger      *zap.Logger
}

func NewTransferService(
	txManager repositories.TxManagerInterface,
	orderRepo repositories.WorkOrderRepositoryInterface,
	historyRepo repositories.StatusHistoryRepositoryInterface,
	billRepo repositories.BillRepositoryInterface,
	userRepo repositories.UserRepositoryInterface,
	cacheRepo repositories.CacheRepositoryInterface,
	orderSvc WorkOrderServiceInterface,
	snapshot SnapshotServiceInterface,
	cacheCfg config.CacheConfig,
	logger *zap.Logger,
) TransferServiceInterface {
	return &TransferService{
		txManager:   txManager,
		orderRepo:   orderRepo,
		historyRepo: historyRepo,
		billRepo:    billRepo,
		userRepo:    userRepo,
		cacheRepo:   cacheRepo,
		orderSvc:    orderSvc,
		snapshot:    snapshot,
		cacheCfg:    cacheCfg,
		logger:      logger,
	}
}

// pausePreview — содержимое токена подтверждения паузы в Redis.
type pausePreview struct {
	Token   string `json:"token"`
	OrderID int    `json:"order_id"`
	ActorID int    `json:"actor_id"`
	Remark  string `json:"remark"`
}

func pauseTokenKey(orderID int) string {
	return fmt.Sprintf("pause:token:%d", orderID)
}

// RequestStop переводит наряд в transferring — запрос на передачу,
// ожидающий решения менеджера.
func (s *TransferService) RequestStop(ctx context.Context, orderID int, data dto.StopRequestDTO) (order *entities.WorkOrder, err error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return nil, err
	}

	var prev constants.OrderStatus
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		order, prev, err = s.orderSvc.TransitionInTx(ctx, tx, orderID, actor.UserID,
			constants.StatusTransferring, data.Remark)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.orderSvc.PublishTransition(ctx, order, prev, actor.UserID, data.Remark)
	s.logger.Info("Запрошена передача наряда",
		zap.Int("order_id", orderID), zap.Int("technician_id", actor.UserID))
	return order, nil
}

// PreviewPause — первый шаг паузы. Предусловия проверяются заранее, но
// состояние наряда не меняется: сервер лишь выдает токен подтверждения
// с ограниченным сроком жизни.
func (s *TransferService) PreviewPause(ctx context.Context, orderID int, data dto.PausePreviewDTO) (*dto.PausePreviewResponseDTO, error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return nil, err
	}

	order, err := s.orderRepo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.TechnicianID != actor.UserID {
		return nil, apperrors.NewAuthorizationError("Вы не являетесь исполнителем наряда %d", orderID)
	}
	if order.Status != constants.StatusInProgress {
		return nil, apperrors.NewConflictError(
			"Пауза доступна только по активному наряду, текущий статус — %s", order.Status)
	}

	drafts, err := s.billRepo.FindByOrderID(ctx, orderID, constants.BillStatusDraft)
	if err != nil {
		return nil, err
	}
	if len(drafts) > 0 {
		return nil, apperrors.NewConflictError(
			"По наряду есть неподтвержденный счет %s: завершите или отмените его перед паузой", drafts[0].ID)
	}

	preview := pausePreview{
		Token:   uuid.NewString(),
		OrderID: orderID,
		ActorID: actor.UserID,
		Remark:  data.Remark,
	}
	payload, err := json.Marshal(preview)
	if err != nil {
		return nil, err
	}
	if err := s.cacheRepo.Set(ctx, pauseTokenKey(orderID), payload, s.cacheCfg.PauseTokenTTL); err != nil {
		return nil, fmt.Errorf("ошибка сохранения токена паузы: %w", err)
	}

	return &dto.PausePreviewResponseDTO{
		ConfirmationToken: preview.Token,
		Remark:            preview.Remark,
	}, nil
}

// CommitPause — второй шаг: фиксация паузы по токену. Комментарий берется
// из превью, а не из запроса, чтобы зафиксированная причина совпадала
// с показанной технику.
func (s *TransferService) CommitPause(ctx context.Context, orderID int, data dto.PauseCommitDTO) (order *entities.WorkOrder, err error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return nil, err
	}

	cached, err := s.cacheRepo.Get(ctx, pauseTokenKey(orderID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NewConflictError(
				"Токен подтверждения паузы истек или не запрашивался: повторите запрос паузы")
		}
		return nil, fmt.Errorf("ошибка чтения токена паузы: %w", err)
	}

	var preview pausePreview
	if err := json.Unmarshal([]byte(cached), &preview); err != nil {
		return nil, fmt.Errorf("ошибка разбора токена паузы: %w", err)
	}
	if preview.Token != data.ConfirmationToken {
		return nil, apperrors.NewValidationError("Неверный токен подтверждения паузы")
	}
	if preview.ActorID != actor.UserID {
		return nil, apperrors.NewAuthorizationError("Токен паузы выдан другому пользователю")
	}

	var prev constants.OrderStatus
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		order, prev, err = s.orderSvc.TransitionInTx(ctx, tx, orderID, actor.UserID,
			constants.StatusPaused, preview.Remark)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.cacheRepo.Del(ctx, pauseTokenKey(orderID)); err != nil {
		s.logger.Warn("Не удалось удалить использованный токен паузы", zap.Error(err))
	}

	s.orderSvc.PublishTransition(ctx, order, prev, actor.UserID, preview.Remark)
	s.logger.Info("Наряд поставлен на паузу",
		zap.Int("order_id", orderID), zap.String("remark", preview.Remark))
	return order, nil
}

// PendingTransfer — незакрытый запрос на передачу для менеджера-согласующего.
func (s *TransferService) PendingTransfer(ctx context.Context, orderID int) (*dto.PendingTransferDTO, error) {
	order, err := s.orderRepo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != constants.StatusTransferring {
		return nil, apperrors.NewNotFoundError("По наряду %d нет открытого запроса на передачу", orderID)
	}

	entry, err := s.historyRepo.FindLatestForStatus(ctx, orderID, constants.StatusTransferring)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, apperrors.NewNotFoundError("По наряду %d нет открытого запроса на передачу", orderID)
	}

	return &dto.PendingTransferDTO{
		OrderID:     orderID,
		RequesterID: entry.UpdatedBy,
		Remark:      entry.Remark,
		RequestedAt: entry.UpdatedAt.Format(time.RFC3339),
	}, nil
}

// ApproveTransfer закрывает запрос: наряд уходит в терминальный transferred
// и закрепляется за новым техником в той же транзакции. Уже списанный по
// оплаченным счетам остаток с передачей не возвращается.
func (s *TransferService) ApproveTransfer(ctx context.Context, orderID int, data dto.TransferDecisionDTO) (order *entities.WorkOrder, err error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	if actor.Role != constants.RoleManager {
		return nil, apperrors.NewAuthorizationError("Решение по передаче принимает только менеджер")
	}
	if data.NewTechnicianID == 0 {
		return nil, apperrors.NewValidationError("Для одобрения передачи обязателен новый исполнитель")
	}

	newTechnician, err := s.userRepo.FindByID(ctx, data.NewTechnicianID)
	if err != nil {
		return nil, err
	}
	if newTechnician.Role != constants.RoleTechnician {
		return nil, apperrors.NewValidationError("Пользователь %d не является техником", data.NewTechnicianID)
	}

	remark := data.Remark
	if remark == "" {
		remark = fmt.Sprintf("Передача одобрена, новый исполнитель — %s", newTechnician.Fio)
	}

	var (
		prev    constants.OrderStatus
		prevTec int
	)
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		order, prev, err = s.orderSvc.TransitionInTx(ctx, tx, orderID, actor.UserID,
			constants.StatusTransferred, remark)
		if err != nil {
			return err
		}
		prevTec = order.TechnicianID
		return s.orderRepo.ReassignInTx(ctx, tx, orderID, data.NewTechnicianID)
	})
	if err != nil {
		return nil, err
	}

	order.TechnicianID = data.NewTechnicianID
	s.snapshot.InvalidateOrderList(ctx, prevTec)
	s.orderSvc.PublishTransition(ctx, order, prev, actor.UserID, remark)
	s.logger.Info("Передача наряда одобрена",
		zap.Int("order_id", orderID),
		zap.Int("from_technician", prevTec),
		zap.Int("to_technician", data.NewTechnicianID))
	return order, nil
}

// RejectTransfer возвращает наряд исполнителю в работу.
func (s *TransferService) RejectTransfer(ctx context.Context, orderID int, data dto.TransferDecisionDTO) (order *entities.WorkOrder, err error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	if actor.Role != constants.RoleManager {
		return nil, apperrors.NewAuthorizationError("Решение по передаче принимает только менеджер")
	}

	remark := data.Remark
	if remark == "" {
		remark = "Запрос на передачу отклонен"
	}

	var prev constants.OrderStatus
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		order, prev, err = s.orderSvc.TransitionInTx(ctx, tx, orderID, actor.UserID,
			constants.StatusInProgress, remark)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.orderSvc.PublishTransition(ctx, order, prev, actor.UserID, remark)
	s.logger.Info("Запрос на передачу отклонен", zap.Int("order_id", orderID))
	return order, nil
}
