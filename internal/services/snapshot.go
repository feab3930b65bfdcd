package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"fieldops-system/internal/dto"
	"fieldops-system/internal/entities"
	"fieldops-system/internal/repositories"
	"fieldops-system/pkg/config"
	"fieldops-system/pkg/constants"
	"fieldops-system/pkg/types"
)

// SnapshotServiceInterface — read-side кеш поверх Redis. Обслуживает только
// чтение: путь записи (резерв, списание, возврат) всегда идет в Postgres
// под блокировками и кеш не трогает, кроме синхронной инвалидации после
// коммита. Протухший кеш отдается до истечения TTL или инвалидации.
type SnapshotServiceInterface interface {
	GetInventorySnapshot(ctx context.Context, technicianID int) (*dto.InventorySnapshotDTO, error)
	GetOrderList(ctx context.Context, technicianID int) ([]entities.WorkOrder, error)

	InvalidateInventory(ctx context.Context, technicianID int)
	InvalidateOrderList(ctx context.Context, technicianID int)
}

type SnapshotService struct {
	inventoryRepo repositories.InventoryRepositoryInterface
	orderRepo     repositories.WorkOrderRepositoryInterface
	cacheRepo     repositories.CacheRepositoryInterface
	cacheCfg      config.CacheConfig
	logger        *zap.Logger
}

func NewSnapshotService(
	inventoryRepo repositories.InventoryRepositoryInterface,
	orderRepo repositories.WorkOrderRepositoryInterface,
	cacheRepo repositories.CacheRepositoryInterface,
	cacheCfg config.CacheConfig,
	logger *zap.Logger,
) SnapshotServiceInterface {
	return &SnapshotService{
		inventoryRepo: inventoryRepo,
		orderRepo:     orderRepo,
		cacheRepo:     cacheRepo,
		cacheCfg:      cacheCfg,
		logger:        logger,
	}
}

func inventoryCacheKey(technicianID int) string {
	return fmt.Sprintf("inventory:snapshot:%d", technicianID)
}

func orderListCacheKey(technicianID int) string {
	return fmt.Sprintf("orders:list:%d", technicianID)
}

// GetInventorySnapshot отдает снимок склада техника из кеша, при промахе
// собирает из базы. Generic-позиции с нулевым остатком скрываются,
// у серийных остаются только активные единицы.
func (s *SnapshotService) GetInventorySnapshot(ctx context.Context, technicianID int) (*dto.InventorySnapshotDTO, error) {
	key := inventoryCacheKey(technicianID)
	if cached, err := s.cacheRepo.Get(ctx, key); err == nil {
		var snapshot dto.InventorySnapshotDTO
		if err := json.Unmarshal([]byte(cached), &snapshot); err == nil {
			return &snapshot, nil
		}
		s.logger.Warn("Битая запись в кеше снимка склада", zap.String("key", key))
	} else if !errors.Is(err, redis.Nil) {
		// Redis недоступен — деградируем до чтения из базы.
		s.logger.Warn("Кеш снимка склада недоступен", zap.Error(err))
	}

	items, err := s.inventoryRepo.GetSnapshot(ctx, technicianID)
	if err != nil {
		return nil, err
	}

	visible := make([]entities.InventoryItem, 0, len(items))
	for _, item := range items {
		if item.ItemType == constants.ItemTypeGeneric && item.Quantity <= 0 {
			continue
		}
		if item.ItemType == constants.ItemTypeSerialized {
			active := make([]entities.SerializedUnit, 0, len(item.Units))
			for _, u := range item.Units {
				if u.Status == constants.UnitStatusActive {
					active = append(active, u)
				}
			}
			item.Units = active
		}
		visible = append(visible, item)
	}
	snapshot := &dto.InventorySnapshotDTO{TechnicianID: technicianID, Items: visible}

	if payload, err := json.Marshal(snapshot); err == nil {
		if err := s.cacheRepo.Set(ctx, key, payload, s.cacheCfg.SnapshotTTL); err != nil {
			s.logger.Warn("Не удалось записать снимок склада в кеш", zap.Error(err))
		}
	}
	return snapshot, nil
}

// GetOrderList — кешированный список нарядов техника.
func (s *SnapshotService) GetOrderList(ctx context.Context, technicianID int) ([]entities.WorkOrder, error) {
	key := orderListCacheKey(technicianID)
	if cached, err := s.cacheRepo.Get(ctx, key); err == nil {
		var orders []entities.WorkOrder
		if err := json.Unmarshal([]byte(cached), &orders); err == nil {
			return orders, nil
		}
		s.logger.Warn("Битая запись в кеше списка нарядов", zap.String("key", key))
	} else if !errors.Is(err, redis.Nil) {
		s.logger.Warn("Кеш списка нарядов недоступен", zap.Error(err))
	}

	orders, _, err := s.orderRepo.GetOrders(ctx, types.Filter{
		Filter: map[string]interface{}{"technician_id": technicianID},
		Sort:   map[string]string{"id": "desc"},
	})
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(orders); err == nil {
		if err := s.cacheRepo.Set(ctx, key, payload, s.cacheCfg.OrderListTTL); err != nil {
			s.logger.Warn("Не удалось записать список нарядов в кеш", zap.Error(err))
		}
	}
	return orders, nil
}

func (s *SnapshotService) InvalidateInventory(ctx context.Context, technicianID int) {
	if err := s.cacheRepo.Del(ctx, inventoryCacheKey(technicianID)); err != nil {
		s.logger.Warn("Не удалось сбросить кеш снимка склада",
			zap.Int("technician_id", technicianID), zap.Error(err))
	}
}

func (s *SnapshotService) InvalidateOrderList(ctx context.Context, technicianID int) {
	if err := s.cacheRepo.Del(ctx, orderListCacheKey(technicianID)); err != nil {
		s.logger.Warn("Не удалось сбросить кеш списка нарядов",
			zap.Int("technician_id", technicianID), zap.Error(err))
	}
}
