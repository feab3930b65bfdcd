package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fieldops-system/internal/dto"
	"fieldops-system/internal/entities"
	"fieldops-system/pkg/constants"
	apperrors "fieldops-system/pkg/errors"
)

type StatusHistoryRepositoryInterface interface {
	CreateInTx(ctx context.Context, tx pgx.Tx, entry *entities.StatusHistoryEntry) error
	FindByOrderID(ctx context.Context, orderID int) ([]dto.StatusHistoryEntryDTO, error)
	FindLatestForStatus(ctx context.Context, orderID int, status constants.OrderStatus) (*entities.StatusHistoryEntry, error)
}

type StatusHistoryRepository struct {
	storage *pgxpool.Pool
}

func NewStatusHistoryRepository(storage *pgxpool.Pool) StatusHistoryRepositoryInterface {
	return &StatusHistoryRepository{storage: storage}
}

// CreateInTx добавляет запись журнала в той же транзакции, что и переход:
// порядок записей журнала совпадает с порядком коммитов.
func (r *StatusHistoryRepository) CreateInTx(ctx context.Context, tx pgx.Tx, entry *entities.StatusHistoryEntry) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO status_history (order_id, status, remark, updated_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, updated_at`,
		entry.OrderID, entry.Status, entry.Remark, entry.UpdatedBy,
	).Scan(&entry.ID, &entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка добавления записи журнала статусов: %w", err)
	}
	return nil
}

func (r *StatusHistoryRepository) FindByOrderID(ctx context.Context, orderID int) ([]dto.StatusHistoryEntryDTO, error) {
	query := `
		SELECT h.id, h.order_id, h.status, h.remark, h.updated_by, h.updated_at,
		       u.fio AS actor_fio
		FROM status_history h
		LEFT JOIN users u ON h.updated_by = u.id
		WHERE h.order_id = $1
		ORDER BY h.id ASC`

	rows, err := r.storage.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала статусов: %w", err)
	}
	defer rows.Close()

	history := make([]dto.StatusHistoryEntryDTO, 0)
	for rows.Next() {
		var h dto.StatusHistoryEntryDTO
		var actorFio sql.NullString
		if err := rows.Scan(&h.ID, &h.OrderID, &h.Status, &h.Remark, &h.UpdatedBy, &h.UpdatedAt, &actorFio); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи журнала: %w", err)
		}
		h.ActorFio = actorFio.String
		history = append(history, h)
	}
	return history, rows.Err()
}

// FindLatestForStatus возвращает последнюю запись журнала с указанным
// статусом — так менеджер видит причину и автора незакрытого запроса на передачу.
func (r *StatusHistoryRepository) FindLatestForStatus(ctx context.Context, orderID int, status constants.OrderStatus) (*entities.StatusHistoryEntry, error) {
	var entry entities.StatusHistoryEntry
	err := r.storage.QueryRow(ctx, `
		SELECT id, order_id, status, remark, updated_by, updated_at
		FROM status_history
		WHERE order_id = $1 AND status = $2
		ORDER BY id DESC
		LIMIT 1`,
		orderID, status,
	).Scan(&entry.ID, &entry.OrderID, &entry.Status, &entry.Remark, &entry.UpdatedBy, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("Запись журнала со статусом %s для наряда %d не найдена", status, orderID)
		}
		return nil, fmt.Errorf("ошибка поиска записи журнала: %w", err)
	}
	return &entry, nil
}
