package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fieldops-system/internal/entities"
	"fieldops-system/pkg/constants"
)

// SerializedUnitRow — серийная единица вместе с данными позиции-владельца.
type SerializedUnitRow struct {
	Unit entities.SerializedUnit
	Item entities.InventoryItem
}

type InventoryRepositoryInterface interface {
	GetSnapshot(ctx context.Context, technicianID int) ([]entities.InventoryItem, error)

	// Поиск с блокировкой: все операции reserve/consume/return по одной паре
	// техник+позиция сериализуются через FOR UPDATE.
	FindUnitBySerialForUpdateInTx(ctx context.Context, tx pgx.Tx, technicianID int, serialNumber string) (*SerializedUnitRow, error)
	FindGenericByNameForUpdateInTx(ctx context.Context, tx pgx.Tx, technicianID int, name string) (*entities.InventoryItem, error)

	IsSerialReservedInDraftInTx(ctx context.Context, tx pgx.Tx, serialNumber string) (bool, error)
	ReservedGenericQtyInDraftInTx(ctx context.Context, tx pgx.Tx, itemID int) (int, error)

	SetUnitStatusInTx(ctx context.Context, tx pgx.Tx, unitID int, status string) error
	MarkUnitUsedInTx(ctx context.Context, tx pgx.Tx, itemID int, serialNumber string) error
	DecrementGenericInTx(ctx context.Context, tx pgx.Tx, itemID int, qty int) error

	AddToBranchStockInTx(ctx context.Context, tx pgx.Tx, branchID int, name, itemType string, qty int) error
	TakeFromBranchStockInTx(ctx context.Context, tx pgx.Tx, branchID int, name, itemType string, qty int) error
	UpsertItemInTx(ctx context.Context, tx pgx.Tx, technicianID int, name, itemType string, qty int, price float64) (int, error)
	AddUnitsInTx(ctx context.Context, tx pgx.Tx, itemID int, serialNumbers []string) error
}

type InventoryRepository struct {
	storage *pgxpool.Pool
}

func NewInventoryRepository(storage *pgxpool.Pool) InventoryRepositoryInterface {
	return &InventoryRepository{storage: storage}
}

// GetSnapshot — полный снимок склада техника. Для серийных позиций
// количество — это число активных единиц.
func (r *InventoryRepository) GetSnapshot(ctx context.Context, technicianID int) ([]entities.InventoryItem, error) {
	rows, err := r.storage.Query(ctx, `
		SELECT id, technician_id, name, item_type, quantity, price, created_at, updated_at
		FROM inventory_items
		WHERE technician_id = $1
		ORDER BY name ASC`, technicianID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения склада техника: %w", err)
	}
	defer rows.Close()

	items := make([]entities.InventoryItem, 0)
	byID := make(map[int]int)
	for rows.Next() {
		var item entities.InventoryItem
		if err := rows.Scan(&item.ID, &item.TechnicianID, &item.Name, &item.ItemType,
			&item.Quantity, &item.Price, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования позиции склада: %w", err)
		}
		byID[item.ID] = len(items)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	unitRows, err := r.storage.Query(ctx, `
		SELECT su.id, su.item_id, su.serial_number, su.status
		FROM serialized_units su
		JOIN inventory_items i ON su.item_id = i.id
		WHERE i.technician_id = $1
		ORDER BY su.id ASC`, technicianID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения серийных единиц: %w", err)
	}
	defer unitRows.Close()

	for unitRows.Next() {
		var unit entities.SerializedUnit
		if err := unitRows.Scan(&unit.ID, &unit.ItemID, &unit.SerialNumber, &unit.Status); err != nil {
			return nil, fmt.Errorf("ошибка сканирования серийной единицы: %w", err)
		}
		if idx, ok := byID[unit.ItemID]; ok {
			items[idx].Units = append(items[idx].Units, unit)
		}
	}
	if err := unitRows.Err(); err != nil {
		return nil, err
	}

	// Для serialized количество считаем по активным единицам.
	for i := range items {
		if items[i].ItemType == constants.ItemTypeSerialized {
			active := 0
			for _, u := range items[i].Units {
				if u.Status == constants.UnitStatusActive {
					active++
				}
			}
			items[i].Quantity = active
		}
	}
	return items, nil
}

// FindUnitBySerialForUpdateInTx ищет единицу только по серийному номеру:
// поиск по названию неоднозначен, когда много единиц делят одно имя.
func (r *InventoryRepository) FindUnitBySerialForUpdateInTx(ctx context.Context, tx pgx.Tx, technicianID int, serialNumber string) (*SerializedUnitRow, error) {
	var row SerializedUnitRow
	err := tx.QueryRow(ctx, `
		SELECT su.id, su.item_id, su.serial_number, su.status,
		       i.id, i.technician_id, i.name, i.item_type, i.quantity, i.price
		FROM serialized_units su
		JOIN inventory_items i ON su.item_id = i.id
		WHERE i.technician_id = $1 AND su.serial_number = $2
		FOR UPDATE OF su, i`,
		technicianID, serialNumber,
	).Scan(
		&row.Unit.ID, &row.Unit.ItemID, &row.Unit.SerialNumber, &row.Unit.Status,
		&row.Item.ID, &row.Item.TechnicianID, &row.Item.Name, &row.Item.ItemType, &row.Item.Quantity, &row.Item.Price,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка поиска серийной единицы %s: %w", serialNumber, err)
	}
	return &row, nil
}

func (r *InventoryRepository) FindGenericByNameForUpdateInTx(ctx context.Context, tx pgx.Tx, technicianID int, name string) (*entities.InventoryItem, error) {
	var item entities.InventoryItem
	err := tx.QueryRow(ctx, `
		SELECT id, technician_id, name, item_type, quantity, price
		FROM inventory_items
		WHERE technician_id = $1 AND name = $2 AND item_type = $3
		FOR UPDATE`,
		technicianID, name, constants.ItemTypeGeneric,
	).Scan(&item.ID, &item.TechnicianID, &item.Name, &item.ItemType, &item.Quantity, &item.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка поиска позиции %s: %w", name, err)
	}
	return &item, nil
}

// IsSerialReservedInDraftInTx — зарезервирован ли серийный номер в любом
// неоплаченном счете (запрет двойного бронирования между черновиками).
func (r *InventoryRepository) IsSerialReservedInDraftInTx(ctx context.Context, tx pgx.Tx, serialNumber string) (bool, error) {
	var reserved bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bill_items bi
			JOIN bills b ON bi.bill_id = b.id
			WHERE b.status = $1 AND bi.serial_number = $2
		)`, constants.BillStatusDraft, serialNumber).Scan(&reserved)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки резерва серийного номера: %w", err)
	}
	return reserved, nil
}

// ReservedGenericQtyInDraftInTx — суммарный резерв generic-позиции
// по всем открытым черновикам.
func (r *InventoryRepository) ReservedGenericQtyInDraftInTx(ctx context.Context, tx pgx.Tx, itemID int) (int, error) {
	var reserved int
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(bi.quantity), 0)
		FROM bill_items bi
		JOIN bills b ON bi.bill_id = b.id
		WHERE b.status = $1 AND bi.item_id = $2`,
		constants.BillStatusDraft, itemID).Scan(&reserved)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчета резерва позиции: %w", err)
	}
	return reserved, nil
}

func (r *InventoryRepository) SetUnitStatusInTx(ctx context.Context, tx pgx.Tx, unitID int, status string) error {
	tag, err := tx.Exec(ctx,
		`UPDATE serialized_units SET status = $1 WHERE id = $2`, status, unitID)
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса серийной единицы: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("серийная единица %d не найдена", unitID)
	}
	return nil
}

// MarkUnitUsedInTx переводит активную единицу в used. Повторный вызов
// по той же единице строк не затрагивает — вернется ошибка.
func (r *InventoryRepository) MarkUnitUsedInTx(ctx context.Context, tx pgx.Tx, itemID int, serialNumber string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE serialized_units
		SET status = $1
		WHERE item_id = $2 AND serial_number = $3 AND status = $4`,
		constants.UnitStatusUsed, itemID, serialNumber, constants.UnitStatusActive)
	if err != nil {
		return fmt.Errorf("ошибка списания серийной единицы %s: %w", serialNumber, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("серийная единица %s уже списана или не найдена", serialNumber)
	}
	return nil
}

// DecrementGenericInTx уменьшает количество; CHECK (quantity >= 0) в схеме —
// последний рубеж против ухода в минус.
func (r *InventoryRepository) DecrementGenericInTx(ctx context.Context, tx pgx.Tx, itemID int, qty int) error {
	tag, err := tx.Exec(ctx, `
		UPDATE inventory_items
		SET quantity = quantity - $1, updated_at = $2
		WHERE id = $3 AND quantity >= $1`,
		qty, time.Now(), itemID)
	if err != nil {
		return fmt.Errorf("ошибка списания позиции %d: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("недостаточно остатка для списания позиции %d", itemID)
	}
	return nil
}

func (r *InventoryRepository) AddToBranchStockInTx(ctx context.Context, tx pgx.Tx, branchID int, name, itemType string, qty int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO branch_stock (branch_id, name, item_type, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (branch_id, name, item_type)
		DO UPDATE SET quantity = branch_stock.quantity + EXCLUDED.quantity`,
		branchID, name, itemType, qty)
	if err != nil {
		return fmt.Errorf("ошибка пополнения пула филиала: %w", err)
	}
	return nil
}

func (r *InventoryRepository) TakeFromBranchStockInTx(ctx context.Context, tx pgx.Tx, branchID int, name, itemType string, qty int) error {
	tag, err := tx.Exec(ctx, `
		UPDATE branch_stock
		SET quantity = quantity - $1
		WHERE branch_id = $2 AND name = $3 AND item_type = $4 AND quantity >= $1`,
		qty, branchID, name, itemType)
	if err != nil {
		return fmt.Errorf("ошибка списания из пула филиала: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("в пуле филиала %d нет %d шт. позиции %s", branchID, qty, name)
	}
	return nil
}

// UpsertItemInTx создает позицию у техника или добавляет количество к существующей.
func (r *InventoryRepository) UpsertItemInTx(ctx context.Context, tx pgx.Tx, technicianID int, name, itemType string, qty int, price float64) (int, error) {
	var itemID int
	err := tx.QueryRow(ctx, `
		SELECT id FROM inventory_items
		WHERE technician_id = $1 AND name = $2 AND item_type = $3
		FOR UPDATE`,
		technicianID, name, itemType).Scan(&itemID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("ошибка поиска позиции при выдаче: %w", err)
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO inventory_items (technician_id, name, item_type, quantity, price)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			technicianID, name, itemType, qty, price).Scan(&itemID)
		if err != nil {
			return 0, fmt.Errorf("ошибка создания позиции при выдаче: %w", err)
		}
		return itemID, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE inventory_items
		SET quantity = quantity + $1, price = $2, updated_at = $3
		WHERE id = $4`,
		qty, price, time.Now(), itemID)
	if err != nil {
		return 0, fmt.Errorf("ошибка пополнения позиции при выдаче: %w", err)
	}
	return itemID, nil
}

func (r *InventoryRepository) AddUnitsInTx(ctx context.Context, tx pgx.Tx, itemID int, serialNumbers []string) error {
	for _, serial := range serialNumbers {
		_, err := tx.Exec(ctx, `
			INSERT INTO serialized_units (item_id, serial_number, status)
			VALUES ($1, $2, $3)`,
			itemID, serial, constants.UnitStatusActive)
		if err != nil {
			return fmt.Errorf("ошибка добавления серийной единицы %s: %w", serial, err)
		}
	}
	return nil
}
