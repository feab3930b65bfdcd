package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fieldops-system/internal/dto"
	"fieldops-system/internal/entities"
	"fieldops-system/pkg/constants"
	apperrors "fieldops-system/pkg/errors"
	"fieldops-system/pkg/types"
)

type WorkOrderRepositoryInterface interface {
	GetOrders(ctx context.Context, filter types.Filter) ([]entities.WorkOrder, uint64, error)
	FindOrder(ctx context.Context, id int) (*entities.WorkOrder, error)
	CreateOrderInTx(ctx context.Context, tx pgx.Tx, orderData dto.CreateWorkOrderDTO) (int, error)
	FindOrderForUpdateInTx(ctx context.Context, tx pgx.Tx, id int) (*entities.WorkOrder, error)
	FindActiveOrderInTx(ctx context.Context, tx pgx.Tx, technicianID int, excludeOrderID int) (*entities.WorkOrder, error)
	UpdateStatusInTx(ctx context.Context, tx pgx.Tx, id int, status constants.OrderStatus) error
	ReassignInTx(ctx context.Context, tx pgx.Tx, id int, newTechnicianID int) error
}

type WorkOrderRepository struct {
	storage *pgxpool.Pool
}

func NewWorkOrderRepository(storage *pgxpool.Pool) WorkOrderRepositoryInterface {
	return &WorkOrderRepository{storage: storage}
}

const workOrderColumns = `
	id, customer_id, project_id, project_type, project_category,
	technician_id, original_technician_id, status, instructions,
	customer_name, customer_address, customer_phone, customer_whatsapp,
	created_at, updated_at`

func scanWorkOrder(row pgx.Row) (*entities.WorkOrder, error) {
	var order entities.WorkOrder
	var originalTechnicianID sql.NullInt64

	err := row.Scan(
		&order.ID, &order.CustomerID, &order.ProjectID, &order.ProjectType, &order.ProjectCategory,
		&order.TechnicianID, &originalTechnicianID, &order.Status, &order.Instructions,
		&order.Customer.Name, &order.Customer.Address, &order.Customer.Phone, &order.Customer.Whatsapp,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if originalTechnicianID.Valid {
		id := int(originalTechnicianID.Int64)
		order.OriginalTechnicianID = &id
	}
	return &order, nil
}

// allowedWorkOrderFields — белый список полей для фильтров и сортировки списка.
var allowedWorkOrderFields = map[string]string{
	"status":        "status",
	"technician_id": "technician_id",
	"customer_id":   "customer_id",
	"created_at":    "created_at",
}

func (r *WorkOrderRepository) GetOrders(ctx context.Context, filter types.Filter) ([]entities.WorkOrder, uint64, error) {
	countBuilder := sq.Select("COUNT(*)").From("work_orders").PlaceholderFormat(sq.Dollar)
	countBuilder = ApplyListParams(countBuilder, types.Filter{Filter: filter.Filter}, allowedWorkOrderFields)
	countQuery, countArgs, err := countBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка построения запроса подсчета нарядов: %w", err)
	}

	var total uint64
	if err := r.storage.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчета нарядов: %w", err)
	}

	builder := sq.Select(workOrderColumns).
		From("work_orders").
		PlaceholderFormat(sq.Dollar)
	builder = ApplyListParams(builder, filter, allowedWorkOrderFields)
	if len(filter.Sort) == 0 {
		builder = builder.OrderBy("created_at DESC")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка построения запроса списка нарядов: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения списка нарядов: %w", err)
	}
	defer rows.Close()

	orders := make([]entities.WorkOrder, 0)
	for rows.Next() {
		order, err := scanWorkOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования наряда в списке: %w", err)
		}
		orders = append(orders, *order)
	}
	return orders, total, rows.Err()
}

func (r *WorkOrderRepository) FindOrder(ctx context.Context, id int) (*entities.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders WHERE id = $1`
	order, err := scanWorkOrder(r.storage.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("Наряд %d не найден", id)
		}
		return nil, fmt.Errorf("ошибка сканирования наряда: %w", err)
	}
	return order, nil
}

func (r *WorkOrderRepository) CreateOrderInTx(ctx context.Context, tx pgx.Tx, orderData dto.CreateWorkOrderDTO) (int, error) {
	var originalTechnicianID interface{}
	if orderData.OriginalTechnicianID != 0 {
		originalTechnicianID = orderData.OriginalTechnicianID
	}

	var newOrderID int
	err := tx.QueryRow(ctx, `
		INSERT INTO work_orders (
			customer_id, project_id, project_type, project_category,
			technician_id, original_technician_id, status, instructions,
			customer_name, customer_address, customer_phone, customer_whatsapp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		orderData.CustomerID, orderData.ProjectID, orderData.ProjectType, orderData.ProjectCategory,
		orderData.TechnicianID, originalTechnicianID, constants.StatusAssigned, orderData.Instructions,
		orderData.CustomerName, orderData.CustomerAddress, orderData.CustomerPhone, orderData.CustomerWhatsapp,
	).Scan(&newOrderID)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания наряда: %w", err)
	}
	return newOrderID, nil
}

// FindOrderForUpdateInTx блокирует строку наряда до конца транзакции.
// Из двух гонящихся переходов второй дождется коммита первого и увидит
// уже новый статус.
func (r *WorkOrderRepository) FindOrderForUpdateInTx(ctx context.Context, tx pgx.Tx, id int) (*entities.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders WHERE id = $1 FOR UPDATE`
	order, err := scanWorkOrder(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("Наряд %d не найден", id)
		}
		return nil, fmt.Errorf("ошибка блокировки наряда: %w", err)
	}
	return order, nil
}

// FindActiveOrderInTx ищет другой наряд того же техника в статусе in-progress.
func (r *WorkOrderRepository) FindActiveOrderInTx(ctx context.Context, tx pgx.Tx, technicianID int, excludeOrderID int) (*entities.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + `
		FROM work_orders
		WHERE technician_id = $1 AND status = $2 AND id <> $3
		LIMIT 1`
	order, err := scanWorkOrder(tx.QueryRow(ctx, query, technicianID, constants.StatusInProgress, excludeOrderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка поиска активного наряда: %w", err)
	}
	return order, nil
}

func (r *WorkOrderRepository) UpdateStatusInTx(ctx context.Context, tx pgx.Tx, id int, status constants.OrderStatus) error {
	tag, err := tx.Exec(ctx,
		`UPDATE work_orders SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса наряда: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("Наряд %d не найден", id)
	}
	return nil
}

func (r *WorkOrderRepository) ReassignInTx(ctx context.Context, tx pgx.Tx, id int, newTechnicianID int) error {
	tag, err := tx.Exec(ctx,
		`UPDATE work_orders SET technician_id = $1, updated_at = $2 WHERE id = $3`,
		newTechnicianID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("ошибка переназначения наряда: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("Наряд %d не найден", id)
	}
	return nil
}
