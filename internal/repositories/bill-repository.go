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
	apperrors "fieldops-system/pkg/errors"
)

type BillRepositoryInterface interface {
	CreateBillInTx(ctx context.Context, tx pgx.Tx, bill *entities.Bill) error
	FindBillForUpdateInTx(ctx context.Context, tx pgx.Tx, billID string) (*entities.Bill, error)
	FindDraftByOrderInTx(ctx context.Context, tx pgx.Tx, orderID int) (*entities.Bill, error)
	MarkPaidInTx(ctx context.Context, tx pgx.Tx, billID string, method string, transactionID *string, paidAt time.Time) error
	FindBill(ctx context.Context, billID string) (*entities.Bill, error)
	FindByOrderID(ctx context.Context, orderID int, status string) ([]entities.Bill, error)
	DeleteDraftInTx(ctx context.Context, tx pgx.Tx, billID string) error
}

type BillRepository struct {
	storage *pgxpool.Pool
}

func NewBillRepository(storage *pgxpool.Pool) BillRepositoryInterface {
	return &BillRepository{storage: storage}
}

func (r *BillRepository) CreateBillInTx(ctx context.Context, tx pgx.Tx, bill *entities.Bill) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO bills (id, order_id, status, total_amount)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		bill.ID, bill.OrderID, bill.Status, bill.TotalAmount,
	).Scan(&bill.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания счета: %w", err)
	}

	for i := range bill.Items {
		item := &bill.Items[i]
		item.BillID = bill.ID
		err := tx.QueryRow(ctx, `
			INSERT INTO bill_items (bill_id, item_id, name, item_type, quantity, serial_number, price, amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			item.BillID, item.ItemID, item.Name, item.ItemType, item.Quantity, item.SerialNumber, item.Price, item.Amount,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("ошибка создания строки счета: %w", err)
		}
	}
	return nil
}

func (r *BillRepository) loadItems(ctx context.Context, q querier, billID string) ([]entities.BillItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, bill_id, item_id, name, item_type, quantity, serial_number, price, amount
		FROM bill_items
		WHERE bill_id = $1
		ORDER BY id ASC`, billID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения строк счета: %w", err)
	}
	defer rows.Close()

	items := make([]entities.BillItem, 0)
	for rows.Next() {
		var item entities.BillItem
		if err := rows.Scan(&item.ID, &item.BillID, &item.ItemID, &item.Name, &item.ItemType,
			&item.Quantity, &item.SerialNumber, &item.Price, &item.Amount); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки счета: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanBill(row pgx.Row) (*entities.Bill, error) {
	var bill entities.Bill
	err := row.Scan(&bill.ID, &bill.OrderID, &bill.Status, &bill.TotalAmount,
		&bill.PaymentMethod, &bill.TransactionID, &bill.PaidAt, &bill.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

const billColumns = `id, order_id, status, total_amount, payment_method, transaction_id, paid_at, created_at`

// FindBillForUpdateInTx блокирует счет: повторное подтверждение оплаты
// дождется первого и увидит статус paid.
func (r *BillRepository) FindBillForUpdateInTx(ctx context.Context, tx pgx.Tx, billID string) (*entities.Bill, error) {
	bill, err := scanBill(tx.QueryRow(ctx,
		`SELECT `+billColumns+` FROM bills WHERE id = $1 FOR UPDATE`, billID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("Счет %s не найден", billID)
		}
		return nil, fmt.Errorf("ошибка блокировки счета: %w", err)
	}
	bill.Items, err = r.loadItems(ctx, tx, billID)
	if err != nil {
		return nil, err
	}
	return bill, nil
}

func (r *BillRepository) FindDraftByOrderInTx(ctx context.Context, tx pgx.Tx, orderID int) (*entities.Bill, error) {
	bill, err := scanBill(tx.QueryRow(ctx,
		`SELECT `+billColumns+` FROM bills WHERE order_id = $1 AND status = $2 LIMIT 1`,
		orderID, constants.BillStatusDraft))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка поиска черновика счета: %w", err)
	}
	bill.Items, err = r.loadItems(ctx, tx, bill.ID)
	if err != nil {
		return nil, err
	}
	return bill, nil
}

func (r *BillRepository) MarkPaidInTx(ctx context.Context, tx pgx.Tx, billID string, method string, transactionID *string, paidAt time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE bills
		SET status = $1, payment_method = $2, transaction_id = $3, paid_at = $4
		WHERE id = $5 AND status = $6`,
		constants.BillStatusPaid, method, transactionID, paidAt, billID, constants.BillStatusDraft)
	if err != nil {
		return fmt.Errorf("ошибка подтверждения оплаты счета: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewConflictError("Счет %s уже оплачен или не существует", billID)
	}
	return nil
}

func (r *BillRepository) FindBill(ctx context.Context, billID string) (*entities.Bill, error) {
	bill, err := scanBill(r.storage.QueryRow(ctx,
		`SELECT `+billColumns+` FROM bills WHERE id = $1`, billID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("Счет %s не найден", billID)
		}
		return nil, fmt.Errorf("ошибка чтения счета: %w", err)
	}
	bill.Items, err = r.loadItems(ctx, r.storage, billID)
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// FindByOrderID возвращает счета наряда; status == "" — без фильтра.
func (r *BillRepository) FindByOrderID(ctx context.Context, orderID int, status string) ([]entities.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE order_id = $1`
	args := []interface{}{orderID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения счетов наряда: %w", err)
	}
	defer rows.Close()

	bills := make([]entities.Bill, 0)
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования счета: %w", err)
		}
		bills = append(bills, *bill)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range bills {
		bills[i].Items, err = r.loadItems(ctx, r.storage, bills[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return bills, nil
}

// DeleteDraftInTx удаляет неоплаченный черновик (отказ от биллинга).
// Оплаченные счета неизменяемы и не удаляются никогда.
func (r *BillRepository) DeleteDraftInTx(ctx context.Context, tx pgx.Tx, billID string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM bill_items WHERE bill_id = $1`, billID); err != nil {
		return fmt.Errorf("ошибка удаления строк черновика: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM bills WHERE id = $1 AND status = $2`,
		billID, constants.BillStatusDraft)
	if err != nil {
		return fmt.Errorf("ошибка удаления черновика счета: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewConflictError("Счет %s не является черновиком", billID)
	}
	return nil
}
