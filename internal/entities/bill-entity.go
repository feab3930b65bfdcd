package entities

import "time"

// Bill — счет по наряду. Создается в статусе draft со снимком выбранных
// позиций; после подтверждения оплаты становится неизменяемым.
// Инвариант: TotalAmount = Σ(Price × Quantity) на момент создания,
// после подтверждения не пересчитывается.
type Bill struct {
	ID            string     `json:"bill_id"`
	OrderID       int        `json:"order_id"`
	Status        string     `json:"status"`
	Items         []BillItem `json:"items"`
	TotalAmount   float64    `json:"total_amount"`
	PaymentMethod *string    `json:"payment_method,omitempty"`
	TransactionID *string    `json:"transaction_id,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// BillItem — строка счета: снимок позиции на момент резервирования.
type BillItem struct {
	ID           int     `json:"id"`
	BillID       string  `json:"bill_id"`
	ItemID       int     `json:"item_id"`
	Name         string  `json:"name"`
	ItemType     string  `json:"type"`
	Quantity     int     `json:"quantity"`
	SerialNumber *string `json:"serial_number,omitempty"`
	Price        float64 `json:"price"`
	Amount       float64 `json:"amount"`
}
