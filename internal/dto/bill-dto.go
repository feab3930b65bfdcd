package dto

import "github.com/aarondl/null/v8"

// BillLineDTO — одна выбранная позиция будущего счета.
// Серийные позиции выбираются только по серийному номеру,
// generic — по названию, service — произвольная строка с ценой.
type BillLineDTO struct {
	ItemType     string  `json:"type" validate:"required,oneof=serialized generic service"`
	SerialNumber string  `json:"serial_number"`
	Name         string  `json:"name"`
	Quantity     int     `json:"quantity" validate:"required,min=1"`
	Price        float64 `json:"price" validate:"min=0"`
}

type CreateBillDTO struct {
	Items []BillLineDTO `json:"items" validate:"required,min=1,dive"`
}

// ConfirmPaymentDTO — подтверждение оплаты счета.
// Для online обязателен transaction_id длиной не меньше 12 символов,
// для cash идентификатор не требуется.
type ConfirmPaymentDTO struct {
	PaymentMethod string      `json:"payment_method" validate:"required,oneof=cash online"`
	TransactionID null.String `json:"transaction_id"`
}
