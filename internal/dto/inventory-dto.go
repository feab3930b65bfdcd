package dto

import "fieldops-system/internal/entities"

// AssignStockDTO — выдача остатка техником из пула филиала (действие менеджера).
type AssignStockDTO struct {
	TechnicianID  int      `json:"technician_id" validate:"required"`
	Name          string   `json:"name" validate:"required"`
	ItemType      string   `json:"item_type" validate:"required,oneof=serialized generic"`
	Quantity      int      `json:"quantity" validate:"min=0"`
	SerialNumbers []string `json:"serial_numbers"`
	Price         float64  `json:"price" validate:"min=0"`
}

// ReturnLineDTO — одна возвращаемая позиция. Серийная единица задается
// серийным номером, generic — названием и количеством.
type ReturnLineDTO struct {
	ItemType     string `json:"item_type" validate:"required,oneof=serialized generic"`
	SerialNumber string `json:"serial_number"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity" validate:"min=0"`
}

type ReturnStockDTO struct {
	Items []ReturnLineDTO `json:"items" validate:"required,min=1,dive"`
}

// InventorySnapshotDTO — снимок склада техника для read-side кеша.
type InventorySnapshotDTO struct {
	TechnicianID int                      `json:"technician_id"`
	Items        []entities.InventoryItem `json:"items"`
}
