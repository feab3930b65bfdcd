package entities

import "time"

// InventoryItem — складская позиция, принадлежащая ровно одному технику.
// Для serialized количество = число активных серийных единиц,
// для generic — поле Quantity, для service остатка нет вовсе.
type InventoryItem struct {
	ID           int              `json:"id"`
	TechnicianID int              `json:"technician_id"`
	Name         string           `json:"name"`
	ItemType     string           `json:"item_type"`
	Quantity     int              `json:"quantity"`
	Price        float64          `json:"price"`
	Units        []SerializedUnit `json:"serialized_items,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// SerializedUnit — одна серийная единица. Серийный номер уникален
// в пределах позиции; единица попадает максимум в один подтвержденный счет.
type SerializedUnit struct {
	ID           int    `json:"id"`
	ItemID       int    `json:"item_id"`
	SerialNumber string `json:"serial_number"`
	Status       string `json:"status"`
}

// BranchStock — пул филиала, куда техник сдает остаток.
type BranchStock struct {
	ID       int    `json:"id"`
	BranchID int    `json:"branch_id"`
	Name     string `json:"name"`
	ItemType string `json:"item_type"`
	Quantity int    `json:"quantity"`
}
