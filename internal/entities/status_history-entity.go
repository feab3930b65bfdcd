package entities

import (
	"time"

	"fieldops-system/pkg/constants"
)

// StatusHistoryEntry — запись журнала статусов.
// Журнал append-only: записи не редактируются и не удаляются,
// порядок записей совпадает с порядком коммитов переходов.
type StatusHistoryEntry struct {
	ID        int                   `json:"id"`
	OrderID   int                   `json:"order_id"`
	Status    constants.OrderStatus `json:"status"`
	Remark    string                `json:"remark"`
	UpdatedBy int                   `json:"updated_by"`
	UpdatedAt time.Time             `json:"updated_at"`
}
