package constants

// OrderStatus — закрытое перечисление статусов наряда.
// Вся бизнес-логика переходов живет на границе state-машины
// (services.WorkOrderService); остальной код только читает статус.
type OrderStatus string

const (
	StatusAssigned        OrderStatus = "assigned"
	StatusInProgress      OrderStatus = "in-progress"
	StatusPaused          OrderStatus = "paused"
	StatusPendingApproval OrderStatus = "pending-approval"
	StatusTransferring    OrderStatus = "transferring"
	StatusTransferred     OrderStatus = "transferred"
	StatusCompleted       OrderStatus = "completed"
)

// Финальные статусы: наряд не удаляется, а терминализируется.
var FinalStatuses = []OrderStatus{
	StatusCompleted,
	StatusTransferred,
}

func IsFinalStatus(status OrderStatus) bool {
	for _, s := range FinalStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func IsValidStatus(status OrderStatus) bool {
	switch status {
	case StatusAssigned, StatusInProgress, StatusPaused,
		StatusPendingApproval, StatusTransferring, StatusTransferred, StatusCompleted:
		return true
	}
	return false
}
