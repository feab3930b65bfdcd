package events

import "fieldops-system/pkg/constants"

// ProjectStartedEvent возникает на переходе assigned → in-progress.
// Для категории Repair несёт контакт техника первоначального монтажа,
// чтобы соседнее представление могло показать его новому исполнителю.
type ProjectStartedEvent struct {
	OrderID              int
	TechnicianID         int
	ProjectCategory      string
	OriginalTechnicianID int
}

func (e ProjectStartedEvent) Name() string {
	return "project.started"
}

// StatusChangedEvent возникает после коммита любого перехода state-машины.
type StatusChangedEvent struct {
	OrderID      int
	TechnicianID int
	Status       constants.OrderStatus
	Remark       string
	ActorID      int
}

func (e StatusChangedEvent) Name() string {
	return "order.status.changed"
}
