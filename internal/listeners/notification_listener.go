package listeners

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"fieldops-system/internal/events"
	"fieldops-system/pkg/constants"
	"fieldops-system/pkg/eventbus"
	"fieldops-system/pkg/websocket"
)

// NotificationListener переводит доменные события в websocket-уведомления.
type NotificationListener struct {
	hub    *websocket.Hub
	logger *zap.Logger
}

func NewNotificationListener(hub *websocket.Hub, logger *zap.Logger) *NotificationListener {
	return &NotificationListener{
		hub:    hub,
		logger: logger,
	}
}

func (l *NotificationListener) Register(bus *eventbus.Bus) {
	bus.Subscribe("project.started", l.handleProjectStarted)
	bus.Subscribe("order.status.changed", l.handleStatusChanged)
}

func (l *NotificationListener) handleProjectStarted(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.ProjectStartedEvent)
	if !ok {
		return fmt.Errorf("неожиданный тип события: %T", event)
	}

	payload := websocket.ProjectStartedPayload{
		OrderID:         e.OrderID,
		ProjectCategory: e.ProjectCategory,
		Message:         fmt.Sprintf("Проект по наряду %d запущен", e.OrderID),
	}
	if e.ProjectCategory == constants.CategoryRepair && e.OriginalTechnicianID != 0 {
		payload.OriginalTechnicianID = e.OriginalTechnicianID
		payload.Message = fmt.Sprintf(
			"Проект по наряду %d запущен. Первоначальный монтаж выполнял техник %d", e.OrderID, e.OriginalTechnicianID)
	}

	return l.hub.SendMessageToUser(e.TechnicianID, payload, "project.started")
}

func (l *NotificationListener) handleStatusChanged(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.StatusChangedEvent)
	if !ok {
		return fmt.Errorf("неожиданный тип события: %T", event)
	}

	return l.hub.SendMessageToUser(e.TechnicianID, websocket.StatusChangedPayload{
		OrderID: e.OrderID,
		Status:  string(e.Status),
		Remark:  e.Remark,
		Actor:   e.ActorID,
	}, "order.status.changed")
}
