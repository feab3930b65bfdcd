package websocket

import "time"

// Envelope — это "конверт", в котором мы отправляем наши сообщения.
// Он содержит тип сообщения, что позволяет фронтенду понять, что делать.
type Envelope struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// ProjectStartedPayload — уведомление о старте проекта. Для категории Repair
// несёт контакт техника, выполнявшего первоначальный монтаж.
type ProjectStartedPayload struct {
	OrderID              int    `json:"orderId"`
	ProjectCategory      string `json:"projectCategory"`
	OriginalTechnicianID int    `json:"originalTechnicianId,omitempty"`
	Message              string `json:"message"`
}

// StatusChangedPayload — уведомление об изменении статуса наряда.
type StatusChangedPayload struct {
	OrderID int    `json:"orderId"`
	Status  string `json:"status"`
	Remark  string `json:"remark"`
	Actor   int    `json:"actor"`
}
