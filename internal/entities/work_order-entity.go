package entities

import (
	"time"

	"fieldops-system/pkg/constants"
)

// WorkOrder — один полевой наряд. Создается менеджером при назначении,
// изменяется только через переходы state-машины, никогда не удаляется.
type WorkOrder struct {
	ID                   int                   `json:"id"`
	CustomerID           int                   `json:"customer_id"`
	ProjectID            int                   `json:"project_id"`
	ProjectType          string                `json:"project_type"`
	ProjectCategory      string                `json:"project_category"`
	TechnicianID         int                   `json:"technician_id"`
	OriginalTechnicianID *int                  `json:"original_technician_id,omitempty"`
	Status               constants.OrderStatus `json:"status"`
	Instructions         string                `json:"instructions"`
	Customer             CustomerContact       `json:"customer"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// CustomerContact — контактные данные клиента, прикрепляются к наряду
// при создании и далее не изменяются.
type CustomerContact struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	Whatsapp string `json:"whatsapp"`
}
