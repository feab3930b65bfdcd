package dto

import "fieldops-system/internal/entities"

// CreateWorkOrderDTO — назначение наряда менеджером.
// Контакт клиента приходит из справочника филиала и дальше не меняется.
type CreateWorkOrderDTO struct {
	CustomerID           int    `json:"customer_id" validate:"required"`
	ProjectID            int    `json:"project_id" validate:"required"`
	ProjectType          string `json:"project_type"`
	ProjectCategory      string `json:"project_category" validate:"required,oneof=NewInstallation Repair"`
	TechnicianID         int    `json:"technician_id" validate:"required"`
	OriginalTechnicianID int    `json:"original_technician_id"`
	Instructions         string `json:"instructions"`
	CustomerName         string `json:"customer_name" validate:"required"`
	CustomerAddress      string `json:"customer_address"`
	CustomerPhone        string `json:"customer_phone"`
	CustomerWhatsapp     string `json:"customer_whatsapp"`
}

// TransitionDTO — запрос перехода статуса от техника.
type TransitionDTO struct {
	TargetStatus string `json:"target_status" validate:"required"`
	Remark       string `json:"remark"`
}

// WorkOrderDTO — наряд вместе с журналом статусов и счетами.
type WorkOrderDTO struct {
	entities.WorkOrder
	StatusHistory []StatusHistoryEntryDTO `json:"status_history"`
	BillingInfo   []entities.Bill         `json:"billing_info"`
}

// StatusHistoryEntryDTO — запись журнала, обогащенная ФИО актора.
type StatusHistoryEntryDTO struct {
	entities.StatusHistoryEntry
	ActorFio string `json:"actor_fio,omitempty"`
}
