package dto

// StopRequestDTO — запрос техника на остановку/передачу наряда.
type StopRequestDTO struct {
	Remark string `json:"remark" validate:"required,remark"`
}

// PausePreviewDTO — первый шаг паузы: сервер возвращает токен подтверждения,
// на этом шаге состояние наряда не меняется.
type PausePreviewDTO struct {
	Remark string `json:"remark" validate:"required,remark"`
}

type PausePreviewResponseDTO struct {
	ConfirmationToken string `json:"confirmation_token"`
	Remark            string `json:"remark"`
}

// PauseCommitDTO — второй шаг: необратимая фиксация паузы по токену.
type PauseCommitDTO struct {
	ConfirmationToken string `json:"confirmation_token" validate:"required"`
}

// PendingTransferDTO — данные незакрытого запроса на передачу
// для менеджера-согласующего.
type PendingTransferDTO struct {
	OrderID     int    `json:"order_id"`
	RequesterID int    `json:"requester_id"`
	Remark      string `json:"remark"`
	RequestedAt string `json:"requested_at"`
}

// TransferDecisionDTO — решение менеджера по запросу на передачу.
type TransferDecisionDTO struct {
	NewTechnicianID int    `json:"new_technician_id"`
	Remark          string `json:"remark"`
}
