package constants

// --- РОЛИ ---
const (
	RoleTechnician = "technician"
	RoleManager    = "manager"
)

// --- КАТЕГОРИИ ПРОЕКТОВ ---
const (
	CategoryNewInstallation = "NewInstallation"
	CategoryRepair          = "Repair"
)

// --- ТИПЫ ПОЗИЦИЙ СКЛАДА ---
const (
	ItemTypeSerialized = "serialized"
	ItemTypeGeneric    = "generic"
	ItemTypeService    = "service"
)

// --- СТАТУСЫ СЕРИЙНЫХ ЕДИНИЦ ---
const (
	UnitStatusActive   = "active"
	UnitStatusUsed     = "used"
	UnitStatusReturned = "returned"
)

// --- СТАТУСЫ СЧЕТОВ ---
const (
	BillStatusDraft = "draft"
	BillStatusPaid  = "paid"
)

// --- СПОСОБЫ ОПЛАТЫ ---
const (
	PaymentMethodCash   = "cash"
	PaymentMethodOnline = "online"
)

// MinTransactionIDLength — минимальная длина идентификатора онлайн-транзакции.
const MinTransactionIDLength = 12
