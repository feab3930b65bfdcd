package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"fieldops-system/internal/dto"
	"fieldops-system/internal/entities"
	"fieldops-system/internal/repositories"
	"fieldops-system/pkg/config"
	"fieldops-system/pkg/constants"
	"fieldops-system/pkg/contextkeys"
	apperrors "fieldops-system/pkg/errors"
	"fieldops-system/pkg/eventbus"
	"fieldops-system/pkg/types"
)

// --- контекст актора ---

func ctxWithActor(userID int, role string, branchID int) context.Context {
	ctx := context.WithValue(context.Background(), contextkeys.UserIDKey, userID)
	ctx = context.WithValue(ctx, contextkeys.UserRoleKey, role)
	return context.WithValue(ctx, contextkeys.BranchIDKey, branchID)
}

// --- транзакции ---

type fakeTxManager struct{}

func (m *fakeTxManager) RunInTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

// --- наряды ---

type fakeOrderRepo struct {
	mu     sync.Mutex
	nextID int
	orders map[int]*entities.WorkOrder
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[int]*entities.WorkOrder)}
}

func (r *fakeOrderRepo) add(order entities.WorkOrder) *entities.WorkOrder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	order.ID = r.nextID
	stored := order
	r.orders[order.ID] = &stored
	return &stored
}

func (r *fakeOrderRepo) GetOrders(ctx context.Context, filter types.Filter) ([]entities.WorkOrder, uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entities.WorkOrder, 0)
	for _, o := range r.orders {
		if tech, ok := filter.Filter["technician_id"]; ok {
			if id, ok := tech.(int); ok && o.TechnicianID != id {
				continue
			}
		}
		out = append(out, *o)
	}
	return out, uint64(len(out)), nil
}

func (r *fakeOrderRepo) FindOrder(ctx context.Context, id int) (*entities.WorkOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("Наряд %d не найден", id)
	}
	copied := *order
	return &copied, nil
}

func (r *fakeOrderRepo) CreateOrderInTx(ctx context.Context, tx pgx.Tx, orderData dto.CreateWorkOrderDTO) (int, error) {
	order := entities.WorkOrder{
		CustomerID:      orderData.CustomerID,
		ProjectID:       orderData.ProjectID,
		ProjectType:     orderData.ProjectType,
		ProjectCategory: orderData.ProjectCategory,
		TechnicianID:    orderData.TechnicianID,
		Status:          constants.StatusAssigned,
		Instructions:    orderData.Instructions,
		Customer: entities.CustomerContact{
			Name:     orderData.CustomerName,
			Address:  orderData.CustomerAddress,
			Phone:    orderData.CustomerPhone,
			Whatsapp: orderData.CustomerWhatsapp,
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if orderData.OriginalTechnicianID != 0 {
		id := orderData.OriginalTechnicianID
		order.OriginalTechnicianID = &id
	}
	return r.add(order).ID, nil
}

func (r *fakeOrderRepo) FindOrderForUpdateInTx(ctx context.Context, tx pgx.Tx, id int) (*entities.WorkOrder, error) {
	return r.FindOrder(ctx, id)
}

func (r *fakeOrderRepo) FindActiveOrderInTx(ctx context.Context, tx pgx.Tx, technicianID int, excludeOrderID int) (*entities.WorkOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.TechnicianID == technicianID && o.Status == constants.StatusInProgress && o.ID != excludeOrderID {
			copied := *o
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeOrderRepo) UpdateStatusInTx(ctx context.Context, tx pgx.Tx, id int, status constants.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return apperrors.NewNotFoundError("Наряд %d не найден", id)
	}
	order.Status = status
	order.UpdatedAt = time.Now()
	return nil
}

func (r *fakeOrderRepo) ReassignInTx(ctx context.Context, tx pgx.Tx, id int, newTechnicianID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return apperrors.NewNotFoundError("Наряд %d не найден", id)
	}
	order.TechnicianID = newTechnicianID
	return nil
}

// --- журнал статусов ---

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []entities.StatusHistoryEntry
}

func (r *fakeHistoryRepo) CreateInTx(ctx context.Context, tx pgx.Tx, entry *entities.StatusHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = len(r.entries) + 1
	entry.UpdatedAt = time.Now()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeHistoryRepo) FindByOrderID(ctx context.Context, orderID int) ([]dto.StatusHistoryEntryDTO, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]dto.StatusHistoryEntryDTO, 0)
	for _, e := range r.entries {
		if e.OrderID == orderID {
			out = append(out, dto.StatusHistoryEntryDTO{StatusHistoryEntry: e})
		}
	}
	return out, nil
}

func (r *fakeHistoryRepo) FindLatestForStatus(ctx context.Context, orderID int, status constants.OrderStatus) (*entities.StatusHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].OrderID == orderID && r.entries[i].Status == status {
			e := r.entries[i]
			return &e, nil
		}
	}
	return nil, nil
}

func (r *fakeHistoryRepo) forOrder(orderID int) []entities.StatusHistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entities.StatusHistoryEntry, 0)
	for _, e := range r.entries {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out
}

// --- счета ---

type fakeBillRepo struct {
	mu    sync.Mutex
	bills map[string]*entities.Bill
}

func newFakeBillRepo() *fakeBillRepo {
	return &fakeBillRepo{bills: make(map[string]*entities.Bill)}
}

func copyBill(b *entities.Bill) *entities.Bill {
	copied := *b
	copied.Items = append([]entities.BillItem(nil), b.Items...)
	return &copied
}

func (r *fakeBillRepo) CreateBillInTx(ctx context.Context, tx pgx.Tx, bill *entities.Bill) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	bill.CreatedAt = time.Now()
	for i := range bill.Items {
		bill.Items[i].ID = i + 1
		bill.Items[i].BillID = bill.ID
	}
	r.bills[bill.ID] = copyBill(bill)
	return nil
}

func (r *fakeBillRepo) FindBillForUpdateInTx(ctx context.Context, tx pgx.Tx, billID string) (*entities.Bill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bill, ok := r.bills[billID]
	if !ok {
		return nil, apperrors.NewNotFoundError("Счет %s не найден", billID)
	}
	return copyBill(bill), nil
}

func (r *fakeBillRepo) FindDraftByOrderInTx(ctx context.Context, tx pgx.Tx, orderID int) (*entities.Bill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bills {
		if b.OrderID == orderID && b.Status == constants.BillStatusDraft {
			return copyBill(b), nil
		}
	}
	return nil, nil
}

func (r *fakeBillRepo) MarkPaidInTx(ctx context.Context, tx pgx.Tx, billID string, method string, transactionID *string, paidAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	bill, ok := r.bills[billID]
	if !ok || bill.Status != constants.BillStatusDraft {
		return apperrors.NewConflictError("Счет %s уже оплачен или не существует", billID)
	}
	bill.Status = constants.BillStatusPaid
	bill.PaymentMethod = &method
	bill.TransactionID = transactionID
	at := paidAt
	bill.PaidAt = &at
	return nil
}

func (r *fakeBillRepo) FindBill(ctx context.Context, billID string) (*entities.Bill, error) {
	return r.FindBillForUpdateInTx(ctx, nil, billID)
}

func (r *fakeBillRepo) FindByOrderID(ctx context.Context, orderID int, status string) ([]entities.Bill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entities.Bill, 0)
	for _, b := range r.bills {
		if b.OrderID != orderID {
			continue
		}
		if status != "" && b.Status != status {
			continue
		}
		out = append(out, *copyBill(b))
	}
	return out, nil
}

func (r *fakeBillRepo) DeleteDraftInTx(ctx context.Context, tx pgx.Tx, billID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bills, billID)
	return nil
}

// --- пользователи ---

type fakeUserRepo struct {
	users     map[int]entities.User
	passwords map[string]string
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:     make(map[int]entities.User),
		passwords: make(map[string]string),
	}
}

func (r *fakeUserRepo) add(user entities.User) {
	r.users[user.ID] = user
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id int) (*entities.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("Пользователь %d не найден", id)
	}
	return &user, nil
}

func (r *fakeUserRepo) FindByLogin(ctx context.Context, login string) (*entities.User, string, error) {
	for _, u := range r.users {
		if u.Login == login {
			return &u, r.passwords[login], nil
		}
	}
	return nil, "", apperrors.NewNotFoundError("Пользователь %s не найден", login)
}

// --- склад ---

type branchStockKey struct {
	branchID int
	name     string
	itemType string
}

type fakeInventoryRepo struct {
	mu         sync.Mutex
	nextItemID int
	nextUnitID int
	items      map[int]*entities.InventoryItem
	units      map[int]*entities.SerializedUnit
	branch     map[branchStockKey]int
	bills      *fakeBillRepo
}

func newFakeInventoryRepo(bills *fakeBillRepo) *fakeInventoryRepo {
	return &fakeInventoryRepo{
		items:  make(map[int]*entities.InventoryItem),
		units:  make(map[int]*entities.SerializedUnit),
		branch: make(map[branchStockKey]int),
		bills:  bills,
	}
}

func (r *fakeInventoryRepo) addGeneric(technicianID int, name string, qty int, price float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextItemID++
	r.items[r.nextItemID] = &entities.InventoryItem{
		ID: r.nextItemID, TechnicianID: technicianID, Name: name,
		ItemType: constants.ItemTypeGeneric, Quantity: qty, Price: price,
	}
	return r.nextItemID
}

func (r *fakeInventoryRepo) addSerialized(technicianID int, name string, price float64, serials ...string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextItemID++
	itemID := r.nextItemID
	r.items[itemID] = &entities.InventoryItem{
		ID: itemID, TechnicianID: technicianID, Name: name,
		ItemType: constants.ItemTypeSerialized, Price: price,
	}
	for _, serial := range serials {
		r.nextUnitID++
		r.units[r.nextUnitID] = &entities.SerializedUnit{
			ID: r.nextUnitID, ItemID: itemID, SerialNumber: serial, Status: constants.UnitStatusActive,
		}
	}
	return itemID
}

func (r *fakeInventoryRepo) unitBySerial(serial string) *entities.SerializedUnit {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.units {
		if u.SerialNumber == serial {
			return u
		}
	}
	return nil
}

func (r *fakeInventoryRepo) GetSnapshot(ctx context.Context, technicianID int) ([]entities.InventoryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entities.InventoryItem, 0)
	for _, item := range r.items {
		if item.TechnicianID != technicianID {
			continue
		}
		copied := *item
		copied.Units = nil
		if item.ItemType == constants.ItemTypeSerialized {
			active := 0
			for _, u := range r.units {
				if u.ItemID == item.ID {
					copied.Units = append(copied.Units, *u)
					if u.Status == constants.UnitStatusActive {
						active++
					}
				}
			}
			copied.Quantity = active
		}
		out = append(out, copied)
	}
	return out, nil
}

func (r *fakeInventoryRepo) FindUnitBySerialForUpdateInTx(ctx context.Context, tx pgx.Tx, technicianID int, serialNumber string) (*repositories.SerializedUnitRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.units {
		item := r.items[u.ItemID]
		if item != nil && item.TechnicianID == technicianID && u.SerialNumber == serialNumber {
			return &repositories.SerializedUnitRow{Unit: *u, Item: *item}, nil
		}
	}
	return nil, nil
}

func (r *fakeInventoryRepo) FindGenericByNameForUpdateInTx(ctx context.Context, tx pgx.Tx, technicianID int, name string) (*entities.InventoryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.TechnicianID == technicianID && item.Name == name && item.ItemType == constants.ItemTypeGeneric {
			copied := *item
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeInventoryRepo) IsSerialReservedInDraftInTx(ctx context.Context, tx pgx.Tx, serialNumber string) (bool, error) {
	r.bills.mu.Lock()
	defer r.bills.mu.Unlock()
	for _, b := range r.bills.bills {
		if b.Status != constants.BillStatusDraft {
			continue
		}
		for _, item := range b.Items {
			if item.SerialNumber != nil && *item.SerialNumber == serialNumber {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *fakeInventoryRepo) ReservedGenericQtyInDraftInTx(ctx context.Context, tx pgx.Tx, itemID int) (int, error) {
	r.bills.mu.Lock()
	defer r.bills.mu.Unlock()
	total := 0
	for _, b := range r.bills.bills {
		if b.Status != constants.BillStatusDraft {
			continue
		}
		for _, item := range b.Items {
			if item.ItemID == itemID {
				total += item.Quantity
			}
		}
	}
	return total, nil
}

func (r *fakeInventoryRepo) SetUnitStatusInTx(ctx context.Context, tx pgx.Tx, unitID int, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	unit, ok := r.units[unitID]
	if !ok {
		return fmt.Errorf("серийная единица %d не найдена", unitID)
	}
	unit.Status = status
	return nil
}

func (r *fakeInventoryRepo) MarkUnitUsedInTx(ctx context.Context, tx pgx.Tx, itemID int, serialNumber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.units {
		if u.ItemID == itemID && u.SerialNumber == serialNumber && u.Status == constants.UnitStatusActive {
			u.Status = constants.UnitStatusUsed
			return nil
		}
	}
	return fmt.Errorf("серийная единица %s уже списана или не найдена", serialNumber)
}

func (r *fakeInventoryRepo) DecrementGenericInTx(ctx context.Context, tx pgx.Tx, itemID int, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[itemID]
	if !ok || item.Quantity < qty {
		return fmt.Errorf("недостаточно остатка для списания позиции %d", itemID)
	}
	item.Quantity -= qty
	return nil
}

func (r *fakeInventoryRepo) AddToBranchStockInTx(ctx context.Context, tx pgx.Tx, branchID int, name, itemType string, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.branch[branchStockKey{branchID, name, itemType}] += qty
	return nil
}

func (r *fakeInventoryRepo) TakeFromBranchStockInTx(ctx context.Context, tx pgx.Tx, branchID int, name, itemType string, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := branchStockKey{branchID, name, itemType}
	if r.branch[key] < qty {
		return fmt.Errorf("в пуле филиала %d нет %d шт. позиции %s", branchID, qty, name)
	}
	r.branch[key] -= qty
	return nil
}

func (r *fakeInventoryRepo) UpsertItemInTx(ctx context.Context, tx pgx.Tx, technicianID int, name, itemType string, qty int, price float64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.TechnicianID == technicianID && item.Name == name && item.ItemType == itemType {
			item.Quantity += qty
			item.Price = price
			return item.ID, nil
		}
	}
	r.nextItemID++
	r.items[r.nextItemID] = &entities.InventoryItem{
		ID: r.nextItemID, TechnicianID: technicianID, Name: name,
		ItemType: itemType, Quantity: qty, Price: price,
	}
	return r.nextItemID, nil
}

func (r *fakeInventoryRepo) AddUnitsInTx(ctx context.Context, tx pgx.Tx, itemID int, serialNumbers []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, serial := range serialNumbers {
		r.nextUnitID++
		r.units[r.nextUnitID] = &entities.SerializedUnit{
			ID: r.nextUnitID, ItemID: itemID, SerialNumber: serial, Status: constants.UnitStatusActive,
		}
	}
	return nil
}

// --- кеш ---

type fakeCacheRepo struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{data: make(map[string]string)}
}

func (r *fakeCacheRepo) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		r.data[key] = string(v)
	case string:
		r.data[key] = v
	default:
		return fmt.Errorf("неожиданный тип значения кеша: %T", value)
	}
	return nil
}

func (r *fakeCacheRepo) Get(ctx context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	value, ok := r.data[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (r *fakeCacheRepo) Del(ctx context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range keys {
		delete(r.data, key)
	}
	return nil
}

// --- сборка окружения ---

type testEnv struct {
	orders    *fakeOrderRepo
	history   *fakeHistoryRepo
	bills     *fakeBillRepo
	users     *fakeUserRepo
	inventory *fakeInventoryRepo
	cache     *fakeCacheRepo
	bus       *eventbus.Bus

	snapshotSvc  SnapshotServiceInterface
	orderSvc     WorkOrderServiceInterface
	inventorySvc InventoryServiceInterface
	billingSvc   BillingServiceInterface
	transferSvc  TransferServiceInterface
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	txManager := &fakeTxManager{}
	orders := newFakeOrderRepo()
	history := &fakeHistoryRepo{}
	bills := newFakeBillRepo()
	users := newFakeUserRepo()
	inventory := newFakeInventoryRepo(bills)
	cache := newFakeCacheRepo()
	bus := eventbus.New(logger)

	cacheCfg := config.CacheConfig{
		SnapshotTTL:   time.Minute,
		OrderListTTL:  time.Minute,
		PauseTokenTTL: time.Minute,
	}

	snapshotSvc := NewSnapshotService(inventory, orders, cache, cacheCfg, logger)
	orderSvc := NewWorkOrderService(txManager, orders, history, bills, users, snapshotSvc, bus, logger)
	inventorySvc := NewInventoryService(txManager, inventory, snapshotSvc, logger)
	billingSvc := NewBillingService(txManager, bills, orders, inventorySvc, orderSvc, snapshotSvc, logger)
	transferSvc := NewTransferService(txManager, orders, history, bills, users, cache, orderSvc, snapshotSvc, cacheCfg, logger)

	users.add(entities.User{ID: 1, Fio: "Менеджер Тест", Login: "manager", Role: constants.RoleManager, BranchID: 1})
	users.add(entities.User{ID: 2, Fio: "Техник Один", Login: "tech1", Role: constants.RoleTechnician, BranchID: 1})
	users.add(entities.User{ID: 3, Fio: "Техник Два", Login: "tech2", Role: constants.RoleTechnician, BranchID: 1})

	return &testEnv{
		orders:       orders,
		history:      history,
		bills:        bills,
		users:        users,
		inventory:    inventory,
		cache:        cache,
		bus:          bus,
		snapshotSvc:  snapshotSvc,
		orderSvc:     orderSvc,
		inventorySvc: inventorySvc,
		billingSvc:   billingSvc,
		transferSvc:  transferSvc,
	}
}

func entitiesWorkOrderRepair(technicianID, originalTechnicianID int) entities.WorkOrder {
	orig := originalTechnicianID
	return entities.WorkOrder{
		CustomerID:           10,
		ProjectID:            100,
		ProjectCategory:      constants.CategoryRepair,
		TechnicianID:         technicianID,
		OriginalTechnicianID: &orig,
		Status:               constants.StatusAssigned,
		Customer:             entities.CustomerContact{Name: "Клиент Тест"},
		CreatedAt:            time.Now(),
		UpdatedAt:            time.Now(),
	}
}

func (env *testEnv) addOrder(technicianID int, status constants.OrderStatus) *entities.WorkOrder {
	return env.orders.add(entities.WorkOrder{
		CustomerID:      10,
		ProjectID:       100,
		ProjectCategory: constants.CategoryNewInstallation,
		TechnicianID:    technicianID,
		Status:          status,
		Customer:        entities.CustomerContact{Name: "Клиент Тест", Phone: "992900000000"},
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	})
}
