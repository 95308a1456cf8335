package usecase

import (
	"context"

	"app/internal/domain/model"
	"app/internal/notification"
	"app/internal/payment"
	repo "app/internal/repository"

	"github.com/stretchr/testify/mock"
)

// =====================
// TxManager / TxRepos stubs
// =====================

// txManagerStub は WithinTx の中で渡す repos を固定して unit テストを回す
type txManagerStub struct {
	Repos repo.TxRepos
}

func (m *txManagerStub) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return fn(m.Repos)
}

type txReposStub struct {
	orders       repo.OrderRepository
	orderItems   repo.OrderItemRepository
	carts        repo.CartRepository
	cartItems    repo.CartItemRepository
	inventory    repo.InventoryRepository
	variants     repo.VariantRepository
	transactions repo.TransactionRepository
	orderNumbers repo.OrderNumberRepository
	auditLogs    repo.AuditLogRepository
}

func (r *txReposStub) Orders() repo.OrderRepository             { return r.orders }
func (r *txReposStub) OrderItems() repo.OrderItemRepository     { return r.orderItems }
func (r *txReposStub) Carts() repo.CartRepository               { return r.carts }
func (r *txReposStub) CartItems() repo.CartItemRepository       { return r.cartItems }
func (r *txReposStub) Inventory() repo.InventoryRepository      { return r.inventory }
func (r *txReposStub) Variants() repo.VariantRepository         { return r.variants }
func (r *txReposStub) Transactions() repo.TransactionRepository { return r.transactions }
func (r *txReposStub) OrderNumbers() repo.OrderNumberRepository { return r.orderNumbers }
func (r *txReposStub) AuditLogs() repo.AuditLogRepository       { return r.auditLogs }

// =====================
// Repository mocks
// =====================

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	args := m.Called(ctx, userID, page, limit)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

func (m *OrderRepoMock) Create(ctx context.Context, order model.Order) (int64, error) {
	args := m.Called(ctx, order)
	return args.Get(0).(int64), args.Error(1)
}

func (m *OrderRepoMock) UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	args := m.Called(ctx, orderID, status)
	return args.Error(0)
}

func (m *OrderRepoMock) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	args := m.Called(ctx, f)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

type OrderItemRepoMock struct{ mock.Mock }

func (m *OrderItemRepoMock) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	args := m.Called(ctx, orderID, items)
	return args.Error(0)
}

func (m *OrderItemRepoMock) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]model.OrderItem)
	return items, args.Error(1)
}

type CartRepoMock struct{ mock.Mock }

func (m *CartRepoMock) GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	args := m.Called(ctx, userID)
	c, _ := args.Get(0).(model.Cart)
	return c, args.Error(1)
}

func (m *CartRepoMock) FindByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	args := m.Called(ctx, userID)
	c, _ := args.Get(0).(model.Cart)
	return c, args.Error(1)
}

func (m *CartRepoMock) Clear(ctx context.Context, cartID int64) error {
	args := m.Called(ctx, cartID)
	return args.Error(0)
}

type CartItemRepoMock struct{ mock.Mock }

func (m *CartItemRepoMock) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	args := m.Called(ctx, cartID)
	items, _ := args.Get(0).([]model.CartItem)
	return items, args.Error(1)
}

func (m *CartItemRepoMock) UpsertByCartAndVariant(ctx context.Context, cartID int64, variantID int64, addQty int64) error {
	args := m.Called(ctx, cartID, variantID, addQty)
	return args.Error(0)
}

func (m *CartItemRepoMock) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error {
	args := m.Called(ctx, cartItemID, qty)
	return args.Error(0)
}

func (m *CartItemRepoMock) DeleteByID(ctx context.Context, cartItemID int64) error {
	args := m.Called(ctx, cartItemID)
	return args.Error(0)
}

func (m *CartItemRepoMock) FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error) {
	args := m.Called(ctx, cartItemID)
	it, _ := args.Get(0).(model.CartItem)
	return it, args.Error(1)
}

func (m *CartItemRepoMock) IsOwnedByUser(ctx context.Context, cartItemID int64, userID int64) (bool, error) {
	args := m.Called(ctx, cartItemID, userID)
	return args.Bool(0), args.Error(1)
}

type InventoryRepoMock struct{ mock.Mock }

func (m *InventoryRepoMock) SetStock(ctx context.Context, variantID int64, newStock int64) error {
	args := m.Called(ctx, variantID, newStock)
	return args.Error(0)
}

func (m *InventoryRepoMock) DecreaseStockClamped(ctx context.Context, variantID int64, qty int64) error {
	args := m.Called(ctx, variantID, qty)
	return args.Error(0)
}

func (m *InventoryRepoMock) IncreaseStock(ctx context.Context, variantID int64, qty int64) error {
	args := m.Called(ctx, variantID, qty)
	return args.Error(0)
}

func (m *InventoryRepoMock) CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error {
	args := m.Called(ctx, adjustment)
	return args.Error(0)
}

type VariantRepoMock struct{ mock.Mock }

func (m *VariantRepoMock) ListActive(ctx context.Context, q repo.VariantListQuery) ([]model.ProductVariant, int64, error) {
	args := m.Called(ctx, q)
	vs, _ := args.Get(0).([]model.ProductVariant)
	return vs, args.Get(1).(int64), args.Error(2)
}

func (m *VariantRepoMock) FindByID(ctx context.Context, id int64) (model.ProductVariant, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(model.ProductVariant)
	return v, args.Error(1)
}

type TransactionRepoMock struct{ mock.Mock }

func (m *TransactionRepoMock) Create(ctx context.Context, t model.Transaction) (int64, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(int64), args.Error(1)
}

func (m *TransactionRepoMock) FindByExternalID(ctx context.Context, externalID string) (model.Transaction, error) {
	args := m.Called(ctx, externalID)
	t, _ := args.Get(0).(model.Transaction)
	return t, args.Error(1)
}

func (m *TransactionRepoMock) FindLatestByOrderID(ctx context.Context, orderID int64) (model.Transaction, error) {
	args := m.Called(ctx, orderID)
	t, _ := args.Get(0).(model.Transaction)
	return t, args.Error(1)
}

func (m *TransactionRepoMock) CountByOrderID(ctx context.Context, orderID int64) (int64, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *TransactionRepoMock) UpdateStatus(ctx context.Context, transactionID int64, status model.TransactionStatus) error {
	args := m.Called(ctx, transactionID, status)
	return args.Error(0)
}

type OrderNumberRepoMock struct{ mock.Mock }

func (m *OrderNumberRepoMock) Next(ctx context.Context, day string) (int64, error) {
	args := m.Called(ctx, day)
	return args.Get(0).(int64), args.Error(1)
}

type AuditLogRepoMock struct{ mock.Mock }

func (m *AuditLogRepoMock) Create(ctx context.Context, log model.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *AuditLogRepoMock) List(ctx context.Context, page int, limit int) ([]model.AuditLog, int64, error) {
	args := m.Called(ctx, page, limit)
	logs, _ := args.Get(0).([]model.AuditLog)
	return logs, args.Get(1).(int64), args.Error(2)
}

type UserRepoMock struct{ mock.Mock }

func (m *UserRepoMock) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepoMock) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// =====================
// Gateway / Sink mocks
// =====================

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) Create(ctx context.Context, req payment.CreateRequest) (*payment.Payment, error) {
	args := m.Called(ctx, req)
	p, _ := args.Get(0).(*payment.Payment)
	return p, args.Error(1)
}

func (m *GatewayMock) Get(ctx context.Context, paymentID string) (*payment.Payment, error) {
	args := m.Called(ctx, paymentID)
	p, _ := args.Get(0).(*payment.Payment)
	return p, args.Error(1)
}

func (m *GatewayMock) Capture(ctx context.Context, paymentID string, amountMinor int64) (*payment.Payment, error) {
	args := m.Called(ctx, paymentID, amountMinor)
	p, _ := args.Get(0).(*payment.Payment)
	return p, args.Error(1)
}

func (m *GatewayMock) Cancel(ctx context.Context, paymentID string) (*payment.Payment, error) {
	args := m.Called(ctx, paymentID)
	p, _ := args.Get(0).(*payment.Payment)
	return p, args.Error(1)
}

func (m *GatewayMock) CreateRefund(ctx context.Context, paymentID string, amountMinor int64) (*payment.Refund, error) {
	args := m.Called(ctx, paymentID, amountMinor)
	r, _ := args.Get(0).(*payment.Refund)
	return r, args.Error(1)
}

type SinkMock struct{ mock.Mock }

func (m *SinkMock) OrderConfirmed(ctx context.Context, ev notification.OrderConfirmedEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// コンパイル時のinterface適合チェック
var (
	_ repo.TransactionManager    = (*txManagerStub)(nil)
	_ repo.TxRepos               = (*txReposStub)(nil)
	_ repo.OrderRepository       = (*OrderRepoMock)(nil)
	_ repo.OrderItemRepository   = (*OrderItemRepoMock)(nil)
	_ repo.CartRepository        = (*CartRepoMock)(nil)
	_ repo.CartItemRepository    = (*CartItemRepoMock)(nil)
	_ repo.InventoryRepository   = (*InventoryRepoMock)(nil)
	_ repo.VariantRepository     = (*VariantRepoMock)(nil)
	_ repo.TransactionRepository = (*TransactionRepoMock)(nil)
	_ repo.OrderNumberRepository = (*OrderNumberRepoMock)(nil)
	_ repo.AuditLogRepository    = (*AuditLogRepoMock)(nil)
	_ repo.UserRepository        = (*UserRepoMock)(nil)
	_ payment.Gateway            = (*GatewayMock)(nil)
	_ notification.Sink          = (*SinkMock)(nil)
)
