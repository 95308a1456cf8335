package usecase

import (
	"context"
	"errors"
	"testing"

	"app/internal/domain/model"
	"app/internal/payment"
	repo "app/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type paymentFixture struct {
	orders       *OrderRepoMock
	orderItems   *OrderItemRepoMock
	carts        *CartRepoMock
	inventory    *InventoryRepoMock
	transactions *TransactionRepoMock
	auditLogs    *AuditLogRepoMock
	users        *UserRepoMock
	gateway      *GatewayMock
	sink         *SinkMock
	uc           *PaymentUsecase
}

func newPaymentFixture() *paymentFixture {
	f := &paymentFixture{
		orders:       &OrderRepoMock{},
		orderItems:   &OrderItemRepoMock{},
		carts:        &CartRepoMock{},
		inventory:    &InventoryRepoMock{},
		transactions: &TransactionRepoMock{},
		auditLogs:    &AuditLogRepoMock{},
		users:        &UserRepoMock{},
		gateway:      &GatewayMock{},
		sink:         &SinkMock{},
	}

	tx := &txManagerStub{Repos: &txReposStub{
		orders:       f.orders,
		orderItems:   f.orderItems,
		carts:        f.carts,
		inventory:    f.inventory,
		transactions: f.transactions,
		auditLogs:    f.auditLogs,
	}}

	f.uc = NewPaymentUsecase(tx, f.users, f.gateway, f.sink, "https://shop.example.com", zap.NewNop())
	return f
}

func pendingOrder() model.Order {
	return model.Order{
		ID:            42,
		UserID:        7,
		OrderNumber:   "202608310001",
		Status:        model.OrderStatusCreated,
		TotalAmount:   300000,
		PaymentMethod: model.PaymentMethodYooKassa,
	}
}

func TestInitiate_CreatesPendingTransaction(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	f.orders.On("FindByID", ctx, int64(42)).Return(pendingOrder(), nil)
	f.orderItems.On("ListByOrderID", ctx, int64(42)).Return([]model.OrderItem{
		{OrderID: 42, VariantID: 10, ProductNameSnapshot: "Пальто", UnitPrice: 150000, Quantity: 2},
	}, nil)
	f.transactions.On("CountByOrderID", ctx, int64(42)).Return(int64(0), nil)
	f.users.On("FindByID", ctx, int64(7)).Return(&model.User{ID: 7, Email: "u@example.com"}, nil)

	f.gateway.On("Create", ctx, mock.MatchedBy(func(req payment.CreateRequest) bool {
		//初回試行の冪等キーは(注文ID, 1)から決定的に導出される
		return req.IdempotencyKey == payment.IdempotencyKey(42, 1) &&
			req.AmountMinor == 300000 &&
			req.Metadata.OrderNumber == "202608310001"
	})).Return(&payment.Payment{
		ID:     "pay-abc",
		Status: payment.StatusPending,
		Confirmation: payment.Confirmation{
			Type:            "redirect",
			ConfirmationURL: "https://yookassa.example/confirm",
		},
	}, nil)

	f.transactions.On("Create", ctx, mock.MatchedBy(func(tr model.Transaction) bool {
		return tr.OrderID == 42 &&
			tr.ExternalID == "pay-abc" &&
			tr.Status == model.TransactionStatusPending &&
			tr.Amount == 300000
	})).Return(int64(1), nil)

	url, err := f.uc.Initiate(ctx, 7, 42)

	assert.NoError(t, err)
	assert.Equal(t, "https://yookassa.example/confirm", url)
	f.transactions.AssertExpectations(t)
}

func TestInitiate_GatewayErrorLeavesStateUntouched(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	f.orders.On("FindByID", ctx, int64(42)).Return(pendingOrder(), nil)
	f.orderItems.On("ListByOrderID", ctx, int64(42)).Return([]model.OrderItem{}, nil)
	f.transactions.On("CountByOrderID", ctx, int64(42)).Return(int64(0), nil)
	f.users.On("FindByID", ctx, int64(7)).Return(&model.User{ID: 7, Email: "u@example.com"}, nil)
	f.gateway.On("Create", ctx, mock.Anything).Return(nil, errors.New("connection refused"))

	_, err := f.uc.Initiate(ctx, 7, 42)

	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, 503, he.Status)

	//ゲートウェイ失敗ではローカルに何も書かない
	f.transactions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestInitiate_AlreadyPaid(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	o := pendingOrder()
	o.Status = model.OrderStatusPaid
	f.orders.On("FindByID", ctx, int64(42)).Return(o, nil)

	_, err := f.uc.Initiate(ctx, 7, 42)

	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, 409, he.Status)
	f.gateway.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestInitiate_ForeignOrderHidden(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	f.orders.On("FindByID", ctx, int64(42)).Return(pendingOrder(), nil)

	//他人の注文は「存在しない扱い」
	_, err := f.uc.Initiate(ctx, 99, 42)

	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, 404, he.Status)
}

func TestInitiate_RetryUsesNextAttemptKey(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	f.orders.On("FindByID", ctx, int64(42)).Return(pendingOrder(), nil)
	f.orderItems.On("ListByOrderID", ctx, int64(42)).Return([]model.OrderItem{}, nil)
	//1回失敗済みなので2回目の試行キーになる
	f.transactions.On("CountByOrderID", ctx, int64(42)).Return(int64(1), nil)
	f.users.On("FindByID", ctx, int64(7)).Return(&model.User{ID: 7, Email: "u@example.com"}, nil)

	f.gateway.On("Create", ctx, mock.MatchedBy(func(req payment.CreateRequest) bool {
		return req.IdempotencyKey == payment.IdempotencyKey(42, 2)
	})).Return(&payment.Payment{ID: "pay-def", Status: payment.StatusPending}, nil)
	f.transactions.On("Create", ctx, mock.Anything).Return(int64(2), nil)

	_, err := f.uc.Initiate(ctx, 7, 42)
	assert.NoError(t, err)
	f.gateway.AssertExpectations(t)
}

func TestReconcile_SucceededAppliesSideEffects(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	f.transactions.On("FindByExternalID", ctx, "pay-abc").Return(model.Transaction{
		ID: 1, OrderID: 42, ExternalID: "pay-abc", Status: model.TransactionStatusPending,
	}, nil)
	f.orders.On("FindByIDForUpdate", ctx, int64(42)).Return(pendingOrder(), nil)
	f.transactions.On("UpdateStatus", ctx, int64(1), model.TransactionStatusSucceeded).Return(nil)
	f.orders.On("UpdateStatus", ctx, int64(42), model.OrderStatusPaid).Return(nil)
	f.orderItems.On("ListByOrderID", ctx, int64(42)).Return([]model.OrderItem{
		{OrderID: 42, VariantID: 10, ProductNameSnapshot: "Пальто", UnitPrice: 150000, Quantity: 2},
	}, nil)
	f.inventory.On("DecreaseStockClamped", ctx, int64(10), int64(2)).Return(nil)
	f.carts.On("FindByUserID", ctx, int64(7)).Return(model.Cart{ID: 3, UserID: 7}, nil)
	f.carts.On("Clear", ctx, int64(3)).Return(nil)
	f.users.On("FindByID", ctx, int64(7)).Return(&model.User{ID: 7, Email: "u@example.com"}, nil)
	f.sink.On("OrderConfirmed", ctx, mock.Anything).Return(nil)

	err := f.uc.Reconcile(ctx, "pay-abc", payment.StatusSucceeded)

	assert.NoError(t, err)
	f.transactions.AssertExpectations(t)
	f.orders.AssertExpectations(t)
	f.inventory.AssertExpectations(t)
	f.carts.AssertExpectations(t)
	f.sink.AssertExpectations(t)

	//判定に使う注文読み取りは行ロック付きでなければならない
	f.orders.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestReconcile_SucceededIsIdempotent(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	f.transactions.On("FindByExternalID", ctx, "pay-abc").Return(model.Transaction{
		ID: 1, OrderID: 42, ExternalID: "pay-abc", Status: model.TransactionStatusSucceeded,
	}, nil)
	o := pendingOrder()
	o.Status = model.OrderStatusPaid
	f.orders.On("FindByIDForUpdate", ctx, int64(42)).Return(o, nil)

	//同じwebhookが二度届いても在庫を二度減らさない
	err := f.uc.Reconcile(ctx, "pay-abc", payment.StatusSucceeded)

	assert.NoError(t, err)
	f.inventory.AssertNotCalled(t, "DecreaseStockClamped", mock.Anything, mock.Anything, mock.Anything)
	f.carts.AssertNotCalled(t, "Clear", mock.Anything, mock.Anything)
	f.transactions.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_SucceededMissingCartIsTolerated(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	f.transactions.On("FindByExternalID", ctx, "pay-abc").Return(model.Transaction{
		ID: 1, OrderID: 42, ExternalID: "pay-abc", Status: model.TransactionStatusPending,
	}, nil)
	f.orders.On("FindByIDForUpdate", ctx, int64(42)).Return(pendingOrder(), nil)
	f.transactions.On("UpdateStatus", ctx, int64(1), model.TransactionStatusSucceeded).Return(nil)
	f.orders.On("UpdateStatus", ctx, int64(42), model.OrderStatusPaid).Return(nil)
	f.orderItems.On("ListByOrderID", ctx, int64(42)).Return([]model.OrderItem{}, nil)
	f.carts.On("FindByUserID", ctx, int64(7)).Return(model.Cart{}, repo.ErrNotFound)
	f.users.On("FindByID", ctx, int64(7)).Return(&model.User{ID: 7, Email: "u@example.com"}, nil)
	f.sink.On("OrderConfirmed", ctx, mock.Anything).Return(nil)

	err := f.uc.Reconcile(ctx, "pay-abc", payment.StatusSucceeded)
	assert.NoError(t, err)
}

func TestReconcile_CanceledMarksFailedWithoutTouchingStock(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	f.transactions.On("FindByExternalID", ctx, "pay-abc").Return(model.Transaction{
		ID: 1, OrderID: 42, ExternalID: "pay-abc", Status: model.TransactionStatusPending,
	}, nil)
	f.orders.On("FindByIDForUpdate", ctx, int64(42)).Return(pendingOrder(), nil)
	f.transactions.On("UpdateStatus", ctx, int64(1), model.TransactionStatusFailed).Return(nil)
	f.orders.On("UpdateStatus", ctx, int64(42), model.OrderStatusCancelled).Return(nil)

	err := f.uc.Reconcile(ctx, "pay-abc", payment.StatusCanceled)

	assert.NoError(t, err)

	//失敗側は在庫もカートも触らない（減らしていないので戻すものもない）
	f.inventory.AssertNotCalled(t, "DecreaseStockClamped", mock.Anything, mock.Anything, mock.Anything)
	f.inventory.AssertNotCalled(t, "IncreaseStock", mock.Anything, mock.Anything, mock.Anything)
	f.carts.AssertNotCalled(t, "Clear", mock.Anything, mock.Anything)
	f.sink.AssertNotCalled(t, "OrderConfirmed", mock.Anything, mock.Anything)
}

func TestReconcile_StaleCancelAfterSuccessIgnored(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	f.transactions.On("FindByExternalID", ctx, "pay-abc").Return(model.Transaction{
		ID: 1, OrderID: 42, ExternalID: "pay-abc", Status: model.TransactionStatusSucceeded,
	}, nil)
	o := pendingOrder()
	o.Status = model.OrderStatusPaid
	f.orders.On("FindByIDForUpdate", ctx, int64(42)).Return(o, nil)

	err := f.uc.Reconcile(ctx, "pay-abc", payment.StatusCanceled)

	assert.NoError(t, err)
	f.transactions.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_PendingIsNoop(t *testing.T) {
	f := newPaymentFixture()

	err := f.uc.Reconcile(context.Background(), "pay-abc", payment.StatusPending)

	assert.NoError(t, err)
	f.transactions.AssertNotCalled(t, "FindByExternalID", mock.Anything, mock.Anything)
}

func TestHandleWebhook_MalformedBody(t *testing.T) {
	f := newPaymentFixture()

	ok := f.uc.HandleWebhook(context.Background(), []byte("{not json"))

	assert.False(t, ok)
}

func TestHandleWebhook_MissingPaymentID(t *testing.T) {
	f := newPaymentFixture()

	ok := f.uc.HandleWebhook(context.Background(), []byte(`{"event":"payment.succeeded","object":{}}`))

	assert.False(t, ok)
}

func TestHandleWebhook_UnknownEventAccepted(t *testing.T) {
	f := newPaymentFixture()

	ok := f.uc.HandleWebhook(context.Background(), []byte(`{"event":"payment.exotic","object":{"id":"pay-abc","status":"pending"}}`))

	//未知のイベントは受領だけして再送ループを避ける
	assert.True(t, ok)
	f.transactions.AssertNotCalled(t, "FindByExternalID", mock.Anything, mock.Anything)
}

func TestHandleWebhook_WaitingForCaptureAccepted(t *testing.T) {
	f := newPaymentFixture()

	ok := f.uc.HandleWebhook(context.Background(), []byte(`{"event":"payment.waiting_for_capture","object":{"id":"pay-abc","status":"waiting_for_capture"}}`))

	assert.True(t, ok)
}

func TestHandleWebhook_UnknownPaymentRejected(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	f.gateway.On("Get", ctx, "pay-zzz").Return(&payment.Payment{
		ID: "pay-zzz", Status: payment.StatusSucceeded,
	}, nil)
	f.transactions.On("FindByExternalID", ctx, "pay-zzz").Return(model.Transaction{}, repo.ErrNotFound)

	ok := f.uc.HandleWebhook(ctx, []byte(`{"event":"payment.succeeded","object":{"id":"pay-zzz","status":"succeeded"}}`))

	assert.False(t, ok)
	f.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleWebhook_SucceededVerifiedAgainstGateway(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	f.gateway.On("Get", ctx, "pay-abc").Return(&payment.Payment{
		ID: "pay-abc", Status: payment.StatusSucceeded,
	}, nil)
	f.transactions.On("FindByExternalID", ctx, "pay-abc").Return(model.Transaction{
		ID: 1, OrderID: 42, ExternalID: "pay-abc", Status: model.TransactionStatusPending,
	}, nil)
	f.orders.On("FindByIDForUpdate", ctx, int64(42)).Return(pendingOrder(), nil)
	f.transactions.On("UpdateStatus", ctx, int64(1), model.TransactionStatusSucceeded).Return(nil)
	f.orders.On("UpdateStatus", ctx, int64(42), model.OrderStatusPaid).Return(nil)
	f.orderItems.On("ListByOrderID", ctx, int64(42)).Return([]model.OrderItem{
		{OrderID: 42, VariantID: 10, ProductNameSnapshot: "Пальто", UnitPrice: 150000, Quantity: 2},
	}, nil)
	f.inventory.On("DecreaseStockClamped", ctx, int64(10), int64(2)).Return(nil)
	f.carts.On("FindByUserID", ctx, int64(7)).Return(model.Cart{ID: 3, UserID: 7}, nil)
	f.carts.On("Clear", ctx, int64(3)).Return(nil)
	f.users.On("FindByID", ctx, int64(7)).Return(&model.User{ID: 7, Email: "u@example.com"}, nil)
	f.sink.On("OrderConfirmed", ctx, mock.Anything).Return(nil)

	ok := f.uc.HandleWebhook(ctx, []byte(`{"event":"payment.succeeded","object":{"id":"pay-abc","status":"succeeded"}}`))

	assert.True(t, ok)
	f.gateway.AssertCalled(t, "Get", ctx, "pay-abc")
	f.orders.AssertCalled(t, "UpdateStatus", ctx, int64(42), model.OrderStatusPaid)
}

func TestHandleWebhook_ForgedSucceededIsNotApplied(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	//本文がsucceededを名乗ってもゲートウェイ側がpendingなら何も更新しない
	f.gateway.On("Get", ctx, "pay-abc").Return(&payment.Payment{
		ID: "pay-abc", Status: payment.StatusPending,
	}, nil)

	ok := f.uc.HandleWebhook(ctx, []byte(`{"event":"payment.succeeded","object":{"id":"pay-abc","status":"succeeded"}}`))

	assert.True(t, ok)
	f.gateway.AssertCalled(t, "Get", ctx, "pay-abc")
	f.transactions.AssertNotCalled(t, "FindByExternalID", mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	f.inventory.AssertNotCalled(t, "DecreaseStockClamped", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleWebhook_SucceededGatewayUnavailable(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	f.gateway.On("Get", ctx, "pay-abc").Return((*payment.Payment)(nil), errors.New("gateway down"))

	ok := f.uc.HandleWebhook(ctx, []byte(`{"event":"payment.succeeded","object":{"id":"pay-abc","status":"succeeded"}}`))

	//確認できないうちは再送してもらう
	assert.False(t, ok)
	f.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleReturn_QueriesGatewayAndApplies(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	f.orders.On("FindByID", ctx, int64(42)).Return(pendingOrder(), nil)
	f.transactions.On("FindLatestByOrderID", ctx, int64(42)).Return(model.Transaction{
		ID: 1, OrderID: 42, ExternalID: "pay-abc", Status: model.TransactionStatusPending,
	}, nil)
	f.gateway.On("Get", ctx, "pay-abc").Return(&payment.Payment{
		ID: "pay-abc", Status: payment.StatusCanceled,
	}, nil)
	f.transactions.On("FindByExternalID", ctx, "pay-abc").Return(model.Transaction{
		ID: 1, OrderID: 42, ExternalID: "pay-abc", Status: model.TransactionStatusPending,
	}, nil)
	f.orders.On("FindByIDForUpdate", ctx, int64(42)).Return(pendingOrder(), nil)
	f.transactions.On("UpdateStatus", ctx, int64(1), model.TransactionStatusFailed).Return(nil)
	f.orders.On("UpdateStatus", ctx, int64(42), model.OrderStatusCancelled).Return(nil)

	status, err := f.uc.HandleReturn(ctx, 7, 42)

	assert.NoError(t, err)
	assert.Equal(t, payment.StatusCanceled, status)
}

func TestRefund_MarksTransactionRefunded(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	o := pendingOrder()
	o.Status = model.OrderStatusPaid
	f.orders.On("FindByID", ctx, int64(42)).Return(o, nil)
	f.transactions.On("FindLatestByOrderID", ctx, int64(42)).Return(model.Transaction{
		ID: 1, OrderID: 42, ExternalID: "pay-abc", Amount: 300000,
		Status: model.TransactionStatusSucceeded,
	}, nil)
	f.gateway.On("CreateRefund", ctx, "pay-abc", int64(300000)).Return(&payment.Refund{
		ID: "refund-1", Status: "succeeded",
	}, nil)
	f.transactions.On("UpdateStatus", ctx, int64(1), model.TransactionStatusRefunded).Return(nil)
	f.auditLogs.On("Create", ctx, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionRefund && l.ResourceID == 1
	})).Return(nil)

	err := f.uc.Refund(ctx, 99, 42)

	assert.NoError(t, err)
	f.transactions.AssertExpectations(t)
	f.auditLogs.AssertExpectations(t)
}

func TestRefund_RequiresSucceededTransaction(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	f.orders.On("FindByID", ctx, int64(42)).Return(pendingOrder(), nil)
	f.transactions.On("FindLatestByOrderID", ctx, int64(42)).Return(model.Transaction{
		ID: 1, OrderID: 42, ExternalID: "pay-abc", Status: model.TransactionStatusPending,
	}, nil)

	err := f.uc.Refund(ctx, 99, 42)

	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, 400, he.Status)
	f.gateway.AssertNotCalled(t, "CreateRefund", mock.Anything, mock.Anything, mock.Anything)
}
