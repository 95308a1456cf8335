package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"app/internal/domain/model"
	"app/internal/notification"
	"app/internal/payment"
	repo "app/internal/repository"

	"go.uber.org/zap"
)

// ゲートウェイのwebhookイベント種別
const (
	webhookEventSucceeded         = "payment.succeeded"
	webhookEventCanceled          = "payment.canceled"
	webhookEventWaitingForCapture = "payment.waiting_for_capture"
	webhookEventRefundSucceeded   = "refund.succeeded"
)

// 注文・トランザクション・在庫・カートの状態遷移を駆動するオーケストレーター。
// 同期の決済開始と、webhook／リダイレクト復帰からの突き合わせ（Reconcile）の両方がここを通る。
type PaymentUsecase struct {
	tx            repo.TransactionManager
	userRepo      repo.UserRepository
	gateway       payment.Gateway
	sink          notification.Sink
	publicBaseURL string
	log           *zap.Logger
}

func NewPaymentUsecase(
	tx repo.TransactionManager,
	userRepo repo.UserRepository,
	gateway payment.Gateway,
	sink notification.Sink,
	publicBaseURL string,
	log *zap.Logger,
) *PaymentUsecase {
	return &PaymentUsecase{
		tx:            tx,
		userRepo:      userRepo,
		gateway:       gateway,
		sink:          sink,
		publicBaseURL: publicBaseURL,
		log:           log,
	}
}

// Initiate はゲートウェイに決済を作成し、PENDINGのトランザクションを記録して
// 決済ページのURLを返す。
//
// ゲートウェイ呼び出しはローカル更新の前に完結させる：失敗したら何も書かない。
func (u *PaymentUsecase) Initiate(ctx context.Context, userID int64, orderID int64) (string, error) {
	if userID <= 0 {
		return "", NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return "", NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	//読み取りフェーズ：注文・明細・試行回数
	var order model.Order
	var items []model.OrderItem
	var attempt int64

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if o.UserID != userID {
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		//支払い済み以降の注文は再決済しない
		if o.Status.SettledForPayment() {
			return NewHTTPError(http.StatusConflict, "order already paid")
		}

		its, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		count, err := r.Transactions().CountByOrderID(ctx, o.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		order = o
		items = its
		attempt = count + 1
		return nil
	})
	if err != nil {
		return "", err
	}

	user, err := u.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "", NewHTTPError(http.StatusInternalServerError, "db error")
	}

	receipt := make([]payment.ReceiptItem, 0, len(items))
	for _, it := range items {
		receipt = append(receipt, payment.NewReceiptItem(it.ProductNameSnapshot, it.Quantity, it.UnitPrice))
	}

	req := payment.CreateRequest{
		AmountMinor: order.TotalAmount,
		Description: fmt.Sprintf("Payment for order %s", order.OrderNumber),
		ReturnURL:   fmt.Sprintf("%s/orders/%d/payment/result", u.publicBaseURL, order.ID),
		//同じ試行のリトライは同じキーを使う
		IdempotencyKey: payment.IdempotencyKey(order.ID, attempt),
		Metadata: payment.Metadata{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      user.ID,
			UserEmail:   user.Email,
		},
		CustomerEmail: user.Email,
		Items:         receipt,
	}

	//ゲートウェイ呼び出し（ローカル状態は未変更のまま）
	p, err := u.gateway.Create(ctx, req)
	if err != nil {
		//詳細はアダプタ側でログ済み。利用者には「後で再試行」とだけ伝える。
		return "", NewHTTPError(http.StatusServiceUnavailable, "payment unavailable, try again later")
	}

	//書き込みフェーズ：PENDINGトランザクションを記録
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		_, err := r.Transactions().Create(ctx, model.Transaction{
			OrderID:       order.ID,
			Amount:        order.TotalAmount,
			PaymentSystem: "YooKassa",
			ExternalID:    p.ID,
			Status:        model.TransactionStatusPending,
			PaymentData:   string(p.Raw),
			CreatedAt:     time.Now(),
			UpdatedAt:     time.Now(),
		})
		//同じ冪等キーのリトライでゲートウェイが同じ決済を返した場合は記録済み
		if err == repo.ErrConflict {
			return nil
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	u.log.Info("payment initiated",
		zap.String("order_number", order.OrderNumber),
		zap.String("payment_id", p.ID))

	return p.Confirmation.ConfirmationURL, nil
}

// HandleReturn は決済ページからの戻りで呼ばれる。
// webhookが届かなくても、ここでゲートウェイの正を取り直して同じReconcileを適用する。
func (u *PaymentUsecase) HandleReturn(ctx context.Context, userID int64, orderID int64) (string, error) {
	if userID <= 0 {
		return "", NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return "", NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var externalID string

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if o.UserID != userID {
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		t, err := r.Transactions().FindLatestByOrderID(ctx, o.ID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		externalID = t.ExternalID
		return nil
	})
	if err != nil {
		return "", err
	}

	p, err := u.gateway.Get(ctx, externalID)
	if err != nil {
		return "", NewHTTPError(http.StatusServiceUnavailable, "payment unavailable, try again later")
	}

	if err := u.Reconcile(ctx, externalID, p.Status); err != nil {
		return "", err
	}

	return p.Status, nil
}

// Reconcile はゲートウェイが報告した決済結果をローカル状態に適用する。
// 同じ終端イベントの再適用は注文ステータスで弾く（冪等）。
func (u *PaymentUsecase) Reconcile(ctx context.Context, externalID string, gatewayStatus string) error {
	switch gatewayStatus {
	case payment.StatusSucceeded:
		return u.applySuccess(ctx, externalID)
	case payment.StatusCanceled:
		return u.applyFailure(ctx, externalID)
	case payment.StatusPending, payment.StatusWaitingForCapture:
		//情報のみ。状態は変えない。
		u.log.Info("payment still pending", zap.String("payment_id", externalID))
		return nil
	default:
		u.log.Warn("unknown gateway status",
			zap.String("payment_id", externalID),
			zap.String("status", gatewayStatus))
		return nil
	}
}

// 成功側：トランザクションSUCCEEDED→注文PAID→在庫減算（0切り詰め）→カート全消し→通知。
func (u *PaymentUsecase) applySuccess(ctx context.Context, externalID string) error {
	var order model.Order
	var items []model.OrderItem
	var applied bool

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		t, err := r.Transactions().FindByExternalID(ctx, externalID)
		if err == repo.ErrNotFound {
			//改ざんか迷子のwebhook。内部情報は返さない。
			u.log.Error("transaction not found", zap.String("payment_id", externalID))
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//行ロックで並行配送を直列化してからステータスを判定する
		o, err := r.Orders().FindByIDForUpdate(ctx, t.OrderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//冪等ガード：支払い済み以降なら二度目の適用はしない
		if o.Status.SettledForPayment() {
			return nil
		}

		if err := r.Transactions().UpdateStatus(ctx, t.ID, model.TransactionStatusSucceeded); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if err := r.Orders().UpdateStatus(ctx, o.ID, model.OrderStatusPaid); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//明細ぶんの在庫を減らす（足りない分は0で切り詰め）
		its, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		for _, it := range its {
			if err := r.Inventory().DecreaseStockClamped(ctx, it.VariantID, it.Quantity); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
		}

		//カートを空にする（無ければそれでよい）
		cart, err := r.Carts().FindByUserID(ctx, o.UserID)
		if err == nil {
			if err := r.Carts().Clear(ctx, cart.ID); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
		} else if err != repo.ErrNotFound {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		order = o
		items = its
		applied = true
		return nil
	})
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	u.log.Info("payment succeeded",
		zap.String("payment_id", externalID),
		zap.String("order_number", order.OrderNumber))

	//確定通知。失敗しても決済状態は巻き戻さない。
	notifyOrderConfirmed(ctx, u.log, u.userRepo, u.sink, order, items)

	return nil
}

// 失敗側：トランザクションFAILED→注文CANCELLED。
// 在庫は触らない（減らしていない）し、カートも触らない（消していない）。
// 成功側との非対称は仕様どおり。
func (u *PaymentUsecase) applyFailure(ctx context.Context, externalID string) error {
	var orderNumber string

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		t, err := r.Transactions().FindByExternalID(ctx, externalID)
		if err == repo.ErrNotFound {
			u.log.Error("transaction not found", zap.String("payment_id", externalID))
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		o, err := r.Orders().FindByIDForUpdate(ctx, t.OrderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//支払い済みの注文に遅れて届いたcanceledは無視する
		if o.Status.SettledForPayment() || t.Status == model.TransactionStatusSucceeded {
			u.log.Warn("stale cancel event ignored",
				zap.String("payment_id", externalID),
				zap.String("order_number", o.OrderNumber))
			return nil
		}

		//再適用なら何もしない
		if t.Status == model.TransactionStatusFailed && o.Status == model.OrderStatusCancelled {
			return nil
		}

		if err := r.Transactions().UpdateStatus(ctx, t.ID, model.TransactionStatusFailed); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if err := r.Orders().UpdateStatus(ctx, o.ID, model.OrderStatusCancelled); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		orderNumber = o.OrderNumber
		return nil
	})
	if err != nil {
		return err
	}

	if orderNumber != "" {
		u.log.Info("payment failed, order cancelled",
			zap.String("payment_id", externalID),
			zap.String("order_number", orderNumber))
	}
	return nil
}

// webhookの封筒
type webhookEnvelope struct {
	Event  string `json:"event"`
	Object struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"object"`
}

// HandleWebhook はゲートウェイからのイベントを受けてReconcileに流す。
// 戻り値のboolがそのままHTTPの成否（true=200 / false=500）になる。
// 壊れたペイロードで落ちてはいけない：ログだけ残してfalseを返す。
func (u *PaymentUsecase) HandleWebhook(ctx context.Context, body []byte) bool {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		u.log.Error("webhook: malformed payload", zap.Error(err))
		return false
	}
	if env.Event == "" || env.Object.ID == "" {
		u.log.Error("webhook: missing event or payment id")
		return false
	}

	u.log.Info("webhook received",
		zap.String("event", env.Event),
		zap.String("payment_id", env.Object.ID))

	switch env.Event {
	case webhookEventSucceeded:
		//webhookは未認証なので、成功だけはゲートウェイの正で確認してから適用する。
		//確認できない（ゲートウェイ不達）ならfalseを返して再送してもらう。
		p, err := u.gateway.Get(ctx, env.Object.ID)
		if err != nil {
			u.log.Error("webhook: gateway verification failed",
				zap.String("payment_id", env.Object.ID),
				zap.Error(err))
			return false
		}
		if p.Status != payment.StatusSucceeded {
			u.log.Warn("webhook: succeeded event not confirmed by gateway",
				zap.String("payment_id", env.Object.ID),
				zap.String("gateway_status", p.Status))
			return true
		}
		if err := u.applySuccess(ctx, env.Object.ID); err != nil {
			u.log.Error("webhook: reconcile failed",
				zap.String("payment_id", env.Object.ID),
				zap.Error(err))
			return false
		}
		return true

	case webhookEventCanceled:
		if err := u.applyFailure(ctx, env.Object.ID); err != nil {
			u.log.Error("webhook: reconcile failed",
				zap.String("payment_id", env.Object.ID),
				zap.Error(err))
			return false
		}
		return true

	case webhookEventWaitingForCapture:
		//自動キャプチャなので何もしない
		u.log.Info("webhook: payment waiting for capture",
			zap.String("payment_id", env.Object.ID))
		return true

	case webhookEventRefundSucceeded:
		u.log.Info("webhook: refund succeeded",
			zap.String("payment_id", env.Object.ID))
		return true

	default:
		//未知のイベントは受領だけ返す
		u.log.Info("webhook: event ignored", zap.String("event", env.Event))
		return true
	}
}

// Refund は成功済みトランザクションの返金をゲートウェイに依頼し、
// 成功したらREFUNDEDへ遷移させる。注文ステータスは別途管理者が更新する。
func (u *PaymentUsecase) Refund(ctx context.Context, actorAdminUserID int64, orderID int64) error {
	if actorAdminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var trx model.Transaction
	var orderNumber string

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		t, err := r.Transactions().FindLatestByOrderID(ctx, o.ID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusBadRequest, "no transaction to refund")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if t.Status != model.TransactionStatusSucceeded {
			return NewHTTPError(http.StatusBadRequest, "no succeeded transaction")
		}

		trx = t
		orderNumber = o.OrderNumber
		return nil
	})
	if err != nil {
		return err
	}

	//ゲートウェイ呼び出し（ローカル状態は未変更のまま）
	ref, err := u.gateway.CreateRefund(ctx, trx.ExternalID, trx.Amount)
	if err != nil {
		return NewHTTPError(http.StatusServiceUnavailable, "payment unavailable, try again later")
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := r.Transactions().UpdateStatus(ctx, trx.ID, model.TransactionStatusRefunded); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//監査ログ
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionRefund,
			ResourceType: model.AuditResourceTransaction,
			ResourceID:   trx.ID,
			BeforeJSON:   fmt.Sprintf(`{"status":%q}`, model.TransactionStatusSucceeded),
			AfterJSON:    fmt.Sprintf(`{"status":%q,"refund_id":%q}`, model.TransactionStatusRefunded, ref.ID),
			CreatedAt:    time.Now(),
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
	if err != nil {
		return err
	}

	u.log.Info("refund applied",
		zap.String("order_number", orderNumber),
		zap.String("payment_id", trx.ExternalID),
		zap.String("refund_id", ref.ID))
	return nil
}
