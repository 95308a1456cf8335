package usecase

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"app/internal/domain/model"
	"app/internal/notification"
	repo "app/internal/repository"

	"go.uber.org/zap"
)

// 配送先住所の最低文字数
const minAddressLen = 10

// 注文番号の採番リトライ上限
const orderNumberRetries = 3

// カートから注文への確定処理。
type CheckoutUsecase struct {
	tx       repo.TransactionManager
	userRepo repo.UserRepository
	sink     notification.Sink
	log      *zap.Logger
}

func NewCheckoutUsecase(
	tx repo.TransactionManager,
	userRepo repo.UserRepository,
	sink notification.Sink,
	log *zap.Logger,
) *CheckoutUsecase {
	return &CheckoutUsecase{tx: tx, userRepo: userRepo, sink: sink, log: log}
}

type CheckoutInput struct {
	DeliveryAddress string
	Comment         string
	PaymentMethod   string
}

// Checkout はカートの内容をスナップショットして注文を1件作る。
//
// オンライン決済（yookassa）：注文はCREATEDのまま。在庫もカートも触らない。
// 取り返しのつかない副作用は決済成功の確認まで遅らせる（確定までの売り越しは許容済みのトレードオフ）。
//
// 現金払い（cash）：同一トランザクションで在庫減算（0で切り詰め）・カート全消し・CONFIRMEDへ。
func (u *CheckoutUsecase) Checkout(ctx context.Context, userID int64, in CheckoutInput) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	address := strings.TrimSpace(in.DeliveryAddress)
	if len([]rune(address)) < minAddressLen {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid delivery address")
	}

	method := model.PaymentMethod(in.PaymentMethod)
	if method != model.PaymentMethodYooKassa && method != model.PaymentMethodCash {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid payment method")
	}

	var out OrderOutput
	var created model.Order
	var createdItems []model.OrderItem

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//カート取得
		cart, err := r.Carts().FindByUserID(ctx, userID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusBadRequest, "cart empty")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//カート明細取得
		cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if len(cartItems) == 0 {
			return NewHTTPError(http.StatusBadRequest, "cart empty")
		}

		//確定時点のバリアント現在価格でスナップショット
		orderItems := make([]model.OrderItem, 0, len(cartItems))
		var total int64 = 0

		now := time.Now()
		for _, ci := range cartItems {
			v, err := r.Variants().FindByID(ctx, ci.VariantID)
			if err == repo.ErrNotFound {
				return NewHTTPError(http.StatusBadRequest, "invalid")
			}
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if !v.IsActive {
				return NewHTTPError(http.StatusBadRequest, "invalid")
			}

			orderItems = append(orderItems, model.OrderItem{
				VariantID:           ci.VariantID,
				ProductNameSnapshot: v.ProductName,
				UnitPrice:           v.Price,
				Quantity:            ci.Quantity,
				CreatedAt:           now,
			})

			total += v.Price * ci.Quantity
		}

		//注文作成（番号重複なら再採番してリトライ）
		day := now.Format("20060102")
		var orderID int64
		var orderNumber string

		for attempt := 0; ; attempt++ {
			seq, err := r.OrderNumbers().Next(ctx, day)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			orderNumber = fmt.Sprintf("%s%04d", day, seq)

			orderID, err = r.Orders().Create(ctx, model.Order{
				UserID:          userID,
				OrderNumber:     orderNumber,
				Status:          model.OrderStatusCreated,
				TotalAmount:     total,
				DeliveryAddress: address,
				Comment:         strings.TrimSpace(in.Comment),
				PaymentMethod:   method,
				CreatedAt:       now,
				UpdatedAt:       now,
			})
			if err == repo.ErrConflict {
				if attempt+1 >= orderNumberRetries {
					return NewHTTPError(http.StatusConflict, "order number conflict")
				}
				continue
			}
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			break
		}

		//注文明細一括作成
		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		status := model.OrderStatusCreated

		if method == model.PaymentMethodCash {
			//現金払い：在庫減算（足りない分は0で切り詰め）→カート全消し→CONFIRMED
			for _, it := range orderItems {
				if err := r.Inventory().DecreaseStockClamped(ctx, it.VariantID, it.Quantity); err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
			}
			if err := r.Carts().Clear(ctx, cart.ID); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if err := r.Orders().UpdateStatus(ctx, orderID, model.OrderStatusConfirmed); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			status = model.OrderStatusConfirmed
		}

		created = model.Order{
			ID:              orderID,
			UserID:          userID,
			OrderNumber:     orderNumber,
			Status:          status,
			TotalAmount:     total,
			DeliveryAddress: address,
			PaymentMethod:   method,
			CreatedAt:       now,
		}
		createdItems = orderItems
		out = toOrderOutput(created, orderItems)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}

	u.log.Info("order created",
		zap.String("order_number", out.OrderNumber),
		zap.Int64("user_id", userID),
		zap.String("payment_method", string(method)))

	//現金払いは確定済みなので確認通知を出す。失敗しても注文は成立したまま。
	if method == model.PaymentMethodCash {
		notifyOrderConfirmed(ctx, u.log, u.userRepo, u.sink, created, createdItems)
	}

	return out, nil
}
