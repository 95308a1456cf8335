package usecase

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"go.uber.org/zap"
)

// 管理者が進められるステータス遷移。
// DELIVEREDとCANCELLEDは終端で、そこからはどこへも動かせない。
var adminStatusTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusCreated:   {model.OrderStatusCancelled},
	model.OrderStatusConfirmed: {model.OrderStatusShipped, model.OrderStatusCancelled},
	model.OrderStatusPaid:      {model.OrderStatusShipped, model.OrderStatusCancelled},
	model.OrderStatusShipped:   {model.OrderStatusDelivered},
}

func canTransition(from model.OrderStatus, to model.OrderStatus) bool {
	for _, s := range adminStatusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// 管理者の注文操作（一覧・ステータス遷移）。
type AdminOrderUsecase struct {
	tx  repo.TransactionManager
	log *zap.Logger
}

func NewAdminOrderUsecase(tx repo.TransactionManager, log *zap.Logger) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, log: log}
}

type AdminOrderListInput struct {
	Page   int
	Limit  int
	Status string
	UserID *int64
	From   *time.Time
	To     *time.Time
}

type AdminOrderListOutput struct {
	Orders []OrderOutput `json:"orders"`
	Total  int64         `json:"total"`
	Page   int           `json:"page"`
	Limit  int           `json:"limit"`
}

func (u *AdminOrderUsecase) ListOrders(ctx context.Context, in AdminOrderListInput) (AdminOrderListOutput, error) {
	if in.Page < 1 {
		in.Page = 1
	}
	if in.Limit < 1 || in.Limit > 100 {
		in.Limit = 20
	}
	if in.Status != "" && !validOrderStatus(model.OrderStatus(in.Status)) {
		return AdminOrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	var out AdminOrderListOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListAdmin(ctx, repo.AdminOrderListFilter{
			Page:   in.Page,
			Limit:  in.Limit,
			Status: in.Status,
			UserID: in.UserID,
			From:   in.From,
			To:     in.To,
		})
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		outs := make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			outs = append(outs, toOrderOutput(o, items))
		}

		out = AdminOrderListOutput{Orders: outs, Total: total, Page: in.Page, Limit: in.Limit}
		return nil
	})

	if err != nil {
		return AdminOrderListOutput{}, err
	}
	return out, nil
}

// UpdateStatus は注文を指定ステータスへ遷移させる。
//
// CANCELLEDへの遷移では、在庫を減らした注文（CONFIRMED/PAID）に限り明細ぶんを在庫へ戻す。
// CREATEDはまだ減らしていないので戻さない。
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorAdminUserID int64, orderID int64, newStatus string) (OrderOutput, error) {
	if actorAdminUserID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	to := model.OrderStatus(newStatus)
	if !validOrderStatus(to) {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	var out OrderOutput
	var from model.OrderStatus

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if o.Status == to {
			//同じステータスへの再適用は何もしない
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			from = o.Status
			out = toOrderOutput(o, items)
			return nil
		}
		if !canTransition(o.Status, to) {
			return NewHTTPError(http.StatusConflict,
				fmt.Sprintf("cannot change status from %s to %s", o.Status, to))
		}

		if err := r.Orders().UpdateStatus(ctx, o.ID, to); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//在庫を減らしていた注文のキャンセルは明細ぶんを戻す
		if to == model.OrderStatusCancelled &&
			(o.Status == model.OrderStatusConfirmed || o.Status == model.OrderStatusPaid) {
			for _, it := range items {
				if err := r.Inventory().IncreaseStock(ctx, it.VariantID, it.Quantity); err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
			}
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   o.ID,
			BeforeJSON:   fmt.Sprintf(`{"status":%q}`, o.Status),
			AfterJSON:    fmt.Sprintf(`{"status":%q}`, to),
			CreatedAt:    time.Now(),
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		from = o.Status
		o.Status = to
		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}

	if from != to {
		u.log.Info("order status updated",
			zap.String("order_number", out.OrderNumber),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.Int64("admin_user_id", actorAdminUserID))
	}
	return out, nil
}

func validOrderStatus(s model.OrderStatus) bool {
	switch s {
	case model.OrderStatusCreated, model.OrderStatusConfirmed, model.OrderStatusPaid,
		model.OrderStatusShipped, model.OrderStatusDelivered, model.OrderStatusCancelled:
		return true
	}
	return false
}
