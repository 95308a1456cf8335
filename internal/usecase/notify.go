package usecase

import (
	"context"

	"app/internal/domain/model"
	"app/internal/notification"
	repo "app/internal/repository"

	"go.uber.org/zap"
)

// 注文確定の通知をシンクへ流す。
// 通知はfire-and-forget：失敗してもログだけ残して呼び出し元へは返さない。
func notifyOrderConfirmed(
	ctx context.Context,
	log *zap.Logger,
	users repo.UserRepository,
	sink notification.Sink,
	order model.Order,
	items []model.OrderItem,
) {
	user, err := users.FindByID(ctx, order.UserID)
	if err != nil {
		log.Warn("notification skipped: user lookup failed",
			zap.String("order_number", order.OrderNumber),
			zap.Error(err))
		return
	}

	ev := notification.OrderConfirmedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserEmail:   user.Email,
		TotalAmount: order.TotalAmount,
	}
	for _, it := range items {
		ev.Items = append(ev.Items, notification.EventItem{
			ProductName: it.ProductNameSnapshot,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}

	if err := sink.OrderConfirmed(ctx, ev); err != nil {
		log.Warn("notification failed",
			zap.String("order_number", ev.OrderNumber),
			zap.Error(err))
	}
}
