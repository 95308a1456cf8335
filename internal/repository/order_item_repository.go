package repository

import (
	"context"

	"app/internal/domain/model"
)

// 注文明細（確定時スナップショット）の永続化を約束する。
// 明細は注文作成時に一括で書き、その後は読み取り専用。
type OrderItemRepository interface {
	// 注文1件ぶんの明細をまとめて保存する
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error
	// 注文に属する明細をID昇順で返す
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
}
