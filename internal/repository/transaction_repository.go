package repository

import (
	"context"

	"app/internal/domain/model"
)

type TransactionRepository interface {
	Create(ctx context.Context, t model.Transaction) (int64, error)

	//external_idで1件取得（webhook・リダイレクト復帰の入口）
	FindByExternalID(ctx context.Context, externalID string) (model.Transaction, error)

	//注文の最新トランザクション
	FindLatestByOrderID(ctx context.Context, orderID int64) (model.Transaction, error)

	//決済試行回数（冪等キーのattempt採番に使う）
	CountByOrderID(ctx context.Context, orderID int64) (int64, error)

	UpdateStatus(ctx context.Context, transactionID int64, status model.TransactionStatus) error
}
