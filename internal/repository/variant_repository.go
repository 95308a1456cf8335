package repository

import (
	"context"

	"app/internal/domain/model"
)

// バリアント一覧の検索
type VariantListQuery struct {
	Page     int
	Limit    int
	Q        string
	MinPrice *int64
	MaxPrice *int64
}

// バリアントの永続化（保存・取得）だけを約束。
type VariantRepository interface {
	ListActive(ctx context.Context, q VariantListQuery) ([]model.ProductVariant, int64, error)
	FindByID(ctx context.Context, id int64) (model.ProductVariant, error)
}
