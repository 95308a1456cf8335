package usecase

import (
	"context"
	"net/http"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

// 公開カタログの参照系。
type VariantUsecase struct {
	variantRepo repo.VariantRepository
}

func NewVariantUsecase(variantRepo repo.VariantRepository) *VariantUsecase {
	return &VariantUsecase{variantRepo: variantRepo}
}

type VariantResponse struct {
	ID          int64  `json:"id"`
	ProductName string `json:"product_name"`
	Size        string `json:"size"`
	Color       string `json:"color"`
	SKU         string `json:"sku"`
	Price       int64  `json:"price"`
	InStock     bool   `json:"in_stock"`
}

type VariantListInput struct {
	Page     int
	Limit    int
	Q        string
	MinPrice *int64
	MaxPrice *int64
}

type VariantListOutput struct {
	Variants []VariantResponse `json:"variants"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

func (u *VariantUsecase) List(ctx context.Context, in VariantListInput) (VariantListOutput, error) {
	if in.Page < 1 {
		in.Page = 1
	}
	if in.Limit < 1 || in.Limit > 100 {
		in.Limit = 20
	}

	variants, total, err := u.variantRepo.ListActive(ctx, repo.VariantListQuery{
		Page:     in.Page,
		Limit:    in.Limit,
		Q:        in.Q,
		MinPrice: in.MinPrice,
		MaxPrice: in.MaxPrice,
	})
	if err != nil {
		return VariantListOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	outs := make([]VariantResponse, 0, len(variants))
	for _, v := range variants {
		outs = append(outs, toVariantResponse(v))
	}
	return VariantListOutput{Variants: outs, Total: total, Page: in.Page, Limit: in.Limit}, nil
}

func (u *VariantUsecase) Get(ctx context.Context, variantID int64) (VariantResponse, error) {
	if variantID <= 0 {
		return VariantResponse{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	v, err := u.variantRepo.FindByID(ctx, variantID)
	if err == repo.ErrNotFound {
		return VariantResponse{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return VariantResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !v.IsActive {
		//非公開のバリアントは存在しない扱い
		return VariantResponse{}, NewHTTPError(http.StatusNotFound, "not found")
	}

	return toVariantResponse(v), nil
}

func toVariantResponse(v model.ProductVariant) VariantResponse {
	return VariantResponse{
		ID:          v.ID,
		ProductName: v.ProductName,
		Size:        v.Size,
		Color:       v.Color,
		SKU:         v.SKU,
		Price:       v.Price,
		InStock:     v.InStock(),
	}
}
