package repository

import (
	"context"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type VariantGormRepository struct {
	db *gorm.DB
}

func NewVariantGormRepository(db *gorm.DB) *VariantGormRepository {
	return &VariantGormRepository{db: db}
}

func (r *VariantGormRepository) ListActive(ctx context.Context, q repo.VariantListQuery) ([]model.ProductVariant, int64, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}

	query := r.db.WithContext(ctx).Model(&model.ProductVariant{}).
		Where("is_active = ?", true)

	if q.Q != "" {
		query = query.Where("product_name LIKE ?", "%"+q.Q+"%")
	}
	if q.MinPrice != nil {
		query = query.Where("price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		query = query.Where("price <= ?", *q.MaxPrice)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return []model.ProductVariant{}, 0, err
	}

	var items []model.ProductVariant
	offset := (q.Page - 1) * q.Limit
	if err := query.Order("id asc").Limit(q.Limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.ProductVariant{}, 0, err
	}

	return items, total, nil
}

func (r *VariantGormRepository) FindByID(ctx context.Context, id int64) (model.ProductVariant, error) {
	var v model.ProductVariant
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&v).Error
	if isNotFound(err) {
		return model.ProductVariant{}, repo.ErrNotFound
	}
	if err != nil {
		return model.ProductVariant{}, err
	}
	return v, nil
}
