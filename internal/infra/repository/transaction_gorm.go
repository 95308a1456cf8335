package repository

import (
	"context"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type TransactionGormRepository struct {
	db *gorm.DB
}

func NewTransactionGormRepository(db *gorm.DB) *TransactionGormRepository {
	return &TransactionGormRepository{db: db}
}

func (r *TransactionGormRepository) Create(ctx context.Context, t model.Transaction) (int64, error) {
	//ErrConflictを握りつぶして処理を続ける呼び出し側があるので、
	//一意制約違反が外側のTxを中断させないようSAVEPOINTで区切る。
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&t).Error
	})
	if err != nil {
		//external_idの重複（同じwebhookの二重処理など）
		if isUniqueViolation(err) {
			return 0, repo.ErrConflict
		}
		return 0, err
	}
	return t.ID, nil
}

func (r *TransactionGormRepository) FindByExternalID(ctx context.Context, externalID string) (model.Transaction, error) {
	var t model.Transaction
	err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&t).Error
	if isNotFound(err) {
		return model.Transaction{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Transaction{}, err
	}
	return t, nil
}

func (r *TransactionGormRepository) FindLatestByOrderID(ctx context.Context, orderID int64) (model.Transaction, error) {
	var t model.Transaction
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id desc").
		First(&t).Error
	if isNotFound(err) {
		return model.Transaction{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Transaction{}, err
	}
	return t, nil
}

func (r *TransactionGormRepository) CountByOrderID(ctx context.Context, orderID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *TransactionGormRepository) UpdateStatus(ctx context.Context, transactionID int64, status model.TransactionStatus) error {
	res := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("id = ?", transactionID).
		Update("status", status)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
