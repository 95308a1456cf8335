package repository

import (
	"context"

	"gorm.io/gorm"
)

type OrderNumberGormRepository struct {
	db *gorm.DB
}

func NewOrderNumberGormRepository(db *gorm.DB) *OrderNumberGormRepository {
	return &OrderNumberGormRepository{db: db}
}

// dayの連番を1進めて返す。
// 1本のUPSERTで加算するので、同時実行でも同じ番号は出ない。
func (r *OrderNumberGormRepository) Next(ctx context.Context, day string) (int64, error) {
	var seq int64
	err := r.db.WithContext(ctx).Raw(
		`INSERT INTO order_counters (day, value) VALUES (?, 1)
		 ON CONFLICT (day) DO UPDATE SET value = order_counters.value + 1
		 RETURNING value`,
		day,
	).Scan(&seq).Error
	if err != nil {
		return 0, err
	}
	return seq, nil
}
