package model

import "time"

// カートの明細。
// 同一バリアントは1行（quantity加算）。価格は持たず、表示も確定もバリアントの現在価格を使う。
type CartItem struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID    int64     `gorm:"not null;index;uniqueIndex:idx_cart_variant" json:"cart_id"`
	VariantID int64     `gorm:"not null;index;uniqueIndex:idx_cart_variant" json:"variant_id"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
