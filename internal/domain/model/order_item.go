package model

import "time"

// 確定時点のカート明細スナップショット。作成後は変更しない。
type OrderItem struct {
	ID                  int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID             int64     `gorm:"not null;index" json:"order_id"`
	VariantID           int64     `gorm:"not null;index" json:"variant_id"`
	ProductNameSnapshot string    `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	UnitPrice           int64     `gorm:"not null" json:"unit_price"`
	Quantity            int64     `gorm:"not null" json:"quantity"`
	CreatedAt           time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

// 明細の合計額
func (i OrderItem) TotalPrice() int64 {
	return i.UnitPrice * i.Quantity
}
