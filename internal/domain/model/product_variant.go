package model

import (
	"time"

	"gorm.io/gorm"
)

// 購入単位のSKU（商品×サイズ×カラー）。
// 在庫と価格はここだけが持つ。
type ProductVariant struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductName string         `gorm:"type:varchar(255);not null" json:"product_name"`
	Size        string         `gorm:"type:varchar(20);not null" json:"size"`
	Color       string         `gorm:"type:varchar(50);not null" json:"color"`
	SKU         string         `gorm:"type:varchar(100);not null;uniqueIndex" json:"sku"`

	//価格は最小通貨単位（コペイカ）で保持
	Price int64 `gorm:"not null" json:"price"`

	//在庫数（0未満にはならない）
	Stock int64 `gorm:"not null;default:0" json:"stock"`

	IsActive  bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// 在庫ありか
func (v ProductVariant) InStock() bool {
	return v.Stock > 0
}
