package model

import "time"

type OrderStatus string

const (
	//作成直後（オンライン決済待ち）
	OrderStatusCreated OrderStatus = "CREATED"
	//現金払いで確定済み
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// 決済の観点で終端か（再決済を受け付けない）
func (s OrderStatus) SettledForPayment() bool {
	return s == OrderStatusPaid || s == OrderStatusShipped || s == OrderStatusDelivered
}

type PaymentMethod string

const (
	PaymentMethodYooKassa PaymentMethod = "yookassa"
	PaymentMethodCash     PaymentMethod = "cash"
)

type Order struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64 `gorm:"not null;index" json:"user_id"`

	//日付プレフィックス＋連番（例: 202608310001）
	OrderNumber string `gorm:"type:varchar(50);not null;uniqueIndex" json:"order_number"`

	Status OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	//確定時にカートから計算して保存（明細からの再計算はしない）
	TotalAmount int64 `gorm:"not null" json:"total_amount"`

	DeliveryAddress string        `gorm:"type:text;not null" json:"delivery_address"`
	Comment         string        `gorm:"type:text" json:"comment"`
	PaymentMethod   PaymentMethod `gorm:"type:varchar(20);not null" json:"payment_method"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
