package model

import "time"

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusSucceeded TransactionStatus = "SUCCEEDED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
	TransactionStatusRefunded  TransactionStatus = "REFUNDED"
)

// 外部ゲートウェイ経由の1回の決済試行。
// 1注文に複数ありえる（失敗後の再試行）が、注文ステータスを駆動するのは
// PENDING/SUCCEEDEDのもの1件だけ。
type Transaction struct {
	ID      int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID int64 `gorm:"not null;index" json:"order_id"`

	Amount        int64  `gorm:"not null" json:"amount"`
	PaymentSystem string `gorm:"type:varchar(50);not null;default:'YooKassa'" json:"payment_system"`

	//ゲートウェイが採番した決済ID
	ExternalID string `gorm:"type:varchar(255);not null;uniqueIndex" json:"external_id"`

	Status TransactionStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	//監査・デバッグ用の生レスポンス（JSON文字列）
	PaymentData string `gorm:"type:text" json:"payment_data"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
