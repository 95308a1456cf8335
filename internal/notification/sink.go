package notification

import "context"

// 注文確認の通知イベント。
type OrderConfirmedEvent struct {
	OrderID     int64       `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	UserEmail   string      `json:"user_email"`
	TotalAmount int64       `json:"total_amount"`
	Items       []EventItem `json:"items"`
}

type EventItem struct {
	ProductName string `json:"product_name"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
}

// 確認メッセージの送り先。
// 送信失敗は注文・決済の正しさに影響してはいけない：
// 呼び出し側はエラーをログに残して握りつぶす。
type Sink interface {
	OrderConfirmed(ctx context.Context, ev OrderConfirmedEvent) error
}

// 通知設定が無い環境（dev・テスト）用。
type NopSink struct{}

func (NopSink) OrderConfirmed(ctx context.Context, ev OrderConfirmedEvent) error {
	return nil
}
