package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ゲートウェイ側の決済ステータス
const (
	StatusPending           = "pending"
	StatusWaitingForCapture = "waiting_for_capture"
	StatusSucceeded         = "succeeded"
	StatusCanceled          = "canceled"
)

// ЮKassaのレシートはdescription最大128文字
const maxDescriptionLen = 128

type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// 最小通貨単位から "20.00" 形式の文字列へ
func FormatAmount(minor int64) Amount {
	return Amount{
		Value:    fmt.Sprintf("%d.%02d", minor/100, minor%100),
		Currency: "RUB",
	}
}

// レシートの1行
type ReceiptItem struct {
	Description    string `json:"description"`
	Quantity       int64  `json:"quantity"`
	Amount         Amount `json:"amount"`
	VATCode        int    `json:"vat_code"`
	PaymentMode    string `json:"payment_mode"`
	PaymentSubject string `json:"payment_subject"`
}

// 明細からレシート行を作る。説明はゲートウェイの上限で切り詰める。
func NewReceiptItem(description string, quantity int64, unitPriceMinor int64) ReceiptItem {
	if len([]rune(description)) > maxDescriptionLen {
		description = string([]rune(description)[:maxDescriptionLen])
	}
	return ReceiptItem{
		Description:    description,
		Quantity:       quantity,
		Amount:         FormatAmount(unitPriceMinor),
		VATCode:        1, // НДСなし
		PaymentMode:    "full_payment",
		PaymentSubject: "commodity",
	}
}

// ローカルの注文と決済を突き合わせるためのメタデータ
type Metadata struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	UserID      int64  `json:"user_id"`
	UserEmail   string `json:"user_email"`
}

type CreateRequest struct {
	AmountMinor    int64
	Description    string
	ReturnURL      string
	IdempotencyKey string
	Metadata       Metadata
	CustomerEmail  string
	Items          []ReceiptItem
}

type Confirmation struct {
	Type            string `json:"type"`
	ConfirmationURL string `json:"confirmation_url"`
}

// ゲートウェイ上の決済オブジェクト
type Payment struct {
	ID           string       `json:"id"`
	Status       string       `json:"status"`
	Paid         bool         `json:"paid"`
	Amount       Amount       `json:"amount"`
	Confirmation Confirmation `json:"confirmation"`
	CreatedAt    string       `json:"created_at"`

	//監査用の生レスポンス
	Raw json.RawMessage `json:"-"`
}

type Refund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// 外部決済プロセッサの薄い窓口。
// すべての操作で、通信エラー・リモートエラーは復帰可能として扱う：
// 呼び出し側は error を「決済システム利用不可・ローカル状態は触らない」と解釈する。
type Gateway interface {
	Create(ctx context.Context, req CreateRequest) (*Payment, error)
	Get(ctx context.Context, paymentID string) (*Payment, error)
	Capture(ctx context.Context, paymentID string, amountMinor int64) (*Payment, error)
	Cancel(ctx context.Context, paymentID string) (*Payment, error)
	CreateRefund(ctx context.Context, paymentID string, amountMinor int64) (*Refund, error)
}

// 同一試行のリトライで同じキーを使えるよう、(注文ID, 試行回数)から決定的に導出する。
func IdempotencyKey(orderID int64, attempt int64) string {
	name := fmt.Sprintf("order:%d:attempt:%d", orderID, attempt)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}
