package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ЮKassa API v3 のHTTPクライアント。
type YooKassaClient struct {
	baseURL   string
	shopID    string
	secretKey string
	client    *http.Client
	log       *zap.Logger
}

func NewYooKassaClient(baseURL, shopID, secretKey string, timeout time.Duration, log *zap.Logger) *YooKassaClient {
	return &YooKassaClient{
		baseURL:   baseURL,
		shopID:    shopID,
		secretKey: secretKey,
		client:    &http.Client{Timeout: timeout},
		log:       log,
	}
}

type createPaymentBody struct {
	Amount       Amount         `json:"amount"`
	Confirmation map[string]any `json:"confirmation"`
	Capture      bool           `json:"capture"`
	Description  string         `json:"description"`
	Metadata     Metadata       `json:"metadata"`
	Receipt      *receiptBody   `json:"receipt,omitempty"`
}

type receiptBody struct {
	Customer map[string]string `json:"customer"`
	Items    []ReceiptItem     `json:"items"`
}

func (c *YooKassaClient) Create(ctx context.Context, req CreateRequest) (*Payment, error) {
	body := createPaymentBody{
		Amount: FormatAmount(req.AmountMinor),
		Confirmation: map[string]any{
			"type":       "redirect",
			"return_url": req.ReturnURL,
		},
		//自動キャプチャ
		Capture:     true,
		Description: req.Description,
		Metadata:    req.Metadata,
	}
	if len(req.Items) > 0 {
		body.Receipt = &receiptBody{
			Customer: map[string]string{"email": req.CustomerEmail},
			Items:    req.Items,
		}
	}

	var p Payment
	raw, err := c.do(ctx, http.MethodPost, "/payments", req.IdempotencyKey, body, &p)
	if err != nil {
		c.log.Error("yookassa: create payment failed",
			zap.String("order_number", req.Metadata.OrderNumber),
			zap.Error(err))
		return nil, err
	}
	p.Raw = raw

	c.log.Info("yookassa: payment created",
		zap.String("payment_id", p.ID),
		zap.String("order_number", req.Metadata.OrderNumber))
	return &p, nil
}

func (c *YooKassaClient) Get(ctx context.Context, paymentID string) (*Payment, error) {
	var p Payment
	raw, err := c.do(ctx, http.MethodGet, "/payments/"+paymentID, "", nil, &p)
	if err != nil {
		c.log.Error("yookassa: get payment failed",
			zap.String("payment_id", paymentID),
			zap.Error(err))
		return nil, err
	}
	p.Raw = raw
	return &p, nil
}

func (c *YooKassaClient) Capture(ctx context.Context, paymentID string, amountMinor int64) (*Payment, error) {
	body := map[string]any{}
	if amountMinor > 0 {
		body["amount"] = FormatAmount(amountMinor)
	}

	var p Payment
	raw, err := c.do(ctx, http.MethodPost, "/payments/"+paymentID+"/capture", uuid.NewString(), body, &p)
	if err != nil {
		c.log.Error("yookassa: capture failed",
			zap.String("payment_id", paymentID),
			zap.Error(err))
		return nil, err
	}
	p.Raw = raw

	c.log.Info("yookassa: payment captured", zap.String("payment_id", paymentID))
	return &p, nil
}

func (c *YooKassaClient) Cancel(ctx context.Context, paymentID string) (*Payment, error) {
	var p Payment
	raw, err := c.do(ctx, http.MethodPost, "/payments/"+paymentID+"/cancel", uuid.NewString(), struct{}{}, &p)
	if err != nil {
		c.log.Error("yookassa: cancel failed",
			zap.String("payment_id", paymentID),
			zap.Error(err))
		return nil, err
	}
	p.Raw = raw

	c.log.Info("yookassa: payment canceled", zap.String("payment_id", paymentID))
	return &p, nil
}

func (c *YooKassaClient) CreateRefund(ctx context.Context, paymentID string, amountMinor int64) (*Refund, error) {
	body := map[string]any{
		"payment_id": paymentID,
		"amount":     FormatAmount(amountMinor),
	}

	var ref Refund
	_, err := c.do(ctx, http.MethodPost, "/refunds", uuid.NewString(), body, &ref)
	if err != nil {
		c.log.Error("yookassa: refund failed",
			zap.String("payment_id", paymentID),
			zap.Error(err))
		return nil, err
	}

	c.log.Info("yookassa: refund created",
		zap.String("refund_id", ref.ID),
		zap.String("payment_id", paymentID))
	return &ref, nil
}

// 共通のリクエスト実行。2xx以外・通信エラー・壊れたJSONはすべてerrorで返す。
func (c *YooKassaClient) do(ctx context.Context, method, path, idemKey string, body any, out any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.shopID, c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	if idemKey != "" {
		req.Header.Set("Idempotence-Key", idemKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, truncateForLog(data))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}

	return data, nil
}

func truncateForLog(data []byte) string {
	const limit = 512
	if len(data) > limit {
		return string(data[:limit]) + "..."
	}
	return string(data)
}
