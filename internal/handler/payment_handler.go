package handler

import (
	"io"
	"net/http"
	"strconv"

	"app/internal/config"
	"app/internal/middleware"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 決済開始・結果確認・webhook受け口。
type PaymentHandler struct {
	uc *usecase.PaymentUsecase
}

func NewPaymentHandler(uc *usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

type InitiatePaymentResponse struct {
	ConfirmationURL string `json:"confirmation_url"`
}

type PaymentResultResponse struct {
	Status string `json:"status"`
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/orders")
	g.Use(middleware.AuthJWT(cfg))

	g.POST("/:id/payment", h.initiate)
	g.GET("/:id/payment/result", h.result)

	//webhookはゲートウェイが叩くので認証なし
	e.POST("/payments/webhook", h.webhook)
}

// POST /orders/:id/payment
func (h *PaymentHandler) initiate(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	url, err := h.uc.Initiate(c.Request().Context(), userID, orderID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, InitiatePaymentResponse{ConfirmationURL: url})
}

// GET /orders/:id/payment/result
// 決済ページからの戻り先。ゲートウェイへ現在の状態を問い合わせて反映する。
func (h *PaymentHandler) result(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	status, err := h.uc.HandleReturn(c.Request().Context(), userID, orderID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, PaymentResultResponse{Status: status})
}

// POST /payments/webhook
// 200以外を返すとゲートウェイが再送してくるので、処理できたら必ず200。
func (h *PaymentHandler) webhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}

	if ok := h.uc.HandleWebhook(c.Request().Context(), body); !ok {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}

	return c.JSON(http.StatusOK, SuccessResponse{Message: "success"})
}
