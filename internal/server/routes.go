package server

import (
	"app/internal/config"
	"app/internal/handler"

	"github.com/labstack/echo/v4"
)

// 全ハンドラの束。mainで組み立てて渡す。
type Handlers struct {
	Auth         *handler.AuthHandler
	Variant      *handler.VariantHandler
	Cart         *handler.CartHandler
	Order        *handler.OrderHandler
	Payment      *handler.PaymentHandler
	AdminOrder   *handler.AdminOrderHandler
	AdminVariant *handler.AdminVariantHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	h.Auth.RegisterRoutes(e)
	h.Variant.RegisterRoutes(e)
	h.Cart.RegisterRoutes(e, cfg)
	h.Order.RegisterRoutes(e, cfg)
	h.Payment.RegisterRoutes(e, cfg)
	h.AdminOrder.RegisterRoutes(e, cfg)
	h.AdminVariant.RegisterRoutes(e, cfg)
}
