package server

import (
	"app/internal/config"

	"github.com/labstack/echo/v4"
)

func Start(addr string, cfg config.Config, h Handlers) error {
	e := New(cfg, h)
	return e.Start(addr)
}

// New はルート登録済みのechoを組み立てる（テストからも使う）。
func New(cfg config.Config, h Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	RegisterRoutes(e, cfg, h)
	return e
}
