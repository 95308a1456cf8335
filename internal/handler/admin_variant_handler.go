package handler

import (
	"net/http"
	"strconv"

	"app/internal/config"
	"app/internal/middleware"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminVariantHandler struct {
	uc *usecase.AdminInventoryUsecase
}

func NewAdminVariantHandler(uc *usecase.AdminInventoryUsecase) *AdminVariantHandler {
	return &AdminVariantHandler{uc: uc}
}

type StockUpdateRequest struct {
	Stock  int64  `json:"stock"`
	Reason string `json:"reason"`
}

func (h *AdminVariantHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/admin/variants")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.AdminRoleGuard())

	g.PUT("/:id/stock", h.updateStock)
}

func (h *AdminVariantHandler) updateStock(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	variantID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req StockUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.AdjustStock(c.Request().Context(), adminID, variantID, usecase.AdjustStockInput{
		NewStock: req.Stock,
		Reason:   req.Reason,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
