package usecase

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"go.uber.org/zap"
)

// 管理者の在庫操作。
type AdminInventoryUsecase struct {
	tx  repo.TransactionManager
	log *zap.Logger
}

func NewAdminInventoryUsecase(tx repo.TransactionManager, log *zap.Logger) *AdminInventoryUsecase {
	return &AdminInventoryUsecase{tx: tx, log: log}
}

type AdjustStockInput struct {
	NewStock int64
	Reason   string
}

// AdjustStock は在庫を絶対値で設定し、差分を調整履歴と監査ログに残す。
func (u *AdminInventoryUsecase) AdjustStock(ctx context.Context, actorAdminUserID int64, variantID int64, in AdjustStockInput) (VariantResponse, error) {
	if actorAdminUserID <= 0 {
		return VariantResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if variantID <= 0 {
		return VariantResponse{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if in.NewStock < 0 {
		return VariantResponse{}, NewHTTPError(http.StatusBadRequest, "invalid stock")
	}
	if in.Reason == "" {
		return VariantResponse{}, NewHTTPError(http.StatusBadRequest, "reason required")
	}

	var out VariantResponse

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		v, err := r.Variants().FindByID(ctx, variantID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.Inventory().SetStock(ctx, v.ID, in.NewStock); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			VariantID:   v.ID,
			AdminUserID: actorAdminUserID,
			Delta:       in.NewStock - v.Stock,
			Reason:      in.Reason,
			CreatedAt:   time.Now(),
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionUpdateStock,
			ResourceType: model.AuditResourceVariant,
			ResourceID:   v.ID,
			BeforeJSON:   fmt.Sprintf(`{"stock":%d}`, v.Stock),
			AfterJSON:    fmt.Sprintf(`{"stock":%d}`, in.NewStock),
			CreatedAt:    time.Now(),
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		v.Stock = in.NewStock
		out = toVariantResponse(v)
		return nil
	})

	if err != nil {
		return VariantResponse{}, err
	}

	u.log.Info("stock adjusted",
		zap.Int64("variant_id", variantID),
		zap.Int64("new_stock", in.NewStock),
		zap.Int64("admin_user_id", actorAdminUserID))
	return out, nil
}
