package repository

import (
	"context"

	"app/internal/domain/model"
)

type AuditLogRepository interface {
	Create(ctx context.Context, log model.AuditLog) error
	List(ctx context.Context, page int, limit int) ([]model.AuditLog, int64, error)
}
