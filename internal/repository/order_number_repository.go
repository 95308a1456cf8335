package repository

import "context"

// 注文番号の連番。Next は同一dayに対して1ずつ増える値を原子的に返す。
type OrderNumberRepository interface {
	Next(ctx context.Context, day string) (int64, error)
}
