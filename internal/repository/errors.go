package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")

	//一意制約違反（注文番号・外部ID等）。呼び出し側でリトライか拒否を選ぶ。
	ErrConflict = errors.New("conflict")
)
