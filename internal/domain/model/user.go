package model

import "time"

type Role string

const (
	RoleUser      Role = "USER"
	RoleModerator Role = "MODERATOR"
	RoleAdmin     Role = "ADMIN"
)

// 文字列からRoleへ（未知の値はfalse）
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleModerator, RoleAdmin:
		return Role(s), true
	default:
		return "", false
	}
}

// モデレーター以上か（注文一覧の閲覧など）
func (r Role) CanModerate() bool {
	return r == RoleModerator || r == RoleAdmin
}

// 管理者か（ステータス更新・返金・在庫調整）
func (r Role) CanAdministrate() bool {
	return r == RoleAdmin
}

type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"column:password_hash;not null"`
	Role         Role   `gorm:"type:varchar(20);not null;default:'USER'"`
	IsActive     bool   `gorm:"not null;default:true"`
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
