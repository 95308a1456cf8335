package db

import (
	"fmt"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect はPostgresへ接続して *gorm.DB を返す。
// TranslateErrorでドライバのエラーをgormの共通エラーに寄せる。
func Connect() (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsnFromEnv()), &gorm.Config{TranslateError: true})
}

// DATABASE_URL がまとめて指定されていればそれを最優先し、
// 無ければ個別のPOSTGRES_*からDSNを組み立てる。
func dsnFromEnv() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getenv("POSTGRES_HOST", "localhost"),
		getenv("POSTGRES_PORT", "5432"),
		getenv("POSTGRES_USER", "postgres"),
		getenv("POSTGRES_PASSWORD", "postgres"),
		getenv("POSTGRES_DB", "app"),
		getenv("POSTGRES_SSLMODE", "disable"),
	)
}

func getenv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
