package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	JWTSecret string // JWT署名シークレット

	GoEnv string // dev/prod

	//決済ページからの戻り先などを組み立てるベースURL
	PublicBaseURL string

	//ЮKassa（YooKassa）の接続情報
	YooKassaShopID    string
	YooKassaSecretKey string
	YooKassaAPIURL    string

	//ゲートウェイ呼び出しのタイムアウト
	GatewayTimeout time.Duration

	//通知イベントの送り先（空ならKafka通知は無効）
	KafkaBrokers []string
	KafkaTopic   string
}

// Loadは環境変数
func Load() (Config, error) {
	cfg := Config{
		Port: os.Getenv("PORT"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		GoEnv: os.Getenv("GO_ENV"),

		PublicBaseURL: os.Getenv("PUBLIC_BASE_URL"),

		YooKassaShopID:    os.Getenv("YOOKASSA_SHOP_ID"),
		YooKassaSecretKey: os.Getenv("YOOKASSA_SECRET_KEY"),
		YooKassaAPIURL:    os.Getenv("YOOKASSA_API_URL"),

		GatewayTimeout: 15 * time.Second,

		KafkaTopic: os.Getenv("KAFKA_TOPIC"),
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = strings.Split(v, ",")
	}

	//必須チェック
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("PORT is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.GoEnv == "" {
		return Config{}, fmt.Errorf("GO_ENV is required")
	}
	if cfg.PublicBaseURL == "" {
		return Config{}, fmt.Errorf("PUBLIC_BASE_URL is required")
	}
	if cfg.YooKassaShopID == "" {
		return Config{}, fmt.Errorf("YOOKASSA_SHOP_ID is required")
	}
	if cfg.YooKassaSecretKey == "" {
		return Config{}, fmt.Errorf("YOOKASSA_SECRET_KEY is required")
	}

	//デフォルト
	if cfg.YooKassaAPIURL == "" {
		cfg.YooKassaAPIURL = "https://api.yookassa.ru/v3"
	}
	if cfg.KafkaTopic == "" {
		cfg.KafkaTopic = "order-notifications"
	}

	return cfg, nil
}
