package main

import (
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/handler"
	"app/internal/infra/db"
	infraRepo "app/internal/infra/repository"
	"app/internal/logging"
	"app/internal/notification"
	"app/internal/payment"
	"app/internal/server"
	"app/internal/usecase"
	auth "app/internal/usecase/auth_usecase"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

type jwtIssuer struct {
	secret    []byte
	accessTTL time.Duration
}

func (i *jwtIssuer) Issue(userID int64, role model.Role, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(i.accessTTL)

	claims := jwt.MapClaims{
		"sub":  userID,
		"role": string(role),
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

func main() {
	//.envが無ければ環境変数だけで動かす
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.GoEnv)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	//DB接続
	gormDB, err := db.Connect()
	if err != nil {
		panic(err)
	}
	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.ProductVariant{},
		&model.Cart{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.Transaction{},
		&model.OrderCounter{},
		&model.InventoryAdjustment{},
		&model.AuditLog{},
	); err != nil {
		panic(err)
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	variantRepo := infraRepo.NewVariantGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//決済ゲートウェイ
	gateway := payment.NewYooKassaClient(
		cfg.YooKassaAPIURL,
		cfg.YooKassaShopID,
		cfg.YooKassaSecretKey,
		cfg.GatewayTimeout,
		logger,
	)

	//通知シンク（ブローカー未設定ならNOP）
	var sink notification.Sink = notification.NopSink{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink := notification.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer kafkaSink.Close()
		sink = kafkaSink
	}

	//usecaseに渡す部品
	clock := &realClock{}

	//bcrypt（会員登録：Hash / ログイン：Verify）
	hasher := auth.NewBcryptPasswordHasher(12)
	verifier := auth.NewBcryptPasswordVerifier()

	//JWT issuer
	issuer := &jwtIssuer{
		secret:    []byte(cfg.JWTSecret),
		accessTTL: 15 * time.Minute,
	}

	//Usecase生成
	registerUC := auth.NewRegisterUserUsecase(userRepo, hasher, clock)
	loginUC := auth.NewLoginUsecase(userRepo, verifier, issuer, clock)
	variantUC := usecase.NewVariantUsecase(variantRepo)
	cartUC := usecase.NewCartUsecase(cartRepo, cartRepo, variantRepo)
	checkoutUC := usecase.NewCheckoutUsecase(txManager, userRepo, sink, logger)
	orderUC := usecase.NewOrderUsecase(txManager)
	paymentUC := usecase.NewPaymentUsecase(txManager, userRepo, gateway, sink, cfg.PublicBaseURL, logger)
	adminOrderUC := usecase.NewAdminOrderUsecase(txManager, logger)
	adminInvUC := usecase.NewAdminInventoryUsecase(txManager, logger)

	//Handler生成
	handlers := server.Handlers{
		Auth:         handler.NewAuthHandler(registerUC, loginUC),
		Variant:      handler.NewVariantHandler(variantUC),
		Cart:         handler.NewCartHandler(cartUC),
		Order:        handler.NewOrderHandler(checkoutUC, orderUC),
		Payment:      handler.NewPaymentHandler(paymentUC),
		AdminOrder:   handler.NewAdminOrderHandler(adminOrderUC, paymentUC),
		AdminVariant: handler.NewAdminVariantHandler(adminInvUC),
	}

	//Server起動
	addr := cfg.Port
	if addr[0] != ':' {
		addr = ":" + addr
	}

	logger.Info("server starting", zap.String("addr", addr))
	if err := server.Start(addr, cfg, handlers); err != nil {
		panic(err)
	}
}
