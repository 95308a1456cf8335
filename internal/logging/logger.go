package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New はアプリ全体で使うzapロガーを作る。
// devでは読みやすい出力、それ以外はJSON。
func New(goEnv string) (*zap.Logger, error) {
	if goEnv == "dev" {
		return zap.NewDevelopment()
	}

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stdout"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	return cfg.Build()
}
