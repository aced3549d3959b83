package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func parseLevel(logLevel string) zapcore.Level {
	switch logLevel {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// InitLogger 替换全局日志器，返回的函数用于退出前刷新缓冲
func InitLogger(logLevel string) func() {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level.SetLevel(parseLevel(logLevel))
	cfg.DisableStacktrace = logLevel != "debug"

	lgr, err := cfg.Build()
	if err != nil {
		panic(fmt.Errorf("构建日志器失败: %w", err))
	}

	restore := zap.ReplaceGlobals(lgr)

	return func() {
		_ = lgr.Sync()
		restore()
	}
}
