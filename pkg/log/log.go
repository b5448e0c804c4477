package log

import "go.uber.org/zap"

// InitLogger 初始化全局 zap Logger，之后通过 zap.L() 使用
func InitLogger() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)
}

// InitDevLogger 开发模式下使用带彩色级别的控制台输出
func InitDevLogger() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)
}
