package config

import (
	"fmt"

	"go.uber.org/zap"
)

// BuildLogger 根据日志配置构建 zap.Logger。
func (c LogConfig) BuildLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	zcfg := zap.Config{
		Level:             level,
		Encoding:          c.Format,
		EncoderConfig:     encoderConfig,
		OutputPaths:       c.OutputPaths,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !c.EnableCaller,
		DisableStacktrace: !c.EnableStacktrace,
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
