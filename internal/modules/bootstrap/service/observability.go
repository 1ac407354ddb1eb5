package service

import (
	"trade_guard/internal/modules/config"
	"trade_guard/pkg/logger"
	"trade_guard/pkg/tracing"
)

// InitObservability поднимает логгер и трейсер по конфигу. Возвращает функцию остановки.
func InitObservability(cfg *config.Config) (func(), error) {
	logger.SetServiceName(cfg.Service.Name)
	tracing.SetServiceName(cfg.Service.Name)

	if err := logger.Init(logger.Config{Level: cfg.Log.Level, File: cfg.Log.File}); err != nil {
		return nil, err
	}

	_, closeTracer, err := tracing.InitTracer(tracing.Config{
		Enabled: cfg.Tracing.Enabled,
		Host:    cfg.Tracing.Host,
		Port:    cfg.Tracing.Port,
	})
	if err != nil {
		// без трейсинга торговать можно
		logger.Warn("[BOOT] tracer init failed: %v", err)
		closeTracer = func() {}
	}

	logger.Info("[BOOT] config:\n%s", cfg.Redacted())
	return func() {
		closeTracer()
		logger.Sync()
	}, nil
}
