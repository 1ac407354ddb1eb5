package okx_client

import (
	"go.uber.org/fx"

	"trade_guard/internal/modules/config"
	"trade_guard/internal/modules/okx_client/service"
)

func NewClient(cfg *config.Config) *service.Client {
	return service.NewClient(service.Config{
		BaseURL:    cfg.OKX.BaseURL,
		APIKey:     cfg.OKX.APIKey,
		APISecret:  cfg.OKX.APISecret,
		Passphrase: cfg.OKX.Passphrase,
		Simulated:  cfg.OKX.Simulated,
		MarginMode: cfg.Trading.MarginMode,
		QuoteCcy:   cfg.Trading.QuoteCcy,
		Timeout:    cfg.OKX.Timeout,
	})
}

// Module - REST-клиент OKX: живой шлюз и источник свечей для paper-режима.
func Module() fx.Option {
	return fx.Module("okx_client",
		fx.Provide(
			NewClient,
		),
	)
}
