package main

import (
	"context"

	"go.uber.org/fx"

	"trade_guard/internal/modules/bootstrap"
	"trade_guard/internal/modules/config"
	"trade_guard/internal/modules/health"
	"trade_guard/internal/modules/okx_client"
	telegram "trade_guard/internal/modules/telegram_bot"
	"trade_guard/internal/runner"
)

func main() {
	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		bootstrap.Module(),
		health.Module(),
		okx_client.Module(),
		telegram.Module(),
		runner.Module(),
	)
	app.Run()
}
