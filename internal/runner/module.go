package runner

import (
	"context"

	"go.uber.org/fx"

	"trade_guard/internal/exchange"
	"trade_guard/internal/modules/config"
	"trade_guard/internal/modules/okx_client/service"
	"trade_guard/internal/notify"
	"trade_guard/pkg/logger"
)

// NewGateway: live - OKX напрямую, paper - симуляция поверх публичных свечей OKX.
func NewGateway(cfg *config.Config, okx *service.Client) exchange.Gateway {
	if cfg.Trading.Mode == config.ModePaper {
		logger.Info("[loop] paper mode, start balance %.2f %s", cfg.Trading.PaperBalance, cfg.Trading.QuoteCcy)
		return exchange.NewPaperGateway(okx, cfg.Trading.QuoteCcy, cfg.Trading.PaperBalance)
	}
	return okx
}

// RegisterCommands вешает /status и /close, если нотифайер умеет принимать команды.
func RegisterCommands(e *Engine, n notify.Notifier) {
	c, ok := n.(notify.Commander)
	if !ok {
		return
	}
	c.Handle("status", func(context.Context, string) string { return e.StatusText() })
	c.Handle("close", func(context.Context, string) string { return e.RequestClose() })
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			NewGateway,
			NewEngine,
		),
		fx.Invoke(RegisterCommands),
		fx.Invoke(func(lc fx.Lifecycle, appCtx context.Context, e *Engine) {
			ctx, cancel := context.WithCancel(appCtx)
			done := make(chan struct{})

			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						defer close(done)
						if err := e.Run(ctx); err != nil {
							logger.Error("[loop] engine stopped: %v", err)
						}
					}()
					return nil
				},
				OnStop: func(stopCtx context.Context) error {
					cancel()
					select {
					case <-done:
					case <-stopCtx.Done():
					}
					return nil
				},
			})
		}),
	)
}
