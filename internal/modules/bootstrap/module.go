package bootstrap

import (
	"context"

	"go.uber.org/fx"

	"trade_guard/internal/exchange"
	bootstrap "trade_guard/internal/modules/bootstrap/service"
	"trade_guard/internal/modules/config"
	"trade_guard/internal/notify"
	"trade_guard/pkg/logger"
)

// Module должен идти первым после config: логгер и трейсер нужны остальным.
func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) error {
			stop, err := bootstrap.InitObservability(cfg)
			if err != nil {
				return err
			}
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					stop()
					return nil
				},
			})
			return nil
		}),
		fx.Invoke(func(lc fx.Lifecycle, appCtx context.Context, cfg *config.Config, gw exchange.Gateway, n notify.Notifier) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						t := cfg.Trading
						rep, err := bootstrap.Warmup(appCtx, gw, t.Symbol, t.Timeframe, t.CandleLimit, t.CallTimeout)
						if err != nil {
							logger.Warn("[BOOT] %v", err)
							return
						}
						logger.Info("[BOOT] warmup done: %d candles, last close=%.6f, indicators ready=%v, credentials=%v",
							rep.Candles, rep.Last.Close, rep.Ready, rep.Credentials)
						n.Sendf("🚀 %s запущен [%s] %s %s, свечей: %d", cfg.Service.Name, t.Mode, t.Symbol, t.Timeframe, rep.Candles)
					}()
					return nil
				},
			})
		}),
	)
}
