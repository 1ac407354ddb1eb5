package telegram

import (
	"context"

	"go.uber.org/fx"

	"trade_guard/internal/modules/config"
	"trade_guard/internal/notify"
	"trade_guard/pkg/logger"
)

// NewNotifier: Telegram при заданном токене, иначе всё уходит в лог.
// Недоступный Telegram торговлю не останавливает.
func NewNotifier(cfg *config.Config) notify.Notifier {
	if cfg.Telegram.Token == "" {
		logger.Info("[notify] telegram token not set, notifications go to log")
		return notify.NewLog()
	}
	t, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
	if err != nil {
		logger.Error("[notify] telegram init: %v, falling back to log", err)
		return notify.NewLog()
	}
	return t
}

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			NewNotifier,
		),
		// приём команд оператора через Lifecycle
		fx.Invoke(
			func(lc fx.Lifecycle, appCtx context.Context, n notify.Notifier) {
				t, ok := n.(*notify.Telegram)
				if !ok {
					return
				}
				lc.Append(fx.Hook{
					OnStart: func(context.Context) error {
						t.Start(appCtx)
						return nil
					},
					OnStop: func(context.Context) error {
						t.Stop()
						return nil
					},
				})
			},
		),
	)
}
