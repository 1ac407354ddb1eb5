package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"trade_guard/pkg/logger"
)

// Telegram - события в один чат плюс команды оператора из этого же чата.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64

	mu       sync.RWMutex
	commands map[string]CommandFunc
	stop     context.CancelFunc
	done     chan struct{}
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{
		bot:      b,
		chatID:   chatID,
		commands: make(map[string]CommandFunc),
	}, nil
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, msg)); err != nil {
		logger.Warn("[notify] telegram send: %v", err)
	}
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

func (t *Telegram) Handle(command string, fn CommandFunc) {
	t.mu.Lock()
	t.commands[strings.TrimPrefix(command, "/")] = fn
	t.mu.Unlock()
}

func (t *Telegram) command(name string) (CommandFunc, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn, ok := t.commands[name]
	return fn, ok
}

// Start: long-polling сообщений. Команды принимаются только из нашего чата.
func (t *Telegram) Start(ctx context.Context) {
	if t == nil || t.bot == nil {
		return
	}
	ctx, t.stop = context.WithCancel(ctx)
	t.done = make(chan struct{})

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}
	updates := t.bot.GetUpdatesChan(u)

	go func() {
		defer close(t.done)
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				msg := upd.Message
				if msg == nil || msg.Chat == nil || msg.Chat.ID != t.chatID || !msg.IsCommand() {
					continue
				}
				fn, ok := t.command(msg.Command())
				if !ok {
					t.Sendf("Неизвестная команда /%s", msg.Command())
					continue
				}
				t.Send(fn(ctx, msg.CommandArguments()))
			}
		}
	}()
}

func (t *Telegram) Stop() {
	if t == nil || t.stop == nil {
		return
	}
	t.bot.StopReceivingUpdates()
	t.stop()
	<-t.done
}
