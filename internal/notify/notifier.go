package notify

import (
	"context"
	"fmt"

	"trade_guard/pkg/logger"
)

// Notifier - доставка событий оператору (вход, отказ, закрытие).
type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// CommandFunc отвечает текстом на команду оператора.
type CommandFunc func(ctx context.Context, args string) string

// Commander - нотифайер, который умеет принимать команды (/status, /close).
type Commander interface {
	Handle(command string, fn CommandFunc)
}

// Log - нотифайер без внешнего канала, всё уходит в лог.
type Log struct{}

func NewLog() *Log { return &Log{} }

func (Log) Send(msg string) { logger.Info("[notify] %s", msg) }

func (l Log) Sendf(format string, args ...any) { l.Send(fmt.Sprintf(format, args...)) }
