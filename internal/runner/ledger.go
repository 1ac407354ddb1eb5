package runner

import (
	"sync"

	"github.com/pkg/errors"

	"trade_guard/internal/models"
)

var (
	ErrPositionOpen = errors.New("position already open")
	ErrNoPosition   = errors.New("no open position")
)

// Ledger - локальный учёт единственной позиции. Пишет только торговый цикл,
// остальные читают через Snapshot.
type Ledger struct {
	mu  sync.RWMutex
	pos models.Position
}

func NewLedger() *Ledger {
	return &Ledger{pos: models.Flat()}
}

// Open записывает позицию после подтверждённого защищённого входа.
func (l *Ledger) Open(p models.Position) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pos.IsOpen {
		return ErrPositionOpen
	}
	if !p.Side.Valid() || !(p.Quantity > 0) {
		return errors.Errorf("bad position: side=%q qty=%v", p.Side, p.Quantity)
	}
	p.IsOpen = true
	p.CurrentPnl = 0
	l.pos = p
	return nil
}

func (l *Ledger) UpdatePnL(pnl float64) {
	l.mu.Lock()
	if l.pos.IsOpen {
		l.pos.CurrentPnl = pnl
	}
	l.mu.Unlock()
}

func (l *Ledger) SetTrailing(v bool) {
	l.mu.Lock()
	if l.pos.IsOpen {
		l.pos.TrailingActive = v
	}
	l.mu.Unlock()
}

// Close переводит учёт во flat и возвращает закрытую позицию.
func (l *Ledger) Close() (models.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.pos.IsOpen {
		return models.Position{}, ErrNoPosition
	}
	closed := l.pos
	l.pos = models.Flat()
	return closed, nil
}

func (l *Ledger) Snapshot() models.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pos
}

func (l *Ledger) IsOpen() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pos.IsOpen
}
