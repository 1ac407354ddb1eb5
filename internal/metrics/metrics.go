// Package metrics - Prometheus-инструменты торгового движка.
//
//   - trade_guard_breaker_open{breaker}         1 пока breaker открыт
//   - trade_guard_breaker_failures{breaker}     текущий счётчик подряд идущих ошибок
//   - trade_guard_protect_results_total{stage}  исходы защищённого входа (tp|sl|entry|invalid|done)
//   - trade_guard_cleanup_total{result}         best-effort cancel-all (ok|error|unsupported)
//   - trade_guard_signals_total{side}           решения стратегии на тик
//   - trade_guard_position_open                 1 если позиция открыта
//   - trade_guard_position_pnl                  текущий нереализованный PnL
//   - trade_guard_balance                       последний известный баланс
//   - trade_guard_trades_total{result}          закрытые сделки (win|loss)
//
// Регистрируются в init() и отдаются health-модулем на /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	BreakerOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trade_guard_breaker_open",
			Help: "Circuit breaker open flag",
		},
		[]string{"breaker"},
	)

	BreakerFailures = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trade_guard_breaker_failures",
			Help: "Consecutive failures counted by the breaker",
		},
		[]string{"breaker"},
	)

	ProtectResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trade_guard_protect_results_total",
			Help: "Protected entry outcomes by the stage reached",
		},
		[]string{"stage"},
	)

	Cleanups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trade_guard_cleanup_total",
			Help: "Best-effort cancel-all attempts",
		},
		[]string{"result"},
	)

	Signals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trade_guard_signals_total",
			Help: "Signal decisions per tick",
		},
		[]string{"side"},
	)

	PositionOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trade_guard_position_open",
			Help: "1 while a position is open",
		},
	)

	PositionPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trade_guard_position_pnl",
			Help: "Unrealized PnL of the open position",
		},
	)

	Balance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trade_guard_balance",
			Help: "Last known quote balance",
		},
	)

	Trades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trade_guard_trades_total",
			Help: "Closed trades by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		BreakerOpen,
		BreakerFailures,
		ProtectResults,
		Cleanups,
		Signals,
		PositionOpen,
		PositionPnL,
		Balance,
		Trades,
	)
}

func Bool(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
