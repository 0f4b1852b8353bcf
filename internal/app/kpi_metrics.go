package app

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/GoPolymarket/parlay-builder/internal/history"
)

// registerLedgerGauges exposes today's ledger aggregates. They are read at
// scrape time, so nothing needs updating on the attempt path. The returned
// func unregisters exactly the gauges this call registered.
func registerLedgerGauges(reg prometheus.Registerer, ledger *history.Ledger, logger zerolog.Logger) func() {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "parlay_ledger_attempts_today",
			Help: "Generation attempts finished since UTC midnight.",
		}, func() float64 { return float64(ledger.Stats().Attempts) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "parlay_ledger_success_rate_today",
			Help: "Share of today's attempts that produced a parlay.",
		}, func() float64 { return ledger.Stats().SuccessRate() }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "parlay_ledger_recovery_success_rate_today",
			Help: "Share of today's recovery-driven attempts that produced a parlay.",
		}, func() float64 { return ledger.Stats().RecoveryRate() }),
	}
	var registered []prometheus.Collector
	for _, g := range gauges {
		if err := reg.Register(g); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				logger.Warn().Msg("ledger gauges already exported by another app; pass a separate Registerer")
			} else {
				logger.Warn().Err(err).Msg("register ledger gauge")
			}
			continue
		}
		registered = append(registered, g)
	}
	return func() {
		for _, g := range registered {
			reg.Unregister(g)
		}
	}
}
