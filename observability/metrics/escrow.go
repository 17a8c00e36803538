package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type EscrowMetrics struct {
	instructions *prometheus.CounterVec
	settledValue prometheus.Counter
	refundValue  prometheus.Counter
	feeValue     prometheus.Counter
}

var (
	escrowOnce     sync.Once
	escrowRegistry *EscrowMetrics
)

func Escrow() *EscrowMetrics {
	escrowOnce.Do(func() {
		escrowRegistry = &EscrowMetrics{
			instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "escrow_instructions_total",
				Help: "Count of processed instructions by type and outcome.",
			}, []string{"instruction", "outcome"}),
			settledValue: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "escrow_settled_value_total",
				Help: "Cumulative value paid out to payees.",
			}),
			refundValue: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "escrow_refunded_value_total",
				Help: "Cumulative value returned to payers on cancellation.",
			}),
			feeValue: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "escrow_fee_value_total",
				Help: "Cumulative fees collected on settlement.",
			}),
		}
		prometheus.MustRegister(
			escrowRegistry.instructions,
			escrowRegistry.settledValue,
			escrowRegistry.refundValue,
			escrowRegistry.feeValue,
		)
	})
	return escrowRegistry
}

// ObserveInstruction records one processed instruction and its outcome.
func (m *EscrowMetrics) ObserveInstruction(instruction, outcome string) {
	if m == nil {
		return
	}
	m.instructions.WithLabelValues(instruction, outcome).Inc()
}

// ObserveSettlement records the value split of a completed settlement.
func (m *EscrowMetrics) ObserveSettlement(payout, fee uint64) {
	if m == nil {
		return
	}
	m.settledValue.Add(float64(payout))
	if fee > 0 {
		m.feeValue.Add(float64(fee))
	}
}

// ObserveRefund records the value returned by a cancellation.
func (m *EscrowMetrics) ObserveRefund(amount uint64) {
	if m == nil {
		return
	}
	m.refundValue.Add(float64(amount))
}
