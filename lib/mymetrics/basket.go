package mymetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BasketMetrics counts basket lifecycle activity. A nil *BasketMetrics is valid and records nothing.
type BasketMetrics struct {
	steps       *prometheus.CounterVec
	failures    *prometheus.CounterVec
	orders      *prometheus.CounterVec
	orderAmount prometheus.Histogram
}

func NewBasketMetrics(reg prometheus.Registerer) *BasketMetrics {
	if reg == nil {
		return &BasketMetrics{}
	}
	steps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "basket_steps_total",
		Help: "Checkout steps recorded per step key.",
	}, []string{"step"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "basket_operation_failures_total",
		Help: "Basket operations that ended in an error.",
	}, []string{"operation"})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "basket_orders_created_total",
		Help: "Orders created from baskets per delivery gateway.",
	}, []string{"gateway"})
	orderAmount := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "basket_order_total_price",
		Help:    "Total price of created orders including surcharges.",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000},
	})
	reg.MustRegister(steps, failures, orders, orderAmount)
	return &BasketMetrics{
		steps:       steps,
		failures:    failures,
		orders:      orders,
		orderAmount: orderAmount,
	}
}

func (m *BasketMetrics) IncStep(step string) {
	if m == nil || m.steps == nil {
		return
	}
	m.steps.WithLabelValues(normalizeLabel(step)).Inc()
}

func (m *BasketMetrics) IncFailure(operation string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(operation)).Inc()
}

func (m *BasketMetrics) ObserveOrder(gateway string, totalPrice float64) {
	if m == nil || m.orders == nil {
		return
	}
	m.orders.WithLabelValues(normalizeLabel(gateway)).Inc()
	m.orderAmount.Observe(totalPrice)
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
