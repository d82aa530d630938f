// Package metrics định nghĩa các số liệu Prometheus của hệ thống,
// phục vụ qua GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckInsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_checkins_total",
		Help: "Số lượt check-in theo kết quả (ok, already_parked, facility_full).",
	}, []string{"result"})

	CheckOutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_checkouts_total",
		Help: "Số lượt check-out theo kết quả (ok, not_occupied).",
	}, []string{"result"})

	LPRRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_lpr_requests_total",
		Help: "Số lần gọi nhận diện biển số theo kết quả (ok, no_plate, error).",
	}, []string{"result"})

	OccupiedSlots = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parking_occupied_slots",
		Help: "Số chỗ đỗ đang có xe.",
	})

	AvailableSlots = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parking_available_slots",
		Help: "Số chỗ đỗ còn trống.",
	})
)
