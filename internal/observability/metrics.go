package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	voucherEvents   *prometheus.CounterVec
	attachmentsHeld prometheus.Gauge
	reportBuilds    *prometheus.CounterVec
}

// NewMetrics menginisialisasi registry dan metrik dasar.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	vouchers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_voucher_events_total",
		Help: "Voucher lifecycle outcomes by kind and event.",
	}, []string{"kind", "event"})
	held := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_attachment_handles_held",
		Help: "Attachment handles currently owned by composition sessions.",
	})
	reports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_report_builds_total",
		Help: "Trial balance builds by cache outcome.",
	}, []string{"outcome"})
	registry.MustRegister(requests, duration, vouchers, held, reports)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		voucherEvents:   vouchers,
		attachmentsHeld: held,
		reportBuilds:    reports,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// VoucherEvent mencatat hasil siklus hidup voucher (created, posted, conflict, deleted, invalidate_failed).
func (m *Metrics) VoucherEvent(kind, event string) {
	if m == nil {
		return
	}
	m.voucherEvents.WithLabelValues(kind, event).Inc()
}

// AttachmentsHeld menyesuaikan gauge handle lampiran yang masih dipegang sesi.
func (m *Metrics) AttachmentsHeld(delta int) {
	if m == nil || delta == 0 {
		return
	}
	m.attachmentsHeld.Add(float64(delta))
}

// ReportBuild mencatat apakah neraca saldo diambil dari cache atau dibangun ulang.
func (m *Metrics) ReportBuild(outcome string) {
	if m == nil {
		return
	}
	m.reportBuilds.WithLabelValues(outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
