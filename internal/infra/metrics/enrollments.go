package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		enrollmentsTotal,
		enrollmentsExpiredSweep,
		accessChecksTotal,
		deviceRegistrationsTotal,
	)
}

var (
	enrollmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrollments_total",
			Help: "Enrollments by event (created/renewed/cancelled/expired).",
		},
		[]string{"event", "type"},
	)

	enrollmentsExpiredSweep = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "enrollments_expired_sweep_total",
			Help: "Enrollments transitioned to expired by the background sweep.",
		},
	)

	accessChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_checks_total",
			Help: "Access validation outcomes (granted/denied).",
		},
		[]string{"outcome"},
	)

	deviceRegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "device_registrations_total",
			Help: "Device add attempts by outcome (added/limit_exceeded/removed).",
		},
		[]string{"outcome"},
	)
)

func IncEnrollment(event, enrollmentType string) {
	enrollmentsTotal.WithLabelValues(norm(event), norm(enrollmentType)).Inc()
}

func AddExpiredSweep(n int) {
	enrollmentsExpiredSweep.Add(float64(n))
}

func IncAccessCheck(outcome string) {
	accessChecksTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncDeviceRegistration(outcome string) {
	deviceRegistrationsTotal.WithLabelValues(norm(outcome)).Inc()
}
