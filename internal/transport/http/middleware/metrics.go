package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/baechuer/totp-auth/internal/domain"
)

const metricsNamespace = "totp_auth"

// HTTP RED metrics, labelled by chi route pattern.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency. bcrypt dominates the login and register routes.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "route"})

	inFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "HTTP requests currently being served.",
	})
)

// Auth flow metrics.
var (
	loginOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "login_attempts_total",
		Help:      "Password logins by outcome: authenticated, challenged, or the failure code.",
	}, []string{"outcome"})

	secondFactorOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "twofactor_verify_total",
		Help:      "TOTP verifications by result: verified, rejected, error.",
	}, []string{"result"})

	gateDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "access_denied_total",
		Help:      "Requests refused by the access gate, by error code.",
	}, []string{"code"})

	rateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the fixed-window limiter, by route key.",
	}, []string{"route"})
)

const (
	LoginAuthenticated = "authenticated"
	LoginChallenged    = "challenged"

	VerifyAccepted = "verified"
	VerifyRejected = "rejected"
	VerifyErrored  = "error"
)

// ObserveLogin counts one login. Failures are labelled with their domain
// code so invalid passwords and unknown accounts stay separable.
func ObserveLogin(outcome string, err error) {
	if err != nil {
		outcome = failureLabel(err)
	}
	loginOutcomes.WithLabelValues(outcome).Inc()
}

func ObserveSecondFactor(result string) {
	secondFactorOutcomes.WithLabelValues(result).Inc()
}

func observeDenial(err error) {
	gateDenials.WithLabelValues(failureLabel(err)).Inc()
}

// failureLabel keeps the label set closed: only known domain codes pass.
func failureLabel(err error) string {
	switch code := domain.CodeOf(err); code {
	case domain.CodeInvalidCredentials, domain.CodeUserNotFound,
		domain.CodeTokenMissing, domain.CodeTokenInvalid, domain.CodeTokenExpired,
		domain.CodeSecondFactorRequired, domain.CodeStoreUnavailable, domain.CodeRenderFailed:
		return code
	default:
		return "error"
	}
}

// Metrics records HTTP RED metrics for every request.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inFlight.Inc()
		defer inFlight.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := routePattern(r)
		requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		requestLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// routePattern is read after the handler ran, once chi has resolved the
// route. Unmatched paths collapse into one label.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusRecorder) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
