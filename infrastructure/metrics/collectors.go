// Package metrics exposes prometheus collectors for requests, capability
// calls and remote messages.
package metrics

import (
	stdErrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reglet-dev/luabridge/domain/entities"
	"github.com/reglet-dev/luabridge/domain/errors"
	"github.com/reglet-dev/luabridge/hostfuncs"
)

// Collectors groups every metric the bridge records.
type Collectors struct {
	gatherer prometheus.Gatherer

	requests       *prometheus.CounterVec
	requestTime    prometheus.Histogram
	responseBytes  prometheus.Counter
	resumes        prometheus.Counter
	activeRequests *prometheus.GaugeVec

	capabilityCalls *prometheus.CounterVec
	capabilityTime  *prometheus.HistogramVec

	messages      *prometheus.CounterVec
	messageBytes  prometheus.Counter
	adminRequests *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// Passing nil uses a fresh private registry.
func New(reg *prometheus.Registry) (*Collectors, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	c := &Collectors{
		gatherer: reg,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "luabridge_requests_total", Help: "completed requests by status class"},
			[]string{"class"},
		),
		requestTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "luabridge_request_duration_seconds",
			Help:    "time from accept to terminal state",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		responseBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "luabridge_response_body_bytes_total",
			Help: "body bytes written to clients",
		}),
		resumes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "luabridge_request_resumes_total",
			Help: "times a suspended request was re-entered",
		}),
		activeRequests: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "luabridge_active_requests", Help: "requests currently held by a slot"},
			[]string{"slot"},
		),
		capabilityCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "luabridge_capability_calls_total", Help: "script calls into the uwsgi table"},
			[]string{"function", "result"},
		),
		capabilityTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "luabridge_capability_duration_seconds",
			Help:    "time spent inside host functions",
			Buckets: prometheus.DefBuckets,
		}, []string{"function"}),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "luabridge_messages_total", Help: "remote messages by outcome"},
			[]string{"result"},
		),
		messageBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "luabridge_message_received_bytes_total",
			Help: "bytes received from remote peers",
		}),
		adminRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "luabridge_admin_requests_total", Help: "admin http requests by code and path"},
			[]string{"code", "path"},
		),
	}

	for _, col := range []prometheus.Collector{
		c.requests, c.requestTime, c.responseBytes, c.resumes, c.activeRequests,
		c.capabilityCalls, c.capabilityTime, c.messages, c.messageBytes, c.adminRequests,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Handler returns the /metrics handler for the collectors' registry.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry.
func (c *Collectors) Gatherer() prometheus.Gatherer {
	return c.gatherer
}

// LogRequest implements ports.AccessLogger so the collectors can sit next to the access log.
func (c *Collectors) LogRequest(rec entities.AccessRecord) {
	c.requests.WithLabelValues(statusClass(rec)).Inc()
	c.requestTime.Observe(rec.Duration().Seconds())
	c.responseBytes.Add(float64(rec.ResponseSize))
	c.resumes.Add(float64(rec.Resumes))
}

// RequestStarted marks a request as held by slot.
func (c *Collectors) RequestStarted(slot int) {
	c.activeRequests.WithLabelValues(strconv.Itoa(slot)).Inc()
}

// RequestFinished releases a request counted by RequestStarted.
func (c *Collectors) RequestFinished(slot int) {
	c.activeRequests.WithLabelValues(strconv.Itoa(slot)).Dec()
}

// ObserveMessage implements hostfuncs.MessageObserver.
func (c *Collectors) ObserveMessage(_ string, received int, err error) {
	c.messages.WithLabelValues(messageResult(err)).Inc()
	c.messageBytes.Add(float64(received))
}

// CapabilityMiddleware counts and times every host function call.
func (c *Collectors) CapabilityMiddleware() hostfuncs.Middleware {
	return func(next hostfuncs.Handler) hostfuncs.Handler {
		return func(ctx hostfuncs.HostContext, args hostfuncs.Args) (hostfuncs.Results, error) {
			start := hostfuncs.CallStart(ctx)
			res, err := next(ctx, args)
			result := "ok"
			if err != nil {
				result = "error"
			}
			name := ctx.FunctionName()
			c.capabilityCalls.WithLabelValues(name, result).Inc()
			c.capabilityTime.WithLabelValues(name).Observe(time.Since(start).Seconds())
			return res, err
		}
	}
}

func statusClass(rec entities.AccessRecord) string {
	switch {
	case rec.Error != nil:
		return "error"
	case rec.Status == entities.StatusUnset:
		return "raw"
	case rec.Status >= 100 && rec.Status < 600:
		return strconv.Itoa(rec.Status/100) + "xx"
	default:
		return "other"
	}
}

func messageResult(err error) string {
	if err == nil {
		return "ok"
	}
	var (
		timeoutErr *errors.TimeoutError
		netErr     *errors.NetworkError
		sendErr    *errors.SendError
		readErr    *errors.ReadError
		frameErr   *errors.FrameError
	)
	switch {
	case stdErrors.As(err, &timeoutErr):
		return "timeout"
	case stdErrors.As(err, &netErr):
		return "dial"
	case stdErrors.As(err, &sendErr):
		return "send"
	case stdErrors.As(err, &readErr):
		return "read"
	case stdErrors.As(err, &frameErr):
		return "frame"
	default:
		return "other"
	}
}
