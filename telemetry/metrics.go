// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	ChatMessages   *prometheus.CounterVec // by platform
	KeywordMatches *prometheus.CounterVec // by platform
	EventsSent     *prometheus.CounterVec // by event type
	EventsDropped  *prometheus.CounterVec // by event type
	PlatformStarts *prometheus.CounterVec // by platform, result

	// Gauges
	PlatformConnected *prometheus.GaugeVec // 1=confirmed,0=otherwise
	ObserverConnected prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		ChatMessages = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chat_messages_total", Help: "Chat messages received from upstream platforms"}, []string{"platform"})
		KeywordMatches = promauto.NewCounterVec(prometheus.CounterOpts{Name: "keyword_matches_total", Help: "First-time keyword matches forwarded to the observer"}, []string{"platform"})
		EventsSent = promauto.NewCounterVec(prometheus.CounterOpts{Name: "observer_events_sent_total", Help: "Events queued to the observer link"}, []string{"type"})
		EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{Name: "observer_events_dropped_total", Help: "Events dropped because no observer was connected or it fell behind"}, []string{"type"})
		PlatformStarts = promauto.NewCounterVec(prometheus.CounterOpts{Name: "platform_starts_total", Help: "Platform start requests by outcome"}, []string{"platform", "result"})
		PlatformConnected = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "platform_connected", Help: "Confirmed upstream connection per platform, 1=connected 0=not"}, []string{"platform"})
		ObserverConnected = promauto.NewGauge(prometheus.GaugeOpts{Name: "observer_connected", Help: "Observer link open=1 closed=0"})
	})
}

// CountChat records one inbound chat message.
func CountChat(platform string) {
	if ChatMessages != nil {
		ChatMessages.WithLabelValues(platform).Inc()
	}
}

// CountMatch records one forwarded keyword match.
func CountMatch(platform string) {
	if KeywordMatches != nil {
		KeywordMatches.WithLabelValues(platform).Inc()
	}
}

// CountEvent records an event handed to the observer link, or dropped when sent is false.
func CountEvent(eventType string, sent bool) {
	vec := EventsDropped
	if sent {
		vec = EventsSent
	}
	if vec != nil {
		vec.WithLabelValues(eventType).Inc()
	}
}

// CountStart records the outcome of a platform start ("ok" or "failed").
func CountStart(platform, result string) {
	if PlatformStarts != nil {
		PlatformStarts.WithLabelValues(platform, result).Inc()
	}
}

// SetPlatformConnected sets the per-platform connection gauge.
func SetPlatformConnected(platform string, connected bool) {
	if PlatformConnected == nil {
		return
	}
	v := 0.0
	if connected {
		v = 1
	}
	PlatformConnected.WithLabelValues(platform).Set(v)
}

// SetObserverConnected sets gauge to 1 if an observer link is open else 0.
func SetObserverConnected(open bool) {
	if ObserverConnected == nil {
		return
	}
	if open {
		ObserverConnected.Set(1)
	} else {
		ObserverConnected.Set(0)
	}
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
