package telemetry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitIdempotent(t *testing.T) {
	Init()
	Init()

	if ChatMessages == nil || KeywordMatches == nil || EventsSent == nil || EventsDropped == nil {
		t.Fatal("counters not initialized")
	}
	if PlatformStarts == nil || PlatformConnected == nil || ObserverConnected == nil {
		t.Fatal("start/gauge metrics not initialized")
	}
}

func TestCounters(t *testing.T) {
	Init()

	before := testutil.ToFloat64(KeywordMatches.WithLabelValues("twitch"))
	CountMatch("twitch")
	CountMatch("twitch")
	if got := testutil.ToFloat64(KeywordMatches.WithLabelValues("twitch")); got != before+2 {
		t.Errorf("keyword_matches_total{twitch} = %v, want %v", got, before+2)
	}

	sent := testutil.ToFloat64(EventsSent.WithLabelValues("chat"))
	dropped := testutil.ToFloat64(EventsDropped.WithLabelValues("chat"))
	CountEvent("chat", true)
	CountEvent("chat", false)
	CountEvent("chat", false)
	if got := testutil.ToFloat64(EventsSent.WithLabelValues("chat")); got != sent+1 {
		t.Errorf("sent = %v, want %v", got, sent+1)
	}
	if got := testutil.ToFloat64(EventsDropped.WithLabelValues("chat")); got != dropped+2 {
		t.Errorf("dropped = %v, want %v", got, dropped+2)
	}

	starts := testutil.ToFloat64(PlatformStarts.WithLabelValues("tiktok", "failed"))
	CountStart("tiktok", "failed")
	if got := testutil.ToFloat64(PlatformStarts.WithLabelValues("tiktok", "failed")); got != starts+1 {
		t.Errorf("starts = %v, want %v", got, starts+1)
	}
}

func TestGauges(t *testing.T) {
	Init()

	SetPlatformConnected("tiktok", true)
	if got := testutil.ToFloat64(PlatformConnected.WithLabelValues("tiktok")); got != 1 {
		t.Errorf("platform_connected{tiktok} = %v, want 1", got)
	}
	SetPlatformConnected("tiktok", false)
	if got := testutil.ToFloat64(PlatformConnected.WithLabelValues("tiktok")); got != 0 {
		t.Errorf("platform_connected{tiktok} = %v, want 0", got)
	}

	SetObserverConnected(true)
	if got := testutil.ToFloat64(ObserverConnected); got != 1 {
		t.Errorf("observer_connected = %v, want 1", got)
	}
	SetObserverConnected(false)
	if got := testutil.ToFloat64(ObserverConnected); got != 0 {
		t.Errorf("observer_connected = %v, want 0", got)
	}
}

func TestCorrelation(t *testing.T) {
	ctx := context.Background()
	if got := GetCorrelation(ctx); got != "" {
		t.Errorf("expected empty correlation, got %q", got)
	}
	ctx = WithCorrelation(ctx, "abc")
	if got := GetCorrelation(ctx); got != "abc" {
		t.Errorf("GetCorrelation = %q, want abc", got)
	}
	if LoggerWithCorr(ctx) == nil {
		t.Error("LoggerWithCorr returned nil")
	}
}
