package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phonetica/phonauth"
)

type fakeSource struct {
	snapshot       phonauth.MetricsSnapshot
	auditDropped   uint64
	welcomeDropped uint64
}

func (f fakeSource) MetricsSnapshot() phonauth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.auditDropped }
func (f fakeSource) WelcomeDropped() uint64                    { return f.welcomeDropped }

func emptySnapshot() phonauth.MetricsSnapshot {
	return phonauth.MetricsSnapshot{
		Counters:   map[phonauth.MetricID]uint64{},
		Histograms: map[phonauth.MetricID][]uint64{},
	}
}

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{snapshot: emptySnapshot()})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderDroppedOnlyStillRenders(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{snapshot: emptySnapshot(), welcomeDropped: 3})

	out := exp.Render()
	if !strings.Contains(out, "phonauth_welcome_dropped_total 3") {
		t.Fatalf("expected welcome dropped counter, got:\n%s", out)
	}
}

func TestRenderIncludesCountersAndHistogram(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: phonauth.MetricsSnapshot{
			Counters: map[phonauth.MetricID]uint64{
				phonauth.MetricLoginSuccess:  7,
				phonauth.MetricRateLimitHit:  2,
				phonauth.MetricSignupSuccess: 1,
			},
			Histograms: map[phonauth.MetricID][]uint64{
				phonauth.MetricAuthenticateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		auditDropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"phonauth_login_success_total 7",
		"phonauth_rate_limit_hit_total 2",
		"phonauth_signup_success_total 1",
		"phonauth_logout_total 0",
		"# TYPE phonauth_authenticate_latency_seconds histogram",
		"phonauth_authenticate_latency_seconds_bucket{le=\"0.005\"} 1",
		"phonauth_authenticate_latency_seconds_bucket{le=\"0.025\"} 6",
		"phonauth_authenticate_latency_seconds_bucket{le=\"+Inf\"} 36",
		"phonauth_authenticate_latency_seconds_count 36",
		"phonauth_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	src := fakeSource{snapshot: phonauth.MetricsSnapshot{
		Counters:   map[phonauth.MetricID]uint64{phonauth.MetricRefreshSuccess: 4, phonauth.MetricLogout: 1},
		Histograms: map[phonauth.MetricID][]uint64{},
	}}
	exp := NewExporterFromSource(src)
	if exp.Render() != exp.Render() {
		t.Fatal("render output changed between calls")
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: phonauth.MetricsSnapshot{
			Counters:   map[phonauth.MetricID]uint64{phonauth.MetricLoginSuccess: 1},
			Histograms: map[phonauth.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestNilExporterRendersNothing(t *testing.T) {
	var exp *Exporter
	if exp.Render() != "" {
		t.Fatal("nil exporter rendered output")
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: phonauth.MetricsSnapshot{
			Counters: map[phonauth.MetricID]uint64{
				phonauth.MetricLoginSuccess:    1000,
				phonauth.MetricLoginFailure:    40,
				phonauth.MetricRefreshSuccess:  800,
				phonauth.MetricRefreshFailure:  10,
				phonauth.MetricSessionUpserted: 800,
			},
			Histograms: map[phonauth.MetricID][]uint64{
				phonauth.MetricAuthenticateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
