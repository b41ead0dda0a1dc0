package prometheus

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/seralith/authgate"
)

type fakeSource struct {
	snapshot authgate.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() authgate.MetricsSnapshot { return f.snapshot }
func (f *fakeSource) AuditDropped() uint64                      { return f.dropped }

func TestRender(t *testing.T) {
	source := &fakeSource{
		snapshot: authgate.MetricsSnapshot{Counters: map[authgate.MetricID]uint64{
			authgate.MetricSignInSuccess: 7,
			authgate.MetricSignInFailure: 3,
		}},
		dropped: 2,
	}

	out := NewExporterFromSource(source).Render()

	for _, want := range []string{
		"# TYPE authgate_signin_success_total counter\nauthgate_signin_success_total 7\n",
		"# TYPE authgate_signin_failure_total counter\nauthgate_signin_failure_total 3\n",
		"authgate_audit_dropped_total 2\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("render missing %q:\n%s", want, out)
		}
	}

	// Stable order across renders.
	if again := NewExporterFromSource(source).Render(); again != out {
		t.Fatal("render output is not deterministic")
	}
}

func TestHandler(t *testing.T) {
	source := &fakeSource{snapshot: authgate.MetricsSnapshot{Counters: map[authgate.MetricID]uint64{}}}
	rec := httptest.NewRecorder()

	NewExporterFromSource(source).Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Fatalf("content type = %q", got)
	}
	if !strings.Contains(rec.Body.String(), "authgate_audit_dropped_total 0") {
		t.Fatalf("body missing dropped counter:\n%s", rec.Body.String())
	}
}

func TestRenderNilExporter(t *testing.T) {
	var e *Exporter
	if e.Render() != "" {
		t.Fatal("nil exporter rendered output")
	}
}
