// Package prometheus renders authgate counters in Prometheus text
// exposition format without pulling in a client library.
package prometheus

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/seralith/authgate"
)

const namespace = "authgate_"

type metricsSource interface {
	MetricsSnapshot() authgate.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter reads counters from an engine and serves them over HTTP.
type Exporter struct {
	source metricsSource
}

// NewExporter creates an Exporter bound to the engine.
func NewExporter(engine *authgate.Engine) *Exporter {
	return &Exporter{source: engine}
}

// NewExporterFromSource creates an Exporter over any snapshot source.
func NewExporterFromSource(source metricsSource) *Exporter {
	return &Exporter{source: source}
}

// Handler returns the scrape endpoint.
func (e *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(e.Render()))
	})
}

// Render produces the current counters, one TYPE line and one sample per
// counter, in stable name order.
func (e *Exporter) Render() string {
	if e == nil || e.source == nil {
		return ""
	}

	snapshot := e.source.MetricsSnapshot()

	ids := make([]authgate.MetricID, 0, len(snapshot.Counters))
	for id := range snapshot.Counters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Name() < ids[j].Name() })

	var b strings.Builder
	b.Grow(4096)
	for _, id := range ids {
		writeCounter(&b, namespace+id.Name()+"_total", snapshot.Counters[id])
	}
	writeCounter(&b, namespace+"audit_dropped_total", e.source.AuditDropped())
	return b.String()
}

func writeCounter(b *strings.Builder, name string, value uint64) {
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteString(" counter\n")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}
