package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// Kind is the type of a configured metric.
type Kind string

const KindGauge Kind = "GAUGE"

// ParseKind validates a metric type from the metrics document. An empty
// type defaults to GAUGE.
func ParseKind(input string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(input)) {
	case "", string(KindGauge):
		return KindGauge, nil
	default:
		return "", fmt.Errorf("metric type %s not implemented", input)
	}
}

// SchemaMismatchError reports a metric name registered twice with different labels.
type SchemaMismatchError struct {
	Name      string
	Existing  []string
	Requested []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("metric %s already registered with labels [%s], got [%s]",
		e.Name, strings.Join(e.Existing, ","), strings.Join(e.Requested, ","))
}

type gaugeEntry struct {
	vec    *prometheus.GaugeVec
	help   string
	labels []string
}

// Registry owns the exporter's prometheus registry and hands out configured
// gauges by name.
type Registry struct {
	reg    *prometheus.Registry
	logger *zap.Logger

	mu     sync.Mutex
	gauges map[string]*gaugeEntry
}

// NewRegistry creates a registry with the Go runtime and process collectors.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{
		reg:    reg,
		logger: logger,
		gauges: make(map[string]*gaugeEntry),
	}
}

func (r *Registry) Registerer() prometheus.Registerer {
	return r.reg
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Gauge returns the gauge vector registered under name, creating it on first
// use. Requesting an existing name with a different label set fails with a
// *SchemaMismatchError.
func (r *Registry) Gauge(name, help string, labels []string) (*prometheus.GaugeVec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.gauges[name]; ok {
		if !sameLabels(entry.labels, labels) {
			return nil, &SchemaMismatchError{Name: name, Existing: entry.labels, Requested: labels}
		}
		if entry.help != help {
			r.logger.Warn("metric description differs from first registration",
				zap.String("metric", name),
				zap.String("registered", entry.help),
				zap.String("requested", help),
			)
		}
		return entry.vec, nil
	}

	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labels)
	if err := r.reg.Register(vec); err != nil {
		return nil, fmt.Errorf("register metric %s: %w", name, err)
	}
	r.gauges[name] = &gaugeEntry{vec: vec, help: help, labels: append([]string(nil), labels...)}
	return vec, nil
}

// Labels returns the label schema of a registered gauge.
func (r *Registry) Labels(name string) ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.gauges[name]
	if !ok {
		return nil, false
	}
	return append([]string(nil), entry.labels...), true
}

// Names returns the configured gauge names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.gauges))
	for name := range r.gauges {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sameLabels(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
