package threatguard

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MetricsCollector is the observability seam. The engine increments
// detection and recording counters and keeps gauges for store sizes; hosts
// may plug in their own collector.
type MetricsCollector interface {
	IncrementCounter(name string, labels map[string]string)
	SetGauge(name string, value float64, labels map[string]string)
}

// InMemoryMetrics is the default MetricsCollector with Prometheus text
// export.
type InMemoryMetrics struct {
	mu       sync.RWMutex
	counters map[string]map[string]int64
	gauges   map[string]map[string]float64
}

func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		counters: make(map[string]map[string]int64),
		gauges:   make(map[string]map[string]float64),
	}
}

func (m *InMemoryMetrics) IncrementCounter(name string, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters[name] == nil {
		m.counters[name] = make(map[string]int64)
	}
	m.counters[name][labelKey(labels)]++
}

func (m *InMemoryMetrics) SetGauge(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gauges[name] == nil {
		m.gauges[name] = make(map[string]float64)
	}
	m.gauges[name][labelKey(labels)] = value
}

// CounterValue returns the current counter value for the given labels.
func (m *InMemoryMetrics) CounterValue(name string, labels map[string]string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if series, ok := m.counters[name]; ok {
		return series[labelKey(labels)]
	}
	return 0
}

func labelKey(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, labels[k]))
	}
	return strings.Join(parts, ",")
}

// ExportPrometheus renders all series in Prometheus text format.
func (m *InMemoryMetrics) ExportPrometheus() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out strings.Builder
	for _, name := range sortedKeys(m.counters) {
		out.WriteString(fmt.Sprintf("# TYPE %s counter\n", name))
		series := m.counters[name]
		for _, lk := range sortedKeys(series) {
			if lk == "" {
				out.WriteString(fmt.Sprintf("%s %d\n", name, series[lk]))
			} else {
				out.WriteString(fmt.Sprintf("%s{%s} %d\n", name, lk, series[lk]))
			}
		}
	}
	for _, name := range sortedKeys(m.gauges) {
		out.WriteString(fmt.Sprintf("# TYPE %s gauge\n", name))
		series := m.gauges[name]
		for _, lk := range sortedKeys(series) {
			if lk == "" {
				out.WriteString(fmt.Sprintf("%s %g\n", name, series[lk]))
			} else {
				out.WriteString(fmt.Sprintf("%s{%s} %g\n", name, lk, series[lk]))
			}
		}
	}
	return out.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
