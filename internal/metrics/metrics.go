package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Metric names recorded by the chat and registration services
const (
	MessagesSent        = "messages_sent_total"
	MessagesFailed      = "messages_failed_total"
	SendsRejected       = "sends_rejected_total"
	Uploads             = "uploads_total"
	UploadsFailed       = "uploads_failed_total"
	PagesLoaded         = "history_pages_loaded_total"
	Registrations       = "registrations_total"
	PushRoutes          = "push_routes_total"
	SendLatency         = "message_send_duration"
	UploadLatency       = "attachment_upload_duration"
	RegistrationLatency = "device_registration_duration"
	HTTPRequests        = "diagnostics_requests_total"
	HTTPRequestLatency  = "diagnostics_request_duration"
)

type MetricType string

const (
	Counter MetricType = "counter"
	Gauge   MetricType = "gauge"
)

// Metric represents a single counter or gauge
type Metric struct {
	Name       string            `json:"name"`
	Type       MetricType        `json:"type"`
	Value      float64           `json:"value"`
	Labels     map[string]string `json:"labels,omitempty"`
	LastUpdate time.Time         `json:"last_update"`
}

// TimerMetric stores timing information in milliseconds
type TimerMetric struct {
	Count   int64   `json:"count"`
	Sum     float64 `json:"sum_ms"`
	Min     float64 `json:"min_ms"`
	Max     float64 `json:"max_ms"`
	Average float64 `json:"avg_ms"`
	P95     float64 `json:"p95_ms,omitempty"`
	samples []float64
}

// Snapshot is a point-in-time copy of every metric
type Snapshot struct {
	Counters map[string]Metric      `json:"counters"`
	Gauges   map[string]Metric      `json:"gauges"`
	Timers   map[string]TimerMetric `json:"timers"`
	UptimeMs int64                  `json:"uptime_ms"`
}

const maxTimerSamples = 500

// Registry keeps metrics in memory. It is created once at start-up and
// passed to the services that record into it.
type Registry struct {
	mu        sync.RWMutex
	counters  map[string]*Metric
	gauges    map[string]*Metric
	timers    map[string]*TimerMetric
	startTime time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		counters:  make(map[string]*Metric),
		gauges:    make(map[string]*Metric),
		timers:    make(map[string]*TimerMetric),
		startTime: time.Now(),
	}
}

// IncrementCounter increments a counter metric. Safe on a nil registry.
func (r *Registry) IncrementCounter(name string, labels map[string]string) {
	r.AddToCounter(name, 1, labels)
}

func (r *Registry) AddToCounter(name string, value float64, labels map[string]string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := metricKey(name, labels)
	if c, ok := r.counters[key]; ok {
		c.Value += value
		c.LastUpdate = time.Now()
		return
	}
	r.counters[key] = &Metric{
		Name:       name,
		Type:       Counter,
		Value:      value,
		Labels:     copyLabels(labels),
		LastUpdate: time.Now(),
	}
}

func (r *Registry) SetGauge(name string, value float64, labels map[string]string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gauges[metricKey(name, labels)] = &Metric{
		Name:       name,
		Type:       Gauge,
		Value:      value,
		Labels:     copyLabels(labels),
		LastUpdate: time.Now(),
	}
}

func (r *Registry) RecordTimer(name string, d time.Duration, labels map[string]string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ms := float64(d.Nanoseconds()) / 1e6
	key := metricKey(name, labels)
	t, ok := r.timers[key]
	if !ok {
		t = &TimerMetric{Min: ms}
		r.timers[key] = t
	}
	t.Count++
	t.Sum += ms
	t.Average = t.Sum / float64(t.Count)
	if ms < t.Min {
		t.Min = ms
	}
	if ms > t.Max {
		t.Max = ms
	}
	t.samples = append(t.samples, ms)
	if len(t.samples) > maxTimerSamples {
		t.samples = t.samples[len(t.samples)-maxTimerSamples:]
	}
	if len(t.samples) >= 10 {
		t.P95 = percentile(t.samples, 0.95)
	}
}

// CounterValue returns the current value of a counter, zero if unset.
func (r *Registry) CounterValue(name string, labels map[string]string) float64 {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.counters[metricKey(name, labels)]; ok {
		return c.Value
	}
	return 0
}

func (r *Registry) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Snapshot{
		Counters: make(map[string]Metric, len(r.counters)),
		Gauges:   make(map[string]Metric, len(r.gauges)),
		Timers:   make(map[string]TimerMetric, len(r.timers)),
		UptimeMs: time.Since(r.startTime).Milliseconds(),
	}
	for k, v := range r.counters {
		s.Counters[k] = *v
	}
	for k, v := range r.gauges {
		s.Gauges[k] = *v
	}
	for k, v := range r.timers {
		cp := *v
		cp.samples = nil
		s.Timers[k] = cp
	}
	return s
}

// metricKey renders name{k=v,...} with labels sorted so keys are stable.
func metricKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

func percentile(samples []float64, p float64) float64 {
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func copyLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}
