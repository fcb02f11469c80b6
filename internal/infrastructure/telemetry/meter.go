package telemetry

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Attr is one attribute tag on a counter increment.
type Attr struct {
	Key   string
	Value string
}

// String builds an Attr. Counter tags are string-valued.
func String(key, value string) Attr {
	return Attr{Key: key, Value: value}
}

// Counter is a named, monotonically increasing metric. Each unique
// attribute combination tracks its own cumulative value. Safe for
// concurrent callers across overlapping requests.
type Counter struct {
	name        string
	unit        string
	description string
	start       time.Time

	mu     sync.Mutex
	series map[string]*counterSeries
}

type counterSeries struct {
	attrs []Attr
	value int64
}

// Add increments the value for the given attribute combination. Negative
// deltas are ignored: counters never decrease.
func (c *Counter) Add(delta int64, attrs ...Attr) {
	if delta < 0 {
		return
	}
	key := attrKey(attrs)

	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.series[key]
	if !ok {
		s = &counterSeries{attrs: sortedAttrs(attrs)}
		c.series[key] = s
	}
	s.value += delta
}

// Value returns the cumulative value for an attribute combination.
func (c *Counter) Value(attrs ...Attr) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.series[attrKey(attrs)]; ok {
		return s.value
	}
	return 0
}

// attrKey canonicalizes an attribute set so tag order never splits a
// series. Keys are sorted and joined with unit separators.
func attrKey(attrs []Attr) string {
	if len(attrs) == 0 {
		return ""
	}
	sorted := sortedAttrs(attrs)
	var b strings.Builder
	for _, a := range sorted {
		b.WriteString(a.Key)
		b.WriteByte(0x1f)
		b.WriteString(a.Value)
		b.WriteByte(0x1e)
	}
	return b.String()
}

func sortedAttrs(attrs []Attr) []Attr {
	out := make([]Attr, len(attrs))
	copy(out, attrs)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// CounterPoint is one data point in a counter snapshot.
type CounterPoint struct {
	Attrs []Attr
	Value int64
	Start time.Time
	Time  time.Time
}

// CounterSnapshot is the cumulative state of one counter at flush time.
type CounterSnapshot struct {
	Name        string
	Unit        string
	Description string
	Points      []CounterPoint
}

// Meter owns the process's counters. Counters are created once at startup
// and incremented for the process lifetime; registration is idempotent by
// name.
type Meter struct {
	service string

	mu       sync.Mutex
	counters map[string]*Counter
}

// NewMeter creates a meter for the named service.
func NewMeter(service string) *Meter {
	return &Meter{
		service:  service,
		counters: make(map[string]*Counter),
	}
}

// Counter returns the counter registered under name, creating it on first
// use. Unit and description from the first registration win.
func (m *Meter) Counter(name, unit, description string) *Counter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counters[name]; ok {
		return c
	}
	c := &Counter{
		name:        name,
		unit:        unit,
		description: description,
		start:       time.Now(),
		series:      make(map[string]*counterSeries),
	}
	m.counters[name] = c
	return c
}

// Snapshot captures the cumulative values of every counter for export.
// Values keep accumulating after the snapshot; export temporality is
// cumulative.
func (m *Meter) Snapshot() []CounterSnapshot {
	m.mu.Lock()
	counters := make([]*Counter, 0, len(m.counters))
	for _, c := range m.counters {
		counters = append(counters, c)
	}
	m.mu.Unlock()

	sort.Slice(counters, func(i, j int) bool { return counters[i].name < counters[j].name })

	now := time.Now()
	snaps := make([]CounterSnapshot, 0, len(counters))
	for _, c := range counters {
		c.mu.Lock()
		points := make([]CounterPoint, 0, len(c.series))
		for _, s := range c.series {
			points = append(points, CounterPoint{
				Attrs: s.attrs,
				Value: s.value,
				Start: c.start,
				Time:  now,
			})
		}
		c.mu.Unlock()
		if len(points) == 0 {
			continue
		}
		sort.Slice(points, func(i, j int) bool {
			return attrKey(points[i].Attrs) < attrKey(points[j].Attrs)
		})
		snaps = append(snaps, CounterSnapshot{
			Name:        c.name,
			Unit:        c.unit,
			Description: c.description,
			Points:      points,
		})
	}
	return snaps
}

// Service returns the meter's service name.
func (m *Meter) Service() string { return m.service }
