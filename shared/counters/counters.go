// Package counters is the named, monotonically increasing counter facility
// the pipeline stages report into. Every counter is addressed by a group
// (the stage) and a name, and is mirrored into a Prometheus counter vector so
// it can be scraped while a job runs.
package counters

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/xerrors"
)

// Counter groups and names reported by the pipeline.
const (
	MapperGroup  = "JsonMapper"
	ReducerGroup = "FilterReducer"

	MalformedJSON = "MalformedJson"

	DuplicatesFileNotFound   = "DuplicatesFileNotFound"
	DuplicatePairsProcessed  = "DuplicatePairsProcessed"
	ProductIDsToFilter       = "ProductIDsToFilter"
	DuplicatesLoadMillis     = "DuplicatesLoadMillis"
	DuplicateProductsSkipped = "DuplicateProductsSkipped"
	UnknownValuesSkipped     = "UnknownValuesSkipped"
	RecordsOutput            = "RecordsOutput"
	ParseErrors              = "ParseErrors"
)

// Counters is what the stages need: increment a named counter.
type Counters interface {
	Increment(group, name string, delta int64)
}

// Entry is one counter value in a snapshot.
type Entry struct {
	Group string
	Name  string
	Value int64
}

func (e Entry) String() string {
	return fmt.Sprintf("%s/%s=%d", e.Group, e.Name, e.Value)
}

// Registry is a concurrency-safe Counters implementation.
type Registry struct {
	mu     sync.RWMutex
	values map[string]*atomic.Int64
	vec    *prometheus.CounterVec
}

// NewRegistry creates a registry and, when reg is not nil, registers its
// Prometheus collector with reg.
func NewRegistry(reg prometheus.Registerer) (*Registry, error) {
	vec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reviewclean",
			Name:      "counter_total",
			Help:      "Pipeline counters by stage group and counter name",
		},
		[]string{"group", "name"},
	)
	if reg != nil {
		if err := reg.Register(vec); err != nil {
			return nil, xerrors.Errorf("failed to register counters collector: %w", err)
		}
	}
	return &Registry{
		values: make(map[string]*atomic.Int64),
		vec:    vec,
	}, nil
}

// MustNewRegistry is NewRegistry that panics on registration errors.
func MustNewRegistry(reg prometheus.Registerer) *Registry {
	r, err := NewRegistry(reg)
	if err != nil {
		panic(err)
	}
	return r
}

func key(group, name string) string {
	return group + "\x00" + name
}

// Increment adds delta to the counter. Negative deltas are ignored.
func (r *Registry) Increment(group, name string, delta int64) {
	if delta < 0 {
		return
	}
	k := key(group, name)

	r.mu.RLock()
	v, ok := r.values[k]
	r.mu.RUnlock()
	if !ok {
		r.mu.Lock()
		if v, ok = r.values[k]; !ok {
			v = &atomic.Int64{}
			r.values[k] = v
		}
		r.mu.Unlock()
	}

	v.Add(delta)
	r.vec.WithLabelValues(group, name).Add(float64(delta))
}

// Get returns the current value of a counter, zero if it was never touched.
func (r *Registry) Get(group, name string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.values[key(group, name)]; ok {
		return v.Load()
	}
	return 0
}

// Snapshot returns every counter sorted by group then name.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	entries := make([]Entry, 0, len(r.values))
	for k, v := range r.values {
		group, name, _ := strings.Cut(k, "\x00")
		entries = append(entries, Entry{Group: group, Name: name, Value: v.Load()})
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Group != entries[j].Group {
			return entries[i].Group < entries[j].Group
		}
		return entries[i].Name < entries[j].Name
	})
	return entries
}

// Collector exposes the underlying Prometheus vector.
func (r *Registry) Collector() *prometheus.CounterVec {
	return r.vec
}
