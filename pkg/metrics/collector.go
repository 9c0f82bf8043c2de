// Package metrics exports heap, arena and allocator counters as Prometheus
// metrics.
//
// The collector reads the sources on every scrape. rc heaps and arena pools
// are single-threaded, so scrape from the goroutine that owns them (for
// example with a private registry and Gather); allocator counters are atomic
// and can be scraped from anywhere.
package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"purple_rc/pkg/arena"
	"purple_rc/pkg/memory"
	"purple_rc/pkg/rc"
)

const namespace = "purple_rc"

// PoolSource is satisfied by every *arena.Pool[T].
type PoolSource interface {
	Stats() arena.Stats
}

// Collector implements prometheus.Collector over named sources.
type Collector struct {
	heaps  map[string]*rc.Heap
	pools  map[string]PoolSource
	allocs map[string]*memory.CountingAllocator

	rcAllocs     *prometheus.Desc
	rcFailed     *prometheus.Desc
	rcFrees      *prometheus.Desc
	rcLive       *prometheus.Desc
	rcIncRefs    *prometheus.Desc
	rcDecRefs    *prometheus.Desc
	rcCascades   *prometheus.Desc
	rcMaxPending *prometheus.Desc

	arenaAllocs   *prometheus.Desc
	arenaGrows    *prometheus.Desc
	arenaSubpools *prometheus.Desc
	arenaCapacity *prometheus.Desc
	arenaReserved *prometheus.Desc

	memLive     *prometheus.Desc
	memPeak     *prometheus.Desc
	memAllocs   *prometheus.Desc
	memFrees    *prometheus.Desc
	memFailures *prometheus.Desc
}

func desc(subsystem, name, help string) *prometheus.Desc {
	return prometheus.NewDesc(
		prometheus.BuildFQName(namespace, subsystem, name),
		help, []string{"name"}, nil,
	)
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		heaps:  make(map[string]*rc.Heap),
		pools:  make(map[string]PoolSource),
		allocs: make(map[string]*memory.CountingAllocator),

		rcAllocs:     desc("rc", "objects_allocated_total", "Refcounted objects allocated."),
		rcFailed:     desc("rc", "failed_allocs_total", "Refcounted allocations rejected by the allocator."),
		rcFrees:      desc("rc", "objects_freed_total", "Refcounted objects freed."),
		rcLive:       desc("rc", "objects_live", "Refcounted objects allocated and not yet freed."),
		rcIncRefs:    desc("rc", "increfs_total", "Reference count increments."),
		rcDecRefs:    desc("rc", "decrefs_total", "Reference count decrements."),
		rcCascades:   desc("rc", "cascades_total", "Outermost release calls, one drain loop each."),
		rcMaxPending: desc("rc", "cascade_max_pending", "Largest cascade worklist observed."),

		arenaAllocs:   desc("arena", "nodes_allocated_total", "Nodes handed out by the pool."),
		arenaGrows:    desc("arena", "grows_total", "Subpools added after the first."),
		arenaSubpools: desc("arena", "subpools", "Subpools in the chain."),
		arenaCapacity: desc("arena", "capacity_nodes", "Node slots across all subpools."),
		arenaReserved: desc("arena", "reserved_bytes", "Bytes held by the pool."),

		memLive:     desc("memory", "live_bytes", "Bytes currently reserved."),
		memPeak:     desc("memory", "peak_bytes", "High-water mark of reserved bytes."),
		memAllocs:   desc("memory", "reservations_total", "Successful reservations."),
		memFrees:    desc("memory", "releases_total", "Releases."),
		memFailures: desc("memory", "failures_total", "Rejected reservations."),
	}
}

// AddHeap registers a refcounting heap under name.
func (c *Collector) AddHeap(name string, h *rc.Heap) {
	c.heaps[name] = h
}

// AddPool registers an arena pool under name.
func (c *Collector) AddPool(name string, p PoolSource) {
	c.pools[name] = p
}

// AddAllocator registers a counting allocator under name.
func (c *Collector) AddAllocator(name string, a *memory.CountingAllocator) {
	c.allocs[name] = a
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.rcAllocs, c.rcFailed, c.rcFrees, c.rcLive, c.rcIncRefs, c.rcDecRefs, c.rcCascades, c.rcMaxPending,
		c.arenaAllocs, c.arenaGrows, c.arenaSubpools, c.arenaCapacity, c.arenaReserved,
		c.memLive, c.memPeak, c.memAllocs, c.memFrees, c.memFailures,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	counter := func(d *prometheus.Desc, v uint64, name string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), name)
	}
	gauge := func(d *prometheus.Desc, v float64, name string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, name)
	}

	for _, name := range sortedKeys(c.heaps) {
		s := c.heaps[name].Stats()
		counter(c.rcAllocs, s.Allocs, name)
		counter(c.rcFailed, s.FailedAllocs, name)
		counter(c.rcFrees, s.Frees, name)
		gauge(c.rcLive, float64(s.Live()), name)
		counter(c.rcIncRefs, s.IncRefs, name)
		counter(c.rcDecRefs, s.DecRefs, name)
		counter(c.rcCascades, s.Cascades, name)
		gauge(c.rcMaxPending, float64(s.MaxPending), name)
	}
	for _, name := range sortedKeys(c.pools) {
		s := c.pools[name].Stats()
		counter(c.arenaAllocs, s.Allocs, name)
		counter(c.arenaGrows, s.Grows, name)
		gauge(c.arenaSubpools, float64(s.Subpools), name)
		gauge(c.arenaCapacity, float64(s.Capacity), name)
		gauge(c.arenaReserved, float64(s.ReservedBytes), name)
	}
	for _, name := range sortedKeys(c.allocs) {
		a := c.allocs[name]
		gauge(c.memLive, float64(a.LiveBytes()), name)
		gauge(c.memPeak, float64(a.PeakBytes()), name)
		counter(c.memAllocs, a.Allocs(), name)
		counter(c.memFrees, a.Frees(), name)
		counter(c.memFailures, a.Failures(), name)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
