// Package metrics exposes kernel-internal counters as prometheus
// Collectors, pulled on scrape rather than pushed on every mutation — the
// pool, queue, and scheduler already keep their own atomics/mutex-guarded
// counters (internal/kernel), so a Collector.Collect that reads Stats() at
// scrape time avoids a second, parallel counting scheme (SPEC_FULL.md §3).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mycelia/internal/kernel"
)

// PoolCollector adapts a *kernel.MessagePool's PoolStats into prometheus
// counters/gauges.
type PoolCollector struct {
	pool *kernel.MessagePool

	acquires  *prometheus.Desc
	releases  *prometheus.Desc
	creations *prometheus.Desc
	reuses    *prometheus.Desc
	discards  *prometheus.Desc
	idle      *prometheus.Desc
}

// NewPoolCollector wraps pool for registration with a prometheus.Registerer.
func NewPoolCollector(pool *kernel.MessagePool) *PoolCollector {
	return &PoolCollector{
		pool:      pool,
		acquires:  prometheus.NewDesc("mycelia_pool_acquires_total", "Total messages acquired from the pool.", nil, nil),
		releases:  prometheus.NewDesc("mycelia_pool_releases_total", "Total messages released back to the pool.", nil, nil),
		creations: prometheus.NewDesc("mycelia_pool_creations_total", "Total messages freshly allocated by the pool.", nil, nil),
		reuses:    prometheus.NewDesc("mycelia_pool_reuses_total", "Total messages served from the free list.", nil, nil),
		discards:  prometheus.NewDesc("mycelia_pool_discards_total", "Total messages discarded at capacity.", nil, nil),
		idle:      prometheus.NewDesc("mycelia_pool_idle", "Messages currently held in the free list.", nil, nil),
	}
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquires
	ch <- c.releases
	ch <- c.creations
	ch <- c.reuses
	ch <- c.discards
	ch <- c.idle
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.pool.Stats()
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(stats.Acquires))
	ch <- prometheus.MustNewConstMetric(c.releases, prometheus.CounterValue, float64(stats.Releases))
	ch <- prometheus.MustNewConstMetric(c.creations, prometheus.CounterValue, float64(stats.Creations))
	ch <- prometheus.MustNewConstMetric(c.reuses, prometheus.CounterValue, float64(stats.Reuses))
	ch <- prometheus.MustNewConstMetric(c.discards, prometheus.CounterValue, float64(stats.Discards))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(c.pool.Len()))
}

// queueStatter is satisfied by *kernel.Queue; named narrowly so
// QueueCollector doesn't need the concrete type exported for this alone.
type queueStatter interface {
	Stats() kernel.QueueStats
	Len() int
}

// QueueCollector adapts one named subsystem's *kernel.Queue into
// prometheus counters/gauges labeled by subsystem name.
type QueueCollector struct {
	name  string
	queue queueStatter

	processed *prometheus.Desc
	errors    *prometheus.Desc
	full      *prometheus.Desc
	depth     *prometheus.Desc
}

// NewQueueCollector labels every metric with the owning subsystem's name so
// one registry can hold a collector per subsystem.
func NewQueueCollector(name string, queue queueStatter) *QueueCollector {
	labels := []string{"subsystem"}
	return &QueueCollector{
		name:      name,
		queue:     queue,
		processed: prometheus.NewDesc("mycelia_queue_processed_total", "Total messages processed from the queue.", labels, nil),
		errors:    prometheus.NewDesc("mycelia_queue_errors_total", "Total handler errors while processing the queue.", labels, nil),
		full:      prometheus.NewDesc("mycelia_queue_full_total", "Total pushes rejected because the queue was full.", labels, nil),
		depth:     prometheus.NewDesc("mycelia_queue_depth", "Current number of queued messages.", labels, nil),
	}
}

func (c *QueueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.processed
	ch <- c.errors
	ch <- c.full
	ch <- c.depth
}

func (c *QueueCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.queue.Stats()
	ch <- prometheus.MustNewConstMetric(c.processed, prometheus.CounterValue, float64(stats.Processed), c.name)
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(stats.Errors), c.name)
	ch <- prometheus.MustNewConstMetric(c.full, prometheus.CounterValue, float64(stats.QueueFull), c.name)
	ch <- prometheus.MustNewConstMetric(c.depth, prometheus.GaugeValue, float64(c.queue.Len()), c.name)
}

// SchedulerCollector adapts a *kernel.GlobalScheduler's Snapshot into
// prometheus gauges.
type SchedulerCollector struct {
	scheduler *kernel.GlobalScheduler

	registered *prometheus.Desc
	queueLen   *prometheus.Desc
}

func NewSchedulerCollector(scheduler *kernel.GlobalScheduler) *SchedulerCollector {
	return &SchedulerCollector{
		scheduler:  scheduler,
		registered: prometheus.NewDesc("mycelia_scheduler_subsystems", "Number of subsystems registered with the scheduler.", nil, nil),
		queueLen:   prometheus.NewDesc("mycelia_scheduler_total_queue_len", "Combined queue depth across all scheduled subsystems.", nil, nil),
	}
}

func (c *SchedulerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.registered
	ch <- c.queueLen
}

func (c *SchedulerCollector) Collect(ch chan<- prometheus.Metric) {
	registered, total := c.scheduler.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.registered, prometheus.GaugeValue, float64(registered))
	ch <- prometheus.MustNewConstMetric(c.queueLen, prometheus.GaugeValue, float64(total))
}

// Register attaches the pool and scheduler collectors to reg and returns
// only an error; per-subsystem queue collectors are attached separately by
// calling RegisterQueue for each subsystem as it comes online.
func Register(reg prometheus.Registerer, pool *kernel.MessagePool, scheduler *kernel.GlobalScheduler) error {
	if err := reg.Register(NewPoolCollector(pool)); err != nil {
		return err
	}
	return reg.Register(NewSchedulerCollector(scheduler))
}

// RegisterQueue attaches a QueueCollector for one named subsystem's queue.
func RegisterQueue(reg prometheus.Registerer, name string, queue queueStatter) error {
	return reg.Register(NewQueueCollector(name, queue))
}
