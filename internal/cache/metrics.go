package cache

import "github.com/prometheus/client_golang/prometheus"

// Collector exports cache statistics as Prometheus metrics. Values are read
// from the cache at scrape time.
type Collector struct {
	cache *Cache

	hits        *prometheus.Desc
	misses      *prometheus.Desc
	evictions   *prometheus.Desc
	expirations *prometheus.Desc
	entries     *prometheus.Desc
}

func NewCollector(namespace string, c *Cache) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", name), help, nil, nil)
	}
	return &Collector{
		cache:       c,
		hits:        desc("hits_total", "Result cache lookups served from the cache."),
		misses:      desc("misses_total", "Result cache lookups that missed."),
		evictions:   desc("evictions_total", "Entries evicted to stay within capacity."),
		expirations: desc("expirations_total", "Entries dropped after their TTL."),
		entries:     desc("entries", "Entries currently held."),
	}
}

func (col *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- col.hits
	ch <- col.misses
	ch <- col.evictions
	ch <- col.expirations
	ch <- col.entries
}

func (col *Collector) Collect(ch chan<- prometheus.Metric) {
	st := col.cache.Stats()
	ch <- prometheus.MustNewConstMetric(col.hits, prometheus.CounterValue, float64(st.Hits))
	ch <- prometheus.MustNewConstMetric(col.misses, prometheus.CounterValue, float64(st.Misses))
	ch <- prometheus.MustNewConstMetric(col.evictions, prometheus.CounterValue, float64(st.Evictions))
	ch <- prometheus.MustNewConstMetric(col.expirations, prometheus.CounterValue, float64(st.Expirations))
	ch <- prometheus.MustNewConstMetric(col.entries, prometheus.GaugeValue, float64(st.Size))
}
