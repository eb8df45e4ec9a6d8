package scheduler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/kjannette/trahn-analytics/internal/cache"
)

// Purger is the part of the result cache the sweeper drives.
type Purger interface {
	PurgeExpired() int
	Stats() cache.Stats
}

type SweeperConfig struct {
	Interval time.Duration // e.g. 1*time.Minute
	// OnSweep is called after every sweep with the number of entries removed.
	OnSweep func(removed int, stats cache.Stats)
}

// Sweeper periodically drops expired cache entries so memory is reclaimed
// for keys that are never read again, and logs the cache stats.
type Sweeper struct {
	cache Purger
	cfg   SweeperConfig
	log   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}
}

func NewSweeper(c Purger, cfg SweeperConfig, log *slog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 1 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{cache: c, cfg: cfg, log: log.With("component", "sweeper")}
}

func (s *Sweeper) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Info("[SWEEPER] already running")
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	stopCh, done := s.stopCh, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				s.SweepNow()
			}
		}
	}()

	s.log.Info("[SWEEPER] started", "interval", s.cfg.Interval)
}

// Stop halts the ticker and waits for an in-progress sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	done := s.done
	s.running = false
	s.mu.Unlock()

	<-done
	s.log.Info("[SWEEPER] stopped")
}

func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SweepNow purges expired entries outside the normal schedule.
func (s *Sweeper) SweepNow() int {
	removed := s.cache.PurgeExpired()
	st := s.cache.Stats()
	s.log.Info("[SWEEPER] sweep complete",
		"removed", removed,
		"size", st.Size,
		"hits", st.Hits,
		"misses", st.Misses,
		"evictions", st.Evictions,
		"hit_rate", st.HitRate,
	)
	if s.cfg.OnSweep != nil {
		s.cfg.OnSweep(removed, st)
	}
	return removed
}
