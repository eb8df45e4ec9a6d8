package notifications

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Alerter turns degraded analytics reads into webhook alerts, at most one
// per interval. Alerts dropped by the limiter are counted and mentioned in
// the next alert that goes out.
type Alerter struct {
	sender  *Sender
	limiter *rate.Limiter

	mu         sync.Mutex
	suppressed int
	wg         sync.WaitGroup
}

func NewAlerter(sender *Sender, minInterval time.Duration) *Alerter {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Alerter{
		sender:  sender,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Report sends an alert for a failed operation without blocking the caller.
func (a *Alerter) Report(op string, err error) {
	if !a.limiter.Allow() {
		a.mu.Lock()
		a.suppressed++
		a.mu.Unlock()
		return
	}

	a.mu.Lock()
	suppressed := a.suppressed
	a.suppressed = 0
	a.mu.Unlock()

	msg := fmt.Sprintf("analytics %s degraded to empty result: %v", op, err)
	if suppressed > 0 {
		msg += fmt.Sprintf(" (%d more suppressed)", suppressed)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.sender.Send(msg)
	}()
}

// Suppressed returns how many alerts are waiting to be mentioned.
func (a *Alerter) Suppressed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.suppressed
}

// Close waits for in-flight alerts to finish.
func (a *Alerter) Close() {
	a.wg.Wait()
}
