// Package ticker produces the periodic refresh ticks of the live view
package ticker

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// TickFunc receives each tick. It runs on the ticker goroutine and should hand
// work off rather than block.
type TickFunc func(at time.Time)

// Ticker calls a TickFunc on a reconfigurable interval. A zero interval pauses it.
type Ticker struct {
	mu       sync.Mutex
	interval time.Duration
	tick     TickFunc
	reset    chan time.Duration
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	log      *logrus.Entry
}

// New creates a stopped ticker
func New(interval time.Duration, tick TickFunc, log *logrus.Entry) *Ticker {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Ticker{
		interval: interval,
		tick:     tick,
		reset:    make(chan time.Duration, 1),
		log:      log.WithField("component", "ticker"),
	}
}

// Start begins ticking until ctx is cancelled or Stop is called
func (t *Ticker) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return
	}

	ctx, t.cancel = context.WithCancel(ctx)
	interval := t.interval

	t.wg.Add(1)
	go t.run(ctx, interval)
	t.log.WithField("interval", interval).Info("started refresh ticker")
}

// Stop ends the ticking goroutine and waits for it
func (t *Ticker) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	t.wg.Wait()
}

// Interval returns the current interval
func (t *Ticker) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

// SetInterval changes the interval; the next tick is one full interval away
func (t *Ticker) SetInterval(d time.Duration) {
	if d < 0 {
		d = 0
	}

	t.mu.Lock()
	if t.interval == d {
		t.mu.Unlock()
		return
	}
	t.interval = d
	// only the latest interval matters; holding mu keeps the send from blocking
	select {
	case <-t.reset:
	default:
	}
	t.reset <- d
	t.mu.Unlock()

	t.log.WithField("interval", d).Info("refresh interval changed")
}

func (t *Ticker) run(ctx context.Context, interval time.Duration) {
	defer t.wg.Done()

	var (
		ticker *time.Ticker
		tickC  <-chan time.Time
	)
	arm := func(d time.Duration) {
		if ticker != nil {
			ticker.Stop()
			ticker, tickC = nil, nil
		}
		if d > 0 {
			ticker = time.NewTicker(d)
			tickC = ticker.C
		}
	}
	arm(interval)
	defer arm(0)

	for {
		select {
		case <-ctx.Done():
			t.log.Debug("stopping refresh ticker")
			return
		case d := <-t.reset:
			arm(d)
		case at := <-tickC:
			t.tick(at)
		}
	}
}
