package feed

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gregtusar/simfeed/pkg/models"
)

// Subscription receives every snapshot published after it was created,
// starting with the current one. A consumer that falls behind loses its
// oldest pending snapshot, never the newest.
type Subscription struct {
	ID string
	C  <-chan *models.Snapshot

	ch chan *models.Snapshot
}

// Snapshot returns the last published snapshot. Callers must treat it as
// read-only.
func (e *Engine) Snapshot() *models.Snapshot {
	return e.published.Load()
}

func (e *Engine) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan *models.Snapshot, buffer)
	sub := &Subscription{ID: uuid.NewString(), C: ch, ch: ch}

	e.subMu.Lock()
	defer e.subMu.Unlock()

	if e.subsClosed {
		close(ch)
		return sub
	}
	ch <- e.published.Load()
	e.subscribers[sub.ID] = sub

	e.logger.WithField("subscriber", sub.ID).Debug("Subscriber added")
	return sub
}

func (e *Engine) Unsubscribe(sub *Subscription) {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	if _, ok := e.subscribers[sub.ID]; ok {
		delete(e.subscribers, sub.ID)
		close(sub.ch)
		e.logger.WithField("subscriber", sub.ID).Debug("Subscriber removed")
	}
}

// publishLocked builds an immutable copy of the state. Must hold e.mu.
func (e *Engine) publishLocked(now time.Time) {
	e.sequence++

	snap := &models.Snapshot{
		Symbol:       e.cfg.Symbol,
		Sequence:     e.sequence,
		Running:      e.running,
		CurrentPrice: e.price,
		Ticks:        slices.Clone(e.ticks),
		// Books are replaced wholesale, never patched, so sharing is safe.
		OrderBook: e.book,
		Trades:    slices.Clone(e.trades),
		Candles:   slices.Clone(e.candleSeries),
		Stats:     e.stats,
		UpdatedAt: now,
	}

	e.published.Store(snap)
	e.broadcast(snap)
}

func (e *Engine) broadcast(snap *models.Snapshot) {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	for _, sub := range e.subscribers {
		select {
		case sub.ch <- snap:
		default:
			// drop the oldest pending snapshot for slow consumers
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- snap:
			default:
			}
		}
	}
}

func (e *Engine) closeSubscribers() {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	for id, sub := range e.subscribers {
		close(sub.ch)
		delete(e.subscribers, id)
	}
	e.subsClosed = true
}
