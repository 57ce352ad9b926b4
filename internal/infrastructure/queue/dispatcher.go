package queue

import (
	"context"
	"hash/fnv"

	"github.com/rs/zerolog"

	"github.com/portalcms/account-gateway/internal/core/domain"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// Handler consumes a single auth event (mailer, audit sink, webhook, ...).
type Handler func(ctx context.Context, event domain.AuthEvent) error

// Dispatcher fans auth events out to subscribers over a fixed set of workers,
// sharded by username so events for one account are always delivered in
// order. Delivery is fire-and-forget: Notify never blocks past the channel
// buffer and never reports failure to the emitting operation.
type Dispatcher struct {
	workers  []chan domain.AuthEvent
	handlers []Handler
	log      zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, log zerolog.Logger, handlers ...Handler) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:  make([]chan domain.AuthEvent, numWorkers),
		handlers: handlers,
		log:      log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.AuthEvent, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Notify routes an event to the worker responsible for its username. When
// that worker's buffer is full the event is dropped with a log line rather
// than stalling the auth operation that emitted it.
func (d *Dispatcher) Notify(event domain.AuthEvent) {
	select {
	case d.workers[d.shardIndex(event.Username)] <- event:
	default:
		d.log.Warn().
			Str("event", event.Name).
			Int64("account_id", event.AccountID).
			Msg("notification dropped: worker queue full")
	}
}

// shardIndex maps a username deterministically to a worker index.
func (d *Dispatcher) shardIndex(username string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(username))
	return int(h.Sum32()) % len(d.workers)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.AuthEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			for _, handle := range d.handlers {
				if err := handle(ctx, event); err != nil {
					d.log.Error().Err(err).
						Str("event", event.Name).
						Int64("account_id", event.AccountID).
						Int("worker_id", id).
						Msg("event handler failed")
				}
			}
		}
	}
}
