package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/sagip-cad/emergency-dispatch-api/databases"
)

const (
	feedBackoffMin = time.Second
	feedBackoffMax = 30 * time.Second
)

// Feed owns the single change stream on the emergencies collection and
// fans change notifications out to registered subscribers. Subscribers
// receive coalesced ticks, not events: the publisher re-queries its own
// filtered view on every tick, so losing intermediate notifications is
// harmless.
type Feed struct {
	edb databases.EmergencyDatabase
	log *zap.SugaredLogger

	mu    sync.Mutex
	ticks map[string]chan struct{}
	errs  map[string]chan error
}

// NewFeed creates a feed over the emergencies change stream
func NewFeed(edb databases.EmergencyDatabase, log *zap.SugaredLogger) *Feed {
	return &Feed{
		edb:   edb,
		log:   log,
		ticks: map[string]chan struct{}{},
		errs:  map[string]chan error{},
	}
}

// Register adds a subscriber and returns its id, a coalesced notification
// channel, and a channel carrying feed errors (broken stream, in-progress
// resubscription). Both channels are closed by Unregister.
func (f *Feed) Register() (string, <-chan struct{}, <-chan error) {
	id := uuid.New().String()
	tick := make(chan struct{}, 1)
	errCh := make(chan error, 1)

	f.mu.Lock()
	f.ticks[id] = tick
	f.errs[id] = errCh
	f.mu.Unlock()

	return id, tick, errCh
}

// Unregister removes a subscriber and closes its channels. Safe to call
// more than once.
func (f *Feed) Unregister(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tick, ok := f.ticks[id]; ok {
		close(tick)
		delete(f.ticks, id)
	}
	if errCh, ok := f.errs[id]; ok {
		close(errCh)
		delete(f.errs, id)
	}
}

// Run watches the emergencies collection until ctx is cancelled. A broken
// stream is surfaced to subscribers and reopened with exponential backoff;
// after a successful reopen a tick is broadcast so every subscriber
// converges again.
func (f *Feed) Run(ctx context.Context) {
	backoff := feedBackoffMin
	for {
		stream, err := f.edb.Watch(ctx, bson.A{})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			f.log.Warnw("emergency change stream unavailable, retrying",
				"backoff", backoff.String(),
				"error", err,
			)
			f.broadcastError(err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > feedBackoffMax {
				backoff = feedBackoffMax
			}
			continue
		}

		backoff = feedBackoffMin
		f.broadcast()

		for stream.Next(ctx) {
			f.broadcast()
		}
		streamErr := stream.Err()
		stream.Close(context.Background())
		if ctx.Err() != nil {
			return
		}
		if streamErr != nil {
			f.log.Warnw("emergency change stream broke", "error", streamErr)
			f.broadcastError(streamErr)
		}
	}
}

func (f *Feed) broadcast() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tick := range f.ticks {
		select {
		case tick <- struct{}{}:
		default: // subscriber already has a pending tick
		}
	}
}

func (f *Feed) broadcastError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, errCh := range f.errs {
		select {
		case errCh <- err:
		default:
		}
	}
}
