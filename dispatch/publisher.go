package dispatch

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/sagip-cad/emergency-dispatch-api/databases"
	"github.com/sagip-cad/emergency-dispatch-api/models"
)

// DefaultSnapshotLimit caps a live view when the subscriber does not ask
// for a specific page size
const DefaultSnapshotLimit = 50

// Subscription describes one connected viewer of the live emergency feed
type Subscription struct {
	Role       string
	Department string
	// Status narrows the view to one lifecycle status when non-empty
	Status string
	Limit  int64
}

// Subscriber is a live, role-filtered view of the emergencies collection.
// Snapshots carries full ordered snapshots (never diffs); Errs carries
// non-fatal feed errors while resubscription runs in the background.
// Both channels close after Unsubscribe.
type Subscriber struct {
	Snapshots <-chan []models.EmergencyView
	Errs      <-chan error

	cancel func()
}

// Unsubscribe tears down the feed registration and any enrichment work in
// flight for this subscriber. Safe to call more than once.
func (s *Subscriber) Unsubscribe() {
	s.cancel()
}

// Publisher fans the emergency change feed out to subscribers, applying
// the role filter server-side and enriching reporter identity through a
// shared TTL cache.
type Publisher struct {
	Feed  *Feed
	EDB   databases.EmergencyDatabase
	Cache *IdentityCache
	Log   *zap.SugaredLogger
}

// Subscribe registers a viewer and starts its snapshot loop. The first
// snapshot is emitted immediately so a reconnecting client converges to
// the same state as a long-lived one; each change notification afterwards
// re-runs the filtered query and replaces the pending snapshot
// (latest-wins).
func (p *Publisher) Subscribe(ctx context.Context, sub Subscription) *Subscriber {
	ctx, cancel := context.WithCancel(ctx)

	feedID, ticks, feedErrs := p.Feed.Register()
	snapshots := make(chan []models.EmergencyView, 1)
	errs := make(chan error, 1)

	go func() {
		defer p.Feed.Unregister(feedID)
		defer close(snapshots)
		defer close(errs)

		p.emit(ctx, sub, snapshots)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ticks:
				if !ok {
					return
				}
				p.emit(ctx, sub, snapshots)
			case err, ok := <-feedErrs:
				if !ok {
					return
				}
				select {
				case errs <- err:
				default:
				}
			}
		}
	}()

	return &Subscriber{Snapshots: snapshots, Errs: errs, cancel: cancel}
}

// Snapshot runs one filtered, enriched query for the subscription. All
// rows of the result reflect the same enrichment pass.
func (p *Publisher) Snapshot(ctx context.Context, sub Subscription) ([]models.EmergencyView, error) {
	predicate := VisibilityPredicate(sub.Role, sub.Department)
	if predicate.Denied {
		// fail closed: the query never runs for an unrecognized role
		return []models.EmergencyView{}, nil
	}

	filter := predicate.Filter()
	if sub.Status != "" {
		filter["status"] = sub.Status
	}
	limit := sub.Limit
	if limit <= 0 {
		limit = DefaultSnapshotLimit
	}

	emergencies, err := p.EDB.Find(ctx, filter, &options.FindOptions{
		Sort:  bson.D{{Key: "createdAt", Value: -1}},
		Limit: &limit,
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(emergencies))
	for i := range emergencies {
		ids = append(ids, emergencies[i].UserID)
	}
	users, err := p.Cache.Lookup(ctx, ids)
	if err != nil {
		// enrichment failure is non-fatal, rows degrade to the raw id
		p.Log.Warnw("identity enrichment failed, emitting partially enriched snapshot", "error", err)
	}

	views := make([]models.EmergencyView, 0, len(emergencies))
	for i := range emergencies {
		views = append(views, models.EmergencyView{
			Emergency: emergencies[i],
			UserInfo:  users[emergencies[i].UserID],
		})
	}
	return views, nil
}

func (p *Publisher) emit(ctx context.Context, sub Subscription, out chan []models.EmergencyView) {
	views, err := p.Snapshot(ctx, sub)
	if err != nil {
		if ctx.Err() == nil {
			p.Log.Errorw("failed to build live snapshot", "error", err)
		}
		return
	}
	// latest-wins: drop the undelivered snapshot rather than block the loop
	select {
	case out <- views:
	default:
		select {
		case <-out:
		default:
		}
		select {
		case out <- views:
		default:
		}
	}
}
