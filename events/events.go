package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/trilliondigital/Dirt-v1.0-sub007/models"
)

type EventKind string

const (
	EvtContentCreated          = EventKind("content_created")
	EvtMentionCreated          = EventKind("mention_created")
	EvtModerationStatusChanged = EventKind("moderation_status_changed")
	EvtReportResolved          = EventKind("report_resolved")
	EvtReputationChanged       = EventKind("reputation_changed")
)

// Event is the unit pushed onto the notification channel. Consumers get a
// copy; they must not retain the pointer past their handler.
type Event struct {
	Kind EventKind
	Time time.Time

	// Subject content unit, when the event concerns one.
	Ref models.ContentRef
	// UserID is the affected user: the author for moderation events, the
	// mentioned user for mentions, the recomputed user for reputation.
	UserID uint

	FromStatus models.ModerationStatus
	ToStatus   models.ModerationStatus
	Reason     string
	Score      int
	Tier       string
	Handle     string
}

// EventManager fans events out to registered subscribers. Subscription,
// unsubscription and sends are serialized through a single ops channel so
// the subscriber list needs no locking.
type EventManager struct {
	subs []*Subscriber

	ops    chan *operation
	closed chan struct{}

	persister EventPersistence

	log *slog.Logger
}

func NewEventManager(persister EventPersistence) *EventManager {
	return &EventManager{
		ops:       make(chan *operation),
		closed:    make(chan struct{}),
		persister: persister,
		log:       slog.Default().With("system", "events"),
	}
}

const (
	opSubscribe = iota
	opUnsubscribe
	opSend
	opShutdown
)

type operation struct {
	op  int
	sub *Subscriber
	evt *Event
}

func (em *EventManager) Run() {
	for op := range em.ops {
		switch op.op {
		case opSubscribe:
			em.subs = append(em.subs, op.sub)
		case opUnsubscribe:
			for i, s := range em.subs {
				if s == op.sub {
					em.subs[i] = em.subs[len(em.subs)-1]
					em.subs = em.subs[:len(em.subs)-1]
					break
				}
			}
		case opSend:
			eventsPublished.WithLabelValues(string(op.evt.Kind)).Inc()
			if err := em.persister.Persist(context.TODO(), op.evt); err != nil {
				em.log.Error("failed to persist outbound event", "err", err)
			}

			for _, s := range em.subs {
				if s.filter(op.evt) {
					select {
					case s.outgoing <- op.evt:
					default:
						eventsDropped.Inc()
						em.log.Error("event overflow", "kind", op.evt.Kind)
					}
				}
			}
		case opShutdown:
			close(em.closed)
			return
		default:
			em.log.Error("unrecognized eventmgr operation", "op", op.op)
		}
	}
}

func (em *EventManager) Shutdown() {
	em.ops <- &operation{op: opShutdown}
	<-em.closed
}

type Subscriber struct {
	outgoing chan *Event

	filter func(*Event) bool
}

func (s *Subscriber) Next() <-chan *Event {
	return s.outgoing
}

// AddEvent publishes evt to all matching subscribers. Delivery is
// best-effort per subscriber; a full subscriber channel drops the event
// rather than blocking the bus.
func (em *EventManager) AddEvent(evt *Event) {
	if evt.Time.IsZero() {
		evt.Time = time.Now()
	}
	select {
	case em.ops <- &operation{op: opSend, evt: evt}:
	case <-em.closed:
	}
}

func (em *EventManager) Subscribe(filter func(*Event) bool, bufsz int) *Subscriber {
	if filter == nil {
		filter = func(*Event) bool { return true }
	}
	if bufsz <= 0 {
		bufsz = 64
	}
	sub := &Subscriber{
		outgoing: make(chan *Event, bufsz),
		filter:   filter,
	}
	em.ops <- &operation{op: opSubscribe, sub: sub}
	return sub
}

func (em *EventManager) Unsubscribe(sub *Subscriber) {
	em.ops <- &operation{op: opUnsubscribe, sub: sub}
}
