package usecase

import (
	"context"
	"sync"
	"time"

	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const watchRefreshTimeout = 10 * time.Second

// WatchScope selects the appointments of one patient (FieldUserID) or one
// doctor (FieldDoctorID).
type WatchScope struct {
	Field string
	ID    uuid.UUID
}

// Watch receives refreshed appointment lists for its scope. Only the latest
// lists are kept if the receiver falls behind.
type Watch struct {
	Scope   WatchScope
	updates chan *AppointmentLists
	done    chan struct{}
	hub     *watchHub
	once    sync.Once
}

func (w *Watch) Updates() <-chan *AppointmentLists {
	return w.updates
}

// Close detaches the watch. The scope's feed subscription is released with
// its last watch. Safe to call multiple times.
func (w *Watch) Close() {
	w.once.Do(func() {
		close(w.done)
		w.hub.detach(w)
	})
}

type lister interface {
	list(ctx context.Context, scope WatchScope) (*AppointmentLists, error)
}

// watchHub holds one feed subscription per watched scope, shared by every
// watch on that scope.
type watchHub struct {
	lister   lister
	feed     repository.ChangeFeed
	notifier repository.NotificationSink
	log      *logrus.Logger

	mu     sync.Mutex
	scopes map[WatchScope]*scopeWatch
}

type scopeWatch struct {
	sub     repository.FeedSubscription
	watches map[*Watch]struct{}
}

func newWatchHub(l lister, feed repository.ChangeFeed, notifier repository.NotificationSink, log *logrus.Logger) *watchHub {
	return &watchHub{
		lister:   l,
		feed:     feed,
		notifier: notifier,
		log:      log,
		scopes:   make(map[WatchScope]*scopeWatch),
	}
}

func (h *watchHub) watch(ctx context.Context, scope WatchScope) (*Watch, error) {
	w := &Watch{
		Scope:   scope,
		updates: make(chan *AppointmentLists, 1),
		done:    make(chan struct{}),
		hub:     h,
	}

	h.mu.Lock()
	sw, ok := h.scopes[scope]
	if !ok {
		sub, err := h.feed.Subscribe(context.WithoutCancel(ctx), entity.ChangeFilter{
			Table: entity.TableAppointments,
			Field: scope.Field,
			Value: scope.ID,
		})
		if err != nil {
			h.mu.Unlock()
			h.log.Warnf("Failed to subscribe to appointment changes: %+v", err)
			return nil, unavailable(err)
		}
		sw = &scopeWatch{sub: sub, watches: make(map[*Watch]struct{})}
		h.scopes[scope] = sw
		go h.pump(scope, sw)
	}
	sw.watches[w] = struct{}{}
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			w.Close()
		case <-w.done:
		}
	}()

	return w, nil
}

func (h *watchHub) detach(w *Watch) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sw, ok := h.scopes[w.Scope]
	if !ok {
		return
	}
	if _, ok := sw.watches[w]; !ok {
		return
	}
	delete(sw.watches, w)
	close(w.updates)

	if len(sw.watches) == 0 {
		delete(h.scopes, w.Scope)
		if err := sw.sub.Close(); err != nil {
			h.log.Warnf("Failed to close appointment subscription: %+v", err)
		}
	}
}

// pump refreshes the scope on every change event until the subscription is
// closed.
func (h *watchHub) pump(scope WatchScope, sw *scopeWatch) {
	for event := range sw.sub.Events() {
		ctx, cancel := context.WithTimeout(context.Background(), watchRefreshTimeout)
		lists, err := h.lister.list(ctx, scope)
		if err != nil {
			h.log.Warnf("Failed to refresh appointments after change: %+v", err)
		}

		if err := h.notifier.Notify(ctx, changeNotification(scope, event)); err != nil {
			h.log.Warnf("Failed to deliver appointment notification: %+v", err)
		}
		cancel()

		if lists != nil {
			h.broadcast(sw, lists)
		}
	}
}

func (h *watchHub) broadcast(sw *scopeWatch, lists *AppointmentLists) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for w := range sw.watches {
		// Replace an unread update with the newer one.
		select {
		case <-w.updates:
		default:
		}
		select {
		case w.updates <- lists:
		default:
		}
	}
}

// activeScopes reports how many scopes hold a feed subscription.
func (h *watchHub) activeScopes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.scopes)
}

func changeNotification(scope WatchScope, event entity.ChangeEvent) entity.Notification {
	n := entity.Notification{UserID: scope.ID, Body: event.Summary}
	switch event.Op {
	case entity.ChangeInsert:
		n.Title = "New appointment booked"
	case entity.ChangeDelete:
		n.Title = "Appointment removed"
	default:
		n.Title = "Appointment updated"
	}
	if n.Body == "" {
		n.Body = n.Title
	}
	return n
}
