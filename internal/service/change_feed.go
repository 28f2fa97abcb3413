package service

import (
	"context"
	"sync"
	"time"

	"clinic-booking/internal/domain/entity"
	domainRepo "clinic-booking/internal/domain/repository"

	"github.com/sirupsen/logrus"
)

const localSubscriptionBuffer = 16

// LocalChangeFeed is an in-process change feed used when no message broker
// is configured. Slow subscribers lose events rather than block publishers.
type LocalChangeFeed struct {
	mu   sync.RWMutex
	subs map[*localSubscription]struct{}
	log  *logrus.Logger
}

func NewLocalChangeFeed(log *logrus.Logger) *LocalChangeFeed {
	return &LocalChangeFeed{
		subs: make(map[*localSubscription]struct{}),
		log:  log,
	}
}

func (f *LocalChangeFeed) Publish(ctx context.Context, event entity.ChangeEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	for sub := range f.subs {
		if !sub.filter.Matches(event) {
			continue
		}
		select {
		case sub.events <- event:
		default:
			f.log.Warnf("Dropping change event for slow subscriber on %s.%s", sub.filter.Table, sub.filter.Field)
		}
	}
	return nil
}

func (f *LocalChangeFeed) Subscribe(ctx context.Context, filter entity.ChangeFilter) (domainRepo.FeedSubscription, error) {
	sub := &localSubscription{
		feed:   f,
		filter: filter,
		events: make(chan entity.ChangeEvent, localSubscriptionBuffer),
	}

	f.mu.Lock()
	f.subs[sub] = struct{}{}
	f.mu.Unlock()

	return sub, nil
}

// SubscriberCount reports the number of open subscriptions.
func (f *LocalChangeFeed) SubscriberCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

func (f *LocalChangeFeed) remove(sub *localSubscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[sub]; ok {
		delete(f.subs, sub)
		close(sub.events)
	}
}

type localSubscription struct {
	feed   *LocalChangeFeed
	filter entity.ChangeFilter
	events chan entity.ChangeEvent
	once   sync.Once
}

func (s *localSubscription) Events() <-chan entity.ChangeEvent {
	return s.events
}

func (s *localSubscription) Close() error {
	s.once.Do(func() { s.feed.remove(s) })
	return nil
}
