package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"clinic-booking/config"
	"clinic-booking/internal/domain/entity"
	domainRepo "clinic-booking/internal/domain/repository"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const subscriptionBuffer = 16

func NewRabbitMQ(cfg config.RabbitMQConfig) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	logrus.Info("Successfully connected to RabbitMQ")
	return conn, nil
}

// RoutingKey is the topic a row change is published under:
// <table>.<field>.<value>.
func RoutingKey(table, field string, value uuid.UUID) string {
	return fmt.Sprintf("%s.%s.%s", table, field, value)
}

// RabbitChangeFeed fans change events out over a topic exchange. Each event
// is published once per filter key it carries.
type RabbitChangeFeed struct {
	conn     *amqp091.Connection
	exchange string
	log      *logrus.Logger

	// amqp channels are not safe for concurrent publishing
	pubMu sync.Mutex
	pubCh *amqp091.Channel
}

func NewRabbitChangeFeed(conn *amqp091.Connection, exchange string, log *logrus.Logger) (*RabbitChangeFeed, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publish channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &RabbitChangeFeed{
		conn:     conn,
		exchange: exchange,
		log:      log,
		pubCh:    ch,
	}, nil
}

func (f *RabbitChangeFeed) Publish(ctx context.Context, event entity.ChangeEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}

	f.pubMu.Lock()
	defer f.pubMu.Unlock()

	for field, value := range event.Keys {
		key := RoutingKey(event.Table, field, value)
		err := f.pubCh.PublishWithContext(ctx, f.exchange, key, false, false, amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   event.OccurredAt,
		})
		if err != nil {
			f.log.Warnf("Failed to publish change event to %s: %+v", key, err)
			return fmt.Errorf("publish %s: %w", key, err)
		}
	}
	return nil
}

// Subscribe binds an exclusive auto-delete queue to the filter's routing key.
// The queue disappears with the subscription.
func (f *RabbitChangeFeed) Subscribe(ctx context.Context, filter entity.ChangeFilter) (domainRepo.FeedSubscription, error) {
	ch, err := f.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open subscribe channel: %w", err)
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare subscription queue: %w", err)
	}

	key := RoutingKey(filter.Table, filter.Field, filter.Value)
	if err := ch.QueueBind(q.Name, key, f.exchange, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("bind %s: %w", key, err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, q.Name, "", true, true, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("consume %s: %w", q.Name, err)
	}

	sub := &rabbitSubscription{
		ch:     ch,
		events: make(chan entity.ChangeEvent, subscriptionBuffer),
		done:   make(chan struct{}),
	}
	go sub.pump(deliveries, f.log)
	return sub, nil
}

type rabbitSubscription struct {
	ch     *amqp091.Channel
	events chan entity.ChangeEvent
	done   chan struct{}
	once   sync.Once
}

func (s *rabbitSubscription) pump(deliveries <-chan amqp091.Delivery, log *logrus.Logger) {
	defer close(s.events)
	for {
		select {
		case <-s.done:
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			var event entity.ChangeEvent
			if err := json.Unmarshal(d.Body, &event); err != nil {
				log.Warnf("Dropping malformed change event on %s: %+v", d.RoutingKey, err)
				continue
			}
			select {
			case s.events <- event:
			case <-s.done:
				return
			}
		}
	}
}

func (s *rabbitSubscription) Events() <-chan entity.ChangeEvent {
	return s.events
}

func (s *rabbitSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ch.Close()
	})
	return err
}

// Close releases the publish channel. The connection is owned by the caller.
func (f *RabbitChangeFeed) Close() error {
	f.pubMu.Lock()
	defer f.pubMu.Unlock()
	return f.pubCh.Close()
}
