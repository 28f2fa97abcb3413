package messaging

import (
	"context"
	"fmt"
	"sync"

	"clinic-booking/internal/domain/entity"

	"github.com/goccy/go-json"
	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// NotificationQueue is where push delivery workers pick notifications up.
const NotificationQueue = "clinic.notifications"

// NotificationPublisher hands notifications to the push delivery worker
// through a durable queue. Delivery and formatting happen downstream.
type NotificationPublisher struct {
	mu  sync.Mutex
	ch  *amqp091.Channel
	log *logrus.Logger
}

func NewNotificationPublisher(conn *amqp091.Connection, log *logrus.Logger) (*NotificationPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open notification channel: %w", err)
	}
	if _, err := ch.QueueDeclare(NotificationQueue, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare queue %s: %w", NotificationQueue, err)
	}
	return &NotificationPublisher{ch: ch, log: log}, nil
}

func (p *NotificationPublisher) Notify(ctx context.Context, notification entity.Notification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, "", NotificationQueue, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Persistent,
	})
	if err != nil {
		p.log.Warnf("Failed to publish notification for user %s: %+v", notification.UserID, err)
		return err
	}
	return nil
}

func (p *NotificationPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Close()
}
