package service

import (
	"context"
	"errors"

	"clinic-booking/internal/domain/entity"
	domainRepo "clinic-booking/internal/domain/repository"

	"github.com/sirupsen/logrus"
)

// LogNotifier writes notifications to the application log.
type LogNotifier struct {
	log *logrus.Logger
}

func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, notification entity.Notification) error {
	n.log.WithFields(logrus.Fields{
		"user_id": notification.UserID,
		"title":   notification.Title,
	}).Info(notification.Body)
	return nil
}

// MultiNotifier delivers to every sink and joins their errors.
type MultiNotifier []domainRepo.NotificationSink

func (m MultiNotifier) Notify(ctx context.Context, notification entity.Notification) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Notify(ctx, notification); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
