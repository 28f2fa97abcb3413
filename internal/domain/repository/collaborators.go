package repository

import (
	"context"
	"io"
	"time"

	"clinic-booking/internal/domain/entity"

	"github.com/google/uuid"
)

// SessionProfileStore is the durable per-session copy of the signed-in
// user's profile.
type SessionProfileStore interface {
	// CurrentUserID returns the user the session is bound to, uuid.Nil if none.
	CurrentUserID(ctx context.Context) (uuid.UUID, error)
	Bind(ctx context.Context, userID uuid.UUID) error
	// Load returns (nil, nil) when nothing is cached.
	Load(ctx context.Context) (*entity.UserProfile, error)
	Store(ctx context.Context, profile *entity.UserProfile) error
	UpdateFavorites(ctx context.Context, favorites []uuid.UUID) error
	Invalidate(ctx context.Context) error
}

// ProfileCache hands out session-scoped stores.
type ProfileCache interface {
	ForSession(sessionID string) SessionProfileStore
}

// ChangeFeed publishes row changes and delivers them to filtered subscribers.
type ChangeFeed interface {
	Publish(ctx context.Context, event entity.ChangeEvent) error
	Subscribe(ctx context.Context, filter entity.ChangeFilter) (FeedSubscription, error)
}

// FeedSubscription must be closed by its owner; Events is closed afterwards.
type FeedSubscription interface {
	Events() <-chan entity.ChangeEvent
	Close() error
}

// BlobStorage stores an object and returns its public URL.
type BlobStorage interface {
	Upload(ctx context.Context, objectName, contentType string, body io.Reader, size int64) (string, error)
}

// NotificationSink receives human readable change notifications.
type NotificationSink interface {
	Notify(ctx context.Context, notification entity.Notification) error
}

// SlotGuard gives a fast exclusive claim on a doctor's slot ahead of the
// database unique index.
type SlotGuard interface {
	Reserve(ctx context.Context, doctorID uuid.UUID, slotAt time.Time) (bool, error)
	Release(ctx context.Context, doctorID uuid.UUID, slotAt time.Time) error
}

// InvitationStore tracks issued doctor invitations so each is redeemed once.
type InvitationStore interface {
	Save(ctx context.Context, tokenID string, doctorID uuid.UUID, ttl time.Duration) error
	// Consume atomically removes the invitation and returns its doctor.
	Consume(ctx context.Context, tokenID string) (uuid.UUID, bool, error)
}

// MirrorQueue holds doctor ids whose directory record still has to be
// brought in line with the profile.
type MirrorQueue interface {
	Enqueue(ctx context.Context, doctorID uuid.UUID) error
	Pending(ctx context.Context, limit int) ([]uuid.UUID, error)
	Done(ctx context.Context, doctorID uuid.UUID) error
}

// TokenStore tracks issued session tokens so they can be revoked before they
// expire. kind is the token type ("access" or "refresh").
type TokenStore interface {
	Save(ctx context.Context, kind string, userID uuid.UUID, tokenID string, ttl time.Duration) error
	Exists(ctx context.Context, kind string, userID uuid.UUID, tokenID string) (bool, error)
	// Revoke reports whether the token was still active.
	Revoke(ctx context.Context, kind string, userID uuid.UUID, tokenID string) (bool, error)
	RevokeAll(ctx context.Context, userID uuid.UUID) error
}
