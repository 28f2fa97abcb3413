package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"clinic-booking/internal/domain/entity"
	domainRepo "clinic-booking/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrMirrorDeferred is returned by Mirror when the directory write failed and
// the doctor was queued for a later retry.
var ErrMirrorDeferred = errors.New("directory mirror deferred")

const (
	RedisMirrorPendingKey = "directory:mirror:pending"

	// Timeout for individual mirror writes
	mirrorWriteTimeout = 5 * time.Second

	// Batch size for startup sync and retry passes
	syncBatchSize = 500

	// Concurrent directory writes per batch
	mirrorConcurrency = 8
)

// DirectoryMirror keeps the public directory record of a doctor in line with
// the doctor's profile.
type DirectoryMirror interface {
	Mirror(ctx context.Context, profile *entity.UserProfile) error
	Remove(ctx context.Context, doctorID uuid.UUID) error
}

// DirectoryMirrorService writes doctor profiles into the directory. Failed
// writes are queued in Redis and retried on a ticker and on startup.
//
// Lock Ordering:
// 1. Acquire doctor mutex FIRST
// 2. Then perform DB/Redis operations
type DirectoryMirrorService struct {
	profileRepo domainRepo.ProfileRepository
	doctorRepo  domainRepo.DoctorRepository
	queue       domainRepo.MirrorQueue
	locks       *KeyedMutex
	log         *logrus.Logger
	interval    time.Duration

	// Graceful shutdown
	stopChan chan struct{}
	wg       sync.WaitGroup
	started  atomic.Bool
	stopped  atomic.Bool
}

func NewDirectoryMirrorService(
	profileRepo domainRepo.ProfileRepository,
	doctorRepo domainRepo.DoctorRepository,
	queue domainRepo.MirrorQueue,
	locks *KeyedMutex,
	log *logrus.Logger,
	interval time.Duration,
) *DirectoryMirrorService {
	return &DirectoryMirrorService{
		profileRepo: profileRepo,
		doctorRepo:  doctorRepo,
		queue:       queue,
		locks:       locks,
		log:         log,
		interval:    interval,
		stopChan:    make(chan struct{}),
	}
}

// Start launches the retry loop. Call Stop() during graceful shutdown.
func (s *DirectoryMirrorService) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.wg.Add(1)
	go s.retryLoop()
}

// Stop gracefully shuts down the service.
// Safe to call multiple times.
func (s *DirectoryMirrorService) Stop() {
	if s.stopped.CompareAndSwap(false, true) {
		close(s.stopChan)
		s.wg.Wait()
		s.log.Info("DirectoryMirrorService stopped")
	}
}

// Mirror writes the directory record for a doctor profile. Non-doctor
// profiles are ignored.
func (s *DirectoryMirrorService) Mirror(ctx context.Context, profile *entity.UserProfile) error {
	if profile == nil || !profile.IsDoctor() {
		return nil
	}

	unlock := s.locks.Lock(mirrorLockKey(profile.ID))
	defer unlock()

	if err := s.write(ctx, profile); err != nil {
		s.log.Warnf("Failed to mirror doctor %s to directory: %+v", profile.ID, err)
		s.queueRetry(ctx, profile.ID)
		return fmt.Errorf("%w: %v", ErrMirrorDeferred, err)
	}
	return nil
}

// Remove deletes the directory record of a doctor whose account is gone.
func (s *DirectoryMirrorService) Remove(ctx context.Context, doctorID uuid.UUID) error {
	unlock := s.locks.Lock(mirrorLockKey(doctorID))
	defer func() {
		unlock()
		s.locks.Forget(mirrorLockKey(doctorID))
	}()

	if err := s.doctorRepo.Delete(ctx, doctorID); err != nil {
		s.log.Warnf("Failed to remove doctor %s from directory: %+v", doctorID, err)
		s.queueRetry(ctx, doctorID)
		return fmt.Errorf("%w: %v", ErrMirrorDeferred, err)
	}
	return nil
}

// SyncOnStartup drains the retry queue and re-mirrors every verified doctor.
// Should be called BEFORE accepting traffic.
func (s *DirectoryMirrorService) SyncOnStartup(ctx context.Context) error {
	s.log.Info("Starting directory re-sync from profiles...")
	startTime := time.Now()

	retried, err := s.RetryPending(ctx)
	if err != nil {
		return err
	}

	doctors, err := s.profileRepo.FindByRoleAndStatus(ctx, entity.RoleDoctor, entity.VerificationVerified)
	if err != nil {
		s.log.Errorf("Failed to query verified doctors: %+v", err)
		return fmt.Errorf("query verified doctors: %w", err)
	}

	for offset := 0; offset < len(doctors); offset += syncBatchSize {
		end := offset + syncBatchSize
		if end > len(doctors) {
			end = len(doctors)
		}
		batch := doctors[offset:end]

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(mirrorConcurrency)
		for i := range batch {
			profile := &batch[i]
			g.Go(func() error {
				// Failures are queued by Mirror and do not abort the batch.
				_ = s.Mirror(gctx, profile)
				return nil
			})
		}
		_ = g.Wait()

		s.log.Debugf("Synced batch: offset=%d, count=%d", offset, len(batch))

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	s.log.Infof("Directory re-sync completed: %d retried, %d doctors mirrored in %v", retried, len(doctors), time.Since(startTime))
	return nil
}

// RetryPending re-applies queued doctors and returns how many were cleared.
func (s *DirectoryMirrorService) RetryPending(ctx context.Context) (int, error) {
	ids, err := s.queue.Pending(ctx, syncBatchSize)
	if err != nil {
		s.log.Warnf("Failed to read mirror queue: %+v", err)
		return 0, fmt.Errorf("read mirror queue: %w", err)
	}

	var cleared int
	for _, id := range ids {
		if err := s.retryOne(ctx, id); err != nil {
			s.log.Warnf("Failed to retry mirror for doctor %s: %+v", id, err)
			continue
		}
		if err := s.queue.Done(ctx, id); err != nil {
			s.log.Warnf("Failed to clear mirror queue entry %s: %+v", id, err)
			continue
		}
		cleared++
	}

	if cleared > 0 {
		s.log.Infof("Directory mirror retry cleared %d of %d pending doctors", cleared, len(ids))
	}
	return cleared, nil
}

func (s *DirectoryMirrorService) retryOne(ctx context.Context, id uuid.UUID) error {
	unlock := s.locks.Lock(mirrorLockKey(id))
	defer unlock()

	profile, err := s.profileRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if profile == nil || !profile.IsDoctor() {
		return s.doctorRepo.Delete(ctx, id)
	}
	return s.write(ctx, profile)
}

func (s *DirectoryMirrorService) write(ctx context.Context, profile *entity.UserProfile) error {
	ctx, cancel := context.WithTimeout(ctx, mirrorWriteTimeout)
	defer cancel()

	var doctor entity.Doctor
	doctor.MirrorFromProfile(profile)
	return s.doctorRepo.Upsert(ctx, &doctor)
}

func (s *DirectoryMirrorService) queueRetry(ctx context.Context, id uuid.UUID) {
	if err := s.queue.Enqueue(context.WithoutCancel(ctx), id); err != nil {
		s.log.Errorf("Failed to queue directory mirror for doctor %s, directory may diverge: %+v", id, err)
	}
}

func (s *DirectoryMirrorService) retryLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			s.log.Debug("Directory mirror retry goroutine stopping")
			return
		case <-ticker.C:
			_, _ = s.RetryPending(context.Background())
		}
	}
}

func mirrorLockKey(id uuid.UUID) string {
	return "mirror:" + id.String()
}

// RedisMirrorQueue is a Redis set of doctor ids awaiting a directory write.
type RedisMirrorQueue struct {
	client *redis.Client
}

func NewRedisMirrorQueue(client *redis.Client) *RedisMirrorQueue {
	return &RedisMirrorQueue{client: client}
}

func (q *RedisMirrorQueue) Enqueue(ctx context.Context, doctorID uuid.UUID) error {
	return q.client.SAdd(ctx, RedisMirrorPendingKey, doctorID.String()).Err()
}

func (q *RedisMirrorQueue) Pending(ctx context.Context, limit int) ([]uuid.UUID, error) {
	members, err := q.client.SRandMemberN(ctx, RedisMirrorPendingKey, int64(limit)).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			q.client.SRem(ctx, RedisMirrorPendingKey, m)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (q *RedisMirrorQueue) Done(ctx context.Context, doctorID uuid.UUID) error {
	return q.client.SRem(ctx, RedisMirrorPendingKey, doctorID.String()).Err()
}
