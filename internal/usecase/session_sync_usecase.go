package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/domain/repository"
	"clinic-booking/internal/service"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnsupportedImage = errors.New("unsupported image type, use image/jpeg or image/png")
)

// Destination is the screen a signed-in user is routed to.
type Destination string

const (
	DestinationPatientHome        Destination = "patient_home"
	DestinationDoctorHome         Destination = "doctor_home"
	DestinationDoctorVerification Destination = "doctor_verification"
	DestinationAdminConsole       Destination = "admin_console"
)

// Route picks the destination for a profile's role and verification state.
func Route(profile *entity.UserProfile) Destination {
	switch {
	case profile.IsAdmin():
		return DestinationAdminConsole
	case profile.IsDoctor() && profile.VerificationStatus == entity.VerificationVerified:
		return DestinationDoctorHome
	case profile.IsDoctor():
		return DestinationDoctorVerification
	default:
		return DestinationPatientHome
	}
}

// SyncedProfile is the session's view of the signed-in profile. Stale is set
// when the backend could not be reached and the cached copy was returned;
// SyncErr then holds the cause.
type SyncedProfile struct {
	Profile       *entity.UserProfile
	Destination   Destination
	Stale         bool
	SyncErr       error
	MirrorPending bool
}

type FavoriteResult struct {
	DoctorID          uuid.UUID
	Favorite          bool
	FavoriteDoctorIDs []uuid.UUID
}

// ImageUpload is an image body to be stored in blob storage.
type ImageUpload struct {
	ContentType string
	Body        io.Reader
	Size        int64
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

func (i ImageUpload) objectName(prefix string, owner uuid.UUID) (string, error) {
	ext, ok := imageExtensions[i.ContentType]
	if !ok {
		return "", ErrUnsupportedImage
	}
	return fmt.Sprintf("%s/%s/%s%s", prefix, owner, uuid.New(), ext), nil
}

type SessionSyncUsecase interface {
	// Activate binds the session to userID, dropping anything cached for a
	// different user, then hydrates the profile.
	Activate(ctx context.Context, sessionID string, userID uuid.UUID) (*SyncedProfile, error)
	HydrateProfile(ctx context.Context, sessionID string, userID uuid.UUID) (*SyncedProfile, error)
	Persist(ctx context.Context, sessionID string, userID uuid.UUID, req *dto.UpdateProfileRequest) (*SyncedProfile, error)
	ToggleFavorite(ctx context.Context, sessionID string, userID, doctorID uuid.UUID) (*FavoriteResult, error)
	UploadAvatar(ctx context.Context, sessionID string, userID uuid.UUID, image ImageUpload) (*SyncedProfile, error)
	DeleteAccount(ctx context.Context, sessionID string, userID uuid.UUID) error
	EndSession(ctx context.Context, sessionID string) error
}

// DoctorLookup resolves a doctor from the merged directory.
type DoctorLookup interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*entity.Doctor, error)
}

type sessionSyncUsecase struct {
	log             *logrus.Logger
	transactor      repository.Transactor
	profileRepo     repository.ProfileRepository
	favoriteRepo    repository.FavoriteRepository
	familyRepo      repository.FamilyMemberRepository
	appointmentRepo repository.AppointmentRepository
	cache           repository.ProfileCache
	doctors         DoctorLookup
	mirror          service.DirectoryMirror
	auditService    service.AuditService
	blobStorage     repository.BlobStorage
	changeFeed      repository.ChangeFeed
	slotGuard       repository.SlotGuard
	locks           *service.KeyedMutex
	now             func() time.Time
	fetchTimeout    time.Duration
}

func NewSessionSyncUsecase(
	log *logrus.Logger,
	transactor repository.Transactor,
	profileRepo repository.ProfileRepository,
	favoriteRepo repository.FavoriteRepository,
	familyRepo repository.FamilyMemberRepository,
	appointmentRepo repository.AppointmentRepository,
	cache repository.ProfileCache,
	doctors DoctorLookup,
	mirror service.DirectoryMirror,
	auditService service.AuditService,
	blobStorage repository.BlobStorage,
	changeFeed repository.ChangeFeed,
	slotGuard repository.SlotGuard,
	locks *service.KeyedMutex,
	now func() time.Time,
	fetchTimeout time.Duration,
) SessionSyncUsecase {
	if now == nil {
		now = time.Now
	}
	return &sessionSyncUsecase{
		log:             log,
		transactor:      transactor,
		profileRepo:     profileRepo,
		favoriteRepo:    favoriteRepo,
		familyRepo:      familyRepo,
		appointmentRepo: appointmentRepo,
		cache:           cache,
		doctors:         doctors,
		mirror:          mirror,
		auditService:    auditService,
		blobStorage:     blobStorage,
		changeFeed:      changeFeed,
		slotGuard:       slotGuard,
		locks:           locks,
		now:             now,
		fetchTimeout:    fetchTimeout,
	}
}

// lockSession serializes every cache write of one session.
func (u *sessionSyncUsecase) lockSession(sessionID string) func() {
	return u.locks.Lock("session:" + sessionID)
}

func (u *sessionSyncUsecase) Activate(ctx context.Context, sessionID string, userID uuid.UUID) (*SyncedProfile, error) {
	unlock := u.lockSession(sessionID)
	defer unlock()

	store := u.cache.ForSession(sessionID)
	u.bind(ctx, store, userID)
	return u.hydrate(ctx, store, userID)
}

func (u *sessionSyncUsecase) HydrateProfile(ctx context.Context, sessionID string, userID uuid.UUID) (*SyncedProfile, error) {
	unlock := u.lockSession(sessionID)
	defer unlock()

	store := u.cache.ForSession(sessionID)
	u.bind(ctx, store, userID)
	return u.hydrate(ctx, store, userID)
}

// bind makes sure the store belongs to userID. A store bound to anyone else
// is cleared first.
func (u *sessionSyncUsecase) bind(ctx context.Context, store repository.SessionProfileStore, userID uuid.UUID) {
	bound, err := store.CurrentUserID(ctx)
	if err != nil {
		u.log.Warnf("Failed to read session binding: %+v", err)
	}
	if err == nil && bound == userID {
		return
	}
	if err := store.Invalidate(ctx); err != nil {
		u.log.Warnf("Failed to invalidate session cache: %+v", err)
	}
	if err := store.Bind(ctx, userID); err != nil {
		u.log.Warnf("Failed to bind session cache: %+v", err)
	}
}

func (u *sessionSyncUsecase) hydrate(ctx context.Context, store repository.SessionProfileStore, userID uuid.UUID) (*SyncedProfile, error) {
	profile, err := u.fetch(ctx, userID)
	if err != nil {
		u.log.Warnf("Failed to hydrate profile %s: %+v", userID, err)

		cached, cacheErr := store.Load(ctx)
		if cacheErr != nil {
			u.log.Warnf("Failed to load cached profile: %+v", cacheErr)
		}
		if cached != nil && cached.ID == userID {
			return &SyncedProfile{
				Profile:     cached,
				Destination: Route(cached),
				Stale:       true,
				SyncErr:     err,
			}, nil
		}
		return nil, err
	}

	if profile == nil {
		if err := store.Invalidate(ctx); err != nil {
			u.log.Warnf("Failed to invalidate session cache: %+v", err)
		}
		return nil, ErrProfileNotFound
	}

	u.store(ctx, store, profile)
	return &SyncedProfile{Profile: profile, Destination: Route(profile)}, nil
}

func (u *sessionSyncUsecase) fetch(ctx context.Context, userID uuid.UUID) (*entity.UserProfile, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, u.fetchTimeout)
	defer cancel()

	profile, err := u.profileRepo.FindByID(fetchCtx, userID)
	if err != nil {
		return nil, unavailable(err)
	}
	return profile, nil
}

// store replaces the cached profile wholesale. Cache failures are logged; the
// next hydration repairs them.
func (u *sessionSyncUsecase) store(ctx context.Context, store repository.SessionProfileStore, profile *entity.UserProfile) {
	if err := store.Store(ctx, profile); err != nil {
		u.log.Warnf("Failed to cache profile %s: %+v", profile.ID, err)
	}
}

func (u *sessionSyncUsecase) Persist(ctx context.Context, sessionID string, userID uuid.UUID, req *dto.UpdateProfileRequest) (*SyncedProfile, error) {
	unlock := u.lockSession(sessionID)
	defer unlock()

	store := u.cache.ForSession(sessionID)
	u.bind(ctx, store, userID)

	var before entity.UserProfile
	err := u.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		profile, err := u.profileRepo.FindByID(ctx, userID)
		if err != nil {
			return unavailable(err)
		}
		if profile == nil {
			return ErrProfileNotFound
		}
		before = *profile

		applyProfileUpdate(profile, req)
		if err := u.profileRepo.Update(ctx, profile); err != nil {
			return unavailable(err)
		}

		return u.auditService.LogUpdate(ctx, &userID, entity.AuditActionProfileUpdate, "profile", userID.String(), before, profile)
	})
	if err != nil {
		u.log.Warnf("Failed to persist profile %s: %+v", userID, err)
		return nil, err
	}

	// Re-read so the cache holds what the backend stored, including changes
	// made by other writers.
	synced, err := u.hydrate(ctx, store, userID)
	if err != nil {
		return nil, err
	}

	synced.MirrorPending = u.mirrorProfile(ctx, synced.Profile)
	u.publish(ctx, entity.ChangeEvent{
		Table:    entity.TableProfiles,
		Op:       entity.ChangeUpdate,
		RecordID: userID,
		Keys:     map[string]uuid.UUID{entity.FieldID: userID},
		Summary:  "Profile updated",
	})
	return synced, nil
}

func applyProfileUpdate(p *entity.UserProfile, req *dto.UpdateProfileRequest) {
	if req.FullName != nil {
		p.FullName = *req.FullName
	}
	if req.Phone != nil {
		p.Phone = *req.Phone
	}
	if p.IsPatient() {
		if req.HeightCm != nil {
			p.HeightCm = req.HeightCm
		}
		if req.WeightKg != nil {
			p.WeightKg = req.WeightKg
		}
		if req.Age != nil {
			p.Age = req.Age
		}
		if req.BloodGroup != nil {
			p.BloodGroup = *req.BloodGroup
		}
	}
	if p.IsDoctor() {
		if req.LicenseNumber != nil {
			p.LicenseNumber = *req.LicenseNumber
		}
		if req.Specialty != nil {
			p.Specialty = *req.Specialty
		}
		if req.Hospital != nil {
			p.Hospital = *req.Hospital
		}
		if req.YearsExperience != nil {
			p.YearsExperience = *req.YearsExperience
		}
	}
}

// mirrorProfile reports whether the directory write was deferred.
func (u *sessionSyncUsecase) mirrorProfile(ctx context.Context, profile *entity.UserProfile) bool {
	if profile == nil || !profile.IsDoctor() {
		return false
	}
	return u.mirror.Mirror(ctx, profile) != nil
}

func (u *sessionSyncUsecase) ToggleFavorite(ctx context.Context, sessionID string, userID, doctorID uuid.UUID) (*FavoriteResult, error) {
	if _, err := u.doctors.GetDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	unlock := u.lockSession(sessionID)
	defer unlock()

	store := u.cache.ForSession(sessionID)
	u.bind(ctx, store, userID)

	favorite, err := u.favoriteRepo.Toggle(ctx, userID, doctorID)
	if err != nil {
		u.log.Warnf("Failed to toggle favorite doctor: %+v", err)
		return nil, unavailable(err)
	}

	ids, err := u.favoriteRepo.FindDoctorIDs(ctx, userID)
	if err != nil {
		u.log.Warnf("Failed to re-read favorite doctors, dropping cached profile: %+v", err)
		// The toggle is committed; force the next read to go to the backend.
		if err := store.Invalidate(ctx); err != nil {
			u.log.Warnf("Failed to invalidate session cache: %+v", err)
		}
		if err := store.Bind(ctx, userID); err != nil {
			u.log.Warnf("Failed to bind session cache: %+v", err)
		}
		return &FavoriteResult{DoctorID: doctorID, Favorite: favorite}, nil
	}

	if err := store.UpdateFavorites(ctx, ids); err != nil {
		u.log.Warnf("Failed to update cached favorites: %+v", err)
	}

	return &FavoriteResult{DoctorID: doctorID, Favorite: favorite, FavoriteDoctorIDs: ids}, nil
}

func (u *sessionSyncUsecase) UploadAvatar(ctx context.Context, sessionID string, userID uuid.UUID, image ImageUpload) (*SyncedProfile, error) {
	objectName, err := image.objectName("avatars", userID)
	if err != nil {
		return nil, err
	}

	url, err := u.blobStorage.Upload(ctx, objectName, image.ContentType, image.Body, image.Size)
	if err != nil {
		u.log.Warnf("Failed to upload avatar for %s: %+v", userID, err)
		return nil, unavailable(err)
	}

	unlock := u.lockSession(sessionID)
	defer unlock()

	store := u.cache.ForSession(sessionID)
	u.bind(ctx, store, userID)

	profile, err := u.profileRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, unavailable(err)
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}

	profile.ImageURL = url
	if err := u.profileRepo.Update(ctx, profile); err != nil {
		u.log.Warnf("Failed to store avatar url for %s: %+v", userID, err)
		return nil, unavailable(err)
	}

	u.store(ctx, store, profile)
	return &SyncedProfile{
		Profile:       profile,
		Destination:   Route(profile),
		MirrorPending: u.mirrorProfile(ctx, profile),
	}, nil
}

func (u *sessionSyncUsecase) DeleteAccount(ctx context.Context, sessionID string, userID uuid.UUID) error {
	unlock := u.lockSession(sessionID)
	defer unlock()

	var (
		deleted   *entity.UserProfile
		booked    []entity.Appointment
		cancelled []entity.Appointment
	)
	err := u.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		profile, err := u.profileRepo.FindByID(ctx, userID)
		if err != nil {
			return unavailable(err)
		}
		if profile == nil {
			return ErrProfileNotFound
		}

		booked, err = u.appointmentRepo.FindByPatientUserID(ctx, userID)
		if err != nil {
			return unavailable(err)
		}
		if profile.IsDoctor() {
			if cancelled, err = u.cancelDoctorAppointments(ctx, userID); err != nil {
				return err
			}
		}

		if err := u.appointmentRepo.DeleteByPatientUserID(ctx, userID); err != nil {
			return unavailable(err)
		}
		if err := u.familyRepo.DeleteByOwnerID(ctx, userID); err != nil {
			return unavailable(err)
		}
		if err := u.favoriteRepo.DeleteByUserID(ctx, userID); err != nil {
			return unavailable(err)
		}
		if err := u.auditService.LogDelete(ctx, &userID, entity.AuditActionAccountDelete, "profile", userID.String(), profile); err != nil {
			return err
		}

		rows, err := u.profileRepo.Delete(ctx, userID)
		if err != nil {
			return unavailable(err)
		}
		if rows == 0 {
			return ErrProfileNotFound
		}
		deleted = profile
		return nil
	})
	if err != nil {
		u.log.Warnf("Failed to delete account %s: %+v", userID, err)
		return err
	}

	if deleted.IsDoctor() {
		// Deferred removals are retried by the mirror service.
		_ = u.mirror.Remove(ctx, userID)
	}

	for i := range booked {
		u.releaseAppointment(ctx, &booked[i], entity.ChangeDelete, "Appointment removed with the patient's account")
	}
	for i := range cancelled {
		u.releaseAppointment(ctx, &cancelled[i], entity.ChangeUpdate,
			fmt.Sprintf("Appointment on %s at %s was cancelled, the doctor left the clinic", cancelled[i].SlotDate, cancelled[i].SlotTime))
	}

	if err := u.cache.ForSession(sessionID).Invalidate(ctx); err != nil {
		u.log.Warnf("Failed to invalidate session cache: %+v", err)
	}

	u.publish(ctx, entity.ChangeEvent{
		Table:    entity.TableProfiles,
		Op:       entity.ChangeDelete,
		RecordID: userID,
		Keys:     map[string]uuid.UUID{entity.FieldID: userID},
		Summary:  "Account deleted",
	})
	return nil
}

// cancelDoctorAppointments cancels the doctor's appointments that have not
// happened yet. Past ones stay as history.
func (u *sessionSyncUsecase) cancelDoctorAppointments(ctx context.Context, doctorID uuid.UUID) ([]entity.Appointment, error) {
	appointments, err := u.appointmentRepo.FindByDoctorID(ctx, doctorID)
	if err != nil {
		return nil, unavailable(err)
	}

	now := u.now().UTC()
	var cancelled []entity.Appointment
	for _, a := range appointments {
		if a.SlotAt.Before(now) {
			continue
		}
		rows, err := u.appointmentRepo.Cancel(ctx, a.ID, now)
		if err != nil {
			return nil, unavailable(err)
		}
		if rows == 0 {
			continue
		}
		a.Cancel(now)
		cancelled = append(cancelled, a)
	}
	return cancelled, nil
}

// releaseAppointment frees the slot guard of an appointment that no longer
// holds its slot and tells both sides' watchers.
func (u *sessionSyncUsecase) releaseAppointment(ctx context.Context, a *entity.Appointment, op entity.ChangeOp, summary string) {
	if err := u.slotGuard.Release(context.WithoutCancel(ctx), a.DoctorID, a.SlotAt); err != nil {
		u.log.Warnf("Failed to release slot guard for appointment %s: %+v", a.ID, err)
	}
	u.publish(ctx, entity.ChangeEvent{
		Table:    entity.TableAppointments,
		Op:       op,
		RecordID: a.ID,
		Keys: map[string]uuid.UUID{
			entity.FieldDoctorID: a.DoctorID,
			entity.FieldUserID:   a.PatientUserID,
		},
		Summary: summary,
	})
}

func (u *sessionSyncUsecase) EndSession(ctx context.Context, sessionID string) error {
	unlock := u.lockSession(sessionID)
	defer func() {
		unlock()
		u.locks.Forget("session:" + sessionID)
	}()

	if err := u.cache.ForSession(sessionID).Invalidate(ctx); err != nil {
		u.log.Warnf("Failed to invalidate session cache: %+v", err)
		return err
	}
	return nil
}

func (u *sessionSyncUsecase) publish(ctx context.Context, event entity.ChangeEvent) {
	if err := u.changeFeed.Publish(ctx, event); err != nil {
		u.log.Warnf("Failed to publish %s change: %+v", event.Table, err)
	}
}
