package usecase

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type sessionFixture struct {
	usecase      SessionSyncUsecase
	profiles     *memProfileRepo
	favorites    *memFavoriteRepo
	family       *memFamilyRepo
	appointments *memAppointmentRepo
	cache        *memProfileCache
	mirror       *fakeMirror
	audit        *recordingAudit
	blob         *mockBlobStorage
	feed         *service.LocalChangeFeed
	slots        *memSlotGuard
	clock        *fakeClock
	doctor       entity.Doctor
}

func newSessionFixture(t *testing.T, profiles ...*entity.UserProfile) *sessionFixture {
	t.Helper()
	log := quietLogger()
	locks := service.NewKeyedMutex(log)
	t.Cleanup(locks.Stop)

	f := &sessionFixture{
		profiles:     newMemProfileRepo(profiles...),
		favorites:    newMemFavoriteRepo(),
		family:       newMemFamilyRepo(),
		appointments: newMemAppointmentRepo(),
		cache:        newMemProfileCache(),
		mirror:       &fakeMirror{},
		audit:        &recordingAudit{},
		blob:         &mockBlobStorage{},
		feed:         service.NewLocalChangeFeed(log),
		slots:        newMemSlotGuard(),
		clock:        &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)},
		doctor:       doctor("Dr. Omar Haddad", "Pediatrics"),
	}
	f.usecase = NewSessionSyncUsecase(log, passthroughTransactor{}, f.profiles, f.favorites, f.family, f.appointments,
		f.cache, staticDoctors{f.doctor.ID: f.doctor}, f.mirror, f.audit, f.blob, f.feed, f.slots, locks,
		f.clock.Now, time.Second)
	return f
}

func patientProfile(name string) *entity.UserProfile {
	return &entity.UserProfile{
		ID:                 uuid.New(),
		Email:              name + "@example.com",
		FullName:           name,
		Role:               entity.RolePatient,
		VerificationStatus: entity.VerificationVerified,
	}
}

func doctorProfile(name string, status entity.VerificationStatus) *entity.UserProfile {
	return &entity.UserProfile{
		ID:                 uuid.New(),
		Email:              name + "@example.com",
		FullName:           name,
		Role:               entity.RoleDoctor,
		VerificationStatus: status,
		Specialty:          "Cardiology",
	}
}

func TestRoute(t *testing.T) {
	tests := []struct {
		name    string
		profile *entity.UserProfile
		want    Destination
	}{
		{"patient", patientProfile("pat"), DestinationPatientHome},
		{"verified doctor", doctorProfile("doc", entity.VerificationVerified), DestinationDoctorHome},
		{"pending doctor", doctorProfile("doc", entity.VerificationPending), DestinationDoctorVerification},
		{"rejected doctor", doctorProfile("doc", entity.VerificationRejected), DestinationDoctorVerification},
		{"admin", &entity.UserProfile{Role: entity.RoleAdmin, VerificationStatus: entity.VerificationNone}, DestinationAdminConsole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Route(tt.profile))
		})
	}
}

func TestSessionSync_ActivateCachesProfile(t *testing.T) {
	patient := patientProfile("amira")
	f := newSessionFixture(t, patient)

	synced, err := f.usecase.Activate(context.Background(), "s1", patient.ID)

	require.NoError(t, err)
	assert.False(t, synced.Stale)
	assert.Equal(t, DestinationPatientHome, synced.Destination)
	cached := f.cache.session("s1").cached()
	require.NotNil(t, cached)
	assert.Equal(t, patient.ID, cached.ID)
}

func TestSessionSync_ActivateDropsOtherUsersCache(t *testing.T) {
	first := patientProfile("first")
	second := patientProfile("second")
	f := newSessionFixture(t, first, second)
	ctx := context.Background()

	_, err := f.usecase.Activate(ctx, "shared", first.ID)
	require.NoError(t, err)

	// Backend down: the first user's copy must not leak into the new session.
	f.profiles.setDown(true)
	_, err = f.usecase.Activate(ctx, "shared", second.ID)

	assert.ErrorIs(t, err, ErrBackendUnavailable)
	store := f.cache.session("shared")
	assert.Nil(t, store.cached())
	bound, _ := store.CurrentUserID(ctx)
	assert.Equal(t, second.ID, bound)
}

func TestSessionSync_HydrateServesStaleCacheWhenBackendDown(t *testing.T) {
	patient := patientProfile("amira")
	f := newSessionFixture(t, patient)
	ctx := context.Background()

	_, err := f.usecase.Activate(ctx, "s1", patient.ID)
	require.NoError(t, err)

	f.profiles.setDown(true)
	synced, err := f.usecase.HydrateProfile(ctx, "s1", patient.ID)

	require.NoError(t, err)
	assert.True(t, synced.Stale)
	assert.True(t, errors.Is(synced.SyncErr, ErrBackendUnavailable))
	assert.Equal(t, patient.FullName, synced.Profile.FullName)
}

func TestSessionSync_HydrateWithoutCacheFails(t *testing.T) {
	patient := patientProfile("amira")
	f := newSessionFixture(t, patient)
	f.profiles.setDown(true)

	_, err := f.usecase.HydrateProfile(context.Background(), "s1", patient.ID)

	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestSessionSync_HydrateMissingProfileClearsCache(t *testing.T) {
	patient := patientProfile("amira")
	f := newSessionFixture(t, patient)
	ctx := context.Background()

	_, err := f.usecase.Activate(ctx, "s1", patient.ID)
	require.NoError(t, err)
	_, err = f.profiles.Delete(ctx, patient.ID)
	require.NoError(t, err)

	_, err = f.usecase.HydrateProfile(ctx, "s1", patient.ID)

	assert.ErrorIs(t, err, ErrProfileNotFound)
	assert.Nil(t, f.cache.session("s1").cached())
}

func TestSessionSync_PersistWritesThroughAndPublishes(t *testing.T) {
	patient := patientProfile("amira")
	f := newSessionFixture(t, patient)
	ctx := context.Background()

	sub, err := f.feed.Subscribe(ctx, entity.ChangeFilter{Table: entity.TableProfiles, Field: entity.FieldID, Value: patient.ID})
	require.NoError(t, err)
	defer sub.Close()

	name := "Amira Saleh"
	height := 165.5
	specialty := "ignored for patients"
	synced, err := f.usecase.Persist(ctx, "s1", patient.ID, &dto.UpdateProfileRequest{
		FullName:  &name,
		HeightCm:  &height,
		Specialty: &specialty,
	})

	require.NoError(t, err)
	assert.Equal(t, name, synced.Profile.FullName)
	assert.Equal(t, "", synced.Profile.Specialty)
	stored, _ := f.profiles.get(patient.ID)
	assert.Equal(t, name, stored.FullName)
	require.NotNil(t, stored.HeightCm)
	assert.Equal(t, height, *stored.HeightCm)
	assert.Equal(t, name, f.cache.session("s1").cached().FullName)
	assert.True(t, f.audit.has(entity.AuditActionProfileUpdate))
	_, mirrored := f.mirror.last()
	assert.False(t, mirrored)

	select {
	case event := <-sub.Events():
		assert.Equal(t, entity.ChangeUpdate, event.Op)
	case <-time.After(time.Second):
		t.Fatal("expected a profile change event")
	}
}

func TestSessionSync_PersistDoctorReportsDeferredMirror(t *testing.T) {
	doc := doctorProfile("house", entity.VerificationVerified)
	f := newSessionFixture(t, doc)
	f.mirror.setDown(true)

	hospital := "General Hospital"
	synced, err := f.usecase.Persist(context.Background(), "s1", doc.ID, &dto.UpdateProfileRequest{Hospital: &hospital})

	require.NoError(t, err)
	assert.True(t, synced.MirrorPending)
	assert.Equal(t, hospital, synced.Profile.Hospital)
}

func TestSessionSync_PersistFailsWhenBackendDown(t *testing.T) {
	patient := patientProfile("amira")
	f := newSessionFixture(t, patient)
	f.profiles.setDown(true)

	name := "New Name"
	_, err := f.usecase.Persist(context.Background(), "s1", patient.ID, &dto.UpdateProfileRequest{FullName: &name})

	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestSessionSync_ToggleFavoriteTwiceRestoresState(t *testing.T) {
	patient := patientProfile("amira")
	f := newSessionFixture(t, patient)
	ctx := context.Background()
	_, err := f.usecase.Activate(ctx, "s1", patient.ID)
	require.NoError(t, err)

	first, err := f.usecase.ToggleFavorite(ctx, "s1", patient.ID, f.doctor.ID)
	require.NoError(t, err)
	assert.True(t, first.Favorite)
	assert.Equal(t, []uuid.UUID{f.doctor.ID}, first.FavoriteDoctorIDs)
	assert.Equal(t, []uuid.UUID{f.doctor.ID}, f.cache.session("s1").cached().FavoriteDoctorIDs)

	second, err := f.usecase.ToggleFavorite(ctx, "s1", patient.ID, f.doctor.ID)
	require.NoError(t, err)
	assert.False(t, second.Favorite)
	assert.Empty(t, second.FavoriteDoctorIDs)
	assert.Empty(t, f.cache.session("s1").cached().FavoriteDoctorIDs)
}

func TestSessionSync_ToggleFavoriteUnknownDoctor(t *testing.T) {
	patient := patientProfile("amira")
	f := newSessionFixture(t, patient)

	_, err := f.usecase.ToggleFavorite(context.Background(), "s1", patient.ID, uuid.New())

	assert.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestSessionSync_UploadAvatar(t *testing.T) {
	patient := patientProfile("amira")
	f := newSessionFixture(t, patient)
	ctx := context.Background()

	_, err := f.usecase.UploadAvatar(ctx, "s1", patient.ID, ImageUpload{ContentType: "image/gif", Body: bytes.NewReader(nil)})
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	body := bytes.NewReader([]byte("png"))
	f.blob.On("Upload", mock.Anything, mock.MatchedBy(func(name string) bool {
		return len(name) > len("avatars/") && name[:len("avatars/")] == "avatars/"
	}), "image/png", body, int64(3)).Return("http://cdn.local/avatars/a.png", nil).Once()

	synced, err := f.usecase.UploadAvatar(ctx, "s1", patient.ID, ImageUpload{ContentType: "image/png", Body: body, Size: 3})

	require.NoError(t, err)
	assert.Equal(t, "http://cdn.local/avatars/a.png", synced.Profile.ImageURL)
	stored, _ := f.profiles.get(patient.ID)
	assert.Equal(t, "http://cdn.local/avatars/a.png", stored.ImageURL)
	f.blob.AssertExpectations(t)
}

func TestSessionSync_DeleteAccountRemovesEverything(t *testing.T) {
	doc := doctorProfile("house", entity.VerificationVerified)
	f := newSessionFixture(t, doc)
	ctx := context.Background()
	_, err := f.usecase.Activate(ctx, "s1", doc.ID)
	require.NoError(t, err)
	require.NoError(t, f.family.Create(ctx, &entity.FamilyMember{OwnerID: doc.ID, Name: "Kid", Relation: "child"}))

	require.NoError(t, f.usecase.DeleteAccount(ctx, "s1", doc.ID))

	_, ok := f.profiles.get(doc.ID)
	assert.False(t, ok)
	members, _ := f.family.FindByOwnerID(ctx, doc.ID)
	assert.Empty(t, members)
	assert.Equal(t, []uuid.UUID{doc.ID}, f.mirror.removed)
	assert.Nil(t, f.cache.session("s1").cached())
	assert.True(t, f.audit.has(entity.AuditActionAccountDelete))

	assert.ErrorIs(t, f.usecase.DeleteAccount(ctx, "s1", doc.ID), ErrProfileNotFound)
}

func TestSessionSync_EndSessionClearsCache(t *testing.T) {
	patient := patientProfile("amira")
	f := newSessionFixture(t, patient)
	ctx := context.Background()
	_, err := f.usecase.Activate(ctx, "s1", patient.ID)
	require.NoError(t, err)

	require.NoError(t, f.usecase.EndSession(ctx, "s1"))

	store := f.cache.session("s1")
	assert.Nil(t, store.cached())
	bound, _ := store.CurrentUserID(ctx)
	assert.Equal(t, uuid.Nil, bound)
}

// sessionSyncOver builds a SessionSync sharing the scheduler fixture's stores.
func sessionSyncOver(t *testing.T, af *appointmentFixture) SessionSyncUsecase {
	t.Helper()
	log := quietLogger()
	locks := service.NewKeyedMutex(log)
	t.Cleanup(locks.Stop)
	return NewSessionSyncUsecase(log, passthroughTransactor{}, af.profiles, newMemFavoriteRepo(), af.family, af.appointments,
		newMemProfileCache(), staticDoctors{af.doctor.ID: af.doctor}, &fakeMirror{}, af.audit, &mockBlobStorage{},
		af.feed, af.slots, locks, af.clock.Now, time.Second)
}

func TestSessionSync_DeleteAccountFreesBookedSlots(t *testing.T) {
	af := newAppointmentFixture(t)
	sessions := sessionSyncOver(t, af)
	ctx := context.Background()

	booked := af.book(t, "2026-03-12", "10:00")

	sub, err := af.feed.Subscribe(ctx, entity.ChangeFilter{
		Table: entity.TableAppointments, Field: entity.FieldDoctorID, Value: af.doctor.ID,
	})
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, sessions.DeleteAccount(ctx, "s1", af.patient.ID))

	select {
	case event := <-sub.Events():
		assert.Equal(t, entity.ChangeDelete, event.Op)
		assert.Equal(t, booked.ID, event.RecordID)
	case <-time.After(time.Second):
		t.Fatal("doctor scope got no change event")
	}

	other := patientProfile("bilal")
	require.NoError(t, af.profiles.Create(ctx, other))
	rebooked, err := af.usecase.Book(ctx, BookRequest{
		DoctorID:      af.doctor.ID,
		PatientUserID: other.ID,
		Slot:          entity.Slot{Date: "2026-03-12", Time: "10:00"},
	})
	require.NoError(t, err)
	assert.Equal(t, other.FullName, rebooked.PatientName)
}

func TestSessionSync_DeleteDoctorCancelsUpcomingAppointments(t *testing.T) {
	af := newAppointmentFixture(t)
	sessions := sessionSyncOver(t, af)
	ctx := context.Background()

	doc := doctorProfile("haddad", entity.VerificationVerified)
	doc.ID = af.doctor.ID
	require.NoError(t, af.profiles.Create(ctx, doc))

	upcoming := af.book(t, "2026-03-12", "10:00")
	past := &entity.Appointment{
		DoctorID:      af.doctor.ID,
		PatientUserID: af.patient.ID,
		PatientName:   af.patient.FullName,
		SlotDate:      "2026-03-01",
		SlotTime:      "09:00",
		SlotAt:        time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Status:        entity.AppointmentUpcoming,
	}
	require.NoError(t, af.appointments.Create(ctx, past))

	require.NoError(t, sessions.DeleteAccount(ctx, "s1", doc.ID))

	stored, err := af.appointments.FindByID(ctx, upcoming.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, entity.AppointmentCancelled, stored.Status)

	kept, err := af.appointments.FindByID(ctx, past.ID)
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Equal(t, entity.AppointmentUpcoming, kept.Status)

	lists, err := af.usecase.ListForPatient(ctx, af.patient.ID)
	require.NoError(t, err)
	assert.Empty(t, lists.Upcoming)
	require.Len(t, lists.Past, 1)
	assert.Equal(t, past.ID, lists.Past[0].ID)

	af.slots.mu.Lock()
	assert.Empty(t, af.slots.slots)
	af.slots.mu.Unlock()
}
