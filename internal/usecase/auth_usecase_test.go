package usecase

import (
	"context"
	"testing"
	"time"

	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/service"
	"clinic-booking/pkg/jwt"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authFixture struct {
	usecase  AuthUsecase
	profiles *memProfileRepo
	tokens   *memTokenStore
	cache    *memProfileCache
	mirror   *fakeMirror
	jwt      *jwt.JWTService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	log := quietLogger()
	locks := service.NewKeyedMutex(log)
	t.Cleanup(locks.Stop)

	f := &authFixture{
		profiles: newMemProfileRepo(),
		tokens:   newMemTokenStore(),
		cache:    newMemProfileCache(),
		mirror:   &fakeMirror{},
		jwt:      testJWTService(),
	}
	audit := &recordingAudit{}
	sessions := NewSessionSyncUsecase(log, passthroughTransactor{}, f.profiles, newMemFavoriteRepo(), newMemFamilyRepo(),
		newMemAppointmentRepo(), f.cache, staticDoctors{}, f.mirror, audit, &mockBlobStorage{},
		service.NewLocalChangeFeed(log), newMemSlotGuard(), locks, time.Now, time.Second)
	f.usecase = NewAuthUsecase(log, passthroughTransactor{}, f.profiles, f.tokens, sessions, f.mirror, audit, f.jwt)
	return f
}

func TestAuth_RegisterPatientStartsVerified(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, err := f.usecase.RegisterPatient(ctx, &dto.RegisterPatientRequest{
		Email:    "amira@example.com",
		Password: "secret123",
		FullName: "Amira",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.RolePatient, user.Role)
	assert.Equal(t, string(entity.VerificationVerified), user.VerificationStatus)

	stored, ok := f.profiles.get(user.ID)
	require.True(t, ok)
	assert.NotEqual(t, "secret123", stored.Password)

	_, err = f.usecase.RegisterPatient(ctx, &dto.RegisterPatientRequest{
		Email:    "amira@example.com",
		Password: "another1",
		FullName: "Someone",
	})
	assert.ErrorIs(t, err, ErrEmailAlreadyExists)
}

func TestAuth_RegisterDoctorStartsPendingAndInactive(t *testing.T) {
	f := newAuthFixture(t)

	user, err := f.usecase.RegisterDoctor(context.Background(), &dto.RegisterDoctorRequest{
		Email:         "house@example.com",
		Password:      "secret123",
		FullName:      "Gregory House",
		LicenseNumber: "MD-1",
		Specialty:     "Diagnostics",
	})

	require.NoError(t, err)
	assert.Equal(t, string(entity.VerificationPending), user.VerificationStatus)
	mirrored, ok := f.mirror.last()
	require.True(t, ok)
	assert.Equal(t, user.ID, mirrored.ID)
	assert.Equal(t, entity.VerificationPending, mirrored.VerificationStatus)
}

func TestAuth_LoginRefreshLogout(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user, err := f.usecase.RegisterDoctor(ctx, &dto.RegisterDoctorRequest{
		Email:         "house@example.com",
		Password:      "secret123",
		FullName:      "Gregory House",
		LicenseNumber: "MD-1",
		Specialty:     "Diagnostics",
	})
	require.NoError(t, err)

	_, err = f.usecase.Login(ctx, &dto.LoginRequest{Email: "house@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.usecase.Login(ctx, &dto.LoginRequest{Email: "nobody@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	tokens, err := f.usecase.Login(ctx, &dto.LoginRequest{Email: "house@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.SessionID)
	assert.Equal(t, string(DestinationDoctorVerification), tokens.Destination)
	assert.NotNil(t, f.cache.session(tokens.SessionID).cached())

	access, err := f.jwt.ValidateToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, tokens.SessionID, access.SessionID)
	assert.Equal(t, entity.RoleDoctor, access.Role)

	refreshed, err := f.usecase.RefreshToken(ctx, &dto.RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	require.NoError(t, err)
	assert.Equal(t, tokens.SessionID, refreshed.SessionID)

	_, err = f.usecase.RefreshToken(ctx, &dto.RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	assert.ErrorIs(t, err, ErrTokenRevoked)

	_, err = f.usecase.RefreshToken(ctx, &dto.RefreshTokenRequest{RefreshToken: tokens.AccessToken})
	assert.ErrorIs(t, err, ErrInvalidToken)

	claims, err := f.jwt.ValidateToken(refreshed.AccessToken)
	require.NoError(t, err)
	refreshClaims, err := f.jwt.ValidateToken(refreshed.RefreshToken)
	require.NoError(t, err)

	require.NoError(t, f.usecase.Logout(ctx, Session{
		UserID:         user.ID,
		SessionID:      claims.SessionID,
		AccessTokenID:  claims.TokenID,
		RefreshTokenID: refreshClaims.TokenID,
	}))

	active, err := f.tokens.Exists(ctx, string(jwt.AccessToken), user.ID, claims.TokenID)
	require.NoError(t, err)
	assert.False(t, active)
	assert.Nil(t, f.cache.session(tokens.SessionID).cached())
}

func TestAuth_RevokeAllUserTokens(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	other := uuid.New()
	require.NoError(t, f.tokens.Save(ctx, "access", userID, "a", time.Minute))
	require.NoError(t, f.tokens.Save(ctx, "refresh", userID, "b", time.Minute))
	require.NoError(t, f.tokens.Save(ctx, "access", other, "c", time.Minute))

	require.NoError(t, f.usecase.RevokeAllUserTokens(ctx, userID))

	for _, tc := range []struct {
		kind, id string
		user     uuid.UUID
		want     bool
	}{
		{"access", "a", userID, false},
		{"refresh", "b", userID, false},
		{"access", "c", other, true},
	} {
		ok, err := f.tokens.Exists(ctx, tc.kind, tc.user, tc.id)
		require.NoError(t, err)
		assert.Equal(t, tc.want, ok, tc.id)
	}
}

func TestAuth_GetCurrentUser(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.usecase.GetCurrentUser(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)

	f.profiles.setDown(true)
	_, err = f.usecase.GetCurrentUser(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}
