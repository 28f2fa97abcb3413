package usecase

import (
	"context"
	"errors"

	"clinic-booking/internal/converter"
	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/domain/repository"
	"clinic-booking/internal/service"
	"clinic-booking/pkg/jwt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrUserNotFound       = errors.New("user not found")
)

// Session is the identity behind an authenticated request.
type Session struct {
	UserID         uuid.UUID
	SessionID      string
	AccessTokenID  string
	RefreshTokenID string
}

type AuthUsecase interface {
	RegisterPatient(ctx context.Context, req *dto.RegisterPatientRequest) (*dto.UserResponse, error)
	RegisterDoctor(ctx context.Context, req *dto.RegisterDoctorRequest) (*dto.UserResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	Logout(ctx context.Context, session Session) error
	RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenResponse, error)
	GetCurrentUser(ctx context.Context, userID uuid.UUID) (*dto.UserResponse, error)
	// RevokeAllUserTokens signs the user out everywhere.
	RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error
}

type authUsecase struct {
	log          *logrus.Logger
	transactor   repository.Transactor
	profileRepo  repository.ProfileRepository
	tokenStore   repository.TokenStore
	sessionSync  SessionSyncUsecase
	mirror       service.DirectoryMirror
	auditService service.AuditService
	jwtService   *jwt.JWTService
}

func NewAuthUsecase(
	log *logrus.Logger,
	transactor repository.Transactor,
	profileRepo repository.ProfileRepository,
	tokenStore repository.TokenStore,
	sessionSync SessionSyncUsecase,
	mirror service.DirectoryMirror,
	auditService service.AuditService,
	jwtService *jwt.JWTService,
) AuthUsecase {
	return &authUsecase{
		log:          log,
		transactor:   transactor,
		profileRepo:  profileRepo,
		tokenStore:   tokenStore,
		sessionSync:  sessionSync,
		mirror:       mirror,
		auditService: auditService,
		jwtService:   jwtService,
	}
}

func (u *authUsecase) RegisterPatient(ctx context.Context, req *dto.RegisterPatientRequest) (*dto.UserResponse, error) {
	profile := &entity.UserProfile{
		Email:      req.Email,
		FullName:   req.FullName,
		Phone:      req.Phone,
		Role:       entity.RolePatient,
		HeightCm:   req.HeightCm,
		WeightKg:   req.WeightKg,
		Age:        req.Age,
		BloodGroup: req.BloodGroup,
	}

	if err := u.register(ctx, profile, req.Password); err != nil {
		return nil, err
	}
	return converter.UserToResponse(profile), nil
}

func (u *authUsecase) RegisterDoctor(ctx context.Context, req *dto.RegisterDoctorRequest) (*dto.UserResponse, error) {
	profile := &entity.UserProfile{
		Email:           req.Email,
		FullName:        req.FullName,
		Phone:           req.Phone,
		Role:            entity.RoleDoctor,
		LicenseNumber:   req.LicenseNumber,
		Specialty:       req.Specialty,
		Hospital:        req.Hospital,
		YearsExperience: req.YearsExperience,
	}

	if err := u.register(ctx, profile, req.Password); err != nil {
		return nil, err
	}

	// The inactive directory record lets the admin console see the doctor.
	_ = u.mirror.Mirror(ctx, profile)

	return converter.UserToResponse(profile), nil
}

func (u *authUsecase) register(ctx context.Context, profile *entity.UserProfile, password string) error {
	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		u.log.Warnf("Failed to hash password: %+v", err)
		return err
	}
	profile.Password = string(hashedPassword)
	profile.VerificationStatus = entity.InitialVerificationStatus(profile.Role)

	return u.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := u.profileRepo.Create(ctx, profile); err != nil {
			if isDuplicateKeyError(err, "email") {
				return ErrEmailAlreadyExists
			}
			u.log.Warnf("Failed to create profile: %+v", err)
			return unavailable(err)
		}
		return u.auditService.LogCreate(ctx, &profile.ID, entity.AuditActionUserRegister, "profile", profile.ID.String(),
			entity.JSON{"role": profile.Role, "verification_status": profile.VerificationStatus},
		)
	})
}

func (u *authUsecase) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	// Find user by email (read-only, no transaction needed)
	profile, err := u.profileRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		u.log.Warnf("Failed to find user by email: %+v", err)
		return nil, unavailable(err)
	}
	if profile == nil {
		return nil, ErrInvalidCredentials
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(profile.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	identity := jwt.Identity{
		UserID:    profile.ID,
		Email:     profile.Email,
		Role:      profile.Role,
		SessionID: uuid.New().String(),
	}

	tokens, err := u.issueTokens(ctx, identity)
	if err != nil {
		return nil, err
	}

	synced, err := u.sessionSync.Activate(ctx, identity.SessionID, profile.ID)
	if err != nil {
		u.log.Warnf("Failed to sync profile at login: %+v", err)
	} else {
		tokens.Destination = string(synced.Destination)
	}

	if err := u.auditService.LogCreate(ctx, &profile.ID, entity.AuditActionUserLogin, "session", identity.SessionID, nil); err != nil {
		u.log.Warnf("Failed to audit login: %+v", err)
	}

	return tokens, nil
}

func (u *authUsecase) issueTokens(ctx context.Context, identity jwt.Identity) (*dto.TokenResponse, error) {
	// Generate tokens
	accessToken, accessTokenID, err := u.jwtService.GenerateAccessToken(identity)
	if err != nil {
		u.log.Warnf("Failed to generate access token: %+v", err)
		return nil, err
	}

	refreshToken, refreshTokenID, err := u.jwtService.GenerateRefreshToken(identity)
	if err != nil {
		u.log.Warnf("Failed to generate refresh token: %+v", err)
		return nil, err
	}

	// Store tokens in Redis
	if err := u.tokenStore.Save(ctx, string(jwt.AccessToken), identity.UserID, accessTokenID, u.jwtService.GetAccessExpiry()); err != nil {
		u.log.Warnf("Failed to store access token in Redis: %+v", err)
		return nil, unavailable(err)
	}

	if err := u.tokenStore.Save(ctx, string(jwt.RefreshToken), identity.UserID, refreshTokenID, u.jwtService.GetRefreshExpiry()); err != nil {
		u.log.Warnf("Failed to store refresh token in Redis: %+v", err)
		return nil, unavailable(err)
	}

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(u.jwtService.GetAccessExpiry().Seconds()),
		SessionID:    identity.SessionID,
	}, nil
}

func (u *authUsecase) Logout(ctx context.Context, session Session) error {
	if _, err := u.tokenStore.Revoke(ctx, string(jwt.AccessToken), session.UserID, session.AccessTokenID); err != nil {
		u.log.Warnf("Failed to delete access token: %+v", err)
		return unavailable(err)
	}

	if session.RefreshTokenID != "" {
		if _, err := u.tokenStore.Revoke(ctx, string(jwt.RefreshToken), session.UserID, session.RefreshTokenID); err != nil {
			u.log.Warnf("Failed to delete refresh token: %+v", err)
			return unavailable(err)
		}
	}

	if err := u.sessionSync.EndSession(ctx, session.SessionID); err != nil {
		u.log.Warnf("Failed to drop session cache: %+v", err)
	}

	if err := u.auditService.LogDelete(ctx, &session.UserID, entity.AuditActionUserLogout, "session", session.SessionID, nil); err != nil {
		u.log.Warnf("Failed to audit logout: %+v", err)
	}

	return nil
}

func (u *authUsecase) RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenResponse, error) {
	// Validate refresh token
	claims, err := u.jwtService.ValidateToken(req.RefreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims.TokenType != jwt.RefreshToken {
		return nil, ErrInvalidToken
	}

	// Deleting the old refresh token is the existence check, so a refresh
	// token can only be rotated once.
	revoked, err := u.tokenStore.Revoke(ctx, string(jwt.RefreshToken), claims.UserID, claims.TokenID)
	if err != nil {
		u.log.Warnf("Failed to revoke old refresh token: %+v", err)
		return nil, unavailable(err)
	}
	if !revoked {
		return nil, ErrTokenRevoked
	}

	// Role may have changed since the token was issued
	profile, err := u.profileRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		u.log.Warnf("Failed to find user for refresh: %+v", err)
		return nil, unavailable(err)
	}
	if profile == nil {
		return nil, ErrUserNotFound
	}

	return u.issueTokens(ctx, jwt.Identity{
		UserID:    profile.ID,
		Email:     profile.Email,
		Role:      profile.Role,
		SessionID: claims.SessionID,
	})
}

func (u *authUsecase) GetCurrentUser(ctx context.Context, userID uuid.UUID) (*dto.UserResponse, error) {
	profile, err := u.profileRepo.FindByID(ctx, userID)
	if err != nil {
		u.log.Warnf("Failed to find user by ID: %+v", err)
		return nil, unavailable(err)
	}
	if profile == nil {
		return nil, ErrUserNotFound
	}

	return converter.UserToResponse(profile), nil
}

func (u *authUsecase) RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error {
	if err := u.tokenStore.RevokeAll(ctx, userID); err != nil {
		u.log.Warnf("Failed to revoke user tokens: %+v", err)
		return unavailable(err)
	}
	return nil
}
