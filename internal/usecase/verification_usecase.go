package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/domain/repository"
	"clinic-booking/internal/service"
	"clinic-booking/pkg/jwt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidActivationCode = errors.New("invalid or expired activation code")
	ErrActivationCodeUsed    = errors.New("activation code has already been used")
	ErrVerificationConflict  = errors.New("verification status changed concurrently, retry")
)

// VerificationResult is the doctor profile after a transition. MirrorPending
// is set when the directory record could not be written yet and is queued for
// retry.
type VerificationResult struct {
	Profile       *entity.UserProfile
	MirrorPending bool
}

type Invitation struct {
	DoctorID  uuid.UUID
	Code      string
	ExpiresAt time.Time
}

type VerificationUsecase interface {
	Approve(ctx context.Context, adminID, doctorID uuid.UUID) (*VerificationResult, error)
	Reject(ctx context.Context, adminID, doctorID uuid.UUID) (*VerificationResult, error)
	Reapply(ctx context.Context, adminID, doctorID uuid.UUID) (*VerificationResult, error)
	IssueInvitation(ctx context.Context, adminID, doctorID uuid.UUID) (*Invitation, error)
	RedeemActivationCode(ctx context.Context, doctorID uuid.UUID, code string) (*VerificationResult, error)
	// EnsureVerifiedDoctor is the gate in front of doctor-facing patient data.
	EnsureVerifiedDoctor(ctx context.Context, userID uuid.UUID) error
	ListPending(ctx context.Context) ([]entity.UserProfile, error)
}

type verificationUsecase struct {
	log             *logrus.Logger
	transactor      repository.Transactor
	profileRepo     repository.ProfileRepository
	invitationStore repository.InvitationStore
	mirror          service.DirectoryMirror
	auditService    service.AuditService
	notifier        repository.NotificationSink
	changeFeed      repository.ChangeFeed
	jwtService      *jwt.JWTService
}

func NewVerificationUsecase(
	log *logrus.Logger,
	transactor repository.Transactor,
	profileRepo repository.ProfileRepository,
	invitationStore repository.InvitationStore,
	mirror service.DirectoryMirror,
	auditService service.AuditService,
	notifier repository.NotificationSink,
	changeFeed repository.ChangeFeed,
	jwtService *jwt.JWTService,
) VerificationUsecase {
	return &verificationUsecase{
		log:             log,
		transactor:      transactor,
		profileRepo:     profileRepo,
		invitationStore: invitationStore,
		mirror:          mirror,
		auditService:    auditService,
		notifier:        notifier,
		changeFeed:      changeFeed,
		jwtService:      jwtService,
	}
}

func (u *verificationUsecase) Approve(ctx context.Context, adminID, doctorID uuid.UUID) (*VerificationResult, error) {
	return u.transition(ctx, adminID, doctorID, entity.EventApprove, entity.AuditActionDoctorApprove)
}

func (u *verificationUsecase) Reject(ctx context.Context, adminID, doctorID uuid.UUID) (*VerificationResult, error) {
	return u.transition(ctx, adminID, doctorID, entity.EventReject, entity.AuditActionDoctorReject)
}

func (u *verificationUsecase) Reapply(ctx context.Context, adminID, doctorID uuid.UUID) (*VerificationResult, error) {
	return u.transition(ctx, adminID, doctorID, entity.EventReapply, entity.AuditActionDoctorReapply)
}

// transition applies event to the doctor's stored status with a
// compare-and-set, audits it in the same transaction, then mirrors the result
// into the directory.
func (u *verificationUsecase) transition(ctx context.Context, actorID, doctorID uuid.UUID, event entity.VerificationEvent, action string) (*VerificationResult, error) {
	var updated *entity.UserProfile
	err := u.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		profile, err := u.loadDoctor(ctx, doctorID)
		if err != nil {
			return err
		}

		from := profile.VerificationStatus
		next, err := entity.NextVerificationStatus(from, event)
		if err != nil {
			return err
		}

		rows, err := u.profileRepo.UpdateVerificationStatus(ctx, doctorID, from, next)
		if err != nil {
			return unavailable(err)
		}
		if rows == 0 {
			return ErrVerificationConflict
		}

		if err := u.auditService.LogUpdate(ctx, &actorID, action, "profile", doctorID.String(),
			entity.JSON{"verification_status": from},
			entity.JSON{"verification_status": next},
		); err != nil {
			return err
		}

		profile.VerificationStatus = next
		updated = profile
		return nil
	})
	if err != nil {
		u.log.Warnf("Failed to %s doctor %s: %+v", event, doctorID, err)
		return nil, err
	}

	result := &VerificationResult{Profile: updated}
	if err := u.mirror.Mirror(ctx, updated); err != nil {
		result.MirrorPending = true
	}

	if err := u.changeFeed.Publish(ctx, entity.ChangeEvent{
		Table:    entity.TableProfiles,
		Op:       entity.ChangeUpdate,
		RecordID: doctorID,
		Keys:     map[string]uuid.UUID{entity.FieldID: doctorID},
		Summary:  fmt.Sprintf("Verification status is now %s", updated.VerificationStatus),
	}); err != nil {
		u.log.Warnf("Failed to publish verification change: %+v", err)
	}

	if err := u.notifier.Notify(ctx, verificationNotification(updated)); err != nil {
		u.log.Warnf("Failed to notify doctor %s: %+v", doctorID, err)
	}

	return result, nil
}

func verificationNotification(p *entity.UserProfile) entity.Notification {
	n := entity.Notification{UserID: p.ID}
	switch p.VerificationStatus {
	case entity.VerificationVerified:
		n.Title = "Account verified"
		n.Body = "Your doctor account is verified. Patients can now book appointments with you."
	case entity.VerificationRejected:
		n.Title = "Verification rejected"
		n.Body = "Your doctor account could not be verified. Contact the clinic administrator."
	default:
		n.Title = "Verification pending"
		n.Body = "Your doctor account is awaiting review."
	}
	return n
}

func (u *verificationUsecase) loadDoctor(ctx context.Context, doctorID uuid.UUID) (*entity.UserProfile, error) {
	profile, err := u.profileRepo.FindByID(ctx, doctorID)
	if err != nil {
		return nil, unavailable(err)
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	if !profile.IsDoctor() {
		return nil, ErrNotDoctor
	}
	return profile, nil
}

func (u *verificationUsecase) IssueInvitation(ctx context.Context, adminID, doctorID uuid.UUID) (*Invitation, error) {
	profile, err := u.loadDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if _, err := entity.NextVerificationStatus(profile.VerificationStatus, entity.EventRedeemCode); err != nil {
		return nil, err
	}

	code, tokenID, err := u.jwtService.GenerateInvitation(doctorID)
	if err != nil {
		u.log.Warnf("Failed to sign invitation: %+v", err)
		return nil, err
	}

	expiry := u.jwtService.GetInviteExpiry()
	if err := u.invitationStore.Save(ctx, tokenID, doctorID, expiry); err != nil {
		u.log.Warnf("Failed to store invitation: %+v", err)
		return nil, unavailable(err)
	}

	if err := u.auditService.LogCreate(ctx, &adminID, entity.AuditActionInvitationIssue, "invitation", tokenID,
		entity.JSON{"doctor_id": doctorID},
	); err != nil {
		u.log.Warnf("Failed to audit invitation for %s: %+v", doctorID, err)
	}

	return &Invitation{
		DoctorID:  doctorID,
		Code:      code,
		ExpiresAt: time.Now().Add(expiry),
	}, nil
}

func (u *verificationUsecase) RedeemActivationCode(ctx context.Context, doctorID uuid.UUID, code string) (*VerificationResult, error) {
	claims, err := u.jwtService.ValidateInvitation(code)
	if err != nil || claims.UserID != doctorID {
		return nil, ErrInvalidActivationCode
	}

	owner, ok, err := u.invitationStore.Consume(ctx, claims.TokenID)
	if err != nil {
		u.log.Warnf("Failed to consume invitation: %+v", err)
		return nil, unavailable(err)
	}
	if !ok {
		return nil, ErrActivationCodeUsed
	}
	if owner != doctorID {
		return nil, ErrInvalidActivationCode
	}

	result, err := u.transition(ctx, doctorID, doctorID, entity.EventRedeemCode, entity.AuditActionDoctorSelfVerify)
	if err != nil {
		if errors.Is(err, ErrBackendUnavailable) || errors.Is(err, ErrVerificationConflict) {
			u.restoreInvitation(ctx, claims)
		}
		return nil, err
	}
	return result, nil
}

// restoreInvitation puts a consumed code back when redemption failed for a
// transient reason.
func (u *verificationUsecase) restoreInvitation(ctx context.Context, claims *jwt.Claims) {
	if claims.ExpiresAt == nil {
		return
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return
	}
	if err := u.invitationStore.Save(context.WithoutCancel(ctx), claims.TokenID, claims.UserID, ttl); err != nil {
		u.log.Errorf("Failed to restore invitation %s: %+v", claims.TokenID, err)
	}
}

func (u *verificationUsecase) EnsureVerifiedDoctor(ctx context.Context, userID uuid.UUID) error {
	profile, err := u.loadDoctor(ctx, userID)
	if err != nil {
		return err
	}

	switch profile.VerificationStatus {
	case entity.VerificationVerified:
		return nil
	case entity.VerificationRejected:
		return ErrVerificationRejected
	default:
		return ErrVerificationPending
	}
}

func (u *verificationUsecase) ListPending(ctx context.Context) ([]entity.UserProfile, error) {
	profiles, err := u.profileRepo.FindByRoleAndStatus(ctx, entity.RoleDoctor, entity.VerificationPending)
	if err != nil {
		u.log.Warnf("Failed to find pending doctors: %+v", err)
		return nil, unavailable(err)
	}
	return profiles, nil
}
