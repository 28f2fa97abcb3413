package usecase

import (
	"context"

	"clinic-booking/internal/converter"
	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/domain/repository"
	"clinic-booking/internal/service"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type FamilyMemberUsecase interface {
	List(ctx context.Context, ownerID uuid.UUID) (*dto.FamilyMemberListResponse, error)
	Create(ctx context.Context, ownerID uuid.UUID, req *dto.CreateFamilyMemberRequest) (*dto.FamilyMemberResponse, error)
	Update(ctx context.Context, ownerID, memberID uuid.UUID, req *dto.UpdateFamilyMemberRequest) (*dto.FamilyMemberResponse, error)
	Delete(ctx context.Context, ownerID, memberID uuid.UUID) error
	UploadImage(ctx context.Context, ownerID, memberID uuid.UUID, image ImageUpload) (*dto.FamilyMemberResponse, error)
}

type familyMemberUsecase struct {
	log          *logrus.Logger
	transactor   repository.Transactor
	familyRepo   repository.FamilyMemberRepository
	auditService service.AuditService
	blobStorage  repository.BlobStorage
	changeFeed   repository.ChangeFeed
}

func NewFamilyMemberUsecase(
	log *logrus.Logger,
	transactor repository.Transactor,
	familyRepo repository.FamilyMemberRepository,
	auditService service.AuditService,
	blobStorage repository.BlobStorage,
	changeFeed repository.ChangeFeed,
) FamilyMemberUsecase {
	return &familyMemberUsecase{
		log:          log,
		transactor:   transactor,
		familyRepo:   familyRepo,
		auditService: auditService,
		blobStorage:  blobStorage,
		changeFeed:   changeFeed,
	}
}

func (u *familyMemberUsecase) List(ctx context.Context, ownerID uuid.UUID) (*dto.FamilyMemberListResponse, error) {
	members, err := u.familyRepo.FindByOwnerID(ctx, ownerID)
	if err != nil {
		u.log.Warnf("Failed to find family members: %+v", err)
		return nil, unavailable(err)
	}

	return &dto.FamilyMemberListResponse{
		FamilyMembers: converter.FamilyMembersToResponses(members),
		Total:         len(members),
	}, nil
}

func (u *familyMemberUsecase) Create(ctx context.Context, ownerID uuid.UUID, req *dto.CreateFamilyMemberRequest) (*dto.FamilyMemberResponse, error) {
	member := &entity.FamilyMember{
		OwnerID:    ownerID,
		Name:       req.Name,
		Relation:   req.Relation,
		HeightCm:   req.HeightCm,
		WeightKg:   req.WeightKg,
		Age:        req.Age,
		BloodGroup: req.BloodGroup,
	}

	err := u.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := u.familyRepo.Create(ctx, member); err != nil {
			if isForeignKeyError(err, "owner_id") {
				return ErrProfileNotFound
			}
			return unavailable(err)
		}
		return u.auditService.LogCreate(ctx, &ownerID, entity.AuditActionFamilyMemberCreate, "family_member", member.ID.String(), member)
	})
	if err != nil {
		u.log.Warnf("Failed to create family member: %+v", err)
		return nil, err
	}

	u.publish(ctx, member, entity.ChangeInsert)
	return converter.FamilyMemberToResponse(member), nil
}

// owned loads a member and checks it belongs to ownerID. Members of other
// accounts are reported as not found.
func (u *familyMemberUsecase) owned(ctx context.Context, ownerID, memberID uuid.UUID) (*entity.FamilyMember, error) {
	member, err := u.familyRepo.FindByID(ctx, memberID)
	if err != nil {
		u.log.Warnf("Failed to find family member %s: %+v", memberID, err)
		return nil, unavailable(err)
	}
	if member == nil || member.OwnerID != ownerID {
		return nil, ErrFamilyMemberNotFound
	}
	return member, nil
}

func (u *familyMemberUsecase) Update(ctx context.Context, ownerID, memberID uuid.UUID, req *dto.UpdateFamilyMemberRequest) (*dto.FamilyMemberResponse, error) {
	member, err := u.owned(ctx, ownerID, memberID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		member.Name = *req.Name
	}
	if req.Relation != nil {
		member.Relation = *req.Relation
	}
	if req.HeightCm != nil {
		member.HeightCm = req.HeightCm
	}
	if req.WeightKg != nil {
		member.WeightKg = req.WeightKg
	}
	if req.Age != nil {
		member.Age = req.Age
	}
	if req.BloodGroup != nil {
		member.BloodGroup = *req.BloodGroup
	}

	if err := u.familyRepo.Update(ctx, member); err != nil {
		u.log.Warnf("Failed to update family member %s: %+v", memberID, err)
		return nil, unavailable(err)
	}

	u.publish(ctx, member, entity.ChangeUpdate)
	return converter.FamilyMemberToResponse(member), nil
}

func (u *familyMemberUsecase) Delete(ctx context.Context, ownerID, memberID uuid.UUID) error {
	member, err := u.owned(ctx, ownerID, memberID)
	if err != nil {
		return err
	}

	err = u.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		rows, err := u.familyRepo.Delete(ctx, memberID)
		if err != nil {
			return unavailable(err)
		}
		if rows == 0 {
			return ErrFamilyMemberNotFound
		}
		return u.auditService.LogDelete(ctx, &ownerID, entity.AuditActionFamilyMemberDelete, "family_member", memberID.String(), member)
	})
	if err != nil {
		u.log.Warnf("Failed to delete family member %s: %+v", memberID, err)
		return err
	}

	u.publish(ctx, member, entity.ChangeDelete)
	return nil
}

func (u *familyMemberUsecase) UploadImage(ctx context.Context, ownerID, memberID uuid.UUID, image ImageUpload) (*dto.FamilyMemberResponse, error) {
	member, err := u.owned(ctx, ownerID, memberID)
	if err != nil {
		return nil, err
	}

	objectName, err := image.objectName("family", memberID)
	if err != nil {
		return nil, err
	}

	url, err := u.blobStorage.Upload(ctx, objectName, image.ContentType, image.Body, image.Size)
	if err != nil {
		u.log.Warnf("Failed to upload family member image: %+v", err)
		return nil, unavailable(err)
	}

	member.ImageURL = url
	if err := u.familyRepo.Update(ctx, member); err != nil {
		u.log.Warnf("Failed to store family member image url: %+v", err)
		return nil, unavailable(err)
	}

	u.publish(ctx, member, entity.ChangeUpdate)
	return converter.FamilyMemberToResponse(member), nil
}

func (u *familyMemberUsecase) publish(ctx context.Context, member *entity.FamilyMember, op entity.ChangeOp) {
	if err := u.changeFeed.Publish(ctx, entity.ChangeEvent{
		Table:    entity.TableFamilyMembers,
		Op:       op,
		RecordID: member.ID,
		Keys:     map[string]uuid.UUID{entity.FieldUserID: member.OwnerID, entity.FieldID: member.ID},
	}); err != nil {
		u.log.Warnf("Failed to publish family member change: %+v", err)
	}
}
