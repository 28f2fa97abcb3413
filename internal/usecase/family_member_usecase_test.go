package usecase

import (
	"bytes"
	"context"
	"testing"

	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newFamilyFixture(t *testing.T) (FamilyMemberUsecase, *memFamilyRepo, *mockBlobStorage) {
	t.Helper()
	repo := newMemFamilyRepo()
	blob := &mockBlobStorage{}
	uc := NewFamilyMemberUsecase(quietLogger(), passthroughTransactor{}, repo, &recordingAudit{}, blob,
		service.NewLocalChangeFeed(quietLogger()))
	return uc, repo, blob
}

func TestFamilyMember_CreateListUpdateDelete(t *testing.T) {
	uc, _, _ := newFamilyFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	age := 7

	created, err := uc.Create(ctx, owner, &dto.CreateFamilyMemberRequest{Name: "Yusuf", Relation: "child", Age: &age})
	require.NoError(t, err)
	assert.Equal(t, owner, created.OwnerID)

	list, err := uc.List(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)

	name := "Yusuf Saleh"
	updated, err := uc.Update(ctx, owner, created.ID, &dto.UpdateFamilyMemberRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, "child", updated.Relation)

	require.NoError(t, uc.Delete(ctx, owner, created.ID))
	list, err = uc.List(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 0, list.Total)
	assert.NotNil(t, list.FamilyMembers)
}

func TestFamilyMember_OtherOwnersMembersAreHidden(t *testing.T) {
	uc, repo, _ := newFamilyFixture(t)
	ctx := context.Background()
	member := &entity.FamilyMember{OwnerID: uuid.New(), Name: "Yusuf", Relation: "child"}
	require.NoError(t, repo.Create(ctx, member))
	intruder := uuid.New()

	name := "Hijacked"
	_, err := uc.Update(ctx, intruder, member.ID, &dto.UpdateFamilyMemberRequest{Name: &name})
	assert.ErrorIs(t, err, ErrFamilyMemberNotFound)

	assert.ErrorIs(t, uc.Delete(ctx, intruder, member.ID), ErrFamilyMemberNotFound)

	stored, err := repo.FindByID(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, "Yusuf", stored.Name)
}

func TestFamilyMember_UploadImage(t *testing.T) {
	uc, repo, blob := newFamilyFixture(t)
	ctx := context.Background()
	member := &entity.FamilyMember{OwnerID: uuid.New(), Name: "Yusuf", Relation: "child"}
	require.NoError(t, repo.Create(ctx, member))

	body := bytes.NewReader([]byte("jpeg"))
	blob.On("Upload", mock.Anything, mock.AnythingOfType("string"), "image/jpeg", body, int64(4)).
		Return("http://cdn.local/family/y.jpg", nil).Once()

	resp, err := uc.UploadImage(ctx, member.OwnerID, member.ID, ImageUpload{ContentType: "image/jpeg", Body: body, Size: 4})

	require.NoError(t, err)
	assert.Equal(t, "http://cdn.local/family/y.jpg", resp.ImageURL)
	blob.AssertExpectations(t)

	_, err = uc.UploadImage(ctx, member.OwnerID, member.ID, ImageUpload{ContentType: "text/plain", Body: body})
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}
