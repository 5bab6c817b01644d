package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	orgModel "mobileapps_backend/internals/features/organizations/model"
)

var ErrOrganizationNotFound = errors.New("organization not found")

// Membership reads organizations and their members.
type Membership struct {
	DB *gorm.DB
}

func NewMembership(db *gorm.DB) *Membership { return &Membership{DB: db} }

func (m *Membership) OrganizationIDsOf(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := m.DB.WithContext(ctx).
		Model(&orgModel.OrganizationUserModel{}).
		Where("organization_user_user_id = ?", userID).
		Order("organization_user_organization_id").
		Pluck("organization_user_organization_id", &ids).Error
	return ids, err
}

func (m *Membership) MemberUserIDs(ctx context.Context, orgID int64) ([]int64, error) {
	var ids []int64
	err := m.DB.WithContext(ctx).
		Model(&orgModel.OrganizationUserModel{}).
		Where("organization_user_organization_id = ?", orgID).
		Order("organization_user_user_id").
		Pluck("organization_user_user_id", &ids).Error
	return ids, err
}

func (m *Membership) Get(ctx context.Context, orgID int64) (*orgModel.OrganizationModel, error) {
	var org orgModel.OrganizationModel
	if err := m.DB.WithContext(ctx).First(&org, "organization_id = ?", orgID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (m *Membership) AddMember(ctx context.Context, orgID, userID int64) error {
	return m.DB.WithContext(ctx).
		Where(orgModel.OrganizationUserModel{OrganizationID: orgID, UserID: userID}).
		FirstOrCreate(&orgModel.OrganizationUserModel{OrganizationID: orgID, UserID: userID}).Error
}
