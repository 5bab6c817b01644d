package service

import (
	"context"
	"log"

	"gorm.io/gorm"

	"mobileapps_backend/internals/features/mobileapps/model"
	orgModel "mobileapps_backend/internals/features/organizations/model"
	userModel "mobileapps_backend/internals/features/users/model"
	"mobileapps_backend/internals/helpers/auth"
)

/* =========================
   Users of an app
========================= */

// Users lists the app's users. Non-staff callers only see users who share
// one of their organizations.
func (s *MobileAppService) Users(ctx context.Context, actor auth.Actor, appID int64) ([]userModel.UserModel, error) {
	db := s.DB.WithContext(ctx)
	if err := s.ensureAppExists(db, appID); err != nil {
		return nil, err
	}
	visible, err := auth.VisibleOrganizations(ctx, actor, s.Members)
	if err != nil {
		return nil, err
	}

	q := db.Model(&userModel.UserModel{}).
		Where("user_id IN (?)", db.Model(&model.MobileAppUserModel{}).
			Select("mobile_app_user_user_id").
			Where("mobile_app_user_mobile_app_id = ?", appID))
	if visible != nil {
		if len(visible) == 0 {
			return []userModel.UserModel{}, nil
		}
		q = q.Where("user_id IN (?)", db.Model(&orgModel.OrganizationUserModel{}).
			Select("organization_user_user_id").
			Where("organization_user_organization_id IN ?", visible))
	}
	var users []userModel.UserModel
	err = q.Order("user_id").Find(&users).Error
	return users, err
}

// AddUsers links existing users to the app; unknown ids are ignored.
func (s *MobileAppService) AddUsers(ctx context.Context, actor auth.Actor, appID int64, ids []int64) error {
	if err := auth.RequireStaff(actor); err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureAppExists(tx, appID); err != nil {
			return err
		}
		var existing []int64
		if len(ids) > 0 {
			if err := tx.Model(&userModel.UserModel{}).
				Where("user_id IN ?", ids).Pluck("user_id", &existing).Error; err != nil {
				return err
			}
		}
		log.Printf("[MobileAppService] add users app=%d requested=%d existing=%d", appID, len(ids), len(existing))
		return insertUsers(tx, appID, existing)
	})
}

func (s *MobileAppService) RemoveUsers(ctx context.Context, actor auth.Actor, appID int64, ids []int64) error {
	if err := auth.RequireStaff(actor); err != nil {
		return err
	}
	db := s.DB.WithContext(ctx)
	if err := s.ensureAppExists(db, appID); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return db.Where("mobile_app_user_mobile_app_id = ? AND mobile_app_user_user_id IN ?", appID, ids).
		Delete(&model.MobileAppUserModel{}).Error
}

/* =========================
   Organizations of an app
========================= */

// Organizations lists the app's organizations; non-staff callers only see
// the ones they belong to.
func (s *MobileAppService) Organizations(ctx context.Context, actor auth.Actor, appID int64) ([]orgModel.OrganizationModel, error) {
	db := s.DB.WithContext(ctx)
	if err := s.ensureAppExists(db, appID); err != nil {
		return nil, err
	}
	visible, err := auth.VisibleOrganizations(ctx, actor, s.Members)
	if err != nil {
		return nil, err
	}

	q := db.Model(&orgModel.OrganizationModel{}).
		Where("organization_id IN (?)", db.Model(&model.MobileAppOrganizationModel{}).
			Select("mobile_app_organization_organization_id").
			Where("mobile_app_organization_mobile_app_id = ?", appID))
	if visible != nil {
		if len(visible) == 0 {
			return []orgModel.OrganizationModel{}, nil
		}
		q = q.Where("organization_id IN ?", visible)
	}
	var orgs []orgModel.OrganizationModel
	err = q.Order("organization_id").Find(&orgs).Error
	return orgs, err
}

func (s *MobileAppService) AddOrganizations(ctx context.Context, actor auth.Actor, appID int64, ids []int64) error {
	if err := auth.RequireStaff(actor); err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureAppExists(tx, appID); err != nil {
			return err
		}
		var existing []int64
		if len(ids) > 0 {
			if err := tx.Model(&orgModel.OrganizationModel{}).
				Where("organization_id IN ?", ids).Pluck("organization_id", &existing).Error; err != nil {
				return err
			}
		}
		log.Printf("[MobileAppService] add organizations app=%d requested=%d existing=%d", appID, len(ids), len(existing))
		return insertOrganizations(tx, appID, existing)
	})
}

func (s *MobileAppService) RemoveOrganizations(ctx context.Context, actor auth.Actor, appID int64, ids []int64) error {
	if err := auth.RequireStaff(actor); err != nil {
		return err
	}
	db := s.DB.WithContext(ctx)
	if err := s.ensureAppExists(db, appID); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return db.Where("mobile_app_organization_mobile_app_id = ? AND mobile_app_organization_organization_id IN ?", appID, ids).
		Delete(&model.MobileAppOrganizationModel{}).Error
}

func (s *MobileAppService) ensureAppExists(db *gorm.DB, appID int64) error {
	var n int64
	if err := db.Model(&model.MobileAppModel{}).Where("mobile_app_id = ?", appID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
