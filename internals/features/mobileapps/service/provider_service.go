package service

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"

	"mobileapps_backend/internals/features/mobileapps/dto"
	"mobileapps_backend/internals/features/mobileapps/model"
	helper "mobileapps_backend/internals/helpers"
	"mobileapps_backend/internals/helpers/auth"
)

type ProviderService struct {
	DB *gorm.DB
}

func NewProviderService(db *gorm.DB) *ProviderService {
	return &ProviderService{DB: db}
}

func (s *ProviderService) List(ctx context.Context, p helper.Paging) ([]model.NotificationProviderModel, int64, error) {
	q := s.DB.WithContext(ctx).Model(&model.NotificationProviderModel{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	q = q.Order("notification_provider_id ASC")
	if !p.Unpaged {
		q = q.Offset(p.Offset()).Limit(p.Limit())
	}
	var rows []model.NotificationProviderModel
	err := q.Find(&rows).Error
	return rows, total, err
}

func (s *ProviderService) Get(ctx context.Context, id int64) (*model.NotificationProviderModel, error) {
	var m model.NotificationProviderModel
	if err := s.DB.WithContext(ctx).First(&m, "notification_provider_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *ProviderService) Create(ctx context.Context, actor auth.Actor, req dto.NotificationProviderRequest) (*model.NotificationProviderModel, error) {
	if err := auth.RequireStaff(actor); err != nil {
		return nil, err
	}
	m := model.NotificationProviderModel{Name: req.Name, APIURL: req.APIURL}
	if err := s.DB.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, err
	}
	log.Printf("[ProviderService] created notification_provider_id=%d name=%q", m.ID, m.Name)
	return &m, nil
}

func (s *ProviderService) Update(ctx context.Context, actor auth.Actor, id int64, req dto.NotificationProviderRequest) (*model.NotificationProviderModel, error) {
	if err := auth.RequireStaff(actor); err != nil {
		return nil, err
	}
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Name = req.Name
	m.APIURL = req.APIURL
	if err := s.DB.WithContext(ctx).Save(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// Delete refuses while any mobile app references the provider.
func (s *ProviderService) Delete(ctx context.Context, actor auth.Actor, id int64) error {
	if err := auth.RequireStaff(actor); err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m model.NotificationProviderModel
		if err := tx.First(&m, "notification_provider_id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProviderNotFound
			}
			return err
		}
		var refs int64
		if err := tx.Model(&model.MobileAppModel{}).
			Where("mobile_app_notification_provider_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return ErrProviderInUse
		}
		return tx.Delete(&m).Error
	})
}
