// file: internals/features/mobileapps/service/mobile_app_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"

	"github.com/bytedance/sonic"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mobileapps_backend/internals/features/mobileapps/dto"
	"mobileapps_backend/internals/features/mobileapps/model"
	orgModel "mobileapps_backend/internals/features/organizations/model"
	userModel "mobileapps_backend/internals/features/users/model"
	helper "mobileapps_backend/internals/helpers"
	"mobileapps_backend/internals/helpers/auth"
	"mobileapps_backend/internals/helpers/secret"
)

type MobileAppService struct {
	DB      *gorm.DB
	Cipher  *secret.Cipher
	Members auth.MembershipLookup
}

func NewMobileAppService(db *gorm.DB, c *secret.Cipher, members auth.MembershipLookup) *MobileAppService {
	return &MobileAppService{DB: db, Cipher: c, Members: members}
}

// MobileApp is a record with its credentials decoded and its member ids loaded.
type MobileApp struct {
	Record          model.MobileAppModel
	ProviderKey     secret.EncryptedString
	ProviderSecret  secret.EncryptedString
	UserIDs         []int64
	OrganizationIDs []int64
}

func (a *MobileApp) Response() dto.MobileAppResponse {
	return dto.ToMobileAppResponse(&a.Record, a.ProviderKey, a.ProviderSecret, a.UserIDs, a.OrganizationIDs)
}

// currentFields is the stored state of m as PATCH input. A credential is only
// decrypted when req does not replace it.
func (s *MobileAppService) currentFields(m *model.MobileAppModel, req *dto.MobileAppRequest) (dto.MobileAppFields, error) {
	f := dto.MobileAppFields{
		Name:                   m.Name,
		IOSAppID:               m.IOSAppID,
		IOSBundleID:            m.IOSBundleID,
		AndroidAppID:           m.AndroidAppID,
		IOSDownloadURL:         m.IOSDownloadURL,
		AndroidDownloadURL:     m.AndroidDownloadURL,
		DeploymentMechanism:    m.DeploymentMechanism,
		AnalyticsURL:           m.AnalyticsURL,
		NotificationProviderID: m.NotificationProviderID,
		ProviderDashboardURL:   m.ProviderDashboardURL,
		CurrentVersion:         m.CurrentVersion,
		IsActive:               m.IsActive,
	}
	var err error
	if req.ProviderKey == nil {
		if f.ProviderKey, err = secret.FromStored(s.Cipher, m.ProviderKey); err != nil {
			return f, fmt.Errorf("mobile app %d provider_key: %w", m.ID, err)
		}
	}
	if req.ProviderSecret == nil {
		if f.ProviderSecret, err = secret.FromStored(s.Cipher, m.ProviderSecret); err != nil {
			return f, fmt.Errorf("mobile app %d provider_secret: %w", m.ID, err)
		}
	}
	return f, nil
}

type ListFilter struct {
	AppName          string
	OrganizationName string
	OrganizationIDs  []int64
}

/* =========================
   Reads
========================= */

// List returns one page of apps and the total count. Non-staff callers
// only see apps linked to one of their organizations.
func (s *MobileAppService) List(ctx context.Context, actor auth.Actor, f ListFilter, p helper.Paging) ([]*MobileApp, int64, error) {
	visible, err := auth.VisibleOrganizations(ctx, actor, s.Members)
	if err != nil {
		return nil, 0, err
	}
	if visible != nil && len(visible) == 0 {
		return []*MobileApp{}, 0, nil
	}

	db := s.DB.WithContext(ctx)
	q := db.Model(&model.MobileAppModel{})
	if name := strings.TrimSpace(f.AppName); name != "" {
		q = q.Where("LOWER(mobile_app_name) LIKE ?", "%"+strings.ToLower(name)+"%")
	}
	if name := strings.TrimSpace(f.OrganizationName); name != "" {
		sub := db.Table("mobile_app_organizations AS mao").
			Select("mao.mobile_app_organization_mobile_app_id").
			Joins("JOIN organizations o ON o.organization_id = mao.mobile_app_organization_organization_id").
			Where("LOWER(o.organization_name) LIKE ?", "%"+strings.ToLower(name)+"%")
		q = q.Where("mobile_app_id IN (?)", sub)
	}
	if len(f.OrganizationIDs) > 0 {
		q = q.Where("mobile_app_id IN (?)", appsOfOrganizations(db, f.OrganizationIDs))
	}
	if visible != nil {
		q = q.Where("mobile_app_id IN (?)", appsOfOrganizations(db, visible))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []model.MobileAppModel
	q = q.Order("mobile_app_id ASC")
	if !p.Unpaged {
		q = q.Offset(p.Offset()).Limit(p.Limit())
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	apps, err := s.decorate(db, rows)
	return apps, total, err
}

func appsOfOrganizations(db *gorm.DB, orgIDs []int64) *gorm.DB {
	return db.Model(&model.MobileAppOrganizationModel{}).
		Select("mobile_app_organization_mobile_app_id").
		Where("mobile_app_organization_organization_id IN ?", orgIDs)
}

// Get returns the app or ErrNotFound, also when it is outside the caller's scope.
func (s *MobileAppService) Get(ctx context.Context, actor auth.Actor, id int64) (*MobileApp, error) {
	app, err := s.load(s.DB.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureVisible(ctx, actor, app); err != nil {
		return nil, err
	}
	return app, nil
}

func (s *MobileAppService) ensureVisible(ctx context.Context, actor auth.Actor, app *MobileApp) error {
	visible, err := auth.VisibleOrganizations(ctx, actor, s.Members)
	if err != nil {
		return err
	}
	if visible == nil {
		return nil
	}
	for _, id := range app.OrganizationIDs {
		if slices.Contains(visible, id) {
			return nil
		}
	}
	return ErrNotFound
}

// loadRecord reads the raw row; credentials stay in stored form.
func loadRecord(db *gorm.DB, id int64) (*model.MobileAppModel, error) {
	var m model.MobileAppModel
	if err := db.First(&m, "mobile_app_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *MobileAppService) load(db *gorm.DB, id int64) (*MobileApp, error) {
	m, err := loadRecord(db, id)
	if err != nil {
		return nil, err
	}
	apps, err := s.decorate(db, []model.MobileAppModel{*m})
	if err != nil {
		return nil, err
	}
	return apps[0], nil
}

// decorate decodes credentials and attaches member ids to each row.
func (s *MobileAppService) decorate(db *gorm.DB, rows []model.MobileAppModel) ([]*MobileApp, error) {
	out := make([]*MobileApp, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]int64, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}

	var users []model.MobileAppUserModel
	if err := db.Where("mobile_app_user_mobile_app_id IN ?", ids).
		Order("mobile_app_user_user_id").Find(&users).Error; err != nil {
		return nil, err
	}
	var orgs []model.MobileAppOrganizationModel
	if err := db.Where("mobile_app_organization_mobile_app_id IN ?", ids).
		Order("mobile_app_organization_organization_id").Find(&orgs).Error; err != nil {
		return nil, err
	}
	userIDs := map[int64][]int64{}
	for _, u := range users {
		userIDs[u.MobileAppID] = append(userIDs[u.MobileAppID], u.UserID)
	}
	orgIDs := map[int64][]int64{}
	for _, o := range orgs {
		orgIDs[o.MobileAppID] = append(orgIDs[o.MobileAppID], o.OrganizationID)
	}

	for _, r := range rows {
		key, err := secret.FromStored(s.Cipher, r.ProviderKey)
		if err != nil {
			return nil, fmt.Errorf("mobile app %d provider_key: %w", r.ID, err)
		}
		sec, err := secret.FromStored(s.Cipher, r.ProviderSecret)
		if err != nil {
			return nil, fmt.Errorf("mobile app %d provider_secret: %w", r.ID, err)
		}
		out = append(out, &MobileApp{
			Record:          r,
			ProviderKey:     key,
			ProviderSecret:  sec,
			UserIDs:         userIDs[r.ID],
			OrganizationIDs: orgIDs[r.ID],
		})
	}
	return out, nil
}

/* =========================
   Writes
========================= */

// Create stores a new app from a full request body.
func (s *MobileAppService) Create(ctx context.Context, actor auth.Actor, req *dto.MobileAppRequest) (*MobileApp, error) {
	if err := auth.RequireStaff(actor); err != nil {
		return nil, err
	}
	if err := checkCredentials(req); err != nil {
		return nil, err
	}
	f := dto.DefaultFields()
	req.ApplyTo(&f)

	var id int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkReferences(tx, &f); err != nil {
			return err
		}
		m := &model.MobileAppModel{}
		if err := s.save(tx, m, f, actor.UserID); err != nil {
			return err
		}
		id = m.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[MobileAppService] created mobile_app_id=%d by user_id=%d", id, actor.UserID)
	return s.load(s.DB.WithContext(ctx), id)
}

// Update applies a PUT (partial=false: omitted fields reset to defaults) or
// PATCH (partial=true: omitted fields kept).
func (s *MobileAppService) Update(ctx context.Context, actor auth.Actor, id int64, req *dto.MobileAppRequest, partial bool) (*MobileApp, error) {
	if err := auth.RequireStaff(actor); err != nil {
		return nil, err
	}
	if err := checkCredentials(req); err != nil {
		return nil, err
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := loadRecord(tx, id)
		if err != nil {
			return err
		}
		f := dto.DefaultFields()
		if partial {
			if f, err = s.currentFields(m, req); err != nil {
				return err
			}
		}
		req.ApplyTo(&f)
		if err := s.checkReferences(tx, &f); err != nil {
			return err
		}
		return s.save(tx, m, f, actor.UserID)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[MobileAppService] updated mobile_app_id=%d by user_id=%d partial=%v", id, actor.UserID, partial)
	return s.load(s.DB.WithContext(ctx), id)
}

// checkCredentials refuses request values that look like stored ciphertext;
// they would be written unencrypted and fail every later read.
func checkCredentials(req *dto.MobileAppRequest) error {
	if req.ProviderKey != nil && secret.IsStored(*req.ProviderKey) {
		return fmt.Errorf("%w: provider_key must not start with %q", ErrValidation, secret.Prefix)
	}
	if req.ProviderSecret != nil && secret.IsStored(*req.ProviderSecret) {
		return fmt.Errorf("%w: provider_secret must not start with %q", ErrValidation, secret.Prefix)
	}
	return nil
}

func (s *MobileAppService) checkReferences(tx *gorm.DB, f *dto.MobileAppFields) error {
	if !f.DeploymentMechanism.Valid() {
		return fmt.Errorf("%w: deployment_mechanism %d is not a valid choice", ErrValidation, f.DeploymentMechanism)
	}
	if f.NotificationProviderID != nil {
		var n int64
		if err := tx.Model(&model.NotificationProviderModel{}).
			Where("notification_provider_id = ?", *f.NotificationProviderID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: notification_provider %d does not exist", ErrValidation, *f.NotificationProviderID)
		}
	}
	if f.UserIDs != nil {
		if err := mustExist(tx, &userModel.UserModel{}, "user_id", *f.UserIDs, "users"); err != nil {
			return err
		}
	}
	if f.OrganizationIDs != nil {
		if err := mustExist(tx, &orgModel.OrganizationModel{}, "organization_id", *f.OrganizationIDs, "organizations"); err != nil {
			return err
		}
	}
	return nil
}

func mustExist(tx *gorm.DB, m any, column string, ids []int64, field string) error {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	var found []int64
	if err := tx.Model(m).Where(column+" IN ?", ids).Pluck(column, &found).Error; err != nil {
		return err
	}
	for _, id := range ids {
		if !slices.Contains(found, id) {
			return fmt.Errorf("%w: %s: %d does not exist", ErrValidation, field, id)
		}
	}
	return nil
}

func uniqueIDs(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// save writes f into m, replaces the member sets when given and appends
// exactly one history snapshot. Must run inside a transaction.
func (s *MobileAppService) save(tx *gorm.DB, m *model.MobileAppModel, f dto.MobileAppFields, updatedBy int64) error {
	key, err := f.ProviderKey.ToStored(s.Cipher)
	if err != nil {
		return fmt.Errorf("encrypt provider_key: %w", err)
	}
	sec, err := f.ProviderSecret.ToStored(s.Cipher)
	if err != nil {
		return fmt.Errorf("encrypt provider_secret: %w", err)
	}

	m.Name = f.Name
	m.IOSAppID = f.IOSAppID
	m.IOSBundleID = f.IOSBundleID
	m.AndroidAppID = f.AndroidAppID
	m.IOSDownloadURL = f.IOSDownloadURL
	m.AndroidDownloadURL = f.AndroidDownloadURL
	m.DeploymentMechanism = f.DeploymentMechanism
	m.AnalyticsURL = f.AnalyticsURL
	m.NotificationProviderID = f.NotificationProviderID
	m.ProviderKey = key
	m.ProviderSecret = sec
	m.ProviderDashboardURL = f.ProviderDashboardURL
	m.CurrentVersion = f.CurrentVersion
	m.IsActive = f.IsActive
	m.UpdatedBy = updatedBy
	m.NotificationProvider = nil

	if err := tx.Save(m).Error; err != nil {
		return err
	}
	if f.UserIDs != nil {
		if err := replaceUsers(tx, m.ID, *f.UserIDs); err != nil {
			return err
		}
	}
	if f.OrganizationIDs != nil {
		if err := replaceOrganizations(tx, m.ID, *f.OrganizationIDs); err != nil {
			return err
		}
	}
	return appendHistory(tx, m)
}

func replaceUsers(tx *gorm.DB, appID int64, ids []int64) error {
	if err := tx.Where("mobile_app_user_mobile_app_id = ?", appID).
		Delete(&model.MobileAppUserModel{}).Error; err != nil {
		return err
	}
	return insertUsers(tx, appID, ids)
}

func insertUsers(tx *gorm.DB, appID int64, ids []int64) error {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	rows := make([]model.MobileAppUserModel, len(ids))
	for i, id := range ids {
		rows[i] = model.MobileAppUserModel{MobileAppID: appID, UserID: id}
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func replaceOrganizations(tx *gorm.DB, appID int64, ids []int64) error {
	if err := tx.Where("mobile_app_organization_mobile_app_id = ?", appID).
		Delete(&model.MobileAppOrganizationModel{}).Error; err != nil {
		return err
	}
	return insertOrganizations(tx, appID, ids)
}

func insertOrganizations(tx *gorm.DB, appID int64, ids []int64) error {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	rows := make([]model.MobileAppOrganizationModel, len(ids))
	for i, id := range ids {
		rows[i] = model.MobileAppOrganizationModel{MobileAppID: appID, OrganizationID: id}
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func appendHistory(tx *gorm.DB, m *model.MobileAppModel) error {
	var members model.HistoryMembers
	if err := tx.Model(&model.MobileAppUserModel{}).
		Where("mobile_app_user_mobile_app_id = ?", m.ID).
		Order("mobile_app_user_user_id").
		Pluck("mobile_app_user_user_id", &members.UserIDs).Error; err != nil {
		return err
	}
	if err := tx.Model(&model.MobileAppOrganizationModel{}).
		Where("mobile_app_organization_mobile_app_id = ?", m.ID).
		Order("mobile_app_organization_organization_id").
		Pluck("mobile_app_organization_organization_id", &members.OrganizationIDs).Error; err != nil {
		return err
	}
	raw, err := sonic.Marshal(members)
	if err != nil {
		return err
	}

	h := model.MobileAppHistoryModel{
		MobileAppID:            m.ID,
		Name:                   m.Name,
		IOSAppID:               m.IOSAppID,
		IOSBundleID:            m.IOSBundleID,
		AndroidAppID:           m.AndroidAppID,
		IOSDownloadURL:         m.IOSDownloadURL,
		AndroidDownloadURL:     m.AndroidDownloadURL,
		DeploymentMechanism:    m.DeploymentMechanism,
		AnalyticsURL:           m.AnalyticsURL,
		NotificationProviderID: m.NotificationProviderID,
		ProviderKey:            m.ProviderKey,
		ProviderSecret:         m.ProviderSecret,
		ProviderDashboardURL:   m.ProviderDashboardURL,
		CurrentVersion:         m.CurrentVersion,
		IsActive:               m.IsActive,
		UpdatedBy:              m.UpdatedBy,
		Members:                datatypes.JSON(raw),
	}
	if err := tx.Create(&h).Error; err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// History returns the snapshots of one app, newest first.
func (s *MobileAppService) History(ctx context.Context, actor auth.Actor, id int64, p helper.Paging) ([]dto.MobileAppHistoryResponse, int64, error) {
	if err := auth.RequireStaff(actor); err != nil {
		return nil, 0, err
	}
	db := s.DB.WithContext(ctx)
	if _, err := loadRecord(db, id); err != nil {
		return nil, 0, err
	}
	q := db.Model(&model.MobileAppHistoryModel{}).Where("mobile_app_history_mobile_app_id = ?", id)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	q = q.Order("mobile_app_history_id DESC")
	if !p.Unpaged {
		q = q.Offset(p.Offset()).Limit(p.Limit())
	}
	var rows []model.MobileAppHistoryModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]dto.MobileAppHistoryResponse, 0, len(rows))
	for i := range rows {
		var members model.HistoryMembers
		if len(rows[i].Members) > 0 {
			if err := sonic.Unmarshal(rows[i].Members, &members); err != nil {
				return nil, 0, fmt.Errorf("history %d members: %w", rows[i].ID, err)
			}
		}
		out = append(out, dto.ToMobileAppHistoryResponse(&rows[i], members))
	}
	return out, total, nil
}
