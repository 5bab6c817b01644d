package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mobileapps_backend/internals/configs"
	orgModel "mobileapps_backend/internals/features/organizations/model"
	orgService "mobileapps_backend/internals/features/organizations/service"
	"mobileapps_backend/internals/features/themes/dto"
	"mobileapps_backend/internals/features/themes/model"
	helper "mobileapps_backend/internals/helpers"
	"mobileapps_backend/internals/helpers/auth"
	"mobileapps_backend/internals/helpers/images"
	"mobileapps_backend/internals/helpers/metrics"
	"mobileapps_backend/internals/helpers/storage"
)

var (
	ErrThemeNotFound        = errors.New("theme not found")
	ErrOrganizationNotFound = orgService.ErrOrganizationNotFound
	ErrConflict             = errors.New("organization already has an active theme")
	ErrUnknownAttribute     = errors.New("unknown image attribute")
)

// ThemeService owns the theme lifecycle: one active theme per organization,
// image upload/replace/remove and soft/hard deletion.
type ThemeService struct {
	DB      *gorm.DB
	Images  configs.ThemeImageSettings
	Members auth.MembershipLookup
	Now     func() time.Time
}

func NewThemeService(db *gorm.DB, cfg configs.ThemeImageSettings, members auth.MembershipLookup) *ThemeService {
	return &ThemeService{DB: db, Images: cfg, Members: members, Now: time.Now}
}

/* =========================
   Image attributes
========================= */

type attribute struct {
	Name            string
	KeyPrefix       string
	DefaultFilename string
	Sizes           []images.Size
}

func (s *ThemeService) attributes() []attribute {
	return []attribute{
		{model.AttrLogoImage, s.Images.LogoKeyPrefix, s.Images.LogoDefaultFilename, s.Images.LogoSizes},
		{model.AttrHeaderBgImage, s.Images.HeaderBgKeyPrefix, s.Images.HeaderBgDefaultFilename, s.Images.HeaderBgSizes},
	}
}

func (s *ThemeService) attribute(name string) (attribute, error) {
	for _, a := range s.attributes() {
		if a.Name == name {
			return a, nil
		}
	}
	return attribute{}, fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
}

func (s *ThemeService) defaultExt() string {
	if s.Images.DefaultExtension == "" {
		return images.DefaultExtension
	}
	return s.Images.DefaultExtension
}

// names maps pixel size to stored filename for one attribute of m.
func (s *ThemeService) names(m *model.ThemeModel, a attribute, ext string) map[string]string {
	orgName := ""
	if m.Organization != nil {
		orgName = m.Organization.Name
	}
	key := images.LogicalKey(orgName, m.ID, a.KeyPrefix)
	return images.Names(s.Images.SecretKey, key, a.Sizes, ext)
}

func (s *ThemeService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

/* =========================
   Reads
========================= */

// ListActive returns the active theme of the organization (zero or one row).
// Callers outside the organization get an empty list.
func (s *ThemeService) ListActive(ctx context.Context, actor auth.Actor, orgID int64, p helper.Paging) ([]model.ThemeModel, int64, error) {
	ok, err := auth.CanSeeOrganization(ctx, actor, s.Members, orgID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return []model.ThemeModel{}, 0, nil
	}

	q := s.DB.WithContext(ctx).Model(&model.ThemeModel{}).
		Where("theme_organization_id = ? AND theme_state = ?", orgID, model.ThemeStateActive)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	rows := []model.ThemeModel{}
	q = q.Preload("Organization").Order("theme_id DESC")
	if !p.Unpaged {
		q = q.Offset(p.Offset()).Limit(p.Limit())
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (s *ThemeService) Get(ctx context.Context, actor auth.Actor, id int64) (*model.ThemeModel, error) {
	m, err := s.load(s.DB.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	ok, err := auth.CanSeeOrganization(ctx, actor, s.Members, m.OrganizationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrThemeNotFound
	}
	return m, nil
}

func (s *ThemeService) load(db *gorm.DB, id int64) (*model.ThemeModel, error) {
	var m model.ThemeModel
	if err := db.Preload("Organization").First(&m, "theme_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrThemeNotFound
		}
		return nil, err
	}
	return &m, nil
}

/* =========================
   Writes
========================= */

// CreateAndActivate deactivates the organization's current theme and
// inserts the new one as active, in one transaction. Uploads are
// validated before anything is written. Image generation and storage run
// after the commit: a failure there is returned with the committed theme.
func (s *ThemeService) CreateAndActivate(ctx context.Context, actor auth.Actor, orgID int64, form dto.ThemeForm, files dto.ThemeFiles) (*model.ThemeModel, error) {
	if err := auth.RequireStaff(actor); err != nil {
		return nil, err
	}
	var org orgModel.OrganizationModel
	if err := s.DB.WithContext(ctx).First(&org, "organization_id = ?", orgID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, err
	}
	uploads, err := s.readUploads(files)
	if err != nil {
		return nil, err
	}

	m := &model.ThemeModel{OrganizationID: orgID, State: model.ThemeStateActive}
	form.ApplyTo(m, false)

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deactivateOthers(tx, orgID, 0); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(m).Error; err != nil {
			if helper.IsUniqueViolation(err) {
				return ErrConflict
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.Organization = &org
	log.Printf("[ThemeService] theme %d activated for organization %d", m.ID, orgID)

	for _, a := range s.attributes() {
		if up := uploads[a.Name]; up != nil {
			if err := s.storeImage(ctx, m, a, up); err != nil {
				return m, err
			}
		}
	}
	return m, nil
}

// Update replaces (partial=false) or patches the theme. On a full update an
// omitted file removes that image; on a partial one it is left untouched.
// active=true deactivates the organization's other active theme in the
// same transaction.
func (s *ThemeService) Update(ctx context.Context, actor auth.Actor, id int64, form dto.ThemeForm, files dto.ThemeFiles, partial bool) (*model.ThemeModel, error) {
	if err := auth.RequireStaff(actor); err != nil {
		return nil, err
	}
	m, err := s.load(s.DB.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	uploads, err := s.readUploads(files)
	if err != nil {
		return nil, err
	}

	form.ApplyTo(m, partial)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if form.Active != nil {
			if *form.Active {
				if !m.IsActive() {
					if err := deactivateOthers(tx, m.OrganizationID, m.ID); err != nil {
						return err
					}
				}
				m.State = model.ThemeStateActive
			} else {
				m.State = model.ThemeStateInactive
			}
		}
		if err := tx.Omit(clause.Associations).Save(m).Error; err != nil {
			if helper.IsUniqueViolation(err) {
				return ErrConflict
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, a := range s.attributes() {
		switch up := uploads[a.Name]; {
		case up != nil:
			if err := s.storeImage(ctx, m, a, up); err != nil {
				return m, err
			}
		case !partial && m.UploadedAt(a.Name) != nil:
			if err := s.removeImage(ctx, m, a); err != nil {
				return m, err
			}
		}
	}
	return m, nil
}

// RemoveImage deletes every derivative of attr and clears its timestamp.
// Removing an image that is not there is not an error.
func (s *ThemeService) RemoveImage(ctx context.Context, actor auth.Actor, id int64, attr string) (*model.ThemeModel, error) {
	if err := auth.RequireStaff(actor); err != nil {
		return nil, err
	}
	a, err := s.attribute(attr)
	if err != nil {
		return nil, err
	}
	m, err := s.load(s.DB.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if err := s.removeImage(ctx, m, a); err != nil {
		return nil, err
	}
	return m, nil
}

// Deactivate flips the theme to inactive. Images stay in place.
func (s *ThemeService) Deactivate(ctx context.Context, actor auth.Actor, id int64) error {
	if err := auth.RequireStaff(actor); err != nil {
		return err
	}
	m, err := s.load(s.DB.WithContext(ctx), id)
	if err != nil {
		return err
	}
	if !m.IsActive() {
		return nil
	}
	return s.DB.WithContext(ctx).Model(&model.ThemeModel{}).
		Where("theme_id = ?", m.ID).
		Update("theme_state", model.ThemeStateInactive).Error
}

// HardDelete removes the derivatives of both attributes, then the row.
func (s *ThemeService) HardDelete(ctx context.Context, actor auth.Actor, id int64) error {
	if err := auth.RequireStaff(actor); err != nil {
		return err
	}
	m, err := s.load(s.DB.WithContext(ctx), id)
	if err != nil {
		return err
	}
	for _, a := range s.attributes() {
		if err := s.removeImage(ctx, m, a); err != nil {
			return err
		}
	}
	if err := s.DB.WithContext(ctx).Delete(&model.ThemeModel{}, "theme_id = ?", m.ID).Error; err != nil {
		return err
	}
	log.Printf("[ThemeService] theme %d deleted", m.ID)
	return nil
}

func deactivateOthers(tx *gorm.DB, orgID, exceptID int64) error {
	q := tx.Model(&model.ThemeModel{}).
		Where("theme_organization_id = ? AND theme_state = ?", orgID, model.ThemeStateActive)
	if exceptID != 0 {
		q = q.Where("theme_id <> ?", exceptID)
	}
	return q.Update("theme_state", model.ThemeStateInactive).Error
}

/* =========================
   Image pipeline
========================= */

func (s *ThemeService) readUploads(files dto.ThemeFiles) (map[string]*images.Upload, error) {
	out := map[string]*images.Upload{}
	for _, a := range s.attributes() {
		fh := files.For(a.Name)
		if fh == nil {
			continue
		}
		up, err := images.ReadUpload(fh, s.Images.Limits)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.Name, err)
		}
		out[a.Name] = up
	}
	return out, nil
}

// storeImage renders every size of a, writes them and stamps the theme.
// Derivatives left under a different previous extension are removed first.
func (s *ThemeService) storeImage(ctx context.Context, m *model.ThemeModel, a attribute, up *images.Upload) error {
	derivs, err := images.Generate(up.Data, a.Sizes)
	if err != nil {
		return fmt.Errorf("%s: %w", a.Name, err)
	}
	backend, err := storage.Open(s.Images.Backend)
	if err != nil {
		return err
	}

	ext := derivs.Extension()
	if m.UploadedAt(a.Name) != nil {
		if old := m.Ext(a.Name, s.defaultExt()); old != ext {
			if err := storage.DeleteAll(ctx, backend, mapValues(s.names(m, a, old))); err != nil {
				return fmt.Errorf("remove previous %s: %w", a.Name, err)
			}
		}
	}

	names := s.names(m, a, ext)
	for pixels, data := range derivs.Files {
		if err := backend.Save(ctx, names[pixels], data, derivs.Format.ContentType()); err != nil {
			return fmt.Errorf("store %s %s: %w", a.Name, pixels, err)
		}
		metrics.ImageDerivativesStored.WithLabelValues(a.Name).Inc()
	}

	at := s.now().UTC().Truncate(time.Second)
	return s.stamp(ctx, m, a.Name, &at, &ext)
}

func (s *ThemeService) removeImage(ctx context.Context, m *model.ThemeModel, a attribute) error {
	backend, err := storage.Open(s.Images.Backend)
	if err != nil {
		return err
	}
	if err := storage.DeleteAll(ctx, backend, mapValues(s.names(m, a, m.Ext(a.Name, s.defaultExt())))); err != nil {
		return fmt.Errorf("remove %s: %w", a.Name, err)
	}
	if m.UploadedAt(a.Name) == nil && m.Ext(a.Name, "") == "" {
		return nil
	}
	return s.stamp(ctx, m, a.Name, nil, nil)
}

func (s *ThemeService) stamp(ctx context.Context, m *model.ThemeModel, attr string, at *time.Time, ext *string) error {
	atCol, extCol := model.ImageColumns(attr)
	err := s.DB.WithContext(ctx).Model(&model.ThemeModel{}).
		Where("theme_id = ?", m.ID).
		Updates(map[string]any{atCol: at, extCol: ext}).Error
	if err != nil {
		return err
	}
	m.SetImage(attr, at, ext)
	return nil
}

func mapValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

/* =========================
   URLs
========================= */

// ResolveImageURLs returns {has_image, image_url_{label}...}. An uploaded
// image resolves against the theme backend with ?v={unix upload time};
// otherwise the placeholder set from the static backend is returned.
func (s *ThemeService) ResolveImageURLs(m *model.ThemeModel, attr string) (dto.ImagePayload, error) {
	a, err := s.attribute(attr)
	if err != nil {
		return nil, err
	}
	at := m.UploadedAt(a.Name)
	out := dto.ImagePayload{"has_image": at != nil}

	if at != nil {
		backend, err := storage.Open(s.Images.Backend)
		if err != nil {
			return nil, err
		}
		names := s.names(m, a, m.Ext(a.Name, s.defaultExt()))
		version := strconv.FormatInt(at.Unix(), 10)
		for _, size := range a.Sizes {
			out[s.urlKey(size)] = storage.URLFor(backend, names[size.Pixels()], version)
		}
		return out, nil
	}

	static, err := storage.Open(s.Images.Static)
	if err != nil {
		return nil, err
	}
	for _, size := range a.Sizes {
		out[s.urlKey(size)] = storage.URLFor(static, images.Filename(a.DefaultFilename, size, s.defaultExt()), "")
	}
	return out, nil
}

func (s *ThemeService) urlKey(size images.Size) string {
	prefix := s.Images.URLKeyPrefix
	if prefix == "" {
		prefix = "image_url"
	}
	return prefix + "_" + size.Label
}

// Response renders m with both image payloads.
func (s *ThemeService) Response(m *model.ThemeModel) (dto.ThemeResponse, error) {
	logo, err := s.ResolveImageURLs(m, model.AttrLogoImage)
	if err != nil {
		return dto.ThemeResponse{}, err
	}
	header, err := s.ResolveImageURLs(m, model.AttrHeaderBgImage)
	if err != nil {
		return dto.ThemeResponse{}, err
	}
	return dto.ToThemeResponse(m, logo, header), nil
}

/* =========================
   Reaper
========================= */

// ReferencedNames lists every derivative filename an uploaded theme image
// still points at. It is the keep set of the orphan reaper.
func (s *ThemeService) ReferencedNames(ctx context.Context) (map[string]bool, error) {
	keep := map[string]bool{}
	var batch []model.ThemeModel
	err := s.DB.WithContext(ctx).
		Preload("Organization").
		Where("theme_logo_image_uploaded_at IS NOT NULL OR theme_header_bg_image_uploaded_at IS NOT NULL").
		FindInBatches(&batch, 200, func(tx *gorm.DB, _ int) error {
			for i := range batch {
				m := &batch[i]
				for _, a := range s.attributes() {
					if m.UploadedAt(a.Name) == nil {
						continue
					}
					for _, n := range s.names(m, a, m.Ext(a.Name, s.defaultExt())) {
						keep[n] = true
					}
				}
			}
			return nil
		}).Error
	if err != nil {
		return nil, err
	}
	return keep, nil
}
