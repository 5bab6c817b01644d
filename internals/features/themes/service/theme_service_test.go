package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"mobileapps_backend/internals/configs"
	"mobileapps_backend/internals/databases/testhelpers"
	orgModel "mobileapps_backend/internals/features/organizations/model"
	orgService "mobileapps_backend/internals/features/organizations/service"
	"mobileapps_backend/internals/features/themes/dto"
	"mobileapps_backend/internals/features/themes/model"
	helper "mobileapps_backend/internals/helpers"
	"mobileapps_backend/internals/helpers/auth"
	"mobileapps_backend/internals/helpers/images"
	"mobileapps_backend/internals/helpers/storage"
)

type themeFixture struct {
	db    *gorm.DB
	svc   *ThemeService
	dir   string
	staff auth.Actor
	org   orgModel.OrganizationModel
}

func testImageSettings(dir string) configs.ThemeImageSettings {
	return configs.ThemeImageSettings{
		SecretKey:         "image-secret",
		LogoSizes:         images.MustParseSizes("large:40x20,small:20x10"),
		HeaderBgSizes:     images.MustParseSizes("large:60x20,small:30x10"),
		LogoKeyPrefix:     "logo_image",
		HeaderBgKeyPrefix: "header_bg_image",
		URLKeyPrefix:      "image_url",
		DefaultExtension:  "jpg",
		Limits:            images.Limits{MaxBytes: 1 << 20},
		Backend: storage.Descriptor{Class: "filesystem", Options: map[string]string{
			"dir":      dir,
			"base_url": "/media/themes",
		}},
		Static: storage.Descriptor{Class: "static", Options: map[string]string{
			"base_url": "/static",
		}},
		LogoDefaultFilename:     "themes/logo_image",
		HeaderBgDefaultFilename: "themes/header_bg_image",
	}
}

func newThemeFixture(t *testing.T) *themeFixture {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	dir := t.TempDir()
	svc := NewThemeService(db, testImageSettings(dir), orgService.NewMembership(db))
	svc.Now = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }

	admin := testhelpers.SeedUser(t, db, "admin", true)
	org := testhelpers.SeedOrganization(t, db, "Org X")
	return &themeFixture{db: db, svc: svc, dir: dir, staff: auth.Actor{UserID: admin.ID, IsStaff: true}, org: org}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// fileHeader builds a *multipart.FileHeader the way fiber hands it over.
func fileHeader(t *testing.T, field, filename string, data []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File[field][0]
}

func (f *themeFixture) files(t *testing.T, logo, header bool) dto.ThemeFiles {
	var out dto.ThemeFiles
	if logo {
		out.LogoImage = fileHeader(t, model.AttrLogoImage, "logo.png", pngBytes(t, 80, 40))
	}
	if header {
		out.HeaderBgImage = fileHeader(t, model.AttrHeaderBgImage, "header.png", pngBytes(t, 120, 40))
	}
	return out
}

func form(name string) dto.ThemeForm {
	return dto.ThemeForm{Name: &name, Present: map[string]bool{dto.FieldName: true}}
}

func (f *themeFixture) stored(t *testing.T) []string {
	t.Helper()
	var out []string
	err := filepath.Walk(f.dir, func(p string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			rel, _ := filepath.Rel(f.dir, p)
			out = append(out, rel)
		}
		return err
	})
	require.NoError(t, err)
	return out
}

func (f *themeFixture) reload(t *testing.T, id int64) *model.ThemeModel {
	t.Helper()
	m, err := f.svc.load(f.db, id)
	require.NoError(t, err)
	return m
}

func TestCreateAndActivateSwitchesActiveTheme(t *testing.T) {
	f := newThemeFixture(t)
	ctx := context.Background()

	a, err := f.svc.CreateAndActivate(ctx, f.staff, f.org.ID, form("Theme A"), f.files(t, true, false))
	require.NoError(t, err)
	require.NotNil(t, a.LogoImageUploadedAt)
	assert.Len(t, f.stored(t), 2)

	b, err := f.svc.CreateAndActivate(ctx, f.staff, f.org.ID, form("Theme B"), f.files(t, false, true))
	require.NoError(t, err)

	a = f.reload(t, a.ID)
	b = f.reload(t, b.ID)
	assert.False(t, a.IsActive())
	assert.True(t, b.IsActive())

	ra, err := f.svc.Response(a)
	require.NoError(t, err)
	assert.Nil(t, ra.Active)
	assert.Equal(t, true, ra.LogoImage["has_image"])

	rb, err := f.svc.Response(b)
	require.NoError(t, err)
	require.NotNil(t, rb.Active)
	assert.True(t, *rb.Active)
	assert.Equal(t, false, rb.LogoImage["has_image"])
	assert.Equal(t, true, rb.HeaderBgImage["has_image"])
	assert.Len(t, f.stored(t), 4)

	var active int64
	require.NoError(t, f.db.Model(&model.ThemeModel{}).
		Where("theme_organization_id = ? AND theme_state = ?", f.org.ID, model.ThemeStateActive).
		Count(&active).Error)
	assert.EqualValues(t, 1, active)
}

func TestCreateAndActivateChecksBeforeWriting(t *testing.T) {
	f := newThemeFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateAndActivate(ctx, f.staff, 999, form("x"), dto.ThemeFiles{})
	assert.ErrorIs(t, err, ErrOrganizationNotFound)

	bad := dto.ThemeFiles{LogoImage: fileHeader(t, model.AttrLogoImage, "logo.png", []byte("not an image"))}
	_, err = f.svc.CreateAndActivate(ctx, f.staff, f.org.ID, form("x"), bad)
	assert.ErrorIs(t, err, images.ErrInvalidImage)

	_, err = f.svc.CreateAndActivate(ctx, auth.Actor{UserID: 42}, f.org.ID, form("x"), dto.ThemeFiles{})
	assert.ErrorIs(t, err, auth.ErrForbidden)

	var n int64
	require.NoError(t, f.db.Model(&model.ThemeModel{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.Empty(t, f.stored(t))
}

func TestResolveImageURLs(t *testing.T) {
	f := newThemeFixture(t)
	ctx := context.Background()

	m, err := f.svc.CreateAndActivate(ctx, f.staff, f.org.ID, form("T"), f.files(t, true, false))
	require.NoError(t, err)

	logo, err := f.svc.ResolveImageURLs(m, model.AttrLogoImage)
	require.NoError(t, err)
	name := images.MakeName("image-secret", images.LogicalKey("Org X", m.ID, "logo_image"))
	version := "?v=" + "1709287200"
	assert.Equal(t, "/media/themes/"+name+"_40x20.png"+version, logo["image_url_large"])
	assert.Equal(t, "/media/themes/"+name+"_20x10.png"+version, logo["image_url_small"])

	header, err := f.svc.ResolveImageURLs(m, model.AttrHeaderBgImage)
	require.NoError(t, err)
	assert.Equal(t, dto.ImagePayload{
		"has_image":       false,
		"image_url_large": "/static/themes/header_bg_image_60x20.jpg",
		"image_url_small": "/static/themes/header_bg_image_30x10.jpg",
	}, header)

	_, err = f.svc.ResolveImageURLs(m, "banner")
	assert.ErrorIs(t, err, ErrUnknownAttribute)
}

func TestRemoveImageIsIdempotent(t *testing.T) {
	f := newThemeFixture(t)
	ctx := context.Background()

	m, err := f.svc.CreateAndActivate(ctx, f.staff, f.org.ID, form("T"), f.files(t, true, true))
	require.NoError(t, err)
	require.Len(t, f.stored(t), 4)

	for i := 0; i < 2; i++ {
		m, err = f.svc.RemoveImage(ctx, f.staff, m.ID, model.AttrLogoImage)
		require.NoError(t, err)
		logo, err := f.svc.ResolveImageURLs(m, model.AttrLogoImage)
		require.NoError(t, err)
		assert.Equal(t, false, logo["has_image"])
	}
	assert.Len(t, f.stored(t), 2)
	assert.NotNil(t, f.reload(t, m.ID).HeaderBgImageUploadedAt)

	_, err = f.svc.RemoveImage(ctx, f.staff, m.ID, "unknown_attr")
	assert.ErrorIs(t, err, ErrUnknownAttribute)
	_, err = f.svc.RemoveImage(ctx, f.staff, 9999, model.AttrLogoImage)
	assert.ErrorIs(t, err, ErrThemeNotFound)
}

func TestUpdatePutRemovesOmittedImagesPatchKeepsThem(t *testing.T) {
	f := newThemeFixture(t)
	ctx := context.Background()

	m, err := f.svc.CreateAndActivate(ctx, f.staff, f.org.ID, form("T"), f.files(t, true, true))
	require.NoError(t, err)

	color := "#112233"
	patch := dto.ThemeForm{NavigationTextColor: &color, Present: map[string]bool{dto.FieldNavigationTextColor: true}}
	m, err = f.svc.Update(ctx, f.staff, m.ID, patch, dto.ThemeFiles{}, true)
	require.NoError(t, err)
	assert.Equal(t, "T", *m.Name)
	assert.Equal(t, "#112233", *m.NavigationTextColor)
	assert.NotNil(t, m.LogoImageUploadedAt)
	assert.Len(t, f.stored(t), 4)

	m, err = f.svc.Update(ctx, f.staff, m.ID, form("T2"), f.files(t, false, true), false)
	require.NoError(t, err)
	m = f.reload(t, m.ID)
	assert.Nil(t, m.LogoImageUploadedAt)
	assert.Nil(t, m.NavigationTextColor)
	assert.NotNil(t, m.HeaderBgImageUploadedAt)
	assert.True(t, m.IsActive())
	assert.Len(t, f.stored(t), 2)
}

func TestUpdateActivateDeactivatesOthers(t *testing.T) {
	f := newThemeFixture(t)
	ctx := context.Background()

	a, err := f.svc.CreateAndActivate(ctx, f.staff, f.org.ID, form("A"), dto.ThemeFiles{})
	require.NoError(t, err)
	b, err := f.svc.CreateAndActivate(ctx, f.staff, f.org.ID, form("B"), dto.ThemeFiles{})
	require.NoError(t, err)

	yes := true
	_, err = f.svc.Update(ctx, f.staff, a.ID, dto.ThemeForm{Active: &yes, Present: map[string]bool{dto.FieldActive: true}}, dto.ThemeFiles{}, true)
	require.NoError(t, err)

	assert.True(t, f.reload(t, a.ID).IsActive())
	assert.False(t, f.reload(t, b.ID).IsActive())
}

func TestDeactivateAndHardDelete(t *testing.T) {
	f := newThemeFixture(t)
	ctx := context.Background()

	m, err := f.svc.CreateAndActivate(ctx, f.staff, f.org.ID, form("T"), f.files(t, true, true))
	require.NoError(t, err)

	require.NoError(t, f.svc.Deactivate(ctx, f.staff, m.ID))
	assert.False(t, f.reload(t, m.ID).IsActive())
	assert.Len(t, f.stored(t), 4)

	keep, err := f.svc.ReferencedNames(ctx)
	require.NoError(t, err)
	assert.Len(t, keep, 4)

	require.NoError(t, f.svc.HardDelete(ctx, f.staff, m.ID))
	assert.Empty(t, f.stored(t))
	_, err = f.svc.load(f.db, m.ID)
	assert.ErrorIs(t, err, ErrThemeNotFound)

	assert.ErrorIs(t, f.svc.Deactivate(ctx, f.staff, m.ID), ErrThemeNotFound)
}

func TestReadsAreScopedToMembers(t *testing.T) {
	f := newThemeFixture(t)
	ctx := context.Background()

	member := testhelpers.SeedUser(t, f.db, "member", false)
	outsider := testhelpers.SeedUser(t, f.db, "outsider", false)
	require.NoError(t, orgService.NewMembership(f.db).AddMember(ctx, f.org.ID, member.ID))

	m, err := f.svc.CreateAndActivate(ctx, f.staff, f.org.ID, form("T"), dto.ThemeFiles{})
	require.NoError(t, err)
	paging := helper.Paging{Page: 1, PageSize: 20}

	rows, total, err := f.svc.ListActive(ctx, auth.Actor{UserID: member.ID}, f.org.ID, paging)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, rows, 1)
	assert.Equal(t, "Org X", rows[0].Organization.Name)

	rows, total, err = f.svc.ListActive(ctx, auth.Actor{UserID: outsider.ID}, f.org.ID, paging)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, rows)

	_, err = f.svc.Get(ctx, auth.Actor{UserID: outsider.ID}, m.ID)
	assert.ErrorIs(t, err, ErrThemeNotFound)
	got, err := f.svc.Get(ctx, auth.Actor{UserID: member.ID}, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
}

func TestReaperKeepsReferencedDerivatives(t *testing.T) {
	f := newThemeFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateAndActivate(ctx, f.staff, f.org.ID, form("T"), f.files(t, true, false))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "stale_40x20.jpg"), []byte("x"), 0o644))

	backend, err := storage.Open(f.svc.Images.Backend)
	require.NoError(t, err)
	r := &storage.Reaper{Backend: backend, Keep: f.svc.ReferencedNames}

	deleted, err := r.RunOnce(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"stale_40x20.jpg"}, deleted)
	for _, n := range f.stored(t) {
		assert.False(t, strings.HasPrefix(n, "stale"), n)
	}
}
