package route

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"mobileapps_backend/internals/databases/testhelpers"
	"mobileapps_backend/internals/features/mobileapps/model"
	helper "mobileapps_backend/internals/helpers"
	"mobileapps_backend/internals/helpers/auth"
	"mobileapps_backend/internals/helpers/queue"
	"mobileapps_backend/internals/helpers/secret"
)

type harness struct {
	app     *fiber.App
	db      *gorm.DB
	q       *queue.Memory
	staffID int64
	userID  int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	c, err := secret.NewCipher("route-test-secret")
	require.NoError(t, err)
	q := queue.NewMemory(16)
	t.Cleanup(func() { _ = q.Close() })

	staff := testhelpers.SeedUser(t, db, "staff", true)
	user := testhelpers.SeedUser(t, db, "user", false)

	app := fiber.New(fiber.Config{ErrorHandler: helper.FromFiberError})
	api := app.Group("/api", func(c *fiber.Ctx) error {
		id, _ := strconv.ParseInt(c.Get("X-Test-User"), 10, 64)
		auth.SetActor(c, auth.Actor{UserID: id, IsStaff: id == staff.ID})
		return c.Next()
	})
	MobileAppRoutes(api, Deps{DB: db, Validate: helper.NewValidator(), Cipher: c, Queue: q})

	return &harness{app: app, db: db, q: q, staffID: staff.ID, userID: user.ID}
}

func (h *harness) do(t *testing.T, method, path string, as int64, body any) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", strconv.FormatInt(as, 10))
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (h *harness) createApp(t *testing.T, body map[string]any) int64 {
	t.Helper()
	status, out := h.do(t, http.MethodPost, "/api/mobileapps", h.staffID, body)
	require.Equal(t, http.StatusCreated, status, out)
	return int64(out["data"].(map[string]any)["id"].(float64))
}

func TestCreateKeepsProviderKeyEncryptedAtRest(t *testing.T) {
	h := newHarness(t)
	id := h.createApp(t, map[string]any{"name": "Demo", "current_version": "1.0", "provider_key": "secret123"})

	var raw model.MobileAppModel
	require.NoError(t, h.db.First(&raw, "mobile_app_id = ?", id).Error)
	require.NotNil(t, raw.ProviderKey)
	assert.NotEqual(t, "secret123", *raw.ProviderKey)

	status, out := h.do(t, http.MethodGet, "/api/mobileapps/"+strconv.FormatInt(id, 10), h.staffID, nil)
	require.Equal(t, http.StatusOK, status)
	data := out["data"].(map[string]any)
	assert.Equal(t, "secret123", data["provider_key"])
	assert.Equal(t, float64(1), data["deployment_mechanism"])
	assert.Equal(t, true, data["is_active"])
	assert.Equal(t, float64(h.staffID), data["updated_by"])
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)

	status, out := h.do(t, http.MethodPost, "/api/mobileapps", h.staffID, map[string]any{"name": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, out["errors"], "current_version")

	status, _ = h.do(t, http.MethodPost, "/api/mobileapps", h.staffID,
		map[string]any{"name": "x", "current_version": "1", "ios_download_url": "not a url"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = h.do(t, http.MethodPost, "/api/mobileapps", h.userID, map[string]any{"name": "x", "current_version": "1"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = h.do(t, http.MethodPost, "/api/mobileapps", h.staffID,
		map[string]any{"name": "x", "current_version": "1", "provider_key": "enc_str__hello"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, out = h.do(t, http.MethodGet, "/api/mobileapps", h.staffID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, out["data"])
}

func TestDetailWritesAndDelete(t *testing.T) {
	h := newHarness(t)
	id := h.createApp(t, map[string]any{"name": "Demo", "current_version": "1.0", "analytics_url": "https://a.example.com"})
	path := "/api/mobileapps/" + strconv.FormatInt(id, 10)

	status, out := h.do(t, http.MethodPatch, path, h.staffID, map[string]any{"is_active": false})
	require.Equal(t, http.StatusOK, status)
	data := out["data"].(map[string]any)
	assert.Equal(t, false, data["is_active"])
	assert.Equal(t, "https://a.example.com", data["analytics_url"])

	status, out = h.do(t, http.MethodPut, path, h.staffID, map[string]any{"name": "Demo 2", "current_version": "2.0"})
	require.Equal(t, http.StatusOK, status)
	data = out["data"].(map[string]any)
	assert.Nil(t, data["analytics_url"])
	assert.Equal(t, true, data["is_active"])

	status, _ = h.do(t, http.MethodDelete, path, h.staffID, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)

	for _, m := range []string{http.MethodPut, http.MethodPatch, http.MethodDelete} {
		status, _ = h.do(t, m, path, h.userID, map[string]any{"name": "x", "current_version": "1"})
		assert.Equal(t, http.StatusForbidden, status, m)
	}

	status, _ = h.do(t, http.MethodGet, path, h.userID, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, out = h.do(t, http.MethodGet, path+"/history", h.staffID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["data"], 3)
}

func TestListPaging(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 25; i++ {
		h.createApp(t, map[string]any{"name": "App " + strconv.Itoa(i), "current_version": "1"})
	}

	status, out := h.do(t, http.MethodGet, "/api/mobileapps", h.staffID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["data"], 20)
	pg := out["pagination"].(map[string]any)
	assert.Equal(t, float64(25), pg["count"])
	assert.Equal(t, float64(2), pg["num_pages"])

	status, _ = h.do(t, http.MethodGet, "/api/mobileapps?page=5", h.staffID, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, out = h.do(t, http.MethodGet, "/api/mobileapps?page_size=0", h.staffID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["data"], 25)
	assert.NotContains(t, out, "pagination")

	status, out = h.do(t, http.MethodGet, "/api/mobileapps?app_name=app%2024", h.staffID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["data"], 1)
}

func TestUserAndOrganizationAssociations(t *testing.T) {
	h := newHarness(t)
	org := testhelpers.SeedOrganization(t, h.db, "Org", h.userID)
	id := h.createApp(t, map[string]any{"name": "Demo", "current_version": "1.0"})
	base := "/api/mobileapps/" + strconv.FormatInt(id, 10)

	status, _ := h.do(t, http.MethodPost, base+"/users", h.staffID, map[string]any{"users": []int64{h.userID}})
	assert.Equal(t, http.StatusCreated, status)
	status, _ = h.do(t, http.MethodPost, base+"/organizations", h.staffID, map[string]any{"organizations": []int64{org.ID}})
	assert.Equal(t, http.StatusCreated, status)

	status, out := h.do(t, http.MethodGet, base+"/users", h.userID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["data"], 1)

	status, out = h.do(t, http.MethodGet, base+"/organizations", h.userID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["data"], 1)

	status, _ = h.do(t, http.MethodPost, base+"/users", h.userID, map[string]any{"users": []int64{h.userID}})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = h.do(t, http.MethodDelete, base+"/users", h.staffID, map[string]any{"users": []int64{h.userID}})
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = h.do(t, http.MethodDelete, base+"/organizations", h.staffID, map[string]any{"organizations": []int64{org.ID}})
	assert.Equal(t, http.StatusNoContent, status)

	status, out = h.do(t, http.MethodGet, base+"/users", h.staffID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, out["data"])

	status, _ = h.do(t, http.MethodPost, "/api/mobileapps/999/users", h.staffID, map[string]any{"users": []int64{h.userID}})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSelectedUsersNotification(t *testing.T) {
	h := newHarness(t)
	p := model.NotificationProviderModel{Name: "urban-airship"}
	require.NoError(t, h.db.Create(&p).Error)
	id := h.createApp(t, map[string]any{"name": "Push", "current_version": "1", "notification_provider": p.ID})
	path := "/api/mobileapps/" + strconv.FormatInt(id, 10) + "/users/notification"

	status, _ := h.do(t, http.MethodPost, path, h.staffID, map[string]any{"message": "hi", "users": []int64{}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 0, h.q.Len())

	status, out := h.do(t, http.MethodPost, path, h.staffID, map[string]any{"message": "hi", "users": []int64{1, 2, 3}})
	require.Equal(t, http.StatusAccepted, status, out)
	assert.Equal(t, 1, h.q.Len())
	assert.Len(t, out["data"].(map[string]any)["task_ids"], 1)
}

func TestNotificationStatusCodes(t *testing.T) {
	h := newHarness(t)
	p := model.NotificationProviderModel{Name: "urban-airship"}
	require.NoError(t, h.db.Create(&p).Error)
	active := h.createApp(t, map[string]any{"name": "Active", "current_version": "1", "notification_provider": p.ID})
	inactive := h.createApp(t, map[string]any{"name": "Off", "current_version": "1", "notification_provider": p.ID, "is_active": false})
	bare := h.createApp(t, map[string]any{"name": "Bare", "current_version": "1"})
	org := testhelpers.SeedOrganization(t, h.db, "Org", h.userID)

	url := func(id int64, suffix string) string {
		return "/api/mobileapps/" + strconv.FormatInt(id, 10) + suffix
	}
	msg := map[string]any{"message": "hello"}

	cases := []struct {
		name   string
		path   string
		as     int64
		body   map[string]any
		status int
	}{
		{"broadcast", "/api/mobileapps/notification", h.staffID, msg, http.StatusAccepted},
		{"broadcast empty message", "/api/mobileapps/notification", h.staffID, map[string]any{"message": ""}, http.StatusBadRequest},
		{"broadcast non staff", "/api/mobileapps/notification", h.userID, msg, http.StatusForbidden},
		{"app users", url(active, "/notification"), h.staffID, msg, http.StatusAccepted},
		{"app missing", url(9999, "/notification"), h.staffID, msg, http.StatusNotFound},
		{"app without provider", url(bare, "/notification"), h.staffID, msg, http.StatusNotFound},
		{"app inactive", url(inactive, "/notification"), h.staffID, msg, http.StatusForbidden},
		{"app empty message", url(active, "/notification"), h.staffID, map[string]any{"message": ""}, http.StatusBadRequest},
		{"selected missing users", url(active, "/users/notification"), h.staffID, msg, http.StatusBadRequest},
		{"org not linked", url(active, "/organization/"+strconv.FormatInt(org.ID, 10)+"/notification"), h.staffID, msg, http.StatusBadRequest},
		{"org inactive app", url(inactive, "/organization/"+strconv.FormatInt(org.ID, 10)+"/notification"), h.staffID, msg, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, out := h.do(t, http.MethodPost, tc.path, tc.as, tc.body)
			assert.Equal(t, tc.status, status, out)
		})
	}

	status, _ := h.do(t, http.MethodPost, url(active, "/organizations"), h.staffID, map[string]any{"organizations": []int64{org.ID}})
	require.Equal(t, http.StatusCreated, status)
	status, _ = h.do(t, http.MethodPost, url(active, "/organization/"+strconv.FormatInt(org.ID, 10)+"/notification"), h.staffID, msg)
	assert.Equal(t, http.StatusAccepted, status)
}

func TestProviderRoutes(t *testing.T) {
	h := newHarness(t)

	status, out := h.do(t, http.MethodPost, "/api/mobileapps/notification_providers", h.staffID,
		map[string]any{"name": "urban-airship", "api_url": "https://go.urbanairship.com"})
	require.Equal(t, http.StatusCreated, status)
	pid := int64(out["data"].(map[string]any)["id"].(float64))

	h.createApp(t, map[string]any{"name": "Push", "current_version": "1", "notification_provider": pid})

	status, _ = h.do(t, http.MethodDelete, "/api/mobileapps/notification_providers/"+strconv.FormatInt(pid, 10), h.staffID, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, out = h.do(t, http.MethodGet, "/api/mobileapps/notification_providers", h.userID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["data"], 1)
	assert.True(t, strings.HasPrefix(out["data"].([]any)[0].(map[string]any)["api_url"].(string), "https://"))
}
