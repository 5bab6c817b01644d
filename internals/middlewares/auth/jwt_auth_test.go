package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mobileapps_backend/internals/databases/testhelpers"
	userModel "mobileapps_backend/internals/features/users/model"
	helper "mobileapps_backend/internals/helpers"
	helperAuth "mobileapps_backend/internals/helpers/auth"
)

const testSecret = "jwt-test-secret"

func sign(t *testing.T, claims jwt.MapClaims, method jwt.SigningMethod, key any) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestAuthJWT(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	staff := testhelpers.SeedUser(t, db, "staff", true)
	disabled := testhelpers.SeedUser(t, db, "disabled", false)
	require.NoError(t, db.Model(&userModel.UserModel{}).Where("user_id = ?", disabled.ID).Update("user_is_active", false).Error)

	app := fiber.New(fiber.Config{ErrorHandler: helper.FromFiberError})
	app.Use(AuthJWT(AuthJWTOpts{Secret: testSecret, DB: db}))
	app.Get("/me", func(c *fiber.Ctx) error {
		a, err := helperAuth.ActorFrom(c)
		if err != nil {
			return err
		}
		return c.SendString(strconv.FormatInt(a.UserID, 10) + ":" + strconv.FormatBool(a.IsStaff))
	})

	exp := time.Now().Add(time.Hour).Unix()
	cases := []struct {
		name   string
		token  string
		status int
		body   string
	}{
		{"missing", "", http.StatusUnauthorized, ""},
		{"valid numeric sub", sign(t, jwt.MapClaims{"sub": strconv.FormatInt(staff.ID, 10), "exp": exp}, jwt.SigningMethodHS256, []byte(testSecret)), http.StatusOK, strconv.FormatInt(staff.ID, 10) + ":true"},
		{"valid id claim", sign(t, jwt.MapClaims{"id": float64(staff.ID), "exp": exp}, jwt.SigningMethodHS256, []byte(testSecret)), http.StatusOK, strconv.FormatInt(staff.ID, 10) + ":true"},
		{"wrong secret", sign(t, jwt.MapClaims{"sub": "1", "exp": exp}, jwt.SigningMethodHS256, []byte("other")), http.StatusUnauthorized, ""},
		{"expired", sign(t, jwt.MapClaims{"sub": "1", "exp": time.Now().Add(-time.Hour).Unix()}, jwt.SigningMethodHS256, []byte(testSecret)), http.StatusUnauthorized, ""},
		{"no exp", sign(t, jwt.MapClaims{"sub": "1"}, jwt.SigningMethodHS256, []byte(testSecret)), http.StatusUnauthorized, ""},
		{"unknown user", sign(t, jwt.MapClaims{"sub": "9999", "exp": exp}, jwt.SigningMethodHS256, []byte(testSecret)), http.StatusUnauthorized, ""},
		{"disabled user", sign(t, jwt.MapClaims{"sub": strconv.FormatInt(disabled.ID, 10), "exp": exp}, jwt.SigningMethodHS256, []byte(testSecret)), http.StatusForbidden, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
			if tc.body != "" {
				b, _ := io.ReadAll(resp.Body)
				assert.Equal(t, tc.body, string(b))
			}
		})
	}
}
