// Package auth authenticates bearer tokens and puts the caller on the request.
package auth

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"

	userModel "mobileapps_backend/internals/features/users/model"
	helperAuth "mobileapps_backend/internals/helpers/auth"
)

type AuthJWTOpts struct {
	Secret string
	DB     *gorm.DB
	// AllowCookieFallback reads the access_token cookie when no Bearer header is sent.
	AllowCookieFallback bool
	// Leeway tolerated on exp.
	Leeway time.Duration
}

// AuthJWT verifies an HMAC-signed token, loads the user it names and stores
// the resulting Actor. Inactive or unknown users are rejected.
func AuthJWT(o AuthJWTOpts) fiber.Handler {
	secret := strings.TrimSpace(o.Secret)
	if secret == "" {
		panic("AuthJWT: Secret is required")
	}
	if o.DB == nil {
		panic("AuthJWT: DB is required")
	}

	return func(c *fiber.Ctx) error {
		raw := bearerToken(c, o.AllowCookieFallback)
		if raw == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
		}

		parser := jwt.Parser{SkipClaimsValidation: true}
		claims := jwt.MapClaims{}
		if _, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		}); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}
		if err := validateExpiry(claims, o.Leeway); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		userID, err := userIDFromClaims(claims)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		var u userModel.UserModel
		if err := o.DB.WithContext(c.UserContext()).First(&u, "user_id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusUnauthorized, "user not found")
			}
			log.Printf("[ERROR] AuthJWT load user %d: %v", userID, err)
			return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
		}
		if !u.IsActive {
			return fiber.NewError(fiber.StatusForbidden, "account is disabled")
		}

		helperAuth.SetActor(c, helperAuth.Actor{UserID: u.ID, IsStaff: u.IsStaff})
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx, cookieFallback bool) string {
	authz := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	if cookieFallback {
		return strings.TrimSpace(c.Cookies("access_token"))
	}
	return ""
}

// validateExpiry requires exp and accepts it up to leeway in the past.
func validateExpiry(claims jwt.MapClaims, leeway time.Duration) error {
	var exp int64
	switch v := claims["exp"].(type) {
	case float64:
		exp = int64(v)
	case int64:
		exp = v
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return errors.New("invalid exp")
		}
		exp = n
	default:
		return errors.New("missing exp")
	}
	if time.Now().Add(-leeway).Unix() > exp {
		return errors.New("token expired")
	}
	return nil
}

// userIDFromClaims reads id, sub or user_id, in that order.
func userIDFromClaims(claims jwt.MapClaims) (int64, error) {
	for _, key := range []string{"id", "sub", "user_id"} {
		switch v := claims[key].(type) {
		case float64:
			if v > 0 {
				return int64(v), nil
			}
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && n > 0 {
				return n, nil
			}
		}
	}
	return 0, errors.New("invalid or missing user id")
}
