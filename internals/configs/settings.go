package configs

import (
	"fmt"
	"log"
	"time"

	"mobileapps_backend/internals/helpers/images"
	"mobileapps_backend/internals/helpers/storage"
)

const (
	defaultLogoSizes     = "large:357x100,medium:178x50,small:89x25"
	defaultHeaderBgSizes = "large:1125x330,medium:750x220,small:375x110"
)

// ThemeImageSettings drives the theme image pipeline.
type ThemeImageSettings struct {
	SecretKey         string
	LogoSizes         []images.Size
	HeaderBgSizes     []images.Size
	LogoKeyPrefix     string
	HeaderBgKeyPrefix string
	URLKeyPrefix      string
	DefaultExtension  string
	Limits            images.Limits

	Backend storage.Descriptor
	Static  storage.Descriptor

	LogoDefaultFilename     string
	HeaderBgDefaultFilename string
}

type QueueSettings struct {
	Backend string // "redis" | "memory"
	Redis   struct {
		Addr     string
		Password string
		DB       int
	}
	Stream   string
	Group    string
	Consumer string
}

type ReaperSettings struct {
	Schedule string
	Grace    time.Duration
	DryRun   bool
}

type Settings struct {
	Port             string
	JWTSecret        string
	CredentialSecret string
	ThemeImages      ThemeImageSettings
	Queue            QueueSettings
	Reaper           ReaperSettings
}

// Load builds Settings from the environment. Call LoadEnv first.
func Load() (Settings, error) {
	var s Settings
	s.Port = GetEnv("PORT", "8080")
	s.JWTSecret = GetEnv("JWT_SECRET")
	s.CredentialSecret = GetEnv("CREDENTIAL_SECRET")

	ti := &s.ThemeImages
	ti.SecretKey = GetEnv("THEME_IMAGE_SECRET_KEY", s.JWTSecret)
	var err error
	if ti.LogoSizes, err = images.ParseSizes(GetEnv("THEME_LOGO_IMAGE_SIZES", defaultLogoSizes)); err != nil {
		return s, fmt.Errorf("THEME_LOGO_IMAGE_SIZES: %w", err)
	}
	if ti.HeaderBgSizes, err = images.ParseSizes(GetEnv("THEME_HEADER_BG_IMAGE_SIZES", defaultHeaderBgSizes)); err != nil {
		return s, fmt.Errorf("THEME_HEADER_BG_IMAGE_SIZES: %w", err)
	}
	ti.LogoKeyPrefix = "logo_image"
	ti.HeaderBgKeyPrefix = "header_bg_image"
	ti.URLKeyPrefix = "image_url"
	ti.DefaultExtension = GetEnv("THEME_IMAGE_DEFAULT_EXTENSION", images.DefaultExtension)
	ti.Limits = images.Limits{
		MaxBytes:  int64(GetEnvInt("THEME_IMAGE_MAX_BYTES", 5<<20)),
		MinWidth:  GetEnvInt("THEME_IMAGE_MIN_WIDTH", 0),
		MinHeight: GetEnvInt("THEME_IMAGE_MIN_HEIGHT", 0),
	}

	switch backend := GetEnv("THEME_IMAGE_BACKEND", "filesystem"); backend {
	case "oss":
		ti.Backend = storage.Descriptor{Class: "oss", Options: map[string]string{
			"endpoint":    GetEnv("ALI_OSS_ENDPOINT"),
			"bucket":      GetEnv("ALI_OSS_BUCKET"),
			"access_key":  GetEnv("ALI_OSS_ACCESS_KEY"),
			"secret_key":  GetEnv("ALI_OSS_SECRET_KEY"),
			"prefix":      GetEnv("THEME_IMAGE_OSS_PREFIX", "themes"),
			"public_base": GetEnv("ALI_OSS_PUBLIC_BASE"),
		}}
	case "filesystem":
		ti.Backend = storage.Descriptor{Class: "filesystem", Options: map[string]string{
			"dir":      GetEnv("THEME_IMAGE_DIR", "./media/themes"),
			"base_url": GetEnv("THEME_IMAGE_BASE_URL", "/media/themes"),
		}}
	default:
		return s, fmt.Errorf("THEME_IMAGE_BACKEND: unknown backend %q", backend)
	}
	ti.Static = storage.Descriptor{Class: "static", Options: map[string]string{
		"base_url": GetEnv("STATIC_BASE_URL", "/static"),
	}}
	ti.LogoDefaultFilename = GetEnv("THEME_LOGO_IMAGE_DEFAULT_FILENAME", "themes/logo_image")
	ti.HeaderBgDefaultFilename = GetEnv("THEME_HEADER_BG_IMAGE_DEFAULT_FILENAME", "themes/header_bg_image")

	q := &s.Queue
	q.Backend = GetEnv("QUEUE_BACKEND", "memory")
	q.Redis.Addr = GetEnv("REDIS_ADDR", "localhost:6379")
	q.Redis.Password = GetEnv("REDIS_PASSWORD")
	q.Redis.DB = GetEnvInt("REDIS_DB", 0)
	q.Stream = GetEnv("NOTIFICATION_STREAM", "notifications")
	q.Group = GetEnv("NOTIFICATION_GROUP", "notification-workers")
	q.Consumer = GetEnv("NOTIFICATION_CONSUMER", "worker-1")

	s.Reaper = ReaperSettings{
		Schedule: GetEnv("IMAGE_REAPER_SCHEDULE"),
		Grace:    time.Duration(GetEnvInt("IMAGE_REAPER_GRACE_HOURS", 24)) * time.Hour,
		DryRun:   GetEnvBool("IMAGE_REAPER_DRY_RUN", true),
	}

	log.Printf("[INFO] settings: theme backend=%s queue=%s", ti.Backend, q.Backend)
	return s, nil
}
