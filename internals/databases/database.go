package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"mobileapps_backend/internals/configs"
	mobileModel "mobileapps_backend/internals/features/mobileapps/model"
	orgModel "mobileapps_backend/internals/features/organizations/model"
	themeModel "mobileapps_backend/internals/features/themes/model"
	userModel "mobileapps_backend/internals/features/users/model"
)

var DB *gorm.DB

func ConnectDB() {
	log.Println("🔌 Koneksi ke PostgreSQL...")

	// Behind PgBouncer keep PreferSimpleProtocol=true and point DB_PORT at the pooler.
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&application_name=mobileapps&options=-c statement_timeout=3000",
		configs.GetEnv("DB_USER"),
		configs.GetEnv("DB_PASSWORD"),
		configs.GetEnv("DB_HOST", "localhost"),
		configs.GetEnv("DB_PORT", "5432"),
		configs.GetEnv("DB_NAME"),
		configs.GetEnv("DB_SSLMODE", "require"),
	)

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: configs.NewGormLogger()})
	if err != nil {
		log.Fatalf("❌ Gagal konek DB: %v", err)
	}
	DB = db
	log.Println("✅ DB connected.")
}

func TunePool() {
	sqlDB, err := DB.DB()
	if err != nil {
		log.Printf("pool tune err: %v", err)
		return
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxIdleTime(60 * time.Second)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)
}

func WarmUpQueries() {
	go func() {
		time.Sleep(500 * time.Millisecond)
		if err := ping(); err != nil {
			log.Printf("warm-up ping err: %v", err)
			return
		}
		var n int64
		if err := DB.Model(&themeModel.ThemeModel{}).
			Where("theme_state = ?", themeModel.ThemeStateActive).
			Count(&n).Error; err != nil {
			log.Printf("warm-up themes err: %v", err)
		}
	}()
}

func ping() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Models lists every table this service owns, in dependency order.
func Models() []any {
	return []any{
		&userModel.UserModel{},
		&orgModel.OrganizationModel{},
		&orgModel.OrganizationUserModel{},
		&mobileModel.NotificationProviderModel{},
		&mobileModel.MobileAppModel{},
		&mobileModel.MobileAppUserModel{},
		&mobileModel.MobileAppOrganizationModel{},
		&mobileModel.MobileAppHistoryModel{},
		&mobileModel.NotificationDispatchModel{},
		&themeModel.ThemeModel{},
	}
}

// Migrate creates the tables plus the partial unique index that allows
// one active theme per organization. Works on postgres and sqlite.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	if err := db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_themes_org_active ON themes (theme_organization_id) WHERE theme_state = 'active'`,
	).Error; err != nil {
		return fmt.Errorf("create ux_themes_org_active: %w", err)
	}
	return nil
}
