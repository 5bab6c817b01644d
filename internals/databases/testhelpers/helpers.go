// Package testhelpers builds in-memory databases for package tests.
package testhelpers

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	database "mobileapps_backend/internals/databases"
	orgModel "mobileapps_backend/internals/features/organizations/model"
	userModel "mobileapps_backend/internals/features/users/model"
)

// StringPtr returns a pointer to the given string value.
func StringPtr(s string) *string {
	return &s
}

// SetupTestDB opens an in-memory SQLite database with every table and the
// active-theme partial index. One connection only, so all queries see the same memory DB.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func SeedUser(t *testing.T, db *gorm.DB, username string, staff bool) userModel.UserModel {
	t.Helper()
	u := userModel.UserModel{Username: username, Email: username + "@example.com", IsStaff: staff, IsActive: true}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

// SeedOrganization creates an organization with the given member user ids.
func SeedOrganization(t *testing.T, db *gorm.DB, name string, memberIDs ...int64) orgModel.OrganizationModel {
	t.Helper()
	o := orgModel.OrganizationModel{Name: name}
	if err := db.Create(&o).Error; err != nil {
		t.Fatalf("seed organization %s: %v", name, err)
	}
	for _, uid := range memberIDs {
		if err := db.Create(&orgModel.OrganizationUserModel{OrganizationID: o.ID, UserID: uid}).Error; err != nil {
			t.Fatalf("seed member %d of %s: %v", uid, name, err)
		}
	}
	return o
}
