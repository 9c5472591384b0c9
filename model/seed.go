package model

import (
	"fmt"

	"gorm.io/gorm"
)

// SeedAdminUser creates the given user with the Admin role unless an admin
// account already exists.
func SeedAdminUser(db *gorm.DB, admin User) error {
	var existing UserRole
	err := db.Where("role_name = ?", RoleAdmin).First(&existing).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	admin.Roles = append(admin.Roles, UserRole{RoleName: RoleAdmin})
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to seed admin user %s: %w", admin.Username, err)
	}
	return nil
}
