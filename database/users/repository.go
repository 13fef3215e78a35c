// Package users stores participant and administrator accounts.
package users

import (
	"errors"
	"fmt"

	"tradelab/database"
	models "tradelab/database/models_pkg"

	"gorm.io/gorm"
)

// Repository handles database operations for user accounts
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new user repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ByUsername returns the account with the given username.
func (r *Repository) ByUsername(username string) (*models.User, error) {
	var user models.User
	err := r.db.Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, database.NewNotFoundErrorWithID("user", username)
	}
	if err != nil {
		return nil, fmt.Errorf("ByUsername: %w", err)
	}
	return &user, nil
}

// ByID returns the account with the given id.
func (r *Repository) ByID(id int64) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, database.NewNotFoundErrorWithID("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("ByID: %w", err)
	}
	return &user, nil
}

// Create inserts a new account.
func (r *Repository) Create(user *models.User) error {
	if user.Username == "" {
		return database.NewValidationError("username", "must not be empty")
	}
	if err := r.db.Create(user).Error; err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// Update writes the account's mutable fields.
func (r *Repository) Update(user *models.User) error {
	if err := r.db.Save(user).Error; err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	return nil
}

// Delete removes an account. The handler layer refuses admin deletion; this
// method does not re-check.
func (r *Repository) Delete(id int64) error {
	result := r.db.Delete(&models.User{}, id)
	if result.Error != nil {
		return fmt.Errorf("Delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return database.NewNotFoundErrorWithID("user", id)
	}
	return nil
}

// ListParticipants returns every non-admin account, ordered by username.
func (r *Repository) ListParticipants() ([]models.User, error) {
	var list []models.User
	err := r.db.Where("role = ?", models.RoleUser).Order("username ASC").Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("ListParticipants: %w", err)
	}
	return list, nil
}

// Count returns the total number of accounts.
func (r *Repository) Count() (int64, error) {
	var count int64
	if err := r.db.Model(&models.User{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return count, nil
}
