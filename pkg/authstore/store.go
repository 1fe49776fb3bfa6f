// Package authstore persists users and permission grants. The error
// contract matters to callers: ErrNotFound marks a missing row and nothing
// else; any other failure wraps the underlying storage error and must be
// propagated, never treated as "no grant".
package authstore

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/modeltrack/modeltrack/pkg/permissions"
)

// ErrNotFound is returned when a user or grant does not exist.
var ErrNotFound = errors.New("not found")

// ErrExists is returned when creating a user or grant that already exists.
var ErrExists = errors.New("already exists")

// ErrInvalidPermission is returned when a grant names an unknown permission
// level.
var ErrInvalidPermission = errors.New("invalid permission")

// Store provides CRUD operations for users and permission grants.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewStore creates a Store. A nil logger falls back to slog.Default().
func NewStore(db *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// AutoMigrate creates or updates the auth tables.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&User{}, &ExperimentPermission{}, &RegisteredModelPermission{}); err != nil {
		return fmt.Errorf("auto-migrate auth tables: %w", err)
	}
	return nil
}

// CreateUser creates an account with a bcrypt-hashed password.
func (s *Store) CreateUser(username, password string, isAdmin bool) (*User, error) {
	if username == "" {
		return nil, fmt.Errorf("username must not be empty")
	}
	var count int64
	if err := s.db.Model(&User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check user %q: %w", username, err)
	}
	if count > 0 {
		return nil, fmt.Errorf("user %q: %w", username, ErrExists)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &User{Username: username, PasswordHash: string(hash), IsAdmin: isAdmin}
	if err := s.db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user %q: %w", username, err)
	}
	return user, nil
}

// GetUser returns the user with the given username.
func (s *Store) GetUser(username string) (*User, error) {
	var user User
	err := s.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
		}
		return nil, fmt.Errorf("get user %q: %w", username, err)
	}
	return &user, nil
}

// HasUser reports whether an account with the given username exists.
func (s *Store) HasUser(username string) (bool, error) {
	var count int64
	if err := s.db.Model(&User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check user %q: %w", username, err)
	}
	return count > 0, nil
}

// ListUsers returns all accounts ordered by username.
func (s *Store) ListUsers() ([]User, error) {
	var users []User
	if err := s.db.Order("username ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Authenticate verifies a username/password pair. A missing user and a
// wrong password are both reported as false with no error.
func (s *Store) Authenticate(username, password string) (bool, error) {
	user, err := s.GetUser(username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil, nil
}

// UpdatePassword replaces a user's password hash.
func (s *Store) UpdatePassword(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.updateUserColumn(username, "password_hash", string(hash))
}

// UpdateAdmin changes a user's administrator flag.
func (s *Store) UpdateAdmin(username string, isAdmin bool) error {
	return s.updateUserColumn(username, "is_admin", isAdmin)
}

func (s *Store) updateUserColumn(username, column string, value any) error {
	result := s.db.Model(&User{}).Where("username = ?", username).Update(column, value)
	if result.Error != nil {
		return fmt.Errorf("update user %q: %w", username, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	return nil
}

// DeleteUser removes an account and all grants held by it.
func (s *Store) DeleteUser(username string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("username = ?", username).Delete(&User{})
		if result.Error != nil {
			return fmt.Errorf("delete user %q: %w", username, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("user %q: %w", username, ErrNotFound)
		}
		if err := tx.Where("username = ?", username).Delete(&ExperimentPermission{}).Error; err != nil {
			return fmt.Errorf("delete experiment grants for %q: %w", username, err)
		}
		if err := tx.Where("username = ?", username).Delete(&RegisteredModelPermission{}).Error; err != nil {
			return fmt.Errorf("delete model grants for %q: %w", username, err)
		}
		return nil
	})
}

// EnsureAdmin creates the bootstrap administrator if it does not exist.
// Safe to call on every startup.
func (s *Store) EnsureAdmin(username, password string) error {
	exists, err := s.HasUser(username)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if _, err := s.CreateUser(username, password, true); err != nil {
		// Another replica may have won the race between the check and the
		// insert; that still satisfies the bootstrap.
		if errors.Is(err, ErrExists) {
			return nil
		}
		return err
	}
	s.logger.Info("created bootstrap admin user; change its password as soon as possible",
		"username", username)
	return nil
}

// CreateExperimentPermission stores a grant for (experimentID, username).
func (s *Store) CreateExperimentPermission(experimentID, username, permission string) (*ExperimentPermission, error) {
	if err := validatePermission(permission); err != nil {
		return nil, err
	}
	var count int64
	if err := s.db.Model(&ExperimentPermission{}).
		Where("experiment_id = ? AND username = ?", experimentID, username).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check experiment grant: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("experiment permission (%s, %s): %w", experimentID, username, ErrExists)
	}
	grant := &ExperimentPermission{ExperimentID: experimentID, Username: username, Permission: permission}
	if err := s.db.Create(grant).Error; err != nil {
		return nil, fmt.Errorf("create experiment grant: %w", err)
	}
	return grant, nil
}

// GetExperimentPermission returns the grant for (experimentID, username).
func (s *Store) GetExperimentPermission(experimentID, username string) (*ExperimentPermission, error) {
	var grant ExperimentPermission
	err := s.db.Where("experiment_id = ? AND username = ?", experimentID, username).First(&grant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("experiment permission (%s, %s): %w", experimentID, username, ErrNotFound)
		}
		return nil, fmt.Errorf("get experiment grant: %w", err)
	}
	return &grant, nil
}

// UpdateExperimentPermission replaces the permission of an existing grant.
func (s *Store) UpdateExperimentPermission(experimentID, username, permission string) error {
	if err := validatePermission(permission); err != nil {
		return err
	}
	result := s.db.Model(&ExperimentPermission{}).
		Where("experiment_id = ? AND username = ?", experimentID, username).
		Update("permission", permission)
	if result.Error != nil {
		return fmt.Errorf("update experiment grant: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("experiment permission (%s, %s): %w", experimentID, username, ErrNotFound)
	}
	return nil
}

// DeleteExperimentPermission removes the grant for (experimentID, username).
func (s *Store) DeleteExperimentPermission(experimentID, username string) error {
	result := s.db.Where("experiment_id = ? AND username = ?", experimentID, username).
		Delete(&ExperimentPermission{})
	if result.Error != nil {
		return fmt.Errorf("delete experiment grant: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("experiment permission (%s, %s): %w", experimentID, username, ErrNotFound)
	}
	return nil
}

// ListExperimentPermissions returns every experiment grant held by a user.
func (s *Store) ListExperimentPermissions(username string) ([]ExperimentPermission, error) {
	var grants []ExperimentPermission
	if err := s.db.Where("username = ?", username).Find(&grants).Error; err != nil {
		return nil, fmt.Errorf("list experiment grants for %q: %w", username, err)
	}
	return grants, nil
}

// CreateRegisteredModelPermission stores a grant for (name, username).
func (s *Store) CreateRegisteredModelPermission(name, username, permission string) (*RegisteredModelPermission, error) {
	if err := validatePermission(permission); err != nil {
		return nil, err
	}
	var count int64
	if err := s.db.Model(&RegisteredModelPermission{}).
		Where("name = ? AND username = ?", name, username).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check model grant: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("registered model permission (%s, %s): %w", name, username, ErrExists)
	}
	grant := &RegisteredModelPermission{Name: name, Username: username, Permission: permission}
	if err := s.db.Create(grant).Error; err != nil {
		return nil, fmt.Errorf("create model grant: %w", err)
	}
	return grant, nil
}

// GetRegisteredModelPermission returns the grant for (name, username).
func (s *Store) GetRegisteredModelPermission(name, username string) (*RegisteredModelPermission, error) {
	var grant RegisteredModelPermission
	err := s.db.Where("name = ? AND username = ?", name, username).First(&grant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("registered model permission (%s, %s): %w", name, username, ErrNotFound)
		}
		return nil, fmt.Errorf("get model grant: %w", err)
	}
	return &grant, nil
}

// UpdateRegisteredModelPermission replaces the permission of an existing grant.
func (s *Store) UpdateRegisteredModelPermission(name, username, permission string) error {
	if err := validatePermission(permission); err != nil {
		return err
	}
	result := s.db.Model(&RegisteredModelPermission{}).
		Where("name = ? AND username = ?", name, username).
		Update("permission", permission)
	if result.Error != nil {
		return fmt.Errorf("update model grant: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("registered model permission (%s, %s): %w", name, username, ErrNotFound)
	}
	return nil
}

// DeleteRegisteredModelPermission removes the grant for (name, username).
func (s *Store) DeleteRegisteredModelPermission(name, username string) error {
	result := s.db.Where("name = ? AND username = ?", name, username).
		Delete(&RegisteredModelPermission{})
	if result.Error != nil {
		return fmt.Errorf("delete model grant: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("registered model permission (%s, %s): %w", name, username, ErrNotFound)
	}
	return nil
}

// ListRegisteredModelPermissions returns every model grant held by a user.
func (s *Store) ListRegisteredModelPermissions(username string) ([]RegisteredModelPermission, error) {
	var grants []RegisteredModelPermission
	if err := s.db.Where("username = ?", username).Find(&grants).Error; err != nil {
		return nil, fmt.Errorf("list model grants for %q: %w", username, err)
	}
	return grants, nil
}

func validatePermission(permission string) error {
	if _, err := permissions.Get(permission); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPermission, err)
	}
	return nil
}
