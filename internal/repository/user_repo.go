package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/ada-judge-api/internal/models"
)

// UserRepository exposes persistence helpers for judge accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (models.User, error)
	GetByUploadKey(ctx context.Context, uploadKey string) (models.User, error)
	SSHKeyInUse(ctx context.Context, sshKey string, excludeUserID uint) (bool, error)
	UpdateCredentials(ctx context.Context, userID uint, sshKey, uploadKey string) error
	UpdatePassword(ctx context.Context, userID uint, passwordHash string) error
	UpdateName(ctx context.Context, userID uint, name string) error
}

// NewUserRepository constructs a user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Preload("SubmissionLimits", func(db *gorm.DB) *gorm.DB {
			return db.Order("problem_id ASC")
		}).
		First(&user, id).Error
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) GetByUploadKey(ctx context.Context, uploadKey string) (models.User, error) {
	var user models.User
	if uploadKey == "" {
		return models.User{}, gorm.ErrRecordNotFound
	}
	err := r.db.WithContext(ctx).Where("git_upload_key = ?", uploadKey).First(&user).Error
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) SSHKeyInUse(ctx context.Context, sshKey string, excludeUserID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("ssh_key = ? AND id <> ?", sshKey, excludeUserID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateCredentials writes the rotated key pair in one statement so other user fields are untouched.
func (r *userRepository) UpdateCredentials(ctx context.Context, userID uint, sshKey, uploadKey string) error {
	return r.updateColumns(ctx, userID, map[string]interface{}{
		"ssh_key":        sshKey,
		"git_upload_key": uploadKey,
	})
}

func (r *userRepository) UpdatePassword(ctx context.Context, userID uint, passwordHash string) error {
	return r.updateColumns(ctx, userID, map[string]interface{}{"password": passwordHash})
}

func (r *userRepository) UpdateName(ctx context.Context, userID uint, name string) error {
	return r.updateColumns(ctx, userID, map[string]interface{}{"meta_name": name})
}

func (r *userRepository) updateColumns(ctx context.Context, userID uint, values map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
