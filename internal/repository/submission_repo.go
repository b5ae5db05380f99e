package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/ada-judge-api/internal/models"
)

// SubmissionRepository exposes persistence helpers for pushed submissions.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	FindByPush(ctx context.Context, userID, problemID uint, gitHash string) (models.Submission, error)
	LatestByUser(ctx context.Context, userID uint) (models.Submission, error)
	ListByGitHash(ctx context.Context, userID uint, gitHash string) ([]models.Submission, error)
	// Mutate loads the submission under a row lock, applies fn and persists the judge-owned columns.
	Mutate(ctx context.Context, id uint, fn func(*models.Submission) error) (models.Submission, error)
}

// NewSubmissionRepository constructs a submission repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

type submissionRepository struct {
	db *gorm.DB
}

var judgeColumns = []string{"status", "result", "points", "runtime", "message", "sub_results"}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(submission).Error
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).Preload("Problem").First(&submission, id).Error
	if err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) FindByPush(ctx context.Context, userID, problemID uint, gitHash string) (models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND problem_id = ? AND git_hash = ?", userID, problemID, gitHash).
		First(&submission).Error
	if err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) LatestByUser(ctx context.Context, userID uint) (models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Preload("Problem").
		Where("user_id = ?", userID).
		Order("id DESC").
		First(&submission).Error
	if err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) ListByGitHash(ctx context.Context, userID uint, gitHash string) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Preload("Problem").
		Where("user_id = ? AND git_hash = ?", userID, gitHash).
		Order("id ASC").
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepository) Mutate(ctx context.Context, id uint, fn func(*models.Submission) error) (models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&submission, id).Error; err != nil {
			return err
		}
		if err := fn(&submission); err != nil {
			return err
		}
		return tx.Model(&submission).Select(judgeColumns).Updates(&submission).Error
	})
	if err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}
