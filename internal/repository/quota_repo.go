package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/ada-judge-api/internal/models"
)

// QuotaRepository stores per-user, per-problem daily submission counters.
type QuotaRepository interface {
	// Consume resets the counter when it belongs to another day and increments it only while it
	// is below limit. The returned flag reports whether the increment happened.
	Consume(ctx context.Context, userID, problemID uint, limit int, today string) (models.QuotaRecord, bool, error)
	// Release gives back one unit consumed today.
	Release(ctx context.Context, userID, problemID uint, today string) error
	Get(ctx context.Context, userID, problemID uint) (models.QuotaRecord, error)
	ListByUser(ctx context.Context, userID uint) ([]models.QuotaRecord, error)
}

// NewQuotaRepository constructs a quota repository.
func NewQuotaRepository(db *gorm.DB) QuotaRepository {
	return &quotaRepository{db: db}
}

type quotaRepository struct {
	db *gorm.DB
}

func (r *quotaRepository) Consume(ctx context.Context, userID, problemID uint, limit int, today string) (models.QuotaRecord, bool, error) {
	var (
		record   models.QuotaRecord
		admitted bool
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := models.QuotaRecord{
			UserID:             userID,
			ProblemID:          problemID,
			LastSubmissionDate: today,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "problem_id"}},
			DoNothing: true,
		}).Create(&seed).Error
		if err != nil {
			return err
		}

		err = tx.Model(&models.QuotaRecord{}).
			Where("user_id = ? AND problem_id = ? AND last_submission_date <> ?", userID, problemID, today).
			Updates(map[string]interface{}{
				"quota_used":           0,
				"last_submission_date": today,
			}).Error
		if err != nil {
			return err
		}

		result := tx.Model(&models.QuotaRecord{}).
			Where("user_id = ? AND problem_id = ? AND quota_used < ?", userID, problemID, limit).
			UpdateColumn("quota_used", gorm.Expr("quota_used + ?", 1))
		if result.Error != nil {
			return result.Error
		}
		admitted = result.RowsAffected == 1

		return tx.Where("user_id = ? AND problem_id = ?", userID, problemID).First(&record).Error
	})
	if err != nil {
		return models.QuotaRecord{}, false, err
	}

	return record, admitted, nil
}

func (r *quotaRepository) Release(ctx context.Context, userID, problemID uint, today string) error {
	return r.db.WithContext(ctx).
		Model(&models.QuotaRecord{}).
		Where("user_id = ? AND problem_id = ? AND last_submission_date = ? AND quota_used > 0", userID, problemID, today).
		UpdateColumn("quota_used", gorm.Expr("quota_used - ?", 1)).Error
}

func (r *quotaRepository) Get(ctx context.Context, userID, problemID uint) (models.QuotaRecord, error) {
	var record models.QuotaRecord
	err := r.db.WithContext(ctx).Where("user_id = ? AND problem_id = ?", userID, problemID).First(&record).Error
	if err != nil {
		return models.QuotaRecord{}, err
	}
	return record, nil
}

func (r *quotaRepository) ListByUser(ctx context.Context, userID uint) ([]models.QuotaRecord, error) {
	var records []models.QuotaRecord
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("problem_id ASC").Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
