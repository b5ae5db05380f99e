package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/ada-judge-api/internal/models"
)

// ProblemRepository exposes read access to problems.
type ProblemRepository interface {
	GetByID(ctx context.Context, id uint) (models.Problem, error)
	List(ctx context.Context, includeHidden bool) ([]models.Problem, error)
}

// NewProblemRepository constructs a problem repository.
func NewProblemRepository(db *gorm.DB) ProblemRepository {
	return &problemRepository{db: db}
}

type problemRepository struct {
	db *gorm.DB
}

func (r *problemRepository) GetByID(ctx context.Context, id uint) (models.Problem, error) {
	var problem models.Problem
	if err := r.db.WithContext(ctx).First(&problem, id).Error; err != nil {
		return models.Problem{}, err
	}
	return problem, nil
}

func (r *problemRepository) List(ctx context.Context, includeHidden bool) ([]models.Problem, error) {
	query := r.db.WithContext(ctx).Model(&models.Problem{}).Order("id ASC")
	if !includeHidden {
		query = query.Where("visible = ?", true)
	}

	var problems []models.Problem
	if err := query.Find(&problems).Error; err != nil {
		return nil, err
	}
	return problems, nil
}
