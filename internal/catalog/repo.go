package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adamzielonka/coursepath-backend/pkg/db/models"
)

// Repository reads the sellable catalog.
type Repository interface {
	FindCourse(ctx context.Context, id uuid.UUID) (*models.Course, error)
	FindPath(ctx context.Context, id uuid.UUID) (*models.LearningPath, error)
	ListCourses(ctx context.Context, publishedOnly bool, limit int) ([]models.Course, error)
	ListPaths(ctx context.Context, publishedOnly bool, limit int) ([]models.LearningPath, error)
	FindPromoCode(ctx context.Context, code string) (*models.PromoCode, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindCourse(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).First(&course, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *repository) FindPath(ctx context.Context, id uuid.UUID) (*models.LearningPath, error) {
	var path models.LearningPath
	if err := r.db.WithContext(ctx).First(&path, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &path, nil
}

func (r *repository) ListCourses(ctx context.Context, publishedOnly bool, limit int) ([]models.Course, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := r.db.WithContext(ctx).Model(&models.Course{})
	if publishedOnly {
		query = query.Where("published = ?", true)
	}
	var rows []models.Course
	err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *repository) ListPaths(ctx context.Context, publishedOnly bool, limit int) ([]models.LearningPath, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := r.db.WithContext(ctx).Model(&models.LearningPath{})
	if publishedOnly {
		query = query.Where("published = ?", true)
	}
	var rows []models.LearningPath
	err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *repository) FindPromoCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	if err := r.db.WithContext(ctx).First(&promo, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &promo, nil
}
