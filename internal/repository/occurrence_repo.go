package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vialog/nfe-tracker/internal/domain"
)

type OccurrenceRepository interface {
	ListOccurrenceCodes(ctx context.Context) ([]domain.OccurrenceCode, error)
	SetCategory(ctx context.Context, code string, category domain.Status) error
	// EnsureCode records a newly observed occurrence code without a
	// category, so administrators can categorize it later. Known codes are
	// left untouched.
	EnsureCode(ctx context.Context, code, description string) error
}

type GormOccurrenceRepo struct {
	db *gorm.DB
}

func NewGormOccurrenceRepo(db *gorm.DB) *GormOccurrenceRepo {
	return &GormOccurrenceRepo{db: db}
}

func (r *GormOccurrenceRepo) ListOccurrenceCodes(ctx context.Context) ([]domain.OccurrenceCode, error) {
	var models []OccurrenceCodeModel
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	codes := make([]domain.OccurrenceCode, 0, len(models))
	for _, model := range models {
		codes = append(codes, domain.OccurrenceCode{
			Code:        model.Code,
			Description: model.Description,
			Category:    model.Category,
		})
	}
	return codes, nil
}

func (r *GormOccurrenceRepo) SetCategory(ctx context.Context, code string, category domain.Status) error {
	if !category.IsValid() {
		return domain.ErrValidation
	}

	result := r.db.WithContext(ctx).
		Model(&OccurrenceCodeModel{}).
		Where("code = ?", code).
		Update("category", category)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormOccurrenceRepo) EnsureCode(ctx context.Context, code, description string) error {
	trimmedCode := strings.TrimSpace(code)
	if trimmedCode == "" {
		return domain.ErrValidation
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).
		Create(&OccurrenceCodeModel{
			Code:        trimmedCode,
			Description: strings.TrimSpace(description),
		}).Error
}
