package repositories

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"alfredoptarigan/policy-analyzer/internal/models"
)

var ErrRunNotFound = errors.New("analysis run not found")

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type AnalysisRunRepository interface {
	Create(run *models.AnalysisRun) error
	FindByID(id uuid.UUID) (*models.AnalysisRun, error)
	ListRecent(limit int) ([]models.AnalysisRun, error)
}

type analysisRunRepository struct {
	db *gorm.DB
}

func NewAnalysisRunRepository(db *gorm.DB) AnalysisRunRepository {
	return &analysisRunRepository{db: db}
}

func (r *analysisRunRepository) Create(run *models.AnalysisRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if err := r.db.Create(run).Error; err != nil {
		return fmt.Errorf("failed to create analysis run: %w", err)
	}
	return nil
}

func (r *analysisRunRepository) FindByID(id uuid.UUID) (*models.AnalysisRun, error) {
	var run models.AnalysisRun
	if err := r.db.Where("id = ?", id).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to find analysis run: %w", err)
	}
	return &run, nil
}

func (r *analysisRunRepository) ListRecent(limit int) ([]models.AnalysisRun, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var runs []models.AnalysisRun
	err := r.db.
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis runs: %w", err)
	}
	return runs, nil
}
