package storage

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"desktown-backend/shared/database/models"
)

const serviceColumns = `office_services.*,
	COALESCE((SELECT AVG(sr.score) FROM service_ratings sr WHERE sr.service_id = office_services.id), 0) AS average_rating,
	(SELECT COUNT(*) FROM service_ratings sr WHERE sr.service_id = office_services.id) AS rating_count`

func (s *Storage) serviceQuery(ctx context.Context) *gorm.DB {
	return s.conn(ctx).Model(&models.OfficeService{}).Select(serviceColumns)
}

func (s *Storage) CreateService(ctx context.Context, svc *models.OfficeService) error {
	active := svc.IsActive
	if err := s.conn(ctx).Create(svc).Error; err != nil {
		return translate(err)
	}
	if !active {
		svc.IsActive = false
		return s.conn(ctx).Model(svc).Update("is_active", false).Error
	}
	return nil
}

func (s *Storage) GetService(ctx context.Context, id uint) (*models.OfficeService, error) {
	var svc models.OfficeService
	if err := s.serviceQuery(ctx).Where("office_services.id = ?", id).First(&svc).Error; err != nil {
		return nil, translate(err)
	}
	return &svc, nil
}

// GetServiceByShareToken resolves a public share link
func (s *Storage) GetServiceByShareToken(ctx context.Context, token string) (*models.OfficeService, error) {
	var svc models.OfficeService
	if err := s.serviceQuery(ctx).Where("office_services.share_token = ?", token).First(&svc).Error; err != nil {
		return nil, translate(err)
	}
	return &svc, nil
}

func (s *Storage) ListServicesByOffice(ctx context.Context, officeID uuid.UUID, activeOnly bool) ([]models.OfficeService, error) {
	db := s.serviceQuery(ctx).Where("office_services.office_id = ?", officeID)
	if activeOnly {
		db = db.Where("office_services.is_active = ?", true)
	}
	var services []models.OfficeService
	err := db.Order("office_services.id ASC").Find(&services).Error
	return services, err
}

func (s *Storage) UpdateService(ctx context.Context, id uint, updates map[string]interface{}) (*models.OfficeService, error) {
	if len(updates) > 0 {
		if err := affected(s.conn(ctx).Model(&models.OfficeService{}).Where("id = ?", id).Updates(updates)); err != nil {
			return nil, err
		}
	}
	return s.GetService(ctx, id)
}

// DeleteService removes the service; ratings cascade and orders keep their rows
func (s *Storage) DeleteService(ctx context.Context, id uint) error {
	return affected(s.conn(ctx).Delete(&models.OfficeService{}, id))
}

// RateService upserts the caller's single rating for a service
func (s *Storage) RateService(ctx context.Context, rating *models.ServiceRating) error {
	rating.UpdatedAt = s.now()
	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "service_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "comment", "updated_at"}),
	}).Create(rating).Error
	return translate(err)
}

func (s *Storage) ListRatings(ctx context.Context, serviceID uint) ([]models.ServiceRating, error) {
	var ratings []models.ServiceRating
	err := s.conn(ctx).Preload("User").Where("service_id = ?", serviceID).Order("updated_at DESC").Find(&ratings).Error
	return ratings, err
}

// AverageRating returns the mean score and number of ratings; 0,0 when unrated
func (s *Storage) AverageRating(ctx context.Context, serviceID uint) (float64, int64, error) {
	var row struct {
		Average float64
		Count   int64
	}
	err := s.conn(ctx).Model(&models.ServiceRating{}).
		Select("COALESCE(AVG(score), 0) AS average, COUNT(*) AS count").
		Where("service_id = ?", serviceID).
		Scan(&row).Error
	return row.Average, row.Count, err
}
