package storage

import (
	"context"

	"desktown-backend/shared/database/models"
)

// SearchDocuments are the rows that belong in the search index
type SearchDocuments struct {
	Offices  []models.Office
	Services []models.OfficeService
	Posts    []models.Post
}

// ListSearchDocuments loads published offices, their active services and every post
func (s *Storage) ListSearchDocuments(ctx context.Context) (*SearchDocuments, error) {
	docs := &SearchDocuments{}
	db := s.conn(ctx)

	if err := db.Where("is_published = ?", true).Find(&docs.Offices).Error; err != nil {
		return nil, err
	}
	err := db.Model(&models.OfficeService{}).
		Joins("JOIN offices ON offices.id = office_services.office_id").
		Where("office_services.is_active = ? AND offices.is_published = ?", true, true).
		Find(&docs.Services).Error
	if err != nil {
		return nil, err
	}
	if err := db.Find(&docs.Posts).Error; err != nil {
		return nil, err
	}
	return docs, nil
}
