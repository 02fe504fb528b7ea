package storage

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"desktown-backend/shared/database/models"
	"desktown-backend/shared/utils/query"
)

// OfficeFilter narrows ListOffices. Owner is applied together with PublishedOnly=false
// so owners see their drafts.
type OfficeFilter struct {
	PublishedOnly bool
	OwnerID       *uuid.UUID
	Category      string
}

var officeSortFields = map[string]string{
	"created_at": "created_at",
	"name":       "name",
}

func (s *Storage) CreateOffice(ctx context.Context, office *models.Office) error {
	published := office.IsPublished
	err := s.Transaction(ctx, func(tx *Storage) error {
		if err := tx.db.Create(office).Error; err != nil {
			return err
		}
		// the column default is true, so an unpublished office needs an explicit write
		if !published {
			office.IsPublished = false
			return tx.db.Model(office).Update("is_published", false).Error
		}
		return nil
	})
	return translate(err)
}

func (s *Storage) GetOffice(ctx context.Context, id uuid.UUID) (*models.Office, error) {
	var office models.Office
	if err := s.conn(ctx).Preload("Owner").First(&office, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &office, nil
}

func (s *Storage) GetOfficeBySlug(ctx context.Context, slug string) (*models.Office, error) {
	var office models.Office
	if err := s.conn(ctx).Preload("Owner").Where("slug = ?", slug).First(&office).Error; err != nil {
		return nil, translate(err)
	}
	return &office, nil
}

func (s *Storage) ListOffices(ctx context.Context, f OfficeFilter, params query.Params) ([]models.Office, int64, error) {
	db := s.conn(ctx).Model(&models.Office{})
	if f.PublishedOnly {
		db = db.Where("is_published = ?", true)
	}
	if f.OwnerID != nil {
		db = db.Where("owner_id = ?", *f.OwnerID)
	}
	if f.Category != "" {
		db = db.Where("category = ?", f.Category)
	}
	db = query.ApplySearch(db, params.Search, []string{"name", "description", "category"})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var offices []models.Office
	db = query.ApplySort(db, params.Sort, officeSortFields, "created_at DESC")
	err := query.ApplyPagination(db, params).Preload("Owner").Find(&offices).Error
	return offices, total, err
}

func (s *Storage) UpdateOffice(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*models.Office, error) {
	if len(updates) > 0 {
		if err := affected(s.conn(ctx).Model(&models.Office{}).Where("id = ?", id).Updates(updates)); err != nil {
			return nil, err
		}
	}
	return s.GetOffice(ctx, id)
}

// DeleteOffice is a single statement. Departments, media, messages, comments, posts,
// services and their ratings are removed by ON DELETE CASCADE; orders keep their rows.
func (s *Storage) DeleteOffice(ctx context.Context, id uuid.UUID) error {
	return affected(s.conn(ctx).Delete(&models.Office{}, "id = ?", id))
}

func (s *Storage) CountOffices(ctx context.Context) (total int64, published int64, err error) {
	if err = s.conn(ctx).Model(&models.Office{}).Count(&total).Error; err != nil {
		return
	}
	err = s.conn(ctx).Model(&models.Office{}).Where("is_published = ?", true).Count(&published).Error
	return
}

// CreateDepartment validates that a parent, when given, belongs to the same office
func (s *Storage) CreateDepartment(ctx context.Context, dept *models.OfficeDepartment) error {
	if dept.ParentID != nil {
		var parent models.OfficeDepartment
		err := s.conn(ctx).Where("id = ? AND office_id = ?", *dept.ParentID, dept.OfficeID).First(&parent).Error
		if err != nil {
			return translate(err)
		}
	}
	return translate(s.conn(ctx).Create(dept).Error)
}

func (s *Storage) ListDepartments(ctx context.Context, officeID uuid.UUID) ([]models.OfficeDepartment, error) {
	var depts []models.OfficeDepartment
	err := s.conn(ctx).Where("office_id = ?", officeID).Order("sort_order ASC, id ASC").Find(&depts).Error
	return depts, err
}

// DeleteDepartment removes a department; its sub-sections cascade through parent_id
func (s *Storage) DeleteDepartment(ctx context.Context, officeID uuid.UUID, deptID uint) error {
	return affected(s.conn(ctx).Where("id = ? AND office_id = ?", deptID, officeID).Delete(&models.OfficeDepartment{}))
}

// BuildDepartmentTree links a flat department list into root nodes with children.
// Nodes whose parent is missing from the list are promoted to roots.
func BuildDepartmentTree(flat []models.OfficeDepartment) []*models.OfficeDepartment {
	nodes := make(map[uint]*models.OfficeDepartment, len(flat))
	for i := range flat {
		node := flat[i]
		node.Children = nil
		nodes[node.ID] = &node
	}

	roots := []*models.OfficeDepartment{}
	for i := range flat {
		node := nodes[flat[i].ID]
		if node.ParentID != nil {
			if parent, ok := nodes[*node.ParentID]; ok && parent != node {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}

	var order func([]*models.OfficeDepartment)
	order = func(list []*models.OfficeDepartment) {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].SortOrder != list[j].SortOrder {
				return list[i].SortOrder < list[j].SortOrder
			}
			return list[i].ID < list[j].ID
		})
		for _, n := range list {
			order(n.Children)
		}
	}
	order(roots)
	return roots
}

func (s *Storage) AddOfficeMedia(ctx context.Context, media *models.OfficeMedia) error {
	return translate(s.conn(ctx).Create(media).Error)
}

func (s *Storage) ListOfficeMedia(ctx context.Context, officeID uuid.UUID) ([]models.OfficeMedia, error) {
	var media []models.OfficeMedia
	err := s.conn(ctx).Where("office_id = ?", officeID).Order("id DESC").Find(&media).Error
	return media, err
}

// DeleteOfficeMedia returns the removed row so the caller can drop the stored object
func (s *Storage) DeleteOfficeMedia(ctx context.Context, officeID uuid.UUID, mediaID uint) (*models.OfficeMedia, error) {
	var media models.OfficeMedia
	if err := s.conn(ctx).Where("id = ? AND office_id = ?", mediaID, officeID).First(&media).Error; err != nil {
		return nil, translate(err)
	}
	if err := affected(s.conn(ctx).Delete(&media)); err != nil {
		return nil, err
	}
	return &media, nil
}

func (s *Storage) AddOfficeMessage(ctx context.Context, msg *models.OfficeMessage) error {
	return translate(s.conn(ctx).Create(msg).Error)
}

func (s *Storage) ListOfficeMessages(ctx context.Context, officeID uuid.UUID, params query.Params) ([]models.OfficeMessage, int64, error) {
	db := s.conn(ctx).Model(&models.OfficeMessage{}).Where("office_id = ?", officeID)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var msgs []models.OfficeMessage
	err := query.ApplyPagination(db.Order("id DESC"), params).Find(&msgs).Error
	return msgs, total, err
}

func (s *Storage) MarkOfficeMessageRead(ctx context.Context, officeID uuid.UUID, msgID uint) error {
	return affected(s.conn(ctx).Model(&models.OfficeMessage{}).
		Where("id = ? AND office_id = ?", msgID, officeID).
		Update("is_read", true))
}

func (s *Storage) AddOfficeComment(ctx context.Context, comment *models.OfficeComment) error {
	return translate(s.conn(ctx).Create(comment).Error)
}

func (s *Storage) ListOfficeComments(ctx context.Context, officeID uuid.UUID) ([]models.OfficeComment, error) {
	var comments []models.OfficeComment
	err := s.conn(ctx).Preload("Author").Where("office_id = ?", officeID).Order("id DESC").Find(&comments).Error
	return comments, err
}

// OfficeStats aggregates storefront numbers in one round trip
func (s *Storage) OfficeStats(ctx context.Context, officeID uuid.UUID) (*models.OfficeStats, error) {
	var stats models.OfficeStats
	err := s.conn(ctx).Raw(`
		SELECT
			(SELECT COUNT(*) FROM office_services WHERE office_id = @office) AS services_count,
			(SELECT COALESCE(AVG(sr.score), 0) FROM service_ratings sr
				JOIN office_services os ON os.id = sr.service_id WHERE os.office_id = @office) AS average_rating,
			(SELECT COUNT(*) FROM service_ratings sr
				JOIN office_services os ON os.id = sr.service_id WHERE os.office_id = @office) AS ratings_count,
			(SELECT COUNT(*) FROM service_orders WHERE office_id = @office AND status = @paid) AS paid_orders,
			(SELECT COALESCE(SUM(amount_cents), 0) FROM service_orders WHERE office_id = @office AND status = @paid) AS revenue_cents,
			(SELECT COUNT(*) FROM office_media WHERE office_id = @office) AS media_count,
			(SELECT COUNT(*) FROM office_messages WHERE office_id = @office AND is_read = false) AS unread_messages`,
		map[string]interface{}{"office": officeID, "paid": string(models.OrderPaid)}).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
