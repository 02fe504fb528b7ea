package storage

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"desktown-backend/shared/database/models"
	"desktown-backend/shared/utils/query"
)

// TaskFilter narrows ListTasks. Involving matches either assignee or creator.
type TaskFilter struct {
	AssigneeID *uuid.UUID
	CreatorID  *uuid.UUID
	Involving  *uuid.UUID
	Status     string
	Priority   string
}

var taskSortFields = map[string]string{
	"created_at": "tasks.created_at",
	"due_date":   "tasks.due_date",
	"priority":   "tasks.priority",
	"title":      "tasks.title",
	"status":     "tasks.status",
}

// CreateTask fills status and priority defaults before inserting
func (s *Storage) CreateTask(ctx context.Context, task *models.Task) error {
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	if task.Status == models.TaskStatusCompleted && task.CompletedAt == nil {
		now := s.now()
		task.CompletedAt = &now
	}
	return translate(s.conn(ctx).Create(task).Error)
}

func (s *Storage) GetTask(ctx context.Context, id uint) (*models.Task, error) {
	var task models.Task
	err := s.conn(ctx).Preload("Assignee").Preload("Creator").First(&task, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &task, nil
}

func (s *Storage) ListTasks(ctx context.Context, f TaskFilter, params query.Params) ([]models.Task, int64, error) {
	db := s.conn(ctx).Model(&models.Task{})
	if f.AssigneeID != nil {
		db = db.Where("tasks.assignee_id = ?", *f.AssigneeID)
	}
	if f.CreatorID != nil {
		db = db.Where("tasks.creator_id = ?", *f.CreatorID)
	}
	if f.Involving != nil {
		db = db.Where("(tasks.assignee_id = ? OR tasks.creator_id = ?)", *f.Involving, *f.Involving)
	}
	if f.Status != "" {
		db = db.Where("tasks.status = ?", f.Status)
	}
	if f.Priority != "" {
		db = db.Where("tasks.priority = ?", f.Priority)
	}
	db = query.ApplySearch(db, params.Search, []string{"tasks.title", "tasks.description"})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tasks []models.Task
	db = query.ApplySort(db, params.Sort, taskSortFields, "tasks.created_at DESC")
	err := query.ApplyPagination(db, params).Preload("Assignee").Find(&tasks).Error
	return tasks, total, err
}

func (s *Storage) UpdateTask(ctx context.Context, id uint, updates map[string]interface{}) (*models.Task, error) {
	if status, ok := updates["status"].(string); ok {
		s.stampCompletion(updates, status)
	}
	if len(updates) > 0 {
		if err := affected(s.conn(ctx).Model(&models.Task{}).Where("id = ?", id).Updates(updates)); err != nil {
			return nil, err
		}
	}
	return s.GetTask(ctx, id)
}

func (s *Storage) UpdateTaskStatus(ctx context.Context, id uint, status string) (*models.Task, error) {
	return s.UpdateTask(ctx, id, map[string]interface{}{"status": status})
}

func (s *Storage) stampCompletion(updates map[string]interface{}, status string) {
	if status == models.TaskStatusCompleted {
		updates["completed_at"] = s.now()
	} else {
		updates["completed_at"] = nil
	}
}

func (s *Storage) DeleteTask(ctx context.Context, id uint) error {
	return affected(s.conn(ctx).Delete(&models.Task{}, id))
}

// SetTaskAutomation records the relay state and, when present, the automation's result payload
func (s *Storage) SetTaskAutomation(ctx context.Context, id uint, status string, result datatypes.JSON) (*models.Task, error) {
	updates := map[string]interface{}{
		"automation_status": status,
		"automated_at":      s.now(),
	}
	if result != nil {
		updates["automation_result"] = result
	}
	return s.UpdateTask(ctx, id, updates)
}

// FailQueuedAutomation marks the relay failed unless a callback already settled it
func (s *Storage) FailQueuedAutomation(ctx context.Context, id uint) (*models.Task, error) {
	err := s.conn(ctx).Model(&models.Task{}).
		Where("id = ? AND automation_status = ?", id, models.AutomationQueued).
		Updates(map[string]interface{}{
			"automation_status": models.AutomationFailed,
			"automated_at":      s.now(),
		}).Error
	if err != nil {
		return nil, err
	}
	return s.GetTask(ctx, id)
}

// ApplyAutomationCallback stores a workflow result. A non-empty eventID is recorded once;
// a redelivery leaves the task untouched and reports duplicate.
func (s *Storage) ApplyAutomationCallback(ctx context.Context, id uint, status string, result datatypes.JSON, eventID string) (*models.Task, bool, error) {
	duplicate := false
	err := s.Transaction(ctx, func(tx *Storage) error {
		if eventID != "" {
			recorded, err := tx.RecordWebhookEvent(ctx, &models.WebhookEvent{
				Source:    "automation",
				EventID:   eventID,
				EventType: "task." + status,
				Payload:   result,
			})
			if err != nil {
				return err
			}
			if !recorded {
				duplicate = true
				return nil
			}
		}
		_, err := tx.SetTaskAutomation(ctx, id, status, result)
		return err
	})
	if err != nil {
		return nil, false, translate(err)
	}

	task, err := s.GetTask(ctx, id)
	return task, duplicate, err
}

func (s *Storage) CountTasksByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := s.conn(ctx).Model(&models.Task{}).Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := map[string]int64{}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
