package dao

import (
	"github.com/Zuntie/worklenz/internal/db/models"

	"gorm.io/gorm"
)

/* ==================== 任务 CRUD ==================== */

/*
GetTask 根据ID获取任务
*/
func (d *DAO) GetTask(id string) (*models.Task, error) {
	var task models.Task
	if err := d.DB.First(&task, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

/*
CreateTask 创建任务
*/
func (d *DAO) CreateTask(task *models.Task) error {
	return d.DB.Create(task).Error
}

/*
UpdateTask 更新任务
*/
func (d *DAO) UpdateTask(task *models.Task) error {
	return d.DB.Save(task).Error
}

/*
UpdateTaskStatus 更新任务状态
*/
func (d *DAO) UpdateTaskStatus(id string, status models.TaskStatus) error {
	return d.DB.Model(&models.Task{}).Where("id = ?", id).Update("status", status).Error
}

/*
DeleteTask 删除任务（软删除）
*/
func (d *DAO) DeleteTask(id string) error {
	return d.DB.Delete(&models.Task{}, "id = ?", id).Error
}

/*
ListProjectTasks 列出项目内任务（可按状态筛选，分页）
*/
func (d *DAO) ListProjectTasks(projectID string, status models.TaskStatus, limit, offset int) ([]models.Task, int64, error) {
	var tasks []models.Task
	var total int64

	query := d.DB.Model(&models.Task{}).Where("project_id = ?", projectID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit, offset = SanitizePagination(limit, offset, 200)
	err := query.Order("priority DESC, created_at ASC").Limit(limit).Offset(offset).Find(&tasks).Error
	return tasks, total, err
}
