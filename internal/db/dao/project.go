package dao

import (
	"github.com/Zuntie/worklenz/internal/db/models"

	"gorm.io/gorm"
)

/* ==================== 项目 CRUD ==================== */

/*
GetProject 根据ID获取项目
*/
func (d *DAO) GetProject(id string) (*models.Project, error) {
	var project models.Project
	if err := d.DB.First(&project, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &project, nil
}

/*
CreateProject 创建项目
*/
func (d *DAO) CreateProject(project *models.Project) error {
	return d.DB.Create(project).Error
}

/*
UpdateProject 更新项目
*/
func (d *DAO) UpdateProject(project *models.Project) error {
	return d.DB.Save(project).Error
}

/*
DeleteProject 删除项目（软删除，任务级联保留做审计）
*/
func (d *DAO) DeleteProject(id string) error {
	return d.DB.Delete(&models.Project{}, "id = ?", id).Error
}

/*
ListTeamProjects 列出团队的项目（分页）
*/
func (d *DAO) ListTeamProjects(teamID string, limit, offset int) ([]models.Project, int64, error) {
	var projects []models.Project
	var total int64

	query := d.DB.Model(&models.Project{}).Where("team_id = ?", teamID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit, offset = SanitizePagination(limit, offset, 100)
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&projects).Error
	return projects, total, err
}
