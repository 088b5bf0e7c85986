package dao

import (
	"github.com/Zuntie/worklenz/internal/db/models"

	"gorm.io/gorm"
)

/* ==================== 团队 CRUD ==================== */

/*
GetTeam 根据ID获取团队
*/
func (d *DAO) GetTeam(id string) (*models.Team, error) {
	var team models.Team
	if err := d.DB.First(&team, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &team, nil
}

/*
CreateTeam 创建团队
*/
func (d *DAO) CreateTeam(team *models.Team) error {
	return d.DB.Create(team).Error
}

/*
UpdateTeam 更新团队
*/
func (d *DAO) UpdateTeam(team *models.Team) error {
	return d.DB.Save(team).Error
}

/*
DeleteTeam 删除团队（软删除）
*/
func (d *DAO) DeleteTeam(id string) error {
	return d.DB.Delete(&models.Team{}, "id = ?", id).Error
}

/*
ListUserTeams 列出用户所属的全部团队
*/
func (d *DAO) ListUserTeams(userID string) ([]models.Team, error) {
	var teams []models.Team
	err := d.DB.
		Joins("JOIN team_members ON team_members.team_id = teams.id").
		Where("team_members.user_id = ? AND team_members.deleted_at IS NULL", userID).
		Find(&teams).Error
	return teams, err
}

/* ==================== 团队成员 ==================== */

/*
AddTeamMember 添加团队成员
*/
func (d *DAO) AddTeamMember(member *models.TeamMember) error {
	return d.DB.Create(member).Error
}

/*
RemoveTeamMember 移除团队成员
*/
func (d *DAO) RemoveTeamMember(teamID, userID string) error {
	return d.DB.Where("team_id = ? AND user_id = ?", teamID, userID).
		Delete(&models.TeamMember{}).Error
}

/*
GetTeamMember 获取团队成员关系
*/
func (d *DAO) GetTeamMember(teamID, userID string) (*models.TeamMember, error) {
	var member models.TeamMember
	err := d.DB.Where("team_id = ? AND user_id = ?", teamID, userID).First(&member).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

/*
ListTeamMembers 列出团队全部成员
*/
func (d *DAO) ListTeamMembers(teamID string) ([]models.TeamMember, error) {
	var members []models.TeamMember
	err := d.DB.Where("team_id = ?", teamID).Find(&members).Error
	return members, err
}

/*
ListTeamMemberUserIDs 列出团队成员的用户 ID
功能：WebSocket 广播任务事件时确定接收者
*/
func (d *DAO) ListTeamMemberUserIDs(teamID string) ([]string, error) {
	var ids []string
	err := d.DB.Model(&models.TeamMember{}).
		Where("team_id = ?", teamID).
		Pluck("user_id", &ids).Error
	return ids, err
}
