package models

import (
	"time"
)

/*
Team 团队模型
功能：项目的归属单位，用户通过 TeamMember 加入团队
*/
type Team struct {
	BaseModel
	Name        string `gorm:"type:varchar(128);not null" json:"name"`
	Description string `gorm:"type:varchar(512)" json:"description"`
	OwnerID     string `gorm:"type:varchar(36);index;not null" json:"owner_id"`

	Members  []TeamMember `gorm:"foreignKey:TeamID" json:"members,omitempty"`
	Projects []Project    `gorm:"foreignKey:TeamID" json:"projects,omitempty"`
}

func (Team) TableName() string {
	return "teams"
}

/*
TeamMemberRole 团队内角色
*/
type TeamMemberRole string

const (
	TeamRoleOwner  TeamMemberRole = "owner"
	TeamRoleMember TeamMemberRole = "member"
)

/*
TeamMember 团队成员关系
*/
type TeamMember struct {
	BaseModel
	TeamID string         `gorm:"type:varchar(36);uniqueIndex:idx_team_user;not null" json:"team_id"`
	UserID string         `gorm:"type:varchar(36);uniqueIndex:idx_team_user;not null" json:"user_id"`
	Role   TeamMemberRole `gorm:"type:varchar(16);default:'member';not null" json:"role"`
}

func (TeamMember) TableName() string {
	return "team_members"
}

/*
ProjectStatus 项目状态枚举
*/
type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectArchived ProjectStatus = "archived"
)

/*
Project 项目模型
*/
type Project struct {
	BaseModel
	TeamID      string        `gorm:"type:varchar(36);index;not null" json:"team_id"`
	Name        string        `gorm:"type:varchar(128);not null" json:"name"`
	Description string        `gorm:"type:varchar(1024)" json:"description"`
	Color       string        `gorm:"type:varchar(16)" json:"color"`
	Status      ProjectStatus `gorm:"type:varchar(16);default:'active';not null" json:"status"`
	CreatedBy   string        `gorm:"type:varchar(36);index;not null" json:"created_by"`

	Tasks []Task `gorm:"foreignKey:ProjectID" json:"tasks,omitempty"`
}

func (Project) TableName() string {
	return "projects"
}

/*
TaskStatus 任务状态枚举
*/
type TaskStatus string

const (
	TaskTodo  TaskStatus = "todo"
	TaskDoing TaskStatus = "doing"
	TaskDone  TaskStatus = "done"
)

/*
Task 任务模型
功能：项目内的最小工作单元，状态变更会通过 WebSocket 推送给团队成员
*/
type Task struct {
	BaseModel
	ProjectID   string     `gorm:"type:varchar(36);index;not null" json:"project_id"`
	Title       string     `gorm:"type:varchar(256);not null" json:"title"`
	Description string     `gorm:"type:varchar(2048)" json:"description"`
	Status      TaskStatus `gorm:"type:varchar(16);default:'todo';not null" json:"status"`
	Priority    int        `gorm:"default:0" json:"priority"` /* 0=低 1=中 2=高 */
	AssigneeID  string     `gorm:"type:varchar(36);index" json:"assignee_id"`
	DueDate     *time.Time `gorm:"" json:"due_date"`
	CreatedBy   string     `gorm:"type:varchar(36);index;not null" json:"created_by"`
}

func (Task) TableName() string {
	return "tasks"
}
