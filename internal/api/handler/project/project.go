package project

import (
	"strconv"

	"github.com/Zuntie/worklenz/internal/api/middleware"
	"github.com/Zuntie/worklenz/internal/api/response"
	"github.com/Zuntie/worklenz/internal/db/dao"
	"github.com/Zuntie/worklenz/internal/db/models"
	"github.com/Zuntie/worklenz/internal/types"
	"github.com/Zuntie/worklenz/internal/ws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

/*
ProjectHandler 项目处理器
功能：团队内项目的增删改查，变更实时广播给团队成员
*/
type ProjectHandler struct {
	app    *types.App
	team   *TeamHandler
	logger *zap.Logger
}

/*
NewProjectHandler 创建项目处理器
*/
func NewProjectHandler(app *types.App, team *TeamHandler) *ProjectHandler {
	return &ProjectHandler{
		app:    app,
		team:   team,
		logger: zap.L().Named("project-handler"),
	}
}

/*
requireProjectAccess 校验当前用户可访问指定项目
功能：项目存在且用户是所属团队成员；失败时响应已写出，返回 nil
*/
func (h *ProjectHandler) requireProjectAccess(c *gin.Context, projectID string) *models.Project {
	proj, err := h.app.DAO.GetProject(projectID)
	if err != nil {
		response.GinInternalError(c, "查询项目失败", err)
		return nil
	}
	if proj == nil {
		response.GinNotFound(c, "项目不存在")
		return nil
	}
	if h.team.requireTeamMember(c, proj.TeamID) == nil {
		return nil
	}
	return proj
}

/*
CreateProjectRequest 创建项目请求
*/
type CreateProjectRequest struct {
	TeamID      string `json:"team_id" binding:"required"`
	Name        string `json:"name" binding:"required,min=1,max=128"`
	Description string `json:"description" binding:"max=1024"`
	Color       string `json:"color" binding:"max=16"`
}

/*
CreateProject 创建项目
路由：POST /api/v1/projects
*/
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.GinBadRequest(c, "请求参数无效: "+err.Error())
		return
	}
	if h.team.requireTeamMember(c, req.TeamID) == nil {
		return
	}

	proj := &models.Project{
		TeamID:      req.TeamID,
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		Status:      models.ProjectActive,
		CreatedBy:   middleware.GetUserID(c),
	}
	if err := h.app.DAO.CreateProject(proj); err != nil {
		response.GinInternalError(c, "创建项目失败", err)
		return
	}

	h.team.broadcastToTeam(proj.TeamID, ws.Event{
		Type:    ws.EventProjectUpdated,
		Payload: proj,
	})
	response.GinSuccess(c, proj)
}

/*
ListProjects 列出团队项目（分页）
路由：GET /api/v1/teams/:id/projects?limit=20&offset=0
*/
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	teamID := c.Param("id")
	if h.team.requireTeamMember(c, teamID) == nil {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, offset = dao.SanitizePagination(limit, offset, 100)

	projects, total, err := h.app.DAO.ListTeamProjects(teamID, limit, offset)
	if err != nil {
		response.GinInternalError(c, "获取项目列表失败", err)
		return
	}

	response.GinSuccess(c, gin.H{
		"projects": projects,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

/*
GetProject 查询项目详情
路由：GET /api/v1/projects/:id
*/
func (h *ProjectHandler) GetProject(c *gin.Context) {
	proj := h.requireProjectAccess(c, c.Param("id"))
	if proj == nil {
		return
	}
	response.GinSuccess(c, proj)
}

/*
UpdateProjectRequest 更新项目请求
*/
type UpdateProjectRequest struct {
	Name        string `json:"name" binding:"omitempty,min=1,max=128"`
	Description string `json:"description" binding:"max=1024"`
	Color       string `json:"color" binding:"max=16"`
	Status      string `json:"status" binding:"omitempty,oneof=active archived"`
}

/*
UpdateProject 更新项目
路由：PUT /api/v1/projects/:id
*/
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	proj := h.requireProjectAccess(c, c.Param("id"))
	if proj == nil {
		return
	}

	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.GinBadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	if req.Name != "" {
		proj.Name = req.Name
	}
	if req.Description != "" {
		proj.Description = req.Description
	}
	if req.Color != "" {
		proj.Color = req.Color
	}
	if req.Status != "" {
		proj.Status = models.ProjectStatus(req.Status)
	}

	if err := h.app.DAO.UpdateProject(proj); err != nil {
		response.GinInternalError(c, "更新项目失败", err)
		return
	}

	h.team.broadcastToTeam(proj.TeamID, ws.Event{
		Type:    ws.EventProjectUpdated,
		Payload: proj,
	})
	response.GinSuccess(c, proj)
}

/*
DeleteProject 删除项目
路由：DELETE /api/v1/projects/:id
*/
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	proj := h.requireProjectAccess(c, c.Param("id"))
	if proj == nil {
		return
	}

	if err := h.app.DAO.DeleteProject(proj.ID); err != nil {
		response.GinInternalError(c, "删除项目失败", err)
		return
	}

	h.team.broadcastToTeam(proj.TeamID, ws.Event{
		Type:    ws.EventProjectUpdated,
		Payload: gin.H{"id": proj.ID, "deleted": true},
	})
	response.GinSuccessWithMessage(c, "项目已删除", nil)
}
