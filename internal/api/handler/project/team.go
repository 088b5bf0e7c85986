package project

import (
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
TeamHandler 团队处理器
功能：团队的创建、查询、成员管理。
成员关系同时是任务事件广播的接收方集合。
*/
type TeamHandler struct {
	app    *types.App
	hub    *ws.Hub /* 可为 nil（WebSocket 未启用） */
	logger *zap.Logger
}

/*
NewTeamHandler 创建团队处理器
*/
func NewTeamHandler(app *types.App, hub *ws.Hub) *TeamHandler {
	return &TeamHandler{
		app:    app,
		hub:    hub,
		logger: zap.L().Named("team-handler"),
	}
}

/*
requireTeamMember 校验当前用户是指定团队成员
功能：返回成员关系；非成员时响应 403 并返回 nil
*/
func (h *TeamHandler) requireTeamMember(c *gin.Context, teamID string) *models.TeamMember {
	member, err := h.app.DAO.GetTeamMember(teamID, middleware.GetUserID(c))
	if err != nil {
		response.GinInternalError(c, "查询团队成员失败", err)
		return nil
	}
	if member == nil {
		response.GinForbidden(c, "不是该团队成员")
		return nil
	}
	return member
}

/*
CreateTeamRequest 创建团队请求
*/
type CreateTeamRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=128"`
	Description string `json:"description" binding:"max=512"`
}

/*
CreateTeam 创建团队
功能：创建者自动成为 owner（事务）
路由：POST /api/v1/teams
*/
func (h *TeamHandler) CreateTeam(c *gin.Context) {
	var req CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.GinBadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	userID := middleware.GetUserID(c)
	team := &models.Team{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     userID,
	}

	err := h.app.DAO.Transaction(func(txDAO *dao.DAO) error {
		if err := txDAO.CreateTeam(team); err != nil {
			return err
		}
		return txDAO.AddTeamMember(&models.TeamMember{
			TeamID: team.ID,
			UserID: userID,
			Role:   models.TeamRoleOwner,
		})
	})
	if err != nil {
		response.GinInternalError(c, "创建团队失败", err)
		return
	}

	response.GinSuccess(c, team)
}

/*
ListMyTeams 列出当前用户所在的团队
路由：GET /api/v1/teams
*/
func (h *TeamHandler) ListMyTeams(c *gin.Context) {
	teams, err := h.app.DAO.ListUserTeams(middleware.GetUserID(c))
	if err != nil {
		response.GinInternalError(c, "获取团队列表失败", err)
		return
	}
	response.GinSuccess(c, teams)
}

/*
GetTeam 查询团队详情（含成员列表）
路由：GET /api/v1/teams/:id
*/
func (h *TeamHandler) GetTeam(c *gin.Context) {
	teamID := c.Param("id")
	if h.requireTeamMember(c, teamID) == nil {
		return
	}

	team, err := h.app.DAO.GetTeam(teamID)
	if err != nil {
		response.GinInternalError(c, "查询团队失败", err)
		return
	}
	if team == nil {
		response.GinNotFound(c, "团队不存在")
		return
	}

	members, err := h.app.DAO.ListTeamMembers(teamID)
	if err != nil {
		response.GinInternalError(c, "查询团队成员失败", err)
		return
	}

	response.GinSuccess(c, gin.H{
		"team":    team,
		"members": members,
	})
}

/*
AddMemberRequest 添加成员请求
*/
type AddMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"omitempty,oneof=owner member"`
}

/*
AddMember 添加团队成员
功能：仅 owner 可操作，重复添加由唯一索引拒绝
路由：POST /api/v1/teams/:id/members
*/
func (h *TeamHandler) AddMember(c *gin.Context) {
	teamID := c.Param("id")
	member := h.requireTeamMember(c, teamID)
	if member == nil {
		return
	}
	if member.Role != models.TeamRoleOwner {
		response.GinForbidden(c, "仅团队 owner 可管理成员")
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.GinBadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	target, err := h.app.DAO.GetUser(req.UserID)
	if err != nil {
		response.GinInternalError(c, "查询用户失败", err)
		return
	}
	if target == nil {
		response.GinNotFound(c, "用户不存在")
		return
	}

	role := models.TeamMemberRole(req.Role)
	if role == "" {
		role = models.TeamRoleMember
	}
	if err := h.app.DAO.AddTeamMember(&models.TeamMember{
		TeamID: teamID,
		UserID: req.UserID,
		Role:   role,
	}); err != nil {
		response.GinBadRequest(c, "添加成员失败，可能已在团队中")
		return
	}

	response.GinSuccessWithMessage(c, "成员已添加", nil)
}

/*
RemoveMember 移除团队成员
功能：仅 owner 可操作；owner 不能移除自己（需先转让）
路由：DELETE /api/v1/teams/:id/members/:userID
*/
func (h *TeamHandler) RemoveMember(c *gin.Context) {
	teamID := c.Param("id")
	targetID := c.Param("userID")

	member := h.requireTeamMember(c, teamID)
	if member == nil {
		return
	}
	if member.Role != models.TeamRoleOwner {
		response.GinForbidden(c, "仅团队 owner 可管理成员")
		return
	}
	if targetID == member.UserID {
		response.GinBadRequest(c, "owner 不能移除自己")
		return
	}

	if err := h.app.DAO.RemoveTeamMember(teamID, targetID); err != nil {
		response.GinInternalError(c, "移除成员失败", err)
		return
	}

	response.GinSuccessWithMessage(c, "成员已移除", nil)
}

/*
broadcastToTeam 向团队全体成员广播实时事件
*/
func (h *TeamHandler) broadcastToTeam(teamID string, event ws.Event) {
	if h.hub == nil {
		return
	}
	userIDs, err := h.app.DAO.ListTeamMemberUserIDs(teamID)
	if err != nil {
		h.logger.Warn("枚举团队成员失败，跳过广播",
			zap.String("teamID", teamID),
			zap.Error(err))
		return
	}
	h.hub.BroadcastToUsers(userIDs, event)
}
