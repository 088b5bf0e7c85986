package user

import (
	"strconv"

	"github.com/Zuntie/worklenz/internal/api/middleware"
	"github.com/Zuntie/worklenz/internal/api/response"
	"github.com/Zuntie/worklenz/internal/db/models"
	"github.com/Zuntie/worklenz/internal/service"
	"github.com/Zuntie/worklenz/internal/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

/*
UserHandler 用户处理器
功能：处理用户注册、信息查询、密码修改、管理员操作等
*/
type UserHandler struct {
	app     *types.App
	userSvc *service.GormUserService
	kicker  service.SessionKicker /* 强制下线时断开 WebSocket，可为 nil */
	logger  *zap.Logger
}

/*
NewUserHandler 创建用户处理器
*/
func NewUserHandler(app *types.App) *UserHandler {
	return &UserHandler{
		app:     app,
		userSvc: service.NewGormUserService(app.DB.GormDB),
		logger:  zap.L().Named("user-handler"),
	}
}

/* SetKicker 注入在线连接踢出器 */
func (h *UserHandler) SetKicker(k service.SessionKicker) {
	h.kicker = k
}

/*
RegisterRequest 注册请求
*/
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Password string `json:"password" binding:"required,min=8,max=128"`
	Email    string `json:"email" binding:"required,email,max=128"`
}

/*
Register 用户注册
功能：字段校验 + 密码强度 → 创建用户 + 个人团队（事务）。
首个注册用户自动成为管理员。
密码注册的账号未绑定外部身份，公会准入启用时需先绑定 Discord 才能登录。
路由：POST /api/v1/auth/register
*/
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.GinBadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	if !h.app.Config.Auth.AllowPassword {
		response.GinForbidden(c, "密码注册已禁用，请使用 Discord 登录")
		return
	}

	result, err := h.userSvc.Register(&service.GormRegisterRequest{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
	})
	if err != nil {
		response.GinBadRequest(c, err.Error())
		return
	}

	response.GinSuccessWithMessage(c, "注册成功", gin.H{
		"user_id":       result.User.ID,
		"username":      result.User.Username,
		"role":          result.User.Role,
		"is_first_user": result.IsFirstUser,
	})
}

/*
ChangePasswordRequest 修改密码请求
*/
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=128"`
}

/*
ChangePassword 修改密码
功能：校验旧密码 → 更新哈希 → 删除除当前会话外的全部会话（强制其他设备下线）
路由：PUT /api/v1/users/password
*/
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.GinBadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	userID := middleware.GetUserID(c)
	user, err := h.app.DAO.GetUser(userID)
	if err != nil || user == nil {
		response.GinNotFound(c, "用户不存在")
		return
	}

	if user.Password == "" || !service.CheckPassword(user.Password, req.OldPassword) {
		response.GinUnauthorized(c, "旧密码错误")
		return
	}
	if err := service.ValidatePasswordStrength(req.NewPassword); err != nil {
		response.GinBadRequest(c, err.Error())
		return
	}

	hashed, err := service.HashPassword(req.NewPassword)
	if err != nil {
		response.GinInternalError(c, "密码加密失败", err)
		return
	}
	user.Password = hashed
	if err := h.app.DAO.UpdateUser(user); err != nil {
		response.GinInternalError(c, "更新密码失败", err)
		return
	}

	/* 其他设备的会话全部硬性失效，当前会话保留 */
	current := middleware.GetSessionID(c)
	sessions, _ := h.app.DAO.ListUserSessions(userID)
	if _, err := h.app.DAO.DeleteUserSessionsExcept(userID, current); err != nil {
		h.logger.Warn("删除其他会话失败", zap.String("userID", userID), zap.Error(err))
	} else if h.kicker != nil {
		for _, s := range sessions {
			if s.ID != current {
				h.kicker.KickSession(s.ID, "密码已修改，请重新登录")
			}
		}
	}

	response.GinSuccessWithMessage(c, "密码已更新，其他设备需重新登录", nil)
}

/* ==================== 管理员操作 ==================== */

/*
ListUsers 用户列表（管理员）
路由：GET /api/v1/admin/users?page=1&page_size=20
*/
func (h *UserHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	users, total, err := h.app.DAO.ListUsers(page, pageSize)
	if err != nil {
		response.GinInternalError(c, "获取用户列表失败", err)
		return
	}

	response.GinSuccess(c, gin.H{
		"users":    users,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

/*
UpdateUserStatusRequest 启用/禁用用户请求
*/
type UpdateUserStatusRequest struct {
	Enabled bool `json:"enabled"`
}

/*
UpdateUserStatus 启用/禁用用户（管理员）
功能：禁用即刻生效：删除该用户全部会话并断开在线连接
路由：PUT /api/v1/admin/users/:id/status
*/
func (h *UserHandler) UpdateUserStatus(c *gin.Context) {
	userID := c.Param("id")
	var req UpdateUserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.GinBadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	user, err := h.app.DAO.GetUser(userID)
	if err != nil {
		response.GinInternalError(c, "查询用户失败", err)
		return
	}
	if user == nil {
		response.GinNotFound(c, "用户不存在")
		return
	}
	if user.ID == middleware.GetUserID(c) {
		response.GinBadRequest(c, "不能操作自己的账号状态")
		return
	}

	user.Enabled = req.Enabled
	if err := h.app.DAO.UpdateUser(user); err != nil {
		response.GinInternalError(c, "更新用户状态失败", err)
		return
	}

	if !req.Enabled {
		h.invalidateUserSessions(userID, "账户已被禁用")
	}

	response.GinSuccessWithMessage(c, "用户状态已更新", gin.H{
		"user_id": userID,
		"enabled": req.Enabled,
	})
}

/*
UpdateUserRoleRequest 角色变更请求
*/
type UpdateUserRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=admin user"`
}

/*
UpdateUserRole 变更用户角色（管理员）
路由：PUT /api/v1/admin/users/:id/role
*/
func (h *UserHandler) UpdateUserRole(c *gin.Context) {
	userID := c.Param("id")
	var req UpdateUserRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.GinBadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	user, err := h.app.DAO.GetUser(userID)
	if err != nil {
		response.GinInternalError(c, "查询用户失败", err)
		return
	}
	if user == nil {
		response.GinNotFound(c, "用户不存在")
		return
	}
	if user.ID == middleware.GetUserID(c) {
		response.GinBadRequest(c, "不能修改自己的角色")
		return
	}

	user.Role = models.UserRole(req.Role)
	if err := h.app.DAO.UpdateUser(user); err != nil {
		response.GinInternalError(c, "更新用户角色失败", err)
		return
	}

	/* 角色变更后旧令牌中的 role 声明已失真，强制重新登录 */
	h.invalidateUserSessions(userID, "角色已变更，请重新登录")

	response.GinSuccessWithMessage(c, "用户角色已更新", gin.H{
		"user_id": userID,
		"role":    req.Role,
	})
}

/*
ForceLogout 强制用户下线（管理员）
路由：POST /api/v1/admin/users/:id/logout
*/
func (h *UserHandler) ForceLogout(c *gin.Context) {
	userID := c.Param("id")

	user, err := h.app.DAO.GetUser(userID)
	if err != nil {
		response.GinInternalError(c, "查询用户失败", err)
		return
	}
	if user == nil {
		response.GinNotFound(c, "用户不存在")
		return
	}

	h.invalidateUserSessions(userID, "已被管理员强制下线")
	response.GinSuccessWithMessage(c, "用户已强制下线", nil)
}

/*
invalidateUserSessions 删除用户全部会话并断开在线连接
*/
func (h *UserHandler) invalidateUserSessions(userID, reason string) {
	sessions, err := h.app.DAO.ListUserSessions(userID)
	if err != nil {
		h.logger.Warn("枚举用户会话失败", zap.String("userID", userID), zap.Error(err))
	}

	deleted, err := h.app.DAO.DeleteUserSessions(userID)
	if err != nil {
		h.logger.Warn("删除用户会话失败", zap.String("userID", userID), zap.Error(err))
		return
	}

	if h.kicker != nil {
		for _, s := range sessions {
			h.kicker.KickSession(s.ID, reason)
		}
	}

	h.logger.Info("用户会话已全部失效",
		zap.String("userID", userID),
		zap.Int64("deleted", deleted))
}
