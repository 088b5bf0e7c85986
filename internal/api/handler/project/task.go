package project

import (
	"strconv"
	"time"

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
TaskHandler 任务处理器
功能：项目内任务的增删改查和状态流转，
所有变更实时广播给所属团队的在线成员
*/
type TaskHandler struct {
	app     *types.App
	project *ProjectHandler
	logger  *zap.Logger
}

/*
NewTaskHandler 创建任务处理器
*/
func NewTaskHandler(app *types.App, project *ProjectHandler) *TaskHandler {
	return &TaskHandler{
		app:     app,
		project: project,
		logger:  zap.L().Named("task-handler"),
	}
}

/*
CreateTaskRequest 创建任务请求
*/
type CreateTaskRequest struct {
	Title       string     `json:"title" binding:"required,min=1,max=256"`
	Description string     `json:"description" binding:"max=2048"`
	Priority    int        `json:"priority" binding:"min=0,max=2"`
	AssigneeID  string     `json:"assignee_id"`
	DueDate     *time.Time `json:"due_date"`
}

/*
CreateTask 创建任务
路由：POST /api/v1/projects/:id/tasks
*/
func (h *TaskHandler) CreateTask(c *gin.Context) {
	proj := h.project.requireProjectAccess(c, c.Param("id"))
	if proj == nil {
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.GinBadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	task := &models.Task{
		ProjectID:   proj.ID,
		Title:       req.Title,
		Description: req.Description,
		Status:      models.TaskTodo,
		Priority:    req.Priority,
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
		CreatedBy:   middleware.GetUserID(c),
	}
	if err := h.app.DAO.CreateTask(task); err != nil {
		response.GinInternalError(c, "创建任务失败", err)
		return
	}

	h.project.team.broadcastToTeam(proj.TeamID, ws.Event{
		Type:    ws.EventTaskCreated,
		Payload: task,
	})
	response.GinSuccess(c, task)
}

/*
ListTasks 列出项目任务（分页，可按状态过滤）
路由：GET /api/v1/projects/:id/tasks?status=todo&limit=20&offset=0
*/
func (h *TaskHandler) ListTasks(c *gin.Context) {
	proj := h.project.requireProjectAccess(c, c.Param("id"))
	if proj == nil {
		return
	}

	status := models.TaskStatus(c.Query("status"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, offset = dao.SanitizePagination(limit, offset, 200)

	tasks, total, err := h.app.DAO.ListProjectTasks(proj.ID, status, limit, offset)
	if err != nil {
		response.GinInternalError(c, "获取任务列表失败", err)
		return
	}

	response.GinSuccess(c, gin.H{
		"tasks":  tasks,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

/*
requireTaskAccess 校验当前用户可访问指定任务
功能：返回任务和所属项目；失败时响应已写出，返回 nil
*/
func (h *TaskHandler) requireTaskAccess(c *gin.Context, taskID string) (*models.Task, *models.Project) {
	task, err := h.app.DAO.GetTask(taskID)
	if err != nil {
		response.GinInternalError(c, "查询任务失败", err)
		return nil, nil
	}
	if task == nil {
		response.GinNotFound(c, "任务不存在")
		return nil, nil
	}
	proj := h.project.requireProjectAccess(c, task.ProjectID)
	if proj == nil {
		return nil, nil
	}
	return task, proj
}

/*
UpdateTaskRequest 更新任务请求
*/
type UpdateTaskRequest struct {
	Title       string     `json:"title" binding:"omitempty,min=1,max=256"`
	Description string     `json:"description" binding:"max=2048"`
	Status      string     `json:"status" binding:"omitempty,oneof=todo doing done"`
	Priority    *int       `json:"priority" binding:"omitempty,min=0,max=2"`
	AssigneeID  *string    `json:"assignee_id"`
	DueDate     *time.Time `json:"due_date"`
}

/*
UpdateTask 更新任务
路由：PUT /api/v1/tasks/:id
*/
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	task, proj := h.requireTaskAccess(c, c.Param("id"))
	if task == nil {
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.GinBadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	if req.Title != "" {
		task.Title = req.Title
	}
	if req.Description != "" {
		task.Description = req.Description
	}
	if req.Status != "" {
		task.Status = models.TaskStatus(req.Status)
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	if req.AssigneeID != nil {
		task.AssigneeID = *req.AssigneeID
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}

	if err := h.app.DAO.UpdateTask(task); err != nil {
		response.GinInternalError(c, "更新任务失败", err)
		return
	}

	h.project.team.broadcastToTeam(proj.TeamID, ws.Event{
		Type:    ws.EventTaskUpdated,
		Payload: task,
	})
	response.GinSuccess(c, task)
}

/*
UpdateTaskStatusRequest 任务状态流转请求
*/
type UpdateTaskStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=todo doing done"`
}

/*
UpdateTaskStatus 任务状态流转
功能：看板拖拽的轻量接口，只改状态字段
路由：PUT /api/v1/tasks/:id/status
*/
func (h *TaskHandler) UpdateTaskStatus(c *gin.Context) {
	task, proj := h.requireTaskAccess(c, c.Param("id"))
	if task == nil {
		return
	}

	var req UpdateTaskStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.GinBadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	if err := h.app.DAO.UpdateTaskStatus(task.ID, models.TaskStatus(req.Status)); err != nil {
		response.GinInternalError(c, "更新任务状态失败", err)
		return
	}
	task.Status = models.TaskStatus(req.Status)

	h.project.team.broadcastToTeam(proj.TeamID, ws.Event{
		Type:    ws.EventTaskUpdated,
		Payload: task,
	})
	response.GinSuccess(c, task)
}

/*
DeleteTask 删除任务
路由：DELETE /api/v1/tasks/:id
*/
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	task, proj := h.requireTaskAccess(c, c.Param("id"))
	if task == nil {
		return
	}

	if err := h.app.DAO.DeleteTask(task.ID); err != nil {
		response.GinInternalError(c, "删除任务失败", err)
		return
	}

	h.project.team.broadcastToTeam(proj.TeamID, ws.Event{
		Type:    ws.EventTaskDeleted,
		Payload: gin.H{"id": task.ID, "project_id": task.ProjectID},
	})
	response.GinSuccessWithMessage(c, "任务已删除", nil)
}
