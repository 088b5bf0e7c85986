package system

import (
	"errors"
	"net/http"
	"time"

	"github.com/Zuntie/worklenz/internal/api/response"
	"github.com/Zuntie/worklenz/internal/service"
	"github.com/Zuntie/worklenz/internal/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

/*
GuildHandler 公会准入管理处理器（管理员）
功能：名册状态查询、手动刷新、手动触发会话清扫、单用户资格诊断
*/
type GuildHandler struct {
	app     *types.App
	cache   *service.GuildRosterCache
	sweeper *service.GuildSweepService
	api     service.GuildAPI
	logger  *zap.Logger
}

/*
NewGuildHandler 创建公会管理处理器
组件在公会未启用时均可为 nil
*/
func NewGuildHandler(app *types.App, cache *service.GuildRosterCache, sweeper *service.GuildSweepService, api service.GuildAPI) *GuildHandler {
	return &GuildHandler{
		app:     app,
		cache:   cache,
		sweeper: sweeper,
		api:     api,
		logger:  zap.L().Named("guild-handler"),
	}
}

/* enabled 公会准入是否启用。guild_id 缺失时仍视为启用，
状态接口要能暴露这种配置错误而不是假装功能关闭 */
func (h *GuildHandler) enabled() bool {
	return h.cache != nil && h.app.Config.Guild.Enabled
}

/*
Status 名册状态
路由：GET /api/v1/admin/guild/status
*/
func (h *GuildHandler) Status(c *gin.Context) {
	if !h.enabled() {
		response.GinSuccess(c, gin.H{"enabled": false})
		return
	}

	status := gin.H{
		"enabled":           true,
		"guild_id":          h.app.Config.Guild.GuildID,
		"roster_size":       h.cache.MemberCount(),
		"refresh_in_flight": h.cache.RefreshInFlight(),
		"sweep_interval":    h.app.Config.Guild.SweepIntervalDuration().String(),
	}
	if syncedAt, synced := h.cache.LastSyncTime(); synced {
		status["last_synced_at"] = syncedAt
		status["snapshot_age"] = time.Since(syncedAt).String()
	} else {
		status["last_synced_at"] = nil
	}

	response.GinSuccess(c, status)
}

/*
RefreshRoster 手动触发名册全量刷新
路由：POST /api/v1/admin/guild/refresh
*/
func (h *GuildHandler) RefreshRoster(c *gin.Context) {
	if !h.enabled() {
		response.GinBadRequest(c, "公会准入未启用")
		return
	}

	if err := h.cache.Refresh(c.Request.Context()); err != nil {
		switch {
		case errors.Is(err, service.ErrRefreshInProgress):
			response.GinError(c, http.StatusConflict, "另一次刷新正在进行中")
		case errors.Is(err, service.ErrGuildRateLimited):
			response.GinError(c, http.StatusServiceUnavailable, "公会 API 限流，请稍后重试")
		default:
			response.GinError(c, http.StatusServiceUnavailable, "名册刷新失败: "+err.Error())
		}
		return
	}

	syncedAt, _ := h.cache.LastSyncTime()
	response.GinSuccessWithMessage(c, "名册已刷新", gin.H{
		"roster_size":    h.cache.MemberCount(),
		"last_synced_at": syncedAt,
	})
}

/*
TriggerSweep 手动触发一轮会话清扫
功能：清扫在后台执行，接口立即返回
路由：POST /api/v1/admin/guild/sweep
*/
func (h *GuildHandler) TriggerSweep(c *gin.Context) {
	if !h.enabled() || h.sweeper == nil {
		response.GinBadRequest(c, "公会准入未启用")
		return
	}

	go h.sweeper.RunSweep()
	h.logger.Info("管理员手动触发会话清扫")
	response.GinSuccessWithMessage(c, "清扫已触发", nil)
}

/*
CheckMember 单用户资格诊断
功能：同时给出缓存结论和实时查询结论，定位名册陈旧问题
路由：GET /api/v1/admin/guild/members/:discordID
*/
func (h *GuildHandler) CheckMember(c *gin.Context) {
	if !h.enabled() {
		response.GinBadRequest(c, "公会准入未启用")
		return
	}

	discordID := c.Param("discordID")
	inCache := h.cache.IsMember(discordID)

	live, err := h.api.CheckMember(c.Request.Context(), discordID)
	if err != nil {
		response.GinSuccess(c, gin.H{
			"discord_id": discordID,
			"in_cache":   inCache,
			"live":       nil,
			"live_error": err.Error(),
		})
		return
	}

	response.GinSuccess(c, gin.H{
		"discord_id": discordID,
		"in_cache":   inCache,
		"live":       live,
	})
}
