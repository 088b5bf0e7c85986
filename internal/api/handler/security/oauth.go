package security

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Zuntie/worklenz/internal/api/response"
	"github.com/Zuntie/worklenz/internal/db/models"
	"github.com/Zuntie/worklenz/internal/pkg/logger"
	"github.com/Zuntie/worklenz/internal/service"
	"github.com/Zuntie/worklenz/internal/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

/* discordEndpoint Discord OAuth2 端点（x/oauth2 未内置，手动定义） */
var discordEndpoint = oauth2.Endpoint{
	AuthURL:  "https://discord.com/oauth2/authorize",
	TokenURL: "https://discord.com/api/oauth2/token",
}

const discordUserAPI = "https://discord.com/api/v10/users/@me"

// OAuthHandler Discord OAuth 处理器
type OAuthHandler struct {
	app           *types.App
	discordConfig *oauth2.Config
	gate          *service.GuildGate /* 公会未启用时为 nil */
	auth          *AuthHandler       /* 复用会话签发逻辑 */
}

// NewOAuthHandler 创建 OAuth 处理器
func NewOAuthHandler(app *types.App, gate *service.GuildGate, auth *AuthHandler) *OAuthHandler {
	handler := &OAuthHandler{
		app:  app,
		gate: gate,
		auth: auth,
	}

	if app.Config.Auth.Discord.Enabled {
		handler.discordConfig = &oauth2.Config{
			ClientID:     app.Config.Auth.Discord.ClientID,
			ClientSecret: app.Config.Auth.Discord.ClientSecret,
			RedirectURL:  app.Config.Auth.Discord.RedirectURL,
			Scopes:       []string{"identify", "email"},
			Endpoint:     discordEndpoint,
		}
	}

	return handler
}

// DiscordUser Discord 用户信息
type DiscordUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
}

// DiscordLoginRequest Discord 登录请求
type DiscordLoginRequest struct {
	Code  string `json:"code" binding:"required"`
	State string `json:"state" binding:"required"`
}

// DiscordLoginURL 获取 Discord 授权 URL
func (h *OAuthHandler) DiscordLoginURL(c *gin.Context) {
	if h.discordConfig == nil {
		response.GinBadRequest(c, "Discord 登录未启用")
		return
	}

	/* 生成随机 state */
	b := make([]byte, 32)
	rand.Read(b)
	state := base64.URLEncoding.EncodeToString(b)

	/* 如果有 Redis，缓存 state（5分钟，一次性） */
	if h.app.DB.HasCache() {
		_ = h.app.DB.Redis.Set("oauth:state:"+state, "pending", 5*time.Minute)
	}

	url := h.discordConfig.AuthCodeURL(state)
	response.GinSuccess(c, gin.H{
		"url":   url,
		"state": state,
	})
}

/*
DiscordCallback Discord 授权回调
功能：state 校验 → code 换 token → 拉取 Discord 用户信息 →
公会准入闸门 → 按 Discord ID 查找/创建本地账号 → 签发会话。
准入失败时不创建账号也不签发令牌。
路由：POST /api/v1/auth/discord/callback
*/
func (h *OAuthHandler) DiscordCallback(c *gin.Context) {
	if h.discordConfig == nil {
		response.GinBadRequest(c, "Discord 登录未启用")
		return
	}

	var req DiscordLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.GinBadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	/* 验证 state（如果有 Redis）：一次性读取后删除 */
	if h.app.DB.HasCache() {
		val, _ := h.app.DB.Redis.GetDel("oauth:state:" + req.State)
		if val != "pending" {
			response.GinBadRequest(c, "state 参数无效或已过期")
			return
		}
	}

	/* 交换 code 获取 token */
	ctx := c.Request.Context()
	token, err := h.discordConfig.Exchange(ctx, req.Code)
	if err != nil {
		logger.Error("Discord OAuth token 交换失败", zap.Error(err))
		response.GinBadRequest(c, "Discord 认证失败，请重试")
		return
	}

	/* 拉取 Discord 用户信息 */
	client := h.discordConfig.Client(ctx, token)
	resp, err := client.Get(discordUserAPI)
	if err != nil {
		response.InternalError(c, "获取 Discord 用户信息失败")
		return
	}
	defer resp.Body.Close()

	/* 限制外部 API 响应体最大 1MB */
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var discordUser DiscordUser
	if err := json.Unmarshal(data, &discordUser); err != nil || discordUser.ID == "" {
		response.InternalError(c, "解析 Discord 用户信息失败")
		return
	}

	/* 公会准入闸门：先确认成员资格，再碰本地账号。
	guild_id 缺失时闸门返回配置错误，同样拒绝 */
	if h.app.Config.Guild.Enabled {
		if h.gate == nil {
			response.GinInternalError(c, "服务配置错误", service.ErrGuildNotConfigured)
			return
		}
		decision, err := h.gate.Authorize(ctx, discordUser.ID)
		if err != nil {
			if errors.Is(err, service.ErrGuildNotConfigured) {
				response.GinInternalError(c, "服务配置错误", err)
				return
			}
			response.GinError(c, http.StatusServiceUnavailable, "公会资格暂时无法确认，请稍后重试")
			return
		}
		if !decision.Allowed {
			logger.Info("公会准入拒绝 Discord 登录",
				zap.String("discord_id", discordUser.ID),
				zap.String("source", string(decision.Source)))
			response.GinForbidden(c, "当前 Discord 账号不是公会成员，无法登录")
			return
		}
	}

	user, err := h.app.DAO.GetUserByDiscordID(discordUser.ID)
	if err != nil {
		response.InternalError(c, "数据库错误")
		return
	}

	if user == nil {
		user, err = h.createDiscordUser(&discordUser)
		if err != nil {
			logger.Error("创建 Discord 用户失败", zap.Error(err))
			response.InternalError(c, "创建用户失败")
			return
		}
	}
	if !user.Enabled {
		response.GinForbidden(c, "账户已被禁用")
		return
	}

	_ = h.app.DAO.UpdateUserLastLogin(user.ID)

	h.auth.issueSession(c, user)
}

/*
createDiscordUser 按 Discord 信息创建本地账号
功能：用户名冲突时追加 Discord ID 后缀；通过注册服务
建立个人团队，与密码注册走同一条事务路径
*/
func (h *OAuthHandler) createDiscordUser(du *DiscordUser) (*models.User, error) {
	username := du.Username
	if existing, _ := h.app.DAO.GetUserByUsername(username); existing != nil {
		username = fmt.Sprintf("%s_%s", du.Username, du.ID)
	}

	email := du.Email
	if email == "" {
		/* Discord 未授权邮箱时生成占位地址，保持唯一约束 */
		email = fmt.Sprintf("%s@discord.local", du.ID)
	}

	avatar := ""
	if du.Avatar != "" {
		avatar = fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", du.ID, du.Avatar)
	}

	userSvc := service.NewGormUserService(h.app.DB.GormDB)
	result, err := userSvc.Register(&service.GormRegisterRequest{
		Username:  username,
		Email:     email,
		Password:  "", /* 纯 OAuth 账号无本地密码 */
		DiscordID: du.ID,
	})
	if err != nil {
		return nil, err
	}

	if avatar != "" {
		result.User.Avatar = avatar
		_ = h.app.DAO.UpdateUser(result.User)
	}
	return result.User, nil
}
