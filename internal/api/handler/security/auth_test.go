package security

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Zuntie/worklenz/internal/api/response"
	"github.com/Zuntie/worklenz/internal/config"
	"github.com/Zuntie/worklenz/internal/db/models"
	"github.com/Zuntie/worklenz/internal/service"
	"github.com/Zuntie/worklenz/internal/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

/*
newGuildTestContext 创建带请求的 gin 测试上下文
*/
func newGuildTestContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	return c, w
}

/* decodeResponse 解析响应信封 */
func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) *response.Response {
	t.Helper()
	var resp response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	return &resp
}

/* newUnconfiguredGuildHandler 公会准入已启用但 guild_id 为空的处理器 */
func newUnconfiguredGuildHandler() *AuthHandler {
	cfg := config.DefaultConfig()
	cfg.Guild.Enabled = true
	cfg.Guild.GuildID = ""

	client := service.NewGuildClient(&cfg.Guild)
	cache := service.NewGuildRosterCache(client)
	gate := service.NewGuildGate(cache, client)

	return &AuthHandler{
		app:    &types.App{Config: cfg},
		gate:   gate,
		logger: zap.NewNop(),
	}
}

/*
TestAuthorizeGuildUnconfiguredFailsClosed 准入启用但 guild_id 未配置：
非管理员登录必须以配置错误拒绝，而不是放行
*/
func TestAuthorizeGuildUnconfiguredFailsClosed(t *testing.T) {
	h := newUnconfiguredGuildHandler()
	c, w := newGuildTestContext(t)

	user := &models.User{Username: "alice", Role: models.RoleUser, DiscordID: "1001"}
	if h.authorizeGuild(c, user) {
		t.Fatal("guild_id 未配置时非管理员登录应被拒绝")
	}
	if w.Code != http.StatusInternalServerError {
		t.Errorf("应返回 500 配置错误，实际 %d", w.Code)
	}
	if resp := decodeResponse(t, w); resp.Success {
		t.Error("响应不应标记为成功")
	}
}

/*
TestAuthorizeGuildNilGateFailsClosed 准入启用但闸门未装配：
同样按配置错误拒绝，绝不因装配缺失而放行
*/
func TestAuthorizeGuildNilGateFailsClosed(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Guild.Enabled = true
	cfg.Guild.GuildID = ""
	h := &AuthHandler{
		app:    &types.App{Config: cfg},
		gate:   nil,
		logger: zap.NewNop(),
	}
	c, w := newGuildTestContext(t)

	user := &models.User{Username: "bob", Role: models.RoleUser, DiscordID: "1002"}
	if h.authorizeGuild(c, user) {
		t.Fatal("闸门缺失时非管理员登录应被拒绝")
	}
	if w.Code != http.StatusInternalServerError {
		t.Errorf("应返回 500 配置错误，实际 %d", w.Code)
	}
}

/* TestAuthorizeGuildAdminBypass 本地管理员豁免公会准入，配置错误也不锁死运维入口 */
func TestAuthorizeGuildAdminBypass(t *testing.T) {
	h := newUnconfiguredGuildHandler()
	c, w := newGuildTestContext(t)

	admin := &models.User{Username: "admin1", Role: models.RoleAdmin}
	if !h.authorizeGuild(c, admin) {
		t.Fatal("管理员应豁免公会准入")
	}
	if w.Body.Len() != 0 {
		t.Error("豁免路径不应写出响应")
	}
}

/* TestAuthorizeGuildDisabled 公会准入未启用时不做任何检查 */
func TestAuthorizeGuildDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Guild.Enabled = false
	h := &AuthHandler{
		app:    &types.App{Config: cfg},
		logger: zap.NewNop(),
	}
	c, w := newGuildTestContext(t)

	user := &models.User{Username: "carol", Role: models.RoleUser}
	if !h.authorizeGuild(c, user) {
		t.Fatal("准入未启用时应放行")
	}
	if w.Body.Len() != 0 {
		t.Error("放行路径不应写出响应")
	}
}
