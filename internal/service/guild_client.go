package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/Zuntie/worklenz/internal/config"
)

/* 公会 API 错误分类，调用方通过 errors.Is 判断 */
var (
	/* ErrGuildNotConfigured 未配置公会 ID，操作失败但进程继续运行 */
	ErrGuildNotConfigured = errors.New("公会 ID 未配置")
	/* ErrGuildUnavailable 公会 API 网络/超时错误，可由调用方重试，本层不重试 */
	ErrGuildUnavailable = errors.New("公会 API 暂时不可用")
	/* ErrGuildRateLimited 公会 API 限流（HTTP 429），调用方应退避 */
	ErrGuildRateLimited = errors.New("公会 API 请求被限流")
)

/*
GuildAPI 公会成员资格查询接口
功能：名册缓存、准入闸门和清扫任务通过此接口访问成员资格权威来源，
测试中用假实现替换真实 HTTP 客户端。
*/
type GuildAPI interface {
	/* Configured 公会 ID 是否已配置 */
	Configured() bool
	/* FetchRoster 拉取完整成员名册 */
	FetchRoster(ctx context.Context) (map[string]struct{}, error)
	/* CheckMember 查询单个用户是否为公会成员（只读，慢路径专用） */
	CheckMember(ctx context.Context, discordID string) (bool, error)
}

/*
GuildClient 公会 API 客户端
功能：封装对 Discord 公会 API 的成员名册拉取和单用户成员查询。
纯请求/响应，无内部状态，不做内部重试——重试策略属于调用方。
所有请求带有界超时，防止慢路径查询无限阻塞登录请求。
*/
type GuildClient struct {
	guildID    string
	botToken   string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

/* rosterPageSize 单页成员数上限（Discord API 允许的最大值） */
const rosterPageSize = 1000

/*
NewGuildClient 创建公会 API 客户端
*/
func NewGuildClient(cfg *config.GuildConfig) *GuildClient {
	baseURL := cfg.APIBaseURL
	if baseURL == "" {
		baseURL = "https://discord.com/api/v10"
	}
	timeout := time.Duration(cfg.HTTPTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &GuildClient{
		guildID:  cfg.GuildID,
		botToken: cfg.BotToken,
		baseURL:  baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: zap.L().Named("guild-client"),
	}
}

/*
Configured 公会 ID 是否已配置
*/
func (c *GuildClient) Configured() bool {
	return c.guildID != ""
}

/* guildMember 公会成员响应中本系统关心的唯一字段 */
type guildMember struct {
	User struct {
		ID string `json:"id"`
	} `json:"user"`
}

/*
FetchRoster 拉取完整成员名册
功能：分页遍历 GET /guilds/{id}/members，返回成员 ID 集合。
任何一页失败则整体失败，不返回部分名册——
调用方（名册缓存）依赖"整册替换"语义保证一致性。
*/
func (c *GuildClient) FetchRoster(ctx context.Context) (map[string]struct{}, error) {
	if c.guildID == "" {
		return nil, ErrGuildNotConfigured
	}

	roster := make(map[string]struct{})
	after := ""

	for {
		members, err := c.fetchRosterPage(ctx, after)
		if err != nil {
			return nil, err
		}
		if len(members) == 0 {
			break
		}

		prevAfter := after
		for _, m := range members {
			if m.User.ID == "" {
				continue
			}
			roster[m.User.ID] = struct{}{}
			after = m.User.ID
		}

		/* 最后一页：返回数量不足一整页 */
		if len(members) < rosterPageSize {
			break
		}
		/* 整页成员都没有可用 ID 时游标无法推进，继续循环会反复拉取同一页 */
		if after == prevAfter {
			return nil, fmt.Errorf("%w: 名册分页游标未推进", ErrGuildUnavailable)
		}
	}

	return roster, nil
}

/* fetchRosterPage 拉取一页成员，after 为上一页最后一个成员 ID */
func (c *GuildClient) fetchRosterPage(ctx context.Context, after string) ([]guildMember, error) {
	endpoint := fmt.Sprintf("%s/guilds/%s/members?limit=%d", c.baseURL, url.PathEscape(c.guildID), rosterPageSize)
	if after != "" {
		endpoint += "&after=" + url.QueryEscape(after)
	}

	body, status, err := c.doRequest(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusTooManyRequests:
		return nil, ErrGuildRateLimited
	case status != http.StatusOK:
		return nil, fmt.Errorf("%w: 名册拉取返回 HTTP %d", ErrGuildUnavailable, status)
	}

	var members []guildMember
	if err := json.Unmarshal(body, &members); err != nil {
		return nil, fmt.Errorf("%w: 名册响应解析失败: %v", ErrGuildUnavailable, err)
	}
	return members, nil
}

/*
CheckMember 查询单个用户是否为公会成员
功能：GET /guilds/{id}/members/{uid}，404 表示非成员。
仅在缓存未命中的慢路径调用，只读无副作用。
*/
func (c *GuildClient) CheckMember(ctx context.Context, discordID string) (bool, error) {
	if c.guildID == "" {
		return false, ErrGuildNotConfigured
	}
	if discordID == "" {
		return false, nil
	}

	endpoint := fmt.Sprintf("%s/guilds/%s/members/%s",
		c.baseURL, url.PathEscape(c.guildID), url.PathEscape(discordID))

	_, status, err := c.doRequest(ctx, endpoint)
	if err != nil {
		return false, err
	}

	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	case http.StatusTooManyRequests:
		return false, ErrGuildRateLimited
	default:
		return false, fmt.Errorf("%w: 成员查询返回 HTTP %d", ErrGuildUnavailable, status)
	}
}

/*
doRequest 执行一次带认证的 GET 请求
功能：统一设置 Bot 令牌和响应体大小限制，
网络/超时错误归类为 ErrGuildUnavailable
*/
func (c *GuildClient) doRequest(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrGuildUnavailable, err)
	}
	if c.botToken != "" {
		req.Header.Set("Authorization", "Bot "+c.botToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrGuildUnavailable, err)
	}
	defer resp.Body.Close()

	/* 限制外部 API 响应体最大 4MB，防止恶意响应导致 OOM */
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: 读取响应失败: %v", ErrGuildUnavailable, err)
	}

	return body, resp.StatusCode, nil
}
