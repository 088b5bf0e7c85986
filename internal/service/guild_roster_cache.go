package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Zuntie/worklenz/internal/pkg/metrics"
)

/* ErrRefreshInProgress 已有一次刷新在进行中（良性，并发刷新请求被合并） */
var ErrRefreshInProgress = errors.New("名册刷新已在进行中")

/*
GuildRosterCache 公会成员名册缓存
功能：进程内唯一的成员名册快照，登录/授权路径同步查询，
后台清扫任务周期性刷新。

一致性模型：
  - 名册是权威来源在 syncedAt 时刻的快照，两次刷新之间是
    尽力而为的陈旧视图（最终一致），未命中不代表非成员
  - 每次刷新成功后整册替换（不做增量合并），读者要么看到
    完整的旧名册，要么看到完整的新名册，绝不会看到混合状态
  - 刷新失败保留旧快照：宁可陈旧可用，不要清空但"新鲜"

并发安全：
  - members/syncedAt 由 sync.RWMutex 保护，IsMember 只读不阻塞写之外的路径
  - 刷新单飞：atomic.Bool 做测试并置位，并发刷新请求立即返回
    ErrRefreshInProgress 而不是排队等待
*/
type GuildRosterCache struct {
	api    GuildAPI
	logger *zap.Logger

	mu       sync.RWMutex
	members  map[string]struct{} /* 成员 ID 集合，nil 表示从未同步 */
	syncedAt time.Time           /* 最后一次成功刷新时间，零值表示从未同步 */

	refreshing atomic.Bool /* 刷新进行中标志 */
}

/*
NewGuildRosterCache 创建名册缓存
功能：进程启动时创建一次（空名册），由 main 注入给闸门和清扫任务，
不使用包级单例，保证单写多读约束和可测试性显式化
*/
func NewGuildRosterCache(api GuildAPI) *GuildRosterCache {
	return &GuildRosterCache{
		api:    api,
		logger: zap.L().Named("guild-roster"),
	}
}

/*
IsMember 成员资格快速查询（快路径）
功能：O(1) 查询当前快照，永不阻塞、永不触发刷新。
名册从未同步或身份不在名册中一律返回 false——
对准入闸门来说"视为非成员"是更安全的默认值，
未命中由慢路径实时查询兜底。
*/
func (c *GuildRosterCache) IsMember(discordID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.members[discordID]
	return ok
}

/*
Refresh 全量刷新名册
功能：单飞刷新。已有刷新在进行时立即返回 ErrRefreshInProgress
（不等待、不排队）；否则拉取完整名册并整册原子替换。
失败时旧快照原样保留并向上传播错误，标志位在所有退出路径清除。
*/
func (c *GuildRosterCache) Refresh(ctx context.Context) error {
	/* 测试并置位：并发刷新只允许一个真正执行 */
	if !c.refreshing.CompareAndSwap(false, true) {
		c.logger.Debug("名册刷新请求被合并：已有刷新在进行中")
		return ErrRefreshInProgress
	}
	defer c.refreshing.Store(false)

	started := time.Now()
	roster, err := c.api.FetchRoster(ctx)
	if err != nil {
		metrics.GuildRefreshTotal.WithLabelValues("failure").Inc()
		c.logger.Warn("名册刷新失败，保留上一份快照",
			zap.Int("stale_size", c.MemberCount()),
			zap.Error(err))
		return err
	}

	/* 整册替换 + 时间戳，同一把锁内完成 */
	c.mu.Lock()
	c.members = roster
	c.syncedAt = time.Now()
	c.mu.Unlock()

	metrics.GuildRefreshTotal.WithLabelValues("success").Inc()
	metrics.GuildRosterSize.Set(float64(len(roster)))
	c.logger.Info("名册刷新完成",
		zap.Int("size", len(roster)),
		zap.Duration("耗时", time.Since(started)))
	return nil
}

/*
MemberCount 当前名册成员数（无副作用）
*/
func (c *GuildRosterCache) MemberCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.members)
}

/*
LastSyncTime 最后一次成功刷新时间
功能：第二个返回值为 false 表示名册从未成功同步过，
清扫任务以此判断是否跳过本轮（防止冷启动误清全部会话）
*/
func (c *GuildRosterCache) LastSyncTime() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.syncedAt, !c.syncedAt.IsZero()
}

/*
RefreshInFlight 是否有刷新在进行中（内省用）
*/
func (c *GuildRosterCache) RefreshInFlight() bool {
	return c.refreshing.Load()
}

/*
Reset 清空名册（仅测试/重置用途）
*/
func (c *GuildRosterCache) Reset() {
	c.mu.Lock()
	c.members = nil
	c.syncedAt = time.Time{}
	c.mu.Unlock()
	metrics.GuildRosterSize.Set(0)
}
