package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Zuntie/worklenz/internal/db/dao"
	"github.com/Zuntie/worklenz/internal/pkg/metrics"
)

/*
SessionKicker 在线连接的踢出接口
功能：会话被清扫删除后，立即断开其存活的 WebSocket 连接。
由 ws 包的 Hub 实现，接口定义在本包以避免 service → ws 的反向依赖。
*/
type SessionKicker interface {
	KickSession(sessionID string, reason string)
}

/*
GuildSweepService 会话对账清扫服务（定时任务）
功能：周期性刷新公会名册，并使不再是公会成员的用户会话硬性失效。

每轮清扫的单一逻辑步骤：
 1. 触发名册全量刷新。刷新失败只记日志，本轮继续用上一份成功的
    快照清扫（失败的刷新不会破坏旧快照）；唯一的例外是名册从未
    成功同步过——此时跳过本轮，避免冷启动或权威长期不可用时把
    全部用户清出
 2. 枚举所有未过期且绑定了外部身份的会话（类型化投影，只取
    会话 ID 和身份两个字段）
 3. 身份不在名册中的会话逐个删除（硬性失效：该会话的下一个请求
    按未认证处理），并踢出其在线 WebSocket 连接
 4. 输出本轮失效数量。单个会话的错误记日志后继续，
    一轮失败绝不取消后续轮次

调度：固定间隔 ticker（可配置，默认 5 分钟），Stop 关闭 stopChan
是文档化的关停路径。
*/
type GuildSweepService struct {
	cache    *GuildRosterCache
	dao      *dao.DAO
	kicker   SessionKicker /* 可为 nil（如测试中不关心在线连接） */
	interval time.Duration
	stopChan chan struct{}
	logger   *zap.Logger
}

/*
NewGuildSweepService 创建清扫服务
*/
func NewGuildSweepService(cache *GuildRosterCache, d *dao.DAO, interval time.Duration) *GuildSweepService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &GuildSweepService{
		cache:    cache,
		dao:      d,
		interval: interval,
		stopChan: make(chan struct{}),
		logger:   zap.L().Named("guild-sweeper"),
	}
}

/*
SetKicker 注入在线连接踢出器
功能：main 在 WebSocket Hub 创建后注入，清扫删除会话时同步断开长连接
*/
func (s *GuildSweepService) SetKicker(k SessionKicker) {
	s.kicker = k
}

// Start 启动清扫服务（阻塞，应在独立 goroutine 中调用）
func (s *GuildSweepService) Start() {
	s.logger.Info("✓ 会话清扫服务已启动", zap.Duration("interval", s.interval))

	/* 启动时先跑一轮，尽快建立首份名册快照 */
	s.RunSweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunSweep()
		case <-s.stopChan:
			s.logger.Info("会话清扫服务已停止")
			return
		}
	}
}

// Stop 停止清扫服务
func (s *GuildSweepService) Stop() {
	close(s.stopChan)
}

/*
RunSweep 执行一轮清扫
功能：刷新名册 → 对账会话 → 删除已失去成员资格的会话。
导出供管理端手动触发；任何内部错误都不会传播出本方法。
*/
func (s *GuildSweepService) RunSweep() {
	/* 1. 刷新名册。刷新有界超时，挂起的公会 API 不会卡死调度 */
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	err := s.cache.Refresh(ctx)
	cancel()

	switch {
	case err == nil:
	case errors.Is(err, ErrRefreshInProgress):
		/* 别处正在刷新（如管理端手动触发），用现有快照继续 */
		s.logger.Debug("本轮刷新被合并，继续使用当前快照")
	default:
		s.logger.Warn("名册刷新失败，本轮使用上一份成功快照清扫", zap.Error(err))
	}

	/* 名册从未成功同步：跳过清扫 */
	if _, synced := s.cache.LastSyncTime(); !synced {
		metrics.SweepTicksTotal.WithLabelValues("skipped").Inc()
		s.logger.Warn("名册从未成功同步，跳过本轮清扫")
		return
	}

	/* 2. 枚举活跃的外部身份会话 */
	bindings, err := s.dao.ListActiveGuildBindings()
	if err != nil {
		metrics.SweepTicksTotal.WithLabelValues("skipped").Inc()
		s.logger.Error("枚举活跃会话失败，跳过本轮清扫", zap.Error(err))
		return
	}

	/* 3. 对账：身份不在名册中的会话逐个硬性失效 */
	invalidated := 0
	for _, b := range bindings {
		if s.cache.IsMember(b.DiscordID) {
			continue
		}

		if err := s.dao.DeleteSession(b.SessionID); err != nil {
			/* 单个会话失败不中断本轮，删除是幂等的，下一轮会重试 */
			s.logger.Warn("删除失效会话失败",
				zap.String("session_id", b.SessionID),
				zap.Error(err))
			continue
		}

		if s.kicker != nil {
			s.kicker.KickSession(b.SessionID, "公会成员资格已失效")
		}
		invalidated++
	}

	/* 4. 可观测输出 */
	metrics.SessionsInvalidatedTotal.Add(float64(invalidated))
	metrics.SweepTicksTotal.WithLabelValues("completed").Inc()

	if invalidated > 0 {
		s.logger.Info("会话清扫完成",
			zap.Int("checked", len(bindings)),
			zap.Int("invalidated", invalidated),
			zap.Int("roster_size", s.cache.MemberCount()))
	} else {
		s.logger.Debug("会话清扫完成，无失效会话",
			zap.Int("checked", len(bindings)))
	}
}
