package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/Zuntie/worklenz/internal/pkg/metrics"
)

/*
DecisionSource 准入判定的数据来源
*/
type DecisionSource string

const (
	/* DecisionSourceCache 判定来自内存名册（快路径，无网络 I/O） */
	DecisionSourceCache DecisionSource = "cache"
	/* DecisionSourceLive 判定来自公会 API 实时查询（慢路径） */
	DecisionSourceLive DecisionSource = "live"
)

/*
GateDecision 单次准入判定结果
功能：每次登录尝试产生一个，临时值不落库
*/
type GateDecision struct {
	Identity string         `json:"identity"` /* 被检查的外部身份 */
	Allowed  bool           `json:"allowed"`  /* 是否放行 */
	Source   DecisionSource `json:"source"`   /* 判定来源：cache / live */
}

/*
GuildGate 公会准入闸门
功能：登录/注册流程调用，决定外部身份是否放行。

判定策略（所有调用点统一，无分支差异）：
 1. 公会未配置 → 返回 ErrGuildNotConfigured（调用方对外只说"服务配置错误"，
    不泄漏内部细节）
 2. 快路径：查内存名册，命中即放行
 3. 慢路径（仅缓存未命中时）：实时查询公会 API。
    传输错误 → 关闭失败（拒绝访问，调用方提示"稍后重试"），绝不因
    查询失败而放行；查询成功按结果放行/拒绝

理由：缓存未命中是预期且廉价的（慢路径兜底即可）；而实时查询的传输
错误意味着完全无法确认资格，此时安全默认是拒绝而非放行。
*/
type GuildGate struct {
	cache  *GuildRosterCache
	api    GuildAPI
	logger *zap.Logger
}

/*
NewGuildGate 创建准入闸门
*/
func NewGuildGate(cache *GuildRosterCache, api GuildAPI) *GuildGate {
	return &GuildGate{
		cache:  cache,
		api:    api,
		logger: zap.L().Named("guild-gate"),
	}
}

/*
Authorize 判定外部身份是否放行
功能：快路径查缓存，未命中走慢路径实时查询。
返回 error 时没有判定结果（配置错误或权威不可用），调用方必须拒绝访问。
*/
func (g *GuildGate) Authorize(ctx context.Context, identity string) (*GateDecision, error) {
	if g.api == nil || !g.api.Configured() {
		return nil, ErrGuildNotConfigured
	}

	/* 未绑定外部身份的请求直接拒绝，不消耗慢路径配额 */
	if identity == "" {
		return g.record(&GateDecision{Identity: identity, Allowed: false, Source: DecisionSourceCache}), nil
	}

	/* 快路径：内存名册 */
	if g.cache.IsMember(identity) {
		return g.record(&GateDecision{Identity: identity, Allowed: true, Source: DecisionSourceCache}), nil
	}

	/* 慢路径：实时查询。传输错误向上传播，调用方关闭失败 */
	ok, err := g.api.CheckMember(ctx, identity)
	if err != nil {
		g.logger.Warn("慢路径成员查询失败，拒绝访问",
			zap.String("identity", identity),
			zap.Error(err))
		return nil, err
	}

	return g.record(&GateDecision{Identity: identity, Allowed: ok, Source: DecisionSourceLive}), nil
}

/* record 记录判定指标并返回判定结果 */
func (g *GuildGate) record(d *GateDecision) *GateDecision {
	allowed := "false"
	if d.Allowed {
		allowed = "true"
	}
	metrics.GuildAuthorizeTotal.WithLabelValues(string(d.Source), allowed).Inc()

	if !d.Allowed {
		g.logger.Debug("准入被拒绝",
			zap.String("identity", d.Identity),
			zap.String("source", string(d.Source)))
	}
	return d
}
