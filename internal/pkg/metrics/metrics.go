/*
Package metrics 运行指标

基于 prometheus 的计数器/仪表盘，覆盖公会准入子系统的可观测需求：
名册刷新成败、名册大小、快/慢路径命中比、每轮清扫失效的会话数。
指标通过 /metrics 端点暴露（仅限本机访问，见 router）。
*/
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	/* GuildRefreshTotal 名册刷新次数，result ∈ success / failure / skipped */
	GuildRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "worklenz",
		Subsystem: "guild",
		Name:      "roster_refresh_total",
		Help:      "Total number of guild roster refresh attempts by result.",
	}, []string{"result"})

	/* GuildRosterSize 当前缓存的名册成员数 */
	GuildRosterSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "worklenz",
		Subsystem: "guild",
		Name:      "roster_size",
		Help:      "Number of member identifiers in the in-memory guild roster.",
	})

	/* GuildAuthorizeTotal 准入判定次数，source ∈ cache / live，allowed ∈ true / false */
	GuildAuthorizeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "worklenz",
		Subsystem: "guild",
		Name:      "authorize_total",
		Help:      "Total number of guild authorization decisions by source and outcome.",
	}, []string{"source", "allowed"})

	/* SessionsInvalidatedTotal 清扫任务累计失效的会话数 */
	SessionsInvalidatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "worklenz",
		Subsystem: "guild",
		Name:      "sessions_invalidated_total",
		Help:      "Total number of sessions invalidated by the reconciliation sweep.",
	})

	/* SweepTicksTotal 清扫轮次，result ∈ completed / skipped */
	SweepTicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "worklenz",
		Subsystem: "guild",
		Name:      "sweep_ticks_total",
		Help:      "Total number of sweep ticks by result.",
	}, []string{"result"})
)
