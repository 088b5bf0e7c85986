package service

import (
	"context"
	"errors"
	"testing"
)

/*
TestGuildGate_NotConfigured 测试公会未配置时返回配置错误
*/
func TestGuildGate_NotConfigured(t *testing.T) {
	api := &fakeGuildAPI{unset: true}
	gate := NewGuildGate(NewGuildRosterCache(api), api)

	decision, err := gate.Authorize(context.Background(), "A")
	if !errors.Is(err, ErrGuildNotConfigured) {
		t.Fatalf("期望 ErrGuildNotConfigured, 实际 %v", err)
	}
	if decision != nil {
		t.Error("配置错误时不应产生判定结果")
	}
}

/*
TestGuildGate_FastPath 测试缓存命中的快路径
*/
func TestGuildGate_FastPath(t *testing.T) {
	api := &fakeGuildAPI{}
	api.setRoster("A")
	cache := NewGuildRosterCache(api)
	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh 失败: %v", err)
	}
	gate := NewGuildGate(cache, api)

	decision, err := gate.Authorize(context.Background(), "A")
	if err != nil {
		t.Fatalf("Authorize 失败: %v", err)
	}
	if !decision.Allowed {
		t.Error("缓存命中应放行")
	}
	if decision.Source != DecisionSourceCache {
		t.Errorf("期望来源 cache, 实际 %s", decision.Source)
	}

	/* 快路径不应触发实时查询 */
	api.mu.Lock()
	calls := api.checkCalls
	api.mu.Unlock()
	if calls != 0 {
		t.Errorf("快路径命中不应调用公会 API, 实际调用 %d 次", calls)
	}
}

/*
TestGuildGate_SlowPath 测试缓存未命中时的实时查询兜底
*/
func TestGuildGate_SlowPath(t *testing.T) {
	api := &fakeGuildAPI{}
	cache := NewGuildRosterCache(api)
	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh 失败: %v", err)
	}
	/* 名册同步后上游新增成员 B，缓存尚未感知 */
	api.setRoster("B")
	gate := NewGuildGate(cache, api)

	decision, err := gate.Authorize(context.Background(), "B")
	if err != nil {
		t.Fatalf("Authorize 失败: %v", err)
	}
	if !decision.Allowed {
		t.Error("实时查询确认成员资格后应放行")
	}
	if decision.Source != DecisionSourceLive {
		t.Errorf("期望来源 live, 实际 %s", decision.Source)
	}

	/* 实时查询也确认不是成员：拒绝 */
	decision, err = gate.Authorize(context.Background(), "C")
	if err != nil {
		t.Fatalf("Authorize 失败: %v", err)
	}
	if decision.Allowed {
		t.Error("实时查询确认非成员应拒绝")
	}
	if decision.Source != DecisionSourceLive {
		t.Errorf("期望来源 live, 实际 %s", decision.Source)
	}
}

/*
TestGuildGate_FailClosed 测试权威不可用时关闭失败
*/
func TestGuildGate_FailClosed(t *testing.T) {
	api := &fakeGuildAPI{checkErr: ErrGuildUnavailable}
	cache := NewGuildRosterCache(api)
	gate := NewGuildGate(cache, api)

	/* 缓存未命中 + 实时查询失败 → 错误向上传播，绝不放行 */
	decision, err := gate.Authorize(context.Background(), "A")
	if !errors.Is(err, ErrGuildUnavailable) {
		t.Fatalf("期望 ErrGuildUnavailable, 实际 %v", err)
	}
	if decision != nil {
		t.Error("传输错误时不应产生判定结果")
	}
}

/*
TestGuildGate_RateLimited 测试被限流时同样关闭失败
*/
func TestGuildGate_RateLimited(t *testing.T) {
	api := &fakeGuildAPI{checkErr: ErrGuildRateLimited}
	gate := NewGuildGate(NewGuildRosterCache(api), api)

	_, err := gate.Authorize(context.Background(), "A")
	if !errors.Is(err, ErrGuildRateLimited) {
		t.Fatalf("期望 ErrGuildRateLimited, 实际 %v", err)
	}
}

/*
TestGuildGate_EmptyIdentity 测试空身份直接拒绝
*/
func TestGuildGate_EmptyIdentity(t *testing.T) {
	api := &fakeGuildAPI{}
	api.setRoster("A")
	gate := NewGuildGate(NewGuildRosterCache(api), api)

	decision, err := gate.Authorize(context.Background(), "")
	if err != nil {
		t.Fatalf("Authorize 失败: %v", err)
	}
	if decision.Allowed {
		t.Error("未绑定外部身份应拒绝")
	}

	/* 空身份不应消耗慢路径配额 */
	api.mu.Lock()
	calls := api.checkCalls
	api.mu.Unlock()
	if calls != 0 {
		t.Errorf("空身份不应调用公会 API, 实际调用 %d 次", calls)
	}
}
