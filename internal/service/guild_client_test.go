package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Zuntie/worklenz/internal/config"
)

/* newTestGuildClient 创建指向测试服务器的公会客户端 */
func newTestGuildClient(t *testing.T, handler http.Handler) (*GuildClient, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewGuildClient(&config.GuildConfig{
		GuildID:    "guild-1",
		BotToken:   "test-token",
		APIBaseURL: srv.URL,
	})
	return client, srv
}

/* memberListJSON 构造一页成员响应 */
func memberListJSON(ids ...string) []byte {
	type member struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	members := make([]member, 0, len(ids))
	for _, id := range ids {
		var m member
		m.User.ID = id
		members = append(members, m)
	}
	data, _ := json.Marshal(members)
	return data
}

/*
TestGuildClient_FetchRoster 测试名册拉取与认证头
*/
func TestGuildClient_FetchRoster(t *testing.T) {
	client, _ := newTestGuildClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bot test-token" {
			t.Errorf("认证头不匹配: %q", got)
		}
		w.Write(memberListJSON("100", "200", "300"))
	}))

	roster, err := client.FetchRoster(context.Background())
	if err != nil {
		t.Fatalf("FetchRoster 失败: %v", err)
	}
	if len(roster) != 3 {
		t.Fatalf("期望 3 个成员, 实际 %d", len(roster))
	}
	for _, id := range []string{"100", "200", "300"} {
		if _, ok := roster[id]; !ok {
			t.Errorf("名册缺少成员 %s", id)
		}
	}
}

/*
TestGuildClient_FetchRosterPaginated 测试分页游标推进
*/
func TestGuildClient_FetchRosterPaginated(t *testing.T) {
	/* 第一页整页（游标推进），第二页不足一整页（终止） */
	firstPage := make([]string, rosterPageSize)
	for i := range firstPage {
		firstPage[i] = fmt.Sprintf("%06d", i+1)
	}

	client, _ := newTestGuildClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		after := r.URL.Query().Get("after")
		if after == "" {
			w.Write(memberListJSON(firstPage...))
			return
		}
		if after != firstPage[len(firstPage)-1] {
			t.Errorf("分页游标不匹配: %q", after)
		}
		w.Write(memberListJSON("tail-1", "tail-2"))
	}))

	roster, err := client.FetchRoster(context.Background())
	if err != nil {
		t.Fatalf("FetchRoster 失败: %v", err)
	}
	if len(roster) != rosterPageSize+2 {
		t.Fatalf("期望 %d 个成员, 实际 %d", rosterPageSize+2, len(roster))
	}
	if _, ok := roster["tail-2"]; !ok {
		t.Error("第二页成员应在名册中")
	}
}

/*
TestGuildClient_FetchRosterStuckCursor 整页成员都没有可用 ID 时游标无法推进，
拉取必须报错终止而不是反复请求同一页
*/
func TestGuildClient_FetchRosterStuckCursor(t *testing.T) {
	emptyIDs := make([]string, rosterPageSize)
	requests := 0

	client, _ := newTestGuildClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write(memberListJSON(emptyIDs...))
	}))

	roster, err := client.FetchRoster(context.Background())
	if !errors.Is(err, ErrGuildUnavailable) {
		t.Errorf("游标无法推进期望 ErrGuildUnavailable, 实际 %v", err)
	}
	if roster != nil {
		t.Error("拉取失败不应返回部分名册")
	}
	if requests > 1 {
		t.Errorf("游标未推进后不应重试, 实际请求 %d 次", requests)
	}
}

/*
TestGuildClient_FetchRosterErrors 测试名册拉取的错误分类
*/
func TestGuildClient_FetchRosterErrors(t *testing.T) {
	status := http.StatusTooManyRequests
	client, _ := newTestGuildClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	/* 429 → 限流 */
	if _, err := client.FetchRoster(context.Background()); !errors.Is(err, ErrGuildRateLimited) {
		t.Errorf("429 期望 ErrGuildRateLimited, 实际 %v", err)
	}

	/* 5xx → 权威不可用，不返回部分名册 */
	status = http.StatusBadGateway
	roster, err := client.FetchRoster(context.Background())
	if !errors.Is(err, ErrGuildUnavailable) {
		t.Errorf("502 期望 ErrGuildUnavailable, 实际 %v", err)
	}
	if roster != nil {
		t.Error("拉取失败不应返回部分名册")
	}
}

/*
TestGuildClient_CheckMember 测试单用户成员查询的状态码语义
*/
func TestGuildClient_CheckMember(t *testing.T) {
	client, _ := newTestGuildClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/guilds/guild-1/members/in":
			w.Write([]byte(`{"user":{"id":"in"}}`))
		case "/guilds/guild-1/members/out":
			w.WriteHeader(http.StatusNotFound)
		case "/guilds/guild-1/members/limited":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))

	/* 200 → 成员 */
	ok, err := client.CheckMember(context.Background(), "in")
	if err != nil || !ok {
		t.Errorf("200 期望成员, 实际 ok=%v err=%v", ok, err)
	}

	/* 404 → 非成员，不是错误 */
	ok, err = client.CheckMember(context.Background(), "out")
	if err != nil || ok {
		t.Errorf("404 期望非成员且无错误, 实际 ok=%v err=%v", ok, err)
	}

	/* 429 → 限流错误 */
	if _, err = client.CheckMember(context.Background(), "limited"); !errors.Is(err, ErrGuildRateLimited) {
		t.Errorf("429 期望 ErrGuildRateLimited, 实际 %v", err)
	}

	/* 5xx → 权威不可用 */
	if _, err = client.CheckMember(context.Background(), "broken"); !errors.Is(err, ErrGuildUnavailable) {
		t.Errorf("500 期望 ErrGuildUnavailable, 实际 %v", err)
	}
}

/*
TestGuildClient_NotConfigured 测试未配置公会 ID 的行为
*/
func TestGuildClient_NotConfigured(t *testing.T) {
	client := NewGuildClient(&config.GuildConfig{})

	if client.Configured() {
		t.Error("空公会 ID 应视为未配置")
	}
	if _, err := client.FetchRoster(context.Background()); !errors.Is(err, ErrGuildNotConfigured) {
		t.Errorf("期望 ErrGuildNotConfigured, 实际 %v", err)
	}
	if _, err := client.CheckMember(context.Background(), "A"); !errors.Is(err, ErrGuildNotConfigured) {
		t.Errorf("期望 ErrGuildNotConfigured, 实际 %v", err)
	}
}
