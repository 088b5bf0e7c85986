package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

/*
fakeGuildAPI 公会 API 假实现
功能：内存名册 + 可注入错误 + 调用计数，
fetchGate 非 nil 时 FetchRoster 阻塞到通道关闭，用于并发测试
*/
type fakeGuildAPI struct {
	mu         sync.Mutex
	roster     map[string]struct{}
	fetchErr   error
	checkErr   error
	fetchCalls int
	checkCalls int
	fetchGate  chan struct{}
	unset      bool /* true 模拟公会 ID 未配置 */
}

func (f *fakeGuildAPI) Configured() bool {
	return !f.unset
}

func (f *fakeGuildAPI) FetchRoster(ctx context.Context) (map[string]struct{}, error) {
	f.mu.Lock()
	f.fetchCalls++
	gate := f.fetchGate
	err := f.fetchErr
	snapshot := make(map[string]struct{}, len(f.roster))
	for id := range f.roster {
		snapshot[id] = struct{}{}
	}
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (f *fakeGuildAPI) CheckMember(ctx context.Context, discordID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkCalls++
	if f.checkErr != nil {
		return false, f.checkErr
	}
	_, ok := f.roster[discordID]
	return ok, nil
}

/* setRoster 替换假名册 */
func (f *fakeGuildAPI) setRoster(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roster = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		f.roster[id] = struct{}{}
	}
}

/* fetchCount 读取名册拉取计数 */
func (f *fakeGuildAPI) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

/*
TestGuildRosterCache_FastPath 测试刷新后的快路径查询
*/
func TestGuildRosterCache_FastPath(t *testing.T) {
	api := &fakeGuildAPI{}
	api.setRoster("A", "B")
	cache := NewGuildRosterCache(api)

	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh 失败: %v", err)
	}

	if !cache.IsMember("A") {
		t.Error("A 在名册中，IsMember 应返回 true")
	}
	if !cache.IsMember("B") {
		t.Error("B 在名册中，IsMember 应返回 true")
	}
	if cache.IsMember("C") {
		t.Error("C 不在名册中，IsMember 应返回 false")
	}
	if cache.MemberCount() != 2 {
		t.Errorf("期望名册大小 2, 实际 %d", cache.MemberCount())
	}
}

/*
TestGuildRosterCache_NeverSynced 测试从未同步的空缓存
*/
func TestGuildRosterCache_NeverSynced(t *testing.T) {
	cache := NewGuildRosterCache(&fakeGuildAPI{})

	/* 未同步时任何身份都视为非成员 */
	if cache.IsMember("A") {
		t.Error("从未同步的缓存 IsMember 应返回 false")
	}
	if cache.MemberCount() != 0 {
		t.Errorf("从未同步的缓存大小应为 0, 实际 %d", cache.MemberCount())
	}
	if _, synced := cache.LastSyncTime(); synced {
		t.Error("从未同步的缓存 LastSyncTime 应返回 false")
	}
}

/*
TestGuildRosterCache_IdempotentRefresh 测试上游名册不变时刷新幂等
*/
func TestGuildRosterCache_IdempotentRefresh(t *testing.T) {
	api := &fakeGuildAPI{}
	api.setRoster("A", "B")
	cache := NewGuildRosterCache(api)

	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("首次 Refresh 失败: %v", err)
	}
	first, _ := cache.LastSyncTime()

	time.Sleep(5 * time.Millisecond)

	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("二次 Refresh 失败: %v", err)
	}
	second, _ := cache.LastSyncTime()

	/* 名册不变，时间戳前移 */
	if !cache.IsMember("A") || !cache.IsMember("B") || cache.MemberCount() != 2 {
		t.Error("上游名册未变，刷新后成员集合不应变化")
	}
	if !second.After(first) {
		t.Errorf("二次刷新的 lastSyncedAt 应晚于首次: first=%v second=%v", first, second)
	}
}

/*
TestGuildRosterCache_FailStale 测试刷新失败保留旧快照
*/
func TestGuildRosterCache_FailStale(t *testing.T) {
	api := &fakeGuildAPI{}
	api.setRoster("A")
	cache := NewGuildRosterCache(api)

	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh 失败: %v", err)
	}
	syncedBefore, _ := cache.LastSyncTime()

	/* 注入权威不可用错误 */
	api.mu.Lock()
	api.fetchErr = ErrGuildUnavailable
	api.mu.Unlock()

	err := cache.Refresh(context.Background())
	if !errors.Is(err, ErrGuildUnavailable) {
		t.Fatalf("期望 ErrGuildUnavailable, 实际 %v", err)
	}

	/* 失败前后的查询结果必须一致 */
	if !cache.IsMember("A") {
		t.Error("刷新失败后旧快照应原样保留")
	}
	if cache.IsMember("B") {
		t.Error("刷新失败不应引入新成员")
	}
	syncedAfter, _ := cache.LastSyncTime()
	if !syncedAfter.Equal(syncedBefore) {
		t.Error("刷新失败不应更新 lastSyncedAt")
	}
}

/*
TestGuildRosterCache_SingleFlight 测试并发刷新单飞
*/
func TestGuildRosterCache_SingleFlight(t *testing.T) {
	api := &fakeGuildAPI{fetchGate: make(chan struct{})}
	api.setRoster("A")
	cache := NewGuildRosterCache(api)

	/* 第一个刷新阻塞在假 API 上 */
	done := make(chan error, 1)
	go func() {
		done <- cache.Refresh(context.Background())
	}()

	/* 等待第一个刷新真正进入执行 */
	deadline := time.After(2 * time.Second)
	for !cache.RefreshInFlight() {
		select {
		case <-deadline:
			t.Fatal("等待刷新进入执行超时")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	/* 第二个刷新应立即返回 ErrRefreshInProgress，不等待、无副作用 */
	if err := cache.Refresh(context.Background()); !errors.Is(err, ErrRefreshInProgress) {
		t.Fatalf("并发刷新期望 ErrRefreshInProgress, 实际 %v", err)
	}

	/* 放行第一个刷新 */
	close(api.fetchGate)
	if err := <-done; err != nil {
		t.Fatalf("首个 Refresh 失败: %v", err)
	}

	if api.fetchCount() != 1 {
		t.Errorf("两次并发刷新应只产生一次名册拉取, 实际 %d", api.fetchCount())
	}
	if !cache.IsMember("A") {
		t.Error("刷新完成后名册应已生效")
	}
}

/*
TestGuildRosterCache_ConcurrentReads 测试并发读与刷新交错
功能：N 个读 goroutine 与一次整册替换并发执行，
配合 -race 验证无数据竞争，刷新完成后新快照完整可见
*/
func TestGuildRosterCache_ConcurrentReads(t *testing.T) {
	api := &fakeGuildAPI{}
	oldGen := make([]string, 50)
	newGen := make([]string, 50)
	for i := range oldGen {
		oldGen[i] = fmt.Sprintf("old-%03d", i)
		newGen[i] = fmt.Sprintf("new-%03d", i)
	}
	api.setRoster(oldGen...)

	cache := NewGuildRosterCache(api)
	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("预热 Refresh 失败: %v", err)
	}

	/* 切换上游名册到新一代 */
	api.setRoster(newGen...)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				for _, id := range oldGen {
					cache.IsMember(id)
				}
				for _, id := range newGen {
					cache.IsMember(id)
				}
			}
		}()
	}

	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("并发下 Refresh 失败: %v", err)
	}
	close(stop)
	wg.Wait()

	/* 刷新完成后必须看到完整的新快照 */
	for _, id := range newGen {
		if !cache.IsMember(id) {
			t.Fatalf("刷新后新成员 %s 应在名册中", id)
		}
	}
	for _, id := range oldGen {
		if cache.IsMember(id) {
			t.Fatalf("刷新后旧成员 %s 不应残留", id)
		}
	}
}

/*
TestGuildRosterCache_Reset 测试显式清空
*/
func TestGuildRosterCache_Reset(t *testing.T) {
	api := &fakeGuildAPI{}
	api.setRoster("A")
	cache := NewGuildRosterCache(api)

	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh 失败: %v", err)
	}

	cache.Reset()
	if cache.IsMember("A") {
		t.Error("Reset 后名册应为空")
	}
	if _, synced := cache.LastSyncTime(); synced {
		t.Error("Reset 后应回到从未同步状态")
	}
}
