package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Zuntie/worklenz/internal/db/dao"
	"github.com/Zuntie/worklenz/internal/db/models"
)

/* setupSweepDAO 创建内存 SQLite 测试数据库 */
func setupSweepDAO(t *testing.T) *dao.DAO {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Session{}); err != nil {
		t.Fatalf("迁移测试数据库失败: %v", err)
	}
	return dao.New(db)
}

/* mustCreateSession 创建绑定外部身份的测试会话 */
func mustCreateSession(t *testing.T, d *dao.DAO, id, userID, discordID string, expiresAt time.Time) {
	t.Helper()

	session := &models.Session{
		UserID:    userID,
		DiscordID: discordID,
		ExpiresAt: expiresAt,
	}
	session.ID = id
	if err := d.CreateSession(session); err != nil {
		t.Fatalf("创建测试会话失败: %v", err)
	}
}

/*
fakeKicker 记录被踢出会话的假实现
*/
type fakeKicker struct {
	mu     sync.Mutex
	kicked []string
}

func (f *fakeKicker) KickSession(sessionID string, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicked = append(f.kicked, sessionID)
}

func (f *fakeKicker) kickedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.kicked...)
}

/*
TestGuildSweepService_Reconciliation 测试清扫使失去资格的会话失效
功能：A 仍是成员、C 已退出公会，一轮清扫后
C 的会话被删除并踢出在线连接，A 的会话原样保留
*/
func TestGuildSweepService_Reconciliation(t *testing.T) {
	d := setupSweepDAO(t)
	api := &fakeGuildAPI{}
	api.setRoster("A")
	cache := NewGuildRosterCache(api)

	future := time.Now().Add(time.Hour)
	mustCreateSession(t, d, "s1", "u1", "A", future)
	mustCreateSession(t, d, "s2", "u2", "C", future)

	kicker := &fakeKicker{}
	svc := NewGuildSweepService(cache, d, time.Minute)
	svc.SetKicker(kicker)

	svc.RunSweep()

	/* C 的会话已硬性失效 */
	s2, err := d.GetSession("s2")
	if err != nil {
		t.Fatalf("查询会话失败: %v", err)
	}
	if s2 != nil {
		t.Error("失去成员资格的会话应被删除")
	}

	/* A 的会话原样保留 */
	s1, err := d.GetSession("s1")
	if err != nil {
		t.Fatalf("查询会话失败: %v", err)
	}
	if s1 == nil {
		t.Error("仍是成员的会话不应被删除")
	}

	/* 被删除会话的在线连接已踢出 */
	kicked := kicker.kickedIDs()
	if len(kicked) != 1 || kicked[0] != "s2" {
		t.Errorf("期望踢出 [s2], 实际 %v", kicked)
	}
}

/*
TestGuildSweepService_NeverSyncedSkips 测试名册从未同步时跳过清扫
功能：冷启动且权威不可用时，绝不能把全部用户清出
*/
func TestGuildSweepService_NeverSyncedSkips(t *testing.T) {
	d := setupSweepDAO(t)
	api := &fakeGuildAPI{fetchErr: ErrGuildUnavailable}
	cache := NewGuildRosterCache(api)

	future := time.Now().Add(time.Hour)
	mustCreateSession(t, d, "s1", "u1", "A", future)
	mustCreateSession(t, d, "s2", "u2", "C", future)

	svc := NewGuildSweepService(cache, d, time.Minute)
	svc.RunSweep()

	count, err := d.CountActiveSessions()
	if err != nil {
		t.Fatalf("统计会话失败: %v", err)
	}
	if count != 2 {
		t.Errorf("名册从未同步时不应删除任何会话, 剩余 %d", count)
	}
}

/*
TestGuildSweepService_StaleSnapshotSweeps 测试刷新失败时用旧快照继续清扫
*/
func TestGuildSweepService_StaleSnapshotSweeps(t *testing.T) {
	d := setupSweepDAO(t)
	api := &fakeGuildAPI{}
	api.setRoster("A")
	cache := NewGuildRosterCache(api)

	/* 先建立一份成功快照，再让权威不可用 */
	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("预热 Refresh 失败: %v", err)
	}
	api.mu.Lock()
	api.fetchErr = ErrGuildUnavailable
	api.mu.Unlock()

	future := time.Now().Add(time.Hour)
	mustCreateSession(t, d, "s1", "u1", "A", future)
	mustCreateSession(t, d, "s2", "u2", "C", future)

	svc := NewGuildSweepService(cache, d, time.Minute)
	svc.RunSweep()

	s2, err := d.GetSession("s2")
	if err != nil {
		t.Fatalf("查询会话失败: %v", err)
	}
	if s2 != nil {
		t.Error("旧快照可用时本轮应正常清扫")
	}
	s1, err := d.GetSession("s1")
	if err != nil {
		t.Fatalf("查询会话失败: %v", err)
	}
	if s1 == nil {
		t.Error("旧快照中的成员不应被清扫")
	}
}

/*
TestGuildSweepService_IgnoresExpiredAndUnbound 测试清扫范围边界
功能：已过期会话交给清理服务处理，未绑定外部身份的会话不参与对账
*/
func TestGuildSweepService_IgnoresExpiredAndUnbound(t *testing.T) {
	d := setupSweepDAO(t)
	api := &fakeGuildAPI{}
	api.setRoster("A")
	cache := NewGuildRosterCache(api)

	/* s1 已过期且非成员，s2 活跃但无外部身份 */
	mustCreateSession(t, d, "s1", "u1", "C", time.Now().Add(-time.Hour))
	mustCreateSession(t, d, "s2", "u2", "", time.Now().Add(time.Hour))

	svc := NewGuildSweepService(cache, d, time.Minute)
	svc.RunSweep()

	if s, _ := d.GetSession("s1"); s == nil {
		t.Error("已过期会话不在清扫范围内")
	}
	if s, _ := d.GetSession("s2"); s == nil {
		t.Error("未绑定外部身份的会话不在清扫范围内")
	}
}

/*
TestGuildSweepService_StartStop 测试启动与关停路径
*/
func TestGuildSweepService_StartStop(t *testing.T) {
	d := setupSweepDAO(t)
	api := &fakeGuildAPI{}
	api.setRoster("A")
	cache := NewGuildRosterCache(api)

	svc := NewGuildSweepService(cache, d, time.Hour)

	done := make(chan struct{})
	go func() {
		svc.Start()
		close(done)
	}()

	/* 启动即跑一轮，首份快照应已建立 */
	deadline := time.After(2 * time.Second)
	for {
		if _, synced := cache.LastSyncTime(); synced {
			break
		}
		select {
		case <-deadline:
			t.Fatal("等待首轮清扫建立快照超时")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	svc.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop 后 Start 未退出")
	}
}
