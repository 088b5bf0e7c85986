package service

import (
	"strings"
	"testing"

	"github.com/Zuntie/worklenz/internal/db/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

/*
setupUserService 创建基于内存 SQLite 的用户服务
*/
func setupUserService(t *testing.T) *GormUserService {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("打开内存数据库失败: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Team{}, &models.TeamMember{}); err != nil {
		t.Fatalf("迁移表结构失败: %v", err)
	}
	return NewGormUserService(db)
}

/* TestRegisterFirstUserIsAdmin 首个注册用户自动成为管理员，并获得个人团队 */
func TestRegisterFirstUserIsAdmin(t *testing.T) {
	svc := setupUserService(t)

	result, err := svc.Register(&GormRegisterRequest{
		Username: "alice",
		Password: "Passw0rd123",
		Email:    "alice@example.com",
	})
	if err != nil {
		t.Fatalf("注册失败: %v", err)
	}
	if !result.IsFirstUser {
		t.Error("首个用户应标记为 IsFirstUser")
	}
	if result.User.Role != models.RoleAdmin {
		t.Errorf("首个用户角色应为 admin，实际 %s", result.User.Role)
	}

	/* 个人团队和 owner 关系应在同一事务中建立 */
	var member models.TeamMember
	if err := svc.db.Where("user_id = ?", result.User.ID).First(&member).Error; err != nil {
		t.Fatalf("查询团队成员关系失败: %v", err)
	}
	if member.Role != models.TeamRoleOwner {
		t.Errorf("注册用户在个人团队中的角色应为 owner，实际 %s", member.Role)
	}

	/* 第二个用户为普通用户 */
	result2, err := svc.Register(&GormRegisterRequest{
		Username: "bob",
		Password: "Passw0rd123",
		Email:    "bob@example.com",
	})
	if err != nil {
		t.Fatalf("注册第二个用户失败: %v", err)
	}
	if result2.IsFirstUser || result2.User.Role != models.RoleUser {
		t.Error("第二个用户不应是管理员")
	}
}

/* TestRegisterRejectsDuplicates 用户名和邮箱不可重复 */
func TestRegisterRejectsDuplicates(t *testing.T) {
	svc := setupUserService(t)

	if _, err := svc.Register(&GormRegisterRequest{
		Username: "alice", Password: "Passw0rd123", Email: "alice@example.com",
	}); err != nil {
		t.Fatalf("首次注册失败: %v", err)
	}

	if _, err := svc.Register(&GormRegisterRequest{
		Username: "alice", Password: "Passw0rd123", Email: "other@example.com",
	}); err == nil {
		t.Error("重复用户名应注册失败")
	}
	if _, err := svc.Register(&GormRegisterRequest{
		Username: "alice2", Password: "Passw0rd123", Email: "alice@example.com",
	}); err == nil {
		t.Error("重复邮箱应注册失败")
	}
}

/* TestRegisterOAuthAccountWithoutPassword OAuth 账号允许空密码注册 */
func TestRegisterOAuthAccountWithoutPassword(t *testing.T) {
	svc := setupUserService(t)

	result, err := svc.Register(&GormRegisterRequest{
		Username:  "discord-user",
		Password:  "",
		Email:     "1001@discord.local",
		DiscordID: "1001",
	})
	if err != nil {
		t.Fatalf("OAuth 注册失败: %v", err)
	}
	if result.User.Password != "" {
		t.Error("OAuth 账号不应有本地密码哈希")
	}
	if result.User.DiscordID != "1001" {
		t.Errorf("DiscordID 未保存，实际 %q", result.User.DiscordID)
	}

	/* 无密码账号不能通过密码登录 */
	if _, err := svc.Authenticate("discord-user", ""); err == nil {
		t.Error("空密码不应通过验证")
	}
}

/* TestAuthenticate 登录验证：正确密码通过，错误密码和禁用账号拒绝 */
func TestAuthenticate(t *testing.T) {
	svc := setupUserService(t)

	result, err := svc.Register(&GormRegisterRequest{
		Username: "alice", Password: "Passw0rd123", Email: "alice@example.com",
	})
	if err != nil {
		t.Fatalf("注册失败: %v", err)
	}

	user, err := svc.Authenticate("alice", "Passw0rd123")
	if err != nil {
		t.Fatalf("正确密码验证失败: %v", err)
	}
	if user.ID != result.User.ID {
		t.Error("返回的用户不匹配")
	}

	if _, err := svc.Authenticate("alice", "wrong-password"); err == nil {
		t.Error("错误密码应验证失败")
	}
	if _, err := svc.Authenticate("nobody", "Passw0rd123"); err == nil {
		t.Error("不存在的用户应验证失败")
	}

	/* 错误密码与不存在用户返回同一错误，防止用户名枚举 */
	_, errWrongPwd := svc.Authenticate("alice", "wrong-password")
	_, errNoUser := svc.Authenticate("nobody", "Passw0rd123")
	if errWrongPwd.Error() != errNoUser.Error() {
		t.Error("错误密码与不存在用户应返回相同错误信息")
	}

	/* 禁用账号拒绝登录 */
	if err := svc.db.Model(result.User).Update("enabled", false).Error; err != nil {
		t.Fatalf("禁用账号失败: %v", err)
	}
	if _, err := svc.Authenticate("alice", "Passw0rd123"); err == nil {
		t.Error("禁用账号应验证失败")
	}
}

/* TestValidatePasswordStrength 密码强度规则 */
func TestValidatePasswordStrength(t *testing.T) {
	valid := []string{"Passw0rd", "Abcdef12", "X9yzabcd!"}
	for _, p := range valid {
		if err := ValidatePasswordStrength(p); err != nil {
			t.Errorf("密码 %q 应通过校验: %v", p, err)
		}
	}

	invalid := []string{
		"Ab1",                     /* 太短 */
		"alllowercase1",           /* 无大写 */
		"ALLUPPERCASE1",           /* 无小写 */
		"NoDigitsHere",            /* 无数字 */
		strings.Repeat("Aa1", 30), /* 超过72位 */
	}
	for _, p := range invalid {
		if err := ValidatePasswordStrength(p); err == nil {
			t.Errorf("密码 %q 应被拒绝", p)
		}
	}
}

/* TestValidateUsername 用户名格式与保留名 */
func TestValidateUsername(t *testing.T) {
	for _, u := range []string{"alice", "user_01", "team-lead"} {
		if err := ValidateUsername(u); err != nil {
			t.Errorf("用户名 %q 应通过校验: %v", u, err)
		}
	}
	for _, u := range []string{"ab", "has space", "admin", "ROOT", "用户名"} {
		if err := ValidateUsername(u); err == nil {
			t.Errorf("用户名 %q 应被拒绝", u)
		}
	}
}
