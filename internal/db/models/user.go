package models

import (
	"time"
)

/*
UserRole 用户角色枚举
功能：定义系统支持的用户角色类型
*/
type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

/*
User 用户模型
功能：存储用户基本信息、认证凭据和外部身份绑定。
DiscordID 是公会准入闸门和会话清扫使用的外部身份，
为空表示该账号未绑定 Discord（本地账号）。
*/
type User struct {
	BaseModel
	Username  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Email     string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"type:varchar(256)" json:"-"` /* bcrypt 哈希，纯 OAuth 账号为空 */
	Role      UserRole  `gorm:"type:varchar(16);default:'user';not null" json:"role"`
	Enabled   bool      `gorm:"default:true;not null" json:"enabled"`
	LastLogin time.Time `gorm:"" json:"last_login"`
	Avatar    string    `gorm:"type:varchar(512)" json:"avatar"`
	TimeZone  string    `gorm:"type:varchar(64)" json:"time_zone"`
	DiscordID string    `gorm:"type:varchar(32);index" json:"discord_id"` /* 外部身份：Discord 用户 ID */

	/* 关联 */
	Sessions    []Session    `gorm:"foreignKey:UserID" json:"sessions,omitempty"`
	TeamMembers []TeamMember `gorm:"foreignKey:UserID" json:"team_members,omitempty"`
}

func (User) TableName() string {
	return "users"
}

/*
Session 登录会话模型
功能：每次成功登录写入一行，JWT 令牌中携带会话 ID（jti）。
认证中间件要求会话行仍然存在，因此删除会话即硬性失效：
下一次携带该令牌的请求会被视为未认证。
DiscordID 是登录时刻外部身份的快照，供清扫任务做类型化投影查询，
避免反序列化整个用户对象。
*/
type Session struct {
	BaseModel
	UserID    string    `gorm:"type:varchar(36);index;not null" json:"user_id"`
	DiscordID string    `gorm:"type:varchar(32);index" json:"discord_id"` /* 外部身份快照，可为空 */
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	ClientIP  string    `gorm:"type:varchar(64)" json:"client_ip"`
	UserAgent string    `gorm:"type:varchar(256)" json:"user_agent"`
	LastSeen  time.Time `gorm:"" json:"last_seen"`
}

func (Session) TableName() string {
	return "sessions"
}

/*
SessionGuildBinding 清扫任务专用的会话投影
功能：只取清扫需要的两个字段（会话 ID、外部身份），
不加载完整会话行，畸形/缺失身份的行在查询层直接被过滤。
*/
type SessionGuildBinding struct {
	SessionID string `gorm:"column:id"`
	DiscordID string `gorm:"column:discord_id"`
}
