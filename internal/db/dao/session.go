package dao

import (
	"time"

	"github.com/Zuntie/worklenz/internal/db/models"

	"gorm.io/gorm"
)

/* ==================== 会话管理 ==================== */

/*
CreateSession 创建登录会话
*/
func (d *DAO) CreateSession(session *models.Session) error {
	return d.DB.Create(session).Error
}

/*
GetSession 根据ID获取会话
功能：认证中间件每次请求调用，会话行不存在即视为令牌已失效
*/
func (d *DAO) GetSession(id string) (*models.Session, error) {
	var session models.Session
	if err := d.DB.First(&session, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

/*
DeleteSession 根据ID删除会话（硬性失效）
功能：删除后携带该会话 jti 的令牌立即失效。
删除不存在的会话不报错（幂等，清扫任务依赖此语义）。
*/
func (d *DAO) DeleteSession(id string) error {
	return d.DB.Unscoped().Delete(&models.Session{}, "id = ?", id).Error
}

/*
DeleteUserSessions 删除指定用户的全部会话
功能：管理员禁用账号或用户修改密码时强制下线
*/
func (d *DAO) DeleteUserSessions(userID string) (int64, error) {
	result := d.DB.Unscoped().Where("user_id = ?", userID).Delete(&models.Session{})
	return result.RowsAffected, result.Error
}

/*
DeleteUserSessionsExcept 删除用户除指定会话外的全部会话
功能：修改密码后强制其他设备下线，当前登录不中断
*/
func (d *DAO) DeleteUserSessionsExcept(userID, keepID string) (int64, error) {
	result := d.DB.Unscoped().Where("user_id = ? AND id <> ?", userID, keepID).Delete(&models.Session{})
	return result.RowsAffected, result.Error
}

/*
ListUserSessions 列出用户的全部会话
*/
func (d *DAO) ListUserSessions(userID string) ([]models.Session, error) {
	var sessions []models.Session
	err := d.DB.Where("user_id = ?", userID).Find(&sessions).Error
	return sessions, err
}

/*
DeleteExpiredSessions 批量删除已过期会话
功能：清理服务定时调用，返回删除数量
*/
func (d *DAO) DeleteExpiredSessions() (int64, error) {
	result := d.DB.Unscoped().Where("expires_at <= ?", time.Now()).Delete(&models.Session{})
	return result.RowsAffected, result.Error
}

/*
TouchSession 更新会话最后活跃时间
*/
func (d *DAO) TouchSession(id string) error {
	return d.DB.Model(&models.Session{}).Where("id = ?", id).Update("last_seen", time.Now()).Error
}

/*
ListActiveGuildBindings 列出带外部身份的活跃会话投影
功能：清扫任务专用。只取会话 ID 和 Discord ID 两个字段，
过滤掉已过期和未绑定外部身份的会话，
畸形行（空身份）在 SQL 层排除，不会让整轮清扫失败。
*/
func (d *DAO) ListActiveGuildBindings() ([]models.SessionGuildBinding, error) {
	var bindings []models.SessionGuildBinding
	err := d.DB.Model(&models.Session{}).
		Select("id", "discord_id").
		Where("discord_id <> '' AND expires_at > ?", time.Now()).
		Find(&bindings).Error
	return bindings, err
}

/*
CountActiveSessions 统计未过期会话数
*/
func (d *DAO) CountActiveSessions() (int64, error) {
	var count int64
	err := d.DB.Model(&models.Session{}).Where("expires_at > ?", time.Now()).Count(&count).Error
	return count, err
}
