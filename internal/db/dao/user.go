package dao

import (
	"time"

	"github.com/Zuntie/worklenz/internal/db/models"

	"gorm.io/gorm"
)

/* ==================== 用户 CRUD ==================== */

/*
GetUser 根据ID获取用户
*/
func (d *DAO) GetUser(id string) (*models.User, error) {
	var user models.User
	if err := d.DB.First(&user, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

/*
GetUserByUsername 根据用户名获取用户
*/
func (d *DAO) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	if err := d.DB.Where("username = ?", username).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

/*
GetUserByEmail 根据邮箱获取用户
*/
func (d *DAO) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := d.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

/*
GetUserByDiscordID 根据 Discord 用户 ID 获取用户
功能：OAuth 回调时用外部身份定位本地账号
*/
func (d *DAO) GetUserByDiscordID(discordID string) (*models.User, error) {
	var user models.User
	if err := d.DB.Where("discord_id = ?", discordID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

/*
CreateUser 创建用户
*/
func (d *DAO) CreateUser(user *models.User) error {
	return d.DB.Create(user).Error
}

/*
UpdateUser 更新用户
*/
func (d *DAO) UpdateUser(user *models.User) error {
	return d.DB.Save(user).Error
}

/*
UpdateUserLastLogin 更新最后登录时间
*/
func (d *DAO) UpdateUserLastLogin(id string) error {
	return d.DB.Model(&models.User{}).Where("id = ?", id).Update("last_login", time.Now()).Error
}

/*
ListUsers 列出用户（分页）
*/
func (d *DAO) ListUsers(page, pageSize int) ([]models.User, int64, error) {
	var users []models.User
	var total int64

	if err := d.DB.Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	pageSize, offset := SanitizePagination(pageSize, (page-1)*pageSize, 100)
	err := d.DB.Order("created_at DESC").Limit(pageSize).Offset(offset).Find(&users).Error
	return users, total, err
}

/*
CountUsers 统计用户总数
功能：供首次启动的管理员初始化判断数据库是否为空
*/
func (d *DAO) CountUsers() (int64, error) {
	var count int64
	err := d.DB.Model(&models.User{}).Count(&count).Error
	return count, err
}
