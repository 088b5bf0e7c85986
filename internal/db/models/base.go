package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/*
BaseModel 全部业务模型共用的嵌入结构
功能：UUID 字符串主键 + 创建/更新时间戳 + 软删除。
会话模型的 ID 同时充当 JWT 的 jti 声明，必须在创建前就位，
由 BeforeCreate 钩子保证。
*/
type BaseModel struct {
	ID        string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

/* BeforeCreate 创建前生成 UUID，调用方预先赋值时保留原 ID */
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
