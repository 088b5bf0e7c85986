package db

import (
	"fmt"
	"log"
	"time"

	"github.com/Zuntie/worklenz/internal/db/database"

	"gorm.io/gorm"
)

/*
Manager 数据库管理器
功能：统一管理 GORM 数据库连接和可选的 Redis 缓存
*/
type Manager struct {
	GormDB *gorm.DB              /* GORM 统一数据库 */
	Redis  *database.RedisClient /* Redis 缓存（可选） */
}

/*
Config 数据库配置
功能：支持多数据库类型（SQLite/MySQL/PostgreSQL）+ 可选 Redis 缓存
*/
type Config struct {
	/* 数据库类型：sqlite, mysql, postgres */
	DBType string

	/* SQLite 配置 */
	SQLitePath string

	/* MySQL/PostgreSQL 配置 */
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBCharset  string

	/* 连接池 */
	MaxOpenConns int
	MaxIdleConns int

	/* 日志级别 */
	DBLogLevel string

	/* Redis 配置 */
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

/*
NewManager 创建数据库管理器
功能：初始化 GORM 数据库 + 可选 Redis 缓存，
自动执行 AutoMigrate 创建/更新表结构
*/
func NewManager(cfg *Config) (*Manager, error) {
	manager := &Manager{}

	/* 1. 初始化 GORM 数据库 */
	dbType := cfg.DBType
	if dbType == "" {
		dbType = "sqlite"
	}

	gormCfg := &database.Config{
		Type:         database.DBType(dbType),
		Host:         cfg.DBHost,
		Port:         cfg.DBPort,
		User:         cfg.DBUser,
		Password:     cfg.DBPassword,
		DBName:       cfg.DBName,
		SSLMode:      cfg.DBSSLMode,
		Charset:      cfg.DBCharset,
		SQLitePath:   cfg.SQLitePath,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
		LogLevel:     cfg.DBLogLevel,
	}

	/* 设置连接池默认值 */
	if gormCfg.MaxOpenConns == 0 {
		gormCfg.MaxOpenConns = 25
	}
	if gormCfg.MaxIdleConns == 0 {
		gormCfg.MaxIdleConns = 5
	}
	if gormCfg.ConnMaxLifetime == 0 {
		gormCfg.ConnMaxLifetime = time.Hour
	}
	if gormCfg.LogLevel == "" {
		gormCfg.LogLevel = "warn"
	}

	gormDB, err := database.NewDatabase(gormCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化 GORM 数据库失败: %w", err)
	}
	manager.GormDB = gormDB

	/* 自动迁移表结构 */
	if err := database.AutoMigrate(gormDB); err != nil {
		return nil, fmt.Errorf("数据库自动迁移失败: %w", err)
	}

	/* 2. 初始化 Redis 缓存（可选） */
	if cfg.RedisAddr != "" {
		redisCfg := database.DefaultRedisConfig()
		redisCfg.Addr = cfg.RedisAddr
		redisCfg.Password = cfg.RedisPassword
		redisCfg.DB = cfg.RedisDB

		redisClient, err := database.NewRedisClient(redisCfg)
		if err != nil {
			log.Printf("⚠ Redis 连接失败: %v（继续运行，无缓存）", err)
		} else {
			manager.Redis = redisClient
		}
	}

	return manager, nil
}

/*
Close 关闭所有数据库连接
*/
func (m *Manager) Close() error {
	var errs []error

	/* 关闭 GORM 数据库 */
	if m.GormDB != nil {
		if sqlDB, err := m.GormDB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("GORM 关闭失败: %w", err))
			}
		}
	}

	/* 关闭 Redis */
	if m.Redis != nil {
		if err := m.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("Redis 关闭失败: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("关闭数据库错误: %v", errs)
	}

	return nil
}

/*
HasCache 检查是否有 Redis 缓存可用
*/
func (m *Manager) HasCache() bool {
	return m.Redis != nil
}

/*
GetGormDB 获取 GORM 数据库实例
*/
func (m *Manager) GetGormDB() *gorm.DB {
	return m.GormDB
}
