package service

import (
	"time"

	"github.com/Zuntie/worklenz/internal/db/dao"
	"github.com/Zuntie/worklenz/internal/pkg/logger"

	"go.uber.org/zap"
)

/*
CleanupService 清理服务（定时任务）
功能：定期删除已过期的登录会话，保持会话表精简。
过期会话的删除与公会清扫无关：前者按时间失效，后者按成员资格失效。
*/
type CleanupService struct {
	dao      *dao.DAO
	stopChan chan struct{}
}

/*
NewCleanupService 创建清理服务
*/
func NewCleanupService(d *dao.DAO) *CleanupService {
	return &CleanupService{
		dao:      d,
		stopChan: make(chan struct{}),
	}
}

// Start 启动清理服务（阻塞，应在独立 goroutine 中调用）
func (s *CleanupService) Start() {
	s.runCleanup()

	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runCleanup()
		case <-s.stopChan:
			return
		}
	}
}

// Stop 停止清理服务
func (s *CleanupService) Stop() {
	close(s.stopChan)
}

// runCleanup 执行清理
func (s *CleanupService) runCleanup() {
	logger.Debug("执行定时清理任务")

	count, err := s.dao.DeleteExpiredSessions()
	if err != nil {
		logger.Error("删除过期会话失败", zap.Error(err))
		return
	}

	if count > 0 {
		logger.Info("已删除过期会话", zap.Int64("count", count))
	}
}
