package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Zuntie/worklenz/internal/api"
	"github.com/Zuntie/worklenz/internal/config"
	"github.com/Zuntie/worklenz/internal/db"
	"github.com/Zuntie/worklenz/internal/pkg/initializer"
	"github.com/Zuntie/worklenz/internal/pkg/logger"
	"github.com/Zuntie/worklenz/internal/server"
	"github.com/Zuntie/worklenz/internal/service"
	"github.com/Zuntie/worklenz/internal/types"
	"github.com/Zuntie/worklenz/internal/ws"

	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "./config.yaml", "配置文件路径")
	port       = flag.Int("port", 0, "覆盖服务器端口")
)

/*
main 程序入口
启动流程：
 1. 初始化引导日志 → 检测首次运行 → 创建目录/配置
 2. 加载配置文件 → 用配置重新初始化日志
 3. 初始化数据库（SQLite/MySQL/Postgres + 可选 Redis）
 4. 并行启动独立服务：清理服务、WebSocket 服务器、公会准入组件
 5. 组装路由 → 启动 HTTP/2（+ 可选 HTTP/3）服务器
 6. 等待 SIGINT/SIGTERM → 优雅关闭
*/
func main() {
	startupBegin := time.Now()
	flag.Parse()

	/* 阶段 1：引导日志（配置加载前使用临时 console 日志） */
	if err := logger.Init(&logger.Config{
		Level:  "info",
		Format: "console",
	}); err != nil {
		log.Fatalf("初始化日志系统失败: %v", err)
	}
	defer logger.Sync()

	/* 阶段 2：首次运行检测与初始化 */
	isFirstRun := initializer.IsFirstRun(*configPath)
	if err := initializer.InitDirectories(); err != nil {
		logger.Fatal("初始化目录失败", zap.Error(err))
	}
	if isFirstRun {
		initializer.PrintWelcome()
		if err := initializer.InitConfig(*configPath); err != nil {
			logger.Fatal("初始化配置失败", zap.Error(err))
		}
	}

	/* 阶段 3：加载配置 → 用配置重新初始化日志系统 */
	cfg := config.LoadConfigOrDefault(*configPath)
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if err := logger.Init(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		OutputPath: cfg.Log.OutputPath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		logger.Fatal("重新初始化日志系统失败", zap.Error(err))
	}

	/* 阶段 4：初始化数据库（必须串行，后续服务依赖它） */
	dbStart := time.Now()
	dbManager, err := db.NewManager(&db.Config{
		DBType:        cfg.Database.Type,
		SQLitePath:    cfg.Database.SQLitePath,
		DBHost:        cfg.Database.Host,
		DBPort:        cfg.Database.Port,
		DBUser:        cfg.Database.User,
		DBPassword:    cfg.Database.Password,
		DBName:        cfg.Database.DBName,
		DBSSLMode:     cfg.Database.SSLMode,
		DBCharset:     cfg.Database.Charset,
		MaxOpenConns:  cfg.Database.MaxOpenConns,
		MaxIdleConns:  cfg.Database.MaxIdleConns,
		DBLogLevel:    cfg.Database.LogLevel,
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Fatal("初始化数据库失败", zap.Error(err))
	}
	defer dbManager.Close()
	logger.Info("✓ 数据库初始化完成", zap.Duration("耗时", time.Since(dbStart)))

	/* 首次启动：创建默认管理员（空数据库时自动执行） */
	if err := initializer.InitAdmin(dbManager.GormDB); err != nil {
		logger.Fatal("初始化管理员失败", zap.Error(err))
	}

	app := types.NewApp(cfg, dbManager)

	/*
		阶段 5：并行启动独立服务
		清理服务、WebSocket 服务器、公会准入组件互不依赖，
		使用 sync.WaitGroup 并行初始化以缩短启动时间
	*/
	servicesStart := time.Now()
	var (
		cleanupService *service.CleanupService
		wsServer       *ws.Server
		guildClient    *service.GuildClient
		guildCache     *service.GuildRosterCache
		guildGate      *service.GuildGate
		sweeper        *service.GuildSweepService
		wg             sync.WaitGroup
	)

	guildEnabled := cfg.Guild.Enabled

	wg.Add(3)

	/* 定时清理服务：过期 session */
	go func() {
		defer wg.Done()
		cleanupService = service.NewCleanupService(app.DAO)
		logger.Debug("✓ 清理服务就绪")
	}()

	/* WebSocket 服务器：浏览器实时事件长连接 */
	go func() {
		defer wg.Done()
		wsServer = ws.NewServer(cfg.Server.WSMaxConnections)
		wsServer.Start()
		logger.Debug("✓ WebSocket 服务器就绪")
	}()

	/* 公会准入组件：API 客户端 + 名册缓存 + 闸门 + 会话清扫 */
	go func() {
		defer wg.Done()
		if !guildEnabled {
			logger.Warn("公会准入未启用，所有登录仅做凭据认证")
			return
		}
		guildClient = service.NewGuildClient(&cfg.Guild)
		guildCache = service.NewGuildRosterCache(guildClient)
		guildGate = service.NewGuildGate(guildCache, guildClient)
		/* guild_id 未配置：闸门保留并对所有准入请求返回配置错误（关闭失败），
		清扫服务不启动，避免空名册误删会话 */
		if cfg.Guild.GuildID != "" {
			sweeper = service.NewGuildSweepService(guildCache, app.DAO, cfg.Guild.SweepIntervalDuration())
		} else {
			logger.Error("公会准入已启用但 guild_id 未配置，所有非管理员登录将被拒绝")
		}
		logger.Debug("✓ 公会准入组件就绪")
	}()

	wg.Wait()

	/* 服务间依赖串行处理 */
	go cleanupService.Start()
	defer cleanupService.Stop()
	if sweeper != nil {
		/* 清扫删除会话时同步断开在线 WebSocket 连接 */
		sweeper.SetKicker(wsServer.GetHub())
		go sweeper.Start()
		defer sweeper.Stop()
	}

	logger.Info("✓ 后台服务并行初始化完成", zap.Duration("耗时", time.Since(servicesStart)))

	/* 阶段 6：组装路由 + 启动 HTTP 服务器 */
	router := api.SetupRouter(app, &api.RouterDeps{
		WSServer:   wsServer,
		GuildAPI:   guildClient,
		GuildCache: guildCache,
		GuildGate:  guildGate,
		Sweeper:    sweeper,
	})
	http2Addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	var tlsConfig *tls.Config
	if cfg.TLS.Enabled && cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != "" {
		tlsConfig = createTLSConfig(cfg)
	}

	http2Server := server.NewHTTP2Server(
		http2Addr, router, tlsConfig,
		time.Duration(cfg.Server.ReadTimeout)*time.Second,
		time.Duration(cfg.Server.WriteTimeout)*time.Second,
	)
	go func() {
		if cfg.TLS.Enabled {
			logger.Info("✓ HTTPS 服务器启动", zap.String("addr", http2Addr))
		} else {
			logger.Info("✓ HTTP 服务器启动", zap.String("addr", http2Addr))
		}
		var err error
		if cfg.TLS.Enabled {
			err = http2Server.Start(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			err = http2Server.StartInsecure()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常退出", zap.Error(err))
		}
	}()

	var http3Server *server.HTTP3Server
	if cfg.Server.EnableHTTP3 && cfg.TLS.Enabled {
		http3Addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTP3Port)
		http3Server = server.NewHTTP3Server(http3Addr, router, tlsConfig)
		go func() {
			logger.Info("✓ HTTP/3 (QUIC) 服务器启动", zap.String("addr", http3Addr))
			if err := http3Server.Start(); err != nil {
				logger.Error("HTTP/3 服务器错误", zap.Error(err))
			}
		}()
	} else if cfg.Server.EnableHTTP3 {
		logger.Warn("HTTP/3 已启用但 TLS 未配置，跳过 HTTP/3 服务器")
	}

	logger.Info("✓ Worklenz 启动完成",
		zap.Duration("总耗时", time.Since(startupBegin)),
		zap.String("监听地址", http2Addr),
		zap.Bool("公会准入", guildEnabled))

	/* 阶段 7：等待退出信号 → 优雅关闭 */
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("收到退出信号，正在优雅关闭...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := http2Server.Shutdown(ctx); err != nil {
		logger.Error("关闭 HTTP/2 服务器失败", zap.Error(err))
	}
	if http3Server != nil {
		if err := http3Server.Shutdown(ctx); err != nil {
			logger.Error("关闭 HTTP/3 服务器失败", zap.Error(err))
		}
	}

	logger.Info("✓ 所有服务器已停止")
}

/*
createTLSConfig 构建 TLS 配置
功能：按配置设置最低 TLS 版本，默认 TLS 1.2
*/
func createTLSConfig(cfg *config.Config) *tls.Config {
	minVersion := uint16(tls.VersionTLS12)
	if cfg.TLS.MinVersion == "TLS 1.3" {
		minVersion = tls.VersionTLS13
	}
	return &tls.Config{
		MinVersion: minVersion,
	}
}
