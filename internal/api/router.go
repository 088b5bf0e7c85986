package api

import (
	"github.com/Zuntie/worklenz/internal/api/handler/project"
	"github.com/Zuntie/worklenz/internal/api/handler/security"
	"github.com/Zuntie/worklenz/internal/api/handler/system"
	"github.com/Zuntie/worklenz/internal/api/handler/user"
	"github.com/Zuntie/worklenz/internal/api/middleware"
	"github.com/Zuntie/worklenz/internal/service"
	"github.com/Zuntie/worklenz/internal/types"
	"github.com/Zuntie/worklenz/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

/*
RouterDeps 路由依赖的后台组件
功能：公会准入未启用时相关字段为 nil，对应管理端点退化为提示
*/
type RouterDeps struct {
	WSServer   *ws.Server
	GuildAPI   service.GuildAPI
	GuildCache *service.GuildRosterCache
	GuildGate  *service.GuildGate
	Sweeper    *service.GuildSweepService
}

// SetupRouter 设置路由
func SetupRouter(app *types.App, deps *RouterDeps) *gin.Engine {
	// 设置Gin模式
	if app.Config.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 全局中间件
	router.Use(middleware.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodyLimit(2 << 20)) /* 2MB 请求体上限，防止 OOM */
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(app.Config.Server.CORSAllowedOrigins))

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"cache":  app.DB.HasCache(),
		})
	})

	/*
		Prometheus /metrics 和 /ws/stats 包含敏感运行指标，
		仅允许本地/内网访问，生产环境应通过反向代理进一步限制。
	*/
	router.GET("/metrics", localOnlyGuard(), gin.WrapH(promhttp.Handler()))

	var hub *ws.Hub
	if deps.WSServer != nil {
		hub = deps.WSServer.GetHub()

		router.GET("/ws/stats", localOnlyGuard(), func(c *gin.Context) {
			c.JSON(200, deps.WSServer.GetStats())
		})
	}

	// API v1
	v1 := router.Group("/api/v1")
	{
		captchaHandler := security.NewCaptchaHandler(app)
		authHandler := security.NewAuthHandler(app, deps.GuildGate, captchaHandler)
		userHandler := user.NewUserHandler(app)
		if hub != nil {
			authHandler.SetKicker(hub)
			userHandler.SetKicker(hub)
		}

		/* 登录限流器：窗口和上限来自认证配置，密码登录与 Discord 回调共用 */
		loginLimiter := middleware.NewLoginRateLimiter(&app.Config.Auth)

		// 认证路由（无需JWT）
		auth := v1.Group("/auth")
		{
			auth.GET("/captcha", captchaHandler.Generate)
			auth.POST("/register", userHandler.Register)
			auth.POST("/login", loginLimiter.Middleware(), authHandler.Login)

			// Discord OAuth
			if app.Config.Auth.Discord.Enabled {
				oauthHandler := security.NewOAuthHandler(app, deps.GuildGate, authHandler)
				auth.GET("/discord", oauthHandler.DiscordLoginURL)
				auth.POST("/discord/callback", loginLimiter.Middleware(), oauthHandler.DiscordCallback)
			}
		}

		// 需要JWT认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(app.Config.Auth.JWTSecret, app.DAO))
		{
			authorized.POST("/auth/logout", authHandler.Logout)
			authorized.GET("/auth/me", authHandler.Me)

			/* WebSocket 端点（浏览器实时事件），认证后升级 */
			if deps.WSServer != nil {
				authorized.GET("/ws", deps.WSServer.HandleWebSocket)
			}

			// 用户管理
			users := authorized.Group("/users")
			{
				users.PUT("/password", userHandler.ChangePassword)
			}

			// 团队管理
			teamHandler := project.NewTeamHandler(app, hub)
			teams := authorized.Group("/teams")
			{
				teams.POST("", teamHandler.CreateTeam)
				teams.GET("", teamHandler.ListMyTeams)
				teams.GET("/:id", teamHandler.GetTeam)
				teams.POST("/:id/members", teamHandler.AddMember)
				teams.DELETE("/:id/members/:userID", teamHandler.RemoveMember)
			}

			// 项目管理
			projectHandler := project.NewProjectHandler(app, teamHandler)
			teams.GET("/:id/projects", projectHandler.ListProjects)
			projects := authorized.Group("/projects")
			{
				projects.POST("", projectHandler.CreateProject)
				projects.GET("/:id", projectHandler.GetProject)
				projects.PUT("/:id", projectHandler.UpdateProject)
				projects.DELETE("/:id", projectHandler.DeleteProject)
			}

			// 任务管理
			taskHandler := project.NewTaskHandler(app, projectHandler)
			projects.POST("/:id/tasks", taskHandler.CreateTask)
			projects.GET("/:id/tasks", taskHandler.ListTasks)
			tasks := authorized.Group("/tasks")
			{
				tasks.PUT("/:id", taskHandler.UpdateTask)
				tasks.PUT("/:id/status", taskHandler.UpdateTaskStatus)
				tasks.DELETE("/:id", taskHandler.DeleteTask)
			}

			// 管理员功能
			admin := authorized.Group("/admin")
			admin.Use(middleware.AdminAuth())
			{
				admin.GET("/users", userHandler.ListUsers)
				admin.PUT("/users/:id/status", userHandler.UpdateUserStatus)
				admin.PUT("/users/:id/role", userHandler.UpdateUserRole)
				admin.POST("/users/:id/logout", userHandler.ForceLogout)

				/* 公会准入管理 */
				guildHandler := system.NewGuildHandler(app, deps.GuildCache, deps.Sweeper, deps.GuildAPI)
				admin.GET("/guild/status", guildHandler.Status)
				admin.POST("/guild/refresh", guildHandler.RefreshRoster)
				admin.POST("/guild/sweep", guildHandler.TriggerSweep)
				admin.GET("/guild/members/:discordID", guildHandler.CheckMember)
			}
		}
	}

	return router
}

/*
localOnlyGuard 本地访问限制中间件
功能：仅允许 127.0.0.1 / ::1 / localhost 访问，
用于保护 /metrics 和 /ws/stats 等敏感运维端点。
生产环境应额外通过反向代理限制访问。
*/
func localOnlyGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip != "127.0.0.1" && ip != "::1" && ip != "localhost" {
			c.JSON(403, gin.H{
				"success": false,
				"message": "此端点仅允许本地访问",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
