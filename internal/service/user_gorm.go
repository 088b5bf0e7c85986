package service

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/Zuntie/worklenz/internal/db/models"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

/*
GormUserService 基于 GORM 的用户服务
功能：管理用户的完整生命周期（注册/登录验证/密码/状态），
注册时自动创建个人团队，首用户自动设为管理员
*/
type GormUserService struct {
	db     *gorm.DB
	logger *zap.Logger
}

/*
NewGormUserService 创建基于 GORM 的用户服务
*/
func NewGormUserService(db *gorm.DB) *GormUserService {
	return &GormUserService{
		db:     db,
		logger: zap.L().Named("user-service"),
	}
}

/* ==================== 密码安全工具 ==================== */

/*
ValidatePasswordStrength 校验密码强度
规则：至少8位，包含大写字母、小写字母、数字，可选特殊字符
*/
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("密码长度不能少于8位")
	}
	if len(password) > 72 {
		return fmt.Errorf("密码长度不能超过72位")
	}

	var hasUpper, hasLower, hasDigit bool
	for _, c := range password {
		switch {
		case unicode.IsUpper(c):
			hasUpper = true
		case unicode.IsLower(c):
			hasLower = true
		case unicode.IsDigit(c):
			hasDigit = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("密码必须包含至少一个大写字母")
	}
	if !hasLower {
		return fmt.Errorf("密码必须包含至少一个小写字母")
	}
	if !hasDigit {
		return fmt.Errorf("密码必须包含至少一个数字")
	}
	return nil
}

/*
bcryptCost bcrypt 哈希成本因子
OWASP 推荐生产环境至少 12。
*/
const bcryptCost = 12

/*
HashPassword 使用 bcrypt 对密码进行哈希
*/
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("密码加密失败: %w", err)
	}
	return string(hashed), nil
}

/*
CheckPassword 验证密码是否匹配
*/
func CheckPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

/* ==================== 用户名/邮箱校验 ==================== */

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,32}$`)
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

/*
ValidateUsername 校验用户名格式
规则：3-32位，仅允许字母、数字、下划线、连字符
*/
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("用户名必须为3-32位，仅允许字母、数字、下划线、连字符")
	}

	/* 禁止保留用户名 */
	reserved := []string{"admin", "root", "system", "api", "www", "mail", "support"}
	lower := strings.ToLower(username)
	for _, r := range reserved {
		if lower == r {
			return fmt.Errorf("用户名 '%s' 为系统保留名称", username)
		}
	}
	return nil
}

/*
ValidateEmail 校验邮箱格式
*/
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("邮箱格式无效")
	}
	return nil
}

/* ==================== 注册 ==================== */

/*
GormRegisterRequest 注册请求
*/
type GormRegisterRequest struct {
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Email     string `json:"email" binding:"required"`
	DiscordID string `json:"discord_id"` /* OAuth 注册时由回调填入，不信任客户端 */
}

/*
RegisterResult 注册结果
*/
type RegisterResult struct {
	User        *models.User `json:"user"`
	IsFirstUser bool         `json:"is_first_user"`
}

/*
Register 用户注册
功能：校验输入 → 检查重复 → 首用户自动管理员 → 创建用户 + 个人团队（事务）
*/
func (s *GormUserService) Register(req *GormRegisterRequest) (*RegisterResult, error) {
	if err := ValidateUsername(req.Username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(req.Email); err != nil {
		return nil, err
	}
	if req.Password != "" {
		if err := ValidatePasswordStrength(req.Password); err != nil {
			return nil, err
		}
	}

	/* 检查用户名是否已存在 */
	var existCount int64
	if err := s.db.Model(&models.User{}).Where("username = ?", req.Username).Count(&existCount).Error; err != nil {
		s.logger.Error("检查用户名失败", zap.String("username", req.Username), zap.Error(err))
		return nil, fmt.Errorf("注册服务暂时不可用，请稍后重试")
	}
	if existCount > 0 {
		return nil, fmt.Errorf("用户名已存在")
	}

	/* 检查邮箱是否已存在 */
	if err := s.db.Model(&models.User{}).Where("email = ?", req.Email).Count(&existCount).Error; err != nil {
		s.logger.Error("检查邮箱失败", zap.String("email", req.Email), zap.Error(err))
		return nil, fmt.Errorf("注册服务暂时不可用，请稍后重试")
	}
	if existCount > 0 {
		return nil, fmt.Errorf("邮箱已被注册")
	}

	/* 检查是否为首个用户 */
	var totalUsers int64
	s.db.Model(&models.User{}).Count(&totalUsers)
	isFirstUser := totalUsers == 0

	role := models.RoleUser
	if isFirstUser {
		role = models.RoleAdmin
		s.logger.Info("首个用户注册，自动设置为管理员", zap.String("username", req.Username))
	}

	/* 加密密码（纯 OAuth 账号无本地密码） */
	hashedPwd := ""
	if req.Password != "" {
		var err error
		hashedPwd, err = HashPassword(req.Password)
		if err != nil {
			return nil, err
		}
	}

	/* 事务：创建用户 + 个人团队 + 团队成员关系 */
	user := &models.User{
		Username:  req.Username,
		Email:     req.Email,
		Password:  hashedPwd,
		Role:      role,
		Enabled:   true,
		DiscordID: req.DiscordID,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("创建用户失败: %w", err)
		}

		/* 个人团队：每个用户注册即拥有一个自己是 owner 的团队 */
		team := &models.Team{
			Name:    req.Username + "'s Team",
			OwnerID: user.ID,
		}
		if err := tx.Create(team).Error; err != nil {
			return fmt.Errorf("创建个人团队失败: %w", err)
		}
		member := &models.TeamMember{
			TeamID: team.ID,
			UserID: user.ID,
			Role:   models.TeamRoleOwner,
		}
		if err := tx.Create(member).Error; err != nil {
			return fmt.Errorf("创建团队成员关系失败: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("用户注册成功",
		zap.String("userID", user.ID),
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)))

	return &RegisterResult{User: user, IsFirstUser: isFirstUser}, nil
}

/* ==================== 登录验证 ==================== */

/*
Authenticate 验证用户凭据
功能：根据用户名查找用户 → 验证启用状态 → 验证密码 → 更新登录时间。
所有失败路径返回同一模糊错误，防止用户名枚举。
*/
func (s *GormUserService) Authenticate(username, password string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("用户名或密码错误")
		}
		s.logger.Error("查询用户失败", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("登录服务暂时不可用，请稍后重试")
	}

	if !user.Enabled {
		return nil, fmt.Errorf("账号已被禁用")
	}

	/* 纯 OAuth 账号没有本地密码 */
	if user.Password == "" || !CheckPassword(user.Password, password) {
		return nil, fmt.Errorf("用户名或密码错误")
	}

	/* 更新最后登录时间（失败不影响登录） */
	if err := s.db.Model(&user).Update("last_login", time.Now()).Error; err != nil {
		s.logger.Warn("更新最后登录时间失败", zap.String("userID", user.ID), zap.Error(err))
	}

	return &user, nil
}
