package security

import (
	"time"

	"github.com/Zuntie/worklenz/internal/api/response"
	"github.com/Zuntie/worklenz/internal/db/database"
	"github.com/Zuntie/worklenz/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/mojocn/base64Captcha"
	"go.uber.org/zap"
)

/*
redisCaptchaStore base64Captcha 的 Redis 存储实现
功能：验证码答案存入 Redis 并带过期时间，多实例部署时共享，
校验成功即删除（一次性），防止验证码重放。
*/
type redisCaptchaStore struct {
	redis      *database.RedisClient
	expiration time.Duration
	logger     *zap.Logger
}

const captchaKeyPrefix = "captcha:"

func (s *redisCaptchaStore) Set(id string, value string) error {
	return s.redis.Set(captchaKeyPrefix+id, value, s.expiration)
}

func (s *redisCaptchaStore) Get(id string, clear bool) string {
	key := captchaKeyPrefix + id
	if clear {
		value, err := s.redis.GetDel(key)
		if err != nil {
			return ""
		}
		return value
	}
	value, err := s.redis.Get(key)
	if err != nil {
		return ""
	}
	return value
}

func (s *redisCaptchaStore) Verify(id, answer string, clear bool) bool {
	if id == "" || answer == "" {
		return false
	}
	return s.Get(id, clear) == answer
}

/*
CaptchaHandler 图形验证码处理器
功能：生成 base64 编码的数字验证码图片。
有 Redis 时答案存 Redis（支持多实例），否则退化为进程内存储。
*/
type CaptchaHandler struct {
	app    *types.App
	store  base64Captcha.Store
	driver base64Captcha.Driver
	logger *zap.Logger
}

/*
NewCaptchaHandler 创建验证码处理器
*/
func NewCaptchaHandler(app *types.App) *CaptchaHandler {
	log := zap.L().Named("captcha-handler")

	expiration := time.Duration(app.Config.Captcha.Expiration) * time.Second
	if expiration <= 0 {
		expiration = 5 * time.Minute
	}

	var store base64Captcha.Store
	if app.DB.HasCache() {
		store = &redisCaptchaStore{
			redis:      app.DB.Redis,
			expiration: expiration,
			logger:     log,
		}
	} else {
		store = base64Captcha.DefaultMemStore
	}

	width := app.Config.Captcha.ImageWidth
	if width <= 0 {
		width = 240
	}
	height := app.Config.Captcha.ImageHeight
	if height <= 0 {
		height = 80
	}
	length := app.Config.Captcha.CodeLength
	if length <= 0 {
		length = 4
	}

	return &CaptchaHandler{
		app:    app,
		store:  store,
		driver: base64Captcha.NewDriverDigit(height, width, length, 0.7, 80),
		logger: log,
	}
}

/*
Generate 生成验证码
功能：返回验证码 ID 和 base64 PNG 图片，答案只存服务端
路由：GET /api/v1/auth/captcha
*/
func (h *CaptchaHandler) Generate(c *gin.Context) {
	captcha := base64Captcha.NewCaptcha(h.driver, h.store)
	id, b64s, _, err := captcha.Generate()
	if err != nil {
		response.GinInternalError(c, "生成验证码失败", err)
		return
	}

	response.GinSuccess(c, gin.H{
		"captcha_id": id,
		"image":      b64s,
	})
}

/*
VerifyCaptcha 校验验证码答案
功能：一次性校验，无论成败答案立即作废
*/
func (h *CaptchaHandler) VerifyCaptcha(id, code string) bool {
	return h.store.Verify(id, code, true)
}
