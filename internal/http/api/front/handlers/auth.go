package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/porsino-app/porsino-server/internal/config"
	"github.com/porsino-app/porsino-server/internal/models"
	"github.com/porsino-app/porsino-server/internal/otp"
	"github.com/porsino-app/porsino-server/internal/referral"
	"github.com/porsino-app/porsino-server/internal/security"
	"gorm.io/gorm"
)

// AuthHandler handles signup and login endpoints.
type AuthHandler struct {
	db        *gorm.DB
	jwtCfg    config.JWTConfig
	guard     *otp.Guard
	referrals *referral.Service
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig, guard *otp.Guard, referrals *referral.Service) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg, guard: guard, referrals: referrals}
}

// sendCodeRequest defines the request body for requesting a verification code.
type sendCodeRequest struct {
	Mobile string `json:"mobile"`
}

// SendCode dispatches a signup verification code over SMS.
func (h *AuthHandler) SendCode(c *gin.Context) {
	var body sendCodeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	errSend := h.guard.Send(c.Request.Context(), body.Mobile)
	switch {
	case errSend == nil:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	case errors.Is(errSend, otp.ErrInvalidMobile):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mobile number"})
	case errors.Is(errSend, otp.ErrAlreadyRegistered):
		c.JSON(http.StatusConflict, gin.H{"error": "mobile already registered"})
	case errors.Is(errSend, otp.ErrCooldown):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "code recently sent, wait before retrying"})
	case errors.Is(errSend, otp.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many codes requested this hour"})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "send sms failed"})
	}
}

// signupRequest defines the request body for completing registration.
type signupRequest struct {
	Mobile       string `json:"mobile"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	Grade        string `json:"grade"`
	Password     string `json:"password"`
	ReferralCode string `json:"referral_code"`
}

// Signup verifies the SMS code and creates the user account.
func (h *AuthHandler) Signup(c *gin.Context) {
	var body signupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	mobile, ok := otp.ValidMobile(body.Mobile)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mobile number"})
		return
	}
	password := strings.TrimSpace(body.Password)
	if password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing password"})
		return
	}

	if errVerify := h.guard.Verify(c.Request.Context(), mobile, body.Code); errVerify != nil {
		var wrong *otp.WrongCodeError
		switch {
		case errors.As(errVerify, &wrong):
			c.JSON(http.StatusBadRequest, gin.H{"error": "wrong code", "attempts_left": wrong.AttemptsLeft})
		case errors.Is(errVerify, otp.ErrCodeBurned):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many wrong attempts, request a new code"})
		case errors.Is(errVerify, otp.ErrCodeExpired):
			c.JSON(http.StatusGone, gin.H{"error": "code expired or never requested"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "verify code failed"})
		}
		return
	}

	var referrer *models.User
	if code := strings.TrimSpace(body.ReferralCode); code != "" {
		found, errResolve := h.referrals.Resolve(c.Request.Context(), code)
		if errResolve != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "referral code not found"})
			return
		}
		referrer = found
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	now := time.Now().UTC()
	user := models.User{
		Mobile:    mobile,
		Name:      strings.TrimSpace(body.Name),
		Grade:     strings.TrimSpace(body.Grade),
		Password:  hash,
		Active:    true,
		Disabled:  false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if referrer != nil {
		user.ReferredBy = &referrer.ID
	}

	// Referral codes are unique; retry on the rare collision.
	var errCreate error
	for attempt := 0; attempt < 3; attempt++ {
		code, errCode := referral.GenerateCode()
		if errCode != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "generate referral code failed"})
			return
		}
		user.ReferralCode = code
		errCreate = h.db.WithContext(c.Request.Context()).Create(&user).Error
		if errCreate == nil {
			break
		}
	}
	if errCreate != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "mobile already registered"})
		return
	}

	if referrer != nil {
		if errCredit := h.referrals.Credit(c.Request.Context(), referrer.ID, user.ID); errCredit != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "credit referral failed"})
			return
		}
	}

	h.respondWithUserToken(c, user)
}

// loginRequest defines the request body for login.
type loginRequest struct {
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

// Login authenticates a user and issues a JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	mobile := otp.NormalizeDigits(strings.TrimSpace(body.Mobile))
	password := strings.TrimSpace(body.Password)
	if mobile == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing mobile or password"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).Where("mobile = ?", mobile).First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	if user.Disabled {
		c.JSON(http.StatusForbidden, gin.H{"error": "user disabled"})
		return
	}

	if !security.CheckPassword(user.Password, password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	h.respondWithUserToken(c, user)
}

// respondWithUserToken generates a JWT and responds with user info.
func (h *AuthHandler) respondWithUserToken(c *gin.Context, user models.User) {
	token, errToken := security.GenerateToken(h.jwtCfg.Secret, user.ID, user.Mobile, user.Name, h.jwtCfg.Expiry)
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":       user.ID,
		"mobile":        user.Mobile,
		"name":          user.Name,
		"grade":         user.Grade,
		"referral_code": user.ReferralCode,
		"token":         token,
	})
}
