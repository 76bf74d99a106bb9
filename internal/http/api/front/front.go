package front

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/porsino-app/porsino-server/internal/chatjob"
	"github.com/porsino-app/porsino-server/internal/config"
	"github.com/porsino-app/porsino-server/internal/http/api/front/handlers"
	"github.com/porsino-app/porsino-server/internal/leitner"
	"github.com/porsino-app/porsino-server/internal/models"
	"github.com/porsino-app/porsino-server/internal/otp"
	"github.com/porsino-app/porsino-server/internal/payment"
	"github.com/porsino-app/porsino-server/internal/progress"
	"github.com/porsino-app/porsino-server/internal/referral"
	"github.com/porsino-app/porsino-server/internal/security"
	"gorm.io/gorm"
)

// Services bundles the domain services the front routes depend on.
type Services struct {
	Guard    *otp.Guard
	Runner   *chatjob.Runner
	Payments *payment.Service
}

// RegisterFrontRoutes registers public and authenticated front-end routes.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, svc Services) {
	if r == nil || db == nil {
		return
	}

	front := r.Group("/v0/front")

	referrals := referral.NewService(db)

	authHandler := handlers.NewAuthHandler(db, jwtCfg, svc.Guard, referrals)
	front.POST("/auth/code", authHandler.SendCode)
	front.POST("/auth/signup", authHandler.Signup)
	front.POST("/auth/login", authHandler.Login)

	paymentHandler := handlers.NewPaymentHandler(db, svc.Payments)
	front.POST("/payments/callback", paymentHandler.Callback)

	authed := front.Group("")
	authed.Use(userAuthMiddleware(db, jwtCfg))

	profileHandler := handlers.NewProfileHandler(db, referrals)
	authed.GET("/profile", profileHandler.Get)
	authed.PUT("/profile", profileHandler.Update)
	authed.PUT("/profile/password", profileHandler.ChangePassword)

	flashcardHandler := handlers.NewFlashcardHandler(leitner.NewService(db))
	authed.GET("/flashcards", flashcardHandler.List)
	authed.GET("/flashcards/due", flashcardHandler.Due)
	authed.POST("/flashcards", flashcardHandler.Create)
	authed.POST("/flashcards/batch", flashcardHandler.CreateBatch)
	authed.POST("/flashcards/:id/review", flashcardHandler.Review)
	authed.DELETE("/flashcards/:id", flashcardHandler.Delete)

	progressHandler := handlers.NewProgressHandler(progress.NewService(db))
	authed.POST("/progress", progressHandler.Upsert)
	authed.GET("/progress/lesson", progressHandler.LessonStates)
	authed.POST("/progress/chapter", progressHandler.CompleteChapterStep)
	authed.GET("/progress/chapters", progressHandler.Chapters)

	chatHandler := handlers.NewChatHandler(db, svc.Runner)
	authed.POST("/chat/jobs", chatHandler.Submit)
	authed.GET("/chat/jobs/:id", chatHandler.Result)
	authed.POST("/chat/jobs/:id/cancel", chatHandler.Cancel)
	authed.GET("/chats", chatHandler.ListChats)
	authed.GET("/chats/:id/messages", chatHandler.ListMessages)

	authed.GET("/plans", paymentHandler.Plans)
	authed.POST("/payments", paymentHandler.Create)
	authed.GET("/payments", paymentHandler.History)
}

// userAuthMiddleware validates user JWTs and loads the user into context.
func userAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if user.Disabled {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user disabled"})
			return
		}

		c.Set("userID", user.ID)
		c.Next()
	}
}
