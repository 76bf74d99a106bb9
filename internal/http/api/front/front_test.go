package front

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/porsino-app/porsino-server/internal/chatjob"
	"github.com/porsino-app/porsino-server/internal/config"
	dbpkg "github.com/porsino-app/porsino-server/internal/db"
	"github.com/porsino-app/porsino-server/internal/models"
	"github.com/porsino-app/porsino-server/internal/otp"
	"github.com/porsino-app/porsino-server/internal/payment"
	"github.com/porsino-app/porsino-server/internal/sms"
	"gorm.io/gorm"
)

var frontJWTConfig = config.JWTConfig{Secret: "front-test-secret", Expiry: time.Hour}

func setupFrontServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:front_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := dbpkg.Open(dsn)
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbpkg.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}

	engine := gin.New()
	RegisterFrontRoutes(engine, conn, frontJWTConfig, Services{
		Guard:    otp.NewGuard(conn, sms.ConsoleSender{}),
		Runner:   chatjob.NewRunner(conn, chatjob.NewMemoryStore(), nil, time.Second),
		Payments: payment.NewService(conn, payment.NewGateway(config.PaymentConfig{Secret: "gw"})),
	})
	return engine, conn
}

func doJSON(t *testing.T, engine *gin.Engine, method, target, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, errMarshal := json.Marshal(payload)
		if errMarshal != nil {
			t.Fatalf("marshal payload: %v", errMarshal)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestSignupLoginProfileFlow(t *testing.T) {
	engine, conn := setupFrontServer(t)

	now := time.Now().UTC()
	code := models.VerificationCode{Mobile: "09123456789", Code: "12345", ExpiresAt: now.Add(2 * time.Minute), CreatedAt: now}
	if errCreate := conn.Create(&code).Error; errCreate != nil {
		t.Fatalf("create verification code: %v", errCreate)
	}

	w := doJSON(t, engine, http.MethodPost, "/v0/front/auth/signup", "", gin.H{
		"mobile":   "09123456789",
		"code":     "12345",
		"name":     "Sara",
		"grade":    "9",
		"password": "secret-pass",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("signup: expected status 200, got %d body=%s", w.Code, w.Body.String())
	}

	w = doJSON(t, engine, http.MethodPost, "/v0/front/auth/login", "", gin.H{
		"mobile":   "09123456789",
		"password": "secret-pass",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected status 200, got %d body=%s", w.Code, w.Body.String())
	}
	var login struct {
		Token string `json:"token"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &login); errDecode != nil {
		t.Fatalf("decode login: %v", errDecode)
	}

	w = doJSON(t, engine, http.MethodGet, "/v0/front/profile", login.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("profile: expected status 200, got %d body=%s", w.Code, w.Body.String())
	}
	var profile struct {
		Mobile             string `json:"mobile"`
		Name               string `json:"name"`
		SubscriptionActive bool   `json:"subscription_active"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &profile); errDecode != nil {
		t.Fatalf("decode profile: %v", errDecode)
	}
	if profile.Mobile != "09123456789" || profile.Name != "Sara" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	if profile.SubscriptionActive {
		t.Fatalf("expected no active subscription for a fresh signup")
	}
}

func TestAuthMiddlewareRejectsBadTokens(t *testing.T) {
	engine, _ := setupFrontServer(t)

	w := doJSON(t, engine, http.MethodGet, "/v0/front/profile", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: expected status 401, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v0/front/profile", nil)
	req.Header.Set("Authorization", "Basic abc")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong scheme: expected status 401, got %d", w.Code)
	}

	w = doJSON(t, engine, http.MethodGet, "/v0/front/profile", "not-a-jwt", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: expected status 401, got %d", w.Code)
	}
}

func TestPublicRoutesSkipAuth(t *testing.T) {
	engine, _ := setupFrontServer(t)

	w := doJSON(t, engine, http.MethodPost, "/v0/front/auth/code", "", gin.H{"mobile": "bad"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for an invalid mobile, got %d body=%s", w.Code, w.Body.String())
	}

	w = doJSON(t, engine, http.MethodPost, "/v0/front/payments/callback", "", gin.H{"order_id": "nope", "sign": "x"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for an unknown order, got %d body=%s", w.Code, w.Body.String())
	}
}
