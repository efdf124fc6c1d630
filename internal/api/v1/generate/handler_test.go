package generate_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"packforge-backend/internal/api/v1/generate"
	"packforge-backend/internal/database"
	"packforge-backend/internal/models"
	"packforge-backend/internal/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB() {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		panic("failed to connect database")
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	db.Migrator().DropTable(&models.User{}, &models.Transaction{})
	if err := db.AutoMigrate(&models.User{}, &models.Transaction{}); err != nil {
		panic("failed to migrate database")
	}

	database.DB = db
}

func setupTestRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		panic(err)
	}
	t.Cleanup(mr.Close)

	database.RedisClient = redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}

// stubCompleter fakes the completion backend. SideEffect runs on every call,
// before the canned response is returned.
type stubCompleter struct {
	response   string
	err        error
	calls      int
	sideEffect func()
}

func (s *stubCompleter) Complete(ctx context.Context, systemInstructions, userInstructions string) (string, error) {
	s.calls++
	if s.sideEffect != nil {
		s.sideEffect()
	}
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

// newTestRouter mounts the handler behind a middleware that loads the user
// fresh from the store, the way the real auth middleware does.
func newTestRouter(handler *generate.Handler, userID uint) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		var user models.User
		if err := database.DB.First(&user, userID).Error; err == nil {
			c.Set("user", user)
		}
		c.Next()
	})
	r.POST("/generate", handler.Generate)
	r.POST("/chat", handler.Chat)
	return r
}

func doJSON(r *gin.Engine, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

const validModelOutput = `{"pack_name":"hi","files":[{"path":"pack.mcmeta","content":"{}"}]}`

func TestGeneratePreview(t *testing.T) {
	setupTestDB()
	setupTestRedis(t)

	user := models.User{Email: "previewer@example.com", Credits: 2}
	database.DB.Create(&user)

	stub := &stubCompleter{response: validModelOutput}
	r := newTestRouter(generate.NewHandler(stub), user.ID)

	// Preview N times; the balance must never move.
	for i := 0; i < 3; i++ {
		w := doJSON(r, "/generate", `{"prompt":"make a hello command","preview":true}`)
		assert.Equal(t, http.StatusOK, w.Code)

		var resp envelope
		json.Unmarshal(w.Body.Bytes(), &resp)

		var preview generate.PreviewResponse
		json.Unmarshal(resp.Data, &preview)
		assert.Equal(t, "hi", preview.PackName)
		assert.Len(t, preview.Files, 1)
		assert.Equal(t, "pack.mcmeta", preview.Files[0].Path)
		assert.Equal(t, "{}", preview.Files[0].Content)
	}

	var updated models.User
	database.DB.First(&updated, user.ID)
	assert.Equal(t, 2, updated.Credits)

	var count int64
	database.DB.Model(&models.Transaction{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestGenerateDownload(t *testing.T) {
	setupTestDB()
	setupTestRedis(t)

	user := models.User{Email: "downloader@example.com", Credits: 2}
	database.DB.Create(&user)

	stub := &stubCompleter{response: validModelOutput}
	r := newTestRouter(generate.NewHandler(stub), user.ID)

	w := doJSON(r, "/generate", `{"prompt":"make a hello command"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="hi.zip"`, w.Header().Get("Content-Disposition"))

	reader, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	assert.NoError(t, err)
	assert.Len(t, reader.File, 1)
	assert.Equal(t, "hi/pack.mcmeta", reader.File[0].Name)

	var updated models.User
	database.DB.First(&updated, user.ID)
	assert.Equal(t, 1, updated.Credits)
}

func TestGenerateUnlimitedUserNotCharged(t *testing.T) {
	setupTestDB()
	setupTestRedis(t)

	user := models.User{Email: "pro@example.com", IsPro: true, Credits: 1}
	database.DB.Create(&user)

	stub := &stubCompleter{response: validModelOutput}
	r := newTestRouter(generate.NewHandler(stub), user.ID)

	w := doJSON(r, "/generate", `{"prompt":"make a hello command"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))

	var updated models.User
	database.DB.First(&updated, user.ID)
	assert.Equal(t, 1, updated.Credits)
}

func TestGenerateInsufficientCreditsShortCircuits(t *testing.T) {
	setupTestDB()
	setupTestRedis(t)

	user := models.User{Email: "broke@example.com", Credits: 1}
	database.DB.Create(&user)
	database.DB.Model(&user).UpdateColumn("credits", 0)

	stub := &stubCompleter{response: validModelOutput}
	r := newTestRouter(generate.NewHandler(stub), user.ID)

	w := doJSON(r, "/generate", `{"prompt":"make a hello command"}`)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	// Denied before any upstream call was made.
	assert.Equal(t, 0, stub.calls)
}

func TestGenerateLedgerRaceLost(t *testing.T) {
	setupTestDB()
	setupTestRedis(t)

	user := models.User{Email: "raced@example.com", Credits: 1}
	database.DB.Create(&user)

	// The stub spends the last credit mid-generation, simulating a
	// concurrent request winning the race after the entitlement check.
	stub := &stubCompleter{response: validModelOutput}
	stub.sideEffect = func() {
		database.DB.Model(&models.User{}).Where("id = ?", user.ID).UpdateColumn("credits", 0)
	}
	r := newTestRouter(generate.NewHandler(stub), user.ID)

	w := doJSON(r, "/generate", `{"prompt":"make a hello command"}`)

	// The generation result is discarded, not served for free.
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	var updated models.User
	database.DB.First(&updated, user.ID)
	assert.Equal(t, 0, updated.Credits)
}

func TestGenerateMalformedModelOutput(t *testing.T) {
	setupTestDB()
	setupTestRedis(t)

	user := models.User{Email: "unlucky@example.com", Credits: 2}
	database.DB.Create(&user)

	stub := &stubCompleter{response: "I'm sorry, I can't produce that."}
	r := newTestRouter(generate.NewHandler(stub), user.ID)

	w := doJSON(r, "/generate", `{"prompt":"make a hello command"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp envelope
	json.Unmarshal(w.Body.Bytes(), &resp)

	var data generate.MalformedData
	json.Unmarshal(resp.Data, &data)
	assert.Equal(t, "I'm sorry, I can't produce that.", data.Raw)

	// No credit consumed on failure.
	var updated models.User
	database.DB.First(&updated, user.ID)
	assert.Equal(t, 2, updated.Credits)
}

func TestGenerateUpstreamFailure(t *testing.T) {
	setupTestDB()
	setupTestRedis(t)

	user := models.User{Email: "stormy@example.com", Credits: 2}
	database.DB.Create(&user)

	// Backend answered with an error status
	stub := &stubCompleter{err: &services.UpstreamError{StatusCode: 500, Body: "upstream exploded"}}
	r := newTestRouter(generate.NewHandler(stub), user.ID)

	w := doJSON(r, "/generate", `{"prompt":"make a hello command"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	// Transport-level failure
	stub = &stubCompleter{err: &services.UpstreamError{Err: errors.New("connection refused")}}
	r = newTestRouter(generate.NewHandler(stub), user.ID)

	w = doJSON(r, "/generate", `{"prompt":"make a hello command"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var updated models.User
	database.DB.First(&updated, user.ID)
	assert.Equal(t, 2, updated.Credits)
}

func TestGenerateMissingPrompt(t *testing.T) {
	setupTestDB()
	setupTestRedis(t)

	user := models.User{Email: "promptless@example.com", Credits: 2}
	database.DB.Create(&user)

	stub := &stubCompleter{response: validModelOutput}
	r := newTestRouter(generate.NewHandler(stub), user.ID)

	w := doJSON(r, "/generate", `{"preview":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, stub.calls)
}

func TestGenerateUnauthenticated(t *testing.T) {
	setupTestDB()
	setupTestRedis(t)

	stub := &stubCompleter{response: validModelOutput}
	// User ID 9999 does not exist, so the context carries no user.
	r := newTestRouter(generate.NewHandler(stub), 9999)

	w := doJSON(r, "/generate", `{"prompt":"make a hello command"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChat(t *testing.T) {
	setupTestDB()
	setupTestRedis(t)

	user := models.User{Email: "chatter@example.com", Credits: 1}
	database.DB.Create(&user)

	stub := &stubCompleter{response: "Hello there!"}
	r := newTestRouter(generate.NewHandler(stub), user.ID)

	w := doJSON(r, "/chat", `{"prompt":"say hi"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp envelope
	json.Unmarshal(w.Body.Bytes(), &resp)

	var chat generate.ChatResponse
	json.Unmarshal(resp.Data, &chat)
	assert.Equal(t, "Hello there!", chat.Text)

	// Chat never meters.
	var updated models.User
	database.DB.First(&updated, user.ID)
	assert.Equal(t, 1, updated.Credits)
}
