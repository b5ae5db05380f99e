package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/ada-judge-api/internal/config"
	"github.com/noah-isme/ada-judge-api/internal/handler"
	"github.com/noah-isme/ada-judge-api/internal/middleware"
	"github.com/noah-isme/ada-judge-api/internal/models"
	"github.com/noah-isme/ada-judge-api/internal/repository"
	"github.com/noah-isme/ada-judge-api/internal/router"
	"github.com/noah-isme/ada-judge-api/internal/service"
	"github.com/noah-isme/ada-judge-api/internal/utils"
)

const (
	testJWTSecret   = "handler-test-secret"
	testJudgeToken  = "judge-test-token"
	defaultPassword = "old-password-123"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type testStack struct {
	app *fiber.App
	db  *gorm.DB
	git config.GitConfig
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Problem{}, &models.QuotaRecord{}, &models.Submission{}))
	return db
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	db := newTestDB(t)
	git := newGitLayout(t)
	log := zerolog.New(io.Discard)
	validate := utils.NewValidator()

	users := repository.NewUserRepository(db)
	problems := repository.NewProblemRepository(db)
	ledger := service.NewQuotaLedger(repository.NewQuotaRepository(db), problems, time.UTC, log)
	registry := service.NewSubmissionRegistry(repository.NewSubmissionRepository(db), log)
	gateway := service.NewIntakeGateway(service.IntakeDeps{
		Users:       users,
		Problems:    problems,
		Keys:        service.NewKeyStore(users, log),
		Provisioner: service.NewRepoProvisioner(git, &localHelper{}, log),
		Ledger:      ledger,
		Registry:    registry,
		Validator:   validate,
	}, log)
	catalog := service.NewProblemCatalog(problems, ledger, nil, 0, log)

	cfg := config.Config{AppName: "ADA Judge", AppEnv: "test", JWTSecret: testJWTSecret, JudgeToken: testJudgeToken}
	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &log})
	router.Register(app, cfg, router.Dependencies{
		UserHandler:       handler.NewUserHandler(gateway, log),
		ProblemHandler:    handler.NewProblemHandler(catalog, log),
		SubmissionHandler: handler.NewSubmissionHandler(registry, gateway, validate, log),
		DB:                db,
	})

	return &testStack{app: app, db: db, git: git}
}

func newGitLayout(t *testing.T) config.GitConfig {
	t.Helper()
	root := t.TempDir()
	git := config.GitConfig{
		StagingDir:   filepath.Join(root, "staging"),
		AdminDir:     filepath.Join(root, "admin"),
		RepoRoot:     filepath.Join(root, "repositories"),
		TemplateRepo: filepath.Join(root, "repositories", "init.git"),
		TokenLength:  20,
	}
	require.NoError(t, os.MkdirAll(filepath.Join(git.TemplateRepo, "hooks"), 0o755))
	require.NoError(t, os.MkdirAll(git.KeyDir(), 0o755))
	return git
}

// localHelper performs the git host operations directly on the filesystem.
type localHelper struct {
	mu sync.Mutex
}

func (h *localHelper) CreateRepo(_ context.Context, _ string, destPath string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return os.MkdirAll(filepath.Join(destPath, "hooks"), 0o755)
}

func (h *localHelper) InstallFile(_ context.Context, srcPath, destPath string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return err
	}
	return os.WriteFile(destPath, data, 0o644)
}

type seededUser struct {
	models.User
	UploadKey string
}

func (s *testStack) seedUser(t *testing.T, metaID string, roles ...string) seededUser {
	t.Helper()
	hash, err := utils.HashPassword(defaultPassword)
	require.NoError(t, err)

	uploadKey := "abcdefghij0123456789" + metaID
	user := models.User{
		Email:        metaID + "@example.com",
		Password:     hash,
		GitUploadKey: uploadKey,
		Meta:         models.UserMeta{Name: metaID, ID: metaID},
		Roles:        roles,
	}
	require.NoError(t, s.db.Create(&user).Error)
	return seededUser{User: user, UploadKey: uploadKey}
}

func (s *testStack) seedProblem(t *testing.T, name string, visible bool, quota int) models.Problem {
	t.Helper()
	problem := models.Problem{Name: name, Visible: visible, Quota: quota}
	require.NoError(t, s.db.Create(&problem).Error)
	if !visible {
		require.NoError(t, s.db.Model(&problem).UpdateColumn("visible", false).Error)
	}
	return problem
}

func bearer(t *testing.T, userID uint, roles ...string) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": fmt.Sprint(userID), "exp": time.Now().Add(time.Hour).Unix()}
	if len(roles) > 0 {
		claims["roles"] = roles
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func (s *testStack) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func readText(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func readEnvelope(t *testing.T, resp *http.Response, data interface{}) envelope {
	t.Helper()
	defer resp.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func formRequest(path string, values map[string]string) *http.Request {
	form := url.Values{}
	for key, value := range values {
		form.Set(key, value)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	return req
}
