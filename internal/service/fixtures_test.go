package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/ada-judge-api/internal/config"
	"github.com/noah-isme/ada-judge-api/internal/models"
	"github.com/noah-isme/ada-judge-api/internal/utils"
	"github.com/noah-isme/ada-judge-api/pkg/githost"
)

func setupTestDB(t *testing.T) *gorm.DB {
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

func createUser(t *testing.T, db *gorm.DB, metaID string) models.User {
	t.Helper()
	user := models.User{
		Email:    metaID + "@example.com",
		Password: mustHash(t, "old-password-123"),
		Meta:     models.UserMeta{Name: metaID, ID: metaID},
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createProblem(t *testing.T, db *gorm.DB, name string, quota int) models.Problem {
	t.Helper()
	problem := models.Problem{Name: name, Visible: true, Quota: quota}
	require.NoError(t, db.Create(&problem).Error)
	if quota == 0 {
		// a zero quota would be replaced by the column default on insert
		require.NoError(t, db.Model(&problem).UpdateColumn("quota", 0).Error)
		problem.Quota = 0
	}
	return problem
}

var passwordHashes sync.Map

func mustHash(t *testing.T, password string) string {
	t.Helper()
	if hash, ok := passwordHashes.Load(password); ok {
		return hash.(string)
	}
	hash, err := utils.HashPassword(password)
	require.NoError(t, err)
	passwordHashes.Store(password, hash)
	return hash
}

func gitLayout(t *testing.T) config.GitConfig {
	t.Helper()
	root := t.TempDir()
	cfg := config.GitConfig{
		StagingDir:   filepath.Join(root, "staging"),
		AdminDir:     filepath.Join(root, "gitosis-admin"),
		RepoRoot:     filepath.Join(root, "repositories"),
		TemplateRepo: filepath.Join(root, "repositories", "init.git"),
		TokenLength:  20,
	}
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.TemplateRepo, "hooks"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.TemplateRepo, "HEAD"), []byte("ref: refs/heads/master\n"), 0o644))
	require.NoError(t, os.MkdirAll(cfg.KeyDir(), 0o755))
	return cfg
}

// fakeHelper mimics the copy helper on the local filesystem.
type fakeHelper struct {
	mu           sync.Mutex
	creates      int
	installs     map[string]int
	failInstall  map[string]error
	failCreate   error
	createAnyway bool
}

var _ githost.Helper = (*fakeHelper)(nil)

func newFakeHelper() *fakeHelper {
	return &fakeHelper{installs: map[string]int{}, failInstall: map[string]error{}}
}

func (f *fakeHelper) CreateRepo(_ context.Context, templatePath, destPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.failCreate != nil {
		if f.createAnyway {
			_ = copyTree(templatePath, destPath)
		}
		return f.failCreate
	}
	if _, err := os.Stat(destPath); err == nil {
		return &githost.ToolError{Op: "create-repo", ExitCode: 1, Stderr: "destination exists"}
	}
	return copyTree(templatePath, destPath)
}

func (f *fakeHelper) InstallFile(_ context.Context, srcPath, destPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installs[filepath.Base(destPath)]++
	if err, ok := f.failInstall[filepath.Base(destPath)]; ok {
		return err
	}
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return &githost.ToolError{Op: "install-file", ExitCode: 1, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(destPath, data, 0o644)
}

func (f *fakeHelper) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates
}

func (f *fakeHelper) installCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.installs[name]
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode())
	})
}

// recordingDispatcher keeps dispatched jobs in memory.
type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []JudgeJob
	err  error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, job JudgeJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

func (d *recordingDispatcher) Transport() string {
	return "memory"
}

func (d *recordingDispatcher) dispatched() []JudgeJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]JudgeJob(nil), d.jobs...)
}

var errBoom = errors.New("boom")

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
