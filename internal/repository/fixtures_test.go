package repository

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/ada-judge-api/internal/models"
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

func seedUser(t *testing.T, db *gorm.DB, metaID string) models.User {
	t.Helper()
	user := models.User{
		Email:    metaID + "@example.com",
		Password: "hash",
		Meta:     models.UserMeta{Name: metaID, ID: metaID},
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedProblem(t *testing.T, db *gorm.DB, name string, visible bool) models.Problem {
	t.Helper()
	problem := models.Problem{Name: name, Visible: visible, Quota: 3}
	require.NoError(t, db.Create(&problem).Error)
	return problem
}
