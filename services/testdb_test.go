package services

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sl-indications/models"
)

// newTestDB opens a throwaway SQLite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Snapshot{}, &models.Preparation{}, &models.Pack{},
		&models.LimitationText{}, &models.IndicationCode{},
		&models.CodeLink{}, &models.Segment{}, &models.NameCode{},
		&models.RunReport{},
	))
	return db
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
