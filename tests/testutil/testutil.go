package testutil

import (
	"fmt"
	"net/url"
	"os"
	"testing"

	"github.com/kendall-kelly/stockmaster-web/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// RequireTestEnvironment fails the test immediately unless GO_ENV=test.
// config.Load reads .env.<GO_ENV>, so any other value may target a real
// database or warehouse API.
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	if env := os.Getenv("GO_ENV"); env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: tests must run with GO_ENV=test, got GO_ENV=%q", env)
	}
}

// PrintEnvironmentInfo prints the settings a failing suite most often trips on
func PrintEnvironmentInfo() {
	fmt.Printf("Test Environment Info:\n")
	for _, key := range []string{"GO_ENV", "DB_DRIVER", "WAREHOUSE_API_URL", "TIME_ZONE", "AUTH_MODE"} {
		fmt.Printf("  %s: %s\n", key, os.Getenv(key))
	}
	fmt.Printf("  DATABASE_URL: %s\n", redactURL(os.Getenv("DATABASE_URL")))
}

// redactURL hides the password of a connection string
func redactURL(raw string) string {
	if raw == "" {
		return "(not set)"
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}

// SetEnv sets environment variables for the duration of the test
func SetEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for key, value := range vars {
		t.Setenv(key, value)
	}
}

// OpenDraftDB opens a migrated in-memory sqlite database. The pool is capped
// at one connection because every sqlite :memory: connection is a separate
// database.
func OpenDraftDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.DraftSession{}))
	return db
}
