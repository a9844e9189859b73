package app

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/securevault/internal/config"
	"github.com/patric-chuzhbe/securevault/internal/db/jsondb"
	"github.com/patric-chuzhbe/securevault/internal/db/memorystorage"
	"github.com/patric-chuzhbe/securevault/internal/db/sqlitedb"
	"github.com/patric-chuzhbe/securevault/internal/models"
)

func TestGetAvailableStorageType(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want int
	}{
		{
			name: "postgres wins over everything",
			cfg:  config.Config{DatabaseDSN: "postgres://", SQLiteDSN: "vault.db", DBFileName: "vault.json"},
			want: models.StorageTypePostgresql,
		},
		{
			name: "sqlite wins over the json file",
			cfg:  config.Config{SQLiteDSN: "vault.db", DBFileName: "vault.json"},
			want: models.StorageTypeSQLite,
		},
		{
			name: "json file",
			cfg:  config.Config{DBFileName: "vault.json"},
			want: models.StorageTypeFile,
		},
		{
			name: "memory by default",
			cfg:  config.Config{},
			want: models.StorageTypeMemory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getAvailableStorageType(&tt.cfg))
		})
	}
}

func TestGetStorageByType(t *testing.T) {
	dir := t.TempDir()

	db, err := getStorageByType(&config.Config{SQLiteDSN: filepath.Join(dir, "vault.db"), DBConnectionTimeout: time.Second})
	require.NoError(t, err)
	assert.IsType(t, &sqlitedb.SQLiteDB{}, db)
	require.NoError(t, db.Close())

	db, err = getStorageByType(&config.Config{DBFileName: filepath.Join(dir, "vault.json")})
	require.NoError(t, err)
	assert.IsType(t, &jsondb.JSONDB{}, db)
	require.NoError(t, db.Close())

	db, err = getStorageByType(&config.Config{})
	require.NoError(t, err)
	assert.IsType(t, &memorystorage.MemoryStorage{}, db)
	require.NoError(t, db.Close())
}

func TestNew(t *testing.T) {
	t.Setenv("SQLITE_DSN", filepath.Join(t.TempDir(), "vault.db"))
	t.Setenv("AUTH_COOKIE_SIGNING_SECRET_KEY", "c2VjdXJldmF1bHQtYXBwLXRlc3Qta2V5")

	application, err := New(config.WithDisableFlagsParsing(true))
	require.NoError(t, err)
	defer func() {
		application.stopSweeper()
		require.NoError(t, application.db.Close())
	}()

	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewRejectsBrokenConfig(t *testing.T) {
	t.Run("malformed trusted subnet", func(t *testing.T) {
		t.Setenv("AUTH_COOKIE_SIGNING_SECRET_KEY", "c2VjdXJldmF1bHQtYXBwLXRlc3Qta2V5")
		t.Setenv("TRUSTED_SUBNET", "not-a-cidr")

		_, err := New(config.WithDisableFlagsParsing(true))
		assert.Error(t, err)
	})

	t.Run("no signing key", func(t *testing.T) {
		t.Setenv("AUTH_COOKIE_SIGNING_SECRET_KEY", "")

		_, err := New(config.WithDisableFlagsParsing(true))
		assert.Error(t, err)
	})
}
