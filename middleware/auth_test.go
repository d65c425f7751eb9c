package middleware

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/llmgateway/llmgateway/common"
	"github.com/llmgateway/llmgateway/model"
)

func setupAuthTest(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "auth_test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Organization{}, &model.Project{}, &model.ApiKey{},
	))
	common.UsingSQLite = true
	model.DB = db

	require.NoError(t, db.Create(&model.Organization{Id: "org-1"}).Error)
	require.NoError(t, db.Create(&model.Project{Id: "proj-1", OrganizationId: "org-1"}).Error)
	require.NoError(t, db.Create(&model.ApiKey{
		Id: "key-1", Token: "sk-good", ProjectId: "proj-1", Status: model.KeyStatusActive,
	}).Error)

	server := gin.New()
	server.POST("/v1/chat/completions", TokenAuth(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return server
}

func TestTokenAuthBearerScheme(t *testing.T) {
	server := setupAuthTest(t)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "well formed", header: "Bearer sk-good", want: http.StatusOK},
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "no scheme", header: "sk-good", want: http.StatusUnauthorized},
		{name: "scheme glued to token", header: "Bearersk-good", want: http.StatusUnauthorized},
		{name: "scheme only", header: "Bearer ", want: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer sk-wrong", want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		server.ServeHTTP(recorder, req)
		assert.Equal(t, tt.want, recorder.Code, tt.name)
	}
}

func TestTokenAuthDisabledKey(t *testing.T) {
	server := setupAuthTest(t)
	require.NoError(t, model.DB.Create(&model.ApiKey{
		Id: "key-2", Token: "sk-off", ProjectId: "proj-1", Status: model.KeyStatusDisabled,
	}).Error)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	req.Header.Set("Authorization", "Bearer sk-off")
	server.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestTokenAuthUsageLimit(t *testing.T) {
	server := setupAuthTest(t)
	limit := 5.0
	require.NoError(t, model.DB.Create(&model.ApiKey{
		Id: "key-3", Token: "sk-capped", ProjectId: "proj-1",
		Status: model.KeyStatusActive, Usage: 5.0, UsageLimit: &limit,
	}).Error)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	req.Header.Set("Authorization", "Bearer sk-capped")
	server.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}
