package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/stockmaster-web/config"
	"github.com/kendall-kelly/stockmaster-web/models"
	"github.com/kendall-kelly/stockmaster-web/services"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testUser = "auth0|user123"

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	return router
}

// mockAuthMiddleware authenticates every request as userID
func mockAuthMiddleware(userID, accessToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("access_token", accessToken)
		c.Next()
	}
}

// upstreamRequest is one call received by the fake warehouse API
type upstreamRequest struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	Body          map[string]interface{}
}

// fakeWarehouse is an httptest server standing in for the warehouse API.
// Paths without a handler answer 404 with a detail message.
type fakeWarehouse struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	requests []upstreamRequest
}

func newFakeWarehouse(t *testing.T) *fakeWarehouse {
	f := &fakeWarehouse{handlers: make(map[string]http.HandlerFunc)}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		req := upstreamRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
		}
		if len(raw) > 0 {
			json.Unmarshal(raw, &req.Body)
		}

		f.mu.Lock()
		f.requests = append(f.requests, req)
		handler, ok := f.handlers[r.Method+" "+r.URL.Path]
		f.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"Not found"}`))
			return
		}
		handler(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

// handle registers a handler for "METHOD /path"
func (f *fakeWarehouse) handle(route string, handler http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[route] = handler
}

// respond registers a handler answering with a fixed status and JSON body
func (f *fakeWarehouse) respond(route string, status int, body string) {
	f.handle(route, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	})
}

func (f *fakeWarehouse) calls(route string) []upstreamRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []upstreamRequest
	for _, req := range f.requests {
		if req.Method+" "+req.Path == route {
			out = append(out, req)
		}
	}
	return out
}

// setupOrderServices wires order services against an in-memory database and
// the fake warehouse. s3 may be nil to disable archiving.
func setupOrderServices(t *testing.T, upstream *fakeWarehouse, s3 services.S3Interface) *services.OrderServices {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := db.AutoMigrate(&models.DraftSession{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	// one connection, so every query sees the same in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	config.SetDB(db)

	cfg := &config.Config{
		DBDriver:        "sqlite",
		WarehouseAPIURL: upstream.URL,
		TimeZone:        "UTC",
		AuthMode:        config.AuthModeHS256,
		JWTSecret:       "test-secret",
	}
	require.NoError(t, cfg.Validate())

	var archive *services.ArchiveService
	if s3 != nil {
		archive = services.NewArchiveService(s3)
	}

	svc := services.NewOrderServices(db, services.NewWarehouseAPI(upstream.URL, 5*time.Second), archive, cfg)
	svc.Coordinator.SetClock(func() time.Time {
		return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	})
	services.SetOrderServices(svc)
	return svc
}

// newDraftRouter registers the order routes behind mock authentication
func newDraftRouter(userID string) *gin.Engine {
	router := setupTestRouter()
	api := router.Group("/api/v1", mockAuthMiddleware(userID, "mock-token"))
	RegisterOrderRoutes(api)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, _ := http.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var response map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	}
	return w, response
}

func errorCode(response map[string]interface{}) string {
	errorData, ok := response["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	code, _ := errorData["code"].(string)
	return code
}
