package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/stockmaster-web/config"
	"github.com/kendall-kelly/stockmaster-web/controllers"
	"github.com/kendall-kelly/stockmaster-web/middleware"
	"github.com/kendall-kelly/stockmaster-web/models"
	"github.com/kendall-kelly/stockmaster-web/services"
	"github.com/kendall-kelly/stockmaster-web/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

const jwtSecret = "integration-secret"

// upstreamReply is a canned warehouse API response
type upstreamReply struct {
	status int
	body   string
}

// DraftIntegrationTestSuite runs the order form workflow through the real
// authentication middleware against a fake warehouse API
type DraftIntegrationTestSuite struct {
	suite.Suite
	router   *gin.Engine
	db       *gorm.DB
	cfg      *config.Config
	upstream *httptest.Server
	s3       *services.MockS3Service

	mu        sync.Mutex
	responses map[string]upstreamReply
	received  []map[string]interface{}
	token     string
}

// SetupSuite runs once before all tests
func (suite *DraftIntegrationTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)

	suite.upstream = httptest.NewServer(http.HandlerFunc(suite.serveUpstream))

	testutil.SetEnv(suite.T(), map[string]string{
		"GO_ENV":            "test",
		"DB_DRIVER":         "sqlite",
		"WAREHOUSE_API_URL": suite.upstream.URL + "/",
		"TIME_ZONE":         "UTC",
		"AUTH_MODE":         "HS256",
		"JWT_SECRET":        jwtSecret,
	})

	testutil.RequireTestEnvironment(suite.T())

	cfg, err := config.Load()
	suite.Require().NoError(err)
	suite.cfg = cfg
	suite.Equal(suite.upstream.URL, cfg.WarehouseAPIURL, "trailing slash is trimmed")

	suite.token = testutil.SignHS256Token(suite.T(), jwtSecret, "user-1", time.Hour)
}

// TearDownSuite runs once after all tests
func (suite *DraftIntegrationTestSuite) TearDownSuite() {
	suite.upstream.Close()
}

// SetupTest runs before each test
func (suite *DraftIntegrationTestSuite) SetupTest() {
	db := testutil.OpenDraftDB(suite.T())
	suite.db = db
	config.SetDB(db)

	suite.s3 = services.NewMockS3Service()

	warehouse := services.NewWarehouseAPI(suite.cfg.WarehouseAPIURL, suite.cfg.UpstreamTimeout)
	services.SetOrderServices(services.NewOrderServices(db, warehouse, services.NewArchiveService(suite.s3), suite.cfg))

	suite.mu.Lock()
	suite.responses = map[string]upstreamReply{}
	suite.received = nil
	suite.mu.Unlock()

	auth, err := middleware.Authenticate(suite.cfg)
	suite.Require().NoError(err)

	suite.router = gin.New()
	v1 := suite.router.Group("/api/v1")
	controllers.RegisterOrderRoutes(v1.Group("", auth))
}

func (suite *DraftIntegrationTestSuite) serveUpstream(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	json.NewDecoder(r.Body).Decode(&body)

	suite.mu.Lock()
	reply, ok := suite.responses[r.Method+" "+r.URL.Path]
	if body != nil {
		body["_route"] = r.Method + " " + r.URL.Path
		body["_authorization"] = r.Header.Get("Authorization")
		suite.received = append(suite.received, body)
	}
	suite.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Not found"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.status)
	w.Write([]byte(reply.body))
}

func (suite *DraftIntegrationTestSuite) upstreamReplies(route string, status int, body string) {
	suite.mu.Lock()
	defer suite.mu.Unlock()
	suite.responses[route] = upstreamReply{status: status, body: body}
}

func (suite *DraftIntegrationTestSuite) request(method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", testutil.BearerHeader(suite.token))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	return w, response
}

func (suite *DraftIntegrationTestSuite) mustRequest(method, path string, body interface{}, status int) map[string]interface{} {
	w, response := suite.request(method, path, body)
	suite.Require().Equal(status, w.Code, w.Body.String())
	return response
}

// TestDeliveryWorkflow_OutOfStockThenSubmit walks through a delivery that is
// rejected for stock, corrected and then accepted
func (suite *DraftIntegrationTestSuite) TestDeliveryWorkflow_OutOfStockThenSubmit() {
	t := suite.T()

	// Step 1: open the form
	response := suite.mustRequest(http.MethodPost, "/api/v1/drafts", map[string]interface{}{"kind": "delivery"}, http.StatusCreated)
	id := response["data"].(map[string]interface{})["id"].(string)
	base := "/api/v1/drafts/" + id

	// Step 2: fill the header and two lines
	for _, field := range [][2]string{
		{"delivery_address", "1 Main St"},
		{"warehouse_id", "W1"},
		{"location_id", "L1"},
		{"schedule_date", "2024-05-02"},
		{"operation_type", "sale"},
	} {
		suite.mustRequest(http.MethodPatch, base+"/header", map[string]interface{}{"field": field[0], "value": field[1]}, http.StatusOK)
	}
	suite.mustRequest(http.MethodPatch, base+"/lines/0", map[string]interface{}{"field": "product_id", "value": "P1"}, http.StatusOK)
	suite.mustRequest(http.MethodPost, base+"/lines", nil, http.StatusOK)
	suite.mustRequest(http.MethodPatch, base+"/lines/1", map[string]interface{}{"field": "product_id", "value": "P2"}, http.StatusOK)
	suite.mustRequest(http.MethodPatch, base+"/lines/1", map[string]interface{}{"field": "quantity", "value": "5"}, http.StatusOK)

	// Step 3: the warehouse rejects P2
	suite.upstreamReplies("POST /deliveries", http.StatusBadRequest, `{"detail":{"message":"Insufficient stock for some products: Gadget: Available 2, Requested 5","out_of_stock":[{"product_id":"P2","product_name":"Gadget","available_quantity":2}]}}`)
	w, response := suite.request(http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, []interface{}{float64(1)}, response["error"].(map[string]interface{})["flagged_lines"])

	// Step 4: lower the quantity and resubmit
	suite.mustRequest(http.MethodPatch, base+"/lines/1", map[string]interface{}{"field": "quantity", "value": "2"}, http.StatusOK)
	suite.upstreamReplies("POST /deliveries", http.StatusCreated, `{"id":"D1","reference":"WH/OUT/0001","status":"draft"}`)
	response = suite.mustRequest(http.MethodPost, base+"/submit", nil, http.StatusCreated)
	assert.Equal(t, "Delivery created successfully!", response["message"])

	data := response["data"].(map[string]interface{})
	key := data["archive_key"].(string)
	assert.True(t, suite.s3.ObjectExists(key))
	assert.Equal(t, "application/json", suite.s3.ContentType(key))

	var archived map[string]interface{}
	suite.Require().NoError(json.Unmarshal(suite.s3.GetObjects()[key], &archived))
	assert.Equal(t, "delivery", archived["kind"])
	assert.Equal(t, "D1", archived["record_id"])
	assert.Equal(t, "WH/OUT/0001", archived["reference"])

	// The last upstream body is the accepted payload, sent with the caller's token
	suite.mu.Lock()
	last := suite.received[len(suite.received)-1]
	suite.mu.Unlock()
	assert.Equal(t, "POST /deliveries", last["_route"])
	assert.Equal(t, testutil.BearerHeader(suite.token), last["_authorization"])
	assert.Equal(t, "2024-05-02T00:00:00Z", last["schedule_date"])
	assert.Equal(t, "sale", last["operation_type"])
	assert.Len(t, last["products"], 2)

	// Step 5: the form is closed
	suite.mustRequest(http.MethodGet, base, nil, http.StatusNotFound)
	response = suite.mustRequest(http.MethodGet, "/api/v1/drafts", nil, http.StatusOK)
	assert.Equal(t, float64(0), response["count"])
}

// TestTransferWorkflow_ValidationBlocksSubmit checks that invalid drafts never
// reach the warehouse API
func (suite *DraftIntegrationTestSuite) TestTransferWorkflow_ValidationBlocksSubmit() {
	t := suite.T()

	response := suite.mustRequest(http.MethodPost, "/api/v1/drafts", map[string]interface{}{"kind": "transfer"}, http.StatusCreated)
	base := "/api/v1/drafts/" + response["data"].(map[string]interface{})["id"].(string)

	w, response := suite.request(http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	errorData := response["error"].(map[string]interface{})
	assert.Equal(t, "From warehouse is required", errorData["message"])
	assert.Len(t, errorData["violations"], 4)

	for _, field := range [][2]string{
		{"from_warehouse_id", "W1"},
		{"from_location_id", "L1"},
		{"to_warehouse_id", "W2"},
		{"to_location_id", "L9"},
	} {
		suite.mustRequest(http.MethodPatch, base+"/header", map[string]interface{}{"field": field[0], "value": field[1]}, http.StatusOK)
	}

	w, response = suite.request(http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "Please add at least one product", response["error"].(map[string]interface{})["message"])

	suite.mu.Lock()
	assert.Empty(t, suite.received)
	suite.mu.Unlock()
}

// TestDrafts_RequireValidToken checks the HS256 middleware in front of the routes
func (suite *DraftIntegrationTestSuite) TestDrafts_RequireValidToken() {
	t := suite.T()

	tests := []struct {
		name          string
		authorization string
		expectedCode  string
	}{
		{name: "no token", expectedCode: "MISSING_TOKEN"},
		{name: "expired token", authorization: testutil.BearerHeader(testutil.SignHS256Token(t, jwtSecret, "user-1", -time.Minute)), expectedCode: "INVALID_TOKEN"},
		{name: "foreign secret", authorization: testutil.BearerHeader(testutil.SignHS256Token(t, "other-secret", "user-1", time.Hour)), expectedCode: "INVALID_TOKEN"},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/drafts", nil)
			if tt.authorization != "" {
				req.Header.Set("Authorization", tt.authorization)
			}
			w := httptest.NewRecorder()
			suite.router.ServeHTTP(w, req)

			assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
			var response map[string]interface{}
			suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(suite.T(), tt.expectedCode, response["error"].(map[string]interface{})["code"])
		})
	}
}

// TestDrafts_IsolatedPerUser checks that drafts are scoped to the token subject
func (suite *DraftIntegrationTestSuite) TestDrafts_IsolatedPerUser() {
	t := suite.T()

	response := suite.mustRequest(http.MethodPost, "/api/v1/drafts", map[string]interface{}{"kind": "receipt"}, http.StatusCreated)
	id := response["data"].(map[string]interface{})["id"].(string)

	var session models.DraftSession
	suite.Require().NoError(suite.db.First(&session, "id = ?", id).Error)
	assert.Equal(t, "user-1", session.OwnerID)

	other := testutil.SignHS256Token(t, jwtSecret, "user-2", time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/drafts/"+id, nil)
	req.Header.Set("Authorization", testutil.BearerHeader(other))
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestDraftIntegrationSuite runs the integration test suite
func TestDraftIntegrationSuite(t *testing.T) {
	suite.Run(t, new(DraftIntegrationTestSuite))
}
