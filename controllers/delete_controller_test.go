package controllers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/blogem/hard-delete-gate/authenticator"
	"github.com/blogem/hard-delete-gate/database"
	"github.com/blogem/hard-delete-gate/middleware"
	"github.com/blogem/hard-delete-gate/models"
	"github.com/blogem/hard-delete-gate/repositories"
	"github.com/blogem/hard-delete-gate/services"
)

const reason = "Duplicate product created by the nightly importer"

// DeleteControllerTestSuite drives the HTTP surface end to end over a real database
type DeleteControllerTestSuite struct {
	suite.Suite
	db     *sql.DB
	router *chi.Mux
	tokens map[string]string
}

// SetupTest wires the full stack before each test
func (suite *DeleteControllerTestSuite) SetupTest() {
	db, err := database.InitializeDatabase(filepath.Join(suite.T().TempDir(), "test.db"))
	require.NoError(suite.T(), err)
	suite.db = db

	srvs := services.NewServices(repositories.NewRepositories(db), services.DeletePolicy{
		AllowedTables:    []string{"users", "brands", "products", "product_submissions"},
		CoolingPeriod:    24 * time.Hour,
		TokenTTL:         48 * time.Hour,
		ExecutionTimeout: 5 * time.Second,
	})
	ctrl := NewControllers(srvs, db, nil)

	verifier, err := authenticator.NewJWTVerifier("controller-test-secret", "")
	require.NoError(suite.T(), err)

	suite.tokens = make(map[string]string)
	for name, identity := range map[string]models.Identity{
		"alice":        {ID: "admin-1", Email: "alice@example.com", Role: "admin"},
		"bob":          {ID: "admin-2", Email: "bob@example.com", Role: "super_admin"},
		"alice-shouty": {ID: "admin-9", Email: "ALICE@example.com", Role: "admin"},
		"viewer":       {ID: "viewer-1", Email: "vic@example.com", Role: "viewer"},
	} {
		token, err := verifier.Sign(identity, time.Hour)
		require.NoError(suite.T(), err)
		suite.tokens[name] = token
	}

	r := chi.NewRouter()
	r.Use(middleware.ClientInfo)
	r.Get("/health", ctrl.Dashboard.Health)
	r.Route("/admin/delete", func(r chi.Router) {
		r.Use(middleware.RequireBearer(verifier, []string{"admin", "super_admin"}))
		ctrl.RegisterAdminRoutes(r)
	})
	suite.router = r

	suite.exec(`INSERT INTO users (id, email) VALUES ('u1', 'u1@example.com')`)
	suite.exec(`INSERT INTO brands (id, name) VALUES ('b1', 'Acme Foods')`)
	suite.exec(`INSERT INTO products (id, name, brand_id, created_by) VALUES ('p1', 'Oat Bar', 'b1', 'u1')`)
	suite.exec(`INSERT INTO products (id, name, brand_id) VALUES ('p2', 'Rice Bar', 'b1')`)
}

// TearDownTest closes the database after each test
func (suite *DeleteControllerTestSuite) TearDownTest() {
	suite.db.Close()
}

func (suite *DeleteControllerTestSuite) exec(query string, args ...interface{}) {
	_, err := suite.db.Exec(query, args...)
	require.NoError(suite.T(), err, query)
}

func (suite *DeleteControllerTestSuite) do(method, path, user string, body interface{}) (int, map[string]interface{}) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(suite.T(), err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+suite.tokens[user])
	}
	rec := httptest.NewRecorder()
	suite.router.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	require.NoError(suite.T(), json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	return rec.Code, decoded
}

// softDeleteAndAge soft deletes through the API and backdates the timestamp past the cooling period
func (suite *DeleteControllerTestSuite) softDeleteAndAge(table, id string) {
	status, body := suite.do(http.MethodPost, "/admin/delete/soft", "alice", map[string]string{
		"table_name": table, "record_id": id, "reason": reason,
	})
	require.Equal(suite.T(), http.StatusOK, status, body)
	assert.Equal(suite.T(), true, body["success"])
	assert.NotEmpty(suite.T(), body["operation_id"])

	suite.exec(`UPDATE `+table+` SET soft_deleted_at = ? WHERE id = ?`, time.Now().UTC().Add(-25*time.Hour), id)
}

func (suite *DeleteControllerTestSuite) request(table, id string) (string, string) {
	status, body := suite.do(http.MethodPost, "/admin/delete/hard/request", "alice", map[string]string{
		"table_name": table, "record_id": id, "reason": reason, "urgency": "high",
	})
	require.Equal(suite.T(), http.StatusCreated, status, body)
	return body["request_id"].(string), body["approval_token"].(string)
}

// TestHappyPath soft deletes, requests, approves and ends with the record gone
func (suite *DeleteControllerTestSuite) TestHappyPath() {
	suite.softDeleteAndAge("products", "p2")

	requestID, token := suite.request("products", "p2")
	assert.Regexp(suite.T(), `^hdel_`, token)

	status, body := suite.do(http.MethodPost, "/admin/delete/hard/approve", "bob", map[string]string{
		"request_id": requestID, "approval_token": token,
	})
	require.Equal(suite.T(), http.StatusOK, status, body)
	assert.Equal(suite.T(), "executed", body["status"])
	assert.NotNil(suite.T(), body["executed_at"])

	var count int
	require.NoError(suite.T(), suite.db.QueryRow(`SELECT COUNT(*) FROM products WHERE id = 'p2'`).Scan(&count))
	assert.Equal(suite.T(), 0, count)

	status, body = suite.do(http.MethodGet, "/admin/delete/requests/"+requestID, "alice", nil)
	require.Equal(suite.T(), http.StatusOK, status)

	request := body["request"].(map[string]interface{})
	assert.Equal(suite.T(), "executed", request["status"])
	assert.NotContains(suite.T(), request, "approval_token")

	trail := body["audit_trail"].([]interface{})
	require.Len(suite.T(), trail, 3)
	wantActions := []string{"hard_delete_requested", "hard_delete_approved", "hard_delete_executed"}
	for i, raw := range trail {
		assert.Equal(suite.T(), wantActions[i], raw.(map[string]interface{})["action"])
	}
	first := trail[0].(map[string]interface{})
	second := trail[1].(map[string]interface{})
	assert.NotEqual(suite.T(), first["requester_email"], second["approver_email"])
	assert.Equal(suite.T(), "bob@example.com", second["approver_email"])
}

// TestRejectPath leaves the record in place and refuses execution
func (suite *DeleteControllerTestSuite) TestRejectPath() {
	suite.softDeleteAndAge("products", "p2")
	requestID, token := suite.request("products", "p2")

	status, body := suite.do(http.MethodPost, "/admin/delete/hard/approve", "bob", map[string]string{
		"request_id": requestID, "approval_token": token, "decision": "reject",
		"rejection_reason": "Needed for the recall report",
	})
	require.Equal(suite.T(), http.StatusOK, status, body)
	assert.Equal(suite.T(), "rejected", body["status"])
	assert.Nil(suite.T(), body["executed_at"])

	status, body = suite.do(http.MethodPost, "/admin/delete/hard/execute", "bob", map[string]string{
		"request_id": requestID,
	})
	assert.Equal(suite.T(), http.StatusConflict, status)
	assert.Equal(suite.T(), "INVALID_STATE", body["code"])

	status, body = suite.do(http.MethodGet, "/admin/delete/requests/"+requestID, "alice", nil)
	require.Equal(suite.T(), http.StatusOK, status)
	assert.Len(suite.T(), body["audit_trail"], 2)
}

// TestSelfApproval is forbidden for the same id or the same email in another case
func (suite *DeleteControllerTestSuite) TestSelfApproval() {
	suite.softDeleteAged()
	requestID, token := suite.request("products", "p2")

	for _, user := range []string{"alice", "alice-shouty"} {
		status, body := suite.do(http.MethodPost, "/admin/delete/hard/approve", user, map[string]string{
			"request_id": requestID, "approval_token": token,
		})
		assert.Equal(suite.T(), http.StatusForbidden, status, user)
		assert.Equal(suite.T(), "DUAL_APPROVAL_VIOLATION", body["code"], user)
		assert.Equal(suite.T(), false, body["success"])
		assert.NotEmpty(suite.T(), body["message"])
	}
}

func (suite *DeleteControllerTestSuite) softDeleteAged() {
	suite.softDeleteAndAge("products", "p2")
}

// TestDuplicateRequest returns 409 with the existing request id
func (suite *DeleteControllerTestSuite) TestDuplicateRequest() {
	suite.softDeleteAged()
	requestID, _ := suite.request("products", "p2")

	status, body := suite.do(http.MethodPost, "/admin/delete/hard/request", "bob", map[string]string{
		"table_name": "products", "record_id": "p2", "reason": reason,
	})
	assert.Equal(suite.T(), http.StatusConflict, status)
	assert.Equal(suite.T(), "DUPLICATE_REQUEST", body["code"])
	assert.Equal(suite.T(), requestID, body["existing_request_id"])
	details := body["details"].(map[string]interface{})
	assert.Equal(suite.T(), requestID, details["existing_request_id"])
}

// TestErrorCodes maps service failures onto status codes
func (suite *DeleteControllerTestSuite) TestErrorCodes() {
	tests := []struct {
		name       string
		path       string
		body       map[string]string
		wantStatus int
		wantCode   string
	}{
		{"protected table", "/admin/delete/soft",
			map[string]string{"table_name": "audit_logs", "record_id": "x", "reason": reason},
			http.StatusBadRequest, "INVALID_TABLE"},
		{"unknown table", "/admin/delete/soft",
			map[string]string{"table_name": "invalid_table", "record_id": "x", "reason": reason},
			http.StatusBadRequest, "INVALID_TABLE"},
		{"short reason", "/admin/delete/soft",
			map[string]string{"table_name": "products", "record_id": "p2", "reason": "short"},
			http.StatusBadRequest, "INVALID_REASON"},
		{"missing record id", "/admin/delete/soft",
			map[string]string{"table_name": "products", "reason": reason},
			http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing record", "/admin/delete/soft",
			map[string]string{"table_name": "products", "record_id": "nope", "reason": reason},
			http.StatusNotFound, "RECORD_NOT_FOUND"},
		{"not soft deleted", "/admin/delete/hard/request",
			map[string]string{"table_name": "products", "record_id": "p2", "reason": reason},
			http.StatusBadRequest, "NOT_SOFT_DELETED"},
		{"bad urgency", "/admin/delete/hard/request",
			map[string]string{"table_name": "products", "record_id": "p2", "reason": reason, "urgency": "yesterday"},
			http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown request", "/admin/delete/hard/approve",
			map[string]string{"request_id": "nope", "approval_token": "hdel_x"},
			http.StatusNotFound, "RECORD_NOT_FOUND"},
		{"bad decision", "/admin/delete/hard/approve",
			map[string]string{"request_id": "nope", "approval_token": "hdel_x", "decision": "maybe"},
			http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			status, body := suite.do(http.MethodPost, tt.path, "alice", tt.body)
			assert.Equal(suite.T(), tt.wantStatus, status, body)
			assert.Equal(suite.T(), tt.wantCode, body["code"])
		})
	}
}

// TestDependenciesExist lists the blocking tables
func (suite *DeleteControllerTestSuite) TestDependenciesExist() {
	suite.softDeleteAndAge("brands", "b1")

	status, body := suite.do(http.MethodPost, "/admin/delete/hard/request", "alice", map[string]string{
		"table_name": "brands", "record_id": "b1", "reason": reason,
	})
	assert.Equal(suite.T(), http.StatusConflict, status)
	assert.Equal(suite.T(), "DEPENDENCIES_EXIST", body["code"])
	dependents := body["details"].(map[string]interface{})["dependents"].(map[string]interface{})
	assert.Equal(suite.T(), float64(2), dependents["products"])
}

// TestAuthentication rejects missing credentials and non admin roles
func (suite *DeleteControllerTestSuite) TestAuthentication() {
	status, body := suite.do(http.MethodGet, "/admin/delete/requests", "", nil)
	assert.Equal(suite.T(), http.StatusUnauthorized, status)
	assert.Equal(suite.T(), "UNAUTHORIZED", body["code"])

	status, body = suite.do(http.MethodGet, "/admin/delete/requests", "viewer", nil)
	assert.Equal(suite.T(), http.StatusForbidden, status)
	assert.Equal(suite.T(), "FORBIDDEN", body["code"])
}

// TestListRequests supports filters and pagination
func (suite *DeleteControllerTestSuite) TestListRequests() {
	suite.softDeleteAged()
	requestID, _ := suite.request("products", "p2")

	status, body := suite.do(http.MethodGet, "/admin/delete/requests?status=pending_approval&table_name=products&limit=10", "bob", nil)
	require.Equal(suite.T(), http.StatusOK, status, body)
	assert.Equal(suite.T(), float64(1), body["total"])
	assert.Equal(suite.T(), float64(10), body["limit"])
	assert.Equal(suite.T(), float64(0), body["offset"])
	requests := body["requests"].([]interface{})
	require.Len(suite.T(), requests, 1)
	assert.Equal(suite.T(), requestID, requests[0].(map[string]interface{})["id"])
	assert.NotContains(suite.T(), requests[0], "approval_token")

	status, body = suite.do(http.MethodGet, "/admin/delete/requests?status=executed", "bob", nil)
	require.Equal(suite.T(), http.StatusOK, status)
	assert.Equal(suite.T(), float64(0), body["total"])
	assert.Empty(suite.T(), body["requests"])

	status, body = suite.do(http.MethodGet, "/admin/delete/requests?limit=abc", "bob", nil)
	assert.Equal(suite.T(), http.StatusBadRequest, status)
	assert.Equal(suite.T(), "VALIDATION_ERROR", body["code"])

	status, body = suite.do(http.MethodGet, "/admin/delete/requests/does-not-exist", "bob", nil)
	assert.Equal(suite.T(), http.StatusNotFound, status)
	assert.Equal(suite.T(), "RECORD_NOT_FOUND", body["code"])

	status, body = suite.do(http.MethodGet, "/admin/delete/summary", "bob", nil)
	require.Equal(suite.T(), http.StatusOK, status)
	counts := body["counts"].(map[string]interface{})
	assert.Equal(suite.T(), float64(1), counts["pending_approval"])
	assert.Equal(suite.T(), float64(0), counts["executed"])
}

// TestRestore brings a soft-deleted record back
func (suite *DeleteControllerTestSuite) TestRestore() {
	suite.softDeleteAged()

	status, body := suite.do(http.MethodPost, "/admin/delete/restore", "bob", map[string]string{
		"table_name": "products", "record_id": "p2", "reason": "Soft deleted the wrong product",
	})
	require.Equal(suite.T(), http.StatusOK, status, body)
	assert.NotEmpty(suite.T(), body["restored_at"])

	var softDeletedAt sql.NullTime
	require.NoError(suite.T(), suite.db.QueryRow(`SELECT soft_deleted_at FROM products WHERE id = 'p2'`).Scan(&softDeletedAt))
	assert.False(suite.T(), softDeletedAt.Valid)
}

// TestHealth reports the schema version
func (suite *DeleteControllerTestSuite) TestHealth() {
	status, body := suite.do(http.MethodGet, "/health", "", nil)
	require.Equal(suite.T(), http.StatusOK, status)
	assert.Equal(suite.T(), "healthy", body["status"])
	assert.Equal(suite.T(), float64(2), body["schema_version"])
}

// TestDeleteControllerTestSuite runs the test suite
func TestDeleteControllerTestSuite(t *testing.T) {
	suite.Run(t, new(DeleteControllerTestSuite))
}
