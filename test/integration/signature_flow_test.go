// Package integration provides end-to-end tests of the signature request API.
// Tests run the full container against both PostgreSQL and MySQL.
package integration

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recoverydesk/esign/internal/app"
	auditDTO "github.com/recoverydesk/esign/internal/audit/http/dto"
	"github.com/recoverydesk/esign/internal/config"
	signatureDTO "github.com/recoverydesk/esign/internal/signature/http/dto"
	"github.com/recoverydesk/esign/internal/testutil"
)

// integrationTestContext holds all dependencies and state for integration testing.
type integrationTestContext struct {
	container *app.Container
	db        *sql.DB
	server    *httptest.Server
	dbDriver  string
}

// makeRequest performs an HTTP request and returns the response and body.
func (ctx *integrationTestContext) makeRequest(
	t *testing.T,
	method, path string,
	body any,
) (*http.Response, []byte) {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request body")
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, ctx.server.URL+path, bodyReader)
	require.NoError(t, err, "failed to create request")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	//nolint:gosec // controlled test environment with localhost URLs
	resp, err := client.Do(req)
	require.NoError(t, err, "failed to perform request")

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")
	if closeErr := resp.Body.Close(); closeErr != nil {
		t.Logf("Warning: failed to close response body: %v", closeErr)
	}

	return resp, respBody
}

func randomBase64(t *testing.T, n int) string {
	t.Helper()

	key := make([]byte, n)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(key)
}

// setupIntegrationTest initializes all components for integration testing.
func setupIntegrationTest(t *testing.T, dbDriver string) *integrationTestContext {
	t.Helper()

	gin.SetMode(gin.TestMode)

	var db *sql.DB
	var dsn string
	if dbDriver == "postgres" {
		db = testutil.SetupPostgresDB(t)
		dsn = testutil.GetPostgresTestDSN()
	} else {
		db = testutil.SetupMySQLDB(t)
		dsn = testutil.GetMySQLTestDSN()
	}

	cfg := &config.Config{
		DBDriver:             dbDriver,
		DBConnectionString:   dsn,
		DBMaxOpenConnections: 10,
		DBMaxIdleConnections: 5,
		DBConnMaxLifetime:    time.Hour,
		ServerHost:           "localhost",
		ServerPort:           8080,
		LogLevel:             "error",

		LinkMode:      "internal",
		PortalBaseURL: "https://sign.example.com",

		WebhookTokenField:      "signature_token",
		WebhookSignatureField:  "signature",
		WebhookSignerNameField: "signer_name",
		WebhookTermsField:      "terms_accepted",

		NotificationProvider:        "log",
		NotificationMaxAttempts:     1,
		NotificationInitialInterval: time.Millisecond,
		NotificationMaxInterval:     time.Millisecond,

		GenerationMaxAttempts:     1,
		GenerationInitialInterval: time.Millisecond,
		GenerationTimeout:         10 * time.Second,

		DocumentStorageURL:          "mem://",
		DocumentEncryptionAlgorithm: "aes-gcm",
		KMSKeyURI:                   "base64key://" + randomBase64(t, 32),

		AuditSigningKey:  randomBase64(t, 32),
		AuditMaxAttempts: 1,

		OutboxInterval:   time.Second,
		OutboxBatchSize:  10,
		OutboxMaxRetries: 3,
	}

	container := app.NewContainer(cfg)

	// documents cannot be sealed before the first key version exists
	documentKeyUseCase, err := container.DocumentKeyUseCase()
	require.NoError(t, err, "failed to get document key use case")
	_, err = documentKeyUseCase.Create(context.Background())
	require.NoError(t, err, "failed to create initial document key")

	httpSrv, err := container.HTTPServer()
	require.NoError(t, err, "failed to get HTTP server")

	handler := httpSrv.GetHandler()
	require.NotNil(t, handler, "handler should not be nil after SetupRouter")

	return &integrationTestContext{
		container: container,
		db:        db,
		server:    httptest.NewServer(handler),
		dbDriver:  dbDriver,
	}
}

// teardownIntegrationTest cleans up all resources.
func teardownIntegrationTest(t *testing.T, ctx *integrationTestContext) {
	t.Helper()

	if ctx.server != nil {
		ctx.server.Close()
	}

	if ctx.container != nil {
		if err := ctx.container.Shutdown(context.Background()); err != nil {
			t.Logf("Warning: container shutdown error: %v", err)
		}
	}

	if ctx.db != nil {
		testutil.TeardownDB(t, ctx.db)
	}
}

func drivers() []struct {
	name     string
	dbDriver string
} {
	return []struct {
		name     string
		dbDriver string
	}{
		{"PostgreSQL", "postgres"},
		{"MySQL", "mysql"},
	}
}

func TestIntegration_Health_BasicChecks(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	for _, tc := range drivers() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := setupIntegrationTest(t, tc.dbDriver)
			defer teardownIntegrationTest(t, ctx)

			resp, body := ctx.makeRequest(t, http.MethodGet, "/health", nil)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, string(body), "healthy")

			resp, body = ctx.makeRequest(t, http.MethodGet, "/ready", nil)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, string(body), `"ready"`)
		})
	}
}

// TestIntegration_SignatureRequest_CompleteFlow walks a token from issuance to a
// sealed, verified document and checks the audit trail it leaves.
func TestIntegration_SignatureRequest_CompleteFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	for _, tc := range drivers() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := setupIntegrationTest(t, tc.dbDriver)
			defer teardownIntegrationTest(t, ctx)

			var token string
			var documentID string

			t.Run("01_Issue", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/signature-requests", map[string]any{
					"case_id":       "C-100",
					"case_number":   "RD-100",
					"document_type": "claims",
					"recipient":     map[string]string{"name": "Jane Doe", "email": "jane@example.com"},
					"prefill": map[string]string{
						"client_name":          "Jane Doe",
						"vehicle_registration": "AB12 CDE",
						"accident_date":        "2026-01-15",
					},
					"send_via": "email",
				})
				require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

				var response signatureDTO.IssueSignatureResponse
				require.NoError(t, json.Unmarshal(body, &response))
				assert.Equal(t, "sent", response.Status)
				assert.NotNil(t, response.Delivery)
				assert.Contains(t, response.FormLink, response.Token)
				token = response.Token
			})

			t.Run("02_IssueDuplicateConflicts", func(t *testing.T) {
				resp, _ := ctx.makeRequest(t, http.MethodPost, "/v1/signature-requests", map[string]any{
					"case_id":       "C-100",
					"document_type": "claims",
					"recipient":     map[string]string{"email": "jane@example.com"},
					"prefill": map[string]string{
						"client_name":          "Jane Doe",
						"vehicle_registration": "AB12 CDE",
						"accident_date":        "2026-01-15",
					},
				})
				assert.Equal(t, http.StatusConflict, resp.StatusCode)
			})

			t.Run("03_Validate", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodGet, "/v1/signature-requests/"+token, nil)
				require.Equal(t, http.StatusOK, resp.StatusCode)

				var state signatureDTO.TokenStateResponse
				require.NoError(t, json.Unmarshal(body, &state))
				assert.True(t, state.IsValid)
				assert.NotEmpty(t, state.Fields)
			})

			t.Run("04_Access", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/signature-requests/"+token+"/access", nil)
				require.Equal(t, http.StatusOK, resp.StatusCode)
				assert.Contains(t, string(body), `"accessed"`)
			})

			t.Run("05_Submit", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/forms/"+token+"/submit", map[string]any{
					"signature_image": "data:image/png;base64,iVBORw0KGgo=",
					"signer_name":     "Jane Doe",
					"terms_accepted":  true,
				})
				require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

				var response signatureDTO.CompletionResponse
				require.NoError(t, json.Unmarshal(body, &response))
				assert.Equal(t, "completed", response.Status)
				require.NotEmpty(t, response.DocumentID)
				documentID = response.DocumentID
			})

			t.Run("06_SubmitAgainIsDuplicate", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/forms/"+token+"/submit", map[string]any{
					"signature_image": "data:image/png;base64,iVBORw0KGgo=",
					"signer_name":     "Jane Doe",
					"terms_accepted":  true,
				})
				require.Equal(t, http.StatusOK, resp.StatusCode)
				assert.Contains(t, string(body), `"duplicate"`)
			})

			t.Run("07_VerifyDocument", func(t *testing.T) {
				resp, body := ctx.makeRequest(
					t,
					http.MethodGet,
					"/v1/documents/"+documentID+"/verify?decrypt=true",
					nil,
				)
				require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

				var verification signatureDTO.DocumentVerificationResponse
				require.NoError(t, json.Unmarshal(body, &verification))
				assert.True(t, verification.HashMatches)
				assert.True(t, verification.Decrypted)
				assert.Equal(t, uint(1), verification.KeyVersion)
				assert.Positive(t, verification.PlaintextSize)
			})

			t.Run("08_ListByCase", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodGet, "/v1/cases/C-100/signature-requests", nil)
				require.Equal(t, http.StatusOK, resp.StatusCode)

				var list signatureDTO.ListSignatureRequestsResponse
				require.NoError(t, json.Unmarshal(body, &list))
				require.Len(t, list.Data, 1)
				assert.Equal(t, "completed", list.Data[0].Status)
			})

			t.Run("09_ProcessCompletionEvent", func(t *testing.T) {
				worker, err := ctx.container.OutboxWorker()
				require.NoError(t, err)
				require.NoError(t, worker.ProcessEvents(context.Background()))

				var pending int
				require.NoError(t, ctx.db.QueryRow(
					"SELECT COUNT(*) FROM outbox_events WHERE status = 'pending'",
				).Scan(&pending))
				assert.Zero(t, pending)
			})

			t.Run("10_AuditTrail", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodGet, "/v1/cases/C-100/audit-logs", nil)
				require.Equal(t, http.StatusOK, resp.StatusCode)

				var list auditDTO.ListAuditLogsResponse
				require.NoError(t, json.Unmarshal(body, &list))

				actions := make([]string, 0, len(list.Data))
				for _, entry := range list.Data {
					actions = append(actions, entry.Action)
					assert.True(t, entry.IsSigned)
				}
				assert.Contains(t, actions, "token_issued")
				assert.Contains(t, actions, "notification_sent")
				assert.Contains(t, actions, "form_accessed")
				assert.Contains(t, actions, "document_signed")
			})

			t.Run("11_AuditTamperDetected", func(t *testing.T) {
				auditLogUseCase, err := ctx.container.AuditLogUseCase()
				require.NoError(t, err)

				report, err := auditLogUseCase.Verify(context.Background(), nil, nil)
				require.NoError(t, err)
				require.True(t, report.Passed())
				require.Positive(t, report.Valid)

				_, err = ctx.db.Exec("UPDATE audit_logs SET case_id = 'C-999' WHERE action = 'form_accessed'")
				require.NoError(t, err)

				report, err = auditLogUseCase.Verify(context.Background(), nil, nil)
				require.NoError(t, err)
				assert.False(t, report.Passed())
				assert.Len(t, report.Invalid, 1)
			})
		})
	}
}
