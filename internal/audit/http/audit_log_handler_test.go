package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auditDomain "github.com/recoverydesk/esign/internal/audit/domain"
	"github.com/recoverydesk/esign/internal/audit/http/dto"
	"github.com/recoverydesk/esign/internal/audit/usecase/mocks"
	"github.com/recoverydesk/esign/internal/testutil"
)

func setupTestAuditLogHandler(t *testing.T) (*AuditLogHandler, *mocks.MockAuditLogUseCase) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	mockAuditLogUseCase := mocks.NewMockAuditLogUseCase(t)
	handler := NewAuditLogHandler(mockAuditLogUseCase, testutil.NewTestLogger())

	return handler, mockAuditLogUseCase
}

func createTestContext(method, path, caseID string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, nil)
	c.Params = gin.Params{{Key: "case_id", Value: caseID}}
	return c, w
}

func TestAuditLogHandler_ListByCaseHandler(t *testing.T) {
	t.Run("Success_DefaultPagination", func(t *testing.T) {
		handler, mockUseCase := setupTestAuditLogHandler(t)

		now := time.Now().UTC().Truncate(time.Microsecond)
		logs := []*auditDomain.AuditLog{
			{ID: uuid.Must(uuid.NewV7()), CaseID: "C-1", TokenID: "tok-1", Action: auditDomain.ActionTokenIssued, CreatedAt: now},
			{ID: uuid.Must(uuid.NewV7()), CaseID: "C-1", TokenID: "tok-1", Action: auditDomain.ActionNotificationSent, CreatedAt: now},
		}

		mockUseCase.On("List", mock.Anything, auditDomain.Filter{CaseID: "C-1", Limit: 50}).Return(logs, nil).Once()

		c, w := createTestContext(http.MethodGet, "/v1/cases/C-1/audit-logs", "C-1")
		handler.ListByCaseHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)

		var response dto.ListAuditLogsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Len(t, response.Data, 2)
		assert.Equal(t, "token_issued", response.Data[0].Action)
		assert.Equal(t, "notification_sent", response.Data[1].Action)
	})

	t.Run("Success_TimeRange", func(t *testing.T) {
		handler, mockUseCase := setupTestAuditLogHandler(t)

		from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2026, 2, 14, 23, 59, 59, 0, time.UTC)

		mockUseCase.On("List", mock.Anything, mock.MatchedBy(func(f auditDomain.Filter) bool {
			return f.CaseID == "C-1" && f.Offset == 10 && f.Limit == 5 &&
				f.CreatedAtFrom.Equal(from) && f.CreatedAtTo.Equal(to)
		})).Return([]*auditDomain.AuditLog{}, nil).Once()

		c, w := createTestContext(http.MethodGet,
			"/v1/cases/C-1/audit-logs?offset=10&limit=5&from=2026-02-01T00:00:00Z&to=2026-02-14T23:59:59Z", "C-1")
		handler.ListByCaseHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data":[]}`, w.Body.String())
	})

	t.Run("Error_InvalidLimit", func(t *testing.T) {
		handler, _ := setupTestAuditLogHandler(t)

		c, w := createTestContext(http.MethodGet, "/v1/cases/C-1/audit-logs?limit=1000", "C-1")
		handler.ListByCaseHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Error_InvertedRange", func(t *testing.T) {
		handler, _ := setupTestAuditLogHandler(t)

		c, w := createTestContext(http.MethodGet,
			"/v1/cases/C-1/audit-logs?from=2026-02-14T00:00:00Z&to=2026-02-01T00:00:00Z", "C-1")
		handler.ListByCaseHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Error_MissingCaseID", func(t *testing.T) {
		handler, _ := setupTestAuditLogHandler(t)

		c, w := createTestContext(http.MethodGet, "/v1/cases/%20/audit-logs", " ")
		handler.ListByCaseHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Error_UseCase", func(t *testing.T) {
		handler, mockUseCase := setupTestAuditLogHandler(t)

		mockUseCase.On("List", mock.Anything, mock.Anything).Return(nil, errors.New("database down")).Once()

		c, w := createTestContext(http.MethodGet, "/v1/cases/C-1/audit-logs", "C-1")
		handler.ListByCaseHandler(c)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
