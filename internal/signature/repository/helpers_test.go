package repository

import (
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/recoverydesk/esign/internal/signature/domain"
)

var testNow = time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)

var tokenColumnNames = []string{
	"id", "case_id", "case_number", "document_type", "recipient_name", "recipient_email",
	"recipient_phone", "prefill_data", "form_link", "status", "created_at", "updated_at",
	"expires_at", "accessed_at", "completed_at",
}

func newTestToken(t *testing.T) *domain.Token {
	t.Helper()

	prefill, err := domain.DecodePrefill(domain.DocumentTypeClaims, map[string]string{
		"client_name":          "Jane Doe",
		"client_email":         "jane@example.com",
		"vehicle_registration": "AB12 CDE",
		"accident_date":        "2026-01-15",
	})
	require.NoError(t, err)

	return domain.NewToken(
		"tok-abc",
		"case-1",
		"RD-0001",
		domain.Recipient{Name: "Jane Doe", Email: "jane@example.com"},
		prefill,
		testNow,
	)
}

// tokenRow renders token as a result row in column order.
func tokenRow(t *testing.T, token *domain.Token) []driver.Value {
	t.Helper()

	prefillData, err := domain.MarshalPrefill(token.Prefill)
	require.NoError(t, err)

	var formLink, phone, accessedAt, completedAt driver.Value
	if token.FormLink != "" {
		formLink = token.FormLink
	}
	if token.Recipient.Phone != "" {
		phone = token.Recipient.Phone
	}
	if token.AccessedAt != nil {
		accessedAt = *token.AccessedAt
	}
	if token.CompletedAt != nil {
		completedAt = *token.CompletedAt
	}

	return []driver.Value{
		token.ID,
		token.CaseID,
		token.CaseNumber,
		string(token.DocumentType),
		token.Recipient.Name,
		token.Recipient.Email,
		phone,
		prefillData,
		formLink,
		string(token.Status),
		token.CreatedAt,
		token.UpdatedAt,
		token.ExpiresAt,
		accessedAt,
		completedAt,
	}
}

func tokenRows(t *testing.T, tokens ...*domain.Token) *sqlmock.Rows {
	t.Helper()

	rows := sqlmock.NewRows(tokenColumnNames)
	for _, token := range tokens {
		rows.AddRow(tokenRow(t, token)...)
	}
	return rows
}
