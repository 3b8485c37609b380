// Package repository persists signature tokens, signature records and generated
// document metadata in PostgreSQL and MySQL.
package repository

import (
	"database/sql"
	"time"

	apperrors "github.com/recoverydesk/esign/internal/errors"
	"github.com/recoverydesk/esign/internal/signature/domain"
)

const tokenColumns = `id, case_id, case_number, document_type, recipient_name, recipient_email,
	recipient_phone, prefill_data, form_link, status, created_at, updated_at, expires_at,
	accessed_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (*domain.Token, error) {
	var (
		token        domain.Token
		documentType string
		status       string
		email        sql.NullString
		phone        sql.NullString
		prefillData  []byte
		formLink     sql.NullString
		accessedAt   sql.NullTime
		completedAt  sql.NullTime
	)

	err := row.Scan(
		&token.ID,
		&token.CaseID,
		&token.CaseNumber,
		&documentType,
		&token.Recipient.Name,
		&email,
		&phone,
		&prefillData,
		&formLink,
		&status,
		&token.CreatedAt,
		&token.UpdatedAt,
		&token.ExpiresAt,
		&accessedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	token.DocumentType = domain.DocumentType(documentType)
	token.Status = domain.Status(status)
	token.Recipient.Email = email.String
	token.Recipient.Phone = phone.String
	token.FormLink = formLink.String
	token.AccessedAt = timePtr(accessedAt)
	token.CompletedAt = timePtr(completedAt)

	token.Prefill, err = domain.UnmarshalPrefill(token.DocumentType, prefillData)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to decode token prefill")
	}

	return &token, nil
}

func scanTokens(rows *sql.Rows) ([]*domain.Token, error) {
	tokens := make([]*domain.Token, 0)
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan token")
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate tokens")
	}
	return tokens, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// transitionTimestamps returns the accessed_at/completed_at values to set for a
// transition into next. A nil value leaves the column unchanged.
func transitionTimestamps(next domain.Status, at time.Time) (accessedAt, completedAt *time.Time) {
	switch next {
	case domain.StatusAccessed:
		return &at, nil
	case domain.StatusCompleted:
		return nil, &at
	default:
		return nil, nil
	}
}
