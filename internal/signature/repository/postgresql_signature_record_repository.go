package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/recoverydesk/esign/internal/database"
	apperrors "github.com/recoverydesk/esign/internal/errors"
	"github.com/recoverydesk/esign/internal/signature/domain"
)

// PostgreSQLSignatureRecordRepository persists signature records in PostgreSQL.
// The unique token_id column makes the insert act as a claim on the token.
type PostgreSQLSignatureRecordRepository struct {
	db *sql.DB
}

// NewPostgreSQLSignatureRecordRepository creates a new PostgreSQL signature record repository.
func NewPostgreSQLSignatureRecordRepository(db *sql.DB) *PostgreSQLSignatureRecordRepository {
	return &PostgreSQLSignatureRecordRepository{db: db}
}

// Create inserts a record. Returns ErrSubmissionInProgress if the token already has one.
func (p *PostgreSQLSignatureRecordRepository) Create(ctx context.Context, record *domain.SignatureRecord) error {
	querier := database.GetTx(ctx, p.db)

	answers, err := json.Marshal(record.Answers)
	if err != nil {
		return apperrors.Wrap(err, "failed to encode answers")
	}

	query := `INSERT INTO signature_records (id, token_id, signature_image, signer_name, signed_at,
			  ip_address, user_agent, terms_accepted, submission_id, form_id, answers, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = querier.ExecContext(
		ctx,
		query,
		record.ID,
		record.TokenID,
		record.SignatureImage,
		record.SignerName,
		record.SignedAt,
		record.IPAddress,
		record.UserAgent,
		record.TermsAccepted,
		record.SubmissionID,
		record.FormID,
		answers,
		record.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrSubmissionInProgress
		}
		return apperrors.Wrap(err, "failed to create signature record")
	}
	return nil
}

// GetByTokenID returns the record of a token, or ErrRecordNotFound.
func (p *PostgreSQLSignatureRecordRepository) GetByTokenID(
	ctx context.Context,
	tokenID string,
) (*domain.SignatureRecord, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, token_id, signature_image, signer_name, signed_at, ip_address, user_agent,
			  terms_accepted, submission_id, form_id, answers, created_at
			  FROM signature_records WHERE token_id = $1`

	var (
		record  domain.SignatureRecord
		answers []byte
	)
	err := querier.QueryRowContext(ctx, query, tokenID).Scan(
		&record.ID,
		&record.TokenID,
		&record.SignatureImage,
		&record.SignerName,
		&record.SignedAt,
		&record.IPAddress,
		&record.UserAgent,
		&record.TermsAccepted,
		&record.SubmissionID,
		&record.FormID,
		&answers,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get signature record")
	}

	if err := json.Unmarshal(answers, &record.Answers); err != nil {
		return nil, apperrors.Wrap(err, "failed to decode answers")
	}
	return &record, nil
}
