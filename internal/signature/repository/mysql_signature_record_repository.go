package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/recoverydesk/esign/internal/database"
	apperrors "github.com/recoverydesk/esign/internal/errors"
	"github.com/recoverydesk/esign/internal/signature/domain"
)

// MySQLSignatureRecordRepository persists signature records in MySQL with binary UUIDs.
type MySQLSignatureRecordRepository struct {
	db *sql.DB
}

// NewMySQLSignatureRecordRepository creates a new MySQL signature record repository.
func NewMySQLSignatureRecordRepository(db *sql.DB) *MySQLSignatureRecordRepository {
	return &MySQLSignatureRecordRepository{db: db}
}

// Create inserts a record. Returns ErrSubmissionInProgress if the token already has one.
func (m *MySQLSignatureRecordRepository) Create(ctx context.Context, record *domain.SignatureRecord) error {
	querier := database.GetTx(ctx, m.db)

	id, err := record.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal signature record id")
	}

	answers, err := json.Marshal(record.Answers)
	if err != nil {
		return apperrors.Wrap(err, "failed to encode answers")
	}

	query := `INSERT INTO signature_records (id, token_id, signature_image, signer_name, signed_at,
			  ip_address, user_agent, terms_accepted, submission_id, form_id, answers, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
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
func (m *MySQLSignatureRecordRepository) GetByTokenID(
	ctx context.Context,
	tokenID string,
) (*domain.SignatureRecord, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, token_id, signature_image, signer_name, signed_at, ip_address, user_agent,
			  terms_accepted, submission_id, form_id, answers, created_at
			  FROM signature_records WHERE token_id = ?`

	var (
		record  domain.SignatureRecord
		id      []byte
		answers []byte
	)
	err := querier.QueryRowContext(ctx, query, tokenID).Scan(
		&id,
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

	if record.ID, err = uuid.FromBytes(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse signature record id")
	}
	if err := json.Unmarshal(answers, &record.Answers); err != nil {
		return nil, apperrors.Wrap(err, "failed to decode answers")
	}
	return &record, nil
}
