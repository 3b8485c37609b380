package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/recoverydesk/esign/internal/database"
	apperrors "github.com/recoverydesk/esign/internal/errors"
	"github.com/recoverydesk/esign/internal/signature/domain"
)

// PostgreSQLTokenRepository persists signature tokens in PostgreSQL. The partial
// unique index signature_tokens_one_active_idx enforces one active token per case
// and document type.
type PostgreSQLTokenRepository struct {
	db *sql.DB
}

// NewPostgreSQLTokenRepository creates a new PostgreSQL token repository.
func NewPostgreSQLTokenRepository(db *sql.DB) *PostgreSQLTokenRepository {
	return &PostgreSQLTokenRepository{db: db}
}

// Create inserts a token. A concurrent active token for the same case and document
// type surfaces as ErrPendingTokenExists.
func (p *PostgreSQLTokenRepository) Create(ctx context.Context, token *domain.Token) error {
	querier := database.GetTx(ctx, p.db)

	prefillData, err := domain.MarshalPrefill(token.Prefill)
	if err != nil {
		return apperrors.Wrap(err, "failed to encode prefill")
	}

	query := `INSERT INTO signature_tokens (id, case_id, case_number, document_type, recipient_name,
			  recipient_email, recipient_phone, prefill_data, form_link, status, created_at, updated_at,
			  expires_at, accessed_at, completed_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = querier.ExecContext(
		ctx,
		query,
		token.ID,
		token.CaseID,
		token.CaseNumber,
		string(token.DocumentType),
		token.Recipient.Name,
		nullString(token.Recipient.Email),
		nullString(token.Recipient.Phone),
		prefillData,
		nullString(token.FormLink),
		string(token.Status),
		token.CreatedAt,
		token.UpdatedAt,
		token.ExpiresAt,
		token.AccessedAt,
		token.CompletedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrPendingTokenExists
		}
		return apperrors.Wrap(err, "failed to create signature token")
	}
	return nil
}

// Get retrieves a token by ID. Returns ErrTokenNotFound when absent.
func (p *PostgreSQLTokenRepository) Get(ctx context.Context, id string) (*domain.Token, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + tokenColumns + ` FROM signature_tokens WHERE id = $1`

	token, err := scanToken(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get signature token")
	}
	return token, nil
}

// GetActive returns the non-terminal token for a case and document type.
func (p *PostgreSQLTokenRepository) GetActive(
	ctx context.Context,
	caseID string,
	documentType domain.DocumentType,
) (*domain.Token, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + tokenColumns + ` FROM signature_tokens
			  WHERE case_id = $1 AND document_type = $2 AND status IN ('pending', 'sent', 'accessed')`

	token, err := scanToken(querier.QueryRowContext(ctx, query, caseID, string(documentType)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get active signature token")
	}
	return token, nil
}

// ListByCase returns every token of a case, newest first.
func (p *PostgreSQLTokenRepository) ListByCase(ctx context.Context, caseID string) ([]*domain.Token, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + tokenColumns + ` FROM signature_tokens WHERE case_id = $1 ORDER BY created_at DESC`

	rows, err := querier.QueryContext(ctx, query, caseID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list signature tokens")
	}
	defer rows.Close() //nolint:errcheck

	return scanTokens(rows)
}

// ListOverdue returns active tokens whose expiry is before now, oldest first.
func (p *PostgreSQLTokenRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*domain.Token, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + tokenColumns + ` FROM signature_tokens
			  WHERE status IN ('pending', 'sent', 'accessed') AND expires_at < $1
			  ORDER BY expires_at ASC LIMIT $2`

	rows, err := querier.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list overdue signature tokens")
	}
	defer rows.Close() //nolint:errcheck

	return scanTokens(rows)
}

// UpdateFormLink sets the form link of an active token. Returns ErrStatusConflict
// if the token is no longer active.
func (p *PostgreSQLTokenRepository) UpdateFormLink(ctx context.Context, id, link string, at time.Time) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE signature_tokens SET form_link = $1, updated_at = $2
			  WHERE id = $3 AND status IN ('pending', 'sent', 'accessed')`

	result, err := querier.ExecContext(ctx, query, link, at, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to update form link")
	}
	return requireOneRow(result)
}

// TransitionStatus moves a token from expected to next only if its status is still
// expected. Returns ErrStatusConflict when another writer got there first.
func (p *PostgreSQLTokenRepository) TransitionStatus(
	ctx context.Context,
	id string,
	expected, next domain.Status,
	at time.Time,
) error {
	querier := database.GetTx(ctx, p.db)

	accessedAt, completedAt := transitionTimestamps(next, at)

	query := `UPDATE signature_tokens
			  SET status = $1, updated_at = $2,
			      accessed_at = COALESCE($3, accessed_at),
			      completed_at = COALESCE($4, completed_at)
			  WHERE id = $5 AND status = $6`

	result, err := querier.ExecContext(ctx, query, string(next), at, accessedAt, completedAt, id, string(expected))
	if err != nil {
		return apperrors.Wrap(err, "failed to transition signature token")
	}
	return requireOneRow(result)
}

func requireOneRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return domain.ErrStatusConflict
	}
	return nil
}
