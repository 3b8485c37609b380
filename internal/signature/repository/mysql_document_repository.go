package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/recoverydesk/esign/internal/database"
	apperrors "github.com/recoverydesk/esign/internal/errors"
	"github.com/recoverydesk/esign/internal/signature/domain"
)

// MySQLDocumentRepository persists generated document metadata in MySQL with binary UUIDs.
type MySQLDocumentRepository struct {
	db *sql.DB
}

// NewMySQLDocumentRepository creates a new MySQL document repository.
func NewMySQLDocumentRepository(db *sql.DB) *MySQLDocumentRepository {
	return &MySQLDocumentRepository{db: db}
}

// Create inserts document metadata. A token holds at most one document.
func (m *MySQLDocumentRepository) Create(ctx context.Context, doc *domain.GeneratedDocument) error {
	querier := database.GetTx(ctx, m.db)

	id, err := doc.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal document id")
	}

	query := `INSERT INTO generated_documents (` + documentColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		doc.CaseID,
		doc.TokenID,
		doc.StoragePath,
		doc.EncryptionAlgorithm,
		doc.KeyVersion,
		doc.IntegrityHash,
		doc.Size,
		doc.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrDocumentExists
		}
		return apperrors.Wrap(err, "failed to create generated document")
	}
	return nil
}

// Get retrieves document metadata by ID.
func (m *MySQLDocumentRepository) Get(ctx context.Context, id uuid.UUID) (*domain.GeneratedDocument, error) {
	querier := database.GetTx(ctx, m.db)

	key, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal document id")
	}

	query := `SELECT ` + documentColumns + ` FROM generated_documents WHERE id = ?`

	return m.scanOne(querier.QueryRowContext(ctx, query, key))
}

// GetByTokenID retrieves the document produced for a token.
func (m *MySQLDocumentRepository) GetByTokenID(
	ctx context.Context,
	tokenID string,
) (*domain.GeneratedDocument, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + documentColumns + ` FROM generated_documents WHERE token_id = ?`

	return m.scanOne(querier.QueryRowContext(ctx, query, tokenID))
}

// ListByCase returns every document of a case, newest first.
func (m *MySQLDocumentRepository) ListByCase(
	ctx context.Context,
	caseID string,
) ([]*domain.GeneratedDocument, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + documentColumns + ` FROM generated_documents WHERE case_id = ? ORDER BY created_at DESC`

	rows, err := querier.QueryContext(ctx, query, caseID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list generated documents")
	}
	defer rows.Close() //nolint:errcheck

	docs := make([]*domain.GeneratedDocument, 0)
	for rows.Next() {
		doc, err := scanMySQLDocument(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan generated document")
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate generated documents")
	}
	return docs, nil
}

func (m *MySQLDocumentRepository) scanOne(row *sql.Row) (*domain.GeneratedDocument, error) {
	doc, err := scanMySQLDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get generated document")
	}
	return doc, nil
}

func scanMySQLDocument(row rowScanner) (*domain.GeneratedDocument, error) {
	var (
		doc domain.GeneratedDocument
		id  []byte
	)
	if err := scanDocument(row, &doc, &id); err != nil {
		return nil, err
	}

	parsed, err := uuid.FromBytes(id)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse document id")
	}
	doc.ID = parsed
	return &doc, nil
}
