package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	auditDomain "github.com/recoverydesk/esign/internal/audit/domain"
	"github.com/recoverydesk/esign/internal/database"
	apperrors "github.com/recoverydesk/esign/internal/errors"
)

// MySQLAuditLogRepository stores audit entries in MySQL with binary UUIDs.
type MySQLAuditLogRepository struct {
	db *sql.DB
}

// NewMySQLAuditLogRepository creates a new MySQL audit log repository.
func NewMySQLAuditLogRepository(db *sql.DB) *MySQLAuditLogRepository {
	return &MySQLAuditLogRepository{db: db}
}

// Create appends an entry. Appending an ID that already exists does nothing.
func (m *MySQLAuditLogRepository) Create(ctx context.Context, auditLog *auditDomain.AuditLog) error {
	querier := database.GetTx(ctx, m.db)

	id, err := auditLog.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal audit log id")
	}

	metadataJSON, err := marshalMetadata(auditLog.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO audit_logs (` + auditLogColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE id = id`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		auditLog.CaseID,
		auditLog.TokenID,
		string(auditLog.Action),
		auditLog.ActorIP,
		auditLog.ActorUserAgent,
		metadataJSON,
		auditLog.Signature,
		auditLog.IsSigned,
		auditLog.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create audit log")
	}
	return nil
}

// List returns entries matching filter, oldest first.
func (m *MySQLAuditLogRepository) List(
	ctx context.Context,
	filter auditDomain.Filter,
) ([]*auditDomain.AuditLog, error) {
	querier := database.GetTx(ctx, m.db)

	where, args := buildWhere(filter, func(int) string { return "?" })
	query := `SELECT ` + auditLogColumns + ` FROM audit_logs` + where +
		` ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit logs")
	}
	defer func() {
		_ = rows.Close()
	}()

	auditLogs := make([]*auditDomain.AuditLog, 0)
	for rows.Next() {
		var (
			auditLog auditDomain.AuditLog
			id       []byte
		)
		if err := scanAuditLog(rows, &auditLog, &id); err != nil {
			return nil, err
		}
		if auditLog.ID, err = uuid.FromBytes(id); err != nil {
			return nil, apperrors.Wrap(err, "failed to parse audit log id")
		}
		auditLogs = append(auditLogs, &auditLog)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate audit logs")
	}
	return auditLogs, nil
}
