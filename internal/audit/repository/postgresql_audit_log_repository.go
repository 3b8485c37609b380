// Package repository appends and lists audit entries in PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	auditDomain "github.com/recoverydesk/esign/internal/audit/domain"
	"github.com/recoverydesk/esign/internal/database"
	apperrors "github.com/recoverydesk/esign/internal/errors"
)

const auditLogColumns = `id, case_id, token_id, action, actor_ip, actor_user_agent, metadata, signature,
	is_signed, created_at`

// PostgreSQLAuditLogRepository stores audit entries in PostgreSQL.
type PostgreSQLAuditLogRepository struct {
	db *sql.DB
}

// NewPostgreSQLAuditLogRepository creates a new PostgreSQL audit log repository.
func NewPostgreSQLAuditLogRepository(db *sql.DB) *PostgreSQLAuditLogRepository {
	return &PostgreSQLAuditLogRepository{db: db}
}

// Create appends an entry. Appending an ID that already exists does nothing,
// so replays from the outbox are safe.
func (p *PostgreSQLAuditLogRepository) Create(ctx context.Context, auditLog *auditDomain.AuditLog) error {
	querier := database.GetTx(ctx, p.db)

	metadataJSON, err := marshalMetadata(auditLog.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO audit_logs (` + auditLogColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			  ON CONFLICT (id) DO NOTHING`

	_, err = querier.ExecContext(
		ctx,
		query,
		auditLog.ID,
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
func (p *PostgreSQLAuditLogRepository) List(
	ctx context.Context,
	filter auditDomain.Filter,
) ([]*auditDomain.AuditLog, error) {
	querier := database.GetTx(ctx, p.db)

	where, args := buildWhere(filter, func(n int) string { return fmt.Sprintf("$%d", n) })
	query := `SELECT ` + auditLogColumns + ` FROM audit_logs` + where +
		fmt.Sprintf(` ORDER BY created_at ASC, id ASC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
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
		var auditLog auditDomain.AuditLog
		if err := scanAuditLog(rows, &auditLog, &auditLog.ID); err != nil {
			return nil, err
		}
		auditLogs = append(auditLogs, &auditLog)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate audit logs")
	}
	return auditLogs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuditLog(row rowScanner, auditLog *auditDomain.AuditLog, id any) error {
	var (
		action       string
		metadataJSON []byte
	)

	err := row.Scan(
		id,
		&auditLog.CaseID,
		&auditLog.TokenID,
		&action,
		&auditLog.ActorIP,
		&auditLog.ActorUserAgent,
		&metadataJSON,
		&auditLog.Signature,
		&auditLog.IsSigned,
		&auditLog.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to scan audit log")
	}

	auditLog.Action = auditDomain.Action(action)
	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &auditLog.Metadata); err != nil {
			return apperrors.Wrap(err, "failed to unmarshal audit log metadata")
		}
	}
	return nil
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal audit log metadata")
	}
	return metadataJSON, nil
}

// buildWhere renders the filter conditions with placeholder producing the
// driver-specific bind marker for the n-th argument.
func buildWhere(filter auditDomain.Filter, placeholder func(n int) string) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	if filter.CaseID != "" {
		args = append(args, filter.CaseID)
		conditions = append(conditions, "case_id = "+placeholder(len(args)))
	}
	if filter.CreatedAtFrom != nil {
		args = append(args, *filter.CreatedAtFrom)
		conditions = append(conditions, "created_at >= "+placeholder(len(args)))
	}
	if filter.CreatedAtTo != nil {
		args = append(args, *filter.CreatedAtTo)
		conditions = append(conditions, "created_at <= "+placeholder(len(args)))
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
