// Package dto provides data transfer objects for audit log HTTP responses.
package dto

import (
	"encoding/base64"
	"time"

	auditDomain "github.com/recoverydesk/esign/internal/audit/domain"
)

// AuditLogResponse represents an audit log entry in API responses.
type AuditLogResponse struct {
	ID             string         `json:"id"`
	CaseID         string         `json:"case_id"`
	TokenID        string         `json:"token_id,omitempty"`
	Action         string         `json:"action"`
	ActorIP        string         `json:"actor_ip,omitempty"`
	ActorUserAgent string         `json:"actor_user_agent,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Signature      string         `json:"signature,omitempty"`
	IsSigned       bool           `json:"is_signed"`
	CreatedAt      time.Time      `json:"created_at"`
}

// MapAuditLogToResponse converts a domain audit log to an API response.
func MapAuditLogToResponse(auditLog *auditDomain.AuditLog) AuditLogResponse {
	response := AuditLogResponse{
		ID:             auditLog.ID.String(),
		CaseID:         auditLog.CaseID,
		TokenID:        auditLog.TokenID,
		Action:         string(auditLog.Action),
		ActorIP:        auditLog.ActorIP,
		ActorUserAgent: auditLog.ActorUserAgent,
		Metadata:       auditLog.Metadata,
		IsSigned:       auditLog.IsSigned,
		CreatedAt:      auditLog.CreatedAt,
	}
	if len(auditLog.Signature) > 0 {
		response.Signature = base64.StdEncoding.EncodeToString(auditLog.Signature)
	}
	return response
}

// ListAuditLogsResponse represents a paginated list of audit logs in API responses.
type ListAuditLogsResponse struct {
	Data []AuditLogResponse `json:"data"`
}

// MapAuditLogsToListResponse converts a slice of domain audit logs to a list API response.
func MapAuditLogsToListResponse(auditLogs []*auditDomain.AuditLog) ListAuditLogsResponse {
	auditLogResponses := make([]AuditLogResponse, 0, len(auditLogs))
	for _, auditLog := range auditLogs {
		auditLogResponses = append(auditLogResponses, MapAuditLogToResponse(auditLog))
	}
	return ListAuditLogsResponse{
		Data: auditLogResponses,
	}
}
