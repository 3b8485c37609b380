package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	auditDomain "github.com/recoverydesk/esign/internal/audit/domain"
	signatureUseCase "github.com/recoverydesk/esign/internal/signature/usecase"
)

// cliActor attributes operator actions taken from the command line.
var cliActor = auditDomain.Actor{UserAgent: "esign-cli"}

// RunExpireTokens moves up to limit overdue tokens to expired. Reads already
// expire overdue tokens lazily; this sweeps the ones nobody opened.
func RunExpireTokens(
	ctx context.Context,
	tokenUseCase signatureUseCase.TokenUseCase,
	logger *slog.Logger,
	writer io.Writer,
	limit int,
	format string,
) error {
	if limit <= 0 {
		return fmt.Errorf("limit must be a positive number, got: %d", limit)
	}

	logger.Info("expiring overdue tokens", slog.Int("limit", limit))

	count, err := tokenUseCase.ExpireOverdue(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to expire tokens: %w", err)
	}

	logger.Info("expiry completed", slog.Int("count", count))

	if format == "json" {
		return writeJSON(writer, map[string]any{"count": count, "limit": limit})
	}

	_, _ = fmt.Fprintf(writer, "Expired %d overdue token(s)\n", count)
	return nil
}

// RunRetryGeneration regenerates and seals the document of a completed token
// whose generation failed.
func RunRetryGeneration(
	ctx context.Context,
	completionUseCase signatureUseCase.CompletionUseCase,
	logger *slog.Logger,
	writer io.Writer,
	tokenID string,
	format string,
) error {
	logger.Info("retrying document generation", slog.String("token_id", tokenID))

	result, err := completionUseCase.RetryGeneration(ctx, tokenID, cliActor)
	if err != nil {
		return fmt.Errorf("failed to retry generation: %w", err)
	}

	documentID := ""
	if result.Document != nil {
		documentID = result.Document.ID.String()
	}

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"token_id":      tokenID,
			"status":        result.Token.Status,
			"document_id":   documentID,
			"audit_pending": result.AuditPending,
		})
	}

	_, _ = fmt.Fprintf(writer, "Token %s is %s\n", tokenID, result.Token.Status)
	if documentID != "" {
		_, _ = fmt.Fprintf(writer, "Document: %s\n", documentID)
	}
	return nil
}

// RunVerifyDocument re-hashes a stored sealed document and, with decrypt set,
// opens it with its key version. Returns an error when the hash does not match.
func RunVerifyDocument(
	ctx context.Context,
	completionUseCase signatureUseCase.CompletionUseCase,
	logger *slog.Logger,
	writer io.Writer,
	documentID string,
	decrypt bool,
	format string,
) error {
	id, err := uuid.Parse(documentID)
	if err != nil {
		return fmt.Errorf("invalid document id: %w", err)
	}

	logger.Info("verifying document",
		slog.String("document_id", documentID),
		slog.Bool("decrypt", decrypt),
	)

	verification, err := completionUseCase.VerifyDocument(ctx, id, decrypt)
	if err != nil {
		return fmt.Errorf("failed to verify document: %w", err)
	}

	document := verification.Document
	if format == "json" {
		if err := writeJSON(writer, map[string]any{
			"document_id":    document.ID,
			"token_id":       document.TokenID,
			"key_version":    document.KeyVersion,
			"stored_hash":    document.IntegrityHash,
			"computed_hash":  verification.ComputedHash,
			"hash_matches":   verification.HashMatches,
			"decrypted":      verification.Decrypted,
			"plaintext_size": verification.PlaintextSize,
		}); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintf(writer, "Document:      %s\n", document.ID)
		_, _ = fmt.Fprintf(writer, "Token:         %s\n", document.TokenID)
		_, _ = fmt.Fprintf(writer, "Key version:   %d (%s)\n", document.KeyVersion, document.EncryptionAlgorithm)
		_, _ = fmt.Fprintf(writer, "Stored hash:   %s\n", document.IntegrityHash)
		_, _ = fmt.Fprintf(writer, "Computed hash: %s\n", verification.ComputedHash)
		if verification.Decrypted {
			_, _ = fmt.Fprintf(writer, "Decrypted:     %d bytes\n", verification.PlaintextSize)
		}
	}

	if !verification.HashMatches {
		return fmt.Errorf("integrity check failed for document %s", document.ID)
	}
	return nil
}
