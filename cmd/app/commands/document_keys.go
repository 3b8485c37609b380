package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	cryptoDomain "github.com/recoverydesk/esign/internal/crypto/domain"
	cryptoUseCase "github.com/recoverydesk/esign/internal/crypto/usecase"
)

// RunCreateDocumentKey generates the next document key version. New documents
// are sealed under it immediately; older versions stay available for opening.
//
// Requirements: Database must be migrated and KMS_KEY_URI must be set.
func RunCreateDocumentKey(
	ctx context.Context,
	documentKeyUseCase cryptoUseCase.DocumentKeyUseCase,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	logger.Info("creating new document key")

	key, err := documentKeyUseCase.Create(ctx)
	if err != nil {
		return fmt.Errorf("failed to create document key: %w", err)
	}

	logger.Info("document key created",
		slog.Uint64("version", uint64(key.Version)),
		slog.String("algorithm", key.Algorithm),
		slog.String("kms_key_id", key.KMSKeyID),
	)

	if format == "json" {
		return writeJSON(writer, documentKeyView(key))
	}

	_, _ = fmt.Fprintf(writer, "Document key version %d created (%s)\n", key.Version, key.Algorithm)
	_, _ = fmt.Fprintf(writer, "Wrapped by: %s\n", key.KMSKeyID)
	return nil
}

// RunListDocumentKeys prints every document key version, newest last.
func RunListDocumentKeys(
	ctx context.Context,
	documentKeyUseCase cryptoUseCase.DocumentKeyUseCase,
	writer io.Writer,
	format string,
) error {
	keys, err := documentKeyUseCase.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list document keys: %w", err)
	}

	if format == "json" {
		views := make([]map[string]any, 0, len(keys))
		for _, key := range keys {
			views = append(views, documentKeyView(key))
		}
		return writeJSON(writer, views)
	}

	if len(keys) == 0 {
		_, _ = fmt.Fprintln(writer, "No document keys found. Run create-document-key first.")
		return nil
	}

	_, _ = fmt.Fprintf(writer, "%-8s  %-12s  %-20s  %s\n", "VERSION", "ALGORITHM", "CREATED AT", "KMS KEY")
	for _, key := range keys {
		_, _ = fmt.Fprintf(writer, "%-8d  %-12s  %-20s  %s\n",
			key.Version,
			key.Algorithm,
			key.CreatedAt.Format("2006-01-02 15:04:05"),
			key.KMSKeyID,
		)
	}
	return nil
}

// documentKeyView omits the key material.
func documentKeyView(key *cryptoDomain.DocumentKey) map[string]any {
	return map[string]any{
		"id":         key.ID,
		"version":    key.Version,
		"algorithm":  key.Algorithm,
		"kms_key_id": key.KMSKeyID,
		"created_at": key.CreatedAt,
	}
}
