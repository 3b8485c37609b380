package app

import (
	"fmt"

	auditHTTP "github.com/recoverydesk/esign/internal/audit/http"
	cryptoDomain "github.com/recoverydesk/esign/internal/crypto/domain"
	"github.com/recoverydesk/esign/internal/notification"
	outboxDomain "github.com/recoverydesk/esign/internal/outbox/domain"
	"github.com/recoverydesk/esign/internal/retry"
	"github.com/recoverydesk/esign/internal/signature/domain"
	signatureHTTP "github.com/recoverydesk/esign/internal/signature/http"
	signatureRepository "github.com/recoverydesk/esign/internal/signature/repository"
	signatureService "github.com/recoverydesk/esign/internal/signature/service"
	signatureUseCase "github.com/recoverydesk/esign/internal/signature/usecase"
)

// TokenRepository returns the signature token repository based on database driver.
func (c *Container) TokenRepository() (signatureUseCase.TokenRepository, error) {
	var err error
	c.tokenRepoInit.Do(func() {
		c.tokenRepo, err = c.initTokenRepository()
		if err != nil {
			c.initErrors["tokenRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["tokenRepo"]; exists {
		return nil, storedErr
	}
	return c.tokenRepo, nil
}

// SignatureRecordRepository returns the signature record repository based on database driver.
func (c *Container) SignatureRecordRepository() (signatureUseCase.SignatureRecordRepository, error) {
	var err error
	c.recordRepoInit.Do(func() {
		c.recordRepo, err = c.initSignatureRecordRepository()
		if err != nil {
			c.initErrors["recordRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["recordRepo"]; exists {
		return nil, storedErr
	}
	return c.recordRepo, nil
}

// DocumentRepository returns the generated document repository based on database driver.
func (c *Container) DocumentRepository() (signatureUseCase.DocumentRepository, error) {
	var err error
	c.documentRepoInit.Do(func() {
		c.documentRepo, err = c.initDocumentRepository()
		if err != nil {
			c.initErrors["documentRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["documentRepo"]; exists {
		return nil, storedErr
	}
	return c.documentRepo, nil
}

// LinkBuilder returns the signing link builder configured by LINK_MODE.
func (c *Container) LinkBuilder() (signatureService.LinkBuilder, error) {
	var err error
	c.linkBuilderInit.Do(func() {
		c.linkBuilder, err = c.initLinkBuilder()
		if err != nil {
			c.initErrors["linkBuilder"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["linkBuilder"]; exists {
		return nil, storedErr
	}
	return c.linkBuilder, nil
}

// NotificationSender returns the email/SMS sender configured by NOTIFICATION_PROVIDER.
func (c *Container) NotificationSender() (notification.Sender, error) {
	var err error
	c.senderInit.Do(func() {
		c.sender, err = c.initNotificationSender()
		if err != nil {
			c.initErrors["sender"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["sender"]; exists {
		return nil, storedErr
	}
	return c.sender, nil
}

// TokenUseCase returns the token issuer, instrumented with business metrics.
func (c *Container) TokenUseCase() (signatureUseCase.TokenUseCase, error) {
	var err error
	c.tokenUseCaseInit.Do(func() {
		c.tokenUseCase, err = c.initTokenUseCase()
		if err != nil {
			c.initErrors["tokenUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["tokenUseCase"]; exists {
		return nil, storedErr
	}
	return c.tokenUseCase, nil
}

// DispatchUseCase returns the notification dispatcher, instrumented with business metrics.
func (c *Container) DispatchUseCase() (signatureUseCase.DispatchUseCase, error) {
	var err error
	c.dispatchUseCaseInit.Do(func() {
		c.dispatchUseCase, err = c.initDispatchUseCase()
		if err != nil {
			c.initErrors["dispatchUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["dispatchUseCase"]; exists {
		return nil, storedErr
	}
	return c.dispatchUseCase, nil
}

// CompletionUseCase returns the completion handler, instrumented with business
// metrics. Its outbox handler is registered on first access.
func (c *Container) CompletionUseCase() (signatureUseCase.CompletionUseCase, error) {
	var err error
	c.completionUseCaseInit.Do(func() {
		c.completionUseCase, err = c.initCompletionUseCase()
		if err != nil {
			c.initErrors["completionUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["completionUseCase"]; exists {
		return nil, storedErr
	}
	return c.completionUseCase, nil
}

// Handlers returns the HTTP handlers of the signature workflow and the audit trail.
func (c *Container) Handlers() (
	*signatureHTTP.SignatureRequestHandler,
	*signatureHTTP.WebhookHandler,
	*auditHTTP.AuditLogHandler,
	error,
) {
	var err error
	c.handlersInit.Do(func() {
		err = c.initHandlers()
		if err != nil {
			c.initErrors["handlers"] = err
		}
	})
	if err != nil {
		return nil, nil, nil, err
	}
	if storedErr, exists := c.initErrors["handlers"]; exists {
		return nil, nil, nil, storedErr
	}
	return c.signatureHandler, c.webhookHandler, c.auditLogHandler, nil
}

func (c *Container) initTokenRepository() (signatureUseCase.TokenRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for token repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return signatureRepository.NewPostgreSQLTokenRepository(db), nil
	case "mysql":
		return signatureRepository.NewMySQLTokenRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initSignatureRecordRepository() (signatureUseCase.SignatureRecordRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for signature record repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return signatureRepository.NewPostgreSQLSignatureRecordRepository(db), nil
	case "mysql":
		return signatureRepository.NewMySQLSignatureRecordRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initDocumentRepository() (signatureUseCase.DocumentRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for document repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return signatureRepository.NewPostgreSQLDocumentRepository(db), nil
	case "mysql":
		return signatureRepository.NewMySQLDocumentRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initLinkBuilder maps JOTFORM_FORM_IDS and JOTFORM_FIELD_MAP onto the remote
// forms of each document type.
func (c *Container) initLinkBuilder() (signatureService.LinkBuilder, error) {
	linkConfig := signatureService.LinkConfig{
		Mode:          signatureService.LinkMode(c.config.LinkMode),
		RemoteBaseURL: c.config.JotFormBaseURL,
		TokenParam:    c.config.JotFormTokenParam,
		PortalBaseURL: c.config.PortalBaseURL,
		RemoteForms:   make(map[domain.DocumentType]signatureService.RemoteForm),
	}

	if linkConfig.Mode == signatureService.LinkModeRemote {
		formIDs, err := c.config.RemoteFormIDs()
		if err != nil {
			return nil, err
		}
		fieldMaps, err := c.config.RemoteFieldMaps()
		if err != nil {
			return nil, err
		}

		for name, formID := range formIDs {
			documentType, err := domain.ParseDocumentType(name)
			if err != nil {
				return nil, fmt.Errorf("invalid JOTFORM_FORM_IDS entry %q: %w", name, err)
			}
			linkConfig.RemoteForms[documentType] = signatureService.RemoteForm{
				FormID: formID,
				Fields: fieldMaps[name],
			}
		}
	}

	builder, err := signatureService.NewFormLinkBuilder(linkConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create link builder: %w", err)
	}
	return builder, nil
}

func (c *Container) initNotificationSender() (notification.Sender, error) {
	switch c.config.NotificationProvider {
	case "brevo":
		if c.config.BrevoAPIKey == "" {
			return nil, fmt.Errorf("BREVO_API_KEY is required when NOTIFICATION_PROVIDER=brevo")
		}
		return notification.NewBrevoSender(notification.BrevoConfig{
			APIKey:      c.config.BrevoAPIKey,
			BaseURL:     c.config.BrevoBaseURL,
			SenderEmail: c.config.BrevoSenderEmail,
			SenderName:  c.config.BrevoSenderName,
			SMSSender:   c.config.BrevoSMSSender,
		}), nil
	case "log":
		c.Logger().Warn("NOTIFICATION_PROVIDER=log - signing links are logged, not delivered")
		return notification.NewLogSender(c.Logger()), nil
	default:
		return nil, fmt.Errorf("unsupported notification provider: %s", c.config.NotificationProvider)
	}
}

func (c *Container) initTokenUseCase() (signatureUseCase.TokenUseCase, error) {
	tokenRepo, err := c.TokenRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get token repository for token use case: %w", err)
	}

	linkBuilder, err := c.LinkBuilder()
	if err != nil {
		return nil, err
	}

	audit, err := c.AuditLogUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log use case for token use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, err
	}

	useCase := signatureUseCase.NewTokenUseCase(
		tokenRepo,
		signatureService.NewTokenGenerator(),
		linkBuilder,
		audit,
		c.Logger(),
	)
	return signatureUseCase.NewTokenUseCaseWithMetrics(useCase, businessMetrics), nil
}

func (c *Container) initDispatchUseCase() (signatureUseCase.DispatchUseCase, error) {
	tokenRepo, err := c.TokenRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get token repository for dispatch use case: %w", err)
	}

	linkBuilder, err := c.LinkBuilder()
	if err != nil {
		return nil, err
	}

	sender, err := c.NotificationSender()
	if err != nil {
		return nil, err
	}

	audit, err := c.AuditLogUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log use case for dispatch use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, err
	}

	policy := retry.Policy{
		MaxAttempts:     c.config.NotificationMaxAttempts,
		InitialInterval: c.config.NotificationInitialInterval,
		MaxInterval:     c.config.NotificationMaxInterval,
	}

	useCase := signatureUseCase.NewDispatchUseCase(tokenRepo, linkBuilder, sender, audit, policy, c.Logger())
	return signatureUseCase.NewDispatchUseCaseWithMetrics(useCase, businessMetrics), nil
}

func (c *Container) initCompletionUseCase() (signatureUseCase.CompletionUseCase, error) {
	algorithm, err := cryptoDomain.ParseAlgorithm(c.config.DocumentEncryptionAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("invalid DOCUMENT_ENCRYPTION_ALGORITHM: %w", err)
	}

	tokenRepo, err := c.TokenRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get token repository for completion use case: %w", err)
	}

	recordRepo, err := c.SignatureRecordRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get signature record repository for completion use case: %w", err)
	}

	documentRepo, err := c.DocumentRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get document repository for completion use case: %w", err)
	}

	sealer, err := c.DocumentKeyUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get document key use case for completion use case: %w", err)
	}

	store, err := c.DocumentStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get document store for completion use case: %w", err)
	}

	audit, err := c.AuditLogUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log use case for completion use case: %w", err)
	}

	outbox, err := c.OutboxUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox use case for completion use case: %w", err)
	}

	sender, err := c.NotificationSender()
	if err != nil {
		return nil, err
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, err
	}

	completionConfig := signatureUseCase.CompletionConfig{
		EncryptionAlgorithm: algorithm,
		GenerationPolicy: retry.Policy{
			MaxAttempts:     c.config.GenerationMaxAttempts,
			InitialInterval: c.config.GenerationInitialInterval,
			MaxInterval:     c.config.GenerationInitialInterval * 4,
		},
		NotifyEmail: c.config.CompletionNotifyEmail,
	}

	useCase := signatureUseCase.NewCompletionUseCase(
		tokenRepo,
		recordRepo,
		documentRepo,
		signatureService.NewPDFGenerator(c.config.GenerationTimeout),
		sealer,
		store,
		audit,
		outbox,
		sender,
		completionConfig,
		c.Logger(),
	)
	c.eventRouter.Handle(outboxDomain.EventTypeSignatureCompleted, useCase.HandleCompletedEvent)

	return signatureUseCase.NewCompletionUseCaseWithMetrics(useCase, businessMetrics), nil
}

func (c *Container) initHandlers() error {
	tokenUseCase, err := c.TokenUseCase()
	if err != nil {
		return err
	}

	dispatchUseCase, err := c.DispatchUseCase()
	if err != nil {
		return err
	}

	completionUseCase, err := c.CompletionUseCase()
	if err != nil {
		return err
	}

	auditLogUseCase, err := c.AuditLogUseCase()
	if err != nil {
		return err
	}

	logger := c.Logger()
	c.signatureHandler = signatureHTTP.NewSignatureRequestHandler(tokenUseCase, dispatchUseCase, completionUseCase, logger)
	c.webhookHandler = signatureHTTP.NewWebhookHandler(completionUseCase, signatureHTTP.WebhookConfig{
		Secret:          c.config.WebhookSecret,
		TokenField:      c.config.WebhookTokenField,
		SignatureField:  c.config.WebhookSignatureField,
		SignerNameField: c.config.WebhookSignerNameField,
		TermsField:      c.config.WebhookTermsField,
	}, logger)
	c.auditLogHandler = auditHTTP.NewAuditLogHandler(auditLogUseCase, logger)
	return nil
}
