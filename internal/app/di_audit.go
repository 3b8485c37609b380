package app

import (
	"encoding/base64"
	"fmt"
	"time"

	auditRepository "github.com/recoverydesk/esign/internal/audit/repository"
	auditService "github.com/recoverydesk/esign/internal/audit/service"
	auditUseCase "github.com/recoverydesk/esign/internal/audit/usecase"
	outboxDomain "github.com/recoverydesk/esign/internal/outbox/domain"
	outboxRepository "github.com/recoverydesk/esign/internal/outbox/repository"
	outboxUseCase "github.com/recoverydesk/esign/internal/outbox/usecase"
	"github.com/recoverydesk/esign/internal/retry"
)

// AuditLogRepository returns the audit log repository based on database driver.
func (c *Container) AuditLogRepository() (auditUseCase.AuditLogRepository, error) {
	var err error
	c.auditLogRepoInit.Do(func() {
		c.auditLogRepo, err = c.initAuditLogRepository()
		if err != nil {
			c.initErrors["auditLogRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["auditLogRepo"]; exists {
		return nil, storedErr
	}
	return c.auditLogRepo, nil
}

// AuditSigner returns the HMAC signer of audit entries, or nil when no signing
// key is configured.
func (c *Container) AuditSigner() (auditService.AuditSigner, error) {
	var err error
	c.auditSignerInit.Do(func() {
		c.auditSigner, err = c.initAuditSigner()
		if err != nil {
			c.initErrors["auditSigner"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["auditSigner"]; exists {
		return nil, storedErr
	}
	return c.auditSigner, nil
}

// AuditLogUseCase returns the audit log use case. Its outbox handler is
// registered on first access.
func (c *Container) AuditLogUseCase() (auditUseCase.AuditLogUseCase, error) {
	var err error
	c.auditLogUseCaseInit.Do(func() {
		c.auditLogUseCase, err = c.initAuditLogUseCase()
		if err != nil {
			c.initErrors["auditLogUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["auditLogUseCase"]; exists {
		return nil, storedErr
	}
	return c.auditLogUseCase, nil
}

// OutboxRepository returns the outbox event repository based on database driver.
func (c *Container) OutboxRepository() (outboxUseCase.OutboxEventRepository, error) {
	var err error
	c.outboxRepoInit.Do(func() {
		c.outboxRepo, err = c.initOutboxRepository()
		if err != nil {
			c.initErrors["outboxRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxRepo"]; exists {
		return nil, storedErr
	}
	return c.outboxRepo, nil
}

// OutboxUseCase returns the outbox publisher. Handlers are attached to its
// event router by the use cases that own each event type.
func (c *Container) OutboxUseCase() (*outboxUseCase.OutboxUseCase, error) {
	var err error
	c.outboxUseCaseInit.Do(func() {
		c.outboxUseCase, err = c.initOutboxUseCase()
		if err != nil {
			c.initErrors["outboxUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxUseCase"]; exists {
		return nil, storedErr
	}
	return c.outboxUseCase, nil
}

// OutboxWorker returns the outbox use case after every event handler has been
// registered, ready for Start or ProcessEvents.
func (c *Container) OutboxWorker() (outboxUseCase.UseCase, error) {
	if _, err := c.AuditLogUseCase(); err != nil {
		return nil, fmt.Errorf("failed to get audit log use case for outbox worker: %w", err)
	}
	if _, err := c.CompletionUseCase(); err != nil {
		return nil, fmt.Errorf("failed to get completion use case for outbox worker: %w", err)
	}
	return c.OutboxUseCase()
}

func (c *Container) initAuditLogRepository() (auditUseCase.AuditLogRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for audit log repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return auditRepository.NewPostgreSQLAuditLogRepository(db), nil
	case "mysql":
		return auditRepository.NewMySQLAuditLogRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initAuditSigner() (auditService.AuditSigner, error) {
	if c.config.AuditSigningKey == "" {
		c.Logger().Warn("AUDIT_SIGNING_KEY not set - audit entries will be stored unsigned")
		return nil, nil
	}

	secret, err := base64.StdEncoding.DecodeString(c.config.AuditSigningKey)
	if err != nil {
		return nil, fmt.Errorf("invalid AUDIT_SIGNING_KEY: %w", err)
	}

	signer, err := auditService.NewAuditSigner(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit signer: %w", err)
	}
	return signer, nil
}

func (c *Container) initAuditLogUseCase() (auditUseCase.AuditLogUseCase, error) {
	auditLogRepo, err := c.AuditLogRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log repository for audit log use case: %w", err)
	}

	signer, err := c.AuditSigner()
	if err != nil {
		return nil, err
	}

	outbox, err := c.OutboxUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox use case for audit log use case: %w", err)
	}

	policy := retry.Policy{
		MaxAttempts:     c.config.AuditMaxAttempts,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
	}

	useCase := auditUseCase.NewAuditLogUseCase(auditLogRepo, signer, outbox, policy, c.Logger())
	c.eventRouter.Handle(outboxDomain.EventTypeAuditLogAppend, useCase.HandleAppendEvent)
	return useCase, nil
}

func (c *Container) initOutboxRepository() (outboxUseCase.OutboxEventRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for outbox repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return outboxRepository.NewPostgreSQLOutboxEventRepository(db), nil
	case "mysql":
		return outboxRepository.NewMySQLOutboxEventRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initOutboxUseCase() (*outboxUseCase.OutboxUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for outbox use case: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for outbox use case: %w", err)
	}

	logger := c.Logger()
	c.eventRouter = outboxUseCase.NewEventRouter(logger)

	useCaseConfig := outboxUseCase.Config{
		Interval:   c.config.OutboxInterval,
		BatchSize:  c.config.OutboxBatchSize,
		MaxRetries: c.config.OutboxMaxRetries,
	}
	return outboxUseCase.NewOutboxUseCase(useCaseConfig, txManager, outboxRepo, c.eventRouter, logger), nil
}
