package app

import (
	"context"
	"fmt"

	cryptoDomain "github.com/recoverydesk/esign/internal/crypto/domain"
	cryptoRepository "github.com/recoverydesk/esign/internal/crypto/repository"
	cryptoService "github.com/recoverydesk/esign/internal/crypto/service"
	cryptoUseCase "github.com/recoverydesk/esign/internal/crypto/usecase"
	"github.com/recoverydesk/esign/internal/storage"
)

// KMSService returns the KMS service.
func (c *Container) KMSService() cryptoService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = cryptoService.NewKMSService()
	})
	return c.kmsService
}

// KMSKeeper returns the keeper that wraps document private keys. It is closed
// by Shutdown.
func (c *Container) KMSKeeper() (cryptoDomain.KMSKeeper, error) {
	var err error
	c.kmsKeeperInit.Do(func() {
		c.kmsKeeper, err = c.initKMSKeeper()
		if err != nil {
			c.initErrors["kmsKeeper"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["kmsKeeper"]; exists {
		return nil, storedErr
	}
	return c.kmsKeeper, nil
}

// DocumentKeyRepository returns the document key repository based on database driver.
func (c *Container) DocumentKeyRepository() (cryptoUseCase.DocumentKeyRepository, error) {
	var err error
	c.documentKeyRepoInit.Do(func() {
		c.documentKeyRepo, err = c.initDocumentKeyRepository()
		if err != nil {
			c.initErrors["documentKeyRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["documentKeyRepo"]; exists {
		return nil, storedErr
	}
	return c.documentKeyRepo, nil
}

// DocumentKeyUseCase returns the document keyring. It also seals and opens
// generated documents.
func (c *Container) DocumentKeyUseCase() (cryptoUseCase.DocumentKeyUseCase, error) {
	var err error
	c.documentKeyUseCaseInit.Do(func() {
		c.documentKeyUseCase, err = c.initDocumentKeyUseCase()
		if err != nil {
			c.initErrors["documentKeyUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["documentKeyUseCase"]; exists {
		return nil, storedErr
	}
	return c.documentKeyUseCase, nil
}

// DocumentStore returns the blob store holding sealed documents.
func (c *Container) DocumentStore() (*storage.BlobStore, error) {
	var err error
	c.documentStoreInit.Do(func() {
		c.documentStore, err = c.initDocumentStore()
		if err != nil {
			c.initErrors["documentStore"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["documentStore"]; exists {
		return nil, storedErr
	}
	return c.documentStore, nil
}

func (c *Container) initKMSKeeper() (cryptoDomain.KMSKeeper, error) {
	if c.config.KMSKeyURI == "" {
		return nil, fmt.Errorf("KMS_KEY_URI is required to wrap document keys")
	}

	keeper, err := c.KMSService().OpenKeeper(context.Background(), c.config.KMSKeyURI)
	if err != nil {
		return nil, err
	}

	c.Logger().Info("kms keeper opened",
		"kms_key", cryptoUseCase.RedactKeyURI(c.config.KMSKeyURI))
	return keeper, nil
}

func (c *Container) initDocumentKeyRepository() (cryptoUseCase.DocumentKeyRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for document key repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return cryptoRepository.NewPostgreSQLDocumentKeyRepository(db), nil
	case "mysql":
		return cryptoRepository.NewMySQLDocumentKeyRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initDocumentKeyUseCase() (cryptoUseCase.DocumentKeyUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for document key use case: %w", err)
	}

	keyRepo, err := c.DocumentKeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get document key repository for document key use case: %w", err)
	}

	keeper, err := c.KMSKeeper()
	if err != nil {
		return nil, fmt.Errorf("failed to get kms keeper for document key use case: %w", err)
	}

	sealer := cryptoService.NewEnvelopeSealer(cryptoService.NewAEADManager())
	return cryptoUseCase.NewDocumentKeyUseCase(txManager, keyRepo, keeper, c.config.KMSKeyURI, sealer), nil
}

func (c *Container) initDocumentStore() (*storage.BlobStore, error) {
	store, err := storage.Open(context.Background(), c.config.DocumentStorageURL)
	if err != nil {
		return nil, err
	}
	return store, nil
}
