package usecase

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/recoverydesk/esign/internal/crypto/domain"
	cryptoService "github.com/recoverydesk/esign/internal/crypto/service"
	"github.com/recoverydesk/esign/internal/database"
	apperrors "github.com/recoverydesk/esign/internal/errors"
)

type documentKeyUseCase struct {
	txManager database.TxManager
	keyRepo   DocumentKeyRepository
	keeper    cryptoDomain.KMSKeeper
	kmsKeyID  string
	sealer    cryptoService.Sealer
	now       func() time.Time
}

// NewDocumentKeyUseCase creates a DocumentKeyUseCase. Private keys are wrapped
// and unwrapped with keeper; kmsKeyURI is recorded on each key in redacted form.
func NewDocumentKeyUseCase(
	txManager database.TxManager,
	keyRepo DocumentKeyRepository,
	keeper cryptoDomain.KMSKeeper,
	kmsKeyURI string,
	sealer cryptoService.Sealer,
) DocumentKeyUseCase {
	return &documentKeyUseCase{
		txManager: txManager,
		keyRepo:   keyRepo,
		keeper:    keeper,
		kmsKeyID:  RedactKeyURI(kmsKeyURI),
		sealer:    sealer,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (d *documentKeyUseCase) Create(ctx context.Context) (*cryptoDomain.DocumentKey, error) {
	publicKey, privateKey, err := cryptoService.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(privateKey)

	wrapped, err := d.keeper.Encrypt(ctx, privateKey)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to wrap document private key")
	}

	key := &cryptoDomain.DocumentKey{
		ID:                  uuid.Must(uuid.NewV7()),
		Algorithm:           cryptoDomain.KeyAlgorithm,
		PublicKey:           publicKey,
		EncryptedPrivateKey: wrapped,
		KMSKeyID:            d.kmsKeyID,
		CreatedAt:           d.now(),
	}

	err = d.txManager.WithTx(ctx, func(ctx context.Context) error {
		latest, err := d.keyRepo.GetLatest(ctx)
		switch {
		case err == nil:
			key.Version = latest.Version + 1
		case apperrors.Is(err, cryptoDomain.ErrDocumentKeyNotFound):
			key.Version = 1
		default:
			return err
		}
		return d.keyRepo.Create(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

func (d *documentKeyUseCase) List(ctx context.Context) ([]*cryptoDomain.DocumentKey, error) {
	return d.keyRepo.List(ctx)
}

func (d *documentKeyUseCase) Seal(
	ctx context.Context,
	payload []byte,
	alg cryptoDomain.Algorithm,
) ([]byte, uint, error) {
	key, err := d.keyRepo.GetLatest(ctx)
	if err != nil {
		return nil, 0, err
	}

	sealed, err := d.sealer.Seal(payload, alg, key.Version, key.PublicKey)
	if err != nil {
		return nil, 0, err
	}
	return sealed, key.Version, nil
}

func (d *documentKeyUseCase) Open(ctx context.Context, sealed []byte, keyVersion uint) ([]byte, error) {
	key, err := d.keyRepo.GetByVersion(ctx, keyVersion)
	if err != nil {
		return nil, err
	}

	privateKey, err := d.keeper.Decrypt(ctx, key.EncryptedPrivateKey)
	if err != nil {
		return nil, apperrors.Wrap(cryptoDomain.ErrDecryptionFailed, "failed to unwrap document private key")
	}
	defer cryptoDomain.Zero(privateKey)

	return d.sealer.Open(sealed, keyVersion, key.PublicKey, privateKey)
}

// RedactKeyURI drops everything from a keeper URI that could be key material:
// query parameters always, and the whole body of base64key:// URIs.
func RedactKeyURI(keyURI string) string {
	u, err := url.Parse(keyURI)
	if err != nil || u.Scheme == "" {
		return "unknown"
	}
	if u.Scheme == "base64key" {
		return "base64key://"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
