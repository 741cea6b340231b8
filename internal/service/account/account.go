package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
	"github.com/nkiryanov/gopherauth/internal/logger"
	"github.com/nkiryanov/gopherauth/internal/models"
	"github.com/nkiryanov/gopherauth/internal/repository"
	"github.com/nkiryanov/gopherauth/internal/service/notify"
)

type passwordService interface {
	ValidateStrength(password string) error
	Hash(password string) (string, error)
	Verify(password string, hash string) error
	DummyHash() (string, error)
}

type codeService interface {
	Generate(ctx context.Context, identity string) (string, error)
	Validate(ctx context.Context, identity string, code string) error
}

// Account use cases for one kind of accounts: users or customers
type AccountService struct {
	kind      models.AccountKind
	storage   repository.Storage
	passwords passwordService
	codes     codeService
	sender    notify.Sender
	logger    logger.Logger

	// Compared against when account is unknown
	timingHash func() (string, error)
}

func NewService(
	kind models.AccountKind,
	storage repository.Storage,
	passwords passwordService,
	codes codeService,
	sender notify.Sender,
	logger logger.Logger,
) (*AccountService, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown account kind %q", kind)
	}
	if storage == nil || passwords == nil || codes == nil || sender == nil || logger == nil {
		return nil, errors.New("account service dependencies must not be nil")
	}

	return &AccountService{
		kind:      kind,
		storage:   storage,
		passwords: passwords,
		codes:     codes,
		sender:    sender,
		logger:    logger.With("kind", string(kind)),
		timingHash: sync.OnceValues(passwords.DummyHash),
	}, nil
}

func (s *AccountService) Kind() models.AccountKind {
	return s.kind
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Code storage key: user and customer may share an email
func (s *AccountService) codeIdentity(a models.Account) string {
	return string(s.kind) + ":" + a.Email
}

// Return apperrors.ErrWeakPassword if password does not satisfy policy
func (s *AccountService) ValidatePassword(password string) error {
	return s.passwords.ValidateStrength(password)
}

// Create inactive account
// Return apperrors.ErrWeakPassword if password is weak, apperrors.ErrAccountExists if username or email is taken
func (s *AccountService) Register(ctx context.Context, username string, email string, password string) (models.Account, error) {
	var account models.Account
	email = normalizeEmail(email)

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return account, fmt.Errorf("can't use this as password. Err: %w", err)
	}

	err = s.storage.InTx(ctx, func(storage repository.Storage) error {
		for _, identifier := range []string{username, email} {
			if identifier == "" {
				continue
			}
			_, err := storage.Account().GetAccountByIdentifier(ctx, s.kind, identifier)
			switch {
			case err == nil:
				return apperrors.ErrAccountExists
			case !errors.Is(err, apperrors.ErrAccountNotFound):
				return err
			}
		}

		account, err = storage.Account().CreateAccount(ctx, models.Account{
			Kind:         s.kind,
			Username:     username,
			Email:        email,
			PasswordHash: hash,
		})
		return err
	})
	if err != nil {
		return account, fmt.Errorf("can't register account. Err: %w", err)
	}

	s.logger.Info("Account registered", "account_id", account.ID)
	return account, nil
}

// Find account by username or email and check password
// Unknown account error matches both apperrors.ErrAccountNotFound and apperrors.ErrCredential
func (s *AccountService) Authenticate(ctx context.Context, identifier string, password string) (models.Account, error) {
	account, err := s.storage.Account().GetAccountByIdentifier(ctx, s.kind, s.identifier(identifier))

	// Customers sign in by username only
	if err == nil && s.kind == models.KindCustomer && account.Username != identifier {
		err = apperrors.ErrAccountNotFound
	}

	switch {
	case errors.Is(err, apperrors.ErrAccountNotFound):
		hash, hashErr := s.timingHash()
		if hashErr != nil {
			s.logger.Error("Can't build timing hash", "error", hashErr)
		}
		_ = s.passwords.Verify(password, hash)
		return account, fmt.Errorf("%w: %w", apperrors.ErrCredential, err)
	case err != nil:
		return account, fmt.Errorf("can't get account. Err: %w", err)
	}

	if err := s.passwords.Verify(password, account.PasswordHash); err != nil {
		return models.Account{}, err
	}

	return account, nil
}

// Emails are stored lowercased, usernames as is
func (s *AccountService) identifier(identifier string) string {
	if strings.Contains(identifier, "@") {
		return normalizeEmail(identifier)
	}
	return identifier
}

func (s *AccountService) MarkActive(ctx context.Context, account models.Account) (models.Account, error) {
	account.IsActive = true

	updated, err := s.storage.Account().UpdateAccount(ctx, account)
	if err != nil {
		return account, fmt.Errorf("can't activate account. Err: %w", err)
	}
	return updated, nil
}

// Return apperrors.ErrOldPasswordIncorrect if old password does not match
func (s *AccountService) ChangePassword(ctx context.Context, identifier string, oldPassword string, newPassword string) error {
	account, err := s.Authenticate(ctx, identifier, oldPassword)
	switch {
	case errors.Is(err, apperrors.ErrInvalidCredential):
		return apperrors.ErrOldPasswordIncorrect
	case err != nil:
		return err
	}

	if err := s.setPassword(ctx, account.ID, newPassword); err != nil {
		return fmt.Errorf("can't change password. Err: %w", err)
	}

	s.logger.Info("Password changed", "account_id", account.ID)
	return nil
}

// Forgot password, phase 1: send verification code to account email
func (s *AccountService) RequestReset(ctx context.Context, identifier string) error {
	account, err := s.accountWithEmail(ctx, identifier)
	if err != nil {
		return err
	}

	code, err := s.codes.Generate(ctx, s.codeIdentity(account))
	if err != nil {
		return fmt.Errorf("can't generate code. Err: %w", err)
	}

	if err := s.sender.SendCode(ctx, account.Email, code); err != nil {
		s.logger.Warn("Failed to send verification code", "account_id", account.ID, "error", err)
		return fmt.Errorf("%w: %w", apperrors.ErrNotificationFailed, err)
	}

	s.logger.Info("Password reset requested", "account_id", account.ID)
	return nil
}

// Forgot password, phase 2: check code and return the account it was sent for
func (s *AccountService) VerifyCode(ctx context.Context, identifier string, code string) (models.Account, error) {
	account, err := s.accountWithEmail(ctx, identifier)
	if err != nil {
		return models.Account{}, err
	}

	if err := s.codes.Validate(ctx, s.codeIdentity(account), code); err != nil {
		return models.Account{}, fmt.Errorf("can't verify code. Err: %w", err)
	}

	return account, nil
}

// Forgot password, phase 3
func (s *AccountService) SetNewPassword(ctx context.Context, account models.Account, newPassword string) error {
	if err := s.setPassword(ctx, account.ID, newPassword); err != nil {
		return fmt.Errorf("can't set new password. Err: %w", err)
	}

	s.logger.Info("Password reset", "account_id", account.ID)
	return nil
}

func (s *AccountService) accountWithEmail(ctx context.Context, identifier string) (models.Account, error) {
	account, err := s.storage.Account().GetAccountByIdentifier(ctx, s.kind, s.identifier(identifier))
	switch {
	case err != nil:
		return account, fmt.Errorf("can't get account. Err: %w", err)
	case account.Email == "":
		return account, apperrors.ErrAccountHasNoEmail
	default:
		return account, nil
	}
}

// Hash and save password; account is re-read in transaction so concurrent updates are not lost
func (s *AccountService) setPassword(ctx context.Context, id uuid.UUID, password string) error {
	hash, err := s.passwords.Hash(password)
	if err != nil {
		return err
	}

	return s.storage.InTx(ctx, func(storage repository.Storage) error {
		account, err := s.getAccount(ctx, storage, id)
		if err != nil {
			return err
		}

		account.PasswordHash = hash
		_, err = storage.Account().UpdateAccount(ctx, account)
		return err
	})
}

// Account of other kind is reported as not found
func (s *AccountService) getAccount(ctx context.Context, storage repository.Storage, id uuid.UUID) (models.Account, error) {
	account, err := storage.Account().GetAccountByID(ctx, id)
	switch {
	case err != nil:
		return models.Account{}, err
	case account.Kind != s.kind:
		return models.Account{}, apperrors.ErrAccountNotFound
	default:
		return account, nil
	}
}

func (s *AccountService) GetAccount(ctx context.Context, id uuid.UUID) (models.Account, error) {
	account, err := s.getAccount(ctx, s.storage, id)
	if err != nil {
		return account, fmt.Errorf("can't get account. Err: %w", err)
	}
	return account, nil
}

func (s *AccountService) ListAccounts(ctx context.Context) ([]models.Account, error) {
	accounts, err := s.storage.Account().ListAccounts(ctx, s.kind)
	if err != nil {
		return nil, fmt.Errorf("can't list accounts. Err: %w", err)
	}
	return accounts, nil
}

func (s *AccountService) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		if _, err := s.getAccount(ctx, storage, id); err != nil {
			return err
		}
		return storage.Account().DeleteAccount(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("can't delete account. Err: %w", err)
	}

	s.logger.Info("Account deleted", "account_id", id)
	return nil
}
