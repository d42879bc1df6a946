// Package store is the durable home of users and their provider accounts.
// Every multi-record write goes through Transaction so that a user and its
// accounts are committed together or not at all.
package store

import (
	"bitwise74/identity-api/internal/model"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrAlreadyExists is returned when a write hits a unique constraint, either
// the user email or the (provider, provider_account_id) link.
var ErrAlreadyExists = errors.New("record already exists")

type Store struct {
	db *gorm.DB

	// set inside Transaction, user reads then lock their row until commit
	locking bool
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// txAttempts bounds how often a transaction is replayed after the database
// aborted it for a serialization conflict.
const txAttempts = 3

// Transaction runs fn against a transaction bound Store at serializable
// isolation. The transaction is committed when fn returns nil and rolled back
// when it returns an error or panics. User rows read through the transaction
// bound Store are locked with SELECT ... FOR UPDATE. fn is run again when the
// database reports a serialization failure or deadlock, so it must not keep
// state between runs other than what it assigns.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	var err error

	for range txAttempts {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(&Store{db: tx, locking: true})
		}, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if !serializationFailure(err) {
			return err
		}
	}

	return err
}

// FindUserByEmail returns nil without an error when no user has the email.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.firstUser(ctx, "email = ?", email)
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.firstUser(ctx, "id = ?", id)
}

// FindUserByVerificationToken only matches tokens that are still valid at now.
func (s *Store) FindUserByVerificationToken(ctx context.Context, token string, now time.Time) (*model.User, error) {
	return s.firstUser(ctx, "verification_token = ? AND verification_token_expiry > ?", token, now)
}

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("create user: %w", mapErr(err))
	}

	return nil
}

// UpdateUser writes only the named columns of u. Columns nobody asked to
// change keep whatever a concurrent writer committed.
func (s *Store) UpdateUser(ctx context.Context, u *model.User, columns ...string) error {
	if len(columns) == 0 {
		return fmt.Errorf("update user %s: no columns", u.ID)
	}

	r := s.db.WithContext(ctx).
		Model(u).
		Select(columns).
		Updates(u)
	if r.Error != nil {
		return fmt.Errorf("update user %s: %w", u.ID, mapErr(r.Error))
	}

	return nil
}

// UpdateUserIf writes the named columns of u only while column still holds
// expected. It reports false when another writer changed the column first,
// which is how single use secrets are consumed exactly once.
func (s *Store) UpdateUserIf(ctx context.Context, u *model.User, column string, expected any, columns ...string) (bool, error) {
	if len(columns) == 0 {
		return false, fmt.Errorf("update user %s: no columns", u.ID)
	}

	r := s.db.WithContext(ctx).
		Model(u).
		Where(column+" = ?", expected).
		Select(columns).
		Updates(u)
	if r.Error != nil {
		return false, fmt.Errorf("update user %s: %w", u.ID, mapErr(r.Error))
	}

	return r.RowsAffected == 1, nil
}

func (s *Store) SaveAccount(ctx context.Context, a *model.Account) error {
	if err := s.db.WithContext(ctx).Save(a).Error; err != nil {
		return fmt.Errorf("save %s account: %w", a.Provider, mapErr(err))
	}

	return nil
}

// FindAccount looks up the account a user holds at provider. When
// providerAccountID is nil any account at that provider matches.
func (s *Store) FindAccount(ctx context.Context, userID, provider string, providerAccountID *string) (*model.Account, error) {
	q := s.db.WithContext(ctx).Where("user_id = ? AND provider = ?", userID, provider)
	if providerAccountID != nil {
		q = q.Where("provider_account_id = ?", *providerAccountID)
	}

	var a model.Account
	if err := q.First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("find account: %w", err)
	}

	return &a, nil
}

// FindAccountByProvider resolves a provider identity to its account regardless
// of the owning user.
func (s *Store) FindAccountByProvider(ctx context.Context, provider, providerAccountID string) (*model.Account, error) {
	var a model.Account

	err := s.db.WithContext(ctx).
		Where("provider = ? AND provider_account_id = ?", provider, providerAccountID).
		First(&a).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("find account by provider: %w", err)
	}

	return &a, nil
}

func (s *Store) CreateAccount(ctx context.Context, a *model.Account) error {
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("create %s account: %w", a.Provider, mapErr(err))
	}

	return nil
}

func (s *Store) CountAccounts(ctx context.Context, userID string) (int64, error) {
	var n int64

	err := s.db.WithContext(ctx).
		Model(model.Account{}).
		Where("user_id = ?", userID).
		Count(&n).
		Error
	if err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}

	return n, nil
}

// FindResendRequest returns nil when the user never asked for a resend.
func (s *Store) FindResendRequest(ctx context.Context, userID string) (*model.ResendRequest, error) {
	var r model.ResendRequest

	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("find resend request: %w", err)
	}

	return &r, nil
}

func (s *Store) SaveResendRequest(ctx context.Context, r *model.ResendRequest) error {
	if err := s.db.WithContext(ctx).Save(r).Error; err != nil {
		return fmt.Errorf("save resend request: %w", mapErr(err))
	}

	return nil
}

// ClearExpiredSecrets erases verification tokens and reset OTPs that expired
// before now. It returns the number of user rows touched.
func (s *Store) ClearExpiredSecrets(ctx context.Context, now time.Time) (int64, error) {
	var total int64

	err := s.Transaction(ctx, func(tx *Store) error {
		total = 0

		r := tx.db.Model(&model.User{}).
			Where("verification_token_expiry < ?", now).
			Updates(map[string]any{
				"verification_token":        nil,
				"verification_token_expiry": nil,
			})
		if r.Error != nil {
			return r.Error
		}
		total += r.RowsAffected

		r = tx.db.Model(&model.User{}).
			Where("reset_otp_expiry < ?", now).
			Updates(map[string]any{
				"reset_otp":        nil,
				"reset_otp_expiry": nil,
			})
		if r.Error != nil {
			return r.Error
		}
		total += r.RowsAffected

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("clear expired secrets: %w", err)
	}

	return total, nil
}

// DeleteOrphanedAccounts removes accounts whose owning user no longer exists.
func (s *Store) DeleteOrphanedAccounts(ctx context.Context) (int64, error) {
	r := s.db.WithContext(ctx).
		Where("user_id NOT IN (?)", s.db.Model(model.User{}).Select("id")).
		Delete(&model.Account{})
	if r.Error != nil {
		return 0, fmt.Errorf("delete orphaned accounts: %w", r.Error)
	}

	return r.RowsAffected, nil
}

func (s *Store) firstUser(ctx context.Context, query string, args ...any) (*model.User, error) {
	var u model.User

	q := s.db.WithContext(ctx)
	if s.locking {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	if err := q.Where(query, args...).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("find user: %w", err)
	}

	return &u, nil
}

func serializationFailure(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 40001") || strings.Contains(msg, "SQLSTATE 40P01")
}

func mapErr(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "SQLSTATE 23505") {
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	}

	return err
}
