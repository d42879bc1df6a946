package service

import (
	"bitwise74/identity-api/internal/identity"
	"bitwise74/identity-api/internal/model"
	"bitwise74/identity-api/internal/secret"
	"bitwise74/identity-api/internal/store"
	"bitwise74/identity-api/validators"
	"context"
	"errors"
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

const idCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

type Hasher interface {
	GenerateFromPassword(p string) (string, error)
	VerifyPasswd(p, encoded string) (bool, error)
	Unusable() (string, error)
	Burn(p string)
}

type Sessions interface {
	Issue(userID string) (string, error)
	Verify(token string) (string, error)
}

type IdentityVerifier interface {
	Configured() bool
	AuthCodeURL(state string) string
	VerifyIDToken(ctx context.Context, idToken string) (*identity.Identity, error)
	Exchange(ctx context.Context, code string) (*identity.Identity, error)
}

type AuthDeps struct {
	Store    *store.Store
	Secrets  *secret.Manager
	Hasher   Hasher
	Sessions Sessions
	Mailer   Mailer
	Google   IdentityVerifier
}

// Auth coordinates users, their provider accounts and their secrets. Flows
// that touch more than one record run inside a single store transaction.
type Auth struct {
	store    *store.Store
	secrets  *secret.Manager
	hasher   Hasher
	sessions Sessions
	mailer   Mailer
	google   IdentityVerifier
}

func NewAuth(d AuthDeps) *Auth {
	return &Auth{
		store:    d.Store,
		secrets:  d.Secrets,
		hasher:   d.Hasher,
		sessions: d.Sessions,
		mailer:   d.Mailer,
		google:   d.Google,
	}
}

// Session is a user together with a freshly issued bearer token.
type Session struct {
	User  *model.User
	Token string
}

type RegisterInput struct {
	Provider          string
	ProviderAccountID string
	Name              string
	Email             string
	Password          string
	PhoneNumber       string
}

// Register creates an unverified user and its first account, then mails the
// verification link. A failed mail does not undo the registration.
func (a *Auth) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	provider := strings.TrimSpace(in.Provider)
	if provider == "" {
		provider = model.ProviderCredentials
	}

	if err := validators.EmailValidator(in.Email); err != nil {
		return nil, invalid("email", err.Error())
	}
	email := validators.NormalizeEmail(in.Email)

	var passwordHash *string
	if provider == model.ProviderCredentials {
		if in.Password == "" {
			return nil, invalid("password", "password is required for credential provider")
		}

		if err := validators.PasswordValidator(in.Password); err != nil {
			return nil, invalid("password", err.Error())
		}

		hash, err := a.hasher.GenerateFromPassword(in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		passwordHash = &hash
	}

	userID, err := newUserID()
	if err != nil {
		return nil, err
	}

	var (
		user  *model.User
		token string
	)

	err = a.store.Transaction(ctx, func(tx *store.Store) error {
		existing, err := tx.FindUserByEmail(ctx, email)
		if err != nil {
			return err
		}

		if existing != nil {
			return ErrAlreadyExists
		}

		u := &model.User{
			ID:           userID,
			Email:        email,
			PasswordHash: passwordHash,
			Name:         strings.TrimSpace(in.Name),
			PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
			IsVerified:   false,
		}

		token, err = a.secrets.Issue(u, secret.Verification)
		if err != nil {
			return err
		}

		if err := tx.CreateUser(ctx, u); err != nil {
			return err
		}

		providerAccountID := strings.TrimSpace(in.ProviderAccountID)
		if providerAccountID == "" {
			providerAccountID = u.ID
		}

		if err := ensureAccount(ctx, tx, u.ID, provider, providerAccountID); err != nil {
			return err
		}

		user = u
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", email, err)
	}

	if err := a.mailer.SendVerification(ctx, email, token); err != nil {
		zap.L().Warn("Failed to send verification email", zap.Error(err), zap.String("userID", user.ID))
	}

	return user, nil
}

// Login checks credentials. Unknown emails and wrong passwords are
// indistinguishable; the verified flag is only looked at once the password
// matched.
func (a *Auth) Login(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" {
		return nil, invalid("email", "email field can't be empty")
	}

	if password == "" {
		return nil, invalid("password", "password field can't be empty")
	}
	email = validators.NormalizeEmail(email)

	var user *model.User

	err := a.store.Transaction(ctx, func(tx *store.Store) error {
		u, err := tx.FindUserByEmail(ctx, email)
		if err != nil {
			return err
		}

		if u == nil || u.PasswordHash == nil {
			a.hasher.Burn(password)
			return ErrInvalidCredentials
		}

		ok, err := a.hasher.VerifyPasswd(password, *u.PasswordHash)
		if err != nil {
			return fmt.Errorf("verify password: %w", err)
		}

		if !ok {
			return ErrInvalidCredentials
		}

		if !u.IsVerified {
			return ErrEmailNotVerified
		}

		acc, err := tx.FindAccount(ctx, u.ID, model.ProviderCredentials, nil)
		if err != nil {
			return err
		}

		if acc == nil {
			if err := tx.CreateAccount(ctx, &model.Account{
				UserID:            u.ID,
				Provider:          model.ProviderCredentials,
				ProviderAccountID: u.ID,
			}); err != nil {
				return err
			}
		}

		user = u
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	return a.issue(user)
}

// OAuthSignIn signs in a provider vouched identity. An existing link wins,
// then a user with the same email is linked, otherwise a verified user is
// created. A unique constraint race is retried once so the loser links to the
// winner's user.
func (a *Auth) OAuthSignIn(ctx context.Context, id *identity.Identity) (*Session, error) {
	if id == nil || strings.TrimSpace(id.Email) == "" {
		return nil, ErrMissingEmail
	}

	if id.Provider == "" || id.Subject == "" {
		return nil, fmt.Errorf("%w: identity has no provider subject", ErrInvalidToken)
	}

	var (
		user *model.User
		err  error
	)

	for attempt := 0; attempt < 2; attempt++ {
		user, err = a.linkIdentity(ctx, id)
		if !errors.Is(err, ErrAlreadyExists) {
			break
		}

		zap.L().Debug("Provider sign-in raced, retrying", zap.String("provider", id.Provider), zap.Int("attempt", attempt))
	}
	if err != nil {
		return nil, fmt.Errorf("%s sign-in: %w", id.Provider, err)
	}

	return a.issue(user)
}

func (a *Auth) linkIdentity(ctx context.Context, id *identity.Identity) (*model.User, error) {
	email := validators.NormalizeEmail(id.Email)

	var user *model.User

	err := a.store.Transaction(ctx, func(tx *store.Store) error {
		acc, err := tx.FindAccountByProvider(ctx, id.Provider, id.Subject)
		if err != nil {
			return err
		}

		var u *model.User
		if acc != nil {
			if u, err = tx.FindUserByID(ctx, acc.UserID); err != nil {
				return err
			}
		}

		if u == nil {
			if u, err = tx.FindUserByEmail(ctx, email); err != nil {
				return err
			}
		}

		if u == nil {
			placeholder, err := a.hasher.Unusable()
			if err != nil {
				return fmt.Errorf("hash placeholder password: %w", err)
			}

			userID, err := newUserID()
			if err != nil {
				return err
			}

			name := strings.TrimSpace(id.Name)
			if name == "" {
				name = strings.SplitN(email, "@", 2)[0]
			}

			u = &model.User{
				ID:           userID,
				Email:        email,
				PasswordHash: &placeholder,
				Name:         name,
				ProfileImage: id.Picture,
				IsVerified:   true,
			}

			if err := tx.CreateUser(ctx, u); err != nil {
				return err
			}
		} else {
			columns := []string{"is_verified"}
			if id.Picture != "" {
				u.ProfileImage = id.Picture
				columns = append(columns, "profile_image")
			}
			u.IsVerified = true

			if err := tx.UpdateUser(ctx, u, columns...); err != nil {
				return err
			}
		}

		switch {
		case acc == nil:
			err = ensureAccount(ctx, tx, u.ID, id.Provider, id.Subject)
		case acc.UserID != u.ID:
			// The link outlived its user, hand it to the user we resolved
			acc.UserID = u.ID
			err = tx.SaveAccount(ctx, acc)
		}
		if err != nil {
			return err
		}

		user = u
		return nil
	})

	return user, err
}

// VerifyEmail consumes a verification token and marks its owner verified.
func (a *Auth) VerifyEmail(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, invalid("token", "verification token is required")
	}

	var user *model.User

	err := a.store.Transaction(ctx, func(tx *store.Store) error {
		u, err := tx.FindUserByVerificationToken(ctx, token, a.secrets.Now())
		if err != nil {
			return err
		}

		if u == nil || !a.secrets.Valid(u, secret.Verification, token) {
			return ErrInvalidOrExpiredToken
		}

		u.IsVerified = true
		a.secrets.Consume(u, secret.Verification)

		saved, err := tx.UpdateUserIf(ctx, u, "verification_token", token,
			"is_verified", "verification_token", "verification_token_expiry")
		if err != nil {
			return err
		}

		if !saved {
			return ErrInvalidOrExpiredToken
		}

		user = u
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("verify email: %w", err)
	}

	return user, nil
}

// ForgotPassword issues a reset OTP when the email belongs to a user. The
// outcome is the same whether or not the user exists or the mail went out.
func (a *Auth) ForgotPassword(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return invalid("email", "email is required")
	}
	email = validators.NormalizeEmail(email)

	var userID, otp string

	err := a.store.Transaction(ctx, func(tx *store.Store) error {
		userID, otp = "", ""

		u, err := tx.FindUserByEmail(ctx, email)
		if err != nil || u == nil {
			return err
		}

		if otp, err = a.secrets.Issue(u, secret.Reset); err != nil {
			return err
		}

		userID = u.ID
		return tx.UpdateUser(ctx, u, "reset_otp", "reset_otp_expiry")
	})
	if err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}

	if otp == "" {
		return nil
	}

	if err := a.mailer.SendOTP(ctx, email, otp); err != nil {
		zap.L().Warn("Failed to send OTP email", zap.Error(err), zap.String("userID", userID))
	}

	return nil
}

// VerifyOTP checks a reset OTP without consuming it, so the client can ask
// for the new password afterwards. The OTP stays usable until reset or expiry.
func (a *Auth) VerifyOTP(ctx context.Context, email, otp string) error {
	if strings.TrimSpace(email) == "" || otp == "" {
		return invalid("otp", "email and OTP are required")
	}

	u, err := a.store.FindUserByEmail(ctx, validators.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("verify otp: %w", err)
	}

	if !a.secrets.Valid(u, secret.Reset, otp) {
		return ErrInvalidOrExpiredOTP
	}

	return nil
}

// ResetPassword re-validates the OTP, stores the new password, consumes the
// OTP and logs the user in.
func (a *Auth) ResetPassword(ctx context.Context, email, otp, newPassword string) (*Session, error) {
	if strings.TrimSpace(email) == "" || otp == "" || newPassword == "" {
		return nil, invalid("newPassword", "email, OTP, and new password are required")
	}

	if err := validators.PasswordValidator(newPassword); err != nil {
		return nil, invalid("newPassword", err.Error())
	}
	email = validators.NormalizeEmail(email)

	hash, err := a.hasher.GenerateFromPassword(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var user *model.User

	err = a.store.Transaction(ctx, func(tx *store.Store) error {
		u, err := tx.FindUserByEmail(ctx, email)
		if err != nil {
			return err
		}

		if !a.secrets.Valid(u, secret.Reset, otp) {
			return ErrInvalidOrExpiredOTP
		}

		u.PasswordHash = &hash
		a.secrets.Consume(u, secret.Reset)

		saved, err := tx.UpdateUserIf(ctx, u, "reset_otp", otp,
			"password_hash", "reset_otp", "reset_otp_expiry")
		if err != nil {
			return err
		}

		if !saved {
			return ErrInvalidOrExpiredOTP
		}

		user = u
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reset password: %w", err)
	}

	return a.issue(user)
}

func (a *Auth) Me(ctx context.Context, userID string) (*model.User, error) {
	u, err := a.store.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if u == nil {
		return nil, ErrNotFound
	}

	return u, nil
}

// ProfileInput carries the fields to change. Empty fields are left alone.
type ProfileInput struct {
	Name         string
	Email        string
	PhoneNumber  string
	ProfileImage string
	Password     string
}

func (a *Auth) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*Session, error) {
	var email string
	if strings.TrimSpace(in.Email) != "" {
		if err := validators.EmailValidator(in.Email); err != nil {
			return nil, invalid("email", err.Error())
		}
		email = validators.NormalizeEmail(in.Email)
	}

	var passwordHash *string
	if in.Password != "" {
		if err := validators.PasswordValidator(in.Password); err != nil {
			return nil, invalid("password", err.Error())
		}

		hash, err := a.hasher.GenerateFromPassword(in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		passwordHash = &hash
	}

	var user *model.User

	err := a.store.Transaction(ctx, func(tx *store.Store) error {
		u, err := tx.FindUserByID(ctx, userID)
		if err != nil {
			return err
		}

		if u == nil {
			return ErrNotFound
		}

		var columns []string

		if email != "" && email != u.Email {
			other, err := tx.FindUserByEmail(ctx, email)
			if err != nil {
				return err
			}

			if other != nil {
				return ErrAlreadyExists
			}
			u.Email = email
			columns = append(columns, "email")
		}

		if v := strings.TrimSpace(in.Name); v != "" {
			u.Name = v
			columns = append(columns, "name")
		}

		if v := strings.TrimSpace(in.PhoneNumber); v != "" {
			u.PhoneNumber = v
			columns = append(columns, "phone_number")
		}

		if v := strings.TrimSpace(in.ProfileImage); v != "" {
			u.ProfileImage = v
			columns = append(columns, "profile_image")
		}

		if passwordHash != nil {
			u.PasswordHash = passwordHash
			columns = append(columns, "password_hash")
		}

		if len(columns) > 0 {
			if err := tx.UpdateUser(ctx, u, columns...); err != nil {
				return err
			}
		}

		user = u
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	return a.issue(user)
}

// Authenticate resolves a bearer token to its user.
func (a *Auth) Authenticate(ctx context.Context, token string) (*model.User, error) {
	userID, err := a.sessions.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	u, err := a.store.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if u == nil {
		return nil, fmt.Errorf("%w: user no longer exists", ErrUnauthorized)
	}

	return u, nil
}

func (a *Auth) issue(u *model.User) (*Session, error) {
	token, err := a.sessions.Issue(u.ID)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	return &Session{User: u, Token: token}, nil
}

// ensureAccount creates the (provider, providerAccountID) link for userID
// unless the user already holds it.
func ensureAccount(ctx context.Context, tx *store.Store, userID, provider, providerAccountID string) error {
	acc, err := tx.FindAccount(ctx, userID, provider, &providerAccountID)
	if err != nil {
		return err
	}

	if acc != nil {
		return nil
	}

	return tx.CreateAccount(ctx, &model.Account{
		UserID:            userID,
		Provider:          provider,
		ProviderAccountID: providerAccountID,
	})
}

func newUserID() (string, error) {
	id, err := gonanoid.Generate(idCharset, 16)
	if err != nil {
		return "", fmt.Errorf("generate user ID: %w", err)
	}

	return id, nil
}
