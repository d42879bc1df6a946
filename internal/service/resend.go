package service

import (
	"bitwise74/identity-api/internal/model"
	"bitwise74/identity-api/internal/secret"
	"bitwise74/identity-api/internal/store"
	"bitwise74/identity-api/validators"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	ResendCooldown  = time.Minute
	ResendWindow    = 24 * time.Hour
	ResendPerWindow = 5
)

// errResendThrottled never leaves the service. Callers of ResendVerification
// always see success so the endpoint can't be used to probe for accounts.
var errResendThrottled = errors.New("resend throttled")

// ResendVerification replaces the verification token of an unverified user and
// mails it again. Resends are throttled per user.
func (a *Auth) ResendVerification(ctx context.Context, email string) error {
	if email == "" {
		return invalid("email", "email is required")
	}

	if err := validators.EmailValidator(email); err != nil {
		return invalid("email", err.Error())
	}
	email = validators.NormalizeEmail(email)

	var token string

	err := a.store.Transaction(ctx, func(tx *store.Store) error {
		token = ""

		u, err := tx.FindUserByEmail(ctx, email)
		if err != nil {
			return err
		}

		if u == nil || u.IsVerified {
			return nil
		}

		r, err := tx.FindResendRequest(ctx, u.ID)
		if err != nil {
			return err
		}

		if r == nil {
			r = &model.ResendRequest{UserID: u.ID}
		}

		if err := allowResend(r, a.secrets.Now()); err != nil {
			zap.L().Debug("Verification resend throttled", zap.String("userID", u.ID), zap.Bool("blocked", r.Blocked))
			return tx.SaveResendRequest(ctx, r)
		}

		if token, err = a.secrets.Issue(u, secret.Verification); err != nil {
			return err
		}

		if err := tx.UpdateUser(ctx, u, "verification_token", "verification_token_expiry"); err != nil {
			return err
		}

		return tx.SaveResendRequest(ctx, r)
	})
	if err != nil {
		return fmt.Errorf("resend verification: %w", err)
	}

	if token == "" {
		return nil
	}

	if err := a.mailer.SendVerification(ctx, email, token); err != nil {
		zap.L().Warn("Failed to resend verification email", zap.Error(err))
	}

	return nil
}

// allowResend records a resend at now on r, or returns errResendThrottled.
func allowResend(r *model.ResendRequest, now time.Time) error {
	if !now.Before(r.WindowEnd) {
		r.Count = 0
		r.Blocked = false
		r.WindowEnd = now.Add(ResendWindow)
	}

	if r.Blocked || now.Before(r.Cooldown) {
		return errResendThrottled
	}

	if r.Count >= ResendPerWindow {
		r.Blocked = true
		return errResendThrottled
	}

	r.Count++
	r.LastResend = now
	r.Cooldown = now.Add(ResendCooldown)

	return nil
}
