// Package secret manages the two time boxed secrets a user can hold: the
// email verification token and the password reset OTP. Both live on the user
// row, at most one of each kind at a time.
package secret

import (
	"bitwise74/identity-api/internal/model"
	"bitwise74/identity-api/pkg/util"
	"crypto/subtle"
	"fmt"
	"time"
)

type Kind int

const (
	Verification Kind = iota
	Reset
)

const (
	VerificationTTL = 24 * time.Hour
	ResetTTL        = 15 * time.Minute

	verificationBytes = 32
	otpDigits         = 6
)

func (k Kind) String() string {
	switch k {
	case Verification:
		return "verification"
	case Reset:
		return "reset"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type Manager struct {
	now func() time.Time
}

func NewManager(now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}

	return &Manager{now: now}
}

func (m *Manager) Now() time.Time {
	return m.now()
}

// Issue generates a fresh secret of kind, stores it with its expiry on u and
// returns the plaintext for out of band delivery. Any previous secret of the
// same kind is replaced. The caller persists u.
func (m *Manager) Issue(u *model.User, k Kind) (string, error) {
	var (
		value string
		err   error
	)

	switch k {
	case Verification:
		value, err = util.GenerateToken(verificationBytes)
	case Reset:
		value, err = util.GenerateOTP(otpDigits)
	default:
		return "", fmt.Errorf("unknown secret %s", k)
	}
	if err != nil {
		return "", fmt.Errorf("generate %s secret: %w", k, err)
	}

	expiry := m.now().Add(k.ttl())
	vp, ep := m.fields(u, k)
	*vp = &value
	*ep = &expiry

	return value, nil
}

// Valid reports whether candidate equals the stored secret of kind and the
// secret has not expired.
func (m *Manager) Valid(u *model.User, k Kind, candidate string) bool {
	if u == nil || candidate == "" {
		return false
	}

	value, expiry := m.fields(u, k)
	if *value == nil || *expiry == nil {
		return false
	}

	if m.now().After(**expiry) {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(**value), []byte(candidate)) == 1
}

// Consume erases the secret of kind and its expiry. The caller persists u.
func (m *Manager) Consume(u *model.User, k Kind) {
	value, expiry := m.fields(u, k)
	*value = nil
	*expiry = nil
}

func (m *Manager) fields(u *model.User, k Kind) (**string, **time.Time) {
	if k == Reset {
		return &u.ResetOTP, &u.ResetOTPExpiry
	}

	return &u.VerificationToken, &u.VerificationTokenExpiry
}

func (k Kind) ttl() time.Duration {
	if k == Reset {
		return ResetTTL
	}

	return VerificationTTL
}
