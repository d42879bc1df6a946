package secret

import (
	"bitwise74/identity-api/internal/model"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newManager() (*Manager, *clock) {
	c := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewManager(c.Now), c
}

func TestIssue_Verification(t *testing.T) {
	m, c := newManager()
	u := &model.User{}

	tok, err := m.Issue(u, Verification)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), tok)
	require.NotNil(t, u.VerificationToken)
	assert.Equal(t, tok, *u.VerificationToken)
	assert.Equal(t, c.now.Add(24*time.Hour), *u.VerificationTokenExpiry)
	assert.Nil(t, u.ResetOTP)
}

func TestIssue_Reset(t *testing.T) {
	m, c := newManager()
	u := &model.User{}

	otp, err := m.Issue(u, Reset)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^[1-9][0-9]{5}$`), otp)
	assert.Equal(t, c.now.Add(15*time.Minute), *u.ResetOTPExpiry)
	assert.Nil(t, u.VerificationToken)
}

func TestIssue_ReplacesPrevious(t *testing.T) {
	m, _ := newManager()
	u := &model.User{}

	first, err := m.Issue(u, Verification)
	require.NoError(t, err)
	second, err := m.Issue(u, Verification)
	require.NoError(t, err)

	assert.False(t, m.Valid(u, Verification, first))
	assert.True(t, m.Valid(u, Verification, second))
}

func TestValid_Expiry(t *testing.T) {
	m, c := newManager()
	u := &model.User{}

	otp, err := m.Issue(u, Reset)
	require.NoError(t, err)

	c.now = c.now.Add(15 * time.Minute)
	assert.True(t, m.Valid(u, Reset, otp))

	c.now = c.now.Add(time.Second)
	assert.False(t, m.Valid(u, Reset, otp))
}

func TestValid_RejectsEmptyAndWrong(t *testing.T) {
	m, _ := newManager()
	u := &model.User{}

	assert.False(t, m.Valid(nil, Reset, "123456"))
	assert.False(t, m.Valid(u, Reset, "123456"))

	_, err := m.Issue(u, Reset)
	require.NoError(t, err)

	assert.False(t, m.Valid(u, Reset, ""))
	assert.False(t, m.Valid(u, Reset, "000000"))
}

func TestConsume(t *testing.T) {
	m, _ := newManager()
	u := &model.User{}

	tok, err := m.Issue(u, Verification)
	require.NoError(t, err)

	m.Consume(u, Verification)

	assert.Nil(t, u.VerificationToken)
	assert.Nil(t, u.VerificationTokenExpiry)
	assert.False(t, m.Valid(u, Verification, tok))
}
