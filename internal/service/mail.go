package service

import (
	"bitwise74/identity-api/config"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"gopkg.in/gomail.v2"
)

// Mailer delivers secrets out of band. Delivery is best effort, callers log
// failures and carry on.
type Mailer interface {
	SendVerification(ctx context.Context, to, token string) error
	SendOTP(ctx context.Context, to, otp string) error
}

type SMTPMailer struct {
	dialer    *gomail.Dialer
	from      string
	clientURL string
}

func NewSMTPMailer(c config.Mail, clientURL string) *SMTPMailer {
	m := &SMTPMailer{
		from:      c.Sender,
		clientURL: strings.TrimSuffix(clientURL, "/"),
	}

	if c.Host != "" {
		m.dialer = gomail.NewDialer(c.Host, c.Port, c.Username, c.Password)
	}

	return m
}

func (m *SMTPMailer) SendVerification(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", m.clientURL, url.QueryEscape(token))

	return m.send(ctx, to,
		"Verify your email",
		fmt.Sprintf("Click the link to verify your email: %s\n\nThis link will expire in 24 hours.", link),
		fmt.Sprintf("<p>Thank you for signing up. Please verify your email address to get started.</p>"+
			"<p><a href='%s'>Verify email address</a></p>"+
			"<p>This link will expire in 24 hours. If you didn't sign up, please ignore this email.</p>", link),
	)
}

func (m *SMTPMailer) SendOTP(ctx context.Context, to, otp string) error {
	return m.send(ctx, to,
		"Your password reset code",
		fmt.Sprintf("Your password reset code is: %s. This code will expire in 15 minutes.", otp),
		fmt.Sprintf("<p>We received a request to reset your password. Use the code below to proceed:</p>"+
			"<p style='font-size:32px;font-weight:bold;letter-spacing:5px'>%s</p>"+
			"<p>This code will expire in 15 minutes. If you didn't request a password reset, please ignore this email.</p>", otp),
	)
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, text, html string) error {
	if m.dialer == nil {
		return ErrMailDisabled
	}

	if strings.EqualFold(to, m.from) {
		return errors.New("invalid email address")
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", text)
	msg.AddAlternative("text/html", html)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send %q mail: %w", subject, err)
	}

	return nil
}
