package auth

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// DefaultMailTimeout bounds the SMTP dial and the whole exchange so a slow
// relay cannot hang a registration or login call.
const DefaultMailTimeout = 10 * time.Second

// SMTPMailer delivers verification codes over SMTP with STARTTLS when the
// server offers it.
type SMTPMailer struct {
	host          string
	port          string
	username      string
	password      string
	from          string
	verifyBaseURL string
	timeout       time.Duration
	logger        Logger
}

type SMTPMailerOption func(*SMTPMailer)

func NewSMTPMailer(host, port, username, password, from string, opts ...SMTPMailerOption) *SMTPMailer {
	m := &SMTPMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		timeout:  DefaultMailTimeout,
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

func WithVerifyBaseURL(url string) SMTPMailerOption {
	return func(m *SMTPMailer) {
		m.verifyBaseURL = strings.TrimRight(url, "/")
	}
}

func WithMailTimeout(timeout time.Duration) SMTPMailerOption {
	return func(m *SMTPMailer) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

func WithMailerLogger(logger Logger) SMTPMailerOption {
	return func(m *SMTPMailer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

var _ Mailer = (*SMTPMailer)(nil)

// SendVerificationEmail mails the OTP plus a link to the verification page.
func (m *SMTPMailer) SendVerificationEmail(ctx context.Context, user *User, code string) error {
	if m.host == "" || m.from == "" {
		return goerrors.New("mail transport not configured", goerrors.CategoryExternal).
			WithTextCode(TextCodeMailDelivery)
	}

	msg := m.buildMessage(user, code)

	if err := m.send(ctx, user.Email, msg); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "verification email delivery failed").
			WithTextCode(TextCodeMailDelivery)
	}

	m.logger.Debug("verification email sent", "to", user.Email)

	return nil
}

func (m *SMTPMailer) buildMessage(user *User, code string) string {
	var sb strings.Builder
	sb.WriteString("From: " + m.from + "\r\n")
	sb.WriteString("To: " + user.Email + "\r\n")
	sb.WriteString("Subject: Email Verification OTP\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString("<h1>Your OTP is " + code + "</h1>\r\n")
	if m.verifyBaseURL != "" {
		sb.WriteString(fmt.Sprintf(
			"<a href=%q>Click on this link to go to the verification page</a>\r\n",
			m.verifyBaseURL+"/"+user.Email,
		))
	}
	return sb.String()
}

func (m *SMTPMailer) send(ctx context.Context, to, msg string) error {
	addr := net.JoinHostPort(m.host, m.port)

	timeout := m.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	// the deadline covers the whole exchange, not just the dial
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}

	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return err
		}
	}

	if m.username != "" {
		auth := smtp.PlainAuth("", m.username, m.password, m.host)
		if err := c.Auth(auth); err != nil {
			return err
		}
	}

	if err := c.Mail(m.from); err != nil {
		return err
	}

	if err := c.Rcpt(to); err != nil {
		return err
	}

	wc, err := c.Data()
	if err != nil {
		return err
	}

	if _, err := wc.Write([]byte(msg)); err != nil {
		return err
	}

	if err := wc.Close(); err != nil {
		return err
	}

	return c.Quit()
}
