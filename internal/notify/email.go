package notify

import (
	"context"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

type SmtpConfig struct {
	Server   string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// Enabled reports whether enough is configured to send anything.
func (c SmtpConfig) Enabled() bool {
	return c.Server != "" && c.From != "" && len(c.To) > 0
}

func (c SmtpConfig) addr() string {
	port := c.Port
	if port == 0 {
		port = 25
	}
	return fmt.Sprintf("%s:%d", c.Server, port)
}

type Email struct {
	config SmtpConfig
}

func NewEmail(config SmtpConfig) Email {
	return Email{config: config}
}

func (Email) Name() string {
	return "email"
}

// htmlBody renders body as a single paragraph with line breaks preserved.
func htmlBody(body string) string {
	escaped := html.EscapeString(body)
	return "<p>" + strings.ReplaceAll(escaped, "\n", "<br/>") + "</p>"
}

func (e Email) build(msg Message) *email.Email {
	mail := email.NewEmail()
	mail.From = e.config.From
	mail.To = e.config.To
	mail.Subject = msg.Title
	mail.Text = []byte(msg.Body)
	mail.HTML = []byte(htmlBody(msg.Body))
	return mail
}

func (e Email) Send(ctx context.Context, msg Message) error {
	mail := e.build(msg)

	var auth smtp.Auth
	if e.config.Username != "" {
		auth = smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Server)
	}

	// net/smtp has no context support, the dispatcher timeout bounds the wait instead
	done := make(chan error, 1)
	go func() {
		err := mail.Send(e.config.addr(), auth)
		if err != nil && auth != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
			err = mail.Send(e.config.addr(), nil)
		}
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
