package service

import (
	"errors"
	"fmt"
	"net/smtp"
)

// ErrMailDelivery distinguishes "could not send the email" from storage
// faults; handlers map it to its own status.
var ErrMailDelivery = errors.New("unable to send verification email")

// Mailer delivers one plain-text message. The SMTP implementation is the
// production one; tests substitute a recording fake.
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPMailer sends through a STARTTLS-capable relay with plain auth.
type SMTPMailer struct {
	Host     string
	Port     int
	User     string
	Password string
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)
	msg := fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s\r\n", to, subject, body)
	auth := smtp.PlainAuth("", m.User, m.Password, m.Host)
	return smtp.SendMail(addr, auth, m.User, []string{to}, []byte(msg))
}
