package client

import (
	"fmt"
	"net/smtp"

	"morality-quiz-backend/internal/config"
)

// EmailClient sends transactional mail. Callers treat failures as
// log-and-continue; a lost email must never fail webhook handling.
type EmailClient interface {
	Send(to, subject, body string) error
}

type smtpEmailClient struct {
	addr     string
	host     string
	from     string
	password string
}

func NewEmailClient(smtpCfg *config.SMTP) EmailClient {
	return &smtpEmailClient{
		addr:     smtpCfg.Host + ":" + smtpCfg.Port,
		host:     smtpCfg.Host,
		from:     smtpCfg.Email,
		password: smtpCfg.Password,
	}
}

func (c *smtpEmailClient) Send(to, subject, body string) error {
	msg := ""
	msg += "MIME-Version: 1.0\r\n"
	msg += "Content-Type: text/html; charset=\"UTF-8\"\r\n"
	msg += fmt.Sprintf("From: %s\r\n", c.from)
	msg += fmt.Sprintf("To: %s\r\n", to)
	msg += fmt.Sprintf("Subject: %s\r\n", subject)
	msg += "\r\n" + body

	err := smtp.SendMail(
		c.addr,
		smtp.PlainAuth("", c.from, c.password, c.host),
		c.from,
		[]string{to},
		[]byte(msg),
	)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
