package app

import "github.com/lguportal/portal/pkg/mail"

// SMTPSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// Mailer returns the SMTP mailer when delivery is enabled and a log-only mailer otherwise.
func (c EmailConfig) Mailer() (mail.Mailer, error) {
	if !c.SMTP.Enabled {
		return mail.LogMailer{}, nil
	}
	return mail.NewSMTPMailer(c.SMTPSettings())
}
