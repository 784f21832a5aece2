package emailer

import "github.com/stockui/stock-ui/util"

type Attachment struct {
	Name     string
	Data     []byte
	MimeType string
}

type Emailer interface {
	Send(toName string, to string, subject string, content string, attachments []Attachment) error
}

// FromConfig picks the SendGrid API when a key is configured, then SMTP.
// It returns nil when no mail transport is configured.
func FromConfig() Emailer {
	switch {
	case util.SendgridApiKey != "":
		return NewSendgridApiMail(util.SendgridApiKey, util.EmailFromName, util.EmailFrom)
	case util.SmtpHostname != "":
		return NewSmtpMail(SmtpConfig{
			Hostname:   util.SmtpHostname,
			Port:       util.SmtpPort,
			Username:   util.SmtpUsername,
			Password:   util.SmtpPassword,
			AuthType:   util.SmtpAuthType,
			Encryption: util.SmtpEncryption,
			NoTLSCheck: util.SmtpNoTLSCheck,
		}, util.EmailFromName, util.EmailFrom)
	default:
		return nil
	}
}
