package emailer

import (
	"crypto/tls"
	netmail "net/mail"
	"strings"
	"time"

	mail "github.com/xhit/go-simple-mail/v2"
)

// SmtpConfig describes the outgoing mail server
type SmtpConfig struct {
	Hostname   string
	Port       int
	Username   string
	Password   string
	AuthType   string // PLAIN, LOGIN or NONE
	Encryption string // NONE, SSL, SSLTLS, TLS or STARTTLS
	NoTLSCheck bool
}

// SmtpMail sends reports through an SMTP relay
type SmtpMail struct {
	server *mail.SMTPServer
	from   string
}

func parseAuthType(authType string) mail.AuthType {
	switch strings.ToUpper(authType) {
	case "PLAIN":
		return mail.AuthPlain
	case "LOGIN":
		return mail.AuthLogin
	default:
		return mail.AuthNone
	}
}

func parseEncryption(encryption string) mail.Encryption {
	switch strings.ToUpper(encryption) {
	case "NONE":
		return mail.EncryptionNone
	case "SSL":
		return mail.EncryptionSSL
	case "SSLTLS":
		return mail.EncryptionSSLTLS
	case "TLS":
		return mail.EncryptionTLS
	default:
		return mail.EncryptionSTARTTLS
	}
}

// NewSmtpMail prepares a client for cfg; no connection is made until Send
func NewSmtpMail(cfg SmtpConfig, fromName, from string) *SmtpMail {
	server := mail.NewSMTPClient()
	server.Host = cfg.Hostname
	server.Port = cfg.Port
	server.Username = cfg.Username
	server.Password = cfg.Password
	server.Authentication = parseAuthType(cfg.AuthType)
	server.Encryption = parseEncryption(cfg.Encryption)
	server.KeepAlive = false
	server.ConnectTimeout = 10 * time.Second
	server.SendTimeout = 30 * time.Second
	if cfg.NoTLSCheck {
		server.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &SmtpMail{server: server, from: formatAddress(fromName, from)}
}

func formatAddress(name, address string) string {
	if name == "" {
		return address
	}
	return (&netmail.Address{Name: name, Address: address}).String()
}

func (o *SmtpMail) Send(toName string, to string, subject string, content string, attachments []Attachment) error {
	email := mail.NewMSG().
		SetFrom(o.from).
		AddTo(formatAddress(toName, to)).
		SetSubject(subject).
		SetBody(mail.TextHTML, content)

	for _, a := range attachments {
		email.Attach(&mail.File{Name: a.Name, Data: a.Data, MimeType: a.MimeType})
	}
	if email.Error != nil {
		return email.Error
	}

	client, err := o.server.Connect()
	if err != nil {
		return err
	}
	defer client.Close()

	return email.Send(client)
}
