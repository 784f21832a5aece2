package emailer

import (
	"encoding/base64"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendgridApiMail sends reports through the SendGrid v3 API
type SendgridApiMail struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendgridApiMail(apiKey, fromName, from string) *SendgridApiMail {
	return &SendgridApiMail{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, from),
	}
}

func (o *SendgridApiMail) Send(toName string, to string, subject string, content string, attachments []Attachment) error {
	m := mail.NewV3MailInit(o.from, subject, mail.NewEmail(toName, to), mail.NewContent("text/html", content))

	for _, a := range attachments {
		m.AddAttachment(sendgridAttachment(a))
	}

	response, err := o.client.Send(m)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
	}
	return nil
}

func sendgridAttachment(a Attachment) *mail.Attachment {
	mimeType := a.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return mail.NewAttachment().
		SetContent(base64.StdEncoding.EncodeToString(a.Data)).
		SetType(mimeType).
		SetFilename(a.Name).
		SetDisposition("attachment")
}
