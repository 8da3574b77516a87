package mail

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
	// sendgrid accepts at most 1000 personalizations per request
	maxPersonalizations = 1000
)

// SendgridMailer delivers messages through the SendGrid v3 API.
type SendgridMailer struct {
	key  string
	from *sgmail.Email
	call func(rest.Request) (*rest.Response, error)
}

// NewSendgridMailer returns a SendGrid backed Mailer.
func NewSendgridMailer(apiKey string, from Address) *SendgridMailer {
	return &SendgridMailer{
		key:  apiKey,
		from: sgmail.NewEmail(from.Name, from.Email),
		call: sendgrid.API,
	}
}

// Send implements Mailer. Recipients are batched into requests carrying one
// personalization each, so no recipient sees another's address.
func (m *SendgridMailer) Send(ctx context.Context, msg Message) error {
	for start := 0; start < len(msg.To); start += maxPersonalizations {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + maxPersonalizations
		if end > len(msg.To) {
			end = len(msg.To)
		}

		req := sendgrid.GetRequest(m.key, sendgridEndpoint, sendgridHost)
		req.Method = http.MethodPost
		req.Body = sgmail.GetRequestBody(m.prepare(msg, msg.To[start:end]))

		res, err := m.call(req)
		if err != nil {
			return fmt.Errorf("sendgrid request: %w", err)
		}
		if res.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
		}
	}
	return nil
}

func (m *SendgridMailer) prepare(msg Message, to []Address) *sgmail.SGMailV3 {
	v3 := sgmail.NewV3Mail()
	v3.SetFrom(m.from)
	v3.Subject = msg.Subject
	for _, addr := range to {
		p := sgmail.NewPersonalization()
		p.AddTos(sgmail.NewEmail(addr.Name, addr.Email))
		v3.AddPersonalizations(p)
	}

	text := msg.Text
	if text == "" {
		text = msg.Subject
	}
	v3.AddContent(sgmail.NewContent("text/plain", text))
	if msg.HTML != "" {
		v3.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return v3
}
