package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/campusflow/campus-flow-api/config"
	"github.com/campusflow/campus-flow-api/utils/logger"
)

var ErrEmailNotConfigured = errors.New("email delivery is not configured")

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// Mailer sends moderation result emails
type Mailer interface {
	SendModerationResult(ctx context.Context, to, name, resourceTitle string, approved bool, comments string) error
}

// EmailService sends email through SendGrid
type EmailService struct {
	apiKey string
	from   *sgmail.Email
	appURL string
	host   string
}

func NewEmailService(env *config.EnvironmentVariable) *EmailService {
	return &EmailService{
		apiKey: env.SENDGRID_API_KEY,
		from:   sgmail.NewEmail("Campus Flow", env.MAIL_FROM),
		appURL: env.APP_URL,
		host:   sendgridHost,
	}
}

// IsConfigured checks if a SendGrid key is present
func (e *EmailService) IsConfigured() bool {
	return e.apiKey != ""
}

// SendModerationResult tells an uploader whether their resource was approved
func (e *EmailService) SendModerationResult(ctx context.Context, to, name, resourceTitle string, approved bool, comments string) error {
	if !e.IsConfigured() {
		logger.Debug().Str("to", to).Bool("approved", approved).Msg("SendGrid not configured, skipping moderation email")
		return ErrEmailNotConfigured
	}

	subject, body := e.buildModerationEmail(name, resourceTitle, approved, comments)
	return e.send(ctx, to, name, subject, body)
}

func (e *EmailService) buildModerationEmail(name, resourceTitle string, approved bool, comments string) (string, string) {
	if name == "" {
		name = "there"
	}

	subject := "Your resource was approved"
	verdict := "has been approved and is now visible to other students. You earned 10 coins!"
	if !approved {
		subject = "Your resource needs changes"
		verdict = "was not approved."
	}

	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>Your upload <strong>%s</strong> %s</p>`,
		html.EscapeString(name), html.EscapeString(resourceTitle), verdict)
	if comments != "" {
		body += fmt.Sprintf("<p>Reviewer comments: %s</p>", html.EscapeString(comments))
	}
	body += fmt.Sprintf(`<p><a href="%s/dashboard">Open Campus Flow</a></p>`, e.appURL)

	return "[Campus Flow] " + subject, body
}

func (e *EmailService) send(ctx context.Context, to, name, subject, htmlBody string) error {
	p := sgmail.NewPersonalization()
	p.Subject = subject
	p.AddTos(sgmail.NewEmail(name, to))

	m := sgmail.NewV3Mail()
	m.SetFrom(e.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/html", htmlBody))

	if err := ctx.Err(); err != nil {
		return err
	}

	req := sendgrid.GetRequest(e.apiKey, sendgridEndpoint, e.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid rejected email: status %d: %s", res.StatusCode, res.Body)
	}

	logger.Info().Str("to", to).Str("subject", subject).Msg("email sent")
	return nil
}
