package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/google/uuid"
	"github.com/mmdatafocus/project_billing/config"
	"github.com/mmdatafocus/project_billing/models"
	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"
)

// Notifier delivers one approval notification and returns a provider message id.
type Notifier interface {
	Send(ctx context.Context, n models.ApprovalNotification) (string, error)
}

const (
	TransportLog    = "log"
	TransportSMTP   = "smtp"
	TransportPubSub = "pubsub"
)

// NewNotifierFromEnv picks the notifier configured by NOTIFY_TRANSPORT.
func NewNotifierFromEnv(logger *logrus.Logger) (Notifier, error) {
	switch config.NotifyTransport() {
	case TransportLog:
		return &LogNotifier{Logger: logger}, nil
	case TransportSMTP:
		settings := config.GetSMTPSettings()
		if settings.Host == "" {
			return nil, errors.New("SMTP_HOST is required for NOTIFY_TRANSPORT=smtp")
		}
		return &SMTPNotifier{Settings: settings}, nil
	case TransportPubSub:
		if config.NotificationTopic() == "" {
			return nil, errors.New("NOTIFICATION_TOPIC is required for NOTIFY_TRANSPORT=pubsub")
		}
		return &PubSubNotifier{}, nil
	default:
		return nil, fmt.Errorf("unknown NOTIFY_TRANSPORT %q", config.NotifyTransport())
	}
}

var (
	approvedSubject = template.Must(template.New("approvedSubject").Parse(
		`{{.DocumentType}} {{.DocumentNumber}} approved`))
	rejectedSubject = template.Must(template.New("rejectedSubject").Parse(
		`{{.DocumentType}} {{.DocumentNumber}} rejected`))

	approvedBody = template.Must(template.New("approvedBody").Parse(`Hello {{.RecipientName}},

Your {{.DocumentType}} {{.DocumentNumber}} for project {{.ProjectName}} has been approved by the {{.ApproverLabel}}.

Amount: {{.Amount.StringFixed 2}}
`))
	rejectedBody = template.Must(template.New("rejectedBody").Parse(`Hello {{.RecipientName}},

Your {{.DocumentType}} {{.DocumentNumber}} for project {{.ProjectName}} has been rejected by the {{.ApproverLabel}}.

Amount: {{.Amount.StringFixed 2}}
{{- if .Reason}}
Reason: {{.Reason}}
{{- end}}
`))
)

// RenderNotification returns the plain text subject and body for n.
func RenderNotification(n models.ApprovalNotification) (subject string, body string, err error) {
	subjectTpl, bodyTpl := approvedSubject, approvedBody
	if n.Event == models.NotificationEventRejected {
		subjectTpl, bodyTpl = rejectedSubject, rejectedBody
	}
	view := struct {
		models.ApprovalNotification
		Reason string
	}{ApprovalNotification: n}
	if n.Reason != nil {
		view.Reason = *n.Reason
	}

	var buf bytes.Buffer
	if err = subjectTpl.Execute(&buf, view); err != nil {
		return "", "", err
	}
	subject = buf.String()
	buf.Reset()
	if err = bodyTpl.Execute(&buf, view); err != nil {
		return "", "", err
	}
	return subject, buf.String(), nil
}

// LogNotifier writes notifications to the application log. It is the default
// transport for local development.
type LogNotifier struct {
	Logger *logrus.Logger
}

func (l *LogNotifier) Send(ctx context.Context, n models.ApprovalNotification) (string, error) {
	subject, body, err := RenderNotification(n)
	if err != nil {
		return "", err
	}
	id := "log-" + uuid.NewString()
	logger := l.Logger
	if logger == nil {
		logger = config.GetLogger()
	}
	logger.WithFields(logrus.Fields{
		"field":           "LogNotifier",
		"to":              n.RecipientEmail,
		"subject":         subject,
		"document_number": n.DocumentNumber,
		"message_id":      id,
	}).Info(strings.TrimSpace(body))
	return id, nil
}

type SMTPNotifier struct {
	Settings config.SMTPSettings
}

func (s *SMTPNotifier) Send(ctx context.Context, n models.ApprovalNotification) (string, error) {
	subject, body, err := RenderNotification(n)
	if err != nil {
		return "", err
	}

	m := mail.NewMsg()
	if err := m.From(s.Settings.From); err != nil {
		return "", fmt.Errorf("smtp from: %w", err)
	}
	if err := m.To(n.RecipientEmail); err != nil {
		return "", fmt.Errorf("smtp to: %w", err)
	}
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.Settings.Host)
	m.SetGenHeader(mail.HeaderMessageID, messageID)
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(s.Settings.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.Settings.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.Settings.Username),
			mail.WithPassword(s.Settings.Password),
		)
	}
	client, err := mail.NewClient(s.Settings.Host, opts...)
	if err != nil {
		return "", fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return "", err
	}
	return messageID, nil
}

// PubSubNotifier hands the payload to a mail service subscribed to NOTIFICATION_TOPIC.
type PubSubNotifier struct{}

func (p *PubSubNotifier) Send(ctx context.Context, n models.ApprovalNotification) (string, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return "", err
	}
	return config.PublishNotificationWithResult(ctx, data, map[string]string{
		"event":          string(n.Event),
		"documentType":   n.DocumentType,
		"documentNumber": n.DocumentNumber,
	})
}
