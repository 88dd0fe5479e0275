// Package mailer renders and sends the onboarding emails through SES.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	"github.com/spec-kit/onboarding-service/internal/domain"
	apperrors "github.com/spec-kit/onboarding-service/pkg/util/errorutil"
)

const providerName = "ses"

// RawSender is the subset of the SES client used to deliver mail.
type RawSender interface {
	SendRawEmail(ctx context.Context, params *ses.SendRawEmailInput, optFns ...func(*ses.Options)) (*ses.SendRawEmailOutput, error)
}

// Mailer sends the welcome and cloud access emails.
type Mailer struct {
	sender   RawSender
	renderer *Renderer
	source   string
	logger   *zap.Logger
}

// New builds a Mailer sending from source.
func New(sender RawSender, renderer *Renderer, source string, logger *zap.Logger) *Mailer {
	return &Mailer{sender: sender, renderer: renderer, source: source, logger: logger}
}

// SendWelcome mails the activation link to the hire's private address with
// the manager in copy.
func (m *Mailer) SendWelcome(ctx context.Context, notice domain.WelcomeNotice) error {
	return m.send(ctx, TemplateWelcome, notice, notice.PrivateEmail, notice.ManagerEmail)
}

// SendCloudAccess mails cloud credentials to the work address with the
// manager in copy.
func (m *Mailer) SendCloudAccess(ctx context.Context, notice domain.CloudAccessNotice) error {
	return m.send(ctx, TemplateCloudAccess, notice, notice.WorkEmail, notice.ManagerEmail)
}

func (m *Mailer) send(ctx context.Context, template string, data any, to, cc string) error {
	rendered, err := m.renderer.Render(template, data)
	if err != nil {
		return err
	}
	msg := &Message{
		From:    m.source,
		To:      []string{to},
		Subject: rendered.Subject,
		Text:    rendered.Text,
		HTML:    rendered.HTML,
	}
	if cc != "" && cc != to {
		msg.Cc = []string{cc}
	}
	raw, err := msg.Bytes()
	if err != nil {
		return apperrors.NewMalformedField("recipient", to, "a valid email address")
	}

	out, err := m.sender.SendRawEmail(ctx, &ses.SendRawEmailInput{
		Source:       aws.String(m.source),
		Destinations: msg.Recipients(),
		RawMessage:   &types.RawMessage{Data: raw},
	})
	if err != nil {
		var rejected *types.MessageRejected
		if errors.As(err, &rejected) {
			return apperrors.NewProviderRejected(providerName, map[string]any{"template": template}, err)
		}
		return fmt.Errorf("send %s email: %w", template, err)
	}

	m.logger.Info("email sent",
		zap.String("template", template),
		zap.Int("recipients", len(msg.Recipients())),
		zap.String("message_id", aws.ToString(out.MessageId)),
	)
	return nil
}
