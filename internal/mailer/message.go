package mailer

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
)

// Message is a multipart/alternative email with a plain text and an HTML part.
type Message struct {
	From    string
	To      []string
	Cc      []string
	Subject string
	Text    string
	HTML    string
}

// Recipients returns every envelope recipient, To first.
func (m *Message) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.Cc))
	out = append(out, m.To...)
	return append(out, m.Cc...)
}

// Bytes encodes the message as RFC 5322 text.
func (m *Message) Bytes() ([]byte, error) {
	if len(m.To) == 0 {
		return nil, errors.New("message has no recipients")
	}

	msg := mail.NewMsg()
	if err := msg.From(m.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", m.From, err)
	}
	if err := msg.To(m.To...); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	if len(m.Cc) > 0 {
		if err := msg.Cc(m.Cc...); err != nil {
			return nil, fmt.Errorf("invalid cc: %w", err)
		}
	}
	msg.Subject(m.Subject)
	msg.SetMessageID()
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, m.Text)
	msg.AddAlternativeString(mail.TypeTextHTML, m.HTML)

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return buf.Bytes(), nil
}
