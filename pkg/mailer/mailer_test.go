package mailer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

type stubDialer struct {
	sent []*gomail.Message
	err  error
}

func (s *stubDialer) DialAndSend(m ...*gomail.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, m...)
	return nil
}

func TestNewWithoutHostLogsOnly(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "mailer-test", Output: &buf})

	m := New(config.MailConfig{}, logg)
	_, ok := m.(*LogMailer)
	require.True(t, ok)

	err := m.Send(context.Background(), Message{To: "a@example.com", Subject: "hi", Body: "hello"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "mail.skipped_no_smtp")
}

func TestNewWithHostUsesSMTP(t *testing.T) {
	m := New(config.MailConfig{SMTPHost: "smtp.example.com", SMTPPort: 587, From: "shop@example.com"}, nil)
	_, ok := m.(*SMTPMailer)
	assert.True(t, ok)
}

func TestSMTPMailerSendBuildsMessage(t *testing.T) {
	d := &stubDialer{}
	m := &SMTPMailer{from: "shop@example.com", dialer: d}

	err := m.Send(context.Background(), Message{To: "buyer@example.com", Subject: "Order", Body: "placed"})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"buyer@example.com"}, d.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"shop@example.com"}, d.sent[0].GetHeader("From"))
	assert.Equal(t, []string{"Order"}, d.sent[0].GetHeader("Subject"))
}

func TestSMTPMailerSendWrapsDialError(t *testing.T) {
	d := &stubDialer{err: errors.New("connection refused")}
	m := &SMTPMailer{from: "shop@example.com", dialer: d}

	err := m.Send(context.Background(), Message{To: "buyer@example.com", Subject: "Order"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSendRequiresRecipientAndSubject(t *testing.T) {
	m := &SMTPMailer{dialer: &stubDialer{}}
	require.Error(t, m.Send(context.Background(), Message{Subject: "x"}))
	require.Error(t, m.Send(context.Background(), Message{To: "a@example.com"}))
}
