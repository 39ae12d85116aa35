package mail

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "github.com/wneessen/go-mail"
)

func TestResetPasswordMessage(t *testing.T) {
	msg := ResetPasswordMessage("amy@example.com", "Amy", "https://app.test/reset?token=abc")

	assert.Equal(t, "amy@example.com", msg.To)
	assert.Contains(t, msg.Body, "Hi Amy,")
	assert.Contains(t, msg.Body, "https://app.test/reset?token=abc")

	anon := ResetPasswordMessage("bob@example.com", "", "x")
	assert.Contains(t, anon.Body, "Hi bob@example.com,")
}

func TestLogMailer(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMailer(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, m.Send(context.Background(), Message{To: "a@b.c", Subject: "hello", Body: "body"}))
	assert.Contains(t, buf.String(), "to=a@b.c")
	assert.Contains(t, buf.String(), "subject=hello")
}

func TestSMTPMailer_Send(t *testing.T) {
	var got *gomail.Msg
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.test", Port: 2525, User: "u", Password: "p", From: "no-reply@test"})
	m.deliver = func(_ context.Context, msg *gomail.Msg) error {
		got = msg
		return nil
	}

	err := m.Send(context.Background(), Message{To: "amy@example.com", Subject: "Réinitialiser", Body: "line1\nline2"})
	require.NoError(t, err)
	require.NotNil(t, got)

	sender, err := got.GetSender(false)
	require.NoError(t, err)
	assert.Equal(t, "no-reply@test", sender)

	rcpts, err := got.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"amy@example.com"}, rcpts)

	var raw bytes.Buffer
	_, err = got.WriteTo(&raw)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), "=?UTF-8?", "non-ASCII subject is encoded")
	assert.NotContains(t, raw.String(), "Subject: Réinitialiser")
	assert.Contains(t, raw.String(), "line1")
}

func TestSMTPMailer_Errors(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.test", Port: 25, From: "f@test"})
	m.deliver = func(context.Context, *gomail.Msg) error {
		return errors.New("relay refused")
	}

	err := m.Send(context.Background(), Message{To: "a@test", Subject: "s"})
	assert.ErrorContains(t, err, "relay refused")

	err = m.Send(context.Background(), Message{To: "a@test\r\nBcc: evil@test", Subject: "s"})
	assert.Error(t, err)

	err = m.Send(context.Background(), Message{To: "not an address", Subject: "s"})
	assert.ErrorContains(t, err, "invalid recipient")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, Message{To: "a@test"}), context.Canceled)
}
