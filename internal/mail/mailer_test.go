package mail

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderer(t *testing.T) {
	t.Parallel()

	renderer, err := NewRenderer()
	require.NoError(t, err)

	t.Run("renders the forget template", func(t *testing.T) {
		body, err := renderer.Render("forget", map[string]any{"name": "Ana", "token": "abc.def.ghi", "expires_in": "30 minutes"})
		require.NoError(t, err)
		require.Contains(t, body, "Hello Ana")
		require.Contains(t, body, "abc.def.ghi")
		require.Contains(t, body, "30 minutes")
	})

	t.Run("escapes html in data", func(t *testing.T) {
		body, err := renderer.Render("forget", map[string]any{"name": "<script>", "token": "t"})
		require.NoError(t, err)
		require.NotContains(t, body, "<script>")
	})

	t.Run("unknown template fails", func(t *testing.T) {
		_, err := renderer.Render("welcome", nil)
		require.Error(t, err)
	})
}

func TestSMTPMailer(t *testing.T) {
	t.Parallel()

	renderer, err := NewRenderer()
	require.NoError(t, err)

	t.Run("sends a rendered MIME message", func(t *testing.T) {
		mailer := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 2525, Username: "u", Password: "p", From: "no-reply@example.com"}, renderer)

		var gotAddr string
		var gotTo []string
		var gotMsg []byte
		mailer.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotTo, gotMsg = addr, to, msg
			require.Equal(t, "no-reply@example.com", from)
			return nil
		}

		err := mailer.Send(context.Background(), Message{
			To:       "ana@example.com",
			Subject:  "Password reset\r\nBcc: evil@example.com",
			Template: "forget",
			Data:     map[string]any{"name": "Ana", "token": "tok"},
		})
		require.NoError(t, err)
		require.Equal(t, "smtp.example.com:2525", gotAddr)
		require.Equal(t, []string{"ana@example.com"}, gotTo)
		require.Contains(t, string(gotMsg), "Subject: Password resetBcc: evil@example.com\r\n")
		require.Contains(t, string(gotMsg), "Content-Type: text/html; charset=UTF-8")
		require.Contains(t, string(gotMsg), "tok")
	})

	t.Run("wraps transport errors", func(t *testing.T) {
		mailer := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 25, From: "a@example.com"}, renderer)
		boom := errors.New("connection refused")
		mailer.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }

		err := mailer.Send(context.Background(), Message{To: "b@example.com", Template: "forget"})
		require.ErrorIs(t, err, boom)
	})

	t.Run("honours a cancelled context", func(t *testing.T) {
		mailer := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 25}, renderer)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		require.ErrorIs(t, mailer.Send(ctx, Message{Template: "forget"}), context.Canceled)
	})
}
