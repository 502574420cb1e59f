package mail

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/resetkit/config"
	"github.com/wneessen/go-mail"
)

type MockMailClient struct {
	sendFunc func(msg *mail.Msg) error
	sent     []*mail.Msg
}

func (m *MockMailClient) DialAndSend(msg *mail.Msg) error {
	m.sent = append(m.sent, msg)
	if m.sendFunc != nil {
		return m.sendFunc(msg)
	}
	return nil
}

func getTestMailConfig() *config.MailConfig {
	return &config.MailConfig{
		Host:        "localhost",
		Port:        587,
		Username:    "test@example.com",
		Password:    "password",
		Encryption:  "tls",
		FromAddress: "noreply@example.com",
		FromName:    "Test App",
	}
}

func resetData() map[string]any {
	return map[string]any{
		"AppName":       "Test App",
		"Email":         "alice@example.com",
		"ResetURL":      "https://app.example.com/auth/password/edit?reset_password_token=abc",
		"ExpiryMinutes": 20,
		"Browser":       "Firefox",
		"OS":            "Linux",
		"IP":            "203.0.113.7",
	}
}

func messageBody(t *testing.T, msg *mail.Msg) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestNewService(t *testing.T) {
	t.Run("with mock client", func(t *testing.T) {
		cfg := getTestMailConfig()
		client := &MockMailClient{}

		service, err := NewServiceWithClient(cfg, nil, client)

		require.NoError(t, err)
		assert.Equal(t, cfg, service.config)
		assert.Equal(t, client, service.client)
	})

	t.Run("missing from address", func(t *testing.T) {
		cfg := getTestMailConfig()
		cfg.FromAddress = ""

		service, err := NewServiceWithClient(cfg, nil, &MockMailClient{})

		require.Error(t, err)
		assert.Nil(t, service)
		assert.Contains(t, err.Error(), "MAIL_FROM_ADDRESS is required")
	})

	t.Run("real client", func(t *testing.T) {
		for _, encryption := range []string{"tls", "ssl", "none"} {
			cfg := getTestMailConfig()
			cfg.Encryption = encryption

			service, err := NewService(cfg, nil)

			require.NoError(t, err, encryption)
			assert.IsType(t, &GoMailClient{}, service.client)
		}
	})

	t.Run("missing templates directory", func(t *testing.T) {
		cfg := getTestMailConfig()
		cfg.TemplatesDir = filepath.Join(t.TempDir(), "missing")

		_, err := NewServiceWithClient(cfg, nil, &MockMailClient{})

		assert.Error(t, err)
	})
}

func TestService_EmbeddedTemplates(t *testing.T) {
	service, err := NewServiceWithClient(getTestMailConfig(), nil, &MockMailClient{})
	require.NoError(t, err)

	html, text, err := service.Render("password_reset", resetData())
	require.NoError(t, err)

	assert.Contains(t, html, `href="https://app.example.com/auth/password/edit?reset_password_token=abc"`)
	assert.Contains(t, html, "Firefox on Linux")
	assert.Contains(t, text, "expires in 20 minutes")
	assert.Contains(t, text, "(203.0.113.7)")

	html, text, err = service.Render("password_reset_success", map[string]any{
		"AppName":   "Test App",
		"Email":     "alice@example.com",
		"ChangedAt": "2026-03-01 12:00 UTC",
	})
	require.NoError(t, err)
	assert.Contains(t, html, "was reset at 2026-03-01 12:00 UTC")
	assert.Contains(t, text, "Your Test App password was changed")
}

func TestService_TemplateOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "password_reset.txt"), []byte("custom {{.ResetURL}}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "welcome.html"), []byte("<p>hi {{.Email}}</p>"), 0644))

	cfg := getTestMailConfig()
	cfg.TemplatesDir = dir
	service, err := NewServiceWithClient(cfg, nil, &MockMailClient{})
	require.NoError(t, err)

	html, text, err := service.Render("password_reset", resetData())
	require.NoError(t, err)
	assert.Equal(t, "custom https://app.example.com/auth/password/edit?reset_password_token=abc", text)
	assert.Contains(t, html, "Choose a new password", "embedded html is kept")

	html, text, err = service.Render("welcome", map[string]any{"Email": "a@b.c"})
	require.NoError(t, err)
	assert.Equal(t, "<p>hi a@b.c</p>", html)
	assert.Empty(t, text)
}

func TestService_SendTemplate(t *testing.T) {
	t.Run("sends multipart message", func(t *testing.T) {
		client := &MockMailClient{}
		service, err := NewServiceWithClient(getTestMailConfig(), nil, client)
		require.NoError(t, err)

		err = service.SendTemplate("password_reset", []string{"alice@example.com"}, "Reset your password", resetData())

		require.NoError(t, err)
		require.Len(t, client.sent, 1)

		msg := client.sent[0]
		require.Len(t, msg.GetToString(), 1)
		assert.Contains(t, msg.GetToString()[0], "alice@example.com")
		require.Len(t, msg.GetFromString(), 1)
		assert.Contains(t, msg.GetFromString()[0], "Test App")
		body := messageBody(t, msg)
		assert.Contains(t, body, "Subject: Reset your password")
		assert.Contains(t, body, "text/html")
		assert.Contains(t, body, "text/plain")
	})

	t.Run("unknown template", func(t *testing.T) {
		client := &MockMailClient{}
		service, err := NewServiceWithClient(getTestMailConfig(), nil, client)
		require.NoError(t, err)

		err = service.SendTemplate("nonexistent", []string{"alice@example.com"}, "x", nil)

		require.Error(t, err)
		assert.ErrorIs(t, err, errTemplateNotFound)
		assert.Empty(t, client.sent)
	})

	t.Run("invalid recipient", func(t *testing.T) {
		service, err := NewServiceWithClient(getTestMailConfig(), nil, &MockMailClient{})
		require.NoError(t, err)

		err = service.SendTemplate("password_reset", []string{"not an address"}, "x", resetData())

		assert.Error(t, err)
	})

	t.Run("client failure is returned", func(t *testing.T) {
		client := &MockMailClient{sendFunc: func(msg *mail.Msg) error { return assert.AnError }}
		service, err := NewServiceWithClient(getTestMailConfig(), nil, client)
		require.NoError(t, err)

		err = service.SendTemplate("password_reset", []string{"alice@example.com"}, "x", resetData())

		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestService_NewMessage(t *testing.T) {
	cfg := getTestMailConfig()
	cfg.FromName = ""
	service := &Service{config: cfg}

	msg, err := service.NewMessage()
	require.NoError(t, err)
	require.Len(t, msg.GetFromString(), 1)
	assert.Contains(t, msg.GetFromString()[0], "noreply@example.com")

	service.config = &config.MailConfig{FromAddress: "not an address"}
	_, err = service.NewMessage()
	assert.Error(t, err)
}

func TestGoMailClient(t *testing.T) {
	var _ MailClient = &GoMailClient{}
}
