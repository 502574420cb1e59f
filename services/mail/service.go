package mail

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	htmlTemplate "html/template"
	"os"
	"path/filepath"
	textTemplate "text/template"
	"time"

	"github.com/tech-arch1tect/resetkit/config"
	"github.com/tech-arch1tect/resetkit/services/logging"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

const sendTimeout = 15 * time.Second

//go:embed templates/*.html templates/*.txt
var defaultTemplates embed.FS

type MailClient interface {
	DialAndSend(msg *mail.Msg) error
}

type GoMailClient struct {
	client *mail.Client
}

func (c *GoMailClient) DialAndSend(msg *mail.Msg) error {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	return c.client.DialAndSendWithContext(ctx, msg)
}

type Service struct {
	config        *config.MailConfig
	client        MailClient
	htmlTemplates *htmlTemplate.Template
	textTemplates *textTemplate.Template
	logger        *logging.Service
}

func NewService(cfg *config.MailConfig, logger *logging.Service) (*Service, error) {
	clientOpts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(sendTimeout),
	}

	switch cfg.Encryption {
	case "ssl":
		clientOpts = append(clientOpts, mail.WithSSL())
	case "none":
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.NoTLS))
	default:
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	if cfg.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password))
	}

	client, err := mail.NewClient(cfg.Host, clientOpts...)
	if err != nil {
		if logger != nil {
			logger.Error("failed to create mail client",
				zap.Error(err),
				zap.String("host", cfg.Host),
				zap.Int("port", cfg.Port))
		}
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return NewServiceWithClient(cfg, logger, &GoMailClient{client: client})
}

func NewServiceWithClient(cfg *config.MailConfig, logger *logging.Service, client MailClient) (*Service, error) {
	if cfg.FromAddress == "" {
		if logger != nil {
			logger.Error("mail service initialization failed: FROM_ADDRESS is required")
		}
		return nil, fmt.Errorf("MAIL_FROM_ADDRESS is required")
	}

	service := &Service{
		config: cfg,
		client: client,
		logger: logger,
	}

	if err := service.loadTemplates(); err != nil {
		if logger != nil {
			logger.Error("failed to load mail templates", zap.Error(err))
		}
		return nil, fmt.Errorf("failed to load mail templates: %w", err)
	}

	if logger != nil {
		logger.Info("mail service initialized",
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port),
			zap.String("encryption", cfg.Encryption))
	}
	return service, nil
}

// loadTemplates parses the embedded templates, then any *.html and *.txt files in
// TemplatesDir. A file in TemplatesDir replaces the embedded template of the same name.
func (s *Service) loadTemplates() error {
	var err error
	s.htmlTemplates, err = htmlTemplate.ParseFS(defaultTemplates, "templates/*.html")
	if err != nil {
		return fmt.Errorf("failed to parse embedded HTML templates: %w", err)
	}
	s.textTemplates, err = textTemplate.ParseFS(defaultTemplates, "templates/*.txt")
	if err != nil {
		return fmt.Errorf("failed to parse embedded text templates: %w", err)
	}

	if s.config.TemplatesDir == "" {
		return nil
	}

	if _, err := os.Stat(s.config.TemplatesDir); err != nil {
		return fmt.Errorf("templates directory: %w", err)
	}

	htmlFiles, err := filepath.Glob(filepath.Join(s.config.TemplatesDir, "*.html"))
	if err != nil {
		return err
	}
	if len(htmlFiles) > 0 {
		if _, err := s.htmlTemplates.ParseFiles(htmlFiles...); err != nil {
			return fmt.Errorf("failed to parse HTML templates: %w", err)
		}
	}

	textFiles, err := filepath.Glob(filepath.Join(s.config.TemplatesDir, "*.txt"))
	if err != nil {
		return err
	}
	if len(textFiles) > 0 {
		if _, err := s.textTemplates.ParseFiles(textFiles...); err != nil {
			return fmt.Errorf("failed to parse text templates: %w", err)
		}
	}

	if s.logger != nil {
		s.logger.Info("mail template overrides loaded",
			zap.String("templates_dir", s.config.TemplatesDir),
			zap.Int("html_templates", len(htmlFiles)),
			zap.Int("text_templates", len(textFiles)))
	}
	return nil
}

func (s *Service) NewMessage() (*mail.Msg, error) {
	message := mail.NewMsg()

	fromAddr := s.config.FromAddress
	if s.config.FromName != "" {
		fromAddr = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromAddress)
	}

	if err := message.From(fromAddr); err != nil {
		return nil, fmt.Errorf("failed to set FROM address: %w", err)
	}
	return message, nil
}

func (s *Service) Send(message *mail.Msg) error {
	startTime := time.Now()
	err := s.client.DialAndSend(message)
	duration := time.Since(startTime)

	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to send email",
				zap.Error(err),
				zap.Duration("attempt_duration", duration))
		}
		return err
	}

	if s.logger != nil {
		s.logger.Info("email sent", zap.Duration("send_duration", duration))
	}
	return nil
}

// SendTemplate renders templateName (.html and/or .txt) with data and sends it.
func (s *Service) SendTemplate(templateName string, to []string, subject string, data map[string]any) error {
	message, err := s.NewMessage()
	if err != nil {
		return err
	}

	if err := message.To(to...); err != nil {
		return fmt.Errorf("failed to set TO addresses: %w", err)
	}
	message.Subject(subject)

	html, text, err := s.Render(templateName, data)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to render template", zap.Error(err), zap.String("template", templateName))
		}
		return fmt.Errorf("failed to render template: %w", err)
	}

	switch {
	case html != "" && text != "":
		message.SetBodyString(mail.TypeTextHTML, html)
		message.AddAlternativeString(mail.TypeTextPlain, text)
	case html != "":
		message.SetBodyString(mail.TypeTextHTML, html)
	default:
		message.SetBodyString(mail.TypeTextPlain, text)
	}

	if s.logger != nil {
		s.logger.Debug("sending template email", zap.String("template", templateName), zap.Int("recipients", len(to)))
	}
	return s.Send(message)
}

var errTemplateNotFound = errors.New("template not found")

// Render returns the html and text bodies of templateName. Either may be empty, not both.
func (s *Service) Render(templateName string, data map[string]any) (html, text string, err error) {
	if t := s.htmlTemplates.Lookup(templateName + ".html"); t != nil {
		var buf bytes.Buffer
		if err := t.Execute(&buf, data); err != nil {
			return "", "", fmt.Errorf("failed to execute HTML template: %w", err)
		}
		html = buf.String()
	}

	if t := s.textTemplates.Lookup(templateName + ".txt"); t != nil {
		var buf bytes.Buffer
		if err := t.Execute(&buf, data); err != nil {
			return "", "", fmt.Errorf("failed to execute text template: %w", err)
		}
		text = buf.String()
	}

	if html == "" && text == "" {
		return "", "", fmt.Errorf("%w: '%s'", errTemplateNotFound, templateName)
	}
	return html, text, nil
}
