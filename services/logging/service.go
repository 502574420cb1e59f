package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Service struct {
	logger *zap.Logger
}

type LogLevel string

const (
	Debug LogLevel = "debug"
	Info  LogLevel = "info"
	Warn  LogLevel = "warn"
	Error LogLevel = "error"
)

type Config struct {
	Level      LogLevel
	Format     string
	OutputPath string
}

func NewService(config Config) (*Service, error) {
	zapConfig := zap.NewProductionConfig()

	zapConfig.Level = zap.NewAtomicLevelAt(parseLogLevel(config.Level))

	switch config.Format {
	case "console":
		zapConfig.Encoding = "console"
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "json":
		zapConfig.Encoding = "json"
	}

	if config.OutputPath != "" && config.OutputPath != "stdout" {
		zapConfig.OutputPaths = []string{config.OutputPath}
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	return &Service{logger: logger}, nil
}

// NewWithLogger wraps an existing zap logger, mostly for tests using zaptest/observer.
func NewWithLogger(logger *zap.Logger) *Service {
	return &Service{logger: logger}
}

func NewNop() *Service {
	return &Service{logger: zap.NewNop()}
}

func (s *Service) Logger() *zap.Logger {
	if s != nil {
		return s.logger
	}
	return nil
}

// With returns a child service carrying fields on every entry. Nil-safe.
func (s *Service) With(fields ...zap.Field) *Service {
	if s == nil || s.logger == nil {
		return s
	}
	return &Service{logger: s.logger.With(fields...)}
}

func (s *Service) Named(name string) *Service {
	if s == nil || s.logger == nil {
		return s
	}
	return &Service{logger: s.logger.Named(name)}
}

func (s *Service) Debug(msg string, fields ...zap.Field) {
	if s != nil && s.logger != nil {
		s.logger.Debug(msg, fields...)
	}
}

func (s *Service) Info(msg string, fields ...zap.Field) {
	if s != nil && s.logger != nil {
		s.logger.Info(msg, fields...)
	}
}

func (s *Service) Warn(msg string, fields ...zap.Field) {
	if s != nil && s.logger != nil {
		s.logger.Warn(msg, fields...)
	}
}

func (s *Service) Error(msg string, fields ...zap.Field) {
	if s != nil && s.logger != nil {
		s.logger.Error(msg, fields...)
	}
}

func (s *Service) Sync() error {
	if s != nil && s.logger != nil {
		return s.logger.Sync()
	}
	return nil
}

// TokenHash logs only a prefix of a lookup hash. Raw token secrets must never be logged.
func TokenHash(hash string) zap.Field {
	if len(hash) > 12 {
		hash = hash[:12] + "..."
	}
	return zap.String("token_hash", hash)
}

func AccountID(id string) zap.Field {
	return zap.String("account_id", id)
}

// Email masks the local part so addresses of unknown accounts are not harvested from logs.
func Email(address string) zap.Field {
	return zap.String("email", MaskEmail(address))
}

func MaskEmail(address string) string {
	at := strings.LastIndex(address, "@")
	if at <= 0 {
		return "***"
	}
	local, domain := address[:at], address[at:]
	if len(local) <= 2 {
		return strings.Repeat("*", len(local)) + domain
	}
	return local[:1] + strings.Repeat("*", len(local)-2) + local[len(local)-1:] + domain
}

func parseLogLevel(level LogLevel) zapcore.Level {
	switch level {
	case Debug:
		return zapcore.DebugLevel
	case Info:
		return zapcore.InfoLevel
	case Warn:
		return zapcore.WarnLevel
	case Error:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
