package logger

import (
	"io"
	"log/slog"
	"os"

	"authkit/internal/config"
)

// New creates the process-wide logger. Production gets JSON records,
// everything else gets the readable text handler.
func New(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	if cfg.Server.Environment == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     slog.LevelInfo,
			AddSource: true,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	logger := slog.New(handler).With(
		"service", "authkit",
		"environment", cfg.Server.Environment,
	)

	// Set as default logger
	slog.SetDefault(logger)

	return logger
}

// WithUser creates a logger with user context
func WithUser(l *slog.Logger, userID int64, email string) *slog.Logger {
	return l.With(
		"user_id", userID,
		"user_email", email,
	)
}

// SilenceLogger redirects logs to the given writer (useful for testing)
func SilenceLogger(w io.Writer) {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors
	})
	slog.SetDefault(slog.New(handler))
}
