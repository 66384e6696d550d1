package obs

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

const serviceName = "staybook"

// NewLogger builds the process logger: colorized tint output for local work,
// JSON elsewhere. Every line carries the service and environment so booking
// and payout log streams stay attributable once aggregated.
func NewLogger(env string) *slog.Logger {
	level := slog.LevelInfo
	if lvl := strings.ToLower(os.Getenv("LOG_LEVEL")); lvl == "debug" {
		level = slog.LevelDebug
	}
	writer := os.Stdout

	var handler slog.Handler
	if env == "dev" || env == "local" {
		handler = tint.NewHandler(writer, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
		})
	} else {
		handler = slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler).With("service", serviceName, "env", env)
}
