package audit

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/modeltrack/modeltrack/pkg/auth"
)

// Config controls audit behavior.
type Config struct {
	// Enabled activates the middleware.
	Enabled bool `mapstructure:"enabled"`
	// LogDenied records 403 outcomes as well as successes and failures.
	LogDenied bool `mapstructure:"log_denied"`
	// RetentionDays bounds how long events are kept. Zero disables the
	// retention sweep.
	RetentionDays int `mapstructure:"retention_days"`
}

// statusCapture wraps http.ResponseWriter to observe the status code.
type statusCapture struct {
	http.ResponseWriter
	status  int
	written bool
}

func (c *statusCapture) WriteHeader(code int) {
	if !c.written {
		c.status = code
		c.written = true
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *statusCapture) Write(b []byte) (int, error) {
	if !c.written {
		c.status = http.StatusOK
		c.written = true
	}
	return c.ResponseWriter.Write(b)
}

// Middleware records one event per mutating request. Reads are not audited.
// It runs outside the authorization middleware so denials are captured too;
// the actor is observed through an identity recorder since authentication
// happens further down the chain. Requests rejected before authentication
// are recorded as anonymous.
func Middleware(store *Store, cfg Config, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || store == nil || !isMutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			ctx, recorder := auth.WithIdentityRecorder(r.Context())
			r = r.WithContext(ctx)

			capture := &statusCapture{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)

			outcome := outcomeFromStatus(capture.status)
			if outcome == OutcomeDenied && !cfg.LogDenied {
				return
			}

			actor := "anonymous"
			if id, ok := recorder.Identity(); ok {
				actor = id.Username
			}

			event := &Event{
				Actor:      actor,
				Method:     r.Method,
				Path:       r.URL.Path,
				Outcome:    outcome,
				StatusCode: capture.status,
				RequestID:  middleware.GetReqID(r.Context()),
			}
			if err := store.Append(event); err != nil {
				logger.Error("failed to write audit event", "error", err, "path", r.URL.Path)
			}
		})
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func outcomeFromStatus(code int) string {
	switch {
	case code >= 200 && code < 300:
		return OutcomeSuccess
	case code == http.StatusForbidden:
		return OutcomeDenied
	default:
		return OutcomeFailure
	}
}
