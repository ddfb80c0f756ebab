package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/sirupsen/logrus"
)

// Sentry tags each request on the Sentry scope and reports 5xx responses.
func Sentry() func(http.Handler) http.Handler {
	sentryHandler := sentryhttp.New(sentryhttp.Options{
		Repanic:         false,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})

	return func(next http.Handler) http.Handler {
		return sentryHandler.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
				hub.Scope().SetRequest(r)
				hub.Scope().SetTag("http.method", r.Method)
				hub.Scope().SetTag("http.path", r.URL.Path)

				if user := UserFromContext(r.Context()); user != nil {
					hub.Scope().SetUser(sentry.User{Username: user.Username})
				}
			}

			next.ServeHTTP(wrapped, r)

			if wrapped.statusCode >= 500 {
				if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
					hub.WithScope(func(scope *sentry.Scope) {
						scope.SetLevel(sentry.LevelError)
						hub.CaptureMessage(fmt.Sprintf("HTTP %d: %s %s", wrapped.statusCode, r.Method, r.URL.Path))
					})
				}
			}
		}))
	}
}

// Recovery captures panics, reports them and answers 500.
func Recovery() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logrus.WithFields(logrus.Fields{
						"error":  err,
						"method": r.Method,
						"path":   r.URL.Path,
					}).Error("Panic recovered")

					if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
						hub.RecoverWithContext(r.Context(), err)
						hub.Flush(2 * time.Second)
					} else {
						sentry.CurrentHub().RecoverWithContext(r.Context(), err)
						sentry.Flush(2 * time.Second)
					}

					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status codes
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
