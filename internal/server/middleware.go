package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/meetscribe/minutes-front/internal/cookie"
	"github.com/meetscribe/minutes-front/internal/crypto"
	jsonwriter "github.com/meetscribe/minutes-front/internal/json"
	"github.com/meetscribe/minutes-front/internal/log"
	"github.com/meetscribe/minutes-front/internal/session"
	"github.com/meetscribe/minutes-front/internal/sessionctx"
	"github.com/meetscribe/minutes-front/internal/storage"
)

// MiddlewareFunc is a function that wraps an http.Handler
type MiddlewareFunc func(http.Handler) http.Handler

// ChainMiddleware chains multiple middleware functions
func ChainMiddleware(h http.Handler, middlewares ...MiddlewareFunc) http.Handler {
	for _, mw := range middlewares {
		h = mw(h)
	}
	return h
}

// responseWriterDelegator wraps http.ResponseWriter to capture status and bytes written
// while properly delegating all optional interfaces through Unwrap
type responseWriterDelegator struct {
	http.ResponseWriter
	status      int
	written     int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriterDelegator {
	return &responseWriterDelegator{
		ResponseWriter: w,
		status:         http.StatusOK,
	}
}

func (r *responseWriterDelegator) Status() int {
	return r.status
}

func (r *responseWriterDelegator) BytesWritten() int {
	return r.written
}

func (r *responseWriterDelegator) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.status = code
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseWriterDelegator) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(b)
	r.written += n
	return n, err
}

// Unwrap returns the underlying ResponseWriter for interface detection
func (r *responseWriterDelegator) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Flush implements http.Flusher
func (r *responseWriterDelegator) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

var _ http.ResponseWriter = (*responseWriterDelegator)(nil)
var _ http.Flusher = (*responseWriterDelegator)(nil)

// NewLoggerMiddleware adds request/response logging
func NewLoggerMiddleware(prefix string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			fields := map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      wrapped.Status(),
				"duration_ms": time.Since(start).Milliseconds(),
				"bytes":       wrapped.BytesWritten(),
				"remote_addr": r.RemoteAddr,
			}
			if r.URL.RawQuery != "" {
				fields["query"] = r.URL.RawQuery
			}

			log.LogInfoWithFields(prefix, "request", fields)
		})
	}
}

// NewRecoverMiddleware recovers from panics
func NewRecoverMiddleware(prefix string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Logf("<%s> Recovered from panic: %v", prefix, err)
					jsonwriter.WriteInternalServerError(w, "Internal Server Error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// NewSessionMiddleware resolves the browser session from the encrypted sid
// cookie, minting a fresh session for first-time visitors, and puts the sid
// on the request context. A cookie that fails decryption is treated as
// absent and replaced.
func NewSessionMiddleware(encryptor crypto.Encryptor, store storage.Store, cookieTTL time.Duration) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := ""
			if raw, err := cookie.GetSession(r); err == nil {
				decrypted, err := encryptor.Decrypt(raw)
				if err != nil {
					log.LogDebug("Invalid session cookie: %v", err)
					cookie.ClearSession(w)
				} else {
					sid = decrypted
				}
			}

			if sid == "" {
				sid = uuid.NewString()
				encrypted, err := encryptor.Encrypt(sid)
				if err != nil {
					log.LogError("encrypting session cookie: %v", err)
					jsonwriter.WriteInternalServerError(w, "Internal Server Error")
					return
				}
				cookie.SetSession(w, encrypted, cookieTTL)
			}

			if _, err := store.EnsureState(r.Context(), sid); err != nil {
				// Degrades to an anonymous session
				log.LogWarnWithFields("http", "Session state unavailable", map[string]any{
					"error": err.Error(),
				})
			}

			next.ServeHTTP(w, r.WithContext(sessionctx.WithSID(r.Context(), sid)))
		})
	}
}

// NewRouteGuardMiddleware gates protected pages on verified authentication.
// A session with a cached user is served directly as long as the store still
// holds its token; anything unconfirmed forces a fresh verification.
// Unauthenticated requests are sent to the login page carrying the original
// path+query as returnTo.
func NewRouteGuardMiddleware(sessions *session.Manager) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid, ok := sessionctx.SID(r.Context())
			if !ok {
				redirectToLogin(w, r)
				return
			}

			user := sessions.ActiveUser(r.Context(), sid)
			if user == nil {
				verified, err := sessions.CheckAuth(r.Context(), sid, true)
				if err != nil || verified == nil {
					redirectToLogin(w, r)
					return
				}
				user = verified
			}

			next.ServeHTTP(w, r.WithContext(sessionctx.WithUser(r.Context(), user)))
		})
	}
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	returnTo := r.URL.Path
	if r.URL.RawQuery != "" {
		returnTo += "?" + r.URL.RawQuery
	}
	if session.IsAuthPath(r.URL.Path) {
		// Never loop the login page into itself
		http.Redirect(w, r, session.PathAuth, http.StatusFound)
		return
	}
	target := session.PathAuth + "?returnTo=" + url.QueryEscape(returnTo)
	http.Redirect(w, r, target, http.StatusFound)
}

// NewCSRFMiddleware validates the csrf_token form field (or X-CSRF-Token
// header) on mutating requests against the double-submit cookie. The cookie
// by itself never authorizes a request; forged cross-site posts carry the
// cookie but cannot read it into the form.
func NewCSRFMiddleware(csrf *crypto.CSRFProtection) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			token := r.PostFormValue("csrf_token")
			if token == "" {
				token = r.Header.Get("X-CSRF-Token")
			}
			cookieToken, _ := cookie.GetCSRF(r)
			if !csrf.ValidatePair(token, cookieToken) {
				jsonwriter.WriteForbidden(w, "Invalid or missing CSRF token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
