package idempotency

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/storefront/customizer/internal/platform/httpx"
	"github.com/storefront/customizer/internal/platform/requestctx"
)

const (
	// DefaultHeader carries the client-chosen key.
	DefaultHeader = "Idempotency-Key"
	// ReplayHeader is set on responses served from the store.
	ReplayHeader = "Idempotent-Replayed"

	// DefaultMaxBodySize bounds the request body buffered for fingerprinting.
	DefaultMaxBodySize int64 = 64 * 1024

	anonymousScope = "anonymous"
	maxKeyLength   = 255
)

type config struct {
	header   string
	ttl      time.Duration
	required bool
	maxBody  int64
	methods  map[string]struct{}
	now      func() time.Time
}

// Option customises the middleware.
type Option func(*config)

// WithHeader overrides the request header holding the key.
func WithHeader(name string) Option {
	return func(c *config) {
		if name = strings.TrimSpace(name); name != "" {
			c.header = name
		}
	}
}

// WithTTL sets how long completed responses are replayed.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithMaxBodySize overrides the largest request body the middleware buffers.
func WithMaxBodySize(limit int64) Option {
	return func(c *config) {
		if limit > 0 {
			c.maxBody = limit
		}
	}
}

// WithRequiredKey rejects guarded requests that carry no key.
func WithRequiredKey() Option {
	return func(c *config) {
		c.required = true
	}
}

// WithMethods replaces the guarded HTTP methods.
func WithMethods(methods ...string) Option {
	return func(c *config) {
		guarded := make(map[string]struct{}, len(methods))
		for _, m := range methods {
			if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
				guarded[m] = struct{}{}
			}
		}
		if len(guarded) > 0 {
			c.methods = guarded
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// Middleware deduplicates retried submissions. A request carrying a key runs
// the handler once per (session, key); later identical requests get the stored
// response, a different request under the same key gets 409. Server errors are
// not stored so the client can retry.
func Middleware(store Store, opts ...Option) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	cfg := config{
		header:  DefaultHeader,
		ttl:     DefaultTTL,
		maxBody: DefaultMaxBodySize,
		methods: map[string]struct{}{http.MethodPost: {}, http.MethodPut: {}, http.MethodPatch: {}, http.MethodDelete: {}},
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if _, ok := cfg.methods[r.Method]; !ok {
				next.ServeHTTP(w, r)
				return
			}

			key := strings.TrimSpace(r.Header.Get(cfg.header))
			if key == "" {
				if cfg.required {
					httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_required", "missing "+cfg.header+" header", http.StatusBadRequest))
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxKeyLength {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_idempotency_key", "idempotency key is too long", http.StatusBadRequest))
				return
			}

			body, err := bufferBody(r, cfg.maxBody)
			if errors.Is(err, httpx.ErrBodyTooLarge) {
				httpx.WriteBodyError(w, r, err)
				return
			}
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read request body", http.StatusBadRequest))
				return
			}

			scope := requestctx.SessionID(ctx)
			if scope == "" {
				scope = anonymousScope
			}
			scoped := scope + "|" + key
			fingerprint := requestFingerprint(r, body, scope)
			logger := requestctx.Logger(ctx).With(zap.String("idempotency_key", key))

			claim, err := store.Claim(ctx, scoped, fingerprint, cfg.now().UTC(), cfg.ttl)
			switch {
			case errors.Is(err, ErrFingerprintMismatch):
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_conflict", "idempotency key already used for a different request", http.StatusConflict))
				return
			case err != nil:
				logger.Error("idempotency claim failed", zap.Error(err))
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_store_error", "unable to process idempotency key", http.StatusInternalServerError))
				return
			}

			switch claim.Outcome {
			case OutcomeReplay:
				replay(w, claim.Entry)
				return
			case OutcomeInFlight:
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_in_progress", "an identical request is still being processed", http.StatusConflict))
				return
			}

			rec := &recorder{header: make(http.Header)}
			next.ServeHTTP(rec, r)

			if rec.status() >= http.StatusInternalServerError {
				if err := store.Abandon(ctx, scoped); err != nil {
					logger.Warn("idempotency release failed", zap.Error(err))
				}
			} else if err := store.Complete(ctx, scoped, fingerprint, rec.response(), cfg.now().UTC(), cfg.ttl); err != nil {
				logger.Error("idempotency store failed", zap.Error(err))
				if err := store.Abandon(ctx, scoped); err != nil {
					logger.Warn("idempotency release failed", zap.Error(err))
				}
			}
			rec.flush(w)
		})
	}
}

func bufferBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, httpx.ErrBodyTooLarge
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

func requestFingerprint(r *http.Request, body []byte, scope string) string {
	var b strings.Builder
	for _, part := range []string{
		strings.ToUpper(r.Method),
		r.URL.Path,
		r.URL.RawQuery,
		r.Header.Get("Content-Type"),
		scope,
	} {
		b.WriteString(part)
		b.WriteByte('|')
	}
	if len(body) > 0 {
		b.WriteString(sha256Hex(body))
	}
	return sha256Hex([]byte(b.String()))
}

func replay(w http.ResponseWriter, entry Entry) {
	for name, values := range entry.Headers {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.Header().Set(ReplayHeader, "true")
	status := entry.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(entry.Body) > 0 {
		_, _ = w.Write(entry.Body)
	}
}

type recorder struct {
	header http.Header
	code   int
	body   bytes.Buffer
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) WriteHeader(code int) {
	if r.code == 0 {
		r.code = code
	}
}

func (r *recorder) Write(p []byte) (int, error) {
	if r.code == 0 {
		r.code = http.StatusOK
	}
	return r.body.Write(p)
}

func (r *recorder) status() int {
	if r.code == 0 {
		return http.StatusOK
	}
	return r.code
}

func (r *recorder) response() Response {
	return Response{Status: r.status(), Headers: r.header.Clone(), Body: r.body.Bytes()}
}

func (r *recorder) flush(w http.ResponseWriter) {
	dst := w.Header()
	for name, values := range r.header {
		dst[name] = append([]string(nil), values...)
	}
	w.WriteHeader(r.status())
	if r.body.Len() > 0 {
		_, _ = w.Write(r.body.Bytes())
	}
}
