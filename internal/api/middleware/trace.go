package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/cloo-solutions/ragchat/internal/domain"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 64
)

type traceKey struct{}

// RequestTrace is created once per request by Trace and filled in by the
// auth middleware and the chat handlers. AccessLog and SentryMiddleware read
// it after the handler returns. All methods are safe on a nil receiver.
type RequestTrace struct {
	RequestID string

	mu       sync.Mutex
	clientID string
	code     string
	chunks   int
}

// Outcome is what the handlers reported about a request.
type Outcome struct {
	ClientID string
	Code     string
	Chunks   int
}

// SetClient records the authenticated caller.
func (t *RequestTrace) SetClient(clientID string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.clientID = clientID
	t.mu.Unlock()
}

// RecordChunks records how many knowledge chunks the request retrieved.
func (t *RequestTrace) RecordChunks(n int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.chunks = n
	t.mu.Unlock()
}

// RecordError records the domain code of a failed request. Errors outside
// the domain taxonomy leave the code empty.
func (t *RequestTrace) RecordError(err error) {
	if t == nil || err == nil {
		return
	}
	t.mu.Lock()
	t.code = domain.CodeOf(err)
	t.mu.Unlock()
}

// Outcome returns a copy of what has been recorded so far.
func (t *RequestTrace) Outcome() Outcome {
	if t == nil {
		return Outcome{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return Outcome{ClientID: t.clientID, Code: t.code, Chunks: t.chunks}
}

// Trace attaches a RequestTrace to the request and echoes its ID in the
// X-Request-ID response header. A caller-supplied ID is reused only when it
// is short and made of safe characters, since it ends up in log lines.
func Trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trace := &RequestTrace{RequestID: requestIDFrom(r)}
		w.Header().Set(requestIDHeader, trace.RequestID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), traceKey{}, trace)))
	})
}

func requestIDFrom(r *http.Request) string {
	id := r.Header.Get(requestIDHeader)
	if id == "" || len(id) > maxRequestIDLen || strings.IndexFunc(id, unsafeIDRune) >= 0 {
		return uuid.NewString()
	}
	return id
}

func unsafeIDRune(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return false
	case c == '-', c == '_', c == '.':
		return false
	}
	return true
}

// TraceFrom returns the request's trace, or nil outside Trace.
func TraceFrom(ctx context.Context) *RequestTrace {
	trace, _ := ctx.Value(traceKey{}).(*RequestTrace)
	return trace
}

// GetRequestID returns the request ID from context.
func GetRequestID(ctx context.Context) string {
	if trace := TraceFrom(ctx); trace != nil {
		return trace.RequestID
	}
	return ""
}
