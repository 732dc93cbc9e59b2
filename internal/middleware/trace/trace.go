package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	applog "monthbook/internal/log"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// HeaderRequestID echoes the request id back to the client.
const HeaderRequestID = "X-Request-ID"

// Middleware assigns a request id, attaches a request scoped logger to the
// context and logs the start and end of every request.
type Middleware struct {
	logger    *applog.Logger
	clientIP  func(*http.Request) string
	requests  atomic.Int64
	errors    atomic.Int64
	totalTime atomic.Int64
}

type Metrics struct {
	TotalRequests int64
	ServerErrors  int64
	// AverageResponseTime is in microseconds.
	AverageResponseTime int64
}

func NewMiddleware(logger *applog.Logger, clientIP func(*http.Request) string) *Middleware {
	return &Middleware{logger: logger, clientIP: clientIP}
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := GenerateRequestID()
		clientIP := ""
		if m.clientIP != nil {
			clientIP = m.clientIP(r)
		}

		reqLogger := m.logger.With(applog.FieldRequestID, requestID)
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		ctx = applog.WithContext(ctx, reqLogger)
		r = r.WithContext(ctx)

		structured := applog.NewStructuredLogger(reqLogger)
		structured.LogHTTPStart(ctx, r, clientIP)

		w.Header().Set(HeaderRequestID, requestID)
		rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		elapsed := time.Since(start)
		m.requests.Add(1)
		m.totalTime.Add(elapsed.Microseconds())
		if rw.statusCode >= 500 {
			m.errors.Add(1)
		}
		structured.LogHTTPEnd(ctx, r, rw.statusCode, elapsed.Milliseconds(), clientIP)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// GenerateRequestID returns a random id prefixed with "req_".
func GenerateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(b)
}

// RequestID returns the id assigned to the current request, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (m *Middleware) Metrics() Metrics {
	n := m.requests.Load()
	avg := int64(0)
	if n > 0 {
		avg = m.totalTime.Load() / n
	}
	return Metrics{
		TotalRequests:       n,
		ServerErrors:        m.errors.Load(),
		AverageResponseTime: avg,
	}
}
