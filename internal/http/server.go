package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"monthbook/internal/auth"
	"monthbook/internal/cache"
	"monthbook/internal/core"
	applog "monthbook/internal/log"
	"monthbook/internal/middleware/ratelimit"
	"monthbook/internal/middleware/security"
	"monthbook/internal/middleware/trace"
	appweb "monthbook/web"
)

// Months is the month use case surface the handlers need.
type Months interface {
	List(ctx context.Context, actor core.Actor) ([]core.Month, error)
	Create(ctx context.Context, actor core.Actor, params core.MonthParams) (core.Month, error)
	Get(ctx context.Context, actor core.Actor, id string) (core.Month, error)
	Update(ctx context.Context, actor core.Actor, id string, params core.MonthParams) (core.Month, error)
	Delete(ctx context.Context, actor core.Actor, id string) error
}

// Notes is the note use case surface the handlers need.
type Notes interface {
	List(ctx context.Context, actor core.Actor, monthID string) ([]core.Note, error)
	Create(ctx context.Context, actor core.Actor, monthID string, params core.NoteParams) (core.Note, error)
	Get(ctx context.Context, actor core.Actor, monthID, id string) (core.Note, error)
	Update(ctx context.Context, actor core.Actor, monthID, id string, params core.NoteParams) (core.Note, error)
	Delete(ctx context.Context, actor core.Actor, monthID, id string) error
	Sum(ctx context.Context, monthID string) (decimal.Decimal, error)
	Summary(ctx context.Context, actor core.Actor, monthID string) (core.MonthSummary, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the web server.
type Deps struct {
	Months Months
	Notes  Notes
	Auth   *auth.Authenticator
	// Health is checked by /readyz. Optional.
	Health Pinger
	Logger *applog.Logger

	RateLimitPerMinute int
	// TrustedProxies are CIDRs trusted in addition to loopback and private ranges.
	TrustedProxies []string
}

type Server struct {
	http.Server

	months Months
	notes  Notes
	auth   *auth.Authenticator
	health Pinger
	logger *applog.Logger
	pages  map[string]*template.Template

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	caches   *cache.Manager

	started      time.Time
	writes       atomic.Int64
	shutdownOnce sync.Once
}

// NewServer wires routes, middleware and templates into a ready to run server.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Months == nil || deps.Notes == nil || deps.Auth == nil {
		return nil, fmt.Errorf("http server requires months, notes and auth")
	}
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	pages, err := parseTemplates(appweb.TemplatesFS)
	if err != nil {
		return nil, err
	}
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}

	detector := security.NewDetector()
	for _, cidr := range deps.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	s := &Server{
		months:   deps.Months,
		notes:    deps.Notes,
		auth:     deps.Auth,
		health:   deps.Health,
		logger:   logger,
		pages:    pages,
		detector: detector,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: deps.RateLimitPerMinute,
			CleanupInterval:   5 * time.Minute,
		}),
		caches:  cache.NewManager(logger.Logger),
		started: time.Now(),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ClientIP)
	s.caches.Register("session_users", deps.Auth.Cache())
	s.caches.Start(context.Background(), 10*time.Minute)

	mux := http.NewServeMux()
	mux.Handle("GET /static/", security.StaticAssets(3600)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /{$}", s.handleHome)

	mux.HandleFunc("GET /users/sign_up", s.handleSignUpForm)
	mux.HandleFunc("POST /users", s.handleSignUp)
	mux.HandleFunc("GET /users/sign_in", s.handleSignInForm)
	mux.HandleFunc("POST /users/sign_in", s.handleSignIn)
	mux.HandleFunc("POST /users/sign_out", s.handleSignOut)
	mux.HandleFunc("DELETE /users/sign_out", s.handleSignOut)

	mux.HandleFunc("GET /months", s.handleMonthsIndex)
	mux.HandleFunc("GET /months/new", s.handleMonthsNew)
	mux.HandleFunc("POST /months", s.handleMonthsCreate)
	mux.HandleFunc("GET /months/{id}", s.handleMonthsShow)
	mux.HandleFunc("GET /months/{id}/edit", s.handleMonthsEdit)
	mux.HandleFunc("PUT /months/{id}", s.handleMonthsUpdate)
	mux.HandleFunc("PATCH /months/{id}", s.handleMonthsUpdate)
	mux.HandleFunc("DELETE /months/{id}", s.handleMonthsDestroy)

	mux.HandleFunc("GET /months/{month_id}/notes", s.handleNotesIndex)
	mux.HandleFunc("GET /months/{month_id}/notes/new", s.handleNotesNew)
	mux.HandleFunc("POST /months/{month_id}/notes", s.handleNotesCreate)
	mux.HandleFunc("GET /months/{month_id}/notes/{id}", s.handleNotesShow)
	mux.HandleFunc("GET /months/{month_id}/notes/{id}/edit", s.handleNotesEdit)
	mux.HandleFunc("PUT /months/{month_id}/notes/{id}", s.handleNotesUpdate)
	mux.HandleFunc("PATCH /months/{month_id}/notes/{id}", s.handleNotesUpdate)
	mux.HandleFunc("DELETE /months/{month_id}/notes/{id}", s.handleNotesDestroy)

	var handler http.Handler = mux
	handler = s.authenticate(handler)
	handler = s.limiter.Middleware(s.detector.ClientIP, s.rateLimited)(handler)
	handler = methodOverride(handler)
	handler = s.detector.Middleware(handler)
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s, nil
}

// Shutdown stops background routines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(),
		"Rate limit exceeded",
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path,
		applog.FieldClientIP, s.detector.ClientIP(r))
	ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w, r)
}
