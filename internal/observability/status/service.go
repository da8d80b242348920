// Package status serves the liveness page, a JSON status document and an
// optional token-guarded pprof mount.
package status

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/routegroup"

	rtsup "examnotify/internal/runtime/supervisor"
	logx "examnotify/pkg/logx"
)

const pprofPrefix = "/debug/pprof"

// Config controls the status HTTP server.
type Config struct {
	Addr  string
	Pprof PprofConfig

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PprofConfig guards the profiling mount. A non-loopback Addr requires Token.
type PprofConfig struct {
	Enabled bool
	Token   string
}

// AppInfo is reported in response headers and the status document.
type AppInfo struct {
	Name    string
	Author  string
	Version string
}

// Provider supplies the live data behind the endpoints.
type Provider interface {
	// LastChecked returns when the last cycle finished.
	LastChecked() (time.Time, bool)
	// Status returns the JSON-serializable pipeline state.
	Status(ctx context.Context) map[string]any
}

type Service struct {
	mu   sync.Mutex
	log  logx.Logger
	cfg  Config
	info AppInfo
	prov Provider

	started time.Time
	handler http.Handler

	ln  net.Listener
	srv *http.Server
	sup *rtsup.Supervisor
}

func New(cfg Config, info AppInfo, prov Provider, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = ":3000"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		// pprof profile defaults to 30s of sampling
		cfg.WriteTimeout = 45 * time.Second
	}
	s := &Service{cfg: cfg, info: info, prov: prov, log: log, started: time.Now()}
	s.handler = s.routes()
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Service) Handler() http.Handler { return s.handler }

func (s *Service) routes() http.Handler {
	router := routegroup.New(http.NewServeMux())
	router.Use(rest.AppInfo(s.info.Name, s.info.Author, s.info.Version))
	router.Use(rest.Ping)
	router.Use(rest.Recoverer(s.log))
	router.Use(rest.Throttle(100))

	router.HandleFunc("GET /{$}", s.rootHandler)
	router.HandleFunc("GET /status", s.statusHandler)

	if s.pprofAllowed() {
		router.Mount(pprofPrefix).Route(func(r *routegroup.Bundle) {
			r.Use(tokenAuth(s.cfg.Pprof.Token))
			r.HandleFunc("GET /", hpprof.Index)
			r.HandleFunc("GET /cmdline", hpprof.Cmdline)
			r.HandleFunc("GET /profile", hpprof.Profile)
			r.HandleFunc("GET /symbol", hpprof.Symbol)
			r.HandleFunc("GET /trace", hpprof.Trace)
		})
	}
	return router
}

func (s *Service) pprofAllowed() bool {
	p := s.cfg.Pprof
	if !p.Enabled {
		return false
	}
	if strings.TrimSpace(p.Token) == "" && !isLoopbackAddr(s.cfg.Addr) {
		s.log.Error("pprof refused: non-loopback addr requires a token", logx.String("addr", s.cfg.Addr))
		return false
	}
	return true
}

func (s *Service) rootHandler(w http.ResponseWriter, _ *http.Request) {
	last := "never"
	if s.prov != nil {
		if at, ok := s.prov.LastChecked(); ok {
			last = at.Format(time.RFC1123)
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "Exam Notification Bot is running! Last checked: %s", last)
}

func (s *Service) statusHandler(w http.ResponseWriter, r *http.Request) {
	doc := map[string]any{}
	if s.prov != nil {
		for k, v := range s.prov.Status(r.Context()) {
			doc[k] = v
		}
	}
	doc["app"] = s.info.Name
	doc["version"] = s.info.Version
	doc["started_at"] = s.started.UTC()
	doc["uptime"] = time.Since(s.started).Round(time.Second).String()
	rest.RenderJSON(w, doc)
}

// Start runs the server under a restart loop so a transient listen failure
// heals on its own.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil {
		return
	}
	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log),
		// status is observability; never take the bot down with it
		rtsup.WithCancelOnError(false),
	)
	s.sup.GoRestart("http.serve", s.serveOnce, rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second))
}

// Addr returns the bound address once listening, else "".
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	sup, srv := s.sup, s.srv
	s.sup = nil
	s.mu.Unlock()
	if sup == nil {
		return
	}

	// cancel first so the restart loop reads the Serve return as a shutdown
	sup.Cancel()
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			s.log.Warn("status shutdown", logx.Err(err))
			_ = srv.Close()
		}
	}
	if err := sup.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Debug("status supervisor", logx.Err(err))
	}
	s.log.Info("status server stopped")
}

func (s *Service) serveOnce(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.log.Error("status listen failed", logx.String("addr", s.cfg.Addr), logx.Err(err))
		if ctx.Err() != nil {
			return context.Canceled
		}
		return err
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	s.mu.Lock()
	s.ln, s.srv = ln, srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(cctx)
		cancel()
	}()

	s.log.Info("status server started", logx.String("addr", ln.Addr().String()), logx.Bool("pprof", s.cfg.Pprof.Enabled))
	err = srv.Serve(ln)

	s.mu.Lock()
	if s.srv == srv {
		s.srv, s.ln = nil, nil
	}
	s.mu.Unlock()

	if ctx.Err() != nil {
		return context.Canceled
	}
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return errors.New("status server exited unexpectedly")
	}
	return err
}

// tokenAuth accepts "Authorization: Bearer <token>" or "?token=<token>".
func tokenAuth(token string) func(http.Handler) http.Handler {
	tok := strings.TrimSpace(token)
	return func(next http.Handler) http.Handler {
		if tok == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("token"); got != "" {
				if got == tok {
					next.ServeHTTP(w, r)
					return
				}
				unauthorized(w)
				return
			}
			const p = "Bearer "
			if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, p) && strings.TrimSpace(strings.TrimPrefix(ah, p)) == tok {
				next.ServeHTTP(w, r)
				return
			}
			unauthorized(w)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		// empty host means all interfaces
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
