// Package devproxy forwards a local path prefix to the marketplace API so a
// browser front end can call it without cross-origin restrictions.
package devproxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vitwit/nftbuy/logger"
	"github.com/vitwit/nftbuy/metrics"
	"github.com/vitwit/nftbuy/types"
	"github.com/vitwit/nftbuy/utils"
)

// Proxy rewrites <prefix>/<rest> to <target>/<rest>.
type Proxy struct {
	cfg     types.ProxyConfig
	target  *url.URL
	router  *chi.Mux
	logger  logger.Logger
	metrics metrics.Recorder
}

type Option func(*Proxy)

func WithLogger(l logger.Logger) Option {
	return func(p *Proxy) {
		p.logger = logger.OrNoop(l)
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(p *Proxy) {
		p.metrics = metrics.OrNoop(r)
	}
}

// New validates cfg and builds the proxy routes.
func New(cfg types.ProxyConfig, opts ...Option) (*Proxy, error) {
	if err := utils.ValidateStruct(cfg); err != nil {
		return nil, types.NewError(types.ErrConfig, "invalid proxy configuration", err)
	}

	target, err := url.Parse(cfg.Target)
	if err != nil {
		return nil, types.NewError(types.ErrConfig, fmt.Sprintf("invalid proxy target %q", cfg.Target), err)
	}

	cfg.Prefix = "/" + strings.Trim(cfg.Prefix, "/")

	p := &Proxy{
		cfg:     cfg,
		target:  target,
		router:  chi.NewRouter(),
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(p)
	}

	p.routes()
	return p, nil
}

// Handler returns the HTTP handler.
func (p *Proxy) Handler() http.Handler {
	return p.router
}

func (p *Proxy) routes() {
	p.router.Use(middleware.RequestID)
	p.router.Use(middleware.Recoverer)
	p.router.Use(p.logRequests)
	p.router.Use(cors)

	p.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	rp := &httputil.ReverseProxy{
		Rewrite: p.rewrite,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			p.logger.Error("upstream request failed", map[string]any{
				"path":  r.URL.Path,
				"error": err,
			})
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		},
	}

	p.router.Handle(p.cfg.Prefix, rp)
	p.router.Handle(p.cfg.Prefix+"/*", rp)
}

// rewrite strips the prefix and points the request at the target host.
func (p *Proxy) rewrite(pr *httputil.ProxyRequest) {
	rest := strings.TrimPrefix(pr.In.URL.Path, p.cfg.Prefix)
	if rest == "" {
		rest = "/"
	}
	pr.Out.URL.Path = rest
	pr.Out.URL.RawPath = ""
	pr.SetURL(p.target)
	pr.Out.Host = p.target.Host
}

func (p *Proxy) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		p.logger.Debug("proxied request", map[string]any{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
		})
		p.metrics.ObserveLatency(metrics.ProxyLatency, time.Since(start), map[string]string{
			"stage": strconv.Itoa(ww.Status()),
		})
	})
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, X-API-KEY")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves on the configured address until ctx ends.
func (p *Proxy) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              p.cfg.Listen,
		Handler:           p.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		p.logger.Info("dev proxy listening", map[string]any{
			"listen": p.cfg.Listen,
			"prefix": p.cfg.Prefix,
			"target": p.target.String(),
		})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
