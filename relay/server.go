// Package relay implements the HTTP surface exposed per project: a scrubbed
// status read, a pledge submission, an auth-gated full status read, and an
// auth-gated claim trigger. An http.Server wraps a ServeMux, started in its
// own goroutine and torn down on shutdown; there's no gRPC-gateway traffic
// to carry, so the surface stays plain REST.
package relay

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/lightningnetwork/lighthouse/build"
	"github.com/lightningnetwork/lighthouse/engine"
	"golang.org/x/time/rate"
)

// Config collects everything the relay needs to serve requests.
type Config struct {
	Addr   string
	TLS    *tls.Config // nil serves plaintext, used for --local-node/regtest
	Engine *engine.Engine
	RPS    float64 // per-client request budget, 0 uses DefaultRPS
	Burst  int     // 0 uses DefaultBurst
}

const (
	DefaultRPS   = 5.0
	DefaultBurst = 10
)

// Server is the HTTP relay. One Server handles every project the engine
// knows about; projects are addressed by id hash in the path.
type Server struct {
	cfg    Config
	http   *http.Server
	nonces *nonceCache
	limits *limiterSet
}

// New constructs a Server. Call ListenAndServe to begin accepting.
func New(cfg Config) *Server {
	if cfg.RPS == 0 {
		cfg.RPS = DefaultRPS
	}
	if cfg.Burst == 0 {
		cfg.Burst = DefaultBurst
	}

	s := &Server{
		cfg:    cfg,
		nonces: newNonceCache(),
		limits: newLimiterSet(rate.Limit(cfg.RPS), cfg.Burst),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/project/", s.rateLimited(s.handleProject))

	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		TLSConfig:    cfg.TLS,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving the relay, TLS if configured.
func (s *Server) ListenAndServe() error {
	build.Log.Infof("relay: listening on %s", s.cfg.Addr)
	if s.http.TLSConfig != nil {
		return s.http.ListenAndServeTLS("", "")
	}
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the relay.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// limiterSet hands out a token-bucket limiter per remote address, the same
// per-peer budget shape the replay-rate-limiting language calls
// for, extended to cover the whole relay rather than only the signed GET.
type limiterSet struct {
	mu      chan struct{} // 1-buffered mutex, matches teacher's occasional channel-as-mutex idiom
	perPeer map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

func newLimiterSet(limit rate.Limit, burst int) *limiterSet {
	ls := &limiterSet{
		mu:      make(chan struct{}, 1),
		perPeer: make(map[string]*rate.Limiter),
		limit:   limit,
		burst:   burst,
	}
	ls.mu <- struct{}{}
	return ls
}

func (ls *limiterSet) allow(remote string) bool {
	<-ls.mu
	l, ok := ls.perPeer[remote]
	if !ok {
		l = rate.NewLimiter(ls.limit, ls.burst)
		ls.perPeer[remote] = l
	}
	ls.mu <- struct{}{}
	return l.Allow()
}

func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host := r.RemoteAddr
		if idx := strings.LastIndex(host, ":"); idx != -1 {
			host = host[:idx]
		}
		if !s.limits.allow(host) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Kind: "error", Detail: detail})
}

type errorBody struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}
