// Package relayer serves swap submission over HTTP. Requests are queued
// on the sequence tracker and released one at a time in sequence order,
// while a monitor keeps the tracker in step with the ledger.
package relayer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lugondev/go-continuum/internal/config"
	cerrors "github.com/lugondev/go-continuum/internal/errors"
	"github.com/lugondev/go-continuum/internal/metrics"
	"github.com/lugondev/go-continuum/internal/poolauth"
	"github.com/lugondev/go-continuum/internal/raydium"
	"github.com/lugondev/go-continuum/internal/sequence"
	"github.com/lugondev/go-continuum/internal/submit"
)

const shutdownTimeout = 10 * time.Second

// Deps are the components a Server drives.
type Deps struct {
	Submitter *submit.Submitter
	Tracker   *sequence.Tracker
	Pools     *raydium.Registry
	// Lifecycle reports pool protection on /pools when set.
	Lifecycle *poolauth.Lifecycle
	// Owner signs swaps; the relayer trades from token accounts it owns.
	Owner   solana.PrivateKey
	Metrics metrics.Metrics
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
	Logger         *zap.Logger
}

// Server is the relayer HTTP service.
type Server struct {
	cfg        config.RelayerConfig
	deps       Deps
	dispatcher *Dispatcher
	monitor    *Monitor
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewServer wires the dispatcher and monitor around deps.
func NewServer(cfg config.RelayerConfig, deps Deps) (*Server, error) {
	if deps.Submitter == nil || deps.Tracker == nil || deps.Pools == nil {
		return nil, fmt.Errorf("relayer: submitter, tracker and pools are required")
	}
	if len(deps.Owner) == 0 {
		return nil, fmt.Errorf("relayer: owner keypair is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoopMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	dispatcher := NewDispatcher(deps.Submitter, deps.Tracker).
		WithLogger(deps.Logger.Named("dispatcher")).
		WithMetrics(deps.Metrics)
	monitor := NewMonitor(deps.Submitter.Sequence(), deps.Tracker, cfg.PollInterval).
		WithLogger(deps.Logger.Named("monitor")).
		WithMetrics(deps.Metrics).
		OnAdvance(dispatcher.Wake)

	return &Server{
		cfg:        cfg,
		deps:       deps,
		dispatcher: dispatcher,
		monitor:    monitor,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     deps.Logger,
	}, nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /swap", s.handleSwap)
	mux.HandleFunc("GET /pools", s.handlePools)
	if s.deps.MetricsHandler != nil {
		mux.Handle("GET /metrics", s.deps.MetricsHandler)
	}
	return mux
}

// Run serves on the configured address with the monitor and dispatcher
// until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(s.monitor.Run(gctx))
	})
	g.Go(func() error {
		return ignoreCanceled(s.dispatcher.Run(gctx))
	})
	g.Go(func() error {
		s.logger.Info("relayer listening", zap.Stringer("addr", ln.Addr()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type healthResponse struct {
	Status          string `json:"status"`
	CurrentSequence uint64 `json:"current_sequence"`
	PendingSwaps    int    `json:"pending_swaps"`
	PoolsTracked    int    `json:"pools_tracked"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.count(r.Context(), "health")
	writeJSON(w, http.StatusOK, healthResponse{
		Status:          "healthy",
		CurrentSequence: s.deps.Tracker.Current(),
		PendingSwaps:    s.dispatcher.Queued(),
		PoolsTracked:    s.deps.Pools.Len(),
	})
}

type swapRequest struct {
	PoolID       string `json:"pool_id"`
	Source       string `json:"source"`
	Destination  string `json:"destination"`
	AmountIn     uint64 `json:"amount_in"`
	MinAmountOut uint64 `json:"min_amount_out"`
}

type swapResponse struct {
	ID        string `json:"id"`
	Signature string `json:"signature"`
	Sequence  uint64 `json:"sequence"`
	Slot      uint64 `json:"slot"`
	Attempts  int    `json:"attempts"`
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s.count(ctx, "swap")
	if !s.limiter.Allow() {
		_ = s.deps.Metrics.IncrementCounter(ctx, metrics.MetricRelayerRateLimited, 1)
		writeError(w, http.StatusTooManyRequests, cerrors.NewError("RATE_LIMITED", "too many requests"))
		return
	}

	var body swapRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, cerrors.InvalidRequest("malformed body").WithCause(err))
		return
	}
	req, err := s.parseSwap(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	receipt, err := s.dispatcher.Submit(ctx, req)
	if err != nil {
		s.logger.Info("swap request failed", zap.String("pool", body.PoolID), zap.Error(err))
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, swapResponse{
		ID:        receipt.ID,
		Signature: receipt.Signature.String(),
		Sequence:  receipt.Sequence,
		Slot:      receipt.Slot,
		Attempts:  receipt.Attempts,
	})
}

func (s *Server) parseSwap(body swapRequest) (submit.SwapRequest, error) {
	req := submit.SwapRequest{
		User:         s.deps.Owner,
		AmountIn:     body.AmountIn,
		MinAmountOut: body.MinAmountOut,
	}
	for _, f := range []struct {
		name  string
		value string
		dst   *solana.PublicKey
	}{
		{"pool_id", body.PoolID, &req.PoolID},
		{"source", body.Source, &req.Source},
		{"destination", body.Destination, &req.Destination},
	} {
		key, err := solana.PublicKeyFromBase58(f.value)
		if err != nil {
			return req, cerrors.InvalidRequest(fmt.Sprintf("invalid %s", f.name)).WithCause(err)
		}
		*f.dst = key
	}
	return req, nil
}

type poolResponse struct {
	ID                   string `json:"id"`
	Name                 string `json:"name,omitempty"`
	State                string `json:"state,omitempty"`
	Initialized          bool   `json:"initialized"`
	AuthorityTransferred bool   `json:"authority_transferred"`
	Protected            bool   `json:"protected"`
	PoolAuthority        string `json:"pool_authority,omitempty"`
}

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s.count(ctx, "pools")

	pools := s.deps.Pools.List()
	out := make([]poolResponse, 0, len(pools))
	protected := 0
	for _, p := range pools {
		resp := poolResponse{ID: p.ID.String(), Name: p.Name}
		if s.deps.Lifecycle != nil {
			status, err := s.deps.Lifecycle.Status(ctx, p)
			if err != nil {
				writeError(w, http.StatusBadGateway, err)
				return
			}
			resp.State = status.State.String()
			resp.Initialized = status.Initialized
			resp.AuthorityTransferred = status.AuthorityTransferred
			resp.Protected = status.ProtectionActive
			resp.PoolAuthority = status.PoolAuthority.String()
			if status.ProtectionActive {
				protected++
			}
		}
		out = append(out, resp)
	}
	_ = s.deps.Metrics.UpdateGauge(ctx, metrics.MetricPoolsProtected, float64(protected))
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) count(ctx context.Context, route string) {
	_ = s.deps.Metrics.IncrementCounter(ctx, metrics.MetricRelayerRequests, 1)
	s.logger.Debug("request", zap.String("route", route))
}

// statusOf maps a protocol error kind to an HTTP status.
func statusOf(err error) int {
	switch cerrors.CodeOf(err) {
	case cerrors.ErrCodeInvalidRequest, cerrors.ErrCodeMalformedFrame:
		return http.StatusBadRequest
	case cerrors.ErrCodePoolNotFound:
		return http.StatusNotFound
	case cerrors.ErrCodeSequenceConflict, cerrors.ErrCodeAlreadyInitialized,
		cerrors.ErrCodeInsufficientApproval, cerrors.ErrCodeDelegateExpired:
		return http.StatusConflict
	case cerrors.ErrCodeSlippageExceeded:
		return http.StatusUnprocessableEntity
	case cerrors.ErrCodeUnknownOutcome:
		return http.StatusAccepted
	case cerrors.ErrCodeNotInitialized:
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, ErrStopped) {
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	detail := errorDetail{Code: cerrors.CodeOf(err), Message: err.Error(), Details: cerrors.DetailsOf(err)}
	if detail.Code == "" {
		detail.Code = "INTERNAL"
	}
	writeJSON(w, status, errorBody{Error: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
