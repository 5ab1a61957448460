// Package server exposes the HTTP status surface: a JSON status snapshot,
// a liveness probe, and the Prometheus scrape endpoint.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arbstack/bscarb/scanner"
	"github.com/arbstack/bscarb/types"
)

// GatewayStatus is the point-in-time gateway introspection the status
// endpoint reports.
type GatewayStatus struct {
	QueueDepth          int  `json:"queue_depth"`
	InFlight            int  `json:"in_flight"`
	BreakerOpen         bool `json:"breaker_open"`
	ConsecutiveFailures int  `json:"consecutive_failures"`
}

// GatewayInspector reports the gateway's internal state.
type GatewayInspector interface {
	QueueLen() int
	InFlight() int
	BreakerOpen() bool
	ConsecutiveFailures() int
}

type statusResponse struct {
	Profile       string                `json:"profile"`
	Stats         scanner.StatsSnapshot `json:"stats"`
	Gateway       GatewayStatus         `json:"gateway"`
	Opportunities []opportunityView     `json:"last_scan"`
}

type opportunityView struct {
	Network   string  `json:"network"`
	Pair      string  `json:"pair"`
	BuyVenue  string  `json:"buy_venue"`
	SellVenue string  `json:"sell_venue"`
	GrossPct  float64 `json:"gross_pct"`
	NetPct    float64 `json:"net_pct"`
	FoundAt   string  `json:"found_at"`
}

// Server serves the status endpoints on a single listener.
type Server struct {
	httpSrv *http.Server
	logger  *zap.Logger
}

// New builds the status server. registry may be nil to omit /metrics.
func New(addr, profile string, sc *scanner.Scanner, gw GatewayInspector, registry *prometheus.Registry, logger *zap.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{
			Profile: profile,
			Stats:   sc.Stats().Snapshot(),
			Gateway: GatewayStatus{
				QueueDepth:          gw.QueueLen(),
				InFlight:            gw.InFlight(),
				BreakerOpen:         gw.BreakerOpen(),
				ConsecutiveFailures: gw.ConsecutiveFailures(),
			},
			Opportunities: viewOpportunities(sc.LastOpportunities()),
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Warn("Failed to encode status response", zap.Error(err))
		}
	})

	if registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	return &Server{
		httpSrv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("Status server listening", zap.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func viewOpportunities(opps []types.Opportunity) []opportunityView {
	out := make([]opportunityView, 0, len(opps))
	for _, o := range opps {
		out = append(out, opportunityView{
			Network:   string(o.Network),
			Pair:      o.TokenInSym + "/" + o.TokenOutSym,
			BuyVenue:  o.BuyVenue,
			SellVenue: o.SellVenue,
			GrossPct:  o.GrossPct,
			NetPct:    o.NetPct,
			FoundAt:   o.FoundAt.Format(time.RFC3339),
		})
	}
	return out
}
