package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Engine metrics
	TicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "timeguardian_ticks_total",
			Help: "Total usage ticks processed",
		},
	)

	RewardEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timeguardian_reward_evaluations_total",
			Help: "Reward evaluations by outcome",
		},
		[]string{"result"},
	)

	DailyResetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "timeguardian_daily_resets_total",
			Help: "Total daily usage rollovers",
		},
	)

	// Usage metrics
	UsageMinutesConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timeguardian_usage_minutes_consumed_total",
			Help: "Total usage minutes consumed",
		},
		[]string{"app"},
	)

	UsagePercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "timeguardian_usage_percent",
			Help: "Share of the daily limit used today",
		},
		[]string{"app"},
	)

	// Currency metrics
	CoinBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "timeguardian_coin_balance",
			Help: "Current FocusCoins balance",
		},
	)

	CoinsAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timeguardian_coins_awarded_total",
			Help: "FocusCoins credited",
		},
		[]string{"reason"},
	)

	CoinsDeducted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timeguardian_coins_deducted_total",
			Help: "FocusCoins debited",
		},
		[]string{"reason"},
	)

	RewardsPurchased = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timeguardian_rewards_purchased_total",
			Help: "Rewards unlocked from the store",
		},
		[]string{"reward"},
	)

	Streak = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "timeguardian_streak_days",
			Help: "Consecutive days with every app under its limit",
		},
	)

	// Device metrics
	AppLocksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timeguardian_app_locks_total",
			Help: "App lock attempts by outcome",
		},
		[]string{"app", "result"},
	)

	PermissionGrantsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timeguardian_permission_grants_total",
			Help: "Simulated permission grants",
		},
		[]string{"permission"},
	)

	// Notification metrics
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timeguardian_notifications_total",
			Help: "Notifications emitted",
		},
		[]string{"severity"},
	)

	// API metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timeguardian_api_requests_total",
			Help: "Total API requests processed",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "timeguardian_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"route"},
	)

	ActiveStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "timeguardian_notification_streams_active",
			Help: "Number of connected notification streams",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		TicksTotal,
		RewardEvaluationsTotal,
		DailyResetsTotal,
		UsageMinutesConsumed,
		UsagePercent,
		CoinBalance,
		CoinsAwarded,
		CoinsDeducted,
		RewardsPurchased,
		Streak,
		AppLocksTotal,
		PermissionGrantsTotal,
		NotificationsTotal,
		RequestsTotal,
		RequestDuration,
		ActiveStreams,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			// Use systemd socket-activated listener
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			// Create and bind listener ourselves
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
