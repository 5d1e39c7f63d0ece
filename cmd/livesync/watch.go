package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jsmonitor/livesync/internal/api"
	"github.com/jsmonitor/livesync/internal/config"
	"github.com/jsmonitor/livesync/pkg/feed"
	"github.com/jsmonitor/livesync/pkg/status"
	"github.com/jsmonitor/livesync/pkg/telemetry"
	"github.com/jsmonitor/livesync/pkg/transport"
)

// shutdownTimeout bounds the HTTP server shutdown.
const shutdownTimeout = 5 * time.Second

func watchCmd(flags *globalFlags) *cobra.Command {
	var (
		feedURL     string
		apiURL      string
		metricsAddr string
		apiKey      string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream live server status",
		Long: `Seed the server list from the REST API, then stream status
deltas from the feed and print every server whose status changes.

While watching, an HTTP server exposes:
  /metrics   Prometheus metrics
  /healthz   feed connection state
  /servers   current server list as JSON

Examples:
  livesync watch
  livesync watch --feed-url=wss://panel.example.com/api/v1/ws
  livesync watch --metrics-addr=127.0.0.1:9464`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if feedURL != "" {
				cfg.Feed.URL = feedURL
			}
			if apiURL != "" {
				cfg.API.URL = apiURL
			}
			if metricsAddr != "" {
				cfg.Metrics.Address = metricsAddr
				cfg.Metrics.Enabled = true
			}
			if apiKey == "" {
				apiKey = os.Getenv(cfg.Console.CredentialEnv)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cfg, apiKey, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&feedURL, "feed-url", "", "Feed WebSocket URL (default from livesync.json)")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "REST API base URL (default from livesync.json)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Listen address for /metrics, /healthz and /servers")
	cmd.Flags().StringVar(&apiKey, "key", "", "API key for the REST listing (default from the credential variable)")

	return cmd
}

func runWatch(ctx context.Context, cfg *config.Config, apiKey string, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := setupLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(
		telemetry.WithRegistry(registry),
		telemetry.WithNamespace(cfg.Metrics.Namespace),
	)
	tracer := telemetry.NewTracer()

	printBanner()
	fmt.Println("  watch")
	fmt.Println()

	timeout, err := cfg.APITimeout()
	if err != nil {
		return err
	}
	client := api.NewClient(cfg.API.URL,
		api.WithTimeout(timeout),
		api.WithAPIKey(apiKey),
		api.WithLogger(logger.With("component", "api")),
	)
	servers, err := client.ListServers(ctx)
	if err != nil {
		return err
	}
	success("Loaded %d servers from %s", len(servers), cfg.API.URL)

	store := status.NewStore(servers)
	printer := newChangePrinter(out, store.Snapshot())
	cancel := store.Subscribe(printer.Print)
	defer cancel()

	dialer, err := newDialer(cfg, metrics, logger)
	if err != nil {
		return err
	}
	initial, maxDelay, err := cfg.Backoff()
	if err != nil {
		return err
	}

	feedLogger := logger.With("component", "feed")
	fc, err := feed.New(dialer, transport.Endpoint{URL: cfg.Feed.URL}, store.Apply,
		feed.WithBackoff(feed.Backoff{Initial: initial, Max: maxDelay}),
		feed.WithLogger(feedLogger),
		feed.WithMetrics(metrics),
		feed.WithTracer(tracer),
		feed.WithStateHandler(func(s feed.State) {
			feedLogger.Info("feed state", "state", s.String())
		}),
	)
	if err != nil {
		return err
	}
	fc.Start()
	defer fc.Close()
	info("Streaming from %s", cfg.Feed.URL)

	var srv *http.Server
	serveErr := make(chan error, 1)
	if cfg.Metrics.Enabled {
		srv = &http.Server{
			Addr:              cfg.Metrics.Address,
			Handler:           newWatchRouter(store, fc.State, registry),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				serveErr <- err
			}
		}()
		info("Serving metrics on %s", cfg.Metrics.Address)
	}
	fmt.Println()

	select {
	case <-ctx.Done():
		fmt.Println("\n  Shutting down...")
	case err := <-serveErr:
		errorMsg("HTTP server: %v", err)
		return err
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
	}
	return nil
}

// newDialer builds the WebSocket dialer from the transport section.
func newDialer(cfg *config.Config, metrics *telemetry.Metrics, logger *slog.Logger) (*transport.WebSocketDialer, error) {
	ts, err := cfg.TransportSettings()
	if err != nil {
		return nil, err
	}
	return transport.NewWebSocketDialer(&transport.Config{
		HandshakeTimeout: ts.HandshakeTimeout,
		WriteTimeout:     ts.WriteTimeout,
		ReadTimeout:      ts.ReadTimeout,
		PingInterval:     ts.PingInterval,
		MaxMessageSize:   ts.MaxMessageSize,
	},
		transport.WithLogger(logger.With("component", "transport")),
		transport.WithMetrics(metrics),
	), nil
}

// newWatchRouter serves the watch HTTP surface.
func newWatchRouter(store *status.Store, state func() feed.State, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		s := state()
		code := http.StatusOK
		if s != feed.Connected {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]string{"feed": s.String()})
	})

	r.Route("/servers", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, store.Snapshot())
		})
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid server id"})
				return
			}
			rec, ok := store.Get(id)
			if !ok {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "server not found"})
				return
			}
			writeJSON(w, http.StatusOK, rec)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// changePrinter prints one line per record whose status differs from the
// previous snapshot.
type changePrinter struct {
	mu   sync.Mutex
	out  io.Writer
	prev map[int64]*status.Status
}

func newChangePrinter(out io.Writer, initial status.Collection) *changePrinter {
	p := &changePrinter{out: out}
	p.prev = snapshotStatuses(initial)
	return p
}

// Print writes the records of c that changed since the last call.
func (p *changePrinter) Print(c status.Collection) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, rec := range c {
		if prev, seen := p.prev[rec.ID]; seen && sameStatus(prev, rec.Status) {
			continue
		}
		fmt.Fprintln(p.out, formatRecord(rec))
	}
	p.prev = snapshotStatuses(c)
}

func snapshotStatuses(c status.Collection) map[int64]*status.Status {
	m := make(map[int64]*status.Status, len(c))
	for _, rec := range c {
		m[rec.ID] = rec.Status
	}
	return m
}

func sameStatus(a, b *status.Status) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Online == b.Online &&
		a.PlayersNow == b.PlayersNow &&
		a.PlayersMax == b.PlayersMax &&
		a.Map == b.Map &&
		a.PingMS == b.PingMS &&
		a.LastUpdate.Equal(b.LastUpdate)
}

// formatRecord renders a record as a single status line, for example
// "#7 Alpha online 3/20 de_dust2 12ms".
func formatRecord(rec status.Record) string {
	st := rec.Status
	switch {
	case st == nil:
		return fmt.Sprintf("#%d %s unknown", rec.ID, rec.Title)
	case !st.Online:
		return fmt.Sprintf("#%d %s offline", rec.ID, rec.Title)
	}
	line := fmt.Sprintf("#%d %s online %d/%d", rec.ID, rec.Title, st.PlayersNow, st.PlayersMax)
	if st.Map != "" {
		line += " " + st.Map
	}
	return line + fmt.Sprintf(" %dms", st.PingMS)
}
